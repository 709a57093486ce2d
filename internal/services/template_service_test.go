package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/patient-feedback/survey-console/internal/backend"
	"github.com/patient-feedback/survey-console/internal/cache"
	"github.com/patient-feedback/survey-console/internal/events"
	"github.com/patient-feedback/survey-console/internal/models"
	"github.com/patient-feedback/survey-console/internal/repositories"
	"github.com/patient-feedback/survey-console/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testPrincipal = models.Principal{UserID: "user-1", OrganizationID: "org-1", Token: "token"}

type templateFixture struct {
	api       *MockTemplateAPI
	audits    *MockSaveAuditRepository
	cache     *memoryCache
	publisher *events.MockEventPublisher
	service   TemplateService
}

func newTemplateFixture() *templateFixture {
	f := &templateFixture{
		api:       &MockTemplateAPI{},
		audits:    &MockSaveAuditRepository{},
		cache:     newMemoryCache(),
		publisher: events.NewMockEventPublisher(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	f.service = NewTemplateService(f.api, f.cache, f.publisher, f.audits, utils.NewNopLogger(), TemplateServiceConfig{CacheTTL: time.Minute})
	return f
}

func decodeTemplate(t *testing.T, body string) *models.SurveyTemplate {
	t.Helper()
	var tpl models.SurveyTemplate
	require.NoError(t, json.Unmarshal([]byte(body), &tpl))
	return &tpl
}

func TestTemplateService_SaveQuestions(t *testing.T) {
	f := newTemplateFixture()
	ctx := ContextWithSessionID(context.Background(), "session-1")
	questions := models.QuestionMap{
		"q1": map[string]any{"type": "rating", "text": "Rate us", "required": true, "min_rating": 1, "max_rating": 5},
	}

	// a cached read that the save must invalidate
	require.NoError(t, f.cache.Set(ctx, cache.TemplateKey("org-1", cacheCredential(testPrincipal), "tpl-1"), &models.SurveyTemplate{ID: "tpl-1"}, time.Minute))

	f.api.On("UpdateSurveyTemplate", mock.Anything, testPrincipal, "tpl-1", mock.MatchedBy(func(u models.SurveyTemplateUpdate) bool {
		return u.Questions != nil && len(*u.Questions) == 1 &&
			u.Name == nil && u.Description == nil && u.Active == nil && u.Triggers == nil && u.DeliverySettings == nil
	})).Return(&models.SurveyTemplate{ID: "tpl-1"}, nil)

	f.audits.On("Create", mock.Anything, mock.MatchedBy(func(a *models.QuestionSetSaveAudit) bool {
		return a.TemplateID == "tpl-1" &&
			a.SessionID == "session-1" &&
			a.UserID == "user-1" &&
			a.Outcome == models.SaveSucceeded &&
			a.QuestionCount == 1 &&
			a.ErrorDetail == nil
	})).Return(nil)

	err := f.service.SaveQuestions(ctx, testPrincipal, "tpl-1", questions)
	require.NoError(t, err)

	f.api.AssertExpectations(t)
	f.audits.AssertExpectations(t)
	assert.False(t, f.cache.has(cache.TemplateKey("org-1", cacheCredential(testPrincipal), "tpl-1")))

	published := f.publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventTemplateQuestionsUpdated, published[0].Type)
	assert.Equal(t, "tpl-1", published[0].Data.TemplateID)
	assert.Equal(t, 1, published[0].Data.QuestionCount)
}

func TestTemplateService_SaveQuestionsEmptySetIsSent(t *testing.T) {
	f := newTemplateFixture()

	f.api.On("UpdateSurveyTemplate", mock.Anything, testPrincipal, "tpl-1", mock.MatchedBy(func(u models.SurveyTemplateUpdate) bool {
		return u.Questions != nil && len(*u.Questions) == 0
	})).Return(&models.SurveyTemplate{ID: "tpl-1"}, nil)
	f.audits.On("Create", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, f.service.SaveQuestions(context.Background(), testPrincipal, "tpl-1", nil))
	f.api.AssertExpectations(t)
}

func TestTemplateService_SaveQuestionsFailure(t *testing.T) {
	tests := []struct {
		name       string
		apiErr     error
		wantStatus int
		wantDetail string
	}{
		{"detail from backend", &backend.APIError{StatusCode: 403, Detail: "Not enough permissions"}, 403, "Not enough permissions"},
		{"no detail", &backend.APIError{StatusCode: 500}, 500, backend.DefaultUpdateMessage},
		{"transport", errors.New("connection refused"), 0, "connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTemplateFixture()
			require.NoError(t, f.cache.Set(context.Background(), cache.TemplateKey("org-1", cacheCredential(testPrincipal), "tpl-1"), &models.SurveyTemplate{ID: "tpl-1"}, time.Minute))

			f.api.On("UpdateSurveyTemplate", mock.Anything, testPrincipal, "tpl-1", mock.Anything).Return(nil, tt.apiErr)
			f.audits.On("Create", mock.Anything, mock.MatchedBy(func(a *models.QuestionSetSaveAudit) bool {
				return a.Outcome == models.SaveFailed &&
					a.StatusCode == tt.wantStatus &&
					a.ErrorDetail != nil && *a.ErrorDetail == tt.wantDetail
			})).Return(nil)

			err := f.service.SaveQuestions(context.Background(), testPrincipal, "tpl-1", models.QuestionMap{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.apiErr)

			f.audits.AssertExpectations(t)
			assert.Empty(t, f.publisher.GetPublishedEvents())
			assert.True(t, f.cache.has(cache.TemplateKey("org-1", cacheCredential(testPrincipal), "tpl-1")), "failed saves keep the cache")
		})
	}
}

func TestTemplateService_SaveQuestionsAuditFailureIsIgnored(t *testing.T) {
	f := newTemplateFixture()
	f.api.On("UpdateSurveyTemplate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(&models.SurveyTemplate{}, nil)
	f.audits.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))

	assert.NoError(t, f.service.SaveQuestions(context.Background(), testPrincipal, "tpl-1", models.QuestionMap{}))
}

func TestTemplateService_GetUsesCacheAndKeepsOrder(t *testing.T) {
	f := newTemplateFixture()
	tpl := decodeTemplate(t, `{"id":"tpl-1","name":"Visit","questions":{"z":{"type":"yes_no"},"a":{"type":"rating"}}}`)

	f.api.On("ReadSurveyTemplate", mock.Anything, testPrincipal, "tpl-1").Return(tpl, nil).Once()

	first, err := f.service.Get(context.Background(), testPrincipal, "tpl-1")
	require.NoError(t, err)
	second, err := f.service.Get(context.Background(), testPrincipal, "tpl-1")
	require.NoError(t, err)

	f.api.AssertNumberOfCalls(t, "ReadSurveyTemplate", 1)
	assert.Equal(t, first.Name, second.Name)
	assert.JSONEq(t, string(first.RawQuestions), string(second.RawQuestions))
	assert.Equal(t, `{"z":{"type":"yes_no"},"a":{"type":"rating"}}`, string(second.RawQuestions))
}

func TestTemplateService_GetRequiresID(t *testing.T) {
	f := newTemplateFixture()
	_, err := f.service.Get(context.Background(), testPrincipal, "")
	assert.ErrorIs(t, err, ErrTemplateIDMissing)
}

func TestTemplateService_ListCachesFirstPageOnly(t *testing.T) {
	f := newTemplateFixture()
	list := &models.SurveyTemplateList{Data: []models.SurveyTemplate{{ID: "a"}}, Count: 1}

	f.api.On("ListActiveSurveyTemplates", mock.Anything, testPrincipal, backend.Page{}).Return(list, nil).Once()
	f.api.On("ListActiveSurveyTemplates", mock.Anything, testPrincipal, backend.Page{Skip: 100}).Return(list, nil).Twice()

	for i := 0; i < 2; i++ {
		_, err := f.service.ListActive(context.Background(), testPrincipal, backend.Page{})
		require.NoError(t, err)
		_, err = f.service.ListActive(context.Background(), testPrincipal, backend.Page{Skip: 100})
		require.NoError(t, err)
	}

	f.api.AssertExpectations(t)
	assert.True(t, f.cache.has(cache.TemplateListKey("org-1", cacheCredential(testPrincipal), true)))
}

func TestTemplateService_Lifecycle(t *testing.T) {
	f := newTemplateFixture()
	ctx := context.Background()

	f.api.On("ActivateSurveyTemplate", mock.Anything, testPrincipal, "tpl-1").Return(&models.SurveyTemplate{ID: "tpl-1", Active: true}, nil)
	f.api.On("DeactivateSurveyTemplate", mock.Anything, testPrincipal, "tpl-1").Return(&models.SurveyTemplate{ID: "tpl-1"}, nil)
	f.api.On("DuplicateSurveyTemplate", mock.Anything, testPrincipal, "tpl-1").Return(&models.SurveyTemplate{ID: "tpl-2"}, nil)
	f.api.On("DeleteSurveyTemplate", mock.Anything, testPrincipal, "tpl-2").Return(&models.Message{Message: "deleted"}, nil)

	tpl, err := f.service.Activate(ctx, testPrincipal, "tpl-1")
	require.NoError(t, err)
	assert.True(t, tpl.Active)

	_, err = f.service.Deactivate(ctx, testPrincipal, "tpl-1")
	require.NoError(t, err)

	dup, err := f.service.Duplicate(ctx, testPrincipal, "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, "tpl-2", dup.ID)

	msg, err := f.service.Delete(ctx, testPrincipal, "tpl-2")
	require.NoError(t, err)
	assert.Equal(t, "deleted", msg.Message)

	published := f.publisher.GetPublishedEvents()
	require.Len(t, published, 4)
	assert.Equal(t, events.EventTemplateActivated, published[0].Type)
	assert.Equal(t, events.EventTemplateDeactivated, published[1].Type)
	assert.Equal(t, events.EventTemplateDuplicated, published[2].Type)
	assert.Equal(t, "tpl-2", published[2].Data.DuplicateID)
	assert.Equal(t, events.EventTemplateDeleted, published[3].Type)
}

func TestTemplateService_LifecycleError(t *testing.T) {
	f := newTemplateFixture()
	notFound := &backend.APIError{StatusCode: 404, Detail: "Survey template not found"}
	f.api.On("ActivateSurveyTemplate", mock.Anything, testPrincipal, "missing").Return(nil, notFound)

	_, err := f.service.Activate(context.Background(), testPrincipal, "missing")
	assert.True(t, IsNotFound(err))
	assert.Empty(t, f.publisher.GetPublishedEvents())
}

func TestTemplateService_SaveHistory(t *testing.T) {
	f := newTemplateFixture()
	f.api.On("ReadSurveyTemplate", mock.Anything, testPrincipal, "tpl-1").Return(&models.SurveyTemplate{ID: "tpl-1"}, nil)
	rows := []*models.QuestionSetSaveAudit{{ID: 1, TemplateID: "tpl-1", Outcome: models.SaveSucceeded}}
	f.audits.On("List", mock.Anything, repositories.SaveAuditFilters{TemplateID: "tpl-1", Limit: 10}).Return(rows, int64(1), nil)

	got, total, err := f.service.SaveHistory(context.Background(), testPrincipal, "tpl-1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, rows, got)
}

func TestTemplateService_CacheIsBoundToCredentials(t *testing.T) {
	f := newTemplateFixture()
	ctx := context.Background()
	outsider := models.Principal{UserID: "user-2", OrganizationID: "org-1", Token: "garbage"}
	sameUserNewToken := models.Principal{UserID: "user-1", OrganizationID: "org-1", Token: "expired"}
	denied := &backend.APIError{StatusCode: http.StatusForbidden, Detail: "Not enough permissions"}

	f.api.On("ReadSurveyTemplate", mock.Anything, testPrincipal, "tpl-1").Return(&models.SurveyTemplate{ID: "tpl-1"}, nil).Once()
	f.api.On("ReadSurveyTemplate", mock.Anything, outsider, "tpl-1").Return(nil, denied).Twice()
	f.api.On("ReadSurveyTemplate", mock.Anything, sameUserNewToken, "tpl-1").Return(nil, denied).Once()
	f.api.On("ListSurveyTemplates", mock.Anything, testPrincipal, backend.Page{}).Return(&models.SurveyTemplateList{Count: 1}, nil).Once()
	f.api.On("ListSurveyTemplates", mock.Anything, outsider, backend.Page{}).Return(nil, denied).Once()

	_, err := f.service.Get(ctx, testPrincipal, "tpl-1")
	require.NoError(t, err)
	_, err = f.service.List(ctx, testPrincipal, backend.Page{})
	require.NoError(t, err)

	tpl, err := f.service.Get(ctx, outsider, "tpl-1")
	assert.Nil(t, tpl)
	assert.True(t, IsUnauthorized(err))

	tpl, err = f.service.Get(ctx, sameUserNewToken, "tpl-1")
	assert.Nil(t, tpl)
	assert.True(t, IsUnauthorized(err))

	list, err := f.service.List(ctx, outsider, backend.Page{})
	assert.Nil(t, list)
	assert.True(t, IsUnauthorized(err))

	_, _, err = f.service.SaveHistory(ctx, outsider, "tpl-1", 10, 0)
	assert.True(t, IsUnauthorized(err))
	f.audits.AssertNotCalled(t, "List", mock.Anything, mock.Anything)

	f.api.AssertExpectations(t)
}

func TestTemplateService_WritesInvalidateEveryCredentialInScope(t *testing.T) {
	f := newTemplateFixture()
	ctx := context.Background()
	colleague := models.Principal{UserID: "user-2", OrganizationID: "org-1", Token: "other"}
	stranger := models.Principal{UserID: "user-3", OrganizationID: "org-2", Token: "t"}

	colleagueKey := cache.TemplateKey("org-1", cacheCredential(colleague), "tpl-1")
	strangerKey := cache.TemplateKey("org-2", cacheCredential(stranger), "tpl-1")
	require.NoError(t, f.cache.Set(ctx, colleagueKey, &models.SurveyTemplate{ID: "tpl-1"}, time.Minute))
	require.NoError(t, f.cache.Set(ctx, strangerKey, &models.SurveyTemplate{ID: "tpl-1"}, time.Minute))

	f.api.On("ActivateSurveyTemplate", mock.Anything, testPrincipal, "tpl-1").Return(&models.SurveyTemplate{ID: "tpl-1", Active: true}, nil)
	_, err := f.service.Activate(ctx, testPrincipal, "tpl-1")
	require.NoError(t, err)

	assert.False(t, f.cache.has(colleagueKey))
	assert.True(t, f.cache.has(strangerKey))
}

func TestTemplateService_Create(t *testing.T) {
	f := newTemplateFixture()
	description := "After discharge"

	f.api.On("CreateSurveyTemplate", mock.Anything, testPrincipal, mock.MatchedBy(func(c models.SurveyTemplateCreate) bool {
		return c.Name == "Discharge" &&
			c.Description == &description &&
			c.Active &&
			c.Version == 1 &&
			c.OrganizationID == "org-1" &&
			c.CreatedBy == "user-1" &&
			c.Questions != nil && len(c.Questions) == 0
	})).Return(&models.SurveyTemplate{ID: "tpl-9", Name: "Discharge"}, nil)

	tpl, err := f.service.Create(context.Background(), testPrincipal, TemplateInput{Name: "Discharge", Description: &description, Active: true})
	require.NoError(t, err)
	assert.Equal(t, "tpl-9", tpl.ID)

	published := f.publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventTemplateCreated, published[0].Type)
	assert.Equal(t, "tpl-9", published[0].Data.TemplateID)
}

func TestTemplateService_CreateWithoutOrganization(t *testing.T) {
	f := newTemplateFixture()
	loner := models.Principal{UserID: "user-1", Token: "token"}

	_, err := f.service.Create(context.Background(), loner, TemplateInput{Name: "Discharge"})

	var errs ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.Equal(t, "organization_id", errs[0].Field)
	assert.True(t, IsValidation(err))
	f.api.AssertNotCalled(t, "CreateSurveyTemplate", mock.Anything, mock.Anything, mock.Anything)
}

func TestTemplateService_UpdateMetadata(t *testing.T) {
	f := newTemplateFixture()
	name := "Renamed"
	questions := models.QuestionMap{"q1": map[string]any{"type": "yes_no"}}
	active := false

	f.api.On("UpdateSurveyTemplate", mock.Anything, testPrincipal, "tpl-1", mock.MatchedBy(func(u models.SurveyTemplateUpdate) bool {
		return u.Name != nil && *u.Name == "Renamed" &&
			u.Questions == nil && u.Active == nil && u.Version == nil &&
			u.Triggers["on"] == "discharge"
	})).Return(&models.SurveyTemplate{ID: "tpl-1", Name: "Renamed"}, nil)

	tpl, err := f.service.UpdateMetadata(context.Background(), testPrincipal, "tpl-1", models.SurveyTemplateUpdate{
		Name:      &name,
		Questions: &questions,
		Active:    &active,
		Triggers:  map[string]any{"on": "discharge"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", tpl.Name)
	f.api.AssertExpectations(t)

	published := f.publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventTemplateUpdated, published[0].Type)
}

func TestTemplateService_UpdateMetadataNeedsAField(t *testing.T) {
	f := newTemplateFixture()
	questions := models.QuestionMap{}

	_, err := f.service.UpdateMetadata(context.Background(), testPrincipal, "tpl-1", models.SurveyTemplateUpdate{Questions: &questions})
	assert.True(t, IsValidation(err))
	f.api.AssertNotCalled(t, "UpdateSurveyTemplate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTemplateService_LastSave(t *testing.T) {
	f := newTemplateFixture()
	f.api.On("ReadSurveyTemplate", mock.Anything, testPrincipal, "tpl-1").Return(&models.SurveyTemplate{ID: "tpl-1"}, nil)
	f.api.On("ReadSurveyTemplate", mock.Anything, testPrincipal, "tpl-2").Return(&models.SurveyTemplate{ID: "tpl-2"}, nil)
	last := &models.QuestionSetSaveAudit{ID: 7, TemplateID: "tpl-1", Outcome: models.SaveSucceeded}
	f.audits.On("LastSuccessful", mock.Anything, "tpl-1").Return(last, nil)
	f.audits.On("LastSuccessful", mock.Anything, "tpl-2").Return(nil, nil)

	got, err := f.service.LastSave(context.Background(), testPrincipal, "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, last, got)

	got, err = f.service.LastSave(context.Background(), testPrincipal, "tpl-2")
	require.NoError(t, err)
	assert.Nil(t, got)
}
