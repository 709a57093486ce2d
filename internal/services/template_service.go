package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/patient-feedback/survey-console/internal/backend"
	"github.com/patient-feedback/survey-console/internal/cache"
	apperrors "github.com/patient-feedback/survey-console/internal/errors"
	"github.com/patient-feedback/survey-console/internal/events"
	"github.com/patient-feedback/survey-console/internal/models"
	"github.com/patient-feedback/survey-console/internal/repositories"
	"github.com/patient-feedback/survey-console/internal/utils"
	"gorm.io/datatypes"
)

// TemplateService wraps the templates API with caching, change events and the
// question save audit trail.
type TemplateService interface {
	List(ctx context.Context, p models.Principal, page backend.Page) (*models.SurveyTemplateList, error)
	ListActive(ctx context.Context, p models.Principal, page backend.Page) (*models.SurveyTemplateList, error)
	Get(ctx context.Context, p models.Principal, templateID string) (*models.SurveyTemplate, error)
	Create(ctx context.Context, p models.Principal, input TemplateInput) (*models.SurveyTemplate, error)
	// UpdateMetadata changes name, description, triggers or delivery settings. Questions and the
	// active flag have their own operations and are never sent from here.
	UpdateMetadata(ctx context.Context, p models.Principal, templateID string, update models.SurveyTemplateUpdate) (*models.SurveyTemplate, error)
	// SaveQuestions replaces the template's question set and nothing else.
	SaveQuestions(ctx context.Context, p models.Principal, templateID string, questions models.QuestionMap) error
	Activate(ctx context.Context, p models.Principal, templateID string) (*models.SurveyTemplate, error)
	Deactivate(ctx context.Context, p models.Principal, templateID string) (*models.SurveyTemplate, error)
	Delete(ctx context.Context, p models.Principal, templateID string) (*models.Message, error)
	Duplicate(ctx context.Context, p models.Principal, templateID string) (*models.SurveyTemplate, error)
	SaveHistory(ctx context.Context, p models.Principal, templateID string, limit, offset int) ([]*models.QuestionSetSaveAudit, int64, error)
	// LastSave returns the most recent successful console save, or nil when there is none.
	LastSave(ctx context.Context, p models.Principal, templateID string) (*models.QuestionSetSaveAudit, error)
}

// TemplateInput holds the caller supplied fields of a new template.
type TemplateInput struct {
	Name        string
	Description *string
	Active      bool
}

type TemplateServiceConfig struct {
	CacheTTL time.Duration
}

type templateService struct {
	api       backend.TemplateAPI
	cache     cache.CacheService
	publisher events.EventPublisher
	audits    repositories.SaveAuditRepository
	logger    utils.Logger
	svcLogger *ServiceLogger
	cacheTTL  time.Duration
}

func NewTemplateService(
	api backend.TemplateAPI,
	cacheService cache.CacheService,
	publisher events.EventPublisher,
	audits repositories.SaveAuditRepository,
	logger utils.Logger,
	cfg TemplateServiceConfig,
) TemplateService {
	return &templateService{
		api:       api,
		cache:     cacheService,
		publisher: publisher,
		audits:    audits,
		logger:    logger,
		svcLogger: NewServiceLogger(logger.Slog(), LogConfig{Service: "survey-console", Component: "templates"}),
		cacheTTL:  cfg.CacheTTL,
	}
}

type sessionIDKey struct{}

// ContextWithSessionID tags a save with the editor session that issued it.
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}

func sessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

// cacheScope groups cache entries by organization, falling back to the user.
// Invalidation works on the whole scope.
func cacheScope(p models.Principal) string {
	if p.OrganizationID != "" {
		return p.OrganizationID
	}
	return p.UserID
}

// cacheCredential ties an entry to the user and token the templates API
// authorized, so a hit never bypasses its access checks.
func cacheCredential(p models.Principal) string {
	return cache.CredentialSegment(p.UserID, p.Token)
}

func (s *templateService) List(ctx context.Context, p models.Principal, page backend.Page) (*models.SurveyTemplateList, error) {
	return s.list(ctx, p, page, false)
}

func (s *templateService) ListActive(ctx context.Context, p models.Principal, page backend.Page) (*models.SurveyTemplateList, error) {
	return s.list(ctx, p, page, true)
}

func (s *templateService) list(ctx context.Context, p models.Principal, page backend.Page, active bool) (result *models.SurveyTemplateList, err error) {
	operation := "list_templates"
	if active {
		operation = "list_active_templates"
	}
	op := s.svcLogger.WithOperation(ctx, operation, p.UserID)
	defer func() { op.LogResult("", "survey_template", err) }()

	// only the default first page is cached
	cacheable := page == backend.Page{}
	key := cache.TemplateListKey(cacheScope(p), cacheCredential(p), active)
	if cacheable {
		var cached models.SurveyTemplateList
		if s.cacheGet(ctx, key, &cached) {
			return &cached, nil
		}
	}

	if active {
		result, err = s.api.ListActiveSurveyTemplates(ctx, p, page)
	} else {
		result, err = s.api.ListSurveyTemplates(ctx, p, page)
	}
	if err != nil {
		return nil, err
	}

	if cacheable {
		s.cacheSet(ctx, key, result)
	}
	return result, nil
}

func (s *templateService) Get(ctx context.Context, p models.Principal, templateID string) (tpl *models.SurveyTemplate, err error) {
	op := s.svcLogger.WithOperation(ctx, "get_template", p.UserID)
	defer func() { op.LogResult(templateID, "survey_template", err) }()

	if templateID == "" {
		return nil, ErrTemplateIDMissing
	}

	key := cache.TemplateKey(cacheScope(p), cacheCredential(p), templateID)
	var cached models.SurveyTemplate
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	tpl, err = s.api.ReadSurveyTemplate(ctx, p, templateID)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, tpl)
	return tpl, nil
}

func (s *templateService) Create(ctx context.Context, p models.Principal, input TemplateInput) (tpl *models.SurveyTemplate, err error) {
	op := s.svcLogger.WithOperation(ctx, "create_template", p.UserID)
	defer func() {
		id := ""
		if tpl != nil {
			id = tpl.ID
		}
		op.LogResult(id, "survey_template", err)
	}()

	// the API files templates under the caller's organization
	if p.OrganizationID == "" {
		return nil, ValidationErrors{*apperrors.NewValidationError("organization_id", "caller has no organization", p.OrganizationID)}
	}

	tpl, err = s.api.CreateSurveyTemplate(ctx, p, models.SurveyTemplateCreate{
		Name:             input.Name,
		Description:      input.Description,
		Active:           input.Active,
		Version:          1,
		OrganizationID:   p.OrganizationID,
		Questions:        models.QuestionMap{},
		Triggers:         map[string]any{},
		DeliverySettings: map[string]any{},
		CreatedBy:        p.UserID,
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, p)
	s.publish(ctx, events.EventTemplateCreated, events.TemplateEventData{TemplateID: tpl.ID, UserID: p.UserID})
	return tpl, nil
}

func (s *templateService) UpdateMetadata(ctx context.Context, p models.Principal, templateID string, update models.SurveyTemplateUpdate) (tpl *models.SurveyTemplate, err error) {
	op := s.svcLogger.WithOperation(ctx, "update_template", p.UserID)
	defer func() { op.LogResult(templateID, "survey_template", err) }()

	if templateID == "" {
		return nil, ErrTemplateIDMissing
	}

	metadata := models.SurveyTemplateUpdate{
		Name:             update.Name,
		Description:      update.Description,
		Triggers:         update.Triggers,
		DeliverySettings: update.DeliverySettings,
	}
	if metadata.Name == nil && metadata.Description == nil && metadata.Triggers == nil && metadata.DeliverySettings == nil {
		return nil, ValidationErrors{*apperrors.NewValidationErrorWithRule("update", "no metadata field is set", "required", nil)}
	}

	tpl, err = s.api.UpdateSurveyTemplate(ctx, p, templateID, metadata)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, p)
	s.publish(ctx, events.EventTemplateUpdated, events.TemplateEventData{TemplateID: templateID, UserID: p.UserID})
	return tpl, nil
}

func (s *templateService) SaveQuestions(ctx context.Context, p models.Principal, templateID string, questions models.QuestionMap) (err error) {
	op := s.svcLogger.WithOperation(ctx, "save_questions", p.UserID)
	defer func() { op.LogResult(templateID, "survey_template", err) }()

	if templateID == "" {
		return ErrTemplateIDMissing
	}
	if questions == nil {
		questions = models.QuestionMap{}
	}

	_, err = s.api.UpdateSurveyTemplate(ctx, p, templateID, models.SurveyTemplateUpdate{Questions: &questions})
	s.recordSave(ctx, p, templateID, questions, op.Elapsed(), err)
	if err != nil {
		return err
	}

	s.invalidate(ctx, p)
	s.publish(ctx, events.EventTemplateQuestionsUpdated, events.TemplateEventData{
		TemplateID:    templateID,
		UserID:        p.UserID,
		QuestionCount: len(questions),
		SessionID:     sessionIDFrom(ctx),
	})
	return nil
}

func (s *templateService) Activate(ctx context.Context, p models.Principal, templateID string) (*models.SurveyTemplate, error) {
	return s.lifecycle(ctx, p, templateID, "activate_template", events.EventTemplateActivated, s.api.ActivateSurveyTemplate)
}

func (s *templateService) Deactivate(ctx context.Context, p models.Principal, templateID string) (*models.SurveyTemplate, error) {
	return s.lifecycle(ctx, p, templateID, "deactivate_template", events.EventTemplateDeactivated, s.api.DeactivateSurveyTemplate)
}

func (s *templateService) Duplicate(ctx context.Context, p models.Principal, templateID string) (*models.SurveyTemplate, error) {
	return s.lifecycle(ctx, p, templateID, "duplicate_template", events.EventTemplateDuplicated, s.api.DuplicateSurveyTemplate)
}

type lifecycleCall func(ctx context.Context, p models.Principal, id string) (*models.SurveyTemplate, error)

func (s *templateService) lifecycle(ctx context.Context, p models.Principal, templateID, operation string, eventType events.EventType, call lifecycleCall) (tpl *models.SurveyTemplate, err error) {
	op := s.svcLogger.WithOperation(ctx, operation, p.UserID)
	defer func() { op.LogResult(templateID, "survey_template", err) }()

	if templateID == "" {
		return nil, ErrTemplateIDMissing
	}

	tpl, err = call(ctx, p, templateID)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, p)
	data := events.TemplateEventData{TemplateID: templateID, UserID: p.UserID}
	if eventType == events.EventTemplateDuplicated {
		data.DuplicateID = tpl.ID
	}
	s.publish(ctx, eventType, data)
	return tpl, nil
}

func (s *templateService) Delete(ctx context.Context, p models.Principal, templateID string) (msg *models.Message, err error) {
	op := s.svcLogger.WithOperation(ctx, "delete_template", p.UserID)
	defer func() { op.LogResult(templateID, "survey_template", err) }()

	if templateID == "" {
		return nil, ErrTemplateIDMissing
	}

	msg, err = s.api.DeleteSurveyTemplate(ctx, p, templateID)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, p)
	s.publish(ctx, events.EventTemplateDeleted, events.TemplateEventData{TemplateID: templateID, UserID: p.UserID})
	return msg, nil
}

func (s *templateService) SaveHistory(ctx context.Context, p models.Principal, templateID string, limit, offset int) (audits []*models.QuestionSetSaveAudit, total int64, err error) {
	op := s.svcLogger.WithOperation(ctx, "save_history", p.UserID)
	defer func() { op.LogResult(templateID, "question_set_save_audit", err) }()

	if templateID == "" {
		return nil, 0, ErrTemplateIDMissing
	}

	// reading the template first enforces the caller's access to it
	if _, err = s.Get(ctx, p, templateID); err != nil {
		return nil, 0, err
	}

	return s.audits.List(ctx, repositories.SaveAuditFilters{
		TemplateID: templateID,
		Limit:      limit,
		Offset:     offset,
	})
}

func (s *templateService) LastSave(ctx context.Context, p models.Principal, templateID string) (audit *models.QuestionSetSaveAudit, err error) {
	op := s.svcLogger.WithOperation(ctx, "last_save", p.UserID)
	defer func() { op.LogResult(templateID, "question_set_save_audit", err) }()

	if templateID == "" {
		return nil, ErrTemplateIDMissing
	}
	if _, err = s.Get(ctx, p, templateID); err != nil {
		return nil, err
	}
	return s.audits.LastSuccessful(ctx, templateID)
}

// ===== HELPERS =====

func (s *templateService) recordSave(ctx context.Context, p models.Principal, templateID string, questions models.QuestionMap, duration time.Duration, saveErr error) {
	audit := &models.QuestionSetSaveAudit{
		TemplateID:    templateID,
		SessionID:     sessionIDFrom(ctx),
		UserID:        p.UserID,
		Outcome:       models.SaveSucceeded,
		QuestionCount: len(questions),
		Duration:      duration,
	}

	if payload, err := json.Marshal(questions); err == nil {
		audit.Questions = datatypes.JSON(payload)
	}

	if saveErr != nil {
		audit.Outcome = models.SaveFailed
		detail := saveErr.Error()
		var apiErr *backend.APIError
		if errors.As(saveErr, &apiErr) {
			audit.StatusCode = apiErr.StatusCode
			detail = apiErr.UserMessage()
		}
		audit.ErrorDetail = &detail
	}

	// the audit trail never decides the outcome of a save
	if err := s.audits.Create(context.WithoutCancel(ctx), audit); err != nil {
		s.logger.WarnContext(ctx, "Failed to record question save audit", "template_id", templateID, "error", err)
	}
}

func (s *templateService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	err := s.cache.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.WarnContext(ctx, "Template cache read failed", "key", key, "error", err)
	}
	return false
}

func (s *templateService) cacheSet(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "Template cache write failed", "key", key, "error", err)
	}
}

func (s *templateService) invalidate(ctx context.Context, p models.Principal) {
	if err := s.cache.DeletePattern(ctx, cache.ScopePattern(cacheScope(p))); err != nil {
		s.logger.WarnContext(ctx, "Template cache invalidation failed", "scope", cacheScope(p), "error", err)
	}
}

func (s *templateService) publish(ctx context.Context, eventType events.EventType, data events.TemplateEventData) {
	if err := s.publisher.PublishTemplateEvent(ctx, events.NewTemplateEvent(eventType, data)); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish template event", "event_type", eventType, "template_id", data.TemplateID, "error", err)
	}
}
