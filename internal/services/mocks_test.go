package services

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"time"

	"github.com/patient-feedback/survey-console/internal/backend"
	"github.com/patient-feedback/survey-console/internal/cache"
	"github.com/patient-feedback/survey-console/internal/models"
	"github.com/patient-feedback/survey-console/internal/repositories"
	"github.com/stretchr/testify/mock"
)

// MockTemplateAPI is a mock implementation of backend.TemplateAPI
type MockTemplateAPI struct {
	mock.Mock
}

func templateResult(args mock.Arguments) (*models.SurveyTemplate, error) {
	if v := args.Get(0); v != nil {
		return v.(*models.SurveyTemplate), args.Error(1)
	}
	return nil, args.Error(1)
}

func listResult(args mock.Arguments) (*models.SurveyTemplateList, error) {
	if v := args.Get(0); v != nil {
		return v.(*models.SurveyTemplateList), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTemplateAPI) ListSurveyTemplates(ctx context.Context, p models.Principal, page backend.Page) (*models.SurveyTemplateList, error) {
	return listResult(m.Called(ctx, p, page))
}

func (m *MockTemplateAPI) ListActiveSurveyTemplates(ctx context.Context, p models.Principal, page backend.Page) (*models.SurveyTemplateList, error) {
	return listResult(m.Called(ctx, p, page))
}

func (m *MockTemplateAPI) ReadSurveyTemplate(ctx context.Context, p models.Principal, id string) (*models.SurveyTemplate, error) {
	return templateResult(m.Called(ctx, p, id))
}

func (m *MockTemplateAPI) CreateSurveyTemplate(ctx context.Context, p models.Principal, create models.SurveyTemplateCreate) (*models.SurveyTemplate, error) {
	return templateResult(m.Called(ctx, p, create))
}

func (m *MockTemplateAPI) UpdateSurveyTemplate(ctx context.Context, p models.Principal, id string, update models.SurveyTemplateUpdate) (*models.SurveyTemplate, error) {
	return templateResult(m.Called(ctx, p, id, update))
}

func (m *MockTemplateAPI) ActivateSurveyTemplate(ctx context.Context, p models.Principal, id string) (*models.SurveyTemplate, error) {
	return templateResult(m.Called(ctx, p, id))
}

func (m *MockTemplateAPI) DeactivateSurveyTemplate(ctx context.Context, p models.Principal, id string) (*models.SurveyTemplate, error) {
	return templateResult(m.Called(ctx, p, id))
}

func (m *MockTemplateAPI) DeleteSurveyTemplate(ctx context.Context, p models.Principal, id string) (*models.Message, error) {
	args := m.Called(ctx, p, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTemplateAPI) DuplicateSurveyTemplate(ctx context.Context, p models.Principal, id string) (*models.SurveyTemplate, error) {
	return templateResult(m.Called(ctx, p, id))
}

// MockSaveAuditRepository is a mock implementation of repositories.SaveAuditRepository
type MockSaveAuditRepository struct {
	mock.Mock
}

func (m *MockSaveAuditRepository) Create(ctx context.Context, audit *models.QuestionSetSaveAudit) error {
	return m.Called(ctx, audit).Error(0)
}

func (m *MockSaveAuditRepository) List(ctx context.Context, filters repositories.SaveAuditFilters) ([]*models.QuestionSetSaveAudit, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.QuestionSetSaveAudit), args.Get(1).(int64), args.Error(2)
}

func (m *MockSaveAuditRepository) LastSuccessful(ctx context.Context, templateID string) (*models.QuestionSetSaveAudit, error) {
	args := m.Called(ctx, templateID)
	if v := args.Get(0); v != nil {
		return v.(*models.QuestionSetSaveAudit), args.Error(1)
	}
	return nil, args.Error(1)
}

// memoryCache is an in-memory cache.CacheService that round-trips values through JSON like redis does.
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	b, ok := c.data[key]
	c.mu.Unlock()
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(b, dest)
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memoryCache) DeletePattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(c.data, k)
		}
	}
	return nil
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}
