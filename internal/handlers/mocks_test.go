package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/patient-feedback/survey-console/internal/backend"
	"github.com/patient-feedback/survey-console/internal/events"
	"github.com/patient-feedback/survey-console/internal/models"
	"github.com/patient-feedback/survey-console/internal/services"
	"github.com/stretchr/testify/mock"
)

type MockTemplateService struct {
	mock.Mock
}

func (m *MockTemplateService) List(ctx context.Context, p models.Principal, page backend.Page) (*models.SurveyTemplateList, error) {
	args := m.Called(ctx, p, page)
	list, _ := args.Get(0).(*models.SurveyTemplateList)
	return list, args.Error(1)
}

func (m *MockTemplateService) ListActive(ctx context.Context, p models.Principal, page backend.Page) (*models.SurveyTemplateList, error) {
	args := m.Called(ctx, p, page)
	list, _ := args.Get(0).(*models.SurveyTemplateList)
	return list, args.Error(1)
}

func (m *MockTemplateService) Get(ctx context.Context, p models.Principal, templateID string) (*models.SurveyTemplate, error) {
	args := m.Called(ctx, p, templateID)
	tpl, _ := args.Get(0).(*models.SurveyTemplate)
	return tpl, args.Error(1)
}

func (m *MockTemplateService) SaveQuestions(ctx context.Context, p models.Principal, templateID string, questions models.QuestionMap) error {
	return m.Called(ctx, p, templateID, questions).Error(0)
}

func (m *MockTemplateService) Activate(ctx context.Context, p models.Principal, templateID string) (*models.SurveyTemplate, error) {
	args := m.Called(ctx, p, templateID)
	tpl, _ := args.Get(0).(*models.SurveyTemplate)
	return tpl, args.Error(1)
}

func (m *MockTemplateService) Deactivate(ctx context.Context, p models.Principal, templateID string) (*models.SurveyTemplate, error) {
	args := m.Called(ctx, p, templateID)
	tpl, _ := args.Get(0).(*models.SurveyTemplate)
	return tpl, args.Error(1)
}

func (m *MockTemplateService) Delete(ctx context.Context, p models.Principal, templateID string) (*models.Message, error) {
	args := m.Called(ctx, p, templateID)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *MockTemplateService) Duplicate(ctx context.Context, p models.Principal, templateID string) (*models.SurveyTemplate, error) {
	args := m.Called(ctx, p, templateID)
	tpl, _ := args.Get(0).(*models.SurveyTemplate)
	return tpl, args.Error(1)
}

func (m *MockTemplateService) SaveHistory(ctx context.Context, p models.Principal, templateID string, limit, offset int) ([]*models.QuestionSetSaveAudit, int64, error) {
	args := m.Called(ctx, p, templateID, limit, offset)
	audits, _ := args.Get(0).([]*models.QuestionSetSaveAudit)
	return audits, args.Get(1).(int64), args.Error(2)
}

func (m *MockTemplateService) Create(ctx context.Context, p models.Principal, input services.TemplateInput) (*models.SurveyTemplate, error) {
	args := m.Called(ctx, p, input)
	tpl, _ := args.Get(0).(*models.SurveyTemplate)
	return tpl, args.Error(1)
}

func (m *MockTemplateService) UpdateMetadata(ctx context.Context, p models.Principal, templateID string, update models.SurveyTemplateUpdate) (*models.SurveyTemplate, error) {
	args := m.Called(ctx, p, templateID, update)
	tpl, _ := args.Get(0).(*models.SurveyTemplate)
	return tpl, args.Error(1)
}

func (m *MockTemplateService) LastSave(ctx context.Context, p models.Principal, templateID string) (*models.QuestionSetSaveAudit, error) {
	args := m.Called(ctx, p, templateID)
	audit, _ := args.Get(0).(*models.QuestionSetSaveAudit)
	return audit, args.Error(1)
}

type MockEditorService struct {
	mock.Mock
}

func snapshotResult(args mock.Arguments) (*services.EditorSnapshot, error) {
	snap, _ := args.Get(0).(*services.EditorSnapshot)
	return snap, args.Error(1)
}

func (m *MockEditorService) Open(ctx context.Context, p models.Principal, templateID string) (*services.EditorSnapshot, error) {
	return snapshotResult(m.Called(ctx, p, templateID))
}

func (m *MockEditorService) Snapshot(ctx context.Context, p models.Principal, sessionID string) (*services.EditorSnapshot, error) {
	return snapshotResult(m.Called(ctx, p, sessionID))
}

func (m *MockEditorService) AddQuestion(ctx context.Context, p models.Principal, sessionID string) (*services.EditorSnapshot, error) {
	return snapshotResult(m.Called(ctx, p, sessionID))
}

func (m *MockEditorService) UpdateQuestion(ctx context.Context, p models.Principal, sessionID, questionID, field string, value json.RawMessage) (*services.EditorSnapshot, error) {
	return snapshotResult(m.Called(ctx, p, sessionID, questionID, field, value))
}

func (m *MockEditorService) RemoveQuestion(ctx context.Context, p models.Principal, sessionID, questionID string) (*services.EditorSnapshot, error) {
	return snapshotResult(m.Called(ctx, p, sessionID, questionID))
}

func (m *MockEditorService) AddOption(ctx context.Context, p models.Principal, sessionID, questionID string) (*services.EditorSnapshot, error) {
	return snapshotResult(m.Called(ctx, p, sessionID, questionID))
}

func (m *MockEditorService) UpdateOption(ctx context.Context, p models.Principal, sessionID, questionID string, index int, value string) (*services.EditorSnapshot, error) {
	return snapshotResult(m.Called(ctx, p, sessionID, questionID, index, value))
}

func (m *MockEditorService) RemoveOption(ctx context.Context, p models.Principal, sessionID, questionID string, index int) (*services.EditorSnapshot, error) {
	return snapshotResult(m.Called(ctx, p, sessionID, questionID, index))
}

func (m *MockEditorService) Save(ctx context.Context, p models.Principal, sessionID string) error {
	return m.Called(ctx, p, sessionID).Error(0)
}

func (m *MockEditorService) Close(ctx context.Context, p models.Principal, sessionID string) error {
	return m.Called(ctx, p, sessionID).Error(0)
}

func (m *MockEditorService) CloseIdle(maxIdle time.Duration) int {
	return m.Called(maxIdle).Int(0)
}

func (m *MockEditorService) HandleTemplateEvent(ctx context.Context, event *events.TemplateEvent) error {
	return m.Called(ctx, event).Error(0)
}

type MockExportService struct {
	mock.Mock
}

func (m *MockExportService) ExportQuestions(ctx context.Context, p models.Principal, sessionID string) (*services.QuestionExport, error) {
	args := m.Called(ctx, p, sessionID)
	export, _ := args.Get(0).(*services.QuestionExport)
	return export, args.Error(1)
}
