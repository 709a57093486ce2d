package repositories

import (
	"context"
	"time"

	"github.com/patient-feedback/survey-console/internal/models"
)

type SaveAuditFilters struct {
	TemplateID string              `json:"template_id"`
	UserID     string              `json:"user_id"`
	Outcome    *models.SaveOutcome `json:"outcome"`
	DateFrom   *time.Time          `json:"date_from"`
	DateTo     *time.Time          `json:"date_to"`
	Limit      int                 `json:"limit"`
	Offset     int                 `json:"offset"`
}

// SaveAuditRepository stores one row per question set save attempt.
type SaveAuditRepository interface {
	Create(ctx context.Context, audit *models.QuestionSetSaveAudit) error
	List(ctx context.Context, filters SaveAuditFilters) ([]*models.QuestionSetSaveAudit, int64, error)
	// LastSuccessful returns nil, nil when the template was never saved from the console.
	LastSuccessful(ctx context.Context, templateID string) (*models.QuestionSetSaveAudit, error)
}

type noopSaveAuditRepository struct{}

// NewNoopSaveAuditRepository is used when auditing is switched off.
func NewNoopSaveAuditRepository() SaveAuditRepository {
	return noopSaveAuditRepository{}
}

func (noopSaveAuditRepository) Create(ctx context.Context, audit *models.QuestionSetSaveAudit) error {
	return nil
}

func (noopSaveAuditRepository) List(ctx context.Context, filters SaveAuditFilters) ([]*models.QuestionSetSaveAudit, int64, error) {
	return []*models.QuestionSetSaveAudit{}, 0, nil
}

func (noopSaveAuditRepository) LastSuccessful(ctx context.Context, templateID string) (*models.QuestionSetSaveAudit, error) {
	return nil, nil
}
