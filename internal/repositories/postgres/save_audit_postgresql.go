package postgres

import (
	"context"
	"errors"

	"github.com/patient-feedback/survey-console/internal/models"
	"github.com/patient-feedback/survey-console/internal/repositories"
	"gorm.io/gorm"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

type SaveAuditPostgreSQL struct {
	db *gorm.DB
}

func NewSaveAuditPostgreSQL(db *gorm.DB) repositories.SaveAuditRepository {
	return &SaveAuditPostgreSQL{db: db}
}

// Migrate creates or updates the audit table.
func Migrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(&models.QuestionSetSaveAudit{})
}

func (s SaveAuditPostgreSQL) Create(ctx context.Context, audit *models.QuestionSetSaveAudit) error {
	return s.db.WithContext(ctx).Create(audit).Error
}

func (s SaveAuditPostgreSQL) List(ctx context.Context, filters repositories.SaveAuditFilters) ([]*models.QuestionSetSaveAudit, int64, error) {
	var audits []*models.QuestionSetSaveAudit
	var total int64

	query := s.applyFilters(s.db.WithContext(ctx).Model(&models.QuestionSetSaveAudit{}), filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	if err := query.Order("created_at DESC").Limit(limit).Offset(filters.Offset).Find(&audits).Error; err != nil {
		return nil, 0, err
	}

	return audits, total, nil
}

func (s SaveAuditPostgreSQL) LastSuccessful(ctx context.Context, templateID string) (*models.QuestionSetSaveAudit, error) {
	var audit models.QuestionSetSaveAudit
	err := s.db.WithContext(ctx).
		Where("template_id = ? AND outcome = ?", templateID, models.SaveSucceeded).
		Order("created_at DESC").
		First(&audit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &audit, nil
}

func (s SaveAuditPostgreSQL) applyFilters(query *gorm.DB, filters repositories.SaveAuditFilters) *gorm.DB {
	if filters.TemplateID != "" {
		query = query.Where("template_id = ?", filters.TemplateID)
	}
	if filters.UserID != "" {
		query = query.Where("user_id = ?", filters.UserID)
	}
	if filters.Outcome != nil {
		query = query.Where("outcome = ?", *filters.Outcome)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}
