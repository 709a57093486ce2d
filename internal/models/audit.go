package models

import (
	"time"

	"gorm.io/datatypes"
)

type SaveOutcome string

const (
	SaveSucceeded SaveOutcome = "succeeded"
	SaveFailed    SaveOutcome = "failed"
)

// QuestionSetSaveAudit records one attempt to write a template's question set.
type QuestionSetSaveAudit struct {
	ID         uint        `json:"id" gorm:"primaryKey"`
	TemplateID string      `json:"template_id" gorm:"not null;size:36;index"`
	SessionID  string      `json:"session_id" gorm:"size:36;index"`
	UserID     string      `json:"user_id" gorm:"size:255;index"`
	Outcome    SaveOutcome `json:"outcome" gorm:"not null;size:20;index"`

	QuestionCount int            `json:"question_count"`
	Questions     datatypes.JSON `json:"questions" gorm:"type:jsonb"` // submitted QuestionMap
	StatusCode    int            `json:"status_code"`
	ErrorDetail   *string        `json:"error_detail" gorm:"type:text"`
	Duration      time.Duration  `json:"duration"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (QuestionSetSaveAudit) TableName() string {
	return "question_set_save_audits"
}
