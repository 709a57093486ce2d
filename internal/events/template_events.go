package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTemplateCreated          EventType = "template.created"
	EventTemplateUpdated          EventType = "template.updated"
	EventTemplateQuestionsUpdated EventType = "template.questions_updated"
	EventTemplateActivated        EventType = "template.activated"
	EventTemplateDeactivated      EventType = "template.deactivated"
	EventTemplateDeleted          EventType = "template.deleted"
	EventTemplateDuplicated       EventType = "template.duplicated"
)

const (
	eventSource  = "survey-console"
	eventVersion = "1.0"
)

// TemplateEvent tells list views and other consumers that a template changed
// and should be refetched.
type TemplateEvent struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Source    string            `json:"source"`
	Version   string            `json:"version"`
	Data      TemplateEventData `json:"data"`
}

type TemplateEventData struct {
	TemplateID string `json:"template_id"`
	UserID     string `json:"user_id,omitempty"`

	// set for questions_updated
	QuestionCount int    `json:"question_count,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	// set for duplicated
	DuplicateID string `json:"duplicate_id,omitempty"`
}

func NewTemplateEvent(eventType EventType, data TemplateEventData) *TemplateEvent {
	return &TemplateEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}
