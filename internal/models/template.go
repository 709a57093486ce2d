package models

import (
	"encoding/json"
	"time"
)

// SurveyTemplate mirrors the public template representation served by the feedback API.
type SurveyTemplate struct {
	ID               string         `json:"id"`
	OrganizationID   string         `json:"organization_id"`
	Name             string         `json:"name"`
	Description      *string        `json:"description"`
	Active           bool           `json:"active"`
	Version          int            `json:"version"`
	Questions        QuestionMap    `json:"questions"`
	Triggers         map[string]any `json:"triggers"`
	DeliverySettings map[string]any `json:"delivery_settings"`
	CreatedBy        string         `json:"created_by"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`

	// RawQuestions is the questions object exactly as received, keeping its key order.
	RawQuestions json.RawMessage `json:"-"`
}

func (t *SurveyTemplate) UnmarshalJSON(data []byte) error {
	type alias SurveyTemplate
	aux := struct {
		*alias
		Questions json.RawMessage `json:"questions"`
	}{alias: (*alias)(t)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	t.Questions = nil
	t.RawQuestions = nil
	if len(aux.Questions) == 0 || string(aux.Questions) == "null" {
		return nil
	}
	// a questions value that is not an object is treated as an empty set
	if err := json.Unmarshal(aux.Questions, &t.Questions); err != nil {
		t.Questions = QuestionMap{}
		return nil
	}
	t.RawQuestions = aux.Questions
	return nil
}

func (t SurveyTemplate) MarshalJSON() ([]byte, error) {
	type alias SurveyTemplate
	aux := struct {
		alias
		Questions any `json:"questions"`
	}{alias: alias(t), Questions: t.Questions}

	if len(t.RawQuestions) > 0 {
		aux.Questions = t.RawQuestions
	}
	return json.Marshal(aux)
}

// QuestionCount is the number of questions stored on the template
func (t *SurveyTemplate) QuestionCount() int {
	return len(t.Questions)
}

type SurveyTemplateList struct {
	Data  []SurveyTemplate `json:"data"`
	Count int              `json:"count"`
}

// SurveyTemplateCreate is the body of a create request. The API overrides
// OrganizationID and CreatedBy with the caller's own.
type SurveyTemplateCreate struct {
	Name             string         `json:"name"`
	Description      *string        `json:"description"`
	Active           bool           `json:"active"`
	Version          int            `json:"version"`
	OrganizationID   string         `json:"organization_id"`
	Questions        QuestionMap    `json:"questions"`
	Triggers         map[string]any `json:"triggers"`
	DeliverySettings map[string]any `json:"delivery_settings"`
	CreatedBy        string         `json:"created_by"`
}

// SurveyTemplateUpdate is a partial update: nil fields are omitted from the payload
// and left untouched by the API.
type SurveyTemplateUpdate struct {
	Name             *string        `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description      *string        `json:"description,omitempty"`
	Questions        *QuestionMap   `json:"questions,omitempty"`
	Triggers         map[string]any `json:"triggers,omitempty"`
	DeliverySettings map[string]any `json:"delivery_settings,omitempty"`
	Active           *bool          `json:"active,omitempty"`
	Version          *int           `json:"version,omitempty"`
}

// Message is the generic acknowledgement body returned by delete endpoints
type Message struct {
	Message string `json:"message"`
}
