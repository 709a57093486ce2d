package editor

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/patient-feedback/survey-console/internal/models"
)

// FieldUpdate replaces exactly one field of a question.
type FieldUpdate interface {
	Field() string
	apply(q *models.Question)
}

type SetType struct{ Type models.QuestionType }
type SetText struct{ Text string }
type SetRequired struct{ Required bool }
type SetOptions struct{ Options []string }
type SetMinRating struct{ MinRating int }
type SetMaxRating struct{ MaxRating int }

func (SetType) Field() string      { return "type" }
func (SetText) Field() string      { return "text" }
func (SetRequired) Field() string  { return "required" }
func (SetOptions) Field() string   { return "options" }
func (SetMinRating) Field() string { return "min_rating" }
func (SetMaxRating) Field() string { return "max_rating" }

func (u SetType) apply(q *models.Question)     { q.Type = u.Type }
func (u SetText) apply(q *models.Question)     { q.Text = u.Text }
func (u SetRequired) apply(q *models.Question) { q.Required = u.Required }
func (u SetOptions) apply(q *models.Question) {
	q.Options = append([]string{}, u.Options...)
}
func (u SetMinRating) apply(q *models.Question) { q.MinRating = u.MinRating }
func (u SetMaxRating) apply(q *models.Question) { q.MaxRating = u.MaxRating }

// ParseFieldUpdate turns a raw (field, value) pair from an input control into
// a typed update. Rating values are clamped into the range the inputs allow.
func ParseFieldUpdate(field string, raw json.RawMessage) (FieldUpdate, error) {
	switch field {
	case "type":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: type must be a string", ErrInvalidFieldValue)
		}
		t, ok := models.ParseQuestionType(s)
		if !ok {
			return nil, fmt.Errorf("%w: unknown question type %q", ErrInvalidFieldValue, s)
		}
		return SetType{Type: t}, nil
	case "text":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: text must be a string", ErrInvalidFieldValue)
		}
		return SetText{Text: s}, nil
	case "required":
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("%w: required must be a boolean", ErrInvalidFieldValue)
		}
		return SetRequired{Required: b}, nil
	case "options":
		var opts []string
		if err := json.Unmarshal(raw, &opts); err != nil {
			return nil, fmt.Errorf("%w: options must be a list of strings", ErrInvalidFieldValue)
		}
		return SetOptions{Options: opts}, nil
	case "min_rating":
		n, err := parseRating(raw)
		if err != nil {
			return nil, err
		}
		return SetMinRating{MinRating: n}, nil
	case "max_rating":
		n, err := parseRating(raw)
		if err != nil {
			return nil, err
		}
		return SetMaxRating{MaxRating: n}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
}

func parseRating(raw json.RawMessage) (int, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("%w: rating must be a number", ErrInvalidFieldValue)
	}
	// clamp before converting so huge values cannot overflow int
	f = math.Max(models.RatingLowerBound, math.Min(models.RatingUpperBound, f))
	return ClampRating(int(f)), nil
}

// ClampRating bounds a rating endpoint to the editable range.
func ClampRating(n int) int {
	if n < models.RatingLowerBound {
		return models.RatingLowerBound
	}
	if n > models.RatingUpperBound {
		return models.RatingUpperBound
	}
	return n
}
