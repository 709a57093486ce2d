// Package questionset converts between the editor's ordered question list and
// the keyed map persisted on a survey template.
package questionset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/patient-feedback/survey-console/internal/models"
)

var (
	ErrDuplicateQuestionID = errors.New("duplicate question id")
	ErrNotAnObject         = errors.New("questions document is not a JSON object")
)

// Field names of a persisted question value
const (
	fieldType      = "type"
	fieldText      = "text"
	fieldRequired  = "required"
	fieldOptions   = "options"
	fieldMinRating = "min_rating"
	fieldMaxRating = "max_rating"
)

// Decode builds the question list from a persisted map. Keys are visited in
// ascending order. Missing or malformed fields fall back to their defaults.
func Decode(m models.QuestionMap) []models.Question {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	questions := make([]models.Question, 0, len(keys))
	for _, k := range keys {
		questions = append(questions, decodeQuestion(k, m[k]))
	}
	return questions
}

// DecodeJSON decodes a raw questions object, keeping the order in which the
// keys appear in the document.
func DecodeJSON(data []byte) ([]models.Question, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []models.Question{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read questions document: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, ErrNotAnObject
	}

	questions := make([]models.Question, 0)
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read question id: %w", err)
		}
		id, _ := tok.(string)

		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("failed to read question %q: %w", id, err)
		}

		q := decodeQuestion(id, value)
		// a repeated key replaces the earlier value in place, as an object decode would
		if i, seen := index[id]; seen {
			questions[i] = q
			continue
		}
		index[id] = len(questions)
		questions = append(questions, q)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to close questions document: %w", err)
	}
	return questions, nil
}

// Encode flattens the question list into the persisted map, one entry per
// question keyed by its id. An empty list yields an empty, non-nil map.
// Questions with empty text or options are kept.
func Encode(questions []models.Question) (models.QuestionMap, error) {
	out := make(models.QuestionMap, len(questions))
	for _, q := range questions {
		if _, exists := out[q.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateQuestionID, q.ID)
		}
		out[q.ID] = encodeQuestion(q)
	}
	return out, nil
}

// encodeQuestion omits type-specific fields that were never set, as on a
// freshly added question.
func encodeQuestion(q models.Question) map[string]any {
	value := map[string]any{
		fieldType:     string(q.Type),
		fieldText:     q.Text,
		fieldRequired: q.Required,
	}
	if q.Options != nil {
		value[fieldOptions] = append([]string{}, q.Options...)
	}
	if q.MinRating != 0 {
		value[fieldMinRating] = q.MinRating
	}
	if q.MaxRating != 0 {
		value[fieldMaxRating] = q.MaxRating
	}
	return value
}

func decodeQuestion(id string, value any) models.Question {
	q := models.Question{
		ID:        id,
		Type:      models.ShortText,
		Options:   []string{},
		MinRating: models.DefaultMinRating,
		MaxRating: models.DefaultMaxRating,
	}

	fields, ok := value.(map[string]any)
	if !ok {
		return q
	}

	if s, ok := fields[fieldType].(string); ok {
		if t, valid := models.ParseQuestionType(s); valid {
			q.Type = t
		}
	}
	if s, ok := fields[fieldText].(string); ok {
		q.Text = s
	}
	if b, ok := fields[fieldRequired].(bool); ok {
		q.Required = b
	}
	q.Options = decodeOptions(fields[fieldOptions])
	if n, ok := toInt(fields[fieldMinRating]); ok && n != 0 {
		q.MinRating = n
	}
	if n, ok := toInt(fields[fieldMaxRating]); ok && n != 0 {
		q.MaxRating = n
	}

	return q
}

func decodeOptions(v any) []string {
	switch opts := v.(type) {
	case []string:
		return append([]string{}, opts...)
	case []any:
		out := make([]string, 0, len(opts))
		for _, o := range opts {
			s, ok := o.(string)
			if !ok {
				continue
			}
			out = append(out, s)
		}
		return out
	default:
		return []string{}
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int(f), true
		}
		return int(i), true
	default:
		return 0, false
	}
}
