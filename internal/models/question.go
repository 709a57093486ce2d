package models

type QuestionType string

const (
	ShortText      QuestionType = "short_text"
	LongText       QuestionType = "long_text"
	Rating         QuestionType = "rating"
	MultipleChoice QuestionType = "multiple_choice"
	YesNo          QuestionType = "yes_no"
)

// Legacy type names still found in templates written by the first console release
const (
	legacyText     = "text"
	legacyTextarea = "textarea"
)

const (
	DefaultMinRating = 1
	DefaultMaxRating = 5

	// Bounds of the rating inputs
	RatingLowerBound = 1
	RatingUpperBound = 10
)

// QuestionTypes lists the closed set of question types in display order
var QuestionTypes = []QuestionType{ShortText, LongText, Rating, MultipleChoice, YesNo}

// Label returns the human readable name used by the editor's type selector
func (t QuestionType) Label() string {
	switch t {
	case ShortText:
		return "Short Text"
	case LongText:
		return "Long Text"
	case Rating:
		return "Rating Scale"
	case MultipleChoice:
		return "Multiple Choice"
	case YesNo:
		return "Yes/No"
	default:
		return string(t)
	}
}

func (t QuestionType) IsValid() bool {
	for _, qt := range QuestionTypes {
		if qt == t {
			return true
		}
	}
	return false
}

// ParseQuestionType resolves a stored type name, including legacy aliases.
func ParseQuestionType(s string) (QuestionType, bool) {
	switch s {
	case legacyText:
		return ShortText, true
	case legacyTextarea:
		return LongText, true
	}
	t := QuestionType(s)
	return t, t.IsValid()
}

// Question is one prompt of a survey template.
// Options only matter for multiple_choice and the rating bounds only for rating,
// but neither is cleared when the type changes.
type Question struct {
	ID        string       `json:"id" validate:"required"`
	Type      QuestionType `json:"type" validate:"required,question_type"`
	Text      string       `json:"text"`
	Required  bool         `json:"required"`
	Options   []string     `json:"options"`
	MinRating int          `json:"min_rating" validate:"omitempty,rating_bound"`
	MaxRating int          `json:"max_rating" validate:"omitempty,rating_bound"`
}

// Clone returns a deep copy so callers never share the options slice.
func (q Question) Clone() Question {
	c := q
	if q.Options != nil {
		c.Options = append([]string(nil), q.Options...)
	}
	return c
}

// QuestionMap is the persisted form of a question set: question id -> question fields (without the id).
type QuestionMap map[string]any
