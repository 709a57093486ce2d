package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/patient-feedback/survey-console/internal/models"
)

// Issue codes reported by the completeness check
const (
	IssueEmptyText      = "empty_text"
	IssueNoOptions      = "no_options"
	IssueEmptyOption    = "empty_option"
	IssueInvertedRating = "inverted_rating"
	IssueInvalidField   = "invalid_field"
)

// Issue is a single advisory finding about one question.
type Issue struct {
	QuestionID string `json:"question_id"`
	Field      string `json:"field"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// CompletenessReport lists questions that would render poorly to patients.
// It never blocks a save.
type CompletenessReport struct {
	Complete bool    `json:"complete"`
	Issues   []Issue `json:"issues"`
}

// QuestionValidator runs the advisory checks over an editor's question list.
type QuestionValidator struct {
	structValidator *validator.Validate
}

// NewQuestionValidator needs a validator with the custom question rules registered.
func NewQuestionValidator(structValidator *validator.Validate) *QuestionValidator {
	return &QuestionValidator{structValidator: structValidator}
}

// Check inspects every question in order. Only fields that matter for the
// question's current type are checked.
func (v *QuestionValidator) Check(questions []models.Question) CompletenessReport {
	report := CompletenessReport{Issues: []Issue{}}

	for _, q := range questions {
		report.Issues = append(report.Issues, v.checkQuestion(q)...)
	}

	report.Complete = len(report.Issues) == 0
	return report
}

func (v *QuestionValidator) checkQuestion(q models.Question) []Issue {
	issues := v.checkFields(q)

	if strings.TrimSpace(q.Text) == "" {
		issues = append(issues, Issue{
			QuestionID: q.ID,
			Field:      "text",
			Code:       IssueEmptyText,
			Message:    "question text is empty",
		})
	}

	switch q.Type {
	case models.MultipleChoice:
		if len(q.Options) == 0 {
			issues = append(issues, Issue{
				QuestionID: q.ID,
				Field:      "options",
				Code:       IssueNoOptions,
				Message:    "multiple choice question has no options",
			})
		}
		for i, opt := range q.Options {
			if strings.TrimSpace(opt) == "" {
				issues = append(issues, Issue{
					QuestionID: q.ID,
					Field:      "options",
					Code:       IssueEmptyOption,
					Message:    fmt.Sprintf("option %d is empty", i+1),
				})
			}
		}
	case models.Rating:
		if q.MinRating > q.MaxRating {
			issues = append(issues, Issue{
				QuestionID: q.ID,
				Field:      "min_rating",
				Code:       IssueInvertedRating,
				Message:    fmt.Sprintf("minimum rating %d is greater than maximum %d", q.MinRating, q.MaxRating),
			})
		}
	}

	return issues
}

// checkFields reports struct tag violations. Rating bounds are skipped unless
// the question is a rating.
func (v *QuestionValidator) checkFields(q models.Question) []Issue {
	var issues []Issue
	for _, fe := range ToValidationErrors(v.structValidator.Struct(q)) {
		if (fe.Field == "min_rating" || fe.Field == "max_rating") && q.Type != models.Rating {
			continue
		}
		issues = append(issues, Issue{
			QuestionID: q.ID,
			Field:      fe.Field,
			Code:       IssueInvalidField,
			Message:    fmt.Sprintf("%s %s", fe.Field, fe.Message),
		})
	}
	return issues
}
