package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/patient-feedback/survey-console/internal/models"
)

// Validator combines struct tag validation with the advisory question checks.
type Validator struct {
	structValidator   *validator.Validate
	questionValidator *QuestionValidator
}

func New() *Validator {
	structValidator := validator.New()

	registerCustomValidators(structValidator)

	return &Validator{
		structValidator:   structValidator,
		questionValidator: NewQuestionValidator(structValidator),
	}
}

// ValidateStruct validates struct tags and converts failures to ValidationErrors.
func (v *Validator) ValidateStruct(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		if errs := ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

func (v *Validator) Question() *QuestionValidator {
	return v.questionValidator
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", validateQuestionType)
	validate.RegisterValidation("rating_bound", validateRatingBound)
	validate.RegisterValidation("question_field", validateQuestionField)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// question_type accepts canonical names only; legacy aliases are a decode concern
func validateQuestionType(fl validator.FieldLevel) bool {
	return models.QuestionType(fl.Field().String()).IsValid()
}

func validateRatingBound(fl validator.FieldLevel) bool {
	n := fl.Field().Int()
	return n >= models.RatingLowerBound && n <= models.RatingUpperBound
}

var questionFields = map[string]bool{
	"type":       true,
	"text":       true,
	"required":   true,
	"options":    true,
	"min_rating": true,
	"max_rating": true,
}

func validateQuestionField(fl validator.FieldLevel) bool {
	return questionFields[fl.Field().String()]
}
