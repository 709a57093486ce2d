package services

import (
	"errors"
	"net/http"

	"github.com/patient-feedback/survey-console/internal/backend"
	"github.com/patient-feedback/survey-console/internal/editor"
	apperrors "github.com/patient-feedback/survey-console/internal/errors"
	"github.com/patient-feedback/survey-console/internal/questionset"
)

// ===== COMMON SERVICE ERRORS =====

var (
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")
	ErrConflict         = errors.New("resource conflict")

	// Editor session errors
	ErrSessionNotFound   = errors.New("editor session not found")
	ErrSessionNotOwned   = errors.New("editor session belongs to another user")
	ErrTemplateIDMissing = errors.New("template id is required")
)

type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// ===== ERROR CLASSIFIERS =====

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		backendStatus(err) == http.StatusNotFound
}

func IsUnauthorized(err error) bool {
	status := backendStatus(err)
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrSessionNotOwned) ||
		status == http.StatusUnauthorized ||
		status == http.StatusForbidden
}

func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrTemplateIDMissing) ||
		errors.Is(err, editor.ErrUnknownField) ||
		errors.Is(err, editor.ErrInvalidFieldValue) ||
		errors.Is(err, questionset.ErrDuplicateQuestionID) {
		return true
	}
	var ve apperrors.ValidationErrors
	if errors.As(err, &ve) {
		return true
	}
	var single *apperrors.ValidationError
	return errors.As(err, &single)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, editor.ErrSaveInProgress) ||
		errors.Is(err, editor.ErrEditorClosed) ||
		backendStatus(err) == http.StatusConflict
}

// IsBackend reports whether err came back from the templates API as a non-2xx response.
func IsBackend(err error) bool {
	return backendStatus(err) != 0
}

func backendStatus(err error) int {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
