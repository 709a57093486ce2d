package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// DefaultUpdateMessage is shown when a failed question save carries no detail.
const DefaultUpdateMessage = "Failed to update questions."

// ErrTransport wraps failures that produced no response at all.
var ErrTransport = errors.New("backend unreachable")

// APIError is a non-2xx response from the survey templates API.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
}

// UserMessage is the text surfaced to the user: the backend detail, or the
// generic update failure message.
func (e *APIError) UserMessage() string {
	if e.Detail != "" {
		return e.Detail
	}
	return DefaultUpdateMessage
}

func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsNotFound reports whether err is an APIError with status 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.NotFound()
}

// UserMessage extracts the user facing message from any error returned by the client.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return DefaultUpdateMessage
}

// newAPIError reads {"detail": "..."} from the body. Validation errors carry a
// list in detail; only a plain string is kept.
func newAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return apiErr
	}
	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err == nil {
		apiErr.Detail = detail
	}
	return apiErr
}
