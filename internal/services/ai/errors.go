package ai

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrGenerationFailed     = errors.New("suggestion generation failed")
	ErrNotConfigured        = errors.New("AI webhook URL is not configured")
	ErrEmptyResponse        = errors.New("AI webhook returned an empty body")
	ErrUnrecognizedResponse = errors.New("AI webhook response contains no reply")
)

// StatusError is returned when the webhook answers with a 4xx or 5xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("AI webhook returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("AI webhook returned HTTP %d: %s", e.Code, e.Body)
}

// Retryable reports whether another attempt may succeed.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusRequestTimeout || e.Code == http.StatusTooManyRequests
}
