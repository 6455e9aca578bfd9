package transcribe

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrEmptyResult means the provider answered but recognized no speech.
// Non-fatal: callers skip the chunk.
var ErrEmptyResult = errors.New("transcribe: provider returned no text")

// AuthError means the provider rejected our credentials.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("transcribe: auth rejected (status %d): %s", e.Status, e.Body)
}

// QuotaError means the provider's rate or usage limit was hit. The
// recording continues without transcription; chunks are not retried.
type QuotaError struct {
	Status int
	Body   string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("transcribe: quota exceeded (status %d): %s", e.Status, e.Body)
}

// ServiceError means the provider returned a 5xx.
type ServiceError struct {
	Status int
	Body   string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("transcribe: provider error (status %d): %s", e.Status, e.Body)
}

// classifyStatus maps a non-200 provider response onto the error taxonomy.
func classifyStatus(status int, body string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{Status: status, Body: body}
	case status == http.StatusTooManyRequests:
		return &QuotaError{Status: status, Body: body}
	case status >= 500:
		return &ServiceError{Status: status, Body: body}
	default:
		return fmt.Errorf("transcribe: unexpected status %d: %s", status, body)
	}
}

// IsQuota reports whether err is a quota error.
func IsQuota(err error) bool {
	var qe *QuotaError
	return errors.As(err, &qe)
}

// IsAuth reports whether err is an auth error.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
