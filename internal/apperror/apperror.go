// Package apperror defines the gateway's error taxonomy.
//
// Services return *AppError values wrapping one of the sentinels below.
// HTTP handlers map the sentinel to a status code with errors.Is, so the
// service layer never needs to know about HTTP.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation error")
	ErrConflict            = errors.New("conflict")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrNoDataAvailable     = errors.New("no data available")
	ErrMalformed           = errors.New("malformed payload")
)

type AppError struct {
	Err     error  // sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error

	// Violations lists every broken rule for validation errors.
	Violations []string
	// Kind carries the upstream failure classification
	// ("unreachable", "timeout", "upstream_error") for diagnostics.
	Kind string
	// Cause is the underlying error, kept for logging only.
	Cause error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Message:    message,
		Field:      field,
		Violations: []string{message},
	}
}

// Invalid builds a validation error carrying every violation at once.
func Invalid(violations ...string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Message:    strings.Join(violations, "; "),
		Violations: violations,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Unauthorized is returned for credential mismatches. The message is the
// same whether the account or the password was wrong.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// UpstreamUnavailable wraps a transport failure talking to the
// recommendation backend. kind is the client's classification.
func UpstreamUnavailable(kind string, cause error) *AppError {
	return &AppError{
		Err:     ErrUpstreamUnavailable,
		Message: "recommendation service is unavailable",
		Kind:    kind,
		Cause:   cause,
	}
}

func NoDataAvailable(message string) *AppError {
	return &AppError{
		Err:     ErrNoDataAvailable,
		Message: message,
	}
}

// Malformed is surfaced to callers as a generic failure; the cause is
// only logged.
func Malformed(cause error) *AppError {
	return &AppError{
		Err:     ErrMalformed,
		Message: "received a malformed response",
		Cause:   cause,
	}
}
