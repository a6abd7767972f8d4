package recommender

import (
	"context"
	"errors"
	"fmt"
	"net"

	gobreaker "github.com/sony/gobreaker/v2"
)

// Kind classifies a failed backend call.
type Kind string

const (
	KindUnreachable Kind = "unreachable"
	KindTimeout     Kind = "timeout"
	KindUpstream    Kind = "upstream_error"
	KindMalformed   Kind = "malformed"
)

// Error is returned by every Client method that fails.
type Error struct {
	Kind     Kind
	Endpoint string
	// Status and Body are set for KindUpstream only.
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUpstream:
		return fmt.Sprintf("recommender %s: status %d", e.Endpoint, e.Status)
	default:
		if e.Err != nil {
			return fmt.Sprintf("recommender %s: %s: %v", e.Endpoint, e.Kind, e.Err)
		}
		return fmt.Sprintf("recommender %s: %s", e.Endpoint, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the classification of err if it came from this package.
func KindOf(err error) (Kind, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return "", false
}

// IsStatus reports whether err is an upstream error with the given status.
func IsStatus(err error, status int) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == KindUpstream && re.Status == status
}

// classifyTransport maps an error from http.Client.Do or a body read.
func classifyTransport(endpoint string, err error) *Error {
	kind := KindUnreachable
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Endpoint: endpoint, Err: err}
}

// classifyBreaker maps the breaker's own rejections. A short-circuited
// call is reported as unreachable since no request was attempted.
func classifyBreaker(endpoint string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &Error{Kind: KindUnreachable, Endpoint: endpoint, Err: err}
	}
	return err
}
