package horizon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when Horizon answers 404.
	ErrNotFound = errors.New("horizon: resource not found")

	// ErrUnavailable covers transport failures and an open circuit breaker.
	ErrUnavailable = errors.New("horizon: unavailable")
)

// Error is a non-2xx Horizon response other than 404, decoded from its
// problem+json body when one is present.
type Error struct {
	StatusCode int    `json:"status"`
	Type       string `json:"type"`
	Title      string `json:"title"`
	Detail     string `json:"detail"`
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("horizon: %d %s: %s", e.StatusCode, e.Title, e.Detail)
	}
	if e.Title != "" {
		return fmt.Sprintf("horizon: %d %s", e.StatusCode, e.Title)
	}
	return fmt.Sprintf("horizon: unexpected status %d", e.StatusCode)
}

// Retryable reports whether the same request may succeed later.
func (e *Error) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// IsRetryable reports whether err is a transient upstream failure.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var herr *Error
	if errors.As(err, &herr) {
		return herr.Retryable()
	}
	return false
}

// isClientError reports failures caused by the request rather than by Horizon.
// They must not trip the circuit breaker.
func isClientError(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
		return true
	}
	var herr *Error
	if errors.As(err, &herr) {
		return herr.StatusCode >= 400 && herr.StatusCode < 500 && herr.StatusCode != http.StatusTooManyRequests
	}
	return false
}

// reason labels a retry for metrics.
func reason(err error) string {
	var herr *Error
	if errors.As(err, &herr) {
		if herr.StatusCode == http.StatusTooManyRequests {
			return "rate_limit"
		}
		return "server_error"
	}
	return "network"
}
