package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind classifies a provider failure for the reliability controller.
type Kind int

const (
	// KindTransient marks retryable faults: rate limits, server errors,
	// connection resets.
	KindTransient Kind = iota

	// KindTimeout marks calls that exceeded their deadline. Retried like
	// a transient fault.
	KindTimeout

	// KindFatal marks failures where the request itself is invalid.
	// Never retried on the same provider.
	KindFatal
)

// String returns the kind name used in logs and audit records.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindTimeout:
		return "timeout"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the normalized provider failure. Adapters translate backend
// error payloads into this shape; the raw payload never leaves the adapter.
type Error struct {
	// Kind drives retry/fallback decisions.
	Kind Kind

	// Provider identifies the backend that failed.
	Provider string

	// Status is the HTTP-like status code, when the backend reported one.
	Status int

	// RetryAfter, when non-zero, overrides the computed backoff for the
	// next retry attempt (typically from a 429 Retry-After hint).
	RetryAfter time.Duration

	// Message is a safe, normalized description.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider %s: %s (%d): %s", e.Provider, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("provider %s: %s: %s", e.Provider, e.Kind, e.Message)
}

// NewTransient builds a retryable provider error.
func NewTransient(providerName string, status int, msg string) *Error {
	return &Error{Kind: KindTransient, Provider: providerName, Status: status, Message: msg}
}

// NewRateLimited builds a retryable error carrying a retry-after hint.
func NewRateLimited(providerName string, retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindTransient,
		Provider:   providerName,
		Status:     429,
		RetryAfter: retryAfter,
		Message:    "rate limited",
	}
}

// NewTimeout builds a timeout error.
func NewTimeout(providerName string, timeout time.Duration) *Error {
	return &Error{
		Kind:     KindTimeout,
		Provider: providerName,
		Message:  fmt.Sprintf("call exceeded %s", timeout),
	}
}

// NewFatal builds a non-retryable provider error.
func NewFatal(providerName string, status int, msg string) *Error {
	return &Error{Kind: KindFatal, Provider: providerName, Status: status, Message: msg}
}

// KindOf classifies an arbitrary error returned by a Complete call.
// Context deadline errors count as timeouts; unclassified errors are treated
// as transient network faults.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindTransient
}

// RetryAfterHint extracts the retry-after override from an error, if any.
func RetryAfterHint(err error) (time.Duration, bool) {
	var pe *Error
	if errors.As(err, &pe) && pe.RetryAfter > 0 {
		return pe.RetryAfter, true
	}
	return 0, false
}

// IsRetryable reports whether the error permits another attempt on the
// same provider.
func IsRetryable(err error) bool {
	return KindOf(err) != KindFatal
}
