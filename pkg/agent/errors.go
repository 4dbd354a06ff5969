package agent

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a provider failure. Every kind carries the provider and
// model so operators can attribute failures without parsing messages.
type Kind string

const (
	// KindOverload means the provider is temporarily saturated; retryable.
	KindOverload Kind = "overload"
	// KindRateLimit means a quota window was exceeded; retryable after the
	// optional provider-supplied delay.
	KindRateLimit Kind = "rate_limit"
	// KindUnavailable means the provider or model is down or unsupported;
	// retryable with backoff, escalate after repeated failure.
	KindUnavailable Kind = "unavailable"
	// KindAuthentication means bad credentials; never retryable, surfaces
	// to the user who owns the credential.
	KindAuthentication Kind = "authentication"
	// KindQuotaExceeded means a billing or plan limit was hit; not
	// retryable without user action.
	KindQuotaExceeded Kind = "quota_exceeded"
	// KindSchemaValidation means a structured reply failed to parse or
	// validate after the bounded retry.
	KindSchemaValidation Kind = "schema_validation"
)

// Error is a classified provider failure with the original error embedded.
type Error struct {
	Kind     Kind
	Provider string
	Model    string
	Message  string
	// RetryAfter is a provider-supplied delay hint for rate limits; zero
	// when the provider gave none.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s/%s: %s", e.Provider, e.Model, e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the caller may retry the call with backoff.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindOverload, KindRateLimit, KindUnavailable:
		return true
	}
	return false
}

// NewError builds a classified error for the given provider and model.
func NewError(kind Kind, provider, model, message string, cause error) *Error {
	return &Error{Kind: kind, Provider: provider, Model: model, Message: message, Err: cause}
}

// KindOf extracts the Kind from err, or "" when err is not a classified
// agent error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// Retryable reports whether err is a classified error that permits retry.
func Retryable(err error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Retryable()
	}
	return false
}
