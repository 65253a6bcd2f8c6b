// Package gwerrors defines the gateway's error taxonomy. Every error that
// crosses a pipeline boundary (router, adapter, fallback controller) is
// classified into one of the Class constants below so that HTTP handlers,
// the fallback controller, and metrics can make decisions without parsing
// error strings.
package gwerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Class identifies a taxonomy bucket for a gateway error.
type Class string

// Error class constants, per the gateway's error taxonomy.
const (
	ClassValidation            Class = "validation_error"
	ClassModelNotFound         Class = "model_not_found"
	ClassRateLimited           Class = "rate_limited"
	ClassProviderAuth          Class = "provider_authentication_error"
	ClassContextLengthExceeded Class = "context_length_exceeded"
	ClassContentFiltered       Class = "content_filtered"
	ClassProviderTimeout       Class = "provider_timeout"
	ClassProviderUnavailable   Class = "provider_unavailable"
	ClassProviderServerError   Class = "provider_server_error"
	ClassProviderClientError   Class = "provider_client_error"
	ClassNoEligibleModel       Class = "no_eligible_model"
	ClassInternal              Class = "internal_error"
)

// Error is a classified gateway error. It wraps an underlying cause and
// carries enough metadata to build the user-visible failure body
// ({error:{type,message,code?,retryAfter?}}) without the caller needing to
// know the taxonomy.
type Error struct {
	Class      Class
	Message    string
	Code       string
	RetryAfter int // seconds; 0 means "not known"
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Class, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a classified error with no underlying cause.
func New(class Class, message string) *Error {
	return &Error{Class: class, Message: message}
}

// Wrap builds a classified error around an existing cause.
func Wrap(class Class, message string, cause error) *Error {
	return &Error{Class: class, Message: message, Cause: cause}
}

// As extracts a *Error from err, if any exists in its chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ClassOf returns the Class of err, or ClassInternal if err is not a
// classified *Error.
func ClassOf(err error) Class {
	if e, ok := As(err); ok {
		return e.Class
	}
	return ClassInternal
}

// Retryable reports whether the error class is eligible for fallback —
// transient provider-side failures only, per the propagation rules in the
// error-handling design: everything else (validation, not-found, auth,
// context-length, content-filter, client errors, no-eligible-model) is not.
func Retryable(err error) bool {
	switch ClassOf(err) {
	case ClassProviderTimeout, ClassProviderUnavailable, ClassProviderServerError, ClassRateLimited:
		return true
	default:
		return false
	}
}

// HTTPStatus maps a Class to the HTTP status code the transport layer
// should use. ProviderAuthenticationError intentionally maps to 502, never
// 401, so a vendor credential rejection is never confused with a gateway
// auth failure.
func HTTPStatus(class Class) int {
	switch class {
	case ClassValidation, ClassContextLengthExceeded, ClassContentFiltered:
		return http.StatusBadRequest
	case ClassModelNotFound:
		return http.StatusNotFound
	case ClassRateLimited:
		return http.StatusTooManyRequests
	case ClassProviderAuth:
		return http.StatusBadGateway
	case ClassNoEligibleModel:
		return http.StatusUnprocessableEntity
	case ClassProviderTimeout, ClassProviderUnavailable, ClassProviderServerError, ClassProviderClientError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
