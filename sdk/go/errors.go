package driftbox

import (
	"errors"
	"fmt"
)

// Standard errors returned by the SDK. API failures wrap one of these
// based on the error code in the response body, so callers can branch
// with errors.Is without parsing messages.
var (
	// ErrValidation indicates invalid input parameters.
	ErrValidation = errors.New("validation error")
	// ErrUnauthorized indicates a missing or invalid session token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the account is not allowed to perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited indicates the upload quota is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrBanned indicates the client IP is banned.
	ErrBanned = errors.New("banned")
	// ErrDependency indicates a server-side storage or database failure.
	ErrDependency = errors.New("dependency error")
	// ErrNotConfigured indicates the endpoint is disabled on the server.
	ErrNotConfigured = errors.New("not configured")
)

// sentinelFor maps API error codes to the SDK sentinel errors.
func sentinelFor(code string) error {
	switch code {
	case "VALIDATION_ERROR":
		return ErrValidation
	case "UNAUTHORIZED":
		return ErrUnauthorized
	case "FORBIDDEN":
		return ErrForbidden
	case "NOT_FOUND":
		return ErrNotFound
	case "RATE_LIMITED":
		return ErrRateLimited
	case "BANNED":
		return ErrBanned
	case "DEPENDENCY_ERROR":
		return ErrDependency
	case "NOT_CONFIGURED":
		return ErrNotConfigured
	default:
		return nil
	}
}

// APIError is an error response from the driftbox API.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Code is the stable machine-readable error code.
	Code string
	// Message is the human-readable error message.
	Message string
	// Err is the matching sentinel error, if any.
	Err error
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("driftbox: %s (%s, status %d)", e.Message, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("driftbox: %s (status %d)", e.Message, e.StatusCode)
}

// Unwrap returns the sentinel error for errors.Is support.
func (e *APIError) Unwrap() error {
	return e.Err
}

// ValidationError is a client-side input validation failure raised
// before any request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("driftbox: validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("driftbox: validation error: %s", e.Message)
}

// Unwrap returns ErrValidation for errors.Is support.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
