package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches domain errors by code and message so wrapped sentinels compare equal
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code && e.Message == other.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeUnavailable   = "UNAVAILABLE"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrEmptyQuery           = NewDomainError(ErrCodeValidation, "query must not be empty")
	ErrInvalidEpisodeID     = NewDomainError(ErrCodeValidation, "invalid episode id")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrEpisodeNotFound = NewDomainError(ErrCodeNotFound, "episode not found")
)

// Upstream errors
var (
	ErrIndexUnavailable  = NewDomainError(ErrCodeUnavailable, "search index unavailable")
	ErrIndexForbidden    = NewDomainError(ErrCodeForbidden, "search index refused the request")
	ErrIndexUnauthorized = NewDomainError(ErrCodeUnauthorized, "search index rejected credentials")
	ErrIndexNotFound     = NewDomainError(ErrCodeNotFound, "search index not found")
	ErrIndexFailure      = NewDomainError(ErrCodeInternalError, "search index request failed")
)

// UpstreamError classifies a status code returned by the search index into
// the typed failure the HTTP layer maps to a response code.
func UpstreamError(status int, cause error) *DomainError {
	var base *DomainError
	switch {
	case status == http.StatusServiceUnavailable,
		status == http.StatusBadGateway,
		status == http.StatusGatewayTimeout,
		status == http.StatusTooManyRequests:
		base = ErrIndexUnavailable
	case status == http.StatusForbidden:
		base = ErrIndexForbidden
	case status == http.StatusUnauthorized:
		base = ErrIndexUnauthorized
	case status == http.StatusNotFound:
		base = ErrIndexNotFound
	default:
		base = ErrIndexFailure
	}
	return NewDomainErrorWithCause(base.Code, base.Message, cause)
}

// CodeOf returns the domain code carried by err, or ErrCodeInternalError
func CodeOf(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ErrCodeInternalError
}
