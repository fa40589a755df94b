package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeProviderFetch = "PROVIDER_FETCH_ERROR"
	ErrCodeStaleToken    = "STALE_TOKEN"
)

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) error {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewValidationError creates a new validation error
func NewValidationError(msg string) error {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: msg,
	}
}

// NewProviderFetchError wraps a case API fetch failure. These are recovered
// per client; they must never abort a batch.
func NewProviderFetchError(check string, err error) error {
	return &DomainError{
		Code:    ErrCodeProviderFetch,
		Message: fmt.Sprintf("case API fetch failed during %s check", check),
		Err:     err,
	}
}

// NewStaleTokenError marks a scheduling-link token that has passed its expiry.
// Stale links are recoverable; an operator re-issue replaces them.
func NewStaleTokenError(err error) error {
	return &DomainError{
		Code:    ErrCodeStaleToken,
		Message: "scheduling token expired",
		Err:     err,
	}
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == ErrCodeNotFound
	}
	return false
}

// IsProviderFetch checks if the error is a provider fetch error
func IsProviderFetch(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == ErrCodeProviderFetch
	}
	return false
}

// IsStaleToken checks if the error is a stale token error
func IsStaleToken(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == ErrCodeStaleToken
	}
	return false
}
