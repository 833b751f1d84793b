// Package services holds the application services behind the HTTP API:
// investigation lifecycle and persisted history.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a session or record is not found
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when the request conflicts with the session state
	ErrConflict = errors.New("conflicting session state")

	// ErrUnavailable is returned when the request cannot be served right now
	ErrUnavailable = errors.New("service unavailable")

	// ErrHistoryDisabled is returned when history is queried without a database
	ErrHistoryDisabled = errors.New("investigation history is disabled")
)

// ValidationError wraps field-specific validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
