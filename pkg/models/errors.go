package models

import (
	"errors"
	"fmt"
)

// ErrInvalidSubmission matches every ValidationError via errors.Is.
var ErrInvalidSubmission = errors.New("invalid submission")

// ValidationError represents a rejected review input.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// Is reports whether target is ErrInvalidSubmission.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidSubmission
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}
