package models

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed task or plan: missing fields,
// unknown categories, mismatched requirement payloads, duplicate ids.
type ValidationError struct {
	TaskID  string // offending task id, empty for plan-level problems
	Message string
}

// NewValidationError creates a ValidationError for the given task id.
func NewValidationError(taskID, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		TaskID:  taskID,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("validation: %s", e.Message)
	}
	return fmt.Sprintf("validation: task %s: %s", e.TaskID, e.Message)
}

// IsValidationError checks if the error is or wraps a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var ve *ValidationError
	return errors.As(err, &ve)
}
