package queue

import (
	"errors"
	"fmt"

	"github.com/Flickinny11/symphony/internal/models"
)

// DuplicateTaskError reports an attempt to enqueue a task id twice.
// Duplicates are an explicit error, never a silent overwrite.
type DuplicateTaskError struct {
	TaskID string
	cause  *models.ValidationError
}

// NewDuplicateTaskError creates a DuplicateTaskError for the given id.
func NewDuplicateTaskError(taskID string) *DuplicateTaskError {
	return &DuplicateTaskError{
		TaskID: taskID,
		cause:  models.NewValidationError(taskID, "duplicate task id"),
	}
}

// Error implements the error interface for DuplicateTaskError.
func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("task %s already queued", e.TaskID)
}

// Unwrap classifies duplicates as validation failures.
func (e *DuplicateTaskError) Unwrap() error {
	return e.cause
}

// UnknownTaskError reports an operation against a task id the queue
// has never seen.
type UnknownTaskError struct {
	TaskID string
}

// NewUnknownTaskError creates an UnknownTaskError for the given id.
func NewUnknownTaskError(taskID string) *UnknownTaskError {
	return &UnknownTaskError{TaskID: taskID}
}

// Error implements the error interface for UnknownTaskError.
func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("unknown task %s", e.TaskID)
}

// TransitionError reports a status change that would move a task
// backwards or out of a terminal state.
type TransitionError struct {
	TaskID string
	From   models.TaskStatus
	To     models.TaskStatus
}

// NewTransitionError creates a TransitionError for the given move.
func NewTransitionError(taskID string, from, to models.TaskStatus) *TransitionError {
	return &TransitionError{TaskID: taskID, From: from, To: to}
}

// Error implements the error interface for TransitionError.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("task %s: illegal transition %s -> %s", e.TaskID, e.From, e.To)
}

// CycleError reports that the dependency graph contains a cycle, which
// makes longest-path analysis undefined.
type CycleError struct {
	Err error
}

// Error implements the error interface for CycleError.
func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %v", e.Err)
}

// Unwrap returns the underlying topological-sort error.
func (e *CycleError) Unwrap() error {
	return e.Err
}

// IsDuplicateTask checks if the error is or wraps a DuplicateTaskError.
func IsDuplicateTask(err error) bool {
	if err == nil {
		return false
	}
	var de *DuplicateTaskError
	return errors.As(err, &de)
}

// IsCycle checks if the error is or wraps a CycleError.
func IsCycle(err error) bool {
	if err == nil {
		return false
	}
	var ce *CycleError
	return errors.As(err, &ce)
}
