package filecoord

import (
	"errors"
	"fmt"
	"time"

	"github.com/Flickinny11/symphony/internal/models"
)

// LockTimeoutError reports that a region lock could not be claimed
// within the coordinator's wait budget.
type LockTimeoutError struct {
	Path   string
	Range  *models.LineRange
	Waited time.Duration
}

// NewLockTimeoutError creates a LockTimeoutError for the given region.
func NewLockTimeoutError(path string, r *models.LineRange, waited time.Duration) *LockTimeoutError {
	return &LockTimeoutError{Path: path, Range: r, Waited: waited}
}

// Error implements the error interface for LockTimeoutError.
func (e *LockTimeoutError) Error() string {
	region := "whole file"
	if e.Range != nil {
		region = e.Range.String()
	}
	return fmt.Sprintf("range lock on %s %s: timed out after %s", e.Path, region, e.Waited)
}

// ConflictUnresolvedError reports that the resolution strategy could not
// produce an applicable operation for the detected conflicts.
type ConflictUnresolvedError struct {
	Path      string
	Conflicts []models.Conflict
	Err       error
}

// NewConflictUnresolvedError creates a ConflictUnresolvedError.
func NewConflictUnresolvedError(path string, conflicts []models.Conflict, err error) *ConflictUnresolvedError {
	return &ConflictUnresolvedError{Path: path, Conflicts: conflicts, Err: err}
}

// Error implements the error interface for ConflictUnresolvedError.
func (e *ConflictUnresolvedError) Error() string {
	return fmt.Sprintf("%s: %d conflicts unresolved: %v", e.Path, len(e.Conflicts), e.Err)
}

// Unwrap returns the strategy's underlying error.
func (e *ConflictUnresolvedError) Unwrap() error {
	return e.Err
}

// unlevelableError describes the tasks a cyclic graph left without a
// dependency level.
func unlevelableError(ids []string) error {
	return fmt.Errorf("tasks %v cannot be leveled", ids)
}

// IsLockTimeout checks if the error is or wraps a LockTimeoutError.
func IsLockTimeout(err error) bool {
	if err == nil {
		return false
	}
	var le *LockTimeoutError
	return errors.As(err, &le)
}

// IsConflictUnresolved checks if the error is or wraps a
// ConflictUnresolvedError.
func IsConflictUnresolved(err error) bool {
	if err == nil {
		return false
	}
	var ce *ConflictUnresolvedError
	return errors.As(err, &ce)
}
