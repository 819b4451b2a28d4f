package sharedmem

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyKey rejects region creation under an empty key.
var ErrEmptyKey = errors.New("sharedmem: empty region key")

// LockTimeoutError reports that a writer exhausted its backoff budget
// without claiming the region's exclusive lock.
type LockTimeoutError struct {
	Key    string
	Waited time.Duration
}

// NewLockTimeoutError creates a LockTimeoutError.
func NewLockTimeoutError(key string, waited time.Duration) *LockTimeoutError {
	return &LockTimeoutError{Key: key, Waited: waited}
}

// Error implements the error interface for LockTimeoutError.
func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("region %s: write lock not acquired within %v", e.Key, e.Waited)
}

// UnknownRegionError reports access to a key with no region.
type UnknownRegionError struct {
	Key string
}

// NewUnknownRegionError creates an UnknownRegionError.
func NewUnknownRegionError(key string) *UnknownRegionError {
	return &UnknownRegionError{Key: key}
}

// Error implements the error interface for UnknownRegionError.
func (e *UnknownRegionError) Error() string {
	return fmt.Sprintf("region %s does not exist", e.Key)
}

// OutOfRangeError reports an access that does not fit the region.
type OutOfRangeError struct {
	Key    string
	Offset int
	Length int
	Size   int
}

// NewOutOfRangeError creates an OutOfRangeError.
func NewOutOfRangeError(key string, offset, length, size int) *OutOfRangeError {
	return &OutOfRangeError{Key: key, Offset: offset, Length: length, Size: size}
}

// Error implements the error interface for OutOfRangeError.
func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("region %s: access [%d, %d) exceeds size %d",
		e.Key, e.Offset, e.Offset+e.Length, e.Size)
}

// EmptyRegionError reports a JSON read from a region nothing has been
// written to yet.
type EmptyRegionError struct {
	Key string
}

// NewEmptyRegionError creates an EmptyRegionError.
func NewEmptyRegionError(key string) *EmptyRegionError {
	return &EmptyRegionError{Key: key}
}

// Error implements the error interface for EmptyRegionError.
func (e *EmptyRegionError) Error() string {
	return fmt.Sprintf("region %s holds no JSON payload", e.Key)
}

// IsLockTimeout checks if the error is or wraps a LockTimeoutError.
func IsLockTimeout(err error) bool {
	if err == nil {
		return false
	}
	var lt *LockTimeoutError
	return errors.As(err, &lt)
}

// IsUnknownRegion checks if the error is or wraps an
// UnknownRegionError.
func IsUnknownRegion(err error) bool {
	if err == nil {
		return false
	}
	var ur *UnknownRegionError
	return errors.As(err, &ur)
}
