package pool

import (
	"errors"
	"fmt"
	"time"

	"github.com/Flickinny11/symphony/internal/models"
)

// ErrPoolClosed is returned once the pool has been disposed.
var ErrPoolClosed = errors.New("agent pool closed")

// AllocationExhaustedError reports that Acquire waited its full budget
// without a slot freeing up. Callers decide whether to retry the
// allocation or abandon the task; the pool never retries on its own.
type AllocationExhaustedError struct {
	Category models.AgentCategory
	Waited   time.Duration
}

// NewAllocationExhaustedError creates an AllocationExhaustedError.
func NewAllocationExhaustedError(category models.AgentCategory, waited time.Duration) *AllocationExhaustedError {
	return &AllocationExhaustedError{Category: category, Waited: waited}
}

// Error implements the error interface for AllocationExhaustedError.
func (e *AllocationExhaustedError) Error() string {
	return fmt.Sprintf("no %s agent available after %v", e.Category, e.Waited)
}

// UnknownAgentError reports an operation against an id the pool does
// not own.
type UnknownAgentError struct {
	AgentID string
}

// NewUnknownAgentError creates an UnknownAgentError.
func NewUnknownAgentError(agentID string) *UnknownAgentError {
	return &UnknownAgentError{AgentID: agentID}
}

// Error implements the error interface for UnknownAgentError.
func (e *UnknownAgentError) Error() string {
	return fmt.Sprintf("unknown agent %s", e.AgentID)
}

// HandoffStateError reports an illegal handoff transition.
type HandoffStateError struct {
	AgentID string
	From    models.HandoffState
	To      models.HandoffState
}

// NewHandoffStateError creates a HandoffStateError.
func NewHandoffStateError(agentID string, from, to models.HandoffState) *HandoffStateError {
	return &HandoffStateError{AgentID: agentID, From: from, To: to}
}

// Error implements the error interface for HandoffStateError.
func (e *HandoffStateError) Error() string {
	return fmt.Sprintf("agent %s: illegal handoff transition %s -> %s", e.AgentID, e.From, e.To)
}

// IsAllocationExhausted checks if the error is or wraps an
// AllocationExhaustedError.
func IsAllocationExhausted(err error) bool {
	if err == nil {
		return false
	}
	var ae *AllocationExhaustedError
	return errors.As(err, &ae)
}
