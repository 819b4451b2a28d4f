package models

import (
	"time"
)

// AgentCategory is the closed set of specialist worker types the
// engine knows how to schedule.
type AgentCategory string

const (
	CategoryArchitect   AgentCategory = "architect"
	CategoryFrontend    AgentCategory = "frontend"
	CategoryBackend     AgentCategory = "backend"
	CategoryDatabase    AgentCategory = "database"
	CategoryIntegration AgentCategory = "integration"
	CategoryTesting     AgentCategory = "testing"
	CategoryDeployment  AgentCategory = "deployment"
)

// Categories lists every known agent category in display order.
func Categories() []AgentCategory {
	return []AgentCategory{
		CategoryArchitect,
		CategoryFrontend,
		CategoryBackend,
		CategoryDatabase,
		CategoryIntegration,
		CategoryTesting,
		CategoryDeployment,
	}
}

// Valid reports whether c is one of the defined categories.
func (c AgentCategory) Valid() bool {
	switch c {
	case CategoryArchitect, CategoryFrontend, CategoryBackend, CategoryDatabase,
		CategoryIntegration, CategoryTesting, CategoryDeployment:
		return true
	}
	return false
}

// AgentStatus is the operational state of a pooled agent.
type AgentStatus string

const (
	AgentIdle    AgentStatus = "idle"
	AgentWorking AgentStatus = "working"
	AgentError   AgentStatus = "error"
)

// HandoffState tracks an agent through duplication handoff. The
// transition is one-way: active -> handing_off -> retired.
type HandoffState string

const (
	HandoffActive     HandoffState = "active"
	HandoffInProgress HandoffState = "handing_off"
	HandoffRetired    HandoffState = "retired"
)

// CanTransition reports whether moving from h to next respects the
// one-way handoff lifecycle.
func (h HandoffState) CanTransition(next HandoffState) bool {
	switch h {
	case HandoffActive:
		return next == HandoffInProgress
	case HandoffInProgress:
		return next == HandoffRetired
	}
	return false
}

// Agent is a pooled, typed worker slot. Agents are owned exclusively by
// the pool: created lazily up to capacity, never destroyed until the
// pool itself is closed. Identity and capability tags survive release.
type Agent struct {
	ID            string        `json:"id"`
	Category      AgentCategory `json:"category"`
	Status        AgentStatus   `json:"status"`
	Capabilities  []string      `json:"capabilities,omitempty"`
	CurrentTask   string        `json:"currentTask,omitempty"`
	ContextTokens int           `json:"contextTokens"`
	MaxContext    int           `json:"maxContext"`
	Handoff       HandoffState  `json:"handoff"`
	Successor     string        `json:"successor,omitempty"` // id of the replacement agent after handoff
	CreatedAt     time.Time     `json:"createdAt"`
}

// ContextRatio returns context usage as a fraction of the agent's
// ceiling, 0 when no ceiling is set.
func (a *Agent) ContextRatio() float64 {
	if a.MaxContext <= 0 {
		return 0
	}
	return float64(a.ContextTokens) / float64(a.MaxContext)
}
