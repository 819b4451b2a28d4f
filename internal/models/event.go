package models

import (
	"time"
)

// EventType identifies a lifecycle message from an execution unit.
type EventType string

const (
	// EventProgress carries a 0..100 task progress update.
	EventProgress EventType = "progress"
	// EventFileUpdate carries a proposed file operation.
	EventFileUpdate EventType = "file_update"
	// EventComplete marks the task finished successfully.
	EventComplete EventType = "complete"
	// EventError marks the task failed; Message holds the reason.
	EventError EventType = "error"
	// EventNeedsHelp asks the conductor for coordination assistance.
	EventNeedsHelp EventType = "needs_help"
	// EventContextLimit signals the agent is approaching its context
	// ceiling and should be duplicated and handed off.
	EventContextLimit EventType = "context_limit_approaching"
)

// Event is the only message shape execution units send the conductor.
// Workers never share mutable objects with the engine; everything
// crosses this boundary or the shared-memory bridge.
type Event struct {
	Type          EventType      `json:"type"`
	TaskID        string         `json:"taskId"`
	AgentID       string         `json:"agentId"`
	Progress      int            `json:"progress,omitempty"`
	File          *FileOperation `json:"file,omitempty"`
	Message       string         `json:"message,omitempty"`
	ContextTokens int            `json:"contextTokens,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}
