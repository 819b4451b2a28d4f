package models

import (
	"fmt"
	"time"
)

// FileOpType is the kind of edit an agent proposes for a file.
type FileOpType string

const (
	OpCreate FileOpType = "create"
	OpUpdate FileOpType = "update"
	OpDelete FileOpType = "delete"
)

// Valid reports whether t is one of the defined operation types.
func (t FileOpType) Valid() bool {
	return t == OpCreate || t == OpUpdate || t == OpDelete
}

// LineRange is a half-open [Start, End) span of lines within a file.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Overlaps reports whether two half-open ranges share any line.
func (r LineRange) Overlaps(other LineRange) bool {
	return r.Start < other.End && other.Start < r.End
}

// String formats the range for lock keys and log lines.
func (r LineRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// FileOperation is one proposed edit: a full-file create/update/delete
// when Range is nil, or a splice of the given line range. Operations
// without a bounded range contend with every other operation on the
// same path.
type FileOperation struct {
	ID        string     `json:"id"`
	Type      FileOpType `json:"type"`
	Path      string     `json:"path"`
	Range     *LineRange `json:"range,omitempty"`
	Content   string     `json:"content,omitempty"`
	AgentID   string     `json:"agentId"`
	Timestamp time.Time  `json:"timestamp"`
}

// Ranged reports whether the operation targets a bounded line range.
func (o *FileOperation) Ranged() bool {
	return o.Range != nil
}

// FileState is the coordinator's in-memory snapshot of one file.
// Version increases by exactly one for every operation actually
// applied, including operations applied after conflict resolution.
type FileState struct {
	Path         string    `json:"path"`
	Content      string    `json:"content"`
	Version      int64     `json:"version"`
	LastAgent    string    `json:"lastAgent,omitempty"`
	LastModified time.Time `json:"lastModified"`
}

// ConflictSeverity grades how risky an overlapping edit pair is.
type ConflictSeverity string

const (
	SeverityLow    ConflictSeverity = "low"
	SeverityMedium ConflictSeverity = "medium"
	SeverityHigh   ConflictSeverity = "high"
)

// Conflict pairs an incoming operation with a tracked operation it
// overlaps on the same file.
type Conflict struct {
	Path      string           `json:"path"`
	Incoming  *FileOperation   `json:"incoming"`
	Existing  *FileOperation   `json:"existing"`
	Severity  ConflictSeverity `json:"severity"`
	Detail    string           `json:"detail,omitempty"`
	Detected  time.Time        `json:"detected"`
}
