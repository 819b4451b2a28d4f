// Package history persists run records to SQLite: task outcomes, file
// changes, and per-run summaries. The conductor writes through the Sink
// interface so history can be disabled without touching engine code.
package history

import (
	"context"
	"time"
)

// TaskRecord is one task reaching a terminal status during a run.
type TaskRecord struct {
	ID            int64
	RunID         string
	PlanName      string
	TaskID        string
	Title         string
	Category      string
	AgentID       string
	Status        string
	FailureReason string
	DurationSecs  int64
	Timestamp     time.Time
}

// FileChangeRecord is one applied file operation.
type FileChangeRecord struct {
	ID        int64
	RunID     string
	Path      string
	TaskID    string
	AgentID   string
	Operation string
	Version   int
	Summary   string
	Conflicts int
	Timestamp time.Time
}

// RunRecord is the summary row written when a run finishes.
type RunRecord struct {
	ID                int64
	RunID             string
	PlanName          string
	TotalTasks        int
	Completed         int
	Failed            int
	FilesWritten      int
	ConflictsResolved int
	Handoffs          int
	DurationSecs      int64
	Timestamp         time.Time
}

// Sink receives history records as a run progresses.
type Sink interface {
	RecordTask(ctx context.Context, rec *TaskRecord) error
	RecordFileChange(ctx context.Context, rec *FileChangeRecord) error
	RecordRun(ctx context.Context, rec *RunRecord) error
	Close() error
}

// NoopSink discards all records. Used when history is disabled.
type NoopSink struct{}

// RecordTask discards the record.
func (NoopSink) RecordTask(ctx context.Context, rec *TaskRecord) error { return nil }

// RecordFileChange discards the record.
func (NoopSink) RecordFileChange(ctx context.Context, rec *FileChangeRecord) error { return nil }

// RecordRun discards the record.
func (NoopSink) RecordRun(ctx context.Context, rec *RunRecord) error { return nil }

// Close is a no-op.
func (NoopSink) Close() error { return nil }
