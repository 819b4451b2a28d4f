package models

import "time"

// TaskOutcome records how one task ended.
type TaskOutcome struct {
	TaskID        string        `json:"taskId"`
	Title         string        `json:"title"`
	Category      AgentCategory `json:"category"`
	AgentID       string        `json:"agentId,omitempty"`
	Status        TaskStatus    `json:"status"`
	Duration      time.Duration `json:"duration"`
	FailureReason string        `json:"failureReason,omitempty"`
}

// RunReport is the aggregate result of driving a build plan to
// quiescence: per-status totals plus the outcomes of failed tasks.
type RunReport struct {
	PlanID            string        `json:"planId"`
	PlanName          string        `json:"planName"`
	TotalTasks        int           `json:"totalTasks"`
	Completed         int           `json:"completed"`
	Failed            int           `json:"failed"`
	Duration          time.Duration `json:"duration"`
	FilesWritten      int           `json:"filesWritten"`
	ConflictsResolved int           `json:"conflictsResolved"`
	Handoffs          int           `json:"handoffs"`
	FailedTasks       []TaskOutcome `json:"failedTasks,omitempty"`
}

// Succeeded reports whether every task completed.
func (r *RunReport) Succeeded() bool {
	return r.Failed == 0 && r.Completed == r.TotalTasks
}
