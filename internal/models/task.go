package models

import (
	"time"
)

// Priority orders tasks for scheduling. Critical tasks are always
// scheduled before high, high before normal, normal before low.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// Rank returns the numeric scheduling rank of the priority. Lower rank
// schedules first. Unknown priorities rank below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Valid reports whether p is one of the defined priorities.
func (p Priority) Valid() bool {
	return p.Rank() < 4
}

// TaskStatus tracks a task through its lifecycle. Transitions only move
// forward: pending -> assigned -> in_progress -> completed or failed.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusAssigned   TaskStatus = "assigned"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// stage returns the forward-ordering stage of a status. Terminal
// statuses share the last stage.
func (s TaskStatus) stage() int {
	switch s {
	case StatusPending:
		return 0
	case StatusAssigned:
		return 1
	case StatusInProgress:
		return 2
	case StatusCompleted, StatusFailed:
		return 3
	default:
		return -1
	}
}

// CanTransition reports whether moving from s to next respects the
// forward-only task lifecycle. Terminal statuses admit no transitions.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	from, to := s.stage(), next.stage()
	if from < 0 || to < 0 {
		return false
	}
	if s == StatusCompleted || s == StatusFailed {
		return false
	}
	return to > from
}

// Terminal reports whether the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is a unit of work produced by planning and scheduled by the
// task queue. Dependencies reference other task ids; a task becomes
// available only once every dependency has completed.
type Task struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description,omitempty"`
	Category      AgentCategory     `json:"category"`
	Priority      Priority          `json:"priority"`
	Dependencies  []string          `json:"dependencies,omitempty"`
	EstimatedTime time.Duration     `json:"estimatedTime"`
	Files         []string          `json:"files,omitempty"`     // file paths this task is expected to touch
	Requirements  Requirements      `json:"requirements"`        // category-specific payload, validated at plan parse
	Status        TaskStatus        `json:"status"`
	Progress      int               `json:"progress"`            // 0..100
	AssignedAgent string            `json:"assignedAgent,omitempty"`
	FailureReason string            `json:"failureReason,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	StartedAt     *time.Time        `json:"startedAt,omitempty"`
	CompletedAt   *time.Time        `json:"completedAt,omitempty"`
}

// Validate checks the fields a task must carry before it can be queued.
func (t *Task) Validate() error {
	if t.ID == "" {
		return NewValidationError(t.ID, "task id is required")
	}
	if t.Title == "" {
		return NewValidationError(t.ID, "task title is required")
	}
	if !t.Category.Valid() {
		return NewValidationError(t.ID, "unknown agent category %q", t.Category)
	}
	if t.Priority == "" {
		t.Priority = PriorityNormal
	}
	if !t.Priority.Valid() {
		return NewValidationError(t.ID, "unknown priority %q", t.Priority)
	}
	if err := t.Requirements.Validate(t.Category); err != nil {
		return err
	}
	return nil
}

// Duration returns the measured execution time, or zero when the task
// has not both started and completed.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.CompletedAt == nil {
		return 0
	}
	return t.CompletedAt.Sub(*t.StartedAt)
}

// Clone returns a deep copy. The queue hands out clones so callers can
// never mutate scheduling state behind its lock.
func (t *Task) Clone() *Task {
	c := *t
	c.Dependencies = append([]string(nil), t.Dependencies...)
	c.Files = append([]string(nil), t.Files...)
	if t.StartedAt != nil {
		started := *t.StartedAt
		c.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		c.CompletedAt = &completed
	}
	return &c
}

// HasCyclicDependencies detects circular dependencies in a set of tasks
// using DFS with color marking (white=unvisited, gray=visiting, black=visited).
func HasCyclicDependencies(tasks []*Task) bool {
	graph := make(map[string][]string)
	known := make(map[string]bool)

	for _, task := range tasks {
		known[task.ID] = true
		graph[task.ID] = nil
	}

	// Edge direction: dependency -> dependent.
	for _, task := range tasks {
		for _, dep := range task.Dependencies {
			if dep == task.ID {
				return true
			}
			if known[dep] {
				graph[dep] = append(graph[dep], task.ID)
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)

	colors := make(map[string]int, len(known))

	var dfs func(string) bool
	dfs = func(node string) bool {
		colors[node] = gray
		for _, next := range graph[node] {
			if colors[next] == gray {
				return true
			}
			if colors[next] == white && dfs(next) {
				return true
			}
		}
		colors[node] = black
		return false
	}

	for id := range known {
		if colors[id] == white && dfs(id) {
			return true
		}
	}
	return false
}
