package models

import (
	"time"
)

// PlanSource records where a build plan came from.
type PlanSource string

const (
	// SourcePlanner marks plans produced by the planning capability.
	SourcePlanner PlanSource = "planner"
	// SourceFallback marks the built-in default plan used when
	// planner output could not be parsed.
	SourceFallback PlanSource = "fallback"
	// SourceFile marks plans loaded from a plan file.
	SourceFile PlanSource = "file"
)

// BuildPlan is the structured output of requirement planning: the task
// list the conductor executes, plus provenance.
type BuildPlan struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Requirements string     `json:"requirements,omitempty"` // the free-text requirements the plan was derived from
	Tasks        []*Task    `json:"tasks"`
	Source       PlanSource `json:"source"`
	FilePath     string     `json:"filePath,omitempty"` // set for file-sourced plans
	CreatedAt    time.Time  `json:"createdAt"`
}

// Task returns the task with the given id, or nil.
func (p *BuildPlan) Task(id string) *Task {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Validate checks every task, rejects duplicate ids, verifies that all
// dependency references resolve inside the plan, and rejects cyclic
// dependency structures.
func (p *BuildPlan) Validate() error {
	if len(p.Tasks) == 0 {
		return NewValidationError("", "plan %q has no tasks", p.Name)
	}

	seen := make(map[string]bool, len(p.Tasks))
	for _, t := range p.Tasks {
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t.ID] {
			return NewValidationError(t.ID, "duplicate task id")
		}
		seen[t.ID] = true
	}

	for _, t := range p.Tasks {
		for _, dep := range t.Dependencies {
			if !seen[dep] {
				return NewValidationError(t.ID, "depends on unknown task %q", dep)
			}
		}
	}

	if HasCyclicDependencies(p.Tasks) {
		return NewValidationError("", "plan %q has cyclic dependencies", p.Name)
	}
	return nil
}

// TotalEstimate sums the estimated time over all tasks.
func (p *BuildPlan) TotalEstimate() time.Duration {
	var total time.Duration
	for _, t := range p.Tasks {
		total += t.EstimatedTime
	}
	return total
}
