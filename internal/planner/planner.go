// Package planner turns free-text requirements into executable build
// plans. The Planner boundary hides where plans come from: the JSON
// planner parses the payload the external planning capability emits,
// the file parsers load hand-written Markdown and YAML plans, and
// FallbackPlan covers the case where planner output cannot be parsed
// at all.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Flickinny11/symphony/internal/estimation"
	"github.com/Flickinny11/symphony/internal/models"
)

// Planner produces a build plan for a requirements prompt.
type Planner interface {
	Plan(ctx context.Context, requirements string) (*models.BuildPlan, error)
}

// Generator produces the raw planning payload for a requirements
// prompt. The production system backs this with the LLM planning
// capability; tests supply canned payloads.
type Generator interface {
	Generate(ctx context.Context, requirements string) (string, error)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(ctx context.Context, requirements string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, requirements string) (string, error) {
	return f(ctx, requirements)
}

// ParseError reports planner output that could not be turned into a
// valid build plan even after repair. Callers that see it should fall
// back to FallbackPlan instead of failing the run.
type ParseError struct {
	Reason string
	Err    error
}

// Error implements the error interface for ParseError.
func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("parse plan: %s", e.Reason)
	}
	return fmt.Sprintf("parse plan: %s: %v", e.Reason, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

func newParseError(err error, format string, args ...interface{}) *ParseError {
	return &ParseError{
		Reason: fmt.Sprintf(format, args...),
		Err:    err,
	}
}

// IsParseError checks if the error is or wraps a ParseError.
func IsParseError(err error) bool {
	if err == nil {
		return false
	}
	var pe *ParseError
	return errors.As(err, &pe)
}

// taskSpec is the parser-neutral task shape every plan source reduces
// to before validation.
type taskSpec struct {
	ID            string
	Title         string
	Description   string
	Category      string
	Priority      string
	DependsOn     []string
	EstimatedTime string
	Files         []string
	Requirements  models.Requirements
}

// task converts the spec into a pending task. Estimates are parsed
// from the plan annotation when present, otherwise derived from the
// category heuristic.
func (s taskSpec) task() (*models.Task, error) {
	t := &models.Task{
		ID:           strings.TrimSpace(s.ID),
		Title:        strings.TrimSpace(s.Title),
		Description:  strings.TrimSpace(s.Description),
		Category:     models.AgentCategory(strings.ToLower(strings.TrimSpace(s.Category))),
		Priority:     models.Priority(strings.ToLower(strings.TrimSpace(s.Priority))),
		Files:        s.Files,
		Requirements: s.Requirements,
		Status:       models.StatusPending,
		CreatedAt:    time.Now(),
	}

	for _, dep := range s.DependsOn {
		dep = strings.TrimSpace(dep)
		if dep == "" {
			continue
		}
		t.Dependencies = append(t.Dependencies, dep)
	}

	if est := strings.TrimSpace(s.EstimatedTime); est != "" {
		dur, err := estimation.ParseDuration(est)
		if err != nil {
			return nil, fmt.Errorf("task %s: parse estimated time %q: %w", t.ID, est, err)
		}
		t.EstimatedTime = dur
	} else {
		t.EstimatedTime = estimation.EstimateTask(t)
	}

	return t, nil
}

// assemblePlan builds and validates a plan from parsed task specs.
func assemblePlan(name string, source models.PlanSource, specs []taskSpec) (*models.BuildPlan, error) {
	plan := &models.BuildPlan{
		ID:        uuid.NewString(),
		Name:      name,
		Source:    source,
		CreatedAt: time.Now(),
		Tasks:     make([]*models.Task, 0, len(specs)),
	}

	for _, spec := range specs {
		t, err := spec.task()
		if err != nil {
			return nil, err
		}
		plan.Tasks = append(plan.Tasks, t)
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// FallbackPlan is the built-in default used when planner output cannot
// be parsed: scaffold the project, then assemble the pieces.
func FallbackPlan(requirements string) *models.BuildPlan {
	now := time.Now()
	scaffold := &models.Task{
		ID:            "scaffold",
		Title:         "Scaffold project structure",
		Description:   "Lay out the project skeleton the remaining work builds on.",
		Category:      models.CategoryArchitect,
		Priority:      models.PriorityHigh,
		EstimatedTime: 30 * time.Minute,
		Status:        models.StatusPending,
		CreatedAt:     now,
	}
	assemble := &models.Task{
		ID:            "assemble",
		Title:         "Assemble components",
		Description:   "Implement and wire the components described in the requirements.",
		Category:      models.CategoryIntegration,
		Priority:      models.PriorityNormal,
		Dependencies:  []string{"scaffold"},
		EstimatedTime: time.Hour,
		Status:        models.StatusPending,
		CreatedAt:     now,
	}
	return &models.BuildPlan{
		ID:           uuid.NewString(),
		Name:         "Fallback build",
		Requirements: requirements,
		Tasks:        []*models.Task{scaffold, assemble},
		Source:       models.SourceFallback,
		CreatedAt:    now,
	}
}
