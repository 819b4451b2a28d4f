package planner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonrepair"

	"github.com/Flickinny11/symphony/internal/models"
)

// payload is the JSON task-list shape the planning capability emits.
type payload struct {
	PlanName string        `json:"plan_name"`
	Tasks    []payloadTask `json:"tasks"`
}

type payloadTask struct {
	ID            string              `json:"id"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Category      string              `json:"category"`
	Priority      string              `json:"priority"`
	DependsOn     []string            `json:"depends_on"`
	EstimatedTime string              `json:"estimated_time"`
	Files         []string            `json:"files"`
	Requirements  models.Requirements `json:"requirements"`
}

// JSONPlanner asks a Generator for a plan payload and parses it.
// Malformed output is run through jsonrepair before the planner gives
// up with a ParseError.
type JSONPlanner struct {
	gen Generator
}

var _ Planner = (*JSONPlanner)(nil)

// NewJSONPlanner creates a JSONPlanner backed by the given generator.
func NewJSONPlanner(gen Generator) *JSONPlanner {
	return &JSONPlanner{gen: gen}
}

// Plan generates and parses a build plan for the requirements.
func (p *JSONPlanner) Plan(ctx context.Context, requirements string) (*models.BuildPlan, error) {
	raw, err := p.gen.Generate(ctx, requirements)
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}
	return ParsePayload(requirements, raw)
}

// ParsePayload parses a raw planner payload into a validated build
// plan. Unparseable JSON is repaired once before the payload is
// rejected; any remaining problem, including task validation, comes
// back as a ParseError so callers can fall back.
func ParsePayload(requirements, raw string) (*models.BuildPlan, error) {
	var pl payload
	if err := json.Unmarshal([]byte(raw), &pl); err != nil {
		fixed, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return nil, newParseError(err, "invalid JSON (repair failed: %v)", repairErr)
		}
		if err := json.Unmarshal([]byte(fixed), &pl); err != nil {
			return nil, newParseError(err, "invalid JSON after repair")
		}
	}

	specs := make([]taskSpec, 0, len(pl.Tasks))
	for _, t := range pl.Tasks {
		specs = append(specs, taskSpec{
			ID:            t.ID,
			Title:         t.Title,
			Description:   t.Description,
			Category:      t.Category,
			Priority:      t.Priority,
			DependsOn:     t.DependsOn,
			EstimatedTime: t.EstimatedTime,
			Files:         t.Files,
			Requirements:  t.Requirements,
		})
	}

	name := pl.PlanName
	if name == "" {
		name = "Build plan"
	}
	plan, err := assemblePlan(name, models.SourcePlanner, specs)
	if err != nil {
		return nil, newParseError(err, "invalid plan payload")
	}
	plan.Requirements = requirements
	return plan, nil
}
