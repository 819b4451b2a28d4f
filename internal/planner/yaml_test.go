package planner

import (
	"strings"
	"testing"
	"time"

	"github.com/Flickinny11/symphony/internal/models"
)

func TestYAMLParserParsesPlan(t *testing.T) {
	content := `
plan:
  name: "Checkout flow"
  tasks:
    - id: 1
      title: "Write the schema"
      category: database
      priority: high
      estimated_time: "30m"
      files: ["db/schema.sql"]
      requirements:
        database:
          engine: sqlite
          entities: [orders, carts]
    - id: api
      title: "Build the API"
      category: backend
      depends_on: [1]
      estimated_time: "1h"
      description: "REST endpoints for checkout"
`

	parser := NewYAMLParser()
	plan, err := parser.Parse(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Failed to parse YAML: %v", err)
	}

	if plan.Name != "Checkout flow" {
		t.Errorf("Expected plan name 'Checkout flow', got %q", plan.Name)
	}
	if plan.Source != models.SourceFile {
		t.Errorf("Expected file source, got %q", plan.Source)
	}
	if len(plan.Tasks) != 2 {
		t.Fatalf("Expected 2 tasks, got %d", len(plan.Tasks))
	}

	schema := plan.Task("1")
	if schema == nil {
		t.Fatal("Missing task 1")
	}
	if schema.Category != models.CategoryDatabase {
		t.Errorf("Expected database category, got %q", schema.Category)
	}
	if schema.Requirements.Database == nil {
		t.Fatal("Database requirements not parsed")
	}
	if schema.Requirements.Database.Engine != "sqlite" {
		t.Errorf("Expected sqlite engine, got %q", schema.Requirements.Database.Engine)
	}
	if len(schema.Requirements.Database.Entities) != 2 {
		t.Errorf("Expected 2 entities, got %v", schema.Requirements.Database.Entities)
	}

	api := plan.Task("api")
	if api == nil {
		t.Fatal("Missing api task")
	}
	if len(api.Dependencies) != 1 || api.Dependencies[0] != "1" {
		t.Errorf("Expected numeric dependency as string, got %v", api.Dependencies)
	}
	if api.Description != "REST endpoints for checkout" {
		t.Errorf("Description not carried over: %q", api.Description)
	}
}

func TestYAMLParserEstimatedTime(t *testing.T) {
	tests := []struct {
		name        string
		timeStr     string
		expectedDur time.Duration
	}{
		{"30 minutes", "30m", 30 * time.Minute},
		{"1 hour", "1h", 1 * time.Hour},
		{"2 hours 30 minutes", "2h30m", 2*time.Hour + 30*time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := `
plan:
  tasks:
    - id: timed
      title: "Time test"
      category: backend
      estimated_time: "` + tt.timeStr + `"
`

			parser := NewYAMLParser()
			plan, err := parser.Parse(strings.NewReader(content))
			if err != nil {
				t.Fatalf("Failed to parse YAML: %v", err)
			}
			if plan.Tasks[0].EstimatedTime != tt.expectedDur {
				t.Errorf("Expected duration %v, got %v", tt.expectedDur, plan.Tasks[0].EstimatedTime)
			}
		})
	}
}

func TestYAMLParserUnknownCategory(t *testing.T) {
	content := `
plan:
  tasks:
    - id: odd
      title: "Odd one"
      category: wizardry
`

	parser := NewYAMLParser()
	if _, err := parser.Parse(strings.NewReader(content)); err == nil {
		t.Error("Expected validation error for unknown category")
	}
}

func TestYAMLParserMalformedDocument(t *testing.T) {
	parser := NewYAMLParser()
	if _, err := parser.Parse(strings.NewReader("plan: [not: a: mapping")); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func TestYAMLParserRejectsNonScalarTaskRef(t *testing.T) {
	content := `
plan:
  tasks:
    - id: [nested, list]
      title: "Broken"
      category: backend
`

	parser := NewYAMLParser()
	if _, err := parser.Parse(strings.NewReader(content)); err == nil {
		t.Error("Expected error for a non-scalar task id")
	}
}
