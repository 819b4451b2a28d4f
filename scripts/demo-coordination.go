// Demo of the file coordination layer: two agents write the same file
// concurrently, the arbiter versions and merges their edits, and a
// third task builds on the result.
//
// Run with: go run scripts/demo-coordination.go
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Flickinny11/symphony/internal/agents"
	"github.com/Flickinny11/symphony/internal/conductor"
	"github.com/Flickinny11/symphony/internal/config"
	"github.com/Flickinny11/symphony/internal/display"
	"github.com/Flickinny11/symphony/internal/logger"
	"github.com/Flickinny11/symphony/internal/models"
	"github.com/Flickinny11/symphony/internal/pool"
	"github.com/Flickinny11/symphony/internal/sharedmem"
	"github.com/Flickinny11/symphony/internal/simulate"
)

func demoTask(id, title string, category models.AgentCategory, deps []string, files ...string) *models.Task {
	return &models.Task{
		ID:            id,
		Title:         title,
		Category:      category,
		Priority:      models.PriorityNormal,
		Dependencies:  deps,
		EstimatedTime: 15 * time.Minute,
		Files:         files,
		Status:        models.StatusPending,
		CreatedAt:     time.Now(),
	}
}

func main() {
	plan := &models.BuildPlan{
		ID:   uuid.NewString(),
		Name: "Coordination Demo",
		Tasks: []*models.Task{
			demoTask("routes", "Add service routes", models.CategoryBackend, nil,
				"internal/service/service.go"),
			demoTask("handlers", "Add service handlers", models.CategoryBackend, nil,
				"internal/service/service.go"),
			demoTask("tests", "Cover the service", models.CategoryTesting, []string{"routes", "handlers"},
				"internal/service/service_test.go"),
		},
		Source:    models.SourceFallback,
		CreatedAt: time.Now(),
	}
	if err := plan.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	renderer := display.NewRenderer(os.Stdout)
	renderer.Plan(plan)
	fmt.Println()

	log := logger.NewConsoleLogger(os.Stdout, "debug")
	agentPool := pool.New(4, agents.DefaultCatalog())
	bridge := sharedmem.NewWithOptions(sharedmem.Options{Logger: log})
	exec := simulate.NewWithOptions(simulate.Options{
		Tick:          200 * time.Millisecond,
		ProgressSteps: 3,
		Logger:        log,
	})

	ext := conductor.NewExtendedWithOptions(agentPool, bridge, exec, conductor.ExtendedOptions{
		Options: conductor.Options{
			Logger: log,
			Coordination: config.CoordinationConfig{
				BatchSize:        3,
				Tick:             time.Second,
				ExtendedTick:     500 * time.Millisecond,
				FileTick:         250 * time.Millisecond,
				LockTimeout:      2 * time.Second,
				HandoffGrace:     time.Second,
				ContextThreshold: 0.9,
			},
		},
	})
	eng := ext.Conductor

	if err := eng.LoadPlan(plan); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	report, err := eng.Start(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	renderer.Stats(eng.Stats())

	if !report.Succeeded() {
		os.Exit(1)
	}
}
