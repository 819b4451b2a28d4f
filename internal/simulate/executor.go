// Package simulate provides a deterministic scripted Executor for
// driving the engine without the real execution capability. Each run
// emits a fixed number of progress events, one file update per file
// the task declares, then a terminal event, all paced by a configurable
// tick. The CLI uses it for dry runs; tests use it to script failures
// and context-ceiling reports.
package simulate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Flickinny11/symphony/internal/models"
	"github.com/Flickinny11/symphony/internal/sharedmem"
)

const (
	// DefaultTick paces scripted events.
	DefaultTick = 20 * time.Millisecond
	// DefaultProgressSteps is the number of progress events per run.
	DefaultProgressSteps = 3
)

// Logger is the minimal logging surface the executor needs.
type Logger interface {
	Warnf(format string, args ...interface{})
}

// Options script the simulated runs.
type Options struct {
	// Tick is the pause between scripted events.
	Tick time.Duration
	// ProgressSteps is how many progress events precede the terminal
	// event.
	ProgressSteps int
	// Failures maps task ids to failure reasons; those tasks emit an
	// error event instead of completing.
	Failures map[string]string
	// ContextReports maps task ids to a token count the worker reports
	// as approaching its context ceiling mid-run.
	ContextReports map[string]int
	// Logger receives state-publish warnings; nil is fine.
	Logger Logger
}

// Executor is the scripted Executor implementation.
type Executor struct {
	tick     time.Duration
	steps    int
	failures map[string]string
	reports  map[string]int
	logger   Logger
}

// New creates an executor with default pacing and no scripted
// failures.
func New() *Executor {
	return NewWithOptions(Options{})
}

// NewWithOptions creates a scripted executor. Zero option fields fall
// back to the defaults.
func NewWithOptions(opts Options) *Executor {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.ProgressSteps <= 0 {
		opts.ProgressSteps = DefaultProgressSteps
	}
	return &Executor{
		tick:     opts.Tick,
		steps:    opts.ProgressSteps,
		failures: opts.Failures,
		reports:  opts.ContextReports,
		logger:   opts.Logger,
	}
}

// workerState is the state shape simulated workers publish through
// their handle.
type workerState struct {
	TaskID   string `json:"taskId"`
	AgentID  string `json:"agentId"`
	Progress int    `json:"progress"`
	Phase    string `json:"phase"`
}

// Execute starts one scripted run and returns its event stream. The
// channel is closed when the run finishes or the context is cancelled.
func (e *Executor) Execute(ctx context.Context, task *models.Task, handle *sharedmem.Handle) (<-chan models.Event, error) {
	if task == nil {
		return nil, fmt.Errorf("simulate: nil task")
	}

	// Buffered for the full script so a slow consumer never stalls
	// the worker.
	events := make(chan models.Event, e.steps+len(task.Files)+2)
	go e.run(ctx, task, handle, events)
	return events, nil
}

func (e *Executor) run(ctx context.Context, task *models.Task, handle *sharedmem.Handle, events chan<- models.Event) {
	defer close(events)

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	agentID := ""
	if handle != nil {
		agentID = handle.AgentID()
	}

	wait := func() bool {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			return true
		}
	}
	send := func(ev models.Event) bool {
		ev.TaskID = task.ID
		ev.AgentID = agentID
		ev.Timestamp = time.Now()
		select {
		case <-ctx.Done():
			return false
		case events <- ev:
			return true
		}
	}
	publish := func(progress int, phase string) {
		if handle == nil {
			return
		}
		state := workerState{
			TaskID:   task.ID,
			AgentID:  agentID,
			Progress: progress,
			Phase:    phase,
		}
		if err := handle.WriteState(ctx, state); err != nil && e.logger != nil {
			e.logger.Warnf("simulated worker %s: publish state: %v", agentID, err)
		}
	}

	progress := 0
	for i := 1; i <= e.steps; i++ {
		if !wait() {
			return
		}
		progress = i * 100 / (e.steps + 1)
		publish(progress, "working")
		if !send(models.Event{Type: models.EventProgress, Progress: progress}) {
			return
		}
	}

	if tokens, ok := e.reports[task.ID]; ok {
		if !wait() {
			return
		}
		if !send(models.Event{
			Type:          models.EventContextLimit,
			ContextTokens: tokens,
			Message:       "context ceiling approaching",
		}) {
			return
		}
	}

	for _, path := range task.Files {
		if !wait() {
			return
		}
		op := &models.FileOperation{
			ID:        uuid.NewString(),
			Type:      models.OpCreate,
			Path:      path,
			Content:   fmt.Sprintf("simulated content for %s\n", path),
			AgentID:   agentID,
			Timestamp: time.Now(),
		}
		if !send(models.Event{Type: models.EventFileUpdate, File: op}) {
			return
		}
	}

	if !wait() {
		return
	}
	if reason, ok := e.failures[task.ID]; ok {
		publish(progress, "failed")
		send(models.Event{Type: models.EventError, Message: reason})
		return
	}
	publish(100, "done")
	send(models.Event{Type: models.EventComplete, Progress: 100})
}
