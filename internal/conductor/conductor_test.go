package conductor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Flickinny11/symphony/internal/config"
	"github.com/Flickinny11/symphony/internal/history"
	"github.com/Flickinny11/symphony/internal/models"
	"github.com/Flickinny11/symphony/internal/planner"
	"github.com/Flickinny11/symphony/internal/pool"
	"github.com/Flickinny11/symphony/internal/sharedmem"
	"github.com/Flickinny11/symphony/internal/simulate"
)

func testCoordination() config.CoordinationConfig {
	return config.CoordinationConfig{
		BatchSize:        4,
		Tick:             20 * time.Millisecond,
		ExtendedTick:     10 * time.Millisecond,
		FileTick:         15 * time.Millisecond,
		LockTimeout:      time.Second,
		HandoffGrace:     30 * time.Millisecond,
		ContextThreshold: 0.9,
	}
}

func fastSimulate() *simulate.Executor {
	return simulate.NewWithOptions(simulate.Options{Tick: time.Millisecond, ProgressSteps: 2})
}

func testPlan(tasks ...*models.Task) *models.BuildPlan {
	return &models.BuildPlan{
		ID:        uuid.NewString(),
		Name:      "test plan",
		Tasks:     tasks,
		Source:    models.SourceFile,
		CreatedAt: time.Now(),
	}
}

func chainTask(id, dep string, files ...string) *models.Task {
	t := &models.Task{
		ID:            id,
		Title:         "Task " + id,
		Category:      models.CategoryBackend,
		Priority:      models.PriorityNormal,
		EstimatedTime: 10 * time.Minute,
		Files:         files,
		Status:        models.StatusPending,
		CreatedAt:     time.Now(),
	}
	if dep != "" {
		t.Dependencies = []string{dep}
	}
	return t
}

// recordingSink captures history records for assertions.
type recordingSink struct {
	mu    sync.Mutex
	tasks []history.TaskRecord
	files []history.FileChangeRecord
	runs  []history.RunRecord
}

func (s *recordingSink) RecordTask(ctx context.Context, rec *history.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, *rec)
	return nil
}

func (s *recordingSink) RecordFileChange(ctx context.Context, rec *history.FileChangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, *rec)
	return nil
}

func (s *recordingSink) RecordRun(ctx context.Context, rec *history.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, *rec)
	return nil
}

func (s *recordingSink) Close() error { return nil }

type stubPlanner struct {
	plan *models.BuildPlan
	err  error
}

func (p *stubPlanner) Plan(ctx context.Context, requirements string) (*models.BuildPlan, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.plan, nil
}

// scriptExecutor emits a hand-written event sequence per task.
type scriptExecutor struct {
	script func(ctx context.Context, task *models.Task, handle *sharedmem.Handle, events chan<- models.Event)
}

func (s *scriptExecutor) Execute(ctx context.Context, task *models.Task, handle *sharedmem.Handle) (<-chan models.Event, error) {
	events := make(chan models.Event, 16)
	go func() {
		defer close(events)
		s.script(ctx, task, handle, events)
	}()
	return events, nil
}

type errExecutor struct{ err error }

func (e errExecutor) Execute(ctx context.Context, task *models.Task, handle *sharedmem.Handle) (<-chan models.Event, error) {
	return nil, e.err
}

func TestConductorRunsPlanToCompletion(t *testing.T) {
	agents := pool.New(5, nil)
	bridge := sharedmem.New()
	c := NewWithOptions(agents, bridge, fastSimulate(), Options{Coordination: testCoordination()})

	plan := testPlan(
		chainTask("t1", "", "internal/server/server.go"),
		chainTask("t2", "t1", "internal/server/routes.go"),
		chainTask("t3", "t2"),
	)
	require.NoError(t, c.LoadPlan(plan))

	report, err := c.Start(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.True(t, report.Succeeded())
	assert.Equal(t, 3, report.TotalTasks)
	assert.Equal(t, 3, report.Completed)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 2, report.FilesWritten)
	assert.Empty(t, report.FailedTasks)
	assert.Positive(t, report.Duration)

	assert.Equal(t, 3, c.Queue().Stats().ByStatus[models.StatusCompleted])
	assert.Equal(t, 0, agents.Stats().Working)
	assert.False(t, c.Stats().Running)
}

func TestConductorRecordsHistory(t *testing.T) {
	agents := pool.New(5, nil)
	bridge := sharedmem.New()
	sink := &recordingSink{}
	c := NewWithOptions(agents, bridge, fastSimulate(), Options{
		Coordination: testCoordination(),
		Sink:         sink,
	})

	plan := testPlan(
		chainTask("t1", "", "cmd/api/main.go"),
		chainTask("t2", "t1", "internal/db/schema.go"),
		chainTask("t3", "t2"),
	)
	require.NoError(t, c.LoadPlan(plan))

	_, err := c.Start(context.Background())
	require.NoError(t, err)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.tasks, 3)
	require.Len(t, sink.files, 2)
	require.Len(t, sink.runs, 1)

	runID := c.RunID()
	require.NotEmpty(t, runID)
	for _, rec := range sink.tasks {
		assert.Equal(t, runID, rec.RunID)
		assert.Equal(t, "test plan", rec.PlanName)
		assert.Equal(t, string(models.StatusCompleted), rec.Status)
	}
	for _, rec := range sink.files {
		assert.Equal(t, runID, rec.RunID)
		assert.Equal(t, string(models.OpCreate), rec.Operation)
		assert.Equal(t, 1, rec.Version)
	}
	run := sink.runs[0]
	assert.Equal(t, runID, run.RunID)
	assert.Equal(t, 3, run.Completed)
	assert.Equal(t, 0, run.Failed)
	assert.Equal(t, 2, run.FilesWritten)
}

func TestConductorAnalyzeProjectUsesPlanner(t *testing.T) {
	agents := pool.New(3, nil)
	plan := testPlan(chainTask("t1", ""))
	c := NewWithOptions(agents, sharedmem.New(), fastSimulate(), Options{
		Planner:      &stubPlanner{plan: plan},
		Coordination: testCoordination(),
	})

	got, err := c.AnalyzeProject(context.Background(), "build a service")
	require.NoError(t, err)
	assert.Same(t, plan, got)
	assert.Same(t, plan, c.Plan())
}

func TestConductorFallsBackOnUnparsablePlan(t *testing.T) {
	agents := pool.New(3, nil)
	c := NewWithOptions(agents, sharedmem.New(), fastSimulate(), Options{
		Planner:      &stubPlanner{err: &planner.ParseError{Reason: "payload is not a plan"}},
		Coordination: testCoordination(),
	})

	plan, err := c.AnalyzeProject(context.Background(), "build a service")
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, models.SourceFallback, plan.Source)
	assert.Len(t, plan.Tasks, 2)
	assert.Same(t, plan, c.Plan())
}

func TestConductorSurfacesGeneratorError(t *testing.T) {
	agents := pool.New(3, nil)
	c := NewWithOptions(agents, sharedmem.New(), fastSimulate(), Options{
		Planner:      &stubPlanner{err: errors.New("capability offline")},
		Coordination: testCoordination(),
	})

	plan, err := c.AnalyzeProject(context.Background(), "build a service")
	require.Error(t, err)
	assert.Nil(t, plan)
	assert.Contains(t, err.Error(), "capability offline")
	assert.Nil(t, c.Plan())
}

func TestConductorScriptedFailureStrandsDependents(t *testing.T) {
	agents := pool.New(5, nil)
	exec := simulate.NewWithOptions(simulate.Options{
		Tick:          time.Millisecond,
		ProgressSteps: 2,
		Failures:      map[string]string{"t2": "boom"},
	})
	c := NewWithOptions(agents, sharedmem.New(), exec, Options{Coordination: testCoordination()})

	plan := testPlan(
		chainTask("t1", ""),
		chainTask("t2", "t1"),
		chainTask("t3", "t2"),
	)
	require.NoError(t, c.LoadPlan(plan))

	report, err := c.Start(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Succeeded())
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, 2, report.Failed)

	reasons := make(map[string]string, len(report.FailedTasks))
	for _, outcome := range report.FailedTasks {
		reasons[outcome.TaskID] = outcome.FailureReason
	}
	assert.Equal(t, "boom", reasons["t2"])
	assert.Equal(t, "dependency t2 failed", reasons["t3"])
}

func TestConductorStopInterruptsRun(t *testing.T) {
	agents := pool.New(5, nil)
	bridge := sharedmem.New()
	slow := simulate.NewWithOptions(simulate.Options{Tick: 50 * time.Millisecond, ProgressSteps: 50})
	c := NewWithOptions(agents, bridge, slow, Options{Coordination: testCoordination()})

	require.NoError(t, c.LoadPlan(testPlan(chainTask("t1", ""), chainTask("t2", ""))))

	reportCh := make(chan *models.RunReport, 1)
	errCh := make(chan error, 1)
	go func() {
		report, err := c.Start(context.Background())
		reportCh <- report
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		return c.Queue().Stats().ByStatus[models.StatusInProgress] >= 1
	}, 2*time.Second, 5*time.Millisecond)

	c.Stop()

	report := <-reportCh
	err := <-errCh
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.False(t, report.Succeeded())

	assert.Empty(t, bridge.Keys())
	assert.Equal(t, 0, agents.Stats().Working)
	assert.False(t, c.Stats().Running)
}

func TestConductorRefillsWithoutWaitingForTick(t *testing.T) {
	agents := pool.New(1, nil)
	cc := testCoordination()
	cc.BatchSize = 1
	cc.Tick = time.Hour
	c := NewWithOptions(agents, sharedmem.New(), fastSimulate(), Options{Coordination: cc})

	require.NoError(t, c.LoadPlan(testPlan(
		chainTask("t1", ""),
		chainTask("t2", ""),
		chainTask("t3", ""),
	)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	report, err := c.Start(ctx)
	require.NoError(t, err)
	assert.True(t, report.Succeeded())
	assert.Equal(t, 3, report.Completed)
}

func TestConductorNeedsHelpHook(t *testing.T) {
	agents := pool.New(3, nil)
	var mu sync.Mutex
	var captured []models.Event

	exec := &scriptExecutor{script: func(ctx context.Context, task *models.Task, handle *sharedmem.Handle, events chan<- models.Event) {
		events <- models.Event{Type: models.EventNeedsHelp, Message: "stuck on schema"}
		events <- models.Event{Type: models.EventComplete, Progress: 100}
	}}
	c := NewWithOptions(agents, sharedmem.New(), exec, Options{
		Coordination: testCoordination(),
		OnNeedsHelp: func(ev models.Event) {
			mu.Lock()
			defer mu.Unlock()
			captured = append(captured, ev)
		},
	})

	require.NoError(t, c.LoadPlan(testPlan(chainTask("t1", ""))))
	report, err := c.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Succeeded())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, captured, 1)
	assert.Equal(t, "t1", captured[0].TaskID)
	assert.Equal(t, "stuck on schema", captured[0].Message)
	assert.NotEmpty(t, captured[0].AgentID)
}

func TestConductorDispatchErrorFailsTask(t *testing.T) {
	agents := pool.New(3, nil)
	c := NewWithOptions(agents, sharedmem.New(), errExecutor{err: errors.New("worker offline")}, Options{
		Coordination: testCoordination(),
	})

	require.NoError(t, c.LoadPlan(testPlan(chainTask("t1", ""))))
	report, err := c.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	task := c.Queue().Task("t1")
	require.NotNil(t, task)
	assert.Equal(t, models.StatusFailed, task.Status)
	assert.Contains(t, task.FailureReason, "dispatch")
	assert.Equal(t, 0, agents.Stats().Working)
}

func TestConductorStartWithoutPlan(t *testing.T) {
	c := New(pool.New(2, nil), sharedmem.New(), fastSimulate())
	_, err := c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no plan")
}

func TestConductorLoadPlanRejectsNil(t *testing.T) {
	c := New(pool.New(2, nil), sharedmem.New(), fastSimulate())
	require.Error(t, c.LoadPlan(nil))
}

func TestNewPanicsOnMissingCollaborators(t *testing.T) {
	agents := pool.New(2, nil)
	bridge := sharedmem.New()
	exec := fastSimulate()

	require.Panics(t, func() { New(nil, bridge, exec) })
	require.Panics(t, func() { New(agents, nil, exec) })
	require.Panics(t, func() { New(agents, bridge, nil) })
}

func TestConductorStatsSnapshot(t *testing.T) {
	agents := pool.New(4, nil)
	c := NewWithOptions(agents, sharedmem.New(), fastSimulate(), Options{Coordination: testCoordination()})

	require.NoError(t, c.LoadPlan(testPlan(chainTask("t1", ""), chainTask("t2", "t1"))))
	_, err := c.Start(context.Background())
	require.NoError(t, err)

	stats := c.Stats()
	assert.Equal(t, "test plan", stats.Plan)
	assert.NotEmpty(t, stats.RunID)
	assert.False(t, stats.Running)
	assert.Equal(t, 2, stats.Queue.ByStatus[models.StatusCompleted])
	assert.Equal(t, 4, stats.Pool.Capacity)
	assert.Nil(t, stats.Coordination)
}
