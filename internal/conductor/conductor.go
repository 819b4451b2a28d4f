// Package conductor drives build plans to completion. A Conductor owns
// the task queue, leases agents from a pool, streams execution events
// from a pluggable Executor, and mirrors run activity into shared
// memory regions so concurrent workers can observe each other. The
// extended variant adds file-level arbitration and critical-path
// weighted dispatch on top of the same loop.
package conductor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Flickinny11/symphony/internal/config"
	"github.com/Flickinny11/symphony/internal/filecoord"
	"github.com/Flickinny11/symphony/internal/history"
	"github.com/Flickinny11/symphony/internal/metrics"
	"github.com/Flickinny11/symphony/internal/models"
	"github.com/Flickinny11/symphony/internal/planner"
	"github.com/Flickinny11/symphony/internal/pool"
	"github.com/Flickinny11/symphony/internal/queue"
	"github.com/Flickinny11/symphony/internal/sharedmem"
)

// Executor runs one task on behalf of an agent and streams lifecycle
// events back until the channel closes. Implementations must close the
// channel after the terminal event, and must stop promptly when ctx is
// canceled.
type Executor interface {
	Execute(ctx context.Context, task *models.Task, handle *sharedmem.Handle) (<-chan models.Event, error)
}

// Logger is the logging surface the conductor drives during a run.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	LogPlanStart(plan *models.BuildPlan)
	LogTaskOutcome(outcome models.TaskOutcome) error
	LogRunSummary(report *models.RunReport)
	LogProgress(tasks []*models.Task)
}

type nopLogger struct{}

func (nopLogger) Debugf(format string, args ...interface{})       {}
func (nopLogger) Infof(format string, args ...interface{})        {}
func (nopLogger) Warnf(format string, args ...interface{})        {}
func (nopLogger) Errorf(format string, args ...interface{})       {}
func (nopLogger) LogPlanStart(plan *models.BuildPlan)             {}
func (nopLogger) LogTaskOutcome(outcome models.TaskOutcome) error { return nil }
func (nopLogger) LogRunSummary(report *models.RunReport)          {}
func (nopLogger) LogProgress(tasks []*models.Task)                {}

const (
	// defaultRegionSize sizes per-agent and feed regions when the
	// caller does not override it.
	defaultRegionSize = 64 << 10
	// defaultSeedTokens floors the handoff seed budget.
	defaultSeedTokens = 2048
	// criticalWeightUnit converts outstanding critical-path estimate
	// into extra dispatch slots.
	criticalWeightUnit = 30 * time.Minute

	// fileFeedKey is the shared region applied file changes are
	// published to.
	fileFeedKey = "coord:changes"
	// coordStatsKey is the shared region coordination snapshots are
	// published to.
	coordStatsKey = "coord:stats"
)

// agentRegion names the private scratch region for one agent.
func agentRegion(agentID string) string {
	return "agent:" + agentID
}

// Options tune conductor construction. The zero value is usable; every
// field has a working default.
type Options struct {
	// Planner turns free-text requirements into build plans; nil makes
	// AnalyzeProject fall back to a heuristic plan.
	Planner planner.Planner
	// Logger receives run progress; nil discards it.
	Logger Logger
	// Sink receives history records; nil discards them.
	Sink history.Sink
	// Metrics receives run instrumentation; nil disables it.
	Metrics *metrics.Metrics
	// Coordination overrides loop timing; zero fields take defaults.
	Coordination config.CoordinationConfig
	// RegionSize sizes shared memory regions; zero selects the default.
	RegionSize int
	// OnNeedsHelp is invoked for needs_help events; nil logs them.
	OnNeedsHelp func(models.Event)
}

func normalizeCoordination(cc config.CoordinationConfig) config.CoordinationConfig {
	def := config.DefaultConfig().Coordination
	if cc.BatchSize <= 0 {
		cc.BatchSize = def.BatchSize
	}
	if cc.Tick <= 0 {
		cc.Tick = def.Tick
	}
	if cc.ExtendedTick <= 0 {
		cc.ExtendedTick = def.ExtendedTick
	}
	if cc.FileTick <= 0 {
		cc.FileTick = def.FileTick
	}
	if cc.LockTimeout <= 0 {
		cc.LockTimeout = def.LockTimeout
	}
	if cc.HandoffGrace <= 0 {
		cc.HandoffGrace = def.HandoffGrace
	}
	if cc.ContextThreshold <= 0 {
		cc.ContextThreshold = def.ContextThreshold
	}
	return cc
}

// Conductor coordinates a pool of agents through one build plan at a
// time. It is safe for concurrent use; a single run is active at once.
type Conductor struct {
	queue    *queue.TaskQueue
	pool     *pool.AgentPool
	bridge   *sharedmem.Bridge
	executor Executor
	planner  planner.Planner
	arbiter  *filecoord.Coordinator
	log      Logger
	sink     history.Sink
	metrics  *metrics.Metrics

	onNeedsHelp func(models.Event)

	batch      int
	tick       time.Duration
	fileTick   time.Duration
	grace      time.Duration
	threshold  float64
	regionSize int
	weighted   bool

	mu           sync.Mutex
	plan         *models.BuildPlan
	running      bool
	cancel       context.CancelFunc
	done         chan struct{}
	runID        string
	taskAgent    map[string]string
	regions      map[string]bool
	fileVersions map[string]int
	filesWritten int
	handoffs     int

	aux  sync.WaitGroup
	kick chan struct{}
}

// New creates a conductor with default options.
func New(agentPool *pool.AgentPool, bridge *sharedmem.Bridge, exec Executor) *Conductor {
	return NewWithOptions(agentPool, bridge, exec, Options{})
}

// NewWithOptions creates a conductor. The pool, bridge and executor are
// required; everything in opts is optional.
func NewWithOptions(agentPool *pool.AgentPool, bridge *sharedmem.Bridge, exec Executor, opts Options) *Conductor {
	if agentPool == nil {
		panic("conductor: nil agent pool")
	}
	if bridge == nil {
		panic("conductor: nil shared memory bridge")
	}
	if exec == nil {
		panic("conductor: nil executor")
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.Sink == nil {
		opts.Sink = history.NoopSink{}
	}
	if opts.RegionSize <= 0 {
		opts.RegionSize = defaultRegionSize
	}
	cc := normalizeCoordination(opts.Coordination)

	return &Conductor{
		queue:        queue.New(),
		pool:         agentPool,
		bridge:       bridge,
		executor:     exec,
		planner:      opts.Planner,
		log:          opts.Logger,
		sink:         opts.Sink,
		metrics:      opts.Metrics,
		onNeedsHelp:  opts.OnNeedsHelp,
		batch:        cc.BatchSize,
		tick:         cc.Tick,
		grace:        cc.HandoffGrace,
		threshold:    cc.ContextThreshold,
		regionSize:   opts.RegionSize,
		taskAgent:    make(map[string]string),
		regions:      make(map[string]bool),
		fileVersions: make(map[string]int),
		kick:         make(chan struct{}, 1),
	}
}

// AnalyzeProject derives a build plan from free-text requirements and
// loads it, replacing any previously loaded plan.
func (c *Conductor) AnalyzeProject(ctx context.Context, requirements string) (*models.BuildPlan, error) {
	plan, err := c.planProject(ctx, requirements)
	if err != nil {
		return nil, err
	}
	if err := c.LoadPlan(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (c *Conductor) planProject(ctx context.Context, requirements string) (*models.BuildPlan, error) {
	if c.planner == nil {
		c.log.Debugf("no planner configured, using fallback plan")
		return planner.FallbackPlan(requirements), nil
	}
	plan, err := c.planner.Plan(ctx, requirements)
	if err == nil {
		return plan, nil
	}
	if planner.IsParseError(err) {
		c.log.Warnf("plan output unusable (%v), falling back to heuristic plan", err)
		return planner.FallbackPlan(requirements), nil
	}
	return nil, fmt.Errorf("analyze project: %w", err)
}

// LoadPlan validates the plan and queues its tasks. It fails if a run
// is in progress.
func (c *Conductor) LoadPlan(plan *models.BuildPlan) error {
	if plan == nil {
		return errors.New("conductor: nil plan")
	}
	if err := plan.Validate(); err != nil {
		return err
	}

	q := queue.New()
	if err := q.AddTasks(plan.Tasks); err != nil {
		return err
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("conductor: run in progress")
	}
	c.queue = q
	c.plan = plan
	c.fileVersions = make(map[string]int)
	c.mu.Unlock()

	if c.arbiter != nil {
		c.arbiter.AnalyzeFileDependencies(q.Tasks())
	}
	c.log.Infof("loaded plan %q with %d tasks", plan.Name, len(plan.Tasks))
	return nil
}

// Start drives the loaded plan until every task reaches a terminal
// status or ctx is canceled. It returns the run report either way; the
// error is non-nil only when the run was interrupted.
func (c *Conductor) Start(ctx context.Context) (*models.RunReport, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil, errors.New("conductor: already running")
	}
	plan := c.plan
	if plan == nil {
		c.mu.Unlock()
		return nil, errors.New("conductor: no plan loaded")
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	started := time.Now()
	c.running = true
	c.cancel = cancel
	c.done = done
	c.runID = uuid.NewString()
	c.filesWritten = 0
	c.handoffs = 0
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.running = false
		c.cancel = nil
		c.mu.Unlock()
		close(done)
	}()

	c.log.Infof("run %s: plan %q, %d tasks, %d agent slots", c.currentRunID(), plan.Name, len(plan.Tasks), c.pool.Capacity())
	c.log.LogPlanStart(plan)

	if err := c.bridge.Create(fileFeedKey, c.regionSize); err != nil {
		return nil, fmt.Errorf("create change feed region: %w", err)
	}
	c.trackRegion(fileFeedKey)
	if c.arbiter != nil {
		if err := c.bridge.Create(coordStatsKey, c.regionSize); err != nil {
			return nil, fmt.Errorf("create coordination region: %w", err)
		}
		c.trackRegion(coordStatsKey)
	}

	g := new(errgroup.Group)
	g.SetLimit(c.pool.Capacity())

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	var fileCh <-chan time.Time
	if c.arbiter != nil && c.fileTick > 0 {
		fileTicker := time.NewTicker(c.fileTick)
		defer fileTicker.Stop()
		fileCh = fileTicker.C
	}

loop:
	for {
		dispatched := c.dispatchReady(runCtx, g)
		if !c.queue.Pending() {
			break
		}
		if dispatched == 0 && c.inFlight() == 0 && c.failStranded(runCtx) > 0 {
			continue
		}
		select {
		case <-runCtx.Done():
			break loop
		case <-c.kick:
		case <-ticker.C:
			c.log.LogProgress(c.queue.Tasks())
		case <-fileCh:
			c.fileCoordinationTick(runCtx)
		}
	}

	if err := g.Wait(); err != nil {
		c.log.Errorf("worker group: %v", err)
	}
	c.aux.Wait()

	runErr := runCtx.Err()
	c.releaseLeftovers()

	report := c.buildReport(plan, time.Since(started))
	rec := &history.RunRecord{
		RunID:             c.currentRunID(),
		PlanName:          plan.Name,
		TotalTasks:        report.TotalTasks,
		Completed:         report.Completed,
		Failed:            report.Failed,
		FilesWritten:      report.FilesWritten,
		ConflictsResolved: report.ConflictsResolved,
		Handoffs:          report.Handoffs,
		DurationSecs:      int64(report.Duration.Seconds()),
		Timestamp:         time.Now(),
	}
	if err := c.sink.RecordRun(context.WithoutCancel(ctx), rec); err != nil {
		c.log.Warnf("record run: %v", err)
	}
	c.log.LogRunSummary(report)
	return report, runErr
}

// Stop interrupts the active run and blocks until it has wound down,
// then clears the run's shared memory regions. Stopping an idle
// conductor is a no-op.
func (c *Conductor) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	c.clearRegions()
}

// dispatchReady pulls ready tasks up to the current budget and hands
// each one to a leased agent. It returns how many were dispatched.
func (c *Conductor) dispatchReady(ctx context.Context, g *errgroup.Group) int {
	if ctx.Err() != nil {
		return 0
	}
	budget := c.dispatchBudget()
	if budget <= 0 {
		return 0
	}
	tasks := c.queue.ParallelTasks(budget)
	for _, task := range tasks {
		c.dispatch(ctx, g, task)
	}
	return len(tasks)
}

// dispatchBudget is the batch size, raised by outstanding critical-path
// estimate when weighted dispatch is on, and capped by free pool slots
// so ready tasks are never pulled without an agent to run them.
func (c *Conductor) dispatchBudget() int {
	budget := c.batch
	if c.weighted {
		if path, err := c.queue.CriticalPath(); err == nil {
			var remaining time.Duration
			for _, t := range path {
				if t.Status == models.StatusPending {
					remaining += t.EstimatedTime
				}
			}
			extra := int(remaining / criticalWeightUnit)
			if extra > c.batch {
				extra = c.batch
			}
			budget += extra
		}
	}
	if idle := c.pool.IdleSlots(); budget > idle {
		budget = idle
	}
	return budget
}

func (c *Conductor) dispatch(ctx context.Context, g *errgroup.Group, task *models.Task) {
	waitStart := time.Now()
	agent, err := c.pool.Acquire(ctx, task.Category)
	if err != nil {
		c.log.Warnf("task %s: no %s agent: %v", task.ID, task.Category, err)
		c.finishTask(ctx, models.Event{
			Type:    models.EventError,
			TaskID:  task.ID,
			Message: fmt.Sprintf("agent allocation: %v", err),
		})
		return
	}
	c.metrics.ObserveDispatchLatency(time.Since(waitStart))
	c.metrics.IncActiveAgents()

	if err := c.queue.AttachAgent(task.ID, agent.ID); err != nil {
		c.log.Debugf("attach %s to %s: %v", agent.ID, task.ID, err)
	}
	if err := c.pool.SetCurrentTask(agent.ID, task.ID); err != nil {
		c.log.Debugf("set current task: %v", err)
	}

	key := agentRegion(agent.ID)
	if err := c.bridge.Create(key, c.regionSize); err != nil {
		c.log.Warnf("create region for %s: %v", agent.ID, err)
	} else {
		c.trackRegion(key)
	}

	c.mu.Lock()
	c.taskAgent[task.ID] = agent.ID
	c.mu.Unlock()

	handle := c.bridge.Handle(key, agent.ID, task.ID)
	c.log.Infof("task %s (%s) -> agent %s", task.ID, task.Title, agent.ID)

	g.Go(func() error {
		c.runTask(ctx, task, agent.ID, handle)
		return nil
	})
}

// Stats is a point-in-time snapshot across the conductor's subsystems.
type Stats struct {
	Plan              string
	RunID             string
	Running           bool
	Queue             queue.Stats
	Pool              pool.Stats
	Memory            sharedmem.Stats
	FilesWritten      int
	ConflictsResolved int
	Handoffs          int
	Coordination      *filecoord.Stats
}

// Stats reports the current run state. It is safe to call at any time,
// including mid-run.
func (c *Conductor) Stats() Stats {
	c.mu.Lock()
	s := Stats{
		RunID:        c.runID,
		Running:      c.running,
		FilesWritten: c.filesWritten,
		Handoffs:     c.handoffs,
	}
	if c.plan != nil {
		s.Plan = c.plan.Name
	}
	q := c.queue
	c.mu.Unlock()

	s.Queue = q.Stats()
	s.Pool = c.pool.Stats()
	s.Memory = c.bridge.Stats()
	if c.arbiter != nil {
		cs := c.arbiter.Stats()
		s.Coordination = &cs
		s.ConflictsResolved = cs.ConflictsResolved
	}
	return s
}

func (c *Conductor) buildReport(plan *models.BuildPlan, elapsed time.Duration) *models.RunReport {
	report := &models.RunReport{
		PlanID:   plan.ID,
		PlanName: plan.Name,
		Duration: elapsed,
	}
	for _, t := range c.queue.Tasks() {
		report.TotalTasks++
		switch t.Status {
		case models.StatusCompleted:
			report.Completed++
		case models.StatusFailed:
			report.Failed++
			report.FailedTasks = append(report.FailedTasks, models.TaskOutcome{
				TaskID:        t.ID,
				Title:         t.Title,
				Category:      t.Category,
				AgentID:       t.AssignedAgent,
				Status:        t.Status,
				Duration:      t.Duration(),
				FailureReason: t.FailureReason,
			})
		}
	}

	c.mu.Lock()
	report.FilesWritten = c.filesWritten
	report.Handoffs = c.handoffs
	c.mu.Unlock()
	if c.arbiter != nil {
		report.ConflictsResolved = c.arbiter.Stats().ConflictsResolved
	}
	return report
}

// releaseLeftovers frees agents still attached to tasks after the loop
// exits, which happens when a run is interrupted mid-flight.
func (c *Conductor) releaseLeftovers() {
	c.mu.Lock()
	leftovers := make(map[string]string, len(c.taskAgent))
	for taskID, agentID := range c.taskAgent {
		leftovers[taskID] = agentID
	}
	c.taskAgent = make(map[string]string)
	c.mu.Unlock()

	for taskID, agentID := range leftovers {
		if err := c.pool.Release(agentID); err != nil {
			c.log.Debugf("release %s: %v", agentID, err)
			continue
		}
		c.metrics.DecActiveAgents()
		c.log.Debugf("released agent %s from interrupted task %s", agentID, taskID)
	}
}

func (c *Conductor) inFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.taskAgent)
}

// kickDispatch wakes the run loop without waiting for the next tick.
func (c *Conductor) kickDispatch() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

func (c *Conductor) trackRegion(key string) {
	c.mu.Lock()
	c.regions[key] = true
	c.mu.Unlock()
}

func (c *Conductor) clearRegions() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.regions))
	for key := range c.regions {
		keys = append(keys, key)
	}
	c.regions = make(map[string]bool)
	c.mu.Unlock()

	for _, key := range keys {
		c.bridge.Remove(key)
	}
}

func (c *Conductor) currentRunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

func (c *Conductor) planName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.plan == nil {
		return ""
	}
	return c.plan.Name
}

// Queue exposes the underlying task queue for inspection.
func (c *Conductor) Queue() *queue.TaskQueue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue
}

// Plan returns the currently loaded plan, or nil.
func (c *Conductor) Plan() *models.BuildPlan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan
}

// RunID returns the identifier of the current or most recent run.
func (c *Conductor) RunID() string {
	return c.currentRunID()
}
