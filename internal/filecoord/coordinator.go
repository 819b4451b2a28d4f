// Package filecoord arbitrates overlapping file edits from concurrent
// agents. It tracks an in-memory state per file, serializes same-region
// writes through a range lock, detects overlap conflicts, and routes
// them through a pluggable resolution strategy before applying.
package filecoord

import (
	"sort"
	"sync"
	"time"

	"github.com/Flickinny11/symphony/internal/models"
	"github.com/Flickinny11/symphony/internal/queue"
)

// DefaultLockTimeout bounds how long CoordinateEdit waits for a region
// lock before failing with LockTimeoutError.
const DefaultLockTimeout = 5 * time.Second

// Logger is the minimal logging surface the coordinator needs.
type Logger interface {
	Warnf(format string, args ...interface{})
}

// Options tune coordinator construction.
type Options struct {
	// Resolver arbitrates conflicting edits; nil selects
	// LineShiftStrategy.
	Resolver ResolutionStrategy
	// LockTimeout bounds region-lock waits; zero selects the default.
	LockTimeout time.Duration
	// Logger receives high-severity resolution warnings; nil is fine.
	Logger Logger
}

// Change describes one applied operation, delivered to subscribers
// after the region lock is released.
type Change struct {
	// Op is the operation as applied, after any resolution adjustment.
	Op models.FileOperation
	// State is the file snapshot after the apply.
	State models.FileState
	// Resolved counts the conflicts resolved for this apply.
	Resolved int
	// Conflicts holds the resolved conflicts themselves, nil for a
	// conflict-free apply.
	Conflicts []models.Conflict
}

// HistoryEntry records one applied operation.
type HistoryEntry struct {
	Op        models.FileOperation
	Version   int64
	Conflicts int
	Strategy  string
	Summary   string
	Applied   time.Time
}

type listener struct {
	id int64
	fn func(Change)
}

// Coordinator owns per-file state, the dependency analysis derived from
// tasks, and the conflict arbitration pipeline.
type Coordinator struct {
	mu      sync.Mutex
	files   map[string]*models.FileState
	active  map[string]*models.FileOperation
	history []HistoryEntry
	deps    map[string][]string
	tasks   map[string]*models.Task

	subs    []listener
	nextSub int64

	locks    *RangeLockManager
	resolver ResolutionStrategy
	lockWait time.Duration
	logger   Logger

	totalOps int
	resolved int
	now      func() time.Time
}

// New creates a coordinator with the line-shift resolver and default
// lock timeout.
func New() *Coordinator {
	return NewWithOptions(Options{})
}

// NewWithOptions creates a coordinator.
func NewWithOptions(opts Options) *Coordinator {
	if opts.Resolver == nil {
		opts.Resolver = LineShiftStrategy{}
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	return &Coordinator{
		files:    make(map[string]*models.FileState),
		active:   make(map[string]*models.FileOperation),
		deps:     make(map[string][]string),
		tasks:    make(map[string]*models.Task),
		locks:    NewRangeLockManager(),
		resolver: opts.Resolver,
		lockWait: opts.LockTimeout,
		logger:   opts.Logger,
		now:      time.Now,
	}
}

// AnalyzeFileDependencies derives a file-level dependency map from
// task-level edges: every file of a task depends on every file of the
// tasks it depends on. The task set is retained for CriticalPath and
// ParallelGroups. Re-analysis replaces the previous graph.
func (c *Coordinator) AnalyzeFileDependencies(tasks []*models.Task) map[string][]string {
	byID := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t.Clone()
	}

	deps := make(map[string][]string)
	seen := make(map[string]map[string]bool)
	for _, t := range byID {
		for _, f := range t.Files {
			if _, ok := deps[f]; !ok {
				deps[f] = nil
				seen[f] = make(map[string]bool)
			}
		}
		for _, depID := range t.Dependencies {
			dep, ok := byID[depID]
			if !ok {
				continue
			}
			for _, f := range t.Files {
				for _, df := range dep.Files {
					if df == f || seen[f][df] {
						continue
					}
					seen[f][df] = true
					deps[f] = append(deps[f], df)
				}
			}
		}
	}
	for f := range deps {
		sort.Strings(deps[f])
	}

	c.mu.Lock()
	c.tasks = byID
	c.deps = deps
	c.mu.Unlock()

	return copyDeps(deps)
}

// FileDependencies returns the analyzed dependency edges for one file.
func (c *Coordinator) FileDependencies(path string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.deps[path]...)
}

// CriticalPath returns the longest dependency chain across the analyzed
// tasks. A cyclic graph fails with queue.CycleError.
func (c *Coordinator) CriticalPath() ([]*models.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return queue.CriticalPathOf(c.tasks)
}

// ParallelGroups stratifies the analyzed tasks by dependency level:
// level 0 holds tasks with no dependencies inside the set, level n
// tasks whose deepest dependency sits at level n-1. Each level is a
// group that can run in parallel. A cyclic graph fails with
// queue.CycleError.
func (c *Coordinator) ParallelGroups() ([][]*models.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.tasks))
	for id := range c.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	level := make(map[string]int, len(ids))
	remaining := make(map[string]bool, len(ids))
	for _, id := range ids {
		remaining[id] = true
	}

	maxLevel := -1
	for len(remaining) > 0 {
		progressed := false
		for _, id := range ids {
			if !remaining[id] {
				continue
			}
			lvl, ok := c.levelFor(id, level)
			if !ok {
				continue
			}
			level[id] = lvl
			if lvl > maxLevel {
				maxLevel = lvl
			}
			delete(remaining, id)
			progressed = true
		}
		if !progressed {
			stuck := make([]string, 0, len(remaining))
			for id := range remaining {
				stuck = append(stuck, id)
			}
			sort.Strings(stuck)
			return nil, &queue.CycleError{Err: unlevelableError(stuck)}
		}
	}

	groups := make([][]*models.Task, maxLevel+1)
	for _, id := range ids {
		lvl := level[id]
		groups[lvl] = append(groups[lvl], c.tasks[id].Clone())
	}
	return groups, nil
}

// levelFor computes a task's dependency level, or reports false while
// any in-set dependency is still unleveled. Dependencies outside the
// analyzed set do not gate leveling.
func (c *Coordinator) levelFor(id string, level map[string]int) (int, bool) {
	max := -1
	for _, dep := range c.tasks[id].Dependencies {
		if _, known := c.tasks[dep]; !known {
			continue
		}
		lvl, done := level[dep]
		if !done {
			return 0, false
		}
		if lvl > max {
			max = lvl
		}
	}
	return max + 1, true
}

// Subscribe registers fn for change notifications on every applied
// operation and returns the matching unsubscribe function. Callbacks
// run on the editing goroutine, so they must be quick.
func (c *Coordinator) Subscribe(fn func(Change)) func() {
	c.mu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, listener{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.subs {
			if l.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				break
			}
		}
	}
}

// FileState returns a snapshot of one tracked file, or nil when the
// coordinator has never applied an operation to it.
func (c *Coordinator) FileState(path string) *models.FileState {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.files[path]
	if !ok {
		return nil
	}
	snap := *state
	return &snap
}

// History returns the applied-operation log, oldest first.
func (c *Coordinator) History() []HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]HistoryEntry(nil), c.history...)
}

// LastApplied returns the most recent history entry for the given
// operation ID, scanning newest first.
func (c *Coordinator) LastApplied(opID string) (HistoryEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.history) - 1; i >= 0; i-- {
		if c.history[i].Op.ID == opID {
			return c.history[i], true
		}
	}
	return HistoryEntry{}, false
}

// Stats is a point-in-time snapshot of coordinator activity.
type Stats struct {
	Files             int
	ActiveOperations  int
	TotalOperations   int
	ConflictsResolved int
	ActiveLocks       int
}

// Stats counts tracked files, in-flight operations, applied operations,
// resolved conflicts and held region locks.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Files:             len(c.files),
		ActiveOperations:  len(c.active),
		TotalOperations:   c.totalOps,
		ConflictsResolved: c.resolved,
		ActiveLocks:       c.locks.ActiveLocks(),
	}
}

func copyDeps(deps map[string][]string) map[string][]string {
	out := make(map[string][]string, len(deps))
	for k, v := range deps {
		out[k] = append([]string(nil), v...)
	}
	return out
}
