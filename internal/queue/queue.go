package queue

import (
	"sync"
	"time"

	"github.com/Flickinny11/symphony/internal/models"
)

// TaskQueue holds the tasks of a build plan and resolves which of them
// are ready to run. A task is ready while it is pending and every task
// it depends on has completed. Ready tasks are handed out highest
// priority first, ties broken by smaller time estimate.
//
// The queue owns its task records: callers receive clones and feed
// state changes back through the queue's methods.
type TaskQueue struct {
	mu    sync.Mutex
	tasks map[string]*models.Task
	order []string // insertion order, the final tie-breaker
	now   func() time.Time
}

// New creates an empty task queue.
func New() *TaskQueue {
	return &TaskQueue{
		tasks: make(map[string]*models.Task),
		now:   time.Now,
	}
}

// AddTask validates and enqueues a single task. Duplicate ids are
// rejected with ErrDuplicateTask rather than silently overwritten.
// Dependencies may reference tasks that have not been added yet; the
// task simply stays gated until they arrive and complete.
func (q *TaskQueue) AddTask(task *models.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.addLocked(task)
}

// AddTasks enqueues a batch atomically: the whole batch is validated
// (including duplicates within the batch) before any task is added.
func (q *TaskQueue) AddTasks(tasks []*models.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	seen := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		if err := task.Validate(); err != nil {
			return err
		}
		if _, exists := q.tasks[task.ID]; exists {
			return NewDuplicateTaskError(task.ID)
		}
		if seen[task.ID] {
			return NewDuplicateTaskError(task.ID)
		}
		seen[task.ID] = true
	}
	for _, task := range tasks {
		if err := q.addLocked(task); err != nil {
			return err
		}
	}
	return nil
}

func (q *TaskQueue) addLocked(task *models.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	if _, exists := q.tasks[task.ID]; exists {
		return NewDuplicateTaskError(task.ID)
	}

	t := task.Clone()
	t.Status = models.StatusPending
	t.Progress = 0
	if t.CreatedAt.IsZero() {
		t.CreatedAt = q.now()
	}
	q.tasks[t.ID] = t
	q.order = append(q.order, t.ID)
	return nil
}

// NextTask returns the best ready task and marks it assigned, or
// (nil, false) when nothing qualifies. It never blocks.
func (q *TaskQueue) NextTask() (*models.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.nextLocked()
}

func (q *TaskQueue) nextLocked() (*models.Task, bool) {
	var best *models.Task
	for _, id := range q.order {
		t := q.tasks[id]
		if t.Status != models.StatusPending || !q.depsCompletedLocked(t) {
			continue
		}
		if best == nil || readyBefore(t, best) {
			best = t
		}
	}
	if best == nil {
		return nil, false
	}
	best.Status = models.StatusAssigned
	return best.Clone(), true
}

// readyBefore reports whether a should be scheduled before b:
// higher priority first, then smaller estimate. Insertion order wins
// remaining ties because candidates are scanned in insertion order.
func readyBefore(a, b *models.Task) bool {
	if a.Priority.Rank() != b.Priority.Rank() {
		return a.Priority.Rank() < b.Priority.Rank()
	}
	return a.EstimatedTime < b.EstimatedTime
}

func (q *TaskQueue) depsCompletedLocked(t *models.Task) bool {
	for _, dep := range t.Dependencies {
		d, ok := q.tasks[dep]
		if !ok || d.Status != models.StatusCompleted {
			return false
		}
	}
	return true
}

// ParallelTasks returns up to max ready tasks, each marked assigned.
// It stops early once no further task qualifies.
func (q *TaskQueue) ParallelTasks(max int) []*models.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	var batch []*models.Task
	for len(batch) < max {
		t, ok := q.nextLocked()
		if !ok {
			break
		}
		batch = append(batch, t)
	}
	return batch
}

// AttachAgent records which agent a task was handed to. The task must
// already be assigned.
func (q *TaskQueue) AttachAgent(taskID, agentID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[taskID]
	if !ok {
		return NewUnknownTaskError(taskID)
	}
	if t.Status != models.StatusAssigned && t.Status != models.StatusInProgress {
		return NewTransitionError(taskID, t.Status, t.Status)
	}
	t.AssignedAgent = agentID
	return nil
}

// UpdateProgress clamps progress into [0,100]. The first update moves
// an assigned task to in_progress and stamps its start time.
func (q *TaskQueue) UpdateProgress(taskID string, progress int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[taskID]
	if !ok {
		return NewUnknownTaskError(taskID)
	}
	if t.Status.Terminal() {
		return NewTransitionError(taskID, t.Status, models.StatusInProgress)
	}
	if t.Status == models.StatusPending {
		return NewTransitionError(taskID, t.Status, models.StatusInProgress)
	}

	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	t.Progress = progress

	if t.Status == models.StatusAssigned {
		t.Status = models.StatusInProgress
		started := q.now()
		t.StartedAt = &started
	}
	return nil
}

// CompleteTask is the terminal success transition.
func (q *TaskQueue) CompleteTask(taskID string) error {
	return q.finish(taskID, models.StatusCompleted, "")
}

// FailTask is the terminal failure transition. The queue records the
// reason and does not retry; retry policy belongs to the caller.
func (q *TaskQueue) FailTask(taskID, reason string) error {
	return q.finish(taskID, models.StatusFailed, reason)
}

func (q *TaskQueue) finish(taskID string, status models.TaskStatus, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[taskID]
	if !ok {
		return NewUnknownTaskError(taskID)
	}
	if !t.Status.CanTransition(status) {
		return NewTransitionError(taskID, t.Status, status)
	}

	t.Status = status
	t.FailureReason = reason
	if status == models.StatusCompleted {
		t.Progress = 100
	}
	completed := q.now()
	t.CompletedAt = &completed
	return nil
}

// Task returns a clone of the task with the given id, or nil.
func (q *TaskQueue) Task(taskID string) *models.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t, ok := q.tasks[taskID]; ok {
		return t.Clone()
	}
	return nil
}

// Tasks returns clones of all tasks in insertion order.
func (q *TaskQueue) Tasks() []*models.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*models.Task, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.tasks[id].Clone())
	}
	return out
}

// Pending reports whether any task has not yet reached a terminal
// status.
func (q *TaskQueue) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.tasks {
		if !t.Status.Terminal() {
			return true
		}
	}
	return false
}

// Stats is a point-in-time snapshot of queue composition.
type Stats struct {
	Total             int
	ByStatus          map[models.TaskStatus]int
	AverageDuration   time.Duration // mean over tasks with measured durations
	RemainingEstimate time.Duration // sum of estimates over pending tasks
}

// Stats computes counts by status, the mean measured duration, and the
// estimated time still queued.
func (q *TaskQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Stats{
		Total:    len(q.tasks),
		ByStatus: make(map[models.TaskStatus]int),
	}

	var measured int
	var total time.Duration
	for _, t := range q.tasks {
		s.ByStatus[t.Status]++
		if d := t.Duration(); d > 0 {
			measured++
			total += d
		}
		if t.Status == models.StatusPending {
			s.RemainingEstimate += t.EstimatedTime
		}
	}
	if measured > 0 {
		s.AverageDuration = total / time.Duration(measured)
	}
	return s
}
