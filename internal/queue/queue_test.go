package queue

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Flickinny11/symphony/internal/models"
)

func newTask(id string, priority models.Priority, estimate time.Duration, deps ...string) *models.Task {
	return &models.Task{
		ID:            id,
		Title:         "Task " + id,
		Category:      models.CategoryBackend,
		Priority:      priority,
		EstimatedTime: estimate,
		Dependencies:  deps,
	}
}

func TestTaskQueue_AddTask(t *testing.T) {
	t.Run("rejects duplicate ids", func(t *testing.T) {
		q := New()
		require.NoError(t, q.AddTask(newTask("a", models.PriorityNormal, time.Minute)))

		err := q.AddTask(newTask("a", models.PriorityHigh, time.Minute))
		require.Error(t, err)
		assert.True(t, IsDuplicateTask(err))
		assert.True(t, models.IsValidationError(err))
	})

	t.Run("rejects invalid tasks", func(t *testing.T) {
		q := New()
		err := q.AddTask(&models.Task{ID: "x", Title: "no category", Category: "nope"})
		require.Error(t, err)
		assert.True(t, models.IsValidationError(err))
	})

	t.Run("resets caller-supplied status", func(t *testing.T) {
		q := New()
		task := newTask("a", models.PriorityNormal, time.Minute)
		task.Status = models.StatusCompleted
		task.Progress = 80
		require.NoError(t, q.AddTask(task))

		got := q.Task("a")
		assert.Equal(t, models.StatusPending, got.Status)
		assert.Equal(t, 0, got.Progress)
	})
}

func TestTaskQueue_AddTasks_BatchIsAtomic(t *testing.T) {
	q := New()
	require.NoError(t, q.AddTask(newTask("a", models.PriorityNormal, time.Minute)))

	err := q.AddTasks([]*models.Task{
		newTask("b", models.PriorityNormal, time.Minute),
		newTask("a", models.PriorityNormal, time.Minute), // collides with existing
	})
	require.Error(t, err)

	// Nothing from the failed batch may have landed.
	assert.Nil(t, q.Task("b"))
	assert.Equal(t, 1, q.Stats().Total)
}

func TestTaskQueue_NextTask_DependencyGating(t *testing.T) {
	q := New()
	require.NoError(t, q.AddTasks([]*models.Task{
		newTask("dep", models.PriorityLow, time.Minute),
		newTask("blocked", models.PriorityCritical, time.Minute, "dep"),
	}))

	// blocked outranks dep but must not surface while dep is incomplete.
	first, ok := q.NextTask()
	require.True(t, ok)
	assert.Equal(t, "dep", first.ID)

	_, ok = q.NextTask()
	assert.False(t, ok, "blocked must stay gated while dep is running")

	require.NoError(t, q.UpdateProgress("dep", 50))
	require.NoError(t, q.CompleteTask("dep"))

	next, ok := q.NextTask()
	require.True(t, ok)
	assert.Equal(t, "blocked", next.ID)
}

func TestTaskQueue_NextTask_UnknownDependencyGates(t *testing.T) {
	q := New()
	require.NoError(t, q.AddTask(newTask("late", models.PriorityHigh, time.Minute, "not-yet-added")))

	_, ok := q.NextTask()
	assert.False(t, ok, "a dependency that has not been added cannot be completed")
}

func TestTaskQueue_NextTask_PriorityOrdering(t *testing.T) {
	q := New()
	require.NoError(t, q.AddTasks([]*models.Task{
		newTask("low", models.PriorityLow, time.Minute),
		newTask("critical", models.PriorityCritical, time.Hour),
		newTask("normal", models.PriorityNormal, time.Minute),
		newTask("high", models.PriorityHigh, time.Minute),
	}))

	var got []string
	for {
		task, ok := q.NextTask()
		if !ok {
			break
		}
		got = append(got, task.ID)
	}
	assert.Equal(t, []string{"critical", "high", "normal", "low"}, got)
}

func TestTaskQueue_NextTask_TiesBreakOnEstimate(t *testing.T) {
	q := New()
	require.NoError(t, q.AddTasks([]*models.Task{
		newTask("slow", models.PriorityHigh, 30*time.Minute),
		newTask("fast", models.PriorityHigh, 5*time.Minute),
	}))

	first, ok := q.NextTask()
	require.True(t, ok)
	assert.Equal(t, "fast", first.ID)
}

func TestTaskQueue_ParallelTasks(t *testing.T) {
	t.Run("independent pair before joined successor", func(t *testing.T) {
		q := New()
		require.NoError(t, q.AddTasks([]*models.Task{
			newTask("a", models.PriorityNormal, time.Minute),
			newTask("b", models.PriorityNormal, time.Minute),
			newTask("c", models.PriorityNormal, time.Minute, "a", "b"),
		}))

		batch := q.ParallelTasks(5)
		ids := make([]string, len(batch))
		for i, task := range batch {
			ids[i] = task.ID
		}
		assert.ElementsMatch(t, []string{"a", "b"}, ids)

		// c stays gated until both dependencies complete.
		require.NoError(t, q.CompleteTask("a"))
		_, ok := q.NextTask()
		assert.False(t, ok)

		require.NoError(t, q.CompleteTask("b"))
		next, ok := q.NextTask()
		require.True(t, ok)
		assert.Equal(t, "c", next.ID)
	})

	t.Run("respects max", func(t *testing.T) {
		q := New()
		require.NoError(t, q.AddTasks([]*models.Task{
			newTask("a", models.PriorityNormal, time.Minute),
			newTask("b", models.PriorityNormal, time.Minute),
			newTask("c", models.PriorityNormal, time.Minute),
		}))
		assert.Len(t, q.ParallelTasks(2), 2)
	})
}

func TestTaskQueue_UpdateProgress(t *testing.T) {
	q := New()
	require.NoError(t, q.AddTask(newTask("a", models.PriorityNormal, time.Minute)))

	t.Run("rejects pending tasks", func(t *testing.T) {
		err := q.UpdateProgress("a", 10)
		assert.Error(t, err)
	})

	_, ok := q.NextTask()
	require.True(t, ok)

	t.Run("first update starts the task", func(t *testing.T) {
		require.NoError(t, q.UpdateProgress("a", 10))
		got := q.Task("a")
		assert.Equal(t, models.StatusInProgress, got.Status)
		require.NotNil(t, got.StartedAt)
		assert.Equal(t, 10, got.Progress)
	})

	t.Run("clamps into range", func(t *testing.T) {
		require.NoError(t, q.UpdateProgress("a", 250))
		assert.Equal(t, 100, q.Task("a").Progress)

		require.NoError(t, q.UpdateProgress("a", -5))
		assert.Equal(t, 0, q.Task("a").Progress)
	})

	t.Run("rejects unknown ids", func(t *testing.T) {
		assert.Error(t, q.UpdateProgress("ghost", 10))
	})

	t.Run("rejects terminal tasks", func(t *testing.T) {
		require.NoError(t, q.CompleteTask("a"))
		assert.Error(t, q.UpdateProgress("a", 50))
	})
}

func TestTaskQueue_FailTask(t *testing.T) {
	q := New()
	require.NoError(t, q.AddTask(newTask("a", models.PriorityNormal, time.Minute)))
	_, ok := q.NextTask()
	require.True(t, ok)

	require.NoError(t, q.FailTask("a", "compiler exploded"))
	got := q.Task("a")
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, "compiler exploded", got.FailureReason)

	// Terminal means terminal.
	assert.Error(t, q.CompleteTask("a"))
	assert.Error(t, q.FailTask("a", "again"))
}

func TestTaskQueue_CallersCannotMutateQueueState(t *testing.T) {
	q := New()
	require.NoError(t, q.AddTask(newTask("a", models.PriorityNormal, time.Minute)))

	snapshot := q.Task("a")
	snapshot.Status = models.StatusFailed
	snapshot.Dependencies = append(snapshot.Dependencies, "zzz")

	fresh := q.Task("a")
	assert.Equal(t, models.StatusPending, fresh.Status)
	assert.Empty(t, fresh.Dependencies)
}

func TestTaskQueue_Stats(t *testing.T) {
	q := New()
	require.NoError(t, q.AddTasks([]*models.Task{
		newTask("a", models.PriorityNormal, 10*time.Minute),
		newTask("b", models.PriorityNormal, 20*time.Minute),
		newTask("c", models.PriorityNormal, 30*time.Minute, "a", "b"),
	}))

	_, ok := q.NextTask()
	require.True(t, ok)

	s := q.Stats()
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.ByStatus[models.StatusPending])
	assert.Equal(t, 1, s.ByStatus[models.StatusAssigned])
	// a is assigned; b and c are still pending.
	assert.Equal(t, 50*time.Minute, s.RemainingEstimate)
}

func TestTaskQueue_Stats_AverageDuration(t *testing.T) {
	q := New()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	q.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	require.NoError(t, q.AddTask(newTask("a", models.PriorityNormal, time.Minute)))
	_, ok := q.NextTask()
	require.True(t, ok)
	require.NoError(t, q.UpdateProgress("a", 1)) // stamps StartedAt
	require.NoError(t, q.CompleteTask("a"))      // stamps CompletedAt one tick later

	s := q.Stats()
	assert.Equal(t, time.Minute, s.AverageDuration)
}

func TestTaskQueue_ConcurrentNextTaskNeverDoublesAssignment(t *testing.T) {
	q := New()
	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, q.AddTask(newTask(fmt.Sprintf("t%02d", i), models.PriorityNormal, time.Minute)))
	}

	// All tasks are independent, so once NextTask reports empty it
	// stays empty: every worker drains until exhaustion.
	idCh := make(chan string, n)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task, ok := q.NextTask()
				if !ok {
					return
				}
				idCh <- task.ID
			}
		}()
	}
	wg.Wait()
	close(idCh)

	seen := make(map[string]bool)
	for id := range idCh {
		assert.False(t, seen[id], "task %s assigned twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}
