package conductor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Flickinny11/symphony/internal/history"
	"github.com/Flickinny11/symphony/internal/models"
	"github.com/Flickinny11/symphony/internal/sharedmem"
)

// runTask consumes one task's event stream to completion. It runs on a
// worker goroutine; every terminal path releases the leased agent.
func (c *Conductor) runTask(ctx context.Context, task *models.Task, agentID string, handle *sharedmem.Handle) {
	events, err := c.executor.Execute(ctx, task, handle)
	if err != nil {
		c.finishTask(ctx, models.Event{
			Type:    models.EventError,
			TaskID:  task.ID,
			AgentID: agentID,
			Message: fmt.Sprintf("dispatch: %v", err),
		})
		return
	}

	terminal := false
	for ev := range events {
		if ev.TaskID == "" {
			ev.TaskID = task.ID
		}
		if ev.AgentID == "" {
			ev.AgentID = agentID
		}
		c.handleEvent(ctx, ev)
		if ev.Type == models.EventComplete || ev.Type == models.EventError {
			terminal = true
		}
	}
	if !terminal {
		c.abandonTask(task.ID)
	}
}

func (c *Conductor) handleEvent(ctx context.Context, ev models.Event) {
	switch ev.Type {
	case models.EventProgress:
		c.handleProgress(ctx, ev)
	case models.EventFileUpdate:
		c.handleFileUpdate(ctx, ev)
	case models.EventComplete, models.EventError:
		c.finishTask(ctx, ev)
	case models.EventNeedsHelp:
		c.handleNeedsHelp(ev)
	case models.EventContextLimit:
		c.handleContextLimit(ctx, ev)
	default:
		c.log.Debugf("task %s: unhandled event type %q", ev.TaskID, ev.Type)
	}
}

func (c *Conductor) handleProgress(ctx context.Context, ev models.Event) {
	if err := c.queue.UpdateProgress(ev.TaskID, ev.Progress); err != nil {
		c.log.Debugf("progress %s: %v", ev.TaskID, err)
	}
	if ev.ContextTokens > 0 {
		c.trackContext(ctx, ev)
	}
}

// trackContext records the agent's context usage and starts a handoff
// once the configured threshold is crossed.
func (c *Conductor) trackContext(ctx context.Context, ev models.Event) {
	ratio, err := c.pool.RecordContext(ev.AgentID, ev.ContextTokens)
	if err != nil {
		c.log.Debugf("context for %s: %v", ev.AgentID, err)
		return
	}
	if c.threshold > 0 && ratio >= c.threshold {
		c.log.Infof("agent %s at %.0f%% context, starting handoff", ev.AgentID, ratio*100)
		c.startHandoff(ctx, ev)
	}
}

func (c *Conductor) handleNeedsHelp(ev models.Event) {
	if c.onNeedsHelp != nil {
		c.onNeedsHelp(ev)
		return
	}
	c.log.Infof("task %s: agent %s needs help: %s", ev.TaskID, ev.AgentID, ev.Message)
}

func (c *Conductor) handleContextLimit(ctx context.Context, ev models.Event) {
	if ev.ContextTokens > 0 {
		if _, err := c.pool.RecordContext(ev.AgentID, ev.ContextTokens); err != nil {
			c.log.Debugf("context for %s: %v", ev.AgentID, err)
		}
	}
	c.startHandoff(ctx, ev)
}

// handleFileUpdate routes a proposed file operation through the
// arbiter when one is configured, publishes the applied operation on
// the shared change feed, and records it.
func (c *Conductor) handleFileUpdate(ctx context.Context, ev models.Event) {
	if ev.File == nil {
		return
	}
	op := *ev.File
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.AgentID == "" {
		op.AgentID = ev.AgentID
	}
	if op.Timestamp.IsZero() {
		op.Timestamp = ev.Timestamp
	}

	applied := op
	version := 0
	conflicts := 0
	summary := fmt.Sprintf("%s %s (%d bytes)", op.Type, op.Path, len(op.Content))

	if c.arbiter != nil {
		state, err := c.arbiter.CoordinateEdit(ctx, op)
		if err != nil {
			c.log.Warnf("edit %s from %s rejected: %v", op.Path, op.AgentID, err)
			return
		}
		version = int(state.Version)
		if entry, ok := c.arbiter.LastApplied(op.ID); ok {
			applied = entry.Op
			conflicts = entry.Conflicts
			summary = entry.Summary
		}
	} else {
		version = c.bumpFileVersion(op.Path)
	}

	if err := c.bridge.WriteJSON(ctx, fileFeedKey, applied); err != nil {
		c.log.Warnf("publish change for %s: %v", op.Path, err)
	}

	c.mu.Lock()
	c.filesWritten++
	c.mu.Unlock()

	rec := &history.FileChangeRecord{
		RunID:     c.currentRunID(),
		Path:      op.Path,
		TaskID:    ev.TaskID,
		AgentID:   op.AgentID,
		Operation: string(op.Type),
		Version:   version,
		Summary:   summary,
		Conflicts: conflicts,
		Timestamp: time.Now(),
	}
	if err := c.sink.RecordFileChange(ctx, rec); err != nil {
		c.log.Warnf("record file change: %v", err)
	}
}

func (c *Conductor) bumpFileVersion(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fileVersions[path]++
	return c.fileVersions[path]
}

// finishTask moves the task to its terminal status, releases the agent
// attached to it, and records the outcome. It is the single terminal
// path for dispatched, stranded and allocation-failed tasks alike.
func (c *Conductor) finishTask(ctx context.Context, ev models.Event) {
	failed := ev.Type == models.EventError
	var qerr error
	if failed {
		reason := ev.Message
		if reason == "" {
			reason = "task failed"
		}
		qerr = c.queue.FailTask(ev.TaskID, reason)
	} else {
		qerr = c.queue.CompleteTask(ev.TaskID)
	}

	c.mu.Lock()
	agentID, inFlight := c.taskAgent[ev.TaskID]
	delete(c.taskAgent, ev.TaskID)
	c.mu.Unlock()

	if inFlight {
		if failed && ev.AgentID != "" {
			if err := c.pool.MarkError(ev.AgentID); err != nil {
				c.log.Debugf("mark error %s: %v", ev.AgentID, err)
			}
		}
		if err := c.pool.Release(agentID); err != nil {
			c.log.Debugf("release %s: %v", agentID, err)
		} else {
			c.metrics.DecActiveAgents()
		}
	}

	if qerr != nil {
		c.log.Debugf("finish %s: %v", ev.TaskID, qerr)
		c.kickDispatch()
		return
	}

	finished := c.queue.Task(ev.TaskID)
	if finished == nil {
		c.kickDispatch()
		return
	}
	agentLabel := ev.AgentID
	if agentLabel == "" {
		agentLabel = agentID
	}
	outcome := models.TaskOutcome{
		TaskID:        finished.ID,
		Title:         finished.Title,
		Category:      finished.Category,
		AgentID:       agentLabel,
		Status:        finished.Status,
		Duration:      finished.Duration(),
		FailureReason: finished.FailureReason,
	}
	_ = c.log.LogTaskOutcome(outcome)
	c.metrics.ObserveTaskFinished(string(finished.Status), string(finished.Category), outcome.Duration)

	rec := &history.TaskRecord{
		RunID:         c.currentRunID(),
		PlanName:      c.planName(),
		TaskID:        finished.ID,
		Title:         finished.Title,
		Category:      string(finished.Category),
		AgentID:       agentLabel,
		Status:        string(finished.Status),
		FailureReason: finished.FailureReason,
		DurationSecs:  int64(outcome.Duration.Seconds()),
		Timestamp:     time.Now(),
	}
	if err := c.sink.RecordTask(ctx, rec); err != nil {
		c.log.Warnf("record task: %v", err)
	}
	c.kickDispatch()
}

// abandonTask releases the agent for a task whose event stream closed
// without a terminal event, which happens on cancellation.
func (c *Conductor) abandonTask(taskID string) {
	c.mu.Lock()
	agentID, ok := c.taskAgent[taskID]
	delete(c.taskAgent, taskID)
	c.mu.Unlock()
	if !ok {
		return
	}
	if err := c.pool.Release(agentID); err != nil {
		c.log.Debugf("release %s: %v", agentID, err)
	} else {
		c.metrics.DecActiveAgents()
	}
	c.log.Debugf("task %s stream ended without a terminal event", taskID)
	c.kickDispatch()
}

// failStranded fails pending tasks that can never become ready because
// a dependency failed or was never queued, cascading until no more are
// found. It returns how many tasks it failed.
func (c *Conductor) failStranded(ctx context.Context) int {
	total := 0
	for {
		n := c.failStrandedOnce(ctx)
		total += n
		if n == 0 {
			return total
		}
	}
}

func (c *Conductor) failStrandedOnce(ctx context.Context) int {
	tasks := c.queue.Tasks()
	byID := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	failed := 0
	for _, t := range tasks {
		if t.Status != models.StatusPending {
			continue
		}
		reason := ""
		for _, dep := range t.Dependencies {
			d, ok := byID[dep]
			if !ok {
				reason = fmt.Sprintf("dependency %s never queued", dep)
				break
			}
			if d.Status == models.StatusFailed {
				reason = fmt.Sprintf("dependency %s failed", dep)
				break
			}
		}
		if reason == "" {
			continue
		}
		c.log.Warnf("task %s cannot run: %s", t.ID, reason)
		c.finishTask(ctx, models.Event{Type: models.EventError, TaskID: t.ID, Message: reason})
		failed++
	}
	return failed
}

// fileCoordinationTick refreshes the arbiter's dependency analysis and
// publishes a coordination snapshot to shared memory.
func (c *Conductor) fileCoordinationTick(ctx context.Context) {
	if c.arbiter == nil {
		return
	}
	c.arbiter.AnalyzeFileDependencies(c.queue.Tasks())
	st := c.arbiter.Stats()
	if err := c.bridge.WriteJSON(ctx, coordStatsKey, st); err != nil {
		c.log.Debugf("publish coordination stats: %v", err)
	}
	c.log.Debugf("coordination: %d files, %d operations applied, %d conflicts resolved",
		st.Files, st.TotalOperations, st.ConflictsResolved)
}
