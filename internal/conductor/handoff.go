package conductor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Flickinny11/symphony/internal/estimation"
	"github.com/Flickinny11/symphony/internal/models"
)

// HandoffSeed is the payload written into a successor's region when it
// takes over a task from an agent nearing its context ceiling. State
// carries the predecessor's published scratch state, compacted to fit
// the successor's context budget.
type HandoffSeed struct {
	Predecessor string    `json:"predecessor"`
	TaskID      string    `json:"taskId"`
	State       string    `json:"state,omitempty"`
	SeededAt    time.Time `json:"seededAt"`
}

// HandoffSignal is written into the predecessor's region once its
// successor is seeded. The region version bump wakes any watcher; the
// predecessor must wind down before Deadline.
type HandoffSignal struct {
	Control   string    `json:"control"`
	Successor string    `json:"successor"`
	Deadline  time.Time `json:"deadline"`
}

// startHandoff duplicates the agent named in ev: a successor of the
// same category is leased, seeded with the predecessor's compacted
// state, and attached to the task. The predecessor keeps running until
// the grace period elapses, then retires. A missing successor leaves
// the predecessor running, so a full pool degrades the run rather than
// failing it.
func (c *Conductor) startHandoff(ctx context.Context, ev models.Event) {
	pred := c.pool.Agent(ev.AgentID)
	if pred == nil {
		c.log.Debugf("handoff: unknown agent %s", ev.AgentID)
		return
	}
	if pred.Handoff != models.HandoffActive {
		return
	}

	acquireCtx, cancelAcquire := context.WithTimeout(ctx, c.grace)
	successor, err := c.pool.Acquire(acquireCtx, pred.Category)
	cancelAcquire()
	if err != nil {
		c.log.Warnf("handoff: no successor for %s: %v", pred.ID, err)
		return
	}

	if err := c.pool.StartHandoff(pred.ID, successor.ID); err != nil {
		if rerr := c.pool.Release(successor.ID); rerr != nil {
			c.log.Debugf("release %s: %v", successor.ID, rerr)
		}
		c.log.Debugf("handoff %s: %v", pred.ID, err)
		return
	}
	c.metrics.IncActiveAgents()

	succKey := agentRegion(successor.ID)
	if err := c.bridge.Create(succKey, c.regionSize); err != nil {
		c.log.Warnf("create region for %s: %v", successor.ID, err)
	} else {
		c.trackRegion(succKey)
	}

	seed := HandoffSeed{
		Predecessor: pred.ID,
		TaskID:      ev.TaskID,
		State:       c.compactState(pred.ID, successor.MaxContext),
		SeededAt:    time.Now(),
	}
	if err := c.bridge.WriteJSON(ctx, succKey, seed); err != nil {
		c.log.Warnf("seed successor %s: %v", successor.ID, err)
	}

	if err := c.pool.SetCurrentTask(successor.ID, ev.TaskID); err != nil {
		c.log.Debugf("set current task: %v", err)
	}
	if err := c.queue.AttachAgent(ev.TaskID, successor.ID); err != nil {
		c.log.Debugf("attach %s to %s: %v", successor.ID, ev.TaskID, err)
	}

	c.mu.Lock()
	if c.taskAgent[ev.TaskID] == pred.ID {
		c.taskAgent[ev.TaskID] = successor.ID
	}
	c.handoffs++
	c.mu.Unlock()

	signal := HandoffSignal{
		Control:   "handoff",
		Successor: successor.ID,
		Deadline:  time.Now().Add(c.grace),
	}
	if err := c.bridge.WriteJSON(ctx, agentRegion(pred.ID), signal); err != nil {
		c.log.Debugf("signal predecessor %s: %v", pred.ID, err)
	}

	c.metrics.IncHandoff()
	c.log.Infof("handoff: agent %s -> %s for task %s", pred.ID, successor.ID, ev.TaskID)

	predID := pred.ID
	c.aux.Add(1)
	go func() {
		defer c.aux.Done()
		select {
		case <-ctx.Done():
		case <-time.After(c.grace):
		}
		c.retire(predID)
	}()
}

// compactState reads the predecessor's published state and truncates
// it to a quarter of the successor's context window so the seed leaves
// room to work.
func (c *Conductor) compactState(agentID string, maxContext int) string {
	var raw json.RawMessage
	if err := c.bridge.ReadJSON(agentRegion(agentID), &raw); err != nil {
		c.log.Debugf("read state for %s: %v", agentID, err)
		return ""
	}
	budget := maxContext / 4
	if budget < defaultSeedTokens {
		budget = defaultSeedTokens
	}
	return estimation.TruncateToTokens(string(raw), budget)
}

func (c *Conductor) retire(agentID string) {
	if err := c.pool.Retire(agentID); err != nil {
		c.log.Debugf("retire %s: %v", agentID, err)
		return
	}
	c.metrics.DecActiveAgents()

	key := agentRegion(agentID)
	c.bridge.Remove(key)
	c.mu.Lock()
	delete(c.regions, key)
	c.mu.Unlock()
	c.log.Infof("agent %s retired after handoff", agentID)
}
