package sharedmem

import (
	"context"
)

// Handle is one worker's scoped view of the bridge: the region the
// conductor created for it plus the identity it runs under. Executors
// publish state and pick up seeded context through the handle without
// ever naming another worker's key.
type Handle struct {
	bridge  *Bridge
	key     string
	agentID string
	taskID  string
}

// Handle scopes bridge access to the worker region under key.
func (b *Bridge) Handle(key, agentID, taskID string) *Handle {
	return &Handle{
		bridge:  b,
		key:     key,
		agentID: agentID,
		taskID:  taskID,
	}
}

// Key returns the worker region key.
func (h *Handle) Key() string {
	return h.key
}

// AgentID returns the id of the agent the handle was issued to.
func (h *Handle) AgentID() string {
	return h.agentID
}

// TaskID returns the id of the task the handle was issued for.
func (h *Handle) TaskID() string {
	return h.taskID
}

// WriteState commits v as the worker's published state.
func (h *Handle) WriteState(ctx context.Context, v interface{}) error {
	return h.bridge.WriteJSON(ctx, h.key, v)
}

// ReadState decodes the worker's published state into v. Reads are
// lock-free like every bridge read; callers needing consistency check
// Version around the read.
func (h *Handle) ReadState(v interface{}) error {
	return h.bridge.ReadJSON(h.key, v)
}

// Version returns the committed version of the worker region.
func (h *Handle) Version() (int64, error) {
	return h.bridge.Version(h.key)
}

// Watch subscribes to writes on the worker region and returns the
// unsubscribe function. The conductor uses this channel direction to
// signal a predecessor during handoff.
func (h *Handle) Watch(fn func(Update)) func() {
	return h.bridge.Subscribe(h.key, fn)
}
