// Package pool manages the bounded set of typed agent slots the
// conductor assigns work to. Agents are created lazily up to a fixed
// capacity and keep their identity and capability tags for the life of
// the pool; releasing an agent only returns it to idle.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Flickinny11/symphony/internal/agents"
	"github.com/Flickinny11/symphony/internal/models"
)

const (
	// DefaultWaitTimeout bounds how long Acquire polls for a free slot.
	DefaultWaitTimeout = 30 * time.Second
	// DefaultPollInterval is how often a saturated Acquire rechecks.
	DefaultPollInterval = 100 * time.Millisecond
)

// Options tune the bounded wait behavior of Acquire.
type Options struct {
	WaitTimeout  time.Duration
	PollInterval time.Duration
}

// AgentPool is the bounded, typed worker-slot pool.
type AgentPool struct {
	mu       sync.Mutex
	capacity int
	catalog  *agents.Catalog
	agents   map[string]*models.Agent
	order    []string // creation order for stable introspection
	closed   bool

	waitTimeout  time.Duration
	pollInterval time.Duration
	now          func() time.Time
}

// New creates a pool with the default wait behavior.
func New(capacity int, catalog *agents.Catalog) *AgentPool {
	return NewWithOptions(capacity, catalog, Options{})
}

// NewWithOptions creates a pool with explicit wait tuning. Zero option
// fields fall back to the defaults.
func NewWithOptions(capacity int, catalog *agents.Catalog, opts Options) *AgentPool {
	if capacity < 1 {
		capacity = 1
	}
	if catalog == nil {
		catalog = agents.DefaultCatalog()
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &AgentPool{
		capacity:     capacity,
		catalog:      catalog,
		agents:       make(map[string]*models.Agent),
		waitTimeout:  opts.WaitTimeout,
		pollInterval: opts.PollInterval,
		now:          time.Now,
	}
}

// Capacity returns the fixed maximum number of live agents.
func (p *AgentPool) Capacity() int {
	return p.capacity
}

// Acquire returns an idle agent of the category, creating one while the
// pool is under capacity. At capacity it polls until a slot frees,
// the context is cancelled, or the wait budget is exhausted, in which
// case it fails with AllocationExhaustedError.
//
// The returned agent is a clone marked working; all further state flows
// through pool methods keyed by the agent id.
func (p *AgentPool) Acquire(ctx context.Context, category models.AgentCategory) (*models.Agent, error) {
	if !category.Valid() {
		return nil, models.NewValidationError("", "unknown agent category %q", category)
	}

	deadline := p.now().Add(p.waitTimeout)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		agent, err := p.tryAcquire(category)
		if err != nil {
			return nil, err
		}
		if agent != nil {
			return agent, nil
		}
		if !p.now().Before(deadline) {
			return nil, NewAllocationExhaustedError(category, p.waitTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// tryAcquire claims an idle agent or creates one under capacity.
// Returns (nil, nil) when the pool is saturated.
func (p *AgentPool) tryAcquire(category models.AgentCategory) (*models.Agent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	for _, id := range p.order {
		a := p.agents[id]
		if a.Category == category && a.Status == models.AgentIdle && a.Handoff != models.HandoffRetired {
			a.Status = models.AgentWorking
			return cloneAgent(a), nil
		}
	}

	if p.liveCountLocked() < p.capacity {
		a := p.createLocked(category)
		a.Status = models.AgentWorking
		return cloneAgent(a), nil
	}
	return nil, nil
}

// createLocked instantiates a fresh agent from the catalog profile.
func (p *AgentPool) createLocked(category models.AgentCategory) *models.Agent {
	profile := p.catalog.Profile(category)
	a := &models.Agent{
		ID:           string(category) + "-" + uuid.NewString()[:8],
		Category:     category,
		Status:       models.AgentIdle,
		Capabilities: append([]string(nil), profile.Capabilities...),
		MaxContext:   profile.MaxContext,
		Handoff:      models.HandoffActive,
		CreatedAt:    p.now(),
	}
	p.agents[a.ID] = a
	p.order = append(p.order, a.ID)
	return a
}

// liveCountLocked counts agents still occupying a capacity slot.
func (p *AgentPool) liveCountLocked() int {
	n := 0
	for _, a := range p.agents {
		if a.Handoff != models.HandoffRetired {
			n++
		}
	}
	return n
}

// Release returns an agent to idle. An agent parked in the error state
// is cleaned back to idle here as well; identity, capability tags, and
// accumulated context usage all survive.
func (p *AgentPool) Release(agentID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.agents[agentID]
	if !ok {
		return NewUnknownAgentError(agentID)
	}
	a.Status = models.AgentIdle
	a.CurrentTask = ""
	return nil
}

// MarkError parks an agent in the error state until its next Release.
func (p *AgentPool) MarkError(agentID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.agents[agentID]
	if !ok {
		return NewUnknownAgentError(agentID)
	}
	a.Status = models.AgentError
	return nil
}

// SetCurrentTask records which task an agent is working.
func (p *AgentPool) SetCurrentTask(agentID, taskID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.agents[agentID]
	if !ok {
		return NewUnknownAgentError(agentID)
	}
	a.CurrentTask = taskID
	return nil
}

// RecordContext sets an agent's context usage to the given token count
// and returns its usage ratio against the category ceiling.
func (p *AgentPool) RecordContext(agentID string, tokens int) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.agents[agentID]
	if !ok {
		return 0, NewUnknownAgentError(agentID)
	}
	if tokens > a.ContextTokens {
		a.ContextTokens = tokens
	}
	return a.ContextRatio(), nil
}

// Agent returns a clone of the agent with the given id, or nil.
func (p *AgentPool) Agent(agentID string) *models.Agent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a, ok := p.agents[agentID]; ok {
		return cloneAgent(a)
	}
	return nil
}

// StartHandoff moves an agent into the handing_off state and links its
// successor. The transition is validated; handoff is one-way.
func (p *AgentPool) StartHandoff(agentID, successorID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.agents[agentID]
	if !ok {
		return NewUnknownAgentError(agentID)
	}
	if !a.Handoff.CanTransition(models.HandoffInProgress) {
		return NewHandoffStateError(agentID, a.Handoff, models.HandoffInProgress)
	}
	a.Handoff = models.HandoffInProgress
	a.Successor = successorID
	return nil
}

// Retire completes a handoff: the agent leaves the capacity count for
// good but stays visible for introspection. Retired agents are never
// handed out again.
func (p *AgentPool) Retire(agentID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.agents[agentID]
	if !ok {
		return NewUnknownAgentError(agentID)
	}
	if !a.Handoff.CanTransition(models.HandoffRetired) {
		return NewHandoffStateError(agentID, a.Handoff, models.HandoffRetired)
	}
	a.Handoff = models.HandoffRetired
	a.Status = models.AgentIdle
	a.CurrentTask = ""
	return nil
}

// IdleSlots reports how many more Acquire calls could currently succeed
// without waiting: idle live agents plus unclaimed capacity.
func (p *AgentPool) IdleSlots() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	idle := 0
	for _, a := range p.agents {
		if a.Status == models.AgentIdle && a.Handoff != models.HandoffRetired {
			idle++
		}
	}
	return idle + (p.capacity - p.liveCountLocked())
}

// Stats is a point-in-time snapshot of pool composition.
type Stats struct {
	Capacity   int
	Live       int // agents occupying a capacity slot
	Idle       int
	Working    int
	Errored    int
	Retired    int
	ByCategory map[models.AgentCategory]int // live agents per category
}

// Stats computes the current pool composition.
func (p *AgentPool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{
		Capacity:   p.capacity,
		ByCategory: make(map[models.AgentCategory]int),
	}
	for _, a := range p.agents {
		if a.Handoff == models.HandoffRetired {
			s.Retired++
			continue
		}
		s.Live++
		s.ByCategory[a.Category]++
		switch a.Status {
		case models.AgentIdle:
			s.Idle++
		case models.AgentWorking:
			s.Working++
		case models.AgentError:
			s.Errored++
		}
	}
	return s
}

// AgentsByCategory returns clones of all live agents grouped by
// category, in creation order.
func (p *AgentPool) AgentsByCategory() map[models.AgentCategory][]*models.Agent {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[models.AgentCategory][]*models.Agent)
	for _, id := range p.order {
		a := p.agents[id]
		if a.Handoff == models.HandoffRetired {
			continue
		}
		out[a.Category] = append(out[a.Category], cloneAgent(a))
	}
	return out
}

// Close disposes the pool. Subsequent Acquire calls fail.
func (p *AgentPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.agents = make(map[string]*models.Agent)
	p.order = nil
}

func cloneAgent(a *models.Agent) *models.Agent {
	c := *a
	c.Capabilities = append([]string(nil), a.Capabilities...)
	return &c
}
