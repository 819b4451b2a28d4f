package planner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Flickinny11/symphony/internal/models"
)

const (
	defaultCacheSize = 64
	defaultCacheTTL  = 10 * time.Minute
)

// cacheEntry holds a cached plan and when it was stored.
type cacheEntry struct {
	plan     *models.BuildPlan
	storedAt time.Time
}

// CachingPlanner wraps a Planner with an LRU cache keyed by a digest
// of the requirements. Entries expire after a TTL so repeated prompts
// within a session reuse the plan without pinning it forever. Cached
// plans are handed out as deep copies; runs mutate task state.
type CachingPlanner struct {
	delegate Planner
	entries  *lru.Cache[string, cacheEntry]
	ttl      time.Duration
}

var _ Planner = (*CachingPlanner)(nil)

// NewCachingPlanner creates a caching wrapper around delegate.
// Non-positive size or ttl select the defaults.
func NewCachingPlanner(delegate Planner, size int, ttl time.Duration) (*CachingPlanner, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create plan cache: %w", err)
	}
	return &CachingPlanner{
		delegate: delegate,
		entries:  entries,
		ttl:      ttl,
	}, nil
}

// Plan returns the cached plan for the requirements when a fresh entry
// exists, delegating otherwise. Errors are never cached.
func (c *CachingPlanner) Plan(ctx context.Context, requirements string) (*models.BuildPlan, error) {
	key := requirementsDigest(requirements)

	if entry, ok := c.entries.Get(key); ok {
		if time.Since(entry.storedAt) < c.ttl {
			return clonePlan(entry.plan), nil
		}
		c.entries.Remove(key)
	}

	plan, err := c.delegate.Plan(ctx, requirements)
	if err != nil {
		return nil, err
	}

	c.entries.Add(key, cacheEntry{
		plan:     clonePlan(plan),
		storedAt: time.Now(),
	})
	return plan, nil
}

// Len returns the number of cached plans, expired entries included.
func (c *CachingPlanner) Len() int {
	return c.entries.Len()
}

// requirementsDigest produces a deterministic cache key for a
// requirements prompt. Leading and trailing whitespace does not change
// the plan, so it does not change the key.
func requirementsDigest(requirements string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(requirements)))
	return hex.EncodeToString(sum[:])
}

// clonePlan deep-copies a plan so cached state cannot be mutated by a
// run.
func clonePlan(p *models.BuildPlan) *models.BuildPlan {
	if p == nil {
		return nil
	}
	c := *p
	c.Tasks = make([]*models.Task, len(p.Tasks))
	for i, t := range p.Tasks {
		c.Tasks[i] = t.Clone()
	}
	return &c
}
