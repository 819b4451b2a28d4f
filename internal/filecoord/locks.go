package filecoord

import (
	"context"
	"sync"

	"github.com/Flickinny11/symphony/internal/models"
)

// RangeLockManager hands out exclusive locks keyed by (path, line range).
// Two acquisitions contend only when they name the same region key; the
// coordinator's conflict detection, not the lock, arbitrates ranges that
// overlap without being identical. An operation without a bounded range
// locks the whole-file key.
type RangeLockManager struct {
	mu      sync.Mutex
	locks   map[string]string // region key -> holder
	waiters map[string][]chan struct{}
}

// NewRangeLockManager creates an empty lock manager.
func NewRangeLockManager() *RangeLockManager {
	return &RangeLockManager{
		locks:   make(map[string]string),
		waiters: make(map[string][]chan struct{}),
	}
}

// lockKey builds the map key for one (path, range) region.
func lockKey(path string, r *models.LineRange) string {
	if r == nil {
		return path + "#*"
	}
	return path + "#" + r.String()
}

// Acquire claims the region lock for holder, blocking until the region
// is free or ctx ends. The returned release function must be called
// exactly once when the holder is done; calling it again is a no-op.
func (m *RangeLockManager) Acquire(ctx context.Context, holder, path string, r *models.LineRange) (func(), error) {
	key := lockKey(path, r)

	for {
		m.mu.Lock()
		if _, held := m.locks[key]; !held {
			m.locks[key] = holder
			m.mu.Unlock()
			var once sync.Once
			return func() { once.Do(func() { m.release(key) }) }, nil
		}

		waiter := make(chan struct{}, 1)
		m.waiters[key] = append(m.waiters[key], waiter)
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.removeWaiterLocked(key, waiter)
			select {
			case <-waiter:
				// A wakeup landed while we were bailing out; pass it
				// on so the queue does not stall.
				m.notifyNextLocked(key)
			default:
			}
			m.mu.Unlock()
			return nil, ctx.Err()

		case <-waiter:
			// Woken by a release. Loop and race for the lock again: a
			// fresh acquirer may have slipped in first.
		}
	}
}

// Holder reports who holds the region lock, or empty when free.
func (m *RangeLockManager) Holder(path string, r *models.LineRange) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locks[lockKey(path, r)]
}

// ActiveLocks counts currently held region locks.
func (m *RangeLockManager) ActiveLocks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

func (m *RangeLockManager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, key)
	m.notifyNextLocked(key)
}

// notifyNextLocked wakes the first waiter on the key. The waiter channel
// is buffered and popped from the queue here, so the send never blocks
// and each waiter receives at most one token.
func (m *RangeLockManager) notifyNextLocked(key string) {
	list := m.waiters[key]
	if len(list) == 0 {
		delete(m.waiters, key)
		return
	}
	list[0] <- struct{}{}
	if len(list) == 1 {
		delete(m.waiters, key)
		return
	}
	m.waiters[key] = list[1:]
}

func (m *RangeLockManager) removeWaiterLocked(key string, waiter chan struct{}) {
	list := m.waiters[key]
	for i, w := range list {
		if w == waiter {
			m.waiters[key] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}
