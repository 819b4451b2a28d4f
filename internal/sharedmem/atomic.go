package sharedmem

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"
)

// errLockHeld drives the backoff loop while another writer holds the
// region lock.
var errLockHeld = errors.New("region lock held")

// WriteAtomic commits data at offset within the region. The writer
// claims the region's exclusive lock with bounded exponential backoff
// and fails with LockTimeoutError once the budget is spent. On success
// the region version increments exactly once, after the payload is
// fully in place and before the lock is released.
func (b *Bridge) WriteAtomic(ctx context.Context, key string, offset int, data []byte) error {
	r, err := b.region(key)
	if err != nil {
		return err
	}

	if err := b.lockRegion(ctx, key, r); err != nil {
		return err
	}

	if offset < 0 || offset+len(data) > r.size {
		r.locked.Store(false)
		return NewOutOfRangeError(key, offset, len(data), r.size)
	}

	copy(r.data[offset:], data)
	version := r.version.Add(1)

	if b.mirror != nil {
		// Snapshot to disk while still holding the lock so the mirror
		// never captures a half-applied write. Best effort: a mirror
		// failure never rolls back the committed write.
		if err := b.mirror.write(key, r.data, version); err != nil && b.logger != nil {
			b.logger.Warnf("sharedmem: mirror %s: %v", key, err)
		}
	}
	r.locked.Store(false)

	b.notify(Update{Key: key, Version: version, Offset: offset, Length: len(data)})
	return nil
}

// lockRegion spins for the exclusive write flag under an exponential
// backoff capped by the bridge's lock budget.
func (b *Bridge) lockRegion(ctx context.Context, key string, r *region) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = b.lockRetryInitial
	policy.MaxInterval = b.lockRetryMax
	policy.MaxElapsedTime = b.lockTimeout

	attempt := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if r.locked.CompareAndSwap(false, true) {
			return nil
		}
		return errLockHeld
	}

	if err := backoff.Retry(attempt, backoff.WithContext(policy, ctx)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return NewLockTimeoutError(key, b.lockTimeout)
	}
	return nil
}

// ReadAtomic copies length bytes starting at offset out of the region.
// The read takes no lock: a concurrent writer may interleave, so the
// returned bytes carry no snapshot guarantee. Callers needing a stable
// view compare Version before and after the read.
func (b *Bridge) ReadAtomic(key string, offset, length int) ([]byte, error) {
	r, err := b.region(key)
	if err != nil {
		return nil, err
	}
	if offset < 0 || length < 0 || offset+length > r.size {
		return nil, NewOutOfRangeError(key, offset, length, r.size)
	}

	out := make([]byte, length)
	copy(out, r.data[offset:offset+length])
	return out, nil
}
