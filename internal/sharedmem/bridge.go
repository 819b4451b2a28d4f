// Package sharedmem is the keyed, lockable byte-region abstraction
// workers use to pass state to each other. Writers serialize on a
// per-region exclusive lock acquired with bounded backoff; readers are
// lock-free and see no snapshot isolation against an in-flight writer.
// That racy-read behavior is part of the contract, inherited from the
// cross-isolate buffer this layer models, and must not be hardened
// away: callers that need a consistent view check the version before
// and after reading.
package sharedmem

import (
	"sync"
	"sync/atomic"
	"time"
)

// Mode reports how regions are backed.
type Mode string

const (
	// ModeShared keeps regions in process memory where every worker
	// sees every committed write.
	ModeShared Mode = "shared"
	// ModeFallback additionally mirrors each committed write to a
	// lock-guarded file so cooperating processes can pick state up.
	// Cross-process visibility is best effort only; callers must not
	// rely on it.
	ModeFallback Mode = "fallback"
)

const (
	// DefaultLockTimeout bounds the write-lock backoff budget.
	DefaultLockTimeout = 2 * time.Second
	// DefaultLockRetryInitial seeds the exponential backoff.
	DefaultLockRetryInitial = time.Millisecond
	// DefaultLockRetryMax caps a single backoff pause.
	DefaultLockRetryMax = 50 * time.Millisecond
)

// Logger is the minimal logging surface the bridge needs.
type Logger interface {
	Warnf(format string, args ...interface{})
}

// Options tune bridge construction.
type Options struct {
	// MirrorDir enables fallback mode: committed writes are mirrored
	// to files under this directory.
	MirrorDir string
	// LockTimeout bounds how long WriteAtomic backs off for the
	// region lock before failing with LockTimeoutError.
	LockTimeout time.Duration
	// LockRetryInitial / LockRetryMax tune the backoff curve.
	LockRetryInitial time.Duration
	LockRetryMax     time.Duration
	// Logger receives mirror warnings; nil is fine.
	Logger Logger
}

// region is one fixed-size keyed buffer. locked is the exclusive-write
// flag: writers claim it by CAS, readers ignore it entirely.
type region struct {
	data    []byte
	size    int
	version atomic.Int64
	locked  atomic.Bool
}

// subscriber is one registered change callback.
type subscriber struct {
	id int64
	fn func(Update)
}

// Update describes one committed write, delivered to subscribers after
// the region lock is released.
type Update struct {
	Key     string
	Version int64
	Offset  int
	Length  int
}

// Bridge owns all regions and subscriptions.
type Bridge struct {
	mu      sync.RWMutex
	regions map[string]*region
	subs    map[string][]subscriber
	nextSub atomic.Int64

	mode   Mode
	mirror *mirror
	logger Logger

	lockTimeout      time.Duration
	lockRetryInitial time.Duration
	lockRetryMax     time.Duration
}

// New creates a bridge in shared mode with default lock tuning.
func New() *Bridge {
	return NewWithOptions(Options{})
}

// NewWithOptions creates a bridge. A non-empty MirrorDir switches it
// into fallback mode.
func NewWithOptions(opts Options) *Bridge {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.LockRetryInitial <= 0 {
		opts.LockRetryInitial = DefaultLockRetryInitial
	}
	if opts.LockRetryMax <= 0 {
		opts.LockRetryMax = DefaultLockRetryMax
	}

	b := &Bridge{
		regions:          make(map[string]*region),
		subs:             make(map[string][]subscriber),
		mode:             ModeShared,
		logger:           opts.Logger,
		lockTimeout:      opts.LockTimeout,
		lockRetryInitial: opts.LockRetryInitial,
		lockRetryMax:     opts.LockRetryMax,
	}
	if opts.MirrorDir != "" {
		b.mode = ModeFallback
		b.mirror = newMirror(opts.MirrorDir)
	}
	return b
}

// Mode reports whether the bridge is shared or running in fallback.
func (b *Bridge) Mode() Mode {
	return b.mode
}

// Create allocates a fixed-size region under the key, idempotently
// replacing any prior region. The fresh region starts at version zero,
// unlocked and zero-filled. Existing subscriptions to the key survive.
func (b *Bridge) Create(key string, size int) error {
	if key == "" {
		return ErrEmptyKey
	}
	if size <= 0 {
		return NewOutOfRangeError(key, 0, size, 0)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.regions[key] = &region{
		data: make([]byte, size),
		size: size,
	}
	return nil
}

// Remove drops a region and its subscriptions.
func (b *Bridge) Remove(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.regions, key)
	delete(b.subs, key)
	if b.mirror != nil {
		b.mirror.remove(key)
	}
}

// Keys lists the live region keys.
func (b *Bridge) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.regions))
	for k := range b.regions {
		keys = append(keys, k)
	}
	return keys
}

// Size returns the byte size of a region.
func (b *Bridge) Size(key string) (int, error) {
	r, err := b.region(key)
	if err != nil {
		return 0, err
	}
	return r.size, nil
}

// Version returns the current committed version of a region.
func (b *Bridge) Version(key string) (int64, error) {
	r, err := b.region(key)
	if err != nil {
		return 0, err
	}
	return r.version.Load(), nil
}

// Subscribe registers fn for post-write notifications on the key and
// returns the matching unsubscribe function. Callbacks run on the
// writer's goroutine after the lock is released, so they must be quick.
func (b *Bridge) Subscribe(key string, fn func(Update)) func() {
	id := b.nextSub.Add(1)

	b.mu.Lock()
	b.subs[key] = append(b.subs[key], subscriber{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[key]
		for i, s := range list {
			if s.id == id {
				b.subs[key] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
	}
}

// notify fans one committed write out to the key's subscribers.
func (b *Bridge) notify(u Update) {
	b.mu.RLock()
	list := append([]subscriber(nil), b.subs[u.Key]...)
	b.mu.RUnlock()

	for _, s := range list {
		s.fn(u)
	}
}

func (b *Bridge) region(key string) (*region, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.regions[key]
	if !ok {
		return nil, NewUnknownRegionError(key)
	}
	return r, nil
}

// Stats is a point-in-time snapshot of bridge composition.
type Stats struct {
	Mode        Mode
	Regions     int
	Subscribers int
}

// Stats counts live regions and subscriptions.
func (b *Bridge) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := Stats{Mode: b.mode, Regions: len(b.regions)}
	for _, list := range b.subs {
		s.Subscribers += len(list)
	}
	return s
}
