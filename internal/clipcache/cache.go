// Package clipcache holds decoded voice line clips for the lifetime of the
// process.
//
// A [Cache] tracks two disjoint sets of logical keys: pending keys that a
// loader has reserved and is still decoding, and present keys with a decoded
// clip. [Cache.Reserve] is the single-flight gate: only the caller that wins
// the reservation may load the key, and it must follow up with exactly one
// [Cache.Commit] or [Cache.Release]. Entries are never evicted.
package clipcache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/observe"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio"
)

// ErrNotReserved is returned by [Cache.Commit] for a key that is not pending.
var ErrNotReserved = errors.New("clipcache: key not reserved")

// Stats is a point-in-time view of the cache.
type Stats struct {
	Cached  int
	Pending int
}

// Cache maps logical keys to decoded clips. It is safe for concurrent use.
type Cache struct {
	metrics *observe.Metrics

	mu      sync.Mutex
	clips   map[string]*audio.Clip
	pending map[string]struct{}
}

// Option configures a [Cache].
type Option func(*Cache)

// WithMetrics records lookups and sizes on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Cache) {
		if m != nil {
			c.metrics = m
		}
	}
}

// New returns an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		clips:   make(map[string]*audio.Clip),
		pending: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// TryGet returns the clip stored for key. It never blocks on a load.
func (c *Cache) TryGet(key string) (*audio.Clip, bool) {
	c.mu.Lock()
	clip, ok := c.clips[key]
	c.mu.Unlock()

	c.metrics.RecordCacheLookup(context.Background(), ok)
	return clip, ok
}

// Reserve marks key as pending and reports true when key is neither present
// nor already pending. A true result obliges the caller to call Commit or
// Release for key.
func (c *Cache) Reserve(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.clips[key]; ok {
		return false
	}
	if _, ok := c.pending[key]; ok {
		return false
	}
	c.pending[key] = struct{}{}
	c.metrics.PendingLoads.Add(context.Background(), 1)
	return true
}

// Commit stores clip for a pending key. It returns [ErrNotReserved] and
// leaves the cache untouched when key is not pending.
func (c *Cache) Commit(key string, clip *audio.Clip) error {
	if clip == nil {
		return fmt.Errorf("clipcache: commit %q: nil clip", key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[key]; !ok {
		return fmt.Errorf("clipcache: commit %q: %w", key, ErrNotReserved)
	}
	delete(c.pending, key)
	c.clips[key] = clip

	ctx := context.Background()
	c.metrics.PendingLoads.Add(ctx, -1)
	c.metrics.CachedClips.Add(ctx, 1)
	return nil
}

// Release drops the reservation for key without storing a clip, making the
// key available to a later Reserve. Releasing a key that is not pending is a
// no-op.
func (c *Cache) Release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[key]; !ok {
		return
	}
	delete(c.pending, key)
	c.metrics.PendingLoads.Add(context.Background(), -1)
}

// Pending reports whether key is reserved and not yet committed.
func (c *Cache) Pending(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[key]
	return ok
}

// Stats returns the current number of cached and pending keys.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Cached: len(c.clips), Pending: len(c.pending)}
}
