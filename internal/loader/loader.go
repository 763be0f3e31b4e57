// Package loader fills the clip cache in the background.
//
// A [Coordinator] turns a cache miss into a load: it reserves the key, then
// runs a per-key task on the frame scheduler that reads the resource one
// chunk per tick, hands the bytes to the decode pool, and polls the decode
// once per tick. A successful decode is committed to the cache and announced
// to every registered [Listener]. Any failure releases the reservation so a
// later request can try again.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/clipcache"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/decodepool"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/observe"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/resource"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/scheduler"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio/wav"
)

// Listener is notified on the frame loop after a clip has been committed.
type Listener func(key string, clip *audio.Clip)

// Coordinator runs background loads. Request and OnLoaded are safe for
// concurrent use; listeners run on the scheduler's ticking goroutine.
type Coordinator struct {
	cache   *clipcache.Cache
	store   *resource.Store
	pool    *decodepool.Pool
	sched   *scheduler.Scheduler
	metrics *observe.Metrics

	mu        sync.Mutex
	listeners []Listener

	inflight atomic.Int64
}

// Option configures a [Coordinator].
type Option func(*Coordinator)

// WithMetrics records load results and fetch latency on m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// New returns a coordinator that loads from store into cache, decoding on
// pool and stepping its tasks on sched.
func New(cache *clipcache.Cache, store *resource.Store, pool *decodepool.Pool, sched *scheduler.Scheduler, opts ...Option) *Coordinator {
	c := &Coordinator{
		cache: cache,
		store: store,
		pool:  pool,
		sched: sched,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// OnLoaded registers l to be called after every successful load.
func (c *Coordinator) OnLoaded(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// InFlight returns the number of loads that have not finished.
func (c *Coordinator) InFlight() int {
	return int(c.inflight.Load())
}

// Request starts loading key from the resource at path and reports whether a
// load was started. It returns false without side effects when key is
// already cached or another load for key is running; the caller keeps its
// original audio in both cases. Request never blocks.
func (c *Coordinator) Request(ctx context.Context, key, path string) bool {
	if !c.cache.Reserve(key) {
		return false
	}

	// The load outlives the triggering request.
	ctx = context.WithoutCancel(ctx)
	ctx, span := observe.StartSpan(ctx, "loader.load",
		trace.WithAttributes(
			attribute.String("voiceline.key", key),
			attribute.String("voiceline.path", path),
		),
	)

	c.inflight.Add(1)
	t := &loadTask{c: c, ctx: ctx, span: span, key: key, path: path}
	c.sched.Start("load "+key, t)
	observe.Logger(ctx).Debug("loader: load started", "key", key, "path", path)
	return true
}

// Preload requests every key in keys, resolving resource paths with pathFor.
// It returns the number of loads started.
func (c *Coordinator) Preload(ctx context.Context, keys []string, pathFor func(key string) string) int {
	started := 0
	for _, key := range keys {
		if c.Request(ctx, key, pathFor(key)) {
			started++
		}
	}
	return started
}

func (c *Coordinator) notify(key string, clip *audio.Clip) {
	c.mu.Lock()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l(key, clip)
	}
}

// ─── load task ────────────────────────────────────────────────────────────────

type loadState int

const (
	stateOpening loadState = iota
	stateFetching
	stateDecoding
)

// loadTask is the per-key state machine stepped by the scheduler.
type loadTask struct {
	c    *Coordinator
	ctx  context.Context
	span trace.Span
	key  string
	path string

	state      loadState
	reader     *resource.ChunkReader
	fetchStart time.Time
	job        *decodepool.Job
}

// Step implements [scheduler.Task]. Each call performs at most one chunk read
// or one decode poll.
func (t *loadTask) Step(time.Duration) bool {
	switch t.state {
	case stateOpening:
		r, err := t.c.store.Open(t.path)
		if err != nil {
			t.fail(err)
			return true
		}
		t.reader = r
		t.fetchStart = time.Now()
		t.state = stateFetching
		return false

	case stateFetching:
		done, err := t.reader.Next()
		if err != nil {
			t.reader.Close()
			t.fail(err)
			return true
		}
		if !done {
			return false
		}
		data := t.reader.Bytes()
		observe.RecordDuration(t.ctx, t.c.metrics.FetchDuration, time.Since(t.fetchStart))
		t.span.AddEvent("fetched", trace.WithAttributes(attribute.Int("bytes", len(data))))
		observe.Logger(t.ctx).Debug("loader: resource read",
			"key", t.key,
			"size", humanize.Bytes(uint64(len(data))),
			"elapsed", time.Since(t.fetchStart),
		)
		t.job = t.c.pool.Submit(t.path, data)
		t.state = stateDecoding
		return false

	case stateDecoding:
		if !t.job.Poll() {
			return false
		}
		clip, err := t.job.Result()
		if err != nil {
			t.fail(err)
			return true
		}
		t.succeed(clip)
		return true
	}
	return true
}

func (t *loadTask) succeed(clip *audio.Clip) {
	defer t.end()

	if err := t.c.cache.Commit(t.key, clip); err != nil {
		t.c.cache.Release(t.key)
		t.span.RecordError(err)
		t.span.SetStatus(codes.Error, err.Error())
		t.c.metrics.RecordLoad(t.ctx, t.key, observe.LoadError)
		observe.Logger(t.ctx).Error("loader: commit failed", "key", t.key, "err", err)
		return
	}

	t.c.metrics.RecordLoad(t.ctx, t.key, observe.LoadOK)
	observe.Logger(t.ctx).Info("loader: clip ready",
		"key", t.key,
		"clip", clip.String(),
		"decode", t.job.Elapsed(),
	)
	t.c.notify(t.key, clip)
}

func (t *loadTask) fail(err error) {
	defer t.end()

	t.c.cache.Release(t.key)
	status := loadStatus(err)
	t.span.RecordError(err)
	t.span.SetStatus(codes.Error, status)
	t.c.metrics.RecordLoad(t.ctx, t.key, status)
	observe.Logger(t.ctx).Warn("loader: load failed",
		"key", t.key,
		"path", t.path,
		"status", status,
		"err", fmt.Errorf("loader: %s: %w", t.key, err),
	)
}

func (t *loadTask) end() {
	t.span.End()
	t.c.inflight.Add(-1)
}

// loadStatus classifies err as one of the observe.Load* values.
func loadStatus(err error) string {
	switch {
	case errors.Is(err, resource.ErrResourceNotFound):
		return observe.LoadNotFound
	case errors.Is(err, wav.ErrMalformedAudio):
		return observe.LoadMalformed
	default:
		return observe.LoadError
	}
}
