// Package scheduler runs cooperative per-frame tasks.
//
// Every piece of tick-driven work (resource reads, decode polling, fades,
// clip restoration) is an explicit [Task] whose Step method is called once
// per frame with the elapsed frame time. A task suspends by returning false
// and is resumed on the next [Scheduler.Tick]; it finishes by returning true.
// Tasks and posted callbacks run on the goroutine that calls Tick (normally
// [Scheduler.Run]), which is the only goroutine allowed to touch engine
// objects.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/observe"
)

// Task is a resumable unit of per-frame work.
type Task interface {
	// Step advances the task by one frame of length dt and reports whether
	// the task is finished.
	Step(dt time.Duration) (done bool)
}

// TaskFunc adapts a function to [Task].
type TaskFunc func(dt time.Duration) bool

// Step implements [Task].
func (f TaskFunc) Step(dt time.Duration) bool { return f(dt) }

// Handle refers to a started task.
type Handle struct {
	name      string
	task      Task
	cancelled atomic.Bool
	done      atomic.Bool
}

// Cancel stops the task before its next step. Cancelling a finished task is
// a no-op.
func (h *Handle) Cancel() {
	if h != nil {
		h.cancelled.Store(true)
	}
}

// Done reports whether the task finished or was cancelled and removed.
func (h *Handle) Done() bool {
	return h != nil && h.done.Load()
}

// Name returns the name given to [Scheduler.Start].
func (h *Handle) Name() string { return h.name }

// Scheduler drives tasks one frame at a time. Start, Post, and Cancel are
// safe for concurrent use; Tick must be called from a single goroutine.
type Scheduler struct {
	metrics *observe.Metrics

	mu       sync.Mutex
	incoming []*Handle
	posted   []func()

	// owned by the ticking goroutine
	active []*Handle

	lastTick atomic.Int64
	frames   atomic.Uint64
	running  atomic.Int64
}

// Option configures a [Scheduler].
type Option func(*Scheduler)

// WithMetrics records the task gauge on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Scheduler) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New returns an idle scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Start schedules t. Its first step runs on the next Tick, even when Start is
// called from inside a running task.
func (s *Scheduler) Start(name string, t Task) *Handle {
	h := &Handle{name: name, task: t}
	s.mu.Lock()
	s.incoming = append(s.incoming, h)
	s.mu.Unlock()

	s.running.Add(1)
	s.metrics.ScheduledTasks.Add(context.Background(), 1)
	return h
}

// Post runs fn once on the ticking goroutine at the start of the next Tick.
// Engine adapters use it to hand events from other goroutines to the frame
// loop.
func (s *Scheduler) Post(fn func()) {
	s.mu.Lock()
	s.posted = append(s.posted, fn)
	s.mu.Unlock()
}

// Tick runs posted callbacks, then steps every active task once with dt.
// Finished, cancelled, and panicking tasks are removed.
func (s *Scheduler) Tick(dt time.Duration) {
	s.mu.Lock()
	posted := s.posted
	s.posted = nil
	s.active = append(s.active, s.incoming...)
	s.incoming = nil
	s.mu.Unlock()

	for _, fn := range posted {
		s.runPosted(fn)
	}

	kept := s.active[:0]
	for _, h := range s.active {
		if h.cancelled.Load() || s.step(h, dt) {
			s.finish(h)
			continue
		}
		kept = append(kept, h)
	}
	clear(s.active[len(kept):])
	s.active = kept

	s.frames.Add(1)
	s.lastTick.Store(time.Now().UnixNano())
}

// step runs one task step, treating a panic as completion.
func (s *Scheduler) step(h *Handle, dt time.Duration) (done bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduler: task panicked", "task", h.name, "err", fmt.Errorf("%v", r))
			done = true
		}
	}()
	return h.task.Step(dt)
}

func (s *Scheduler) runPosted(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduler: posted callback panicked", "err", fmt.Errorf("%v", r))
		}
	}()
	fn()
}

func (s *Scheduler) finish(h *Handle) {
	h.done.Store(true)
	s.running.Add(-1)
	s.metrics.ScheduledTasks.Add(context.Background(), -1)
}

// Run calls Tick every interval until ctx is cancelled, passing the measured
// time since the previous frame. It returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("scheduler: invalid tick interval %v", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.Tick(now.Sub(prev))
			prev = now
		}
	}
}

// Len returns the number of started tasks that have not finished.
func (s *Scheduler) Len() int {
	return int(s.running.Load())
}

// Frames returns the number of completed ticks.
func (s *Scheduler) Frames() uint64 {
	return s.frames.Load()
}

// LastTick returns the wall time of the most recent tick, or the zero time
// if the scheduler has never ticked.
func (s *Scheduler) LastTick() time.Time {
	ns := s.lastTick.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
