// Package fade ramps emitter volume on the frame loop.
//
// A [Controller] owns at most one fade for its emitter. A fade-in moves the
// volume linearly towards a live target that is re-read every frame, so a
// settings change mid-fade bends the ramp; a fade-out moves towards zero and
// stops playback when it gets there. Requesting a fade replaces the one in
// progress.
package fade

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/observe"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/scheduler"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio"
)

// DefaultDuration is the length of a full fade.
const DefaultDuration = 5 * time.Second

// Direction is the kind of fade in progress.
type Direction int

const (
	Idle Direction = iota
	FadingIn
	FadingOut
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case FadingIn:
		return "in"
	case FadingOut:
		return "out"
	default:
		return "idle"
	}
}

// State is a snapshot of a controller's fade.
type State struct {
	Direction   Direction
	StartVolume float64
	Target      float64
	Elapsed     time.Duration
	Duration    time.Duration
}

// Controller fades one emitter. Its methods are safe for concurrent use; the
// fade itself runs on the scheduler.
type Controller struct {
	emitter  audio.Emitter
	sched    *scheduler.Scheduler
	target   func() float64
	duration time.Duration
	metrics  *observe.Metrics

	mu     sync.Mutex
	state  State
	active *fadeTask
}

// Option configures a [Controller].
type Option func(*Controller)

// WithDuration replaces [DefaultDuration].
func WithDuration(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.duration = d
		}
	}
}

// WithMetrics records started fades on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

// New returns an idle controller for e. target supplies the fade-in volume
// and is called once per frame while fading in.
func New(e audio.Emitter, sched *scheduler.Scheduler, target func() float64, opts ...Option) *Controller {
	c := &Controller{
		emitter:  e,
		sched:    sched,
		target:   target,
		duration: DefaultDuration,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// FadeIn starts playback if needed and ramps the volume up to the live
// target.
func (c *Controller) FadeIn() {
	if !c.emitter.Alive() {
		return
	}
	if !c.emitter.IsPlaying() {
		if err := c.emitter.Play(); err != nil {
			slog.Debug("fade: play failed", "emitter", c.emitter.ID(), "err", err)
			return
		}
	}
	c.start(FadingIn)
}

// FadeOut ramps the volume down to zero and stops playback at the end.
func (c *Controller) FadeOut() {
	if !c.emitter.Alive() {
		return
	}
	c.start(FadingOut)
}

// ApplyVolume sets v right away when the emitter is playing and not fading
// out. Otherwise the change is picked up by the next fade-in frame through
// the live target.
func (c *Controller) ApplyVolume(v float64) {
	c.mu.Lock()
	fadingOut := c.state.Direction == FadingOut
	c.mu.Unlock()
	if fadingOut || !c.emitter.Alive() || !c.emitter.IsPlaying() {
		return
	}
	c.emitter.SetVolume(v)
}

// State returns the current fade state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close cancels any fade in progress and leaves the volume where it is.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		c.active.handle.Cancel()
		c.active = nil
	}
	c.state = State{}
}

func (c *Controller) start(dir Direction) {
	t := &fadeTask{c: c, dir: dir, start: c.emitter.Volume()}

	c.mu.Lock()
	if c.active != nil {
		c.active.handle.Cancel()
	}
	c.active = t
	c.state = State{
		Direction:   dir,
		StartVolume: t.start,
		Target:      t.target(),
		Duration:    c.duration,
	}
	t.handle = c.sched.Start("fade "+dir.String()+" "+c.emitter.ID(), t)
	c.mu.Unlock()

	c.metrics.RecordFade(context.Background(), dir.String())
}

// fadeTask is one fade. It stops touching the emitter as soon as it is no
// longer the controller's active fade.
type fadeTask struct {
	c       *Controller
	handle  *scheduler.Handle
	dir     Direction
	start   float64
	elapsed time.Duration
}

func (t *fadeTask) target() float64 {
	if t.dir == FadingOut {
		return 0
	}
	return audio.ClampVolume(t.c.target())
}

// Step implements [scheduler.Task].
func (t *fadeTask) Step(dt time.Duration) bool {
	c := t.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != t {
		return true
	}
	if !c.emitter.Alive() {
		slog.Debug("fade: emitter gone", "emitter", c.emitter.ID(), "direction", t.dir.String())
		c.active = nil
		c.state = State{}
		return true
	}

	t.elapsed += dt
	target := t.target()
	c.state.Target = target
	c.state.Elapsed = t.elapsed

	if t.elapsed >= c.duration {
		c.emitter.SetVolume(target)
		if t.dir == FadingOut {
			c.emitter.Stop()
		}
		c.active = nil
		c.state = State{}
		return true
	}

	frac := float64(t.elapsed) / float64(c.duration)
	c.emitter.SetVolume(t.start + (target-t.start)*frac)
	return false
}
