// Package sim is a headless stand-in for the game engine.
//
// A [World] owns a set of [Emitter]s whose playback advances with the frame
// clock instead of a sound device. Radios in the world work through a
// playlist, sending every track through the playback hooks the same way the
// game's audio call sites do, so the whole voice line pipeline can be run and
// observed without the game.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio"
)

// Hooks are the engine call sites the world reports to.
// [*intercept.Interceptor] satisfies it.
type Hooks interface {
	OnPlaybackRequested(ctx context.Context, e audio.Emitter, requested audio.ClipRef) audio.ClipRef
	OnPlaybackEnded(e audio.Emitter)
}

// passThrough plays every request unchanged.
type passThrough struct{}

func (passThrough) OnPlaybackRequested(_ context.Context, _ audio.Emitter, c audio.ClipRef) audio.ClipRef {
	return c
}
func (passThrough) OnPlaybackEnded(audio.Emitter) {}

// ─── Track ────────────────────────────────────────────────────────────────────

// Track is an engine-owned clip with a fixed length, such as a stock radio
// track.
type Track struct {
	Name   string
	Length time.Duration

	destroyed atomic.Bool
}

var _ audio.ClipRef = (*Track)(nil)

// ClipName implements [audio.ClipRef].
func (t *Track) ClipName() string { return t.Name }

// Valid implements [audio.ClipRef].
func (t *Track) Valid() bool { return t != nil && !t.destroyed.Load() }

// Destroy unloads the track.
func (t *Track) Destroy() { t.destroyed.Store(true) }

// clipLength returns how long c plays, or zero for clips of unknown length.
func clipLength(c audio.ClipRef) time.Duration {
	switch c := c.(type) {
	case *audio.Clip:
		return c.Duration()
	case *Track:
		return c.Length
	}
	return 0
}

// ─── Emitter ──────────────────────────────────────────────────────────────────

// Emitter is a simulated playback object.
type Emitter struct {
	id, tag, location string

	mu        sync.Mutex
	destroyed bool
	clip      audio.ClipRef
	playing   bool
	loop      bool
	volume    float64
	pos       time.Duration

	playlist []audio.ClipRef
	next     int
	gap      time.Duration
	idle     time.Duration
}

var _ audio.Emitter = (*Emitter)(nil)

// NewEmitter returns an idle emitter at full volume.
func NewEmitter(id, tag, location string) *Emitter {
	return &Emitter{id: id, tag: tag, location: location, volume: 1}
}

// ID implements [audio.Emitter].
func (e *Emitter) ID() string { return e.id }

// Tag implements [audio.Emitter].
func (e *Emitter) Tag() string { return e.tag }

// Location implements [audio.Emitter].
func (e *Emitter) Location() string { return e.location }

// Alive implements [audio.Emitter].
func (e *Emitter) Alive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.destroyed
}

// Clip implements [audio.Emitter].
func (e *Emitter) Clip() audio.ClipRef {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clip
}

// SetClip implements [audio.Emitter]. Playback stops and rewinds.
func (e *Emitter) SetClip(c audio.ClipRef) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return audio.ErrEngineObjectGone
	}
	e.clip = c
	e.playing = false
	e.pos = 0
	return nil
}

// IsPlaying implements [audio.Emitter].
func (e *Emitter) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// Volume implements [audio.Emitter].
func (e *Emitter) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// SetVolume implements [audio.Emitter].
func (e *Emitter) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = audio.ClampVolume(v)
}

// SetLoop implements [audio.Emitter].
func (e *Emitter) SetLoop(loop bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loop = loop
}

// Play implements [audio.Emitter]. Playing without a valid clip fails with
// [audio.ErrEngineObjectGone].
func (e *Emitter) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed || e.clip == nil || !e.clip.Valid() {
		return audio.ErrEngineObjectGone
	}
	e.playing = true
	return nil
}

// Stop implements [audio.Emitter].
func (e *Emitter) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing = false
	e.pos = 0
}

// Position returns the playback position within the current clip.
func (e *Emitter) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos
}

// Destroy removes the emitter from the engine.
func (e *Emitter) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroyed = true
	e.playing = false
}

// SetPlaylist makes the emitter a radio that requests tracks in order,
// waiting gap between the end of one track and the next request.
func (e *Emitter) SetPlaylist(tracks []audio.ClipRef, gap time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playlist = tracks
	e.next = 0
	e.gap = gap
	e.idle = gap
}

// advance moves playback forward by dt and reports whether the clip ended.
func (e *Emitter) advance(dt time.Duration) (ended bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.playing || e.destroyed {
		return false
	}
	length := clipLength(e.clip)
	if length <= 0 {
		return false
	}
	e.pos += dt
	if e.pos < length {
		return false
	}
	if e.loop {
		e.pos %= length
		return false
	}
	e.playing = false
	e.pos = 0
	e.idle = 0
	return true
}

// due returns the next playlist track once the emitter has been idle for the
// playlist gap.
func (e *Emitter) due(dt time.Duration) (audio.ClipRef, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed || e.playing || len(e.playlist) == 0 {
		return nil, false
	}
	e.idle += dt
	if e.idle < e.gap {
		return nil, false
	}
	track := e.playlist[e.next%len(e.playlist)]
	e.next++
	return track, true
}

// ─── World ────────────────────────────────────────────────────────────────────

// World is a simulated scene. It implements [audio.Scene] and is stepped by
// the frame scheduler.
type World struct {
	hooks Hooks

	mu       sync.Mutex
	emitters []*Emitter
	ctx      context.Context
}

var _ audio.Scene = (*World)(nil)

// NewWorld returns an empty world reporting to hooks. A nil hooks plays
// every clip as requested.
func NewWorld(hooks Hooks) *World {
	if hooks == nil {
		hooks = passThrough{}
	}
	return &World{hooks: hooks, ctx: context.Background()}
}

// SetHooks replaces the playback hooks.
func (w *World) SetHooks(h Hooks) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if h == nil {
		h = passThrough{}
	}
	w.hooks = h
}

func (w *World) currentHooks() Hooks {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hooks
}

// Add places emitters in the world.
func (w *World) Add(emitters ...*Emitter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.emitters = append(w.emitters, emitters...)
}

// Emitters implements [audio.Scene].
func (w *World) Emitters(tag string) []audio.Emitter {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []audio.Emitter
	for _, e := range w.emitters {
		if e.tag == tag && e.Alive() {
			out = append(out, e)
		}
	}
	return out
}

// All returns every emitter still in the world.
func (w *World) All() []*Emitter {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*Emitter, 0, len(w.emitters))
	for _, e := range w.emitters {
		if e.Alive() {
			out = append(out, e)
		}
	}
	return out
}

// PlayClip is the engine call site: it lets the hooks pick the clip, assigns
// it to e, and starts playback.
func (w *World) PlayClip(ctx context.Context, e *Emitter, requested audio.ClipRef) error {
	clip := w.currentHooks().OnPlaybackRequested(ctx, e, requested)
	if clip == nil {
		return fmt.Errorf("sim: %s: no clip to play", e.ID())
	}
	if err := e.SetClip(clip); err != nil {
		return err
	}
	if err := e.Play(); err != nil {
		return err
	}
	slog.Debug("sim: playing",
		"emitter", e.ID(),
		"location", e.Location(),
		"clip", clip.ClipName(),
		"substituted", clip != requested,
		"volume", e.Volume(),
	)
	return nil
}

// Step implements [scheduler.Task]. It advances every emitter, reports ended
// clips, and starts due playlist tracks. It never finishes.
func (w *World) Step(dt time.Duration) bool {
	hooks := w.currentHooks()
	for _, e := range w.All() {
		if e.advance(dt) {
			hooks.OnPlaybackEnded(e)
		}
		if track, ok := e.due(dt); ok {
			if err := w.PlayClip(w.ctx, e, track); err != nil {
				slog.Debug("sim: track not started", "emitter", e.ID(), "err", err)
			}
		}
	}
	w.prune()
	return false
}

func (w *World) prune() {
	w.mu.Lock()
	defer w.mu.Unlock()
	kept := w.emitters[:0]
	for _, e := range w.emitters {
		if e.Alive() {
			kept = append(kept, e)
		}
	}
	clear(w.emitters[len(kept):])
	w.emitters = kept
}
