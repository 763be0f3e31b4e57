// Package ebitenaudio implements the [audio.Emitter] and [audio.Scene]
// interfaces on top of ebiten's audio players, so voice lines can be heard
// through the local sound device.
//
// Only decoded [audio.Clip] values can be played. They are converted once to
// 32-bit float stereo at the context's sample rate and the converted bytes
// are shared by every player of the same clip.
package ebitenaudio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ebaudio "github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio"
)

// EndedFunc is called on the stepping goroutine when an emitter's clip
// plays to its end.
type EndedFunc func(e audio.Emitter)

// Backend owns the ebiten emitters of one audio context.
type Backend struct {
	ctx *ebaudio.Context

	mu       sync.Mutex
	pcm      map[*audio.Clip][]byte
	emitters []*Emitter
	onEnded  EndedFunc
}

var _ audio.Scene = (*Backend)(nil)

// New returns a backend playing through ctx. ebiten allows one context per
// process; use [ebaudio.CurrentContext] to share an existing one.
func New(ctx *ebaudio.Context) *Backend {
	return &Backend{ctx: ctx, pcm: make(map[*audio.Clip][]byte)}
}

// OnEnded registers fn to be told about clips that finished playing.
func (b *Backend) OnEnded(fn EndedFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onEnded = fn
}

// NewEmitter creates an emitter and adds it to the scene.
func (b *Backend) NewEmitter(id, tag, location string) *Emitter {
	e := &Emitter{b: b, id: id, tag: tag, location: location, volume: 1}
	b.mu.Lock()
	b.emitters = append(b.emitters, e)
	b.mu.Unlock()
	return e
}

// Emitters implements [audio.Scene].
func (b *Backend) Emitters(tag string) []audio.Emitter {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []audio.Emitter
	for _, e := range b.emitters {
		if e.tag == tag && e.Alive() {
			out = append(out, e)
		}
	}
	return out
}

// Step implements a never-ending scheduler task that reports clips that
// played to their end and forgets closed emitters.
func (b *Backend) Step(time.Duration) bool {
	b.mu.Lock()
	emitters := make([]*Emitter, 0, len(b.emitters))
	kept := b.emitters[:0]
	for _, e := range b.emitters {
		if e.Alive() {
			kept = append(kept, e)
			emitters = append(emitters, e)
		}
	}
	clear(b.emitters[len(kept):])
	b.emitters = kept
	onEnded := b.onEnded
	b.mu.Unlock()

	for _, e := range emitters {
		if e.ended() && onEnded != nil {
			onEnded(e)
		}
	}
	return false
}

// Close closes every emitter.
func (b *Backend) Close() {
	b.mu.Lock()
	emitters := b.emitters
	b.emitters = nil
	b.mu.Unlock()
	for _, e := range emitters {
		e.Close()
	}
}

// bytesFor returns the playback bytes of clip, converting it on first use.
func (b *Backend) bytesFor(clip *audio.Clip) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pcm, ok := b.pcm[clip]; ok {
		return pcm
	}
	pcm := audio.PlaybackBytes(clip, b.ctx.SampleRate())
	b.pcm[clip] = pcm
	return pcm
}

// Emitter is an [audio.Emitter] backed by an ebiten player. The player is
// created lazily on Play and replaced whenever the clip or loop mode changes.
type Emitter struct {
	b                 *Backend
	id, tag, location string

	mu      sync.Mutex
	closed  bool
	clip    *audio.Clip
	player  *ebaudio.Player
	loop    bool
	volume  float64
	started bool
}

var _ audio.Emitter = (*Emitter)(nil)

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
	return !e.closed
}

// Clip implements [audio.Emitter].
func (e *Emitter) Clip() audio.ClipRef {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.clip == nil {
		return nil
	}
	return e.clip
}

// SetClip implements [audio.Emitter]. c must be a decoded [*audio.Clip].
func (e *Emitter) SetClip(c audio.ClipRef) error {
	clip, ok := c.(*audio.Clip)
	if c != nil && !ok {
		return fmt.Errorf("ebitenaudio: unsupported clip type %T", c)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return audio.ErrEngineObjectGone
	}
	e.dropPlayer()
	e.clip = clip
	return nil
}

// IsPlaying implements [audio.Emitter].
func (e *Emitter) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.player != nil && e.player.IsPlaying()
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
	if e.player != nil {
		e.player.SetVolume(e.volume)
	}
}

// SetLoop implements [audio.Emitter]. It takes effect on the next Play.
func (e *Emitter) SetLoop(loop bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loop != loop {
		e.loop = loop
		if e.player != nil && !e.player.IsPlaying() {
			e.dropPlayer()
		}
	}
}

// Play implements [audio.Emitter].
func (e *Emitter) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || !e.clip.Valid() {
		return audio.ErrEngineObjectGone
	}
	if e.player == nil {
		p, err := e.newPlayer()
		if err != nil {
			return err
		}
		e.player = p
	}
	e.player.SetVolume(e.volume)
	e.player.Play()
	e.started = true
	return nil
}

func (e *Emitter) newPlayer() (*ebaudio.Player, error) {
	pcm := e.b.bytesFor(e.clip)
	if !e.loop {
		return e.b.ctx.NewPlayerF32FromBytes(pcm), nil
	}
	stream := ebaudio.NewInfiniteLoopF32(bytes.NewReader(pcm), int64(len(pcm)))
	p, err := e.b.ctx.NewPlayerF32(stream)
	if err != nil {
		return nil, fmt.Errorf("ebitenaudio: %s: new player: %w", e.id, err)
	}
	return p, nil
}

// Stop implements [audio.Emitter]. Playback restarts from the beginning.
func (e *Emitter) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = false
	if e.player == nil {
		return
	}
	e.player.Pause()
	if err := e.player.Rewind(); err != nil {
		slog.Debug("ebitenaudio: rewind failed", "emitter", e.id, "err", err)
	}
}

// Close releases the player and removes the emitter from the engine.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.dropPlayer()
}

// ended reports once that a started clip stopped on its own.
func (e *Emitter) ended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started || e.player == nil || e.player.IsPlaying() {
		return false
	}
	e.started = false
	return true
}

func (e *Emitter) dropPlayer() {
	e.started = false
	if e.player == nil {
		return
	}
	if err := e.player.Close(); err != nil {
		slog.Debug("ebitenaudio: close player", "emitter", e.id, "err", err)
	}
	e.player = nil
}

// Hooks are the engine call sites PlayClip reports to.
type Hooks interface {
	OnPlaybackRequested(ctx context.Context, e audio.Emitter, requested audio.ClipRef) audio.ClipRef
}

// PlayClip asks hooks which clip e should play instead of requested, assigns
// it, and starts playback.
func PlayClip(ctx context.Context, hooks Hooks, e *Emitter, requested *audio.Clip) error {
	clip := hooks.OnPlaybackRequested(ctx, e, requested)
	if err := e.SetClip(clip); err != nil {
		return err
	}
	return e.Play()
}
