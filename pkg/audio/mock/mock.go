// Package mock provides in-memory mock implementations of the [audio.Emitter],
// [audio.Scene], and [audio.ClipRef] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record method calls so that
// tests can assert on call counts, and they expose exported fields that the
// test can set to control behaviour.
//
// Typical usage:
//
//	orig := &mock.Clip{Name: "radio_track_01"}
//	radio := mock.NewEmitter("radio-1", "BoomboxAudio", "gym")
//	radio.SetClip(orig)
//	_ = radio.Play()
//	scene := &mock.Scene{}
//	scene.Add(radio)
package mock

import (
	"sync"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio"
)

// ─── Clip ─────────────────────────────────────────────────────────────────────

// Clip is a mock engine-owned [audio.ClipRef]. Set Destroyed to simulate the
// engine unloading the clip.
type Clip struct {
	mu sync.Mutex

	// Name is returned by [Clip.ClipName].
	Name string

	// Destroyed makes [Clip.Valid] report false.
	Destroyed bool
}

var _ audio.ClipRef = (*Clip)(nil)

// ClipName implements [audio.ClipRef].
func (c *Clip) ClipName() string { return c.Name }

// Valid implements [audio.ClipRef].
func (c *Clip) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.Destroyed
}

// Destroy marks the clip as destroyed.
func (c *Clip) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Destroyed = true
}

// ─── Emitter ──────────────────────────────────────────────────────────────────

// Emitter is a mock implementation of [audio.Emitter]. It never advances
// playback on its own; call [Emitter.Finish] to simulate the clip ending.
type Emitter struct {
	mu sync.Mutex

	id, tag, location string

	destroyed bool
	clip      audio.ClipRef
	playing   bool
	loop      bool
	volume    float64

	// PlayError is returned by [Emitter.Play] when set.
	PlayError error

	// CallCountPlay records how many times Play succeeded.
	CallCountPlay int

	// CallCountStop records how many times Stop was called.
	CallCountStop int

	// CallCountSetClip records how many times SetClip succeeded.
	CallCountSetClip int

	// VolumeHistory records every value passed to SetVolume, after clamping.
	VolumeHistory []float64
}

var _ audio.Emitter = (*Emitter)(nil)

// NewEmitter returns an idle, live emitter at volume 1.
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

// SetClip implements [audio.Emitter]. Assigning a clip stops playback, as
// engines do when the source clip is swapped.
func (e *Emitter) SetClip(c audio.ClipRef) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return audio.ErrEngineObjectGone
	}
	e.clip = c
	e.playing = false
	e.CallCountSetClip++
	return nil
}

// IsPlaying implements [audio.Emitter].
func (e *Emitter) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing && !e.destroyed
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
	e.VolumeHistory = append(e.VolumeHistory, e.volume)
}

// SetLoop implements [audio.Emitter].
func (e *Emitter) SetLoop(loop bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loop = loop
}

// Loop reports the last value passed to SetLoop.
func (e *Emitter) Loop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loop
}

// Play implements [audio.Emitter].
func (e *Emitter) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return audio.ErrEngineObjectGone
	}
	if e.PlayError != nil {
		return e.PlayError
	}
	e.playing = true
	e.CallCountPlay++
	return nil
}

// Stop implements [audio.Emitter].
func (e *Emitter) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing = false
	e.CallCountStop++
}

// Finish simulates the current clip reaching its end without looping.
func (e *Emitter) Finish() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loop {
		e.playing = false
	}
}

// Destroy simulates the engine destroying the emitter.
func (e *Emitter) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroyed = true
	e.playing = false
}

// ─── Scene ────────────────────────────────────────────────────────────────────

// Scene is a mock implementation of [audio.Scene].
type Scene struct {
	mu       sync.Mutex
	emitters []audio.Emitter

	// CallCountEmitters records how many times Emitters was called.
	CallCountEmitters int
}

var _ audio.Scene = (*Scene)(nil)

// Add registers emitters with the scene.
func (s *Scene) Add(emitters ...audio.Emitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitters = append(s.emitters, emitters...)
}

// Emitters implements [audio.Scene]. Destroyed emitters are skipped.
func (s *Scene) Emitters(tag string) []audio.Emitter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountEmitters++
	var out []audio.Emitter
	for _, e := range s.emitters {
		if e.Tag() == tag && e.Alive() {
			out = append(out, e)
		}
	}
	return out
}
