// Package audio defines the engine-facing types for voice line playback.
//
// The primary abstractions are:
//
//   - [Clip]: decoded, immutable PCM audio shared by every playback of one key.
//   - [ClipRef]: anything an emitter can play: a decoded [Clip] or an
//     engine-owned clip that may be destroyed behind our back.
//   - [Emitter]: a positional or UI audio source owned by the host engine.
//   - [Scene]: enumerates live emitters by tag.
//
// Implementations of [Emitter] and [Scene] are provided by adapter packages
// (e.g., audio/ebitenaudio, internal/sim). The interfaces are intentionally
// narrow so the interception and fade logic stays decoupled from any engine.
//
// This package lives under pkg/ because engine adapters outside this module
// are expected to implement [Emitter] and [Scene].
package audio

import "errors"

// ErrEngineObjectGone is returned when an emitter or clip has been destroyed
// by the engine between scheduling and use.
var ErrEngineObjectGone = errors.New("audio: engine object gone")

// ClipRef is a playable clip reference. Two references denote the same clip
// when they compare equal with ==.
type ClipRef interface {
	// ClipName returns a human-readable clip name for logging.
	ClipName() string

	// Valid reports whether the clip still exists. Engine clips become
	// invalid when the engine unloads them.
	Valid() bool
}

// Emitter is an engine playback object.
//
// Emitters are only touched from the tick goroutine; implementations need not
// be safe for concurrent use unless they say so.
type Emitter interface {
	// ID uniquely identifies the emitter for the lifetime of the process.
	ID() string

	// Tag classifies the emitter (e.g. "BoomboxAudio" for radios).
	Tag() string

	// Location names the placement the emitter belongs to (e.g. "gym").
	// Empty for emitters without a placement, such as UI face cards.
	Location() string

	// Alive reports whether the engine object still exists.
	Alive() bool

	// Clip returns the currently assigned clip, or nil.
	Clip() ClipRef

	// SetClip assigns c. It returns [ErrEngineObjectGone] when the emitter
	// has been destroyed.
	SetClip(c ClipRef) error

	// IsPlaying reports whether the emitter is currently producing sound.
	IsPlaying() bool

	// Volume returns the current volume in [0, 1].
	Volume() float64

	// SetVolume sets the volume, clamped to [0, 1].
	SetVolume(v float64)

	// SetLoop controls whether playback restarts when the clip ends.
	SetLoop(loop bool)

	// Play starts playback of the current clip from the beginning.
	Play() error

	// Stop halts playback. Stopping an idle emitter is a no-op.
	Stop()
}

// Scene enumerates live engine emitters.
type Scene interface {
	// Emitters returns every live emitter with the given tag.
	Emitters(tag string) []Emitter
}

// ClampVolume limits v to [0, 1].
func ClampVolume(v float64) float64 {
	return min(max(v, 0), 1)
}
