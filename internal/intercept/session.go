package intercept

import (
	"context"
	"log/slog"
	"time"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/scheduler"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio"
)

// Tracker is the per-emitter gate state.
type Tracker struct {
	// Location is the emitter's location when it was first seen.
	Location string

	// HasPlayedFirstEntrance is set once a voice line has been substituted
	// at this emitter.
	HasPlayedFirstEntrance bool
}

// State is the playback state of a session.
type State int

const (
	// PassThrough means the emitter plays its own clip.
	PassThrough State = iota
	// Substituted means the emitter plays a voice line.
	Substituted
)

// String returns the state name.
func (s State) String() string {
	if s == Substituted {
		return "substituted"
	}
	return "pass-through"
}

// Session restores an emitter's original clip after a voice line has
// played. It is stepped by the scheduler until it restores or abandons.
type Session struct {
	owner       *Interceptor
	handle      *scheduler.Handle
	emitter     audio.Emitter
	original    audio.ClipRef
	substituted audio.ClipRef

	armed    bool
	waited   time.Duration
	state    State
	finished bool
}

// Emitter returns the emitter the session belongs to.
func (s *Session) Emitter() audio.Emitter { return s.emitter }

// Original returns the clip that is restored.
func (s *Session) Original() audio.ClipRef { return s.original }

// Substituted returns the voice line the emitter was given.
func (s *Session) Substituted() audio.ClipRef { return s.substituted }

// State returns the current playback state.
func (s *Session) State() State { return s.state }

// Step implements [scheduler.Task].
func (s *Session) Step(dt time.Duration) bool {
	return s.check(dt)
}

// check runs one restoration step. The session first waits for the engine to
// put the voice line on the emitter, then restores the original clip once
// the emitter has stopped on a clip that is not the original.
func (s *Session) check(dt time.Duration) (done bool) {
	if s.finished {
		return true
	}
	if !s.emitter.Alive() || s.original == nil || !s.original.Valid() {
		s.abandon("engine object gone")
		return true
	}

	current := s.emitter.Clip()
	if !s.armed {
		if current != s.substituted {
			s.waited += dt
			if s.waited >= s.owner.armTimeout {
				s.abandon("voice line never started")
				return true
			}
			return false
		}
		s.armed = true
		s.state = Substituted
	}

	if s.emitter.IsPlaying() || current == s.original {
		if current == s.original {
			s.end()
			return true
		}
		return false
	}

	if err := s.emitter.SetClip(s.original); err != nil {
		s.abandon(err.Error())
		return true
	}
	s.state = PassThrough
	s.owner.metrics.RecordRevert(context.Background(), true)
	slog.Debug("intercept: original clip restored", "emitter", s.emitter.ID(), "clip", clipName(s.original))
	s.end()
	return true
}

func (s *Session) abandon(reason string) {
	s.owner.metrics.RecordRevert(context.Background(), false)
	slog.Debug("intercept: restoration abandoned", "emitter", s.emitter.ID(), "reason", reason)
	s.end()
}

func (s *Session) end() {
	s.finished = true
	s.handle.Cancel()

	i := s.owner
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.sessions[s.emitter.ID()] == s {
		delete(i.sessions, s.emitter.ID())
	}
}

// track starts a restoration session for e, replacing any running one. An
// emitter substituted twice still returns to the first original.
func (i *Interceptor) track(e audio.Emitter, original, substituted audio.ClipRef) *Session {
	i.mu.Lock()
	prev := i.sessions[e.ID()]
	if prev != nil && prev.original != nil {
		original = prev.original
	}
	s := &Session{
		owner:       i,
		emitter:     e,
		original:    original,
		substituted: substituted,
	}
	i.sessions[e.ID()] = s
	i.mu.Unlock()

	if prev != nil {
		prev.finished = true
		prev.handle.Cancel()
	}
	s.handle = i.sched.Start("restore "+e.ID(), s)
	return s
}
