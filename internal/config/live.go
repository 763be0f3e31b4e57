package config

import (
	"sync"
	"sync/atomic"
)

// Live holds the current configuration and notifies subscribers when it is
// replaced. Readers on the tick loop call its getters every frame, so reads
// are lock-free.
type Live struct {
	cur atomic.Pointer[Config]

	mu   sync.Mutex
	subs []func(old, new *Config)
}

// NewLive returns a Live view of cfg. A nil cfg selects [Default].
func NewLive(cfg *Config) *Live {
	if cfg == nil {
		cfg = Default()
	}
	l := &Live{}
	l.cur.Store(cfg)
	return l
}

// Current returns the active configuration. Callers must not modify it.
func (l *Live) Current() *Config {
	return l.cur.Load()
}

// Store replaces the active configuration and calls every subscriber with
// the old and new values. Its signature matches the [Watcher] callback.
func (l *Live) Store(old, new *Config) {
	if new == nil {
		return
	}
	prev := l.cur.Swap(new)
	if old == nil {
		old = prev
	}

	l.mu.Lock()
	subs := make([]func(old, new *Config), len(l.subs))
	copy(subs, l.subs)
	l.mu.Unlock()

	for _, fn := range subs {
		fn(old, new)
	}
}

// Subscribe registers fn to be called after every [Live.Store].
func (l *Live) Subscribe(fn func(old, new *Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, fn)
}

// FaceCardVolume returns the current face-card target volume.
func (l *Live) FaceCardVolume() float64 {
	return l.Current().Audio.FaceCardVolume
}

// Location returns the current settings of the named location.
func (l *Live) Location(name string) (LocationConfig, bool) {
	return l.Current().Location(name)
}

// EmitterTag returns the tag of substitutable radio emitters.
func (l *Live) EmitterTag() string {
	return l.Current().Radio.EmitterTag
}
