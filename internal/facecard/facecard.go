// Package facecard plays a character's voice line on the character
// selection screen.
//
// Each face card view carries its own emitter. [Manager.Attach] gives the
// emitter the looping voice line of the card's character, starting silent;
// selecting the card fades the line in to the configured face-card volume
// and deselecting it fades it out again.
package facecard

import (
	"context"
	"log/slog"
	"sync"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/catalog"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/clipcache"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/config"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/fade"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/scheduler"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio"
)

// Loader starts background loads. [*loader.Coordinator] satisfies it.
type Loader interface {
	Request(ctx context.Context, key, path string) bool
}

// Config holds the collaborators of a [Manager].
type Config struct {
	Live      *config.Live
	Catalog   *catalog.Catalog
	Cache     *clipcache.Cache
	Loader    Loader
	Scheduler *scheduler.Scheduler

	// FadeOptions are passed to every [fade.Controller].
	FadeOptions []fade.Option
}

type card struct {
	view     audio.Emitter
	face     string
	key      string
	ctrl     *fade.Controller
	attached bool
	selected bool
}

// Manager tracks the face cards that have a voice line.
type Manager struct {
	live     *config.Live
	catalog  *catalog.Catalog
	cache    *clipcache.Cache
	loader   Loader
	sched    *scheduler.Scheduler
	fadeOpts []fade.Option

	mu    sync.Mutex
	cards map[string]*card
}

// New returns a manager and subscribes it to face-card volume changes.
func New(cfg Config) *Manager {
	m := &Manager{
		live:     cfg.Live,
		catalog:  cfg.Catalog,
		cache:    cfg.Cache,
		loader:   cfg.Loader,
		sched:    cfg.Scheduler,
		fadeOpts: cfg.FadeOptions,
		cards:    make(map[string]*card),
	}
	m.live.Subscribe(m.onConfigChange)
	return m
}

// Attach registers view as the face card of faceName and reports whether the
// face has a voice line. The clip is attached right away when cached and
// otherwise as soon as its load completes.
func (m *Manager) Attach(ctx context.Context, view audio.Emitter, faceName string) bool {
	key, ok := m.catalog.KeyForFace(faceName)
	if !ok {
		return false
	}

	c := &card{
		view: view,
		face: faceName,
		key:  key,
		ctrl: fade.New(view, m.sched, m.live.FaceCardVolume, m.fadeOpts...),
	}
	m.mu.Lock()
	if prev := m.cards[view.ID()]; prev != nil {
		prev.ctrl.Close()
	}
	m.cards[view.ID()] = c
	m.mu.Unlock()

	if clip, hit := m.cache.TryGet(key); hit {
		m.attach(c, clip)
		return true
	}
	started := m.loader.Request(ctx, key, catalog.Path(key))
	slog.Debug("facecard: waiting for voice line", "face", faceName, "key", key, "load_started", started)
	return true
}

// OnClipLoaded attaches clip to every card waiting for key. It has the
// signature of a loader listener.
func (m *Manager) OnClipLoaded(key string, clip *audio.Clip) {
	m.mu.Lock()
	var waiting []*card
	for _, c := range m.cards {
		if c.key == key && !c.attached {
			waiting = append(waiting, c)
		}
	}
	m.mu.Unlock()

	for _, c := range waiting {
		m.attach(c, clip)
	}
}

func (m *Manager) attach(c *card, clip *audio.Clip) {
	if err := c.view.SetClip(clip); err != nil {
		slog.Debug("facecard: attach failed", "face", c.face, "err", err)
		return
	}
	c.view.SetLoop(true)
	c.view.SetVolume(0)

	m.mu.Lock()
	c.attached = true
	selected := c.selected
	m.mu.Unlock()

	slog.Debug("facecard: voice line attached", "face", c.face, "clip", clip.String())
	if selected {
		c.ctrl.FadeIn()
	}
}

// Toggle fades the voice line of view in when selected and out otherwise.
// A selection made before the clip is attached takes effect on attach.
func (m *Manager) Toggle(view audio.Emitter, selected bool) {
	m.mu.Lock()
	c := m.cards[view.ID()]
	if c == nil {
		m.mu.Unlock()
		return
	}
	c.selected = selected
	attached := c.attached
	m.mu.Unlock()

	if !attached {
		return
	}
	if selected {
		c.ctrl.FadeIn()
	} else {
		c.ctrl.FadeOut()
	}
}

// Detach forgets view and cancels its fade.
func (m *Manager) Detach(view audio.Emitter) {
	m.mu.Lock()
	c := m.cards[view.ID()]
	delete(m.cards, view.ID())
	m.mu.Unlock()
	if c != nil {
		c.ctrl.Close()
	}
}

// Len returns the number of registered face cards.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cards)
}

// State returns the fade state of view.
func (m *Manager) State(view audio.Emitter) (fade.State, bool) {
	m.mu.Lock()
	c := m.cards[view.ID()]
	m.mu.Unlock()
	if c == nil {
		return fade.State{}, false
	}
	return c.ctrl.State(), true
}

// onConfigChange forwards a new face-card volume to every card on the frame
// loop.
func (m *Manager) onConfigChange(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.FaceCardVolumeChanged {
		return
	}
	v := d.NewFaceCardVolume
	m.sched.Post(func() {
		m.mu.Lock()
		ctrls := make([]*fade.Controller, 0, len(m.cards))
		for _, c := range m.cards {
			if c.attached {
				ctrls = append(ctrls, c.ctrl)
			}
		}
		m.mu.Unlock()

		for _, ctrl := range ctrls {
			ctrl.ApplyVolume(v)
		}
	})
}
