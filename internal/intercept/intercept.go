// Package intercept decides what a radio emitter actually plays.
//
// The engine adapter calls [Interceptor.OnPlaybackRequested] whenever an
// emitter is about to start a clip. For emitters carrying the configured tag
// the interceptor runs the location gate, resolves the player's voice line
// through the catalog, and either returns the cached voice line in place of
// the requested clip or starts a background load and lets the request through
// unchanged. Substituted emitters get their original clip back once the voice
// line has finished playing, and loads that complete while a radio is still
// playing its original clip are hot-swapped in.
//
// All hooks are expected on the frame loop goroutine.
package intercept

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/catalog"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/clipcache"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/config"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/observe"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/scheduler"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio"
)

// DefaultArmTimeout bounds how long a restoration waits for the engine to
// start the substituted clip before giving up.
const DefaultArmTimeout = 2 * time.Second

// Gate skip reasons recorded on the skips counter.
const (
	SkipUnconfigured    = "unconfigured"
	SkipDisabled        = "disabled"
	SkipChance          = "chance"
	SkipNoIdentity      = "no_identity"
	SkipUnknownIdentity = "unknown_identity"
	SkipCacheMiss       = "cache_miss"
)

// Rand draws uniformly distributed integers in [0, n).
type Rand interface {
	IntN(n int) int
}

// RandFunc adapts a function to [Rand].
type RandFunc func(n int) int

// IntN implements [Rand].
func (f RandFunc) IntN(n int) int { return f(n) }

// Identity reports the head ID of the local player.
type Identity interface {
	HeadID() (string, bool)
}

// IdentityFunc adapts a function to [Identity].
type IdentityFunc func() (string, bool)

// HeadID implements [Identity].
func (f IdentityFunc) HeadID() (string, bool) { return f() }

// Loader starts background loads. [*loader.Coordinator] satisfies it.
type Loader interface {
	Request(ctx context.Context, key, path string) bool
}

// Config holds the collaborators of an [Interceptor].
type Config struct {
	// Live supplies the emitter tag and per-location settings.
	Live *config.Live

	// Catalog resolves head IDs to voice line keys.
	Catalog *catalog.Catalog

	// Cache holds decoded voice lines.
	Cache *clipcache.Cache

	// Loader is asked for keys missing from Cache.
	Loader Loader

	// Scene lists emitters for hot-swapping.
	Scene audio.Scene

	// Scheduler runs restoration tasks.
	Scheduler *scheduler.Scheduler

	// Identity reports the local player's head.
	Identity Identity

	// Rand drives the replacement chance. Defaults to math/rand/v2.
	Rand Rand

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// ArmTimeout defaults to [DefaultArmTimeout].
	ArmTimeout time.Duration
}

// Interceptor implements the playback hooks.
type Interceptor struct {
	live       *config.Live
	catalog    *catalog.Catalog
	cache      *clipcache.Cache
	loader     Loader
	scene      audio.Scene
	sched      *scheduler.Scheduler
	identity   Identity
	rng        Rand
	metrics    *observe.Metrics
	armTimeout time.Duration

	mu        sync.Mutex
	trackers  map[string]*Tracker
	sessions  map[string]*Session
	originals map[string]map[audio.ClipRef]struct{}
}

// New returns an interceptor wired to the collaborators in cfg.
func New(cfg Config) *Interceptor {
	rng := cfg.Rand
	if rng == nil {
		rng = RandFunc(rand.IntN)
	}
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	armTimeout := cfg.ArmTimeout
	if armTimeout <= 0 {
		armTimeout = DefaultArmTimeout
	}
	return &Interceptor{
		live:       cfg.Live,
		catalog:    cfg.Catalog,
		cache:      cfg.Cache,
		loader:     cfg.Loader,
		scene:      cfg.Scene,
		sched:      cfg.Scheduler,
		identity:   cfg.Identity,
		rng:        rng,
		metrics:    m,
		armTimeout: armTimeout,
		trackers:   make(map[string]*Tracker),
		sessions:   make(map[string]*Session),
		originals:  make(map[string]map[audio.ClipRef]struct{}),
	}
}

// OnPlaybackRequested returns the clip e should play in place of requested.
// It returns requested unchanged whenever no voice line is substituted.
func (i *Interceptor) OnPlaybackRequested(ctx context.Context, e audio.Emitter, requested audio.ClipRef) audio.ClipRef {
	if e == nil || e.Tag() != i.live.EmitterTag() {
		return requested
	}

	loc, ok := i.live.Location(e.Location())
	if !ok {
		i.skip(ctx, e, SkipUnconfigured)
		return requested
	}
	tracker := i.tracker(e)
	if reason, attempt := i.gate(loc, tracker); !attempt {
		i.skip(ctx, e, reason)
		return requested
	}

	headID, ok := i.identity.HeadID()
	if !ok {
		i.skip(ctx, e, SkipNoIdentity)
		return requested
	}
	key, ok := i.catalog.KeyForHead(headID)
	if !ok {
		i.skip(ctx, e, SkipUnknownIdentity)
		return requested
	}

	clip, hit := i.cache.TryGet(key)
	if !hit {
		i.remember(key, requested)
		started := i.loader.Request(ctx, key, catalog.Path(key))
		slog.Debug("intercept: voice line not cached", "emitter", e.ID(), "key", key, "load_started", started)
		i.skip(ctx, e, SkipCacheMiss)
		return requested
	}

	e.SetVolume(loc.Volume)
	i.mu.Lock()
	tracker.HasPlayedFirstEntrance = true
	i.mu.Unlock()
	i.track(e, requested, clip)

	i.metrics.RecordSubstitution(ctx, loc.Name)
	slog.Debug("intercept: substituted voice line",
		"emitter", e.ID(),
		"location", loc.Name,
		"key", key,
		"original", clipName(requested),
	)
	return clip
}

// OnPlaybackEnded runs the restoration check for e immediately instead of
// waiting for the next frame.
func (i *Interceptor) OnPlaybackEnded(e audio.Emitter) {
	if e == nil {
		return
	}
	i.mu.Lock()
	s := i.sessions[e.ID()]
	i.mu.Unlock()
	if s != nil {
		s.check(0)
	}
}

// Sessions returns the number of substitutions that have not been restored.
func (i *Interceptor) Sessions() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.sessions)
}

// Tracker returns a copy of the gate state for e, if any.
func (i *Interceptor) Tracker(e audio.Emitter) (Tracker, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	t, ok := i.trackers[e.ID()]
	if !ok {
		return Tracker{}, false
	}
	return *t, true
}

// gate applies the location settings. The first entrance bypasses the
// chance draw until a voice line has actually played at this emitter.
func (i *Interceptor) gate(loc config.LocationConfig, t *Tracker) (reason string, attempt bool) {
	if !loc.Enabled {
		return SkipDisabled, false
	}
	i.mu.Lock()
	firstEntrance := loc.PlayOnFirstEntrance && !t.HasPlayedFirstEntrance
	i.mu.Unlock()
	if firstEntrance {
		return "", true
	}
	if i.rng.IntN(100) < loc.ReplacementChance {
		return "", true
	}
	return SkipChance, false
}

// remember records requested as a clip to hot-swap once key has loaded.
// Every missed request adds to the set until the load is announced.
func (i *Interceptor) remember(key string, requested audio.ClipRef) {
	if requested == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	set, ok := i.originals[key]
	if !ok {
		set = make(map[audio.ClipRef]struct{})
		i.originals[key] = set
	}
	set[requested] = struct{}{}
}

func (i *Interceptor) tracker(e audio.Emitter) *Tracker {
	i.mu.Lock()
	defer i.mu.Unlock()
	t, ok := i.trackers[e.ID()]
	if !ok {
		t = &Tracker{Location: e.Location()}
		i.trackers[e.ID()] = t
	}
	return t
}

func (i *Interceptor) skip(ctx context.Context, e audio.Emitter, reason string) {
	i.metrics.RecordGateSkip(ctx, e.Location(), reason)
}

func clipName(c audio.ClipRef) string {
	if c == nil {
		return ""
	}
	return c.ClipName()
}
