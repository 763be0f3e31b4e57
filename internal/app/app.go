// Package app wires the voice line subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run drives the frame loop and the debug HTTP server, and
// Shutdown tears everything down in order.
//
// For testing, inject collaborators via functional options (WithFS,
// WithMetrics, WithRand, ...). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/assets"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/catalog"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/clipcache"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/config"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/decodepool"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/facecard"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/fade"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/intercept"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/loader"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/observe"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/resource"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/scheduler"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/sim"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio/ebitenaudio"
)

// FaceCardTag is the emitter tag of face-card previews.
const FaceCardTag = "FaceCard"

// App owns all subsystem lifetimes and orchestrates the voice line pipeline.
type App struct {
	cfg     *config.Config
	live    *config.Live
	metrics *observe.Metrics

	fsys     fs.FS
	rng      intercept.Rand
	backend  *ebitenaudio.Backend
	metricsH http.Handler

	// Subsystems, initialised in New and torn down in Shutdown.
	store     *resource.Store
	catalog   *catalog.Catalog
	cache     *clipcache.Cache
	pool      *decodepool.Pool
	sched     *scheduler.Scheduler
	loader    *loader.Coordinator
	intercept *intercept.Interceptor
	faces     *facecard.Manager
	world     *sim.World
	scene     audio.Scene
	server    *http.Server

	cardsMu sync.Mutex
	cards   map[string]audio.Emitter

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithFS reads voice line resources from fsys instead of the configured
// asset directory or the embedded assets.
func WithFS(fsys fs.FS) Option {
	return func(a *App) { a.fsys = fsys }
}

// WithMetrics records on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithRand drives the replacement chance from r.
func WithRand(r intercept.Rand) Option {
	return func(a *App) { a.rng = r }
}

// WithEbiten plays through b instead of the headless simulated world.
func WithEbiten(b *ebitenaudio.Backend) Option {
	return func(a *App) { a.backend = b }
}

// WithMetricsHandler serves h at /metrics on the debug server.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsH = h }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. It does not start
// the frame loop; call [App.Run].
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:   cfg,
		live:  config.NewLive(cfg),
		cards: make(map[string]audio.Emitter),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Resources + catalog ───────────────────────────────────────────
	if err := a.initResources(); err != nil {
		return nil, fmt.Errorf("app: init resources: %w", err)
	}

	// ── 2. Cache, decode pool, scheduler, loader ─────────────────────────
	a.initLoading()

	// ── 3. Scene + playback hooks ────────────────────────────────────────
	a.initPlayback()

	// ── 4. Face cards ────────────────────────────────────────────────────
	a.initFaceCards()

	// ── 5. Debug server ──────────────────────────────────────────────────
	a.initServer()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initResources selects the resource filesystem and checks that every
// catalog entry has a resource. Missing resources are logged; their keys
// fail to load and pass through.
func (a *App) initResources() error {
	if a.fsys == nil {
		if dir := a.cfg.Audio.AssetDir; dir != "" {
			info, err := os.Stat(dir)
			if err != nil {
				return fmt.Errorf("asset dir: %w", err)
			}
			if !info.IsDir() {
				return fmt.Errorf("asset dir %q is not a directory", dir)
			}
			a.fsys = os.DirFS(dir)
		} else {
			a.fsys = assets.FS
		}
	}
	a.store = resource.New(a.fsys, resource.WithChunkSize(a.cfg.Audio.ChunkSize))
	a.catalog = catalog.New(catalog.WithFuzzyThreshold(a.cfg.Identity.FuzzyThreshold))

	if err := a.catalog.CheckResources(a.store); err != nil {
		slog.Warn("voice line resources missing", "err", err)
	}
	return nil
}

// initLoading builds the single-flight cache and the loaders that fill it.
func (a *App) initLoading() {
	a.cache = clipcache.New(clipcache.WithMetrics(a.metrics))

	workers := a.cfg.Audio.DecodeWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	a.pool = decodepool.New(workers, decodepool.WithMetrics(a.metrics))
	a.closers = append(a.closers, a.pool.Close)

	a.sched = scheduler.New(scheduler.WithMetrics(a.metrics))
	a.loader = loader.New(a.cache, a.store, a.pool, a.sched, loader.WithMetrics(a.metrics))
}

// initPlayback creates the scene, the interceptor, and the radios.
func (a *App) initPlayback() {
	if a.backend != nil {
		a.scene = a.backend
		a.closers = append(a.closers, func() error {
			a.backend.Close()
			return nil
		})
	} else {
		a.world = sim.NewWorld(nil)
		a.scene = a.world
	}

	a.intercept = intercept.New(intercept.Config{
		Live:      a.live,
		Catalog:   a.catalog,
		Cache:     a.cache,
		Loader:    a.loader,
		Scene:     a.scene,
		Scheduler: a.sched,
		Identity:  intercept.IdentityFunc(a.headID),
		Rand:      a.rng,
		Metrics:   a.metrics,
	})
	a.loader.OnLoaded(a.intercept.OnClipLoaded)

	if a.backend != nil {
		a.backend.OnEnded(a.intercept.OnPlaybackEnded)
		a.sched.Start("ebiten backend", a.backend)
		a.sched.Start("radios", a.newEbitenRadios())
	} else {
		a.world.SetHooks(a.intercept)
		a.populateWorld()
		a.sched.Start("world", a.world)
	}
}

// initFaceCards creates the face-card manager. Cards are attached on first
// selection, see [App.SelectFace].
func (a *App) initFaceCards() {
	a.faces = facecard.New(facecard.Config{
		Live:      a.live,
		Catalog:   a.catalog,
		Cache:     a.cache,
		Loader:    a.loader,
		Scheduler: a.sched,
		FadeOptions: []fade.Option{
			fade.WithDuration(a.cfg.Audio.FadeDuration),
			fade.WithMetrics(a.metrics),
		},
	})
	a.loader.OnLoaded(a.faces.OnClipLoaded)
}

// headID reports the configured head of the local player.
func (a *App) headID() (string, bool) {
	id := a.live.Current().Identity.HeadID
	return id, id != ""
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run drives the frame loop at the configured tick rate and serves the debug
// endpoints until ctx is cancelled. When audio.preload is set, every catalog
// clip is requested before the first frame.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Audio.Preload {
		n := a.loader.Preload(ctx, a.catalog.Keys(), catalog.Path)
		slog.Info("preloading voice lines", "requested", n)
	}

	interval := time.Second / time.Duration(a.cfg.Audio.TickRate)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.sched.Run(ctx, interval)
	})

	if a.server != nil {
		g.Go(func() error {
			slog.Info("debug server listening", "addr", a.server.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: debug server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	slog.Info("app running",
		"tick_rate", a.cfg.Audio.TickRate,
		"locations", len(a.cfg.Radio.Locations),
		"scene", a.sceneName(),
	)
	return g.Wait()
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Live returns the live configuration. Feed it from a [config.Watcher] to
// apply edits without a restart.
func (a *App) Live() *config.Live { return a.live }

// Scheduler returns the frame scheduler.
func (a *App) Scheduler() *scheduler.Scheduler { return a.sched }

// Interceptor returns the playback hooks.
func (a *App) Interceptor() *intercept.Interceptor { return a.intercept }

// World returns the simulated world, or nil when playing through ebiten.
func (a *App) World() *sim.World { return a.world }

// Cache returns the clip cache.
func (a *App) Cache() *clipcache.Cache { return a.cache }

// FaceCards returns the face-card manager.
func (a *App) FaceCards() *facecard.Manager { return a.faces }

// FaceCard returns the preview emitter of key once it has been selected.
func (a *App) FaceCard(key string) (audio.Emitter, bool) {
	a.cardsMu.Lock()
	defer a.cardsMu.Unlock()
	e, ok := a.cards[key]
	return e, ok
}

func (a *App) sceneName() string {
	if a.backend != nil {
		return "ebiten"
	}
	return "sim"
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		a.cardsMu.Lock()
		for _, view := range a.cards {
			a.faces.Detach(view)
		}
		a.cardsMu.Unlock()

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
