// Command voicelines runs the character voice line injector against a
// simulated world or the local sound device.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	ebaudio "github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/assets"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/app"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/catalog"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/config"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/observe"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/resource"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio/ebitenaudio"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio/wav"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// playbackSampleRate is the rate of the ebiten audio context.
const playbackSampleRate = 44100

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (empty = built-in defaults)")
	output := flag.String("output", "sim", `playback target: "sim" (headless) or "ebiten" (sound device)`)
	verify := flag.Bool("verify", false, "check that every voice line resource is a canonical WAV and exit")
	dumpDir := flag.String("dump", "", "decode every voice line and write it as a canonical WAV into this directory, then exit")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(os.Stderr, "voicelines: config file %q not found\n", *configPath)
			} else {
				fmt.Fprintf(os.Stderr, "voicelines: %v\n", err)
			}
			return 1
		}
		cfg = loaded
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))

	// ── Offline modes ─────────────────────────────────────────────────────────
	if *verify || *dumpDir != "" {
		store := resource.New(assetFS(cfg))
		paths := catalog.New().Paths()
		if *verify {
			return runVerify(store, paths)
		}
		return runDump(store, paths, *dumpDir)
	}

	slog.Info("voicelines starting",
		"version", version,
		"config", *configPath,
		"output", *output,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	provider, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	opts := []app.Option{app.WithMetricsHandler(provider.Handler())}
	switch *output {
	case "sim":
	case "ebiten":
		opts = append(opts, app.WithEbiten(ebitenaudio.New(ebaudio.NewContext(playbackSampleRate))))
	default:
		fmt.Fprintf(os.Stderr, "voicelines: unknown output %q\n", *output)
		return 2
	}

	application, err := app.New(ctx, cfg, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	live := application.Live()
	live.Subscribe(func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		for _, lc := range d.LocationChanges {
			slog.Info("location settings changed",
				"location", lc.Name,
				"gate", lc.GateChanged,
				"volume", lc.VolumeChanged,
				"added", lc.Added,
				"removed", lc.Removed,
			)
		}
	})
	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath, live.Store)
		if err != nil {
			slog.Error("failed to watch config", "err", err)
			return 1
		}
		defer watcher.Stop()
	}

	slog.Info("ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Offline modes ─────────────────────────────────────────────────────────────

// runVerify reports every resource the fixed-offset decoder would misread.
func runVerify(store *resource.Store, paths []string) int {
	reports, err := resource.Verify(context.Background(), store, paths, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voicelines: %v\n", err)
		return 1
	}
	bad := 0
	for _, r := range reports {
		status := "ok"
		if !r.OK() {
			status = "BAD"
			bad++
		}
		fmt.Printf("%-4s %-32s %8s  %d ch  %6d Hz  %2d bit  %s\n",
			status, r.Path, humanize.Bytes(uint64(r.Size)), r.Channels, r.SampleRate, r.BitDepth, r.Duration.Round(time.Millisecond))
		for _, p := range r.Problems {
			fmt.Printf("     - %s\n", p)
		}
	}
	if bad > 0 {
		fmt.Printf("%d of %d resources are not canonical\n", bad, len(reports))
		return 1
	}
	return 0
}

// runDump decodes every resource and writes it back as a canonical WAV.
func runDump(store *resource.Store, paths []string, dir string) int {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "voicelines: %v\n", err)
		return 1
	}
	for _, p := range paths {
		data, err := store.Fetch(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "voicelines: %v\n", err)
			return 1
		}
		clip, err := wav.Decode(p, data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "voicelines: %s: %v\n", p, err)
			return 1
		}
		var buf bytes.Buffer
		if err := wav.Encode(&buf, clip); err != nil {
			fmt.Fprintf(os.Stderr, "voicelines: %s: %v\n", p, err)
			return 1
		}
		out := filepath.Join(dir, clip.ClipName()+".wav")
		if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "voicelines: %v\n", err)
			return 1
		}
		fmt.Printf("%s -> %s (%s, %s)\n", p, out, clip, humanize.Bytes(uint64(buf.Len())))
	}
	return 0
}

// assetFS returns the configured asset directory or the embedded assets.
func assetFS(cfg *config.Config) fs.FS {
	if cfg.Audio.AssetDir != "" {
		return os.DirFS(cfg.Audio.AssetDir)
	}
	return assets.FS
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
