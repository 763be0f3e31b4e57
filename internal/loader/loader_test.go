package loader_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/clipcache"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/decodepool"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/loader"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/observe"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/resource"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/scheduler"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio/wav"
)

const frame = 16 * time.Millisecond

type fixture struct {
	cache  *clipcache.Cache
	sched  *scheduler.Scheduler
	coord  *loader.Coordinator
	reader *sdkmetric.ManualReader

	mu     sync.Mutex
	loaded []string
}

func (f *fixture) loadedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loaded...)
}

// newFixture wires a coordinator over fsys with a small chunk size so that
// reads span several ticks.
func newFixture(t *testing.T, fsys fstest.MapFS, chunk int) *fixture {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	pool := decodepool.New(2, decodepool.WithMetrics(m))
	t.Cleanup(func() { _ = pool.Close() })

	f := &fixture{
		cache:  clipcache.New(clipcache.WithMetrics(m)),
		sched:  scheduler.New(scheduler.WithMetrics(m)),
		reader: reader,
	}
	store := resource.New(fsys, resource.WithChunkSize(chunk))
	f.coord = loader.New(f.cache, store, pool, f.sched, loader.WithMetrics(m))
	f.coord.OnLoaded(func(key string, clip *audio.Clip) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.loaded = append(f.loaded, key)
	})
	return f
}

// tickUntilIdle ticks the scheduler until no load is in flight.
func (f *fixture) tickUntilIdle(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for f.coord.InFlight() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("loads still in flight after 5s: %d", f.coord.InFlight())
		}
		f.sched.Tick(frame)
		time.Sleep(time.Millisecond)
	}
}

func (f *fixture) loadCount(t *testing.T, status string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := f.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var n int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "voicelines.load.results" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("load results: unexpected data type %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value("status"); ok && v.AsString() == status {
					n += dp.Value
				}
			}
		}
	}
	return n
}

// encodeWAV returns a canonical stereo WAV with frames frames.
func encodeWAV(t *testing.T, frames int) []byte {
	t.Helper()
	samples := make([]float32, frames*2)
	for i := range samples {
		samples[i] = float32(i%64) / 128
	}
	var buf bytes.Buffer
	if err := wav.Encode(&buf, audio.NewClip("fixture", 22050, 2, samples)); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return buf.Bytes()
}

func TestRequest_LoadsCommitsAndNotifies(t *testing.T) {
	t.Parallel()
	data := encodeWAV(t, 100) // 444 bytes
	f := newFixture(t, fstest.MapFS{"audio/johnny_silverhand.wav": {Data: data}}, 100)

	if !f.coord.Request(context.Background(), "johnny_silverhand", "audio/johnny_silverhand.wav") {
		t.Fatal("Request: got false, want true")
	}
	if f.coord.Request(context.Background(), "johnny_silverhand", "audio/johnny_silverhand.wav") {
		t.Fatal("second Request while pending: got true, want false")
	}
	if !f.cache.Pending("johnny_silverhand") {
		t.Fatal("key should be pending after Request")
	}

	// Opening plus two chunk reads cannot finish a 444 byte read.
	for range 3 {
		f.sched.Tick(frame)
	}
	if _, ok := f.cache.TryGet("johnny_silverhand"); ok {
		t.Fatal("clip cached before the read finished")
	}
	if f.coord.InFlight() != 1 {
		t.Fatalf("InFlight: got %d, want 1", f.coord.InFlight())
	}

	f.tickUntilIdle(t)

	clip, ok := f.cache.TryGet("johnny_silverhand")
	if !ok {
		t.Fatal("clip not cached after load")
	}
	if clip.Channels() != 2 || clip.Frames() != 100 || clip.SampleRate() != 22050 {
		t.Errorf("clip: got %s with %d frames", clip, clip.Frames())
	}
	if clip.ClipName() != "johnny_silverhand" {
		t.Errorf("ClipName: got %q", clip.ClipName())
	}
	if got := f.loadedKeys(); len(got) != 1 || got[0] != "johnny_silverhand" {
		t.Errorf("listener calls: got %v", got)
	}
	if f.cache.Pending("johnny_silverhand") {
		t.Error("key still pending after commit")
	}
	if n := f.loadCount(t, observe.LoadOK); n != 1 {
		t.Errorf("ok loads: got %d, want 1", n)
	}

	if f.coord.Request(context.Background(), "johnny_silverhand", "audio/johnny_silverhand.wav") {
		t.Error("Request for a cached key: got true, want false")
	}
}

func TestRequest_ResourceNotFoundReleases(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fstest.MapFS{}, 100)

	if !f.coord.Request(context.Background(), "dante", "audio/dante.wav") {
		t.Fatal("Request: got false, want true")
	}
	f.tickUntilIdle(t)

	if f.cache.Pending("dante") {
		t.Error("key still pending after a failed load")
	}
	if _, ok := f.cache.TryGet("dante"); ok {
		t.Error("failed load produced a clip")
	}
	if got := f.loadedKeys(); len(got) != 0 {
		t.Errorf("listener called for a failed load: %v", got)
	}
	if n := f.loadCount(t, observe.LoadNotFound); n != 1 {
		t.Errorf("not_found loads: got %d, want 1", n)
	}

	// A later request re-attempts through a fresh reservation.
	if !f.coord.Request(context.Background(), "dante", "audio/dante.wav") {
		t.Error("Request after failure: got false, want true")
	}
	f.tickUntilIdle(t)
	if n := f.loadCount(t, observe.LoadNotFound); n != 2 {
		t.Errorf("not_found loads after retry: got %d, want 2", n)
	}
}

func TestRequest_MalformedAudioReleases(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fstest.MapFS{"audio/geralt.wav": {Data: []byte("RIFF....WAVE")}}, 100)

	f.coord.Request(context.Background(), "geralt", "audio/geralt.wav")
	f.tickUntilIdle(t)

	if f.cache.Pending("geralt") {
		t.Error("key still pending after a malformed decode")
	}
	if f.cache.Stats().Cached != 0 {
		t.Error("malformed audio was cached")
	}
	if n := f.loadCount(t, observe.LoadMalformed); n != 1 {
		t.Errorf("malformed loads: got %d, want 1", n)
	}
	if got := f.loadedKeys(); len(got) != 0 {
		t.Errorf("listener called for a failed load: %v", got)
	}
}

func TestRequest_NeverBlocks(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fstest.MapFS{"audio/dante.wav": {Data: encodeWAV(t, 10)}}, 4)

	start := time.Now()
	f.coord.Request(context.Background(), "dante", "audio/dante.wav")
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Request took %v", elapsed)
	}
	// Nothing happens until the scheduler ticks.
	if f.sched.Len() != 1 {
		t.Errorf("scheduled tasks: got %d, want 1", f.sched.Len())
	}
	f.tickUntilIdle(t)
	if _, ok := f.cache.TryGet("dante"); !ok {
		t.Error("clip not cached")
	}
}

func TestPreload(t *testing.T) {
	t.Parallel()
	fsys := fstest.MapFS{
		"audio/big_boss.wav":   {Data: encodeWAV(t, 8)},
		"audio/kaz_miller.wav": {Data: encodeWAV(t, 8)},
	}
	f := newFixture(t, fsys, 1024)

	pathFor := func(key string) string { return "audio/" + key + ".wav" }
	if n := f.coord.Preload(context.Background(), []string{"big_boss", "kaz_miller", "big_boss"}, pathFor); n != 2 {
		t.Errorf("Preload: started %d loads, want 2", n)
	}
	f.tickUntilIdle(t)

	if f.cache.Stats().Cached != 2 {
		t.Errorf("cached: got %d, want 2", f.cache.Stats().Cached)
	}
	if got := f.loadedKeys(); len(got) != 2 {
		t.Errorf("listener calls: got %v", got)
	}
}

// Not parallel: swaps the global tracer provider.
func TestRequest_RecordsSpan(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})

	f := newFixture(t, fstest.MapFS{"audio/dante.wav": {Data: encodeWAV(t, 4)}}, 1024)
	f.coord.Request(context.Background(), "dante", "audio/dante.wav")
	f.tickUntilIdle(t)

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans: got %d, want 1", len(spans))
	}
	if spans[0].Name != "loader.load" {
		t.Errorf("span name: got %q", spans[0].Name)
	}
	var sawFetch bool
	for _, ev := range spans[0].Events {
		if ev.Name == "fetched" {
			sawFetch = true
		}
	}
	if !sawFetch {
		t.Error("span has no fetched event")
	}
}
