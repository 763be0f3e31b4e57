package decodepool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/decodepool"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/observe"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio/wav"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func waitJob(t *testing.T, j *decodepool.Job) (*audio.Clip, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	clip, err := j.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("job did not finish within timeout")
	}
	return clip, err
}

func TestSubmit_DecodesWAV(t *testing.T) {
	t.Parallel()
	p := decodepool.New(2, decodepool.WithMetrics(testMetrics(t)))
	defer p.Close()

	data := make([]byte, wav.HeaderSize+8)
	data[22] = 2
	data[24] = 0x44 // 44100 = 0xAC44
	data[25] = 0xAC

	clip, err := waitJob(t, p.Submit("audio/dante.wav", data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clip.Name != "dante" || clip.Channels() != 2 || clip.SampleRate() != 44100 || clip.Frames() != 2 {
		t.Errorf("clip: got %v", clip)
	}
}

func TestSubmit_MalformedAudio(t *testing.T) {
	t.Parallel()
	p := decodepool.New(1, decodepool.WithMetrics(testMetrics(t)))
	defer p.Close()

	clip, err := waitJob(t, p.Submit("short", []byte("RIFF")))
	if !errors.Is(err, wav.ErrMalformedAudio) {
		t.Errorf("expected ErrMalformedAudio, got %v", err)
	}
	if clip != nil {
		t.Errorf("expected no clip, got %v", clip)
	}
}

func TestPoll_NonBlocking(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	p := decodepool.New(1,
		decodepool.WithMetrics(testMetrics(t)),
		decodepool.WithDecoder(func(name string, _ []byte) (*audio.Clip, error) {
			<-release
			return audio.NewClip(name, 8000, 1, nil), nil
		}),
	)

	j := p.Submit("slow", nil)
	for range 10 {
		if j.Poll() {
			t.Fatal("Poll reported done before the decoder returned")
		}
	}
	if p.Queued() != 1 {
		t.Errorf("Queued: got %d, want 1", p.Queued())
	}

	close(release)
	if _, err := waitJob(t, j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !j.Poll() {
		t.Error("Poll: got false after completion")
	}
	p.Close()
	if p.Queued() != 0 {
		t.Errorf("Queued after Close: got %d, want 0", p.Queued())
	}
}

func TestSubmit_BoundsConcurrency(t *testing.T) {
	t.Parallel()
	const workers = 2

	var running, peak atomic.Int32
	var mu sync.Mutex
	p := decodepool.New(workers,
		decodepool.WithMetrics(testMetrics(t)),
		decodepool.WithDecoder(func(name string, _ []byte) (*audio.Clip, error) {
			n := running.Add(1)
			mu.Lock()
			if n > peak.Load() {
				peak.Store(n)
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return audio.NewClip(name, 8000, 1, nil), nil
		}),
	)

	jobs := make([]*decodepool.Job, 8)
	for i := range jobs {
		jobs[i] = p.Submit("clip", nil)
	}
	for _, j := range jobs {
		if _, err := waitJob(t, j); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	p.Close()

	if got := peak.Load(); got > workers {
		t.Errorf("peak concurrency: got %d, want <= %d", got, workers)
	}
}

func TestSubmit_RecoversPanic(t *testing.T) {
	t.Parallel()
	p := decodepool.New(1,
		decodepool.WithMetrics(testMetrics(t)),
		decodepool.WithDecoder(func(string, []byte) (*audio.Clip, error) {
			panic("corrupt")
		}),
	)
	defer p.Close()

	if _, err := waitJob(t, p.Submit("bad", nil)); err == nil {
		t.Fatal("expected error from panicking decoder")
	}
}

func TestSubmit_AfterClose(t *testing.T) {
	t.Parallel()
	p := decodepool.New(0, decodepool.WithMetrics(testMetrics(t)))
	if p.Workers() < 1 {
		t.Errorf("Workers: got %d, want >= 1", p.Workers())
	}
	p.Close()

	j := p.Submit("late", nil)
	if !j.Poll() {
		t.Fatal("job submitted after Close should be done immediately")
	}
	if _, err := j.Result(); !errors.Is(err, decodepool.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
