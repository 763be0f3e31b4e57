package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumWhere adds up the data points of an int64 sum whose attribute key has
// value. An empty key matches every point.
func sumWhere(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q: got %T, want Sum[int64]", name, met.Data)
	}
	var n int64
	for _, dp := range sum.DataPoints {
		if key == "" {
			n += dp.Value
			continue
		}
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			n += dp.Value
		}
	}
	return n
}

func TestLatencyHistograms(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"voicelines.fetch.duration", m.FetchDuration},
		{"voicelines.decode.duration", m.DecodeDuration},
	}
	for _, tc := range histograms {
		RecordDuration(ctx, tc.h, 3*time.Millisecond)
		RecordDuration(ctx, tc.h, 40*time.Millisecond)
	}

	rm := collect(t, reader)
	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatal("metric not found")
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("got %T, want Histogram[float64]", met.Data)
			}
			if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 2 {
				t.Fatalf("data points: %+v", hist.DataPoints)
			}
			if got := hist.DataPoints[0].Sum; got < 0.042 || got > 0.044 {
				t.Errorf("sum: got %v, want 0.043", got)
			}
		})
	}
}

func TestRecordHelpers(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCacheLookup(ctx, true)
	m.RecordCacheLookup(ctx, false)
	m.RecordCacheLookup(ctx, false)
	m.RecordLoad(ctx, "dante", LoadOK)
	m.RecordLoad(ctx, "geralt", LoadMalformed)
	m.RecordSubstitution(ctx, "gym")
	m.RecordGateSkip(ctx, "gym", "chance")
	m.RecordGateSkip(ctx, "rest_space", "disabled")
	m.RecordRevert(ctx, true)
	m.RecordRevert(ctx, false)
	m.RecordFade(ctx, "in")
	m.HotSwaps.Add(ctx, 3)

	rm := collect(t, reader)
	tests := []struct {
		metric, key, value string
		want               int64
	}{
		{"voicelines.cache.lookups", "result", "hit", 1},
		{"voicelines.cache.lookups", "result", "miss", 2},
		{"voicelines.load.results", "status", LoadOK, 1},
		{"voicelines.load.results", "status", LoadMalformed, 1},
		{"voicelines.load.results", "key", "geralt", 1},
		{"voicelines.intercept.substitutions", "location", "gym", 1},
		{"voicelines.intercept.skips", "reason", "chance", 1},
		{"voicelines.intercept.skips", "location", "rest_space", 1},
		{"voicelines.reverts", "outcome", "restored", 1},
		{"voicelines.reverts", "outcome", "abandoned", 1},
		{"voicelines.fades", "direction", "in", 1},
		{"voicelines.hotswaps", "", "", 3},
	}
	for _, tt := range tests {
		if got := sumWhere(t, rm, tt.metric, tt.key, tt.value); got != tt.want {
			t.Errorf("%s{%s=%q}: got %d, want %d", tt.metric, tt.key, tt.value, got, tt.want)
		}
	}
}

func TestGauges(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.CachedClips.Add(ctx, 2)
	m.PendingLoads.Add(ctx, 3)
	m.PendingLoads.Add(ctx, -1)
	m.ScheduledTasks.Add(ctx, 1)

	rm := collect(t, reader)
	for name, want := range map[string]int64{
		"voicelines.cache.clips":     2,
		"voicelines.cache.pending":   2,
		"voicelines.scheduler.tasks": 1,
	} {
		if got := sumWhere(t, rm, name, "", ""); got != want {
			t.Errorf("%s: got %d, want %d", name, got, want)
		}
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	a, b := DefaultMetrics(), DefaultMetrics()
	if a == nil || a != b {
		t.Errorf("DefaultMetrics: got %p and %p", a, b)
	}
}
