// Package observe provides application-wide observability primitives for the
// voice line injector: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz"

// Load outcomes recorded by [Metrics.RecordLoad].
const (
	LoadOK        = "ok"
	LoadNotFound  = "not_found"
	LoadMalformed = "malformed"
	LoadError     = "error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per load stage ---

	// FetchDuration tracks how long reading a resource took, measured from
	// the first chunk to the last. It spans several ticks.
	FetchDuration metric.Float64Histogram

	// DecodeDuration tracks WAV decoding latency on the decode pool.
	DecodeDuration metric.Float64Histogram

	// --- Counters ---

	// CacheLookups counts clip cache lookups. Use with attribute:
	//   attribute.String("result", "hit"|"miss")
	CacheLookups metric.Int64Counter

	// Loads counts finished loads. Use with attributes:
	//   attribute.String("key", ...), attribute.String("status", ...)
	Loads metric.Int64Counter

	// Substitutions counts radio playbacks that were swapped for a voice
	// line. Use with attribute:
	//   attribute.String("location", ...)
	Substitutions metric.Int64Counter

	// GateSkips counts playback requests the gate declined. Use with
	// attributes:
	//   attribute.String("location", ...), attribute.String("reason", ...)
	GateSkips metric.Int64Counter

	// HotSwaps counts emitters switched to a freshly loaded clip.
	HotSwaps metric.Int64Counter

	// Reverts counts finished restorations. Use with attribute:
	//   attribute.String("outcome", "restored"|"abandoned")
	Reverts metric.Int64Counter

	// Fades counts started fades. Use with attribute:
	//   attribute.String("direction", "in"|"out")
	Fades metric.Int64Counter

	// --- Gauges ---

	// CachedClips tracks the number of decoded clips held in memory.
	CachedClips metric.Int64UpDownCounter

	// PendingLoads tracks the number of reserved, in-flight loads.
	PendingLoads metric.Int64UpDownCounter

	// ScheduledTasks tracks the number of tasks on the frame scheduler.
	ScheduledTasks metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// resource reads and decodes of clips up to a few megabytes.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.FetchDuration, err = m.Float64Histogram("voicelines.fetch.duration",
		metric.WithDescription("Time spent reading a voice line resource."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DecodeDuration, err = m.Float64Histogram("voicelines.decode.duration",
		metric.WithDescription("Latency of WAV decoding."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.CacheLookups, err = m.Int64Counter("voicelines.cache.lookups",
		metric.WithDescription("Clip cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.Loads, err = m.Int64Counter("voicelines.load.results",
		metric.WithDescription("Finished clip loads by key and status."),
	); err != nil {
		return nil, err
	}
	if met.Substitutions, err = m.Int64Counter("voicelines.intercept.substitutions",
		metric.WithDescription("Radio playbacks replaced with a voice line, by location."),
	); err != nil {
		return nil, err
	}
	if met.GateSkips, err = m.Int64Counter("voicelines.intercept.skips",
		metric.WithDescription("Playback requests declined by the gate, by location and reason."),
	); err != nil {
		return nil, err
	}
	if met.HotSwaps, err = m.Int64Counter("voicelines.hotswaps",
		metric.WithDescription("Playing emitters switched to a freshly loaded clip."),
	); err != nil {
		return nil, err
	}
	if met.Reverts, err = m.Int64Counter("voicelines.reverts",
		metric.WithDescription("Original clip restorations by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Fades, err = m.Int64Counter("voicelines.fades",
		metric.WithDescription("Face-card fades started, by direction."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.CachedClips, err = m.Int64UpDownCounter("voicelines.cache.clips",
		metric.WithDescription("Number of decoded clips held in the cache."),
	); err != nil {
		return nil, err
	}
	if met.PendingLoads, err = m.Int64UpDownCounter("voicelines.cache.pending",
		metric.WithDescription("Number of reserved in-flight loads."),
	); err != nil {
		return nil, err
	}
	if met.ScheduledTasks, err = m.Int64UpDownCounter("voicelines.scheduler.tasks",
		metric.WithDescription("Number of tasks on the frame scheduler."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voicelines.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordLoad records a finished load with one of the Load* status values.
func (m *Metrics) RecordLoad(ctx context.Context, key, status string) {
	m.Loads.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("key", key),
			attribute.String("status", status),
		),
	)
}

// RecordSubstitution records a radio playback replaced at location.
func (m *Metrics) RecordSubstitution(ctx context.Context, location string) {
	m.Substitutions.Add(ctx, 1, metric.WithAttributes(attribute.String("location", location)))
}

// RecordGateSkip records a declined playback request.
func (m *Metrics) RecordGateSkip(ctx context.Context, location, reason string) {
	m.GateSkips.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("location", location),
			attribute.String("reason", reason),
		),
	)
}

// RecordRevert records a restoration outcome.
func (m *Metrics) RecordRevert(ctx context.Context, restored bool) {
	outcome := "abandoned"
	if restored {
		outcome = "restored"
	}
	m.Reverts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordFade records a started fade.
func (m *Metrics) RecordFade(ctx context.Context, direction string) {
	m.Fades.Add(ctx, 1, metric.WithAttributes(attribute.String("direction", direction)))
}

// RecordDuration records d in seconds on h.
func RecordDuration(ctx context.Context, h metric.Float64Histogram, d time.Duration, attrs ...attribute.KeyValue) {
	h.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}
