// Package observe provides application-wide observability primitives for
// Sauti: OpenTelemetry metrics and the Prometheus exporter bridge that makes
// them scrapeable.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for convenience;
// tests should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Sauti metrics.
const meterName = "github.com/sautina/sauti"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// RequestDuration tracks backend request latency. Use with attributes:
	//   attribute.String("kind", "text"|"voice"|"translate")
	RequestDuration metric.Float64Histogram

	// CaptureDuration tracks the wall-clock length of capture sessions.
	CaptureDuration metric.Float64Histogram

	// --- Counters ---

	// TurnsSubmitted counts user turns handed to the dispatcher. Use with
	// attributes:
	//   attribute.String("mode", ...), attribute.String("language", ...)
	TurnsSubmitted metric.Int64Counter

	// RequestFailures counts backend requests that resolved as failures. Use
	// with attribute:
	//   attribute.String("kind", ...)
	RequestFailures metric.Int64Counter

	// StaleDrops counts resolutions discarded because the conversation moved
	// on while the request was in flight.
	StaleDrops metric.Int64Counter

	// CaptureErrors counts capture sessions ended by a device failure.
	CaptureErrors metric.Int64Counter

	// TranslationFailures counts failed translation requests.
	TranslationFailures metric.Int64Counter

	// --- Gauges ---

	// ActiveCaptures tracks the number of open capture sessions (0 or 1 per
	// client, but exported as a gauge for aggregation across clients).
	ActiveCaptures metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// round trips to the assistant backend.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RequestDuration, err = m.Float64Histogram("sauti.request.duration",
		metric.WithDescription("Latency of backend requests by kind."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CaptureDuration, err = m.Float64Histogram("sauti.capture.duration",
		metric.WithDescription("Wall-clock length of speech capture sessions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.TurnsSubmitted, err = m.Int64Counter("sauti.turns.submitted",
		metric.WithDescription("Total user turns submitted by mode and language."),
	); err != nil {
		return nil, err
	}
	if met.RequestFailures, err = m.Int64Counter("sauti.request.failures",
		metric.WithDescription("Total backend requests resolved as failures by kind."),
	); err != nil {
		return nil, err
	}
	if met.StaleDrops, err = m.Int64Counter("sauti.request.stale_drops",
		metric.WithDescription("Total resolutions discarded because the conversation was reset mid-flight."),
	); err != nil {
		return nil, err
	}
	if met.CaptureErrors, err = m.Int64Counter("sauti.capture.errors",
		metric.WithDescription("Total capture sessions ended by a device failure."),
	); err != nil {
		return nil, err
	}
	if met.TranslationFailures, err = m.Int64Counter("sauti.translation.failures",
		metric.WithDescription("Total failed translation requests."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveCaptures, err = m.Int64UpDownCounter("sauti.active_captures",
		metric.WithDescription("Number of open speech capture sessions."),
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

// RecordTurnSubmitted records one submitted user turn.
func (m *Metrics) RecordTurnSubmitted(ctx context.Context, mode, lang string) {
	m.TurnsSubmitted.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("mode", mode),
			attribute.String("language", lang),
		),
	)
}

// RecordRequest records one backend round trip: its latency and, when it
// failed, a failure increment.
func (m *Metrics) RecordRequest(ctx context.Context, kind string, seconds float64, failed bool) {
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	m.RequestDuration.Record(ctx, seconds, attrs)
	if failed {
		m.RequestFailures.Add(ctx, 1, attrs)
	}
}

// RecordStaleDrop records one resolution discarded as stale.
func (m *Metrics) RecordStaleDrop(ctx context.Context) {
	m.StaleDrops.Add(ctx, 1)
}

// RecordCaptureError records one capture session ended by a device failure.
func (m *Metrics) RecordCaptureError(ctx context.Context) {
	m.CaptureErrors.Add(ctx, 1)
}

// RecordTranslationFailure records one failed translation request.
func (m *Metrics) RecordTranslationFailure(ctx context.Context) {
	m.TranslationFailures.Add(ctx, 1)
}
