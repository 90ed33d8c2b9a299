// Package observe provides the service's observability primitives:
// OpenTelemetry metrics with a Prometheus exporter bridge, and HTTP
// middleware that records request latency and logs completions.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all service metrics.
const meterName = "github.com/pitchline-ai/pitchline"

// Metrics holds all metric instruments. The underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// CoachDuration tracks end-to-end coaching operation latency, attribute
	// "op" naming the operation.
	CoachDuration metric.Float64Histogram

	// LLMDuration tracks gateway round-trip latency, attribute "provider"
	// naming the backend.
	LLMDuration metric.Float64Histogram

	// CoachRequests counts coaching operations by op and status.
	CoachRequests metric.Int64Counter

	// ParseFailures counts model replies that could not be parsed where
	// structure was expected. Distinguishes "model found nothing" from
	// "reply was garbage" for operators, since the API shape conflates them.
	ParseFailures metric.Int64Counter

	// CoachFallbacks counts deterministic fallback values served.
	CoachFallbacks metric.Int64Counter

	// ActiveCaptureSessions tracks live transcription streams.
	ActiveCaptureSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time by method and
	// path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds, sized for LLM
// round-trips on the slow end and local handlers on the fast end.
var latencyBuckets = []float64{
	0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates all instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CoachDuration, err = m.Float64Histogram("pitchline.coach.duration",
		metric.WithDescription("Latency of coaching operations."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("pitchline.llm.duration",
		metric.WithDescription("Latency of LLM gateway calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CoachRequests, err = m.Int64Counter("pitchline.coach.requests",
		metric.WithDescription("Total coaching operations by op and status."),
	); err != nil {
		return nil, err
	}
	if met.ParseFailures, err = m.Int64Counter("pitchline.coach.parse_failures",
		metric.WithDescription("Model replies that failed structured parsing."),
	); err != nil {
		return nil, err
	}
	if met.CoachFallbacks, err = m.Int64Counter("pitchline.coach.fallbacks",
		metric.WithDescription("Deterministic fallback values served."),
	); err != nil {
		return nil, err
	}
	if met.ActiveCaptureSessions, err = m.Int64UpDownCounter("pitchline.capture.active_sessions",
		metric.WithDescription("Number of live transcription streams."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("pitchline.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level Metrics instance, created on first
// call from the global meter provider. Panics if instrument creation fails,
// which cannot happen with the global provider.
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

// RecordCoachRequest records one coaching operation with its outcome.
func (m *Metrics) RecordCoachRequest(ctx context.Context, op, status string) {
	m.CoachRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("status", status),
	))
}

// ParseFailure implements the coach failure recorder.
func (m *Metrics) ParseFailure(op string) {
	m.ParseFailures.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("op", op),
	))
}

// Fallback implements the coach failure recorder.
func (m *Metrics) Fallback(op string) {
	m.CoachFallbacks.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("op", op),
	))
}

// CaptureSessionStarted increments the live-stream gauge.
func (m *Metrics) CaptureSessionStarted(ctx context.Context) {
	m.ActiveCaptureSessions.Add(ctx, 1)
}

// CaptureSessionEnded decrements the live-stream gauge.
func (m *Metrics) CaptureSessionEnded(ctx context.Context) {
	m.ActiveCaptureSessions.Add(ctx, -1)
}
