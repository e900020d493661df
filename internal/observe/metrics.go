// Package observe provides application-wide observability primitives for
// Lingobot: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the /metrics endpoint. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Lingobot metrics.
const meterName = "github.com/MrWong99/lingobot"

// Pipeline stage names used as the "stage" attribute of StageDuration.
const (
	StageSpellcheck = "spellcheck"
	StageRules      = "rules"
	StageRewrite    = "rewrite"
	StageNormalize  = "normalize"
	StageDiff       = "diff"
	StageClassify   = "classify"
	StageTotal      = "total"
)

// Rewrite outcomes used as the "outcome" attribute of RewriteOutcomes.
const (
	RewriteAccepted = "accepted"
	RewriteRejected = "rejected"
	RewriteFailed   = "failed"
	RewriteSkipped  = "skipped"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// StageDuration tracks the latency of each correction pipeline stage.
	// Use with attribute.String("stage", ...).
	StageDuration metric.Float64Histogram

	// RewriteOutcomes counts what happened to the machine rewrite. Use with
	// attribute.String("outcome", ...).
	RewriteOutcomes metric.Int64Counter

	// Feedback counts emitted feedback items. Use with
	// attribute.String("severity", ...).
	Feedback metric.Int64Counter

	// Replies counts answered requests per surface (http, ws, mcp, cli).
	Replies metric.Int64Counter

	// ProviderRequests counts provider calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// ActiveConnections tracks open websocket chat connections.
	ActiveConnections metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). The low
// end covers in-process stages, the high end covers LLM rewrites.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("lingobot.pipeline.stage.duration",
		metric.WithDescription("Latency of correction pipeline stages."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RewriteOutcomes, err = m.Int64Counter("lingobot.rewrite.outcomes",
		metric.WithDescription("Machine rewrite outcomes: accepted, rejected, failed or skipped."),
	); err != nil {
		return nil, err
	}
	if met.Feedback, err = m.Int64Counter("lingobot.feedback.items",
		metric.WithDescription("Feedback items emitted by severity."),
	); err != nil {
		return nil, err
	}
	if met.Replies, err = m.Int64Counter("lingobot.replies",
		metric.WithDescription("Answered correction requests by surface."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("lingobot.provider.requests",
		metric.WithDescription("Total provider requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("lingobot.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.ActiveConnections, err = m.Int64UpDownCounter("lingobot.ws.active_connections",
		metric.WithDescription("Number of open websocket chat connections."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("lingobot.http.request.duration",
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

// RecordStage records the duration of one pipeline stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	m.StageDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordRewrite records a rewrite outcome.
func (m *Metrics) RecordRewrite(ctx context.Context, outcome string) {
	m.RewriteOutcomes.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordFeedback records one emitted feedback item.
func (m *Metrics) RecordFeedback(ctx context.Context, severity string) {
	m.Feedback.Add(ctx, 1,
		metric.WithAttributes(attribute.String("severity", severity)),
	)
}

// RecordReply records one answered request on the given surface.
func (m *Metrics) RecordReply(ctx context.Context, surface string) {
	m.Replies.Add(ctx, 1,
		metric.WithAttributes(attribute.String("surface", surface)),
	)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
