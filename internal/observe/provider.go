package observe

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DefaultServiceName is reported as service.name when [ProviderConfig]
// leaves it empty.
const DefaultServiceName = "lingobot"

// ProviderConfig configures the OpenTelemetry SDK providers.
type ProviderConfig struct {
	// ServiceName is the service name reported in telemetry. Default
	// [DefaultServiceName].
	ServiceName string

	// ServiceVersion is the service version reported in telemetry.
	ServiceVersion string

	// Registerer receives the Prometheus collector backing the meter
	// provider. Nil selects [prometheus.DefaultRegisterer], which is what the
	// server's /metrics route serves.
	Registerer prometheus.Registerer

	// TraceExporter receives finished spans. When nil, spans are still
	// created so correlation IDs work, but nothing is exported.
	TraceExporter sdktrace.SpanExporter

	// SampleRatio is the fraction of new traces that are sampled. Zero or
	// anything outside (0, 1) samples every trace. Spans with a sampled
	// remote parent are always kept.
	SampleRatio float64
}

func (c ProviderConfig) sampler() sdktrace.Sampler {
	if c.SampleRatio <= 0 || c.SampleRatio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))
}

// InitProvider installs global meter and tracer providers for Lingobot.
// Metrics go to a Prometheus collector on cfg.Registerer; spans go to
// cfg.TraceExporter through a batcher.
//
// The returned shutdown flushes the tracer and then the meter. Call it
// before the process exits.
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}

	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithFromEnv(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: build resource: %w", err)
	}

	promOpts := []promexporter.Option{}
	if cfg.Registerer != nil {
		promOpts = append(promOpts, promexporter.WithRegisterer(cfg.Registerer))
	}
	reader, err := promexporter.New(promOpts...)
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(cfg.sampler()),
	}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
