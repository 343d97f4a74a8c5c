package observability

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// TracingConfig controls OTLP trace export. It is read from the environment.
type TracingConfig struct {
	// Endpoint is the OTLP/HTTP collector URL. Empty disables tracing.
	Endpoint string `env:"ENCOUNTER_OTEL_ENDPOINT"`
	Enabled  bool   `env:"ENCOUNTER_OTEL_ENABLED" envDefault:"true"`
	// SampleRatio is the fraction of root spans sampled, in [0, 1].
	SampleRatio float64 `env:"ENCOUNTER_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// LoadTracingConfig parses TracingConfig from the environment.
func LoadTracingConfig() (TracingConfig, error) {
	var cfg TracingConfig
	if err := env.Parse(&cfg); err != nil {
		return TracingConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return TracingConfig{}, fmt.Errorf("ENCOUNTER_OTEL_SAMPLE_RATIO must be in [0, 1], got %v", cfg.SampleRatio)
	}
	return cfg, nil
}

// SetupTracing installs a global tracer provider exporting to cfg.Endpoint.
//
// Tracing is opt-in: when cfg.Endpoint is empty or cfg.Enabled is false no
// provider is registered and the returned shutdown is a no-op. Spans created
// through otel.Tracer are then discarded by the default no-op provider.
//
// Postcondition: The returned shutdown flushes pending spans and must be called
// before exit.
func SetupTracing(ctx context.Context, cfg TracingConfig, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if !cfg.Enabled || cfg.Endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return noop, fmt.Errorf("creating otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, fmt.Errorf("building trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
