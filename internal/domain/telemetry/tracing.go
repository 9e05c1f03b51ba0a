package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// TracingConfig controls whether spans are emitted for the inspection
// pipeline and where they are written (spec §4.9, dev-mode diagnostics).
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Writer      io.Writer
}

// Tracer wraps an OpenTelemetry tracer provider scoped to one inspection
// span per pipeline stage (inspect.classify, inspect.policy,
// inspect.forward).
type Tracer struct {
	enabled  bool
	tracer   oteltrace.Tracer
	provider *trace.TracerProvider
}

// NewTracer builds a Tracer. When cfg.Enabled is false it returns a
// Tracer whose Start calls are no-ops, so callers never need to branch
// on whether tracing is on.
func NewTracer(cfg TracingConfig) (*Tracer, error) {
	t := &Tracer{enabled: cfg.Enabled}
	if !cfg.Enabled {
		return t, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(cfg.Writer), stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("create stdout trace exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace resource: %w", err)
	}

	t.provider = trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(t.provider)
	t.tracer = otel.Tracer(cfg.ServiceName)

	return t, nil
}

// Close shuts down the tracer provider, flushing any buffered spans.
func (t *Tracer) Close(ctx context.Context) error {
	if !t.enabled || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// StartClassify opens a span around DLP classification of a request body.
func (t *Tracer) StartClassify(ctx context.Context, hostname string) (context.Context, oteltrace.Span) {
	return t.start(ctx, "inspect.classify", attribute.String("hostname", hostname))
}

// StartPolicy opens a span around enforcement-action resolution.
func (t *Tracer) StartPolicy(ctx context.Context, hostname string, riskCategory string) (context.Context, oteltrace.Span) {
	return t.start(ctx, "inspect.policy",
		attribute.String("hostname", hostname),
		attribute.String("risk_category", riskCategory),
	)
}

// StartForward opens a span around forwarding the (possibly redacted)
// request upstream.
func (t *Tracer) StartForward(ctx context.Context, hostname string) (context.Context, oteltrace.Span) {
	return t.start(ctx, "inspect.forward", attribute.String("hostname", hostname))
}

func (t *Tracer) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	if !t.enabled {
		return ctx, oteltrace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, name, oteltrace.WithAttributes(attrs...))
}

// SetError marks the current span as failed.
func (t *Tracer) SetError(ctx context.Context, err error) {
	if !t.enabled || err == nil {
		return
	}
	span := oteltrace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Bool("error", true), attribute.String("error.message", err.Error()))
}
