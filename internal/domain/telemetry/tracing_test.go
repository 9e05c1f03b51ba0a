package telemetry

import (
	"context"
	"io"
	"testing"
)

func TestTracer_DisabledIsNoOp(t *testing.T) {
	tr, err := NewTracer(TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewTracer() error = %v", err)
	}
	ctx, span := tr.StartClassify(context.Background(), "api.openai.com")
	if ctx == nil || span == nil {
		t.Fatal("expected a non-nil no-op context and span")
	}
	if err := tr.Close(context.Background()); err != nil {
		t.Errorf("Close() on disabled tracer error = %v", err)
	}
}

func TestTracer_EnabledStartsSpans(t *testing.T) {
	tr, err := NewTracer(TracingConfig{Enabled: true, ServiceName: "test-proxy", Writer: io.Discard})
	if err != nil {
		t.Fatalf("NewTracer() error = %v", err)
	}
	defer func() { _ = tr.Close(context.Background()) }()

	ctx, span := tr.StartClassify(context.Background(), "api.openai.com")
	if span == nil {
		t.Fatal("expected a span")
	}
	span.End()

	ctx, span = tr.StartPolicy(ctx, "api.openai.com", "critical")
	span.End()

	_, span = tr.StartForward(ctx, "api.openai.com")
	span.End()
}
