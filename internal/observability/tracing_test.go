package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestNewTracer_NoopWhenEndpointEmpty(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test"})
	if tracer == nil {
		t.Fatal("NewTracer returned nil tracer")
	}
	defer shutdown(context.Background())

	ctx, span := tracer.Start(context.Background(), "replay.attribute", trace.SpanKindInternal)
	if ctx == nil || span == nil {
		t.Fatal("Start returned nil context or span")
	}
	span.End()
}

func TestRecordError_NilErrIsNoop(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test"})
	defer shutdown(context.Background())

	_, span := tracer.Start(context.Background(), "tool.dispatch", trace.SpanKindClient)
	defer span.End()

	tracer.RecordError(span, nil)
	tracer.RecordError(span, errors.New("boom"))
}

func TestReplayAttributes_IncludesAllThreeKeys(t *testing.T) {
	attrs := ReplayAttributes("t1", "req1", "n1")
	if len(attrs) != 3 {
		t.Fatalf("expected 3 attributes, got %d", len(attrs))
	}
}
