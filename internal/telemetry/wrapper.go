package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerWrapper is a nil-safe handle around an OpenTelemetry tracer.
// When constructed with a nil TracerProvider it falls back to a noop tracer,
// so callers can create spans unconditionally without checking whether
// tracing is enabled.
type TracerWrapper struct {
	tracer trace.Tracer
}

// NewTracerWrapper creates a wrapper over the given provider's tracer.
// If tp is nil, a noop tracer is used and all span operations are free.
//
// Parameters:
//   - tp: The TracerProvider to obtain a tracer from (may be nil)
//   - name: The instrumentation scope name (e.g., "spanrelay/ingest")
func NewTracerWrapper(tp trace.TracerProvider, name string) *TracerWrapper {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &TracerWrapper{tracer: tp.Tracer(name)}
}

// StartSpan starts a new span with the given operation name and span kind.
// The returned span is always valid; when tracing is disabled it is a noop
// span and End/SetAttributes calls are free.
func (w *TracerWrapper) StartSpan(ctx context.Context, operation string, kind trace.SpanKind) (context.Context, trace.Span) {
	return w.tracer.Start(ctx, operation, trace.WithSpanKind(kind))
}
