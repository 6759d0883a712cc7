// Package tracing wraps OpenTelemetry span helpers used across the service.
// When no tracer is configured every helper is a no-op, so repositories can
// open spans unconditionally.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer

func SetTracer(t trace.Tracer) {
	tracer = t
}

// StartSpan opens a child span, or returns the ambient span untouched when
// tracing is disabled.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name)
}

// GetTraceID returns the active trace ID, or "" outside a recorded trace.
func GetTraceID(ctx context.Context) string {
	if tracer == nil {
		return ""
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
