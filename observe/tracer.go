package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// instrumentationName identifies this library to tracer providers.
const instrumentationName = "github.com/jonwraymond/memoflight"

// Tracer wraps OpenTelemetry tracing for cache computations.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a span for the computation of one fingerprint.
	StartSpan(ctx context.Context, cache, fingerprint string) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer from the given provider.
func NewTracer(tp trace.TracerProvider) Tracer {
	return &tracerImpl{tracer: tp.Tracer(instrumentationName)}
}

// NewNopTracer returns a Tracer that produces no-op spans.
func NewNopTracer() Tracer {
	return &tracerImpl{tracer: tracenoop.NewTracerProvider().Tracer(instrumentationName)}
}

func (t *tracerImpl) StartSpan(ctx context.Context, cache, fingerprint string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "memo.compute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.name", cache),
			attribute.String("memo.fingerprint", fingerprint),
		),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

var _ Tracer = (*tracerImpl)(nil)
