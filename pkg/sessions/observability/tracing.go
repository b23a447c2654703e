package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the sessions tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("sessions")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartSessionSpan starts a span covering one live session, from
	// store creation to completion.
	StartSessionSpan(ctx context.Context, name, runID string) (context.Context, trace.Span)

	// StartReplaySpan starts a span covering the replay of a stored
	// session.
	StartReplaySpan(ctx context.Context, reference string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartSessionSpan starts a span covering one live session.
func (m *otelSpanManager) StartSessionSpan(ctx context.Context, name, runID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "sessions.run",
		trace.WithAttributes(
			attribute.String("session.name", name),
			attribute.String("run.id", runID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartReplaySpan starts a span covering a stored session replay.
func (m *otelSpanManager) StartReplaySpan(ctx context.Context, reference string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "sessions.replay",
		trace.WithAttributes(
			attribute.String("session.reference", reference),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
