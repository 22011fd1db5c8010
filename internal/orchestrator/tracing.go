// Tracing instrumentation for the orchestrator.
package orchestrator

import (
	"context"

	"github.com/vinayprograms/agentkit/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kestrelsec/kestrel/internal/records"
)

// startRunSpan starts the span covering the whole assessment.
func (o *Orchestrator) startRunSpan(ctx context.Context) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "assessment.run")
	span.SetAttributes(
		attribute.String("assessment.scenario", o.scen.ID),
		attribute.String("assessment.target", o.tgt.Network.URL),
		attribute.String("assessment.session", o.store.SessionID()),
	)
	return ctx, span
}

// endRunSpan ends the run span with outcome info.
func (o *Orchestrator) endRunSpan(span trace.Span, result *records.AssessmentResult, err error) {
	if result != nil {
		span.SetAttributes(
			attribute.String("assessment.status", result.Status),
			attribute.Int("assessment.iterations", result.Iterations),
		)
	}
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// startPhaseSpan starts a span for one assessment phase.
func (o *Orchestrator) startPhaseSpan(ctx context.Context, phase string) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "phase."+phase)
	span.SetAttributes(attribute.String("phase.name", phase))
	return ctx, span
}

// endPhaseSpan ends a phase span.
func (o *Orchestrator) endPhaseSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
