package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer names of the instrumented packages.
const (
	TracerGateway = "idam/gateway"
	TracerAuthz   = "idam/authz"
)

// Span attribute keys
const (
	AttrUsername = "idam.username"
	AttrAction   = "idam.action"
	AttrAllowed  = "idam.allowed"
	AttrStage    = "idam.stage"
	AttrDetails  = "idam.details"
)

// StartSpan starts spanName on the named tracer.
//
//	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerGateway, "gateway.Authorize",
//	    attribute.String(telemetry.AttrUsername, check.Username),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError marks span as failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordDecision sets the allowed attribute on the span in ctx. Denials also
// get an "idam.denied" event naming the stage that denied and why.
func RecordDecision(ctx context.Context, allowed bool, stage, details string) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Bool(AttrAllowed, allowed))
	if allowed {
		return
	}
	span.AddEvent("idam.denied", trace.WithAttributes(
		attribute.String(AttrStage, stage),
		attribute.String(AttrDetails, details),
	))
}
