package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRecordDecision(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer provider.Shutdown(context.Background())

	tracer := provider.Tracer(TracerGateway)

	ctx, span := tracer.Start(context.Background(), "allowed")
	RecordDecision(ctx, true, "", "")
	span.End()

	ctx, span = tracer.Start(context.Background(), "denied")
	RecordDecision(ctx, false, "throttle", "Number of Jobs exceeded")
	RecordError(span, nil)
	span.End()

	_, span = tracer.Start(context.Background(), "failed")
	RecordError(span, errors.New("database is down"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	assert.Contains(t, spans[0].Attributes(), attribute.Bool(AttrAllowed, true))
	assert.Empty(t, spans[0].Events())

	assert.Contains(t, spans[1].Attributes(), attribute.Bool(AttrAllowed, false))
	require.Len(t, spans[1].Events(), 1)
	event := spans[1].Events()[0]
	assert.Equal(t, "idam.denied", event.Name)
	assert.Contains(t, event.Attributes, attribute.String(AttrStage, "throttle"))
	assert.Equal(t, codes.Unset, spans[1].Status().Code)

	assert.Equal(t, codes.Error, spans[2].Status().Code)
	assert.Equal(t, "database is down", spans[2].Status().Description)
}
