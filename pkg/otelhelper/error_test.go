package otelhelper_test

import (
	"errors"
	"testing"

	"github.com/coderAhmedHamood/pipefy/pkg/otelhelper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetError(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	_, span := otelhelper.StartSpan(t.Context(), tracer, "ticket.move",
		attribute.String(otelhelper.TicketIDKey, "ticket-1"))
	otelhelper.SetError(span, errors.New("transition not allowed"), attribute.String(otelhelper.StageIDKey, "stage-2"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "ticket.move", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "transition not allowed", spans[0].Status().Description)

	eventNames := make([]string, 0)
	for _, event := range spans[0].Events() {
		eventNames = append(eventNames, event.Name)
	}

	assert.Contains(t, eventNames, "error_occurred")
}

func TestNoopTracer(t *testing.T) {
	t.Parallel()

	_, span := otelhelper.StartSpan(t.Context(), otelhelper.NoopTracer(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}
