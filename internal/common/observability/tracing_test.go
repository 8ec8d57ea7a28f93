package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_Exported(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	obs := New("loan-assistant-test", WithSpanExporter(exp))
	t.Cleanup(obs.Shutdown)

	ctx, span := obs.StartSpan(context.Background(), "conversation.ProcessTurn", attribute.String("thread.id", "t-1"))
	_, child := obs.StartSpan(ctx, "sales.Reply")
	child.End()
	FailSpan(span, errors.New("store down"))
	span.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "sales.Reply", spans[0].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Contains(t, spans[1].Attributes, attribute.String("thread.id", "t-1"))
}

func TestNilObservability_IsNoop(t *testing.T) {
	var obs *Observability

	ctx, span := obs.StartSpan(context.Background(), "noop")
	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid())
	FailSpan(span, errors.New("ignored"))
	span.End()

	obs.RecordTurn(context.Background(), "SALES", "ok", time.Millisecond)
	obs.Shutdown()
}
