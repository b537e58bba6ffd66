package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEnsureRequestMetaGeneratesID(t *testing.T) {
	ctx, meta := EnsureRequestMeta(context.Background(), "")
	require.NotEmpty(t, meta.RequestID)

	got, ok := RequestIDFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, meta.RequestID, got)
}

func TestEnsureRequestMetaUsesProvidedID(t *testing.T) {
	ctx, meta := EnsureRequestMeta(context.Background(), "req-123")
	require.Equal(t, "req-123", meta.RequestID)

	got, ok := RequestIDFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "req-123", got)
}

func TestEnsureRequestMetaKeepsExistingID(t *testing.T) {
	ctx, first := EnsureRequestMeta(context.Background(), "")
	_, second := EnsureRequestMeta(ctx, "")
	require.Equal(t, first.RequestID, second.RequestID)
}

func TestTraceSpanFromContext(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("0123456789abcdef")
	require.NoError(t, err)
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	gotTraceID, gotSpanID := TraceSpanFromContext(ctx)
	require.Equal(t, traceID.String(), gotTraceID)
	require.Equal(t, spanID.String(), gotSpanID)

	_, meta := EnsureRequestMeta(ctx, "req-1")
	require.Equal(t, traceID.String(), meta.TraceID)
}

func TestRequestFields(t *testing.T) {
	fields := RequestFields(RequestMeta{
		RequestID: "req-1",
		TraceID:   "trace-1",
		SpanID:    "span-1",
	})
	require.Len(t, fields, 3)
	require.Equal(t, FieldRequestID, fields[0].Key)
	require.Equal(t, FieldTraceID, fields[1].Key)
	require.Equal(t, FieldSpanID, fields[2].Key)
	require.Nil(t, RequestFields(RequestMeta{}))
}

func TestLoggerWithRequest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx, _ := EnsureRequestMeta(context.Background(), "req-9")

	LoggerWithRequest(ctx, zap.New(core)).Info("dispatched")
	LoggerWithRequest(context.Background(), zap.New(core)).Info("plain")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	require.Equal(t, "req-9", entries[0].ContextMap()[FieldRequestID])
	require.NotContains(t, entries[1].ContextMap(), FieldRequestID)
}
