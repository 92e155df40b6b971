package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	log, _ := observed()
	ctx := WithContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
}

func TestContextFields(t *testing.T) {
	log, logs := observed()
	ctx := WithContext(context.Background(), log)
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithListingID(ctx, "3f1c")
	ctx = WithPlatform(ctx, "ebay")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "3f1c", GetListingID(ctx))
	assert.Equal(t, "ebay", GetPlatform(ctx))

	L(ctx).Info("publish started")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "3f1c", fields["listing_id"])
	assert.Equal(t, "ebay", fields["platform"])
	assert.NotContains(t, fields, "trace_id")
}

func TestContextFields_Missing(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetListingID(ctx))
	assert.Empty(t, GetPlatform(ctx))
}

func TestL_AddsTraceContext(t *testing.T) {
	provider := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	log, logs := observed()
	ctx, span := provider.Tracer("test").Start(WithContext(context.Background(), log), "sweep")
	defer span.End()

	L(ctx).Info("sweeping")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
}
