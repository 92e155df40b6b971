package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
	listingIDKey contextKey = "listing_id"
	platformKey  contextKey = "platform"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID records the request id in ctx and on the context logger
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withField(ctx, requestIDKey, requestID)
}

// WithListingID records the listing being worked on
func WithListingID(ctx context.Context, listingID string) context.Context {
	return withField(ctx, listingIDKey, listingID)
}

// WithPlatform records the marketplace being talked to
func WithPlatform(ctx context.Context, platform string) context.Context {
	return withField(ctx, platformKey, platform)
}

func withField(ctx context.Context, key contextKey, value string) context.Context {
	ctx = context.WithValue(ctx, key, value)
	return WithContext(ctx, FromContext(ctx).With(zap.String(string(key), value)))
}

// GetRequestID retrieves the request id from context
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// GetListingID retrieves the listing id from context
func GetListingID(ctx context.Context) string {
	return stringValue(ctx, listingIDKey)
}

// GetPlatform retrieves the platform from context
func GetPlatform(ctx context.Context) string {
	return stringValue(ctx, platformKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// WithTraceContext adds trace_id and span_id from the span in ctx.
// Without a valid span the logger is returned unchanged.
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}

// L returns the context logger with trace correlation applied.
// The request, listing and platform fields are already on it.
//
//	logger.L(ctx).Info("sale recorded", zap.Int("quantity", qty))
func L(ctx context.Context) *zap.Logger {
	return WithTraceContext(ctx, FromContext(ctx))
}
