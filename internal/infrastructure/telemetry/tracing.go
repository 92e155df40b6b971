package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/reseller/crosslist/internal/domain/listing"
)

// TracerName is the instrumentation name for application spans
const TracerName = "github.com/reseller/crosslist"

// StartAdapterSpan starts a client span around one marketplace call,
// e.g. "marketplace.publish" for ebay.
func StartAdapterSpan(ctx context.Context, op string, platform listing.Platform, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		AttrPlatform.String(platform.String()),
		AttrKind.String(string(platform.Kind())),
	)
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, "marketplace."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
