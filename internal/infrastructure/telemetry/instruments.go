package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys shared by spans and instruments.
var (
	AttrPlatform = attribute.Key("platform")
	AttrKind     = attribute.Key("compliance_kind")
	AttrSuccess  = attribute.Key("success")
	AttrSoldOut  = attribute.Key("sold_out")
	AttrOutcome  = attribute.Key("outcome")
	AttrListing  = attribute.Key("listing_id")

	AttrHTTPMethod     = attribute.Key("http_method")
	AttrHTTPRoute      = attribute.Key("http_route")
	AttrHTTPStatusCode = attribute.Key("http_status_code")
)

// PublishDurationBuckets run from a local file write up to the adapter timeout.
var PublishDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// HTTPDurationBuckets also reach 60s because a publish request waits on
// the slowest adapter.
var HTTPDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Counter is an int64 counter that takes attributes as varargs.
type Counter struct {
	metric.Int64Counter
}

// NewCounter registers an int64 counter on meter.
func NewCounter(meter metric.Meter, name, description, unit string) (*Counter, error) {
	c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		return nil, fmt.Errorf("telemetry: counter %s: %w", name, err)
	}
	return &Counter{c}, nil
}

// Inc adds one.
func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.Int64Counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// AddN adds n.
func (c *Counter) AddN(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	c.Int64Counter.Add(ctx, n, metric.WithAttributes(attrs...))
}

// HistogramOpts describes a float64 histogram. Boundaries may be empty to
// keep the SDK defaults.
type HistogramOpts struct {
	Name        string
	Description string
	Unit        string
	Boundaries  []float64
}

// Histogram is a float64 histogram that takes attributes as varargs.
type Histogram struct {
	metric.Float64Histogram
}

// NewHistogram registers a float64 histogram on meter.
func NewHistogram(meter metric.Meter, opts HistogramOpts) (*Histogram, error) {
	options := []metric.Float64HistogramOption{
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	}
	if len(opts.Boundaries) > 0 {
		options = append(options, metric.WithExplicitBucketBoundaries(opts.Boundaries...))
	}
	h, err := meter.Float64Histogram(opts.Name, options...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: histogram %s: %w", opts.Name, err)
	}
	return &Histogram{h}, nil
}

// Observe records v.
func (h *Histogram) Observe(ctx context.Context, v float64, attrs ...attribute.KeyValue) {
	h.Float64Histogram.Record(ctx, v, metric.WithAttributes(attrs...))
}

// ObserveDuration records d in seconds.
func (h *Histogram) ObserveDuration(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	h.Float64Histogram.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}
