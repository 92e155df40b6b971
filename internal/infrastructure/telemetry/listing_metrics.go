package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/reseller/crosslist/internal/domain/listing"
)

// ListingMetrics records publish and reconciliation activity. It satisfies
// the metrics ports of both the publishing and reconciliation services.
type ListingMetrics struct {
	logger *zap.Logger

	publishAttempts *Counter
	publishDuration *Histogram
	salesTotal      *Counter
	unitsSold       *Counter
	saleConflicts   *Counter
	cancellations   *Counter
}

// NewListingMetrics creates the instruments on meter.
func NewListingMetrics(meter metric.Meter, logger *zap.Logger) (*ListingMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &ListingMetrics{logger: logger}
	var err error

	if m.publishAttempts, err = NewCounter(meter,
		"crosslist_publish_attempts_total",
		"Publish attempts per platform, by outcome",
		"{attempts}",
	); err != nil {
		return nil, err
	}

	if m.publishDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "crosslist_publish_duration_seconds",
		Description: "Wall time of a single platform publish",
		Unit:        "s",
		Boundaries:  PublishDurationBuckets,
	}); err != nil {
		return nil, err
	}

	if m.salesTotal, err = NewCounter(meter,
		"crosslist_sales_total",
		"Sales accepted by reconciliation",
		"{sales}",
	); err != nil {
		return nil, err
	}

	if m.unitsSold, err = NewCounter(meter,
		"crosslist_units_sold_total",
		"Units sold across all platforms",
		"{units}",
	); err != nil {
		return nil, err
	}

	if m.saleConflicts, err = NewCounter(meter,
		"crosslist_sale_conflicts_total",
		"Sales reported for a listing another platform already sold",
		"{conflicts}",
	); err != nil {
		return nil, err
	}

	if m.cancellations, err = NewCounter(meter,
		"crosslist_cancellations_total",
		"Delist attempts made by the cancellation sweeper",
		"{attempts}",
	); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordPublish records one platform publish attempt.
func (m *ListingMetrics) RecordPublish(ctx context.Context, platform listing.Platform, success bool, d time.Duration) {
	m.publishAttempts.Inc(ctx,
		AttrPlatform.String(platform.String()),
		AttrKind.String(string(platform.Kind())),
		AttrSuccess.Bool(success),
	)
	m.publishDuration.ObserveDuration(ctx, d,
		AttrPlatform.String(platform.String()),
		AttrSuccess.Bool(success),
	)
}

// RecordSale records an accepted sale of quantity units.
func (m *ListingMetrics) RecordSale(ctx context.Context, platform listing.Platform, quantity int, soldOut bool) {
	m.salesTotal.Inc(ctx,
		AttrPlatform.String(platform.String()),
		AttrSoldOut.Bool(soldOut),
	)
	m.unitsSold.AddN(ctx, int64(quantity), AttrPlatform.String(platform.String()))
}

// RecordConflict records a losing sale signal.
func (m *ListingMetrics) RecordConflict(ctx context.Context, platform listing.Platform) {
	m.saleConflicts.Inc(ctx, AttrPlatform.String(platform.String()))
}

// RecordCancellation records a sweeper delist attempt and its outcome.
func (m *ListingMetrics) RecordCancellation(ctx context.Context, platform listing.Platform, outcome string) {
	m.cancellations.Inc(ctx,
		AttrPlatform.String(platform.String()),
		AttrOutcome.String(outcome),
	)
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewListingMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
