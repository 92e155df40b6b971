// Package publishing fans a unified listing out to the configured
// marketplaces and manages the listing records that feed it.
package publishing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reseller/crosslist/internal/domain/listing"
	"github.com/reseller/crosslist/internal/infrastructure/telemetry"
)

// DefaultPublishTimeout bounds a single adapter's publish call
const DefaultPublishTimeout = 60 * time.Second

// Metrics receives one observation per adapter publish attempt
type Metrics interface {
	RecordPublish(ctx context.Context, platform listing.Platform, success bool, duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordPublish(context.Context, listing.Platform, bool, time.Duration) {}

// Publisher runs every requested adapter concurrently and records the
// outcomes in the publish history.
type Publisher struct {
	registry listing.AdapterRegistry
	history  listing.HistoryRepository
	timeout  time.Duration
	metrics  Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Publisher
type Option func(*Publisher)

// WithTimeout sets the per-adapter deadline
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(p *Publisher) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

// NewPublisher creates a Publisher over the configured adapters
func NewPublisher(registry listing.AdapterRegistry, history listing.HistoryRepository, opts ...Option) *Publisher {
	p := &Publisher{
		registry: registry,
		history:  history,
		timeout:  DefaultPublishTimeout,
		metrics:  nopMetrics{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("publisher")
	return p
}

// Registry returns the adapters the publisher fans out to
func (p *Publisher) Registry() listing.AdapterRegistry {
	return p.registry
}

// Targets resolves the platforms a publish call should reach. An empty
// subset means every configured platform. Duplicates are dropped and the
// input order is kept.
func (p *Publisher) Targets(platforms []listing.Platform) []listing.Platform {
	if len(platforms) == 0 {
		return p.registry.Platforms()
	}
	seen := make(map[listing.Platform]struct{}, len(platforms))
	out := make([]listing.Platform, 0, len(platforms))
	for _, pl := range platforms {
		if _, dup := seen[pl]; dup {
			continue
		}
		seen[pl] = struct{}{}
		out = append(out, pl)
	}
	return out
}

// Publish sends l to every platform in platforms, or to all configured
// platforms when the subset is empty. Every requested platform gets exactly
// one result; one adapter's failure or hang never affects another.
func (p *Publisher) Publish(ctx context.Context, l *listing.UnifiedListing, platforms []listing.Platform) map[listing.Platform]listing.PlatformResult {
	targets := p.Targets(platforms)
	results := make(map[listing.Platform]listing.PlatformResult, len(targets))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, platform := range targets {
		adapter, err := p.registry.Adapter(platform)
		if err != nil {
			results[platform] = listing.FailedResult(platform, err)
			continue
		}

		wg.Add(1)
		go func(platform listing.Platform, adapter listing.Adapter) {
			defer wg.Done()
			res := p.publishOne(ctx, adapter, l.Clone())
			mu.Lock()
			results[platform] = res
			mu.Unlock()
		}(platform, adapter)
	}
	wg.Wait()

	p.record(ctx, l, targets, results)
	return results
}

// publishOne runs a single adapter under its own deadline. An adapter that
// does not return by the deadline is abandoned; its late result is dropped.
func (p *Publisher) publishOne(ctx context.Context, adapter listing.Adapter, l *listing.UnifiedListing) listing.PlatformResult {
	platform := adapter.Platform()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	ctx, span := telemetry.StartAdapterSpan(ctx, "publish", platform, telemetry.AttrListing.String(l.ID.String()))

	start := p.now()
	done := make(chan listing.PlatformResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Adapter panicked during publish",
					zap.String("platform", platform.String()),
					zap.Any("panic", r),
				)
				done <- listing.FailedResult(platform, fmt.Errorf("%w: adapter panic: %v", listing.ErrPlatformRequestFailed, r))
			}
		}()
		done <- adapter.Publish(ctx, l)
	}()

	var res listing.PlatformResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = listing.FailedResult(platform, &listing.TransientAdapterError{
			Platform: platform,
			Op:       "publish",
			Err:      ctx.Err(),
		})
	}

	res.Platform = platform
	if res.Kind == "" {
		res.Kind = adapter.Kind()
	}
	if res.Duration == 0 {
		res.Duration = p.now().Sub(start)
	}

	var spanErr error
	if res.Error != nil {
		spanErr = res.Error
	}
	telemetry.EndSpan(span, spanErr)
	return res
}

func (p *Publisher) record(ctx context.Context, l *listing.UnifiedListing, targets []listing.Platform, results map[listing.Platform]listing.PlatformResult) {
	at := p.now()
	entries := make([]listing.PublishHistoryEntry, 0, len(targets))
	for _, platform := range targets {
		res := results[platform]
		entries = append(entries, listing.NewPublishHistoryEntry(l, res, at))
		p.metrics.RecordPublish(ctx, platform, res.Success, res.Duration)

		if res.Success {
			p.logger.Info("Published listing",
				zap.String("listing_id", l.ID.String()),
				zap.String("platform", platform.String()),
				zap.String("platform_listing_id", res.ListingID),
				zap.Duration("duration", res.Duration),
			)
		} else {
			p.logger.Warn("Publish failed",
				zap.String("listing_id", l.ID.String()),
				zap.String("platform", platform.String()),
				zap.String("error", res.ErrorMessage()),
			)
		}
	}

	// history survives a canceled request
	if err := p.history.Append(context.WithoutCancel(ctx), entries...); err != nil {
		p.logger.Error("Failed to append publish history",
			zap.String("listing_id", l.ID.String()),
			zap.Error(err),
		)
	}
}

// SuccessRate returns successes over attempts across all history, or for one
// platform when platform is non-nil
func (p *Publisher) SuccessRate(ctx context.Context, platform *listing.Platform) (listing.SuccessRate, error) {
	rate, err := p.history.SuccessRate(ctx, platform)
	if err != nil {
		return listing.SuccessRate{}, fmt.Errorf("success rate: %w", err)
	}
	return rate, nil
}
