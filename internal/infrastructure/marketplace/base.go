// Package marketplace implements the listing.Adapter variants: REST/GraphQL
// API adapters, CSV and catalog-feed file adapters, and copy-paste templates.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/reseller/crosslist/internal/domain/fieldmap"
	"github.com/reseller/crosslist/internal/domain/listing"
)

// baseAdapter holds what every variant shares: identity, the field table
// and the publish boundary that turns errors and panics into results.
type baseAdapter struct {
	platform listing.Platform
	table    fieldmap.Table
	logger   *zap.Logger
}

func newBaseAdapter(p listing.Platform, table fieldmap.Table, logger *zap.Logger) baseAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseAdapter{
		platform: p,
		table:    table,
		logger:   logger.Named("marketplace").With(zap.String("platform", p.String())),
	}
}

// Platform implements listing.Adapter
func (b *baseAdapter) Platform() listing.Platform {
	return b.platform
}

// Kind implements listing.Adapter
func (b *baseAdapter) Kind() listing.ComplianceKind {
	return b.platform.Kind()
}

// Validate implements listing.Adapter
func (b *baseAdapter) Validate(l *listing.UnifiedListing) listing.ValidationResult {
	result := b.table.Validate(l)
	var own *listing.ValidationError
	if err := l.Validate(); errors.As(err, &own) {
		result.Violations = append(own.Violations, result.Violations...)
	}
	return result
}

// ToPlatformFormat implements listing.Adapter
func (b *baseAdapter) ToPlatformFormat(l *listing.UnifiedListing) (listing.Payload, error) {
	return b.table.MapStrict(l)
}

// publishFunc performs the platform-specific publish on a valid payload
type publishFunc func(ctx context.Context, l *listing.UnifiedListing, payload listing.Payload) (listing.PlatformResult, error)

// publish validates, maps and runs fn. Every failure, including a panic in
// fn, comes back as a failed result.
func (b *baseAdapter) publish(ctx context.Context, l *listing.UnifiedListing, fn publishFunc) (res listing.PlatformResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("adapter panicked during publish", zap.Any("panic", r), zap.Stack("stacktrace"))
			res = listing.FailedResult(b.platform, &listing.PermanentAdapterError{
				Platform: b.platform,
				Op:       "publish",
				Err:      fmt.Errorf("adapter panic: %v", r),
			})
		}
		res.Platform = b.platform
		res.Kind = b.platform.Kind()
		res.Duration = time.Since(start)
	}()

	if vr := b.Validate(l); !vr.Valid() {
		return listing.FailedResult(b.platform, vr.Err())
	}
	payload, err := b.ToPlatformFormat(l)
	if err != nil {
		return listing.FailedResult(b.platform, err)
	}

	res, err = fn(ctx, l, payload)
	if err != nil {
		b.logger.Warn("publish failed",
			zap.String("listing_id", l.ID.String()),
			zap.String("error_kind", string(listing.ClassifyError(err))),
			zap.Error(err),
		)
		return listing.FailedResult(b.platform, err)
	}
	res.Success = true
	res.Error = nil
	return res
}

func (b *baseAdapter) transient(op string, err error) error {
	return &listing.TransientAdapterError{Platform: b.platform, Op: op, Err: err}
}

func (b *baseAdapter) permanent(op string, err error, remediation string) error {
	return &listing.PermanentAdapterError{Platform: b.platform, Op: op, Err: err, Remediation: remediation}
}

// payloadInt reads an integer payload field, 0 when absent
func payloadInt(p listing.Payload, name string) int {
	v, _ := p.Get(name)
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}

// payloadList reads a list payload field
func payloadList(p listing.Payload, name string) []string {
	v, _ := p.Get(name)
	list, _ := v.([]string)
	return list
}
