// Package reconciliation keeps the platforms consistent after a sale: it
// records the sale once, delists the item everywhere else after a grace
// period, and escalates cancellations that keep failing.
package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/reseller/crosslist/internal/domain/listing"
	"github.com/reseller/crosslist/internal/domain/shared"
	"github.com/reseller/crosslist/internal/infrastructure/telemetry"
)

const (
	DefaultGracePeriod       = 15 * time.Minute
	DefaultCancelTimeout     = 30 * time.Second
	DefaultMaxCancelAttempts = 5
	DefaultSweepBatchSize    = 100
	DefaultSignalTTL         = 7 * 24 * time.Hour

	quantityUpdateTimeout = 30 * time.Second
)

// Config holds the reconciliation tunables
type Config struct {
	GracePeriod time.Duration
	// PlatformGrace overrides GracePeriod for individual platforms
	PlatformGrace     map[listing.Platform]time.Duration
	CancelTimeout     time.Duration
	MaxCancelAttempts int
	SweepBatchSize    int
	// SignalTTL is how long a processed sale signal id is remembered
	SignalTTL time.Duration
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		GracePeriod:       DefaultGracePeriod,
		CancelTimeout:     DefaultCancelTimeout,
		MaxCancelAttempts: DefaultMaxCancelAttempts,
		SweepBatchSize:    DefaultSweepBatchSize,
		SignalTTL:         DefaultSignalTTL,
	}
}

// GraceFor returns the grace period applied to links on p
func (c Config) GraceFor(p listing.Platform) time.Duration {
	if d, ok := c.PlatformGrace[p]; ok {
		return d
	}
	return c.GracePeriod
}

func (c Config) withDefaults() Config {
	if c.GracePeriod < 0 {
		c.GracePeriod = 0
	}
	if c.CancelTimeout <= 0 {
		c.CancelTimeout = DefaultCancelTimeout
	}
	if c.MaxCancelAttempts <= 0 {
		c.MaxCancelAttempts = DefaultMaxCancelAttempts
	}
	if c.SweepBatchSize <= 0 {
		c.SweepBatchSize = DefaultSweepBatchSize
	}
	if c.SignalTTL <= 0 {
		c.SignalTTL = DefaultSignalTTL
	}
	return c
}

// Stores groups the repositories the reconciler writes to
type Stores struct {
	Listings      listing.ListingRepository
	Links         listing.LinkRepository
	Sales         listing.SaleRepository
	SyncLogs      listing.SyncLogRepository
	Notifications listing.NotificationRepository
}

// Metrics receives reconciliation observations
type Metrics interface {
	RecordSale(ctx context.Context, platform listing.Platform, quantity int, soldOut bool)
	RecordConflict(ctx context.Context, platform listing.Platform)
	RecordCancellation(ctx context.Context, platform listing.Platform, outcome string)
}

// Cancellation outcomes reported to Metrics
const (
	CancelOutcomeCanceled = "canceled"
	CancelOutcomeRetry    = "retry"
	CancelOutcomeManual   = "manual_action"
)

type nopMetrics struct{}

func (nopMetrics) RecordSale(context.Context, listing.Platform, int, bool)      {}
func (nopMetrics) RecordConflict(context.Context, listing.Platform)             {}
func (nopMetrics) RecordCancellation(context.Context, listing.Platform, string) {}

// Reconciler applies sale signals and runs the cancellation sweep
type Reconciler struct {
	stores      Stores
	registry    listing.AdapterRegistry
	locker      listing.ListingLocker
	idempotency shared.IdempotencyStore
	cfg         Config
	metrics     Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithIdempotencyStore deduplicates sale signals that carry a SignalID
func WithIdempotencyStore(store shared.IdempotencyStore) Option {
	return func(r *Reconciler) {
		r.idempotency = store
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(r *Reconciler) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// NewReconciler creates a Reconciler
func NewReconciler(stores Stores, registry listing.AdapterRegistry, locker listing.ListingLocker, cfg Config, opts ...Option) *Reconciler {
	r := &Reconciler{
		stores:   stores,
		registry: registry,
		locker:   locker,
		cfg:      cfg.withDefaults(),
		metrics:  nopMetrics{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("reconciler")
	return r
}

// ---------------------------------------------------------------------------
// Mark sold
// ---------------------------------------------------------------------------

// MarkSoldRequest is a sale signal from one platform
type MarkSoldRequest struct {
	ListingID uuid.UUID
	Platform  listing.Platform
	// Price is the total paid; zero means the listing price times Quantity
	Price decimal.Decimal
	// Quantity defaults to 1
	Quantity int
	Fees     decimal.Decimal
	// SignalID is the platform's order or event id, used to drop redeliveries
	SignalID string
}

// MarkSoldResult describes what a sale changed
type MarkSoldResult struct {
	Sale      *listing.Sale
	Remaining int
	SoldOut   bool
	// Scheduled are the links now waiting out the grace period
	Scheduled []listing.PlatformListingLink
	// QuantityUpdates maps each other live platform to its push error, nil on success
	QuantityUpdates map[listing.Platform]error
}

// MarkSold records a sale. Sales on one listing are serialized; when two
// platforms sell the last unit, the later one gets a ReconciliationConflict.
func (r *Reconciler) MarkSold(ctx context.Context, req MarkSoldRequest) (*MarkSoldResult, error) {
	if !req.Platform.IsValid() {
		return nil, fmt.Errorf("%w: %q", listing.ErrUnknownPlatform, req.Platform)
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		return nil, listing.ErrInvalidSaleQuantity
	}
	if req.Price.IsNegative() || req.Fees.IsNegative() {
		return nil, listing.ErrInvalidSalePrice
	}

	unlock, err := r.locker.Lock(ctx, req.ListingID)
	if err != nil {
		return nil, fmt.Errorf("lock listing %s: %w", req.ListingID, err)
	}
	defer unlock()

	if req.SignalID != "" && r.idempotency != nil {
		seen, err := r.idempotency.IsProcessed(ctx, r.signalKey(req))
		if err != nil {
			return nil, fmt.Errorf("check sale signal: %w", err)
		}
		if seen {
			return nil, listing.ErrDuplicateSaleSignal
		}
	}

	l, err := r.stores.Listings.FindByID(ctx, req.ListingID)
	if err != nil {
		return nil, err
	}
	if l.IsSold() {
		return nil, r.conflict(ctx, l, req.Platform)
	}

	selling, err := r.stores.Links.FindByListingAndPlatform(ctx, l.ID, req.Platform)
	if err != nil {
		if errors.Is(err, listing.ErrLinkNotFound) {
			return nil, listing.ErrPlatformNotLinked
		}
		return nil, err
	}
	if selling.Status != listing.LinkActive {
		return nil, listing.ErrPlatformNotLinked
	}

	now := r.now()
	price := req.Price
	if price.IsZero() {
		price = l.Price.Amount.Mul(decimal.NewFromInt(int64(req.Quantity)))
	}
	remaining, err := l.RecordSale(req.Platform, price, req.Quantity, now)
	if err != nil {
		return nil, err
	}
	if err := r.stores.Listings.SaveSale(ctx, l); err != nil {
		if errors.Is(err, listing.ErrTransitionConflict) {
			// another process got past the lock; reread to name the winner
			if fresh, ferr := r.stores.Listings.FindByID(ctx, l.ID); ferr == nil && fresh.IsSold() {
				return nil, r.conflict(ctx, fresh, req.Platform)
			}
		}
		return nil, err
	}

	// the sale is committed; everything below must finish even if the caller left
	ctx = context.WithoutCancel(ctx)

	sale := listing.NewSale(l, req.Platform, price, req.Fees, req.Quantity, remaining, now)
	if err := r.stores.Sales.Create(ctx, sale); err != nil {
		r.logger.Error("Failed to store sale record",
			zap.String("listing_id", l.ID.String()),
			zap.Error(err),
		)
	}
	r.syncLog(ctx, listing.NewSyncLogEntry(l.ID, req.Platform, listing.SyncActionSold, listing.SyncSuccess,
		fmt.Sprintf("qty %d at %s, %d left", req.Quantity, price.StringFixed(2), remaining), now))

	result := &MarkSoldResult{Sale: sale, Remaining: remaining, SoldOut: remaining == 0}

	others, err := r.otherLiveLinks(ctx, l.ID, req.Platform)
	if err != nil {
		r.logger.Error("Failed to load platform links after sale",
			zap.String("listing_id", l.ID.String()),
			zap.Error(err),
		)
	}

	if remaining > 0 {
		result.QuantityUpdates = r.pushQuantity(ctx, others, remaining, now)
	} else {
		r.closeOut(ctx, selling, now)
		result.Scheduled = r.scheduleCancellations(ctx, others, now)
	}

	if err := r.stores.Notifications.Create(ctx, listing.NewSaleNotification(l, sale)); err != nil {
		r.logger.Error("Failed to store sale notification", zap.Error(err))
	}
	if req.SignalID != "" && r.idempotency != nil {
		if _, err := r.idempotency.MarkProcessed(ctx, r.signalKey(req), r.cfg.SignalTTL); err != nil {
			r.logger.Warn("Failed to remember sale signal", zap.String("signal_id", req.SignalID), zap.Error(err))
		}
	}

	r.metrics.RecordSale(ctx, req.Platform, req.Quantity, result.SoldOut)
	r.logger.Info("Sale recorded",
		zap.String("listing_id", l.ID.String()),
		zap.String("platform", req.Platform.String()),
		zap.Int("quantity", req.Quantity),
		zap.Int("remaining", remaining),
		zap.Int("scheduled_cancellations", len(result.Scheduled)),
	)
	return result, nil
}

func (r *Reconciler) signalKey(req MarkSoldRequest) string {
	return "sale:" + req.Platform.String() + ":" + req.SignalID
}

func (r *Reconciler) conflict(ctx context.Context, l *listing.UnifiedListing, p listing.Platform) error {
	r.metrics.RecordConflict(ctx, p)
	r.logger.Warn("Sale signal for a listing that already sold",
		zap.String("listing_id", l.ID.String()),
		zap.String("platform", p.String()),
		zap.String("winning_platform", l.SoldPlatform.String()),
	)
	return &listing.ReconciliationConflict{ListingID: l.ID, Platform: p, WinningPlatform: l.SoldPlatform}
}

func (r *Reconciler) otherLiveLinks(ctx context.Context, listingID uuid.UUID, selling listing.Platform) ([]listing.PlatformListingLink, error) {
	links, err := r.stores.Links.FindByListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	out := links[:0]
	for _, link := range links {
		if link.Platform != selling && link.Status == listing.LinkActive {
			out = append(out, link)
		}
	}
	return out, nil
}

// pushQuantity tells every other live platform the new quantity. Failures
// are logged and reported but do not undo the sale.
func (r *Reconciler) pushQuantity(ctx context.Context, links []listing.PlatformListingLink, remaining int, now time.Time) map[listing.Platform]error {
	updates := make(map[listing.Platform]error, len(links))
	for i := range links {
		link := &links[i]
		adapter, err := r.registry.Adapter(link.Platform)
		if err == nil {
			err = callWithTimeout(ctx, quantityUpdateTimeout, link.Platform, "update_quantity", func(ctx context.Context) error {
				return adapter.UpdateQuantity(ctx, link, remaining)
			})
		}
		updates[link.Platform] = err

		if err != nil {
			r.logger.Warn("Quantity update failed",
				zap.String("listing_id", link.ListingID.String()),
				zap.String("platform", link.Platform.String()),
				zap.Error(err),
			)
			r.syncLog(ctx, listing.NewSyncLogEntry(link.ListingID, link.Platform, listing.SyncActionUpdateQuantity, listing.SyncFailed, err.Error(), now))
			continue
		}
		r.syncLog(ctx, listing.NewSyncLogEntry(link.ListingID, link.Platform, listing.SyncActionUpdateQuantity, listing.SyncSuccess,
			fmt.Sprintf("quantity %d", remaining), now))
	}
	return updates
}

// closeOut marks the selling link sold
func (r *Reconciler) closeOut(ctx context.Context, selling *listing.PlatformListingLink, now time.Time) {
	t := selling.MarkSold(now)
	if err := r.stores.Links.Transition(ctx, t); err != nil {
		r.logger.Error("Failed to mark selling link sold",
			zap.String("link_id", selling.ID.String()),
			zap.Error(err),
		)
		return
	}
	selling.Apply(t)
}

// scheduleCancellations moves every other live link to pending_cancel. A link
// that changed underneath is skipped; its new state already took it off sale.
func (r *Reconciler) scheduleCancellations(ctx context.Context, links []listing.PlatformListingLink, now time.Time) []listing.PlatformListingLink {
	scheduled := make([]listing.PlatformListingLink, 0, len(links))
	for _, link := range links {
		t := link.ScheduleCancel(now, r.cfg.GraceFor(link.Platform))
		if err := r.stores.Links.Transition(ctx, t); err != nil {
			r.logger.Warn("Could not schedule cancellation",
				zap.String("link_id", link.ID.String()),
				zap.String("platform", link.Platform.String()),
				zap.Error(err),
			)
			continue
		}
		link.Apply(t)
		scheduled = append(scheduled, link)
		r.syncLog(ctx, listing.NewSyncLogEntry(link.ListingID, link.Platform, listing.SyncActionScheduleCancel, listing.SyncScheduled,
			"due "+t.CancelScheduledAt.UTC().Format(time.RFC3339), now))
	}
	return scheduled
}

// FollowActivation catches up a link that went live while a sale was being
// recorded. MarkSold only sees links that are active when it runs, so a
// publish still in flight comes back to a listing that may have sold out or
// lost units. Under the listing lock the link is scheduled for cancellation
// or told the current quantity.
func (r *Reconciler) FollowActivation(ctx context.Context, link *listing.PlatformListingLink, publishedQuantity int) error {
	unlock, err := r.locker.Lock(ctx, link.ListingID)
	if err != nil {
		return fmt.Errorf("lock listing %s: %w", link.ListingID, err)
	}
	defer unlock()

	l, err := r.stores.Listings.FindByID(ctx, link.ListingID)
	if err != nil {
		return err
	}
	current, err := r.stores.Links.FindByListingAndPlatform(ctx, link.ListingID, link.Platform)
	if err != nil {
		return err
	}
	// a sale that saw the link active already handled it
	if current.Status != listing.LinkActive {
		return nil
	}

	now := r.now()
	switch {
	case l.IsSold():
		if scheduled := r.scheduleCancellations(ctx, []listing.PlatformListingLink{*current}, now); len(scheduled) > 0 {
			r.logger.Info("Late link scheduled for cancellation",
				zap.String("listing_id", l.ID.String()),
				zap.String("platform", current.Platform.String()),
			)
		}
	case l.Quantity != publishedQuantity:
		if err := r.pushQuantity(ctx, []listing.PlatformListingLink{*current}, l.Quantity, now)[current.Platform]; err != nil {
			return fmt.Errorf("push quantity to %s: %w", current.Platform, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Cancellation sweep
// ---------------------------------------------------------------------------

// SweepReport summarizes one sweep
type SweepReport struct {
	Due          int
	Canceled     int
	Retrying     int
	ManualAction int
}

// SweepDueCancellations delists every pending_cancel link whose grace period
// has elapsed at now. One link's failure never stops the sweep.
func (r *Reconciler) SweepDueCancellations(ctx context.Context, now time.Time) (SweepReport, error) {
	var report SweepReport
	links, err := r.stores.Links.FindDueCancellations(ctx, now, r.cfg.SweepBatchSize)
	if err != nil {
		return report, fmt.Errorf("find due cancellations: %w", err)
	}
	report.Due = len(links)

	for i := range links {
		if ctx.Err() != nil {
			break
		}
		switch r.cancelOne(ctx, &links[i], now) {
		case CancelOutcomeCanceled:
			report.Canceled++
		case CancelOutcomeRetry:
			report.Retrying++
		case CancelOutcomeManual:
			report.ManualAction++
		}
	}

	if report.Due > 0 {
		r.logger.Info("Cancellation sweep finished",
			zap.Int("due", report.Due),
			zap.Int("canceled", report.Canceled),
			zap.Int("retrying", report.Retrying),
			zap.Int("manual_action", report.ManualAction),
		)
	}
	return report, nil
}

func (r *Reconciler) cancelOne(ctx context.Context, link *listing.PlatformListingLink, now time.Time) string {
	adapter, err := r.registry.Adapter(link.Platform)
	if err == nil {
		err = callWithTimeout(ctx, r.cfg.CancelTimeout, link.Platform, "cancel", func(ctx context.Context) error {
			return adapter.Cancel(ctx, link)
		})
	}

	if err == nil {
		return r.completeCancel(ctx, link, now)
	}

	attempts := link.CancelAttempts + 1
	manual := listing.IsPermanent(err) || attempts >= r.cfg.MaxCancelAttempts
	if ferr := r.stores.Links.RecordCancelFailure(ctx, link.ID, err.Error(), manual, now); ferr != nil {
		r.logger.Error("Failed to record cancel failure",
			zap.String("link_id", link.ID.String()),
			zap.Error(ferr),
		)
		return ""
	}
	r.syncLog(ctx, listing.NewSyncLogEntry(link.ListingID, link.Platform, listing.SyncActionCancel, listing.SyncFailed,
		fmt.Sprintf("attempt %d: %s", attempts, err.Error()), now))

	if !manual {
		r.logger.Warn("Cancellation failed, will retry",
			zap.String("link_id", link.ID.String()),
			zap.String("platform", link.Platform.String()),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		r.metrics.RecordCancellation(ctx, link.Platform, CancelOutcomeRetry)
		return CancelOutcomeRetry
	}

	r.logger.Error("Cancellation needs manual action",
		zap.String("link_id", link.ID.String()),
		zap.String("platform", link.Platform.String()),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
	reason := fmt.Sprintf("Automatic delisting failed after %d attempt(s): %s", attempts, err.Error())
	r.notify(ctx, listing.NewManualActionNotification(link, reason, now))
	r.metrics.RecordCancellation(ctx, link.Platform, CancelOutcomeManual)
	return CancelOutcomeManual
}

func (r *Reconciler) completeCancel(ctx context.Context, link *listing.PlatformListingLink, now time.Time) string {
	t := link.Cancel(now)
	if err := r.stores.Links.Transition(ctx, t); err != nil {
		r.logger.Warn("Canceled link changed during sweep",
			zap.String("link_id", link.ID.String()),
			zap.Error(err),
		)
		return ""
	}
	link.Apply(t)
	r.syncLog(ctx, listing.NewSyncLogEntry(link.ListingID, link.Platform, listing.SyncActionCancel, listing.SyncSuccess, link.PlatformListingID, now))
	r.metrics.RecordCancellation(ctx, link.Platform, CancelOutcomeCanceled)

	// nothing remote to delist on template platforms; the seller does it
	if !link.Kind.HasRemoteState() {
		r.notify(ctx, listing.NewManualActionNotification(link,
			"Remove the "+link.Platform.DisplayName()+" posting by hand: the item has sold", now))
	}
	return CancelOutcomeCanceled
}

// callWithTimeout runs fn under a deadline and stops waiting once it passes,
// so an adapter that ignores its context cannot stall the caller. A panic in
// fn is returned as an error.
func callWithTimeout(ctx context.Context, d time.Duration, p listing.Platform, op string, fn func(context.Context) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	ctx, span := telemetry.StartAdapterSpan(ctx, op, p)
	defer func() { telemetry.EndSpan(span, err) }()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("%w: adapter panic: %v", listing.ErrPlatformRequestFailed, rec)
			}
		}()
		done <- fn(ctx)
	}()

	select {
	case err = <-done:
		return err
	case <-ctx.Done():
		return &listing.TransientAdapterError{Platform: p, Op: op, Err: ctx.Err()}
	}
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Sales returns the recorded sales of a listing
func (r *Reconciler) Sales(ctx context.Context, listingID uuid.UUID) ([]listing.Sale, error) {
	return r.stores.Sales.FindByListing(ctx, listingID)
}

// Notifications returns unread notifications, newest first
func (r *Reconciler) Notifications(ctx context.Context, limit int) ([]listing.Notification, error) {
	return r.stores.Notifications.FindUnread(ctx, limit)
}

// MarkNotificationRead acknowledges a notification
func (r *Reconciler) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	return r.stores.Notifications.MarkRead(ctx, id)
}

func (r *Reconciler) notify(ctx context.Context, n *listing.Notification) {
	if err := r.stores.Notifications.Create(ctx, n); err != nil {
		r.logger.Error("Failed to store notification",
			zap.String("type", string(n.Type)),
			zap.Error(err),
		)
	}
}

func (r *Reconciler) syncLog(ctx context.Context, entry listing.SyncLogEntry) {
	if err := r.stores.SyncLogs.Append(ctx, entry); err != nil {
		r.logger.Error("Failed to append sync log",
			zap.String("listing_id", entry.ListingID.String()),
			zap.String("action", string(entry.Action)),
			zap.Error(err),
		)
	}
}
