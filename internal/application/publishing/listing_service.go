package publishing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reseller/crosslist/internal/domain/listing"
)

const (
	// DefaultMaxPublishRetries caps automatic republishing of a failed link
	DefaultMaxPublishRetries = 3

	retryBatchSize = 50
)

// PublishOutcome is the result of publishing one listing
type PublishOutcome struct {
	ListingID uuid.UUID
	Results   map[listing.Platform]listing.PlatformResult
	// Refused holds platforms that were not attempted, with the reason
	Refused map[listing.Platform]error
}

// Succeeded counts the successful platforms
func (o *PublishOutcome) Succeeded() int {
	n := 0
	for _, r := range o.Results {
		if r.Success {
			n++
		}
	}
	return n
}

// RetryReport summarizes one RetryFailedPosts run
type RetryReport struct {
	Attempted int
	Succeeded int
	Failed    int
}

// Preview is what a platform would receive, without publishing
type Preview struct {
	Platform   listing.Platform
	Kind       listing.ComplianceKind
	Validation listing.ValidationResult
	Payload    *listing.Payload
}

// ActivationFollower reconciles a link that went live after its publish
// started. A sale recorded while the publish was in flight never saw the
// link, so the follower has to catch it up.
type ActivationFollower interface {
	FollowActivation(ctx context.Context, link *listing.PlatformListingLink, publishedQuantity int) error
}

// ListingService is the inventory layer: it stores listings, tracks which
// platforms hold them, and drives the Publisher.
type ListingService struct {
	listings      listing.ListingRepository
	links         listing.LinkRepository
	syncLogs      listing.SyncLogRepository
	notifications listing.NotificationRepository
	publisher     *Publisher
	follower      ActivationFollower

	maxRetries int
	logger     *zap.Logger
	now        func() time.Time
}

// ServiceOption configures a ListingService
type ServiceOption func(*ListingService)

// WithMaxPublishRetries caps how many times a failed link is republished
func WithMaxPublishRetries(n int) ServiceOption {
	return func(s *ListingService) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithActivationFollower sets who reconciles links that go live
func WithActivationFollower(f ActivationFollower) ServiceOption {
	return func(s *ListingService) {
		s.follower = f
	}
}

// WithServiceLogger sets the logger
func WithServiceLogger(logger *zap.Logger) ServiceOption {
	return func(s *ListingService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithServiceClock overrides time.Now, for tests
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *ListingService) {
		s.now = now
	}
}

// NewListingService creates a ListingService
func NewListingService(
	listings listing.ListingRepository,
	links listing.LinkRepository,
	syncLogs listing.SyncLogRepository,
	notifications listing.NotificationRepository,
	publisher *Publisher,
	opts ...ServiceOption,
) *ListingService {
	s := &ListingService{
		listings:      listings,
		links:         links,
		syncLogs:      syncLogs,
		notifications: notifications,
		publisher:     publisher,
		maxRetries:    DefaultMaxPublishRetries,
		logger:        zap.NewNop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("listing_service")
	return s
}

// CreateListing normalizes, validates and stores a new draft listing
func (s *ListingService) CreateListing(ctx context.Context, l *listing.UnifiedListing) (*listing.UnifiedListing, error) {
	now := s.now()
	l.Status = listing.ListingStatusDraft
	l.Version = 0
	l.CreatedAt = now
	l.UpdatedAt = now
	l.Normalize()
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if err := s.listings.Create(ctx, l); err != nil {
		return nil, err
	}

	s.syncLog(ctx, listing.NewSyncLogEntry(l.ID, "", listing.SyncActionCreate, listing.SyncSuccess, l.SKU, now))
	s.logger.Info("Listing created",
		zap.String("listing_id", l.ID.String()),
		zap.String("sku", l.SKU),
	)
	return l, nil
}

// GetListing loads a listing by id
func (s *ListingService) GetListing(ctx context.Context, id uuid.UUID) (*listing.UnifiedListing, error) {
	return s.listings.FindByID(ctx, id)
}

// ListListings returns one page of listings and the total match count
func (s *ListingService) ListListings(ctx context.Context, filter listing.ListingFilter) ([]listing.UnifiedListing, int64, error) {
	return s.listings.FindAll(ctx, filter)
}

// Links returns every platform link of a listing
func (s *ListingService) Links(ctx context.Context, id uuid.UUID) ([]listing.PlatformListingLink, error) {
	if _, err := s.listings.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.links.FindByListing(ctx, id)
}

// SyncLog returns the sync log of a listing
func (s *ListingService) SyncLog(ctx context.Context, id uuid.UUID) ([]listing.SyncLogEntry, error) {
	return s.syncLogs.FindByListing(ctx, id)
}

// PublishListing publishes a listing to platforms, or to every configured
// platform when the subset is empty. Platforms where the listing is already
// live are refused with ErrAlreadyPublished; a failed link is reused.
func (s *ListingService) PublishListing(ctx context.Context, id uuid.UUID, platforms []listing.Platform) (*PublishOutcome, error) {
	for _, p := range platforms {
		if !p.IsValid() {
			return nil, fmt.Errorf("%w: %q", listing.ErrUnknownPlatform, p)
		}
	}

	l, err := s.listings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.IsSold() {
		return nil, listing.ErrListingSold
	}

	outcome := &PublishOutcome{
		ListingID: id,
		Results:   map[listing.Platform]listing.PlatformResult{},
		Refused:   map[listing.Platform]error{},
	}

	existing, err := s.links.FindByListing(ctx, id)
	if err != nil {
		return nil, err
	}
	byPlatform := make(map[listing.Platform]listing.PlatformListingLink, len(existing))
	for _, link := range existing {
		byPlatform[link.Platform] = link
	}

	now := s.now()
	pending := make(map[listing.Platform]*listing.PlatformListingLink)
	var attempt []listing.Platform
	for _, p := range s.publisher.Targets(platforms) {
		link, err := s.preparePending(ctx, id, p, byPlatform, now)
		if err != nil {
			outcome.Refused[p] = err
			continue
		}
		pending[p] = link
		attempt = append(attempt, p)
	}

	if len(attempt) == 0 {
		if len(outcome.Refused) == 0 {
			return nil, listing.ErrPlatformNotConfigured
		}
		// a single refused platform is the caller's error, not a partial outcome
		if len(outcome.Refused) == 1 {
			for _, err := range outcome.Refused {
				return nil, err
			}
		}
		return outcome, nil
	}

	outcome.Results = s.publisher.Publish(ctx, l, attempt)
	s.settle(ctx, l, pending, outcome.Results)
	return outcome, nil
}

// preparePending creates a pending link for p, or moves a failed one back to
// pending. Live or finished links refuse the attempt.
func (s *ListingService) preparePending(ctx context.Context, listingID uuid.UUID, p listing.Platform, existing map[listing.Platform]listing.PlatformListingLink, now time.Time) (*listing.PlatformListingLink, error) {
	if _, err := s.publisher.Registry().Adapter(p); err != nil {
		return nil, err
	}

	current, ok := existing[p]
	if !ok {
		link := listing.NewPendingLink(listingID, p, now)
		if err := s.links.Create(ctx, link); err != nil {
			return nil, err
		}
		return link, nil
	}

	switch current.Status {
	case listing.LinkFailed:
		t := current.Retry(now)
		if err := s.links.Transition(ctx, t); err != nil {
			return nil, err
		}
		current.Apply(t)
		return &current, nil
	case listing.LinkActive, listing.LinkPendingCancel, listing.LinkPending:
		return nil, listing.ErrAlreadyPublished
	default:
		// sold or canceled
		return nil, listing.ErrListingSold
	}
}

// settle moves each pending link to active or failed and records the outcome
func (s *ListingService) settle(ctx context.Context, l *listing.UnifiedListing, pending map[listing.Platform]*listing.PlatformListingLink, results map[listing.Platform]listing.PlatformResult) {
	// links must settle even if the caller went away
	ctx = context.WithoutCancel(ctx)
	now := s.now()
	anySuccess := false

	for p, link := range pending {
		res, ok := results[p]
		if !ok {
			continue
		}

		action := listing.SyncActionCreate
		if link.RetryCount > 0 {
			action = listing.SyncActionRetry
		}

		var t listing.LinkTransition
		if res.Success {
			anySuccess = true
			t = link.Activate(res, now)
		} else {
			t = link.Fail(res.ErrorMessage(), now)
		}
		if err := s.links.Transition(ctx, t); err != nil {
			s.logger.Error("Failed to settle platform link",
				zap.String("listing_id", l.ID.String()),
				zap.String("platform", p.String()),
				zap.String("to", t.To.String()),
				zap.Error(err),
			)
			continue
		}
		link.Apply(t)

		if res.Success {
			s.follow(ctx, link, l.Quantity)
			details := res.ListingID
			if res.RequiresManualAction {
				details = "manual posting required"
			}
			s.syncLog(ctx, listing.NewSyncLogEntry(l.ID, p, action, listing.SyncSuccess, details, now))
			continue
		}

		s.syncLog(ctx, listing.NewSyncLogEntry(l.ID, p, action, listing.SyncFailed, res.ErrorMessage(), now))
		if err := s.notifications.Create(ctx, listing.NewListingFailedNotification(l, res, now)); err != nil {
			s.logger.Error("Failed to store notification", zap.Error(err))
		}
	}

	s.updateListingStatus(ctx, l, anySuccess)
}

// follow hands a freshly active link to the follower
func (s *ListingService) follow(ctx context.Context, link *listing.PlatformListingLink, publishedQuantity int) {
	if s.follower == nil {
		return
	}
	if err := s.follower.FollowActivation(ctx, link, publishedQuantity); err != nil {
		s.logger.Error("Failed to reconcile activated link",
			zap.String("listing_id", link.ListingID.String()),
			zap.String("platform", link.Platform.String()),
			zap.Error(err),
		)
	}
}

func (s *ListingService) updateListingStatus(ctx context.Context, l *listing.UnifiedListing, anySuccess bool) {
	var to listing.ListingStatus
	switch {
	case anySuccess && l.Status != listing.ListingStatusActive:
		to = listing.ListingStatusActive
	case !anySuccess && l.Status == listing.ListingStatusDraft:
		to = listing.ListingStatusFailed
	default:
		return
	}
	if err := s.listings.UpdateStatus(ctx, l.ID, l.Status, to); err != nil {
		// a concurrent sale may have moved the listing on; that status wins
		if !errors.Is(err, listing.ErrTransitionConflict) {
			s.logger.Error("Failed to update listing status",
				zap.String("listing_id", l.ID.String()),
				zap.Error(err),
			)
		}
		return
	}
	l.Status = to
}

// RetryFailedPosts republishes failed links whose retry count is below the
// configured maximum. Permanent failures are retried too: the seller may have
// fixed the listing or the account since.
func (s *ListingService) RetryFailedPosts(ctx context.Context) (RetryReport, error) {
	var report RetryReport
	if s.maxRetries == 0 {
		return report, nil
	}

	links, err := s.links.FindRetryable(ctx, s.maxRetries, retryBatchSize)
	if err != nil {
		return report, fmt.Errorf("find retryable links: %w", err)
	}

	byListing := make(map[uuid.UUID][]listing.Platform)
	var order []uuid.UUID
	for _, link := range links {
		if _, seen := byListing[link.ListingID]; !seen {
			order = append(order, link.ListingID)
		}
		byListing[link.ListingID] = append(byListing[link.ListingID], link.Platform)
	}

	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome, err := s.PublishListing(ctx, id, byListing[id])
		if err != nil {
			s.logger.Warn("Retry skipped listing",
				zap.String("listing_id", id.String()),
				zap.Error(err),
			)
			continue
		}
		for _, res := range outcome.Results {
			report.Attempted++
			if res.Success {
				report.Succeeded++
			} else {
				report.Failed++
			}
		}
	}

	if report.Attempted > 0 {
		s.logger.Info("Retried failed posts",
			zap.Int("attempted", report.Attempted),
			zap.Int("succeeded", report.Succeeded),
			zap.Int("failed", report.Failed),
		)
	}
	return report, nil
}

// Preview validates a listing for one platform and maps it to the platform's
// format without publishing. The payload is omitted when validation fails.
func (s *ListingService) Preview(ctx context.Context, id uuid.UUID, p listing.Platform) (*Preview, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("%w: %q", listing.ErrUnknownPlatform, p)
	}
	l, err := s.listings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	adapter, err := s.publisher.Registry().Adapter(p)
	if err != nil {
		return nil, err
	}

	preview := &Preview{
		Platform:   p,
		Kind:       adapter.Kind(),
		Validation: adapter.Validate(l),
	}
	if !preview.Validation.Valid() {
		return preview, nil
	}
	payload, err := adapter.ToPlatformFormat(l)
	if err != nil {
		return nil, err
	}
	preview.Payload = &payload
	return preview, nil
}

// Platforms lists the configured platforms
func (s *ListingService) Platforms() []listing.Platform {
	return s.publisher.Registry().Platforms()
}

// SuccessRate delegates to the Publisher
func (s *ListingService) SuccessRate(ctx context.Context, p *listing.Platform) (listing.SuccessRate, error) {
	return s.publisher.SuccessRate(ctx, p)
}

func (s *ListingService) syncLog(ctx context.Context, entry listing.SyncLogEntry) {
	if err := s.syncLogs.Append(ctx, entry); err != nil {
		s.logger.Error("Failed to append sync log",
			zap.String("listing_id", entry.ListingID.String()),
			zap.String("action", string(entry.Action)),
			zap.Error(err),
		)
	}
}
