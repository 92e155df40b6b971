package listing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListingRepository persists unified listings
type ListingRepository interface {
	Create(ctx context.Context, l *UnifiedListing) error
	FindByID(ctx context.Context, id uuid.UUID) (*UnifiedListing, error)
	FindAll(ctx context.Context, filter ListingFilter) ([]UnifiedListing, int64, error)
	// UpdateStatus moves the listing status only if it is currently from
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to ListingStatus) error
	// SaveSale writes quantity and sold fields if the stored version still
	// equals l.Version, then bumps the version. ErrTransitionConflict otherwise.
	SaveSale(ctx context.Context, l *UnifiedListing) error
}

// LinkRepository persists platform listing links. Status changes go through
// Transition, a compare-and-set on the current status.
type LinkRepository interface {
	Create(ctx context.Context, link *PlatformListingLink) error
	FindByID(ctx context.Context, id uuid.UUID) (*PlatformListingLink, error)
	FindByListing(ctx context.Context, listingID uuid.UUID) ([]PlatformListingLink, error)
	FindByListingAndPlatform(ctx context.Context, listingID uuid.UUID, p Platform) (*PlatformListingLink, error)
	// FindDueCancellations returns pending_cancel links due at or before now
	// that are not flagged for manual action
	FindDueCancellations(ctx context.Context, now time.Time, limit int) ([]PlatformListingLink, error)
	// FindRetryable returns failed links with fewer than maxRetries retries
	FindRetryable(ctx context.Context, maxRetries, limit int) ([]PlatformListingLink, error)
	Transition(ctx context.Context, t LinkTransition) error
	// RecordCancelFailure counts a failed cancel on a pending_cancel link
	RecordCancelFailure(ctx context.Context, id uuid.UUID, reason string, manualActionRequired bool, at time.Time) error
}

// HistoryRepository stores the append-only publish history
type HistoryRepository interface {
	Append(ctx context.Context, entries ...PublishHistoryEntry) error
	FindByListing(ctx context.Context, listingID uuid.UUID) ([]PublishHistoryEntry, error)
	// SuccessRate aggregates all history, or one platform's when p is non-nil
	SuccessRate(ctx context.Context, p *Platform) (SuccessRate, error)
}

// SaleRepository stores accepted sales
type SaleRepository interface {
	Create(ctx context.Context, s *Sale) error
	FindByListing(ctx context.Context, listingID uuid.UUID) ([]Sale, error)
}

// SyncLogRepository stores the per-listing sync log
type SyncLogRepository interface {
	Append(ctx context.Context, entry SyncLogEntry) error
	FindByListing(ctx context.Context, listingID uuid.UUID) ([]SyncLogEntry, error)
}

// NotificationRepository stores seller notifications
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	FindUnread(ctx context.Context, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
}

// ListingLocker serializes sale handling for one listing. Lock blocks until
// the lock is held or ctx is done; the returned func releases it.
type ListingLocker interface {
	Lock(ctx context.Context, listingID uuid.UUID) (unlock func(), err error)
}
