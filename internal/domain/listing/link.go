package listing

import (
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// LinkStatus state machine
// ---------------------------------------------------------------------------

// LinkStatus is the state of a listing on one platform
type LinkStatus string

const (
	// LinkPending is a publish attempt in flight
	LinkPending LinkStatus = "pending"
	// LinkActive is live on the platform
	LinkActive LinkStatus = "active"
	// LinkSold is the platform that won the sale
	LinkSold LinkStatus = "sold"
	// LinkFailed is a failed publish, terminal unless retried
	LinkFailed LinkStatus = "failed"
	// LinkCanceled has been delisted after a sale elsewhere
	LinkCanceled LinkStatus = "canceled"
	// LinkPendingCancel waits out the grace period before delisting
	LinkPendingCancel LinkStatus = "pending_cancel"
)

var linkTransitions = map[LinkStatus][]LinkStatus{
	LinkPending:       {LinkActive, LinkFailed},
	LinkFailed:        {LinkPending},
	LinkActive:        {LinkSold, LinkPendingCancel},
	LinkPendingCancel: {LinkCanceled},
}

// IsValid returns true if the status is known
func (s LinkStatus) IsValid() bool {
	switch s {
	case LinkPending, LinkActive, LinkSold, LinkFailed, LinkCanceled, LinkPendingCancel:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether s -> to is an allowed edge
func (s LinkStatus) CanTransitionTo(to LinkStatus) bool {
	for _, allowed := range linkTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsLive reports whether the item is currently offered on the platform
func (s LinkStatus) IsLive() bool {
	return s == LinkActive || s == LinkPendingCancel
}

// String returns the string representation of LinkStatus
func (s LinkStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// PlatformListingLink
// ---------------------------------------------------------------------------

// PlatformListingLink joins a UnifiedListing to its realization on one
// platform. Links are never deleted, only transitioned.
type PlatformListingLink struct {
	ID                uuid.UUID
	ListingID         uuid.UUID
	Platform          Platform
	Kind              ComplianceKind
	PlatformListingID string
	PlatformRef       string
	ListingURL        string
	Status            LinkStatus

	CancelScheduledAt    *time.Time
	CancelAttempts       int
	ManualActionRequired bool

	RetryCount int
	LastError  string

	PostedAt   *time.Time
	SoldAt     *time.Time
	CanceledAt *time.Time

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPendingLink creates a link for a publish attempt about to start
func NewPendingLink(listingID uuid.UUID, platform Platform, now time.Time) *PlatformListingLink {
	return &PlatformListingLink{
		ID:        uuid.New(),
		ListingID: listingID,
		Platform:  platform,
		Kind:      platform.Kind(),
		Status:    LinkPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsCancelDue reports whether the grace window has elapsed at now
func (l *PlatformListingLink) IsCancelDue(now time.Time) bool {
	return l.Status == LinkPendingCancel &&
		l.CancelScheduledAt != nil &&
		!now.Before(*l.CancelScheduledAt) &&
		!l.ManualActionRequired
}

// ---------------------------------------------------------------------------
// LinkTransition
// ---------------------------------------------------------------------------

// LinkTransition is a compare-and-set request: move LinkID from From to To,
// applying the listed field changes, only if the stored status equals From.
type LinkTransition struct {
	LinkID uuid.UUID
	From   LinkStatus
	To     LinkStatus
	At     time.Time

	PlatformListingID string
	PlatformRef       string
	ListingURL        string
	CancelScheduledAt *time.Time
	LastError         string
	IncrementRetry    bool
}

// Validate checks the edge against the state machine
func (t LinkTransition) Validate() error {
	if !t.From.CanTransitionTo(t.To) {
		return ErrInvalidTransition
	}
	return nil
}

// Activate builds pending -> active from a successful result
func (l *PlatformListingLink) Activate(res PlatformResult, at time.Time) LinkTransition {
	return LinkTransition{
		LinkID:            l.ID,
		From:              LinkPending,
		To:                LinkActive,
		At:                at,
		PlatformListingID: res.ListingID,
		PlatformRef:       res.PlatformRef,
		ListingURL:        res.ListingURL,
	}
}

// Fail builds pending -> failed
func (l *PlatformListingLink) Fail(reason string, at time.Time) LinkTransition {
	return LinkTransition{LinkID: l.ID, From: LinkPending, To: LinkFailed, At: at, LastError: reason}
}

// Retry builds failed -> pending and counts the attempt
func (l *PlatformListingLink) Retry(at time.Time) LinkTransition {
	return LinkTransition{LinkID: l.ID, From: LinkFailed, To: LinkPending, At: at, IncrementRetry: true}
}

// MarkSold builds active -> sold
func (l *PlatformListingLink) MarkSold(at time.Time) LinkTransition {
	return LinkTransition{LinkID: l.ID, From: LinkActive, To: LinkSold, At: at}
}

// ScheduleCancel builds active -> pending_cancel due at at+grace
func (l *PlatformListingLink) ScheduleCancel(at time.Time, grace time.Duration) LinkTransition {
	due := at.Add(grace)
	return LinkTransition{LinkID: l.ID, From: LinkActive, To: LinkPendingCancel, At: at, CancelScheduledAt: &due}
}

// Cancel builds pending_cancel -> canceled
func (l *PlatformListingLink) Cancel(at time.Time) LinkTransition {
	return LinkTransition{LinkID: l.ID, From: LinkPendingCancel, To: LinkCanceled, At: at}
}

// Apply mirrors a committed transition onto the in-memory link
func (l *PlatformListingLink) Apply(t LinkTransition) {
	l.Status = t.To
	l.UpdatedAt = t.At
	l.Version++
	switch t.To {
	case LinkActive:
		l.PlatformListingID = t.PlatformListingID
		l.PlatformRef = t.PlatformRef
		l.ListingURL = t.ListingURL
		l.LastError = ""
		at := t.At
		l.PostedAt = &at
	case LinkFailed:
		l.LastError = t.LastError
	case LinkPending:
		if t.IncrementRetry {
			l.RetryCount++
		}
	case LinkSold:
		at := t.At
		l.SoldAt = &at
	case LinkPendingCancel:
		l.CancelScheduledAt = t.CancelScheduledAt
		l.CancelAttempts = 0
	case LinkCanceled:
		at := t.At
		l.CanceledAt = &at
		l.LastError = ""
	}
}
