package listing

import (
	"time"

	"github.com/google/uuid"
)

// PublishHistoryEntry is an append-only audit record of one platform's
// publish outcome. It carries no credentials or payloads.
type PublishHistoryEntry struct {
	ID           uuid.UUID
	ListingID    uuid.UUID
	ListingTitle string
	Platform     Platform
	Kind         ComplianceKind
	Success      bool
	ListingRef   string
	ErrorKind    ErrorKind
	Error        string
	Duration     time.Duration
	CreatedAt    time.Time
}

// NewPublishHistoryEntry records result for the given listing snapshot
func NewPublishHistoryEntry(l *UnifiedListing, res PlatformResult, at time.Time) PublishHistoryEntry {
	e := PublishHistoryEntry{
		ID:           uuid.New(),
		ListingID:    l.ID,
		ListingTitle: l.Title,
		Platform:     res.Platform,
		Kind:         res.Kind,
		Success:      res.Success,
		ListingRef:   res.ListingID,
		Duration:     res.Duration,
		CreatedAt:    at,
	}
	if res.Error != nil {
		e.ErrorKind = res.Error.Kind
		e.Error = res.Error.Message
	}
	return e
}

// SuccessRate summarizes publish history, globally or for one platform
type SuccessRate struct {
	Platform  *Platform `json:"platform,omitempty"`
	Attempts  int64     `json:"attempts"`
	Successes int64     `json:"successes"`
}

// Ratio returns successes/attempts in [0,1], or 0 with no attempts
func (r SuccessRate) Ratio() float64 {
	if r.Attempts == 0 {
		return 0
	}
	return float64(r.Successes) / float64(r.Attempts)
}

// Percent returns the ratio as a percentage
func (r SuccessRate) Percent() float64 {
	return r.Ratio() * 100
}

// ---------------------------------------------------------------------------
// Sync log
// ---------------------------------------------------------------------------

// SyncAction names an operation recorded in the sync log
type SyncAction string

const (
	SyncActionCreate         SyncAction = "create"
	SyncActionRetry          SyncAction = "retry"
	SyncActionSold           SyncAction = "sold"
	SyncActionUpdateQuantity SyncAction = "update_quantity"
	SyncActionScheduleCancel SyncAction = "schedule_cancel"
	SyncActionCancel         SyncAction = "cancel"
)

// SyncOutcome is the result recorded for a sync action
type SyncOutcome string

const (
	SyncSuccess   SyncOutcome = "success"
	SyncFailed    SyncOutcome = "failed"
	SyncScheduled SyncOutcome = "scheduled"
)

// SyncLogEntry records one reconciliation or publish step for a listing
type SyncLogEntry struct {
	ID        uuid.UUID
	ListingID uuid.UUID
	Platform  Platform
	Action    SyncAction
	Outcome   SyncOutcome
	Details   string
	CreatedAt time.Time
}

// NewSyncLogEntry creates a sync log entry stamped at at
func NewSyncLogEntry(listingID uuid.UUID, p Platform, action SyncAction, outcome SyncOutcome, details string, at time.Time) SyncLogEntry {
	return SyncLogEntry{
		ID:        uuid.New(),
		ListingID: listingID,
		Platform:  p,
		Action:    action,
		Outcome:   outcome,
		Details:   details,
		CreatedAt: at,
	}
}
