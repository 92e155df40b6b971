package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reseller/crosslist/internal/domain/listing"
	"github.com/reseller/crosslist/internal/infrastructure/persistence/models"
)

// GormLinkRepository implements listing.LinkRepository using GORM. Every
// status change is a single conditional UPDATE on (id, status).
type GormLinkRepository struct {
	db *gorm.DB
}

var _ listing.LinkRepository = (*GormLinkRepository)(nil)

// NewGormLinkRepository creates a new GormLinkRepository
func NewGormLinkRepository(db *gorm.DB) *GormLinkRepository {
	return &GormLinkRepository{db: db}
}

// Create inserts a new link. A second link for the same listing and platform
// is rejected with ErrAlreadyPublished.
func (r *GormLinkRepository) Create(ctx context.Context, link *listing.PlatformListingLink) error {
	if err := r.db.WithContext(ctx).Create(models.FromLink(link)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return listing.ErrAlreadyPublished
		}
		return err
	}
	return nil
}

// FindByID finds a link by its ID
func (r *GormLinkRepository) FindByID(ctx context.Context, id uuid.UUID) (*listing.PlatformListingLink, error) {
	var model models.PlatformLinkModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, listing.ErrLinkNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByListing returns every link of a listing ordered by platform
func (r *GormLinkRepository) FindByListing(ctx context.Context, listingID uuid.UUID) ([]listing.PlatformListingLink, error) {
	var rows []models.PlatformLinkModel
	if err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("platform ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return linksToDomain(rows), nil
}

// FindByListingAndPlatform finds the link of a listing on one platform
func (r *GormLinkRepository) FindByListingAndPlatform(ctx context.Context, listingID uuid.UUID, p listing.Platform) (*listing.PlatformListingLink, error) {
	var model models.PlatformLinkModel
	if err := r.db.WithContext(ctx).
		Where("listing_id = ? AND platform = ?", listingID, p).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, listing.ErrLinkNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindDueCancellations returns pending_cancel links due at or before now,
// oldest first, skipping links flagged for manual action
func (r *GormLinkRepository) FindDueCancellations(ctx context.Context, now time.Time, limit int) ([]listing.PlatformListingLink, error) {
	var rows []models.PlatformLinkModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND cancel_scheduled_at <= ? AND manual_action_required = ?",
			listing.LinkPendingCancel, now.UTC(), false).
		Order("cancel_scheduled_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return linksToDomain(rows), nil
}

// FindRetryable returns failed links that have been retried fewer than
// maxRetries times, least recently touched first
func (r *GormLinkRepository) FindRetryable(ctx context.Context, maxRetries, limit int) ([]listing.PlatformListingLink, error) {
	var rows []models.PlatformLinkModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND retry_count < ?", listing.LinkFailed, maxRetries).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return linksToDomain(rows), nil
}

// Transition applies t only if the stored status still equals t.From.
// ErrTransitionConflict means another writer moved the link first.
func (r *GormLinkRepository) Transition(ctx context.Context, t listing.LinkTransition) error {
	if err := t.Validate(); err != nil {
		return err
	}

	at := t.At.UTC()
	updates := map[string]interface{}{
		"status":     t.To,
		"version":    gorm.Expr("version + 1"),
		"updated_at": at,
	}
	switch t.To {
	case listing.LinkActive:
		updates["platform_listing_id"] = t.PlatformListingID
		updates["platform_ref"] = t.PlatformRef
		updates["listing_url"] = t.ListingURL
		updates["last_error"] = ""
		updates["posted_at"] = at
	case listing.LinkFailed:
		updates["last_error"] = t.LastError
	case listing.LinkPending:
		if t.IncrementRetry {
			updates["retry_count"] = gorm.Expr("retry_count + 1")
		}
	case listing.LinkSold:
		updates["sold_at"] = at
	case listing.LinkPendingCancel:
		var due *time.Time
		if t.CancelScheduledAt != nil {
			d := t.CancelScheduledAt.UTC()
			due = &d
		}
		updates["cancel_scheduled_at"] = due
		updates["cancel_attempts"] = 0
		updates["manual_action_required"] = false
	case listing.LinkCanceled:
		updates["canceled_at"] = at
		updates["last_error"] = ""
	}

	result := r.db.WithContext(ctx).
		Model(&models.PlatformLinkModel{}).
		Where("id = ? AND status = ?", t.LinkID, t.From).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missingOrConflict(ctx, t.LinkID)
	}
	return nil
}

// RecordCancelFailure counts a failed delist attempt on a pending_cancel link
func (r *GormLinkRepository) RecordCancelFailure(ctx context.Context, id uuid.UUID, reason string, manualActionRequired bool, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.PlatformLinkModel{}).
		Where("id = ? AND status = ?", id, listing.LinkPendingCancel).
		Updates(map[string]interface{}{
			"cancel_attempts":        gorm.Expr("cancel_attempts + 1"),
			"last_error":             reason,
			"manual_action_required": manualActionRequired,
			"version":                gorm.Expr("version + 1"),
			"updated_at":             at.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missingOrConflict(ctx, id)
	}
	return nil
}

func (r *GormLinkRepository) missingOrConflict(ctx context.Context, id uuid.UUID) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.PlatformLinkModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return listing.ErrLinkNotFound
	}
	return listing.ErrTransitionConflict
}

func linksToDomain(rows []models.PlatformLinkModel) []listing.PlatformListingLink {
	out := make([]listing.PlatformListingLink, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}
