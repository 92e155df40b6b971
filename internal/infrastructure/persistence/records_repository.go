package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reseller/crosslist/internal/domain/listing"
	"github.com/reseller/crosslist/internal/infrastructure/persistence/models"
)

// ---------------------------------------------------------------------------
// Publish history
// ---------------------------------------------------------------------------

// GormHistoryRepository implements listing.HistoryRepository using GORM
type GormHistoryRepository struct {
	db *gorm.DB
}

var _ listing.HistoryRepository = (*GormHistoryRepository)(nil)

// NewGormHistoryRepository creates a new GormHistoryRepository
func NewGormHistoryRepository(db *gorm.DB) *GormHistoryRepository {
	return &GormHistoryRepository{db: db}
}

// Append inserts history entries in one batch
func (r *GormHistoryRepository) Append(ctx context.Context, entries ...listing.PublishHistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*models.PublishHistoryModel, len(entries))
	for i, e := range entries {
		rows[i] = models.FromPublishHistory(e)
	}
	return r.db.WithContext(ctx).Create(rows).Error
}

// FindByListing returns a listing's history, newest first
func (r *GormHistoryRepository) FindByListing(ctx context.Context, listingID uuid.UUID) ([]listing.PublishHistoryEntry, error) {
	var rows []models.PublishHistoryModel
	if err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]listing.PublishHistoryEntry, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// SuccessRate counts attempts and successes across all history, or for p
func (r *GormHistoryRepository) SuccessRate(ctx context.Context, p *listing.Platform) (listing.SuccessRate, error) {
	var agg struct {
		Attempts  int64
		Successes int64
	}
	query := r.db.WithContext(ctx).
		Model(&models.PublishHistoryModel{}).
		Select("COUNT(*) AS attempts, COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS successes")
	if p != nil {
		query = query.Where("platform = ?", *p)
	}
	if err := query.Scan(&agg).Error; err != nil {
		return listing.SuccessRate{}, err
	}
	return listing.SuccessRate{Platform: p, Attempts: agg.Attempts, Successes: agg.Successes}, nil
}

// ---------------------------------------------------------------------------
// Sales
// ---------------------------------------------------------------------------

// GormSaleRepository implements listing.SaleRepository using GORM
type GormSaleRepository struct {
	db *gorm.DB
}

var _ listing.SaleRepository = (*GormSaleRepository)(nil)

// NewGormSaleRepository creates a new GormSaleRepository
func NewGormSaleRepository(db *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: db}
}

// Create inserts a sale
func (r *GormSaleRepository) Create(ctx context.Context, s *listing.Sale) error {
	return r.db.WithContext(ctx).Create(models.FromSale(s)).Error
}

// FindByListing returns a listing's sales in the order they were accepted
func (r *GormSaleRepository) FindByListing(ctx context.Context, listingID uuid.UUID) ([]listing.Sale, error) {
	var rows []models.SaleModel
	if err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("sold_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]listing.Sale, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Sync log
// ---------------------------------------------------------------------------

// GormSyncLogRepository implements listing.SyncLogRepository using GORM
type GormSyncLogRepository struct {
	db *gorm.DB
}

var _ listing.SyncLogRepository = (*GormSyncLogRepository)(nil)

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

// Append inserts one sync log entry
func (r *GormSyncLogRepository) Append(ctx context.Context, entry listing.SyncLogEntry) error {
	return r.db.WithContext(ctx).Create(models.FromSyncLog(entry)).Error
}

// FindByListing returns a listing's sync log, oldest first
func (r *GormSyncLogRepository) FindByListing(ctx context.Context, listingID uuid.UUID) ([]listing.SyncLogEntry, error) {
	var rows []models.SyncLogModel
	if err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]listing.SyncLogEntry, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Notifications
// ---------------------------------------------------------------------------

// GormNotificationRepository implements listing.NotificationRepository using GORM
type GormNotificationRepository struct {
	db *gorm.DB
}

var _ listing.NotificationRepository = (*GormNotificationRepository)(nil)

// NewGormNotificationRepository creates a new GormNotificationRepository
func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// Create inserts a notification
func (r *GormNotificationRepository) Create(ctx context.Context, n *listing.Notification) error {
	return r.db.WithContext(ctx).Create(models.FromNotification(n)).Error
}

// FindUnread returns up to limit unread notifications, newest first
func (r *GormNotificationRepository) FindUnread(ctx context.Context, limit int) ([]listing.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.NotificationModel
	if err := r.db.WithContext(ctx).
		Where("is_read = ?", false).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]listing.Notification, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// MarkRead flags a notification as read
func (r *GormNotificationRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.NotificationModel{}).
		Where("id = ?", id).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return listing.ErrNotificationNotFound
	}
	return nil
}
