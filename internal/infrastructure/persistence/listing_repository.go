package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reseller/crosslist/internal/domain/listing"
	"github.com/reseller/crosslist/internal/infrastructure/persistence/models"
)

// GormListingRepository implements listing.ListingRepository using GORM
type GormListingRepository struct {
	db *gorm.DB
}

var _ listing.ListingRepository = (*GormListingRepository)(nil)

// NewGormListingRepository creates a new GormListingRepository
func NewGormListingRepository(db *gorm.DB) *GormListingRepository {
	return &GormListingRepository{db: db}
}

// Create inserts a new listing
func (r *GormListingRepository) Create(ctx context.Context, l *listing.UnifiedListing) error {
	if err := r.db.WithContext(ctx).Create(models.FromListing(l)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return listing.ErrDuplicateSKU
		}
		return err
	}
	return nil
}

// FindByID finds a listing by its ID
func (r *GormListingRepository) FindByID(ctx context.Context, id uuid.UUID) (*listing.UnifiedListing, error) {
	var model models.ListingModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, listing.ErrListingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns one page of listings matching the filter and the total count
func (r *GormListingRepository) FindAll(ctx context.Context, filter listing.ListingFilter) ([]listing.UnifiedListing, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ListingModel{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(sku) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.ListingModel
	if err := query.
		Clauses(listingSort.orderBy(filter.OrderBy, filter.OrderDir)).
		Limit(filter.Limit()).
		Offset(filter.Offset()).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]listing.UnifiedListing, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// UpdateStatus moves the listing status only if it is currently from
func (r *GormListingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to listing.ListingStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.ListingModel{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missingOrConflict(ctx, id)
	}
	return nil
}

// SaveSale persists the quantity and sold fields of l using its version as
// an optimistic lock. On success l.Version is advanced.
func (r *GormListingRepository) SaveSale(ctx context.Context, l *listing.UnifiedListing) error {
	result := r.db.WithContext(ctx).
		Model(&models.ListingModel{}).
		Where("id = ? AND version = ?", l.ID, l.Version).
		Updates(map[string]interface{}{
			"quantity":      l.Quantity,
			"status":        l.Status,
			"sold_platform": l.SoldPlatform,
			"sold_at":       l.SoldAt,
			"sold_price":    l.SoldPrice,
			"version":       l.Version + 1,
			"updated_at":    l.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missingOrConflict(ctx, l.ID)
	}
	l.Version++
	return nil
}

func (r *GormListingRepository) missingOrConflict(ctx context.Context, id uuid.UUID) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ListingModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return listing.ErrListingNotFound
	}
	return listing.ErrTransitionConflict
}
