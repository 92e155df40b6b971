package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/reseller/crosslist/internal/domain/listing"
)

// ListingModel is the persistence model for UnifiedListing. Nested value
// objects are stored as JSON columns.
type ListingModel struct {
	VersionedModel
	SKU         string `gorm:"type:varchar(64);not null;uniqueIndex"`
	Title       string `gorm:"type:varchar(500);not null"`
	Description string `gorm:"type:text;not null"`

	Photos []listing.Photo `gorm:"type:text;serializer:json"`

	PriceAmount            decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	PriceCurrency          string           `gorm:"type:varchar(3);not null;default:'USD'"`
	PriceCompareAt         *decimal.Decimal `gorm:"type:decimal(18,2)"`
	PriceMinimumAcceptable *decimal.Decimal `gorm:"type:decimal(18,2)"`

	Condition listing.Condition     `gorm:"type:varchar(32);not null"`
	Quantity  int                   `gorm:"not null;default:1"`
	Format    listing.ListingFormat `gorm:"type:varchar(20);not null"`
	Shipping  listing.Shipping      `gorm:"type:text;serializer:json"`

	ItemSpecifics listing.ItemSpecifics `gorm:"type:text;serializer:json"`
	Category      string                `gorm:"type:varchar(200);index"`
	Subcategory   string                `gorm:"type:varchar(200)"`
	SEO           listing.SEOData       `gorm:"type:text;serializer:json"`

	StorageLocation  string           `gorm:"type:varchar(100)"`
	ReturnsAccepted  bool             `gorm:"not null;default:false"`
	ReturnPeriodDays int              `gorm:"not null;default:0"`
	Cost             *decimal.Decimal `gorm:"type:decimal(18,2)"`

	Status       listing.ListingStatus `gorm:"type:varchar(20);not null;index"`
	SoldPlatform listing.Platform      `gorm:"type:varchar(32)"`
	SoldAt       *time.Time
	SoldPrice    *decimal.Decimal `gorm:"type:decimal(18,2)"`
}

// TableName returns the table name for GORM
func (ListingModel) TableName() string {
	return "listings"
}

// ToDomain converts the model to a UnifiedListing
func (m *ListingModel) ToDomain() *listing.UnifiedListing {
	return &listing.UnifiedListing{
		ID:          m.ID,
		SKU:         m.SKU,
		Title:       m.Title,
		Description: m.Description,
		Photos:      m.Photos,
		Price: listing.Price{
			Amount:            m.PriceAmount,
			Currency:          m.PriceCurrency,
			CompareAt:         m.PriceCompareAt,
			MinimumAcceptable: m.PriceMinimumAcceptable,
		},
		Condition:        m.Condition,
		Quantity:         m.Quantity,
		Shipping:         m.Shipping,
		Format:           m.Format,
		ItemSpecifics:    m.ItemSpecifics,
		Category:         listing.Category{Primary: m.Category, Subcategory: m.Subcategory},
		SEO:              m.SEO,
		StorageLocation:  m.StorageLocation,
		ReturnsAccepted:  m.ReturnsAccepted,
		ReturnPeriodDays: m.ReturnPeriodDays,
		Cost:             m.Cost,
		Status:           m.Status,
		SoldPlatform:     m.SoldPlatform,
		SoldAt:           m.SoldAt,
		SoldPrice:        m.SoldPrice,
		Version:          m.Version,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// FromListing converts a UnifiedListing to its model
func FromListing(l *listing.UnifiedListing) *ListingModel {
	return &ListingModel{
		VersionedModel: VersionedModel{
			BaseModel: BaseModel{ID: l.ID, CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt},
			Version:   l.Version,
		},
		SKU:                    l.SKU,
		Title:                  l.Title,
		Description:            l.Description,
		Photos:                 l.Photos,
		PriceAmount:            l.Price.Amount,
		PriceCurrency:          l.Price.Currency,
		PriceCompareAt:         l.Price.CompareAt,
		PriceMinimumAcceptable: l.Price.MinimumAcceptable,
		Condition:              l.Condition,
		Quantity:               l.Quantity,
		Format:                 l.Format,
		Shipping:               l.Shipping,
		ItemSpecifics:          l.ItemSpecifics,
		Category:               l.Category.Primary,
		Subcategory:            l.Category.Subcategory,
		SEO:                    l.SEO,
		StorageLocation:        l.StorageLocation,
		ReturnsAccepted:        l.ReturnsAccepted,
		ReturnPeriodDays:       l.ReturnPeriodDays,
		Cost:                   l.Cost,
		Status:                 l.Status,
		SoldPlatform:           l.SoldPlatform,
		SoldAt:                 l.SoldAt,
		SoldPrice:              l.SoldPrice,
	}
}
