package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/reseller/crosslist/internal/domain/listing"
)

// PlatformLinkModel is the persistence model for PlatformListingLink. A
// listing has at most one link per platform.
type PlatformLinkModel struct {
	VersionedModel
	ListingID         uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_link_listing_platform,priority:1"`
	Platform          listing.Platform       `gorm:"type:varchar(32);not null;uniqueIndex:idx_link_listing_platform,priority:2"`
	Kind              listing.ComplianceKind `gorm:"type:varchar(16);not null"`
	PlatformListingID string                 `gorm:"type:varchar(500)"`
	PlatformRef       string                 `gorm:"type:varchar(200)"`
	ListingURL        string                 `gorm:"type:varchar(500)"`
	Status            listing.LinkStatus     `gorm:"type:varchar(20);not null;index:idx_link_status_due,priority:1"`

	CancelScheduledAt    *time.Time `gorm:"index:idx_link_status_due,priority:2"`
	CancelAttempts       int        `gorm:"not null;default:0"`
	ManualActionRequired bool       `gorm:"not null;default:false"`

	RetryCount int    `gorm:"not null;default:0"`
	LastError  string `gorm:"type:text"`

	PostedAt   *time.Time
	SoldAt     *time.Time
	CanceledAt *time.Time
}

// TableName returns the table name for GORM
func (PlatformLinkModel) TableName() string {
	return "platform_listing_links"
}

// ToDomain converts the model to a PlatformListingLink
func (m *PlatformLinkModel) ToDomain() *listing.PlatformListingLink {
	return &listing.PlatformListingLink{
		ID:                   m.ID,
		ListingID:            m.ListingID,
		Platform:             m.Platform,
		Kind:                 m.Kind,
		PlatformListingID:    m.PlatformListingID,
		PlatformRef:          m.PlatformRef,
		ListingURL:           m.ListingURL,
		Status:               m.Status,
		CancelScheduledAt:    m.CancelScheduledAt,
		CancelAttempts:       m.CancelAttempts,
		ManualActionRequired: m.ManualActionRequired,
		RetryCount:           m.RetryCount,
		LastError:            m.LastError,
		PostedAt:             m.PostedAt,
		SoldAt:               m.SoldAt,
		CanceledAt:           m.CanceledAt,
		Version:              m.Version,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

// FromLink converts a PlatformListingLink to its model
func FromLink(l *listing.PlatformListingLink) *PlatformLinkModel {
	return &PlatformLinkModel{
		VersionedModel: VersionedModel{
			BaseModel: BaseModel{ID: l.ID, CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt},
			Version:   l.Version,
		},
		ListingID:            l.ListingID,
		Platform:             l.Platform,
		Kind:                 l.Kind,
		PlatformListingID:    l.PlatformListingID,
		PlatformRef:          l.PlatformRef,
		ListingURL:           l.ListingURL,
		Status:               l.Status,
		CancelScheduledAt:    l.CancelScheduledAt,
		CancelAttempts:       l.CancelAttempts,
		ManualActionRequired: l.ManualActionRequired,
		RetryCount:           l.RetryCount,
		LastError:            l.LastError,
		PostedAt:             l.PostedAt,
		SoldAt:               l.SoldAt,
		CanceledAt:           l.CanceledAt,
	}
}
