package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/reseller/crosslist/internal/domain/listing"
)

// ---------------------------------------------------------------------------
// Publish history
// ---------------------------------------------------------------------------

// PublishHistoryModel is one append-only publish outcome
type PublishHistoryModel struct {
	ID           uuid.UUID              `gorm:"type:uuid;primary_key"`
	ListingID    uuid.UUID              `gorm:"type:uuid;not null;index"`
	ListingTitle string                 `gorm:"type:varchar(500)"`
	Platform     listing.Platform       `gorm:"type:varchar(32);not null;index"`
	Kind         listing.ComplianceKind `gorm:"type:varchar(16)"`
	Success      bool                   `gorm:"not null"`
	ListingRef   string                 `gorm:"type:varchar(500)"`
	ErrorKind    listing.ErrorKind      `gorm:"type:varchar(16)"`
	Error        string                 `gorm:"type:text"`
	DurationMs   int64                  `gorm:"not null;default:0"`
	CreatedAt    time.Time              `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (PublishHistoryModel) TableName() string {
	return "publish_history"
}

// ToDomain converts the model to a PublishHistoryEntry
func (m *PublishHistoryModel) ToDomain() listing.PublishHistoryEntry {
	return listing.PublishHistoryEntry{
		ID:           m.ID,
		ListingID:    m.ListingID,
		ListingTitle: m.ListingTitle,
		Platform:     m.Platform,
		Kind:         m.Kind,
		Success:      m.Success,
		ListingRef:   m.ListingRef,
		ErrorKind:    m.ErrorKind,
		Error:        m.Error,
		Duration:     time.Duration(m.DurationMs) * time.Millisecond,
		CreatedAt:    m.CreatedAt,
	}
}

// FromPublishHistory converts a PublishHistoryEntry to its model
func FromPublishHistory(e listing.PublishHistoryEntry) *PublishHistoryModel {
	return &PublishHistoryModel{
		ID:           e.ID,
		ListingID:    e.ListingID,
		ListingTitle: e.ListingTitle,
		Platform:     e.Platform,
		Kind:         e.Kind,
		Success:      e.Success,
		ListingRef:   e.ListingRef,
		ErrorKind:    e.ErrorKind,
		Error:        e.Error,
		DurationMs:   e.Duration.Milliseconds(),
		CreatedAt:    e.CreatedAt,
	}
}

// ---------------------------------------------------------------------------
// Sales
// ---------------------------------------------------------------------------

// SaleModel records one accepted sale
type SaleModel struct {
	ID        uuid.UUID        `gorm:"type:uuid;primary_key"`
	ListingID uuid.UUID        `gorm:"type:uuid;not null;index"`
	Platform  listing.Platform `gorm:"type:varchar(32);not null"`
	Price     decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	Quantity  int              `gorm:"not null"`
	Fees      decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	Cost      decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	NetProfit decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	Remaining int              `gorm:"not null"`
	SoldAt    time.Time        `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "sales"
}

// ToDomain converts the model to a Sale
func (m *SaleModel) ToDomain() listing.Sale {
	return listing.Sale{
		ID:        m.ID,
		ListingID: m.ListingID,
		Platform:  m.Platform,
		Price:     m.Price,
		Quantity:  m.Quantity,
		Fees:      m.Fees,
		Cost:      m.Cost,
		NetProfit: m.NetProfit,
		Remaining: m.Remaining,
		SoldAt:    m.SoldAt,
	}
}

// FromSale converts a Sale to its model
func FromSale(s *listing.Sale) *SaleModel {
	return &SaleModel{
		ID:        s.ID,
		ListingID: s.ListingID,
		Platform:  s.Platform,
		Price:     s.Price,
		Quantity:  s.Quantity,
		Fees:      s.Fees,
		Cost:      s.Cost,
		NetProfit: s.NetProfit,
		Remaining: s.Remaining,
		SoldAt:    s.SoldAt,
	}
}

// ---------------------------------------------------------------------------
// Sync log
// ---------------------------------------------------------------------------

// SyncLogModel records one publish or reconciliation step
type SyncLogModel struct {
	ID        uuid.UUID           `gorm:"type:uuid;primary_key"`
	ListingID uuid.UUID           `gorm:"type:uuid;not null;index"`
	Platform  listing.Platform    `gorm:"type:varchar(32)"`
	Action    listing.SyncAction  `gorm:"type:varchar(32);not null"`
	Outcome   listing.SyncOutcome `gorm:"type:varchar(16);not null"`
	Details   string              `gorm:"type:text"`
	CreatedAt time.Time           `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_logs"
}

// ToDomain converts the model to a SyncLogEntry
func (m *SyncLogModel) ToDomain() listing.SyncLogEntry {
	return listing.SyncLogEntry{
		ID:        m.ID,
		ListingID: m.ListingID,
		Platform:  m.Platform,
		Action:    m.Action,
		Outcome:   m.Outcome,
		Details:   m.Details,
		CreatedAt: m.CreatedAt,
	}
}

// FromSyncLog converts a SyncLogEntry to its model
func FromSyncLog(e listing.SyncLogEntry) *SyncLogModel {
	return &SyncLogModel{
		ID:        e.ID,
		ListingID: e.ListingID,
		Platform:  e.Platform,
		Action:    e.Action,
		Outcome:   e.Outcome,
		Details:   e.Details,
		CreatedAt: e.CreatedAt,
	}
}

// ---------------------------------------------------------------------------
// Notifications
// ---------------------------------------------------------------------------

// NotificationModel is a seller-facing alert
type NotificationModel struct {
	ID        uuid.UUID                `gorm:"type:uuid;primary_key"`
	Type      listing.NotificationType `gorm:"type:varchar(32);not null"`
	ListingID uuid.UUID                `gorm:"type:uuid;index"`
	Platform  listing.Platform         `gorm:"type:varchar(32)"`
	Title     string                   `gorm:"type:varchar(500);not null"`
	Message   string                   `gorm:"type:text"`
	Data      map[string]string        `gorm:"type:text;serializer:json"`
	IsRead    bool                     `gorm:"not null;default:false;index"`
	CreatedAt time.Time                `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (NotificationModel) TableName() string {
	return "notifications"
}

// ToDomain converts the model to a Notification
func (m *NotificationModel) ToDomain() listing.Notification {
	return listing.Notification{
		ID:        m.ID,
		Type:      m.Type,
		ListingID: m.ListingID,
		Platform:  m.Platform,
		Title:     m.Title,
		Message:   m.Message,
		Data:      m.Data,
		IsRead:    m.IsRead,
		CreatedAt: m.CreatedAt,
	}
}

// FromNotification converts a Notification to its model
func FromNotification(n *listing.Notification) *NotificationModel {
	return &NotificationModel{
		ID:        n.ID,
		Type:      n.Type,
		ListingID: n.ListingID,
		Platform:  n.Platform,
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}
