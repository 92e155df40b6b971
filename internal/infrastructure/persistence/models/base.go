package models

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel provides common persistence fields for all models
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// VersionedModel adds a version column for optimistic locking
type VersionedModel struct {
	BaseModel
	Version int `gorm:"not null;default:0"`
}

// All returns every model, in dependency order, for AutoMigrate
func All() []any {
	return []any{
		&ListingModel{},
		&PlatformLinkModel{},
		&PublishHistoryModel{},
		&SaleModel{},
		&SyncLogModel{},
		&NotificationModel{},
	}
}
