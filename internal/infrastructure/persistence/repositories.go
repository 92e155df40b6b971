package persistence

import "gorm.io/gorm"

// Repositories bundles the GORM repositories that share one connection
type Repositories struct {
	Listings      *GormListingRepository
	Links         *GormLinkRepository
	History       *GormHistoryRepository
	Sales         *GormSaleRepository
	SyncLogs      *GormSyncLogRepository
	Notifications *GormNotificationRepository
}

// NewRepositories creates every repository over db
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Listings:      NewGormListingRepository(db),
		Links:         NewGormLinkRepository(db),
		History:       NewGormHistoryRepository(db),
		Sales:         NewGormSaleRepository(db),
		SyncLogs:      NewGormSyncLogRepository(db),
		Notifications: NewGormNotificationRepository(db),
	}
}
