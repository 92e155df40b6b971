// Package models contains GORM persistence models that map to database tables.
// Domain types in internal/domain/listing carry no GORM tags; each model here
// converts to and from its domain type with ToDomain and a From... function.
//
// Tables:
// - listings: UnifiedListing
// - platform_listing_links: PlatformListingLink, status changes are compare-and-set
// - publish_history: append-only publish outcomes
// - sales, sync_logs, notifications: reconciliation records
package models
