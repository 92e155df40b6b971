package listing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sale records one sale signal that was accepted for a listing
type Sale struct {
	ID        uuid.UUID
	ListingID uuid.UUID
	Platform  Platform
	Price     decimal.Decimal
	Quantity  int
	Fees      decimal.Decimal
	Cost      decimal.Decimal
	NetProfit decimal.Decimal
	// Remaining is the listing quantity left after this sale
	Remaining int
	SoldAt    time.Time
}

// NewSale computes net profit as price - fees - unit cost * quantity
func NewSale(l *UnifiedListing, p Platform, price, fees decimal.Decimal, qty, remaining int, at time.Time) *Sale {
	cost := decimal.Zero
	if l.Cost != nil {
		cost = l.Cost.Mul(decimal.NewFromInt(int64(qty)))
	}
	return &Sale{
		ID:        uuid.New(),
		ListingID: l.ID,
		Platform:  p,
		Price:     price,
		Quantity:  qty,
		Fees:      fees,
		Cost:      cost,
		NetProfit: price.Sub(fees).Sub(cost),
		Remaining: remaining,
		SoldAt:    at,
	}
}

// ---------------------------------------------------------------------------
// Notifications
// ---------------------------------------------------------------------------

// NotificationType classifies seller-facing alerts
type NotificationType string

const (
	NotificationSale          NotificationType = "sale"
	NotificationListingFailed NotificationType = "listing_failed"
	NotificationManualAction  NotificationType = "manual_action_required"
)

// Notification is a seller-facing alert
type Notification struct {
	ID        uuid.UUID
	Type      NotificationType
	ListingID uuid.UUID
	Platform  Platform
	Title     string
	Message   string
	Data      map[string]string
	IsRead    bool
	CreatedAt time.Time
}

// NewSaleNotification tells the seller where to find the item they just sold
func NewSaleNotification(l *UnifiedListing, s *Sale) *Notification {
	location := l.StorageLocation
	if location == "" {
		location = "unassigned"
	}
	return &Notification{
		ID:        uuid.New(),
		Type:      NotificationSale,
		ListingID: l.ID,
		Platform:  s.Platform,
		Title:     fmt.Sprintf("Sold on %s: %s", s.Platform.DisplayName(), l.Title),
		Message: fmt.Sprintf("Sold %d for $%s. Pick from storage location %s.",
			s.Quantity, s.Price.StringFixed(2), location),
		Data: map[string]string{
			"storage_location": location,
			"price":            s.Price.StringFixed(2),
			"net_profit":       s.NetProfit.StringFixed(2),
			"remaining":        fmt.Sprint(s.Remaining),
		},
		CreatedAt: s.SoldAt,
	}
}

// NewListingFailedNotification reports a publish failure on one platform
func NewListingFailedNotification(l *UnifiedListing, res PlatformResult, at time.Time) *Notification {
	n := &Notification{
		ID:        uuid.New(),
		Type:      NotificationListingFailed,
		ListingID: l.ID,
		Platform:  res.Platform,
		Title:     fmt.Sprintf("Listing failed on %s: %s", res.Platform.DisplayName(), l.Title),
		Message:   res.ErrorMessage(),
		Data:      map[string]string{},
		CreatedAt: at,
	}
	if res.Error != nil && res.Error.Remediation != "" {
		n.Data["remediation"] = res.Error.Remediation
	}
	return n
}

// NewManualActionNotification reports a cancellation the sweep gave up on
func NewManualActionNotification(link *PlatformListingLink, reason string, at time.Time) *Notification {
	return &Notification{
		ID:        uuid.New(),
		Type:      NotificationManualAction,
		ListingID: link.ListingID,
		Platform:  link.Platform,
		Title:     fmt.Sprintf("Delist manually on %s", link.Platform.DisplayName()),
		Message:   reason,
		Data: map[string]string{
			"platform_listing_id": link.PlatformListingID,
			"link_id":             link.ID.String(),
		},
		CreatedAt: at,
	}
}
