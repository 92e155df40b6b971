package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/reseller/crosslist/internal/application/publishing"
	"github.com/reseller/crosslist/internal/application/reconciliation"
	"github.com/reseller/crosslist/internal/domain/listing"
)

// ---------------------------------------------------------------------------
// Requests
// ---------------------------------------------------------------------------

// CreateListingRequest is the body of POST /listings. Field rules beyond
// shape are enforced by the domain so every violation is reported at once.
type CreateListingRequest struct {
	SKU               string                `json:"sku" binding:"max=64"`
	Title             string                `json:"title"`
	Description       string                `json:"description"`
	Photos            []listing.Photo       `json:"photos" binding:"max=24"`
	Price             decimal.Decimal       `json:"price"`
	Currency          string                `json:"currency" binding:"omitempty,len=3"`
	CompareAtPrice    *decimal.Decimal      `json:"compare_at_price"`
	MinimumAcceptable *decimal.Decimal      `json:"minimum_acceptable"`
	Condition         string                `json:"condition" binding:"required"`
	Quantity          *int                  `json:"quantity" binding:"omitempty,min=0"`
	Format            string                `json:"format" binding:"omitempty,oneof=fixed_price auction"`
	Shipping          listing.Shipping      `json:"shipping"`
	ItemSpecifics     listing.ItemSpecifics `json:"item_specifics"`
	Category          listing.Category      `json:"category"`
	SEO               listing.SEOData       `json:"seo"`
	StorageLocation   string                `json:"storage_location" binding:"max=64"`
	ReturnsAccepted   bool                  `json:"returns_accepted"`
	ReturnPeriodDays  int                   `json:"return_period_days" binding:"min=0"`
	Cost              *decimal.Decimal      `json:"cost"`
}

// ToDomain builds a draft listing from the request
func (r *CreateListingRequest) ToDomain() *listing.UnifiedListing {
	l := listing.NewUnifiedListing(r.Title, r.Description, r.Price, listing.Condition(r.Condition))
	l.SKU = r.SKU
	l.Photos = r.Photos
	l.Price.Currency = r.Currency
	l.Price.CompareAt = r.CompareAtPrice
	l.Price.MinimumAcceptable = r.MinimumAcceptable
	// absent means one; an explicit zero is kept
	if r.Quantity != nil {
		l.Quantity = *r.Quantity
	}
	l.Format = listing.ListingFormat(r.Format)
	l.Shipping = r.Shipping
	l.ItemSpecifics = r.ItemSpecifics
	l.Category = r.Category
	l.SEO = r.SEO
	l.StorageLocation = r.StorageLocation
	l.ReturnsAccepted = r.ReturnsAccepted
	l.ReturnPeriodDays = r.ReturnPeriodDays
	l.Cost = r.Cost
	l.Normalize()
	return l
}

// PublishRequest is the body of POST /listings/:id/publish. An empty
// platform list means every configured platform.
type PublishRequest struct {
	Platforms []string `json:"platforms" binding:"max=9,dive,platform"`
}

// MarkSoldRequest is the body of POST /listings/:id/sales
type MarkSoldRequest struct {
	Platform string          `json:"platform" binding:"required,platform"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity" binding:"min=0"`
	Fees     decimal.Decimal `json:"fees"`
	// SignalID is the marketplace order id; redeliveries with the same id are dropped
	SignalID string `json:"signal_id" binding:"max=128"`
}

// ListListingsRequest holds the query parameters of GET /listings
type ListListingsRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Status   string `form:"status" binding:"omitempty,oneof=draft active failed sold"`
	Search   string `form:"search"`
	Category string `form:"category"`
	OrderBy  string `form:"order_by" binding:"omitempty,oneof=created_at updated_at sku title price_amount quantity status sold_at"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ToFilter converts the query into a repository filter
func (r *ListListingsRequest) ToFilter() listing.ListingFilter {
	return listing.ListingFilter{
		Status:   listing.ListingStatus(r.Status),
		Search:   r.Search,
		Category: r.Category,
		OrderBy:  r.OrderBy,
		OrderDir: r.OrderDir,
		Page:     r.Page,
		PageSize: r.PageSize,
	}
}

// ---------------------------------------------------------------------------
// Responses
// ---------------------------------------------------------------------------

// ListingResponse is a listing as returned by the API
type ListingResponse struct {
	ID               uuid.UUID             `json:"id"`
	SKU              string                `json:"sku"`
	Title            string                `json:"title"`
	Description      string                `json:"description"`
	Photos           []listing.Photo       `json:"photos"`
	Price            listing.Price         `json:"price"`
	Condition        listing.Condition     `json:"condition"`
	Quantity         int                   `json:"quantity"`
	Format           listing.ListingFormat `json:"format"`
	Shipping         listing.Shipping      `json:"shipping"`
	ItemSpecifics    listing.ItemSpecifics `json:"item_specifics"`
	Category         listing.Category      `json:"category"`
	SEO              listing.SEOData       `json:"seo"`
	StorageLocation  string                `json:"storage_location,omitempty"`
	ReturnsAccepted  bool                  `json:"returns_accepted"`
	ReturnPeriodDays int                   `json:"return_period_days"`
	Cost             *decimal.Decimal      `json:"cost,omitempty"`
	Status           listing.ListingStatus `json:"status"`
	SoldPlatform     listing.Platform      `json:"sold_platform,omitempty"`
	SoldAt           *time.Time            `json:"sold_at,omitempty"`
	SoldPrice        *decimal.Decimal      `json:"sold_price,omitempty"`
	Version          int                   `json:"version"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// NewListingResponse converts a domain listing
func NewListingResponse(l *listing.UnifiedListing) ListingResponse {
	return ListingResponse{
		ID:               l.ID,
		SKU:              l.SKU,
		Title:            l.Title,
		Description:      l.Description,
		Photos:           l.Photos,
		Price:            l.Price,
		Condition:        l.Condition,
		Quantity:         l.Quantity,
		Format:           l.Format,
		Shipping:         l.Shipping,
		ItemSpecifics:    l.ItemSpecifics,
		Category:         l.Category,
		SEO:              l.SEO,
		StorageLocation:  l.StorageLocation,
		ReturnsAccepted:  l.ReturnsAccepted,
		ReturnPeriodDays: l.ReturnPeriodDays,
		Cost:             l.Cost,
		Status:           l.Status,
		SoldPlatform:     l.SoldPlatform,
		SoldAt:           l.SoldAt,
		SoldPrice:        l.SoldPrice,
		Version:          l.Version,
		CreatedAt:        l.CreatedAt,
		UpdatedAt:        l.UpdatedAt,
	}
}

// LinkResponse is one platform realization of a listing
type LinkResponse struct {
	ID                   uuid.UUID              `json:"id"`
	Platform             listing.Platform       `json:"platform"`
	Kind                 listing.ComplianceKind `json:"compliance_kind"`
	Status               listing.LinkStatus     `json:"status"`
	PlatformListingID    string                 `json:"platform_listing_id,omitempty"`
	ListingURL           string                 `json:"listing_url,omitempty"`
	CancelScheduledAt    *time.Time             `json:"cancel_scheduled_at,omitempty"`
	CancelAttempts       int                    `json:"cancel_attempts"`
	ManualActionRequired bool                   `json:"manual_action_required"`
	RetryCount           int                    `json:"retry_count"`
	LastError            string                 `json:"last_error,omitempty"`
	PostedAt             *time.Time             `json:"posted_at,omitempty"`
	SoldAt               *time.Time             `json:"sold_at,omitempty"`
	CanceledAt           *time.Time             `json:"canceled_at,omitempty"`
	UpdatedAt            time.Time              `json:"updated_at"`
}

// NewLinkResponses converts domain links. PlatformRef stays internal.
func NewLinkResponses(links []listing.PlatformListingLink) []LinkResponse {
	out := make([]LinkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, LinkResponse{
			ID:                   l.ID,
			Platform:             l.Platform,
			Kind:                 l.Kind,
			Status:               l.Status,
			PlatformListingID:    l.PlatformListingID,
			ListingURL:           l.ListingURL,
			CancelScheduledAt:    l.CancelScheduledAt,
			CancelAttempts:       l.CancelAttempts,
			ManualActionRequired: l.ManualActionRequired,
			RetryCount:           l.RetryCount,
			LastError:            l.LastError,
			PostedAt:             l.PostedAt,
			SoldAt:               l.SoldAt,
			CanceledAt:           l.CanceledAt,
			UpdatedAt:            l.UpdatedAt,
		})
	}
	return out
}

// PublishResponse reports a fan-out
type PublishResponse struct {
	ListingID uuid.UUID                                   `json:"listing_id"`
	Succeeded int                                         `json:"succeeded"`
	Results   map[listing.Platform]listing.PlatformResult `json:"results"`
	Refused   map[listing.Platform]string                 `json:"refused,omitempty"`
}

// NewPublishResponse converts a publish outcome
func NewPublishResponse(o *publishing.PublishOutcome) PublishResponse {
	resp := PublishResponse{
		ListingID: o.ListingID,
		Succeeded: o.Succeeded(),
		Results:   o.Results,
	}
	if len(o.Refused) > 0 {
		resp.Refused = make(map[listing.Platform]string, len(o.Refused))
		for p, err := range o.Refused {
			resp.Refused[p] = err.Error()
		}
	}
	return resp
}

// SaleResponse is one recorded sale
type SaleResponse struct {
	ID        uuid.UUID        `json:"id"`
	ListingID uuid.UUID        `json:"listing_id"`
	Platform  listing.Platform `json:"platform"`
	Price     decimal.Decimal  `json:"price"`
	Quantity  int              `json:"quantity"`
	Fees      decimal.Decimal  `json:"fees"`
	Cost      decimal.Decimal  `json:"cost"`
	NetProfit decimal.Decimal  `json:"net_profit"`
	Remaining int              `json:"remaining"`
	SoldAt    time.Time        `json:"sold_at"`
}

// NewSaleResponse converts a domain sale
func NewSaleResponse(s *listing.Sale) SaleResponse {
	return SaleResponse{
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

// MarkSoldResponse describes what a sale changed
type MarkSoldResponse struct {
	Sale      SaleResponse   `json:"sale"`
	Remaining int            `json:"remaining"`
	SoldOut   bool           `json:"sold_out"`
	Scheduled []LinkResponse `json:"scheduled_cancellations"`
	// QuantityUpdates maps each other live platform to "ok" or its push error
	QuantityUpdates map[listing.Platform]string `json:"quantity_updates,omitempty"`
}

// NewMarkSoldResponse converts a reconciliation result
func NewMarkSoldResponse(r *reconciliation.MarkSoldResult) MarkSoldResponse {
	resp := MarkSoldResponse{
		Sale:      NewSaleResponse(r.Sale),
		Remaining: r.Remaining,
		SoldOut:   r.SoldOut,
		Scheduled: NewLinkResponses(r.Scheduled),
	}
	if len(r.QuantityUpdates) > 0 {
		resp.QuantityUpdates = make(map[listing.Platform]string, len(r.QuantityUpdates))
		for p, err := range r.QuantityUpdates {
			if err != nil {
				resp.QuantityUpdates[p] = err.Error()
				continue
			}
			resp.QuantityUpdates[p] = "ok"
		}
	}
	return resp
}

// NotificationResponse is a seller-facing alert
type NotificationResponse struct {
	ID        uuid.UUID                `json:"id"`
	Type      listing.NotificationType `json:"type"`
	ListingID uuid.UUID                `json:"listing_id"`
	Platform  listing.Platform         `json:"platform,omitempty"`
	Title     string                   `json:"title"`
	Message   string                   `json:"message"`
	Data      map[string]string        `json:"data,omitempty"`
	IsRead    bool                     `json:"is_read"`
	CreatedAt time.Time                `json:"created_at"`
}

// NewNotificationResponses converts domain notifications
func NewNotificationResponses(ns []listing.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(ns))
	for _, n := range ns {
		out = append(out, NotificationResponse{
			ID:        n.ID,
			Type:      n.Type,
			ListingID: n.ListingID,
			Platform:  n.Platform,
			Title:     n.Title,
			Message:   n.Message,
			Data:      n.Data,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}

// SyncLogResponse is one sync log entry
type SyncLogResponse struct {
	ID        uuid.UUID           `json:"id"`
	Platform  listing.Platform    `json:"platform,omitempty"`
	Action    listing.SyncAction  `json:"action"`
	Outcome   listing.SyncOutcome `json:"outcome"`
	Details   string              `json:"details,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// NewSyncLogResponses converts sync log entries
func NewSyncLogResponses(entries []listing.SyncLogEntry) []SyncLogResponse {
	out := make([]SyncLogResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, SyncLogResponse{
			ID:        e.ID,
			Platform:  e.Platform,
			Action:    e.Action,
			Outcome:   e.Outcome,
			Details:   e.Details,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

// SuccessRateResponse summarizes publish history
type SuccessRateResponse struct {
	Platform  *listing.Platform `json:"platform,omitempty"`
	Attempts  int64             `json:"attempts"`
	Successes int64             `json:"successes"`
	Percent   float64           `json:"percent"`
}

// NewSuccessRateResponse converts a success rate
func NewSuccessRateResponse(r listing.SuccessRate) SuccessRateResponse {
	return SuccessRateResponse{
		Platform:  r.Platform,
		Attempts:  r.Attempts,
		Successes: r.Successes,
		Percent:   r.Percent(),
	}
}

// PreviewResponse is what a platform would receive
type PreviewResponse struct {
	Platform   listing.Platform         `json:"platform"`
	Kind       listing.ComplianceKind   `json:"compliance_kind"`
	Valid      bool                     `json:"valid"`
	Violations []listing.FieldViolation `json:"violations,omitempty"`
	Payload    *listing.Payload         `json:"payload,omitempty"`
}

// NewPreviewResponse converts a preview
func NewPreviewResponse(p *publishing.Preview) PreviewResponse {
	return PreviewResponse{
		Platform:   p.Platform,
		Kind:       p.Kind,
		Valid:      p.Validation.Valid(),
		Violations: p.Validation.Violations,
		Payload:    p.Payload,
	}
}

// PlatformResponse describes one supported marketplace
type PlatformResponse struct {
	Name        listing.Platform       `json:"name"`
	DisplayName string                 `json:"display_name"`
	Kind        listing.ComplianceKind `json:"compliance_kind"`
	Configured  bool                   `json:"configured"`
}

// NewPlatformResponses lists every supported platform, flagging the configured ones
func NewPlatformResponses(configured []listing.Platform) []PlatformResponse {
	enabled := make(map[listing.Platform]bool, len(configured))
	for _, p := range configured {
		enabled[p] = true
	}
	all := listing.AllPlatforms()
	out := make([]PlatformResponse, 0, len(all))
	for _, p := range all {
		out = append(out, PlatformResponse{
			Name:        p,
			DisplayName: p.DisplayName(),
			Kind:        p.Kind(),
			Configured:  enabled[p],
		})
	}
	return out
}
