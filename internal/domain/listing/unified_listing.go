package listing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Value objects
// ---------------------------------------------------------------------------

// Condition is the item condition on a fixed scale
type Condition string

const (
	ConditionNew            Condition = "new"
	ConditionNewWithTags    Condition = "new_with_tags"
	ConditionNewWithoutTags Condition = "new_without_tags"
	ConditionLikeNew        Condition = "like_new"
	ConditionExcellent      Condition = "excellent"
	ConditionGood           Condition = "good"
	ConditionFair           Condition = "fair"
	ConditionPoor           Condition = "poor"
	ConditionForParts       Condition = "for_parts"
)

// IsValid returns true if the condition is on the supported scale
func (c Condition) IsValid() bool {
	switch c {
	case ConditionNew, ConditionNewWithTags, ConditionNewWithoutTags, ConditionLikeNew,
		ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor, ConditionForParts:
		return true
	default:
		return false
	}
}

// IsNew reports whether the condition is one of the unused grades
func (c Condition) IsNew() bool {
	return c == ConditionNew || c == ConditionNewWithTags || c == ConditionNewWithoutTags
}

// ListingFormat is fixed price or auction
type ListingFormat string

const (
	FormatFixedPrice ListingFormat = "fixed_price"
	FormatAuction    ListingFormat = "auction"
)

// ShippingService is the shipping speed offered to buyers
type ShippingService string

const (
	ShippingStandard  ShippingService = "standard"
	ShippingExpedited ShippingService = "expedited"
	ShippingOvernight ShippingService = "overnight"
	ShippingEconomy   ShippingService = "economy"
	ShippingFree      ShippingService = "free"
)

// ListingStatus is the lifecycle of the unified listing itself
type ListingStatus string

const (
	ListingStatusDraft  ListingStatus = "draft"
	ListingStatusActive ListingStatus = "active"
	ListingStatusFailed ListingStatus = "failed"
	ListingStatusSold   ListingStatus = "sold"
)

// Photo is one image of the item
type Photo struct {
	URL       string `json:"url,omitempty"`
	LocalPath string `json:"local_path,omitempty"`
	Order     int    `json:"order"`
	IsPrimary bool   `json:"is_primary"`
}

// Location returns the URL when present, otherwise the local path
func (p Photo) Location() string {
	if p.URL != "" {
		return p.URL
	}
	return p.LocalPath
}

// Price is the asking price
type Price struct {
	Amount            decimal.Decimal  `json:"amount"`
	Currency          string           `json:"currency"`
	CompareAt         *decimal.Decimal `json:"compare_at,omitempty"`
	MinimumAcceptable *decimal.Decimal `json:"minimum_acceptable,omitempty"`
}

// PackageDimensions are in inches
type PackageDimensions struct {
	Length decimal.Decimal `json:"length"`
	Width  decimal.Decimal `json:"width"`
	Height decimal.Decimal `json:"height"`
}

// Shipping describes how the item ships
type Shipping struct {
	Cost         decimal.Decimal    `json:"cost"`
	Service      ShippingService    `json:"service,omitempty"`
	WeightOz     *decimal.Decimal   `json:"weight_oz,omitempty"`
	Dimensions   *PackageDimensions `json:"dimensions,omitempty"`
	ShipsFromZip string             `json:"ships_from_zip,omitempty"`
	HandlingDays int                `json:"handling_days"`
}

// Category is the marketplace-neutral category
type Category struct {
	Primary     string `json:"primary"`
	Subcategory string `json:"subcategory,omitempty"`
}

// Path returns "Primary > Subcategory", or just the primary category
func (c Category) Path() string {
	if c.Subcategory == "" {
		return c.Primary
	}
	return c.Primary + " > " + c.Subcategory
}

// ItemSpecifics holds the key attributes buyers filter on
type ItemSpecifics struct {
	Brand    string            `json:"brand,omitempty"`
	Size     string            `json:"size,omitempty"`
	Color    string            `json:"color,omitempty"`
	Material string            `json:"material,omitempty"`
	Style    string            `json:"style,omitempty"`
	Model    string            `json:"model,omitempty"`
	UPC      string            `json:"upc,omitempty"`
	MPN      string            `json:"mpn,omitempty"`
	Custom   map[string]string `json:"custom,omitempty"`
}

// SEOData holds search terms and tags
type SEOData struct {
	Keywords []string `json:"keywords,omitempty"`
	Hashtags []string `json:"hashtags,omitempty"`
}

// ---------------------------------------------------------------------------
// UnifiedListing
// ---------------------------------------------------------------------------

const (
	// MaxPhotos is the largest photo set any marketplace accepts
	MaxPhotos = 24

	defaultCurrency         = "USD"
	defaultHandlingDays     = 3
	defaultReturnPeriodDays = 30
)

// UnifiedListing is the platform-agnostic record of one item for sale.
type UnifiedListing struct {
	ID          uuid.UUID
	SKU         string
	Title       string
	Description string
	Photos      []Photo

	Price     Price
	Condition Condition
	Quantity  int
	Shipping  Shipping
	Format    ListingFormat

	ItemSpecifics ItemSpecifics
	Category      Category
	SEO           SEOData

	// StorageLocation is a shelf or bin code shown to the seller when the item sells
	StorageLocation string

	ReturnsAccepted  bool
	ReturnPeriodDays int

	// Cost is what the seller paid per unit
	Cost *decimal.Decimal

	Status       ListingStatus
	SoldPlatform Platform
	SoldAt       *time.Time
	SoldPrice    *decimal.Decimal

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUnifiedListing creates a draft listing with defaults applied
func NewUnifiedListing(title, description string, price decimal.Decimal, condition Condition) *UnifiedListing {
	now := time.Now()
	l := &UnifiedListing{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Price:       Price{Amount: price},
		Condition:   condition,
		Quantity:    1,
		Status:      ListingStatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	l.Normalize()
	return l
}

// Normalize fills defaults and puts photos in display order. The first photo
// is promoted to primary when none is marked.
func (l *UnifiedListing) Normalize() {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	l.Title = strings.TrimSpace(l.Title)
	l.Description = strings.TrimSpace(l.Description)
	if l.Price.Currency == "" {
		l.Price.Currency = defaultCurrency
	}
	l.Price.Currency = strings.ToUpper(l.Price.Currency)
	if l.Format == "" {
		l.Format = FormatFixedPrice
	}
	if l.Shipping.Service == "" {
		l.Shipping.Service = ShippingStandard
	}
	if l.Shipping.HandlingDays == 0 {
		l.Shipping.HandlingDays = defaultHandlingDays
	}
	if l.ReturnsAccepted && l.ReturnPeriodDays == 0 {
		l.ReturnPeriodDays = defaultReturnPeriodDays
	}
	if l.Status == "" {
		l.Status = ListingStatusDraft
	}
	if l.SKU == "" {
		l.SKU = "CL-" + strings.ToUpper(strings.ReplaceAll(l.ID.String(), "-", "")[:12])
	}

	sort.SliceStable(l.Photos, func(i, j int) bool {
		return l.Photos[i].Order < l.Photos[j].Order
	})
	hasPrimary := false
	for _, p := range l.Photos {
		if p.IsPrimary {
			hasPrimary = true
			break
		}
	}
	if !hasPrimary && len(l.Photos) > 0 {
		l.Photos[0].IsPrimary = true
	}
}

// Validate checks the listing's own invariants. Marketplace-specific limits
// such as title length are enforced by each adapter, not here.
func (l *UnifiedListing) Validate() error {
	var violations []FieldViolation
	add := func(field string, code ViolationCode, msg string) {
		violations = append(violations, FieldViolation{Field: field, Code: code, Message: msg})
	}

	if l.Title == "" {
		add("title", ViolationRequired, "title is required")
	}
	if l.Description == "" {
		add("description", ViolationRequired, "description is required")
	}
	if l.Price.Amount.IsNegative() {
		add("price.amount", ViolationOutOfRange, "price must not be negative")
	}
	if l.Price.CompareAt != nil && l.Price.CompareAt.IsNegative() {
		add("price.compare_at", ViolationOutOfRange, "compare-at price must not be negative")
	}
	if l.Quantity < 0 {
		add("quantity", ViolationOutOfRange, "quantity must not be negative")
	}
	if !l.Condition.IsValid() {
		add("condition", ViolationInvalidValue, fmt.Sprintf("unknown condition %q", l.Condition))
	}
	if l.Shipping.Cost.IsNegative() {
		add("shipping.cost", ViolationOutOfRange, "shipping cost must not be negative")
	}

	switch {
	case len(l.Photos) == 0:
		add("photos", ViolationRequired, "at least one photo is required")
	case len(l.Photos) > MaxPhotos:
		add("photos", ViolationOutOfRange, fmt.Sprintf("at most %d photos are allowed", MaxPhotos))
	default:
		primaries := 0
		for i, p := range l.Photos {
			if p.Location() == "" {
				add(fmt.Sprintf("photos[%d]", i), ViolationRequired, "photo needs a url or local path")
			}
			if p.IsPrimary {
				primaries++
			}
		}
		if primaries != 1 {
			add("photos", ViolationInvalidValue, "exactly one photo must be primary")
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// PrimaryPhoto returns the primary photo, or false when there are no photos
func (l *UnifiedListing) PrimaryPhoto() (Photo, bool) {
	for _, p := range l.Photos {
		if p.IsPrimary {
			return p, true
		}
	}
	if len(l.Photos) > 0 {
		return l.Photos[0], true
	}
	return Photo{}, false
}

// IsSold reports whether the listing has sold out
func (l *UnifiedListing) IsSold() bool {
	return l.Status == ListingStatusSold
}

// RecordSale decrements the quantity by qty. When the quantity reaches zero
// the listing is marked sold on the given platform. It returns the remaining
// quantity.
func (l *UnifiedListing) RecordSale(platform Platform, price decimal.Decimal, qty int, at time.Time) (int, error) {
	if l.IsSold() {
		return 0, ErrListingSold
	}
	if qty <= 0 {
		return 0, ErrInvalidSaleQuantity
	}
	if qty > l.Quantity {
		return 0, ErrInsufficientQuantity
	}

	l.Quantity -= qty
	l.UpdatedAt = at
	if l.Quantity == 0 {
		l.Status = ListingStatusSold
		l.SoldPlatform = platform
		soldAt := at
		l.SoldAt = &soldAt
		soldPrice := price
		l.SoldPrice = &soldPrice
	}
	return l.Quantity, nil
}

// Clone returns a deep copy so an adapter can never observe later edits
func (l *UnifiedListing) Clone() *UnifiedListing {
	c := *l
	if l.Photos != nil {
		c.Photos = append([]Photo(nil), l.Photos...)
	}
	c.Price.CompareAt = cloneDecimal(l.Price.CompareAt)
	c.Price.MinimumAcceptable = cloneDecimal(l.Price.MinimumAcceptable)
	c.Shipping.WeightOz = cloneDecimal(l.Shipping.WeightOz)
	if l.Shipping.Dimensions != nil {
		d := *l.Shipping.Dimensions
		c.Shipping.Dimensions = &d
	}
	if l.ItemSpecifics.Custom != nil {
		c.ItemSpecifics.Custom = make(map[string]string, len(l.ItemSpecifics.Custom))
		for k, v := range l.ItemSpecifics.Custom {
			c.ItemSpecifics.Custom[k] = v
		}
	}
	if l.SEO.Keywords != nil {
		c.SEO.Keywords = append([]string(nil), l.SEO.Keywords...)
	}
	if l.SEO.Hashtags != nil {
		c.SEO.Hashtags = append([]string(nil), l.SEO.Hashtags...)
	}
	c.Cost = cloneDecimal(l.Cost)
	c.SoldPrice = cloneDecimal(l.SoldPrice)
	if l.SoldAt != nil {
		t := *l.SoldAt
		c.SoldAt = &t
	}
	return &c
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

// ListingFilter narrows listing queries
type ListingFilter struct {
	Status   ListingStatus
	Search   string
	Category string
	OrderBy  string
	OrderDir string
	Page     int
	PageSize int
}

// Offset returns the row offset for the requested page
func (f ListingFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit()
}

// Limit returns the page size, clamped to 1..100 with a default of 20
func (f ListingFilter) Limit() int {
	switch {
	case f.PageSize <= 0:
		return 20
	case f.PageSize > 100:
		return 100
	default:
		return f.PageSize
	}
}
