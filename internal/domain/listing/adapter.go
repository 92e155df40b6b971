package listing

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Adapter port
// ---------------------------------------------------------------------------

// Adapter turns a UnifiedListing into one marketplace's format and performs
// the publish, cancel and quantity-update effects for that marketplace.
type Adapter interface {
	// Platform returns the marketplace this adapter serves
	Platform() Platform

	// Kind returns the integration mechanism (api, csv, feed, template)
	Kind() ComplianceKind

	// Validate checks the listing against the marketplace's constraints
	// without mutating it. An empty result means the listing is publishable.
	Validate(l *UnifiedListing) ValidationResult

	// ToPlatformFormat maps the listing through the marketplace's field table.
	// It is deterministic for a given listing and table.
	ToPlatformFormat(l *UnifiedListing) (Payload, error)

	// Publish creates the listing on the marketplace. It never returns an
	// error: failures are reported in the result.
	Publish(ctx context.Context, l *UnifiedListing) PlatformResult

	// Cancel delists the item referenced by link
	Cancel(ctx context.Context, link *PlatformListingLink) error

	// UpdateQuantity pushes a new available quantity for link
	UpdateQuantity(ctx context.Context, link *PlatformListingLink, quantity int) error
}

// AdapterRegistry resolves configured adapters by platform
type AdapterRegistry interface {
	// Adapter returns the adapter for p, or ErrPlatformNotConfigured
	Adapter(p Platform) (Adapter, error)

	// Platforms lists every configured platform in a stable order
	Platforms() []Platform
}

// ---------------------------------------------------------------------------
// ValidationResult
// ---------------------------------------------------------------------------

// ValidationResult lists field-level violations; empty means valid
type ValidationResult struct {
	Platform   Platform         `json:"platform"`
	Violations []FieldViolation `json:"violations"`
}

// Valid returns true if there are no violations
func (r ValidationResult) Valid() bool {
	return len(r.Violations) == 0
}

// Err returns the result as a *ValidationError, or nil when valid
func (r ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	return &ValidationError{Platform: r.Platform, Violations: r.Violations}
}

// ---------------------------------------------------------------------------
// Payload
// ---------------------------------------------------------------------------

// PayloadField is one mapped marketplace field
type PayloadField struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Payload is the ordered marketplace representation of a listing. Order
// follows the mapping table so CSV columns are stable.
type Payload struct {
	Platform Platform       `json:"platform"`
	Fields   []PayloadField `json:"fields"`
}

// Get returns the value of the named field
func (p Payload) Get(name string) (any, bool) {
	for _, f := range p.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// String returns the named field formatted as text, or "" when absent
func (p Payload) String(name string) string {
	v, ok := p.Get(name)
	if !ok {
		return ""
	}
	return FormatValue(v)
}

// Names returns the field names in table order
func (p Payload) Names() []string {
	names := make([]string, len(p.Fields))
	for i, f := range p.Fields {
		names[i] = f.Name
	}
	return names
}

// Map returns the fields keyed by name
func (p Payload) Map() map[string]any {
	m := make(map[string]any, len(p.Fields))
	for _, f := range p.Fields {
		m[f.Name] = f.Value
	}
	return m
}

// FormatValue renders a payload value as text for CSV, feed and template output
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case decimal.Decimal:
		return t.StringFixed(2)
	case []string:
		return strings.Join(t, ",")
	case interface{ String() string }:
		return t.String()
	default:
		return ""
	}
}

// ---------------------------------------------------------------------------
// PlatformResult
// ---------------------------------------------------------------------------

// PlatformResult is the outcome of one adapter's publish attempt.
// ListingID is the marketplace id for api adapters and the written file
// location for csv and feed adapters. It is set only when Success is true.
type PlatformResult struct {
	Platform   Platform       `json:"platform"`
	Kind       ComplianceKind `json:"compliance_kind"`
	Success    bool           `json:"success"`
	ListingID  string         `json:"listing_id,omitempty"`
	ListingURL string         `json:"listing_url,omitempty"`
	// PlatformRef is an auxiliary remote id, e.g. the eBay offer id
	PlatformRef string `json:"platform_ref,omitempty"`

	// RequiresManualAction is set by template adapters: the seller must post
	// ManualContent by hand and sale sync cannot observe the platform.
	RequiresManualAction bool   `json:"requires_manual_action,omitempty"`
	ManualContent        string `json:"manual_content,omitempty"`

	Error    *ResultError  `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// SucceededResult builds a successful result
func SucceededResult(p Platform, listingID, url string) PlatformResult {
	return PlatformResult{
		Platform:   p,
		Kind:       p.Kind(),
		Success:    true,
		ListingID:  listingID,
		ListingURL: url,
	}
}

// FailedResult builds a failed result from err
func FailedResult(p Platform, err error) PlatformResult {
	return PlatformResult{
		Platform: p,
		Kind:     p.Kind(),
		Success:  false,
		Error:    NewResultError(err),
	}
}

// ErrorMessage returns the failure message, or "" on success
func (r PlatformResult) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Message
}
