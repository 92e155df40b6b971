package listing

import "strings"

// ---------------------------------------------------------------------------
// Platform identifies a marketplace the listing can be published to
// ---------------------------------------------------------------------------

// Platform identifies a marketplace. The set is closed: adding a marketplace
// means adding a constant here and a variant in the adapter factory.
type Platform string

const (
	// PlatformEbay is eBay via the Sell Inventory REST API
	PlatformEbay Platform = "ebay"
	// PlatformMercari is Mercari Shops via its API-key GraphQL API
	PlatformMercari Platform = "mercari"
	// PlatformPoshmark is Poshmark via bulk-upload CSV
	PlatformPoshmark Platform = "poshmark"
	// PlatformBonanza is Bonanza via bulk-upload CSV
	PlatformBonanza Platform = "bonanza"
	// PlatformFacebook is the Facebook/Instagram commerce catalog feed
	PlatformFacebook Platform = "facebook"
	// PlatformGoogleShopping is the Google Merchant Center product feed
	PlatformGoogleShopping Platform = "google_shopping"
	// PlatformPinterest is the Pinterest catalog feed
	PlatformPinterest Platform = "pinterest"
	// PlatformCraigslist is a copy-paste Craigslist posting template
	PlatformCraigslist Platform = "craigslist"
	// PlatformChairish is a copy-paste Chairish consignment template
	PlatformChairish Platform = "chairish"
)

// AllPlatforms returns every supported platform in a stable order
func AllPlatforms() []Platform {
	return []Platform{
		PlatformEbay,
		PlatformMercari,
		PlatformPoshmark,
		PlatformBonanza,
		PlatformFacebook,
		PlatformGoogleShopping,
		PlatformPinterest,
		PlatformCraigslist,
		PlatformChairish,
	}
}

// ParsePlatform converts user input into a Platform, case-insensitively
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", ErrUnknownPlatform
	}
	return p, nil
}

// IsValid returns true if the platform is one of the supported platforms
func (p Platform) IsValid() bool {
	switch p {
	case PlatformEbay, PlatformMercari,
		PlatformPoshmark, PlatformBonanza,
		PlatformFacebook, PlatformGoogleShopping, PlatformPinterest,
		PlatformCraigslist, PlatformChairish:
		return true
	default:
		return false
	}
}

// String returns the string representation of Platform
func (p Platform) String() string {
	return string(p)
}

// DisplayName returns a human-readable name for the platform
func (p Platform) DisplayName() string {
	switch p {
	case PlatformEbay:
		return "eBay"
	case PlatformMercari:
		return "Mercari Shops"
	case PlatformPoshmark:
		return "Poshmark"
	case PlatformBonanza:
		return "Bonanza"
	case PlatformFacebook:
		return "Facebook Shops"
	case PlatformGoogleShopping:
		return "Google Shopping"
	case PlatformPinterest:
		return "Pinterest"
	case PlatformCraigslist:
		return "Craigslist"
	case PlatformChairish:
		return "Chairish"
	default:
		return string(p)
	}
}

// Kind returns the integration mechanism used for the platform
func (p Platform) Kind() ComplianceKind {
	switch p {
	case PlatformEbay, PlatformMercari:
		return KindAPI
	case PlatformPoshmark, PlatformBonanza:
		return KindCSV
	case PlatformFacebook, PlatformGoogleShopping, PlatformPinterest:
		return KindFeed
	case PlatformCraigslist, PlatformChairish:
		return KindTemplate
	default:
		return ""
	}
}

// ---------------------------------------------------------------------------
// ComplianceKind describes how an adapter talks to its marketplace
// ---------------------------------------------------------------------------

// ComplianceKind is informational metadata about an adapter's mechanism.
type ComplianceKind string

const (
	// KindAPI adapters perform authenticated network calls
	KindAPI ComplianceKind = "api"
	// KindCSV adapters write bulk-upload CSV files
	KindCSV ComplianceKind = "csv"
	// KindFeed adapters write catalog feed files
	KindFeed ComplianceKind = "feed"
	// KindTemplate adapters render text for manual copy-paste
	KindTemplate ComplianceKind = "template"
)

// String returns the string representation of ComplianceKind
func (k ComplianceKind) String() string {
	return string(k)
}

// HasRemoteState reports whether the marketplace holds state this system can observe
func (k ComplianceKind) HasRemoteState() bool {
	return k != KindTemplate
}
