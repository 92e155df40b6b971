package fieldmap

import (
	"strings"

	"github.com/reseller/crosslist/internal/domain/listing"
)

type accessor func(l *listing.UnifiedListing) any

const customPrefix = "custom."

// accessors is the closed set of unified listing paths a rule may name.
// StorageLocation is deliberately absent: adapters never see it.
var accessors = map[string]accessor{
	"id":          func(l *listing.UnifiedListing) any { return l.ID.String() },
	"sku":         func(l *listing.UnifiedListing) any { return l.SKU },
	"title":       func(l *listing.UnifiedListing) any { return l.Title },
	"description": func(l *listing.UnifiedListing) any { return l.Description },
	"condition":   func(l *listing.UnifiedListing) any { return string(l.Condition) },
	"quantity":    func(l *listing.UnifiedListing) any { return l.Quantity },
	"format":      func(l *listing.UnifiedListing) any { return string(l.Format) },

	"price.amount":   func(l *listing.UnifiedListing) any { return l.Price.Amount },
	"price.currency": func(l *listing.UnifiedListing) any { return l.Price.Currency },
	"price.compare_at": func(l *listing.UnifiedListing) any {
		if l.Price.CompareAt == nil {
			return nil
		}
		return *l.Price.CompareAt
	},
	"price.minimum_acceptable": func(l *listing.UnifiedListing) any {
		if l.Price.MinimumAcceptable == nil {
			return nil
		}
		return *l.Price.MinimumAcceptable
	},

	"category.primary":     func(l *listing.UnifiedListing) any { return l.Category.Primary },
	"category.subcategory": func(l *listing.UnifiedListing) any { return l.Category.Subcategory },
	"category.path":        func(l *listing.UnifiedListing) any { return l.Category.Path() },

	"item_specifics.brand":    func(l *listing.UnifiedListing) any { return l.ItemSpecifics.Brand },
	"item_specifics.size":     func(l *listing.UnifiedListing) any { return l.ItemSpecifics.Size },
	"item_specifics.color":    func(l *listing.UnifiedListing) any { return l.ItemSpecifics.Color },
	"item_specifics.material": func(l *listing.UnifiedListing) any { return l.ItemSpecifics.Material },
	"item_specifics.style":    func(l *listing.UnifiedListing) any { return l.ItemSpecifics.Style },
	"item_specifics.model":    func(l *listing.UnifiedListing) any { return l.ItemSpecifics.Model },
	"item_specifics.upc":      func(l *listing.UnifiedListing) any { return l.ItemSpecifics.UPC },
	"item_specifics.mpn":      func(l *listing.UnifiedListing) any { return l.ItemSpecifics.MPN },

	"seo.keywords": func(l *listing.UnifiedListing) any { return l.SEO.Keywords },
	"seo.hashtags": func(l *listing.UnifiedListing) any { return l.SEO.Hashtags },

	"shipping.cost":           func(l *listing.UnifiedListing) any { return l.Shipping.Cost },
	"shipping.service":        func(l *listing.UnifiedListing) any { return string(l.Shipping.Service) },
	"shipping.handling_days":  func(l *listing.UnifiedListing) any { return l.Shipping.HandlingDays },
	"shipping.ships_from_zip": func(l *listing.UnifiedListing) any { return l.Shipping.ShipsFromZip },
	"shipping.weight_oz": func(l *listing.UnifiedListing) any {
		if l.Shipping.WeightOz == nil {
			return nil
		}
		return *l.Shipping.WeightOz
	},

	"photos":         photoLocations,
	"photos.primary": func(l *listing.UnifiedListing) any {
		p, _ := l.PrimaryPhoto()
		return p.Location()
	},

	"returns.accepted":    func(l *listing.UnifiedListing) any { return l.ReturnsAccepted },
	"returns.period_days": func(l *listing.UnifiedListing) any { return l.ReturnPeriodDays },
}

// photoLocations returns photo locations with the primary photo first
func photoLocations(l *listing.UnifiedListing) any {
	if len(l.Photos) == 0 {
		return nil
	}
	primary, _ := l.PrimaryPhoto()
	out := make([]string, 0, len(l.Photos))
	out = append(out, primary.Location())
	skipped := false
	for _, p := range l.Photos {
		if !skipped && p == primary {
			skipped = true
			continue
		}
		out = append(out, p.Location())
	}
	return out
}

// IsKnownSource reports whether path names a resolvable listing field
func IsKnownSource(path string) bool {
	if strings.HasPrefix(path, customPrefix) {
		return len(path) > len(customPrefix)
	}
	_, ok := accessors[path]
	return ok
}

// resolve returns the value at path, or nil for unknown or empty paths
func resolve(l *listing.UnifiedListing, path string) any {
	if strings.HasPrefix(path, customPrefix) {
		v, ok := l.ItemSpecifics.Custom[strings.TrimPrefix(path, customPrefix)]
		if !ok {
			return nil
		}
		return v
	}
	fn, ok := accessors[path]
	if !ok {
		return nil
	}
	return fn(l)
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []string:
		return len(t) == 0
	default:
		return false
	}
}
