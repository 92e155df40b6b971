package marketplace

import (
	"fmt"

	"github.com/reseller/crosslist/internal/domain/fieldmap"
	"github.com/reseller/crosslist/internal/domain/listing"
)

// ---------------------------------------------------------------------------
// Condition vocabularies
// ---------------------------------------------------------------------------

var ebayConditions = map[string]string{
	string(listing.ConditionNew):            "NEW",
	string(listing.ConditionNewWithTags):    "NEW_WITH_TAGS",
	string(listing.ConditionNewWithoutTags): "NEW_OTHER",
	string(listing.ConditionLikeNew):        "LIKE_NEW",
	string(listing.ConditionExcellent):      "USED_EXCELLENT",
	string(listing.ConditionGood):           "USED_GOOD",
	string(listing.ConditionFair):           "USED_ACCEPTABLE",
	string(listing.ConditionPoor):           "USED_ACCEPTABLE",
	string(listing.ConditionForParts):       "FOR_PARTS_OR_NOT_WORKING",
}

var mercariConditions = map[string]string{
	string(listing.ConditionNew):            "BRAND_NEW",
	string(listing.ConditionNewWithTags):    "BRAND_NEW",
	string(listing.ConditionNewWithoutTags): "LIKE_NEW",
	string(listing.ConditionLikeNew):        "LIKE_NEW",
	string(listing.ConditionExcellent):      "GOOD",
	string(listing.ConditionGood):           "GOOD",
	string(listing.ConditionFair):           "FAIR",
	string(listing.ConditionPoor):           "POOR",
	string(listing.ConditionForParts):       "POOR",
}

var poshmarkConditions = map[string]string{
	string(listing.ConditionNew):            "NWT",
	string(listing.ConditionNewWithTags):    "NWT",
	string(listing.ConditionNewWithoutTags): "NWOT",
}

// feedConditions is the new/refurbished/used vocabulary shared by catalog feeds
var feedConditions = map[string]string{
	string(listing.ConditionNew):            "new",
	string(listing.ConditionNewWithTags):    "new",
	string(listing.ConditionNewWithoutTags): "new",
}

var humanConditions = map[string]string{
	string(listing.ConditionNew):            "New",
	string(listing.ConditionNewWithTags):    "New with tags",
	string(listing.ConditionNewWithoutTags): "New without tags",
	string(listing.ConditionLikeNew):        "Like new",
	string(listing.ConditionExcellent):      "Excellent",
	string(listing.ConditionGood):           "Good",
	string(listing.ConditionFair):           "Fair",
	string(listing.ConditionPoor):           "Poor",
	string(listing.ConditionForParts):       "For parts",
}

var dollarPrice = fieldmap.Chain(fieldmap.FormatPrice, fieldmap.Prefix("$"))

// ---------------------------------------------------------------------------
// API tables
// ---------------------------------------------------------------------------

func ebayTable(defaultCategoryID string) fieldmap.Table {
	category := fieldmap.Rule{Field: "categoryId", Source: "custom.ebay_category_id", Required: true}
	if defaultCategoryID != "" {
		category.Default = defaultCategoryID
	}
	return fieldmap.Table{Platform: listing.PlatformEbay, Rules: []fieldmap.Rule{
		{Field: "sku", Source: "sku", Required: true, MaxLength: 50, NoTruncate: true},
		{Field: "title", Source: "title", Required: true, MaxLength: 80},
		{Field: "description", Source: "description", Required: true, MaxLength: 4000},
		{Field: "condition", Source: "condition", Type: fieldmap.TypeEnum, Required: true, Transform: fieldmap.EnumLabels(ebayConditions, "")},
		{Field: "format", Source: "format", Type: fieldmap.TypeEnum, Transform: fieldmap.EnumLabels(map[string]string{
			string(listing.FormatFixedPrice): "FIXED_PRICE",
			string(listing.FormatAuction):    "AUCTION",
		}, "FIXED_PRICE"), Default: "FIXED_PRICE"},
		{Field: "price", Source: "price.amount", Type: fieldmap.TypeNumber, Required: true, MinValue: fieldmap.Bound("0.99"), Transform: fieldmap.FormatPrice},
		{Field: "currency", Source: "price.currency", Default: "USD"},
		{Field: "quantity", Source: "quantity", Type: fieldmap.TypeNumber, Required: true, MinValue: fieldmap.Bound("1")},
		category,
		{Field: "imageUrls", Source: "photos", Type: fieldmap.TypeList, Required: true, Transform: fieldmap.LimitList(listing.MaxPhotos)},
		{Field: "brand", Source: "item_specifics.brand", MaxLength: 65},
		{Field: "size", Source: "item_specifics.size", MaxLength: 65},
		{Field: "color", Source: "item_specifics.color", MaxLength: 65},
		{Field: "material", Source: "item_specifics.material", MaxLength: 65},
		{Field: "style", Source: "item_specifics.style", MaxLength: 65},
		{Field: "mpn", Source: "item_specifics.mpn", MaxLength: 65},
		{Field: "upc", Source: "item_specifics.upc"},
	}}
}

func mercariTable() fieldmap.Table {
	return fieldmap.Table{Platform: listing.PlatformMercari, Rules: []fieldmap.Rule{
		{Field: "name", Source: "title", Required: true, MaxLength: 80},
		{Field: "description", Source: "description", Required: true, MaxLength: 1000},
		{Field: "price", Source: "price.amount", Type: fieldmap.TypeNumber, Required: true,
			MinValue: fieldmap.Bound("1"), MaxValue: fieldmap.Bound("2000"), Transform: fieldmap.WholeAmount},
		{Field: "stockQuantity", Source: "quantity", Type: fieldmap.TypeNumber, Required: true, MinValue: fieldmap.Bound("1")},
		{Field: "condition", Source: "condition", Type: fieldmap.TypeEnum, Required: true, Transform: fieldmap.EnumLabels(mercariConditions, "")},
		{Field: "imageUrls", Source: "photos", Type: fieldmap.TypeList, Required: true, Transform: fieldmap.LimitList(12)},
		{Field: "brandName", Source: "item_specifics.brand"},
		{Field: "categoryId", Source: "custom.mercari_category_id"},
	}}
}

// ---------------------------------------------------------------------------
// CSV tables
// ---------------------------------------------------------------------------

func poshmarkTable() fieldmap.Table {
	rules := []fieldmap.Rule{
		{Field: "SKU", Source: "sku", Required: true},
		{Field: "Title", Source: "title", Required: true, MaxLength: 80},
		{Field: "Description", Source: "description", Required: true, MaxLength: 500},
		{Field: "Category", Source: "category.primary", Required: true},
		{Field: "Brand", Source: "item_specifics.brand"},
		{Field: "Size", Source: "item_specifics.size", Default: "OS"},
		{Field: "Color", Source: "item_specifics.color"},
		{Field: "Condition", Source: "condition", Type: fieldmap.TypeEnum, Transform: fieldmap.EnumLabels(poshmarkConditions, "Used")},
		{Field: "Price", Source: "price.amount", Type: fieldmap.TypeNumber, Required: true, MinValue: fieldmap.Bound("3"), Transform: dollarPrice},
		{Field: "Compare At Price", Source: "price.compare_at", Type: fieldmap.TypeNumber, Transform: dollarPrice},
	}
	for i := 0; i < 16; i++ {
		rules = append(rules, fieldmap.Rule{
			Field:     fmt.Sprintf("Photo %d", i+1),
			Source:    "photos",
			Required:  i == 0,
			Transform: fieldmap.PhotoAt(i),
		})
	}
	return fieldmap.Table{Platform: listing.PlatformPoshmark, Rules: rules}
}

func bonanzaTable() fieldmap.Table {
	return fieldmap.Table{Platform: listing.PlatformBonanza, Rules: []fieldmap.Rule{
		{Field: "SKU", Source: "sku", Required: true},
		{Field: "Title", Source: "title", Required: true, MaxLength: 80},
		{Field: "Description", Source: "description", Required: true},
		{Field: "Price", Source: "price.amount", Type: fieldmap.TypeNumber, Required: true, Transform: fieldmap.FormatPrice},
		{Field: "Quantity", Source: "quantity", Type: fieldmap.TypeNumber, Required: true, MinValue: fieldmap.Bound("1")},
		{Field: "Category", Source: "category.path", Required: true},
		{Field: "Condition", Source: "condition", Transform: fieldmap.EnumLabels(humanConditions, "Used")},
		{Field: "Brand", Source: "item_specifics.brand"},
		{Field: "Image URLs", Source: "photos", Required: true, Transform: fieldmap.Chain(fieldmap.LimitList(12), fieldmap.JoinList("|"))},
		{Field: "Shipping Price", Source: "shipping.cost", Type: fieldmap.TypeNumber, Transform: fieldmap.FormatPrice},
	}}
}

// ---------------------------------------------------------------------------
// Feed tables
// ---------------------------------------------------------------------------

func feedRules(storefrontURL string, titleMax, descriptionMax int) []fieldmap.Rule {
	return []fieldmap.Rule{
		{Field: "id", Source: "sku", Required: true, MaxLength: 100, NoTruncate: true},
		{Field: "title", Source: "title", Required: true, MaxLength: titleMax},
		{Field: "description", Source: "description", Required: true, MaxLength: descriptionMax},
		{Field: "availability", Source: "quantity", Transform: fieldmap.Availability, Allowed: []string{"in stock", "out of stock"}},
		{Field: "condition", Source: "condition", Type: fieldmap.TypeEnum, Transform: fieldmap.EnumLabels(feedConditions, "used")},
		{Field: "price", Source: "price.amount", Type: fieldmap.TypeNumber, Required: true, Transform: fieldmap.PriceWithCurrency("USD")},
		{Field: "link", Source: "sku", Required: true, Transform: fieldmap.Prefix(storefrontURL + "/items/")},
		{Field: "image_link", Source: "photos.primary", Required: true},
		{Field: "brand", Source: "item_specifics.brand"},
		{Field: "google_product_category", Source: "custom.google_product_category", Fallbacks: []string{"category.primary"}},
	}
}

func facebookTable(storefrontURL string) fieldmap.Table {
	return fieldmap.Table{Platform: listing.PlatformFacebook, Rules: feedRules(storefrontURL, 200, 9999)}
}

func googleShoppingTable(storefrontURL string) fieldmap.Table {
	rules := append(feedRules(storefrontURL, 150, 5000),
		fieldmap.Rule{Field: "gtin", Source: "item_specifics.upc"},
		fieldmap.Rule{Field: "mpn", Source: "item_specifics.mpn"},
		fieldmap.Rule{Field: "additional_image_link", Source: "photos", Transform: fieldmap.Chain(fieldmap.LimitList(11), dropFirst, fieldmap.JoinList(","))},
	)
	return fieldmap.Table{Platform: listing.PlatformGoogleShopping, Rules: rules}
}

func pinterestTable(storefrontURL string) fieldmap.Table {
	return fieldmap.Table{Platform: listing.PlatformPinterest, Rules: feedRules(storefrontURL, 500, 10000)}
}

// dropFirst removes the primary photo from a photo list
func dropFirst(v any) (any, error) {
	list, ok := v.([]string)
	if !ok || len(list) < 2 {
		return nil, nil
	}
	return list[1:], nil
}

// ---------------------------------------------------------------------------
// Template tables
// ---------------------------------------------------------------------------

func craigslistTable() fieldmap.Table {
	return fieldmap.Table{Platform: listing.PlatformCraigslist, Rules: []fieldmap.Rule{
		{Field: "title", Source: "title", Required: true, MaxLength: 70},
		{Field: "price", Source: "price.amount", Type: fieldmap.TypeNumber, Required: true, Transform: dollarPrice},
		{Field: "description", Source: "description", Required: true},
		{Field: "location", Source: "shipping.ships_from_zip"},
		{Field: "photos", Source: "photos", Type: fieldmap.TypeList, Transform: fieldmap.LimitList(listing.MaxPhotos)},
	}}
}

func chairishTable() fieldmap.Table {
	return fieldmap.Table{Platform: listing.PlatformChairish, Rules: []fieldmap.Rule{
		{Field: "title", Source: "title", Required: true},
		{Field: "price", Source: "price.amount", Type: fieldmap.TypeNumber, Required: true, Transform: dollarPrice},
		{Field: "brand", Source: "item_specifics.brand", Default: "Unknown"},
		{Field: "condition", Source: "condition", Transform: fieldmap.EnumLabels(humanConditions, "")},
		{Field: "material", Source: "item_specifics.material"},
		{Field: "description", Source: "description", Required: true},
		{Field: "photos", Source: "photos", Type: fieldmap.TypeList},
	}}
}
