package marketplace

import (
	"encoding/json"
	"strconv"
)

// ---------------------------------------------------------------------------
// eBay Sell Inventory API request/response types
// ---------------------------------------------------------------------------

type ebayShipTo struct {
	Quantity int `json:"quantity"`
}

type ebayAvailability struct {
	ShipToLocationAvailability ebayShipTo `json:"shipToLocationAvailability"`
}

type ebayProduct struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Aspects     map[string][]string `json:"aspects,omitempty"`
	ImageURLs   []string            `json:"imageUrls"`
	Brand       string              `json:"brand,omitempty"`
	MPN         string              `json:"mpn,omitempty"`
	UPC         []string            `json:"upc,omitempty"`
}

// ebayInventoryItem is the body of PUT /sell/inventory/v1/inventory_item/{sku}
type ebayInventoryItem struct {
	Availability ebayAvailability `json:"availability"`
	Condition    string           `json:"condition"`
	Product      ebayProduct      `json:"product"`
}

type ebayAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type ebayPricingSummary struct {
	Price ebayAmount `json:"price"`
}

type ebayListingPolicies struct {
	FulfillmentPolicyID string `json:"fulfillmentPolicyId,omitempty"`
	PaymentPolicyID     string `json:"paymentPolicyId,omitempty"`
	ReturnPolicyID      string `json:"returnPolicyId,omitempty"`
}

// ebayOffer is the body of POST /sell/inventory/v1/offer
type ebayOffer struct {
	SKU                 string              `json:"sku"`
	MarketplaceID       string              `json:"marketplaceId"`
	Format              string              `json:"format"`
	AvailableQuantity   int                 `json:"availableQuantity"`
	CategoryID          string              `json:"categoryId"`
	ListingDescription  string              `json:"listingDescription,omitempty"`
	ListingPolicies     ebayListingPolicies `json:"listingPolicies"`
	PricingSummary      ebayPricingSummary  `json:"pricingSummary"`
	MerchantLocationKey string              `json:"merchantLocationKey"`
}

type ebayCreateOfferResponse struct {
	OfferID string `json:"offerId"`
}

type ebayPublishResponse struct {
	ListingID string `json:"listingId"`
}

type ebayOfferQuantity struct {
	OfferID           string `json:"offerId"`
	AvailableQuantity int    `json:"availableQuantity"`
}

type ebayPriceQuantity struct {
	SKU                        string              `json:"sku,omitempty"`
	ShipToLocationAvailability *ebayShipTo         `json:"shipToLocationAvailability,omitempty"`
	Offers                     []ebayOfferQuantity `json:"offers"`
}

// ebayBulkPriceQuantityRequest is the body of POST /bulk_update_price_quantity
type ebayBulkPriceQuantityRequest struct {
	Requests []ebayPriceQuantity `json:"requests"`
}

type ebayPriceQuantityStatus struct {
	OfferID    string      `json:"offerId"`
	StatusCode int         `json:"statusCode"`
	Errors     []ebayError `json:"errors,omitempty"`
}

type ebayBulkPriceQuantityResponse struct {
	Responses []ebayPriceQuantityStatus `json:"responses"`
}

type ebayError struct {
	ErrorID     int    `json:"errorId"`
	Message     string `json:"message"`
	LongMessage string `json:"longMessage,omitempty"`
}

type ebayErrorResponse struct {
	Errors []ebayError `json:"errors"`
}

// ebayMessage extracts the first error of an eBay error body
func ebayMessage(body []byte) (string, string) {
	var resp ebayErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Errors) == 0 {
		return "", ""
	}
	e := resp.Errors[0]
	msg := e.LongMessage
	if msg == "" {
		msg = e.Message
	}
	return strconv.Itoa(e.ErrorID), msg
}
