package marketplace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/reseller/crosslist/internal/domain/listing"
)

const ebayInventoryPath = "/sell/inventory/v1"

// EbayAdapter publishes through the eBay Sell Inventory API: an inventory
// item keyed by SKU, an offer on that item, then publication of the offer.
type EbayAdapter struct {
	baseAdapter
	config  *EbayConfig
	secrets listing.SecretStore
	api     apiClient

	// base is the transport used for both token and API calls
	base *http.Client

	mu     sync.Mutex
	client *resty.Client
}

// EbayOption configures an EbayAdapter
type EbayOption func(*EbayAdapter)

// WithEbayHTTPClient replaces the underlying HTTP client
func WithEbayHTTPClient(c *http.Client) EbayOption {
	return func(a *EbayAdapter) {
		a.base = c
	}
}

// NewEbayAdapter creates a new eBay adapter. Credentials are read from
// secrets on first use, not at construction.
func NewEbayAdapter(config *EbayConfig, secrets listing.SecretStore, logger *zap.Logger, opts ...EbayOption) (*EbayAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if secrets == nil {
		return nil, fmt.Errorf("ebay: %w", listing.ErrSecretNotFound)
	}
	a := &EbayAdapter{
		baseAdapter: newBaseAdapter(listing.PlatformEbay, ebayTable(config.DefaultCategoryID), logger),
		config:      config,
		secrets:     secrets,
		api: apiClient{
			platform: listing.PlatformEbay,
			limiter:  newLimiter(config.RequestsPerSecond, config.Burst),
			message:  ebayMessage,
		},
		base: &http.Client{Timeout: time.Duration(config.TimeoutSeconds) * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// restClient lazily builds the OAuth2-authenticated client. A refresh token
// in the secret store selects the user-token flow, otherwise the
// client-credentials grant is used.
func (a *EbayAdapter) restClient(ctx context.Context) (*resty.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil {
		return a.client, nil
	}

	clientID, err := a.secrets.GetSecret(ctx, a.config.ClientIDSecret)
	if err != nil {
		return nil, a.credentialError(err)
	}
	clientSecret, err := a.secrets.GetSecret(ctx, a.config.ClientSecretSecret)
	if err != nil {
		return nil, a.credentialError(err)
	}

	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, a.base)
	endpoint := oauth2.Endpoint{TokenURL: a.config.TokenURL, AuthStyle: oauth2.AuthStyleInHeader}

	var ts oauth2.TokenSource
	refresh, err := a.secrets.GetSecret(ctx, a.config.RefreshTokenSecret)
	switch {
	case err == nil && !refresh.IsZero():
		conf := &oauth2.Config{
			ClientID:     clientID.Reveal(),
			ClientSecret: clientSecret.Reveal(),
			Endpoint:     endpoint,
			Scopes:       a.config.Scopes,
		}
		ts = conf.TokenSource(tokenCtx, &oauth2.Token{RefreshToken: refresh.Reveal()})
	case err == nil || errors.Is(err, listing.ErrSecretNotFound):
		conf := &clientcredentials.Config{
			ClientID:     clientID.Reveal(),
			ClientSecret: clientSecret.Reveal(),
			TokenURL:     a.config.TokenURL,
			Scopes:       a.config.Scopes,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		ts = conf.TokenSource(tokenCtx)
	default:
		return nil, a.credentialError(err)
	}

	httpClient := oauth2.NewClient(tokenCtx, ts)
	httpClient.Timeout = time.Duration(a.config.TimeoutSeconds) * time.Second

	a.client = resty.NewWithClient(httpClient).
		SetBaseURL(a.config.APIBaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Content-Language", "en-US").
		SetHeader("X-EBAY-C-MARKETPLACE-ID", a.config.MarketplaceID)
	return a.client, nil
}

func (a *EbayAdapter) credentialError(err error) error {
	if errors.Is(err, listing.ErrSecretNotFound) {
		return &listing.PermanentAdapterError{
			Platform:    a.platform,
			Op:          "authenticate",
			Message:     "eBay credentials are not configured",
			Remediation: "store the eBay client id and secret in the secret store",
			Err:         listing.ErrPlatformAuthFailed,
		}
	}
	return a.transient("authenticate", fmt.Errorf("%w: secret store: %v", listing.ErrPlatformUnavailable, err))
}

// ---------------------------------------------------------------------------
// listing.Adapter
// ---------------------------------------------------------------------------

// Publish implements listing.Adapter
func (a *EbayAdapter) Publish(ctx context.Context, l *listing.UnifiedListing) listing.PlatformResult {
	return a.publish(ctx, l, a.createListing)
}

func (a *EbayAdapter) createListing(ctx context.Context, _ *listing.UnifiedListing, payload listing.Payload) (listing.PlatformResult, error) {
	client, err := a.restClient(ctx)
	if err != nil {
		return listing.PlatformResult{}, err
	}
	sku := payload.String("sku")

	itemPath := ebayInventoryPath + "/inventory_item/" + url.PathEscape(sku)
	if _, err := a.api.do(ctx, "create_inventory_item", client.R().SetBody(a.inventoryItem(payload)), http.MethodPut, itemPath); err != nil {
		return listing.PlatformResult{}, err
	}

	var offer ebayCreateOfferResponse
	req := client.R().SetBody(a.offer(payload)).SetResult(&offer)
	if _, err := a.api.do(ctx, "create_offer", req, http.MethodPost, ebayInventoryPath+"/offer"); err != nil {
		return listing.PlatformResult{}, err
	}
	if offer.OfferID == "" {
		return listing.PlatformResult{}, a.permanent("create_offer", fmt.Errorf("%w: empty offer id", listing.ErrPlatformRejected), "")
	}

	var published ebayPublishResponse
	req = client.R().SetResult(&published)
	if _, err := a.api.do(ctx, "publish_offer", req, http.MethodPost, ebayInventoryPath+"/offer/"+url.PathEscape(offer.OfferID)+"/publish"); err != nil {
		a.deleteOffer(ctx, client, offer.OfferID)
		return listing.PlatformResult{}, err
	}

	res := listing.SucceededResult(a.platform, published.ListingID, a.config.WebBaseURL+"/itm/"+published.ListingID)
	res.PlatformRef = offer.OfferID
	a.logger.Info("eBay listing published",
		zap.String("sku", sku),
		zap.String("offer_id", offer.OfferID),
		zap.String("ebay_listing_id", published.ListingID),
	)
	return res, nil
}

// deleteOffer removes an unpublished offer so a retry starts clean
func (a *EbayAdapter) deleteOffer(ctx context.Context, client *resty.Client, offerID string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, err := a.api.do(cleanupCtx, "delete_offer", client.R(), http.MethodDelete, ebayInventoryPath+"/offer/"+url.PathEscape(offerID)); err != nil {
		a.logger.Warn("failed to delete unpublished offer", zap.String("offer_id", offerID), zap.Error(err))
	}
}

// Cancel withdraws the offer behind link. An offer eBay no longer knows is
// treated as already withdrawn.
func (a *EbayAdapter) Cancel(ctx context.Context, link *listing.PlatformListingLink) error {
	if link.PlatformRef == "" {
		return a.permanent("withdraw_offer", fmt.Errorf("%w: link has no offer id", listing.ErrPlatformRejected), "end the listing in eBay Seller Hub")
	}
	client, err := a.restClient(ctx)
	if err != nil {
		return err
	}
	resp, err := a.api.do(ctx, "withdraw_offer", client.R(), http.MethodPost, ebayInventoryPath+"/offer/"+url.PathEscape(link.PlatformRef)+"/withdraw")
	if err != nil {
		if resp != nil && resp.StatusCode() == http.StatusNotFound {
			a.logger.Info("offer already withdrawn", zap.String("offer_id", link.PlatformRef))
			return nil
		}
		return err
	}
	return nil
}

// UpdateQuantity implements listing.Adapter
func (a *EbayAdapter) UpdateQuantity(ctx context.Context, link *listing.PlatformListingLink, quantity int) error {
	if link.PlatformRef == "" {
		return a.permanent("update_quantity", fmt.Errorf("%w: link has no offer id", listing.ErrPlatformRejected), "")
	}
	client, err := a.restClient(ctx)
	if err != nil {
		return err
	}
	body := ebayBulkPriceQuantityRequest{Requests: []ebayPriceQuantity{{
		Offers: []ebayOfferQuantity{{OfferID: link.PlatformRef, AvailableQuantity: quantity}},
	}}}
	var result ebayBulkPriceQuantityResponse
	req := client.R().SetBody(body).SetResult(&result)
	if _, err := a.api.do(ctx, "update_quantity", req, http.MethodPost, ebayInventoryPath+"/bulk_update_price_quantity"); err != nil {
		return err
	}
	for _, r := range result.Responses {
		if r.StatusCode >= http.StatusBadRequest {
			msg := fmt.Sprintf("HTTP %d", r.StatusCode)
			if len(r.Errors) > 0 {
				msg = r.Errors[0].Message
			}
			return &listing.PermanentAdapterError{
				Platform: a.platform,
				Op:       "update_quantity",
				Message:  msg,
				Err:      listing.ErrPlatformRejected,
			}
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Payload conversion
// ---------------------------------------------------------------------------

var ebayAspectFields = []struct{ field, aspect string }{
	{"brand", "Brand"},
	{"size", "Size"},
	{"color", "Color"},
	{"material", "Material"},
	{"style", "Style"},
}

func (a *EbayAdapter) inventoryItem(p listing.Payload) ebayInventoryItem {
	aspects := make(map[string][]string)
	for _, f := range ebayAspectFields {
		if v := p.String(f.field); v != "" {
			aspects[f.aspect] = []string{v}
		}
	}
	item := ebayInventoryItem{
		Availability: ebayAvailability{ShipToLocationAvailability: ebayShipTo{Quantity: payloadInt(p, "quantity")}},
		Condition:    p.String("condition"),
		Product: ebayProduct{
			Title:       p.String("title"),
			Description: p.String("description"),
			Aspects:     aspects,
			ImageURLs:   payloadList(p, "imageUrls"),
			Brand:       p.String("brand"),
			MPN:         p.String("mpn"),
		},
	}
	if upc := p.String("upc"); upc != "" {
		item.Product.UPC = []string{upc}
	}
	return item
}

func (a *EbayAdapter) offer(p listing.Payload) ebayOffer {
	return ebayOffer{
		SKU:                p.String("sku"),
		MarketplaceID:      a.config.MarketplaceID,
		Format:             p.String("format"),
		AvailableQuantity:  payloadInt(p, "quantity"),
		CategoryID:         p.String("categoryId"),
		ListingDescription: p.String("description"),
		ListingPolicies: ebayListingPolicies{
			FulfillmentPolicyID: a.config.FulfillmentPolicyID,
			PaymentPolicyID:     a.config.PaymentPolicyID,
			ReturnPolicyID:      a.config.ReturnPolicyID,
		},
		PricingSummary: ebayPricingSummary{
			Price: ebayAmount{Value: p.String("price"), Currency: p.String("currency")},
		},
		MerchantLocationKey: a.config.MerchantLocationKey,
	}
}

var _ listing.Adapter = (*EbayAdapter)(nil)
