package marketplace

import (
	"errors"
	"strings"
)

// EbayConfig holds configuration for the eBay Sell Inventory API integration.
// Credentials are not part of the config; they are resolved by name from the
// secret store.
type EbayConfig struct {
	// APIBaseURL is the base URL for the Sell APIs (production or sandbox)
	APIBaseURL string
	// TokenURL is the OAuth2 token endpoint
	TokenURL string
	// WebBaseURL is used to build public item URLs
	WebBaseURL string
	// IsSandbox indicates if this is the sandbox environment
	IsSandbox bool
	// MarketplaceID is the eBay marketplace, e.g. EBAY_US
	MarketplaceID string
	// Scopes requested for the access token
	Scopes []string

	// Business policies and inventory location required by offers
	FulfillmentPolicyID string
	PaymentPolicyID     string
	ReturnPolicyID      string
	MerchantLocationKey string
	// DefaultCategoryID is used when a listing carries no custom.ebay_category_id
	DefaultCategoryID string

	// Secret names looked up in the secret store
	ClientIDSecret     string
	ClientSecretSecret string
	RefreshTokenSecret string

	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
	// RequestsPerSecond throttles calls to the API; 0 disables throttling
	RequestsPerSecond float64
	Burst             int
}

const (
	// EbayProductionAPIURL is the production Sell API endpoint
	EbayProductionAPIURL = "https://api.ebay.com"
	// EbaySandboxAPIURL is the sandbox Sell API endpoint
	EbaySandboxAPIURL = "https://api.sandbox.ebay.com"
	// EbayProductionTokenURL is the production OAuth2 token endpoint
	EbayProductionTokenURL = "https://api.ebay.com/identity/v1/oauth2/token"
	// EbaySandboxTokenURL is the sandbox OAuth2 token endpoint
	EbaySandboxTokenURL = "https://api.sandbox.ebay.com/identity/v1/oauth2/token"

	ebayProductionWebURL = "https://www.ebay.com"
	ebaySandboxWebURL    = "https://sandbox.ebay.com"

	ebayInventoryScope = "https://api.ebay.com/oauth/api_scope/sell.inventory"
)

// Errors for eBay configuration
var (
	ErrEbayConfigMissingMarketplace = errors.New("ebay: marketplace id is required")
	ErrEbayConfigMissingLocation    = errors.New("ebay: merchant location key is required")
)

// NewEbayConfig creates a production eBay configuration with defaults
func NewEbayConfig() *EbayConfig {
	return &EbayConfig{
		APIBaseURL:         EbayProductionAPIURL,
		TokenURL:           EbayProductionTokenURL,
		WebBaseURL:         ebayProductionWebURL,
		MarketplaceID:      "EBAY_US",
		Scopes:             []string{ebayInventoryScope},
		ClientIDSecret:     "ebay_client_id",
		ClientSecretSecret: "ebay_client_secret",
		RefreshTokenSecret: "ebay_refresh_token",
		TimeoutSeconds:     30,
		RequestsPerSecond:  5,
		Burst:              5,
	}
}

// NewSandboxEbayConfig creates an eBay configuration for the sandbox environment
func NewSandboxEbayConfig() *EbayConfig {
	cfg := NewEbayConfig()
	cfg.APIBaseURL = EbaySandboxAPIURL
	cfg.TokenURL = EbaySandboxTokenURL
	cfg.WebBaseURL = ebaySandboxWebURL
	cfg.IsSandbox = true
	return cfg
}

// Validate validates the configuration and fills defaults
func (c *EbayConfig) Validate() error {
	if c.MarketplaceID == "" {
		return ErrEbayConfigMissingMarketplace
	}
	if c.MerchantLocationKey == "" {
		return ErrEbayConfigMissingLocation
	}
	if c.APIBaseURL == "" {
		if c.IsSandbox {
			c.APIBaseURL = EbaySandboxAPIURL
		} else {
			c.APIBaseURL = EbayProductionAPIURL
		}
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	if c.TokenURL == "" {
		if c.IsSandbox {
			c.TokenURL = EbaySandboxTokenURL
		} else {
			c.TokenURL = EbayProductionTokenURL
		}
	}
	if c.WebBaseURL == "" {
		if c.IsSandbox {
			c.WebBaseURL = ebaySandboxWebURL
		} else {
			c.WebBaseURL = ebayProductionWebURL
		}
	}
	if len(c.Scopes) == 0 {
		c.Scopes = []string{ebayInventoryScope}
	}
	if c.ClientIDSecret == "" {
		c.ClientIDSecret = "ebay_client_id"
	}
	if c.ClientSecretSecret == "" {
		c.ClientSecretSecret = "ebay_client_secret"
	}
	if c.RefreshTokenSecret == "" {
		c.RefreshTokenSecret = "ebay_refresh_token"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
