package marketplace

import (
	"errors"
	"strings"
)

// MercariConfig holds configuration for the Mercari Shops GraphQL API
type MercariConfig struct {
	// APIBaseURL is the GraphQL endpoint
	APIBaseURL string
	// WebBaseURL is used to build public product URLs
	WebBaseURL string
	// IsSandbox indicates if this is the sandbox environment
	IsSandbox bool
	// ShopID is the seller's shop
	ShopID string
	// APIKeySecret is the secret store name of the API key
	APIKeySecret string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
	// RequestsPerSecond throttles calls to the API; 0 disables throttling
	RequestsPerSecond float64
	Burst             int
}

const (
	// MercariProductionAPIURL is the production GraphQL endpoint
	MercariProductionAPIURL = "https://api.mercari-shops.com/v1/graphql"
	// MercariSandboxAPIURL is the sandbox GraphQL endpoint
	MercariSandboxAPIURL = "https://api.mercari-shops-sandbox.com/v1/graphql"

	mercariWebURL = "https://mercari-shops.com"
)

// ErrMercariConfigMissingShopID is returned when no shop id is configured
var ErrMercariConfigMissingShopID = errors.New("mercari: shop id is required")

// NewMercariConfig creates a production Mercari Shops configuration
func NewMercariConfig(shopID string) *MercariConfig {
	return &MercariConfig{
		APIBaseURL:        MercariProductionAPIURL,
		WebBaseURL:        mercariWebURL,
		ShopID:            shopID,
		APIKeySecret:      "mercari_api_key",
		TimeoutSeconds:    30,
		RequestsPerSecond: 2,
		Burst:             2,
	}
}

// Validate validates the configuration and fills defaults
func (c *MercariConfig) Validate() error {
	if c.ShopID == "" {
		return ErrMercariConfigMissingShopID
	}
	if c.APIBaseURL == "" {
		if c.IsSandbox {
			c.APIBaseURL = MercariSandboxAPIURL
		} else {
			c.APIBaseURL = MercariProductionAPIURL
		}
	}
	if c.WebBaseURL == "" {
		c.WebBaseURL = mercariWebURL
	}
	c.WebBaseURL = strings.TrimRight(c.WebBaseURL, "/")
	if c.APIKeySecret == "" {
		c.APIKeySecret = "mercari_api_key"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
