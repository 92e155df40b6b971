package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/reseller/crosslist/internal/domain/listing"
)

const (
	mercariCreateProduct = `mutation CreateProduct($input: CreateProductInput!) {
  createProduct(input: $input) { product { id } }
}`
	mercariUpdateProduct = `mutation UpdateProduct($input: UpdateProductInput!) {
  updateProduct(input: $input) { product { id status stockQuantity } }
}`

	mercariStatusOpened = "STATUS_OPENED"
	mercariStatusClosed = "STATUS_CLOSED"
)

var errMercariNotFound = errors.New("mercari: product not found")

type mercariRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type mercariGraphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type mercariResponse struct {
	Data   json.RawMessage       `json:"data"`
	Errors []mercariGraphQLError `json:"errors"`
}

type mercariProduct struct {
	ID string `json:"id"`
}

type mercariProductInput struct {
	ShopID        string   `json:"shopId"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Price         int64    `json:"price"`
	StockQuantity int      `json:"stockQuantity"`
	Condition     string   `json:"condition"`
	ImageURLs     []string `json:"imageUrls"`
	Brand         string   `json:"brandName,omitempty"`
	CategoryID    string   `json:"categoryId,omitempty"`
	Status        string   `json:"status"`
}

type mercariUpdateInput struct {
	ID            string `json:"id"`
	Status        string `json:"status,omitempty"`
	StockQuantity *int   `json:"stockQuantity,omitempty"`
}

func mercariMessage(body []byte) (string, string) {
	var resp mercariResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Errors) == 0 {
		return "", ""
	}
	return resp.Errors[0].Extensions.Code, resp.Errors[0].Message
}

// MercariAdapter publishes through the Mercari Shops GraphQL API using a
// shop API key.
type MercariAdapter struct {
	baseAdapter
	config  *MercariConfig
	secrets listing.SecretStore
	api     apiClient
	client  *resty.Client
}

// MercariOption configures a MercariAdapter
type MercariOption func(*MercariAdapter)

// WithMercariHTTPClient replaces the underlying HTTP client
func WithMercariHTTPClient(c *http.Client) MercariOption {
	return func(a *MercariAdapter) {
		a.client = resty.NewWithClient(c)
	}
}

// NewMercariAdapter creates a new Mercari Shops adapter
func NewMercariAdapter(config *MercariConfig, secrets listing.SecretStore, logger *zap.Logger, opts ...MercariOption) (*MercariAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if secrets == nil {
		return nil, fmt.Errorf("mercari: %w", listing.ErrSecretNotFound)
	}
	a := &MercariAdapter{
		baseAdapter: newBaseAdapter(listing.PlatformMercari, mercariTable(), logger),
		config:      config,
		secrets:     secrets,
		api: apiClient{
			platform: listing.PlatformMercari,
			limiter:  newLimiter(config.RequestsPerSecond, config.Burst),
			message:  mercariMessage,
		},
		client: resty.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.client.
		SetTimeout(time.Duration(config.TimeoutSeconds)*time.Second).
		SetHeader("Content-Type", "application/json")
	return a, nil
}

// graphql runs one operation and decodes data into out. GraphQL errors
// returned with HTTP 200 are classified like HTTP failures.
func (a *MercariAdapter) graphql(ctx context.Context, op, query string, variables map[string]any, out any) error {
	key, err := a.secrets.GetSecret(ctx, a.config.APIKeySecret)
	if err != nil {
		if errors.Is(err, listing.ErrSecretNotFound) {
			return &listing.PermanentAdapterError{
				Platform:    a.platform,
				Op:          op,
				Message:     "Mercari Shops API key is not configured",
				Remediation: "store the Mercari Shops API key in the secret store",
				Err:         listing.ErrPlatformAuthFailed,
			}
		}
		return a.transient(op, fmt.Errorf("%w: secret store: %v", listing.ErrPlatformUnavailable, err))
	}

	var resp mercariResponse
	req := a.client.R().
		SetAuthToken(key.Reveal()).
		SetBody(mercariRequest{Query: query, Variables: variables}).
		SetResult(&resp)
	if _, err := a.api.do(ctx, op, req, http.MethodPost, a.config.APIBaseURL); err != nil {
		return err
	}
	if len(resp.Errors) > 0 {
		return a.graphqlError(op, resp.Errors[0])
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return a.permanent(op, fmt.Errorf("%w: decode response: %v", listing.ErrPlatformRequestFailed, err), "")
	}
	return nil
}

func (a *MercariAdapter) graphqlError(op string, e mercariGraphQLError) error {
	switch e.Extensions.Code {
	case "UNAUTHENTICATED", "FORBIDDEN":
		return &listing.PermanentAdapterError{
			Platform:    a.platform,
			Op:          op,
			Code:        e.Extensions.Code,
			Message:     e.Message,
			Remediation: "reconnect the Mercari Shops account and update its API key",
			Err:         listing.ErrPlatformAuthFailed,
		}
	case "NOT_FOUND":
		return errMercariNotFound
	case "RATE_LIMITED":
		return a.transient(op, fmt.Errorf("%w: %s", listing.ErrPlatformRateLimited, e.Message))
	case "INTERNAL", "UNAVAILABLE":
		return a.transient(op, fmt.Errorf("%w: %s", listing.ErrPlatformUnavailable, e.Message))
	default:
		return &listing.PermanentAdapterError{
			Platform:    a.platform,
			Op:          op,
			Code:        e.Extensions.Code,
			Message:     e.Message,
			Remediation: "correct the listing according to the platform message and publish again",
			Err:         listing.ErrPlatformRejected,
		}
	}
}

// Publish implements listing.Adapter
func (a *MercariAdapter) Publish(ctx context.Context, l *listing.UnifiedListing) listing.PlatformResult {
	return a.publish(ctx, l, a.createProduct)
}

func (a *MercariAdapter) createProduct(ctx context.Context, _ *listing.UnifiedListing, p listing.Payload) (listing.PlatformResult, error) {
	price, _ := p.Get("price")
	amount, _ := price.(int64)
	input := mercariProductInput{
		ShopID:        a.config.ShopID,
		Name:          p.String("name"),
		Description:   p.String("description"),
		Price:         amount,
		StockQuantity: payloadInt(p, "stockQuantity"),
		Condition:     p.String("condition"),
		ImageURLs:     payloadList(p, "imageUrls"),
		Brand:         p.String("brandName"),
		CategoryID:    p.String("categoryId"),
		Status:        mercariStatusOpened,
	}

	var data struct {
		CreateProduct struct {
			Product mercariProduct `json:"product"`
		} `json:"createProduct"`
	}
	if err := a.graphql(ctx, "create_product", mercariCreateProduct, map[string]any{"input": input}, &data); err != nil {
		if errors.Is(err, errMercariNotFound) {
			return listing.PlatformResult{}, a.permanent("create_product", fmt.Errorf("%w: shop %s not found", listing.ErrPlatformRejected, a.config.ShopID), "check the configured Mercari shop id")
		}
		return listing.PlatformResult{}, err
	}
	id := data.CreateProduct.Product.ID
	if id == "" {
		return listing.PlatformResult{}, a.permanent("create_product", fmt.Errorf("%w: empty product id", listing.ErrPlatformRejected), "")
	}
	return listing.SucceededResult(a.platform, id, a.config.WebBaseURL+"/products/"+id), nil
}

// Cancel closes the product. A product Mercari no longer knows is treated
// as already closed.
func (a *MercariAdapter) Cancel(ctx context.Context, link *listing.PlatformListingLink) error {
	err := a.update(ctx, "close_product", mercariUpdateInput{ID: link.PlatformListingID, Status: mercariStatusClosed})
	if errors.Is(err, errMercariNotFound) {
		a.logger.Info("product already removed", zap.String("product_id", link.PlatformListingID))
		return nil
	}
	return err
}

// UpdateQuantity implements listing.Adapter
func (a *MercariAdapter) UpdateQuantity(ctx context.Context, link *listing.PlatformListingLink, quantity int) error {
	err := a.update(ctx, "update_quantity", mercariUpdateInput{ID: link.PlatformListingID, StockQuantity: &quantity})
	if errors.Is(err, errMercariNotFound) {
		return a.permanent("update_quantity", fmt.Errorf("%w: product %s not found", listing.ErrPlatformRejected, link.PlatformListingID), "")
	}
	return err
}

func (a *MercariAdapter) update(ctx context.Context, op string, input mercariUpdateInput) error {
	if input.ID == "" {
		return a.permanent(op, fmt.Errorf("%w: link has no product id", listing.ErrPlatformRejected), "update the product in the Mercari Shops dashboard")
	}
	return a.graphql(ctx, op, mercariUpdateProduct, map[string]any{"input": input}, nil)
}

var _ listing.Adapter = (*MercariAdapter)(nil)
