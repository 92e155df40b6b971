package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reseller/crosslist/internal/domain/listing"
)

func newTestMercariAdapter(t *testing.T, secrets mapSecrets, handler http.HandlerFunc) *MercariAdapter {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := NewMercariConfig("shop-1")
	cfg.APIBaseURL = server.URL + "/v1/graphql"
	cfg.RequestsPerSecond = 0

	a, err := NewMercariAdapter(cfg, secrets, nil)
	require.NoError(t, err)
	return a
}

func mercariReply(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestMercariConfig_Validate(t *testing.T) {
	cfg := &MercariConfig{}
	assert.ErrorIs(t, cfg.Validate(), ErrMercariConfigMissingShopID)

	cfg = &MercariConfig{ShopID: "shop-1", IsSandbox: true}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, MercariSandboxAPIURL, cfg.APIBaseURL)
	assert.Equal(t, "mercari_api_key", cfg.APIKeySecret)
}

func TestMercariAdapter_Publish_Success(t *testing.T) {
	var got mercariRequest
	a := newTestMercariAdapter(t, mapSecrets{"mercari_api_key": "key-1"}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		mercariReply(w, http.StatusOK, `{"data":{"createProduct":{"product":{"id":"m123"}}}}`)
	})

	res := a.Publish(context.Background(), blueShirt())

	require.True(t, res.Success, res.ErrorMessage())
	assert.Equal(t, "m123", res.ListingID)
	assert.Equal(t, "https://mercari-shops.com/products/m123", res.ListingURL)
	assert.Contains(t, got.Query, "createProduct")
	input, ok := got.Variables["input"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "shop-1", input["shopId"])
	assert.Equal(t, "Blue Shirt", input["name"])
	assert.Equal(t, float64(25), input["price"])
	assert.Equal(t, "GOOD", input["condition"])
	assert.Equal(t, mercariStatusOpened, input["status"])
}

func TestMercariAdapter_Publish_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		header     map[string]string
		wantKind   listing.ErrorKind
		retryAfter time.Duration
	}{
		{
			name:     "unauthenticated graphql error",
			status:   http.StatusOK,
			body:     `{"errors":[{"message":"invalid api key","extensions":{"code":"UNAUTHENTICATED"}}]}`,
			wantKind: listing.ErrorKindPermanent,
		},
		{
			name:     "content rejection",
			status:   http.StatusOK,
			body:     `{"errors":[{"message":"prohibited item","extensions":{"code":"BAD_USER_INPUT"}}]}`,
			wantKind: listing.ErrorKindPermanent,
		},
		{
			name:       "rate limited",
			status:     http.StatusTooManyRequests,
			body:       `{"errors":[{"message":"slow down"}]}`,
			header:     map[string]string{"Retry-After": "30"},
			wantKind:   listing.ErrorKindTransient,
			retryAfter: 30 * time.Second,
		},
		{
			name:     "server error",
			status:   http.StatusBadGateway,
			body:     `{}`,
			wantKind: listing.ErrorKindTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestMercariAdapter(t, mapSecrets{"mercari_api_key": "key-1"}, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				mercariReply(w, tt.status, tt.body)
			})

			res := a.Publish(context.Background(), blueShirt())

			assert.False(t, res.Success)
			require.NotNil(t, res.Error)
			assert.Equal(t, tt.wantKind, res.Error.Kind)
			assert.Equal(t, tt.retryAfter, res.Error.RetryAfter)
		})
	}
}

func TestMercariAdapter_Publish_MissingAPIKey(t *testing.T) {
	called := false
	a := newTestMercariAdapter(t, mapSecrets{}, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	res := a.Publish(context.Background(), blueShirt())

	assert.False(t, res.Success)
	assert.Equal(t, listing.ErrorKindPermanent, res.Error.Kind)
	assert.Contains(t, res.Error.Remediation, "API key")
	assert.False(t, called)
}

func TestMercariAdapter_CancelAndUpdate(t *testing.T) {
	var inputs []map[string]any
	a := newTestMercariAdapter(t, mapSecrets{"mercari_api_key": "key-1"}, func(w http.ResponseWriter, r *http.Request) {
		var req mercariRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		input, _ := req.Variables["input"].(map[string]any)
		inputs = append(inputs, input)
		if input["id"] == "gone" {
			mercariReply(w, http.StatusOK, `{"errors":[{"message":"not found","extensions":{"code":"NOT_FOUND"}}]}`)
			return
		}
		mercariReply(w, http.StatusOK, `{"data":{"updateProduct":{"product":{"id":"m123"}}}}`)
	})
	ctx := context.Background()

	require.NoError(t, a.Cancel(ctx, &listing.PlatformListingLink{PlatformListingID: "m123"}))
	require.NoError(t, a.UpdateQuantity(ctx, &listing.PlatformListingLink{PlatformListingID: "m123"}, 3))
	assert.NoError(t, a.Cancel(ctx, &listing.PlatformListingLink{PlatformListingID: "gone"}))

	err := a.UpdateQuantity(ctx, &listing.PlatformListingLink{PlatformListingID: "gone"}, 1)
	assert.True(t, listing.IsPermanent(err))

	require.Len(t, inputs, 4)
	assert.Equal(t, mercariStatusClosed, inputs[0]["status"])
	assert.Equal(t, float64(3), inputs[1]["stockQuantity"])
	assert.Error(t, a.Cancel(ctx, &listing.PlatformListingLink{}))
}
