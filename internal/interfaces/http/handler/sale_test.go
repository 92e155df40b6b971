package handler

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reseller/crosslist/internal/domain/listing"
	"github.com/reseller/crosslist/internal/interfaces/http/dto"
)

func publishedBlueShirt(t *testing.T, s *testServer, qty int) string {
	t.Helper()
	body := blueShirtBody()
	body["quantity"] = qty
	w, env := s.do(t, http.MethodPost, "/api/v1/listings", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[dto.ListingResponse](t, env.Data).ID.String()

	w, _ = s.do(t, http.MethodPost, "/api/v1/listings/"+id+"/publish", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return id
}

func TestSaleHandler_MarkSold(t *testing.T) {
	s := newTestServer(t)
	id := publishedBlueShirt(t, s, 1)
	base := "/api/v1/listings/" + id

	w, env := s.do(t, http.MethodPost, base+"/sales", map[string]any{
		"platform":  "poshmark",
		"price":     "25.00",
		"fees":      "5.00",
		"signal_id": "pm-order-1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	result := decode[dto.MarkSoldResponse](t, env.Data)
	assert.True(t, result.SoldOut)
	assert.Zero(t, result.Remaining)
	assert.Equal(t, "14", result.Sale.NetProfit.String())
	require.Len(t, result.Scheduled, 1)
	assert.Equal(t, listing.PlatformCraigslist, result.Scheduled[0].Platform)
	assert.NotNil(t, result.Scheduled[0].CancelScheduledAt)

	t.Run("redelivered signal", func(t *testing.T) {
		w, env := s.do(t, http.MethodPost, base+"/sales", map[string]any{
			"platform": "poshmark", "signal_id": "pm-order-1",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, dto.ErrCodeAlreadyExists, env.Error.Code)
	})

	t.Run("second platform loses the race", func(t *testing.T) {
		w, env := s.do(t, http.MethodPost, base+"/sales", map[string]any{
			"platform": "craigslist", "signal_id": "cl-1",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, dto.ErrCodeSaleConflict, env.Error.Code)
	})

	t.Run("sales are listed", func(t *testing.T) {
		w, env := s.do(t, http.MethodGet, base+"/sales", nil)
		require.Equal(t, http.StatusOK, w.Code)
		sales := decode[[]dto.SaleResponse](t, env.Data)
		require.Len(t, sales, 1)
		assert.Equal(t, listing.PlatformPoshmark, sales[0].Platform)
	})

	t.Run("listing is sold", func(t *testing.T) {
		_, env := s.do(t, http.MethodGet, base, nil)
		got := decode[dto.ListingResponse](t, env.Data)
		assert.Equal(t, listing.ListingStatusSold, got.Status)
		assert.Equal(t, listing.PlatformPoshmark, got.SoldPlatform)
	})
}

func TestSaleHandler_MarkSold_Errors(t *testing.T) {
	s := newTestServer(t)
	id := publishedBlueShirt(t, s, 2)

	tests := []struct {
		name     string
		path     string
		body     map[string]any
		wantCode int
		wantErr  string
	}{
		{
			name:     "platform is required",
			path:     "/api/v1/listings/" + id + "/sales",
			body:     map[string]any{"price": "10"},
			wantCode: http.StatusBadRequest,
			wantErr:  dto.ErrCodeValidation,
		},
		{
			name:     "unknown platform",
			path:     "/api/v1/listings/" + id + "/sales",
			body:     map[string]any{"platform": "etsy"},
			wantCode: http.StatusBadRequest,
			wantErr:  dto.ErrCodeValidation,
		},
		{
			name:     "not published there",
			path:     "/api/v1/listings/" + id + "/sales",
			body:     map[string]any{"platform": "ebay"},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  dto.ErrCodeInvalidState,
		},
		{
			name:     "more than on hand",
			path:     "/api/v1/listings/" + id + "/sales",
			body:     map[string]any{"platform": "poshmark", "quantity": 3},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  dto.ErrCodeInsufficientQuantity,
		},
		{
			name:     "unknown listing",
			path:     "/api/v1/listings/" + uuid.NewString() + "/sales",
			body:     map[string]any{"platform": "poshmark"},
			wantCode: http.StatusNotFound,
			wantErr:  dto.ErrCodeNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := s.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantErr, env.Error.Code)
		})
	}
}

func TestSaleHandler_PartialSale(t *testing.T) {
	s := newTestServer(t)
	id := publishedBlueShirt(t, s, 3)

	w, env := s.do(t, http.MethodPost, "/api/v1/listings/"+id+"/sales", map[string]any{
		"platform": "poshmark", "quantity": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	result := decode[dto.MarkSoldResponse](t, env.Data)
	assert.False(t, result.SoldOut)
	assert.Equal(t, 2, result.Remaining)
	assert.Empty(t, result.Scheduled)
}

func TestSaleHandler_Notifications(t *testing.T) {
	s := newTestServer(t)
	id := publishedBlueShirt(t, s, 1)
	w, _ := s.do(t, http.MethodPost, "/api/v1/listings/"+id+"/sales", map[string]any{"platform": "poshmark"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := s.do(t, http.MethodGet, "/api/v1/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	notifications := decode[[]dto.NotificationResponse](t, env.Data)
	require.NotEmpty(t, notifications)

	first := notifications[0]
	w, _ = s.do(t, http.MethodPost, "/api/v1/notifications/"+first.ID.String()+"/read", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, env = s.do(t, http.MethodGet, "/api/v1/notifications", nil)
	remaining := decode[[]dto.NotificationResponse](t, env.Data)
	assert.Len(t, remaining, len(notifications)-1)

	t.Run("bad limit", func(t *testing.T) {
		w, env := s.do(t, http.MethodGet, "/api/v1/notifications?limit=zero", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidInput, env.Error.Code)
	})

	t.Run("unknown notification", func(t *testing.T) {
		w, env := s.do(t, http.MethodPost, "/api/v1/notifications/"+uuid.NewString()+"/read", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, env.Error.Code)
	})
}
