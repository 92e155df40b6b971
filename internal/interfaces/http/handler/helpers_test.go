package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reseller/crosslist/internal/application/publishing"
	"github.com/reseller/crosslist/internal/application/reconciliation"
	"github.com/reseller/crosslist/internal/infrastructure/cache"
	"github.com/reseller/crosslist/internal/infrastructure/config"
	"github.com/reseller/crosslist/internal/infrastructure/logger"
	"github.com/reseller/crosslist/internal/infrastructure/marketplace"
	"github.com/reseller/crosslist/internal/infrastructure/persistence"
	"github.com/reseller/crosslist/internal/infrastructure/storage"
	"github.com/reseller/crosslist/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// envelope mirrors dto.Response with a raw payload
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details []struct {
			Field string `json:"field"`
		} `json:"details"`
	} `json:"error"`
	Meta *struct {
		Total    int64 `json:"total"`
		Page     int   `json:"page"`
		PageSize int   `json:"page_size"`
	} `json:"meta"`
}

type testServer struct {
	engine     *gin.Engine
	db         *persistence.Database
	sink       *storage.MemorySink
	listings   *publishing.ListingService
	reconciler *reconciliation.Reconciler
}

// newTestServer wires Poshmark and Craigslist over an in-memory database
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zaptest.NewLogger(t)
	db, err := persistence.NewDatabaseWithLogger(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"},
		log, logger.ParseGormLevel("warn"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	repos := persistence.NewRepositories(db.DB)
	sink := storage.NewMemorySink()
	registry := marketplace.NewRegistryFromAdapters(
		marketplace.NewPoshmarkAdapter(sink, log),
		marketplace.NewCraigslistAdapter(log),
	)
	pub := publishing.NewPublisher(registry, repos.History,
		publishing.WithLogger(log), publishing.WithTimeout(time.Second))

	idem := cache.NewInMemoryIdempotencyStore(time.Minute)
	t.Cleanup(func() { _ = idem.Close() })
	rec := reconciliation.NewReconciler(reconciliation.Stores{
		Listings:      repos.Listings,
		Links:         repos.Links,
		Sales:         repos.Sales,
		SyncLogs:      repos.SyncLogs,
		Notifications: repos.Notifications,
	}, registry, cache.NewKeyedLocker(), reconciliation.DefaultConfig(),
		reconciliation.WithIdempotencyStore(idem), reconciliation.WithLogger(log))
	svc := publishing.NewListingService(repos.Listings, repos.Links, repos.SyncLogs, repos.Notifications, pub,
		publishing.WithActivationFollower(rec), publishing.WithServiceLogger(log))

	middleware.SetupValidator()
	engine := gin.New()
	engine.Use(middleware.RequestID())

	lh := NewListingHandler(svc)
	sh := NewSaleHandler(rec)
	api := engine.Group("/api/v1")
	api.POST("/listings", lh.Create)
	api.GET("/listings", lh.List)
	api.GET("/listings/:id", lh.Get)
	api.POST("/listings/:id/publish", lh.Publish)
	api.GET("/listings/:id/links", lh.Links)
	api.GET("/listings/:id/preview/:platform", lh.Preview)
	api.GET("/listings/:id/sync-log", lh.SyncLog)
	api.POST("/listings/:id/sales", sh.MarkSold)
	api.GET("/listings/:id/sales", sh.Sales)
	api.GET("/platforms", lh.Platforms)
	api.GET("/stats/success-rate", lh.SuccessRate)
	api.GET("/notifications", sh.Notifications)
	api.POST("/notifications/:id/read", sh.MarkNotificationRead)

	return &testServer{engine: engine, db: db, sink: sink, listings: svc, reconciler: rec}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if w.Code != http.StatusNoContent && w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func blueShirtBody() map[string]any {
	return map[string]any{
		"sku":         "BLUE-SHIRT-1",
		"title":       "Blue Shirt",
		"description": "J.Crew button-down, size M, worn twice.",
		"price":       "25.00",
		"condition":   "excellent",
		"quantity":    1,
		"photos":      []map[string]any{{"url": "https://img.example.com/front.jpg", "is_primary": true}},
		"category":    map[string]any{"primary": "Men", "subcategory": "Shirts"},
		"item_specifics": map[string]any{
			"brand": "J.Crew",
			"size":  "M",
			"color": "Blue",
		},
		"shipping":         map[string]any{"ships_from_zip": "94107"},
		"storage_location": "BIN-A3",
		"cost":             "6.00",
	}
}
