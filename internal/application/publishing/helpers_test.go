package publishing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reseller/crosslist/internal/domain/listing"
	"github.com/reseller/crosslist/internal/infrastructure/config"
	"github.com/reseller/crosslist/internal/infrastructure/logger"
	"github.com/reseller/crosslist/internal/infrastructure/marketplace"
	"github.com/reseller/crosslist/internal/infrastructure/persistence"
)

// fakeAdapter is a scriptable api adapter. By default every publish succeeds.
type fakeAdapter struct {
	platform listing.Platform

	mu         sync.Mutex
	publishFn  func(ctx context.Context, l *listing.UnifiedListing) listing.PlatformResult
	violations []listing.FieldViolation
	calls      int
}

func newFakeAdapter(p listing.Platform) *fakeAdapter {
	return &fakeAdapter{platform: p}
}

func (f *fakeAdapter) succeed() *fakeAdapter {
	f.publishFn = nil
	return f
}

func (f *fakeAdapter) fail(err error) *fakeAdapter {
	f.publishFn = func(context.Context, *listing.UnifiedListing) listing.PlatformResult {
		return listing.FailedResult(f.platform, err)
	}
	return f
}

func (f *fakeAdapter) setPublish(fn func(ctx context.Context, l *listing.UnifiedListing) listing.PlatformResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishFn = fn
}

func (f *fakeAdapter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAdapter) Platform() listing.Platform     { return f.platform }
func (f *fakeAdapter) Kind() listing.ComplianceKind { return f.platform.Kind() }

func (f *fakeAdapter) Validate(*listing.UnifiedListing) listing.ValidationResult {
	return listing.ValidationResult{Platform: f.platform, Violations: f.violations}
}

func (f *fakeAdapter) ToPlatformFormat(l *listing.UnifiedListing) (listing.Payload, error) {
	return listing.Payload{Platform: f.platform, Fields: []listing.PayloadField{
		{Name: "title", Value: l.Title},
		{Name: "price", Value: l.Price.Amount},
	}}, nil
}

func (f *fakeAdapter) Publish(ctx context.Context, l *listing.UnifiedListing) listing.PlatformResult {
	f.mu.Lock()
	f.calls++
	fn := f.publishFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, l)
	}
	return listing.SucceededResult(f.platform, string(f.platform)+"-"+l.SKU, "https://"+string(f.platform)+".example.com/"+l.SKU)
}

func (f *fakeAdapter) Cancel(context.Context, *listing.PlatformListingLink) error { return nil }

func (f *fakeAdapter) UpdateQuantity(context.Context, *listing.PlatformListingLink, int) error {
	return nil
}

var _ listing.Adapter = (*fakeAdapter)(nil)

type recordingMetrics struct {
	mu        sync.Mutex
	attempts  map[listing.Platform]int
	successes map[listing.Platform]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{attempts: map[listing.Platform]int{}, successes: map[listing.Platform]int{}}
}

func (m *recordingMetrics) RecordPublish(_ context.Context, p listing.Platform, success bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[p]++
	if success {
		m.successes[p]++
	}
}

func newTestRepos(t *testing.T) *persistence.Repositories {
	t.Helper()
	db, err := persistence.NewDatabaseWithLogger(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"},
		zaptest.NewLogger(t), logger.ParseGormLevel("warn"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return persistence.NewRepositories(db.DB)
}

type harness struct {
	repos     *persistence.Repositories
	publisher *Publisher
	service   *ListingService
}

func newHarness(t *testing.T, adapters []listing.Adapter, opts ...ServiceOption) *harness {
	t.Helper()
	repos := newTestRepos(t)
	log := zaptest.NewLogger(t)
	pub := NewPublisher(marketplace.NewRegistryFromAdapters(adapters...), repos.History,
		WithLogger(log), WithTimeout(2*time.Second))
	opts = append([]ServiceOption{WithServiceLogger(log)}, opts...)
	svc := NewListingService(repos.Listings, repos.Links, repos.SyncLogs, repos.Notifications, pub, opts...)
	return &harness{repos: repos, publisher: pub, service: svc}
}

func newBlueShirt() *listing.UnifiedListing {
	l := listing.NewUnifiedListing("Blue Shirt", "J.Crew button-down, size M, worn twice.",
		decimal.RequireFromString("24.99"), listing.ConditionExcellent)
	l.SKU = "BLUE-SHIRT-1"
	l.Photos = []listing.Photo{
		{URL: "https://img.example.com/front.jpg", Order: 0},
		{URL: "https://img.example.com/back.jpg", Order: 1},
	}
	l.ItemSpecifics.Brand = "J.Crew"
	l.ItemSpecifics.Size = "M"
	l.ItemSpecifics.Color = "Blue"
	l.Category = listing.Category{Primary: "Men", Subcategory: "Shirts"}
	l.Shipping.ShipsFromZip = "94107"
	l.StorageLocation = "BIN-A3"
	return l
}

func (h *harness) createListing(t *testing.T) *listing.UnifiedListing {
	t.Helper()
	l, err := h.service.CreateListing(context.Background(), newBlueShirt())
	require.NoError(t, err)
	return l
}
