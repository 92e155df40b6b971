package reconciliation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reseller/crosslist/internal/application/publishing"
	"github.com/reseller/crosslist/internal/domain/listing"
	"github.com/reseller/crosslist/internal/infrastructure/cache"
	"github.com/reseller/crosslist/internal/infrastructure/config"
	"github.com/reseller/crosslist/internal/infrastructure/logger"
	"github.com/reseller/crosslist/internal/infrastructure/marketplace"
	"github.com/reseller/crosslist/internal/infrastructure/persistence"
)

// fakeAdapter is a scriptable api adapter that records cancels and
// quantity pushes
type fakeAdapter struct {
	platform listing.Platform

	mu          sync.Mutex
	publishErr  error
	// publishGate, when set, holds Publish until it is closed; publishWait
	// is signalled first
	publishGate chan struct{}
	publishWait chan struct{}
	cancelErrs  []error
	cancelHang  chan struct{}
	quantityErr error
	canceled    []string
	quantities  []int
}

func newFakeAdapter(p listing.Platform) *fakeAdapter {
	return &fakeAdapter{platform: p}
}

// failCancels makes the next cancels fail with errs, in order
func (f *fakeAdapter) failCancels(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelErrs = append(f.cancelErrs, errs...)
}

func (f *fakeAdapter) Canceled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.canceled...)
}

func (f *fakeAdapter) Quantities() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.quantities...)
}

func (f *fakeAdapter) Platform() listing.Platform     { return f.platform }
func (f *fakeAdapter) Kind() listing.ComplianceKind { return f.platform.Kind() }

func (f *fakeAdapter) Validate(*listing.UnifiedListing) listing.ValidationResult {
	return listing.ValidationResult{Platform: f.platform}
}

func (f *fakeAdapter) ToPlatformFormat(l *listing.UnifiedListing) (listing.Payload, error) {
	return listing.Payload{Platform: f.platform, Fields: []listing.PayloadField{{Name: "title", Value: l.Title}}}, nil
}

// gatePublish makes the next Publish block until the returned release is
// called. The returned channel is closed once Publish is waiting.
func (f *fakeAdapter) gatePublish() (waiting <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishGate = make(chan struct{})
	f.publishWait = make(chan struct{})
	return f.publishWait, func() { close(f.publishGate) }
}

func (f *fakeAdapter) Publish(_ context.Context, l *listing.UnifiedListing) listing.PlatformResult {
	f.mu.Lock()
	gate, started := f.publishGate, f.publishWait
	f.publishGate, f.publishWait = nil, nil
	f.mu.Unlock()
	if gate != nil {
		close(started)
		<-gate
	}

	if f.publishErr != nil {
		return listing.FailedResult(f.platform, f.publishErr)
	}
	return listing.SucceededResult(f.platform, f.platform.String()+"-"+l.SKU, "https://"+f.platform.String()+".example.com/"+l.SKU)
}

func (f *fakeAdapter) Cancel(ctx context.Context, link *listing.PlatformListingLink) error {
	f.mu.Lock()
	hang := f.cancelHang
	var err error
	if len(f.cancelErrs) > 0 {
		err = f.cancelErrs[0]
		f.cancelErrs = f.cancelErrs[1:]
	}
	f.mu.Unlock()

	if hang != nil {
		<-hang
	}
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.canceled = append(f.canceled, link.PlatformListingID)
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) UpdateQuantity(_ context.Context, _ *listing.PlatformListingLink, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.quantityErr != nil {
		return f.quantityErr
	}
	f.quantities = append(f.quantities, quantity)
	return nil
}

var _ listing.Adapter = (*fakeAdapter)(nil)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type recordingMetrics struct {
	mu            sync.Mutex
	sales         int
	conflicts     int
	cancellations map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{cancellations: map[string]int{}}
}

func (m *recordingMetrics) RecordSale(context.Context, listing.Platform, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sales++
}

func (m *recordingMetrics) RecordConflict(context.Context, listing.Platform) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts++
}

func (m *recordingMetrics) RecordCancellation(_ context.Context, _ listing.Platform, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancellations[outcome]++
}

// world wires the publishing and reconciliation services over one
// in-memory database, the way the server does
type world struct {
	repos      *persistence.Repositories
	clock      *fakeClock
	metrics    *recordingMetrics
	listings   *publishing.ListingService
	reconciler *Reconciler
}

func newWorld(t *testing.T, cfg Config, adapters ...listing.Adapter) *world {
	t.Helper()
	db, err := persistence.NewDatabaseWithLogger(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"},
		zaptest.NewLogger(t), logger.ParseGormLevel("warn"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	repos := persistence.NewRepositories(db.DB)
	clock := newFakeClock()
	metrics := newRecordingMetrics()
	log := zaptest.NewLogger(t)
	registry := marketplace.NewRegistryFromAdapters(adapters...)

	pub := publishing.NewPublisher(registry, repos.History,
		publishing.WithLogger(log), publishing.WithClock(clock.Now), publishing.WithTimeout(time.Second))
	idem := cache.NewInMemoryIdempotencyStore(time.Minute)
	t.Cleanup(func() { _ = idem.Close() })

	rec := NewReconciler(Stores{
		Listings:      repos.Listings,
		Links:         repos.Links,
		Sales:         repos.Sales,
		SyncLogs:      repos.SyncLogs,
		Notifications: repos.Notifications,
	}, registry, cache.NewKeyedLocker(), cfg,
		WithIdempotencyStore(idem), WithMetrics(metrics), WithLogger(log), WithClock(clock.Now))

	svc := publishing.NewListingService(repos.Listings, repos.Links, repos.SyncLogs, repos.Notifications, pub,
		publishing.WithActivationFollower(rec), publishing.WithServiceLogger(log), publishing.WithServiceClock(clock.Now))

	return &world{repos: repos, clock: clock, metrics: metrics, listings: svc, reconciler: rec}
}

func blueShirt(qty int) *listing.UnifiedListing {
	l := listing.NewUnifiedListing("Blue Shirt", "J.Crew button-down, size M, worn twice.",
		decimal.RequireFromString("25"), listing.ConditionExcellent)
	l.SKU = "BLUE-SHIRT-1"
	l.Quantity = qty
	l.Photos = []listing.Photo{{URL: "https://img.example.com/front.jpg"}}
	l.ItemSpecifics.Brand = "J.Crew"
	l.ItemSpecifics.Size = "M"
	l.ItemSpecifics.Color = "Blue"
	l.Category = listing.Category{Primary: "Men", Subcategory: "Shirts"}
	l.Shipping.ShipsFromZip = "94107"
	l.StorageLocation = "BIN-A3"
	cost := decimal.RequireFromString("6")
	l.Cost = &cost
	return l
}

// publishedListing creates a listing and publishes it everywhere
func (w *world) publishedListing(t *testing.T, qty int) *listing.UnifiedListing {
	t.Helper()
	ctx := context.Background()
	l, err := w.listings.CreateListing(ctx, blueShirt(qty))
	require.NoError(t, err)
	_, err = w.listings.PublishListing(ctx, l.ID, nil)
	require.NoError(t, err)
	return l
}

func (w *world) linkStatus(t *testing.T, l *listing.UnifiedListing, p listing.Platform) *listing.PlatformListingLink {
	t.Helper()
	link, err := w.repos.Links.FindByListingAndPlatform(context.Background(), l.ID, p)
	require.NoError(t, err)
	return link
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxCancelAttempts = 3
	cfg.CancelTimeout = time.Second
	return cfg
}
