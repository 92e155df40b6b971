package reconciliation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reseller/crosslist/internal/domain/listing"
	"github.com/reseller/crosslist/internal/infrastructure/marketplace"
	"github.com/reseller/crosslist/internal/infrastructure/storage"
)

func TestBlueShirtEndToEnd(t *testing.T) {
	ebay := newFakeAdapter(listing.PlatformEbay)
	mercari := newFakeAdapter(listing.PlatformMercari)
	mercari.publishErr = &listing.PermanentAdapterError{
		Platform: listing.PlatformMercari, Op: "create", Code: "401",
		Message: "invalid api key", Remediation: "reconnect Mercari Shops", Err: listing.ErrPlatformAuthFailed,
	}
	sink := storage.NewMemorySink()
	poshmark := marketplace.NewPoshmarkAdapter(sink, zaptest.NewLogger(t))

	w := newWorld(t, DefaultConfig(), ebay, poshmark, mercari)
	ctx := context.Background()

	l, err := w.listings.CreateListing(ctx, blueShirt(1))
	require.NoError(t, err)

	outcome, err := w.listings.PublishListing(ctx, l.ID, nil)
	require.NoError(t, err)
	require.Len(t, outcome.Results, 3)

	ebayRes := outcome.Results[listing.PlatformEbay]
	assert.True(t, ebayRes.Success)
	assert.Equal(t, "ebay-BLUE-SHIRT-1", ebayRes.ListingID)

	poshRes := outcome.Results[listing.PlatformPoshmark]
	assert.True(t, poshRes.Success)
	assert.True(t, strings.HasPrefix(poshRes.ListingID, "mem://poshmark/"), poshRes.ListingID)

	mercariRes := outcome.Results[listing.PlatformMercari]
	assert.False(t, mercariRes.Success)
	assert.Equal(t, listing.ErrorKindPermanent, mercariRes.Error.Kind)
	assert.Equal(t, "reconnect Mercari Shops", mercariRes.Error.Remediation)

	// sells on eBay
	soldAt := w.clock.Now()
	res, err := w.reconciler.MarkSold(ctx, MarkSoldRequest{
		ListingID: l.ID,
		Platform:  listing.PlatformEbay,
		Price:     decimal.RequireFromString("25"),
	})
	require.NoError(t, err)
	assert.True(t, res.SoldOut)
	assert.Zero(t, res.Remaining)
	assert.True(t, decimal.RequireFromString("19").Equal(res.Sale.NetProfit), res.Sale.NetProfit.String())
	require.Len(t, res.Scheduled, 1)

	assert.Equal(t, listing.LinkSold, w.linkStatus(t, l, listing.PlatformEbay).Status)
	posh := w.linkStatus(t, l, listing.PlatformPoshmark)
	assert.Equal(t, listing.LinkPendingCancel, posh.Status)
	require.NotNil(t, posh.CancelScheduledAt)
	assert.True(t, soldAt.Add(15*time.Minute).Equal(*posh.CancelScheduledAt), posh.CancelScheduledAt)
	assert.Equal(t, listing.LinkFailed, w.linkStatus(t, l, listing.PlatformMercari).Status)

	stored, err := w.listings.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, listing.ListingStatusSold, stored.Status)
	assert.Equal(t, listing.PlatformEbay, stored.SoldPlatform)
	assert.Zero(t, stored.Quantity)

	// still inside the grace period
	w.clock.Advance(10 * time.Minute)
	report, err := w.reconciler.SweepDueCancellations(ctx, w.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, report.Due)

	w.clock.Advance(6 * time.Minute)
	report, err = w.reconciler.SweepDueCancellations(ctx, w.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Due: 1, Canceled: 1}, report)

	posh = w.linkStatus(t, l, listing.PlatformPoshmark)
	assert.Equal(t, listing.LinkCanceled, posh.Status)
	assert.NotNil(t, posh.CanceledAt)

	var delist []string
	for _, key := range sink.Keys() {
		if strings.Contains(key, "cancel") {
			delist = append(delist, key)
		}
	}
	assert.Len(t, delist, 1)

	notes, err := w.reconciler.Notifications(ctx, 10)
	require.NoError(t, err)
	var sale *listing.Notification
	for i := range notes {
		if notes[i].Type == listing.NotificationSale {
			sale = &notes[i]
		}
	}
	require.NotNil(t, sale)
	assert.Equal(t, "BIN-A3", sale.Data["storage_location"])

	log, err := w.listings.SyncLog(ctx, l.ID)
	require.NoError(t, err)
	actions := make([]listing.SyncAction, 0, len(log))
	for _, e := range log {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, listing.SyncActionSold)
	assert.Contains(t, actions, listing.SyncActionScheduleCancel)
	assert.Contains(t, actions, listing.SyncActionCancel)
}

func TestMarkSold_SaleDuringGracePeriodConflicts(t *testing.T) {
	ebay := newFakeAdapter(listing.PlatformEbay)
	mercari := newFakeAdapter(listing.PlatformMercari)
	w := newWorld(t, DefaultConfig(), ebay, mercari)
	ctx := context.Background()
	l := w.publishedListing(t, 1)

	_, err := w.reconciler.MarkSold(ctx, MarkSoldRequest{ListingID: l.ID, Platform: listing.PlatformEbay})
	require.NoError(t, err)

	w.clock.Advance(5 * time.Minute)
	_, err = w.reconciler.MarkSold(ctx, MarkSoldRequest{ListingID: l.ID, Platform: listing.PlatformMercari})

	var conflict *listing.ReconciliationConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, listing.PlatformEbay, conflict.WinningPlatform)
	assert.Equal(t, listing.PlatformMercari, conflict.Platform)
	assert.Equal(t, listing.ErrorKindConflict, listing.ClassifyError(err))
	assert.Equal(t, 1, w.metrics.conflicts)

	sales, err := w.reconciler.Sales(ctx, l.ID)
	require.NoError(t, err)
	assert.Len(t, sales, 1)
}

func TestMarkSold_ConcurrentSalesHaveOneWinner(t *testing.T) {
	platforms := []listing.Platform{listing.PlatformEbay, listing.PlatformMercari}
	w := newWorld(t, DefaultConfig(), newFakeAdapter(platforms[0]), newFakeAdapter(platforms[1]))
	ctx := context.Background()
	l := w.publishedListing(t, 1)

	const perPlatform = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []listing.Platform
		conflicts int
	)
	for i := 0; i < perPlatform; i++ {
		for _, p := range platforms {
			wg.Add(1)
			go func(p listing.Platform) {
				defer wg.Done()
				_, err := w.reconciler.MarkSold(ctx, MarkSoldRequest{ListingID: l.ID, Platform: p})
				mu.Lock()
				defer mu.Unlock()
				var conflict *listing.ReconciliationConflict
				switch {
				case err == nil:
					winners = append(winners, p)
				case errors.As(err, &conflict):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(p)
		}
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, 2*perPlatform-1, conflicts)

	loser := platforms[0]
	if winners[0] == loser {
		loser = platforms[1]
	}
	assert.Equal(t, listing.LinkSold, w.linkStatus(t, l, winners[0]).Status)
	assert.Equal(t, listing.LinkPendingCancel, w.linkStatus(t, l, loser).Status)

	sales, err := w.reconciler.Sales(ctx, l.ID)
	require.NoError(t, err)
	assert.Len(t, sales, 1)
}

func TestMarkSold_PartialQuantity(t *testing.T) {
	ebay := newFakeAdapter(listing.PlatformEbay)
	mercari := newFakeAdapter(listing.PlatformMercari)
	craigslist := marketplace.NewCraigslistAdapter(zaptest.NewLogger(t))
	w := newWorld(t, DefaultConfig(), ebay, mercari, craigslist)
	ctx := context.Background()
	l := w.publishedListing(t, 3)

	res, err := w.reconciler.MarkSold(ctx, MarkSoldRequest{ListingID: l.ID, Platform: listing.PlatformEbay})
	require.NoError(t, err)
	assert.False(t, res.SoldOut)
	assert.Equal(t, 2, res.Remaining)
	assert.Empty(t, res.Scheduled)
	assert.Len(t, res.QuantityUpdates, 2)
	assert.NoError(t, res.QuantityUpdates[listing.PlatformMercari])
	assert.Equal(t, []int{2}, mercari.Quantities())
	assert.Empty(t, ebay.Quantities())
	// default price is the listing price
	assert.True(t, decimal.RequireFromString("25").Equal(res.Sale.Price))

	assert.Equal(t, listing.LinkActive, w.linkStatus(t, l, listing.PlatformEbay).Status)
	assert.Equal(t, listing.LinkActive, w.linkStatus(t, l, listing.PlatformMercari).Status)

	t.Run("more than remaining is rejected", func(t *testing.T) {
		_, err := w.reconciler.MarkSold(ctx, MarkSoldRequest{ListingID: l.ID, Platform: listing.PlatformMercari, Quantity: 3})
		assert.ErrorIs(t, err, listing.ErrInsufficientQuantity)

		stored, err := w.listings.GetListing(ctx, l.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.Quantity)
	})

	t.Run("quantity push failure does not undo the sale", func(t *testing.T) {
		ebay.quantityErr = &listing.TransientAdapterError{Platform: listing.PlatformEbay, Op: "update_quantity", Err: listing.ErrPlatformUnavailable}
		res, err := w.reconciler.MarkSold(ctx, MarkSoldRequest{ListingID: l.ID, Platform: listing.PlatformMercari})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Remaining)
		assert.Error(t, res.QuantityUpdates[listing.PlatformEbay])
	})

	t.Run("last unit sells out", func(t *testing.T) {
		res, err := w.reconciler.MarkSold(ctx, MarkSoldRequest{
			ListingID: l.ID, Platform: listing.PlatformMercari, Price: decimal.RequireFromString("22"),
		})
		require.NoError(t, err)
		assert.True(t, res.SoldOut)
		assert.Len(t, res.Scheduled, 2)
		assert.Equal(t, listing.LinkSold, w.linkStatus(t, l, listing.PlatformMercari).Status)
		assert.Equal(t, listing.LinkPendingCancel, w.linkStatus(t, l, listing.PlatformEbay).Status)
		assert.Equal(t, listing.LinkPendingCancel, w.linkStatus(t, l, listing.PlatformCraigslist).Status)
	})

	sales, err := w.reconciler.Sales(ctx, l.ID)
	require.NoError(t, err)
	assert.Len(t, sales, 3)
	assert.Equal(t, 3, w.metrics.sales)
}

func TestMarkSold_Rejections(t *testing.T) {
	ebay := newFakeAdapter(listing.PlatformEbay)
	mercari := newFakeAdapter(listing.PlatformMercari)
	mercari.publishErr = &listing.TransientAdapterError{Platform: listing.PlatformMercari, Op: "create", Err: listing.ErrPlatformUnavailable}
	w := newWorld(t, DefaultConfig(), ebay, mercari)
	ctx := context.Background()
	l := w.publishedListing(t, 1)

	tests := []struct {
		name    string
		req     MarkSoldRequest
		wantErr error
	}{
		{
			name:    "unknown platform",
			req:     MarkSoldRequest{ListingID: l.ID, Platform: "etsy"},
			wantErr: listing.ErrUnknownPlatform,
		},
		{
			name:    "negative quantity",
			req:     MarkSoldRequest{ListingID: l.ID, Platform: listing.PlatformEbay, Quantity: -1},
			wantErr: listing.ErrInvalidSaleQuantity,
		},
		{
			name:    "negative fees",
			req:     MarkSoldRequest{ListingID: l.ID, Platform: listing.PlatformEbay, Fees: decimal.NewFromInt(-2)},
			wantErr: listing.ErrInvalidSalePrice,
		},
		{
			name:    "unknown listing",
			req:     MarkSoldRequest{ListingID: uuid.New(), Platform: listing.PlatformEbay},
			wantErr: listing.ErrListingNotFound,
		},
		{
			name:    "platform where the publish failed",
			req:     MarkSoldRequest{ListingID: l.ID, Platform: listing.PlatformMercari},
			wantErr: listing.ErrPlatformNotLinked,
		},
		{
			name:    "platform never published",
			req:     MarkSoldRequest{ListingID: l.ID, Platform: listing.PlatformPoshmark},
			wantErr: listing.ErrPlatformNotLinked,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.reconciler.MarkSold(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	stored, err := w.listings.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Quantity)
}

func TestMarkSold_DuplicateSignalIgnored(t *testing.T) {
	w := newWorld(t, DefaultConfig(), newFakeAdapter(listing.PlatformEbay), newFakeAdapter(listing.PlatformMercari))
	ctx := context.Background()
	l := w.publishedListing(t, 2)

	req := MarkSoldRequest{ListingID: l.ID, Platform: listing.PlatformEbay, SignalID: "order-17"}
	_, err := w.reconciler.MarkSold(ctx, req)
	require.NoError(t, err)

	_, err = w.reconciler.MarkSold(ctx, req)
	assert.ErrorIs(t, err, listing.ErrDuplicateSaleSignal)

	stored, err := w.listings.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Quantity)

	// same order id on another platform is a different signal
	_, err = w.reconciler.MarkSold(ctx, MarkSoldRequest{ListingID: l.ID, Platform: listing.PlatformMercari, SignalID: "order-17"})
	assert.NoError(t, err)
}

func TestSweep_TransientFailuresEscalateToManualAction(t *testing.T) {
	ebay := newFakeAdapter(listing.PlatformEbay)
	mercari := newFakeAdapter(listing.PlatformMercari)
	w := newWorld(t, testConfig(), ebay, mercari)
	ctx := context.Background()
	l := w.publishedListing(t, 1)

	_, err := w.reconciler.MarkSold(ctx, MarkSoldRequest{ListingID: l.ID, Platform: listing.PlatformEbay})
	require.NoError(t, err)

	unavailable := &listing.TransientAdapterError{Platform: listing.PlatformMercari, Op: "cancel", Err: listing.ErrPlatformUnavailable}
	mercari.failCancels(unavailable, unavailable, unavailable)
	w.clock.Advance(16 * time.Minute)

	for attempt := 1; attempt <= 2; attempt++ {
		report, err := w.reconciler.SweepDueCancellations(ctx, w.clock.Now())
		require.NoError(t, err)
		assert.Equal(t, SweepReport{Due: 1, Retrying: 1}, report, "attempt %d", attempt)

		link := w.linkStatus(t, l, listing.PlatformMercari)
		assert.Equal(t, listing.LinkPendingCancel, link.Status)
		assert.Equal(t, attempt, link.CancelAttempts)
		assert.False(t, link.ManualActionRequired)
		w.clock.Advance(time.Minute)
	}

	report, err := w.reconciler.SweepDueCancellations(ctx, w.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Due: 1, ManualAction: 1}, report)

	link := w.linkStatus(t, l, listing.PlatformMercari)
	assert.Equal(t, listing.LinkPendingCancel, link.Status)
	assert.True(t, link.ManualActionRequired)
	assert.Equal(t, 3, link.CancelAttempts)

	// flagged links leave the sweep
	report, err = w.reconciler.SweepDueCancellations(ctx, w.clock.Advance(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, report.Due)
	assert.Empty(t, mercari.Canceled())

	notes, err := w.reconciler.Notifications(ctx, 10)
	require.NoError(t, err)
	var manual []listing.Notification
	for _, n := range notes {
		if n.Type == listing.NotificationManualAction {
			manual = append(manual, n)
		}
	}
	require.Len(t, manual, 1)
	assert.Equal(t, listing.PlatformMercari, manual[0].Platform)
	assert.Equal(t, "mercari-BLUE-SHIRT-1", manual[0].Data["platform_listing_id"])
	assert.Equal(t, 2, w.metrics.cancellations[CancelOutcomeRetry])
	assert.Equal(t, 1, w.metrics.cancellations[CancelOutcomeManual])
}

func TestSweep_PermanentFailureIsManualAtOnce(t *testing.T) {
	ebay := newFakeAdapter(listing.PlatformEbay)
	mercari := newFakeAdapter(listing.PlatformMercari)
	w := newWorld(t, testConfig(), ebay, mercari)
	ctx := context.Background()
	l := w.publishedListing(t, 1)

	_, err := w.reconciler.MarkSold(ctx, MarkSoldRequest{ListingID: l.ID, Platform: listing.PlatformMercari})
	require.NoError(t, err)
	ebay.failCancels(&listing.PermanentAdapterError{Platform: listing.PlatformEbay, Op: "cancel", Message: "offer already ended"})

	report, err := w.reconciler.SweepDueCancellations(ctx, w.clock.Advance(20*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Due: 1, ManualAction: 1}, report)

	link := w.linkStatus(t, l, listing.PlatformEbay)
	assert.True(t, link.ManualActionRequired)
	assert.Equal(t, 1, link.CancelAttempts)
	assert.Contains(t, link.LastError, "offer already ended")
}

func TestSweep_OneFailureDoesNotStopOthers(t *testing.T) {
	ebay := newFakeAdapter(listing.PlatformEbay)
	mercari := newFakeAdapter(listing.PlatformMercari)
	hung := newFakeAdapter(listing.PlatformPoshmark)
	hung.cancelHang = make(chan struct{})
	t.Cleanup(func() { close(hung.cancelHang) })

	cfg := testConfig()
	cfg.CancelTimeout = 50 * time.Millisecond
	w := newWorld(t, cfg, ebay, mercari, hung)
	ctx := context.Background()
	l := w.publishedListing(t, 1)

	_, err := w.reconciler.MarkSold(ctx, MarkSoldRequest{ListingID: l.ID, Platform: listing.PlatformEbay})
	require.NoError(t, err)

	start := time.Now()
	report, err := w.reconciler.SweepDueCancellations(ctx, w.clock.Advance(15*time.Minute))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, SweepReport{Due: 2, Canceled: 1, Retrying: 1}, report)

	assert.Equal(t, listing.LinkCanceled, w.linkStatus(t, l, listing.PlatformMercari).Status)
	hungLink := w.linkStatus(t, l, listing.PlatformPoshmark)
	assert.Equal(t, listing.LinkPendingCancel, hungLink.Status)
	assert.Equal(t, 1, hungLink.CancelAttempts)
}

func TestSweep_PlatformGraceOverride(t *testing.T) {
	cfg := testConfig()
	cfg.PlatformGrace = map[listing.Platform]time.Duration{listing.PlatformMercari: 0}
	ebay := newFakeAdapter(listing.PlatformEbay)
	mercari := newFakeAdapter(listing.PlatformMercari)
	poshmark := newFakeAdapter(listing.PlatformPoshmark)
	w := newWorld(t, cfg, ebay, mercari, poshmark)
	ctx := context.Background()
	l := w.publishedListing(t, 1)

	_, err := w.reconciler.MarkSold(ctx, MarkSoldRequest{ListingID: l.ID, Platform: listing.PlatformEbay})
	require.NoError(t, err)

	report, err := w.reconciler.SweepDueCancellations(ctx, w.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Due: 1, Canceled: 1}, report)
	assert.Equal(t, []string{"mercari-BLUE-SHIRT-1"}, mercari.Canceled())
	assert.Equal(t, listing.LinkPendingCancel, w.linkStatus(t, l, listing.PlatformPoshmark).Status)
}

func TestSweep_TemplateLinkAsksSellerToDelist(t *testing.T) {
	ebay := newFakeAdapter(listing.PlatformEbay)
	chairish := marketplace.NewChairishAdapter(zaptest.NewLogger(t))
	w := newWorld(t, testConfig(), ebay, chairish)
	ctx := context.Background()
	l := w.publishedListing(t, 1)
	require.Equal(t, listing.LinkActive, w.linkStatus(t, l, listing.PlatformChairish).Status)

	_, err := w.reconciler.MarkSold(ctx, MarkSoldRequest{ListingID: l.ID, Platform: listing.PlatformEbay})
	require.NoError(t, err)

	report, err := w.reconciler.SweepDueCancellations(ctx, w.clock.Advance(15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Canceled)
	assert.Equal(t, listing.LinkCanceled, w.linkStatus(t, l, listing.PlatformChairish).Status)

	notes, err := w.reconciler.Notifications(ctx, 10)
	require.NoError(t, err)
	found := false
	for _, n := range notes {
		if n.Type == listing.NotificationManualAction && n.Platform == listing.PlatformChairish {
			found = true
			require.NoError(t, w.reconciler.MarkNotificationRead(ctx, n.ID))
		}
	}
	assert.True(t, found)
}

// publishDuringSale starts a publish to p that blocks inside the adapter,
// runs sell while it is blocked, then lets the publish finish
func publishDuringSale(t *testing.T, w *world, l *listing.UnifiedListing, gated *fakeAdapter, sell func()) {
	t.Helper()
	waiting, release := gated.gatePublish()

	done := make(chan error, 1)
	go func() {
		_, err := w.listings.PublishListing(context.Background(), l.ID, []listing.Platform{gated.platform})
		done <- err
	}()

	select {
	case <-waiting:
	case <-time.After(5 * time.Second):
		t.Fatal("publish never reached the adapter")
	}
	assert.Equal(t, listing.LinkPending, w.linkStatus(t, l, gated.platform).Status)

	sell()
	release()
	require.NoError(t, <-done)
}

func TestMarkSold_PublishInFlightWhenSoldOut(t *testing.T) {
	ebay := newFakeAdapter(listing.PlatformEbay)
	posh := newFakeAdapter(listing.PlatformPoshmark)
	w := newWorld(t, testConfig(), ebay, posh)
	ctx := context.Background()

	l, err := w.listings.CreateListing(ctx, blueShirt(1))
	require.NoError(t, err)
	_, err = w.listings.PublishListing(ctx, l.ID, []listing.Platform{listing.PlatformEbay})
	require.NoError(t, err)

	soldAt := w.clock.Now()
	publishDuringSale(t, w, l, posh, func() {
		res, err := w.reconciler.MarkSold(ctx, MarkSoldRequest{ListingID: l.ID, Platform: listing.PlatformEbay})
		require.NoError(t, err)
		assert.True(t, res.SoldOut)
		assert.Empty(t, res.Scheduled, "the in-flight link is not live yet")
	})

	link := w.linkStatus(t, l, listing.PlatformPoshmark)
	assert.Equal(t, listing.LinkPendingCancel, link.Status)
	require.NotNil(t, link.CancelScheduledAt)
	assert.True(t, soldAt.Add(DefaultGracePeriod).Equal(*link.CancelScheduledAt), link.CancelScheduledAt)

	report, err := w.reconciler.SweepDueCancellations(ctx, w.clock.Advance(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Due: 1, Canceled: 1}, report)
	assert.Equal(t, listing.LinkCanceled, w.linkStatus(t, l, listing.PlatformPoshmark).Status)
	assert.Equal(t, []string{"poshmark-BLUE-SHIRT-1"}, posh.Canceled())

	stored, err := w.listings.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, listing.ListingStatusSold, stored.Status)
}

func TestMarkSold_PublishInFlightAfterPartialSale(t *testing.T) {
	ebay := newFakeAdapter(listing.PlatformEbay)
	posh := newFakeAdapter(listing.PlatformPoshmark)
	w := newWorld(t, testConfig(), ebay, posh)
	ctx := context.Background()

	l, err := w.listings.CreateListing(ctx, blueShirt(3))
	require.NoError(t, err)
	_, err = w.listings.PublishListing(ctx, l.ID, []listing.Platform{listing.PlatformEbay})
	require.NoError(t, err)

	publishDuringSale(t, w, l, posh, func() {
		res, err := w.reconciler.MarkSold(ctx, MarkSoldRequest{ListingID: l.ID, Platform: listing.PlatformEbay, Quantity: 2})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Remaining)
		assert.Empty(t, res.QuantityUpdates)
	})

	assert.Equal(t, listing.LinkActive, w.linkStatus(t, l, listing.PlatformPoshmark).Status)
	assert.Equal(t, []int{1}, posh.Quantities())
	assert.Empty(t, ebay.Quantities())
}

func TestFollowActivation_LinkAlreadyHandled(t *testing.T) {
	ebay := newFakeAdapter(listing.PlatformEbay)
	posh := newFakeAdapter(listing.PlatformPoshmark)
	w := newWorld(t, testConfig(), ebay, posh)
	ctx := context.Background()

	l := w.publishedListing(t, 1)
	_, err := w.reconciler.MarkSold(ctx, MarkSoldRequest{ListingID: l.ID, Platform: listing.PlatformEbay})
	require.NoError(t, err)

	link := w.linkStatus(t, l, listing.PlatformPoshmark)
	require.Equal(t, listing.LinkPendingCancel, link.Status)
	scheduledAt := *link.CancelScheduledAt

	w.clock.Advance(5 * time.Minute)
	require.NoError(t, w.reconciler.FollowActivation(ctx, link, 1))

	link = w.linkStatus(t, l, listing.PlatformPoshmark)
	assert.Equal(t, listing.LinkPendingCancel, link.Status)
	assert.True(t, scheduledAt.Equal(*link.CancelScheduledAt), "grace period must not restart")
	assert.Empty(t, posh.Quantities())
}
