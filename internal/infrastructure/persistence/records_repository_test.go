package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reseller/crosslist/internal/domain/listing"
)

func TestGormHistoryRepository(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormHistoryRepository(db.DB)
	ctx := context.Background()

	l := newTestListing("Blue Shirt")
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	ok := listing.SucceededResult(listing.PlatformEbay, "1234", "https://ebay.com/itm/1234")
	ok.Duration = 1500 * time.Millisecond
	failed := listing.FailedResult(listing.PlatformMercari, &listing.TransientAdapterError{Platform: listing.PlatformMercari, Op: "create", Err: errors.New("503")})
	feed := listing.SucceededResult(listing.PlatformFacebook, "SKU-1", "")

	require.NoError(t, repo.Append(ctx,
		listing.NewPublishHistoryEntry(l, ok, now),
		listing.NewPublishHistoryEntry(l, failed, now.Add(time.Second)),
		listing.NewPublishHistoryEntry(l, feed, now.Add(2*time.Second)),
	))
	require.NoError(t, repo.Append(ctx))

	entries, err := repo.FindByListing(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, listing.PlatformFacebook, entries[0].Platform)
	assert.Equal(t, listing.PlatformMercari, entries[1].Platform)
	assert.False(t, entries[1].Success)
	assert.Equal(t, listing.ErrorKindTransient, entries[1].ErrorKind)
	assert.Equal(t, 1500*time.Millisecond, entries[2].Duration)
	assert.Equal(t, "Blue Shirt", entries[2].ListingTitle)

	t.Run("global success rate", func(t *testing.T) {
		rate, err := repo.SuccessRate(ctx, nil)
		require.NoError(t, err)
		assert.Nil(t, rate.Platform)
		assert.Equal(t, int64(3), rate.Attempts)
		assert.Equal(t, int64(2), rate.Successes)
		assert.InDelta(t, 66.67, rate.Percent(), 0.01)
	})

	t.Run("per platform success rate", func(t *testing.T) {
		p := listing.PlatformMercari
		rate, err := repo.SuccessRate(ctx, &p)
		require.NoError(t, err)
		assert.Equal(t, int64(1), rate.Attempts)
		assert.Equal(t, int64(0), rate.Successes)
		assert.Equal(t, 0.0, rate.Ratio())
	})

	t.Run("empty history", func(t *testing.T) {
		p := listing.PlatformChairish
		rate, err := repo.SuccessRate(ctx, &p)
		require.NoError(t, err)
		assert.Equal(t, int64(0), rate.Attempts)
		assert.Equal(t, 0.0, rate.Percent())
	})
}

func TestGormSaleRepository(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormSaleRepository(db.DB)
	ctx := context.Background()

	l := newTestListing("Blue Shirt")
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s := listing.NewSale(l, listing.PlatformEbay, decimal.RequireFromString("24.99"), decimal.RequireFromString("3.25"), 1, 0, at)
	require.NoError(t, repo.Create(ctx, s))

	sales, err := repo.FindByListing(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, listing.PlatformEbay, sales[0].Platform)
	assert.True(t, decimal.RequireFromString("15.74").Equal(sales[0].NetProfit), sales[0].NetProfit.String())
	assert.Equal(t, 0, sales[0].Remaining)

	none, err := repo.FindByListing(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGormSyncLogRepository(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormSyncLogRepository(db.DB)
	ctx := context.Background()
	listingID := uuid.New()
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(ctx, listing.NewSyncLogEntry(listingID, listing.PlatformEbay, listing.SyncActionSold, listing.SyncSuccess, "order 17", at)))
	require.NoError(t, repo.Append(ctx, listing.NewSyncLogEntry(listingID, listing.PlatformMercari, listing.SyncActionScheduleCancel, listing.SyncScheduled, "", at.Add(time.Second))))

	entries, err := repo.FindByListing(ctx, listingID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, listing.SyncActionSold, entries[0].Action)
	assert.Equal(t, "order 17", entries[0].Details)
	assert.Equal(t, listing.SyncScheduled, entries[1].Outcome)
}

func TestGormNotificationRepository(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormNotificationRepository(db.DB)
	ctx := context.Background()

	l := newTestListing("Blue Shirt")
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s := listing.NewSale(l, listing.PlatformEbay, decimal.RequireFromString("24.99"), decimal.Zero, 1, 0, at)
	n := listing.NewSaleNotification(l, s)
	require.NoError(t, repo.Create(ctx, n))

	unread, err := repo.FindUnread(ctx, 0)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, listing.NotificationSale, unread[0].Type)
	assert.Equal(t, "BIN-A3", unread[0].Data["storage_location"])

	require.NoError(t, repo.MarkRead(ctx, n.ID))
	unread, err = repo.FindUnread(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, unread)

	assert.ErrorIs(t, repo.MarkRead(ctx, uuid.New()), listing.ErrNotificationNotFound)
}
