package persistence

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reseller/crosslist/internal/domain/listing"
)

func createActiveLink(t *testing.T, repo *GormLinkRepository, listingID uuid.UUID, p listing.Platform, at time.Time) *listing.PlatformListingLink {
	t.Helper()
	ctx := context.Background()
	link := listing.NewPendingLink(listingID, p, at)
	require.NoError(t, repo.Create(ctx, link))
	tr := link.Activate(listing.PlatformResult{Platform: p, Success: true, ListingID: "ext-" + string(p), ListingURL: "https://example.com/" + string(p)}, at)
	require.NoError(t, repo.Transition(ctx, tr))
	link.Apply(tr)
	return link
}

func TestGormLinkRepository_CreateAndFind(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormLinkRepository(db.DB)
	ctx := context.Background()
	listingID := uuid.New()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	link := listing.NewPendingLink(listingID, listing.PlatformEbay, now)
	require.NoError(t, repo.Create(ctx, link))

	got, err := repo.FindByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, listing.LinkPending, got.Status)
	assert.Equal(t, listing.KindAPI, got.Kind)

	got, err = repo.FindByListingAndPlatform(ctx, listingID, listing.PlatformEbay)
	require.NoError(t, err)
	assert.Equal(t, link.ID, got.ID)

	_, err = repo.FindByListingAndPlatform(ctx, listingID, listing.PlatformMercari)
	assert.ErrorIs(t, err, listing.ErrLinkNotFound)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, listing.ErrLinkNotFound)

	dup := listing.NewPendingLink(listingID, listing.PlatformEbay, now)
	assert.ErrorIs(t, repo.Create(ctx, dup), listing.ErrAlreadyPublished)

	require.NoError(t, repo.Create(ctx, listing.NewPendingLink(listingID, listing.PlatformCraigslist, now)))
	links, err := repo.FindByListing(ctx, listingID)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, listing.PlatformCraigslist, links[0].Platform)
	assert.Equal(t, listing.PlatformEbay, links[1].Platform)
}

func TestGormLinkRepository_Transition(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormLinkRepository(db.DB)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	t.Run("activate stores platform identifiers", func(t *testing.T) {
		link := createActiveLink(t, repo, uuid.New(), listing.PlatformEbay, now)

		got, err := repo.FindByID(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, listing.LinkActive, got.Status)
		assert.Equal(t, "ext-ebay", got.PlatformListingID)
		assert.Equal(t, "https://example.com/ebay", got.ListingURL)
		require.NotNil(t, got.PostedAt)
		assert.Equal(t, 1, got.Version)
	})

	t.Run("stale from status conflicts", func(t *testing.T) {
		link := createActiveLink(t, repo, uuid.New(), listing.PlatformMercari, now)

		err := repo.Transition(ctx, listing.LinkTransition{LinkID: link.ID, From: listing.LinkPending, To: listing.LinkActive, At: now})
		assert.ErrorIs(t, err, listing.ErrTransitionConflict)
	})

	t.Run("edge outside the state machine is rejected before the update", func(t *testing.T) {
		link := createActiveLink(t, repo, uuid.New(), listing.PlatformEbay, now)

		err := repo.Transition(ctx, listing.LinkTransition{LinkID: link.ID, From: listing.LinkActive, To: listing.LinkCanceled, At: now})
		assert.ErrorIs(t, err, listing.ErrInvalidTransition)
	})

	t.Run("unknown link", func(t *testing.T) {
		err := repo.Transition(ctx, listing.LinkTransition{LinkID: uuid.New(), From: listing.LinkActive, To: listing.LinkSold, At: now})
		assert.ErrorIs(t, err, listing.ErrLinkNotFound)
	})

	t.Run("fail then retry counts retries", func(t *testing.T) {
		link := listing.NewPendingLink(uuid.New(), listing.PlatformEbay, now)
		require.NoError(t, repo.Create(ctx, link))
		require.NoError(t, repo.Transition(ctx, link.Fail("503 from upstream", now)))
		require.NoError(t, repo.Transition(ctx, link.Retry(now.Add(time.Minute))))

		got, err := repo.FindByID(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, listing.LinkPending, got.Status)
		assert.Equal(t, 1, got.RetryCount)
		assert.Equal(t, "503 from upstream", got.LastError)
	})

	t.Run("schedule cancel then cancel", func(t *testing.T) {
		link := createActiveLink(t, repo, uuid.New(), listing.PlatformEbay, now)
		require.NoError(t, repo.Transition(ctx, link.ScheduleCancel(now, 15*time.Minute)))

		got, err := repo.FindByID(ctx, link.ID)
		require.NoError(t, err)
		require.NotNil(t, got.CancelScheduledAt)
		assert.True(t, now.Add(15*time.Minute).Equal(*got.CancelScheduledAt))

		require.NoError(t, repo.Transition(ctx, got.Cancel(now.Add(16*time.Minute))))
		got, err = repo.FindByID(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, listing.LinkCanceled, got.Status)
		require.NotNil(t, got.CanceledAt)
	})
}

func TestGormLinkRepository_ConcurrentTransitionHasOneWinner(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormLinkRepository(db.DB)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	link := createActiveLink(t, repo, uuid.New(), listing.PlatformEbay, now)

	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var tr listing.LinkTransition
			if i%2 == 0 {
				tr = link.MarkSold(now)
			} else {
				tr = link.ScheduleCancel(now, time.Minute)
			}
			switch err := repo.Transition(context.Background(), tr); {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, listing.ErrTransitionConflict):
				conflicts.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(9), conflicts.Load())
}

func TestGormLinkRepository_FindDueCancellations(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormLinkRepository(db.DB)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	due := createActiveLink(t, repo, uuid.New(), listing.PlatformEbay, now)
	require.NoError(t, repo.Transition(ctx, due.ScheduleCancel(now.Add(-20*time.Minute), 15*time.Minute)))

	notYet := createActiveLink(t, repo, uuid.New(), listing.PlatformEbay, now)
	require.NoError(t, repo.Transition(ctx, notYet.ScheduleCancel(now.Add(-5*time.Minute), 15*time.Minute)))

	manual := createActiveLink(t, repo, uuid.New(), listing.PlatformMercari, now)
	require.NoError(t, repo.Transition(ctx, manual.ScheduleCancel(now.Add(-30*time.Minute), 15*time.Minute)))
	require.NoError(t, repo.RecordCancelFailure(ctx, manual.ID, "api down", true, now))

	createActiveLink(t, repo, uuid.New(), listing.PlatformEbay, now)

	links, err := repo.FindDueCancellations(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, due.ID, links[0].ID)
	assert.True(t, links[0].IsCancelDue(now))

	links, err = repo.FindDueCancellations(ctx, now.Add(15*time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, links, 2)
}

func TestGormLinkRepository_RecordCancelFailure(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormLinkRepository(db.DB)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	link := createActiveLink(t, repo, uuid.New(), listing.PlatformEbay, now)
	assert.ErrorIs(t, repo.RecordCancelFailure(ctx, link.ID, "x", false, now), listing.ErrTransitionConflict,
		"only pending_cancel links count cancel failures")

	require.NoError(t, repo.Transition(ctx, link.ScheduleCancel(now, 0)))
	require.NoError(t, repo.RecordCancelFailure(ctx, link.ID, "timeout", false, now))
	require.NoError(t, repo.RecordCancelFailure(ctx, link.ID, "timeout again", true, now))

	got, err := repo.FindByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, listing.LinkPendingCancel, got.Status)
	assert.Equal(t, 2, got.CancelAttempts)
	assert.True(t, got.ManualActionRequired)
	assert.Equal(t, "timeout again", got.LastError)
}

func TestGormLinkRepository_FindRetryable(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormLinkRepository(db.DB)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	fresh := listing.NewPendingLink(uuid.New(), listing.PlatformEbay, now)
	require.NoError(t, repo.Create(ctx, fresh))
	require.NoError(t, repo.Transition(ctx, fresh.Fail("boom", now)))

	exhausted := listing.NewPendingLink(uuid.New(), listing.PlatformMercari, now)
	require.NoError(t, repo.Create(ctx, exhausted))
	require.NoError(t, repo.Transition(ctx, exhausted.Fail("boom", now)))
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Transition(ctx, exhausted.Retry(now)))
		require.NoError(t, repo.Transition(ctx, exhausted.Fail("boom", now)))
	}

	createActiveLink(t, repo, uuid.New(), listing.PlatformEbay, now)

	links, err := repo.FindRetryable(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, fresh.ID, links[0].ID)
}
