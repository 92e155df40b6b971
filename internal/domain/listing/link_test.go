package listing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from LinkStatus
		to   LinkStatus
		want bool
	}{
		{LinkPending, LinkActive, true},
		{LinkPending, LinkFailed, true},
		{LinkFailed, LinkPending, true},
		{LinkActive, LinkSold, true},
		{LinkActive, LinkPendingCancel, true},
		{LinkPendingCancel, LinkCanceled, true},
		{LinkPendingCancel, LinkSold, false},
		{LinkSold, LinkCanceled, false},
		{LinkCanceled, LinkActive, false},
		{LinkActive, LinkCanceled, false},
		{LinkPending, LinkSold, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestLink_ScheduleCancelAndDue(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	link := NewPendingLink(uuid.New(), PlatformPoshmark, now)
	link.Apply(link.Activate(SucceededResult(PlatformPoshmark, "out/poshmark/x.csv", ""), now))
	require.Equal(t, LinkActive, link.Status)
	require.NotNil(t, link.PostedAt)

	tr := link.ScheduleCancel(now, 15*time.Minute)
	require.NoError(t, tr.Validate())
	link.Apply(tr)

	assert.Equal(t, LinkPendingCancel, link.Status)
	assert.False(t, link.IsCancelDue(now.Add(14*time.Minute)))
	assert.True(t, link.IsCancelDue(now.Add(15*time.Minute)))
	assert.True(t, link.IsCancelDue(now.Add(16*time.Minute)))

	link.ManualActionRequired = true
	assert.False(t, link.IsCancelDue(now.Add(16*time.Minute)))
}

func TestLinkTransition_ValidateRejectsUnknownEdge(t *testing.T) {
	tr := LinkTransition{From: LinkSold, To: LinkPendingCancel}
	assert.ErrorIs(t, tr.Validate(), ErrInvalidTransition)
}

func TestLink_RetryCountsAttempts(t *testing.T) {
	now := time.Now()
	link := NewPendingLink(uuid.New(), PlatformEbay, now)
	link.Apply(link.Fail("auth failed", now))
	assert.Equal(t, "auth failed", link.LastError)

	link.Apply(link.Retry(now))
	assert.Equal(t, LinkPending, link.Status)
	assert.Equal(t, 1, link.RetryCount)
}
