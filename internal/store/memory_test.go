package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yield-monitor-go/internal/models"
)

func TestMemorySubscriptions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	sub := models.PushSubscription{Endpoint: "e1", Keys: models.PushKeys{P256dh: "k", Auth: "a"}}
	require.NoError(t, s.SaveSubscription(ctx, addr, sub, []int{1}))

	sub.Endpoint = "e2"
	require.NoError(t, s.SaveSubscription(ctx, addr, sub, []int{1, 8453}))

	got, err := s.GetSubscription(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "e2", got.Subscription.Endpoint)
	assert.Equal(t, []int{1, 8453}, got.ChainIDs)

	all, _ := s.ListSubscriptions(ctx)
	assert.Len(t, all, 1, "upsert keeps one row per address")

	at := time.Now()
	require.NoError(t, s.UpdateLastNotified(ctx, addr, at))
	got, _ = s.GetSubscription(ctx, addr)
	require.NotNil(t, got.LastNotified)

	require.NoError(t, s.RemoveSubscription(ctx, addr))
	_, err = s.GetSubscription(ctx, addr)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryEmailSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first, err := s.SaveEmailSubscription(ctx, addr, "a@b.co")
	require.NoError(t, err)
	_, err = s.SaveEmailSubscription(ctx, addr, "c@d.co")
	require.NoError(t, err)

	require.NoError(t, s.RemoveEmailSubscription(ctx, addr, "a@b.co"))
	assert.ErrorIs(t, s.RemoveEmailSubscription(ctx, addr, "a@b.co"), ErrNotFound)

	active, _ := s.EmailSubscriptionsFor(ctx, addr)
	require.Len(t, active, 1)
	assert.Equal(t, "c@d.co", active[0].Email)

	again, err := s.SaveEmailSubscription(ctx, addr, "a@b.co")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID, "resubscribing reactivates the same row")

	all, _ := s.ActiveEmailSubscriptions(ctx)
	assert.Len(t, all, 2)
}

func TestMemoryHistory(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	snap := func(age time.Duration, yield int64) models.YieldSnapshot {
		return models.YieldSnapshot{Timestamp: now.Add(-age), TotalYield: decimal.NewFromInt(yield)}
	}
	require.NoError(t, s.SaveSnapshot(ctx, addr, snap(40*24*time.Hour, 1)))
	require.NoError(t, s.SaveSnapshot(ctx, addr, snap(48*time.Hour, 2)))
	require.NoError(t, s.SaveSnapshot(ctx, addr, snap(25*time.Hour, 3)))
	require.NoError(t, s.SaveSnapshot(ctx, addr, snap(time.Hour, 4)))

	prev, found, err := s.SnapshotBefore(ctx, addr, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "3", prev.TotalYield.String())

	hist, _ := s.History(ctx, addr, 30)
	require.Len(t, hist, 3, "snapshots past 30 days are trimmed on save")
	assert.Equal(t, "4", hist[0].TotalYield.String())

	n, err := s.CleanupHistory(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, found, _ = s.SnapshotBefore(ctx, "0xother", now)
	assert.False(t, found)
}

func TestMemoryListsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	sub := models.PushSubscription{Endpoint: "e", Keys: models.PushKeys{P256dh: "k", Auth: "a"}}
	older := "0x00000000000000000000000000000000000000aa"
	newer := "0x00000000000000000000000000000000000000bb"
	require.NoError(t, s.SaveSubscription(ctx, older, sub, []int{1}))
	now = now.Add(time.Minute)
	require.NoError(t, s.SaveSubscription(ctx, newer, sub, []int{1}))
	now = now.Add(time.Minute)
	require.NoError(t, s.SaveSubscription(ctx, older, sub, []int{1, 8453}), "update keeps created_at")

	all, err := s.ListSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer, all[0].Address)
	assert.Equal(t, older, all[1].Address)

	_, err = s.SaveEmailSubscription(ctx, older, "first@b.co")
	require.NoError(t, err)
	now = now.Add(time.Minute)
	_, err = s.SaveEmailSubscription(ctx, older, "second@b.co")
	require.NoError(t, err)

	mine, _ := s.EmailSubscriptionsFor(ctx, older)
	require.Len(t, mine, 2)
	assert.Equal(t, "second@b.co", mine[0].Email)

	active, _ := s.ActiveEmailSubscriptions(ctx)
	require.Len(t, active, 2)
	assert.Equal(t, "first@b.co", active[0].Email)
}
