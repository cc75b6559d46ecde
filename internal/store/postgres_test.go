package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yield-monitor-go/internal/models"
)

const addr = "0xabcdef0000000000000000000000000000000001"

func newMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStoreFromDB(db), mock
}

func TestMigrateRunsSchemaAndAlters(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS user_subscriptions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ALTER TABLE email_subscriptions ADD COLUMN IF NOT EXISTS last_emailed").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ALTER TABLE user_subscriptions ADD COLUMN IF NOT EXISTS updated_at").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSubscriptionUpserts(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("(?s)INSERT INTO user_subscriptions .* ON CONFLICT \\(address\\)").
		WithArgs(addr, "https://push.example/1", "p256", "auth", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	sub := models.PushSubscription{Endpoint: "https://push.example/1", Keys: models.PushKeys{P256dh: "p256", Auth: "auth"}}
	require.NoError(t, s.SaveSubscription(context.Background(), addr, sub, []int{1, 8453}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func subscriptionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "address", "endpoint", "p256dh_key", "auth_key", "chain_ids", "created_at", "updated_at", "last_notified"})
}

func TestGetSubscription(t *testing.T) {
	s, mock := newMock(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	notified := created.Add(time.Hour)
	mock.ExpectQuery("SELECT .* FROM user_subscriptions WHERE address = \\$1").
		WithArgs(addr).
		WillReturnRows(subscriptionRows().AddRow(7, addr, "https://push.example/1", "p256", "auth", "{1,137}", created, created, notified))

	sub, err := s.GetSubscription(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, 7, sub.ID)
	assert.Equal(t, []int{1, 137}, sub.ChainIDs)
	assert.Equal(t, "p256", sub.Subscription.Keys.P256dh)
	require.NotNil(t, sub.LastNotified)
	assert.True(t, notified.Equal(*sub.LastNotified))
}

func TestGetSubscriptionNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("SELECT .* FROM user_subscriptions").WillReturnError(sql.ErrNoRows)

	_, err := s.GetSubscription(context.Background(), addr)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSubscriptions(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM user_subscriptions ORDER BY created_at DESC").
		WillReturnRows(subscriptionRows().
			AddRow(1, addr, "e1", "k", "a", "{1}", now, nil, nil).
			AddRow(2, "0x02", "e2", "k", "a", "{8453}", now, now, nil))

	subs, err := s.ListSubscriptions(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Nil(t, subs[0].LastNotified)
	assert.Equal(t, []int{8453}, subs[1].ChainIDs)
}

func TestSaveEmailSubscriptionReactivates(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery("(?s)INSERT INTO email_subscriptions .* ON CONFLICT \\(address, email\\) DO UPDATE SET is_active = TRUE").
		WithArgs(addr, "a@b.co").
		WillReturnRows(sqlmock.NewRows([]string{"id", "address", "email", "is_active", "created_at", "last_emailed"}).
			AddRow(3, addr, "a@b.co", true, now, nil))

	sub, err := s.SaveEmailSubscription(context.Background(), addr, "a@b.co")
	require.NoError(t, err)
	assert.Equal(t, 3, sub.ID)
	assert.True(t, sub.IsActive)
}

func TestRemoveEmailSubscriptionMissing(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("UPDATE email_subscriptions SET is_active = FALSE").
		WithArgs(addr, "a@b.co").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.RemoveEmailSubscription(context.Background(), addr, "a@b.co")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotBefore(t *testing.T) {
	s, mock := newMock(t)
	at := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	chainData, _ := json.Marshal([]models.ChainTotals{{ChainID: 1, Vaults: 2}})
	mock.ExpectQuery("SELECT .* FROM yield_history\\s+WHERE address = \\$1 AND timestamp <= \\$2").
		WithArgs(addr, at).
		WillReturnRows(sqlmock.NewRows([]string{"total_balance", "total_deposited", "total_yield", "timestamp", "chain_data"}).
			AddRow("1050.000000", "1000.000000", "50.000000", at.Add(-time.Hour), chainData))

	snap, found, err := s.SnapshotBefore(context.Background(), addr, at)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, snap.TotalYield.Equal(decimal.NewFromInt(50)))
	assert.JSONEq(t, string(chainData), string(snap.ChainData))
}

func TestSnapshotBeforeNone(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("SELECT .* FROM yield_history").WillReturnError(sql.ErrNoRows)

	_, found, err := s.SnapshotBefore(context.Background(), addr, time.Now())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSaveSnapshot(t *testing.T) {
	s, mock := newMock(t)
	at := time.Now().UTC()
	mock.ExpectExec("INSERT INTO yield_history").
		WithArgs(addr, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), at, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.SaveSnapshot(context.Background(), addr, models.YieldSnapshot{
		Timestamp:    at,
		TotalBalance: decimal.NewFromInt(10),
		ChainData:    json.RawMessage(`[]`),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupHistoryReturnsDeleted(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("DELETE FROM yield_history WHERE timestamp < NOW\\(\\) - \\$1 \\* INTERVAL '1 day'").
		WithArgs(90).
		WillReturnResult(sqlmock.NewResult(0, 12))

	n, err := s.CleanupHistory(context.Background(), 90)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}
