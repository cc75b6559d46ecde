package store

import (
	"context"
	"database/sql"
	_ "embed"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"yield-monitor-go/internal/models"
)

//go:embed schema.sql
var schemaSQL string

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an open handle.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate creates tables if they don't exist and applies schema updates.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return errors.Wrap(err, "failed to create schema")
	}

	migrations := []string{
		`ALTER TABLE email_subscriptions ADD COLUMN IF NOT EXISTS last_emailed TIMESTAMP WITH TIME ZONE;`,
		`ALTER TABLE user_subscriptions ADD COLUMN IF NOT EXISTS updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW();`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return errors.Wrap(err, "migration failed")
		}
	}

	return nil
}

// Push subscriptions

func (s *PostgresStore) SaveSubscription(ctx context.Context, address string, sub models.PushSubscription, chainIDs []int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_subscriptions (address, endpoint, p256dh_key, auth_key, chain_ids)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (address)
		 DO UPDATE SET
		   endpoint = EXCLUDED.endpoint,
		   p256dh_key = EXCLUDED.p256dh_key,
		   auth_key = EXCLUDED.auth_key,
		   chain_ids = EXCLUDED.chain_ids,
		   updated_at = NOW()`,
		address, sub.Endpoint, sub.Keys.P256dh, sub.Keys.Auth, pq.Array(toInt64s(chainIDs)),
	)
	return errors.Wrap(err, "failed to save user subscription")
}

const subscriptionColumns = `id, address, endpoint, p256dh_key, auth_key, chain_ids, created_at, updated_at, last_notified`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (models.UserSubscription, error) {
	var (
		sub          models.UserSubscription
		chainIDs     pq.Int64Array
		updatedAt    sql.NullTime
		lastNotified sql.NullTime
	)
	err := row.Scan(&sub.ID, &sub.Address, &sub.Subscription.Endpoint, &sub.Subscription.Keys.P256dh,
		&sub.Subscription.Keys.Auth, &chainIDs, &sub.CreatedAt, &updatedAt, &lastNotified)
	if err != nil {
		return models.UserSubscription{}, err
	}
	sub.ChainIDs = make([]int, len(chainIDs))
	for i, id := range chainIDs {
		sub.ChainIDs[i] = int(id)
	}
	if updatedAt.Valid {
		sub.UpdatedAt = updatedAt.Time
	}
	if lastNotified.Valid {
		t := lastNotified.Time
		sub.LastNotified = &t
	}
	return sub, nil
}

func (s *PostgresStore) GetSubscription(ctx context.Context, address string) (models.UserSubscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM user_subscriptions WHERE address = $1`, address)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return models.UserSubscription{}, ErrNotFound
	}
	if err != nil {
		return models.UserSubscription{}, errors.Wrap(err, "failed to get user subscription")
	}
	return sub, nil
}

func (s *PostgresStore) RemoveSubscription(ctx context.Context, address string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM user_subscriptions WHERE address = $1`, address)
	return errors.Wrap(err, "failed to remove user subscription")
}

func (s *PostgresStore) ListSubscriptions(ctx context.Context) ([]models.UserSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM user_subscriptions ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list subscriptions")
	}
	defer rows.Close()

	var subs []models.UserSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *PostgresStore) UpdateLastNotified(ctx context.Context, address string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE user_subscriptions SET last_notified = $2 WHERE address = $1`, address, at)
	return errors.Wrap(err, "failed to update last notified")
}

// Email subscriptions

const emailColumns = `id, address, email, is_active, created_at, last_emailed`

func scanEmail(row rowScanner) (models.EmailSubscription, error) {
	var (
		sub         models.EmailSubscription
		lastEmailed sql.NullTime
	)
	if err := row.Scan(&sub.ID, &sub.Address, &sub.Email, &sub.IsActive, &sub.CreatedAt, &lastEmailed); err != nil {
		return models.EmailSubscription{}, err
	}
	if lastEmailed.Valid {
		t := lastEmailed.Time
		sub.LastEmailed = &t
	}
	return sub, nil
}

// SaveEmailSubscription inserts the pair or reactivates an existing one.
func (s *PostgresStore) SaveEmailSubscription(ctx context.Context, address, email string) (models.EmailSubscription, error) {
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO email_subscriptions (address, email, is_active)
		 VALUES ($1, $2, TRUE)
		 ON CONFLICT (address, email) DO UPDATE SET is_active = TRUE
		 RETURNING `+emailColumns,
		address, email,
	)
	sub, err := scanEmail(row)
	if err != nil {
		return models.EmailSubscription{}, errors.Wrap(err, "failed to save email subscription")
	}
	return sub, nil
}

func (s *PostgresStore) RemoveEmailSubscription(ctx context.Context, address, email string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE email_subscriptions SET is_active = FALSE WHERE address = $1 AND email = $2`, address, email)
	if err != nil {
		return errors.Wrap(err, "failed to remove email subscription")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) queryEmails(ctx context.Context, query string, args ...any) ([]models.EmailSubscription, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list email subscriptions")
	}
	defer rows.Close()

	var subs []models.EmailSubscription
	for rows.Next() {
		sub, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *PostgresStore) EmailSubscriptionsFor(ctx context.Context, address string) ([]models.EmailSubscription, error) {
	return s.queryEmails(ctx,
		`SELECT `+emailColumns+` FROM email_subscriptions
		 WHERE address = $1 AND is_active = TRUE ORDER BY created_at DESC`, address)
}

func (s *PostgresStore) ActiveEmailSubscriptions(ctx context.Context) ([]models.EmailSubscription, error) {
	return s.queryEmails(ctx,
		`SELECT `+emailColumns+` FROM email_subscriptions WHERE is_active = TRUE ORDER BY created_at`)
}

func (s *PostgresStore) UpdateLastEmailed(ctx context.Context, id int, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE email_subscriptions SET last_emailed = $2 WHERE id = $1`, id, at)
	return errors.Wrap(err, "failed to update last emailed")
}

// Yield history

func (s *PostgresStore) SaveSnapshot(ctx context.Context, address string, snap models.YieldSnapshot) error {
	var chainData any
	if len(snap.ChainData) > 0 {
		chainData = []byte(snap.ChainData)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO yield_history (address, total_balance, total_deposited, total_yield, timestamp, chain_data)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		address, snap.TotalBalance, snap.TotalDeposited, snap.TotalYield, snap.Timestamp, chainData,
	)
	return errors.Wrap(err, "failed to save yield history")
}

const snapshotColumns = `total_balance, total_deposited, total_yield, timestamp, chain_data`

func scanSnapshot(row rowScanner) (models.YieldSnapshot, error) {
	var (
		snap      models.YieldSnapshot
		chainData []byte
	)
	if err := row.Scan(&snap.TotalBalance, &snap.TotalDeposited, &snap.TotalYield, &snap.Timestamp, &chainData); err != nil {
		return models.YieldSnapshot{}, err
	}
	if len(chainData) > 0 {
		snap.ChainData = chainData
	}
	return snap, nil
}

// SnapshotBefore returns the newest snapshot taken at or before t.
func (s *PostgresStore) SnapshotBefore(ctx context.Context, address string, t time.Time) (models.YieldSnapshot, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM yield_history
		 WHERE address = $1 AND timestamp <= $2
		 ORDER BY timestamp DESC LIMIT 1`, address, t)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return models.YieldSnapshot{}, false, nil
	}
	if err != nil {
		return models.YieldSnapshot{}, false, errors.Wrap(err, "failed to get previous yield")
	}
	return snap, true, nil
}

func (s *PostgresStore) History(ctx context.Context, address string, days int) ([]models.YieldSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM yield_history
		 WHERE address = $1 AND timestamp >= NOW() - $2 * INTERVAL '1 day'
		 ORDER BY timestamp DESC`, address, days)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get yield history")
	}
	defer rows.Close()

	var out []models.YieldSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// CleanupHistory deletes snapshots older than days and returns how many
// rows went.
func (s *PostgresStore) CleanupHistory(ctx context.Context, days int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM yield_history WHERE timestamp < NOW() - $1 * INTERVAL '1 day'`, days)
	if err != nil {
		return 0, errors.Wrap(err, "failed to cleanup old data")
	}
	return res.RowsAffected()
}

func toInt64s(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

var _ Store = (*PostgresStore)(nil)
