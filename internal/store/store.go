package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"yield-monitor-go/internal/models"
)

var ErrNotFound = errors.New("not found")

// historyRetention bounds in-memory history.
const historyRetention = 30 * 24 * time.Hour

// SubscriptionStore handles push subscriptions, one per address.
type SubscriptionStore interface {
	SaveSubscription(ctx context.Context, address string, sub models.PushSubscription, chainIDs []int) error
	GetSubscription(ctx context.Context, address string) (models.UserSubscription, error)
	RemoveSubscription(ctx context.Context, address string) error
	ListSubscriptions(ctx context.Context) ([]models.UserSubscription, error)
	UpdateLastNotified(ctx context.Context, address string, at time.Time) error
}

// EmailStore handles email digest subscriptions, unique per address/email
// pair.
type EmailStore interface {
	SaveEmailSubscription(ctx context.Context, address, email string) (models.EmailSubscription, error)
	RemoveEmailSubscription(ctx context.Context, address, email string) error
	EmailSubscriptionsFor(ctx context.Context, address string) ([]models.EmailSubscription, error)
	ActiveEmailSubscriptions(ctx context.Context) ([]models.EmailSubscription, error)
	UpdateLastEmailed(ctx context.Context, id int, at time.Time) error
}

// HistoryStore keeps yield snapshots.
type HistoryStore interface {
	SaveSnapshot(ctx context.Context, address string, snap models.YieldSnapshot) error
	SnapshotBefore(ctx context.Context, address string, t time.Time) (models.YieldSnapshot, bool, error)
	History(ctx context.Context, address string, days int) ([]models.YieldSnapshot, error)
	CleanupHistory(ctx context.Context, days int) (int64, error)
}

type Store interface {
	SubscriptionStore
	EmailStore
	HistoryStore
	Migrate(ctx context.Context) error
	Close() error
}

// RedisCache stores JSON values with a TTL. It backs the per-chain vault
// listing cache.
type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(opts *redis.Options) *RedisCache {
	return &RedisCache{client: redis.NewClient(opts), prefix: "yield:"}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get decodes the value at key into dst. A missing key reports false with
// no error.
func (c *RedisCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dst); err != nil {
		// Stale entry from an older format; drop it.
		c.client.Del(ctx, c.prefix+key)
		return false, nil
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, data, ttl).Err()
}

// Purge deletes every cached key.
func (c *RedisCache) Purge(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	keys := []string{}
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return c.client.Del(ctx, keys...).Err()
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
