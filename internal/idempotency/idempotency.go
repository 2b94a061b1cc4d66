// Package idempotency provides a best-effort Redis dedup cache in front of
// the Postgres idempotency_key unique constraint that is every store's
// actual source of truth (the spec requires idempotency keys be checked
// inside the owning transaction before any side effect — this cache only
// short-circuits the common-case replay before that transaction opens, it
// never replaces it). Nil-safe: when REDIS_URL is unset the cache is a
// no-op and every call falls through to Postgres.
package idempotency

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// TTL bounds how long a key is remembered; it only needs to outlive the
// retry window a caller might realistically use, not forever — Postgres
// remains authoritative indefinitely.
const TTL = 24 * time.Hour

// Cache is a best-effort seen-before check for idempotency keys.
type Cache struct {
	client *redis.Client
}

// New returns a Cache backed by redisURL, or a nil-safe no-op Cache when
// redisURL is empty.
func New(redisURL string) (*Cache, error) {
	if redisURL == "" {
		return &Cache{}, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &Cache{client: redis.NewClient(opts)}, nil
}

// SeenBefore reports whether key was already marked by Mark. Errors talking
// to Redis are swallowed and treated as "not seen" — the Postgres
// constraint is the real guard, this is only a latency optimization.
func (c *Cache) SeenBefore(ctx context.Context, key string) bool {
	if c == nil || c.client == nil {
		return false
	}
	n, err := c.client.Exists(ctx, cacheKey(key)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// Mark records key as seen for TTL. Best-effort; errors are swallowed.
func (c *Cache) Mark(ctx context.Context, key string) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Set(ctx, cacheKey(key), "1", TTL).Err()
}

// Close releases the underlying Redis connection, if any.
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func cacheKey(key string) string {
	return "idemkey:" + key
}
