package middleware

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimitStore implements RateLimitStore backed by Redis, so the
// limit is shared across API replicas. It uses a fixed window counter
// (INCR + EXPIRE) keyed per client.
//
// The store fails open: if Redis is unreachable the request is allowed
// rather than blocking all traffic on a cache outage. Failures are
// reported through the optional onError callback so they can be counted.
type RedisRateLimitStore struct {
	client  *redis.Client
	onError func(err error)
}

// NewRedisRateLimitStore creates a new Redis-backed rate limit store.
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

// OnError registers a callback invoked when a Redis operation fails.
// Intended for wiring an error metric.
func (s *RedisRateLimitStore) OnError(fn func(err error)) {
	s.onError = fn
}

// Allow checks if a request from the given key should be allowed.
// Implements the RateLimitStore interface.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// EXPIRE NX only sets the expiry when the key has none, so the
	// window is anchored at the first request.
	pipe.ExpireNX(ctx, key, config.WindowDuration)

	if _, err := pipe.Exec(ctx); err != nil {
		if s.onError != nil {
			s.onError(err)
		}
		return true, 0
	}

	count := incr.Val()
	if count <= int64(config.RequestsPerWindow) {
		return true, 0
	}

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		if err != nil && s.onError != nil {
			s.onError(err)
		}
		return false, 1
	}

	retryAfter := int(ttl / time.Second)
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, retryAfter
}
