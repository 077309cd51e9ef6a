package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/henjicc/henji-server/internal/port/outbound"
)

const rateLimitKeyPrefix = "henji:ratelimit:"

// rateLimiter implements outbound.RateLimiterPort with a sliding window kept in a sorted
// set per key.
type rateLimiter struct {
	client redis.UniversalClient
}

// NewRateLimiter creates a new rate limiter adapter.
func NewRateLimiter(client redis.UniversalClient) outbound.RateLimiterPort {
	return &rateLimiter{client: client}
}

func (r *rateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return r.AllowN(ctx, key, 1, limit, window)
}

func (r *rateLimiter) AllowN(ctx context.Context, key string, n int, limit int, window time.Duration) (bool, error) {
	fullKey := rateLimitKeyPrefix + key
	now := time.Now().UnixNano()
	count, err := r.count(ctx, fullKey, now, window)
	if err != nil {
		return false, err
	}
	if count+int64(n) > int64(limit) {
		return false, nil
	}

	members := make([]redis.Z, n)
	for i := range members {
		members[i] = redis.Z{
			Score:  float64(now + int64(i)),
			Member: fmt.Sprintf("%d-%d", now, i),
		}
	}

	pipe := r.client.Pipeline()
	pipe.ZAdd(ctx, fullKey, members...)
	pipe.Expire(ctx, fullKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("record request: %w", err)
	}
	return true, nil
}

func (r *rateLimiter) GetRemaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	count, err := r.count(ctx, rateLimitKeyPrefix+key, time.Now().UnixNano(), window)
	if err != nil {
		return 0, err
	}
	return max(limit-int(count), 0), nil
}

// count drops entries older than the window and returns how many remain.
func (r *rateLimiter) count(ctx context.Context, fullKey string, now int64, window time.Duration) (int64, error) {
	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, fullKey, "0", fmt.Sprintf("%d", now-window.Nanoseconds()))
	countCmd := pipe.ZCard(ctx, fullKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("count window: %w", err)
	}
	return countCmd.Val(), nil
}

// Compile-time check
var _ outbound.RateLimiterPort = (*rateLimiter)(nil)
