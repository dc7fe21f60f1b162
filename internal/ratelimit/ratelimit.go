package ratelimit

import (
	"context"
	"time"

	redisadapter "eventcheckout/internal/adapters/redis"
)

// RateLimiter is a fixed-window counter backed by redis.
type RateLimiter struct {
	redis *redisadapter.Cache
}

func NewRateLimiter(redis *redisadapter.Cache) *RateLimiter {
	return &RateLimiter{redis: redis}
}

// Allow increments the window counter for key and reports whether the
// request is within rate. Redis faults fail open: checkout must not
// depend on the limiter being up.
func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) bool {
	fullKey := "rl:" + key

	pipe := rl.redis.Client().Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, period)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return true
	}

	return incr.Val() <= int64(rate)
}
