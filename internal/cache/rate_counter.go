package cache

import (
	"context"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// RateCounter implements fixed-window request counting on redis.
type RateCounter struct {
	client redisv9.Cmdable
	prefix string
}

func NewRateCounter(client redisv9.Cmdable, prefix string) *RateCounter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RateCounter{client: client, prefix: prefix}
}

// Hit counts one request for key in the current window and returns the
// count so far plus the time until the window resets.
func (r *RateCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	k := fmt.Sprintf("%s:%s", r.prefix, key)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, window)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("redis rate count failed: %w", err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		remaining = window
	}
	return incr.Val(), remaining, nil
}
