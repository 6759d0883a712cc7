package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool
	Remaining int64
	RetryIn   time.Duration
}

// RateLimiter provides fixed-window rate limiting using Redis. Expensive
// endpoints (bulk import) are limited per user.
type RateLimiter struct {
	client    *Client
	keyPrefix string
	limit     int64
	window    time.Duration
}

func NewRateLimiter(client *Client, keyPrefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client:    client,
		keyPrefix: keyPrefix,
		limit:     int64(limit),
		window:    window,
	}
}

// Allow counts one hit for the key's current window and reports whether it
// stays within the limit.
func (r *RateLimiter) Allow(ctx context.Context, key string) (RateLimitResult, error) {
	windowKey := fmt.Sprintf("%s:%s:%d", r.keyPrefix, key, time.Now().Unix()/int64(r.window.Seconds()))

	count, err := r.client.Incr(ctx, windowKey)
	if err != nil {
		return RateLimitResult{}, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, windowKey, r.window); err != nil {
			return RateLimitResult{}, err
		}
	}

	if count > r.limit {
		ttl, err := r.client.TTL(ctx, windowKey)
		if err != nil {
			ttl = r.window
		}
		return RateLimitResult{Allowed: false, Remaining: 0, RetryIn: ttl}, nil
	}
	return RateLimitResult{Allowed: true, Remaining: r.limit - count}, nil
}
