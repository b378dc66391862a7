package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter is a fixed-window counter backed by Redis, shared across server
// instances and durable across restarts, with TTL doing the window reset.
type Limiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// New connects to Redis and verifies connectivity.
func New(ctx context.Context, redisURL string, limit int, window time.Duration) (*Limiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Limiter{client: client, limit: limit, window: window}, nil
}

// Allow atomically counts a hit for key and reports whether it is within the
// window limit. The first hit in a window sets the TTL.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	k := "rate_limit:" + key
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(l.limit), nil
}

// Close releases the underlying connection.
func (l *Limiter) Close() error {
	return l.client.Close()
}
