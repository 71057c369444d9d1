package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter is a fixed-window counter shared by every replica
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
	rate   int
	window time.Duration
	now    func() time.Time
}

// NewRedisRateLimiter connects to redisURL and checks the connection
func NewRedisRateLimiter(redisURL string, rate int, window time.Duration) (*RedisRateLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisRateLimiterWithClient(client, rate, window), nil
}

// NewRedisRateLimiterWithClient creates a limiter from an existing client
func NewRedisRateLimiterWithClient(client *redis.Client, rate int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		prefix: "ratelimit:",
		rate:   rate,
		window: window,
		now:    time.Now,
	}
}

// key buckets the counter by window start
func (l *RedisRateLimiter) key(key string, now time.Time) string {
	slot := now.UnixNano() / int64(l.window)
	return fmt.Sprintf("%s%s:%d", l.prefix, key, slot)
}

// Allow counts one request for key in the current window
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.key(key, l.now())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("count request: %w", err)
	}

	return incr.Val() <= int64(l.rate), nil
}

// Close closes the Redis connection
func (l *RedisRateLimiter) Close() error {
	return l.client.Close()
}
