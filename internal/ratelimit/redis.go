package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	stderrors "errors"

	"github.com/hirewire/auth-service/internal/infrastructure/redis"
)

// RedisLimiter is the fixed-window counter shared across service instances:
// INCR plus a conditional EXPIRE on the first hit of each window. Window
// semantics match MemoryLimiter; the key TTL is the window.
//
// On Redis failure the limiter admits and logs. This service's login path is
// its only door, so a Redis outage degrades brute-force protection instead of
// rejecting every login.
type RedisLimiter struct {
	client   redis.RedisClient
	prefix   string
	capacity int
	window   time.Duration
}

func NewRedisLimiter(client redis.RedisClient, operation string, cfg Config) *RedisLimiter {
	return &RedisLimiter{
		client:   client,
		prefix:   "rl:" + operation + ":",
		capacity: cfg.Capacity,
		window:   cfg.Window,
	}
}

func (l *RedisLimiter) key(key string) string {
	return l.prefix + key
}

func (l *RedisLimiter) Consume(ctx context.Context, key string) bool {
	count, err := l.client.Incr(ctx, l.key(key))
	if err != nil {
		slog.Error("rate limit counter unavailable, admitting", "key", key, "error", err)
		return true
	}
	if count == 1 {
		if err := l.client.Expire(ctx, l.key(key), l.window); err != nil {
			slog.Error("failed to set rate limit window", "key", key, "error", err)
		}
	}
	return count <= int64(l.capacity)
}

func (l *RedisLimiter) RemainingQuota(ctx context.Context, key string) int {
	val, err := l.client.Get(ctx, l.key(key))
	if stderrors.Is(err, redis.ErrKeyNotFound) {
		return l.capacity
	}
	if err != nil {
		slog.Error("failed to read rate limit counter", "key", key, "error", err)
		return l.capacity
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		slog.Error("corrupt rate limit counter", "key", key, "value", val)
		return l.capacity
	}
	if count >= l.capacity {
		return 0
	}
	return l.capacity - count
}

func (l *RedisLimiter) RetryAfter(ctx context.Context, key string) time.Duration {
	ttl, err := l.client.TTL(ctx, l.key(key))
	if err != nil || ttl < 0 {
		return 0
	}
	return ttl
}

var _ Limiter = (*RedisLimiter)(nil)
var _ Limiter = (*MemoryLimiter)(nil)
