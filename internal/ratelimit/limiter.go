// Package ratelimit implements the fixed-window quota accounting that guards
// the authentication endpoints. A bucket of capacity C admits up to C requests
// per window and then rejects until the entire window has elapsed; there is no
// sliding replenishment.
package ratelimit

import (
	"context"
	"time"
)

// Config is one operation's (capacity, window) pair.
type Config struct {
	Capacity int
	Window   time.Duration
}

// Limiter is the admission check shared by the in-memory and Redis-backed
// implementations.
type Limiter interface {
	// Consume admits or rejects one request for key, creating the bucket on
	// first sight.
	Consume(ctx context.Context, key string) bool
	// RemainingQuota reports how many requests key may still make in the
	// current window. Unknown keys report the full capacity.
	RemainingQuota(ctx context.Context, key string) int
	// RetryAfter reports how long until key's window resets. Zero when the
	// key has no active window.
	RetryAfter(ctx context.Context, key string) time.Duration
}
