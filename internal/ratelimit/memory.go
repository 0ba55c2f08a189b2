package ratelimit

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"
)

const shardCount = 64

type bucket struct {
	remaining   int
	windowStart time.Time
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// MemoryLimiter is a sharded fixed-window counter. Each key maps to exactly
// one shard, so concurrent callers hammering the same key serialize on one
// mutex while distinct keys proceed in parallel. Bucket creation happens under
// the same lock as the admission check: two concurrent first requests for an
// unseen key collapse to a single bucket.
type MemoryLimiter struct {
	capacity int
	window   time.Duration
	now      func() time.Time
	shards   [shardCount]shard
}

func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	l := &MemoryLimiter{
		capacity: cfg.Capacity,
		window:   cfg.Window,
		now:      time.Now,
	}
	for i := range l.shards {
		l.shards[i].buckets = make(map[string]*bucket)
	}
	return l
}

// WithClock overrides the limiter clock. Used by tests to advance windows.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

func (l *MemoryLimiter) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &l.shards[h.Sum32()%shardCount]
}

func (l *MemoryLimiter) Consume(_ context.Context, key string) bool {
	now := l.now()
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{remaining: l.capacity, windowStart: now}
		s.buckets[key] = b
	} else if now.Sub(b.windowStart) >= l.window {
		b.remaining = l.capacity
		b.windowStart = now
	}

	if b.remaining > 0 {
		b.remaining--
		return true
	}
	return false
}

func (l *MemoryLimiter) RemainingQuota(_ context.Context, key string) int {
	now := l.now()
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok || now.Sub(b.windowStart) >= l.window {
		return l.capacity
	}
	return b.remaining
}

func (l *MemoryLimiter) RetryAfter(_ context.Context, key string) time.Duration {
	now := l.now()
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		return 0
	}
	until := b.windowStart.Add(l.window).Sub(now)
	if until < 0 {
		return 0
	}
	return until
}

// Sweep drops buckets whose window ended at least maxIdle ago. It runs off
// the request path and does not change admit/reject behavior inside an
// active window.
func (l *MemoryLimiter) Sweep(maxIdle time.Duration) int {
	now := l.now()
	removed := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		for key, b := range s.buckets {
			if now.Sub(b.windowStart) >= maxIdle {
				delete(s.buckets, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// StartJanitor sweeps stale buckets every interval until ctx is cancelled.
// Without it the bucket map grows by one entry per distinct key forever.
func (l *MemoryLimiter) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := l.Sweep(3 * l.window); removed > 0 {
					slog.Info("rate limit buckets swept", "removed", removed)
				}
			}
		}
	}()
}
