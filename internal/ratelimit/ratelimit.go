// Package ratelimit throttles inbound collector calls, one bucket per
// collector identity. The limiter is independent of the ledger's own
// concurrency control: it is the only back-pressure mechanism in the core.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter reports whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Window is an in-memory sliding window, suitable for single-instance
// deployments and tests.
type Window struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

func NewWindow(limit int, window time.Duration) *Window {
	return &Window{
		limit:  limit,
		window: window,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

func (w *Window) Allow(_ context.Context, key string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.window)

	kept := w.hits[key][:0]
	for _, t := range w.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= w.limit {
		w.hits[key] = kept
		return false, nil
	}

	w.hits[key] = append(kept, now)
	return true, nil
}

// RedisWindow is a fixed-window counter shared across service instances:
// INCR on a per-key bucket, EXPIRE on first hit.
type RedisWindow struct {
	Client *redis.Client
	Limit  int
	Window time.Duration
}

func NewRedisWindow(client *redis.Client, limit int, window time.Duration) *RedisWindow {
	return &RedisWindow{Client: client, Limit: limit, Window: window}
}

func (r *RedisWindow) Allow(ctx context.Context, key string) (bool, error) {
	bucket := "ratelimit:" + key

	count, err := r.Client.Incr(ctx, bucket).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.Client.Expire(ctx, bucket, r.Window).Err(); err != nil {
			return false, err
		}
	}

	return count <= int64(r.Limit), nil
}
