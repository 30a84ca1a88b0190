// Package ratelimit counts requests per key in fixed windows, either in Redis
// (shared by all replicas) or in process.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ronl/business-api/internal/domain/service"
)

// LocalLimiter is an in-process fixed-window counter. Windows start with the
// first request for a key and expire with the cache entry.
type LocalLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	counters *cache.Cache
	now      func() time.Time
}

type windowCounter struct {
	count   int
	resetAt time.Time
}

// NewLocalLimiter allows limit requests per key per window.
func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		limit:    limit,
		window:   window,
		counters: cache.New(window, window),
		now:      time.Now,
	}
}

// Allow counts one request for key.
func (l *LocalLimiter) Allow(_ context.Context, key string) (*service.RateLimitDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var counter *windowCounter
	if v, ok := l.counters.Get(key); ok {
		counter = v.(*windowCounter)
	}
	if counter == nil || !now.Before(counter.resetAt) {
		counter = &windowCounter{resetAt: now.Add(l.window)}
		l.counters.Set(key, counter, l.window)
	}
	counter.count++

	return decide(l.limit, counter.count, counter.resetAt), nil
}

// Len returns the number of live windows.
func (l *LocalLimiter) Len() int {
	return l.counters.ItemCount()
}

func decide(limit, count int, resetAt time.Time) *service.RateLimitDecision {
	return &service.RateLimitDecision{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   resetAt,
	}
}

var _ service.RateLimiter = (*LocalLimiter)(nil)
