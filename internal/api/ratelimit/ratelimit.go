// Package ratelimit throttles login attempts with token buckets. The
// in-memory limiter covers a single instance; the redis limiter keeps the
// buckets consistent across replicas.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter reports whether the caller identified by key may proceed, consuming
// one token when it may.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// tokenBucket is a single refilling bucket.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	capacity   float64
	refillRate float64 // tokens per second
	window     time.Duration
}

// consume attempts to take one token. Returns false when the bucket is empty.
func (tb *tokenBucket) consume() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()

	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.refillRate)
	tb.lastRefill = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}

	return false
}
