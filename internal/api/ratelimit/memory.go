package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemoryLimiter implements Limiter with per-key token buckets held in
// process memory.
type InMemoryLimiter struct {
	mu          sync.RWMutex
	buckets     map[string]*tokenBucket
	capacity    float64
	window      time.Duration
	cleanup     *time.Ticker
	stopCleanup chan struct{}
}

// NewInMemory creates an in-memory limiter allowing capacity attempts per
// window for each key. A background goroutine evicts idle buckets.
func NewInMemory(capacity int, window time.Duration) *InMemoryLimiter {
	l := &InMemoryLimiter{
		buckets:     make(map[string]*tokenBucket),
		capacity:    float64(capacity),
		window:      window,
		cleanup:     time.NewTicker(5 * time.Minute),
		stopCleanup: make(chan struct{}),
	}

	go l.cleanupIdleBuckets()

	return l
}

// Stop stops the background cleanup goroutine. Call this when shutting down.
func (l *InMemoryLimiter) Stop() {
	l.cleanup.Stop()
	close(l.stopCleanup)
}

// Allow consumes one token for key if available.
func (l *InMemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	bucket, exists := l.buckets[key]
	if !exists {
		bucket = &tokenBucket{
			tokens:     l.capacity,
			lastRefill: time.Now(),
			capacity:   l.capacity,
			refillRate: l.capacity / l.window.Seconds(),
			window:     l.window,
		}
		l.buckets[key] = bucket
	}
	l.mu.Unlock()

	return bucket.consume(), nil
}

// cleanupIdleBuckets periodically removes buckets idle for twice their window.
func (l *InMemoryLimiter) cleanupIdleBuckets() {
	for {
		select {
		case <-l.cleanup.C:
			l.mu.Lock()
			now := time.Now()
			for key, bucket := range l.buckets {
				bucket.mu.Lock()
				if now.Sub(bucket.lastRefill) > bucket.window*2 {
					delete(l.buckets, key)
				}
				bucket.mu.Unlock()
			}
			l.mu.Unlock()
		case <-l.stopCleanup:
			return
		}
	}
}
