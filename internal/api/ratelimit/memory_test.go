package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLimiterExhaustsAndIsolatesKeys(t *testing.T) {
	l := NewInMemory(3, time.Hour)
	defer l.Stop()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		allowed, err := l.Allow(ctx, "login:arun:10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d should pass", i+1)
	}

	allowed, err := l.Allow(ctx, "login:arun:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed, "bucket should be empty")

	// Another key has its own bucket.
	allowed, err = l.Allow(ctx, "login:divya:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestInMemoryLimiterRefills(t *testing.T) {
	l := NewInMemory(1, 100*time.Millisecond)
	defer l.Stop()

	ctx := context.Background()
	allowed, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = l.Allow(ctx, "k")
	require.NoError(t, err)
	require.False(t, allowed)

	time.Sleep(150 * time.Millisecond)

	allowed, err = l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, allowed, "token should refill after the window")
}
