package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements Limiter on Redis so the buckets survive restarts
// and apply across instances. The bucket state lives in a hash and all
// refill/consume logic runs in a Lua script for atomicity.
type RedisLimiter struct {
	client    *redis.Client
	keyPrefix string
	capacity  float64
	window    time.Duration
}

// NewRedis creates a Redis-backed limiter allowing capacity attempts per
// window for each key. keyPrefix defaults to "rate_limit:" when empty.
func NewRedis(client *redis.Client, keyPrefix string, capacity int, window time.Duration) *RedisLimiter {
	if keyPrefix == "" {
		keyPrefix = "rate_limit:"
	}

	return &RedisLimiter{
		client:    client,
		keyPrefix: keyPrefix,
		capacity:  float64(capacity),
		window:    window,
	}
}

// The script atomically loads the bucket, refills it from elapsed time,
// consumes one token when available and refreshes the key expiry.
const consumeScript = `
	local key = KEYS[1]
	local capacity = tonumber(ARGV[1])
	local refillRate = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local windowSeconds = tonumber(ARGV[4])

	local bucketData = redis.call('HMGET', key, 'tokens', 'lastRefill')
	local tokens = tonumber(bucketData[1])
	local lastRefill = tonumber(bucketData[2])
	if tokens == nil then
		tokens = capacity
	end
	if lastRefill == nil then
		lastRefill = now
	end

	local elapsed = (now - lastRefill) / 1000000000
	if elapsed > 0 then
		tokens = math.min(capacity, tokens + elapsed * refillRate)
	end

	local allowed = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	end

	redis.call('HSET', key, 'tokens', tostring(tokens), 'lastRefill', tostring(now))
	redis.call('EXPIRE', key, math.ceil(windowSeconds * 1.1))

	return allowed
`

// Allow consumes one token for key if available.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	result, err := l.client.Eval(ctx, consumeScript, []string{l.keyPrefix + key},
		l.capacity,
		l.capacity/l.window.Seconds(),
		time.Now().UnixNano(),
		l.window.Seconds(),
	).Result()
	if err != nil {
		return false, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	return result.(int64) == 1, nil
}

// Ping checks if the Redis connection is healthy.
func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
