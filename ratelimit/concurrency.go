package ratelimit

import (
	"context"
	"time"

	"github.com/quotaguard/rls-gateway/domain"
	"github.com/redis/go-redis/v9"
)

// concurrencyStep is the pure decision function for concurrency given the
// counter value immediately after an INCRBY.
func concurrencyStep(n int64, limit int, ttlSeconds int, nowSec int64) domain.Decision {
	allowed := n <= int64(limit)
	remaining := limit - int(n)
	if remaining < 0 {
		remaining = 0
	}
	resetAt := nowSec + int64(ttlSeconds)

	var retryAfterMs int64
	if !allowed {
		retryAfterMs = int64(ttlSeconds) * 1000
	}

	return domain.Decision{
		Allowed:      allowed,
		Remaining:    remaining,
		Limit:        limit,
		ResetAt:      resetAt,
		RetryAfterMs: retryAfterMs,
		Algorithm:    domain.Concurrency,
	}
}

// Concurrency evaluates the concurrency (in-flight token / semaphore)
// primitive. Acquire is a single INCRBY with a conditional rollback DECRBY
// on block; no transaction wrapper is required since each step is already
// an atomic Redis command and the rollback is explicit per the contract.
type Concurrency struct {
	Redis *redis.Client
}

func (c *Concurrency) Acquire(ctx context.Context, key string, limit int, ttlSeconds int, cost int, nowSec int64) (domain.Decision, error) {
	n, err := c.Redis.IncrBy(ctx, key, int64(cost)).Result()
	if err != nil {
		return domain.Decision{}, upstreamErr("concurrency acquire failed", err)
	}

	ttl, err := c.Redis.TTL(ctx, key).Result()
	if err != nil {
		return domain.Decision{}, upstreamErr("concurrency ttl check failed", err)
	}
	if ttl < 0 {
		if err := c.Redis.Expire(ctx, key, time.Duration(ttlSeconds)*time.Second).Err(); err != nil {
			return domain.Decision{}, upstreamErr("concurrency ttl set failed", err)
		}
	}

	decision := concurrencyStep(n, limit, ttlSeconds, nowSec)
	if !decision.Allowed {
		if err := c.Redis.DecrBy(ctx, key, int64(cost)).Err(); err != nil {
			return domain.Decision{}, upstreamErr("concurrency rollback failed", err)
		}
	}
	return decision, nil
}

// Release decrements the in-flight counter. If the result goes negative the
// key is deleted and 0 is returned, preserving the non-negativity invariant.
func (c *Concurrency) Release(ctx context.Context, key string, cost int) (int64, error) {
	n, err := c.Redis.DecrBy(ctx, key, int64(cost)).Result()
	if err != nil {
		return 0, upstreamErr("concurrency release failed", err)
	}
	if n < 0 {
		if err := c.Redis.Del(ctx, key).Err(); err != nil {
			return 0, upstreamErr("concurrency release cleanup failed", err)
		}
		return 0, nil
	}
	return n, nil
}
