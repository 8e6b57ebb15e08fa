package ratelimit

import (
	"context"
	"time"

	"github.com/quotaguard/rls-gateway/domain"
	"github.com/redis/go-redis/v9"
)

// fixedWindowStep is the pure decision function for fixed_window. The key
// passed in by the caller already encodes the window (see keyderiver), so
// this only needs the post-increment counter value to decide.
func fixedWindowStep(counter int64, limit int, windowSeconds int, nowMs int64) domain.Decision {
	windowStartSec := (nowMs / 1000) - (nowMs/1000)%int64(windowSeconds)
	resetAt := windowStartSec + int64(windowSeconds)

	allowed := counter <= int64(limit)
	remaining := limit - int(counter)
	if remaining < 0 {
		remaining = 0
	}

	var retryAfterMs int64
	if !allowed {
		retryAfterMs = resetAt*1000 - nowMs
		if retryAfterMs < 0 {
			retryAfterMs = 0
		}
	}

	return domain.Decision{
		Allowed:      allowed,
		Remaining:    remaining,
		Limit:        limit,
		ResetAt:      resetAt,
		RetryAfterMs: retryAfterMs,
		Algorithm:    domain.FixedWindow,
	}
}

// FixedWindow evaluates the fixed_window primitive. The INCRBY and the
// EXPIRE are sent together in one MULTI/EXEC pipeline; the increment is
// never rolled back on block.
type FixedWindow struct {
	Redis *redis.Client
}

func (fw *FixedWindow) Evaluate(ctx context.Context, key string, limit int, windowSeconds int, cost int, nowMs int64) (domain.Decision, error) {
	pipe := fw.Redis.TxPipeline()
	incr := pipe.IncrBy(ctx, key, int64(cost))
	pipe.Expire(ctx, key, time.Duration(windowSeconds)*time.Second)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return domain.Decision{}, upstreamErr("fixed window increment failed", err)
	}

	return fixedWindowStep(incr.Val(), limit, windowSeconds, nowMs), nil
}
