package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/quotaguard/rls-gateway/domain"
	"github.com/redis/go-redis/v9"
)

// slidingWindowStep is the pure decision function for sliding_window given
// a snapshot of the surviving event scores (already evicted of anything
// older than the window) taken before this call's own inserts.
func slidingWindowStep(survivingScores []int64, limit int, windowSeconds int, cost int, nowMs int64) domain.Decision {
	count := len(survivingScores)
	allowed := count+cost <= limit

	var earliest int64 = nowMs
	if count > 0 {
		earliest = survivingScores[0]
		for _, s := range survivingScores[1:] {
			if s < earliest {
				earliest = s
			}
		}
	}

	var retryAfterMs int64
	if !allowed {
		retryAfterMs = earliest + int64(windowSeconds)*1000 - nowMs
		if retryAfterMs < 0 {
			retryAfterMs = 0
		}
	}

	remaining := limit - count
	if allowed {
		remaining -= cost
	}
	if remaining < 0 {
		remaining = 0
	}

	resetAt := int64(math.Ceil(float64(earliest+int64(windowSeconds)*1000) / 1000.0))

	return domain.Decision{
		Allowed:      allowed,
		Remaining:    remaining,
		Limit:        limit,
		ResetAt:      resetAt,
		RetryAfterMs: retryAfterMs,
		Algorithm:    domain.SlidingWindow,
	}
}

// SlidingWindow evaluates the sliding_window (log-based) primitive. The
// evict -> read-size -> conditionally-insert sequence runs inside a
// WATCH/MULTI/EXEC transaction on key so concurrent callers never observe
// intermediate state. A conflicting writer aborts with redis.TxFailedErr,
// which Evaluate retries rather than treating as a counter-store failure.
type SlidingWindow struct {
	Redis *redis.Client
}

func (sw *SlidingWindow) Evaluate(ctx context.Context, key string, limit int, windowSeconds int, cost int, nowMs int64, nonce string) (domain.Decision, error) {
	var decision domain.Decision
	cutoff := float64(nowMs - int64(windowSeconds)*1000)

	txf := func(tx *redis.Tx) error {
		if err := tx.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%f", cutoff)).Err(); err != nil {
			return err
		}

		members, err := tx.ZRangeWithScores(ctx, key, 0, -1).Result()
		if err != nil {
			return err
		}
		scores := make([]int64, len(members))
		for i, m := range members {
			scores[i] = int64(m.Score)
		}

		decision = slidingWindowStep(scores, limit, windowSeconds, cost, nowMs)

		if decision.Allowed {
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				for i := 0; i < cost; i++ {
					score := float64(nowMs + int64(i))
					p.ZAdd(ctx, key, redis.Z{
						Score:  score,
						Member: fmt.Sprintf("%s:%d:%d", nonce, nowMs, i),
					})
				}
				p.PExpire(ctx, key, time.Duration(windowSeconds)*time.Second+time.Second)
				return nil
			})
			return err
		}
		return nil
	}

	if err := watchWithRetry(ctx, sw.Redis, txf, key); err != nil {
		return domain.Decision{}, upstreamErr("sliding window transaction failed", err)
	}
	return decision, nil
}
