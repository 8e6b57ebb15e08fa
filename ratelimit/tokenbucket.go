package ratelimit

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/quotaguard/rls-gateway/domain"
	"github.com/redis/go-redis/v9"
)

// noRefillRetrySentinelMs is returned as retry_after_ms when a bucket has
// zero refill rate and is exhausted — there is no future time at which the
// request would succeed, so a large sentinel stands in for "never".
const noRefillRetrySentinelMs = 24 * 3600 * 1000

type tokenBucketState struct {
	tokens float64
	tsMs   int64
}

// tokenBucketStep is the pure decision function described in the algorithm
// primitive contract for token_bucket. It is unit-tested directly without a
// Redis server; the Redis-backed Evaluate below only handles loading and
// persisting tokenBucketState atomically.
func tokenBucketStep(state tokenBucketState, capacity int, refillRate float64, cost int, nowMs int64) (tokenBucketState, domain.Decision) {
	elapsed := nowMs - state.tsMs
	if elapsed < 0 {
		elapsed = 0
	}
	tokens := state.tokens + float64(elapsed)/1000.0*refillRate
	if tokens > float64(capacity) {
		tokens = float64(capacity)
	}

	allowed := tokens >= float64(cost)
	if allowed {
		tokens -= float64(cost)
	}

	var retryAfterMs int64
	if !allowed {
		if refillRate > 0 {
			retryAfterMs = int64(math.Ceil((float64(cost) - tokens) / refillRate * 1000))
		} else {
			retryAfterMs = noRefillRetrySentinelMs
		}
	}

	resetAt := int64(math.Ceil(float64(nowMs+retryAfterMs) / 1000.0))

	return tokenBucketState{tokens: tokens, tsMs: nowMs}, domain.Decision{
		Allowed:      allowed,
		Remaining:    int(math.Floor(tokens)),
		Limit:        capacity,
		ResetAt:      resetAt,
		RetryAfterMs: retryAfterMs,
		Algorithm:    domain.TokenBucket,
	}
}

func tokenBucketTTL(capacity int, refillRate float64) time.Duration {
	if refillRate > 0 {
		secs := float64(capacity)/refillRate + 5
		return time.Duration(secs * float64(time.Second))
	}
	return time.Hour
}

// TokenBucket evaluates the token_bucket primitive against Redis using an
// optimistic WATCH/MULTI/EXEC transaction so the load-refill-consume-store
// sequence is atomic relative to other callers of the same key. A conflicting
// writer aborts the transaction with redis.TxFailedErr, which Evaluate
// retries rather than treating as a counter-store failure.
type TokenBucket struct {
	Redis *redis.Client
}

func (tb *TokenBucket) Evaluate(ctx context.Context, key string, capacity int, refillRate float64, cost int, nowMs int64) (domain.Decision, error) {
	var decision domain.Decision

	txf := func(tx *redis.Tx) error {
		vals, err := tx.HMGet(ctx, key, "tokens", "ts").Result()
		if err != nil {
			return err
		}

		state := tokenBucketState{tokens: float64(capacity), tsMs: nowMs}
		if vals[0] != nil && vals[1] != nil {
			tokens, tErr := strconv.ParseFloat(vals[0].(string), 64)
			ts, sErr := strconv.ParseInt(vals[1].(string), 10, 64)
			if tErr == nil && sErr == nil {
				state = tokenBucketState{tokens: tokens, tsMs: ts}
			}
		}

		var newState tokenBucketState
		newState, decision = tokenBucketStep(state, capacity, refillRate, cost, nowMs)

		ttl := tokenBucketTTL(capacity, refillRate)
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, "tokens", newState.tokens, "ts", newState.tsMs)
			p.Expire(ctx, key, ttl)
			return nil
		})
		return err
	}

	if err := watchWithRetry(ctx, tb.Redis, txf, key); err != nil {
		return domain.Decision{}, upstreamErr("token bucket transaction failed", err)
	}
	return decision, nil
}
