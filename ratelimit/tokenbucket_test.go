package ratelimit

import "testing"

func TestTokenBucketStepDrainAndRefill(t *testing.T) {
	capacity, refill := 5, 2.0

	// drain with a single cost=5 call at t=0
	state, d := tokenBucketStep(tokenBucketState{tokens: float64(capacity), tsMs: 0}, capacity, refill, 5, 0)
	if !d.Allowed || d.Remaining != 0 {
		t.Fatalf("expected drain to allow with remaining=0, got %+v", d)
	}

	// cost=1 at t=100ms should block, with retry window in [200,600]
	state, d = tokenBucketStep(state, capacity, refill, 1, 100)
	if d.Allowed {
		t.Fatalf("expected block at t=100ms, got %+v", d)
	}
	if d.RetryAfterMs < 200 || d.RetryAfterMs > 600 {
		t.Fatalf("expected retry_after_ms in [200,600], got %d", d.RetryAfterMs)
	}

	// cost=1 at t=1000ms should now be allowed
	state, d = tokenBucketStep(state, capacity, refill, 1, 1000)
	if !d.Allowed {
		t.Fatalf("expected allow at t=1000ms, got %+v", d)
	}

	// cost=0 at t=10000ms should report remaining back at full capacity
	_, d = tokenBucketStep(state, capacity, refill, 0, 10000)
	if d.Remaining != capacity {
		t.Fatalf("expected remaining=%d after long idle, got %d", capacity, d.Remaining)
	}
}

func TestTokenBucketStepZeroRefillSentinel(t *testing.T) {
	state := tokenBucketState{tokens: 0, tsMs: 0}
	_, d := tokenBucketStep(state, 5, 0, 1, 0)
	if d.Allowed {
		t.Fatalf("expected block with zero refill and empty bucket")
	}
	if d.RetryAfterMs != noRefillRetrySentinelMs {
		t.Fatalf("expected sentinel retry_after_ms, got %d", d.RetryAfterMs)
	}
}

func TestTokenBucketInvariants(t *testing.T) {
	state := tokenBucketState{tokens: 3, tsMs: 0}
	_, d := tokenBucketStep(state, 5, 1.0, 2, 500)
	if d.Remaining < 0 || d.Remaining > d.Limit {
		t.Fatalf("invariant violated: remaining=%d limit=%d", d.Remaining, d.Limit)
	}
	if d.RetryAfterMs < 0 {
		t.Fatalf("invariant violated: retry_after_ms=%d", d.RetryAfterMs)
	}
}
