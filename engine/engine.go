// Package engine implements the Decision Engine: the orchestrator that
// selects an algorithm from a Plan, derives its key, invokes the matching
// primitive, and decorates the result with response headers.
package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/quotaguard/rls-gateway/domain"
	"github.com/quotaguard/rls-gateway/keyderiver"
	"github.com/quotaguard/rls-gateway/observability"
	"github.com/quotaguard/rls-gateway/ratelimit"
)

// Clock abstracts wall-clock time so tests can control it; production code
// uses realClock.
type Clock interface {
	NowMs() int64
}

type realClock struct{}

func (realClock) NowMs() int64 { return time.Now().UnixMilli() }

// NonceSource supplies the per-request nonce used to namespace sliding
// window members, addressing the member-collision note in the design notes.
type NonceSource func() string

// Engine is the stateless orchestrator; it holds handles to the shared
// counter store primitives and is constructed once per process.
type Engine struct {
	TokenBucket   *ratelimit.TokenBucket
	FixedWindow   *ratelimit.FixedWindow
	SlidingWindow *ratelimit.SlidingWindow
	Concurrency   *ratelimit.Concurrency
	Metrics       *observability.Metrics
	Clock         Clock
	Nonce         NonceSource
}

// New builds an Engine with the real wall clock and a time-based nonce.
func New(tb *ratelimit.TokenBucket, fw *ratelimit.FixedWindow, sw *ratelimit.SlidingWindow, cc *ratelimit.Concurrency, metrics *observability.Metrics) *Engine {
	return &Engine{
		TokenBucket:   tb,
		FixedWindow:   fw,
		SlidingWindow: sw,
		Concurrency:   cc,
		Metrics:       metrics,
		Clock:         realClock{},
		Nonce:         func() string { return fmt.Sprintf("%d", time.Now().UnixNano()) },
	}
}

// Check is the decision engine's single operation: dispatch by plan
// algorithm to the matching primitive, with the parameter fallback rules
// from the component design preserved exactly.
func (e *Engine) Check(ctx context.Context, tenant, subject, resource string, cost int, plan domain.Plan) (domain.Decision, error) {
	start := time.Now()
	nowMs := e.Clock.NowMs()

	alg := plan.Algorithm
	var decision domain.Decision
	var err error

	switch alg {
	case domain.FixedWindow, domain.SlidingWindow:
		limit := intOr(plan.LimitPerWindow, intOr(plan.BucketCapacity, 0))
		window := intOr(plan.WindowSeconds, 60)
		if alg == domain.FixedWindow {
			epoch := keyderiver.WindowEpoch(nowMs/1000, window)
			key := keyderiver.Derive(domain.FixedWindow, tenant, subject, resource, epoch)
			decision, err = e.FixedWindow.Evaluate(ctx, key, limit, window, cost, nowMs)
		} else {
			key := keyderiver.Derive(domain.SlidingWindow, tenant, subject, resource, 0)
			decision, err = e.SlidingWindow.Evaluate(ctx, key, limit, window, cost, nowMs, e.Nonce())
		}
	case domain.Concurrency:
		limit := intOr(plan.ConcurrencyLimit, 1)
		ttl := intOr(plan.WindowSeconds, 60)
		key := keyderiver.Derive(domain.Concurrency, tenant, subject, resource, 0)
		decision, err = e.Concurrency.Acquire(ctx, key, limit, ttl, cost, nowMs/1000)
	default:
		// token_bucket, and the fallback target for any unknown algorithm.
		capacity := intOr(plan.BucketCapacity, intOr(plan.LimitPerWindow, 0))
		refill := floatOr(plan.RefillRatePerSec, 0)
		key := keyderiver.Derive(domain.TokenBucket, tenant, subject, resource, 0)
		decision, err = e.TokenBucket.Evaluate(ctx, key, capacity, refill, cost, nowMs)
	}

	latencyMs := float64(time.Since(start)) / float64(time.Millisecond)
	if e.Metrics != nil {
		if err == nil {
			e.Metrics.ObserveDecision(decision.Allowed, latencyMs)
		}
	}
	if err != nil {
		return domain.Decision{}, err
	}

	decision.Headers = headers(decision)
	return decision, nil
}

// headers builds the quota header map from a Decision per the external
// interface contract.
func headers(d domain.Decision) map[string]string {
	retrySeconds := int64(math.Ceil(float64(d.RetryAfterMs) / 1000.0))
	if d.Allowed {
		retrySeconds = 0
	}
	return map[string]string{
		"X-RateLimit-Limit":     fmt.Sprintf("%d", d.Limit),
		"X-RateLimit-Remaining": fmt.Sprintf("%d", d.Remaining),
		"X-RateLimit-Reset":     fmt.Sprintf("%d", d.ResetAt),
		"Retry-After":           fmt.Sprintf("%d", retrySeconds),
	}
}

func intOr(p *int, fallback int) int {
	if p == nil {
		return fallback
	}
	return *p
}

func floatOr(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}
