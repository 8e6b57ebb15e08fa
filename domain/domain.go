// Package domain holds the value types shared across the rate-limit
// decision service: plans, policies, API keys, decisions, and the error
// kinds the HTTP layer maps to status codes.
package domain

import "time"

// Algorithm identifies which rate-limit primitive a Plan uses.
type Algorithm string

const (
	TokenBucket    Algorithm = "token_bucket"
	FixedWindow    Algorithm = "fixed_window"
	SlidingWindow  Algorithm = "sliding_window"
	Concurrency    Algorithm = "concurrency"
)

// SubjectType discriminates the kind of entity being rate-limited.
type SubjectType string

const (
	SubjectAPIKey SubjectType = "api_key"
	SubjectIP     SubjectType = "ip"
	SubjectUserID SubjectType = "user_id"
)

// Plan is a named limit specification owned by a tenant. Algorithm
// parameters are pointers because any of them may be null; which ones are
// required depends on Algorithm (see engine.Check's fallback rules).
type Plan struct {
	ID        string
	TenantID  string
	Name      string
	Algorithm Algorithm

	LimitPerWindow   *int
	WindowSeconds    *int
	BucketCapacity   *int
	RefillRatePerSec *float64
	ConcurrencyLimit *int

	CostPerCall int
	BurstFactor float64

	CreatedAt time.Time
}

// ResourcePolicy maps (tenant, resource, subject_type) to a plan.
type ResourcePolicy struct {
	ID          string
	TenantID    string
	Resource    string
	SubjectType SubjectType
	PlanID      string
	CreatedAt   time.Time
}

// ApiKey is the external-auth-facing key record. The core only ever reads
// TenantID off of it; hashing and issuance live in package security.
type ApiKey struct {
	ID        string
	TenantID  string
	Name      string
	KeyHash   string
	Active    bool
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Tenant is the top-level ownership boundary for plans, keys and policies.
type Tenant struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Decision is the per-call verdict and quota metadata returned to callers.
// It is a value type, never persisted.
type Decision struct {
	Allowed      bool
	Remaining    int
	Limit        int
	ResetAt      int64 // unix seconds
	RetryAfterMs int64
	Algorithm    Algorithm
	Headers      map[string]string
}
