// Package pgstore is the Postgres-backed policy store: tenants, plans,
// api keys and resource policies. It implements the policy.PlanStore
// interface consumed by the Plan Resolver, plus the admin CRUD operations
// that sit outside the core decision path.
package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quotaguard/rls-gateway/domain"
)

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a new pgxpool.Pool for dsn.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies connectivity with a bounded deadline.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the tables and indexes if they do not already exist.
// Full migration tooling is out of scope; this is the idempotent substitute.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaDDL)
	if err != nil {
		return fmt.Errorf("pgstore: ensure schema: %w", err)
	}
	return nil
}

// --- Tenants ---

func (s *Store) CreateTenant(ctx context.Context, name string) (domain.Tenant, error) {
	t := domain.Tenant{ID: uuid.NewString(), Name: name}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO tenants (id, name) VALUES ($1, $2) RETURNING created_at`,
		t.ID, t.Name)
	if err := row.Scan(&t.CreatedAt); err != nil {
		return domain.Tenant{}, fmt.Errorf("pgstore: create tenant: %w", err)
	}
	return t, nil
}

func (s *Store) TenantSummary(ctx context.Context, tenantID string) (plans, keys, policies int, err error) {
	err = s.pool.QueryRow(ctx, `SELECT
		(SELECT count(*) FROM plans WHERE tenant_id = $1),
		(SELECT count(*) FROM api_keys WHERE tenant_id = $1),
		(SELECT count(*) FROM resource_policies WHERE tenant_id = $1)
	`, tenantID).Scan(&plans, &keys, &policies)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("pgstore: tenant summary: %w", err)
	}
	return plans, keys, policies, nil
}

// --- Plans ---

func (s *Store) CreatePlan(ctx context.Context, p domain.Plan) (domain.Plan, error) {
	p.ID = uuid.NewString()
	if p.CostPerCall == 0 {
		p.CostPerCall = 1
	}
	if p.BurstFactor == 0 {
		p.BurstFactor = 1.0
	}
	row := s.pool.QueryRow(ctx, `INSERT INTO plans
		(id, tenant_id, name, algorithm, limit_per_window, window_seconds,
		 bucket_capacity, refill_rate_per_sec, concurrency_limit, cost_per_call, burst_factor)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at`,
		p.ID, p.TenantID, p.Name, string(p.Algorithm),
		p.LimitPerWindow, p.WindowSeconds, p.BucketCapacity, p.RefillRatePerSec,
		p.ConcurrencyLimit, p.CostPerCall, p.BurstFactor,
	)
	if err := row.Scan(&p.CreatedAt); err != nil {
		return domain.Plan{}, fmt.Errorf("pgstore: create plan: %w", err)
	}
	return p, nil
}

const planColumns = `id, tenant_id, name, algorithm, limit_per_window, window_seconds,
	bucket_capacity, refill_rate_per_sec, concurrency_limit, cost_per_call, burst_factor, created_at`

func scanPlan(row pgx.Row) (domain.Plan, error) {
	var p domain.Plan
	var alg string
	if err := row.Scan(&p.ID, &p.TenantID, &p.Name, &alg,
		&p.LimitPerWindow, &p.WindowSeconds, &p.BucketCapacity, &p.RefillRatePerSec,
		&p.ConcurrencyLimit, &p.CostPerCall, &p.BurstFactor, &p.CreatedAt); err != nil {
		return domain.Plan{}, err
	}
	p.Algorithm = domain.Algorithm(alg)
	return p, nil
}

// GetPlanByID implements policy.PlanStore.
func (s *Store) GetPlanByID(ctx context.Context, planID string) (domain.Plan, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, planID)
	p, err := scanPlan(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Plan{}, false, nil
		}
		return domain.Plan{}, false, fmt.Errorf("pgstore: get plan by id: %w", err)
	}
	return p, true, nil
}

// GetPlanFor implements policy.PlanStore: it joins resource_policies and
// plans filtered by (tenant_id, resource, subject_type), ordered by plan
// creation time descending, matching the tie-break rule in the contract.
func (s *Store) GetPlanFor(ctx context.Context, tenantID, resource string, subjectType domain.SubjectType) (domain.Plan, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT p.id, p.tenant_id, p.name, p.algorithm, p.limit_per_window, p.window_seconds,
		       p.bucket_capacity, p.refill_rate_per_sec, p.concurrency_limit, p.cost_per_call,
		       p.burst_factor, p.created_at
		FROM plans p
		JOIN resource_policies rp ON rp.plan_id = p.id
		WHERE p.tenant_id = $1 AND rp.tenant_id = $1
		  AND rp.resource = $2 AND rp.subject_type = $3
		ORDER BY p.created_at DESC
		LIMIT 1
	`, tenantID, resource, string(subjectType))
	p, err := scanPlan(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Plan{}, false, nil
		}
		return domain.Plan{}, false, fmt.Errorf("pgstore: get plan for: %w", err)
	}
	return p, true, nil
}

// --- API keys ---

func (s *Store) CreateAPIKey(ctx context.Context, tenantID, name, keyHash string) (domain.ApiKey, error) {
	k := domain.ApiKey{ID: uuid.NewString(), TenantID: tenantID, Name: name, KeyHash: keyHash, Active: true}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO api_keys (id, tenant_id, name, key_hash, active) VALUES ($1,$2,$3,$4,true) RETURNING created_at`,
		k.ID, k.TenantID, k.Name, k.KeyHash)
	if err := row.Scan(&k.CreatedAt); err != nil {
		return domain.ApiKey{}, fmt.Errorf("pgstore: create api key: %w", err)
	}
	return k, nil
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (domain.ApiKey, bool, error) {
	var k domain.ApiKey
	row := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, name, key_hash, active, revoked_at, created_at FROM api_keys WHERE key_hash = $1`,
		keyHash)
	if err := row.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.Active, &k.RevokedAt, &k.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return domain.ApiKey{}, false, nil
		}
		return domain.ApiKey{}, false, fmt.Errorf("pgstore: get api key: %w", err)
	}
	return k, true, nil
}

// --- Resource policies ---

func (s *Store) CreateResourcePolicy(ctx context.Context, tenantID, resource string, subjectType domain.SubjectType, planID string) (domain.ResourcePolicy, error) {
	rp := domain.ResourcePolicy{
		ID: uuid.NewString(), TenantID: tenantID, Resource: resource,
		SubjectType: subjectType, PlanID: planID,
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO resource_policies (id, tenant_id, resource, subject_type, plan_id)
		 VALUES ($1,$2,$3,$4,$5) RETURNING created_at`,
		rp.ID, rp.TenantID, rp.Resource, string(rp.SubjectType), rp.PlanID)
	if err := row.Scan(&rp.CreatedAt); err != nil {
		return domain.ResourcePolicy{}, fmt.Errorf("pgstore: create resource policy: %w", err)
	}
	return rp, nil
}
