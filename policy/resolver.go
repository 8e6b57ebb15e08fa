// Package policy implements the Plan Resolver: mapping a request context to
// a Plan, either by explicit override or by (tenant, resource, subject_type)
// policy lookup.
package policy

import (
	"context"

	"github.com/quotaguard/rls-gateway/domain"
)

// PlanStore is the persistence interface the resolver depends on. pgstore.Store
// implements it against Postgres; tests use an in-memory fake.
type PlanStore interface {
	GetPlanByID(ctx context.Context, planID string) (domain.Plan, bool, error)
	GetPlanFor(ctx context.Context, tenantID, resource string, subjectType domain.SubjectType) (domain.Plan, bool, error)
}

// Resolver implements the resolve operation described in the component
// design. It performs no caching itself; callers may wrap it with one.
type Resolver struct {
	Store PlanStore
}

func NewResolver(store PlanStore) *Resolver {
	return &Resolver{Store: store}
}

// Resolve maps (tenantID, resource, subjectType) to a Plan. If explicitPlanID
// is non-empty it is loaded directly and no tenant ownership check is
// performed, matching the documented (and flagged) source behavior.
func (r *Resolver) Resolve(ctx context.Context, tenantID, resource string, subjectType domain.SubjectType, explicitPlanID string) (domain.Plan, error) {
	if explicitPlanID != "" {
		plan, found, err := r.Store.GetPlanByID(ctx, explicitPlanID)
		if err != nil {
			return domain.Plan{}, domain.Wrap(domain.UpstreamUnavailable, "plan lookup failed", err)
		}
		if !found {
			return domain.Plan{}, domain.New(domain.PlanNotFound, "plan_not_found")
		}
		return plan, nil
	}

	plan, found, err := r.Store.GetPlanFor(ctx, tenantID, resource, subjectType)
	if err != nil {
		return domain.Plan{}, domain.Wrap(domain.UpstreamUnavailable, "policy lookup failed", err)
	}
	if !found {
		return domain.Plan{}, domain.New(domain.PlanNotFound, "plan_not_found")
	}
	return plan, nil
}
