package policy_test

import (
	"context"
	"testing"
	"time"

	"github.com/quotaguard/rls-gateway/domain"
	"github.com/quotaguard/rls-gateway/policy"
)

type fakeStore struct {
	byID map[string]domain.Plan
	for_ map[string][]domain.Plan // keyed by tenant|resource|subject_type, newest-first not required
}

func (f *fakeStore) GetPlanByID(ctx context.Context, planID string) (domain.Plan, bool, error) {
	p, ok := f.byID[planID]
	return p, ok, nil
}

func (f *fakeStore) GetPlanFor(ctx context.Context, tenantID, resource string, subjectType domain.SubjectType) (domain.Plan, bool, error) {
	key := tenantID + "|" + resource + "|" + string(subjectType)
	plans, ok := f.for_[key]
	if !ok || len(plans) == 0 {
		return domain.Plan{}, false, nil
	}
	newest := plans[0]
	for _, p := range plans[1:] {
		if p.CreatedAt.After(newest.CreatedAt) {
			newest = p
		}
	}
	return newest, true, nil
}

func TestResolveExplicitPlanIDBypassesTenantCheck(t *testing.T) {
	store := &fakeStore{byID: map[string]domain.Plan{
		"plan-1": {ID: "plan-1", TenantID: "other-tenant", Algorithm: domain.TokenBucket},
	}}
	r := policy.NewResolver(store)

	plan, err := r.Resolve(context.Background(), "tenant-a", "res", domain.SubjectAPIKey, "plan-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.TenantID != "other-tenant" {
		t.Fatalf("expected explicit plan lookup to bypass tenant check, got tenant %q", plan.TenantID)
	}
}

func TestResolveExplicitPlanNotFound(t *testing.T) {
	store := &fakeStore{byID: map[string]domain.Plan{}}
	r := policy.NewResolver(store)

	_, err := r.Resolve(context.Background(), "tenant-a", "res", domain.SubjectAPIKey, "missing")
	assertPlanNotFound(t, err)
}

func TestResolvePolicyLookupTieBreaksByCreationTime(t *testing.T) {
	older := domain.Plan{ID: "p-old", CreatedAt: time.Unix(100, 0)}
	newer := domain.Plan{ID: "p-new", CreatedAt: time.Unix(200, 0)}
	store := &fakeStore{for_: map[string][]domain.Plan{
		"tenant-a|GET:/demo|api_key": {older, newer},
	}}
	r := policy.NewResolver(store)

	plan, err := r.Resolve(context.Background(), "tenant-a", "GET:/demo", domain.SubjectAPIKey, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.ID != "p-new" {
		t.Fatalf("expected newest plan to win, got %q", plan.ID)
	}
}

func TestResolvePolicyLookupNotFound(t *testing.T) {
	store := &fakeStore{for_: map[string][]domain.Plan{}}
	r := policy.NewResolver(store)

	_, err := r.Resolve(context.Background(), "tenant-a", "GET:/demo", domain.SubjectAPIKey, "")
	assertPlanNotFound(t, err)
}

func assertPlanNotFound(t *testing.T, err error) {
	t.Helper()
	derr, ok := err.(*domain.Error)
	if !ok {
		t.Fatalf("expected *domain.Error, got %T", err)
	}
	if derr.Kind != domain.PlanNotFound {
		t.Fatalf("expected PlanNotFound, got %v", derr.Kind)
	}
}
