package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/quotaguard/rls-gateway/domain"
	"github.com/quotaguard/rls-gateway/security"
)

// AdminStore is the persistence surface the admin handlers need. pgstore.Store
// implements it.
type AdminStore interface {
	CreateTenant(ctx context.Context, name string) (domain.Tenant, error)
	CreatePlan(ctx context.Context, p domain.Plan) (domain.Plan, error)
	CreateAPIKey(ctx context.Context, tenantID, name, keyHash string) (domain.ApiKey, error)
	CreateResourcePolicy(ctx context.Context, tenantID, resource string, subjectType domain.SubjectType, planID string) (domain.ResourcePolicy, error)
	TenantSummary(ctx context.Context, tenantID string) (plans, keys, policies int, err error)
}

// Admin implements the control-plane CRUD handlers.
type Admin struct {
	Store    AdminStore
	HashSalt string
	Log      zerolog.Logger
}

type createTenantRequest struct {
	Name string `json:"name"`
}

func (h *Admin) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if !decodeOrFail(w, r, &req) {
		return
	}
	t, err := h.Store.CreateTenant(r.Context(), req.Name)
	if err != nil {
		writeError(w, domain.Wrap(domain.UpstreamUnavailable, "create tenant failed", err))
		return
	}
	h.Log.Info().Str("tenant_id", t.ID).Msg("admin.create_tenant")
	writeJSON(w, http.StatusOK, map[string]string{
		"id": t.ID, "name": t.Name, "created_at": t.CreatedAt.String(),
	})
}

type createPlanRequest struct {
	TenantID         string   `json:"tenant_id"`
	Name             string   `json:"name"`
	Algorithm        string   `json:"algorithm"`
	LimitPerWindow   *int     `json:"limit_per_window"`
	WindowSeconds    *int     `json:"window_seconds"`
	BucketCapacity   *int     `json:"bucket_capacity"`
	RefillRatePerSec *float64 `json:"refill_rate_per_sec"`
	ConcurrencyLimit *int     `json:"concurrency_limit"`
	CostPerCall      int      `json:"cost_per_call"`
	BurstFactor      float64  `json:"burst_factor"`
}

func (h *Admin) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if !decodeOrFail(w, r, &req) {
		return
	}
	plan := domain.Plan{
		TenantID:         req.TenantID,
		Name:             req.Name,
		Algorithm:        domain.Algorithm(req.Algorithm),
		LimitPerWindow:   req.LimitPerWindow,
		WindowSeconds:    req.WindowSeconds,
		BucketCapacity:   req.BucketCapacity,
		RefillRatePerSec: req.RefillRatePerSec,
		ConcurrencyLimit: req.ConcurrencyLimit,
		CostPerCall:      req.CostPerCall,
		BurstFactor:      req.BurstFactor,
	}
	p, err := h.Store.CreatePlan(r.Context(), plan)
	if err != nil {
		writeError(w, domain.Wrap(domain.UpstreamUnavailable, "create plan failed", err))
		return
	}
	h.Log.Info().Str("plan_id", p.ID).Str("tenant_id", p.TenantID).Str("algorithm", string(p.Algorithm)).Msg("admin.create_plan")
	writeJSON(w, http.StatusOK, map[string]string{
		"id": p.ID, "tenant_id": p.TenantID, "name": p.Name,
		"algorithm": string(p.Algorithm), "created_at": p.CreatedAt.String(),
	})
}

type createKeyRequest struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
}

func (h *Admin) CreateKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if !decodeOrFail(w, r, &req) {
		return
	}
	raw, err := security.GenerateRawKey()
	if err != nil {
		writeError(w, domain.Wrap(domain.UpstreamUnavailable, "generate key failed", err))
		return
	}
	hash := security.HashAPIKey(raw, h.HashSalt)
	if _, err := h.Store.CreateAPIKey(r.Context(), req.TenantID, req.Name, hash); err != nil {
		writeError(w, domain.Wrap(domain.UpstreamUnavailable, "create api key failed", err))
		return
	}
	h.Log.Info().Str("tenant_id", req.TenantID).Msg("admin.create_key")
	// The raw key is returned exactly once; only its hash is persisted.
	writeJSON(w, http.StatusOK, map[string]string{"key": raw, "key_hash": hash})
}

type createPolicyRequest struct {
	TenantID    string `json:"tenant_id"`
	Resource    string `json:"resource"`
	SubjectType string `json:"subject_type"`
	PlanID      string `json:"plan_id"`
}

func (h *Admin) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req createPolicyRequest
	if !decodeOrFail(w, r, &req) {
		return
	}
	rp, err := h.Store.CreateResourcePolicy(r.Context(), req.TenantID, req.Resource, domain.SubjectType(req.SubjectType), req.PlanID)
	if err != nil {
		writeError(w, domain.Wrap(domain.UpstreamUnavailable, "create policy failed", err))
		return
	}
	h.Log.Info().Str("policy_id", rp.ID).Str("tenant_id", rp.TenantID).Msg("admin.create_policy")
	writeJSON(w, http.StatusOK, map[string]string{
		"id": rp.ID, "tenant_id": rp.TenantID, "resource": rp.Resource,
		"subject_type": string(rp.SubjectType), "plan_id": rp.PlanID,
	})
}

func (h *Admin) TenantSummary(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "id")
	plans, keys, policies, err := h.Store.TenantSummary(r.Context(), tenantID)
	if err != nil {
		writeError(w, domain.Wrap(domain.UpstreamUnavailable, "tenant summary failed", err))
		return
	}
	h.Log.Info().Str("tenant_id", tenantID).Msg("admin.tenant_summary")
	writeJSON(w, http.StatusOK, map[string]int{"plans": plans, "keys": keys, "policies": policies})
}

func decodeOrFail(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, domain.New(domain.InvalidRequest, "malformed request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
