// Package handler implements the thin HTTP data-plane and control-plane
// handlers over the decision engine and policy store. They decode
// requests, call the engine/store, and encode responses — no business
// logic lives here beyond that.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/quotaguard/rls-gateway/domain"
	"github.com/quotaguard/rls-gateway/engine"
	"github.com/quotaguard/rls-gateway/middleware"
	"github.com/quotaguard/rls-gateway/observability"
	"github.com/quotaguard/rls-gateway/policy"
)

// Resolver is the subset of policy.Resolver's API the check handler needs.
type Resolver interface {
	Resolve(ctx context.Context, tenantID, resource string, subjectType domain.SubjectType, explicitPlanID string) (domain.Plan, error)
}

var _ Resolver = (*policy.Resolver)(nil)

type checkRequest struct {
	Resource string `json:"resource"`
	Subject  string `json:"subject"`
	Cost     int    `json:"cost"`
	PlanID   string `json:"plan_id"`
}

// Check handles POST /v1/check.
type Check struct {
	Resolver Resolver
	Engine   *engine.Engine
	Metrics  *observability.Metrics
	Log      zerolog.Logger
}

func (h *Check) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.observe("error")
		writeError(w, domain.New(domain.InvalidRequest, "malformed request body"))
		return
	}
	if req.Resource == "" || req.Subject == "" {
		h.observe("error")
		writeError(w, domain.New(domain.InvalidRequest, "resource and subject are required"))
		return
	}
	if req.Cost <= 0 {
		req.Cost = 1
	}

	tenantID := middleware.GetTenantID(r.Context())

	plan, err := h.Resolver.Resolve(r.Context(), tenantID, req.Resource, domain.SubjectAPIKey, req.PlanID)
	if err != nil {
		h.observe("error")
		writeError(w, err)
		return
	}

	decision, err := h.Engine.Check(r.Context(), tenantID, req.Subject, req.Resource, req.Cost, plan)
	if err != nil {
		h.observe("error")
		writeError(w, err)
		return
	}

	h.Log.Info().
		Str("tenant_id", tenantID).
		Str("resource", req.Resource).
		Str("subject", req.Subject).
		Str("algorithm", string(decision.Algorithm)).
		Bool("allowed", decision.Allowed).
		Msg("check")

	if decision.Allowed {
		h.observe("allowed")
	} else {
		h.observe("blocked")
	}

	for k, v := range decision.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json")
	if decision.Allowed {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusTooManyRequests)
	}
	_ = json.NewEncoder(w).Encode(decision)
}

func (h *Check) observe(outcome string) {
	if h.Metrics != nil {
		h.Metrics.ObserveRequest("check", outcome)
	}
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	if derr, ok := err.(*domain.Error); ok {
		w.WriteHeader(derr.StatusCode())
		_ = json.NewEncoder(w).Encode(map[string]string{"error": string(derr.Kind), "message": derr.Error()})
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal_error", "message": err.Error()})
}
