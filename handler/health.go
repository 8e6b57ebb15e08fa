package handler

import (
	"encoding/json"
	"net/http"

	"github.com/quotaguard/rls-gateway/observability"
)

// Health handles GET /v1/health.
type Health struct {
	Version string
	Metrics *observability.Metrics
}

func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Metrics != nil {
		h.Metrics.ObserveRequest("health", "ok")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": h.Version})
}
