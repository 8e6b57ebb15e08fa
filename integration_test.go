package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/quotaguard/rls-gateway/config"
	"github.com/quotaguard/rls-gateway/engine"
	"github.com/quotaguard/rls-gateway/observability"
	"github.com/quotaguard/rls-gateway/pgstore"
	"github.com/quotaguard/rls-gateway/policy"
	"github.com/quotaguard/rls-gateway/ratelimit"
	"github.com/quotaguard/rls-gateway/redisclient"
	"github.com/quotaguard/rls-gateway/router"

	"github.com/rs/zerolog"
)

// Integration tests require a real Postgres and Redis and are skipped by
// default. To run them locally set RUN_GATEWAY_INTEGRATION=1 and point
// POSTGRES_DSN / REDIS_URL at running instances (e.g. via docker-compose).
// This drives the full admin-provision -> data-plane-check path over HTTP,
// covering the fixed-window-blocks-third-call scenario from end to end.
func TestFixedWindowCheckEndToEnd(t *testing.T) {
	if os.Getenv("RUN_GATEWAY_INTEGRATION") != "1" {
		t.Skip("integration tests skipped; set RUN_GATEWAY_INTEGRATION=1 to run")
	}

	cfg := config.Load()
	cfg.AdminBearerToken = "it-admin-token"
	log := zerolog.Nop()

	ctx := context.Background()

	rdb, err := redisclient.New(cfg)
	if err != nil {
		t.Fatalf("redisclient.New: %v", err)
	}
	if err := rdb.Ping(ctx); err != nil {
		t.Fatalf("redis ping: %v", err)
	}

	store, err := pgstore.New(ctx, cfg.PostgresDSN)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	eng := engine.New(
		&ratelimit.TokenBucket{Redis: rdb.Client},
		&ratelimit.FixedWindow{Redis: rdb.Client},
		&ratelimit.SlidingWindow{Redis: rdb.Client},
		&ratelimit.Concurrency{Redis: rdb.Client},
		observability.NewMetrics("it"),
	)

	h := router.New(router.Deps{
		Config:  cfg,
		Logger:  log,
		Redis:   rdb,
		Admin:   store,
		Auth:    policy.NewResolver(store),
		Keys:    store,
		Engine:  eng,
		Version: "it",
	})
	srv := httptest.NewServer(h)
	defer srv.Close()

	adminReq := func(method, path string, body any) *http.Response {
		var buf bytes.Buffer
		if body != nil {
			if err := json.NewEncoder(&buf).Encode(body); err != nil {
				t.Fatalf("encode body: %v", err)
			}
		}
		req, err := http.NewRequest(method, srv.URL+path, &buf)
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+cfg.AdminBearerToken)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("do request: %v", err)
		}
		return resp
	}

	var tenant struct{ ID string `json:"id"` }
	resp := adminReq(http.MethodPost, "/v1/admin/tenants", map[string]string{"name": "it-tenant"})
	mustDecode(t, resp, &tenant)

	limit, window := 2, 60
	var plan struct{ ID string `json:"id"` }
	resp = adminReq(http.MethodPost, "/v1/admin/plans", map[string]any{
		"tenant_id": tenant.ID, "name": "it-plan", "algorithm": "fixed_window",
		"limit_per_window": limit, "window_seconds": window,
	})
	mustDecode(t, resp, &plan)

	resp = adminReq(http.MethodPost, "/v1/admin/policies", map[string]any{
		"tenant_id": tenant.ID, "resource": "GET:/demo", "subject_type": "api_key", "plan_id": plan.ID,
	})
	mustDecode(t, resp, &struct{}{})

	var key struct {
		Key string `json:"key"`
	}
	resp = adminReq(http.MethodPost, "/v1/admin/keys", map[string]string{"tenant_id": tenant.ID, "name": "it-key"})
	mustDecode(t, resp, &key)

	doCheck := func() *http.Response {
		var buf bytes.Buffer
		_ = json.NewEncoder(&buf).Encode(map[string]string{"resource": "GET:/demo", "subject": "user:1"})
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/check", &buf)
		req.Header.Set("X-API-Key", key.Key)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("check request: %v", err)
		}
		return resp
	}

	if resp := doCheck(); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected first check allowed, got %d", resp.StatusCode)
	}
	if resp := doCheck(); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected second check allowed, got %d", resp.StatusCode)
	}
	resp = doCheck()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected third check blocked with 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header on blocked response")
	}
}

func mustDecode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
