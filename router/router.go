// Package router assembles the chi mux: the shared middleware chain, then
// the data-plane and control-plane routes over the handler package.
package router

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/quotaguard/rls-gateway/config"
	"github.com/quotaguard/rls-gateway/engine"
	"github.com/quotaguard/rls-gateway/handler"
	gwmw "github.com/quotaguard/rls-gateway/middleware"
	"github.com/quotaguard/rls-gateway/observability"
	"github.com/quotaguard/rls-gateway/redisclient"
)

// Deps collects everything New needs to wire handlers.
type Deps struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Redis   *redisclient.Client
	Admin   handler.AdminStore
	Auth    handler.Resolver // policy resolver, satisfying the check handler's Resolver interface
	Keys    gwmw.KeyVerifier
	Engine  *engine.Engine
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
	Version string
}

// New returns a configured chi Router with the full middleware chain and
// all data-plane/control-plane routes mounted.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	// --- Middleware chain (order matters) ---
	if d.Config.IsDevelopment() {
		r.Use(gwmw.CORSMiddleware([]string{"*"}))
	}
	r.Use(gwmw.SecurityHeadersMiddleware)
	r.Use(gwmw.RequestIDMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(mwRequestLogger(d.Logger))
	if d.Tracer != nil {
		r.Use(observability.TracingMiddleware(d.Tracer))
	}
	r.Use(mwMaxBodySize(d.Config.MaxBodyBytes))
	r.Use(gwmw.RequestTimeout(d.Config.RequestTimeout))

	// --- Health + metrics (no auth) ---
	r.Get("/v1/health", (&handler.Health{Version: d.Version, Metrics: d.Metrics}).ServeHTTP)
	if d.Metrics != nil {
		r.Get("/metrics", d.Metrics.Handler().ServeHTTP)
	}

	// --- Data plane ---
	authMW := gwmw.NewAuthMiddleware(d.Logger, d.Keys, d.Redis.Client, d.Config.APIKeyHashSalt, d.Config.APIKeyCacheTTL)
	checkHandler := &handler.Check{Resolver: d.Auth, Engine: d.Engine, Metrics: d.Metrics, Log: d.Logger}

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMW.Handler)
		r.Post("/check", checkHandler.ServeHTTP)
	})

	// --- Control plane ---
	adminHandler := &handler.Admin{Store: d.Admin, HashSalt: d.Config.APIKeyHashSalt, Log: d.Logger}
	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(gwmw.AdminAuth(d.Config.AdminBearerToken))
		r.Post("/tenants", adminHandler.CreateTenant)
		r.Get("/tenants/{id}/summary", adminHandler.TenantSummary)
		r.Post("/plans", adminHandler.CreatePlan)
		r.Post("/keys", adminHandler.CreateKey)
		r.Post("/policies", adminHandler.CreatePolicy)
	})

	return r
}

func mwMaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = 64 * 1024
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			max := maxBytes
			if v := os.Getenv("GATEWAY_MAX_BODY_BYTES"); v != "" {
				if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
					max = parsed
				}
			}
			if r.ContentLength > 0 && r.ContentLength > max {
				http.Error(w, `{"error":"request_too_large","message":"request body too large"}`, http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}

func mwRequestLogger(appLogger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)
			appLogger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("req_id", r.Header.Get("X-Request-ID")).
				Int("status", rw.Status()).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}
