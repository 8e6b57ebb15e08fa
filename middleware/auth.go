package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quotaguard/rls-gateway/domain"
	"github.com/quotaguard/rls-gateway/security"
)

type contextKey string

const (
	// TenantIDContextKey stores the authenticated tenant ID in request context.
	TenantIDContextKey contextKey = "tenant_id"
)

// KeyVerifier is the store dependency AuthMiddleware needs: a lookup of an
// API key record by its HMAC hash.
type KeyVerifier interface {
	GetAPIKeyByHash(ctx context.Context, keyHash string) (domain.ApiKey, bool, error)
}

// AuthMiddleware validates the data-plane X-API-Key header. A positive
// validation is cached in Redis for a short TTL so the hot path skips the
// policy-store round trip on repeat calls from the same key.
type AuthMiddleware struct {
	logger   zerolog.Logger
	verifier KeyVerifier
	redis    *redis.Client
	salt     string
	cacheTTL time.Duration
}

func NewAuthMiddleware(logger zerolog.Logger, verifier KeyVerifier, rdb *redis.Client, salt string, cacheTTL time.Duration) *AuthMiddleware {
	return &AuthMiddleware{logger: logger, verifier: verifier, redis: rdb, salt: salt, cacheTTL: cacheTTL}
}

func (am *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-API-Key")
		if raw == "" {
			writeAuthError(w, domain.New(domain.MissingAPIKey, "missing X-API-Key"))
			return
		}

		hash := security.HashAPIKey(raw, am.salt)
		ctx := r.Context()
		cacheKey := "api_key:" + hash

		if am.redis != nil {
			if tenantID, err := am.redis.Get(ctx, cacheKey).Result(); err == nil && tenantID != "" {
				am.serveWithTenant(w, r, next, tenantID)
				return
			}
		}

		key, found, err := am.verifier.GetAPIKeyByHash(ctx, hash)
		if err != nil {
			writeAuthError(w, domain.Wrap(domain.UpstreamUnavailable, "api key lookup failed", err))
			return
		}
		if !found || !key.Active || key.RevokedAt != nil {
			writeAuthError(w, domain.New(domain.InvalidAPIKey, "invalid API key"))
			return
		}

		if am.redis != nil {
			_ = am.redis.Set(ctx, cacheKey, key.TenantID, am.cacheTTL).Err()
		}
		am.serveWithTenant(w, r, next, key.TenantID)
	})
}

func (am *AuthMiddleware) serveWithTenant(w http.ResponseWriter, r *http.Request, next http.Handler, tenantID string) {
	ctx := context.WithValue(r.Context(), TenantIDContextKey, tenantID)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// AdminAuth validates the control-plane Authorization: Bearer header
// against the configured admin token.
func AdminAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			given, ok := security.ParseBearerToken(header)
			if !ok {
				writeAuthError(w, domain.New(domain.MissingAdminToken, "missing bearer token"))
				return
			}
			if !security.ConstantTimeEqual(given, token) {
				writeAuthError(w, domain.New(domain.InvalidAdminToken, "invalid admin token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetTenantID extracts the authenticated tenant ID from the request context.
func GetTenantID(ctx context.Context) string {
	if v, ok := ctx.Value(TenantIDContextKey).(string); ok {
		return v
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, err *domain.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode())
	_ = json.NewEncoder(w).Encode(map[string]string{"error": string(err.Kind), "message": err.Error()})
}
