package middleware

import (
	"context"
	"net/http"
	"time"
)

// RequestTimeout bounds every request's context with a single configured
// deadline. The policy-store and counter-store clients honor ctx.Done(),
// so a blocked upstream surfaces as upstream_unavailable rather than
// hanging the connection open.
func RequestTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
