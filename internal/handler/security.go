package handler

import (
	"context"
	"net/http"

	"github.com/averku/orderdesk/internal/domain/auth"
)

// apiKeyHeader carries the raw API key on every authenticated request.
const apiKeyHeader = "X-API-Key"

type apiKeyContextKey struct{}

// APIKeyFromContext returns the key info attached by RequireAPIKey, if any.
func APIKeyFromContext(ctx context.Context) (*auth.APIKeyInfo, bool) {
	info, ok := ctx.Value(apiKeyContextKey{}).(*auth.APIKeyInfo)
	return info, ok
}

// RequireAPIKey rejects requests without a valid API key and attaches the
// verified key info to the request context.
func RequireAPIKey(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(apiKeyHeader)
			if key == "" {
				writeError(w, http.StatusUnauthorized, "missing api key")
				return
			}

			info, err := verifier.Verify(r.Context(), key)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyContextKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
