package httpmiddleware

import (
	"encoding/json"
	"net/http"
)

// BodyLimit returns a middleware that rejects requests whose declared
// Content-Length exceeds maxBytes with 413 and caps reads on the body for
// requests without a declared length.
func BodyLimit(maxBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"code":    http.StatusRequestEntityTooLarge,
					"message": "request body too large",
				})
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
