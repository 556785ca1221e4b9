package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKey returns a middleware that requires key in the X-API-Key header or as
// an Authorization bearer token. An empty key disables the check.
func APIKey(key string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-API-Key")
			if provided == "" {
				provided, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","status_code":401}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
