package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AdminToken returns middleware that requires "Authorization: Bearer <token>"
// on operator endpoints. An empty token disables the routes it guards.
func AdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				writeJSONError(w, http.StatusServiceUnavailable, "admin token not configured")
				return
			}

			authHeader := r.Header.Get("Authorization")
			got := strings.TrimPrefix(authHeader, "Bearer ")
			if authHeader == "" || got == authHeader {
				writeJSONError(w, http.StatusUnauthorized, "authorization required")
				return
			}

			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSONError(w, http.StatusForbidden, "invalid admin token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// MaxBody caps request bodies at n bytes.
func MaxBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
