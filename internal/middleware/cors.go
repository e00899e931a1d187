// Package middleware provides HTTP middleware for the concierge API.
package middleware

import (
	"net/http"
	"slices"

	"github.com/blackcard-ai/concierge/internal/identity"
)

// CORS returns middleware that handles CORS headers for the trainer dashboard.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" && (slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+identity.HeaderName)
				w.Header().Add("Vary", "Origin")
				// Credentials only for explicit origins; echoing them for "*" enables CSRF.
				if slices.Contains(allowedOrigins, origin) {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
