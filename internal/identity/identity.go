// Package identity authenticates API callers by shared key.
package identity

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
)

// HeaderName carries the API key on every protected request.
const HeaderName = "X-Elite-Key"

// DevCaller identifies requests let through while authentication is disabled.
const DevCaller = "dev-bypass"

type contextKey int

const callerKey contextKey = iota

// CallerFromContext returns the authenticated caller, or "" when the request
// did not pass through Middleware.
func CallerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(callerKey).(string); ok {
		return v
	}
	return ""
}

// WithCaller returns ctx carrying caller.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// Middleware rejects requests whose X-Elite-Key does not match apiKey. When
// disabled is true every request passes as DevCaller.
func Middleware(apiKey string, disabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if disabled {
				next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), DevCaller)))
				return
			}

			key := r.Header.Get(HeaderName)
			if key == "" || apiKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
				slog.Warn("Rejected request with invalid API key",
					"path", r.URL.Path,
					"remote_ip", IPFromRequest(r))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"could not validate credentials"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), "api-key")))
		})
	}
}

// IPFromRequest returns a normalized remote IP for request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
