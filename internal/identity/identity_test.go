package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureCaller(got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = CallerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestMiddlewareRequiresKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		key    string
		status int
	}{
		{"missing", "", http.StatusForbidden},
		{"wrong", "nope", http.StatusForbidden},
		{"valid", "s3cret", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var caller string
			h := Middleware("s3cret", false)(captureCaller(&caller))

			req := httptest.NewRequest(http.MethodGet, "/users/1", nil)
			if tt.key != "" {
				req.Header.Set(HeaderName, tt.key)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, "api-key", caller)
			} else {
				assert.Empty(t, caller)
			}
		})
	}
}

func TestMiddlewareDisabledBypasses(t *testing.T) {
	t.Parallel()
	var caller string
	h := Middleware("", true)(captureCaller(&caller))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, DevCaller, caller)
}

func TestEmptyConfiguredKeyRejectsEverything(t *testing.T) {
	t.Parallel()
	var caller string
	h := Middleware("", false)(captureCaller(&caller))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderName, "")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestIPFromRequest(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	assert.Equal(t, "10.0.0.7", IPFromRequest(req))

	req.RemoteAddr = "garbage"
	assert.Equal(t, "garbage", IPFromRequest(req))
}
