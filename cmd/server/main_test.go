package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackcard-ai/concierge/internal/agent"
	"github.com/blackcard-ai/concierge/internal/config"
	"github.com/blackcard-ai/concierge/internal/feed"
	"github.com/blackcard-ai/concierge/internal/identity"
	"github.com/blackcard-ai/concierge/internal/llm"
	"github.com/blackcard-ai/concierge/internal/store"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	_, err = store.Seed(context.Background(), repo)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{APIKey: "secret", CORSOrigins: []string{"*"}}
	orch := agent.NewOrchestrator(agent.OrchestratorConfig{Generator: llm.NewMock(), Repo: repo})
	h := agent.NewHandler(orch, repo, agent.NewRateLimiter(ctx, 0, time.Minute))
	return newRouter(cfg, repo, prometheus.NewRegistry(), h, feed.NewHub(0, cfg.CORSOrigins))
}

func serve(h http.Handler, method, path, body, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(identity.HeaderName, key)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestWebhooksBypassAPIKey(t *testing.T) {
	t.Parallel()
	h := testRouter(t)

	w := serve(h, http.MethodPost, "/webhooks/whatsapp", `{"From":"+447700900123","Body":"Hello"}`, "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serve(h, http.MethodPost, "/webhooks/terra", `{"type":"body","user":{"user_id":"t-1"},"data":[{}]}`, "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAPIRoutesRequireKey(t *testing.T) {
	t.Parallel()
	h := testRouter(t)

	assert.Equal(t, http.StatusForbidden, serve(h, http.MethodPost, "/events/chat", `{"message":"hi"}`, "").Code)
	assert.Equal(t, http.StatusForbidden, serve(h, http.MethodGet, "/events", "", "wrong").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/events", "", "secret").Code)

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/ping", "", "").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/metrics", "", "").Code)
}
