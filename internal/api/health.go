package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/blackcard-ai/concierge/internal/store"
)

const defaultHealthCheckTimeout = 5 * time.Second

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo     store.Repository
	service  string
	version  string
	provider string
	backend  string
}

// HealthInfo describes the running service on /health.
type HealthInfo struct {
	Service          string
	Version          string
	LLMProvider      string
	RetrieverBackend string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo store.Repository, info HealthInfo) *HealthHandler {
	return &HealthHandler{
		repo:     repo,
		service:  info.Service,
		version:  info.Version,
		provider: info.LLMProvider,
		backend:  info.RetrieverBackend,
	}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), defaultHealthCheckTimeout)
	defer cancel()

	checks := map[string]string{
		"api":       "ok",
		"llm":       h.provider,
		"retriever": h.backend,
	}
	status := map[string]any{
		"status":  "ok",
		"service": h.service,
		"version": h.version,
		"checks":  checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
