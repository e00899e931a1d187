package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/blackcard-ai/concierge/internal/domain"
	"github.com/blackcard-ai/concierge/internal/identity"
)

// Metric categories accepted by the API.
var metricCategories = map[string]bool{
	"strength": true,
	"engine":   true,
	"body":     true,
	"hyrox":    true,
}

// MetricHandler serves performance metric endpoints.
type MetricHandler struct {
	*Handler
}

// NewMetricHandler creates a metric handler.
func NewMetricHandler(base *Handler) *MetricHandler {
	return &MetricHandler{Handler: base}
}

// Create logs a performance metric for a user.
func (h *MetricHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var m domain.PerformanceMetric
	if err := DecodeJSON(w, r, MaxRequestBodySize, &m); err != nil {
		DecodeError(w, err)
		return
	}

	m.Category = strings.ToLower(strings.TrimSpace(m.Category))
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if !metricCategories[m.Category] {
		Error(w, http.StatusBadRequest, "category must be one of strength, engine, body, hyrox")
		return
	}

	m.ID = uuid.NewString()
	m.UserID = userID
	if m.LoggedBy == "" {
		m.LoggedBy = identity.CallerFromContext(r.Context())
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}

	if err := h.repo.InsertMetric(r.Context(), &m); err != nil {
		slog.Error("Failed to insert metric", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to save metric")
		return
	}
	JSON(w, http.StatusCreated, m)
}

// List returns a user's metrics newest first.
func (h *MetricHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	category := strings.ToLower(r.URL.Query().Get("category"))

	metrics, err := h.repo.ListMetrics(r.Context(), userID, category)
	if err != nil {
		slog.Error("Failed to list metrics", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load metrics")
		return
	}
	if metrics == nil {
		metrics = []*domain.PerformanceMetric{}
	}
	JSON(w, http.StatusOK, metrics)
}
