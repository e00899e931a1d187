package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/blackcard-ai/concierge/internal/domain"
)

const maxExercisePage = 200

// ExerciseHandler serves the exercise catalog.
type ExerciseHandler struct {
	*Handler
}

// NewExerciseHandler creates an exercise handler.
func NewExerciseHandler(base *Handler) *ExerciseHandler {
	return &ExerciseHandler{Handler: base}
}

// RegisterRoutes registers catalog routes.
func (h *ExerciseHandler) RegisterRoutes(r chi.Router) {
	r.Get("/exercises", h.List)
}

// List returns catalog entries filtered by category, muscle_group and hyrox.
func (h *ExerciseHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ExerciseFilter{
		Category:    q.Get("category"),
		MuscleGroup: q.Get("muscle_group"),
		Limit:       maxExercisePage,
	}
	if raw := q.Get("hyrox"); raw != "" {
		hyrox, err := strconv.ParseBool(raw)
		if err != nil {
			Error(w, http.StatusBadRequest, "hyrox must be a boolean")
			return
		}
		filter.HyroxOnly = hyrox
	}

	exercises, err := h.repo.QueryExercises(r.Context(), filter)
	if err != nil {
		slog.Error("Failed to query exercises", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load exercises")
		return
	}
	if exercises == nil {
		exercises = []domain.Exercise{}
	}
	JSON(w, http.StatusOK, exercises)
}
