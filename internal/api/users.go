package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/blackcard-ai/concierge/internal/domain"
)

// UserHandler serves client profile endpoints.
type UserHandler struct {
	*Handler
}

// NewUserHandler creates a user handler.
func NewUserHandler(base *Handler) *UserHandler {
	return &UserHandler{Handler: base}
}

// RegisterRoutes registers user routes.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.Upsert)
		r.Get("/{userID}", h.Get)
		r.Patch("/{userID}", h.Patch)
		r.Delete("/{userID}/wipe", h.Wipe)
		r.Post("/{userID}/metrics", NewMetricHandler(h.Handler).Create)
		r.Get("/{userID}/metrics", NewMetricHandler(h.Handler).List)
	})
}

// Get returns a user profile.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to get user", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil {
		Error(w, http.StatusNotFound, "user not found")
		return
	}
	JSON(w, http.StatusOK, user)
}

// Upsert creates or replaces a user profile.
func (h *UserHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var user domain.User
	if err := DecodeJSON(w, r, MaxRequestBodySize, &user); err != nil {
		DecodeError(w, err)
		return
	}
	user.UserID = strings.TrimSpace(user.UserID)
	if user.UserID == "" {
		Error(w, http.StatusBadRequest, "id is required")
		return
	}
	if user.CoachStyle != "" && !user.CoachStyle.Valid() {
		Error(w, http.StatusBadRequest, "unknown coach_style")
		return
	}
	switch user.Role {
	case "", domain.RoleClient, domain.RoleTrainer, domain.RoleAdmin:
	default:
		Error(w, http.StatusBadRequest, "unknown role")
		return
	}

	if err := h.repo.UpsertUser(r.Context(), &user); err != nil {
		slog.Error("Failed to upsert user", "user_id", user.UserID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to save user")
		return
	}
	saved, err := h.repo.GetUser(r.Context(), user.UserID)
	if err != nil || saved == nil {
		JSON(w, http.StatusOK, user)
		return
	}
	JSON(w, http.StatusOK, saved)
}

// UserPatch holds the fields a trainer may change on a client.
type UserPatch struct {
	CoachStyle           *domain.CoachPersona `json:"coach_style"`
	IsTraveling          *bool                `json:"is_traveling"`
	OverrideInstructions *string              `json:"override_instructions"`
}

// Patch updates coaching settings on an existing user.
func (h *UserHandler) Patch(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var patch UserPatch
	if err := DecodeJSON(w, r, MaxRequestBodySize, &patch); err != nil {
		DecodeError(w, err)
		return
	}
	if patch.CoachStyle != nil && !patch.CoachStyle.Valid() {
		Error(w, http.StatusBadRequest, "unknown coach_style")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to get user", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil {
		Error(w, http.StatusNotFound, "user not found")
		return
	}

	if patch.CoachStyle != nil {
		user.CoachStyle = *patch.CoachStyle
	}
	if patch.IsTraveling != nil {
		user.IsTraveling = *patch.IsTraveling
	}
	if patch.OverrideInstructions != nil {
		user.OverrideInstructions = strings.TrimSpace(*patch.OverrideInstructions)
	}
	user.UpdatedAt = time.Now()

	if err := h.repo.UpsertUser(r.Context(), user); err != nil {
		slog.Error("Failed to update user", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to save user")
		return
	}
	slog.Info("User settings updated",
		"user_id", userID,
		"coach_style", string(user.CoachStyle),
		"traveling", user.IsTraveling,
		"override_set", user.OverrideInstructions != "")
	JSON(w, http.StatusOK, user)
}

// Wipe deletes a user's event logs and metrics and resets their coaching
// settings. The account itself is kept.
func (h *UserHandler) Wipe(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	events, metrics, err := h.repo.DeleteUserData(r.Context(), userID)
	if err != nil {
		slog.Error("GDPR wipe failed", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to wipe data")
		return
	}
	slog.Info("GDPR wipe completed", "user_id", userID, "events_deleted", events, "metrics_deleted", metrics)
	JSON(w, http.StatusOK, map[string]any{
		"status":          "success",
		"message":         "All user data scrubbed.",
		"events_deleted":  events,
		"metrics_deleted": metrics,
	})
}
