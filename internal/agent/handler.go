package agent

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/blackcard-ai/concierge/internal/api"
	"github.com/blackcard-ai/concierge/internal/domain"
	"github.com/blackcard-ai/concierge/internal/prompt"
	"github.com/blackcard-ai/concierge/internal/store"
)

// DemoClientID receives events posted without a user_id.
const DemoClientID = "1"

const (
	defaultEventPage = 50
	maxEventPage     = 200
)

// Handler serves the event ingestion, plan and intervention endpoints.
type Handler struct {
	orch    *Orchestrator
	repo    store.Repository
	limiter *RateLimiter
}

// NewHandler creates an agent handler. A nil limiter disables rate limiting.
func NewHandler(orch *Orchestrator, repo store.Repository, limiter *RateLimiter) *Handler {
	return &Handler{orch: orch, repo: repo, limiter: limiter}
}

// RegisterRoutes registers agent routes (requires authentication).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Post("/wearable", h.HandleWearable)
		r.Post("/vision", h.HandleVision)
		r.Post("/chat", h.HandleChat)
		r.Post("/intervention/{clientID}", h.HandleIntervention)
	})
	r.Get("/workouts/plan/{clientID}", h.HandlePlan)
}

type wearableRequest struct {
	UserID string `json:"user_id"`
	domain.WearableEvent
}

type visionRequest struct {
	UserID string `json:"user_id"`
	domain.VisionEvent
}

func clientOrDemo(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return DemoClientID
}

func (h *Handler) allow(w http.ResponseWriter, userID string) bool {
	if h.limiter.Allow(userID) {
		return true
	}
	slog.Warn("Event rate limit exceeded", "user_id", userID)
	api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
	return false
}

// HandleWearable routes a wearable reading to the Biometric Sentry.
func (h *Handler) HandleWearable(w http.ResponseWriter, r *http.Request) {
	var req wearableRequest
	if err := api.DecodeJSON(w, r, api.MaxRequestBodySize, &req); err != nil {
		api.DecodeError(w, err)
		return
	}
	userID := clientOrDemo(req.UserID)
	if !h.allow(w, userID) {
		return
	}
	slog.Info("Event received", "event_type", domain.EventTypeWearable, "user_id", userID,
		"device", req.DeviceType, "request_id", chiMiddleware.GetReqID(r.Context()))

	resp := h.orch.Graph().Invoke(r.Context(), NewState(NewWearableEvent(userID, req.WearableEvent)))
	h.orch.Record(r.Context(), userID, domain.EventTypeWearable, req.WearableEvent, resp)
	api.JSON(w, http.StatusOK, resp)
}

// HandleVision routes an image or video upload to the vision node. Media is
// redacted before the event is logged.
func (h *Handler) HandleVision(w http.ResponseWriter, r *http.Request) {
	var req visionRequest
	if err := api.DecodeJSON(w, r, api.MaxMediaBodySize, &req); err != nil {
		api.DecodeError(w, err)
		return
	}
	userID := clientOrDemo(req.UserID)
	if !h.allow(w, userID) {
		return
	}
	slog.Info("Event received", "event_type", domain.EventTypeVision, "user_id", userID,
		"has_video", req.HasVideo(), "has_image", req.HasImage(),
		"request_id", chiMiddleware.GetReqID(r.Context()))

	resp := h.orch.Graph().Invoke(r.Context(), NewState(NewVisionEvent(userID, req.VisionEvent)))
	h.orch.Record(r.Context(), userID, domain.EventTypeVision, req.VisionEvent.Redacted(), resp)
	api.JSON(w, http.StatusOK, resp)
}

// HandleChat routes a chat message through the graph.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatEvent
	if err := api.DecodeJSON(w, r, api.MaxRequestBodySize, &req); err != nil {
		api.DecodeError(w, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}
	req.UserID = clientOrDemo(req.UserID)
	if !h.allow(w, req.UserID) {
		return
	}
	slog.Info("Event received", "event_type", domain.EventTypeChat, "user_id", req.UserID,
		"request_id", chiMiddleware.GetReqID(r.Context()))

	resp := h.orch.Graph().Invoke(r.Context(), NewState(NewChatEvent(req)))
	h.orch.Record(r.Context(), req.UserID, domain.EventTypeChat, req, resp)
	api.JSON(w, http.StatusOK, resp)
}

// HandleIntervention generates a trainer-initiated nudge for a client.
func (h *Handler) HandleIntervention(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	if !h.allow(w, clientID) {
		return
	}
	resp := h.orch.TriggerIntervention(r.Context(), clientID)
	api.JSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"message":  resp.Message,
		"decision": resp.SuggestedAction,
	})
}

type planResponse struct {
	ClientID      string              `json:"client_id"`
	Plan          string              `json:"plan"`
	Structured    *prompt.WorkoutPlan `json:"structured,omitempty"`
	Outcome       string              `json:"outcome"`
	RecoveryScore int                 `json:"recovery_score"`
	ToolCalls     []string            `json:"tool_calls,omitempty"`
}

// HandlePlan builds a workout plan for a client.
func (h *Handler) HandlePlan(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	if !h.allow(w, clientID) {
		return
	}
	res := h.orch.Plan(r.Context(), clientID)

	api.JSON(w, http.StatusOK, planResponse{
		ClientID:      res.ClientID,
		Plan:          res.Text,
		Structured:    res.Plan,
		Outcome:       res.Outcome,
		RecoveryScore: res.RecoveryScore,
		ToolCalls:     res.ToolCalls,
	})
}

// ListEvents returns the newest event-log entries, optionally limited to one
// trainer's clients.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventPage
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventPage)
	}

	var userIDs []string
	if trainerID := r.URL.Query().Get("trainer_id"); trainerID != "" {
		clients, err := h.repo.ListClients(r.Context(), trainerID)
		if err != nil {
			slog.Error("Failed to list trainer clients", "trainer_id", trainerID, "error", err)
			api.Error(w, http.StatusInternalServerError, "database query failed")
			return
		}
		if len(clients) == 0 {
			api.JSON(w, http.StatusOK, []*domain.EventLog{})
			return
		}
		for _, c := range clients {
			userIDs = append(userIDs, c.UserID)
		}
	}

	events, err := h.repo.ListEvents(r.Context(), limit, userIDs...)
	if err != nil {
		slog.Error("Failed to list events", "error", err)
		api.Error(w, http.StatusInternalServerError, "database query failed")
		return
	}
	if events == nil {
		events = []*domain.EventLog{}
	}
	api.JSON(w, http.StatusOK, events)
}
