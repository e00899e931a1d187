package agent

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/blackcard-ai/concierge/internal/api"
	"github.com/blackcard-ai/concierge/internal/domain"
)

// Terra payload types that carry recovery data.
var terraTypes = map[string]bool{"daily": true, "activity": true, "sleep": true}

// TerraPayload is the subset of a Terra webhook the concierge reads.
type TerraPayload struct {
	Type string           `json:"type"`
	User map[string]any   `json:"user"`
	Data []map[string]any `json:"data"`
}

// WhatsAppPayload is an inbound WhatsApp message relayed as JSON.
type WhatsAppPayload struct {
	From      string `json:"From"`
	Body      string `json:"Body"`
	Timestamp string `json:"Timestamp,omitempty"`
}

// RegisterWebhooks registers the third-party integration routes.
func (h *Handler) RegisterWebhooks(r chi.Router) {
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/terra", h.HandleTerra)
		r.Post("/whatsapp", h.HandleWhatsApp)
	})
}

// HandleTerra maps a Terra wearable push to a wearable event.
func (h *Handler) HandleTerra(w http.ResponseWriter, r *http.Request) {
	var payload TerraPayload
	if err := api.DecodeJSON(w, r, api.MaxRequestBodySize, &payload); err != nil {
		api.DecodeError(w, err)
		return
	}
	userID, _ := payload.User["user_id"].(string)
	slog.Info("Webhook received", "source", "terra", "type", payload.Type, "user_id", userID)

	if !terraTypes[payload.Type] {
		api.JSON(w, http.StatusOK, map[string]string{
			"status": "ignored",
			"reason": "Type " + payload.Type + " not relevant",
		})
		return
	}
	if len(payload.Data) == 0 {
		api.JSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "No data points"})
		return
	}
	if userID == "" {
		api.Error(w, http.StatusBadRequest, "user.user_id is required")
		return
	}
	if !h.allow(w, userID) {
		return
	}

	event := TerraToWearable(payload.Data[0])
	slog.Info("Terra mapped", "user_id", userID, "device", event.DeviceType, "recovery", event.RecoveryScore)

	resp := h.orch.Graph().Invoke(r.Context(), NewState(NewWearableEvent(userID, event)))
	h.orch.Record(r.Context(), userID, domain.EventTypeWearable, event, resp)
	api.JSON(w, http.StatusOK, map[string]string{"status": "ok", "action": resp.SuggestedAction})
}

// TerraToWearable reads the recovery score and device name from the first
// Terra data point. Recovery falls back to readiness, then 0.
func TerraToWearable(point map[string]any) domain.WearableEvent {
	event := domain.WearableEvent{DeviceType: "Unknown Device", RawData: point}

	if device, ok := point["device_data"].(map[string]any); ok {
		if name, ok := device["name"].(string); ok && name != "" {
			event.DeviceType = name
		}
	}
	if scores, ok := point["scores"].(map[string]any); ok {
		for _, key := range []string{"recovery", "readiness"} {
			if v, ok := scores[key].(float64); ok && v != 0 {
				event.RecoveryScore = int(v)
				break
			}
		}
	}
	return event
}

// HandleWhatsApp maps an inbound message to a chat event and replies with
// the concierge's answer.
func (h *Handler) HandleWhatsApp(w http.ResponseWriter, r *http.Request) {
	var payload WhatsAppPayload
	if err := api.DecodeJSON(w, r, api.MaxRequestBodySize, &payload); err != nil {
		api.DecodeError(w, err)
		return
	}
	from := strings.TrimSpace(payload.From)
	if from == "" || strings.TrimSpace(payload.Body) == "" {
		api.Error(w, http.StatusBadRequest, "From and Body are required")
		return
	}
	if !h.allow(w, from) {
		return
	}
	slog.Info("Webhook received", "source", "whatsapp", "user_id", from)

	resp := h.orch.Graph().Invoke(r.Context(), NewState(NewChatEvent(domain.ChatEvent{UserID: from, Message: payload.Body})))
	h.orch.Record(r.Context(), from, domain.EventTypeChat, payload, resp)
	api.JSON(w, http.StatusOK, map[string]string{"status": "ok", "reply": resp.Message})
}
