package domain

import (
	"encoding/json"
	"time"
)

// Event log types.
const (
	EventTypeWearable     = "wearable"
	EventTypeVision       = "vision"
	EventTypeChat         = "chat"
	EventTypeIntervention = "intervention"
)

// Suggested actions emitted by the agents.
const (
	ActionRed                = "RED"
	ActionAmber              = "AMBER"
	ActionGreen              = "GREEN"
	ActionWorkoutGenerated   = "WORKOUT_GENERATED"
	ActionFormCheckComplete  = "FORM_CHECK_COMPLETE"
	ActionError              = "ERROR"
	ActionIdle               = "IDLE"
	ActionManualIntervention = "MANUAL_INTERVENTION"
)

// RedactedMedia replaces raw image/video payloads before they are logged.
const RedactedMedia = "[REDACTED_GDPR_MEDIA]"

// WearableEvent carries a recovery reading from a wearable device.
type WearableEvent struct {
	DeviceType    string         `json:"device_type"`
	RecoveryScore int            `json:"recovery_score"`
	RawData       map[string]any `json:"data,omitempty"`
}

// VisionEvent carries an image or video from the client's gym session.
type VisionEvent struct {
	ImageURL          string   `json:"image_url,omitempty"`
	ImageBase64       string   `json:"image_base64,omitempty"`
	VideoBase64       string   `json:"video_base64,omitempty"`
	DetectedEquipment []string `json:"detected_equipment,omitempty"`
	UserQuery         string   `json:"user_query,omitempty"`
}

// HasVideo reports whether a video payload is attached.
func (v *VisionEvent) HasVideo() bool {
	return v != nil && v.VideoBase64 != ""
}

// HasImage reports whether an image payload or reference is attached.
func (v *VisionEvent) HasImage() bool {
	return v != nil && (v.ImageBase64 != "" || v.ImageURL != "")
}

// Redacted returns a copy safe to persist in the event log.
func (v VisionEvent) Redacted() VisionEvent {
	if v.ImageBase64 != "" {
		v.ImageBase64 = RedactedMedia
	}
	if v.VideoBase64 != "" {
		v.VideoBase64 = RedactedMedia
	}
	return v
}

// ChatEvent carries a free-text message from a client or trainer.
type ChatEvent struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// AgentResponse is the single output of one agent graph invocation.
type AgentResponse struct {
	AgentName       string `json:"agent_name"`
	Message         string `json:"message"`
	SuggestedAction string `json:"suggested_action"`
}

// EventLog is an append-only record of an inbound event and the agent decision.
type EventLog struct {
	ID            int64           `json:"id"`
	UserID        string          `json:"user_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	AgentDecision string          `json:"agent_decision,omitempty"`
	AgentMessage  string          `json:"agent_message,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
