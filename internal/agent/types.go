// Package agent routes inbound coaching events through the specialist agents
// and exposes the plan and intervention workflows built on top of them.
package agent

import (
	"fmt"

	"github.com/blackcard-ai/concierge/internal/domain"
)

// Agent names reported in responses.
const (
	AgentConcierge       = "Concierge"
	AgentBiometricSentry = "Biometric Sentry"
	AgentVision          = "Vision Agent"
	AgentVisionCoach     = "Vision Coach"
)

// EventKind tags which payload an Event carries.
type EventKind int

const (
	// KindNone is an event with no payload; it routes to the idle concierge.
	KindNone EventKind = iota
	KindWearable
	KindVision
	KindChat
)

func (k EventKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindWearable:
		return domain.EventTypeWearable
	case KindVision:
		return domain.EventTypeVision
	case KindChat:
		return domain.EventTypeChat
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is an inbound event holding exactly one payload, selected by Kind.
// Build it with the New*Event constructors.
type Event struct {
	Kind   EventKind
	UserID string

	wearable *domain.WearableEvent
	vision   *domain.VisionEvent
	chat     *domain.ChatEvent

	// Intervention marks a trainer-initiated chat instruction.
	Intervention bool
}

// NewWearableEvent wraps a wearable reading for userID.
func NewWearableEvent(userID string, w domain.WearableEvent) Event {
	return Event{Kind: KindWearable, UserID: userID, wearable: &w}
}

// NewVisionEvent wraps an image or video upload for userID.
func NewVisionEvent(userID string, v domain.VisionEvent) Event {
	return Event{Kind: KindVision, UserID: userID, vision: &v}
}

// NewChatEvent wraps a chat message.
func NewChatEvent(c domain.ChatEvent) Event {
	return Event{Kind: KindChat, UserID: c.UserID, chat: &c}
}

// NewInterventionEvent wraps a trainer instruction to nudge userID.
func NewInterventionEvent(userID, instruction string) Event {
	ev := NewChatEvent(domain.ChatEvent{UserID: userID, Message: instruction})
	ev.Intervention = true
	return ev
}

// Wearable returns the wearable payload, or nil for other kinds.
func (e Event) Wearable() *domain.WearableEvent {
	if e.Kind != KindWearable {
		return nil
	}
	return e.wearable
}

// Vision returns the vision payload, or nil for other kinds.
func (e Event) Vision() *domain.VisionEvent {
	if e.Kind != KindVision {
		return nil
	}
	return e.vision
}

// Chat returns the chat payload, or nil for other kinds.
func (e Event) Chat() *domain.ChatEvent {
	if e.Kind != KindChat {
		return nil
	}
	return e.chat
}

// Route names the node that handles an event.
type Route string

const (
	RouteConcierge Route = "concierge"
	RouteBiometric Route = "biometric_sentry"
	RouteVision    Route = "vision_agent"
)

// Message is one entry of the conversation threaded through an invocation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AgentState is the context of a single graph invocation. It is never shared
// between invocations.
type AgentState struct {
	Event    Event
	Messages []Message
	Next     Route
	Final    *domain.AgentResponse
}

// NewState returns a fresh state for ev.
func NewState(ev Event) *AgentState {
	s := &AgentState{Event: ev}
	if c := ev.Chat(); c != nil && c.Message != "" {
		s.Messages = append(s.Messages, Message{Role: "user", Content: c.Message})
	}
	return s
}
