package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/blackcard-ai/concierge/internal/domain"
	"github.com/blackcard-ai/concierge/internal/knowledge"
	"github.com/blackcard-ai/concierge/internal/llm"
	"github.com/blackcard-ai/concierge/internal/store"
)

const idleMessage = "No actionable data found. How can I help?"

// GraphConfig holds the collaborators of a Graph. Nil fields fall back to
// offline defaults: the mock generator, mock vision and no retrieval.
type GraphConfig struct {
	Generator         llm.Generator
	Retriever         knowledge.Retriever
	Vision            llm.Vision
	Media             *llm.MediaLoader
	Users             store.UserStore
	RecoveryTopK      int
	GenerationTimeout time.Duration
	Metrics           *Metrics
}

// Graph dispatches one event to exactly one specialist node.
type Graph struct {
	gen       *llm.Safe
	retriever knowledge.Retriever
	vision    llm.Vision
	media     *llm.MediaLoader
	users     store.UserStore
	topK      int
	timeout   time.Duration
	metrics   *Metrics
}

// NewGraph builds a graph from cfg.
func NewGraph(cfg GraphConfig) *Graph {
	gen := cfg.Generator
	if gen == nil {
		gen = llm.NewMock()
	}
	g := &Graph{
		gen:       llm.NewSafe(gen, cfg.GenerationTimeout),
		retriever: cfg.Retriever,
		vision:    cfg.Vision,
		media:     cfg.Media,
		users:     cfg.Users,
		topK:      cfg.RecoveryTopK,
		timeout:   cfg.GenerationTimeout,
		metrics:   cfg.Metrics,
	}
	if g.retriever == nil {
		g.retriever = noRetrieval{}
	}
	if g.vision == nil {
		g.vision = llm.MockVision{}
	}
	if g.media == nil {
		g.media = llm.NewMediaLoader()
	}
	if g.topK <= 0 {
		g.topK = knowledge.DefaultTopK
	}
	return g
}

// Classify picks the node for state from its event kind.
func Classify(state *AgentState) Route {
	if state == nil {
		return RouteConcierge
	}
	switch state.Event.Kind {
	case KindWearable:
		if state.Event.Wearable() != nil {
			return RouteBiometric
		}
	case KindVision:
		if state.Event.Vision() != nil {
			return RouteVision
		}
	case KindChat, KindNone:
	default:
		slog.Warn("Unknown event kind, routing to concierge", "kind", state.Event.Kind.String())
	}
	return RouteConcierge
}

// Invoke runs state through the graph and returns its response. It never
// returns nil.
func (g *Graph) Invoke(ctx context.Context, state *AgentState) *domain.AgentResponse {
	if state == nil {
		state = NewState(Event{})
	}
	start := time.Now()
	state.Next = Classify(state)

	switch state.Next {
	case RouteBiometric:
		g.biometric(ctx, state)
	case RouteVision:
		g.visionNode(ctx, state)
	case RouteConcierge:
		g.concierge(ctx, state)
	}
	if state.Final == nil {
		state.Final = idleResponse()
	}

	g.metrics.observeNode(state.Next, start, state.Final)
	slog.Info("Agent decision",
		"user_id", state.Event.UserID,
		"route", string(state.Next),
		"agent", state.Final.AgentName,
		"action", state.Final.SuggestedAction,
		"duration_ms", time.Since(start).Milliseconds())
	return state.Final
}

// profile returns the client's stored settings, or defaults when the client
// is unknown or the store fails.
func (g *Graph) profile(ctx context.Context, userID string) *domain.User {
	fallback := &domain.User{UserID: userID, CoachStyle: domain.DefaultPersona}
	if g.users == nil || userID == "" {
		return fallback
	}
	user, err := g.users.GetUser(ctx, userID)
	if err != nil {
		slog.Warn("Failed to load client profile, using defaults", "user_id", userID, "error", err)
		return fallback
	}
	if user == nil {
		return fallback
	}
	return user
}

func (g *Graph) respond(state *AgentState, agent, message, action string) {
	state.Messages = append(state.Messages, Message{Role: "assistant", Content: message})
	state.Final = &domain.AgentResponse{
		AgentName:       agent,
		Message:         message,
		SuggestedAction: action,
	}
}

func idleResponse() *domain.AgentResponse {
	return &domain.AgentResponse{
		AgentName:       AgentConcierge,
		Message:         idleMessage,
		SuggestedAction: domain.ActionIdle,
	}
}

type noRetrieval struct{}

func (noRetrieval) Retrieve(context.Context, string, []string, int) []domain.Passage { return nil }
