package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blackcard-ai/concierge/internal/domain"
	"github.com/blackcard-ai/concierge/internal/knowledge"
	"github.com/blackcard-ai/concierge/internal/llm"
	"github.com/blackcard-ai/concierge/internal/prompt"
	"github.com/blackcard-ai/concierge/internal/store"
	"github.com/blackcard-ai/concierge/internal/tools"
)

// Recovery score defaults used when building plans.
const (
	DefaultRecoveryScore = 75
	UnknownPayloadScore  = 50
)

// Publisher receives every event-log entry after it is stored.
type Publisher interface {
	Publish(entry *domain.EventLog)
}

// OrchestratorConfig holds the collaborators of an Orchestrator.
type OrchestratorConfig struct {
	Graph     *Graph
	Generator llm.Generator
	Repo      store.Repository
	Retriever knowledge.Retriever
	Publisher Publisher
	Metrics   *Metrics

	GenerationTimeout time.Duration
	TopK              int
	// MaxToolRounds defaults to llm.DefaultMaxRounds.
	MaxToolRounds int
}

// Orchestrator runs the externally triggered workflows: workout plans,
// trainer interventions and event recording.
type Orchestrator struct {
	graph     *Graph
	gen       *llm.Safe
	repo      store.Repository
	tool      *tools.ExerciseQuery
	retriever knowledge.Retriever
	publisher Publisher
	metrics   *Metrics
	topK      int
	maxRounds int
}

// NewOrchestrator builds an orchestrator from cfg.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	gen := cfg.Generator
	if gen == nil {
		gen = llm.NewMock()
	}
	o := &Orchestrator{
		graph:     cfg.Graph,
		gen:       llm.NewSafe(gen, cfg.GenerationTimeout),
		repo:      cfg.Repo,
		tool:      tools.NewExerciseQuery(cfg.Repo),
		retriever: cfg.Retriever,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		topK:      cfg.TopK,
		maxRounds: cfg.MaxToolRounds,
	}
	if o.graph == nil {
		o.graph = NewGraph(GraphConfig{
			Generator:         gen,
			Retriever:         cfg.Retriever,
			Users:             cfg.Repo,
			RecoveryTopK:      cfg.TopK,
			GenerationTimeout: cfg.GenerationTimeout,
			Metrics:           cfg.Metrics,
		})
	}
	if o.retriever == nil {
		o.retriever = noRetrieval{}
	}
	if o.topK <= 0 {
		o.topK = knowledge.DefaultTopK
	}
	if o.maxRounds <= 0 {
		o.maxRounds = llm.DefaultMaxRounds
	}
	return o
}

// Graph returns the agent graph used for events.
func (o *Orchestrator) Graph() *Graph {
	return o.graph
}

// PlanResult is the outcome of a workout plan request.
type PlanResult struct {
	ClientID      string
	Text          string
	Plan          *prompt.WorkoutPlan
	Outcome       string
	RecoveryScore int
	ToolCalls     []string
}

// GetWorkoutPlan returns the plan text for clientID. Failures are reported
// in the returned text.
func (o *Orchestrator) GetWorkoutPlan(ctx context.Context, clientID string) string {
	return o.Plan(ctx, clientID).Text
}

// Plan fetches the client's context, composes the structured-plan prompt and
// runs the bounded tool round-trip. A reply that fails schema validation is
// re-prompted once; if it is still invalid the raw text is returned.
func (o *Orchestrator) Plan(ctx context.Context, clientID string) *PlanResult {
	res := &PlanResult{ClientID: clientID}

	score, user, err := o.planContext(ctx, clientID)
	if err != nil {
		slog.Error("Failed to fetch plan context", "user_id", clientID, "error", err)
		res.Text = fmt.Sprintf("Error generating plan: %v", err)
		res.Outcome = PlanFailed
		o.metrics.planOutcome(res.Outcome)
		return res
	}
	res.RecoveryScore = score
	slog.Info("Building workout plan",
		"user_id", clientID,
		"recovery_score", score,
		"persona", string(user.CoachStyle),
		"traveling", user.IsTraveling)

	query, tags := planRetrievalQuery(score, user)
	passages := o.retriever.Retrieve(ctx, query, tags, o.topK)

	composed := prompt.Compose(user.CoachStyle, prompt.Context{
		ClientID:             clientID,
		ClientName:           user.DisplayName(),
		RecoveryScore:        score,
		IsTraveling:          user.IsTraveling,
		Passages:             passages,
		OverrideInstructions: user.OverrideInstructions,
		Target:               prompt.TargetStructuredPlan,
	})

	exec := llm.ToolExecutorFunc(func(ctx context.Context, call llm.ToolCall) string {
		o.metrics.toolCall(call.Name)
		return o.tool.ExecuteTool(ctx, call)
	})
	trip, err := llm.RunToolRoundTrip(ctx, o.gen, composed,
		[]llm.ToolSpec{o.tool.Declaration()}, exec, o.maxRounds)
	if err != nil {
		// Safe never fails; this only guards a misconfigured generator.
		res.Text = fmt.Sprintf("Error generating plan: %v", err)
		res.Outcome = PlanFailed
		o.metrics.planOutcome(res.Outcome)
		return res
	}
	for _, c := range trip.ToolCalls {
		res.ToolCalls = append(res.ToolCalls, c.Name)
	}

	res.Plan, res.Outcome, res.Text = o.validatePlan(ctx, clientID, trip.Text)
	o.metrics.planOutcome(res.Outcome)
	return res
}

// validatePlan parses reply as a plan, re-prompting once with the validation
// problems. It returns the plan (nil when degraded), the outcome and the text
// to hand back to the caller.
func (o *Orchestrator) validatePlan(ctx context.Context, clientID, reply string) (*prompt.WorkoutPlan, string, string) {
	if llm.IsErrorText(reply) {
		return nil, PlanFailed, reply
	}

	plan, err := prompt.ParsePlan(reply)
	if err == nil {
		return plan, PlanStructured, canonicalPlan(plan, reply)
	}
	slog.Warn("Plan failed validation, requesting repair", "user_id", clientID, "error", err)

	repaired := o.gen.Text(ctx, prompt.RepairPrompt(reply, err))
	if !llm.IsErrorText(repaired) {
		plan, err = prompt.ParsePlan(repaired)
		if err == nil {
			return plan, PlanRepaired, canonicalPlan(plan, repaired)
		}
	}
	slog.Warn("Plan still invalid after repair, returning free text", "user_id", clientID, "error", err)
	return nil, PlanFreeText, reply
}

func canonicalPlan(plan *prompt.WorkoutPlan, fallback string) string {
	raw, err := json.Marshal(plan)
	if err != nil {
		return fallback
	}
	return string(raw)
}

// planContext loads the recovery score and client profile concurrently.
func (o *Orchestrator) planContext(ctx context.Context, clientID string) (int, *domain.User, error) {
	if o.repo == nil {
		return 0, nil, errors.New("no repository configured")
	}

	var (
		score int
		user  *domain.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		latest, err := o.repo.LatestEvent(gctx, clientID, domain.EventTypeWearable)
		if err != nil {
			return fmt.Errorf("fetch latest wearable event: %w", err)
		}
		score = DefaultRecoveryScore
		if latest != nil {
			score = ScoreFromPayload(latest.Payload)
		}
		return nil
	})
	g.Go(func() error {
		u, err := o.repo.GetUser(gctx, clientID)
		if err != nil {
			return fmt.Errorf("fetch client profile: %w", err)
		}
		user = u
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, nil, err
	}

	if user == nil {
		user = &domain.User{UserID: clientID}
	}
	user.CoachStyle = user.CoachStyle.OrDefault()
	return ClampScore(score), user, nil
}

// ScoreFromPayload reads a recovery score from a stored wearable payload. It
// accepts a flat sleep_score, the recovery_score written by the wearable
// endpoints, or a nested data.scores.recovery, and returns
// UnknownPayloadScore when none is present.
func ScoreFromPayload(payload json.RawMessage) int {
	var p struct {
		SleepScore    *float64        `json:"sleep_score"`
		RecoveryScore *float64        `json:"recovery_score"`
		Data          json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return UnknownPayloadScore
	}
	switch {
	case p.SleepScore != nil:
		return int(*p.SleepScore)
	case p.RecoveryScore != nil:
		return int(*p.RecoveryScore)
	}

	// data may be an object or a provider's array of points; only the object
	// form carries a score.
	var nested struct {
		Scores struct {
			Recovery *float64 `json:"recovery"`
		} `json:"scores"`
	}
	if err := json.Unmarshal(p.Data, &nested); err != nil || nested.Scores.Recovery == nil {
		return UnknownPayloadScore
	}
	return int(*nested.Scores.Recovery)
}

// planRetrievalQuery picks grounding for the session: recovery protocols
// below the threshold, persona-specific training material above it.
func planRetrievalQuery(score int, user *domain.User) (string, []string) {
	if score < prompt.RecoveryThreshold {
		return recoveryQuery, recoveryTags
	}
	var tags []string
	switch user.CoachStyle {
	case domain.PersonaEmpoweredMum:
		tags = []string{"postnatal", "strength"}
	case domain.PersonaMuscleArchitect:
		tags = []string{"hypertrophy", "strength"}
	case domain.PersonaBioOptimizer:
		tags = []string{"programming", "lifestyle"}
	default:
		tags = []string{"hyrox", "conditioning"}
	}
	if user.IsTraveling {
		tags = append(tags, "travel")
	}
	return "training session programming intensity", tags
}

// interventionInstruction is the synthetic trainer message behind a nudge.
func interventionInstruction(clientID string) string {
	return fmt.Sprintf("Generate a motivational intervention for client %s. They might be slacking.", clientID)
}

// TriggerIntervention generates a trainer-initiated nudge for clientID through
// the concierge path and records it as an intervention event.
func (o *Orchestrator) TriggerIntervention(ctx context.Context, clientID string) *domain.AgentResponse {
	state := NewState(NewInterventionEvent(clientID, interventionInstruction(clientID)))
	resp := o.graph.Invoke(ctx, state)

	o.Record(ctx, clientID, domain.EventTypeIntervention,
		map[string]string{"trigger": "manual_trainer_intervention"}, resp)
	return resp
}

// Record appends an event-log entry and publishes it. Storage failures are
// logged and otherwise ignored; the returned entry is nil when nothing was
// stored.
func (o *Orchestrator) Record(ctx context.Context, userID, eventType string, payload any, resp *domain.AgentResponse) *domain.EventLog {
	if o.repo == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal event payload", "user_id", userID, "event_type", eventType, "error", err)
		raw = []byte("{}")
	}

	entry := &domain.EventLog{
		UserID:    userID,
		EventType: eventType,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}
	if resp != nil {
		entry.AgentDecision = resp.SuggestedAction
		entry.AgentMessage = resp.Message
	}

	id, err := o.repo.AppendEvent(ctx, entry)
	if err != nil {
		slog.Error("Failed to append event log", "user_id", userID, "event_type", eventType, "error", err)
		return nil
	}
	entry.ID = id
	if o.publisher != nil {
		o.publisher.Publish(entry)
	}
	return entry
}
