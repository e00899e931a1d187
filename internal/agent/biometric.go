package agent

import (
	"context"
	"log/slog"

	"github.com/blackcard-ai/concierge/internal/domain"
	"github.com/blackcard-ai/concierge/internal/prompt"
)

// Recovery status thresholds. Intervals are half-open: 40 is AMBER, 70 is GREEN.
const (
	amberThreshold = 40
	greenThreshold = 70
)

const recoveryQuery = "recovery low hrv fatigue"

var recoveryTags = []string{"recovery"}

// ClampScore limits a recovery score to [0, 100].
func ClampScore(score int) int {
	return min(max(score, 0), 100)
}

// RecoveryStatus maps a recovery score to RED, AMBER or GREEN.
func RecoveryStatus(score int) string {
	switch {
	case score < amberThreshold:
		return domain.ActionRed
	case score < greenThreshold:
		return domain.ActionAmber
	default:
		return domain.ActionGreen
	}
}

func (g *Graph) biometric(ctx context.Context, state *AgentState) {
	w := state.Event.Wearable()
	score := ClampScore(w.RecoveryScore)
	if score != w.RecoveryScore {
		slog.Warn("Recovery score out of range, clamped",
			"user_id", state.Event.UserID,
			"raw", w.RecoveryScore,
			"clamped", score)
	}
	status := RecoveryStatus(score)

	var passages []domain.Passage
	if status != domain.ActionGreen {
		passages = g.retriever.Retrieve(ctx, recoveryQuery, recoveryTags, g.topK)
		slog.Debug("Biometric Sentry retrieved context", "passages", len(passages))
	}

	device := w.DeviceType
	if device == "" {
		device = "Unknown Device"
	}
	user := g.profile(ctx, state.Event.UserID)
	text := g.gen.Text(ctx, prompt.BiometricPrompt(user.CoachStyle, score, status, device, passages))

	g.respond(state, AgentBiometricSentry, text, status)
}
