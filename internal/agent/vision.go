package agent

import (
	"context"
	"log/slog"

	"github.com/blackcard-ai/concierge/internal/domain"
	"github.com/blackcard-ai/concierge/internal/llm"
	"github.com/blackcard-ai/concierge/internal/prompt"
)

const formCheckFailed = "Sorry, we couldn't analyse that video. Please try a shorter clip filmed side-on in good light."

func (g *Graph) visionNode(ctx context.Context, state *AgentState) {
	v := state.Event.Vision()

	if v.HasVideo() {
		critique, err := g.analyzeForm(ctx, v)
		if err != nil {
			slog.Error("Form analysis failed", "user_id", state.Event.UserID, "error", err)
			g.respond(state, AgentVisionCoach, formCheckFailed, domain.ActionError)
			return
		}
		g.respond(state, AgentVisionCoach, critique, domain.ActionFormCheckComplete)
		return
	}

	equipment := v.DetectedEquipment
	if len(equipment) == 0 && v.HasImage() {
		equipment = g.detectEquipment(ctx, v)
	}

	user := g.profile(ctx, state.Event.UserID)
	text := g.gen.Text(ctx, prompt.VisionPrompt(user.CoachStyle, equipment, v.UserQuery))
	g.respond(state, AgentVision, text, domain.ActionWorkoutGenerated)
}

func (g *Graph) analyzeForm(ctx context.Context, v *domain.VisionEvent) (string, error) {
	video, err := g.media.FromBase64(v.VideoBase64, "video/mp4")
	if err != nil {
		return "", err
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	return g.vision.AnalyzeForm(ctx, video, v.UserQuery)
}

// detectEquipment returns nil when the image cannot be loaded or analysed;
// the node then plans for bodyweight only.
func (g *Graph) detectEquipment(ctx context.Context, v *domain.VisionEvent) []string {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	var (
		image llm.Media
		err   error
	)
	if v.ImageBase64 != "" {
		image, err = g.media.FromBase64(v.ImageBase64, "image/jpeg")
	} else {
		image, err = g.media.FromURL(ctx, v.ImageURL)
	}
	if err != nil {
		slog.Warn("Failed to load gym image", "error", err)
		return nil
	}

	equipment, err := g.vision.DetectEquipment(ctx, image)
	if err != nil {
		slog.Warn("Equipment detection failed", "error", err)
		return nil
	}
	slog.Info("Detected equipment", "items", len(equipment))
	return equipment
}

func (g *Graph) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}
