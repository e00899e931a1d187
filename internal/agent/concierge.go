package agent

import (
	"context"

	"github.com/blackcard-ai/concierge/internal/domain"
	"github.com/blackcard-ai/concierge/internal/prompt"
)

// concierge is the terminal node. Only trainer interventions generate text;
// everything else gets the idle reply.
func (g *Graph) concierge(ctx context.Context, state *AgentState) {
	chat := state.Event.Chat()
	if chat == nil || !state.Event.Intervention {
		state.Final = idleResponse()
		return
	}

	user := g.profile(ctx, chat.UserID)
	text := g.gen.Text(ctx, prompt.InterventionPrompt(
		user.CoachStyle, user.DisplayName(), chat.Message, user.OverrideInstructions))
	g.respond(state, AgentConcierge, text, domain.ActionManualIntervention)
}
