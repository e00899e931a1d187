package llm

import (
	"context"
	"errors"
	"log/slog"
)

// DefaultMaxRounds bounds tool servicing to a single round-trip.
const DefaultMaxRounds = 1

// errRoundLimit is reported when the model still wants a tool after the
// last serviced round and has produced no text.
var errRoundLimit = errors.New("tool round limit reached without a final answer")

// ToolExecutor runs a tool call and returns its text output. Failures are
// reported in the returned text, never as errors.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, call ToolCall) string
}

// ToolExecutorFunc adapts a function to ToolExecutor.
type ToolExecutorFunc func(ctx context.Context, call ToolCall) string

// ExecuteTool calls f.
func (f ToolExecutorFunc) ExecuteTool(ctx context.Context, call ToolCall) string {
	return f(ctx, call)
}

// RoundTrip is the outcome of RunToolRoundTrip.
type RoundTrip struct {
	Text      string
	ToolCalls []ToolCall
	// Truncated is set when the model asked for a tool after the bound was spent.
	Truncated bool
}

// RunToolRoundTrip issues prompt with tools attached and services at most
// maxRounds tool calls before returning the model's text. A request for a
// further tool once the bound is spent ends the loop with whatever text the
// model produced, or tagged error text when it produced none.
func RunToolRoundTrip(
	ctx context.Context,
	gen Generator,
	prompt string,
	tools []ToolSpec,
	exec ToolExecutor,
	maxRounds int,
) (*RoundTrip, error) {
	if maxRounds < 0 {
		maxRounds = 0
	}

	turn, err := gen.GenerateWithTools(ctx, prompt, tools)
	if err != nil {
		return nil, err
	}

	out := &RoundTrip{}
	for rounds := 0; turn.HasToolCall(); rounds++ {
		if rounds >= maxRounds {
			slog.Warn("Model requested a tool after the round limit",
				"tool", turn.Call.Name,
				"max_rounds", maxRounds)
			out.Truncated = true
			break
		}

		call := *turn.Call
		slog.Info("Executing tool call", "tool", call.Name, "round", rounds+1)
		result := exec.ExecuteTool(ctx, call)
		out.ToolCalls = append(out.ToolCalls, call)

		turn, err = gen.Continue(ctx, turn, result)
		if err != nil {
			return nil, err
		}
	}

	out.Text = turn.Text
	if out.Text == "" && out.Truncated {
		out.Text = ErrorText(errRoundLimit)
	}
	return out, nil
}
