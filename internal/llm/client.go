// Package llm provides the generation client used by the agent graph: a
// backend-neutral Generator interface, Gemini/OpenAI/mock backends, a
// timeout-and-tag decorator, and the bounded tool round-trip helper.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/blackcard-ai/concierge/internal/config"
)

// ErrNotConfigured is returned when a provider is selected without credentials.
var ErrNotConfigured = errors.New("llm provider not configured")

// ToolParam describes one argument of a tool the model may call.
type ToolParam struct {
	Name        string
	Type        string // "string", "boolean", "integer" or "number"
	Description string
	Required    bool
	Enum        []string
}

// ToolSpec declares a tool the model may call.
type ToolSpec struct {
	Name        string
	Description string
	Params      []ToolParam
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// Turn is one model reply: either final text or exactly one tool call.
type Turn struct {
	Text string
	Call *ToolCall

	// state is the backend conversation needed to send the tool result back.
	state any
}

// HasToolCall reports whether the model asked for a tool.
func (t *Turn) HasToolCall() bool {
	return t != nil && t.Call != nil
}

// Generator produces text from prompts, optionally with tool calling.
type Generator interface {
	// Generate returns the model's text for a single prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateWithTools sends prompt with tool declarations attached.
	GenerateWithTools(ctx context.Context, prompt string, tools []ToolSpec) (*Turn, error)

	// Continue sends a tool result back on the conversation held by turn.
	Continue(ctx context.Context, turn *Turn, result string) (*Turn, error)
}

// New builds the generator selected by cfg.Provider. Outside production a
// provider without an API key falls back to the mock so local runs work
// without credentials. In production, and whenever a backend fails to
// initialize, the result is an Unavailable generator whose calls fail and
// surface as tagged error text.
func New(ctx context.Context, cfg config.LLMConfig, production bool) (Generator, error) {
	var (
		gen Generator
		err error
	)
	switch cfg.Provider {
	case "gemini":
		gen, err = NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case "openai":
		gen, err = NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	case "mock", "":
		if production {
			slog.Warn("Mock LLM provider selected in production")
		}
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err == nil {
		return gen, nil
	}

	if errors.Is(err, ErrNotConfigured) && !production {
		slog.Warn("LLM API key not set, using mock generator", "provider", cfg.Provider)
		return NewMock(), nil
	}
	slog.Error("LLM provider unavailable, generation will return tagged errors",
		"provider", cfg.Provider, "error", err)
	return &Unavailable{Err: fmt.Errorf("%s: %w", cfg.Provider, err)}, nil
}

// Unavailable is a Generator for a provider that could not be initialized.
// Every call fails with Err.
type Unavailable struct {
	Err error
}

var _ Generator = (*Unavailable)(nil)

// Generate implements Generator.
func (u *Unavailable) Generate(context.Context, string) (string, error) {
	return "", u.Err
}

// GenerateWithTools implements Generator.
func (u *Unavailable) GenerateWithTools(context.Context, string, []ToolSpec) (*Turn, error) {
	return nil, u.Err
}

// Continue implements Generator.
func (u *Unavailable) Continue(context.Context, *Turn, string) (*Turn, error) {
	return nil, u.Err
}

func firstN(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
