package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrorPrefix tags text produced in place of a failed generation.
const ErrorPrefix = "[LLM_ERROR]"

// errEmptyReply stands in for a reply with no text, such as a safety block or
// a response cut off at the token limit.
var errEmptyReply = errors.New("model returned an empty reply")

// ErrorText renders err as user-visible tagged text.
func ErrorText(err error) string {
	return fmt.Sprintf("%s %s", ErrorPrefix, err.Error())
}

// IsErrorText reports whether s is a tagged generation failure.
func IsErrorText(s string) bool {
	return strings.HasPrefix(s, ErrorPrefix)
}

// Safe wraps a Generator with a per-call timeout and converts every error into
// tagged text, so its methods never return a non-nil error.
type Safe struct {
	inner   Generator
	timeout time.Duration
}

var _ Generator = (*Safe)(nil)

// NewSafe wraps gen. A zero timeout leaves the caller's deadline in charge.
func NewSafe(gen Generator, timeout time.Duration) *Safe {
	if s, ok := gen.(*Safe); ok {
		gen = s.inner
	}
	return &Safe{inner: gen, timeout: timeout}
}

// Text is Generate without the error return.
func (s *Safe) Text(ctx context.Context, prompt string) string {
	text, _ := s.Generate(ctx, prompt)
	return text
}

// Generate returns the model text, or tagged error text on failure.
func (s *Safe) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	text, err := s.inner.Generate(ctx, prompt)
	if err != nil {
		slog.Error("LLM generation error", "error", err)
		return ErrorText(err), nil
	}
	if strings.TrimSpace(text) == "" {
		slog.Warn("LLM returned an empty reply")
		return ErrorText(errEmptyReply), nil
	}
	return text, nil
}

// GenerateWithTools returns a text-only turn carrying tagged error text on failure.
func (s *Safe) GenerateWithTools(ctx context.Context, prompt string, tools []ToolSpec) (*Turn, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	turn, err := s.inner.GenerateWithTools(ctx, prompt, tools)
	if err != nil {
		slog.Error("LLM tool generation error", "error", err)
		return &Turn{Text: ErrorText(err)}, nil
	}
	return checkTurn(turn), nil
}

// Continue returns a text-only turn carrying tagged error text on failure.
func (s *Safe) Continue(ctx context.Context, turn *Turn, result string) (*Turn, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	next, err := s.inner.Continue(ctx, turn, result)
	if err != nil {
		slog.Error("LLM tool follow-up error", "error", err)
		return &Turn{Text: ErrorText(err)}, nil
	}
	return checkTurn(next), nil
}

// checkTurn replaces a turn carrying neither text nor a tool call.
func checkTurn(turn *Turn) *Turn {
	if turn.HasToolCall() || (turn != nil && strings.TrimSpace(turn.Text) != "") {
		return turn
	}
	slog.Warn("LLM returned an empty turn")
	return &Turn{Text: ErrorText(errEmptyReply)}
}

func (s *Safe) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
