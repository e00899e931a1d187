package llm

import (
	"context"
	"fmt"
)

// MockPrefix tags every reply produced by the mock generator.
const MockPrefix = "[MOCK_LLM_RESPONSE]"

// Mock is a deterministic generator used when no provider is configured.
type Mock struct{}

// NewMock returns a mock generator.
func NewMock() *Mock {
	return &Mock{}
}

// Generate echoes the first 30 characters of the prompt.
func (m *Mock) Generate(_ context.Context, prompt string) (string, error) {
	return mockReply(prompt), nil
}

// GenerateWithTools never requests a tool.
func (m *Mock) GenerateWithTools(_ context.Context, prompt string, _ []ToolSpec) (*Turn, error) {
	return &Turn{Text: mockReply(prompt)}, nil
}

// Continue echoes the tool result.
func (m *Mock) Continue(_ context.Context, _ *Turn, result string) (*Turn, error) {
	return &Turn{Text: mockReply(result)}, nil
}

func mockReply(prompt string) string {
	return fmt.Sprintf("%s Response to: %s...", MockPrefix, firstN(prompt, 30))
}
