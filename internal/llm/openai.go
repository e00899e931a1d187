package llm

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// OpenAI generates content through an OpenAI-compatible chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
}

type openAIState struct {
	messages []openai.ChatCompletionMessage
	tools    []openai.Tool
}

// NewOpenAI creates an OpenAI-backed generator. baseURL may point at any
// compatible endpoint; empty uses the public API.
func NewOpenAI(apiKey, model, baseURL string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

// Generate returns the model's text for prompt.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	turn, err := o.send(ctx, &openAIState{
		messages: []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return turn.Text, nil
}

// GenerateWithTools sends prompt with function tools attached.
func (o *OpenAI) GenerateWithTools(ctx context.Context, prompt string, tools []ToolSpec) (*Turn, error) {
	return o.send(ctx, &openAIState{
		messages: []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		tools:    openAITools(tools),
	})
}

// Continue answers the pending tool call with result.
func (o *OpenAI) Continue(ctx context.Context, turn *Turn, result string) (*Turn, error) {
	state, ok := turn.state.(*openAIState)
	if !ok || turn.Call == nil {
		return nil, fmt.Errorf("openai continue: turn has no pending tool call")
	}
	state.messages = append(state.messages, openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		Content:    result,
		Name:       turn.Call.Name,
		ToolCallID: turn.Call.ID,
	})
	return o.send(ctx, state)
}

func (o *OpenAI) send(ctx context.Context, state *openAIState) (*Turn, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: state.messages,
		Tools:    state.tools,
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai chat completion: no choices returned")
	}

	msg := resp.Choices[0].Message
	turn := &Turn{state: state}
	if len(msg.ToolCalls) > 0 {
		call := msg.ToolCalls[0]
		args := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("decode tool arguments: %w", err)
			}
		}
		// Only the first call is serviced, so only it is echoed back.
		msg.ToolCalls = msg.ToolCalls[:1]
		state.messages = append(state.messages, msg)
		turn.Call = &ToolCall{ID: call.ID, Name: call.Function.Name, Args: args}
		return turn, nil
	}
	turn.Text = msg.Content
	return turn, nil
}

func openAITools(tools []ToolSpec) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		params := jsonschema.Definition{
			Type:       jsonschema.Object,
			Properties: make(map[string]jsonschema.Definition, len(t.Params)),
		}
		for _, p := range t.Params {
			params.Properties[p.Name] = jsonschema.Definition{
				Type:        jsonschema.DataType(p.Type),
				Description: p.Description,
				Enum:        p.Enum,
			}
			if p.Required {
				params.Required = append(params.Required, p.Name)
			}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}
