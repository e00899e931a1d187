package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Gemini generates content through the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// geminiState is the conversation carried on a Turn between tool calls.
type geminiState struct {
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

// NewGemini creates a Gemini-backed generator.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return NewGeminiFromClient(client, model), nil
}

// NewGeminiFromClient wraps an existing genai client. The vision and
// embedding components share the same client.
func NewGeminiFromClient(client *genai.Client, model string) *Gemini {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Gemini{client: client, model: model}
}

// Client exposes the underlying genai client.
func (g *Gemini) Client() *genai.Client {
	return g.client
}

// Generate returns the model's text for prompt.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}

// GenerateWithTools sends prompt with function declarations attached.
func (g *Gemini) GenerateWithTools(ctx context.Context, prompt string, tools []ToolSpec) (*Turn, error) {
	state := &geminiState{
		contents: []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		config:   &genai.GenerateContentConfig{Tools: []*genai.Tool{geminiTool(tools)}},
	}
	return g.send(ctx, state)
}

// Continue replies to the pending function call with result.
func (g *Gemini) Continue(ctx context.Context, turn *Turn, result string) (*Turn, error) {
	state, ok := turn.state.(*geminiState)
	if !ok || turn.Call == nil {
		return nil, fmt.Errorf("gemini continue: turn has no pending tool call")
	}
	state.contents = append(state.contents, &genai.Content{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			genai.NewPartFromFunctionResponse(turn.Call.Name, map[string]any{"result": result}),
		},
	})
	return g.send(ctx, state)
}

func (g *Gemini) send(ctx context.Context, state *geminiState) (*Turn, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, state.contents, state.config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	turn := &Turn{state: state}
	if calls := resp.FunctionCalls(); len(calls) > 0 {
		call := calls[0]
		turn.Call = &ToolCall{ID: call.ID, Name: call.Name, Args: call.Args}
		if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
			state.contents = append(state.contents, resp.Candidates[0].Content)
		}
		return turn, nil
	}
	turn.Text = resp.Text()
	return turn, nil
}

func geminiTool(tools []ToolSpec) *genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		schema := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema, len(t.Params)),
		}
		for _, p := range t.Params {
			schema.Properties[p.Name] = &genai.Schema{
				Type:        geminiType(p.Type),
				Description: p.Description,
				Enum:        p.Enum,
			}
			if p.Required {
				schema.Required = append(schema.Required, p.Name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schema,
		})
	}
	return &genai.Tool{FunctionDeclarations: decls}
}

func geminiType(t string) genai.Type {
	switch strings.ToLower(t) {
	case "boolean":
		return genai.TypeBoolean
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	default:
		return genai.TypeString
	}
}
