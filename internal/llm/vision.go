package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const maxMediaBytes = 20 << 20

// Media is an image or video payload sent to a multimodal model.
type Media struct {
	Data     []byte
	MIMEType string
}

// EquipmentDetector lists the gym equipment visible in an image.
type EquipmentDetector interface {
	DetectEquipment(ctx context.Context, image Media) ([]string, error)
}

// FormAnalyzer critiques exercise technique in a video.
type FormAnalyzer interface {
	AnalyzeForm(ctx context.Context, video Media, note string) (string, error)
}

const equipmentPrompt = `Analyze this gym environment. List every visible piece of equipment (e.g. Rack, Dumbbells, Cables). Ignore people.
Respond with a JSON array of strings only.`

const formPrompt = `You are an elite strength coach reviewing a client's training video.
Identify the exercise, then give a concise technique critique: what is good, the single most important fix, and one cue to apply next set.
Use British English. Keep it under 120 words.`

// GeminiVision implements EquipmentDetector and FormAnalyzer with Gemini multimodal input.
type GeminiVision struct {
	client *genai.Client
	model  string
}

// NewGeminiVision creates a vision client sharing an existing genai client.
func NewGeminiVision(client *genai.Client, model string) *GeminiVision {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiVision{client: client, model: model}
}

// DetectEquipment asks the model for a JSON list of equipment names.
func (v *GeminiVision) DetectEquipment(ctx context.Context, image Media) ([]string, error) {
	text, err := v.generate(ctx, equipmentPrompt, image)
	if err != nil {
		return nil, fmt.Errorf("detect equipment: %w", err)
	}
	return parseEquipmentList(text)
}

// AnalyzeForm returns a technique critique for the video.
func (v *GeminiVision) AnalyzeForm(ctx context.Context, video Media, note string) (string, error) {
	prompt := formPrompt
	if note != "" {
		prompt += "\nClient note: " + note
	}
	text, err := v.generate(ctx, prompt, video)
	if err != nil {
		return "", fmt.Errorf("analyze form: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("analyze form: empty response")
	}
	return text, nil
}

func (v *GeminiVision) generate(ctx context.Context, prompt string, media Media) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(media.Data, media.MIMEType),
		}, genai.RoleUser),
	}
	resp, err := v.client.Models.GenerateContent(ctx, v.model, contents, nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func parseEquipmentList(text string) ([]string, error) {
	raw := ExtractJSONArray(text)
	if raw == "" {
		return nil, fmt.Errorf("no equipment list in response")
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode equipment list: %w", err)
	}
	out := items[:0]
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// MockVision returns canned results for local development.
type MockVision struct{}

// DetectEquipment returns a fixed commercial-gym inventory for any image.
func (MockVision) DetectEquipment(_ context.Context, image Media) ([]string, error) {
	if len(image.Data) == 0 {
		return nil, nil
	}
	return []string{"Power Rack", "Olympic Barbell", "Kettlebells (16kg, 24kg)"}, nil
}

// AnalyzeForm returns a tagged placeholder critique.
func (MockVision) AnalyzeForm(_ context.Context, video Media, _ string) (string, error) {
	if len(video.Data) == 0 {
		return "", errors.New("analyze form: empty video")
	}
	return fmt.Sprintf("%s Form check received (%d bytes). Brace before each rep and control the eccentric.",
		MockPrefix, len(video.Data)), nil
}

// MediaLoader turns event payloads into Media.
type MediaLoader struct {
	HTTP *http.Client
}

// NewMediaLoader returns a loader with a bounded download timeout.
func NewMediaLoader() *MediaLoader {
	return &MediaLoader{HTTP: &http.Client{Timeout: 15 * time.Second}}
}

// FromBase64 decodes a raw or data-URL base64 payload.
func (l *MediaLoader) FromBase64(payload, fallbackMIME string) (Media, error) {
	mime := fallbackMIME
	if strings.HasPrefix(payload, "data:") {
		header, body, ok := strings.Cut(payload, ",")
		if !ok {
			return Media{}, fmt.Errorf("malformed data URL")
		}
		if m, _, _ := strings.Cut(strings.TrimPrefix(header, "data:"), ";"); m != "" {
			mime = m
		}
		payload = body
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return Media{}, fmt.Errorf("decode base64 media: %w", err)
	}
	if len(data) > maxMediaBytes {
		return Media{}, fmt.Errorf("media exceeds %d bytes", maxMediaBytes)
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return Media{Data: data, MIMEType: mime}, nil
}

// FromURL downloads an image referenced by URL.
func (l *MediaLoader) FromURL(ctx context.Context, url string) (Media, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Media{}, fmt.Errorf("build media request: %w", err)
	}
	resp, err := l.HTTP.Do(req)
	if err != nil {
		return Media{}, fmt.Errorf("fetch media: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Media{}, fmt.Errorf("fetch media: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return Media{}, fmt.Errorf("read media: %w", err)
	}
	if len(data) > maxMediaBytes {
		return Media{}, fmt.Errorf("media exceeds %d bytes", maxMediaBytes)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return Media{Data: data, MIMEType: mime}, nil
}

// Vision combines both multimodal capabilities.
type Vision interface {
	EquipmentDetector
	FormAnalyzer
}

// NewVision returns Gemini vision when gen is Gemini-backed, a failing
// vision when gen is Unavailable, otherwise the mock.
func NewVision(gen Generator, model string) Vision {
	if client := GeminiClientOf(gen); client != nil {
		return NewGeminiVision(client, model)
	}
	if s, ok := gen.(*Safe); ok {
		gen = s.inner
	}
	if u, ok := gen.(*Unavailable); ok {
		return unavailableVision{err: u.Err}
	}
	return MockVision{}
}

type unavailableVision struct {
	err error
}

func (v unavailableVision) DetectEquipment(context.Context, Media) ([]string, error) {
	return nil, v.err
}

func (v unavailableVision) AnalyzeForm(context.Context, Media, string) (string, error) {
	return "", v.err
}

// GeminiClientOf returns the genai client behind gen, or nil when gen is not
// Gemini-backed.
func GeminiClientOf(gen Generator) *genai.Client {
	if s, ok := gen.(*Safe); ok {
		gen = s.inner
	}
	if g, ok := gen.(*Gemini); ok {
		return g.Client()
	}
	return nil
}
