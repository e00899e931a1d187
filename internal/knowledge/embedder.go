package knowledge

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"google.golang.org/genai"

	"github.com/blackcard-ai/concierge/internal/llm"
)

const (
	maxEmbedBatch = 20
	mockDims      = 64
)

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// GeminiEmbedder generates embeddings with the Gemini embedding API.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder creates an embedder sharing an existing genai client.
func NewGeminiEmbedder(client *genai.Client, model string) *GeminiEmbedder {
	if model == "" {
		model = "text-embedding-004"
	}
	return &GeminiEmbedder{client: client, model: model}
}

// Embed sends texts in batches of at most 20.
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))
		if err := ctx.Err(); err != nil {
			return out, err
		}

		contents := make([]*genai.Content, 0, end-start)
		for _, text := range texts[start:end] {
			contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: text}}})
		}
		resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, nil)
		if err != nil {
			return out, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(resp.Embeddings) != end-start {
			return out, fmt.Errorf("embed batch %d-%d: got %d embeddings", start, end, len(resp.Embeddings))
		}
		for _, emb := range resp.Embeddings {
			out = append(out, emb.Values)
		}
	}
	return out, nil
}

// EmbedderFor returns a Gemini embedder when gen is Gemini-backed and the
// offline hash embedder otherwise.
func EmbedderFor(gen llm.Generator, model string) Embedder {
	if client := llm.GeminiClientOf(gen); client != nil {
		return NewGeminiEmbedder(client, model)
	}
	return HashEmbedder{}
}

// HashEmbedder is a deterministic offline embedder. Each token is hashed into
// one of a fixed number of buckets, so texts sharing vocabulary point in
// similar directions.
type HashEmbedder struct {
	Dims int
}

// Embed implements Embedder.
func (h HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	dims := h.Dims
	if dims <= 0 {
		dims = mockDims
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, dims)
		for _, tok := range tokenize(text) {
			f := fnv.New32a()
			_, _ = f.Write([]byte(tok))
			v[f.Sum32()%uint32(dims)]++
		}
		out[i] = normalize(v)
	}
	return out, nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
	return v
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// the vectors differ in length or either is zero.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
