package knowledge

import (
	"context"
	"fmt"
	"sort"

	"github.com/blackcard-ai/concierge/internal/domain"
	"github.com/blackcard-ai/concierge/internal/store"
)

// VectorSearcher ranks stored chunks by cosine similarity to the embedded query.
type VectorSearcher struct {
	chunks   store.ChunkStore
	embedder Embedder
}

// NewVectorSearcher creates a vector backend over chunks.
func NewVectorSearcher(chunks store.ChunkStore, embedder Embedder) *VectorSearcher {
	return &VectorSearcher{chunks: chunks, embedder: embedder}
}

// Search implements Searcher. Tags filter strictly: a chunk must share at
// least one tag when tags are given. Chunks without a comparable embedding
// are skipped.
func (v *VectorSearcher) Search(ctx context.Context, query string, tags []string, k int) ([]domain.Passage, error) {
	vectors, err := v.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}
	queryVec := vectors[0]

	candidates, err := v.chunks.ListChunks(ctx, tags)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}

	type hit struct {
		chunk domain.DocumentChunk
		score float32
	}
	hits := make([]hit, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Embedding) != len(queryVec) {
			continue
		}
		hits = append(hits, hit{chunk: c, score: CosineSimilarity(queryVec, c.Embedding)})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		if hits[i].chunk.Source != hits[j].chunk.Source {
			return hits[i].chunk.Source < hits[j].chunk.Source
		}
		return hits[i].chunk.ChunkIndex < hits[j].chunk.ChunkIndex
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	passages := make([]domain.Passage, 0, len(hits))
	for _, h := range hits {
		passages = append(passages, domain.Passage{Source: h.chunk.Source, Content: h.chunk.Content})
	}
	return passages, nil
}
