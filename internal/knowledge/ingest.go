package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blackcard-ai/concierge/internal/domain"
	"github.com/blackcard-ai/concierge/internal/store"
)

// IngestStats summarises an ingestion run.
type IngestStats struct {
	Documents int
	Chunks    int
}

// Ingester chunks documents, embeds the chunks and stores them.
type Ingester struct {
	chunks   store.ChunkStore
	embedder Embedder
}

// NewIngester creates an ingester writing to chunks.
func NewIngester(chunks store.ChunkStore, embedder Embedder) *Ingester {
	return &Ingester{chunks: chunks, embedder: embedder}
}

// IngestDir ingests every markdown file in dir.
func (in *Ingester) IngestDir(ctx context.Context, dir string) (IngestStats, error) {
	docs, err := LoadMarkdownDir(dir)
	if err != nil {
		return IngestStats{}, err
	}
	return in.IngestDocuments(ctx, docs)
}

// IngestDocuments replaces the stored chunks of each document's source, so
// re-running ingestion does not duplicate rows.
func (in *Ingester) IngestDocuments(ctx context.Context, docs []Document) (IngestStats, error) {
	var stats IngestStats
	for _, doc := range docs {
		pieces := ChunkText(doc.Content, chunkSize, chunkOverlap)
		if len(pieces) == 0 {
			slog.Warn("Skipping empty document", "source", doc.Source)
			continue
		}

		vectors, err := in.embedder.Embed(ctx, pieces)
		if err != nil {
			return stats, fmt.Errorf("embed %s: %w", doc.Source, err)
		}
		if len(vectors) != len(pieces) {
			return stats, fmt.Errorf("embed %s: got %d vectors for %d chunks", doc.Source, len(vectors), len(pieces))
		}

		chunks := make([]domain.DocumentChunk, len(pieces))
		for i, text := range pieces {
			chunks[i] = domain.DocumentChunk{
				Source:     doc.Source,
				Content:    text,
				Tags:       doc.Tags,
				Embedding:  vectors[i],
				ChunkIndex: i,
			}
		}
		if err := in.chunks.ReplaceChunks(ctx, doc.Source, chunks); err != nil {
			return stats, fmt.Errorf("store %s: %w", doc.Source, err)
		}

		slog.Info("Ingested document", "source", doc.Source, "chunks", len(chunks), "tags", doc.Tags)
		stats.Documents++
		stats.Chunks += len(chunks)
	}
	return stats, nil
}
