// Package knowledge retrieves grounding passages from the coaching knowledge
// base, either by in-memory keyword scoring or by embedding similarity over
// chunks stored in SQLite.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/blackcard-ai/concierge/internal/config"
	"github.com/blackcard-ai/concierge/internal/domain"
	"github.com/blackcard-ai/concierge/internal/store"
)

// DefaultTopK is the number of passages returned when the caller passes k <= 0.
const DefaultTopK = 3

// Retriever returns at most k passages relevant to query. It never fails:
// an unavailable backend yields no passages.
type Retriever interface {
	Retrieve(ctx context.Context, query string, tags []string, k int) []domain.Passage
}

// Searcher is a retrieval backend that may fail.
type Searcher interface {
	Search(ctx context.Context, query string, tags []string, k int) ([]domain.Passage, error)
}

// Guarded adapts a Searcher to Retriever with a per-call timeout. Errors and
// timeouts are logged and reported as an empty result.
type Guarded struct {
	backend Searcher
	timeout time.Duration
	name    string
}

// NewGuarded wraps backend. A zero timeout leaves the caller's deadline in charge.
func NewGuarded(name string, backend Searcher, timeout time.Duration) *Guarded {
	return &Guarded{backend: backend, timeout: timeout, name: name}
}

// Retrieve implements Retriever.
func (g *Guarded) Retrieve(ctx context.Context, query string, tags []string, k int) []domain.Passage {
	if k <= 0 {
		k = DefaultTopK
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	passages, err := g.backend.Search(ctx, query, tags, k)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		slog.Warn("Retrieval failed, continuing ungrounded",
			"backend", g.name,
			"query", query,
			"error", err)
		return nil
	}
	if len(passages) > k {
		passages = passages[:k]
	}
	return passages
}

// FormatPassages renders passages for prompt inclusion. Returns "" when empty.
func FormatPassages(passages []domain.Passage) string {
	if len(passages) == 0 {
		return ""
	}
	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		parts = append(parts, fmt.Sprintf("Source: %s\nContent: %s", p.Source, p.Content))
	}
	return strings.Join(parts, "\n\n")
}

// New builds the retriever selected by cfg.Backend. The keyword backend loads
// cfg.KnowledgeFile when set and the built-in corpus otherwise.
func New(cfg config.RetrievalConfig, chunks store.ChunkStore, embedder Embedder) (Retriever, error) {
	switch cfg.Backend {
	case "vector":
		if chunks == nil || embedder == nil {
			return nil, fmt.Errorf("vector retriever requires a chunk store and embedder")
		}
		return NewGuarded("vector", NewVectorSearcher(chunks, embedder), cfg.Timeout), nil
	case "keyword", "":
		docs := DefaultCorpus()
		if cfg.KnowledgeFile != "" {
			loaded, err := LoadCorpusFile(cfg.KnowledgeFile)
			if err != nil {
				return nil, fmt.Errorf("load knowledge file: %w", err)
			}
			docs = loaded
		}
		slog.Info("Keyword retriever ready", "documents", len(docs))
		return NewGuarded("keyword", NewKeywordSearcher(docs), cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown retriever backend %q", cfg.Backend)
	}
}
