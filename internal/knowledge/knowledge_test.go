package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackcard-ai/concierge/internal/config"
	"github.com/blackcard-ai/concierge/internal/domain"
	"github.com/blackcard-ai/concierge/internal/store"
)

type failingSearcher struct{ err error }

func (f failingSearcher) Search(context.Context, string, []string, int) ([]domain.Passage, error) {
	return nil, f.err
}

type slowSearcher struct{}

func (slowSearcher) Search(ctx context.Context, _ string, _ []string, _ int) ([]domain.Passage, error) {
	select {
	case <-time.After(time.Second):
		return []domain.Passage{{Source: "late", Content: "too late"}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func testDocs() []Document {
	return []Document{
		{Source: "b_recovery.md", Title: "Recovery", Tags: []string{"recovery"}, Content: "Low HRV means fatigue; prioritise sleep."},
		{Source: "a_recovery.md", Title: "Recovery", Tags: []string{"recovery"}, Content: "Low HRV means fatigue; prioritise sleep."},
		{Source: "hyrox.md", Title: "Hyrox pacing", Tags: []string{"hyrox"}, Content: "Compromised running and fatigue management."},
		{Source: "sleep.md", Title: "Sleep", Tags: []string{"recovery", "sleep"}, Content: "Keep the bedroom cool."},
	}
}

func TestKeywordScoringAndTieBreak(t *testing.T) {
	t.Parallel()
	s := NewKeywordSearcher(testDocs())

	got, err := s.Search(context.Background(), "recovery low hrv fatigue", []string{"recovery"}, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Identical content and title tie; source breaks the tie.
	assert.Equal(t, "a_recovery.md", got[0].Source)
	assert.Equal(t, "b_recovery.md", got[1].Source)
	assert.Equal(t, "sleep.md", got[2].Source)
}

func TestKeywordTagFilterExcludes(t *testing.T) {
	t.Parallel()
	s := NewKeywordSearcher(testDocs())

	got, err := s.Search(context.Background(), "fatigue", []string{"hyrox"}, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hyrox.md", got[0].Source)

	none, err := s.Search(context.Background(), "fatigue", []string{"nutrition"}, 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestKeywordWithoutTagsRanksByTerms(t *testing.T) {
	t.Parallel()
	s := NewKeywordSearcher(testDocs())

	got, err := s.Search(context.Background(), "hyrox pacing", nil, 2)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "hyrox.md", got[0].Source)
}

func TestGuardedSwallowsFailures(t *testing.T) {
	t.Parallel()

	r := NewGuarded("broken", failingSearcher{err: errors.New("index unavailable")}, time.Second)
	assert.Empty(t, r.Retrieve(context.Background(), "recovery", []string{"recovery"}, 3))

	slow := NewGuarded("slow", slowSearcher{}, 20*time.Millisecond)
	assert.Empty(t, slow.Retrieve(context.Background(), "recovery", nil, 3))
}

func TestGuardedDefaultsK(t *testing.T) {
	t.Parallel()
	r := NewGuarded("keyword", NewKeywordSearcher(testDocs()), time.Second)

	got := r.Retrieve(context.Background(), "recovery fatigue sleep", nil, 0)
	assert.Len(t, got, DefaultTopK)
}

func TestFormatPassages(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", FormatPassages(nil))
	got := FormatPassages([]domain.Passage{
		{Source: "a.md", Content: "one"},
		{Source: "b.md", Content: "two"},
	})
	assert.Equal(t, "Source: a.md\nContent: one\n\nSource: b.md\nContent: two", got)
}

func TestDefaultCorpusParses(t *testing.T) {
	t.Parallel()
	docs := DefaultCorpus()
	require.NotEmpty(t, docs)

	r := NewGuarded("keyword", NewKeywordSearcher(docs), time.Second)
	got := r.Retrieve(context.Background(), "recovery low hrv fatigue", []string{"recovery"}, 3)
	require.NotEmpty(t, got)
	assert.Equal(t, "recovery_protocols.md", got[0].Source)
}

func TestParseMarkdown(t *testing.T) {
	t.Parallel()
	doc := ParseMarkdown("travel.md", "# Hotel Sessions\n**Tags**: travel, bodyweight\n\nUse bands.")

	assert.Equal(t, "Hotel Sessions", doc.Title)
	assert.Equal(t, []string{"travel", "bodyweight"}, doc.Tags)
	assert.Contains(t, doc.Content, "Use bands.")
}

func TestChunkTextOverlaps(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("word ", 500)

	chunks := ChunkText(text, 200, 50)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 200)
	}
	assert.Empty(t, ChunkText("   ", 200, 50))
	assert.Equal(t, []string{"short"}, ChunkText("short", 200, 50))
}

func TestChunkTextKeepsRunesWhole(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("é", 300) + strings.Repeat("日本", 100)

	chunks := ChunkText(text, 7, 3)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c), "%q", c)
		assert.NotEmpty(t, c)
	}
}

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-6)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
}

func TestVectorRetrieverEndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "kb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recovery.md"),
		[]byte("# Recovery\n**Tags**: recovery\n\nLow HRV and fatigue call for active recovery and sleep."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hyrox.md"),
		[]byte("# Hyrox\n**Tags**: hyrox\n\nSled push and wall balls pacing."), 0o644))

	ingester := NewIngester(s, HashEmbedder{})
	stats, err := ingester.IngestDir(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)

	// Re-ingesting replaces rather than duplicates.
	_, err = ingester.IngestDir(ctx, dir)
	require.NoError(t, err)
	all, err := s.ListChunks(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, stats.Chunks)

	r, err := New(config.RetrievalConfig{Backend: "vector", Timeout: time.Second}, s, HashEmbedder{})
	require.NoError(t, err)

	got := r.Retrieve(ctx, "recovery low hrv fatigue", nil, 1)
	require.Len(t, got, 1)
	assert.Equal(t, "recovery.md", got[0].Source)

	tagged := r.Retrieve(ctx, "recovery low hrv fatigue", []string{"hyrox"}, 3)
	require.Len(t, tagged, 1)
	assert.Equal(t, "hyrox.md", tagged[0].Source)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	t.Parallel()
	_, err := New(config.RetrievalConfig{Backend: "graph"}, nil, nil)
	assert.Error(t, err)

	_, err = New(config.RetrievalConfig{Backend: "vector"}, nil, nil)
	assert.Error(t, err)
}
