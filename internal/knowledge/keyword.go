package knowledge

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/blackcard-ai/concierge/internal/domain"
)

// Document is one entry of the in-memory knowledge corpus.
type Document struct {
	Source  string   `yaml:"source"`
	Title   string   `yaml:"title"`
	Tags    []string `yaml:"tags"`
	Content string   `yaml:"content"`
}

// KeywordSearcher scores documents by term overlap with the query.
type KeywordSearcher struct {
	docs []Document
}

// NewKeywordSearcher indexes docs. The slice is read-only afterwards.
func NewKeywordSearcher(docs []Document) *KeywordSearcher {
	return &KeywordSearcher{docs: slices.Clone(docs)}
}

type scoredDoc struct {
	doc   Document
	score int
}

// Search implements Searcher. Score is content term hits, plus twice the hits
// in title or source, plus three per matching tag. Documents that share no tag
// with a non-empty tag filter are skipped. Ties order by source.
func (s *KeywordSearcher) Search(_ context.Context, query string, tags []string, k int) ([]domain.Passage, error) {
	terms := tokenize(query)
	wanted := normalizeTags(tags)

	var scored []scoredDoc
	for _, doc := range s.docs {
		docTags := normalizeTags(doc.Tags)
		tagHits := 0
		for _, t := range wanted {
			if slices.Contains(docTags, t) {
				tagHits++
			}
		}
		if len(wanted) > 0 && tagHits == 0 {
			continue
		}

		content := strings.ToLower(doc.Content)
		heading := strings.ToLower(doc.Title + " " + doc.Source)
		score := 3 * tagHits
		for _, term := range terms {
			if strings.Contains(content, term) {
				score++
			}
			if strings.Contains(heading, term) {
				score += 2
			}
		}
		if score == 0 {
			continue
		}
		scored = append(scored, scoredDoc{doc: doc, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].doc.Source < scored[j].doc.Source
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	passages := make([]domain.Passage, 0, len(scored))
	for _, sd := range scored {
		passages = append(passages, domain.Passage{Source: sd.doc.Source, Content: sd.doc.Content})
	}
	return passages, nil
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 2 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}
