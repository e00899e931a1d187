package knowledge

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

const (
	chunkSize    = 1000
	chunkOverlap = 200
	tagsPrefix   = "**Tags**:"
)

//go:embed corpus/default.yaml
var defaultCorpusYAML []byte

type corpusFile struct {
	Documents []Document `yaml:"documents"`
}

// DefaultCorpus returns the built-in coaching knowledge base.
func DefaultCorpus() []Document {
	docs, err := ParseCorpus(defaultCorpusYAML)
	if err != nil {
		slog.Error("Built-in knowledge corpus is invalid", "error", err)
		return nil
	}
	return docs
}

// LoadCorpusFile reads a YAML corpus from path.
func LoadCorpusFile(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return ParseCorpus(data)
}

// ParseCorpus decodes a YAML corpus of the form {documents: [...]}.
func ParseCorpus(data []byte) ([]Document, error) {
	var f corpusFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}
	docs := f.Documents[:0]
	for _, d := range f.Documents {
		if strings.TrimSpace(d.Content) == "" {
			continue
		}
		if d.Source == "" {
			return nil, fmt.Errorf("document %q has no source", d.Title)
		}
		d.Content = strings.TrimSpace(d.Content)
		docs = append(docs, d)
	}
	return docs, nil
}

// ParseMarkdown builds a Document from a markdown file. The title is the first
// "# " heading and tags come from a "**Tags**: a, b" line.
func ParseMarkdown(source, content string) Document {
	doc := Document{Source: source, Content: strings.TrimSpace(content)}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case doc.Title == "" && strings.HasPrefix(line, "# "):
			doc.Title = strings.TrimSpace(strings.TrimPrefix(line, "# "))
		case doc.Tags == nil && strings.HasPrefix(line, tagsPrefix):
			for _, t := range strings.Split(strings.TrimPrefix(line, tagsPrefix), ",") {
				if t = strings.TrimSpace(t); t != "" {
					doc.Tags = append(doc.Tags, t)
				}
			}
		}
	}
	return doc
}

// LoadMarkdownDir parses every *.md file in dir, sorted by name.
func LoadMarkdownDir(dir string) ([]Document, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("list markdown files: %w", err)
	}
	sort.Strings(paths)

	docs := make([]Document, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		docs = append(docs, ParseMarkdown(filepath.Base(p), string(data)))
	}
	return docs, nil
}

// ChunkText splits text into pieces of at most size bytes with overlap bytes
// repeated between neighbours. Splits prefer paragraph, then line, then word
// boundaries.
func ChunkText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = chunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, strings.TrimSpace(text[start:]))
			break
		}
		end = splitPoint(text, start, end)
		chunks = append(chunks, strings.TrimSpace(text[start:end]))

		next := end - overlap
		for next > start && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= start {
			next = end
		}
		// Avoid starting mid-word.
		if sp := strings.IndexByte(text[next:end], ' '); sp >= 0 && next != end {
			next += sp + 1
		}
		start = next
	}
	return chunks
}

func splitPoint(text string, start, end int) int {
	window := text[start:end]
	minCut := len(window) / 2
	for _, sep := range []string{"\n\n", "\n", " "} {
		if i := strings.LastIndex(window, sep); i > minCut {
			return start + i + len(sep)
		}
	}
	// No separator: cut on a rune boundary.
	for cut := end; cut > start; cut-- {
		if utf8.RuneStart(text[cut]) {
			return cut
		}
	}
	return end
}
