package llm

import (
	"regexp"
	"strings"
)

var (
	fencedObjectPattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(\\{.*\\})\\s*```")
	bareObjectPattern   = regexp.MustCompile(`(?s)\{.*\}`)
	fencedArrayPattern  = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(\\[.*\\])\\s*```")
	bareArrayPattern    = regexp.MustCompile(`(?s)\[.*\]`)
	trailingComma       = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON pulls a JSON object out of a model reply. Markdown fences and
// surrounding prose are tolerated; trailing commas are removed. Returns ""
// when no object is present.
func ExtractJSON(reply string) string {
	if m := fencedObjectPattern.FindStringSubmatch(reply); len(m) > 1 {
		return tidyJSON(m[1])
	}
	if m := bareObjectPattern.FindString(reply); m != "" {
		return tidyJSON(m)
	}
	return ""
}

// ExtractJSONArray pulls a JSON array out of a model reply.
func ExtractJSONArray(reply string) string {
	if m := fencedArrayPattern.FindStringSubmatch(reply); len(m) > 1 {
		return tidyJSON(m[1])
	}
	if m := bareArrayPattern.FindString(reply); m != "" {
		return tidyJSON(m)
	}
	return ""
}

func tidyJSON(raw string) string {
	return strings.TrimSpace(trailingComma.ReplaceAllString(raw, "$1"))
}
