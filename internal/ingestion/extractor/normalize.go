package extractor

import (
	"regexp"
	"strings"
)

var (
	spaceRuns   = regexp.MustCompile(` +`)
	newlineRuns = regexp.MustCompile(`\n\s*\n\s*\n+`)
)

var punctReplacer = strings.NewReplacer(
	"‘", "'", // left single quote
	"’", "'", // right single quote
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"–", "-", // en dash
	"—", "-", // em dash
)

// NormalizeText collapses whitespace and folds common Unicode punctuation to
// ASCII so that token counts are reproducible across runs.
func NormalizeText(text string) string {
	text = spaceRuns.ReplaceAllString(text, " ")
	text = newlineRuns.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	text = strings.TrimSpace(text)
	return punctReplacer.Replace(text)
}
