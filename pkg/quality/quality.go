// Package quality assesses agent responses: a deterministic per-response
// scorer (C4) and a cross-output contradiction detector (C5). Everything is
// pure text math except the narrow LLM probes, which sit behind the Prober
// interface so tests can stub them.
package quality

import (
	"context"
	"regexp"
	"strings"
)

// Prober issues a short internal LLM call. The reasoning layer binds it to
// the Claude backend.
type Prober interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, prompt string) (string, error)

func (f ProberFunc) Ask(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Metrics is the full quality assessment for one response.
type Metrics struct {
	Confidence         float64            `json:"confidence_score"`
	Coherence          float64            `json:"coherence_score"`
	Completeness       float64            `json:"completeness_score"`
	Readability        float64            `json:"readability_score"`
	WordCount          int                `json:"word_count"`
	ContentFlags       []string           `json:"content_flags"`
	AccuracyIndicators map[string]float64 `json:"accuracy_indicators"`
}

// Content flags.
const (
	FlagExcessiveRepetition = "excessive_repetition"
	FlagPlaceholderContent  = "placeholder_content"
	FlagTooShort            = "too_short"
	FlagTooLong             = "too_long"
)

// uncertaintyPhrases lower a response's confidence score when present.
var uncertaintyPhrases = []string{
	"i'm not sure", "uncertain", "unclear", "might be", "could be",
	"possibly", "perhaps", "i don't know", "not certain", "can't determine",
	"insufficient information", "hard to say", "difficult to determine",
	"i think", "i believe", "seems like", "appears to", "probably",
}

// confidenceBoosters raise it.
var confidenceBoosters = []string{
	"confirmed", "verified", "established", "proven", "demonstrated",
	"clearly", "definitely", "certainly", "undoubtedly", "precisely",
	"specifically", "exactly", "research shows", "studies indicate",
}

var transitionWords = []string{
	"however", "therefore", "furthermore", "moreover", "additionally",
	"consequently", "meanwhile", "similarly", "in contrast", "for example",
	"specifically", "in particular", "as a result", "on the other hand",
}

var vagueTerms = []string{
	"some", "many", "few", "several", "various", "often", "sometimes", "usually",
}

var sentenceSplitRe = regexp.MustCompile(`[.!?]+`)

// splitSentences returns the non-empty trimmed sentence segments of text.
func splitSentences(text string) []string {
	parts := sentenceSplitRe.Split(text, -1)
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// countPresent counts how many phrases occur in the lowercased text.
func countPresent(lower string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			n++
		}
	}
	return n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
