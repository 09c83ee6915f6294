package quality

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Scorer computes quality metrics for a single response. Every component is
// deterministic except the task-alignment probe.
type Scorer struct {
	prober Prober
	logger *slog.Logger
}

func NewScorer(p Prober) *Scorer {
	return &Scorer{
		prober: p,
		logger: slog.Default().With("component", "quality.scorer"),
	}
}

// optimalWordCount is the task-type dependent length target used by the
// length component of the confidence score.
func optimalWordCount(taskType string) float64 {
	switch taskType {
	case "code_generation":
		return 200
	case "explanation":
		return 300
	case "fact_check":
		return 150
	default:
		return 250
	}
}

// Score assesses response against the task type and originating prompt. It
// never fails: a probe error degrades the alignment component to its neutral
// 0.5.
func (s *Scorer) Score(ctx context.Context, response, taskType, prompt string) Metrics {
	words := strings.Fields(response)
	w := float64(len(words))
	lower := strings.ToLower(response)

	return Metrics{
		WordCount:    len(words),
		Confidence:   s.confidenceScore(ctx, response, lower, w, taskType, prompt),
		Coherence:    coherenceScore(response, lower, w),
		Completeness: completenessScore(response, lower, w, taskType),
		Readability:  readabilityScore(response, w),
		ContentFlags: contentFlags(response, lower, words),
		AccuracyIndicators: map[string]float64{
			"internal_consistency": consistencyIndicator(response, lower),
			"citation_quality":     citationIndicator(response),
			"specificity":          specificityIndicator(response, lower, w),
		},
	}
}

func (s *Scorer) confidenceScore(ctx context.Context, response, lower string, w float64, taskType, prompt string) float64 {
	if w == 0 {
		return 0
	}

	length := 0.2 + 0.8*math.Min(w/optimalWordCount(taskType), 1.0)

	hundreds := math.Max(w/100, 1)
	uncertainty := math.Max(0, 1-0.3*(countOccurrences(lower, uncertaintyPhrases)/hundreds))
	uncertainty = clamp01(uncertainty + 0.2*(countOccurrences(lower, confidenceBoosters)/hundreds))

	specificity := specificityComponent(response)
	structure := structureComponent(response)
	alignment := s.taskAlignment(ctx, response, taskType, prompt)

	score := 0.15*length + 0.25*uncertainty + 0.20*specificity + 0.15*structure + 0.25*alignment
	return clamp01(score)
}

var (
	digitRunRe   = regexp.MustCompile(`\b\d+\b`)
	yearRe       = regexp.MustCompile(`\b\d{4}\b`)
	properPairRe = regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`)
	bulletRe     = regexp.MustCompile(`(?m)^\s*[-*•]\s`)
	numberedRe   = regexp.MustCompile(`(?m)^\s*\d+\.\s`)
	paragraphRe  = regexp.MustCompile(`\n\s*\n`)
)

func specificityComponent(response string) float64 {
	n := len(digitRunRe.FindAllString(response, -1)) +
		len(yearRe.FindAllString(response, -1)) +
		len(properPairRe.FindAllString(response, -1))
	return math.Min(float64(n)/10, 1.0)
}

func structureComponent(response string) float64 {
	score := 0.5
	if bulletRe.MatchString(response) {
		score += 0.2
	}
	if numberedRe.MatchString(response) {
		score += 0.2
	}
	if len(paragraphRe.FindAllString(response, -1)) > 1 {
		score += 0.1
	}
	return clamp01(score)
}

var decimalRe = regexp.MustCompile(`[01]?\.\d+|[01]\b`)

// taskAlignment asks the probe backend to rate relevance on [0,1]. Any
// failure, including an unparseable reply, yields the neutral 0.5.
func (s *Scorer) taskAlignment(ctx context.Context, response, taskType, prompt string) float64 {
	if s.prober == nil {
		return 0.5
	}
	probe := fmt.Sprintf(
		"Rate how well this response addresses the task on a scale of 0.0 to 1.0.\n"+
			"Task type: %s\nOriginal prompt: %s\nResponse: %s\n"+
			"Reply with only a single decimal number between 0.0 and 1.0.",
		taskType, truncateRunes(prompt, 300), truncateRunes(response, 800))

	out, err := s.prober.Ask(ctx, probe)
	if err != nil {
		s.logger.Warn("alignment probe failed", "task_type", taskType, "error", err)
		return 0.5
	}
	match := decimalRe.FindString(out)
	if match == "" {
		return 0.5
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0.5
	}
	return clamp01(v)
}

func coherenceScore(response, lower string, w float64) float64 {
	sentences := splitSentences(response)
	if len(sentences) < 2 {
		return 0.8
	}

	transitions := math.Min(countOccurrences(lower, transitionWords), 4)

	words := strings.Fields(lower)
	unique := map[string]struct{}{}
	for _, word := range words {
		unique[word] = struct{}{}
	}
	diversity := 1.0
	if len(words) > 0 {
		diversity = float64(len(unique)) / float64(len(words))
	}

	return clamp01((0.7 + 0.05*transitions) * diversity)
}

func completenessScore(response, lower string, w float64, taskType string) float64 {
	score := 0.5
	switch taskType {
	case "explanation":
		if strings.Contains(lower, "example") || strings.Contains(lower, "for instance") {
			score += 0.2
		}
		if w > 100 {
			score += 0.2
		}
		if strings.Contains(lower, "because") || strings.Contains(lower, "due to") {
			score += 0.1
		}
	case "fact_check":
		if countPresent(lower, []string{"verified", "confirmed", "according to", "source", "study"}) > 0 {
			score += 0.3
		}
	case "code_generation":
		if strings.Contains(response, "```") || strings.Contains(lower, "def ") ||
			strings.Contains(lower, "func ") || strings.Contains(lower, "function") {
			score += 0.3
		}
		if strings.Contains(response, "#") || strings.Contains(response, "//") {
			score += 0.1
		}
	}
	if w > 50 {
		score += 0.1
	}
	return clamp01(score)
}

func readabilityScore(response string, w float64) float64 {
	sentences := splitSentences(response)
	if len(sentences) == 0 || w == 0 {
		return 0
	}
	avg := w / float64(len(sentences))
	switch {
	case avg >= 10 && avg <= 25:
		return 1.0
	case avg < 10:
		return 0.7
	default:
		return math.Max(0.3, 1-0.02*(avg-25))
	}
}

// contradictoryPairs drive the internal-consistency indicator: both members
// of a pair landing within 200 characters of each other counts against the
// response.
var contradictoryPairs = [][2]string{
	{"always", "never"},
	{"all", "none"},
	{"increase", "decrease"},
	{"positive", "negative"},
	{"true", "false"},
	{"correct", "incorrect"},
}

func consistencyIndicator(response, lower string) float64 {
	if len(splitSentences(response)) < 2 {
		return 1.0
	}
	count := 0
	for _, pair := range contradictoryPairs {
		if wordsWithin(lower, pair[0], pair[1], 200) {
			count++
		}
	}
	return math.Max(0, 1-0.3*float64(count))
}

// wordsWithin reports whether some occurrence of a and some occurrence of b
// are at most dist bytes apart.
func wordsWithin(text, a, b string, dist int) bool {
	ai := allIndexes(text, a)
	bi := allIndexes(text, b)
	for _, x := range ai {
		for _, y := range bi {
			d := x - y
			if d < 0 {
				d = -d
			}
			if d <= dist {
				return true
			}
		}
	}
	return false
}

func allIndexes(text, sub string) []int {
	var out []int
	for off := 0; ; {
		i := strings.Index(text[off:], sub)
		if i < 0 {
			return out
		}
		out = append(out, off+i)
		off += i + len(sub)
	}
}

var (
	bracketCiteRe = regexp.MustCompile(`\[\d+\]`)
	urlRe         = regexp.MustCompile(`https?://\S+`)
)

func citationIndicator(response string) float64 {
	brackets := bracketCiteRe.FindAllString(response, -1)
	urls := urlRe.FindAllString(response, -1)
	if len(brackets) == 0 && len(urls) == 0 {
		return 0.5
	}

	score := 0.3
	if len(brackets) > 0 {
		score += 0.3
	}
	if len(urls) > 0 {
		score += 0.2
	}
	if len(brackets) > 0 {
		seen := map[string]struct{}{}
		for _, b := range brackets {
			seen[b] = struct{}{}
		}
		if len(seen) == len(brackets) {
			score += 0.2
		}
	}
	return clamp01(score)
}

var (
	anyNumberRe  = regexp.MustCompile(`\b\d+\.?\d*\b`)
	dateRe       = regexp.MustCompile(`\b\d{4}\b|\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
	properNounRe = regexp.MustCompile(`\b[A-Z][a-z]+\b`)
)

func specificityIndicator(response, lower string, w float64) float64 {
	if w == 0 {
		return 0
	}
	specific := float64(len(anyNumberRe.FindAllString(response, -1))+
		len(dateRe.FindAllString(response, -1))+
		len(properNounRe.FindAllString(response, -1))) / math.Max(w/20, 1)
	vague := countOccurrences(lower, vagueTerms) / math.Max(w/50, 1)
	return clamp01(specific - vague)
}

var placeholderMarkers = []string{"[placeholder]", "todo", "tbd", "xxx", "..."}

func contentFlags(response, lower string, words []string) []string {
	flags := []string{}

	if len(words) > 0 {
		counts := map[string]int{}
		for _, word := range words {
			if len(word) > 3 {
				counts[strings.ToLower(word)]++
			}
		}
		threshold := 0.1 * float64(len(words))
		for _, n := range counts {
			if float64(n) > threshold {
				flags = append(flags, FlagExcessiveRepetition)
				break
			}
		}
	}

	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			flags = append(flags, FlagPlaceholderContent)
			break
		}
	}

	if len(strings.TrimSpace(response)) < 20 {
		flags = append(flags, FlagTooShort)
	}
	if len(response) > 5000 {
		flags = append(flags, FlagTooLong)
	}

	return flags
}

// countOccurrences sums every occurrence of each phrase in the lowercased
// text.
func countOccurrences(lower string, phrases []string) float64 {
	n := 0
	for _, p := range phrases {
		n += strings.Count(lower, p)
	}
	return float64(n)
}

// truncateRunes caps s at n runes.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
