package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
)

// Contradiction kinds.
const (
	KindFactual        = "factual"
	KindLogical        = "logical"
	KindRecommendation = "recommendation"
	KindHeuristic      = "heuristic"
)

// Severity levels, also used for the report-wide level.
const (
	SeverityNone   = "none"
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// FallbackResolution is returned when the resolution probe fails.
const FallbackResolution = "Unable to generate automatic resolution. Manual review recommended."

// Contradiction is one detected conflict between two backend outputs.
type Contradiction struct {
	AgentA      string  `json:"agent1"`
	AgentB      string  `json:"agent2"`
	Kind        string  `json:"type"`
	Description string  `json:"description"`
	Severity    string  `json:"severity"`
	Similarity  float64 `json:"similarity_score"`
}

// Report aggregates every detected contradiction across a run's outputs.
type Report struct {
	Contradictions      []Contradiction `json:"contradictions_found"`
	OverallSeverity     string          `json:"severity_level"`
	Resolution          string          `json:"resolution_suggestion"`
	DetectionConfidence float64         `json:"confidence_in_detection"`
}

// Detector performs pairwise contradiction analysis. The LLM probe
// adjudicates semantically dissimilar pairs; when it fails, a regex
// heuristic takes over.
type Detector struct {
	prober Prober
	logger *slog.Logger
}

func NewDetector(p Prober) *Detector {
	return &Detector{
		prober: p,
		logger: slog.Default().With("component", "quality.contradiction"),
	}
}

// heuristicPatterns pair affirming terms with their negations. A pair fires
// when one side matches one output and the other side matches the other,
// regardless of surrounding polarity.
var heuristicPatterns = [][2]*regexp.Regexp{
	{regexp.MustCompile(`\b(true|correct|accurate)\b`), regexp.MustCompile(`\b(false|incorrect|inaccurate)\b`)},
	{regexp.MustCompile(`\b(increase|rise|grow)\b`), regexp.MustCompile(`\b(decrease|fall|shrink)\b`)},
	{regexp.MustCompile(`\b(safe|secure)\b`), regexp.MustCompile(`\b(dangerous|risky|unsafe)\b`)},
	{regexp.MustCompile(`\b(effective|successful)\b`), regexp.MustCompile(`\b(ineffective|unsuccessful)\b`)},
	{regexp.MustCompile(`\b(recommend|suggest)\b.*\b(yes|do)\b`), regexp.MustCompile(`\b(recommend|suggest)\b.*\b(no|don't)\b`)},
}

// Detect compares every unordered pair of non-empty outputs and assembles a
// report. It never returns an error: probe failures degrade to the
// heuristic pass and a missing resolution becomes the canned fallback.
func (d *Detector) Detect(ctx context.Context, outputs map[string]string) Report {
	names := make([]string, 0, len(outputs))
	for name, out := range outputs {
		if strings.TrimSpace(out) != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var found []Contradiction
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			a, b := names[i], names[j]
			if c, ok := d.comparePair(ctx, a, outputs[a], b, outputs[b]); ok {
				found = append(found, c)
			}
		}
	}

	rep := Report{
		Contradictions:      found,
		OverallSeverity:     overallSeverity(len(found)),
		DetectionConfidence: detectionConfidence(found),
	}
	rep.Resolution = d.resolve(ctx, found, outputs)
	return rep
}

type probeVerdict struct {
	ContradictionFound bool   `json:"contradiction_found"`
	Type               string `json:"type"`
	Description        string `json:"description"`
	Severity           string `json:"severity"`
}

func (d *Detector) comparePair(ctx context.Context, agentA, outA, agentB, outB string) (Contradiction, bool) {
	similarity := similarityRatio(strings.ToLower(outA), strings.ToLower(outB))
	if similarity > 0.8 {
		return Contradiction{}, false
	}

	probe := fmt.Sprintf(
		"Analyze these two responses for contradictions:\n\n"+
			"Response A (%s): %q\nResponse B (%s): %q\n\n"+
			"Look for:\n"+
			"1. Factual contradictions (different claims about the same thing)\n"+
			"2. Logical contradictions (mutually exclusive statements)\n"+
			"3. Conflicting recommendations or conclusions\n\n"+
			"If contradictions exist, respond with JSON:\n"+
			`{"contradiction_found": true, "type": "factual|logical|recommendation", "description": "brief description", "severity": "low|medium|high"}`+
			"\n\nIf no contradictions, respond with:\n"+
			`{"contradiction_found": false}`,
		agentA, truncateRunes(outA, 500), agentB, truncateRunes(outB, 500))

	out, err := d.prober.Ask(ctx, probe)
	if err == nil {
		var verdict probeVerdict
		if jerr := json.Unmarshal([]byte(strings.TrimSpace(out)), &verdict); jerr == nil {
			if !verdict.ContradictionFound {
				return Contradiction{}, false
			}
			return Contradiction{
				AgentA:      agentA,
				AgentB:      agentB,
				Kind:        normalizeKind(verdict.Type),
				Description: verdict.Description,
				Severity:    normalizeSeverity(verdict.Severity),
				Similarity:  similarity,
			}, true
		}
		err = fmt.Errorf("unparseable probe verdict")
	}
	d.logger.Warn("contradiction probe failed, using heuristics",
		"agent_a", agentA, "agent_b", agentB, "error", err)
	return heuristicPair(agentA, outA, agentB, outB, similarity)
}

func heuristicPair(agentA, outA, agentB, outB string, similarity float64) (Contradiction, bool) {
	lowerA := strings.ToLower(outA)
	lowerB := strings.ToLower(outB)
	for _, pair := range heuristicPatterns {
		pos, neg := pair[0], pair[1]
		if (pos.MatchString(lowerA) && neg.MatchString(lowerB)) ||
			(neg.MatchString(lowerA) && pos.MatchString(lowerB)) {
			return Contradiction{
				AgentA:      agentA,
				AgentB:      agentB,
				Kind:        KindHeuristic,
				Description: fmt.Sprintf("Detected contradictory terms: %s vs %s", pos, neg),
				Severity:    SeverityMedium,
				Similarity:  similarity,
			}, true
		}
	}
	return Contradiction{}, false
}

func normalizeKind(kind string) string {
	switch kind {
	case KindFactual, KindLogical, KindRecommendation:
		return kind
	default:
		return KindFactual
	}
}

func normalizeSeverity(sev string) string {
	switch sev {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return sev
	default:
		return SeverityMedium
	}
}

func overallSeverity(n int) string {
	switch {
	case n == 0:
		return SeverityNone
	case n == 1:
		return SeverityLow
	case n <= 3:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}

var severityWeights = map[string]float64{
	SeverityLow:    0.8,
	SeverityMedium: 1.0,
	SeverityHigh:   1.2,
}

func detectionConfidence(found []Contradiction) float64 {
	if len(found) == 0 {
		return 1.0
	}
	sum := 0.0
	for _, c := range found {
		w, ok := severityWeights[c.Severity]
		if !ok {
			w = 1.0
		}
		sum += w
	}
	base := math.Max(0.3, 1-0.1*float64(len(found)))
	return math.Min(base*(sum/float64(len(found))), 1.0)
}

func (d *Detector) resolve(ctx context.Context, found []Contradiction, outputs map[string]string) string {
	if len(found) == 0 {
		return "No contradictions detected."
	}

	var lines []string
	for _, c := range found {
		lines = append(lines, fmt.Sprintf("- %s vs %s: %s", c.AgentA, c.AgentB, c.Description))
	}

	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	var snippets []string
	for _, name := range names {
		snippets = append(snippets, fmt.Sprintf("%s: %s...", name, truncateRunes(outputs[name], 200)))
	}

	probe := fmt.Sprintf(
		"Multiple AI agents provided responses that contain contradictions. Please provide a balanced resolution.\n\n"+
			"Contradictions detected:\n%s\n\n"+
			"Agent responses:\n%s\n\n"+
			"Provide a resolution that:\n"+
			"1. Acknowledges the contradictions\n"+
			"2. Attempts to reconcile different viewpoints where possible\n"+
			"3. Identifies which information is most reliable\n"+
			"4. Suggests areas where more information might be needed\n\n"+
			"Keep the resolution concise but comprehensive.",
		strings.Join(lines, "\n"), strings.Join(snippets, "\n"))

	out, err := d.prober.Ask(ctx, probe)
	if err != nil {
		d.logger.Warn("resolution probe failed", "error", err)
		return FallbackResolution
	}
	return out
}
