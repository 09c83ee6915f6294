package quality

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// verdictProber answers the pairwise probe with a fixed verdict and the
// resolution probe with a fixed resolution.
func verdictProber(verdict, resolution string) Prober {
	return ProberFunc(func(ctx context.Context, prompt string) (string, error) {
		if strings.HasPrefix(prompt, "Multiple AI agents") {
			return resolution, nil
		}
		return verdict, nil
	})
}

func TestDetect_NoOutputs(t *testing.T) {
	d := NewDetector(failingProber())

	rep := d.Detect(context.Background(), map[string]string{})
	assert.Empty(t, rep.Contradictions)
	assert.Equal(t, SeverityNone, rep.OverallSeverity)
	assert.Equal(t, 1.0, rep.DetectionConfidence)
	assert.Equal(t, "No contradictions detected.", rep.Resolution)
}

func TestDetect_SkipsNearIdenticalPair(t *testing.T) {
	probed := false
	d := NewDetector(ProberFunc(func(ctx context.Context, prompt string) (string, error) {
		probed = true
		return `{"contradiction_found": false}`, nil
	}))

	rep := d.Detect(context.Background(), map[string]string{
		"GPT-4": "The sky is blue during the day.",
		"Grok":  "The sky is blue during the day.",
	})
	assert.False(t, probed, "identical outputs must not reach the probe")
	assert.Empty(t, rep.Contradictions)
	assert.Equal(t, SeverityNone, rep.OverallSeverity)
}

func TestDetect_ProbeVerdict(t *testing.T) {
	d := NewDetector(verdictProber(
		`{"contradiction_found": true, "type": "factual", "description": "different capitals claimed", "severity": "low"}`,
		"Reconciled: the first claim is correct.",
	))

	rep := d.Detect(context.Background(), map[string]string{
		"GPT-4": "Canberra has been the capital of Australia since 1927.",
		"Grok":  "Sydney hosts the national parliament and government.",
	})

	require.Len(t, rep.Contradictions, 1)
	c := rep.Contradictions[0]
	assert.Equal(t, "GPT-4", c.AgentA)
	assert.Equal(t, "Grok", c.AgentB)
	assert.Equal(t, KindFactual, c.Kind)
	assert.Equal(t, SeverityLow, c.Severity)
	assert.Equal(t, "different capitals claimed", c.Description)
	assert.LessOrEqual(t, c.Similarity, 0.8)

	assert.Equal(t, SeverityLow, rep.OverallSeverity)
	// One low-severity finding: 0.9 base x 0.8 weight.
	assert.InDelta(t, 0.72, rep.DetectionConfidence, 1e-9)
	assert.Equal(t, "Reconciled: the first claim is correct.", rep.Resolution)
}

func TestDetect_ProbeNoContradiction(t *testing.T) {
	d := NewDetector(verdictProber(`{"contradiction_found": false}`, ""))

	rep := d.Detect(context.Background(), map[string]string{
		"GPT-4": "Photosynthesis converts light into chemical energy.",
		"Grok":  "Volcanoes erupt when magma reaches the surface.",
	})
	assert.Empty(t, rep.Contradictions)
	assert.Equal(t, SeverityNone, rep.OverallSeverity)
	assert.Equal(t, 1.0, rep.DetectionConfidence)
}

func TestDetect_HeuristicFallbackOnProbeFailure(t *testing.T) {
	d := NewDetector(failingProber())

	rep := d.Detect(context.Background(), map[string]string{
		"GPT-4": "The procedure is safe for daily use.",
		"Grok":  "Medical reviews called the procedure dangerous.",
	})

	require.Len(t, rep.Contradictions, 1)
	c := rep.Contradictions[0]
	assert.Equal(t, KindHeuristic, c.Kind)
	assert.Equal(t, SeverityMedium, c.Severity)
	assert.Contains(t, c.Description, "contradictory terms")

	// The resolution probe also fails.
	assert.Equal(t, FallbackResolution, rep.Resolution)
}

func TestDetect_HeuristicFallbackOnUnparseableVerdict(t *testing.T) {
	d := NewDetector(fixedProber("the responses look broadly compatible"))

	rep := d.Detect(context.Background(), map[string]string{
		"GPT-4": "Sales will increase next quarter.",
		"Grok":  "Expect revenue to decrease sharply.",
	})

	require.Len(t, rep.Contradictions, 1)
	assert.Equal(t, KindHeuristic, rep.Contradictions[0].Kind)
}

func TestDetect_IgnoresEmptyOutputs(t *testing.T) {
	d := NewDetector(failingProber())

	rep := d.Detect(context.Background(), map[string]string{
		"GPT-4": "Only one real answer here.",
		"Grok":  "   ",
	})
	assert.Empty(t, rep.Contradictions)
}

func TestOverallSeverity(t *testing.T) {
	assert.Equal(t, SeverityNone, overallSeverity(0))
	assert.Equal(t, SeverityLow, overallSeverity(1))
	assert.Equal(t, SeverityMedium, overallSeverity(2))
	assert.Equal(t, SeverityMedium, overallSeverity(3))
	assert.Equal(t, SeverityHigh, overallSeverity(4))
	assert.Equal(t, SeverityHigh, overallSeverity(7))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, KindLogical, normalizeKind("logical"))
	assert.Equal(t, KindFactual, normalizeKind("weird"))
	assert.Equal(t, SeverityHigh, normalizeSeverity("high"))
	assert.Equal(t, SeverityMedium, normalizeSeverity("weird"))
}

func TestDetectionConfidence(t *testing.T) {
	assert.Equal(t, 1.0, detectionConfidence(nil))

	two := []Contradiction{{Severity: SeverityMedium}, {Severity: SeverityMedium}}
	// Base 0.8, average weight 1.0.
	assert.InDelta(t, 0.8, detectionConfidence(two), 1e-9)

	high := []Contradiction{{Severity: SeverityHigh}}
	// Base 0.9 x weight 1.2, clamped at 1.0.
	assert.Equal(t, 1.0, detectionConfidence(high))
}

func TestHeuristicPair_NoMatch(t *testing.T) {
	_, ok := heuristicPair("A", "Cats are mammals.", "B", "Pianos have keys.", 0.1)
	assert.False(t, ok)
}
