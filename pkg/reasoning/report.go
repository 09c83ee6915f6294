package reasoning

import (
	"context"
	"sort"

	"github.com/codeready-toolchain/quorum/pkg/quality"
	"github.com/codeready-toolchain/quorum/pkg/scheduler"
)

// FailedOutput is the placeholder for a task that produced no output.
const FailedOutput = "Failed"

// noCodeExample replaces a missing code example; unlike other tasks its
// absence is presented as a non-event.
const noCodeExample = "No code example needed"

// QualityAssessment is the per-task slice of metrics exposed in the report.
type QualityAssessment struct {
	ConfidenceScore   float64  `json:"confidence_score"`
	CoherenceScore    float64  `json:"coherence_score"`
	CompletenessScore float64  `json:"completeness_score"`
	ContentFlags      []string `json:"content_flags"`
}

// ContradictionSection is the report's view of the contradiction analysis.
type ContradictionSection struct {
	ContradictionsFound   []quality.Contradiction `json:"contradictions_found"`
	SeverityLevel         string                  `json:"severity_level"`
	ConfidenceInDetection float64                 `json:"confidence_in_detection"`
}

// Report is the stable JSON contract returned to API callers. Field names
// must not change.
type Report struct {
	TaskBreakdown       string                       `json:"Task Breakdown"`
	InitialExplanation  string                       `json:"Initial Explanation"`
	RefinedExplanation  string                       `json:"Refined Explanation"`
	CodeExample         string                       `json:"Code Example"`
	FactCheck           string                       `json:"Fact Check"`
	FinalResponse       string                       `json:"Final Response"`
	HallucinationReport []CitationFinding            `json:"Hallucination Report"`
	ContradictionReport ContradictionSection         `json:"Contradiction Report"`
	ClaudeResolution    string                       `json:"Claude Resolution"`
	ConfidenceScores    map[string]float64           `json:"Confidence Scores"`
	QualityAssessments  map[string]QualityAssessment `json:"Quality Assessments"`
	ExecutionSummary    scheduler.Summary            `json:"Execution Summary"`
	LowConfidenceTasks  []string                     `json:"Low Confidence Tasks"`
}

func output(results map[string]string, name, fallback string) string {
	if out, ok := results[name]; ok && out != "" {
		return out
	}
	return fallback
}

// buildReport runs contradiction and hallucination analysis over the final
// results, persists the exchange, and assembles the caller-facing report.
func (o *Orchestrator) buildReport(ctx context.Context, userID, prompt string, results map[string]string, assessments map[string]assessment, summary scheduler.Summary) Report {
	agentOutputs := map[string]string{}
	for display, name := range map[string]string{
		"Task Breakdown":      "task_analysis",
		"Initial Explanation": "initial_explanation",
		"Refined Explanation": "refined_explanation",
		"Fact Check":          "fact_check",
		"Code Example":        "code_example",
	} {
		if out, ok := results[name]; ok && out != "" && out != FailedOutput {
			agentOutputs[display] = out
		}
	}

	contradictions := quality.Report{
		OverallSeverity:     quality.SeverityNone,
		Resolution:          "No contradictions detected.",
		DetectionConfidence: 1.0,
	}
	if o.opts.EnableContradictionDetection && len(agentOutputs) > 1 {
		contradictions = o.detector.Detect(ctx, agentOutputs)
	}

	finalResponse := output(results, "final_synthesis", FailedOutput)

	if o.memory.Store(ctx, userID, prompt, results["final_synthesis"]) {
		o.logger.Debug("Stored exchange in memory", "user_id", userID)
	}

	var hallucinations []CitationFinding
	if o.opts.EnableHallucinationDetection && finalResponse != FailedOutput {
		hallucinations = o.citations.Check(ctx, finalResponse)
	}
	if hallucinations == nil {
		hallucinations = []CitationFinding{}
	}

	if o.opts.EnableResponseVerification && finalResponse != FailedOutput {
		o.verifyFinalResponse(ctx, prompt, finalResponse)
	}

	confidence := make(map[string]float64, len(assessments))
	qualityOut := make(map[string]QualityAssessment, len(assessments))
	var lowTasks []string
	for name, a := range assessments {
		confidence[name] = a.Confidence
		qa := QualityAssessment{ConfidenceScore: a.Confidence, ContentFlags: []string{}}
		if a.Metrics != nil {
			qa.CoherenceScore = a.Metrics.Coherence
			qa.CompletenessScore = a.Metrics.Completeness
			qa.ContentFlags = a.Metrics.ContentFlags
		}
		qualityOut[name] = qa
		if a.Confidence < o.opts.ConfidenceThreshold {
			lowTasks = append(lowTasks, name)
		}
	}
	sort.Strings(lowTasks)
	if lowTasks == nil {
		lowTasks = []string{}
	}

	contradictionsFound := contradictions.Contradictions
	if contradictionsFound == nil {
		contradictionsFound = []quality.Contradiction{}
	}

	return Report{
		TaskBreakdown:       output(results, "task_analysis", FailedOutput),
		InitialExplanation:  output(results, "initial_explanation", FailedOutput),
		RefinedExplanation:  output(results, "refined_explanation", FailedOutput),
		CodeExample:         output(results, "code_example", noCodeExample),
		FactCheck:           output(results, "fact_check", FailedOutput),
		FinalResponse:       finalResponse,
		HallucinationReport: hallucinations,
		ContradictionReport: ContradictionSection{
			ContradictionsFound:   contradictionsFound,
			SeverityLevel:         contradictions.OverallSeverity,
			ConfidenceInDetection: contradictions.DetectionConfidence,
		},
		ClaudeResolution:   contradictions.Resolution,
		ConfidenceScores:   confidence,
		QualityAssessments: qualityOut,
		ExecutionSummary:   summary,
		LowConfidenceTasks: lowTasks,
	}
}

// verifyFinalResponse asks the probe backend for a factual spot-check of the
// synthesized answer. Findings are logged, never surfaced to the caller.
func (o *Orchestrator) verifyFinalResponse(ctx context.Context, prompt, response string) {
	probe := "Verify the factual accuracy of this response to the prompt below. " +
		"List any claims that appear wrong or unsupported, or reply OK.\n\n" +
		"Prompt: " + prompt + "\n\nResponse: " + response
	verdict, err := o.prober.Ask(ctx, probe)
	if err != nil {
		o.logger.Warn("Response verification failed", "error", err)
		return
	}
	if v := len(verdict); v > 0 && verdict != "OK" {
		o.logger.Info("Response verification notes", "verdict_length", v)
	}
}
