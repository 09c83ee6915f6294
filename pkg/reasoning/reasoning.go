// Package reasoning coordinates a full multi-agent run: it plans the task
// graph for a prompt, drives it through the scheduler, assesses response
// quality, re-routes low-confidence tasks, and assembles the final report.
package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/quorum/pkg/backend"
	"github.com/codeready-toolchain/quorum/pkg/metrics"
	"github.com/codeready-toolchain/quorum/pkg/quality"
	"github.com/codeready-toolchain/quorum/pkg/scheduler"
)

// Recollection is one remembered exchange for a user.
type Recollection struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// MemoryStore persists and recalls conversation history. Both operations are
// best-effort: failures are absorbed by the implementation and must never
// abort a run.
type MemoryStore interface {
	Store(ctx context.Context, userID, prompt, response string) bool
	Recall(ctx context.Context, userID, prompt string, topK int) []Recollection
}

// NopMemory discards everything and recalls nothing.
type NopMemory struct{}

func (NopMemory) Store(context.Context, string, string, string) bool        { return false }
func (NopMemory) Recall(context.Context, string, string, int) []Recollection { return nil }

// EventSink receives run lifecycle notifications for streaming consumers.
type EventSink interface {
	TaskStarted(conversationID, task string, id backend.ID)
	TaskFinished(conversationID string, res scheduler.TaskResult)
	RunCompleted(conversationID string, summary scheduler.Summary)
}

// NopEvents drops all notifications.
type NopEvents struct{}

func (NopEvents) TaskStarted(string, string, backend.ID)           {}
func (NopEvents) TaskFinished(string, scheduler.TaskResult)        {}
func (NopEvents) RunCompleted(string, scheduler.Summary)           {}

// Alerter pushes out-of-band notifications for conditions worth a human
// look. Implementations must be non-blocking best-effort.
type Alerter interface {
	ContradictionAlert(ctx context.Context, userID, severity, resolution string)
	FailureAlert(ctx context.Context, userID string, failedTasks []string)
}

// NopAlerter ignores all alerts.
type NopAlerter struct{}

func (NopAlerter) ContradictionAlert(context.Context, string, string, string) {}
func (NopAlerter) FailureAlert(context.Context, string, []string)             {}

// Options tune a run. Zero values fall back to the documented defaults.
type Options struct {
	ConfidenceThreshold          float64
	MaxConcurrentTasks           int
	DefaultTaskTimeout           time.Duration
	EnableContradictionDetection bool
	EnableHallucinationDetection bool
	EnableResponseVerification   bool
}

// DefaultOptions mirror the documented configuration defaults.
func DefaultOptions() Options {
	return Options{
		ConfidenceThreshold:          0.6,
		MaxConcurrentTasks:           5,
		DefaultTaskTimeout:           30 * time.Second,
		EnableContradictionDetection: true,
		EnableHallucinationDetection: true,
	}
}

// Orchestrator owns the collaborators of a reasoning run. Construct once and
// share; Reason is safe for concurrent use.
type Orchestrator struct {
	registry  *backend.Registry
	scorer    *quality.Scorer
	detector  *quality.Detector
	prober    quality.Prober
	memory    MemoryStore
	citations *CitationChecker
	events    EventSink
	alerter   Alerter
	opts      Options
	logger    *slog.Logger
}

// New wires an orchestrator. The quality probes are bound to the Claude
// backend. Nil memory, events, or alerter collaborators degrade to no-ops.
func New(registry *backend.Registry, memory MemoryStore, events EventSink, alerter Alerter, opts Options) *Orchestrator {
	if memory == nil {
		memory = NopMemory{}
	}
	if events == nil {
		events = NopEvents{}
	}
	if alerter == nil {
		alerter = NopAlerter{}
	}
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = 0.6
	}
	if opts.MaxConcurrentTasks <= 0 {
		opts.MaxConcurrentTasks = 5
	}
	if opts.DefaultTaskTimeout <= 0 {
		opts.DefaultTaskTimeout = 30 * time.Second
	}

	prober := quality.ProberFunc(func(ctx context.Context, prompt string) (string, error) {
		return registry.Invoke(ctx, backend.Claude, prompt, 512)
	})
	return &Orchestrator{
		registry:  registry,
		scorer:    quality.NewScorer(prober),
		detector:  quality.NewDetector(prober),
		prober:    prober,
		memory:    memory,
		citations: NewCitationChecker(nil),
		events:    events,
		alerter:   alerter,
		opts:      opts,
		logger:    slog.Default().With("component", "reasoning"),
	}
}

// registryCaller binds scheduler dispatches to one run's audit identity.
type registryCaller struct {
	registry       *backend.Registry
	userID         string
	conversationID string
}

func (c registryCaller) CallWithTimeout(ctx context.Context, id backend.ID, prompt string, timeout time.Duration, taskType string) (string, error) {
	return c.registry.CallWithTimeout(ctx, id, prompt, timeout, backend.CallMeta{
		UserID:         c.userID,
		ConversationID: c.conversationID,
		TaskType:       taskType,
	})
}

// taskTypeByName maps plan task names to the task type used for scoring.
var taskTypeByName = map[string]string{
	"task_analysis":       "task_breakdown",
	"initial_explanation": "explanation",
	"refined_explanation": "explanation",
	"fact_check":          "fact_check",
	"code_example":        "code_generation",
	"final_synthesis":     "final_synthesis",
}

func taskTypeFor(name string) string {
	if t, ok := taskTypeByName[name]; ok {
		return t
	}
	return "explanation"
}

// Reason runs the full multi-agent pipeline for one prompt and always
// returns a report; individual task failures surface inside it.
func (o *Orchestrator) Reason(ctx context.Context, userID, prompt, taskType string) Report {
	conversationID := uuid.New().String()
	log := o.logger.With("conversation_id", conversationID, "user_id", userID)
	log.Info("Starting reasoning run", "task_type", taskType, "prompt_length", len(prompt))

	memoryContext := o.memoryContext(ctx, userID, prompt)

	sched := scheduler.New(
		registryCaller{registry: o.registry, userID: userID, conversationID: conversationID},
		scheduler.Hooks{
			TaskStarted: func(name string, id backend.ID) {
				o.events.TaskStarted(conversationID, name, id)
			},
			TaskFinished: func(res scheduler.TaskResult) {
				o.events.TaskFinished(conversationID, res)
			},
		},
	)
	sched.SetMaxConcurrent(o.opts.MaxConcurrentTasks)
	for _, t := range planTasks(prompt, memoryContext, o.opts.DefaultTaskTimeout) {
		sched.Add(t)
	}

	results := sched.ExecuteAll(ctx)
	summary := sched.Summary()
	o.events.RunCompleted(conversationID, summary)

	assessments, lowConfidence := o.assess(ctx, results, prompt)
	o.reroute(ctx, conversationID, userID, prompt, results, assessments, lowConfidence)

	report := o.buildReport(ctx, userID, prompt, results, assessments, summary)

	if sched.HasFailedCritical() || len(summary.FailedTasks) > 0 {
		o.alerter.FailureAlert(ctx, userID, summary.FailedTasks)
	}
	if report.ContradictionReport.SeverityLevel == quality.SeverityHigh {
		o.alerter.ContradictionAlert(ctx, userID, quality.SeverityHigh, report.ClaudeResolution)
	}

	status := "completed"
	if len(summary.FailedTasks) > 0 {
		status = "partial"
	}
	metrics.ObserveRun(status)
	log.Info("Reasoning run finished",
		"completed", summary.SuccessfulTasks,
		"failed", len(summary.FailedTasks),
		"retries", summary.RetriesPerformed)
	return report
}

// memoryContext recalls prior exchanges for the user, degrading to a fixed
// sentinel when nothing is available.
func (o *Orchestrator) memoryContext(ctx context.Context, userID, prompt string) string {
	history := o.memory.Recall(ctx, userID, prompt, 5)
	if len(history) == 0 {
		return "No relevant memory found."
	}
	out := ""
	for _, r := range history {
		out += fmt.Sprintf("Q: %s\nA: %s\n", r.Prompt, r.Response)
	}
	return out
}

// planTasks builds the canonical six-task graph for a prompt. The memory
// context is resolved here; dependency placeholders are left for the
// scheduler to substitute.
func planTasks(prompt, memoryContext string, defaultTimeout time.Duration) []scheduler.Task {
	return []scheduler.Task{
		{
			Name:       "task_analysis",
			Backend:    backend.Claude,
			Prompt:     fmt.Sprintf("Using context:\n%s\n\nBreak down the steps for: %s", memoryContext, prompt),
			Priority:   scheduler.Critical,
			Weight:     1.0,
			Timeout:    45 * time.Second,
			TaskType:   "task_breakdown",
			MaxRetries: 2,
			RetryDelay: time.Second,
		},
		{
			Name:       "initial_explanation",
			Backend:    backend.GPT,
			Prompt:     fmt.Sprintf("Using context:\n%s\n\nExplain in detail: %s", memoryContext, prompt),
			Priority:   scheduler.High,
			Weight:     0.9,
			Timeout:    defaultTimeout,
			TaskType:   "explanation",
			MaxRetries: 2,
			RetryDelay: time.Second,
		},
		{
			Name:         "fact_check",
			Backend:      backend.Grok,
			Prompt:       fmt.Sprintf("Verify these facts:\n%s", prompt),
			Priority:     scheduler.High,
			Weight:       0.8,
			Timeout:      defaultTimeout,
			TaskType:     "fact_check",
			MaxRetries:   2,
			RetryDelay:   time.Second,
			Dependencies: []string{"task_analysis", "initial_explanation"},
		},
		{
			Name:         "refined_explanation",
			Backend:      backend.GPT,
			Prompt:       fmt.Sprintf("Using the fact check, refine this explanation:\n%s", prompt),
			Priority:     scheduler.Medium,
			Weight:       0.7,
			Timeout:      defaultTimeout,
			TaskType:     "explanation",
			MaxRetries:   2,
			RetryDelay:   time.Second,
			Dependencies: []string{"initial_explanation", "fact_check"},
		},
		{
			Name:         "code_example",
			Backend:      backend.GPT,
			Prompt:       fmt.Sprintf("Provide a code example for: %s", prompt),
			Priority:     scheduler.Low,
			Weight:       0.6,
			Timeout:      defaultTimeout,
			TaskType:     "code_generation",
			MaxRetries:   2,
			RetryDelay:   time.Second,
			Dependencies: []string{"task_analysis"},
		},
		{
			Name:    "final_synthesis",
			Backend: backend.Claude,
			Prompt: fmt.Sprintf("Using:\n- Memory: %s\n- Task Breakdown: {task_analysis}\n"+
				"- Explanation: {refined_explanation}\n- Code Example: {code_example}\n"+
				"- Fact Check: {fact_check}\nCreate a final polished response.", memoryContext),
			Priority:     scheduler.High,
			Weight:       1.0,
			Timeout:      45 * time.Second,
			TaskType:     "final_synthesis",
			MaxRetries:   2,
			RetryDelay:   time.Second,
			Dependencies: []string{"task_analysis", "refined_explanation", "code_example", "fact_check"},
		},
	}
}

// assessment pairs a task's confidence with its full metrics. A nil Metrics
// marks a task that failed and was never scored.
type assessment struct {
	Confidence float64
	Metrics    *quality.Metrics
}

type scoredTask struct {
	Name       string
	Confidence float64
}

// assess scores every planned task. Failed tasks get a zero assessment;
// successful ones below the confidence threshold are flagged for re-routing.
func (o *Orchestrator) assess(ctx context.Context, results map[string]string, prompt string) (map[string]assessment, []scoredTask) {
	assessments := make(map[string]assessment, len(taskTypeByName))
	var low []scoredTask

	for name := range taskTypeByName {
		output, ok := results[name]
		if !ok || output == "" {
			assessments[name] = assessment{}
			continue
		}

		m := o.scorer.Score(ctx, output, taskTypeFor(name), prompt)
		assessments[name] = assessment{Confidence: m.Confidence, Metrics: &m}
		if m.Confidence < o.opts.ConfidenceThreshold {
			low = append(low, scoredTask{Name: name, Confidence: m.Confidence})
			o.logger.Debug("Low confidence detected", "task", name, "confidence", m.Confidence)
		}
	}

	// Lowest confidence first; name breaks ties for determinism.
	sort.Slice(low, func(i, j int) bool {
		if low[i].Confidence != low[j].Confidence {
			return low[i].Confidence < low[j].Confidence
		}
		return low[i].Name < low[j].Name
	})
	return assessments, low
}

const retryTimeout = 45 * time.Second

// reroute re-invokes low-confidence tasks once on an alternate backend and
// keeps the retry only when it strictly improves the score.
func (o *Orchestrator) reroute(ctx context.Context, conversationID, userID, prompt string, results map[string]string, assessments map[string]assessment, low []scoredTask) {
	for _, lc := range low {
		if lc.Name == "final_synthesis" {
			// Regenerated downstream anyway.
			continue
		}

		retryBackend := backend.GPT
		if lc.Confidence < 0.4 || lc.Name == "task_analysis" || lc.Name == "fact_check" {
			retryBackend = backend.Claude
		}

		retryPrompt := fmt.Sprintf(
			"The previous response for this task had low confidence (%.2f).\n"+
				"Please provide a more detailed and confident response.\n\n"+
				"Original task: %s\nPrevious response: %s\n\n"+
				"Please provide a more thorough and confident response:",
			lc.Confidence, prompt, results[lc.Name])

		o.logger.Debug("Re-routing low-confidence task", "task", lc.Name, "backend", retryBackend)
		retried, err := o.registry.CallWithTimeout(ctx, retryBackend, retryPrompt, retryTimeout, backend.CallMeta{
			UserID:         userID,
			ConversationID: conversationID,
			TaskType:       "retry_" + lc.Name,
		})
		if err != nil {
			o.logger.Warn("Re-route call failed", "task", lc.Name, "error", err)
			continue
		}

		m := o.scorer.Score(ctx, retried, taskTypeFor(lc.Name), retryPrompt)
		if m.Confidence > lc.Confidence {
			o.logger.Debug("Re-route improved confidence",
				"task", lc.Name, "old", lc.Confidence, "new", m.Confidence)
			results[lc.Name] = retried
			assessments[lc.Name] = assessment{Confidence: m.Confidence, Metrics: &m}
		} else {
			o.logger.Debug("Re-route did not improve confidence",
				"task", lc.Name, "old", lc.Confidence, "new", m.Confidence)
		}
	}
}
