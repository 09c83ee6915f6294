package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/codeready-toolchain/quorum/pkg/backend"
	"github.com/codeready-toolchain/quorum/pkg/metrics"
)

// defaultMaxConcurrent bounds true concurrency within one priority level
// unless overridden with SetMaxConcurrent.
const defaultMaxConcurrent = 5

// Caller dispatches one backend call under a deadline. The reasoning layer
// provides an implementation bound to the run's audit identity.
type Caller interface {
	CallWithTimeout(ctx context.Context, id backend.ID, prompt string, timeout time.Duration, taskType string) (string, error)
}

// Hooks receive task lifecycle notifications. Either field may be nil.
type Hooks struct {
	TaskStarted  func(name string, id backend.ID)
	TaskFinished func(res TaskResult)
}

// Scheduler drives one run's tasks to completion. State maps are mutated
// only from the scheduling loop; workers hand results back over a channel.
type Scheduler struct {
	caller Caller
	hooks  Hooks
	logger *slog.Logger

	tasks     map[string]*Task
	results   map[string]TaskResult
	completed map[string]struct{}
	failed    map[string]struct{}

	maxConcurrent    int
	nextSeq          int
	retriesPerformed int
	totalExecTime    time.Duration
}

// New creates a scheduler for a single run.
func New(caller Caller, hooks Hooks) *Scheduler {
	return &Scheduler{
		caller:        caller,
		hooks:         hooks,
		logger:        slog.Default().With("component", "scheduler"),
		maxConcurrent: defaultMaxConcurrent,
		tasks:         make(map[string]*Task),
		results:       make(map[string]TaskResult),
		completed:     make(map[string]struct{}),
		failed:        make(map[string]struct{}),
	}
}

// SetMaxConcurrent overrides the per-level concurrency bound. Values below
// one are ignored.
func (s *Scheduler) SetMaxConcurrent(n int) {
	if n >= 1 {
		s.maxConcurrent = n
	}
}

// Add registers a task, replacing any existing task with the same name.
// Dependencies naming unknown tasks are tolerated here; they surface as an
// unresolvable failure if still missing at execution time.
func (s *Scheduler) Add(t Task) {
	if _, exists := s.tasks[t.Name]; exists {
		s.logger.Warn("Task already exists, overwriting", "task", t.Name)
	}
	for _, dep := range t.Dependencies {
		if _, ok := s.tasks[dep]; !ok && dep != t.Name {
			s.logger.Warn("Task has unknown dependency", "task", t.Name, "dependency", dep)
		}
	}
	t.createdAt = time.Now()
	t.seq = s.nextSeq
	s.nextSeq++
	s.tasks[t.Name] = &t
}

// readyTasks returns non-terminal tasks whose dependencies all completed,
// sorted by (priority desc, weight desc, creation asc). Tasks with a failed
// dependency transition straight to failed without dispatch.
func (s *Scheduler) readyTasks() []*Task {
	var ready []*Task
	for name, t := range s.tasks {
		if s.isTerminal(name) {
			continue
		}
		depsMet := true
		depFailed := false
		for _, dep := range t.Dependencies {
			if _, ok := s.completed[dep]; !ok {
				depsMet = false
			}
			if _, ok := s.failed[dep]; ok {
				depFailed = true
			}
		}
		if depFailed {
			s.logger.Warn("Task cannot execute, dependency failed", "task", name)
			s.record(TaskResult{Name: name, Success: false, ErrorMessage: ReasonDependencyFailed})
			continue
		}
		if depsMet {
			ready = append(ready, t)
		}
	}

	sort.Slice(ready, func(i, j int) bool {
		a, b := ready[i], ready[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		return a.seq < b.seq
	})
	return ready
}

// ExecuteAll runs rounds until every task is terminal or the iteration
// budget (2x task count) is spent. It returns the outputs of successful
// tasks keyed by name.
func (s *Scheduler) ExecuteAll(ctx context.Context) map[string]string {
	start := time.Now()
	maxIterations := 2 * len(s.tasks)

	for iteration := 0; s.terminalCount() < len(s.tasks) && iteration < maxIterations; iteration++ {
		before := s.terminalCount()
		ready := s.readyTasks()
		s.logger.Debug("Scheduling round",
			"iteration", iteration+1,
			"ready", len(ready),
			"completed", len(s.completed),
			"failed", len(s.failed))

		if len(ready) == 0 {
			// readyTasks may have cascaded failures; only a pass with no
			// progress at all means the remaining graph is stuck.
			if s.terminalCount() == before {
				s.failRemaining()
				break
			}
			continue
		}
		s.runRound(ctx, ready)
	}

	// The iteration guard can trip with tasks still pending on a cyclic graph.
	if s.terminalCount() < len(s.tasks) {
		s.failRemaining()
	}

	s.logger.Info("Task execution finished",
		"duration", time.Since(start).Round(time.Millisecond),
		"completed", len(s.completed),
		"failed", len(s.failed))

	outputs := make(map[string]string, len(s.completed))
	for name, res := range s.results {
		if res.Success {
			outputs[name] = res.Output
		}
	}
	return outputs
}

// runRound executes the ready set grouped by priority, highest level first.
// A level fully completes before the next begins.
func (s *Scheduler) runRound(ctx context.Context, ready []*Task) {
	groups := make(map[Priority][]*Task)
	for _, t := range ready {
		groups[t.Priority] = append(groups[t.Priority], t)
	}

	for _, p := range []Priority{Critical, High, Medium, Low} {
		group := groups[p]
		if len(group) == 0 {
			continue
		}
		s.logger.Debug("Executing priority level", "priority", p.String(), "tasks", len(group))

		concurrency := min(len(group), s.maxConcurrent)
		for i := 0; i < len(group); i += concurrency {
			batch := group[i:min(i+concurrency, len(group))]
			s.runBatch(ctx, batch)
		}
	}
}

// runBatch launches the batch concurrently and records results as workers
// hand them back. State maps are only touched here, after substitution and
// before the next batch, so workers never race on them.
func (s *Scheduler) runBatch(ctx context.Context, batch []*Task) {
	resultCh := make(chan TaskResult, len(batch))
	for _, t := range batch {
		prompt := s.substitutePlaceholders(t)
		if s.hooks.TaskStarted != nil {
			s.hooks.TaskStarted(t.Name, t.Backend)
		}
		go func(t *Task, prompt string) {
			resultCh <- s.executeTask(ctx, t, prompt)
		}(t, prompt)
	}
	for range batch {
		s.record(<-resultCh)
	}
}

// executeTask dispatches one task with its retry budget. It touches no
// scheduler state.
func (s *Scheduler) executeTask(ctx context.Context, t *Task, prompt string) TaskResult {
	start := time.Now()
	retries := 0
	for {
		out, err := s.caller.CallWithTimeout(ctx, t.Backend, prompt, t.Timeout, t.TaskType)
		if err == nil {
			return TaskResult{
				Name:          t.Name,
				Output:        out,
				Success:       true,
				ExecutionTime: time.Since(start),
				RetryCount:    retries,
			}
		}

		s.logger.Error("Task attempt failed",
			"task", t.Name, "attempt", retries+1, "error", err)

		if retries >= t.MaxRetries || ctx.Err() != nil {
			return TaskResult{
				Name:          t.Name,
				Success:       false,
				ExecutionTime: time.Since(start),
				RetryCount:    retries,
				ErrorMessage:  err.Error(),
			}
		}
		if serr := sleepCtx(ctx, t.RetryDelay); serr != nil {
			return TaskResult{
				Name:          t.Name,
				Success:       false,
				ExecutionTime: time.Since(start),
				RetryCount:    retries,
				ErrorMessage:  serr.Error(),
			}
		}
		retries++
	}
}

// substitutePlaceholders resolves {dep} markers against completed
// dependency outputs.
func (s *Scheduler) substitutePlaceholders(t *Task) string {
	prompt := t.Prompt
	for _, dep := range t.Dependencies {
		if res, ok := s.results[dep]; ok && res.Success {
			prompt = strings.ReplaceAll(prompt, "{"+dep+"}", strings.TrimSpace(res.Output))
		}
	}
	return prompt
}

// record makes a task terminal exactly once and updates counters.
func (s *Scheduler) record(res TaskResult) {
	if s.isTerminal(res.Name) {
		return
	}
	s.results[res.Name] = res
	s.retriesPerformed += res.RetryCount
	s.totalExecTime += res.ExecutionTime

	outcome := "failed"
	if res.Success {
		s.completed[res.Name] = struct{}{}
		outcome = "completed"
	} else {
		s.failed[res.Name] = struct{}{}
	}
	metrics.ObserveTask(res.Name, outcome)
	if s.hooks.TaskFinished != nil {
		s.hooks.TaskFinished(res)
	}
}

// failRemaining marks every non-terminal task as unresolvable. Reached when
// a round makes no progress (cycle or unknown dependency).
func (s *Scheduler) failRemaining() {
	for name := range s.tasks {
		if s.isTerminal(name) {
			continue
		}
		s.logger.Warn("Task unresolvable, marking failed", "task", name)
		s.record(TaskResult{Name: name, Success: false, ErrorMessage: ReasonUnresolvable})
	}
}

func (s *Scheduler) isTerminal(name string) bool {
	if _, ok := s.completed[name]; ok {
		return true
	}
	_, ok := s.failed[name]
	return ok
}

func (s *Scheduler) terminalCount() int {
	return len(s.completed) + len(s.failed)
}

// AllResults returns the full result map, including failures.
func (s *Scheduler) AllResults() map[string]TaskResult {
	out := make(map[string]TaskResult, len(s.results))
	for k, v := range s.results {
		out[k] = v
	}
	return out
}

// HasFailedCritical reports whether any Critical-priority task failed.
func (s *Scheduler) HasFailedCritical() bool {
	for name := range s.failed {
		if t, ok := s.tasks[name]; ok && t.Priority == Critical {
			return true
		}
	}
	return false
}

// Summary reports run counters and the terminal task lists.
func (s *Scheduler) Summary() Summary {
	completed := make([]string, 0, len(s.completed))
	for name := range s.completed {
		completed = append(completed, name)
	}
	failed := make([]string, 0, len(s.failed))
	for name := range s.failed {
		failed = append(failed, name)
	}
	sort.Strings(completed)
	sort.Strings(failed)

	sum := Summary{
		TotalTasks:         len(s.tasks),
		SuccessfulTasks:    len(s.completed),
		RetriesPerformed:   s.retriesPerformed,
		TotalExecutionTime: s.totalExecTime.Seconds(),
		CompletedTasks:     completed,
		FailedTasks:        failed,
	}
	if len(s.tasks) > 0 {
		sum.CompletionRate = float64(len(s.completed)) / float64(len(s.tasks))
	}
	if len(s.completed) > 0 {
		sum.AverageExecutionTime = s.totalExecTime.Seconds() / float64(len(s.completed))
	}
	return sum
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
