// Package scheduler runs a single reasoning run's task DAG: priority-grouped
// rounds of concurrent execution with per-task timeouts, retry with delay,
// dependency gating, and placeholder substitution from upstream outputs.
// A Scheduler is owned by one run and is not reused.
package scheduler

import (
	"time"

	"github.com/codeready-toolchain/quorum/pkg/backend"
)

// Priority orders tasks. Higher priorities complete fully before lower
// priorities begin.
type Priority int

const (
	Low Priority = iota + 1
	Medium
	High
	Critical
)

func (p Priority) String() string {
	switch p {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	}
	return "unknown"
}

// Failure reasons recorded in TaskResult.ErrorMessage for tasks that never
// dispatched.
const (
	ReasonDependencyFailed = "dependency_failed"
	ReasonUnresolvable     = "unresolvable_dependency"
)

// Task is one node in the DAG. Prompt may contain {depName} placeholders
// which are replaced with the trimmed output of the completed dependency
// before dispatch; unknown placeholders are left verbatim.
type Task struct {
	Name         string
	Backend      backend.ID
	Prompt       string
	Priority     Priority
	Weight       float64
	Timeout      time.Duration
	TaskType     string
	Dependencies []string
	MaxRetries   int
	RetryDelay   time.Duration

	createdAt time.Time
	seq       int
}

// TaskResult is the terminal record for one task.
type TaskResult struct {
	Name          string
	Output        string
	Success       bool
	ExecutionTime time.Duration
	RetryCount    int
	ErrorMessage  string
}

// Summary aggregates a finished run. Field names are part of the report
// contract.
type Summary struct {
	TotalTasks           int      `json:"total_tasks"`
	SuccessfulTasks      int      `json:"successful_tasks"`
	RetriesPerformed     int      `json:"retries_performed"`
	TotalExecutionTime   float64  `json:"total_execution_time"`
	CompletionRate       float64  `json:"completion_rate"`
	AverageExecutionTime float64  `json:"average_execution_time"`
	CompletedTasks       []string `json:"completed_tasks"`
	FailedTasks          []string `json:"failed_tasks"`
}
