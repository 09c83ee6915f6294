// Package analytics aggregates the agent_actions audit trail into
// conversation, performance, task-type, and error views.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Service answers analytics queries over the audit trail.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{
		pool:   pool,
		logger: slog.Default().With("component", "analytics"),
	}
}

// Window bounds a query in time. Zero values default to the last seven days.
type Window struct {
	Start  time.Time
	End    time.Time
	UserID string
}

func (w Window) bounds() (time.Time, time.Time) {
	start, end := w.Start, w.End
	if end.IsZero() {
		end = time.Now().UTC()
	}
	if start.IsZero() {
		start = end.Add(-7 * 24 * time.Hour)
	}
	return start, end
}

// Action is one audited agent call in a conversation.
type Action struct {
	AgentName string    `json:"agent_name"`
	TaskType  string    `json:"task_type"`
	Status    string    `json:"status"`
	Duration  float64   `json:"duration"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationFlow returns a conversation's actions in execution order.
func (s *Service) ConversationFlow(ctx context.Context, conversationID string) ([]Action, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT agent_name, task_type, status, COALESCE(duration, 0), COALESCE(error, ''), timestamp
		 FROM agent_actions WHERE conversation_id = $1 ORDER BY timestamp`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation flow: %w", err)
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		var a Action
		if err := rows.Scan(&a.AgentName, &a.TaskType, &a.Status, &a.Duration, &a.Error, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// AgentContribution summarizes one agent's share of a conversation.
type AgentContribution struct {
	Tasks         int     `json:"tasks"`
	Successful    int     `json:"successful"`
	TotalDuration float64 `json:"total_duration"`
}

// ConversationSummary is the rollup of a single conversation.
type ConversationSummary struct {
	ConversationID     string                       `json:"conversation_id"`
	TotalActions       int                          `json:"total_actions"`
	SuccessfulActions  int                          `json:"successful_actions"`
	TotalDuration      float64                      `json:"total_duration"`
	SuccessRate        float64                      `json:"success_rate"`
	AgentContributions map[string]AgentContribution `json:"agent_contributions"`
	ActionSequence     []Action                     `json:"action_sequence"`
}

// ErrConversationNotFound marks an unknown conversation ID.
var ErrConversationNotFound = fmt.Errorf("conversation not found")

// Summary aggregates one conversation's actions.
func (s *Service) Summary(ctx context.Context, conversationID string) (*ConversationSummary, error) {
	actions, err := s.ConversationFlow(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return nil, ErrConversationNotFound
	}

	summary := &ConversationSummary{
		ConversationID:     conversationID,
		TotalActions:       len(actions),
		AgentContributions: map[string]AgentContribution{},
		ActionSequence:     actions,
	}
	for _, a := range actions {
		summary.TotalDuration += a.Duration
		contrib := summary.AgentContributions[a.AgentName]
		contrib.Tasks++
		contrib.TotalDuration += a.Duration
		if a.Status == "completed" {
			summary.SuccessfulActions++
			contrib.Successful++
		}
		summary.AgentContributions[a.AgentName] = contrib
	}
	summary.TotalDuration = round2(summary.TotalDuration)
	summary.SuccessRate = round2(float64(summary.SuccessfulActions) / float64(len(actions)) * 100)
	return summary, nil
}

// AgentMetrics summarizes one agent's call outcomes over a window.
type AgentMetrics struct {
	TotalCalls  int     `json:"total_calls"`
	AvgDuration float64 `json:"avg_duration"`
	SuccessRate float64 `json:"success_rate"`
	ErrorRate   float64 `json:"error_rate"`
	TimeoutRate float64 `json:"timeout_rate"`
}

// Performance returns per-agent call metrics in the window.
func (s *Service) Performance(ctx context.Context, w Window) (map[string]AgentMetrics, error) {
	start, end := w.bounds()
	rows, err := s.pool.Query(ctx,
		`SELECT agent_name,
		        COUNT(*),
		        COALESCE(AVG(duration), 0),
		        COUNT(*) FILTER (WHERE status = 'completed'),
		        COUNT(*) FILTER (WHERE status = 'error'),
		        COUNT(*) FILTER (WHERE status = 'timeout')
		 FROM agent_actions
		 WHERE timestamp BETWEEN $1 AND $2 AND ($3 = '' OR user_id = $3)
		 GROUP BY agent_name`,
		start, end, w.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to query performance metrics: %w", err)
	}
	defer rows.Close()

	metrics := map[string]AgentMetrics{}
	for rows.Next() {
		var agent string
		var total, completed, errored, timedOut int
		var avg float64
		if err := rows.Scan(&agent, &total, &avg, &completed, &errored, &timedOut); err != nil {
			return nil, fmt.Errorf("failed to scan performance row: %w", err)
		}
		m := AgentMetrics{TotalCalls: total, AvgDuration: round2(avg)}
		if total > 0 {
			m.SuccessRate = round2(float64(completed) / float64(total) * 100)
			m.ErrorRate = round2(float64(errored) / float64(total) * 100)
			m.TimeoutRate = round2(float64(timedOut) / float64(total) * 100)
		}
		metrics[agent] = m
	}
	return metrics, rows.Err()
}

// AgentShare is one agent's slice of a task type.
type AgentShare struct {
	Calls       int     `json:"calls"`
	AvgDuration float64 `json:"avg_duration"`
	SuccessRate float64 `json:"success_rate"`
}

// TaskTypeStats summarizes calls for one task type.
type TaskTypeStats struct {
	TotalCalls int                   `json:"total_calls"`
	Agents     map[string]AgentShare `json:"agents"`
}

// TaskDistribution returns per-task-type call counts and agent shares.
func (s *Service) TaskDistribution(ctx context.Context, w Window) (map[string]TaskTypeStats, error) {
	start, end := w.bounds()
	rows, err := s.pool.Query(ctx,
		`SELECT task_type, agent_name,
		        COUNT(*),
		        COALESCE(AVG(duration), 0),
		        COUNT(*) FILTER (WHERE status = 'completed')
		 FROM agent_actions
		 WHERE timestamp BETWEEN $1 AND $2 AND ($3 = '' OR user_id = $3)
		 GROUP BY task_type, agent_name`,
		start, end, w.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task distribution: %w", err)
	}
	defer rows.Close()

	distribution := map[string]TaskTypeStats{}
	for rows.Next() {
		var taskType, agent string
		var total, successful int
		var avg float64
		if err := rows.Scan(&taskType, &agent, &total, &avg, &successful); err != nil {
			return nil, fmt.Errorf("failed to scan distribution row: %w", err)
		}
		stats, ok := distribution[taskType]
		if !ok {
			stats = TaskTypeStats{Agents: map[string]AgentShare{}}
		}
		stats.TotalCalls += total
		share := AgentShare{Calls: total, AvgDuration: round2(avg)}
		if total > 0 {
			share.SuccessRate = round2(float64(successful) / float64(total) * 100)
		}
		stats.Agents[agent] = share
		distribution[taskType] = stats
	}
	return distribution, rows.Err()
}

// ErrorPattern is one recurring error message.
type ErrorPattern struct {
	Error string `json:"error"`
	Agent string `json:"agent"`
	Count int    `json:"count"`
}

// CommonErrors returns the most frequent error messages in the window.
func (s *Service) CommonErrors(ctx context.Context, limit int, w Window) ([]ErrorPattern, error) {
	if limit <= 0 {
		limit = 10
	}
	start, end := w.bounds()
	rows, err := s.pool.Query(ctx,
		`SELECT COALESCE(error, ''), agent_name, COUNT(*)
		 FROM agent_actions
		 WHERE status = 'error' AND timestamp BETWEEN $1 AND $2
		 GROUP BY error, agent_name
		 ORDER BY COUNT(*) DESC
		 LIMIT $3`,
		start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query common errors: %w", err)
	}
	defer rows.Close()

	var patterns []ErrorPattern
	for rows.Next() {
		var p ErrorPattern
		if err := rows.Scan(&p.Error, &p.Agent, &p.Count); err != nil {
			return nil, fmt.Errorf("failed to scan error row: %w", err)
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
