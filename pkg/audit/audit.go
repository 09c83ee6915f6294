// Package audit records per-call agent actions in PostgreSQL. Writes are
// best-effort: a failed insert or update is logged and swallowed so audit
// problems never disturb a reasoning run.
package audit

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/quorum/pkg/backend"
)

// Store is a pgx-backed backend.AuditSink.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:   pool,
		logger: slog.Default().With("component", "audit"),
	}
}

var _ backend.AuditSink = (*Store)(nil)

// Log inserts a started action and returns its row ID for later completion.
// On failure it returns 0 and a nil error; the caller cannot act on audit
// failures anyway.
func (s *Store) Log(ctx context.Context, ev backend.AuditEvent) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO agent_actions (user_id, conversation_id, agent_name, task_type, prompt, status)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		ev.UserID, ev.ConversationID, ev.AgentName, ev.TaskType, ev.Prompt, ev.Status,
	).Scan(&id)
	if err != nil {
		s.logger.Warn("Failed to record agent action",
			"agent", ev.AgentName, "task_type", ev.TaskType, "error", err)
		return 0, nil
	}
	return id, nil
}

// Update completes a previously logged action. An ID of 0 means the original
// insert failed and there is nothing to update.
func (s *Store) Update(ctx context.Context, id int64, up backend.AuditUpdate) error {
	if id == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE agent_actions SET response = $1, error = NULLIF($2, ''), duration = $3, status = $4
		 WHERE id = $5`,
		up.Response, up.Error, up.Duration.Seconds(), up.Status, id)
	if err != nil {
		s.logger.Warn("Failed to update agent action", "id", id, "error", err)
	}
	return nil
}
