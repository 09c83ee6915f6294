package slack

import (
	"context"
	"log/slog"
	"time"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token   string
	Channel string
}

// Service delivers Slack alerts. Nil-safe: all methods are no-ops on a nil
// receiver, so callers can wire it unconditionally.
type Service struct {
	client *Client
	logger *slog.Logger
}

// NewService creates the alert service. Returns nil if Token or Channel is
// empty.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client: NewClient(cfg.Token, cfg.Channel),
		logger: slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
func NewServiceWithClient(client *Client) *Service {
	return &Service{
		client: client,
		logger: slog.Default().With("component", "slack-service"),
	}
}

// ContradictionAlert reports a high-severity contradiction between agent
// outputs. Fail-open: errors are logged, never returned.
func (s *Service) ContradictionAlert(ctx context.Context, userID, severity, resolution string) {
	if s == nil {
		return
	}
	blocks := BuildContradictionMessage(userID, severity, resolution)
	if err := s.client.PostMessage(ctx, blocks, 10*time.Second); err != nil {
		s.logger.Error("Failed to send contradiction alert", "user_id", userID, "error", err)
	}
}

// FailureAlert reports tasks that failed during a run. Fail-open.
func (s *Service) FailureAlert(ctx context.Context, userID string, failedTasks []string) {
	if s == nil || len(failedTasks) == 0 {
		return
	}
	blocks := BuildFailureMessage(userID, failedTasks)
	if err := s.client.PostMessage(ctx, blocks, 10*time.Second); err != nil {
		s.logger.Error("Failed to send failure alert", "user_id", userID, "error", err)
	}
}
