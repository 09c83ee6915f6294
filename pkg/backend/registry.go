package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/quorum/pkg/metrics"
)

// Audit span statuses.
const (
	AuditStarted   = "started"
	AuditCompleted = "completed"
	AuditError     = "error"
	AuditTimeout   = "timeout"
)

// AuditEvent opens an audit span for one backend call.
type AuditEvent struct {
	UserID         string
	ConversationID string
	AgentName      string
	TaskType       string
	Prompt         string
	Status         string
}

// AuditUpdate closes an audit span with the call outcome.
type AuditUpdate struct {
	Response string
	Error    string
	Duration time.Duration
	Status   string
}

// AuditSink records per-call lifecycle events. Implementations must be
// best-effort: the registry logs and discards their errors, and a sink
// failure never alters the call result.
type AuditSink interface {
	Log(ctx context.Context, e AuditEvent) (int64, error)
	Update(ctx context.Context, id int64, u AuditUpdate) error
}

// NopAuditSink discards all events.
type NopAuditSink struct{}

func (NopAuditSink) Log(context.Context, AuditEvent) (int64, error)    { return 0, nil }
func (NopAuditSink) Update(context.Context, int64, AuditUpdate) error { return nil }

// Settings configures one vendor client.
type Settings struct {
	APIKey  string
	Model   string
	BaseURL string
	Limits  Limits
}

// CallMeta carries the audit identity of a call.
type CallMeta struct {
	UserID         string
	ConversationID string
	TaskType       string
}

// Registry maps backend IDs to clients and wraps every dispatch in a
// deadline and an audit span. The ID set is validated at construction.
type Registry struct {
	backends map[ID]Backend
	sink     AuditSink
	logger   *slog.Logger
}

// NewRegistry builds vendor clients for the configured IDs. Unknown IDs are
// a construction error, not a runtime surprise.
func NewRegistry(settings map[ID]Settings, sink AuditSink) (*Registry, error) {
	backends := make(map[ID]Backend, len(settings))
	for id, s := range settings {
		if _, err := ParseID(id.String()); err != nil {
			return nil, err
		}
		switch id {
		case GPT:
			backends[id] = NewClient(id, newOpenAIVendor(s.APIKey, s.Model, s.BaseURL), s.Limits, nil)
		case Claude:
			backends[id] = NewClient(id, newAnthropicVendor(s.APIKey, s.Model, s.BaseURL), s.Limits, nil)
		case Grok:
			backends[id] = NewClient(id, newGrokVendor(s.APIKey, s.Model, s.BaseURL), s.Limits, cleanGrokOutput)
		}
	}
	return NewRegistryWithBackends(backends, sink), nil
}

// NewRegistryWithBackends wires pre-built backends; tests use it to inject
// stubs.
func NewRegistryWithBackends(backends map[ID]Backend, sink AuditSink) *Registry {
	if sink == nil {
		sink = NopAuditSink{}
	}
	return &Registry{
		backends: backends,
		sink:     sink,
		logger:   slog.Default().With("component", "backend-registry"),
	}
}

// Has reports whether id is configured.
func (r *Registry) Has(id ID) bool {
	_, ok := r.backends[id]
	return ok
}

// Invoke dispatches to the named backend without a deadline or audit span.
// The quality probes use it for short internal calls.
func (r *Registry) Invoke(ctx context.Context, id ID, prompt string, maxOutputTokens int) (string, error) {
	b, ok := r.backends[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownBackend, id)
	}
	return b.Invoke(ctx, prompt, maxOutputTokens)
}

// CallWithTimeout dispatches to the named backend under the given deadline,
// surrounding the call with an audit span. On deadline the in-flight request
// is cancelled and the error kind is Timeout.
func (r *Registry) CallWithTimeout(ctx context.Context, id ID, prompt string, timeout time.Duration, meta CallMeta) (string, error) {
	b, ok := r.backends[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownBackend, id)
	}

	auditID, err := r.sink.Log(ctx, AuditEvent{
		UserID:         meta.UserID,
		ConversationID: meta.ConversationID,
		AgentName:      id.DisplayName(),
		TaskType:       meta.TaskType,
		Prompt:         prompt,
		Status:         AuditStarted,
	})
	if err != nil {
		r.logger.Warn("Audit log write failed", "backend", id, "error", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out, callErr := b.Invoke(callCtx, prompt, 0)
	duration := time.Since(start)

	status := AuditCompleted
	if callErr != nil {
		// Deadline expiry is a Timeout regardless of how the backend
		// surfaced it.
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !IsTimeout(callErr) {
			callErr = &CallError{Backend: id, Kind: KindTimeout, Err: callErr}
		}
		var ce *CallError
		if !errors.As(callErr, &ce) {
			callErr = &CallError{Backend: id, Kind: KindBackend, Err: callErr}
		}
		if IsTimeout(callErr) {
			status = AuditTimeout
		} else {
			status = AuditError
		}
	}

	update := AuditUpdate{Duration: duration, Status: status}
	if callErr != nil {
		update.Error = callErr.Error()
	} else {
		update.Response = out
	}
	if err := r.sink.Update(ctx, auditID, update); err != nil {
		r.logger.Warn("Audit log update failed", "backend", id, "error", err)
	}

	metrics.ObserveBackendCall(id.String(), status, duration)

	if callErr != nil {
		return "", callErr
	}
	return out, nil
}
