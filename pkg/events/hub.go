package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/quorum/pkg/backend"
	"github.com/codeready-toolchain/quorum/pkg/scheduler"
)

// subscriberBuffer is the per-subscriber queue depth. A subscriber that
// falls this far behind starts losing events; the final report is always
// available over REST.
const subscriberBuffer = 64

// Hub fans reasoning run events out to subscribers. It implements
// reasoning.EventSink.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[string]chan Event // channel → subscriber ID → queue
	logger *slog.Logger
}

func NewHub() *Hub {
	return &Hub{
		subs:   make(map[string]map[string]chan Event),
		logger: slog.Default().With("component", "events"),
	}
}

// Subscribe registers a consumer on a channel and returns its ID and queue.
func (h *Hub) Subscribe(channel string) (string, <-chan Event) {
	id := uuid.New().String()
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[string]chan Event)
	}
	h.subs[channel][id] = ch
	return id, ch
}

// Unsubscribe removes a consumer and closes its queue.
func (h *Hub) Unsubscribe(channel, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[channel][id]; ok {
		delete(h.subs[channel], id)
		if len(h.subs[channel]) == 0 {
			delete(h.subs, channel)
		}
		close(ch)
	}
}

// Publish delivers an event to the conversation channel and the firehose.
// Slow subscribers lose events rather than blocking the run.
func (h *Hub) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, channel := range []string{ConversationChannel(ev.ConversationID), ChannelAll} {
		for id, ch := range h.subs[channel] {
			select {
			case ch <- ev:
			default:
				h.logger.Warn("Dropping event for slow subscriber",
					"subscriber", id, "channel", channel, "type", ev.Type)
			}
		}
	}
}

// TaskStarted implements reasoning.EventSink.
func (h *Hub) TaskStarted(conversationID, task string, id backend.ID) {
	h.Publish(Event{
		Type:           EventTypeTaskStarted,
		ConversationID: conversationID,
		Task:           task,
		Backend:        id.String(),
	})
}

// TaskFinished implements reasoning.EventSink.
func (h *Hub) TaskFinished(conversationID string, res scheduler.TaskResult) {
	eventType := EventTypeTaskCompleted
	payload := map[string]any{
		"execution_time": res.ExecutionTime.Seconds(),
		"retry_count":    res.RetryCount,
	}
	if !res.Success {
		eventType = EventTypeTaskFailed
		payload["error"] = res.ErrorMessage
	}
	h.Publish(Event{
		Type:           eventType,
		ConversationID: conversationID,
		Task:           res.Name,
		Payload:        payload,
	})
}

// RunCompleted implements reasoning.EventSink.
func (h *Hub) RunCompleted(conversationID string, summary scheduler.Summary) {
	h.Publish(Event{
		Type:           EventTypeRunCompleted,
		ConversationID: conversationID,
		Payload: map[string]any{
			"total_tasks":      summary.TotalTasks,
			"successful_tasks": summary.SuccessfulTasks,
			"failed_tasks":     summary.FailedTasks,
			"completion_rate":  summary.CompletionRate,
		},
	})
}
