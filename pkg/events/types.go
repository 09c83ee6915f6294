// Package events provides real-time run progress delivery to WebSocket
// clients via an in-process hub.
package events

import "time"

// Event types published during a reasoning run.
const (
	EventTypeTaskStarted   = "task.started"
	EventTypeTaskCompleted = "task.completed"
	EventTypeTaskFailed    = "task.failed"
	EventTypeRunCompleted  = "run.completed"
)

// ChannelAll receives every event regardless of conversation.
const ChannelAll = "all"

// Event is one run progress notification.
type Event struct {
	Type           string         `json:"type"`
	ConversationID string         `json:"conversation_id"`
	Task           string         `json:"task,omitempty"`
	Backend        string         `json:"backend,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// ConversationChannel names the channel carrying one conversation's events.
func ConversationChannel(conversationID string) string {
	return "conversation:" + conversationID
}
