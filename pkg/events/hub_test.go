package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/quorum/pkg/backend"
	"github.com/codeready-toolchain/quorum/pkg/scheduler"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHub_PublishReachesConversationAndFirehose(t *testing.T) {
	h := NewHub()
	convID, convCh := h.Subscribe(ConversationChannel("c1"))
	allID, allCh := h.Subscribe(ChannelAll)
	defer h.Unsubscribe(ConversationChannel("c1"), convID)
	defer h.Unsubscribe(ChannelAll, allID)

	h.Publish(Event{Type: EventTypeTaskStarted, ConversationID: "c1", Task: "explanation"})

	for _, ch := range []<-chan Event{convCh, allCh} {
		ev := receive(t, ch)
		assert.Equal(t, EventTypeTaskStarted, ev.Type)
		assert.Equal(t, "c1", ev.ConversationID)
		assert.False(t, ev.Timestamp.IsZero())
	}
}

func TestHub_OtherConversationsDoNotCross(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(ConversationChannel("c1"))
	defer h.Unsubscribe(ConversationChannel("c1"), id)

	h.Publish(Event{Type: EventTypeTaskStarted, ConversationID: "c2"})

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnsubscribeClosesQueue(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(ChannelAll)
	h.Unsubscribe(ChannelAll, id)

	_, open := <-ch
	assert.False(t, open)

	// Unsubscribing twice is harmless.
	h.Unsubscribe(ChannelAll, id)
}

func TestHub_SlowSubscriberLosesEvents(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(ChannelAll)
	defer h.Unsubscribe(ChannelAll, id)

	for i := 0; i < subscriberBuffer+10; i++ {
		h.Publish(Event{Type: EventTypeTaskStarted, ConversationID: "c1"})
	}

	// The queue holds exactly its buffer; the overflow was dropped, not
	// blocked on.
	assert.Len(t, ch, subscriberBuffer)
}

func TestHub_TaskStarted(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(ChannelAll)
	defer h.Unsubscribe(ChannelAll, id)

	h.TaskStarted("c1", "fact_check", backend.Grok)

	ev := receive(t, ch)
	assert.Equal(t, EventTypeTaskStarted, ev.Type)
	assert.Equal(t, "fact_check", ev.Task)
	assert.Equal(t, "grok", ev.Backend)
}

func TestHub_TaskFinished(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(ChannelAll)
	defer h.Unsubscribe(ChannelAll, id)

	h.TaskFinished("c1", scheduler.TaskResult{
		Name:          "explanation",
		Success:       true,
		ExecutionTime: 1500 * time.Millisecond,
		RetryCount:    1,
	})

	ev := receive(t, ch)
	assert.Equal(t, EventTypeTaskCompleted, ev.Type)
	assert.Equal(t, "explanation", ev.Task)
	assert.Equal(t, 1.5, ev.Payload["execution_time"])
	assert.Equal(t, 1, ev.Payload["retry_count"])
	assert.NotContains(t, ev.Payload, "error")
}

func TestHub_TaskFinishedFailure(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(ChannelAll)
	defer h.Unsubscribe(ChannelAll, id)

	h.TaskFinished("c1", scheduler.TaskResult{
		Name:         "fact_check",
		Success:      false,
		ErrorMessage: errors.New("backend unavailable").Error(),
	})

	ev := receive(t, ch)
	assert.Equal(t, EventTypeTaskFailed, ev.Type)
	assert.Equal(t, "backend unavailable", ev.Payload["error"])
}

func TestHub_RunCompleted(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(ChannelAll)
	defer h.Unsubscribe(ChannelAll, id)

	h.RunCompleted("c1", scheduler.Summary{
		TotalTasks:      6,
		SuccessfulTasks: 5,
		FailedTasks:     1,
		CompletionRate:  5.0 / 6.0,
	})

	ev := receive(t, ch)
	require.Equal(t, EventTypeRunCompleted, ev.Type)
	assert.Equal(t, 6, ev.Payload["total_tasks"])
	assert.Equal(t, 5, ev.Payload["successful_tasks"])
	assert.Equal(t, 1, ev.Payload["failed_tasks"])
	assert.InDelta(t, 5.0/6.0, ev.Payload["completion_rate"], 1e-9)
}

func TestConversationChannel(t *testing.T) {
	assert.Equal(t, "conversation:c1", ConversationChannel("c1"))
}
