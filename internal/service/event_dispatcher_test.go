package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/leadpilot-backend/internal/model"
	"github.com/unclebandit/leadpilot-backend/internal/queue"
)

func publishEvent(t *testing.T, q queue.Queue, ev model.InboundEvent) {
	t.Helper()
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, q.Publish(queue.TopicInboundEvents, body))
}

func TestDispatcherRoutesQueuedEvents(t *testing.T) {
	q := queue.NewInMemoryQueue()
	defer q.Close()
	h := &recordingHandler{}
	o := newTestOrchestrator(t, h, testTimings())
	require.NoError(t, NewEventDispatcher(q, o).Start())

	publishEvent(t, q, model.InboundEvent{Type: model.EventMessage, ConversationID: "chat-1", PushName: "Ana", Text: "hi"})
	publishEvent(t, q, model.InboundEvent{Type: model.EventMessage, ConversationID: "chat-1", FromSelf: true, Text: "our own echo"})
	publishEvent(t, q, model.InboundEvent{Type: model.EventPresence, ConversationID: "chat-1", Signal: model.PresenceComposing})
	publishEvent(t, q, model.InboundEvent{Type: model.EventMessage, ConversationID: "chat-1", Media: &model.Media{URL: "https://cdn/a.jpg"}})

	require.Eventually(t, func() bool { return len(h.Turns()) == 1 }, time.Second, 5*time.Millisecond)
	turn := h.Turns()[0]
	assert.Equal(t, "hi", turn.Text)
	assert.Equal(t, "Ana", turn.DisplayName)
	require.NotNil(t, turn.Media)
	assert.Equal(t, "https://cdn/a.jpg", turn.Media.URL)
}

func TestDispatcherDropsBadPayloads(t *testing.T) {
	h := &recordingHandler{}
	d := NewEventDispatcher(queue.NewInMemoryQueue(), newTestOrchestrator(t, h, testTimings()))

	assert.NoError(t, d.handle([]byte("{not json")))
	assert.NoError(t, d.handle([]byte(`{"type":"message","text":"no conversation"}`)))
	assert.Error(t, d.Dispatch(model.InboundEvent{Type: "reaction", ConversationID: "chat-1"}))
	assert.NoError(t, d.Dispatch(model.InboundEvent{FromSelf: true}))
}
