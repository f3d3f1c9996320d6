// internal/service/event_dispatcher.go
package service

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/unclebandit/leadpilot-backend/internal/model"
	"github.com/unclebandit/leadpilot-backend/internal/queue"
)

// EventDispatcher feeds gateway events from the queue into the orchestrator.
type EventDispatcher struct {
	Queue        queue.Queue
	Orchestrator *ConversationOrchestrator
}

func NewEventDispatcher(q queue.Queue, o *ConversationOrchestrator) *EventDispatcher {
	return &EventDispatcher{Queue: q, Orchestrator: o}
}

func (d *EventDispatcher) Start() error {
	return d.Queue.Subscribe(queue.TopicInboundEvents, d.handle)
}

// handle never asks for a redelivery of a malformed event.
func (d *EventDispatcher) handle(payload []byte) error {
	var ev model.InboundEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		log.Printf("⚠️ Dropping undecodable inbound event: %v", err)
		return nil
	}
	if err := d.Dispatch(ev); err != nil {
		log.Printf("⚠️ Dropping inbound %s event for %q: %v", ev.Type, ev.ConversationID, err)
	}
	return nil
}

// Dispatch routes one event. Our own echoed messages are ignored.
func (d *EventDispatcher) Dispatch(ev model.InboundEvent) error {
	if ev.FromSelf {
		return nil
	}
	switch ev.Type {
	case model.EventPresence:
		return d.Orchestrator.OnPresenceSignal(ev.ConversationID, ev.Signal)
	case model.EventMessage, "":
		if ev.Media != nil {
			return d.Orchestrator.OnInboundMedia(ev.ConversationID, ev.PushName, *ev.Media)
		}
		return d.Orchestrator.OnInboundText(ev.ConversationID, ev.PushName, ev.Text)
	default:
		return fmt.Errorf("unknown inbound event type %q", ev.Type)
	}
}
