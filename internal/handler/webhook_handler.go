// internal/handler/webhook_handler.go
package handler

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/unclebandit/leadpilot-backend/internal/gateway"
	"github.com/unclebandit/leadpilot-backend/internal/model"
	"github.com/unclebandit/leadpilot-backend/internal/queue"
)

const maxWebhookBody = 1 << 20

// WebhookHandler accepts gateway callbacks and queues them for the
// conversation orchestrator.
type WebhookHandler struct {
	Queue queue.Queue
}

func NewWebhookHandler(q queue.Queue) *WebhookHandler {
	return &WebhookHandler{Queue: q}
}

// ReceiveHandler accepts either a raw gateway webhook ({"event": ...}) or an
// already normalised inbound event.
func (h *WebhookHandler) ReceiveHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	events, err := decodeEvents(body)
	if err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	accepted := 0
	for _, ev := range events {
		if strings.TrimSpace(ev.ConversationID) == "" {
			log.Println("⚠️ webhook event without conversation id, skipping")
			continue
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			http.Error(w, "failed to encode event: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if err := h.Queue.Publish(queue.TopicInboundEvents, payload); err != nil {
			log.Println("❌ failed to queue inbound event:", err)
			http.Error(w, "failed to queue event", http.StatusServiceUnavailable)
			return
		}
		accepted++
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]int{"accepted": accepted})
}

func decodeEvents(body []byte) ([]model.InboundEvent, error) {
	var probe struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, err
	}
	if probe.Event != "" {
		return gateway.ParseWebhook(body)
	}

	var ev model.InboundEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, err
	}
	return []model.InboundEvent{ev}, nil
}
