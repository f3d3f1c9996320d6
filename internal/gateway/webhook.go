package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/unclebandit/leadpilot-backend/internal/model"
)

// Gateway webhook event names.
const (
	EventMessagesUpsert = "messages.upsert"
	EventPresenceUpdate = "presence.update"
)

type webhookEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type upsertData struct {
	Key struct {
		RemoteJID string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
	} `json:"key"`
	PushName         string `json:"pushName"`
	MessageTimestamp int64  `json:"messageTimestamp"`
	Message          struct {
		Conversation        string `json:"conversation"`
		ExtendedTextMessage *struct {
			Text string `json:"text"`
		} `json:"extendedTextMessage"`
		ImageMessage    *mediaMessage `json:"imageMessage"`
		VideoMessage    *mediaMessage `json:"videoMessage"`
		AudioMessage    *mediaMessage `json:"audioMessage"`
		DocumentMessage *mediaMessage `json:"documentMessage"`
	} `json:"message"`
}

type mediaMessage struct {
	URL      string `json:"url"`
	Mimetype string `json:"mimetype"`
	Caption  string `json:"caption"`
}

type presenceData struct {
	ID        string `json:"id"`
	Presences map[string]struct {
		LastKnownPresence string `json:"lastKnownPresence"`
	} `json:"presences"`
}

// ParseWebhook turns a gateway webhook body into inbound events. Events the
// service does not react to yield no events and no error.
func ParseWebhook(body []byte) ([]model.InboundEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("gateway: decode webhook: %w", err)
	}

	switch strings.ToLower(env.Event) {
	case EventMessagesUpsert:
		var d upsertData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("gateway: decode message: %w", err)
		}
		ev := model.InboundEvent{
			Type:           model.EventMessage,
			ConversationID: d.Key.RemoteJID,
			FromSelf:       d.Key.FromMe,
			PushName:       d.PushName,
			Timestamp:      time.Now(),
		}
		if d.MessageTimestamp > 0 {
			ev.Timestamp = time.Unix(d.MessageTimestamp, 0)
		}

		msg := d.Message
		switch {
		case msg.Conversation != "":
			ev.Text = msg.Conversation
		case msg.ExtendedTextMessage != nil:
			ev.Text = msg.ExtendedTextMessage.Text
		}
		for _, m := range []*mediaMessage{msg.ImageMessage, msg.VideoMessage, msg.AudioMessage, msg.DocumentMessage} {
			if m != nil {
				ev.Media = &model.Media{URL: m.URL, MimeType: m.Mimetype, Caption: m.Caption}
				break
			}
		}
		if ev.Text == "" && ev.Media == nil {
			return nil, nil
		}
		return []model.InboundEvent{ev}, nil

	case EventPresenceUpdate:
		var d presenceData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("gateway: decode presence: %w", err)
		}
		var events []model.InboundEvent
		for _, p := range d.Presences {
			var signal model.PresenceSignal
			switch p.LastKnownPresence {
			case "composing", "recording":
				signal = model.PresenceComposing
			case "paused", "available":
				signal = model.PresencePaused
			default:
				continue
			}
			events = append(events, model.InboundEvent{
				Type:           model.EventPresence,
				ConversationID: d.ID,
				Signal:         signal,
				Timestamp:      time.Now(),
			})
		}
		return events, nil
	}
	return nil, nil
}
