// internal/model/conversation.go
package model

import "time"

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type Message struct {
	ID             int64     `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	Direction      Direction `db:"direction" json:"direction"`
	Body           string    `db:"body" json:"body"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

type PresenceSignal string

const (
	PresenceComposing PresenceSignal = "composing"
	PresencePaused    PresenceSignal = "paused"
)

type EventType string

const (
	EventMessage  EventType = "message"
	EventPresence EventType = "presence"
)

type Media struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// InboundEvent is the normalised webhook payload delivered by the messaging gateway.
type InboundEvent struct {
	Type           EventType      `json:"type"`
	ConversationID string         `json:"conversation_id"`
	FromSelf       bool           `json:"from_self"`
	PushName       string         `json:"push_name,omitempty"`
	Text           string         `json:"text,omitempty"`
	Media          *Media         `json:"media,omitempty"`
	Signal         PresenceSignal `json:"signal,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Turn is one coalesced inbound turn handed to the reply pipeline.
type Turn struct {
	ConversationID string
	DisplayName    string
	Text           string
	Media          *Media
}
