// Package chat defines the transport boundary to the chat platform: inbound
// events, outbound sends, and the websocket gateway client.
package chat

import "context"

// EventType classifies inbound gateway frames.
type EventType string

const (
	// EventMessage is a new message posted to a conversation. Only these
	// reach the dispatcher.
	EventMessage EventType = "message"
)

// SenderKind distinguishes humans from the relay's own echoes and platform
// notices.
type SenderKind string

const (
	SenderHuman  SenderKind = "human"
	SenderBot    SenderKind = "bot"
	SenderSystem SenderKind = "system"
)

// Attachment describes a file delivered alongside a message. The transport
// has already fetched it to a local path.
type Attachment struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	MediaType string `json:"media_type"`
}

// Event is one inbound occurrence at the chat boundary.
type Event struct {
	Type        EventType    `json:"type"`
	ChatID      string       `json:"chat_id"`
	Sender      string       `json:"sender"`
	SenderKind  SenderKind   `json:"sender_kind"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Transport delivers events in and messages out.
type Transport interface {
	// Events yields inbound events. The channel closes when the transport
	// shuts down.
	Events() <-chan Event

	// Send posts plain text to a conversation. Callers are responsible for
	// chunking; see Sender.
	Send(ctx context.Context, chatID, text string) error

	// Close shuts the transport down.
	Close() error
}
