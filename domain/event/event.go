// Package event defines the domain events fanned out to live connections.
// Event names are the wire-level identifiers clients subscribe to.
package event

import (
	"quick-chat/domain/chat"
)

type DomainEvent interface {
	Name() string
}

// MessageReceived announces a freshly stored message to every connection
// subscribed to the chat group, including the sender's other devices.
type MessageReceived struct {
	Message chat.Message `json:"message"`
	Sender  chat.Profile `json:"sender"`
}

func (MessageReceived) Name() string { return "ReceiveMessage" }

// MessageRead announces the one-way IsRead transition of a message.
type MessageRead struct {
	MessageID chat.MessageID `json:"messageId"`
	ChatID    chat.ChatID    `json:"chatId"`
}

func (MessageRead) Name() string { return "MessageRead" }

// UserStatusChanged announces a presence transition. Emitted exactly once
// per crossing of the zero-connections boundary, never per connection.
type UserStatusChanged struct {
	User chat.Profile `json:"user"`
}

func (UserStatusChanged) Name() string { return "UserStatusChanged" }

// ChatCreated tells each participant's live connections that a chat now
// includes them, so clients refresh their chat list without polling.
type ChatCreated struct {
	ChatID  chat.ChatID `json:"chatId"`
	IsGroup bool        `json:"isGroup"`
}

func (ChatCreated) Name() string { return "ChatCreated" }
