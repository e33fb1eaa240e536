// Package chat contains the core concepts of the chat system: users,
// chats, memberships and messages. No runtime, network, or storage logic
// should be added here.
package chat

import (
	"time"
)

type (
	UserID    int64
	ChatID    int64
	MessageID int64
)

// ConnectionID identifies one live transport connection. Connections are
// ephemeral: they never survive a process restart and are not persisted.
type ConnectionID string

// User is the authoritative account record. IsOnline and LastOnline are
// derived from the live connection count and mutated only by the presence
// tracker.
type User struct {
	ID           UserID    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	AvatarURL    string    `json:"avatarUrl"`
	PasswordHash string    `json:"-"`
	IsOnline     bool      `json:"isOnline"`
	LastOnline   time.Time `json:"lastOnline"`
}

// Profile is the public projection of a User, safe to put on the wire.
type Profile struct {
	ID        UserID `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
	IsOnline  bool   `json:"isOnline"`
}

func (u User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Username:  u.Username,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		IsOnline:  u.IsOnline,
	}
}

// Chat is a conversation between two users, or a named group.
// Membership is fixed at creation time.
type Chat struct {
	ID        ChatID   `json:"id"`
	Name      string   `json:"name,omitempty"`
	IsGroup   bool     `json:"isGroup"`
	MemberIDs []UserID `json:"memberIds"`
}

// Message is an immutable chat entry, except for the one-way IsRead
// transition. Seq is the per-chat sequence assigned at append time and
// defines the delivery order inside a chat; SentAt is informational.
type Message struct {
	ID       MessageID `json:"id"`
	ChatID   ChatID    `json:"chatId"`
	SenderID UserID    `json:"senderId"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sentAt"`
	Seq      uint64    `json:"seq"`
	IsRead   bool      `json:"isRead"`
}
