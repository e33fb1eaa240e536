// Package hub is the real-time core: connection registry, presence
// tracker, broadcaster, and the protocol handler that orchestrates them in
// response to connect, disconnect, join, send and mark-read operations.
package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"quick-chat/contract"
	"quick-chat/domain/chat"
	"quick-chat/domain/event"
	"quick-chat/errors"
	"quick-chat/repositories"
)

// Hub validates membership, mutates the store, and fans results out to the
// right set of live connections. It is invoked explicitly by the transport
// layer with the connection's identity; there is no ambient identity and no
// framework-managed dispatch.
//
// Authorization and not-found failures come back as typed errors. The
// websocket transport swallows them (the wire protocol has no denial
// frame); the HTTP API maps them to status codes. Persistence failures are
// returned too, and nothing is broadcast for them.
type Hub struct {
	log         *slog.Logger
	registry    contract.IRegistry
	broadcaster contract.IBroadcaster
	presence    *PresenceTracker
	chats       repositories.IChatRepository
	messages    repositories.IMessageRepository
	users       repositories.IUserRepository

	// One lock per chat: append and broadcast run as a unit, so
	// subscribers observe nondecreasing sequence order even under
	// concurrent senders.
	mu        sync.Mutex
	chatLocks map[chat.ChatID]*sync.Mutex
}

func NewHub(log *slog.Logger, registry contract.IRegistry, broadcaster contract.IBroadcaster,
	presence *PresenceTracker, chats repositories.IChatRepository,
	messages repositories.IMessageRepository, users repositories.IUserRepository) *Hub {
	return &Hub{
		log:         log,
		registry:    registry,
		broadcaster: broadcaster,
		presence:    presence,
		chats:       chats,
		messages:    messages,
		users:       users,
		chatLocks:   make(map[chat.ChatID]*sync.Mutex),
	}
}

// Connect registers an authenticated connection and lets the presence
// tracker decide whether an online transition must be announced.
func (h *Hub) Connect(ctx context.Context, connID chat.ConnectionID,
	userID chat.UserID, sink contract.EventSink) error {
	return h.presence.ConnectionOpened(ctx, connID, userID, sink)
}

// Disconnect is the terminal state of a connection and the only
// cancellation signal the hub recognizes.
func (h *Hub) Disconnect(ctx context.Context, connID chat.ConnectionID) error {
	return h.presence.ConnectionClosed(ctx, connID)
}

// JoinChat subscribes the connection to the chat's broadcast group after
// checking membership.
func (h *Hub) JoinChat(ctx context.Context, connID chat.ConnectionID, cmd chat.JoinChatCommand) error {
	member, err := h.chats.IsMember(cmd.UserID, cmd.ChatID)
	if err != nil {
		return err
	}
	if !member {
		return errors.ErrNotAMember
	}
	h.registry.Join(connID, cmd.ChatID)
	return nil
}

// SendMessage appends the message and broadcasts it to the chat group,
// including the sender's own other connections so multi-device sessions
// stay in sync. Append and broadcast run under the chat's lock.
func (h *Hub) SendMessage(ctx context.Context, cmd chat.SendMessageCommand) (chat.Message, error) {
	member, err := h.chats.IsMember(cmd.UserID, cmd.ChatID)
	if err != nil {
		return chat.Message{}, err
	}
	if !member {
		return chat.Message{}, errors.ErrNotAMember
	}

	sender, err := h.users.ProfileOf(cmd.UserID)
	if err != nil {
		return chat.Message{}, err
	}

	lock := h.chatLock(cmd.ChatID)
	lock.Lock()
	defer lock.Unlock()

	message, err := h.messages.Append(cmd.ChatID, cmd.UserID, cmd.Text, time.Now().UTC())
	if err != nil {
		return chat.Message{}, err
	}

	h.broadcaster.ToChat(ctx, cmd.ChatID, event.MessageReceived{
		Message: message,
		Sender:  sender,
	})
	return message, nil
}

// MarkAsRead idempotently flips the read flag and announces the receipt to
// the chat group. A sender cannot mark its own message; an already-read
// message changes nothing and is not re-announced.
func (h *Hub) MarkAsRead(ctx context.Context, cmd chat.MarkAsReadCommand) error {
	message, err := h.messages.ByID(cmd.MessageID)
	if err != nil {
		return err
	}
	if message.SenderID == cmd.UserID {
		return errors.ErrOwnMessageRead
	}

	member, err := h.chats.IsMember(cmd.UserID, message.ChatID)
	if err != nil {
		return err
	}
	if !member {
		return errors.ErrNotAMember
	}

	message, changed, err := h.messages.MarkRead(cmd.MessageID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	h.broadcaster.ToChat(ctx, message.ChatID, event.MessageRead{
		MessageID: message.ID,
		ChatID:    message.ChatID,
	})
	return nil
}

// History returns a member-only page of the chat, oldest first.
func (h *Hub) History(ctx context.Context, query chat.HistoryQuery) ([]chat.Message, *string, error) {
	member, err := h.chats.IsMember(query.UserID, query.ChatID)
	if err != nil {
		return nil, nil, err
	}
	if !member {
		return nil, nil, errors.ErrNotAMember
	}

	messages, cursor, err := h.messages.History(query.ChatID, query.Cursor, query.Limit)
	if err != nil {
		return nil, nil, err
	}

	// The store pages newest first; readers want chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, cursor, nil
}

func (h *Hub) chatLock(chatID chat.ChatID) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	lock, ok := h.chatLocks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		h.chatLocks[chatID] = lock
	}
	return lock
}
