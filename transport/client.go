package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"quick-chat/contract"
	"quick-chat/domain/chat"
	"quick-chat/domain/event"
	"quick-chat/hub"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// clientFrame is one client → server call. Unknown actions are ignored.
type clientFrame struct {
	Action    string         `json:"action"`
	ChatID    chat.ChatID    `json:"chatId,omitempty"`
	MessageID chat.MessageID `json:"messageId,omitempty"`
	Text      string         `json:"text,omitempty"`
}

// serverFrame is one server → client event envelope.
type serverFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// errorEvent reports an infrastructure failure back to the calling
// connection. Authorization failures never produce one: the wire protocol
// stays silent on denial.
type errorEvent struct {
	Reason string `json:"reason"`
}

func (errorEvent) Name() string { return "Error" }

// Client owns one websocket connection: the read pump turns frames into
// hub calls, the write pump drains the connection's sink. The identity was
// resolved at upgrade time and never changes.
type Client struct {
	log    *slog.Logger
	conn   *websocket.Conn
	hub    *hub.Hub
	events contract.IBroadcaster
	sink   *hub.ChannelSink
	connID chat.ConnectionID
	userID chat.UserID
}

func NewClient(log *slog.Logger, conn *websocket.Conn, h *hub.Hub, events contract.IBroadcaster,
	sink *hub.ChannelSink, connID chat.ConnectionID, userID chat.UserID) *Client {
	conn.SetReadLimit(maxMessageSize)
	return &Client{
		log:    log,
		conn:   conn,
		hub:    h,
		events: events,
		sink:   sink,
		connID: connID,
		userID: userID,
	}
}

// Run services the connection until it closes, then funnels the disconnect
// into the hub. Disconnection is the only cancellation signal.
func (c *Client) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)

	if err := c.hub.Disconnect(ctx, c.connID); err != nil {
		c.log.Error("Disconnect handling failed",
			"conn_id", c.connID,
			"user_id", c.userID,
			"error", err)
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer func() { _ = c.conn.Close() }()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.log.Warn("Unexpected websocket close",
					"conn_id", c.connID,
					"error", err)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			c.log.Debug("Dropping malformed frame", "conn_id", c.connID, "error", err)
			continue
		}
		c.dispatch(ctx, frame)
	}
}

// dispatch maps a frame onto the hub protocol. Validation failures are
// recovered locally (no-op, no event emitted); infrastructure failures are
// pushed back to this connection as an Error event.
func (c *Client) dispatch(ctx context.Context, frame clientFrame) {
	var err error
	switch frame.Action {
	case "joinChat":
		err = c.hub.JoinChat(ctx, c.connID, chat.JoinChatCommand{
			UserID: c.userID,
			ChatID: frame.ChatID,
		})
	case "sendMessage":
		_, err = c.hub.SendMessage(ctx, chat.SendMessageCommand{
			UserID: c.userID,
			ChatID: frame.ChatID,
			Text:   frame.Text,
		})
	case "markAsRead":
		err = c.hub.MarkAsRead(ctx, chat.MarkAsReadCommand{
			UserID:    c.userID,
			MessageID: frame.MessageID,
		})
	default:
		c.log.Debug("Unknown action", "action", frame.Action, "conn_id", c.connID)
		return
	}

	if err == nil {
		return
	}
	if isValidationError(err) {
		c.log.Debug("Operation denied",
			"action", frame.Action,
			"conn_id", c.connID,
			"user_id", c.userID,
			"error", err)
		return
	}

	c.log.Error("Operation failed",
		"action", frame.Action,
		"conn_id", c.connID,
		"error", err)
	c.events.ToConn(ctx, c.connID, errorEvent{Reason: fmt.Sprintf("%s failed", frame.Action)})
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-c.sink.Events:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(envelope(evt)); err != nil {
				c.log.Debug("Write failed, dropping connection",
					"conn_id", c.connID,
					"error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// envelope shapes a domain event the way the original wire protocol does:
// ReceiveMessage carries the full message with its sender embedded,
// MessageRead carries just the message id.
func envelope(e event.DomainEvent) serverFrame {
	switch evt := e.(type) {
	case event.MessageReceived:
		return serverFrame{Event: evt.Name(), Data: messagePayload(evt)}
	case event.MessageRead:
		return serverFrame{Event: evt.Name(), Data: evt.MessageID}
	case event.UserStatusChanged:
		return serverFrame{Event: evt.Name(), Data: evt.User}
	default:
		return serverFrame{Event: e.Name(), Data: e}
	}
}

type messageDTO struct {
	ID     chat.MessageID `json:"id"`
	ChatID chat.ChatID    `json:"chatId"`
	Sender chat.Profile   `json:"sender"`
	Text   string         `json:"text"`
	SentAt time.Time      `json:"sentAt"`
	IsRead bool           `json:"isRead"`
}

func messagePayload(evt event.MessageReceived) messageDTO {
	return messageDTO{
		ID:     evt.Message.ID,
		ChatID: evt.Message.ChatID,
		Sender: evt.Sender,
		Text:   evt.Message.Text,
		SentAt: evt.Message.SentAt,
		IsRead: evt.Message.IsRead,
	}
}
