// Package transport exposes the hub over a websocket endpoint. It is the
// explicit layer that invokes the protocol handler: upgrade, resolve the
// already-authenticated identity from the request context, register, pump.
package transport

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"quick-chat/auth"
	"quick-chat/contract"
	"quick-chat/domain/chat"
	"quick-chat/errors"
	"quick-chat/hub"
)

type Handler struct {
	log        *slog.Logger
	hub        *hub.Hub
	events     contract.IBroadcaster
	bufferSize int
	upgrader   websocket.Upgrader
}

func NewHandler(log *slog.Logger, h *hub.Hub, events contract.IBroadcaster, bufferSize int) *Handler {
	return &Handler{
		log:        log,
		hub:        h,
		events:     events,
		bufferSize: bufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Cross-origin policy is enforced by the reverse proxy in
			// front of this service.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and services it until disconnect. An
// unauthenticated upgrade is refused outright: anonymous connections can
// issue no chat operations, so there is no point keeping them.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		http.Error(w, errors.ErrUnauthenticated.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "error", err)
		return
	}

	connID := chat.ConnectionID(uuid.NewString())
	sink := hub.NewChannelSink(h.bufferSize)

	// The connection outlives the upgrade request: it gets its own
	// context, the request's dies when ServeHTTP returns.
	ctx := auth.WithUserID(context.Background(), userID)

	if err := h.hub.Connect(ctx, connID, userID, sink); err != nil {
		h.log.Error("Connect handling failed",
			"conn_id", connID,
			"user_id", userID,
			"error", err)
		_ = conn.Close()
		return
	}

	h.log.Debug("Connection established", "conn_id", connID, "user_id", userID)
	client := NewClient(h.log, conn, h.hub, h.events, sink, connID, userID)
	go client.Run(ctx)
}

// isValidationError separates locally-recovered denials from
// infrastructure failures that must surface to the caller.
func isValidationError(err error) bool {
	return stderrors.Is(err, errors.ErrNotAMember) ||
		stderrors.Is(err, errors.ErrOwnMessageRead) ||
		stderrors.Is(err, errors.ErrMessageNotFound) ||
		stderrors.Is(err, errors.ErrChatNotFound) ||
		stderrors.Is(err, errors.ErrUnauthenticated)
}
