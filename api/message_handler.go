package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"quick-chat/auth"
	"quick-chat/domain/chat"
	"quick-chat/errors"
	"quick-chat/hub"
	"quick-chat/repositories"
	"quick-chat/services"
)

// MessageHandler serves history over HTTP and accepts sends from clients
// without a live websocket. Sends go through the hub so connected members
// still receive the broadcast.
type MessageHandler struct {
	log      *slog.Logger
	hub      *hub.Hub
	users    repositories.IUserRepository
	pageSize int
}

type historyResponse struct {
	Messages []services.MessageView `json:"messages"`
	Cursor   *string                `json:"cursor,omitempty"`
}

func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.log, errors.ErrUnauthenticated)
		return
	}

	chatID, err := strconv.ParseInt(r.URL.Query().Get("chatId"), 10, 64)
	if err != nil {
		http.Error(w, "invalid chatId", http.StatusBadRequest)
		return
	}

	query := chat.HistoryQuery{
		UserID: userID,
		ChatID: chat.ChatID(chatID),
		Limit:  h.pageSize,
	}
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		query.Cursor = &cursor
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		query.Limit = limit
	}

	messages, cursor, err := h.hub.History(r.Context(), query)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	views := make([]services.MessageView, 0, len(messages))
	for _, message := range messages {
		sender, err := h.users.ProfileOf(message.SenderID)
		if err != nil {
			writeError(w, h.log, err)
			return
		}
		views = append(views, services.MessageView{
			ID:     message.ID,
			ChatID: message.ChatID,
			Sender: sender,
			Text:   message.Text,
			SentAt: message.SentAt,
			IsRead: message.IsRead,
		})
	}
	writeJSON(w, http.StatusOK, historyResponse{Messages: views, Cursor: cursor})
}

type sendBody struct {
	ChatID chat.ChatID `json:"chatId"`
	Text   string      `json:"text"`
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.log, errors.ErrUnauthenticated)
		return
	}

	var body sendBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	message, err := h.hub.SendMessage(r.Context(), chat.SendMessageCommand{
		UserID: userID,
		ChatID: body.ChatID,
		Text:   body.Text,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, message)
}
