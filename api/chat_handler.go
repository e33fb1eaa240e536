package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"quick-chat/auth"
	"quick-chat/contract"
	"quick-chat/domain/chat"
	"quick-chat/domain/event"
	"quick-chat/errors"
	"quick-chat/services"
)

type ChatHandler struct {
	log     *slog.Logger
	service services.IChatService
	events  contract.IBroadcaster
}

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.log, errors.ErrUnauthenticated)
		return
	}

	summaries, err := h.service.ListChats(userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// Create accepts a bare array of participant ids; the caller is added
// implicitly.
func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.log, errors.ErrUnauthenticated)
		return
	}

	var participantIDs []chat.UserID
	if err := json.NewDecoder(r.Body).Decode(&participantIDs); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	summary, err := h.service.CreateChat(userID, participantIDs)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	h.log.Info("Chat created", "chat_id", summary.ID, "creator_id", userID)

	// Live participants learn about the chat right away; everyone else
	// picks it up from their next chat listing.
	for _, participant := range summary.Participants {
		h.events.ToUser(r.Context(), participant.ID, event.ChatCreated{
			ChatID:  summary.ID,
			IsGroup: summary.IsGroup,
		})
	}

	writeJSON(w, http.StatusCreated, summary)
}
