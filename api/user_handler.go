package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"quick-chat/auth"
	"quick-chat/errors"
	"quick-chat/services"
)

const defaultSearchLimit = 25

type UserHandler struct {
	log       *slog.Logger
	directory services.IDirectoryService
}

func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.log, errors.ErrUnauthenticated)
		return
	}

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	profiles, err := h.directory.Search(r.Context(), userID, r.URL.Query().Get("search"), limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}
