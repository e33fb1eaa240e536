package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"quick-chat/domain/chat"
	"quick-chat/services"
)

type AuthHandler struct {
	log     *slog.Logger
	service services.IAuthService
}

type credentialsBody struct {
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token services.Token `json:"token"`
	User  chat.Profile   `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	token, profile, err := h.service.Register(body.Username, body.Name, body.Password)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	h.log.Info("User registered", "user_id", profile.ID, "username", profile.Username)
	writeJSON(w, http.StatusCreated, sessionResponse{Token: token, User: profile})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	token, profile, err := h.service.Login(body.Username, body.Password)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{Token: token, User: profile})
}
