// Package api exposes the REST surface around the hub: authentication,
// chat listing and creation, message history, and the user directory.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"quick-chat/auth"
	"quick-chat/contract"
	"quick-chat/errors"
	"quick-chat/hub"
	"quick-chat/repositories"
	"quick-chat/services"
	"quick-chat/transport"
)

// NewRouter wires every HTTP route. Auth endpoints are public; everything
// else sits behind the token middleware, including the websocket upgrade.
func NewRouter(log *slog.Logger, tokens *auth.TokenManager,
	authService services.IAuthService, chatService services.IChatService,
	directory services.IDirectoryService, h *hub.Hub, events contract.IBroadcaster,
	users repositories.IUserRepository, ws *transport.Handler,
	historyPageSize int) *mux.Router {

	router := mux.NewRouter()

	authHandler := &AuthHandler{log: log, service: authService}
	router.HandleFunc("/api/auth/register", authHandler.Register).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", authHandler.Login).Methods(http.MethodPost)

	protected := router.NewRoute().Subrouter()
	protected.Use(tokens.Middleware)

	chatHandler := &ChatHandler{log: log, service: chatService, events: events}
	protected.HandleFunc("/api/chats", chatHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/api/chats", chatHandler.Create).Methods(http.MethodPost)

	messageHandler := &MessageHandler{log: log, hub: h, users: users, pageSize: historyPageSize}
	protected.HandleFunc("/api/messages", messageHandler.History).Methods(http.MethodGet)
	protected.HandleFunc("/api/messages", messageHandler.Send).Methods(http.MethodPost)

	userHandler := &UserHandler{log: log, directory: directory}
	protected.HandleFunc("/api/users", userHandler.Search).Methods(http.MethodGet)

	protected.Handle("/ws", ws)

	return router
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := errors.MapToHTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Error("Request failed", "error", err)
		// Do not leak storage internals to the client.
		http.Error(w, "internal error", status)
		return
	}
	http.Error(w, err.Error(), status)
}
