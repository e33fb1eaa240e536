package auth

import (
	"context"
	"net/http"
	"strings"

	"quick-chat/domain/chat"
	"quick-chat/errors"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Middleware validates the session token on protected routes and injects
// the resolved user id into the request context. The websocket handshake
// may carry the token as an "access_token" query parameter since browsers
// cannot set headers on an upgrade request.
func (m *TokenManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerToken(r)
		if tokenStr == "" {
			tokenStr = r.URL.Query().Get("access_token")
		}
		if tokenStr == "" {
			http.Error(w, errors.ErrUnauthenticated.Error(), http.StatusUnauthorized)
			return
		}

		userID, _, err := m.Validate(tokenStr)
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

func WithUserID(ctx context.Context, userID chat.UserID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserFromContext returns the identity attached by the middleware.
func UserFromContext(ctx context.Context) (chat.UserID, bool) {
	id, ok := ctx.Value(userIDKey).(chat.UserID)
	return id, ok
}
