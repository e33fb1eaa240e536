package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quick-chat/domain/chat"
)

func Test_Middleware_Resolves_Bearer_Header(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("test-secret", time.Hour)
	token, err := manager.Generate(42, "alice")
	req.NoError(err)

	var resolved chat.UserID
	handler := manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved, _ = UserFromContext(r.Context())
	}))

	request := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	request.Header.Set("Authorization", "Bearer "+token)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	req.Equal(http.StatusOK, recorder.Code)
	req.Equal(chat.UserID(42), resolved)
}

func Test_Middleware_Resolves_Query_Param(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("test-secret", time.Hour)
	token, err := manager.Generate(42, "alice")
	req.NoError(err)

	var resolved chat.UserID
	handler := manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved, _ = UserFromContext(r.Context())
	}))

	request := httptest.NewRequest(http.MethodGet, "/ws?access_token="+token, nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	req.Equal(http.StatusOK, recorder.Code)
	req.Equal(chat.UserID(42), resolved)
}

func Test_Middleware_Rejects_Missing_Token(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("test-secret", time.Hour)

	handler := manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a token")
	}))

	request := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	req.Equal(http.StatusUnauthorized, recorder.Code)
}

func Test_Middleware_Rejects_Tampered_Token(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("test-secret", time.Hour)
	token, err := manager.Generate(42, "alice")
	req.NoError(err)

	handler := manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with a bad token")
	}))

	request := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	request.Header.Set("Authorization", "Bearer "+token+"x")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	req.Equal(http.StatusUnauthorized, recorder.Code)
}
