package api

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"quick-chat/auth"
	"quick-chat/domain/chat"
	"quick-chat/domain/event"
	"quick-chat/errors"
	"quick-chat/mocks"
	"quick-chat/services"
)

func authenticated(r *http.Request, userID chat.UserID) *http.Request {
	return r.WithContext(auth.WithUserID(r.Context(), userID))
}

func TestChatHandler_List(t *testing.T) {
	t.Run("returns caller's chats", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		service := mocks.NewMockIChatService(ctrl)
		handler := &ChatHandler{log: slog.Default(), service: service}

		service.EXPECT().ListChats(chat.UserID(1)).Return([]services.ChatSummary{{ID: 7}}, nil)

		request := authenticated(httptest.NewRequest(http.MethodGet, "/api/chats", nil), 1)
		recorder := httptest.NewRecorder()
		handler.List(recorder, request)

		req.Equal(http.StatusOK, recorder.Code)
		req.Contains(recorder.Body.String(), `"id":7`)
	})

	t.Run("rejects unauthenticated request", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		service := mocks.NewMockIChatService(ctrl)
		handler := &ChatHandler{log: slog.Default(), service: service}

		request := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
		recorder := httptest.NewRecorder()
		handler.List(recorder, request)

		req.Equal(http.StatusUnauthorized, recorder.Code)
	})
}

func TestChatHandler_Create(t *testing.T) {
	t.Run("accepts a bare participant array", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		service := mocks.NewMockIChatService(ctrl)
		handler := &ChatHandler{log: slog.Default(), service: service}

		service.EXPECT().
			CreateChat(chat.UserID(1), []chat.UserID{2, 3}).
			Return(services.ChatSummary{ID: 9, IsGroup: true}, nil)

		request := authenticated(httptest.NewRequest(http.MethodPost, "/api/chats", strings.NewReader("[2,3]")), 1)
		recorder := httptest.NewRecorder()
		handler.Create(recorder, request)

		req.Equal(http.StatusCreated, recorder.Code)
		req.Contains(recorder.Body.String(), `"id":9`)
	})

	t.Run("announces the new chat to its participants", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		service := mocks.NewMockIChatService(ctrl)
		events := mocks.NewMockIBroadcaster(ctrl)
		handler := &ChatHandler{log: slog.Default(), service: service, events: events}

		summary := services.ChatSummary{
			ID:           9,
			IsGroup:      true,
			Participants: []chat.Profile{{ID: 1}, {ID: 2}, {ID: 3}},
		}
		service.EXPECT().CreateChat(chat.UserID(1), []chat.UserID{2, 3}).Return(summary, nil)
		for _, id := range []chat.UserID{1, 2, 3} {
			events.EXPECT().ToUser(gomock.Any(), id, event.ChatCreated{ChatID: 9, IsGroup: true})
		}

		request := authenticated(httptest.NewRequest(http.MethodPost, "/api/chats", strings.NewReader("[2,3]")), 1)
		recorder := httptest.NewRecorder()
		handler.Create(recorder, request)

		req.Equal(http.StatusCreated, recorder.Code)
	})

	t.Run("maps too few participants to bad request", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		service := mocks.NewMockIChatService(ctrl)
		handler := &ChatHandler{log: slog.Default(), service: service}

		service.EXPECT().
			CreateChat(gomock.Any(), gomock.Any()).
			Return(services.ChatSummary{}, errors.ErrTooFewParticipants)

		request := authenticated(httptest.NewRequest(http.MethodPost, "/api/chats", strings.NewReader("[]")), 1)
		recorder := httptest.NewRecorder()
		handler.Create(recorder, request)

		req.Equal(http.StatusBadRequest, recorder.Code)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		service := mocks.NewMockIChatService(ctrl)
		handler := &ChatHandler{log: slog.Default(), service: service}

		request := authenticated(httptest.NewRequest(http.MethodPost, "/api/chats", strings.NewReader(`{"nope":1}`)), 1)
		recorder := httptest.NewRecorder()
		handler.Create(recorder, request)

		req.Equal(http.StatusBadRequest, recorder.Code)
	})
}

func TestUserHandler_Search(t *testing.T) {
	t.Run("passes term and limit through", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		directory := mocks.NewMockIDirectoryService(ctrl)
		handler := &UserHandler{log: slog.Default(), directory: directory}

		directory.EXPECT().
			Search(gomock.Any(), chat.UserID(1), "bob", 5).
			Return([]chat.Profile{{ID: 2, Username: "bob"}}, nil)

		request := authenticated(httptest.NewRequest(http.MethodGet, "/api/users?search=bob&limit=5", nil), 1)
		recorder := httptest.NewRecorder()
		handler.Search(recorder, request)

		req.Equal(http.StatusOK, recorder.Code)
		req.Contains(recorder.Body.String(), `"bob"`)
	})

	t.Run("rejects invalid limit", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		directory := mocks.NewMockIDirectoryService(ctrl)
		handler := &UserHandler{log: slog.Default(), directory: directory}

		request := authenticated(httptest.NewRequest(http.MethodGet, "/api/users?limit=zero", nil), 1)
		recorder := httptest.NewRecorder()
		handler.Search(recorder, request)

		req.Equal(http.StatusBadRequest, recorder.Code)
	})
}
