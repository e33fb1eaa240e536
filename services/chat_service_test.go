package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"quick-chat/domain/chat"
	"quick-chat/errors"
	"quick-chat/mocks"
	"quick-chat/services"
)

type chatServiceFixture struct {
	service  *services.ChatService
	chats    *mocks.MockIChatRepository
	messages *mocks.MockIMessageRepository
	users    *mocks.MockIUserRepository
}

func newChatServiceFixture(t *testing.T) chatServiceFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	chats := mocks.NewMockIChatRepository(ctrl)
	messages := mocks.NewMockIMessageRepository(ctrl)
	users := mocks.NewMockIUserRepository(ctrl)
	return chatServiceFixture{
		service:  services.NewChatService(chats, messages, users),
		chats:    chats,
		messages: messages,
		users:    users,
	}
}

func TestChatService_ListChats_Sorts_By_Activity(t *testing.T) {
	req := require.New(t)
	f := newChatServiceFixture(t)

	now := time.Now().UTC()
	quiet := chat.Chat{ID: 1, MemberIDs: []chat.UserID{1, 2}}
	busy := chat.Chat{ID: 2, MemberIDs: []chat.UserID{1, 3}}

	f.chats.EXPECT().ChatsOf(chat.UserID(1)).Return([]chat.Chat{quiet, busy}, nil)
	f.users.EXPECT().ProfileOf(gomock.Any()).Return(chat.Profile{}, nil).AnyTimes()
	f.messages.EXPECT().LastMessage(chat.ChatID(1)).
		Return(&chat.Message{ID: 5, ChatID: 1, SenderID: 2, Text: "old", SentAt: now.Add(-time.Hour)}, nil)
	f.messages.EXPECT().LastMessage(chat.ChatID(2)).
		Return(&chat.Message{ID: 9, ChatID: 2, SenderID: 3, Text: "fresh", SentAt: now}, nil)

	summaries, err := f.service.ListChats(1)
	req.NoError(err)
	req.Len(summaries, 2)
	req.Equal(chat.ChatID(2), summaries[0].ID)
	req.Equal(chat.ChatID(1), summaries[1].ID)
	req.Equal("fresh", summaries[0].LastMessage.Text)
}

func TestChatService_ListChats_Handles_Empty_Chats(t *testing.T) {
	req := require.New(t)
	f := newChatServiceFixture(t)

	record := chat.Chat{ID: 1, MemberIDs: []chat.UserID{1, 2}}
	f.chats.EXPECT().ChatsOf(chat.UserID(1)).Return([]chat.Chat{record}, nil)
	f.users.EXPECT().ProfileOf(gomock.Any()).Return(chat.Profile{}, nil).Times(2)
	f.messages.EXPECT().LastMessage(chat.ChatID(1)).Return(nil, nil)

	summaries, err := f.service.ListChats(1)
	req.NoError(err)
	req.Len(summaries, 1)
	req.Nil(summaries[0].LastMessage)
}

func TestChatService_CreateChat_Adds_Caller(t *testing.T) {
	req := require.New(t)
	f := newChatServiceFixture(t)

	record := chat.Chat{ID: 3, MemberIDs: []chat.UserID{1, 2}}
	f.chats.EXPECT().
		Create(gomock.InAnyOrder([]chat.UserID{1, 2})).
		Return(record, false, nil)
	f.users.EXPECT().ProfileOf(gomock.Any()).Return(chat.Profile{}, nil).Times(2)
	f.messages.EXPECT().LastMessage(chat.ChatID(3)).Return(nil, nil)

	summary, err := f.service.CreateChat(1, []chat.UserID{2})
	req.NoError(err)
	req.Equal(chat.ChatID(3), summary.ID)
	req.Len(summary.Participants, 2)
}

func TestChatService_CreateChat_Propagates_Too_Few_Participants(t *testing.T) {
	req := require.New(t)
	f := newChatServiceFixture(t)

	f.chats.EXPECT().
		Create(gomock.Any()).
		Return(chat.Chat{}, false, errors.ErrTooFewParticipants)

	_, err := f.service.CreateChat(1, nil)
	req.ErrorIs(err, errors.ErrTooFewParticipants)
}
