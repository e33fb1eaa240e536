package hub

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"quick-chat/domain/chat"
	"quick-chat/domain/event"
	"quick-chat/errors"
	"quick-chat/mocks"
)

type hubFixture struct {
	hub      *Hub
	registry *Registry
	chats    *mocks.MockIChatRepository
	messages *mocks.MockIMessageRepository
	users    *mocks.MockIUserRepository
}

func newHubFixture(t *testing.T) hubFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	chats := mocks.NewMockIChatRepository(ctrl)
	messages := mocks.NewMockIMessageRepository(ctrl)
	users := mocks.NewMockIUserRepository(ctrl)

	registry := NewRegistry()
	broadcaster := NewBroadcaster(slog.Default(), registry, time.Second)
	presence := NewPresenceTracker(slog.Default(), registry, users, broadcaster)
	h := NewHub(slog.Default(), registry, broadcaster, presence, chats, messages, users)
	return hubFixture{hub: h, registry: registry, chats: chats, messages: messages, users: users}
}

// connect wires a connection straight into the registry, skipping the
// presence side effects that are covered by the presence tests.
func (f hubFixture) connect(connID chat.ConnectionID, userID chat.UserID, buffer int) *ChannelSink {
	sink := NewChannelSink(buffer)
	f.registry.Register(connID, userID, sink)
	return sink
}

func Test_JoinChat_Requires_Membership(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	ctx := context.Background()

	f.connect("conn-1", 1, 4)
	f.chats.EXPECT().IsMember(chat.UserID(1), chat.ChatID(7)).Return(false, nil)

	err := f.hub.JoinChat(ctx, "conn-1", chat.JoinChatCommand{UserID: 1, ChatID: 7})
	req.ErrorIs(err, errors.ErrNotAMember)
	req.Empty(f.registry.SinksForChat(7))
}

func Test_JoinChat_Subscribes_Member(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	ctx := context.Background()

	f.connect("conn-1", 1, 4)
	f.chats.EXPECT().IsMember(chat.UserID(1), chat.ChatID(7)).Return(true, nil)

	req.NoError(f.hub.JoinChat(ctx, "conn-1", chat.JoinChatCommand{UserID: 1, ChatID: 7}))
	req.Len(f.registry.SinksForChat(7), 1)
}

func Test_SendMessage_Broadcasts_To_Joined_Members(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	ctx := context.Background()

	sender := f.connect("alice-1", 1, 4)
	receiver := f.connect("bob-1", 2, 4)
	outsider := f.connect("carol-1", 3, 4)
	f.registry.Join("alice-1", 7)
	f.registry.Join("bob-1", 7)

	f.chats.EXPECT().IsMember(chat.UserID(1), chat.ChatID(7)).Return(true, nil)
	f.users.EXPECT().ProfileOf(chat.UserID(1)).Return(chat.Profile{ID: 1, Username: "alice"}, nil)
	f.messages.EXPECT().
		Append(chat.ChatID(7), chat.UserID(1), "hello", gomock.Any()).
		Return(chat.Message{ID: 10, ChatID: 7, SenderID: 1, Text: "hello", Seq: 1}, nil)

	message, err := f.hub.SendMessage(ctx, chat.SendMessageCommand{UserID: 1, ChatID: 7, Text: "hello"})
	req.NoError(err)
	req.Equal(chat.MessageID(10), message.ID)

	// Both joined connections got the event, including the sender's own.
	for _, sink := range []*ChannelSink{sender, receiver} {
		evt := <-sink.Events
		received, ok := evt.(event.MessageReceived)
		req.True(ok)
		req.Equal("hello", received.Message.Text)
		req.Equal("alice", received.Sender.Username)
	}
	req.Empty(outsider.Events)
}

func Test_SendMessage_Denied_For_Non_Member(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)

	f.chats.EXPECT().IsMember(chat.UserID(3), chat.ChatID(7)).Return(false, nil)

	_, err := f.hub.SendMessage(context.Background(), chat.SendMessageCommand{UserID: 3, ChatID: 7, Text: "hi"})
	req.ErrorIs(err, errors.ErrNotAMember)
}

func Test_SendMessage_Concurrent_Senders_Deliver_In_Seq_Order(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	ctx := context.Background()

	receiver := f.connect("bob-1", 2, 256)
	f.registry.Join("bob-1", 7)

	f.chats.EXPECT().IsMember(gomock.Any(), chat.ChatID(7)).Return(true, nil).AnyTimes()
	f.users.EXPECT().ProfileOf(gomock.Any()).Return(chat.Profile{}, nil).AnyTimes()

	var mu sync.Mutex
	var seq uint64
	f.messages.EXPECT().
		Append(chat.ChatID(7), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(chatID chat.ChatID, senderID chat.UserID, text string, at time.Time) (chat.Message, error) {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return chat.Message{ID: chat.MessageID(seq), ChatID: chatID, SenderID: senderID, Text: text, Seq: seq}, nil
		}).
		AnyTimes()

	const senders = 8
	const perSender = 10
	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(userID chat.UserID) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_, err := f.hub.SendMessage(ctx, chat.SendMessageCommand{UserID: userID, ChatID: 7, Text: "x"})
				req.NoError(err)
			}
		}(chat.UserID(s + 1))
	}
	wg.Wait()

	// The receiver observes strictly increasing sequence numbers: append
	// and broadcast ran as a unit under the chat lock.
	var previous uint64
	for i := 0; i < senders*perSender; i++ {
		evt := <-receiver.Events
		received := evt.(event.MessageReceived)
		req.Greater(received.Message.Seq, previous)
		previous = received.Message.Seq
	}
}

func Test_MarkAsRead_Announces_Receipt(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	ctx := context.Background()

	sender := f.connect("alice-1", 1, 4)
	f.registry.Join("alice-1", 7)

	stored := chat.Message{ID: 10, ChatID: 7, SenderID: 1, Text: "hello"}
	f.messages.EXPECT().ByID(chat.MessageID(10)).Return(stored, nil)
	f.chats.EXPECT().IsMember(chat.UserID(2), chat.ChatID(7)).Return(true, nil)
	read := stored
	read.IsRead = true
	f.messages.EXPECT().MarkRead(chat.MessageID(10)).Return(read, true, nil)

	req.NoError(f.hub.MarkAsRead(ctx, chat.MarkAsReadCommand{UserID: 2, MessageID: 10}))

	evt := <-sender.Events
	receipt, ok := evt.(event.MessageRead)
	req.True(ok)
	req.Equal(chat.MessageID(10), receipt.MessageID)
}

func Test_MarkAsRead_Rejects_Own_Message(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)

	f.messages.EXPECT().ByID(chat.MessageID(10)).
		Return(chat.Message{ID: 10, ChatID: 7, SenderID: 1}, nil)

	err := f.hub.MarkAsRead(context.Background(), chat.MarkAsReadCommand{UserID: 1, MessageID: 10})
	req.ErrorIs(err, errors.ErrOwnMessageRead)
}

func Test_MarkAsRead_Already_Read_Is_Silent(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)

	sender := f.connect("alice-1", 1, 4)
	f.registry.Join("alice-1", 7)

	stored := chat.Message{ID: 10, ChatID: 7, SenderID: 1, IsRead: true}
	f.messages.EXPECT().ByID(chat.MessageID(10)).Return(stored, nil)
	f.chats.EXPECT().IsMember(chat.UserID(2), chat.ChatID(7)).Return(true, nil)
	f.messages.EXPECT().MarkRead(chat.MessageID(10)).Return(stored, false, nil)

	req.NoError(f.hub.MarkAsRead(context.Background(), chat.MarkAsReadCommand{UserID: 2, MessageID: 10}))
	req.Empty(sender.Events)
}

func Test_MarkAsRead_Unknown_Message(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)

	f.messages.EXPECT().ByID(chat.MessageID(99)).
		Return(chat.Message{}, errors.ErrMessageNotFound)

	err := f.hub.MarkAsRead(context.Background(), chat.MarkAsReadCommand{UserID: 2, MessageID: 99})
	req.ErrorIs(err, errors.ErrMessageNotFound)
}

func Test_History_Returns_Chronological_Order(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)

	f.chats.EXPECT().IsMember(chat.UserID(1), chat.ChatID(7)).Return(true, nil)
	newestFirst := []chat.Message{
		{ID: 3, ChatID: 7, Seq: 3},
		{ID: 2, ChatID: 7, Seq: 2},
		{ID: 1, ChatID: 7, Seq: 1},
	}
	cursor := "000000000001"
	f.messages.EXPECT().History(chat.ChatID(7), gomock.Nil(), 20).Return(newestFirst, &cursor, nil)

	messages, next, err := f.hub.History(context.Background(), chat.HistoryQuery{UserID: 1, ChatID: 7, Limit: 20})
	req.NoError(err)
	req.Equal(&cursor, next)
	req.Equal(chat.MessageID(1), messages[0].ID)
	req.Equal(chat.MessageID(3), messages[2].ID)
}

func Test_History_Denied_For_Non_Member(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)

	f.chats.EXPECT().IsMember(chat.UserID(3), chat.ChatID(7)).Return(false, nil)

	_, _, err := f.hub.History(context.Background(), chat.HistoryQuery{UserID: 3, ChatID: 7, Limit: 20})
	req.ErrorIs(err, errors.ErrNotAMember)
}
