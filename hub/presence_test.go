package hub

import (
	"context"
	stderrors "errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"quick-chat/domain/chat"
	"quick-chat/domain/event"
	"quick-chat/mocks"
)

var errStoreDown = stderrors.New("store unavailable")

func newPresenceFixture(t *testing.T) (*PresenceTracker, *Registry, *mocks.MockIUserRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	users := mocks.NewMockIUserRepository(ctrl)
	registry := NewRegistry()
	broadcaster := NewBroadcaster(slog.Default(), registry, time.Second)
	return NewPresenceTracker(slog.Default(), registry, users, broadcaster), registry, users
}

func Test_First_Connection_Announces_Online(t *testing.T) {
	req := require.New(t)
	tracker, registry, users := newPresenceFixture(t)
	ctx := context.Background()

	// An observer connection that should receive the announcement. Its own
	// transition reaches nobody: no other connection exists yet.
	observer := NewChannelSink(4)
	users.EXPECT().SetPresence(chat.UserID(2), true, gomock.Any()).Return(nil)
	users.EXPECT().ProfileOf(chat.UserID(2)).Return(chat.Profile{ID: 2, Username: "bob"}, nil)
	req.NoError(tracker.ConnectionOpened(ctx, "observer", 2, observer))
	req.Empty(observer.Events)
	_ = registry

	users.EXPECT().SetPresence(chat.UserID(1), true, gomock.Any()).Return(nil)
	users.EXPECT().ProfileOf(chat.UserID(1)).Return(chat.Profile{ID: 1, Username: "alice", IsOnline: true}, nil)
	req.NoError(tracker.ConnectionOpened(ctx, "alice-1", 1, NewChannelSink(4)))

	evt := <-observer.Events
	status, ok := evt.(event.UserStatusChanged)
	req.True(ok)
	req.Equal(chat.UserID(1), status.User.ID)
}

func Test_Second_Device_Does_Not_Reannounce(t *testing.T) {
	req := require.New(t)
	tracker, _, users := newPresenceFixture(t)
	ctx := context.Background()

	users.EXPECT().SetPresence(chat.UserID(1), true, gomock.Any()).Return(nil).Times(1)
	users.EXPECT().ProfileOf(chat.UserID(1)).Return(chat.Profile{ID: 1}, nil).Times(1)

	req.NoError(tracker.ConnectionOpened(ctx, "alice-1", 1, NewChannelSink(4)))
	// Second device: no SetPresence, no announcement.
	req.NoError(tracker.ConnectionOpened(ctx, "alice-2", 1, NewChannelSink(4)))
}

func Test_Offline_Only_After_Last_Connection(t *testing.T) {
	req := require.New(t)
	tracker, _, users := newPresenceFixture(t)
	ctx := context.Background()

	users.EXPECT().SetPresence(chat.UserID(1), true, gomock.Any()).Return(nil).Times(1)
	users.EXPECT().ProfileOf(chat.UserID(1)).Return(chat.Profile{ID: 1}, nil).Times(1)
	req.NoError(tracker.ConnectionOpened(ctx, "alice-1", 1, NewChannelSink(4)))
	req.NoError(tracker.ConnectionOpened(ctx, "alice-2", 1, NewChannelSink(4)))

	// First close: one device left, still online.
	req.NoError(tracker.ConnectionClosed(ctx, "alice-1"))

	// Last close: offline transition persists and announces.
	users.EXPECT().SetPresence(chat.UserID(1), false, gomock.Any()).Return(nil).Times(1)
	users.EXPECT().ProfileOf(chat.UserID(1)).Return(chat.Profile{ID: 1}, nil).Times(1)
	req.NoError(tracker.ConnectionClosed(ctx, "alice-2"))
}

func Test_Failed_Online_Persist_Rolls_Back_Registration(t *testing.T) {
	req := require.New(t)
	tracker, registry, users := newPresenceFixture(t)
	ctx := context.Background()

	observer := NewChannelSink(4)
	users.EXPECT().SetPresence(chat.UserID(2), true, gomock.Any()).Return(nil)
	users.EXPECT().ProfileOf(chat.UserID(2)).Return(chat.Profile{ID: 2}, nil)
	req.NoError(tracker.ConnectionOpened(ctx, "observer", 2, observer))

	// The store is down when the user first connects: the registration must
	// not survive, or the next connection would pass as a second device.
	users.EXPECT().SetPresence(chat.UserID(1), true, gomock.Any()).Return(errStoreDown)
	req.Error(tracker.ConnectionOpened(ctx, "alice-1", 1, NewChannelSink(4)))
	req.Empty(registry.ConnectionsOf(1))
	req.Empty(observer.Events)

	// After recovery the reconnect is a genuine zero-to-one crossing again:
	// it persists and announces.
	users.EXPECT().SetPresence(chat.UserID(1), true, gomock.Any()).Return(nil)
	users.EXPECT().ProfileOf(chat.UserID(1)).Return(chat.Profile{ID: 1, IsOnline: true}, nil)
	req.NoError(tracker.ConnectionOpened(ctx, "alice-2", 1, NewChannelSink(4)))

	status := (<-observer.Events).(event.UserStatusChanged)
	req.Equal(chat.UserID(1), status.User.ID)
	req.True(status.User.IsOnline)
}

func Test_Failed_Offline_Persist_Still_Announces(t *testing.T) {
	req := require.New(t)
	tracker, registry, users := newPresenceFixture(t)
	ctx := context.Background()

	observer := NewChannelSink(4)
	users.EXPECT().SetPresence(chat.UserID(2), true, gomock.Any()).Return(nil)
	users.EXPECT().ProfileOf(chat.UserID(2)).Return(chat.Profile{ID: 2}, nil)
	req.NoError(tracker.ConnectionOpened(ctx, "observer", 2, observer))

	users.EXPECT().SetPresence(chat.UserID(1), true, gomock.Any()).Return(nil)
	users.EXPECT().ProfileOf(chat.UserID(1)).Return(chat.Profile{ID: 1}, nil)
	req.NoError(tracker.ConnectionOpened(ctx, "alice-1", 1, NewChannelSink(4)))
	<-observer.Events

	// The write fails but the user really is gone: the offline transition
	// reaches observers anyway, and the error surfaces to the caller.
	users.EXPECT().SetPresence(chat.UserID(1), false, gomock.Any()).Return(errStoreDown)
	users.EXPECT().ProfileOf(chat.UserID(1)).Return(chat.Profile{ID: 1}, nil)
	req.Error(tracker.ConnectionClosed(ctx, "alice-1"))

	status := (<-observer.Events).(event.UserStatusChanged)
	req.Equal(chat.UserID(1), status.User.ID)
	req.Empty(registry.ConnectionsOf(1))
}

func Test_Closing_Unknown_Connection_Is_Noop(t *testing.T) {
	req := require.New(t)
	tracker, _, _ := newPresenceFixture(t)

	req.NoError(tracker.ConnectionClosed(context.Background(), "ghost"))
}
