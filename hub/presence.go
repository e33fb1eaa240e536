package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"quick-chat/contract"
	"quick-chat/domain/chat"
	"quick-chat/domain/event"
	"quick-chat/repositories"
)

// PresenceTracker derives a user's online state from the live connection
// count and announces transitions. The guarantee: exactly one broadcast per
// crossing of the zero-connections boundary, never per individual open or
// close, so multi-device users do not spam status events.
type PresenceTracker struct {
	log         *slog.Logger
	registry    contract.IRegistry
	users       repositories.IUserRepository
	broadcaster contract.IBroadcaster

	// Serializes the register/persist/broadcast sequence against other
	// connect/disconnect events. Transitions are rare enough that a single
	// section beats per-user lock bookkeeping.
	mu sync.Mutex
}

func NewPresenceTracker(log *slog.Logger, registry contract.IRegistry,
	users repositories.IUserRepository, broadcaster contract.IBroadcaster) *PresenceTracker {
	return &PresenceTracker{
		log:         log,
		registry:    registry,
		users:       users,
		broadcaster: broadcaster,
	}
}

// ConnectionOpened registers the connection. On the user's first live
// connection it marks the user online, stamps LastOnline, persists, and
// announces the transition to every other connected user.
func (t *PresenceTracker) ConnectionOpened(ctx context.Context, connID chat.ConnectionID,
	userID chat.UserID, sink contract.EventSink) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	first := t.registry.Register(connID, userID, sink)
	if !first {
		return nil
	}

	if err := t.users.SetPresence(userID, true, time.Now().UTC()); err != nil {
		// Roll the registration back: a dead entry would make the user's
		// next connection look like a second device and mute its online
		// transition for good.
		t.registry.Unregister(connID)
		return err
	}
	t.announce(ctx, connID, userID)
	return nil
}

// ConnectionClosed unregisters the connection. On the user's last live
// connection it marks the user offline and announces the transition.
// Closing an unknown connection is a no-op.
func (t *PresenceTracker) ConnectionClosed(ctx context.Context, connID chat.ConnectionID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	userID, last, ok := t.registry.Unregister(connID)
	if !ok || !last {
		return nil
	}

	// The registry is authoritative for liveness: the user is gone, so the
	// offline transition is announced even when the store write fails. The
	// stale flag is corrected by the next presence write for that user.
	err := t.users.SetPresence(userID, false, time.Now().UTC())
	if err != nil {
		t.log.Error("Offline presence write failed",
			"user_id", userID,
			"error", err)
	}
	t.announce(ctx, connID, userID)
	return err
}

func (t *PresenceTracker) announce(ctx context.Context, connID chat.ConnectionID, userID chat.UserID) {
	profile, err := t.users.ProfileOf(userID)
	if err != nil {
		t.log.Error("Presence announcement skipped, profile lookup failed",
			"user_id", userID,
			"error", err)
		return
	}
	t.broadcaster.ToOthers(ctx, connID, event.UserStatusChanged{User: profile})
}
