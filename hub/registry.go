package hub

import (
	"sync"

	"quick-chat/contract"
	"quick-chat/domain/chat"
)

type session struct {
	userID chat.UserID
	sink   contract.EventSink
	chats  map[chat.ChatID]struct{}
}

// Registry is the in-memory bookkeeping of live connections: which
// connections belong to which user, and which chat groups each connection
// has joined. All state is lock-protected; the first/last connection
// decisions happen inside the same critical section as the mutation, which
// is what keeps the presence tracker's zero-crossing guarantee honest under
// concurrent connects of the same user.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[chat.ConnectionID]*session
	userConns map[chat.UserID]map[chat.ConnectionID]struct{}
	groups    map[chat.ChatID]map[chat.ConnectionID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:  make(map[chat.ConnectionID]*session),
		userConns: make(map[chat.UserID]map[chat.ConnectionID]struct{}),
		groups:    make(map[chat.ChatID]map[chat.ConnectionID]struct{}),
	}
}

// Register attaches a connection to its authenticated user and reports
// whether it is the user's first live connection.
func (r *Registry) Register(connID chat.ConnectionID, userID chat.UserID, sink contract.EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[connID] = &session{
		userID: userID,
		sink:   sink,
		chats:  make(map[chat.ChatID]struct{}),
	}

	conns, ok := r.userConns[userID]
	if !ok {
		conns = make(map[chat.ConnectionID]struct{})
		r.userConns[userID] = conns
	}
	conns[connID] = struct{}{}
	return len(conns) == 1
}

// Unregister removes a connection and all its group subscriptions.
// Unregistering an unknown id is a no-op (ok=false). Reports whether the
// user has zero connections left.
func (r *Registry) Unregister(connID chat.ConnectionID) (chat.UserID, bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[connID]
	if !ok {
		return 0, false, false
	}
	delete(r.sessions, connID)

	for chatID := range sess.chats {
		if group, exists := r.groups[chatID]; exists {
			delete(group, connID)
			if len(group) == 0 {
				delete(r.groups, chatID)
			}
		}
	}

	last := false
	if conns, exists := r.userConns[sess.userID]; exists {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.userConns, sess.userID)
			last = true
		}
	}
	return sess.userID, last, true
}

// Join subscribes a connection to a chat group. Authorization happened
// upstream; an unknown connection is a no-op.
func (r *Registry) Join(connID chat.ConnectionID, chatID chat.ChatID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[connID]
	if !ok {
		return
	}
	sess.chats[chatID] = struct{}{}

	group, ok := r.groups[chatID]
	if !ok {
		group = make(map[chat.ConnectionID]struct{})
		r.groups[chatID] = group
	}
	group[connID] = struct{}{}
}

func (r *Registry) ConnectionsOf(userID chat.UserID) []chat.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var connIDs []chat.ConnectionID
	for connID := range r.userConns[userID] {
		connIDs = append(connIDs, connID)
	}
	return connIDs
}

func (r *Registry) UserOf(connID chat.ConnectionID) (chat.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[connID]
	if !ok {
		return 0, false
	}
	return sess.userID, true
}

// SinksForChat resolves the live subscription set of one chat group.
func (r *Registry) SinksForChat(chatID chat.ChatID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	group, ok := r.groups[chatID]
	if !ok {
		return nil
	}
	var sinks []contract.EventSink
	for connID := range group {
		if sess, exists := r.sessions[connID]; exists {
			sinks = append(sinks, sess.sink)
		}
	}
	return sinks
}

// SinksForOthers resolves every live connection except the given one, used
// for presence announcements.
func (r *Registry) SinksForOthers(connID chat.ConnectionID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sinks []contract.EventSink
	for id, sess := range r.sessions {
		if id == connID {
			continue
		}
		sinks = append(sinks, sess.sink)
	}
	return sinks
}

func (r *Registry) SinksForUser(userID chat.UserID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sinks []contract.EventSink
	for connID := range r.userConns[userID] {
		if sess, exists := r.sessions[connID]; exists {
			sinks = append(sinks, sess.sink)
		}
	}
	return sinks
}

func (r *Registry) SinkOf(connID chat.ConnectionID) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[connID]
	if !ok {
		return nil, false
	}
	return sess.sink, true
}

// Stats exposes coarse gauges for telemetry.
func (r *Registry) Stats() (connections, users, groups int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), len(r.userConns), len(r.groups)
}
