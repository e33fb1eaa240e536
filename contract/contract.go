//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"quick-chat/domain/chat"
	"quick-chat/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself: supervision, restart and panic recovery
// belong to the supervisor.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, avoiding manual naming in the Worker
// interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one live connection's inbox. Consume must never block the
// broadcaster: implementations buffer and drop on overflow.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry tracks which live connections belong to which user and which
// chat groups each connection has joined. Register reports whether this is
// the user's first live connection; Unregister reports whether it was the
// last. Both decisions are atomic with the mutation.
type IRegistry interface {
	Register(connID chat.ConnectionID, userID chat.UserID, sink EventSink) (first bool)
	Unregister(connID chat.ConnectionID) (userID chat.UserID, last bool, ok bool)
	Join(connID chat.ConnectionID, chatID chat.ChatID)
	ConnectionsOf(userID chat.UserID) []chat.ConnectionID
	UserOf(connID chat.ConnectionID) (chat.UserID, bool)
	SinksForChat(chatID chat.ChatID) []EventSink
	SinksForOthers(connID chat.ConnectionID) []EventSink
	SinksForUser(userID chat.UserID) []EventSink
	SinkOf(connID chat.ConnectionID) (EventSink, bool)
}

// IBroadcaster fans one event out to a subscription set. Fire-and-forget:
// no acknowledgement, no retry.
type IBroadcaster interface {
	ToChat(ctx context.Context, chatID chat.ChatID, e event.DomainEvent)
	ToOthers(ctx context.Context, connID chat.ConnectionID, e event.DomainEvent)
	ToUser(ctx context.Context, userID chat.UserID, e event.DomainEvent)
	ToConn(ctx context.Context, connID chat.ConnectionID, e event.DomainEvent)
}
