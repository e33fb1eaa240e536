package hub

import (
	"context"
	"log/slog"
	"time"

	"quick-chat/contract"
	"quick-chat/domain/chat"
	"quick-chat/domain/event"
)

// Broadcaster fans one event out to a subscription set resolved through
// the registry. Best-effort with no guarantees regarding delivery or
// retries; it is not a message broker. Scoped to the hub instance, never a
// process-wide singleton.
type Broadcaster struct {
	log      *slog.Logger
	registry contract.IRegistry
	timeout  time.Duration
}

func NewBroadcaster(log *slog.Logger, registry contract.IRegistry, timeout time.Duration) *Broadcaster {
	return &Broadcaster{log: log, registry: registry, timeout: timeout}
}

func (b *Broadcaster) ToChat(ctx context.Context, chatID chat.ChatID, e event.DomainEvent) {
	b.fanout(ctx, b.registry.SinksForChat(chatID), e)
}

func (b *Broadcaster) ToOthers(ctx context.Context, connID chat.ConnectionID, e event.DomainEvent) {
	b.fanout(ctx, b.registry.SinksForOthers(connID), e)
}

func (b *Broadcaster) ToUser(ctx context.Context, userID chat.UserID, e event.DomainEvent) {
	b.fanout(ctx, b.registry.SinksForUser(userID), e)
}

func (b *Broadcaster) ToConn(ctx context.Context, connID chat.ConnectionID, e event.DomainEvent) {
	sink, ok := b.registry.SinkOf(connID)
	if !ok {
		return
	}
	b.fanout(ctx, []contract.EventSink{sink}, e)
}

// fanout delivers one event to each sink. Sinks are non-blocking, the
// timeout only guards against a misbehaving implementation.
func (b *Broadcaster) fanout(ctx context.Context, sinks []contract.EventSink, e event.DomainEvent) {
	if len(sinks) == 0 {
		return
	}
	deliveryCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	for _, sink := range sinks {
		if err := sink.Consume(deliveryCtx, e); err != nil {
			b.log.Debug("Event delivery failed",
				"event", e.Name(),
				"error", err)
		}
	}
}
