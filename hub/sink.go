package hub

import (
	"context"

	"quick-chat/domain/event"
)

// ChannelSink is one connection's inbox. The broadcaster pushes events in;
// the transport's write pump drains them. A full buffer drops the event for
// this connection only: delivery is fire-and-forget and durability lives in
// the store, not here.
type ChannelSink struct {
	Events chan event.DomainEvent
}

func NewChannelSink(bufferSize int) *ChannelSink {
	return &ChannelSink{Events: make(chan event.DomainEvent, bufferSize)}
}

func (s *ChannelSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Backpressure: the connection is too slow, drop the live event.
		// The client catches up through history retrieval.
		return nil
	}
}
