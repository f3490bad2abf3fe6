package bus

import (
	"context"
	"log/slog"
	"sync"
)

// OutboundHandler delivers a reply to whichever platform owns its group.
type OutboundHandler func(ctx context.Context, msg *OutboundMessage) error

// EventBus fans inbound platform events into the group registry and fans
// outbound replies back out to subscribed adapters. Mirrors the upstream
// agent's MessageBus, generalized from one inbound queue to one gateway
// the registry drains per group.
type EventBus struct {
	Inbound  chan *InboundEvent
	Outbound chan *OutboundMessage

	mu          sync.RWMutex
	subscribers []OutboundHandler
}

// NewEventBus creates a new event bus with buffered channels.
func NewEventBus() *EventBus {
	return &EventBus{
		Inbound:  make(chan *InboundEvent, 256),
		Outbound: make(chan *OutboundMessage, 256),
	}
}

// PublishInbound hands a platform event to the gateway.
func (b *EventBus) PublishInbound(evt *InboundEvent) {
	b.Inbound <- evt
}

// PublishOutbound hands a reply produced by a Session's pipeline to the
// dispatcher.
func (b *EventBus) PublishOutbound(msg *OutboundMessage) {
	b.Outbound <- msg
}

// Subscribe registers a handler invoked for every outbound reply,
// regardless of which group it targets; handlers are expected to check
// msg.GroupID themselves (an adapter typically owns a fixed set of
// groups).
func (b *EventBus) Subscribe(handler OutboundHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, handler)
}

// DispatchOutbound reads from the outbound queue and fans it to every
// subscriber. Blocks until ctx is cancelled.
func (b *EventBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.Outbound:
			b.mu.RLock()
			handlers := append([]OutboundHandler(nil), b.subscribers...)
			b.mu.RUnlock()
			for _, h := range handlers {
				if err := h(ctx, msg); err != nil {
					slog.Error("dispatch outbound", "group", msg.GroupID, "err", err)
				}
			}
		}
	}
}
