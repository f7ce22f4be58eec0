package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/notarikon-nz/notabot/internal/ierr"
)

// MessageBus is the concrete MessageRouter + EventPublisher implementation:
// one bounded channel per platform for inbound traffic, one shared
// bounded channel for outbound actions, and a map of subscriber
// callbacks for broadcast events. Queue occupancy is read directly via
// len(ch)/cap(ch) by the dispatcher's backpressure check (spec §4.7),
// the same plain-buffered-channel idiom the teacher's outbound
// dispatcher loop uses.
type MessageBus struct {
	inboundMu    sync.RWMutex
	inbound      map[string]chan InboundMessage
	inboundDepth int

	outbound chan OutboundMessage

	subMu sync.RWMutex
	subs  map[string]EventHandler
}

// NewMessageBus creates a bus with the given per-platform inbound queue
// depth and outbound queue depth.
func NewMessageBus(inboundQueueDepth, outboundQueueDepth int) *MessageBus {
	if inboundQueueDepth <= 0 {
		inboundQueueDepth = 1024
	}
	if outboundQueueDepth <= 0 {
		outboundQueueDepth = 1024
	}
	return &MessageBus{
		inbound:      make(map[string]chan InboundMessage),
		inboundDepth: inboundQueueDepth,
		outbound:     make(chan OutboundMessage, outboundQueueDepth),
		subs:         make(map[string]EventHandler),
	}
}

func (b *MessageBus) queueFor(platform string) chan InboundMessage {
	b.inboundMu.RLock()
	ch, ok := b.inbound[platform]
	b.inboundMu.RUnlock()
	if ok {
		return ch
	}

	b.inboundMu.Lock()
	defer b.inboundMu.Unlock()
	if ch, ok = b.inbound[platform]; ok {
		return ch
	}
	ch = make(chan InboundMessage, b.inboundDepth)
	b.inbound[platform] = ch
	return ch
}

// PublishInbound enqueues msg onto its platform's inbound queue. A full
// queue surfaces ierr.ErrQueueOverflow rather than blocking the
// platform connection's read loop.
func (b *MessageBus) PublishInbound(msg InboundMessage) error {
	ch := b.queueFor(msg.Message.Platform)
	select {
	case ch <- msg:
		return nil
	default:
		return ierr.ErrQueueOverflow
	}
}

// ConsumeInbound blocks until a message is available for platform or
// ctx is cancelled.
func (b *MessageBus) ConsumeInbound(ctx context.Context, platform string) (InboundMessage, bool) {
	ch := b.queueFor(platform)
	select {
	case msg := <-ch:
		return msg, true
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

// InboundOccupancy reports the fraction [0,1] of platform's inbound
// queue currently filled, used by the dispatcher's backpressure checks.
func (b *MessageBus) InboundOccupancy(platform string) float64 {
	ch := b.queueFor(platform)
	return float64(len(ch)) / float64(cap(ch))
}

// OutboundOccupancy reports the fraction [0,1] of the outbound queue
// currently filled, used to shed timers/commands before moderation
// under backpressure (spec §4.7).
func (b *MessageBus) OutboundOccupancy() float64 {
	return float64(len(b.outbound)) / float64(cap(b.outbound))
}

// PublishOutbound enqueues an action for C6 to apply.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) error {
	select {
	case b.outbound <- msg:
		return nil
	default:
		return ierr.ErrQueueOverflow
	}
}

// SubscribeOutbound blocks until an outbound action is available or ctx
// is cancelled.
func (b *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg := <-b.outbound:
		return msg, true
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}

// Subscribe registers handler under id to receive every Broadcast call.
func (b *MessageBus) Subscribe(id string, handler EventHandler) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.subs[id] = handler
}

// Unsubscribe removes a previously registered handler.
func (b *MessageBus) Unsubscribe(id string) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	delete(b.subs, id)
}

// Broadcast delivers event to every current subscriber. Handlers run
// synchronously on the caller's goroutine; slow subscribers are the
// caller's problem, matching the teacher's own Broadcast semantics.
func (b *MessageBus) Broadcast(event Event) {
	b.subMu.RLock()
	defer b.subMu.RUnlock()
	for id, handler := range b.subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("event subscriber panicked", "subscriber", id, "event", event.Name, "panic", r)
				}
			}()
			handler(event)
		}()
	}
}
