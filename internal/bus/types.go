package bus

import (
	"context"
	"time"

	"github.com/notarikon-nz/notabot/internal/chat"
	"github.com/notarikon-nz/notabot/internal/escalation"
)

// InboundMessage wraps a chat.Message as handed off by a platform
// connection (internal/platform) to the dispatcher (C7).
type InboundMessage struct {
	Message chat.Message
}

// OutboundMessage is one action a platform connection must apply:
// sending a public reply, deleting a message, timing a user out, or
// banning them. Exactly the fields relevant to Kind are meaningful.
type OutboundMessage struct {
	Platform  string
	Channel   string
	UserID    string
	MessageID string
	Kind      escalation.ActionKind
	Text      string
	Timeout   time.Duration
}

// Event is a server-side event broadcast to subscribers.
type Event struct {
	Name    string      `json:"name"`
	Payload interface{} `json:"payload,omitempty"`
}

// ModerationEvent is published after every evaluation whose Decision
// resolves to an action other than Pass (spec §6 "Action contract to
// downstream").
type ModerationEvent struct {
	MessageID  string    `json:"message_id"`
	UserID     string    `json:"user_id"`
	FilterID   string    `json:"filter_id"`
	Action     string    `json:"action"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"ts"`
}

// AppealEvent is published after an appeal is resolved (spec §6).
type AppealEvent struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	Reason    string `json:"reason"`
	Decision  string `json:"decision"` // "accepted" or "rejected"
}

// MessageHandler handles one inbound message.
type MessageHandler func(InboundMessage) error

// EventHandler handles a broadcast event.
type EventHandler func(Event)

// EventPublisher abstracts event broadcast + subscription, used by
// anything downstream (dashboard, command dispatcher, points economy)
// that wants to observe moderation activity without depending on the
// concrete MessageBus (spec §6: those consumers are out of scope, this
// is the interface seam they would attach to).
type EventPublisher interface {
	Subscribe(id string, handler EventHandler)
	Unsubscribe(id string)
	Broadcast(event Event)
}

// MessageRouter abstracts inbound/outbound message routing between
// platform connections and the dispatcher.
type MessageRouter interface {
	PublishInbound(msg InboundMessage) error
	ConsumeInbound(ctx context.Context, platform string) (InboundMessage, bool)
	PublishOutbound(msg OutboundMessage) error
	SubscribeOutbound(ctx context.Context) (OutboundMessage, bool)
}
