// Package platform defines the per-platform connection abstraction and
// the connection pool that keeps N live connections healthy per
// platform (spec §4.6). It generalizes the teacher's Channel interface
// (internal/channels.Channel) from "deliver an agent reply to a chat
// app" to "read/write a live-stream chat", reusing the same
// connect/send/disconnect/is-connected shape.
package platform

import (
	"context"
	"time"

	"github.com/notarikon-nz/notabot/internal/chat"
)

// State is a connection's health as tracked by the Pool.
type State int

const (
	StateHealthy State = iota
	StateDegraded
	StateDead
)

func (s State) String() string {
	switch s {
	case StateDegraded:
		return "degraded"
	case StateDead:
		return "dead"
	default:
		return "healthy"
	}
}

// Connection is one live connection to a platform. Platforms that
// support multiple concurrent connections (spec §4.6
// max_connections_per_platform) implement this per logical socket; the
// Pool owns the set.
type Connection interface {
	// Connect establishes the connection, blocking until ready or ctx
	// expires.
	Connect(ctx context.Context) error

	// SendMessage posts text to channel. Rate limiting is applied by the
	// Pool before this is called; the twitch and youtube connections send
	// immediately.
	SendMessage(ctx context.Context, channel, text string) error

	// Delete removes a prior message, if the platform supports it.
	Delete(ctx context.Context, channel, messageID string) error

	// Timeout mutes userID in channel for d (0 = use platform default).
	Timeout(ctx context.Context, channel, userID string, d time.Duration) error

	// Ban permanently removes userID from channel.
	Ban(ctx context.Context, channel, userID string) error

	// Disconnect closes the connection.
	Disconnect(ctx context.Context) error

	// IsConnected reports current liveness.
	IsConnected() bool

	// Messages returns the inbound chat stream for this connection. The
	// twitch and youtube connections never close it, Disconnect included.
	Messages() <-chan chat.Message
}

// Factory builds a new, not-yet-connected Connection for one platform.
// Each platform package (twitch, youtube) provides one.
type Factory func() (Connection, error)
