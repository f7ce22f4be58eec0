// Package twitch implements platform.Connection over Twitch's IRC-over-
// WebSocket chat transport (wss://irc-ws.chat.twitch.tv), the modern
// replacement for plaintext IRC. It reuses the teacher's own
// gorilla/websocket dependency, here driving the client side of a
// connection instead of the gateway's server-side /ws endpoint.
package twitch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/notarikon-nz/notabot/internal/chat"
)

const wsURL = "wss://irc-ws.chat.twitch.tv:443"

// Credentials carries the per-bot identity (spec §6 environment
// variables TWITCH_USERNAME/TWITCH_OAUTH_TOKEN/TWITCH_CHANNELS).
type Credentials struct {
	Username string
	OAuth    string // "oauth:..." token
	Channels []string
}

// Conn is one Twitch IRC-over-WebSocket connection.
type Conn struct {
	creds Credentials

	mu        sync.Mutex
	ws        *websocket.Conn
	connected bool

	messages chan chat.Message
}

// New builds an unconnected Conn for creds.
func New(creds Credentials) (*Conn, error) {
	if creds.Username == "" || creds.OAuth == "" {
		return nil, fmt.Errorf("twitch: username and oauth token required")
	}
	return &Conn{creds: creds, messages: make(chan chat.Message, 256)}, nil
}

func (c *Conn) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte("CAP REQ :twitch.tv/tags twitch.tv/commands")); err != nil {
		ws.Close()
		return err
	}
	if err := ws.WriteMessage(websocket.TextMessage, []byte("PASS "+c.creds.OAuth)); err != nil {
		ws.Close()
		return err
	}
	if err := ws.WriteMessage(websocket.TextMessage, []byte("NICK "+c.creds.Username)); err != nil {
		ws.Close()
		return err
	}
	for _, ch := range c.creds.Channels {
		if err := ws.WriteMessage(websocket.TextMessage, []byte("JOIN #"+strings.TrimPrefix(ch, "#"))); err != nil {
			ws.Close()
			return err
		}
	}

	c.mu.Lock()
	c.ws = ws
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(ws)
	return nil
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
			return
		}
		for _, line := range strings.Split(strings.TrimRight(string(data), "\r\n"), "\r\n") {
			c.handleLine(ws, line)
		}
	}
}

func (c *Conn) handleLine(ws *websocket.Conn, line string) {
	if line == "" {
		return
	}
	if strings.HasPrefix(line, "PING") {
		ws.WriteMessage(websocket.TextMessage, []byte("PONG"+strings.TrimPrefix(line, "PING")))
		return
	}

	var tags map[string]string
	rest := line
	if strings.HasPrefix(line, "@") {
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			return
		}
		tags = parseTags(strings.TrimPrefix(parts[0], "@"))
		rest = parts[1]
	}

	if !strings.Contains(rest, "PRIVMSG") {
		return
	}
	msg, ok := parsePrivmsg(tags, rest)
	if !ok {
		return
	}
	select {
	case c.messages <- msg:
	default:
	}
}

// parsePrivmsg turns a tagged "PRIVMSG #channel :text" line into a
// chat.Message using Twitch's standard badge/mod/subscriber tags.
func parsePrivmsg(tags map[string]string, rest string) (chat.Message, bool) {
	// rest looks like: ":nick!nick@nick.tmi.twitch.tv PRIVMSG #channel :message text"
	idx := strings.Index(rest, "PRIVMSG")
	if idx < 0 {
		return chat.Message{}, false
	}
	afterCmd := rest[idx+len("PRIVMSG"):]
	chanAndText := strings.SplitN(strings.TrimSpace(afterCmd), " :", 2)
	if len(chanAndText) != 2 {
		return chat.Message{}, false
	}
	channel := strings.TrimPrefix(strings.TrimSpace(chanAndText[0]), "#")
	text := chanAndText[1]

	ageDays := 0
	if ts, ok := tags["tmi-sent-ts"]; ok {
		if ms, err := strconv.ParseInt(ts, 10, 64); err == nil {
			_ = ms // account age isn't derivable from this tag; left for a real account-age lookup
		}
	}

	badges := badgesOf(tags)
	return chat.Message{
		ID:             tags["id"],
		Platform:       "twitch",
		Channel:        channel,
		UserID:         tags["user-id"],
		DisplayName:    tags["display-name"],
		Content:        text,
		Badges:         badges,
		IsModerator:    tags["mod"] == "1" || badges["moderator"],
		IsSubscriber:   tags["subscriber"] == "1" || badges["subscriber"],
		IsOwner:        badges["broadcaster"],
		AccountAgeDays: ageDays,
		ArrivedAt:      time.Now(),
	}, true
}

func (c *Conn) send(channel, line string) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return fmt.Errorf("twitch: not connected")
	}
	return ws.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("PRIVMSG #%s :%s", channel, line)))
}

func (c *Conn) SendMessage(ctx context.Context, channel, text string) error {
	return c.send(channel, text)
}

func (c *Conn) Delete(ctx context.Context, channel, messageID string) error {
	return c.send(channel, "/delete "+messageID)
}

func (c *Conn) Timeout(ctx context.Context, channel, userID string, d time.Duration) error {
	seconds := int(d.Seconds())
	if seconds <= 0 {
		seconds = 600
	}
	return c.send(channel, fmt.Sprintf("/timeout %s %d", userID, seconds))
}

func (c *Conn) Ban(ctx context.Context, channel, userID string) error {
	return c.send(channel, "/ban "+userID)
}

func (c *Conn) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return nil
	}
	err := c.ws.Close()
	c.ws = nil
	c.connected = false
	return err
}

func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Conn) Messages() <-chan chat.Message { return c.messages }
