// Package youtube implements platform.Connection by polling the
// YouTube Live Chat Messages REST API (spec §6 "YouTube over its
// live-chat REST polling API"). No pack repository ships a YouTube
// SDK, so this is a thin authenticated net/http polling client rather
// than a pull of google.golang.org/api, which the Non-goals around
// credential management make unnecessary weight here.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/notarikon-nz/notabot/internal/chat"
)

const apiBase = "https://www.googleapis.com/youtube/v3/liveChat/messages"

// Credentials carries the per-bot identity (spec §6 environment
// variables YOUTUBE_API_KEY/YOUTUBE_OAUTH_TOKEN/YOUTUBE_LIVE_CHAT_ID).
type Credentials struct {
	APIKey       string
	OAuthToken   string
	LiveChatID   string
	PollInterval time.Duration
}

type apiResponse struct {
	NextPageToken           string `json:"nextPageToken"`
	PollingIntervalMillis   int    `json:"pollingIntervalMillis"`
	Items                   []struct {
		ID   string `json:"id"`
		Snippet struct {
			DisplayMessage string `json:"displayMessage"`
			PublishedAt    string `json:"publishedAt"`
		} `json:"snippet"`
		AuthorDetails struct {
			ChannelID     string `json:"channelId"`
			DisplayName   string `json:"displayName"`
			IsChatOwner   bool   `json:"isChatOwner"`
			IsChatModerator bool `json:"isChatModerator"`
			IsChatSponsor bool   `json:"isChatSponsor"` // member ~= subscriber
		} `json:"authorDetails"`
	} `json:"items"`
}

// Conn is one polling connection against LiveChatID.
type Conn struct {
	creds  Credentials
	client *http.Client

	mu            sync.Mutex
	connected     bool
	pageToken     string
	cancel        context.CancelFunc
	messages      chan chat.Message
}

// New builds an unconnected Conn for creds.
func New(creds Credentials) (*Conn, error) {
	if creds.LiveChatID == "" {
		return nil, fmt.Errorf("youtube: live chat id required")
	}
	if creds.PollInterval <= 0 {
		creds.PollInterval = 5 * time.Second
	}
	return &Conn{
		creds:    creds,
		client:   &http.Client{Timeout: 10 * time.Second},
		messages: make(chan chat.Message, 256),
	}, nil
}

func (c *Conn) Connect(ctx context.Context) error {
	// A cheap liveness probe: one immediate poll before handing control
	// back, so Connect fails fast on bad credentials.
	if _, err := c.poll(ctx); err != nil {
		return err
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.connected = true
	c.cancel = cancel
	c.mu.Unlock()

	go c.pollLoop(pollCtx)
	return nil
}

func (c *Conn) pollLoop(ctx context.Context) {
	interval := c.creds.PollInterval
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		next, err := c.poll(ctx)
		if err != nil {
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
			return
		}
		if next > 0 {
			interval = time.Duration(next) * time.Millisecond
		}
	}
}

// poll fetches one page of new messages and returns the API's suggested
// next polling interval in milliseconds.
func (c *Conn) poll(ctx context.Context) (int, error) {
	q := url.Values{}
	q.Set("liveChatId", c.creds.LiveChatID)
	q.Set("part", "snippet,authorDetails")
	q.Set("key", c.creds.APIKey)
	c.mu.Lock()
	if c.pageToken != "" {
		q.Set("pageToken", c.pageToken)
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}
	if c.creds.OAuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.creds.OAuthToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("youtube: poll status %d", resp.StatusCode)
	}

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.pageToken = out.NextPageToken
	c.mu.Unlock()

	for _, item := range out.Items {
		arrived, _ := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		if arrived.IsZero() {
			arrived = time.Now()
		}
		msg := chat.Message{
			ID:           item.ID,
			Platform:     "youtube",
			Channel:      c.creds.LiveChatID,
			UserID:       item.AuthorDetails.ChannelID,
			DisplayName:  item.AuthorDetails.DisplayName,
			Content:      item.Snippet.DisplayMessage,
			IsModerator:  item.AuthorDetails.IsChatModerator,
			IsSubscriber: item.AuthorDetails.IsChatSponsor,
			IsOwner:      item.AuthorDetails.IsChatOwner,
			ArrivedAt:    arrived,
		}
		select {
		case c.messages <- msg:
		default:
		}
	}
	return out.PollingIntervalMillis, nil
}

func (c *Conn) SendMessage(ctx context.Context, channel, text string) error {
	body := map[string]interface{}{
		"snippet": map[string]interface{}{
			"liveChatId": c.creds.LiveChatID,
			"type":       "textMessageEvent",
			"textMessageDetails": map[string]string{
				"messageText": text,
			},
		},
	}
	return c.post(ctx, apiBase, body)
}

func (c *Conn) Delete(ctx context.Context, channel, messageID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, apiBase+"?id="+url.QueryEscape(messageID), nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("youtube: delete status %d", resp.StatusCode)
	}
	return nil
}

// Timeout bans userID for d via the moderator ban endpoint with a
// BanType of temporary; YouTube has no separate "timeout" primitive.
func (c *Conn) Timeout(ctx context.Context, channel, userID string, d time.Duration) error {
	body := map[string]interface{}{
		"snippet": map[string]interface{}{
			"liveChatId": c.creds.LiveChatID,
			"type":       "temporary",
			"bannedUserDetails": map[string]string{"channelId": userID},
			"banDurationSeconds": fmt.Sprintf("%d", int(d.Seconds())),
		},
	}
	return c.post(ctx, "https://www.googleapis.com/youtube/v3/liveChat/bans", body)
}

func (c *Conn) Ban(ctx context.Context, channel, userID string) error {
	body := map[string]interface{}{
		"snippet": map[string]interface{}{
			"liveChatId":        c.creds.LiveChatID,
			"type":              "permanent",
			"bannedUserDetails": map[string]string{"channelId": userID},
		},
	}
	return c.post(ctx, "https://www.googleapis.com/youtube/v3/liveChat/bans", body)
}

func (c *Conn) post(ctx context.Context, endpoint string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("youtube: request to %s status %d", endpoint, resp.StatusCode)
	}
	return nil
}

func (c *Conn) authorize(req *http.Request) {
	if c.creds.OAuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.creds.OAuthToken)
	}
}

func (c *Conn) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	c.connected = false
	return nil
}

func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Conn) Messages() <-chan chat.Message { return c.messages }
