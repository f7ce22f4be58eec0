package youtube

import (
	"net/http"
	"testing"
	"time"
)

func TestNew_RequiresLiveChatID(t *testing.T) {
	if _, err := New(Credentials{}); err == nil {
		t.Fatalf("expected error when live chat id is missing")
	}
}

func TestNew_DefaultsPollInterval(t *testing.T) {
	c, err := New(Credentials{LiveChatID: "abc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.creds.PollInterval != 5*time.Second {
		t.Fatalf("expected default poll interval of 5s, got %v", c.creds.PollInterval)
	}
}

func TestNew_KeepsExplicitPollInterval(t *testing.T) {
	c, err := New(Credentials{LiveChatID: "abc", PollInterval: 30 * time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.creds.PollInterval != 30*time.Second {
		t.Fatalf("expected poll interval to stay at 30s, got %v", c.creds.PollInterval)
	}
}

func TestAuthorize_SetsBearerHeaderWhenPresent(t *testing.T) {
	c, err := New(Credentials{LiveChatID: "abc", OAuthToken: "tok123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req, _ := http.NewRequest(http.MethodGet, "https://example.invalid", nil)
	c.authorize(req)

	if got := req.Header.Get("Authorization"); got != "Bearer tok123" {
		t.Fatalf("expected Bearer token header, got %q", got)
	}
}

func TestAuthorize_NoHeaderWithoutToken(t *testing.T) {
	c, err := New(Credentials{LiveChatID: "abc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req, _ := http.NewRequest(http.MethodGet, "https://example.invalid", nil)
	c.authorize(req)

	if got := req.Header.Get("Authorization"); got != "" {
		t.Fatalf("expected no Authorization header, got %q", got)
	}
}

func TestIsConnected_DefaultsFalse(t *testing.T) {
	c, err := New(Credentials{LiveChatID: "abc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.IsConnected() {
		t.Fatalf("expected a freshly constructed connection to report disconnected")
	}
}
