package platform

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/notarikon-nz/notabot/internal/chat"
)

// fakeConn is a minimal in-memory Connection for exercising Pool
// without any real network transport.
type fakeConn struct {
	mu        sync.Mutex
	connected bool
	failSend  bool
	sent      []string
	msgs      chan chat.Message
}

func newFakeConn() *fakeConn {
	return &fakeConn{msgs: make(chan chat.Message, 8)}
}

func (f *fakeConn) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeConn) SendMessage(ctx context.Context, channel, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return errBoom
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeConn) Delete(ctx context.Context, channel, messageID string) error { return nil }
func (f *fakeConn) Timeout(ctx context.Context, channel, userID string, d time.Duration) error {
	return nil
}
func (f *fakeConn) Ban(ctx context.Context, channel, userID string) error { return nil }

func (f *fakeConn) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	close(f.msgs)
	return nil
}

func (f *fakeConn) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeConn) Messages() <-chan chat.Message { return f.msgs }

var errBoom = &boomErr{}

type boomErr struct{}

func (*boomErr) Error() string { return "boom" }

func testConfig() PoolConfig {
	return PoolConfig{
		Name:                "test",
		MaxConnections:      2,
		MinIdleConnections:  1,
		HealthCheckInterval: time.Hour, // never fires during the test
		RetryAttempts:       1,
		ConnectionTimeout:   time.Second,
		MessagesPerSecond:   1000,
		BurstLimit:          1000,
	}
}

func TestPool_StartConnectsAndSends(t *testing.T) {
	conn := newFakeConn()
	p := NewPool(testConfig(), func() (Connection, error) { return conn, nil })

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if !conn.IsConnected() {
		t.Fatalf("expected connection to be connected after Start")
	}

	if err := p.Send(ctx, "#main", "hello"); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	conn.mu.Lock()
	got := append([]string(nil), conn.sent...)
	conn.mu.Unlock()
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("expected message to reach the connection, got %v", got)
	}
}

func TestPool_StartFailsWhenFactoryErrors(t *testing.T) {
	p := NewPool(testConfig(), func() (Connection, error) { return nil, errBoom })

	if err := p.Start(context.Background()); err == nil {
		t.Fatalf("expected start to fail when every connection attempt fails")
	}
}

func TestPool_SendFailsWithNoHealthyConnection(t *testing.T) {
	p := NewPool(testConfig(), func() (Connection, error) { return newFakeConn(), nil })

	if err := p.Send(context.Background(), "#main", "hi"); err == nil {
		t.Fatalf("expected send to fail before any connection has started")
	}
}

func TestPool_MessagesForwardsFromConnection(t *testing.T) {
	conn := newFakeConn()
	p := NewPool(testConfig(), func() (Connection, error) { return conn, nil })

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	conn.msgs <- chat.Message{ID: "1", Platform: "twitch"}

	select {
	case got := <-p.Messages():
		if got.ID != "1" {
			t.Fatalf("expected message id 1, got %q", got.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for forwarded message")
	}
}

func TestPool_StopDisconnectsAllSlots(t *testing.T) {
	conn := newFakeConn()
	p := NewPool(testConfig(), func() (Connection, error) { return conn, nil })

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	p.Stop(context.Background())

	if conn.IsConnected() {
		t.Fatalf("expected connection to be disconnected after Stop")
	}
}
