package platform

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/notarikon-nz/notabot/internal/chat"
	"github.com/notarikon-nz/notabot/internal/ierr"
)

// PoolConfig mirrors spec §4.6's tunables for one platform's pool.
type PoolConfig struct {
	Name                      string
	MaxConnections            int
	MinIdleConnections        int
	HealthCheckInterval       time.Duration
	RetryAttempts             int
	ConnectionTimeout         time.Duration
	MessagesPerSecond         float64
	BurstLimit                int
}

type slot struct {
	conn    Connection
	state   State
	fails   int
	limiter *rate.Limiter
}

// Pool keeps 1..MaxConnections live connections to one platform warm,
// health-checks them, reconnects with exponential backoff, and
// round-robins sends across healthy connections (spec §4.6). A single
// connection's repeated failure demotes it Healthy -> Degraded -> Dead,
// at which point the pool spawns a replacement from Factory.
type Pool struct {
	cfg     PoolConfig
	factory Factory

	mu    sync.Mutex
	slots []*slot
	next  int

	inbound chan chat.Message
}

// NewPool creates a pool for one platform. Call Start to bring up the
// initial connection set.
func NewPool(cfg PoolConfig, factory Factory) *Pool {
	if cfg.MaxConnections < 1 {
		cfg.MaxConnections = 1
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = 30 * time.Second
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 5
	}
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = 10 * time.Second
	}
	return &Pool{
		cfg:     cfg,
		factory: factory,
		inbound: make(chan chat.Message, 1024),
	}
}

// Messages returns the pool-wide merged inbound stream.
func (p *Pool) Messages() <-chan chat.Message { return p.inbound }

// Start brings up MinIdleConnections (or 1) connections and launches the
// health-check loop. It makes one attempt per connection and returns an
// ierr.ErrPlatformConnect-wrapped error only if every one of them fails;
// RetryAttempts applies to later reconnects, not to Start.
func (p *Pool) Start(ctx context.Context) error {
	warm := p.cfg.MinIdleConnections
	if warm < 1 {
		warm = 1
	}

	var lastErr error
	connected := 0
	for i := 0; i < warm; i++ {
		if err := p.spawn(ctx); err != nil {
			lastErr = err
			continue
		}
		connected++
	}
	if connected == 0 {
		return fmt.Errorf("%w: platform %q: %v", ierr.ErrPlatformConnect, p.cfg.Name, lastErr)
	}

	go p.healthCheckLoop(ctx)
	return nil
}

func (p *Pool) spawn(ctx context.Context) error {
	conn, err := p.factory()
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, p.cfg.ConnectionTimeout)
	defer cancel()
	if err := conn.Connect(cctx); err != nil {
		return fmt.Errorf("%w: %v", ierr.ErrPlatformConnect, err)
	}

	burst := p.cfg.BurstLimit
	if burst < 1 {
		burst = 1
	}
	sl := &slot{conn: conn, state: StateHealthy, limiter: rate.NewLimiter(rate.Limit(p.cfg.MessagesPerSecond), burst)}

	p.mu.Lock()
	p.slots = append(p.slots, sl)
	p.mu.Unlock()

	go p.pump(conn)
	return nil
}

func (p *Pool) pump(conn Connection) {
	for msg := range conn.Messages() {
		select {
		case p.inbound <- msg:
		default:
			slog.Warn("platform pool inbound overflow, dropping message", "platform", p.cfg.Name)
		}
	}
}

// healthCheckLoop periodically probes every slot and reconnects dead
// ones with exponential backoff capped by RetryAttempts.
func (p *Pool) healthCheckLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.checkAll(ctx)
		}
	}
}

func (p *Pool) checkAll(ctx context.Context) {
	p.mu.Lock()
	slots := append([]*slot(nil), p.slots...)
	p.mu.Unlock()

	for _, sl := range slots {
		if sl.conn.IsConnected() {
			sl.fails = 0
			sl.state = StateHealthy
			continue
		}
		sl.fails++
		if sl.fails >= 3 {
			sl.state = StateDead
		} else {
			sl.state = StateDegraded
		}
		if sl.state == StateDead {
			p.reconnect(ctx, sl)
		}
	}
}

func (p *Pool) reconnect(ctx context.Context, sl *slot) {
	for attempt := 1; attempt <= p.cfg.RetryAttempts; attempt++ {
		backoff := time.Duration(1<<uint(attempt-1)) * time.Second
		backoff += time.Duration(rand.Intn(250)) * time.Millisecond
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		cctx, cancel := context.WithTimeout(ctx, p.cfg.ConnectionTimeout)
		err := sl.conn.Connect(cctx)
		cancel()
		if err == nil {
			sl.state = StateHealthy
			sl.fails = 0
			go p.pump(sl.conn)
			return
		}
		slog.Warn("platform reconnect attempt failed", "platform", p.cfg.Name, "attempt", attempt, "error", err)
	}
	slog.Error("platform connection exhausted retry attempts, dropping slot", "platform", p.cfg.Name)
	p.drop(sl)
	if err := p.spawn(ctx); err != nil {
		slog.Error("platform replacement connection failed", "platform", p.cfg.Name, "error", err)
	}
}

func (p *Pool) drop(dead *slot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.slots[:0]
	for _, sl := range p.slots {
		if sl != dead {
			kept = append(kept, sl)
		}
	}
	p.slots = kept
}

// Send round-robins among healthy connections, waiting for that
// connection's rate limiter, and bounds the whole attempt by
// ConnectionTimeout (spec §4.6 "pool never blocks callers longer than
// connection_timeout_seconds").
func (p *Pool) Send(ctx context.Context, channel, text string) error {
	sl := p.pick()
	if sl == nil {
		return fmt.Errorf("%w: no healthy connection for platform %q", ierr.ErrPlatformSend, p.cfg.Name)
	}

	cctx, cancel := context.WithTimeout(ctx, p.cfg.ConnectionTimeout)
	defer cancel()

	if err := sl.limiter.Wait(cctx); err != nil {
		return fmt.Errorf("%w: %v", ierr.ErrPlatformRateLimited, err)
	}
	if err := sl.conn.SendMessage(cctx, channel, text); err != nil {
		sl.fails++
		return fmt.Errorf("%w: %v", ierr.ErrPlatformSend, err)
	}
	return nil
}

// Delete removes messageID from channel via any healthy connection.
func (p *Pool) Delete(ctx context.Context, channel, messageID string) error {
	sl := p.pick()
	if sl == nil {
		return fmt.Errorf("%w: no healthy connection for platform %q", ierr.ErrPlatformSend, p.cfg.Name)
	}
	cctx, cancel := context.WithTimeout(ctx, p.cfg.ConnectionTimeout)
	defer cancel()
	if err := sl.conn.Delete(cctx, channel, messageID); err != nil {
		return fmt.Errorf("%w: %v", ierr.ErrPlatformSend, err)
	}
	return nil
}

// Timeout mutes userID in channel for d via any healthy connection.
func (p *Pool) Timeout(ctx context.Context, channel, userID string, d time.Duration) error {
	sl := p.pick()
	if sl == nil {
		return fmt.Errorf("%w: no healthy connection for platform %q", ierr.ErrPlatformSend, p.cfg.Name)
	}
	cctx, cancel := context.WithTimeout(ctx, p.cfg.ConnectionTimeout)
	defer cancel()
	if err := sl.conn.Timeout(cctx, channel, userID, d); err != nil {
		return fmt.Errorf("%w: %v", ierr.ErrPlatformSend, err)
	}
	return nil
}

// Ban permanently removes userID from channel via any healthy connection.
func (p *Pool) Ban(ctx context.Context, channel, userID string) error {
	sl := p.pick()
	if sl == nil {
		return fmt.Errorf("%w: no healthy connection for platform %q", ierr.ErrPlatformSend, p.cfg.Name)
	}
	cctx, cancel := context.WithTimeout(ctx, p.cfg.ConnectionTimeout)
	defer cancel()
	if err := sl.conn.Ban(cctx, channel, userID); err != nil {
		return fmt.Errorf("%w: %v", ierr.ErrPlatformSend, err)
	}
	return nil
}

func (p *Pool) pick() *slot {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.slots)
	if n == 0 {
		return nil
	}
	for i := 0; i < n; i++ {
		idx := (p.next + i) % n
		if p.slots[idx].state == StateHealthy {
			p.next = (idx + 1) % n
			return p.slots[idx]
		}
	}
	return nil
}

// Stop disconnects every connection in the pool.
func (p *Pool) Stop(ctx context.Context) {
	p.mu.Lock()
	slots := append([]*slot(nil), p.slots...)
	p.slots = nil
	p.mu.Unlock()

	for _, sl := range slots {
		if err := sl.conn.Disconnect(ctx); err != nil {
			slog.Warn("error disconnecting platform connection", "platform", p.cfg.Name, "error", err)
		}
	}
}
