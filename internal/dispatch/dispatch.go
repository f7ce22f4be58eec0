// Package dispatch implements the message-processing pipeline (spec
// §4.7, C7): a worker pool dequeues chat.Message values from the bus's
// per-platform inbound queues, routes each through filter.Evaluate,
// records the outcome in the learning registry and metrics, and
// enqueues any resulting action onto the outbound queue for the
// platform pools to apply. It is the glue the teacher's own
// consumeInboundMessages loop (cmd/gateway.go) plays for agent runs,
// rebuilt here around moderation decisions instead of agent replies.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/notarikon-nz/notabot/internal/bus"
	"github.com/notarikon-nz/notabot/internal/chat"
	"github.com/notarikon-nz/notabot/internal/config"
	"github.com/notarikon-nz/notabot/internal/escalation"
	"github.com/notarikon-nz/notabot/internal/filter"
	"github.com/notarikon-nz/notabot/internal/learning"
	"github.com/notarikon-nz/notabot/internal/metrics"
	"github.com/notarikon-nz/notabot/internal/platform"
	"github.com/notarikon-nz/notabot/pkg/protocol"
)

// defaultWorkerThreads is used when bot.yaml's core.worker_threads is
// unset or non-positive.
const defaultWorkerThreads = 4

// highOccupancyThreshold is the inbound-queue fraction past which the
// dispatcher signals the adaptive controller to raise response_delay_ms
// (spec §4.7 "if inbound queue is > 80% full... signals C5").
const highOccupancyThreshold = 0.80

// Dispatcher wires the bus, the live config snapshot, the escalation
// machine, the learning registry, metrics, and every connected
// platform pool into the end-to-end moderation pipeline.
type Dispatcher struct {
	manager  *config.Manager
	router   *bus.MessageBus
	machine  *escalation.Machine
	learning *learning.Registry
	metrics  *metrics.Metrics
	pools    map[string]*platform.Pool

	// OnBackpressure is invoked whenever a platform's inbound queue
	// crosses highOccupancyThreshold, so the adaptive controller (C5)
	// can react. Nil is a valid no-op.
	OnBackpressure func(platformName string, occupancy float64)
}

// New builds a Dispatcher over the given collaborators. pools is keyed
// by platform name ("twitch", "youtube", ...).
func New(manager *config.Manager, router *bus.MessageBus, machine *escalation.Machine, learningReg *learning.Registry, m *metrics.Metrics, pools map[string]*platform.Pool) *Dispatcher {
	return &Dispatcher{
		manager:  manager,
		router:   router,
		machine:  machine,
		learning: learningReg,
		metrics:  m,
		pools:    pools,
	}
}

// Run starts one pump goroutine per platform pool (forwarding
// platform.Connection traffic onto the bus), a worker pool per
// platform sized by the live snapshot's WorkerThreads, and the single
// outbound-apply loop. It blocks until ctx is cancelled and every
// goroutine has drained.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for name, pool := range d.pools {
		wg.Add(1)
		go func(name string, pool *platform.Pool) {
			defer wg.Done()
			d.pump(ctx, name, pool)
		}(name, pool)
	}

	workers := defaultWorkerThreads
	if snap := d.manager.Current(); snap != nil && snap.WorkerThreads > 0 {
		workers = snap.WorkerThreads
	}
	for name := range d.pools {
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				d.worker(ctx, name)
			}(name)
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.applyLoop(ctx)
	}()

	wg.Wait()
}

// pump forwards a platform connection pool's raw chat.Message stream
// onto the bus's inbound queue for that platform.
func (d *Dispatcher) pump(ctx context.Context, name string, pool *platform.Pool) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pool.Messages():
			if !ok {
				return
			}
			if err := d.router.PublishInbound(bus.InboundMessage{Message: msg}); err != nil {
				slog.Warn("inbound message dropped, queue full", "platform", name, "error", err)
			}
		}
	}
}

// worker drains one platform's inbound queue and runs each message
// through the moderation pipeline until ctx is cancelled.
func (d *Dispatcher) worker(ctx context.Context, platformName string) {
	for {
		msg, ok := d.router.ConsumeInbound(ctx, platformName)
		if !ok {
			return
		}
		d.process(ctx, msg.Message)
	}
}

// process runs one message through filter.Evaluate, records its
// outcome, and enqueues any resulting action.
func (d *Dispatcher) process(ctx context.Context, msg chat.Message) {
	occ := d.router.InboundOccupancy(msg.Platform)
	d.metrics.QueueOccupancy.WithLabelValues(msg.Platform).Set(occ)
	if occ > highOccupancyThreshold && d.OnBackpressure != nil {
		d.OnBackpressure(msg.Platform, occ)
	}

	snap := d.manager.Current()
	if snap == nil || snap.Filter == nil {
		return
	}

	decision := filter.Evaluate(ctx, msg, snap.Filter, d.machine, time.Now())
	d.metrics.EvaluationLatencyMS.Observe(decision.LatencyMS)

	// Every eligible filter that was actually scored gets its trigger
	// count incremented, not just the one that ultimately matched (spec
	// §4.2 "updates C8... either way", §4.8 "for every evaluation").
	for _, c := range decision.Checked {
		d.learning.RecordEvaluation(c.FilterID, c.LatencyMS)
	}

	if decision.Action.Kind == escalation.ActionPass {
		return
	}

	d.learning.RecordMatch(decision.MatchedFilterID)
	d.metrics.FilterMatches.WithLabelValues(decision.MatchedFilterID, decision.Action.Kind.String()).Inc()

	out := bus.OutboundMessage{
		Platform:  msg.Platform,
		Channel:   msg.Channel,
		UserID:    msg.UserID,
		MessageID: msg.ID,
		Kind:      decision.Action.Kind,
		Text:      decision.Action.Message,
		Timeout:   decision.Action.TimeoutDuration,
	}
	// Moderation actions always publish directly and are never shed
	// (spec §4.7 "never moderation"); a drop here means the outbound
	// queue itself is saturated, which is logged, not retried.
	if err := d.router.PublishOutbound(out); err != nil {
		slog.Error("moderation action dropped, outbound queue full", "platform", msg.Platform, "filter", decision.MatchedFilterID, "error", err)
	}

	d.router.Broadcast(bus.Event{
		Name: protocol.EventModerationAction,
		Payload: bus.ModerationEvent{
			MessageID:  msg.ID,
			UserID:     msg.UserID,
			FilterID:   decision.MatchedFilterID,
			Action:     decision.Action.Kind.String(),
			Confidence: decision.Confidence,
			Reason:     decision.Reason,
			Timestamp:  time.Now(),
		},
	})
}

// applyLoop consumes the outbound queue and applies each action
// through the matching platform pool until ctx is cancelled.
func (d *Dispatcher) applyLoop(ctx context.Context) {
	for {
		out, ok := d.router.SubscribeOutbound(ctx)
		if !ok {
			return
		}
		d.apply(ctx, out)
	}
}

func (d *Dispatcher) apply(ctx context.Context, out bus.OutboundMessage) {
	pool, ok := d.pools[out.Platform]
	if !ok {
		slog.Warn("outbound action for unconnected platform", "platform", out.Platform, "kind", out.Kind)
		return
	}

	var err error
	switch out.Kind {
	case escalation.ActionWarnUser:
		err = pool.Send(ctx, out.Channel, out.Text)
	case escalation.ActionDeleteMessage:
		err = pool.Delete(ctx, out.Channel, out.MessageID)
	case escalation.ActionTimeoutUser:
		err = pool.Timeout(ctx, out.Channel, out.UserID, out.Timeout)
	case escalation.ActionBanUser:
		err = pool.Ban(ctx, out.Channel, out.UserID)
	case escalation.ActionLogOnly:
		slog.Info("moderation action logged only", "platform", out.Platform, "user", out.UserID, "message", out.MessageID)
		return
	default:
		return
	}

	if err != nil {
		d.metrics.PlatformSendErrors.WithLabelValues(out.Platform).Inc()
		slog.Warn("platform action failed", "platform", out.Platform, "kind", out.Kind, "error", err)
	}
}
