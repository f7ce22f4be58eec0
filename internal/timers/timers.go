// Package timers implements the scheduled-message half of spec §1's
// "timers and a command dispatcher" external-collaborator surface
// (command execution itself is out of scope). It drives timers.yaml
// cron-style schedules with the teacher's own adhocore/gronx
// dependency, already wired for real cron jobs in cmd/gateway_cron.go,
// here evaluated against a plain channel-send action instead of an
// agent cron job.
package timers

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/notarikon-nz/notabot/internal/bus"
	"github.com/notarikon-nz/notabot/internal/config"
)

// CommandDispatcher is the out-of-scope command-execution collaborator's
// interface seam (spec §6). No implementation ships in this module and
// nothing in it calls Dispatch; the dispatcher (C7) does not shed
// commands.
type CommandDispatcher interface {
	Dispatch(ctx context.Context, platform, channel, userID, command string, args []string) error
}

// PointsAwarder is the out-of-scope points-economy collaborator's
// interface seam (spec §6), referenced by timers/commands but never
// implemented here.
type PointsAwarder interface {
	Award(ctx context.Context, platform, userID string, points int) error
}

// Scheduler evaluates every enabled TimerSpec in the live Snapshot once
// a minute (cron granularity) and enqueues a send action for any timer
// that is due.
type Scheduler struct {
	manager  *config.Manager
	outbound bus.MessageRouter
	gron     gronx.Gronx

	lastFired map[string]time.Time
}

// NewScheduler creates a Scheduler reading timers from manager's live
// Snapshot and publishing due timers onto outbound.
func NewScheduler(manager *config.Manager, outbound bus.MessageRouter) *Scheduler {
	return &Scheduler{
		manager:   manager,
		outbound:  outbound,
		gron:      gronx.New(),
		lastFired: make(map[string]time.Time),
	}
}

// Run ticks once a minute until ctx is cancelled, checking every
// enabled timer's cron schedule with gronx.IsDue and publishing an
// OutboundMessage for each timer that fires.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

func (s *Scheduler) tick(now time.Time) {
	snap := s.manager.Current()
	if snap == nil {
		return
	}
	for _, t := range snap.Timers {
		if !t.Enabled {
			continue
		}
		due, err := s.gron.IsDue(t.Schedule, now)
		if err != nil {
			slog.Warn("timer has invalid schedule, skipping", "timer", t.ID, "schedule", t.Schedule, "error", err)
			continue
		}
		if !due {
			continue
		}
		if last, ok := s.lastFired[t.ID]; ok && now.Sub(last) < time.Minute {
			continue
		}
		s.lastFired[t.ID] = now

		// Timers are the lowest-priority producer on the outbound queue
		// (spec §4.7 "sheds... timers first, then commands, never
		// moderation"): self-shed at 95% occupancy rather than competing
		// with moderation actions for the last slot.
		if occ, ok := s.outbound.(interface{ OutboundOccupancy() float64 }); ok && occ.OutboundOccupancy() > 0.95 {
			slog.Warn("timer shed under backpressure", "timer", t.ID)
			continue
		}

		if err := s.outbound.PublishOutbound(bus.OutboundMessage{Channel: t.Channel, Text: t.Message}); err != nil {
			slog.Warn("timer dropped under backpressure", "timer", t.ID, "error", err)
		}
	}
}
