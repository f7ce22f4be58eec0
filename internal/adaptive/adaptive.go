// Package adaptive implements the adaptive tuning controller (spec
// §4.5, C5): it evaluates each latency/error/throughput Sample that its
// caller passes to Tick (it runs no timer of its own), applies
// rule-based parameter deltas to config.Tunables, and rolls back any
// change whose guard metric is worse after a threshold window. Changes are proposed but withheld when LearningMode is set.
package adaptive

import (
	"sync"
	"time"

	"github.com/notarikon-nz/notabot/internal/config"
)

// Sample is one round of observed metrics (spec §4.5 "Periodically...
// samples").
type Sample struct {
	At                time.Time
	P50LatencyMS      float64
	P95LatencyMS      float64
	MatchRate         float64
	FalsePositiveRate float64
	ErrorRatePercent  float64
	CachePressurePct  float64
}

// Thresholds configures the rule-based strategies (spec §4.5).
type Thresholds struct {
	AggressiveThresholdMS      float64
	TimeoutAdjustmentFactor    float64
	CriticalCachePercent       float64
	CacheReductionFactor       float64
	CriticalErrorRatePercent   float64
	RetryIncreaseFactor        float64
	MaxParameterChangesPerHour int
	RollbackThresholdSeconds   int
}

// pendingChange records one applied delta so its guard metric can be
// watched for rollback (spec §4.5 "Every change records (before, after,
// metric snapshot); if the chosen guard metric degrades for
// rollback_threshold_seconds the change is reverted").
type pendingChange struct {
	at           time.Time
	apply        func(*config.Tunables)
	revert       func(*config.Tunables)
	guardBefore  float64
	guardAfter   func(Sample) float64
	stillBad     func(guard, baseline float64) bool
}

// Controller owns the live Tunables and proposes/applies/rolls back
// changes against it. Each change is handed to onChange; the controller
// does not publish Tunables into a config.Snapshot.
type Controller struct {
	mu           sync.Mutex
	tunables     config.Tunables
	thresholds   Thresholds
	learningMode bool

	changeTimestamps []time.Time
	pending          []pendingChange

	onChange func(config.Tunables)
}

// New creates a Controller seeded with initial tunables.
func New(initial config.Tunables, thresholds Thresholds, learningMode bool, onChange func(config.Tunables)) *Controller {
	return &Controller{tunables: initial.Clone(), thresholds: thresholds, learningMode: learningMode, onChange: onChange}
}

// Tunables returns the controller's current live value.
func (c *Controller) Tunables() config.Tunables {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tunables.Clone()
}

// Tick evaluates sample against every strategy, applies any indicated
// change (unless LearningMode), and checks pending changes for rollback.
func (c *Controller) Tick(sample Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checkRollbacks(sample)

	if sample.P95LatencyMS > c.thresholds.AggressiveThresholdMS {
		c.propose(sample, func(t *config.Tunables) {
			before := t.BatchSize
			t.BatchSize = before - before/4
			if t.BatchSize < 1 {
				t.BatchSize = 1
			}
			t.ResponseDelayMS = int(float64(t.ResponseDelayMS) * c.thresholds.TimeoutAdjustmentFactor)
		}, func(s Sample) float64 { return s.P95LatencyMS }, func(guard, baseline float64) bool { return guard > baseline })
	}

	if sample.CachePressurePct > c.thresholds.CriticalCachePercent {
		c.propose(sample, func(t *config.Tunables) {
			t.MaxConcurrentChecks = int(float64(t.MaxConcurrentChecks) * c.thresholds.CacheReductionFactor)
			if t.MaxConcurrentChecks < 1 {
				t.MaxConcurrentChecks = 1
			}
		}, func(s Sample) float64 { return s.CachePressurePct }, func(guard, baseline float64) bool { return guard > baseline })
	}

	if sample.ErrorRatePercent > c.thresholds.CriticalErrorRatePercent {
		c.propose(sample, func(t *config.Tunables) {
			t.RetryDelayS = int(float64(t.RetryDelayS) * c.thresholds.RetryIncreaseFactor)
			t.MaxConcurrentChecks /= 2
			if t.MaxConcurrentChecks < 1 {
				t.MaxConcurrentChecks = 1
			}
		}, func(s Sample) float64 { return s.ErrorRatePercent }, func(guard, baseline float64) bool { return guard > baseline })
	}
}

// propose applies a candidate delta subject to the per-hour rate limit
// and LearningMode, recording a pendingChange for later rollback
// evaluation.
func (c *Controller) propose(sample Sample, apply func(*config.Tunables), guardAfter func(Sample) float64, stillBad func(guard, baseline float64) bool) {
	c.pruneChangeTimestamps(sample.At)
	limit := c.thresholds.MaxParameterChangesPerHour
	if limit > 0 && len(c.changeTimestamps) >= limit {
		return
	}

	before := c.tunables.Clone()
	candidate := c.tunables.Clone()
	apply(&candidate)

	if c.learningMode {
		return
	}

	c.tunables = candidate
	c.changeTimestamps = append(c.changeTimestamps, sample.At)
	c.pending = append(c.pending, pendingChange{
		at:          sample.At,
		apply:       apply,
		revert:      func(t *config.Tunables) { *t = before },
		guardBefore: guardAfter(sample),
		guardAfter:  guardAfter,
		stillBad:    stillBad,
	})

	if c.onChange != nil {
		c.onChange(c.tunables.Clone())
	}
}

func (c *Controller) pruneChangeTimestamps(now time.Time) {
	cutoff := now.Add(-time.Hour)
	kept := c.changeTimestamps[:0]
	for _, t := range c.changeTimestamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	c.changeTimestamps = kept
}

// checkRollbacks reverts any pending change whose guard metric is worse
// than its value at apply time once RollbackThresholdSeconds have
// passed (spec §8 invariant 8: restores the prior value bit-exact).
func (c *Controller) checkRollbacks(sample Sample) {
	window := time.Duration(c.thresholds.RollbackThresholdSeconds) * time.Second
	kept := c.pending[:0]
	for _, p := range c.pending {
		guardNow := p.guardAfter(sample)
		if sample.At.Sub(p.at) >= window {
			if p.stillBad(guardNow, p.guardBefore) {
				p.revert(&c.tunables)
				if c.onChange != nil {
					c.onChange(c.tunables.Clone())
				}
			}
			continue // resolved either way, drop from pending
		}
		kept = append(kept, p)
	}
	c.pending = kept
}
