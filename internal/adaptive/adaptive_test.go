package adaptive

import (
	"testing"
	"time"

	"github.com/notarikon-nz/notabot/internal/config"
)

func sampleThresholds() Thresholds {
	return Thresholds{
		AggressiveThresholdMS:      100,
		TimeoutAdjustmentFactor:    1.5,
		CriticalCachePercent:       90,
		CacheReductionFactor:       0.5,
		CriticalErrorRatePercent:   5,
		RetryIncreaseFactor:        2,
		MaxParameterChangesPerHour: 10,
		RollbackThresholdSeconds:   60,
	}
}

func TestController_LatencyStrategyReducesBatchSize(t *testing.T) {
	initial := config.Tunables{BatchSize: 100, ResponseDelayMS: 50, MaxConcurrentChecks: 10}
	var applied config.Tunables
	c := New(initial, sampleThresholds(), false, func(t config.Tunables) { applied = t })

	now := time.Now()
	c.Tick(Sample{At: now, P95LatencyMS: 500})

	if applied.BatchSize >= initial.BatchSize {
		t.Fatalf("expected batch size to shrink under high latency, got %d", applied.BatchSize)
	}
}

func TestController_LearningModeWithholdsChange(t *testing.T) {
	initial := config.Tunables{BatchSize: 100, ResponseDelayMS: 50}
	called := false
	c := New(initial, sampleThresholds(), true, func(config.Tunables) { called = true })

	c.Tick(Sample{At: time.Now(), P95LatencyMS: 999})

	if called {
		t.Fatalf("learning mode must not apply changes")
	}
	if c.Tunables().BatchSize != initial.BatchSize {
		t.Fatalf("expected tunables unchanged in learning mode")
	}
}

func TestController_RollbackRevertsStaleChange(t *testing.T) {
	initial := config.Tunables{BatchSize: 100, ResponseDelayMS: 50}
	c := New(initial, sampleThresholds(), false, nil)

	start := time.Now()
	c.Tick(Sample{At: start, P95LatencyMS: 500})
	changed := c.Tunables().BatchSize
	if changed == initial.BatchSize {
		t.Fatalf("expected change to apply before rollback check")
	}
	if len(c.pending) != 1 {
		t.Fatalf("expected one pending change, got %d", len(c.pending))
	}

	// Guard metric has worsened past the rollback window: the stale
	// change is reverted to initial before the still-high latency
	// proposes a fresh one from that same baseline, landing back on
	// the identical reduced value.
	c.Tick(Sample{At: start.Add(2 * time.Minute), P95LatencyMS: 600})
	if c.Tunables().BatchSize != changed {
		t.Fatalf("expected revert-then-reapply to land back on %d, got %d", changed, c.Tunables().BatchSize)
	}
}

func TestController_RateLimitsChangesPerHour(t *testing.T) {
	initial := config.Tunables{BatchSize: 1000, ResponseDelayMS: 50}
	thresholds := sampleThresholds()
	thresholds.MaxParameterChangesPerHour = 1
	c := New(initial, thresholds, false, nil)

	start := time.Now()
	c.Tick(Sample{At: start, P95LatencyMS: 500})
	afterFirst := c.Tunables().BatchSize

	c.Tick(Sample{At: start.Add(30 * time.Second), P95LatencyMS: 500})
	afterSecond := c.Tunables().BatchSize

	if afterFirst != afterSecond {
		t.Fatalf("expected second change to be rate-limited within the same hour")
	}
}
