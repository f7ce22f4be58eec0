package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/notarikon-nz/notabot/internal/adaptive"
	"github.com/notarikon-nz/notabot/internal/bus"
	"github.com/notarikon-nz/notabot/internal/config"
	"github.com/notarikon-nz/notabot/internal/dispatch"
	"github.com/notarikon-nz/notabot/internal/escalation"
	"github.com/notarikon-nz/notabot/internal/ierr"
	"github.com/notarikon-nz/notabot/internal/learning"
	"github.com/notarikon-nz/notabot/internal/metrics"
	"github.com/notarikon-nz/notabot/internal/platform"
	"github.com/notarikon-nz/notabot/internal/platform/twitch"
	"github.com/notarikon-nz/notabot/internal/platform/youtube"
	"github.com/notarikon-nz/notabot/internal/store"
	"github.com/notarikon-nz/notabot/internal/timers"
)

const (
	defaultEscalationShards = 32
	effectivenessFlushEvery = 5 * time.Minute
)

func runServe() error {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	msgBus := bus.NewMessageBus(1024, 1024)

	mgr := config.NewManager(configDir, msgBus)
	if err := mgr.Load(); err != nil {
		slog.Error("initial config load failed", "error", err)
		return newExitError(exitConfigInvalid, err)
	}
	snap := mgr.Current()

	db, err := store.Open(storePath)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		return newExitError(exitConfigInvalid, err)
	}
	defer db.Close()

	if err := db.SaveSnapshotMeta(snap); err != nil {
		slog.Warn("failed to persist initial snapshot metadata", "error", err)
	}

	learningReg := learning.NewRegistry()
	if seed, err := db.LoadEffectiveness(); err != nil {
		slog.Warn("failed to load persisted effectiveness", "error", err)
	} else {
		for id, stats := range seed {
			learningReg.Seed(id, stats)
		}
	}

	m := metrics.New()
	machine := escalation.NewMachine(defaultEscalationShards)

	pools, startErrs := connectPlatforms(snap)
	for name, err := range startErrs {
		slog.Warn("platform failed to connect", "platform", name, "error", err)
	}
	if len(pools) == 0 {
		err := fmt.Errorf("%w: no platforms connected after initial attempts", ierr.ErrPlatformConnect)
		slog.Error("startup aborted", "error", err)
		return newExitError(exitNoPlatforms, err)
	}

	disp := dispatch.New(mgr, msgBus, machine, learningReg, m, pools)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	controller := adaptive.New(snap.Tunables, defaultThresholds(), false, func(t config.Tunables) {
		slog.Info("adaptive controller applied tunables", "batch_size", t.BatchSize, "response_delay_ms", t.ResponseDelayMS)
	})
	disp.OnBackpressure = func(platformName string, occupancy float64) {
		slog.Warn("inbound queue under backpressure", "platform", platformName, "occupancy", occupancy)
		controller.Tick(adaptive.Sample{At: time.Now(), P95LatencyMS: occupancy * 100})
	}

	scheduler := timers.NewScheduler(mgr, msgBus)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := mgr.Watch(ctx); err != nil {
			slog.Warn("config watcher stopped", "error", err)
		}
	}()
	go scheduler.Run(ctx)
	go disp.Run(ctx)
	go flushEffectiveness(ctx, db, learningReg, snap)

	slog.Info("notabot started", "platforms", platformNames(pools), "worker_threads", snap.WorkerThreads)

	sig := <-sigCh
	slog.Info("graceful shutdown initiated", "signal", sig)

	grace := time.Duration(snap.GracefulShutdownSeconds) * time.Second
	if grace <= 0 {
		grace = 10 * time.Second
	}
	drainCtx, drainCancel := context.WithTimeout(context.Background(), grace)
	defer drainCancel()

	// cancel stops the config watcher, the timer scheduler, the
	// dispatcher's workers and the effectiveness flush at once; queued
	// inbound and outbound messages are not drained. The full grace
	// period is then waited out before the pools are closed.
	cancel()
	<-drainCtx.Done()

	for _, pool := range pools {
		pool.Stop(context.Background())
	}

	return newExitError(exitTerminatedSignal, fmt.Errorf("terminated by %s after graceful drain", sig))
}

// connectPlatforms brings up a platform.Pool for every enabled,
// credentialed platform in snap. Platforms that fail to connect are
// reported but do not abort startup as long as at least one succeeds
// (spec §6 exit code 3 is reserved for zero successes).
func connectPlatforms(snap *config.Snapshot) (map[string]*platform.Pool, map[string]error) {
	pools := make(map[string]*platform.Pool)
	errs := make(map[string]error)

	if pool, err := startTwitch(snap); err != nil {
		errs["twitch"] = err
	} else if pool != nil {
		pools["twitch"] = pool
	}

	if pool, err := startYouTube(snap); err != nil {
		errs["youtube"] = err
	} else if pool != nil {
		pools["youtube"] = pool
	}

	return pools, errs
}

func startTwitch(snap *config.Snapshot) (*platform.Pool, error) {
	username := os.Getenv("TWITCH_USERNAME")
	oauth := os.Getenv("TWITCH_OAUTH_TOKEN")
	channels := strings.Split(os.Getenv("TWITCH_CHANNELS"), ",")
	if username == "" || oauth == "" || len(channels) == 0 || channels[0] == "" {
		return nil, nil
	}

	creds := twitch.Credentials{Username: username, OAuth: oauth, Channels: channels}
	factory := func() (platform.Connection, error) { return twitch.New(creds) }

	cfg := poolConfigFor("twitch", snap.Tunables.PoolSizes["twitch"])
	pool := platform.NewPool(cfg, factory)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectionTimeout*time.Duration(cfg.RetryAttempts))
	defer cancel()
	if err := pool.Start(ctx); err != nil {
		return nil, err
	}
	return pool, nil
}

func startYouTube(snap *config.Snapshot) (*platform.Pool, error) {
	apiKey := os.Getenv("YOUTUBE_API_KEY")
	liveChatID := os.Getenv("YOUTUBE_LIVE_CHAT_ID")
	if apiKey == "" || liveChatID == "" {
		return nil, nil
	}

	creds := youtube.Credentials{
		APIKey:     apiKey,
		OAuthToken: os.Getenv("YOUTUBE_OAUTH_TOKEN"),
		LiveChatID: liveChatID,
	}
	factory := func() (platform.Connection, error) { return youtube.New(creds) }

	cfg := poolConfigFor("youtube", snap.Tunables.PoolSizes["youtube"])
	pool := platform.NewPool(cfg, factory)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectionTimeout*time.Duration(cfg.RetryAttempts))
	defer cancel()
	if err := pool.Start(ctx); err != nil {
		return nil, err
	}
	return pool, nil
}

func poolConfigFor(name string, maxConnections int) platform.PoolConfig {
	if maxConnections < 1 {
		maxConnections = 1
	}
	return platform.PoolConfig{
		Name:                name,
		MaxConnections:      maxConnections,
		MinIdleConnections:  1,
		HealthCheckInterval: 30 * time.Second,
		RetryAttempts:       5,
		ConnectionTimeout:   10 * time.Second,
		MessagesPerSecond:   20,
		BurstLimit:          20,
	}
}

func platformNames(pools map[string]*platform.Pool) []string {
	names := make([]string, 0, len(pools))
	for name := range pools {
		names = append(names, name)
	}
	return names
}

func defaultThresholds() adaptive.Thresholds {
	return adaptive.Thresholds{
		AggressiveThresholdMS:      200,
		TimeoutAdjustmentFactor:    1.5,
		CriticalCachePercent:       90,
		CacheReductionFactor:       0.75,
		CriticalErrorRatePercent:   5,
		RetryIncreaseFactor:        1.5,
		MaxParameterChangesPerHour: 6,
		RollbackThresholdSeconds:   300,
	}
}

// flushEffectiveness periodically persists the learning registry's
// per-filter stats so a restart can seed warm instead of cold (spec §9
// cross-restart note).
func flushEffectiveness(ctx context.Context, db *store.Store, reg *learning.Registry, snap *config.Snapshot) {
	ticker := time.NewTicker(effectivenessFlushEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, f := range snap.Filter.Filters {
				stats := reg.Snapshot(f.ID)
				if stats.Triggers == 0 {
					continue
				}
				if err := db.SaveEffectiveness(f.ID, stats); err != nil {
					slog.Warn("failed to persist filter effectiveness", "filter", f.ID, "error", err)
				}
			}
		}
	}
}
