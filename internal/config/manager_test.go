package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/notarikon-nz/notabot/internal/bus"
)

const testBotYAML = `
core:
  worker_threads: 4
  max_filters_per_message: 10
  graceful_shutdown_seconds: 5
platforms:
  twitch:
    enabled: true
    max_connections_per_platform: 2
  youtube:
    enabled: false
features:
  parallel_processing: true
  learning_mode: false
performance:
  batch_size: 50
  response_delay_ms: 100
`

const testPatternsYAML = `
pattern_collections: {}
`

const testFiltersYAML = `
blacklist_filters:
  - id: spam1
    name: spam filter
    enabled: true
    priority: 5
    confidence_threshold: 0.5
    exemption_level: Subscriber
    escalation_ref: default
    patterns:
      - family: literal
        target: buyfollowers
spam_filters: []
escalation_policies:
  default:
    first_offense:
      kind: warn_user
      message: "please stop"
    repeat_offense:
      kind: timeout_user
    offense_window_seconds: 3600
    max_level: 5
    cooling_off_seconds: 600
    base_duration_seconds: 60
`

const testTimersYAML = `
timers:
  - id: welcome
    name: welcome message
    schedule: "*/5 * * * *"
    message: "welcome to the stream"
    channel: "#main"
    enabled: true
`

func writeTestConfig(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		"bot.yaml":      testBotYAML,
		"patterns.yaml": testPatternsYAML,
		"filters.yaml":  testFiltersYAML,
		"timers.yaml":   testTimersYAML,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed writing %s: %v", name, err)
		}
	}
}

func TestManager_LoadBuildsSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeTestConfig(t, dir)

	m := NewManager(dir, noopPublisher{})
	if err := m.Load(); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	snap := m.Current()
	if snap == nil {
		t.Fatalf("expected a snapshot after Load")
	}
	if snap.WorkerThreads != 4 {
		t.Fatalf("expected worker_threads 4, got %d", snap.WorkerThreads)
	}
	if len(snap.Filter.Filters) != 1 {
		t.Fatalf("expected 1 compiled filter, got %d", len(snap.Filter.Filters))
	}
	if snap.Filter.Filters[0].ID != "spam1" {
		t.Fatalf("expected filter id spam1, got %q", snap.Filter.Filters[0].ID)
	}
	if len(snap.Timers) != 1 || snap.Timers[0].ID != "welcome" {
		t.Fatalf("expected one welcome timer, got %+v", snap.Timers)
	}
}

func TestManager_LoadRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	writeTestConfig(t, dir)
	// Reference an escalation policy that doesn't exist.
	bad := `
blacklist_filters:
  - id: spam1
    name: bad
    enabled: true
    priority: 5
    confidence_threshold: 0.5
    escalation_ref: missing
    patterns:
      - family: literal
        target: x
spam_filters: []
escalation_policies: {}
`
	if err := os.WriteFile(filepath.Join(dir, "filters.yaml"), []byte(bad), 0644); err != nil {
		t.Fatalf("write error: %v", err)
	}

	m := NewManager(dir, noopPublisher{})
	if err := m.Load(); err == nil {
		t.Fatalf("expected error for unresolved escalation_ref")
	}
}

func TestManager_ReloadKeepsPreviousSnapshotOnFailure(t *testing.T) {
	dir := t.TempDir()
	writeTestConfig(t, dir)

	m := NewManager(dir, noopPublisher{})
	if err := m.Load(); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	first := m.Current()

	invalid := `not: [valid yaml`
	if err := os.WriteFile(filepath.Join(dir, "bot.yaml"), []byte(invalid), 0644); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if err := m.Load(); err == nil {
		t.Fatalf("expected reload to fail on invalid yaml")
	}

	if m.Current() != first {
		t.Fatalf("expected previous snapshot to remain live after a failed reload")
	}
}

type noopPublisher struct{}

func (noopPublisher) Subscribe(id string, handler bus.EventHandler) {}
func (noopPublisher) Unsubscribe(id string)                        {}
func (noopPublisher) Broadcast(event bus.Event)                    {}
