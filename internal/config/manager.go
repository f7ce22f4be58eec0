package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/notarikon-nz/notabot/internal/bus"
	"github.com/notarikon-nz/notabot/internal/ierr"
	"github.com/notarikon-nz/notabot/pkg/protocol"
)

// DefaultHistorySize is used when bot.yaml's security.snapshot_history_size
// is unset.
const DefaultHistorySize = 10

// Manager watches Dir for changes to the config files it understands,
// parses and validates them, and atomically swaps in a new Snapshot on
// success (spec §4.4). It replaces the teacher's one-shot
// config.Load(path) with a real fsnotify watch loop.
type Manager struct {
	dir       string
	publisher bus.EventPublisher

	current atomic.Pointer[Snapshot]

	mu         sync.Mutex
	history    []*Snapshot
	historyCap int
	version    int
}

// NewManager creates a Manager rooted at dir. Call Load once at startup
// to obtain the first Snapshot before calling Watch.
func NewManager(dir string, publisher bus.EventPublisher) *Manager {
	return &Manager{dir: dir, publisher: publisher, historyCap: DefaultHistorySize}
}

// Current returns the live Snapshot. Safe for concurrent readers; the
// returned pointer is stable for the caller's whole pipeline traversal
// even if a concurrent reload swaps in a newer one (spec §8 invariant 1).
func (m *Manager) Current() *Snapshot {
	return m.current.Load()
}

// History returns up to historyCap previous snapshots, most recent
// first, for operator rollback.
func (m *Manager) History() []*Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Snapshot, len(m.history))
	copy(out, m.history)
	return out
}

// Load performs one synchronous parse+validate+build pass and, on
// success, swaps it in as the current Snapshot. It is fatal-at-startup
// semantics are the caller's responsibility (spec §7: ConfigInvalid is
// fatal only at first startup if no snapshot exists yet).
func (m *Manager) Load() error {
	src, err := m.readSources()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.version++
	version := m.version
	m.mu.Unlock()

	snap, err := build(src, version, time.Now())
	if err != nil {
		slog.Error("config reload rejected", "error", err)
		if m.publisher != nil {
			m.publisher.Broadcast(bus.Event{Name: protocol.EventConfigReloaded, Payload: map[string]any{"ok": false, "error": err.Error()}})
		}
		return err
	}

	prev := m.current.Swap(snap)
	m.mu.Lock()
	if n := src.bot.Security.SnapshotHistorySize; n > 0 {
		m.historyCap = n
	}
	if prev != nil {
		m.history = append([]*Snapshot{prev}, m.history...)
		if len(m.history) > m.historyCap {
			m.history = m.history[:m.historyCap]
		}
	}
	m.mu.Unlock()

	slog.Info("config snapshot published", "version", snap.Version, "filters", len(snap.Filter.Filters))
	if m.publisher != nil {
		m.publisher.Broadcast(bus.Event{Name: protocol.EventConfigReloaded, Payload: map[string]any{"ok": true, "version": snap.Version}})
	}
	return nil
}

// Watch blocks, reloading on every filesystem change to Dir until ctx
// is cancelled. Reload failures are logged and the previous snapshot
// stays live (spec §4.4).
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: fsnotify: %v", ierr.ErrConfigInvalid, err)
	}
	defer watcher.Close()

	if err := watcher.Add(m.dir); err != nil {
		return fmt.Errorf("%w: watch %s: %v", ierr.ErrConfigInvalid, m.dir, err)
	}

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !pending {
				pending = true
				debounce.Reset(250 * time.Millisecond)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config watcher error", "error", err)
		case <-debounce.C:
			pending = false
			if err := m.Load(); err != nil {
				slog.Error("config reload failed, keeping previous snapshot", "error", err)
			}
		}
	}
}

func (m *Manager) readSources() (sources, error) {
	var src sources

	if err := readYAML(filepath.Join(m.dir, "bot.yaml"), &src.bot); err != nil {
		return src, err
	}
	if err := readYAML(filepath.Join(m.dir, "patterns.yaml"), &src.patterns); err != nil {
		return src, err
	}
	if err := readYAML(filepath.Join(m.dir, "filters.yaml"), &src.filters); err != nil {
		return src, err
	}
	if err := readYAML(filepath.Join(m.dir, "filters.yaml"), &src.escalations); err != nil {
		return src, err
	}
	if err := readYAML(filepath.Join(m.dir, "timers.yaml"), &src.timers); err != nil {
		return src, err
	}

	bundlePath := filepath.Join(m.dir, "community_filters.json")
	if data, err := os.ReadFile(bundlePath); err == nil {
		var bundle communityBundleJSON
		if err := json.Unmarshal(data, &bundle); err != nil {
			return src, fmt.Errorf("%w: %s: %v", ierr.ErrConfigInvalid, bundlePath, err)
		}
		src.community = append(src.community, bundle)
	} else if !os.IsNotExist(err) {
		return src, fmt.Errorf("%w: %s: %v", ierr.ErrConfigInvalid, bundlePath, err)
	}

	return src, nil
}

func readYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %s: %v", ierr.ErrConfigInvalid, path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ierr.ErrConfigInvalid, path, err)
	}
	return nil
}
