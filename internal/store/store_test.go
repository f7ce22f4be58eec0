package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/notarikon-nz/notabot/internal/config"
	"github.com/notarikon-nz/notabot/internal/filter"
	"github.com/notarikon-nz/notabot/internal/learning"
)

func TestStore_OpenAppliesMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notabot.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	defer s.Close()
}

func TestStore_SaveAndLoadEffectiveness(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notabot.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	defer s.Close()

	stats := learning.Stats{Triggers: 12, TruePositives: 9, FalsePositives: 3, AvgResponseMS: 4.5}
	if err := s.SaveEffectiveness("spam1", stats); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	loaded, err := s.LoadEffectiveness()
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	got, ok := loaded["spam1"]
	if !ok {
		t.Fatalf("expected spam1 effectiveness to be persisted")
	}
	if got.Triggers != 12 || got.TruePositives != 9 || got.FalsePositives != 3 {
		t.Fatalf("expected persisted counters to round-trip, got %+v", got)
	}
}

func TestStore_SaveEffectivenessUpsertsOnConflict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notabot.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	defer s.Close()

	if err := s.SaveEffectiveness("spam1", learning.Stats{Triggers: 1}); err != nil {
		t.Fatalf("unexpected first save error: %v", err)
	}
	if err := s.SaveEffectiveness("spam1", learning.Stats{Triggers: 5}); err != nil {
		t.Fatalf("unexpected second save error: %v", err)
	}

	loaded, err := s.LoadEffectiveness()
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected a single upserted row, got %d", len(loaded))
	}
	if loaded["spam1"].Triggers != 5 {
		t.Fatalf("expected the second save to overwrite the first, got %+v", loaded["spam1"])
	}
}

func TestStore_SaveSnapshotMeta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notabot.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	defer s.Close()

	snap := &config.Snapshot{
		Filter:   &filter.Snapshot{Filters: []*filter.Filter{filter.NewFilter()}},
		Tunables: config.Tunables{BatchSize: 50, ResponseDelayMS: 100},
		Version:  1,
		LoadedAt: time.Now(),
	}
	if err := s.SaveSnapshotMeta(snap); err != nil {
		t.Fatalf("unexpected save snapshot meta error: %v", err)
	}
}
