// Package store persists ConfigSnapshot metadata and opportunistic
// per-filter effectiveness snapshots for restart recovery (spec §4.4,
// §4.8, §9 cross-restart note). The schema also creates an
// offense_ledger_gc table, which nothing writes or reads. It uses modernc.org/sqlite — pure Go, no
// cgo, the same choice the teacher makes for its own session/skill
// stores over mattn/go-sqlite3 — with schema migrations applied
// through golang-migrate/migrate/v4, already a teacher dependency used
// there for its Postgres store and wired here against the embedded
// sqlite file instead.
package store

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/notarikon-nz/notabot/internal/config"
	"github.com/notarikon-nz/notabot/internal/ierr"
	"github.com/notarikon-nz/notabot/internal/learning"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store wraps a sqlite database holding snapshot/effectiveness history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite file at path and applies
// any pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ierr.ErrInternalInvariant, path, err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("%w: migration source: %v", ierr.ErrInternalInvariant, err)
	}

	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("%w: migration driver: %v", ierr.ErrInternalInvariant, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("%w: migrate init: %v", ierr.ErrInternalInvariant, err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("%w: migrate up: %v", ierr.ErrInternalInvariant, err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveSnapshotMeta records snap's version/filter-count/tunables for
// rollback bookkeeping (the filter/pattern bodies themselves are not
// persisted — they are reconstructible from the on-disk YAML that
// produced them, per spec §9 "cross-platform learning confined to the
// live process unless explicitly exported").
func (s *Store) SaveSnapshotMeta(snap *config.Snapshot) error {
	tunablesJSON, err := json.Marshal(snap.Tunables)
	if err != nil {
		return fmt.Errorf("%w: marshal tunables: %v", ierr.ErrInternalInvariant, err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO config_snapshots (version, loaded_at, filter_count, tunables_json) VALUES (?, ?, ?, ?)`,
		snap.Version, snap.LoadedAt.Format(time.RFC3339Nano), len(snap.Filter.Filters), string(tunablesJSON),
	)
	if err != nil {
		return fmt.Errorf("%w: save snapshot meta: %v", ierr.ErrInternalInvariant, err)
	}
	return nil
}

// SaveEffectiveness opportunistically persists one filter's learning
// counters so a restart can seed its Registry instead of starting cold.
func (s *Store) SaveEffectiveness(filterID string, stats learning.Stats) error {
	_, err := s.db.Exec(
		`INSERT INTO filter_effectiveness (filter_id, triggers, true_positives, false_positives, avg_response_ms, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(filter_id) DO UPDATE SET
		   triggers=excluded.triggers,
		   true_positives=excluded.true_positives,
		   false_positives=excluded.false_positives,
		   avg_response_ms=excluded.avg_response_ms,
		   updated_at=excluded.updated_at`,
		filterID, stats.Triggers, stats.TruePositives, stats.FalsePositives, stats.AvgResponseMS, time.Now().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: save effectiveness: %v", ierr.ErrInternalInvariant, err)
	}
	return nil
}

// LoadEffectiveness returns every persisted filter's Stats, keyed by
// filter id, for seeding a fresh learning.Registry at startup.
func (s *Store) LoadEffectiveness() (map[string]learning.Stats, error) {
	rows, err := s.db.Query(`SELECT filter_id, triggers, true_positives, false_positives, avg_response_ms FROM filter_effectiveness`)
	if err != nil {
		return nil, fmt.Errorf("%w: load effectiveness: %v", ierr.ErrInternalInvariant, err)
	}
	defer rows.Close()

	out := make(map[string]learning.Stats)
	for rows.Next() {
		var id string
		var st learning.Stats
		if err := rows.Scan(&id, &st.Triggers, &st.TruePositives, &st.FalsePositives, &st.AvgResponseMS); err != nil {
			return nil, fmt.Errorf("%w: scan effectiveness row: %v", ierr.ErrInternalInvariant, err)
		}
		out[id] = st
	}
	return out, rows.Err()
}
