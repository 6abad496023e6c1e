/*
Package sqlite provides a SQLite-backed implementation of the persistence interfaces.

PURPOSE:
  Implements autopilot.SnapshotStore and autopilot.AuditLog using SQLite so
  the demo survives a restart. The same patterns apply to PostgreSQL with
  minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  autopilot.SnapshotStore: one JSON document per key (upsert)
  autopilot.AuditLog:      append-only action log

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on action_logs
  - No DELETE statements on action_logs
  - Duplicate IDs are rejected by the primary key

KEY TABLES:
  snapshots:   key -> serialized store snapshot
  action_logs: executed and blocked actions, money as decimal strings

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/autopilot.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ap := autopilot.NewStore(seed,
      autopilot.WithSnapshotStore(store),
      autopilot.WithAuditLog(store))

SEE ALSO:
  - autopilot/persist.go: interface definitions
  - store/memory: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/autopilot/autopilot"
)

// Store implements the persistence interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every pooled connection to ":memory:" would be its own database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Store snapshots (one row per key)
	CREATE TABLE IF NOT EXISTS snapshots (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Action logs (append-only)
	CREATE TABLE IF NOT EXISTS action_logs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		ts TEXT NOT NULL,
		sim_day INTEGER NOT NULL,
		kind TEXT NOT NULL,
		label TEXT NOT NULL,
		detail TEXT NOT NULL,
		benefit TEXT NOT NULL,
		cost TEXT NOT NULL,
		net TEXT NOT NULL,
		status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_action_logs_sim_day
		ON action_logs(sim_day);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// SaveSnapshot upserts data under key.
func (s *Store) SaveSnapshot(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO snapshots (key, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, key, data, time.Now().UTC().Format(time.RFC3339))
	return err
}

// LoadSnapshot returns autopilot.ErrSnapshotNotFound when key has no row.
func (s *Store) LoadSnapshot(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, autopilot.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// =============================================================================
// ACTION LOGS
// =============================================================================

// AppendAction adds an entry. Append-only.
func (s *Store) AppendAction(ctx context.Context, e autopilot.ActionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO action_logs (id, ts, sim_day, kind, label, detail, benefit, cost, net, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.Ts.UTC().Format(time.RFC3339Nano),
		e.SimDay,
		string(e.Kind),
		e.Label,
		e.Detail,
		e.Benefit.String(),
		e.Cost.String(),
		e.Net.String(),
		string(e.Status),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: %s", autopilot.ErrDuplicateAction, e.ID)
	}
	return err
}

// ListActions returns up to limit entries, newest first. limit <= 0 means all.
func (s *Store) ListActions(ctx context.Context, limit int) ([]autopilot.ActionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, ts, sim_day, kind, label, detail, benefit, cost, net, status
		FROM action_logs
		ORDER BY seq DESC
		LIMIT ?
	`
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []autopilot.ActionLog
	for rows.Next() {
		var e autopilot.ActionLog
		var ts, kind, status, benefit, cost, net string
		if err := rows.Scan(&e.ID, &ts, &e.SimDay, &kind, &e.Label, &e.Detail, &benefit, &cost, &net, &status); err != nil {
			return nil, err
		}
		e.Ts, _ = time.Parse(time.RFC3339Nano, ts)
		e.Kind = autopilot.ActionKind(kind)
		e.Status = autopilot.ActionStatus(status)
		if e.Benefit, err = decimal.NewFromString(benefit); err != nil {
			return nil, fmt.Errorf("action %s benefit: %w", e.ID, err)
		}
		if e.Cost, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("action %s cost: %w", e.ID, err)
		}
		if e.Net, err = decimal.NewFromString(net); err != nil {
			return nil, fmt.Errorf("action %s net: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
