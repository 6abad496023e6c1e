package autopilot

import (
	"context"
	"encoding/json"
	"fmt"
)

// =============================================================================
// PERSISTENCE INTERFACES
// =============================================================================

// SnapshotStore saves and loads serialized store snapshots by key.
// LoadSnapshot returns ErrSnapshotNotFound when nothing is stored.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, key string, data []byte) error
	LoadSnapshot(ctx context.Context, key string) ([]byte, error)
}

// AuditLog is an append-only record of executed and blocked actions.
type AuditLog interface {
	AppendAction(ctx context.Context, entry ActionLog) error
	// ListActions returns up to limit entries, newest first. limit <= 0 means all.
	ListActions(ctx context.Context, limit int) ([]ActionLog, error)
}

// =============================================================================
// SNAPSHOT BOUNDARY
// =============================================================================

// Persist writes the current snapshot under StorageKey.
func (s *Store) Persist(ctx context.Context) error {
	if s.snapshots == nil {
		return ErrNoSnapshotStore
	}
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.snapshots.SaveSnapshot(ctx, StorageKey, data); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.log.Debug("snapshot persisted", "key", StorageKey, "bytes", len(data))
	return nil
}

// Load replaces the store contents with the persisted snapshot. It returns
// an error wrapping ErrSnapshotNotFound when nothing was saved.
func (s *Store) Load(ctx context.Context) (Change, error) {
	if s.snapshots == nil {
		return Change{}, ErrNoSnapshotStore
	}
	data, err := s.snapshots.LoadSnapshot(ctx, StorageKey)
	if err != nil {
		return Change{}, fmt.Errorf("load snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Change{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return s.Restore(snap)
}

// AuditTrail reads up to limit entries from the audit log, newest first.
// Unlike Logs it survives Regenerate and the MaxLogs window. limit <= 0
// means all. Without an audit log it falls back to the in-memory entries.
func (s *Store) AuditTrail(ctx context.Context, limit int) ([]ActionLog, error) {
	if s.audit == nil {
		logs := s.Logs()
		if limit > 0 && limit < len(logs) {
			logs = logs[:limit]
		}
		return logs, nil
	}
	logs, err := s.audit.ListActions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return logs, nil
}
