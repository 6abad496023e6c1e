// Package memory provides in-memory snapshot and audit stores.
package memory

import (
	"context"
	"sync"

	"github.com/warp/autopilot/autopilot"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
	actions   []autopilot.ActionLog // append order
	seen      map[string]bool
}

func New() *Memory {
	return &Memory{
		snapshots: make(map[string][]byte),
		seen:      make(map[string]bool),
	}
}

// SaveSnapshot stores a copy of data under key, replacing any previous value.
func (m *Memory) SaveSnapshot(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[key] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) LoadSnapshot(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.snapshots[key]
	if !ok {
		return nil, autopilot.ErrSnapshotNotFound
	}
	return append([]byte(nil), data...), nil
}

// AppendAction adds an entry. Append-only.
func (m *Memory) AppendAction(_ context.Context, entry autopilot.ActionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[entry.ID] {
		return autopilot.ErrDuplicateAction
	}
	m.seen[entry.ID] = true
	m.actions = append(m.actions, entry)
	return nil
}

// ListActions returns up to limit entries, newest first.
func (m *Memory) ListActions(_ context.Context, limit int) ([]autopilot.ActionLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.actions)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]autopilot.ActionLog, 0, n)
	for i := len(m.actions) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.actions[i])
	}
	return out, nil
}
