package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/autopilot/autopilot"
	"github.com/warp/autopilot/store/memory"
)

func entry(id string, day int) autopilot.ActionLog {
	return autopilot.ActionLog{
		ID:     id,
		Ts:     time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC),
		SimDay: day,
		Kind:   autopilot.KindRebalance,
		Label:  "Executed rebalancing transfers",
		Cost:   decimal.NewFromInt(2180),
		Status: autopilot.StatusExecuted,
	}
}

func TestSnapshot_SaveLoad(t *testing.T) {
	ctx := context.Background()
	m := memory.New()

	_, err := m.LoadSnapshot(ctx, "k")
	assert.ErrorIs(t, err, autopilot.ErrSnapshotNotFound)

	data := []byte(`{"running":true}`)
	require.NoError(t, m.SaveSnapshot(ctx, "k", data))
	data[0] = 'X'

	got, err := m.LoadSnapshot(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"running":true}`, string(got), "stored bytes are a copy")

	require.NoError(t, m.SaveSnapshot(ctx, "k", []byte(`{}`)))
	got, err = m.LoadSnapshot(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(got))
}

func TestActions_NewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, m.AppendAction(ctx, entry(id, i)))
	}

	all, err := m.ListActions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "a", all[2].ID)

	two, err := m.ListActions(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, []string{two[0].ID, two[1].ID})
}

func TestActions_RejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	require.NoError(t, m.AppendAction(ctx, entry("a", 0)))

	err := m.AppendAction(ctx, entry("a", 1))

	assert.ErrorIs(t, err, autopilot.ErrDuplicateAction)
}

func TestMemory_BacksStore(t *testing.T) {
	// GIVEN: a store persisting into memory
	// WHEN: a second store loads from the same memory
	// THEN: it sees the same world

	ctx := context.Background()
	m := memory.New()
	a := autopilot.NewStore(42, autopilot.WithSnapshotStore(m), autopilot.WithAuditLog(m))
	a.Step(2)
	require.NoError(t, a.Persist(ctx))

	b := autopilot.NewStore(1, autopilot.WithSnapshotStore(m))
	_, err := b.Load(ctx)

	require.NoError(t, err)
	assert.Equal(t, a.State(), b.State())
}
