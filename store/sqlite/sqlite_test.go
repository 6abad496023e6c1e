package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/autopilot/autopilot"
	"github.com/warp/autopilot/engine"
	"github.com/warp/autopilot/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func action(id string, day int, status autopilot.ActionStatus, costUSD string) autopilot.ActionLog {
	c := decimal.RequireFromString(costUSD)
	return autopilot.ActionLog{
		ID:      id,
		Ts:      time.Date(2026, 1, 5, 12, 30, 0, 250, time.UTC),
		SimDay:  day,
		Kind:    autopilot.KindRetender,
		Label:   "Executed re-tender",
		Detail:  "Shipment SHP-00001 -> K3",
		Benefit: decimal.RequireFromString("410.25"),
		Cost:    c,
		Net:     decimal.RequireFromString("410.25").Sub(c),
		Status:  status,
	}
}

func TestSnapshot_UpsertAndLoad(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, err := store.LoadSnapshot(ctx, autopilot.StorageKey)
	assert.ErrorIs(t, err, autopilot.ErrSnapshotNotFound)

	require.NoError(t, store.SaveSnapshot(ctx, autopilot.StorageKey, []byte(`{"v":1}`)))
	require.NoError(t, store.SaveSnapshot(ctx, autopilot.StorageKey, []byte(`{"v":2}`)))

	got, err := store.LoadSnapshot(ctx, autopilot.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(got))
}

func TestActions_AppendListRoundTrip(t *testing.T) {
	// GIVEN: three entries appended in order
	// WHEN: listing
	// THEN: newest first, amounts exact, timestamps preserved

	ctx := context.Background()
	store := newStore(t)
	a := action("a", 0, autopilot.StatusExecuted, "3100")
	b := action("b", 0, autopilot.StatusBlocked, "0")
	c := action("c", 1, autopilot.StatusExecuted, "2180.5")
	for _, e := range []autopilot.ActionLog{a, b, c} {
		require.NoError(t, store.AppendAction(ctx, e))
	}

	all, err := store.ListActions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "a", all[2].ID)
	assert.True(t, all[0].Cost.Equal(decimal.RequireFromString("2180.5")))
	assert.True(t, all[0].Net.Equal(c.Net))
	assert.True(t, all[0].Ts.Equal(c.Ts))
	assert.Equal(t, autopilot.KindRetender, all[0].Kind)
	assert.Equal(t, autopilot.StatusBlocked, all[1].Status)

	one, err := store.ListActions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "c", one[0].ID)
}

func TestActions_DuplicateRejected(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.AppendAction(ctx, action("a", 0, autopilot.StatusExecuted, "1")))

	err := store.AppendAction(ctx, action("a", 0, autopilot.StatusExecuted, "1"))

	assert.ErrorIs(t, err, autopilot.ErrDuplicateAction)
}

func TestSQLite_BacksStore(t *testing.T) {
	// GIVEN: an autopilot store persisting to SQLite with an audit trail
	// WHEN: executing, persisting and loading into a fresh store
	// THEN: state, logs and audit rows agree

	ctx := context.Background()
	db := newStore(t)
	a := autopilot.NewStore(42, autopilot.WithSnapshotStore(db), autopilot.WithAuditLog(db))
	a.Step(3)
	proposals := a.ProposeRebalance("")
	if len(proposals) > 0 {
		_, err := a.ExecuteRebalance(ctx, proposals)
		require.NoError(t, err)
	}
	require.NoError(t, a.Persist(ctx))

	b := autopilot.NewStore(1, autopilot.WithSnapshotStore(db))
	_, err := b.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, a.State(), b.State())
	assert.Len(t, b.Logs(), len(a.Logs()))

	audit, err := db.ListActions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, audit, len(a.Logs()))
}

func TestSQLite_AuditTrailOutlivesRegenerate(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)
	s := autopilot.NewStore(42, autopilot.WithAuditLog(db))
	var dcs []string
	for _, n := range s.State().Nodes {
		if n.Type == engine.NodeDC {
			dcs = append(dcs, n.ID)
		}
	}
	tr := engine.Transfer{FromNodeID: dcs[0], ToNodeID: dcs[1], SKUID: "S1", QtyCases: 1}
	res, err := s.ExecuteRebalance(ctx, []engine.Transfer{tr})
	require.NoError(t, err)
	require.True(t, res.OK)

	s.Regenerate(7)

	assert.Empty(t, s.Logs())
	trail, err := s.AuditTrail(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, res.Log.ID, trail[0].ID)
	assert.True(t, res.Log.Cost.Equal(trail[0].Cost))
}
