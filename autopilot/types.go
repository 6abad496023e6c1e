/*
Package autopilot is the Policy/Action Store: the single owner of the live
DemoState.

PURPOSE:
  Wraps the pure engine with command methods (regenerate, step, execute
  rebalance / re-tender, set policy), enforces the daily spend cap, keeps
  the audit trail, and exposes an explicit snapshot boundary for
  persistence. Consumers observe changes through Subscribe.

KEY CONCEPTS IN THIS FILE (types.go):
  - ActionLog: one audit entry, EXECUTED or BLOCKED
  - Facet: which part of the store a command changed
  - Snapshot: the persisted layout {state, running, logs, policy, guided}
  - ExecutionResult: outcome of an execute command

SPEND CAP:
  An action costing c is applied iff spentToday + c <= cap. Otherwise the
  state is unchanged and a BLOCKED entry with zero amounts is logged.
  Spend today is the summed cost of EXECUTED entries for the current sim day.

SEE ALSO:
  - store.go: command methods
  - persist.go: SnapshotStore / AuditLog boundary
*/
package autopilot

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/autopilot/engine"
)

// StorageKey is the key the snapshot is persisted under.
const StorageKey = "autopilot-demo-v3"

// MaxLogs bounds the in-memory audit trail (newest first).
const MaxLogs = 500

type ActionStatus string

const (
	StatusExecuted ActionStatus = "EXECUTED"
	StatusBlocked  ActionStatus = "BLOCKED"
)

type ActionKind string

const (
	KindRebalance ActionKind = "REBALANCE"
	KindRetender  ActionKind = "RETENDER"
)

// ActionLog is one audit entry.
type ActionLog struct {
	ID      string          `json:"id"`
	Ts      time.Time       `json:"ts"`
	SimDay  int             `json:"simDay"`
	Kind    ActionKind      `json:"kind"`
	Label   string          `json:"label"`
	Detail  string          `json:"detail"`
	Benefit decimal.Decimal `json:"benefit"`
	Cost    decimal.Decimal `json:"cost"`
	Net     decimal.Decimal `json:"net"`
	Status  ActionStatus    `json:"status"`
}

// GuidedState is the position in the guided tour.
type GuidedState struct {
	Enabled   bool `json:"enabled"`
	StepIndex int  `json:"stepIndex"`
}

type Facet string

const (
	FacetState   Facet = "state"
	FacetRunning Facet = "running"
	FacetLogs    Facet = "logs"
	FacetPolicy  Facet = "policy"
	FacetGuided  Facet = "guided"
)

// Change is what a mutating command returns and subscribers receive.
type Change struct {
	State  *engine.DemoState `json:"state"`
	Facets []Facet           `json:"facets"`
}

// Has reports whether f changed.
func (c Change) Has(f Facet) bool {
	for _, x := range c.Facets {
		if x == f {
			return true
		}
	}
	return false
}

// Snapshot is the persisted store layout.
type Snapshot struct {
	State   *engine.DemoState `json:"state"`
	Running bool              `json:"running"`
	Logs    []ActionLog       `json:"logs"`
	Policy  Policy            `json:"policy"`
	Guided  GuidedState       `json:"guided"`
}

// ExecutionResult is the outcome of an execute command. OK=false with a
// Reason is a business rejection, not an error.
type ExecutionResult struct {
	OK            bool                 `json:"ok"`
	Reason        string               `json:"reason,omitempty"`
	NeedsApproval bool                 `json:"needsApproval"`
	Log           ActionLog            `json:"log"`
	Moves         []engine.AppliedMove `json:"moves,omitempty"`
	CreatedLanes  []engine.Lane        `json:"createdLanes,omitempty"`
	Change        Change               `json:"-"`
}

// ReasonSpendCap is the rejection reason for a blocked action.
const ReasonSpendCap = "Daily spend cap exceeded"
