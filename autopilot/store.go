/*
store.go - Policy/Action Store commands

PURPOSE:
  Owns the live DemoState and serializes every command behind one mutex.
  The spend-cap check and the state transition for an execute command run
  under the same lock against the same snapshot, so concurrent callers
  (HTTP handlers, the live runner) cannot both pass the check.

COMMAND FLOW:
  1. Lock
  2. Compute the next state with a pure engine call
  3. For executions: check spend cap, append the audit entry
  4. Swap state / logs, build the Change
  5. Unlock, then notify subscribers

  Subscribers are called without the lock held, so they may call back
  into the store (e.g. Persist).

SEE ALSO:
  - types.go: ActionLog, Snapshot, ExecutionResult
  - persist.go: Persist / Load
  - api/scheduler.go: drives Step and AutoExecute on a ticker
*/
package autopilot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/autopilot/engine"
	"github.com/warp/autopilot/logger"
)

// ProposalCap is the number of candidate transfers a proposal returns.
const ProposalCap = 18

// Store is the application-state service.
type Store struct {
	mu      sync.Mutex
	state   *engine.DemoState
	running bool
	logs    []ActionLog
	policy  Policy
	guided  GuidedState

	snapshots SnapshotStore
	audit     AuditLog
	log       *logger.Logger
	now       func() time.Time
	newID     func() string

	subMu   sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

type Option func(*Store)

// WithSnapshotStore enables Persist / Load.
func WithSnapshotStore(ss SnapshotStore) Option {
	return func(s *Store) { s.snapshots = ss }
}

// WithAuditLog mirrors every action entry into an append-only log.
func WithAuditLog(a AuditLog) Option {
	return func(s *Store) { s.audit = a }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l.With("component", "autopilot")
		}
	}
}

// WithClock overrides the wall clock used for log timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs overrides log ID generation.
func WithIDs(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func WithPolicy(p Policy) Option {
	return func(s *Store) { s.policy = p }
}

// NewStore creates a store holding a freshly generated world.
func NewStore(seed uint32, opts ...Option) *Store {
	s := &Store{
		state:  engine.Generate(seed),
		policy: DefaultPolicy(),
		log:    logger.Nop(),
		now:    time.Now,
		newID:  uuid.NewString,
		subs:   make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// READS
// =============================================================================

// State returns a copy of the current state.
func (s *Store) State() *engine.DemoState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

func (s *Store) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Store) Policy() Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy
}

func (s *Store) Guided() GuidedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guided
}

// Logs returns the audit trail, newest first.
func (s *Store) Logs() []ActionLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ActionLog(nil), s.logs...)
}

// SpendToday is the summed cost of EXECUTED actions on the current sim day.
func (s *Store) SpendToday() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spendTodayLocked()
}

// Headroom is the spend still allowed today (never negative).
func (s *Store) Headroom() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decimal.Max(decimal.Zero, s.policy.DailyActionSpendCap.Sub(s.spendTodayLocked()))
}

func (s *Store) spendTodayLocked() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.logs {
		if l.Status == StatusExecuted && l.SimDay == s.state.Today {
			total = total.Add(l.Cost)
		}
	}
	return total
}

// Snapshot returns the persisted layout of the store.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:   s.state.Clone(),
		Running: s.running,
		Logs:    append([]ActionLog(nil), s.logs...),
		Policy:  s.policy,
		Guided:  s.guided,
	}
}

// =============================================================================
// STATE COMMANDS
// =============================================================================

// Regenerate replaces the world and clears logs, live mode and the tour.
// The policy is kept.
func (s *Store) Regenerate(seed uint32) Change {
	s.mu.Lock()
	s.state = engine.Generate(seed)
	s.logs = nil
	s.running = false
	s.guided = GuidedState{}
	c := s.changeLocked(FacetState, FacetLogs, FacetRunning, FacetGuided)
	s.mu.Unlock()

	s.log.Info("world regenerated", "seed", seed)
	s.publish(c)
	return c
}

// ToggleScenario flips one named scenario flag.
func (s *Store) ToggleScenario(name string) (Change, error) {
	s.mu.Lock()
	t, err := s.state.Scenario.Toggle(name)
	if err != nil {
		s.mu.Unlock()
		return Change{}, err
	}
	s.state = s.state.WithScenario(t)
	c := s.changeLocked(FacetState)
	s.mu.Unlock()

	s.log.Info("scenario toggled", "scenario", name, "active", t.Active())
	s.publish(c)
	return c, nil
}

// SetScenario replaces every scenario flag at once.
func (s *Store) SetScenario(t engine.ScenarioToggles) Change {
	s.mu.Lock()
	s.state = s.state.WithScenario(t)
	c := s.changeLocked(FacetState)
	s.mu.Unlock()

	s.publish(c)
	return c
}

// Step advances the simulation by n days (minimum 1).
func (s *Store) Step(n int) Change {
	s.mu.Lock()
	s.state = engine.Step(s.state, n)
	day := s.state.Today
	c := s.changeLocked(FacetState)
	s.mu.Unlock()

	s.log.Debug("stepped", "days", n, "today", day)
	s.publish(c)
	return c
}

func (s *Store) SetRunning(on bool) Change {
	s.mu.Lock()
	s.running = on
	c := s.changeLocked(FacetRunning)
	s.mu.Unlock()

	s.publish(c)
	return c
}

// SetPolicy merges patch into the policy after validating the result.
func (s *Store) SetPolicy(patch PolicyPatch) (Change, error) {
	s.mu.Lock()
	next := patch.Apply(s.policy)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return Change{}, err
	}
	s.policy = next
	c := s.changeLocked(FacetPolicy)
	s.mu.Unlock()

	s.log.Info("policy updated",
		"cap", next.DailyActionSpendCap.String(),
		"maxTransfers", next.MaxTransfersPerExec,
		"approvalOver", next.RequireApprovalOver.String(),
		"autoExecute", next.AllowAutoExecute)
	s.publish(c)
	return c, nil
}

// Restore replaces the store contents with snap after validating it.
func (s *Store) Restore(snap Snapshot) (Change, error) {
	if snap.State == nil {
		return Change{}, fmt.Errorf("%w: missing state", ErrInvalidSnapshot)
	}
	if err := snap.State.Validate(); err != nil {
		return Change{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if err := snap.Policy.Validate(); err != nil {
		return Change{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	s.mu.Lock()
	s.state = snap.State.Clone()
	s.running = snap.Running
	s.logs = append([]ActionLog(nil), snap.Logs...)
	s.policy = snap.Policy
	s.guided = snap.Guided
	c := s.changeLocked(FacetState, FacetRunning, FacetLogs, FacetPolicy, FacetGuided)
	s.mu.Unlock()

	s.publish(c)
	return c, nil
}

// =============================================================================
// GUIDED TOUR
// =============================================================================

func (s *Store) StartGuided() Change { return s.setGuided(func(GuidedState) GuidedState { return GuidedState{Enabled: true} }) }
func (s *Store) StopGuided() Change  { return s.setGuided(func(GuidedState) GuidedState { return GuidedState{} }) }

// NextGuided advances the tour, stopping at the last step.
func (s *Store) NextGuided() Change {
	return s.setGuided(func(g GuidedState) GuidedState {
		g.StepIndex = min(g.StepIndex+1, len(GuidedSteps)-1)
		return g
	})
}

// PrevGuided moves the tour back, stopping at the first step.
func (s *Store) PrevGuided() Change {
	return s.setGuided(func(g GuidedState) GuidedState {
		g.StepIndex = max(0, g.StepIndex-1)
		return g
	})
}

func (s *Store) setGuided(fn func(GuidedState) GuidedState) Change {
	s.mu.Lock()
	s.guided = fn(s.guided)
	c := s.changeLocked(FacetGuided)
	s.mu.Unlock()

	s.publish(c)
	return c
}

// =============================================================================
// PROPOSALS
// =============================================================================

// ProposeRebalance returns up to ProposalCap candidate transfers against the
// current state. It does not change the store.
func (s *Store) ProposeRebalance(onlySKUID string) []engine.Transfer {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	return engine.ProposeRebalancing(state, ProposalCap, onlySKUID)
}

// RetenderOptions returns the ranked carrier options for a shipment.
func (s *Store) RetenderOptions(shipmentID string) ([]engine.RetenderOption, error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	return engine.RetenderOptions(state, shipmentID)
}

// =============================================================================
// EXECUTIONS
// =============================================================================

// ExecuteRebalance applies the first MaxTransfersPerExec transfers if their
// summed cost fits under today's spend cap. Each transfer is repriced against
// the current state first; caller-supplied amounts are ignored.
func (s *Store) ExecuteRebalance(ctx context.Context, transfers []engine.Transfer) (ExecutionResult, error) {
	return s.executeRebalance(ctx, transfers, "Executed rebalancing transfers")
}

func (s *Store) executeRebalance(ctx context.Context, transfers []engine.Transfer, label string) (ExecutionResult, error) {
	s.mu.Lock()
	res, err := s.executeRebalanceLocked(ctx, transfers, label)
	s.mu.Unlock()

	if err == nil {
		s.publish(res.Change)
	}
	return res, err
}

func (s *Store) executeRebalanceLocked(ctx context.Context, transfers []engine.Transfer, label string) (ExecutionResult, error) {
	submitted := transfers[:min(len(transfers), s.policy.MaxTransfersPerExec)]
	if len(submitted) == 0 {
		return ExecutionResult{}, ErrNoTransfers
	}

	// Amounts on submitted transfers are never trusted.
	batch := make([]engine.Transfer, 0, len(submitted))
	for i, t := range submitted {
		priced, err := engine.PriceTransfer(s.state, t)
		if err != nil {
			return ExecutionResult{}, fmt.Errorf("transfer %d: %w", i, err)
		}
		batch = append(batch, priced)
	}

	// Apply is pure; only moves that actually happen are charged.
	next, report := engine.ApplyTransfers(s.state, batch)
	if len(report.Moves) == 0 {
		return ExecutionResult{}, fmt.Errorf("%w: nothing left to move", ErrNoTransfers)
	}
	cost, benefit := decimal.Zero, decimal.Zero
	for _, m := range report.Moves {
		cost = cost.Add(decimal.NewFromFloat(m.Transfer.EstTransferCost))
		value := decimal.NewFromFloat(m.Transfer.EstValue)
		if m.MovedCases < m.Transfer.QtyCases {
			value = value.Mul(decimal.NewFromInt(int64(m.MovedCases))).Div(decimal.NewFromInt(int64(m.Transfer.QtyCases)))
		}
		benefit = benefit.Add(value)
	}
	net := benefit.Sub(cost)

	if blocked, ok, err := s.checkCapLocked(ctx, KindRebalance, "Blocked: rebalancing (policy cap)", cost); !ok || err != nil {
		return blocked, err
	}

	entry := s.newEntryLocked(KindRebalance, StatusExecuted, label,
		fmt.Sprintf("%d transfers, %d cases moved", len(report.Moves), report.MovedCases()),
		benefit, cost, net)
	if err := s.recordLocked(ctx, entry); err != nil {
		return ExecutionResult{}, err
	}
	s.state = next

	s.log.Info("rebalance executed",
		"transfers", len(report.Moves), "skipped", len(report.Skipped),
		"cost", cost.StringFixed(0), "net", net.StringFixed(0))

	return ExecutionResult{
		OK:            true,
		NeedsApproval: cost.GreaterThan(s.policy.RequireApprovalOver),
		Log:           entry,
		Moves:         report.Moves,
		CreatedLanes:  report.CreatedLanes,
		Change:        s.changeLocked(FacetState, FacetLogs),
	}, nil
}

// ExecuteRetender books carrierID on the shipment if the option's freight
// fits under today's spend cap. Options and apply use the same snapshot.
func (s *Store) ExecuteRetender(ctx context.Context, shipmentID, carrierID string) (ExecutionResult, error) {
	s.mu.Lock()
	res, err := s.executeRetenderLocked(ctx, shipmentID, carrierID)
	s.mu.Unlock()

	if err == nil {
		s.publish(res.Change)
	}
	return res, err
}

func (s *Store) executeRetenderLocked(ctx context.Context, shipmentID, carrierID string) (ExecutionResult, error) {
	opts, err := engine.RetenderOptions(s.state, shipmentID)
	if err != nil {
		return ExecutionResult{}, err
	}
	var selected *engine.RetenderOption
	bestPenalty := opts[0].ExpPenalty
	for i := range opts {
		if opts[i].CarrierID == carrierID {
			selected = &opts[i]
		}
		bestPenalty = min(bestPenalty, opts[i].ExpPenalty)
	}
	if selected == nil {
		return ExecutionResult{}, fmt.Errorf("%w: %s for %s", ErrCarrierNotOffered, carrierID, shipmentID)
	}

	// Validate the transition before the cap check so a delivered shipment
	// is an error rather than a BLOCKED entry.
	next, err := engine.ApplyRetender(s.state, shipmentID, carrierID)
	if err != nil {
		return ExecutionResult{}, err
	}

	cost := decimal.NewFromFloat(selected.ExpCost)
	benefit := decimal.NewFromFloat(max(0, selected.ExpPenalty-bestPenalty))
	net := benefit.Sub(cost)

	if blocked, ok, err := s.checkCapLocked(ctx, KindRetender, "Blocked: re-tender (policy cap)", cost); !ok || err != nil {
		return blocked, err
	}

	entry := s.newEntryLocked(KindRetender, StatusExecuted, "Executed re-tender",
		fmt.Sprintf("Shipment %s -> %s", shipmentID, carrierID), benefit, cost, net)
	if err := s.recordLocked(ctx, entry); err != nil {
		return ExecutionResult{}, err
	}
	s.state = next

	s.log.Info("re-tender executed", "shipment", shipmentID, "carrier", carrierID, "cost", cost.StringFixed(0))

	return ExecutionResult{
		OK:            true,
		NeedsApproval: cost.GreaterThan(s.policy.RequireApprovalOver),
		Log:           entry,
		Change:        s.changeLocked(FacetState, FacetLogs),
	}, nil
}

// AutoExecute runs the top net-positive rebalancing batch when the policy
// allows it and the batch cost stays within RequireApprovalOver. executed is
// false when nothing qualified.
func (s *Store) AutoExecute(ctx context.Context) (res ExecutionResult, executed bool, err error) {
	s.mu.Lock()
	pol := s.policy
	state := s.state
	s.mu.Unlock()

	if !pol.AllowAutoExecute {
		return ExecutionResult{}, false, nil
	}

	var batch []engine.Transfer
	cost := decimal.Zero
	for _, t := range engine.ProposeRebalancing(state, ProposalCap, "") {
		if t.NetValue <= 0 || len(batch) == pol.MaxTransfersPerExec {
			break
		}
		batch = append(batch, t)
		cost = cost.Add(decimal.NewFromFloat(t.EstTransferCost))
	}
	if len(batch) == 0 {
		return ExecutionResult{}, false, nil
	}
	if cost.GreaterThan(pol.RequireApprovalOver) {
		s.log.Debug("auto-execute skipped, needs approval", "cost", cost.StringFixed(0))
		return ExecutionResult{NeedsApproval: true, Reason: "batch cost exceeds approval threshold"}, false, nil
	}

	res, err = s.executeRebalance(ctx, batch, "Auto-executed rebalancing transfers")
	return res, err == nil && res.OK, err
}

// checkCapLocked enforces spent + cost <= cap. On rejection it records a
// BLOCKED entry and returns ok=false.
func (s *Store) checkCapLocked(ctx context.Context, kind ActionKind, label string, cost decimal.Decimal) (ExecutionResult, bool, error) {
	spent := s.spendTodayLocked()
	if spent.Add(cost).LessThanOrEqual(s.policy.DailyActionSpendCap) {
		return ExecutionResult{}, true, nil
	}

	remaining := s.policy.DailyActionSpendCap.Sub(spent)
	entry := s.newEntryLocked(kind, StatusBlocked, label,
		fmt.Sprintf("Would spend %s (cap remaining %s)", formatMoney(cost), formatMoney(remaining)),
		decimal.Zero, decimal.Zero, decimal.Zero)
	if err := s.recordLocked(ctx, entry); err != nil {
		return ExecutionResult{}, false, err
	}

	s.log.Warn("action blocked by spend cap",
		"kind", kind, "cost", cost.StringFixed(0), "remaining", remaining.StringFixed(0))

	return ExecutionResult{
		OK:     false,
		Reason: ReasonSpendCap,
		Log:    entry,
		Change: s.changeLocked(FacetLogs),
	}, false, nil
}

func (s *Store) newEntryLocked(kind ActionKind, status ActionStatus, label, detail string, benefit, cost, net decimal.Decimal) ActionLog {
	return ActionLog{
		ID:      s.newID(),
		Ts:      s.now().UTC(),
		SimDay:  s.state.Today,
		Kind:    kind,
		Label:   label,
		Detail:  detail,
		Benefit: benefit.Round(2),
		Cost:    cost.Round(2),
		Net:     net.Round(2),
		Status:  status,
	}
}

// recordLocked appends to the audit log (if any) and then to memory, newest
// first. A failed audit write leaves the store unchanged.
func (s *Store) recordLocked(ctx context.Context, entry ActionLog) error {
	if s.audit != nil {
		if err := s.audit.AppendAction(ctx, entry); err != nil {
			return fmt.Errorf("append audit entry: %w", err)
		}
	}
	logs := make([]ActionLog, 0, min(len(s.logs)+1, MaxLogs))
	logs = append(logs, entry)
	logs = append(logs, s.logs[:min(len(s.logs), MaxLogs-1)]...)
	s.logs = logs
	return nil
}

// =============================================================================
// SUBSCRIBERS
// =============================================================================

// Subscribe registers fn for every change. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) changeLocked(facets ...Facet) Change {
	return Change{State: s.state, Facets: facets}
}

func (s *Store) publish(c Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// formatMoney renders whole dollars with thousands separators.
func formatMoney(d decimal.Decimal) string {
	n := d.Round(0).IntPart()
	sign := ""
	if n < 0 {
		sign, n = "-", -n
	}
	digits := fmt.Sprintf("%d", n)
	out := make([]byte, 0, len(digits)+len(digits)/3)
	for i := range len(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, digits[i])
	}
	return sign + "$" + string(out)
}
