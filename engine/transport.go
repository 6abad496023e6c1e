/*
transport.go - Carrier re-tender cost model

PURPOSE:
  Ranks carrier options for one shipment by expected total cost and applies a
  carrier reassignment.

COST MODEL:
  base      = lane.miles * lane.costPerMile * fuelIndex
  lateProb  = clamp(1 - carrier.baseOnTime + scenario/mode/priority bumps, 0.03, 0.35)
  penalty   = lateProb * perDayPenalty(priority) * daysLateIfLate(priority)
  total     = base * carrier.rateAdj + penalty

  A synthetic EXPEDITE option (1.55x freight, 5% late probability) is always
  offered; applying it books the premium carrier.

SEE ALSO:
  - risk.go: uses the same per-day penalties for late-shipment value-at-risk
  - autopilot/store.go: ExecuteRetender computes options and applies on one snapshot
*/
package engine

import (
	"fmt"
	"sort"
)

// ExpediteOptionID is the carrier id of the synthetic expedite option.
const ExpediteOptionID = "EXPEDITE"

const (
	protectPenaltyPerDay  = 4200.0
	standardPenaltyPerDay = 1600.0
	protectDaysLate       = 1.3
	standardDaysLate      = 1.1

	disruptionLateBump = 0.08
	intermodalLateBump = 0.03
	protectLateBump    = 0.01
	minLateProb        = 0.03
	maxLateProb        = 0.35

	expediteMultiplier = 1.55
	expediteLateProb   = 0.05

	// MaxRetenderOptions is the number of options returned.
	MaxRetenderOptions = 5
)

// PenaltyPerDay is the service penalty per late day for a priority tier.
func PenaltyPerDay(p Priority) float64 {
	if p == PriorityProtect {
		return protectPenaltyPerDay
	}
	return standardPenaltyPerDay
}

func daysLateIfLate(p Priority) float64 {
	if p == PriorityProtect {
		return protectDaysLate
	}
	return standardDaysLate
}

// RetenderOption is one ranked carrier choice.
type RetenderOption struct {
	CarrierID   string  `json:"carrierId"`
	ExpCost     float64 `json:"expCost"`
	ExpLateProb float64 `json:"expLateProb"`
	ExpPenalty  float64 `json:"expPenalty"`
	ExpTotal    float64 `json:"expTotal"`
	Rationale   string  `json:"rationale"`
}

// BaseFreight is the fuel-adjusted cost of moving a load along lane.
func BaseFreight(state *DemoState, lane Lane) float64 {
	return lane.Miles * lane.BaseCostPerMile * state.FuelIndex
}

// LateProbability estimates the chance a carrier delivers late on lane.
func LateProbability(state *DemoState, c Carrier, lane Lane, p Priority) float64 {
	lp := 1 - c.BaseOnTime
	if state.Scenario.CarrierDisruption {
		lp += disruptionLateBump
	}
	if lane.Mode == ModeIntermodal {
		lp += intermodalLateBump
	}
	if p == PriorityProtect {
		lp += protectLateBump
	}
	return clamp(lp, minLateProb, maxLateProb)
}

func findShipment(state *DemoState, id string) (int, bool) {
	for i, sh := range state.Shipments {
		if sh.ID == id {
			return i, true
		}
	}
	return -1, false
}

// RetenderOptions returns the cheapest options by expected total cost.
func RetenderOptions(state *DemoState, shipmentID string) ([]RetenderOption, error) {
	i, ok := findShipment(state, shipmentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrShipmentNotFound, shipmentID)
	}
	sh := state.Shipments[i]
	idx := newIndex(state)
	lane, ok := idx.lanes[sh.LaneID]
	if !ok {
		return nil, fmt.Errorf("shipment %s: %w: %s", sh.ID, ErrLaneNotFound, sh.LaneID)
	}

	base := BaseFreight(state, lane)
	perDay := PenaltyPerDay(sh.Priority)
	daysLate := daysLateIfLate(sh.Priority)

	opts := make([]RetenderOption, 0, len(state.Carriers)+1)
	for _, c := range state.Carriers {
		lp := LateProbability(state, c, lane, sh.Priority)
		cost := base * c.BaseRateAdj
		penalty := lp * perDay * daysLate
		opts = append(opts, RetenderOption{
			CarrierID:   c.ID,
			ExpCost:     round(cost),
			ExpLateProb: lp,
			ExpPenalty:  round(penalty),
			ExpTotal:    round(cost + penalty),
			Rationale:   fmt.Sprintf("Expected total = freight (%.0f) + risk-adjusted penalty (%.0f).", cost, penalty),
		})
	}

	expCost := base * expediteMultiplier
	expPenalty := expediteLateProb * perDay
	opts = append(opts, RetenderOption{
		CarrierID:   ExpediteOptionID,
		ExpCost:     round(expCost),
		ExpLateProb: expediteLateProb,
		ExpPenalty:  round(expPenalty),
		ExpTotal:    round(expCost + expPenalty),
		Rationale:   "Use premium expedite for a protected subset; caps OTIF risk at higher freight cost.",
	})

	sort.SliceStable(opts, func(a, b int) bool { return opts[a].ExpTotal < opts[b].ExpTotal })
	if len(opts) > MaxRetenderOptions {
		opts = opts[:MaxRetenderOptions]
	}
	return opts, nil
}

// ApplyRetender books carrierID on the shipment, clears lateness and puts it
// back in transit. EXPEDITE books the premium carrier.
func ApplyRetender(state *DemoState, shipmentID, carrierID string) (*DemoState, error) {
	i, ok := findShipment(state, shipmentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrShipmentNotFound, shipmentID)
	}
	if state.Shipments[i].Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s", ErrShipmentDelivered, shipmentID)
	}

	target := carrierID
	if carrierID == ExpediteOptionID {
		target = PremiumCarrierID
	}
	if _, ok := newIndex(state).carriers[target]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrCarrierNotFound, carrierID)
	}

	next := state.Clone()
	sh := &next.Shipments[i]
	if sh.Status == StatusPlanned {
		// leaving PLANNED here, so the stepper will not credit in-transit
		creditInTransit(next, *sh)
	}
	sh.CarrierID = target
	sh.LateByDays = 0
	sh.Status = StatusInTransit
	return next, nil
}
