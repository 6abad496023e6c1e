/*
inventory.go - Days-of-cover rebalancing across DCs

PURPOSE:
  Proposes cross-DC transfers that move surplus cover to deficit nodes and
  applies accepted transfers to state.

ALGORITHM (greedy, not an optimizer):
  For each SKU:
  1. DOC at every DC = (onHand + inTransit) / daily forecast
  2. Donor:    surplus = floor((doc - target - 8) * daily) > 60
     Receiver: deficit = floor((target - doc) * daily)     > 60
  3. Pair largest donor with largest receiver, moving
     min(surplus, deficit, 900) cases; advance a side once its remainder < 60
  4. Price each move (lane economics or a flat proxy) and value it at a
     conservative 25% of margin
  Candidates are ranked by net value = benefit - cost.

  A transportation-problem solver could replace step 3 behind the same
  ProposeRebalancing contract.

SEE ALSO:
  - demand.go: forecast feeding DOC
  - autopilot/store.go: ExecuteRebalance enforces the spend cap before ApplyTransfers
*/
package engine

import (
	"fmt"
	"math"
	"sort"
)

const (
	surplusBufferDays  = 8
	minMoveCases       = 60
	maxMoveCases       = 900
	handlingFee        = 180.0
	proxyCostPerMile   = 2.25
	benefitMarginShare = 0.25

	// ShipmentRetention bounds the shipment list after applying transfers.
	ShipmentRetention = 120
)

// Transfer is a proposed cross-DC move.
type Transfer struct {
	FromNodeID      string  `json:"fromNodeId"`
	ToNodeID        string  `json:"toNodeId"`
	SKUID           string  `json:"skuId"`
	QtyCases        int     `json:"qtyCases"`
	Rationale       string  `json:"rationale"`
	EstValue        float64 `json:"estValue"`        // gross benefit ($)
	EstTransferCost float64 `json:"estTransferCost"` // $ to move
	EstTransitDays  int     `json:"estTransitDays"`
	NetValue        float64 `json:"netValue"`
}

// transferETADays is the transit estimate used for rebalancing moves.
func transferETADays(l Lane) int {
	speed := 520.0
	if l.Mode == ModeIntermodal {
		speed = 430
	}
	return max(1, roundInt(l.Miles/speed))
}

type coverRow struct {
	node   Node
	doc    float64
	amount int // surplus or deficit still to place
}

// ProposeRebalancing returns up to maxTransfers candidate transfers ranked by
// net value. An empty onlySKUID considers every SKU.
func ProposeRebalancing(state *DemoState, maxTransfers int, onlySKUID string) []Transfer {
	idx := newIndex(state)
	pos := inventoryIndex(state.Inventory)
	fc := newForecaster(state.DemandHistory)
	dcs := state.nodesOfType(NodeDC)

	var transfers []Transfer
	for _, sku := range state.SKUs {
		if onlySKUID != "" && sku.ID != onlySKUID {
			continue
		}

		var donors, receivers []*coverRow
		for _, dc := range dcs {
			i, ok := pos[invKey{dc.ID, sku.ID}]
			if !ok {
				continue
			}
			inv := state.Inventory[i]
			f := fc.get(dc.Region, sku.ID)
			daily := f.Daily()
			doc := DaysOfCover(inv, f)
			target := float64(inv.TargetDaysCover)

			surplus := max(0, int(math.Floor((doc-(target+surplusBufferDays))*daily)))
			deficit := max(0, int(math.Floor((target-doc)*daily)))
			if surplus > minMoveCases {
				donors = append(donors, &coverRow{node: dc, doc: doc, amount: surplus})
			}
			if deficit > minMoveCases {
				receivers = append(receivers, &coverRow{node: dc, doc: doc, amount: deficit})
			}
		}

		sort.SliceStable(donors, func(i, j int) bool { return donors[i].amount > donors[j].amount })
		sort.SliceStable(receivers, func(i, j int) bool { return receivers[i].amount > receivers[j].amount })

		di, ri := 0, 0
		for di < len(donors) && ri < len(receivers) && len(transfers) < maxTransfers {
			d, r := donors[di], receivers[ri]
			qty := min(d.amount, r.amount, maxMoveCases)
			if qty <= 0 {
				break
			}

			miles, transit, cost := transferEconomics(state, idx, d.node, r.node)
			value := round(float64(qty) * sku.MarginPerCase * benefitMarginShare)

			transfers = append(transfers, Transfer{
				FromNodeID:      d.node.ID,
				ToNodeID:        r.node.ID,
				SKUID:           sku.ID,
				QtyCases:        qty,
				EstTransitDays:  transit,
				EstTransferCost: cost,
				EstValue:        value,
				NetValue:        round(value - cost),
				Rationale: fmt.Sprintf("Move surplus cover (donor DOC %.1f) to deficit node (receiver DOC %.1f) over %.0f mi.",
					d.doc, r.doc, miles),
			})

			d.amount -= qty
			r.amount -= qty
			if d.amount < minMoveCases {
				di++
			}
			if r.amount < minMoveCases {
				ri++
			}
		}
	}

	sort.SliceStable(transfers, func(i, j int) bool { return transfers[i].NetValue > transfers[j].NetValue })
	if len(transfers) > maxTransfers {
		transfers = transfers[:maxTransfers]
	}
	return transfers
}

// transferEconomics prices a move between two DCs. An existing lane supplies
// miles, transit and cost-per-mile; otherwise great-circle distance and a
// flat proxy rate are used.
func transferEconomics(state *DemoState, idx *index, from, to Node) (miles float64, transit int, cost float64) {
	if lane, ok := idx.lanePair[pairKey{from.ID, to.ID}]; ok {
		return lane.Miles, transferETADays(lane),
			round(lane.Miles*lane.BaseCostPerMile*state.FuelIndex + handlingFee)
	}
	miles = HaversineMiles(from, to)
	return miles, max(1, roundInt(miles/520)), round(miles*proxyCostPerMile + handlingFee)
}

// PriceTransfer checks a caller-supplied transfer against state and returns
// it with quantity and economics recomputed: quantity is clamped to the
// per-move cap and the donor's on-hand, cost comes from lane economics and
// value from margin. Any amounts on t are ignored.
func PriceTransfer(state *DemoState, t Transfer) (Transfer, error) {
	if t.QtyCases <= 0 {
		return Transfer{}, fmt.Errorf("%w: quantity %d must be positive", ErrInvalidTransfer, t.QtyCases)
	}
	if t.FromNodeID == t.ToNodeID {
		return Transfer{}, fmt.Errorf("%w: origin and destination are both %s", ErrInvalidTransfer, t.FromNodeID)
	}

	idx := newIndex(state)
	from, ok := idx.nodes[t.FromNodeID]
	if !ok || from.Type != NodeDC {
		return Transfer{}, fmt.Errorf("%w: %s is not a DC", ErrInvalidTransfer, t.FromNodeID)
	}
	to, ok := idx.nodes[t.ToNodeID]
	if !ok || to.Type != NodeDC {
		return Transfer{}, fmt.Errorf("%w: %s is not a DC", ErrInvalidTransfer, t.ToNodeID)
	}
	sku, ok := idx.skus[t.SKUID]
	if !ok {
		return Transfer{}, fmt.Errorf("%w: unknown sku %s", ErrInvalidTransfer, t.SKUID)
	}

	pos := inventoryIndex(state.Inventory)
	fi, ok := pos[invKey{from.ID, sku.ID}]
	if !ok {
		return Transfer{}, fmt.Errorf("%w: no %s position at %s", ErrInvalidTransfer, sku.ID, from.ID)
	}
	if _, ok := pos[invKey{to.ID, sku.ID}]; !ok {
		return Transfer{}, fmt.Errorf("%w: no %s position at %s", ErrInvalidTransfer, sku.ID, to.ID)
	}
	qty := min(t.QtyCases, maxMoveCases, state.Inventory[fi].OnHand)
	if qty <= 0 {
		return Transfer{}, fmt.Errorf("%w: %s has no %s on hand", ErrInvalidTransfer, from.ID, sku.ID)
	}

	miles, transit, cost := transferEconomics(state, idx, from, to)
	value := round(float64(qty) * sku.MarginPerCase * benefitMarginShare)
	rationale := t.Rationale
	if rationale == "" {
		rationale = fmt.Sprintf("Manual transfer of %d cases over %.0f mi.", qty, miles)
	}
	return Transfer{
		FromNodeID:      from.ID,
		ToNodeID:        to.ID,
		SKUID:           sku.ID,
		QtyCases:        qty,
		Rationale:       rationale,
		EstValue:        value,
		EstTransferCost: cost,
		EstTransitDays:  transit,
		NetValue:        round(value - cost),
	}, nil
}

// =============================================================================
// APPLY
// =============================================================================

// AppliedMove records what ApplyTransfers actually did for one transfer.
type AppliedMove struct {
	Transfer   Transfer `json:"transfer"`
	MovedCases int      `json:"movedCases"`
	ShipmentID string   `json:"shipmentId"`
	LaneID     string   `json:"laneId"`
}

// ApplyReport summarizes an ApplyTransfers call.
type ApplyReport struct {
	Moves        []AppliedMove `json:"moves"`
	Skipped      []Transfer    `json:"skipped,omitempty"`
	CreatedLanes []Lane        `json:"createdLanes,omitempty"`
}

// MovedCases is the total quantity that left donor on-hand.
func (r ApplyReport) MovedCases() int {
	n := 0
	for _, m := range r.Moves {
		n += m.MovedCases
	}
	return n
}

// GetOrCreateLane returns the lane origin->dest, synthesizing an inter-DC
// convenience lane (great-circle miles, truck, flat cost/mile) if none exists.
// created reports whether the lane is new; the caller owns appending it.
// State is not modified.
func GetOrCreateLane(state *DemoState, originID, destID string) (lane Lane, created bool, err error) {
	idx := newIndex(state)
	if l, ok := idx.lanePair[pairKey{originID, destID}]; ok {
		return l, false, nil
	}
	a, ok := idx.nodes[originID]
	if !ok {
		return Lane{}, false, fmt.Errorf("%w: %s", ErrNodeNotFound, originID)
	}
	b, ok := idx.nodes[destID]
	if !ok {
		return Lane{}, false, fmt.Errorf("%w: %s", ErrNodeNotFound, destID)
	}
	return Lane{
		ID:              fmt.Sprintf("L-%s-%s", originID, destID),
		OriginID:        originID,
		DestID:          destID,
		Miles:           math.Round(HaversineMiles(a, b)),
		BaseCostPerMile: proxyCostPerMile,
		Mode:            ModeTruck,
	}, true, nil
}

// defaultCarrierFor picks the carrier assigned to rebalancing shipments.
// ok is false when the state has no carriers.
func defaultCarrierFor(state *DemoState, l Lane) (id string, ok bool) {
	if len(state.Carriers) == 0 {
		return "", false
	}
	if l.Mode == ModeIntermodal {
		for _, c := range state.Carriers {
			if c.ID == IntermodalCarrierID {
				return c.ID, true
			}
		}
	}
	return state.Carriers[0].ID, true
}

// ApplyTransfers moves min(donor on-hand, qty) from donor on-hand to receiver
// in-transit for each transfer and records a shipment per move. Transfers
// with missing positions, nothing to move, or no carrier to book are skipped.
func ApplyTransfers(state *DemoState, transfers []Transfer) (*DemoState, ApplyReport) {
	next := state.Clone()
	pos := inventoryIndex(next.Inventory)
	var report ApplyReport

	for _, t := range transfers {
		fi, ok1 := pos[invKey{t.FromNodeID, t.SKUID}]
		ti, ok2 := pos[invKey{t.ToNodeID, t.SKUID}]
		if !ok1 || !ok2 || t.FromNodeID == t.ToNodeID {
			report.Skipped = append(report.Skipped, t)
			continue
		}
		qty := min(next.Inventory[fi].OnHand, t.QtyCases)
		if qty <= 0 {
			report.Skipped = append(report.Skipped, t)
			continue
		}

		lane, created, err := GetOrCreateLane(next, t.FromNodeID, t.ToNodeID)
		if err != nil {
			report.Skipped = append(report.Skipped, t)
			continue
		}
		carrierID, ok := defaultCarrierFor(next, lane)
		if !ok {
			report.Skipped = append(report.Skipped, t)
			continue
		}
		if created {
			next.Lanes = append(next.Lanes, lane)
			report.CreatedLanes = append(report.CreatedLanes, lane)
		}

		next.Inventory[fi].OnHand -= qty
		next.Inventory[ti].InTransit += qty

		transit := t.EstTransitDays
		if transit < 1 {
			transit = transferETADays(lane)
		}
		sh := Shipment{
			ID:        next.Seq.nextShipmentID(),
			LaneID:    lane.ID,
			CarrierID: carrierID,
			SKUID:     t.SKUID,
			QtyCases:  qty,
			ShipDay:   next.Today,
			ETADay:    next.Today + transit,
			Status:    StatusInTransit,
			Priority:  PriorityStandard,
		}
		next.Shipments = append(next.Shipments, sh)
		report.Moves = append(report.Moves, AppliedMove{Transfer: t, MovedCases: qty, ShipmentID: sh.ID, LaneID: lane.ID})
	}

	next.Shipments = retainLast(next.Shipments, ShipmentRetention)
	return next, report
}

func retainLast[T any](xs []T, n int) []T {
	if len(xs) <= n {
		return xs
	}
	return append([]T(nil), xs[len(xs)-n:]...)
}
