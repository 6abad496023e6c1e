/*
risk.go - Exception scoring and ranking

PURPOSE:
  Scans inventory, shipments and lanes for conditions a planner should act on
  and ranks them by economic exposure. The ordering is the primary contract
  with the decision-maker: value-at-risk descending, then risk score
  descending, then id, truncated to the top 18.

EXCEPTION TYPES:
  STOCKOUT_RISK       DOC below max(6, 0.55 * target)
  EXCESS_RISK         DOC above target + 16
  LATE_SHIPMENT_RISK  every LATE shipment
  LANE_COST_OUTLIER   six most expensive lanes per move

SEE ALSO:
  - demand.go: DaysOfCover / MinCover
  - brief.go: consumes the ranked list
*/
package engine

import (
	"fmt"
	"sort"
)

type ExceptionType string

const (
	ExceptionStockout        ExceptionType = "STOCKOUT_RISK"
	ExceptionExcess          ExceptionType = "EXCESS_RISK"
	ExceptionLateShipment    ExceptionType = "LATE_SHIPMENT_RISK"
	ExceptionLaneCostOutlier ExceptionType = "LANE_COST_OUTLIER"
)

// Execute hints attached to recommended actions.
const (
	HintRunRebalance      = "RUN_REBALANCE"
	HintPrioritizeInbound = "PRIORITIZE_INBOUND"
	HintPromoSuggest      = "PROMO_SUGGEST"
	HintRetender          = "RETENDER"
	HintExpeditePartial   = "EXPEDITE_PARTIAL"
	HintConsolidate       = "CONSOLIDATE"
	HintModeShift         = "MODE_SHIFT"
)

const (
	// MaxExceptions is the length of the ranked list.
	MaxExceptions = 18

	laneOutlierCount = 6
	excessBandDays   = 16
	excessBaseDays   = 10
)

type RecommendedAction struct {
	Label       string `json:"label"`
	Impact      string `json:"impact"`
	ExecuteHint string `json:"executeHint"`
}

type Exception struct {
	ID                 string              `json:"id"`
	Type               ExceptionType       `json:"type"`
	Title              string              `json:"title"`
	Detail             string              `json:"detail"`
	Region             Region              `json:"region,omitempty"`
	NodeID             string              `json:"nodeId,omitempty"`
	SKUID              string              `json:"skuId,omitempty"`
	ShipmentID         string              `json:"shipmentId,omitempty"`
	LaneID             string              `json:"laneId,omitempty"`
	RiskScore          int                 `json:"riskScore"`      // 0..100
	EstValueAtRisk     float64             `json:"estValueAtRisk"` // $ per week
	RecommendedActions []RecommendedAction `json:"recommendedActions"`
}

// ComputeExceptions returns the ranked exception list for a state.
func ComputeExceptions(state *DemoState) []Exception {
	idx := newIndex(state)
	fc := newForecaster(state.DemandHistory)

	var ex []Exception
	ex = append(ex, inventoryExceptions(state, idx, fc)...)
	ex = append(ex, lateShipmentExceptions(state, idx)...)
	ex = append(ex, laneCostExceptions(state, idx)...)

	RankExceptions(ex)
	if len(ex) > MaxExceptions {
		ex = ex[:MaxExceptions]
	}
	return ex
}

// RankExceptions sorts in place by value-at-risk desc, risk desc, id asc.
func RankExceptions(ex []Exception) {
	sort.SliceStable(ex, func(i, j int) bool {
		if ex[i].EstValueAtRisk != ex[j].EstValueAtRisk {
			return ex[i].EstValueAtRisk > ex[j].EstValueAtRisk
		}
		if ex[i].RiskScore != ex[j].RiskScore {
			return ex[i].RiskScore > ex[j].RiskScore
		}
		return ex[i].ID < ex[j].ID
	})
}

func inventoryExceptions(state *DemoState, idx *index, fc *forecaster) []Exception {
	var out []Exception
	for _, inv := range state.Inventory {
		node, ok := idx.nodes[inv.NodeID]
		if !ok || node.Type != NodeDC {
			continue
		}
		sku, ok := idx.skus[inv.SKUID]
		if !ok || inv.TargetDaysCover <= 0 {
			continue
		}
		f := fc.get(node.Region, inv.SKUID)
		daily := f.Daily()
		doc := DaysOfCover(inv, f)
		target := float64(inv.TargetDaysCover)

		short := target - doc
		excess := doc - (target + excessBaseDays)
		lostSalesRisk := clamp(short/target, 0, 1)
		excessRisk := clamp(excess/(target+excessBaseDays), 0, 1)

		switch {
		case doc < MinCover(inv.TargetDaysCover):
			risk := clamp(55+45*lostSalesRisk+sku.PerishRisk*10, 0, 100)
			out = append(out, Exception{
				ID:             fmt.Sprintf("EX_INV_SO_%s_%s", inv.NodeID, inv.SKUID),
				Type:           ExceptionStockout,
				Title:          fmt.Sprintf("Stockout risk: %s @ %s", sku.Name, node.Name),
				Detail:         fmt.Sprintf("Days-of-cover %.1f vs target %d. Forecast next 7d: %d cases.", doc, inv.TargetDaysCover, f.Next7d),
				Region:         node.Region,
				NodeID:         inv.NodeID,
				SKUID:          inv.SKUID,
				RiskScore:      roundInt(risk),
				EstValueAtRisk: round(float64(f.Next7d) * sku.MarginPerCase * (0.25 + 0.75*lostSalesRisk)),
				RecommendedActions: []RecommendedAction{
					{Label: "Rebalance from donor DC", Impact: "Protect service; reduce lost sales risk", ExecuteHint: HintRunRebalance},
					{Label: "Prioritize inbound & wave protect orders", Impact: "Reduce stockout probability", ExecuteHint: HintPrioritizeInbound},
				},
			})
		case doc > target+excessBandDays:
			risk := clamp(45+55*excessRisk, 0, 100)
			out = append(out, Exception{
				ID:             fmt.Sprintf("EX_INV_EX_%s_%s", inv.NodeID, inv.SKUID),
				Type:           ExceptionExcess,
				Title:          fmt.Sprintf("Excess risk: %s @ %s", sku.Name, node.Name),
				Detail:         fmt.Sprintf("Days-of-cover %.1f above target %d.", doc, inv.TargetDaysCover),
				Region:         node.Region,
				NodeID:         inv.NodeID,
				SKUID:          inv.SKUID,
				RiskScore:      roundInt(risk),
				EstValueAtRisk: round((doc - target) * daily * (0.7 + sku.PerishRisk) * 0.6),
				RecommendedActions: []RecommendedAction{
					{Label: "Rebalance to deficit DC", Impact: "Reduce carrying + obsolescence risk", ExecuteHint: HintRunRebalance},
					{Label: "Suggest promotion/shift mix", Impact: "Pull demand forward; reduce inventory exposure", ExecuteHint: HintPromoSuggest},
				},
			})
		}
	}
	return out
}

// LateShipmentValueAtRisk is the weekly exposure of a late shipment.
func LateShipmentValueAtRisk(sh Shipment, sku SKU) float64 {
	return round(PenaltyPerDay(sh.Priority)*float64(sh.LateByDays) + sku.MarginPerCase*float64(sh.QtyCases)*0.05)
}

func lateShipmentExceptions(state *DemoState, idx *index) []Exception {
	var out []Exception
	for _, sh := range state.Shipments {
		if sh.Status != StatusLate {
			continue
		}
		lane, ok := idx.lanes[sh.LaneID]
		if !ok {
			continue
		}
		origin, ok1 := idx.nodes[lane.OriginID]
		dest, ok2 := idx.nodes[lane.DestID]
		sku, ok3 := idx.skus[sh.SKUID]
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		bump := 0.0
		if sh.Priority == PriorityProtect {
			bump = 10
		}
		risk := clamp(60+float64(sh.LateByDays)*12+bump, 0, 100)
		out = append(out, Exception{
			ID:             "EX_LATE_" + sh.ID,
			Type:           ExceptionLateShipment,
			Title:          fmt.Sprintf("Late shipment: %s (%s)", sku.Name, sh.Priority),
			Detail:         fmt.Sprintf("%s -> %s. Late by %dd. Carrier action recommended.", origin.Name, dest.Name, sh.LateByDays),
			ShipmentID:     sh.ID,
			LaneID:         sh.LaneID,
			SKUID:          sh.SKUID,
			RiskScore:      roundInt(risk),
			EstValueAtRisk: LateShipmentValueAtRisk(sh, sku),
			RecommendedActions: []RecommendedAction{
				{Label: "Re-tender to alternate carrier", Impact: "Recover service; cap penalties", ExecuteHint: HintRetender},
				{Label: "Expedite partial (protect orders)", Impact: "Reduce OTIF hit", ExecuteHint: HintExpeditePartial},
			},
		})
	}
	return out
}

func laneCostExceptions(state *DemoState, idx *index) []Exception {
	type laneCost struct {
		lane Lane
		cost float64
	}
	costs := make([]laneCost, 0, len(state.Lanes))
	for _, l := range state.Lanes {
		costs = append(costs, laneCost{lane: l, cost: BaseFreight(state, l)})
	}
	sort.SliceStable(costs, func(i, j int) bool { return costs[i].cost > costs[j].cost })
	if len(costs) > laneOutlierCount {
		costs = costs[:laneOutlierCount]
	}

	var out []Exception
	for _, lc := range costs {
		o, ok1 := idx.nodes[lc.lane.OriginID]
		d, ok2 := idx.nodes[lc.lane.DestID]
		if !ok1 || !ok2 {
			continue
		}
		risk := clamp(35+(lc.cost/6000)*25, 0, 100)
		out = append(out, Exception{
			ID:             "EX_LANE_" + lc.lane.ID,
			Type:           ExceptionLaneCostOutlier,
			Title:          fmt.Sprintf("Lane cost outlier: %s -> %s", o.Name, d.Name),
			Detail:         fmt.Sprintf("Mode %s. Estimated cost per move: ~$%.0f (fuel index %.2f).", lc.lane.Mode, lc.cost, state.FuelIndex),
			LaneID:         lc.lane.ID,
			RiskScore:      roundInt(risk),
			EstValueAtRisk: round(lc.cost * 0.12),
			RecommendedActions: []RecommendedAction{
				{Label: "Consolidate loads / pooling", Impact: "Reduce cost-per-case", ExecuteHint: HintConsolidate},
				{Label: "Shift mode or carrier mix", Impact: "Lower expected freight cost", ExecuteHint: HintModeShift},
			},
		})
	}
	return out
}
