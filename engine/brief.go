/*
brief.go - Executive brief synthesis

PURPOSE:
  Composes the exception scan, rebalancer and re-tender engine into a short
  list of question -> answer -> why -> actions narratives. No new analytics
  live here except the DC throughput proxy.

SEE ALSO:
  - risk.go, inventory.go, transport.go
*/
package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

type BriefActionKind string

const (
	BriefRebalance BriefActionKind = "REBALANCE"
	BriefRetender  BriefActionKind = "RETENDER"
	BriefPlaybook  BriefActionKind = "PLAYBOOK"
)

// BriefAction is a follow-up the reader can trigger. Payload fields are set
// only for REBALANCE and RETENDER.
type BriefAction struct {
	Label      string          `json:"label"`
	Kind       BriefActionKind `json:"kind"`
	SKUID      string          `json:"skuId,omitempty"`
	NodeID     string          `json:"nodeId,omitempty"`
	ShipmentID string          `json:"shipmentId,omitempty"`
	CarrierID  string          `json:"carrierId,omitempty"`
}

type BriefAnswer struct {
	Question string        `json:"question"`
	Answer   string        `json:"answer"`
	Why      string        `json:"why"`
	Actions  []BriefAction `json:"actions"`
}

// DCThroughput is the utilization proxy for one DC.
type DCThroughput struct {
	DC          Node    `json:"dc"`
	Capacity    int     `json:"capacity"`
	Outbound    int     `json:"outbound"`
	Utilization float64 `json:"utilization"`
}

// DCThroughputRisk ranks DCs by outbound/capacity, worst first.
func DCThroughputRisk(state *DemoState) []DCThroughput {
	onHand := make(map[string]int)
	for _, inv := range state.Inventory {
		onHand[inv.NodeID] += inv.OnHand
	}

	var out []DCThroughput
	for _, dc := range state.nodesOfType(NodeDC) {
		base := 9000.0
		switch dc.Region {
		case RegionNortheast:
			base += 1200
		case RegionWest:
			base += 900
		}
		hit := 1.0
		if state.Scenario.DCOutage && dc.Region == RegionNortheast {
			hit = 0.55
		}
		capacity := roundInt(base * hit)
		outbound := roundInt(float64(onHand[dc.ID]) * 0.18)
		u := math.Min(1.25, float64(outbound)/float64(max(1, capacity)))
		out = append(out, DCThroughput{DC: dc, Capacity: capacity, Outbound: outbound, Utilization: u})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Utilization > out[j].Utilization })
	return out
}

const serviceQuestion = "Where will we miss service next, and what is the cheapest prevention?"

// BuildExecutiveBrief answers the standing executive questions for a state.
func BuildExecutiveBrief(state *DemoState) []BriefAnswer {
	ex := ComputeExceptions(state)
	var topService, topLane *Exception
	for i := range ex {
		e := &ex[i]
		if topService == nil && (e.Type == ExceptionStockout || e.Type == ExceptionLateShipment) {
			topService = e
		}
		if topLane == nil && e.Type == ExceptionLaneCostOutlier {
			topLane = e
		}
	}

	var answers []BriefAnswer

	if topService != nil {
		switch topService.Type {
		case ExceptionStockout:
			transfers := TopRebalanceTargets(state, topService.SKUID, topService.NodeID)
			if len(transfers) == 0 {
				transfers = ProposeRebalancing(state, 20, topService.SKUID)
			}
			rec := "rebalancing"
			if len(transfers) > 0 {
				rec = fmt.Sprintf("rebalancing (top move net $%.0f)", transfers[0].NetValue)
			}
			answers = append(answers, BriefAnswer{
				Question: serviceQuestion,
				Answer:   fmt.Sprintf("%s - est. $%.0f/wk at risk. Recommended: %s.", topService.Title, topService.EstValueAtRisk, rec),
				Why:      topService.Detail,
				Actions: []BriefAction{
					{Label: "Run rebalancing (SKU-specific)", Kind: BriefRebalance, SKUID: topService.SKUID, NodeID: topService.NodeID},
					{Label: "Open playbook: protect inbound / wave priority", Kind: BriefPlaybook},
				},
			})
		case ExceptionLateShipment:
			opts, _ := RetenderOptions(state, topService.ShipmentID)
			carrier, target := "alternate carrier", ""
			if len(opts) > 0 {
				carrier, target = opts[0].CarrierID, opts[0].CarrierID
			} else if len(state.Carriers) > 0 {
				target = state.Carriers[0].ID
			}
			answers = append(answers, BriefAnswer{
				Question: serviceQuestion,
				Answer:   fmt.Sprintf("%s - est. $%.0f/wk at risk. Recommended: re-tender to %s (min expected total).", topService.Title, topService.EstValueAtRisk, carrier),
				Why:      topService.Detail,
				Actions: []BriefAction{
					{Label: "Execute re-tender", Kind: BriefRetender, ShipmentID: topService.ShipmentID, CarrierID: target},
					{Label: "Open playbook: expedite partial", Kind: BriefPlaybook},
				},
			})
		}
	}

	answers = append(answers, BriefAnswer{
		Question: "What inventory should sit where to avoid expediting and stockouts?",
		Answer:   "Prioritize DOC gaps and execute net-positive transfers (benefit - transfer cost).",
		Why:      "Transfers are ranked by net value and transit time to mimic real cost-to-serve tradeoffs.",
		Actions:  []BriefAction{{Label: "Review inventory and execute top transfers", Kind: BriefPlaybook}},
	})

	if dcs := DCThroughputRisk(state); len(dcs) > 0 {
		worst := dcs[0]
		status := "healthy"
		switch {
		case worst.Utilization > 1.05:
			status = "over capacity"
		case worst.Utilization > 0.95:
			status = "at risk"
		}
		answers = append(answers, BriefAnswer{
			Question: "Which DC constraints will break the network next week?",
			Answer:   fmt.Sprintf("%s is %s (utilization %.0f%%).", worst.DC.Name, status, math.Min(1.5, worst.Utilization)*100),
			Why:      "Utilization is a transparent proxy: outbound volume / capacity. Toggle 'DC outage' to stress this further.",
			Actions:  []BriefAction{{Label: "Open distribution mitigation levers", Kind: BriefPlaybook}},
		})
	}

	if topLane != nil {
		answers = append(answers, BriefAnswer{
			Question: "Which lanes/carriers are costing us the most, and what changes pay back fastest?",
			Answer:   fmt.Sprintf("%s - est. $%.0f/wk opportunity.", topLane.Title, topLane.EstValueAtRisk),
			Why:      topLane.Detail,
			Actions:  []BriefAction{{Label: "Drill into transportation options", Kind: BriefPlaybook}},
		})
	}

	posture := "Turn on a scenario (e.g. DC outage / carrier disruption) and run live simulation to see cascading impacts and mitigation playbooks."
	if active := state.Scenario.Active(); len(active) > 0 {
		posture = fmt.Sprintf("Active scenarios: %s. Reprioritize exceptions and run playbooks with tighter guardrails.", strings.Join(active, ", "))
	}
	answers = append(answers, BriefAnswer{
		Question: "In a disruption, what is the degraded-mode plan that keeps product moving?",
		Answer:   posture,
		Why:      "In degraded mode, decisions become exception-based with explicit approval gates and spend/service caps.",
		Actions:  []BriefAction{{Label: "Open scenario simulator", Kind: BriefPlaybook}},
	})

	return answers
}

// TopRebalanceTargets returns SKU-specific transfers, optionally only those
// landing at toNodeID, best net value first.
func TopRebalanceTargets(state *DemoState, skuID, toNodeID string) []Transfer {
	transfers := ProposeRebalancing(state, 18, skuID)
	if toNodeID == "" {
		return transfers
	}
	var out []Transfer
	for _, t := range transfers {
		if t.ToNodeID == toNodeID {
			out = append(out, t)
		}
	}
	return out
}
