package engine

// ExpeditePenalty is the spend booked per late PROTECT shipment.
const ExpeditePenalty = 18000.0

// KPIs are the headline metrics derived from a state.
type KPIs struct {
	OTIF             float64 `json:"otif"`
	FillRate         float64 `json:"fillRate"`
	InventoryTurns   float64 `json:"inventoryTurns"`
	ExpediteSpend    float64 `json:"expediteSpend"`
	ServiceRiskIndex float64 `json:"serviceRiskIndex"`
	LateShipments    int     `json:"lateShipments"`
	LowCoverPairs    int     `json:"lowCoverPairs"`
}

// ComputeKPIs derives headline metrics. Defaults apply when there is no data.
func ComputeKPIs(state *DemoState) KPIs {
	delivered, late, lateProtect := 0, 0, 0
	for _, sh := range state.Shipments {
		switch sh.Status {
		case StatusDelivered:
			delivered++
		case StatusLate:
			late++
			if sh.Priority == PriorityProtect {
				lateProtect++
			}
		}
	}
	otif := 0.95
	if delivered+late > 0 {
		otif = float64(delivered) / float64(delivered+late)
	}

	idx := newIndex(state)
	fc := newForecaster(state.DemandHistory)
	ok, total, onHand := 0, 0, 0
	for _, inv := range state.Inventory {
		onHand += inv.OnHand
		node, found := idx.nodes[inv.NodeID]
		if !found || node.Type != NodeDC {
			continue
		}
		total++
		if DaysOfCover(inv, fc.get(node.Region, inv.SKUID)) >= MinCover(inv.TargetDaysCover) {
			ok++
		}
	}
	fill := 0.92
	if total > 0 {
		fill = float64(ok) / float64(total)
	}

	weekly := 0
	for _, sku := range state.SKUs {
		for _, r := range Regions {
			weekly += fc.get(r, sku.ID).Next7d
		}
	}
	turns := 9.0
	if onHand > 0 {
		turns = float64(weekly*52) / float64(onHand)
	}

	lowDoc := total - ok
	risk := min(100, roundInt(float64(late*3+lowDoc*2)/float64(max(1, total))*100))

	return KPIs{
		OTIF:             otif,
		FillRate:         fill,
		InventoryTurns:   clamp(turns, 3, 18),
		ExpediteSpend:    float64(lateProtect) * ExpeditePenalty,
		ServiceRiskIndex: float64(risk) / 100,
		LateShipments:    late,
		LowCoverPairs:    lowDoc,
	}
}
