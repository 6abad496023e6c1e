/*
simulator.go - Day stepper

PURPOSE:
  Advances a DemoState by N days. Each day:
  1. Resolve shipments that reached their ETA (DELIVERED or LATE)
  2. Synthesize per-region/SKU demand and consume DC on-hand
  3. Receive newly delivered shipments into destination DCs
  4. Append demand history (rolling window)
  5. Spawn new planned shipments
  6. Drift the fuel index

SHIPMENT STATE MACHINE:
  PLANNED ----(not due)----> IN_TRANSIT
  PLANNED/IN_TRANSIT --(due)--> DELIVERED | LATE (1-2 days)
  LATE --(due + lateness)--> DELIVERED | LATE again
  DELIVERED is terminal.

IN-TRANSIT ACCOUNTING:
  A shipment bound for a DC adds its cases to the DC's in-transit when it
  leaves PLANNED, and moves them to on-hand on the day it is delivered.

SCENARIO MODIFIERS:
  demandSpike        demand x1.18
  dcOutage           fulfillment capacity x0.65 (backlog)
  carrierDisruption  +0.10 late probability
  cyberDegradedMode  +0.06 late probability

DETERMINISM:
  Day d draws only from ForDay(seed, d), so the same state steps to the same
  result regardless of how it was reached.
*/
package engine

const (
	// FuelIndexMin and FuelIndexMax bound the fuel index.
	FuelIndexMin = 0.85
	FuelIndexMax = 1.35

	// DemandRetention is the number of demand points kept (about 5 weeks).
	DemandRetention = HistoryDays * 5

	// SimShipmentRetention bounds the shipment list after each step.
	SimShipmentRetention = 90

	// SpawnPerStep is the number of shipments created each day.
	SpawnPerStep = 6

	demandSpikeMult    = 1.18
	dcOutageCapMult    = 0.65
	disruptionDelay    = 0.10
	cyberDelay         = 0.06
	protectSimLateBump = 0.02
	maxSimLateProb     = 0.25
	fuelDrift          = 0.02
)

func simBase(f SKUFamily) float64 {
	switch f {
	case FamilyCleaning:
		return 200
	case FamilyBags:
		return 150
	case FamilyFiltration:
		return 95
	default:
		return 120
	}
}

func simRegionAdj(r Region) float64 {
	switch r {
	case RegionNortheast:
		return 1.07
	case RegionWest:
		return 1.02
	case RegionSoutheast:
		return 1.00
	case RegionMidwest:
		return 0.98
	default:
		return 0.96
	}
}

// Modifiers are the scenario-derived multipliers for one day.
type Modifiers struct {
	DemandMult      float64 `json:"demandMult"`
	CapacityMult    float64 `json:"capacityMult"`
	TransitDelayAdd float64 `json:"transitDelayAdd"`
}

// ScenarioModifiers derives the stepping multipliers from toggles.
func ScenarioModifiers(t ScenarioToggles) Modifiers {
	m := Modifiers{DemandMult: 1, CapacityMult: 1}
	if t.DemandSpike {
		m.DemandMult = demandSpikeMult
	}
	if t.DCOutage {
		m.CapacityMult = dcOutageCapMult
	}
	if t.CarrierDisruption {
		m.TransitDelayAdd += disruptionDelay
	}
	if t.CyberDegradedMode {
		m.TransitDelayAdd += cyberDelay
	}
	return m
}

// Step advances the state by days (minimum 1). The input is not modified.
func Step(state *DemoState, days int) *DemoState {
	if days < 1 {
		days = 1
	}
	next := state.Clone()
	for i := 0; i < days; i++ {
		next = stepDay(next)
	}
	return next
}

// stepDay advances one day, mutating s in place. s must be a private clone.
func stepDay(s *DemoState) *DemoState {
	rng := ForDay(s.Seed, s.Today)
	s.Today++
	now := s.Today
	mod := ScenarioModifiers(s.Scenario)
	idx := newIndex(s)
	pos := inventoryIndex(s.Inventory)

	dcDest := func(sh Shipment) (int, bool) {
		lane, ok := idx.lanes[sh.LaneID]
		if !ok {
			return 0, false
		}
		dest, ok := idx.nodes[lane.DestID]
		if !ok || dest.Type != NodeDC {
			return 0, false
		}
		i, ok := pos[invKey{dest.ID, sh.SKUID}]
		return i, ok
	}

	// 1. shipment resolution
	var delivered []Shipment
	for i := range s.Shipments {
		sh := &s.Shipments[i]
		if sh.Status.IsTerminal() {
			continue
		}
		if sh.Status == StatusPlanned {
			if inv, ok := dcDest(*sh); ok {
				s.Inventory[inv].InTransit += sh.QtyCases
			}
		}

		due := sh.ETADay
		if sh.Status == StatusLate {
			due += sh.LateByDays
		}
		if now < due {
			if sh.Status == StatusPlanned {
				sh.Status = StatusInTransit
			}
			continue
		}

		lateP := mod.TransitDelayAdd
		if sh.Priority == PriorityProtect {
			lateP += protectSimLateBump
		}
		if rng.Chance(clamp(lateP, 0, maxSimLateProb)) {
			sh.Status = StatusLate
			sh.LateByDays = max(sh.LateByDays, 1+rng.Intn(2))
			continue
		}
		sh.Status = StatusDelivered
		sh.LateByDays = 0
		delivered = append(delivered, *sh)
	}

	// 2. demand and consumption
	dcByRegion := make(map[Region]Node)
	for _, dc := range s.nodesOfType(NodeDC) {
		if _, ok := dcByRegion[dc.Region]; !ok {
			dcByRegion[dc.Region] = dc
		}
	}
	today := make([]DemandPoint, 0, len(s.SKUs)*len(Regions))
	for _, sku := range s.SKUs {
		for _, r := range Regions {
			noise := 1 + (rng.Float64()-0.5)*0.18
			d := max(0, roundInt(simBase(sku.Family)*simRegionAdj(r)*noise*mod.DemandMult))
			today = append(today, DemandPoint{Day: now, Region: r, SKUID: sku.ID, DemandCases: d})
		}
	}
	for _, dp := range today {
		dc, ok := dcByRegion[dp.Region]
		if !ok {
			continue
		}
		i, ok := pos[invKey{dc.ID, dp.SKUID}]
		if !ok {
			continue
		}
		fulfilled := roundInt(float64(dp.DemandCases) * mod.CapacityMult)
		s.Inventory[i].OnHand = max(0, s.Inventory[i].OnHand-fulfilled)
	}

	// 3. receipts
	for _, sh := range delivered {
		i, ok := dcDest(sh)
		if !ok {
			continue
		}
		s.Inventory[i].OnHand += sh.QtyCases
		s.Inventory[i].InTransit = max(0, s.Inventory[i].InTransit-sh.QtyCases)
	}

	// 4. history
	s.DemandHistory = retainLast(append(s.DemandHistory, today...), DemandRetention)

	// 5. new shipments
	s.Shipments = append(s.Shipments, spawnShipments(rng, s, idx)...)
	s.Shipments = retainLast(s.Shipments, SimShipmentRetention)

	// 6. fuel
	s.FuelIndex = clamp(s.FuelIndex+(rng.Float64()-0.5)*fuelDrift, FuelIndexMin, FuelIndexMax)
	return s
}

func spawnShipments(rng *Rand, s *DemoState, idx *index) []Shipment {
	dcs := nodeIDs(s.nodesOfType(NodeDC))
	plants := nodeIDs(s.nodesOfType(NodePlant))
	custs := nodeIDs(s.nodesOfType(NodeCustomer))
	if len(dcs) == 0 || len(s.SKUs) == 0 || len(s.Carriers) == 0 {
		return nil
	}

	var out []Shipment
	for i := 0; i < SpawnPerStep; i++ {
		// 60% DC->customer, 30% plant->DC, 10% inter-DC
		kind := flowDCToDC
		switch r := rng.Float64(); {
		case r < 0.60:
			kind = flowDCToCustomer
		case r < 0.90:
			kind = flowPlantToDC
		}
		sku := Pick(rng, s.SKUs)

		var origin, dest string
		switch kind {
		case flowDCToCustomer:
			if len(custs) == 0 {
				continue
			}
			origin = Pick(rng, dcs)
			dest = Pick(rng, custs)
		case flowPlantToDC:
			if len(plants) == 0 {
				continue
			}
			origin = Pick(rng, plants)
			dest = Pick(rng, dcs)
		default:
			oi := rng.Intn(len(dcs))
			di := rng.Intn(len(dcs))
			if di == oi {
				di = (di + 1) % len(dcs)
			}
			origin, dest = dcs[oi], dcs[di]
		}

		lane, ok := idx.lanePair[pairKey{origin, dest}]
		if !ok {
			continue
		}
		pr := PriorityStandard
		if rng.Chance(0.2) {
			pr = PriorityProtect
		}
		qty := 120 + rng.Intn(400)
		carrier := Pick(rng, s.Carriers)
		out = append(out, Shipment{
			ID:        s.Seq.nextShipmentID(),
			LaneID:    lane.ID,
			CarrierID: carrier.ID,
			SKUID:     sku.ID,
			QtyCases:  qty,
			ShipDay:   s.Today,
			ETADay:    s.Today + initialETADays(lane),
			Status:    StatusPlanned,
			Priority:  pr,
		})
	}
	return out
}
