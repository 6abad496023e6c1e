/*
generator.go - Seeded world generation

PURPOSE:
  Builds the initial DemoState from a single 32-bit seed: topology, SKUs,
  carriers, lanes, 28 days of demand history, DC inventory positions, and 50
  in-flight shipments. Every random draw comes from one Rand in a fixed order,
  so Generate(seed) is byte-for-byte reproducible.

TOPOLOGY:
  2 plants, 5 DCs (one per region), 5 customer-region aggregates.
  Lanes: every plant->DC, every DC->customer, and six bidirectional
  inter-DC pooling pairs.

SEE ALSO:
  - simulator.go: uses the same demand shape for daily synthesis
  - inventory.go: GetOrCreateLane for lanes added after generation
*/
package engine

import "fmt"

// HistoryDays is the depth of synthetic demand history.
const HistoryDays = 28

// InitialShipments is the number of shipments in flight at day 0.
const InitialShipments = 50

// Generation bands for lane economics.
const (
	truckCostBase      = 2.4
	truckCostSpread    = 0.5
	intermodalCostBase = 1.6
	intermodalSpread   = 0.4
)

// interDCPairs are the pooling lanes created in both directions.
var interDCPairs = [][2]string{
	{"D1", "D3"}, // Northeast <-> Midwest
	{"D2", "D3"}, // Southeast <-> Midwest
	{"D3", "D4"}, // Midwest <-> Southwest
	{"D4", "D5"}, // Southwest <-> West
	{"D2", "D4"}, // Southeast <-> Southwest
	{"D1", "D2"}, // Northeast <-> Southeast
}

// =============================================================================
// FIXED CATALOGUES
// =============================================================================

func fixedSKUs() []SKU {
	return []SKU{
		{ID: "S1", Name: "Disinfecting Wipes (Case)", Family: FamilyCleaning, Unit: "case", MarginPerCase: 14, CubePerCase: 0.6, PerishRisk: 0.05},
		{ID: "S2", Name: "Bleach (Case)", Family: FamilyCleaning, Unit: "case", MarginPerCase: 10, CubePerCase: 0.9, PerishRisk: 0.02},
		{ID: "S3", Name: "Trash Bags (Case)", Family: FamilyBags, Unit: "case", MarginPerCase: 9, CubePerCase: 1.1, PerishRisk: 0.01},
		{ID: "S4", Name: "Water Filters (Case)", Family: FamilyFiltration, Unit: "case", MarginPerCase: 18, CubePerCase: 0.4, PerishRisk: 0.03},
		{ID: "S5", Name: "Salad Dressing (Case)", Family: FamilyCondiments, Unit: "case", MarginPerCase: 7, CubePerCase: 0.7, PerishRisk: 0.12},
	}
}

func fixedCarriers() []Carrier {
	return []Carrier{
		{ID: "K1", Name: "National Trucking Co.", BaseOnTime: 0.93, BaseRateAdj: 1.00},
		{ID: "K2", Name: "Value Freight", BaseOnTime: 0.88, BaseRateAdj: 0.92},
		{ID: PremiumCarrierID, Name: "Premium Express", BaseOnTime: 0.96, BaseRateAdj: 1.12},
		{ID: IntermodalCarrierID, Name: "Intermodal Partner", BaseOnTime: 0.90, BaseRateAdj: 0.86},
	}
}

// Well-known carrier roles.
const (
	PremiumCarrierID    = "K3"
	IntermodalCarrierID = "K4"
)

// historyBase is the base daily demand per family used for history.
func historyBase(f SKUFamily) float64 {
	switch f {
	case FamilyCleaning:
		return 180
	case FamilyBags:
		return 140
	case FamilyFiltration:
		return 90
	default:
		return 110
	}
}

func historyRegionAdj(r Region) float64 {
	switch r {
	case RegionNortheast:
		return 1.08
	case RegionWest:
		return 1.02
	case RegionSoutheast:
		return 1.00
	case RegionMidwest:
		return 0.98
	default:
		return 0.95
	}
}

// dayOfWeekAdj elevates one weekday and depresses another.
func dayOfWeekAdj(day int) float64 {
	switch ((day % 7) + 7) % 7 {
	case 0:
		return 1.18
	case 5:
		return 0.92
	default:
		return 1.00
	}
}

// TargetDaysCover is the fixed cover target per SKU family.
func TargetDaysCover(f SKUFamily) int {
	switch f {
	case FamilyCleaning:
		return 16
	case FamilyBags:
		return 14
	case FamilyFiltration:
		return 18
	default:
		return 12
	}
}

// =============================================================================
// GENERATE
// =============================================================================

// Generate builds a fully reproducible initial world from seed.
func Generate(seed uint32) *DemoState {
	rng := NewRand(seed)
	s := &DemoState{Seed: seed, Today: 0}

	s.Nodes = []Node{
		{ID: "P1", Name: "Plant - Midwest", Type: NodePlant, Region: RegionMidwest, Lat: 41.9, Lon: -87.6},
		{ID: "P2", Name: "Plant - Southeast", Type: NodePlant, Region: RegionSoutheast, Lat: 33.7, Lon: -84.4},
		{ID: "D1", Name: "DC - Northeast", Type: NodeDC, Region: RegionNortheast, Lat: 40.7, Lon: -74.0},
		{ID: "D2", Name: "DC - Southeast", Type: NodeDC, Region: RegionSoutheast, Lat: 33.7, Lon: -84.4},
		{ID: "D3", Name: "DC - Midwest", Type: NodeDC, Region: RegionMidwest, Lat: 41.9, Lon: -87.6},
		{ID: "D4", Name: "DC - Southwest", Type: NodeDC, Region: RegionSouthwest, Lat: 32.8, Lon: -96.8},
		{ID: "D5", Name: "DC - West", Type: NodeDC, Region: RegionWest, Lat: 34.0, Lon: -118.2},
	}
	for i, r := range Regions {
		lat := 37 + (rng.Float64()-0.5)*6
		lon := -95 + (rng.Float64()-0.5)*18
		s.Nodes = append(s.Nodes, Node{
			ID:     fmt.Sprintf("C%d", i+1),
			Name:   fmt.Sprintf("Customers - %s", r),
			Type:   NodeCustomer,
			Region: r,
			Lat:    lat,
			Lon:    lon,
		})
	}

	s.SKUs = fixedSKUs()
	s.Carriers = fixedCarriers()
	s.Lanes = generateLanes(rng, s)
	s.FuelIndex = 0.95 + rng.Float64()*0.35
	s.DemandHistory = generateHistory(rng, s.SKUs)
	s.Inventory = generateInventory(rng, s)
	s.Shipments = generateShipments(rng, s)
	backfillInTransit(s)
	return s
}

func generateLanes(rng *Rand, s *DemoState) []Lane {
	var lanes []Lane
	add := func(origin, dest string, miles float64, mode LaneMode) {
		var cpm float64
		if mode == ModeTruck {
			cpm = truckCostBase + rng.Float64()*truckCostSpread
		} else {
			cpm = intermodalCostBase + rng.Float64()*intermodalSpread
		}
		lanes = append(lanes, Lane{
			ID:              s.Seq.nextLaneID(),
			OriginID:        origin,
			DestID:          dest,
			Miles:           miles,
			BaseCostPerMile: cpm,
			Mode:            mode,
		})
	}
	mode := func(p float64) LaneMode {
		if rng.Chance(p) {
			return ModeIntermodal
		}
		return ModeTruck
	}

	plants := nodeIDs(s.nodesOfType(NodePlant))
	dcs := nodeIDs(s.nodesOfType(NodeDC))
	custs := nodeIDs(s.nodesOfType(NodeCustomer))

	for _, p := range plants {
		for _, d := range dcs {
			miles := float64(350 + rng.Intn(1500))
			add(p, d, miles, mode(0.25))
		}
	}
	for _, d := range dcs {
		for _, c := range custs {
			miles := float64(120 + rng.Intn(1100))
			add(d, c, miles, mode(0.12))
		}
	}
	for _, pair := range interDCPairs {
		miles := float64(260 + rng.Intn(1400))
		m := mode(0.18)
		add(pair[0], pair[1], miles, m)
		add(pair[1], pair[0], miles+float64(rng.Intn(90)), m)
	}
	return lanes
}

func generateHistory(rng *Rand, skus []SKU) []DemandPoint {
	var out []DemandPoint
	for day := -HistoryDays; day <= -1; day++ {
		for _, r := range Regions {
			for _, sku := range skus {
				noise := 0.12 * rng.Normal()
				d := historyBase(sku.Family) * historyRegionAdj(r) * dayOfWeekAdj(day) * (1 + noise)
				if d < 0 {
					d = 0
				}
				out = append(out, DemandPoint{Day: day, Region: r, SKUID: sku.ID, DemandCases: roundInt(d)})
			}
		}
	}
	return out
}

// avgWeeklyDemand is the mean daily demand for (region, sku) times seven.
func avgWeeklyDemand(history []DemandPoint, region Region, skuID string) float64 {
	sum, n := 0, 0
	for _, d := range history {
		if d.Region == region && d.SKUID == skuID {
			sum += d.DemandCases
			n++
		}
	}
	if n == 0 {
		n = 1
	}
	return float64(sum) / float64(n) * 7
}

func generateInventory(rng *Rand, s *DemoState) []InventoryPosition {
	var out []InventoryPosition
	for _, dc := range s.nodesOfType(NodeDC) {
		for _, sku := range s.SKUs {
			avg := avgWeeklyDemand(s.DemandHistory, dc.Region, sku.ID)
			target := TargetDaysCover(sku.Family)
			onHand := roundInt(avg * (float64(target) / 7) * (0.6 + rng.Float64()*1.1))
			if onHand < 0 {
				onHand = 0
			}
			onOrder := roundInt(avg * (0.3 + rng.Float64()*0.7))
			out = append(out, InventoryPosition{
				NodeID:          dc.ID,
				SKUID:           sku.ID,
				OnHand:          onHand,
				OnOrder:         onOrder,
				TargetDaysCover: target,
			})
		}
	}
	return out
}

type flowKind int

const (
	flowDCToCustomer flowKind = iota
	flowPlantToDC
	flowDCToDC
)

func (s *DemoState) lanesOfKind(idx *index, kind flowKind) []Lane {
	var out []Lane
	for _, l := range s.Lanes {
		o, ok1 := idx.nodes[l.OriginID]
		d, ok2 := idx.nodes[l.DestID]
		if !ok1 || !ok2 {
			continue
		}
		switch kind {
		case flowDCToCustomer:
			if o.Type == NodeDC && d.Type == NodeCustomer {
				out = append(out, l)
			}
		case flowPlantToDC:
			if o.Type == NodePlant && d.Type == NodeDC {
				out = append(out, l)
			}
		case flowDCToDC:
			if o.Type == NodeDC && d.Type == NodeDC {
				out = append(out, l)
			}
		}
	}
	return out
}

// initialETADays is the transit time used for generated and spawned shipments.
func initialETADays(l Lane) int {
	speed := 550.0
	if l.Mode == ModeIntermodal {
		speed = 450
	}
	return max(1, roundInt(l.Miles/speed))
}

func generateShipments(rng *Rand, s *DemoState) []Shipment {
	idx := newIndex(s)
	pools := map[flowKind][]Lane{
		flowDCToCustomer: s.lanesOfKind(idx, flowDCToCustomer),
		flowPlantToDC:    s.lanesOfKind(idx, flowPlantToDC),
		flowDCToDC:       s.lanesOfKind(idx, flowDCToDC),
	}

	out := make([]Shipment, 0, InitialShipments)
	for i := 0; i < InitialShipments; i++ {
		tier := PriorityStandard
		if rng.Chance(0.22) {
			tier = PriorityProtect
		}
		sku := Pick(rng, s.SKUs)

		// 55% DC->customer, 35% plant->DC, 10% inter-DC
		kind := flowDCToDC
		switch r := rng.Float64(); {
		case r < 0.55:
			kind = flowDCToCustomer
		case r < 0.90:
			kind = flowPlantToDC
		}
		pool := pools[kind]
		if len(pool) == 0 {
			pool = s.Lanes
		}
		lane := Pick(rng, pool)
		carrier := Pick(rng, s.Carriers)

		shipDay := -rng.Intn(3)
		etaDay := shipDay + initialETADays(lane)
		lateP := 0.08
		if tier == PriorityProtect {
			lateP += 0.03
		}
		lateBy := 0
		if rng.Chance(lateP) {
			lateBy = 1 + rng.Intn(2)
		}

		status := StatusPlanned
		switch {
		case etaDay+lateBy < s.Today:
			status = StatusDelivered
		case shipDay < s.Today && lateBy > 0 && etaDay < s.Today:
			status = StatusLate
		case shipDay < s.Today:
			status = StatusInTransit
		}

		out = append(out, Shipment{
			ID:         s.Seq.nextShipmentID(),
			LaneID:     lane.ID,
			CarrierID:  carrier.ID,
			SKUID:      sku.ID,
			QtyCases:   120 + rng.Intn(420),
			ShipDay:    shipDay,
			ETADay:     etaDay,
			Status:     status,
			LateByDays: lateBy,
			Priority:   tier,
		})
	}
	return out
}

// backfillInTransit credits en-route shipments bound for a DC into that DC's
// in-transit quantity.
func backfillInTransit(s *DemoState) {
	for _, sh := range s.Shipments {
		if sh.Status.IsEnRoute() {
			creditInTransit(s, sh)
		}
	}
}

// creditInTransit adds sh's cases to its destination DC's in-transit, if the
// destination is a DC with a position for the SKU.
func creditInTransit(s *DemoState, sh Shipment) {
	idx := newIndex(s)
	lane, ok := idx.lanes[sh.LaneID]
	if !ok {
		return
	}
	dest, ok := idx.nodes[lane.DestID]
	if !ok || dest.Type != NodeDC {
		return
	}
	for i := range s.Inventory {
		if s.Inventory[i].NodeID == dest.ID && s.Inventory[i].SKUID == sh.SKUID {
			s.Inventory[i].InTransit += sh.QtyCases
			return
		}
	}
}
