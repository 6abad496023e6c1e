package engine_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/autopilot/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func flatHistory(region engine.Region, skuID string, perDay, days int) []engine.DemandPoint {
	out := make([]engine.DemandPoint, 0, days)
	for d := -days; d < 0; d++ {
		out = append(out, engine.DemandPoint{Day: d, Region: region, SKUID: skuID, DemandCases: perDay})
	}
	return out
}

func wipes() engine.SKU {
	return engine.SKU{ID: "S1", Name: "Disinfecting Wipes (Case)", Family: engine.FamilyCleaning, MarginPerCase: 14, PerishRisk: 0.05}
}

func carriers() []engine.Carrier {
	return []engine.Carrier{
		{ID: "K1", Name: "National Trucking Co.", BaseOnTime: 0.93, BaseRateAdj: 1.00},
		{ID: engine.PremiumCarrierID, Name: "Premium Express", BaseOnTime: 0.96, BaseRateAdj: 1.12},
	}
}

// twoDCState is a Northeast donor and a Southeast receiver for S1, both
// consuming 20 cases/day, joined by an 800 mi truck lane at $2.50/mi.
func twoDCState() *engine.DemoState {
	var history []engine.DemandPoint
	history = append(history, flatHistory(engine.RegionNortheast, "S1", 20, 14)...)
	history = append(history, flatHistory(engine.RegionSoutheast, "S1", 20, 14)...)
	return &engine.DemoState{
		Seed:      7,
		FuelIndex: 1.0,
		Nodes: []engine.Node{
			{ID: "D1", Name: "DC - Northeast", Type: engine.NodeDC, Region: engine.RegionNortheast, Lat: 40.7, Lon: -74.0},
			{ID: "D2", Name: "DC - Southeast", Type: engine.NodeDC, Region: engine.RegionSoutheast, Lat: 33.7, Lon: -84.4},
		},
		SKUs:     []engine.SKU{wipes()},
		Carriers: carriers(),
		Lanes: []engine.Lane{
			{ID: "L001", OriginID: "D1", DestID: "D2", Miles: 800, BaseCostPerMile: 2.5, Mode: engine.ModeTruck},
		},
		Inventory: []engine.InventoryPosition{
			{NodeID: "D1", SKUID: "S1", OnHand: 560, TargetDaysCover: 10},
			{NodeID: "D2", SKUID: "S1", OnHand: 170, TargetDaysCover: 16},
		},
		DemandHistory: history,
	}
}

func findException(ex []engine.Exception, id string) (engine.Exception, bool) {
	for _, e := range ex {
		if e.ID == id {
			return e, true
		}
	}
	return engine.Exception{}, false
}

func position(s *engine.DemoState, nodeID, skuID string) engine.InventoryPosition {
	for _, p := range s.Inventory {
		if p.NodeID == nodeID && p.SKUID == skuID {
			return p
		}
	}
	return engine.InventoryPosition{}
}

// =============================================================================
// GENERATOR
// =============================================================================

func TestGenerate_Seed42_Topology(t *testing.T) {
	// GIVEN: seed 42
	// WHEN: generating the world
	// THEN: 50 shipments, 5 DCs, one inventory row per DC/SKU

	s := engine.Generate(42)

	assert.Len(t, s.Shipments, 50)
	dcs := 0
	for _, n := range s.Nodes {
		if n.Type == engine.NodeDC {
			dcs++
		}
	}
	assert.Equal(t, 5, dcs)
	assert.Len(t, s.Inventory, 25)
	assert.Len(t, s.SKUs, 5)
	assert.Len(t, s.Carriers, 4)
	assert.Equal(t, 0, s.Today)
	require.NoError(t, s.Validate())
}

func TestGenerate_SameSeed_Identical(t *testing.T) {
	a := engine.Generate(42)
	b := engine.Generate(42)
	assert.Equal(t, a, b)

	c := engine.Generate(43)
	assert.NotEqual(t, a.Lanes, c.Lanes)
}

func TestGenerate_FuelIndexInBounds(t *testing.T) {
	for seed := uint32(1); seed <= 20; seed++ {
		s := engine.Generate(seed)
		assert.GreaterOrEqual(t, s.FuelIndex, engine.FuelIndexMin)
		assert.LessOrEqual(t, s.FuelIndex, engine.FuelIndexMax)
	}
}

// =============================================================================
// FORECAST
// =============================================================================

func TestForecastDemand_ConstantSeries(t *testing.T) {
	// GIVEN: 14 days at 20 cases/day
	// WHEN: forecasting
	// THEN: next7d is 140 and next28d is exactly 4x

	fc := engine.ForecastDemand(flatHistory(engine.RegionWest, "S1", 20, 14), engine.RegionWest, "S1", engine.DefaultAlpha)

	assert.Equal(t, 140, fc.Next7d)
	assert.Equal(t, 560, fc.Next28d)
	assert.InDelta(t, 20.0, fc.Daily(), 1e-9)
}

func TestForecastDemand_EmptyHistory_Zero(t *testing.T) {
	fc := engine.ForecastDemand(nil, engine.RegionWest, "S1", engine.DefaultAlpha)

	assert.Equal(t, 0, fc.Next7d)
	assert.Equal(t, 0, fc.Next28d)
	assert.Equal(t, 1.0, fc.Daily(), "daily is floored at one case")
}

func TestForecastDemand_GeneratedHistory_NeverNegative(t *testing.T) {
	s := engine.Generate(99)
	for _, sku := range s.SKUs {
		for _, r := range engine.Regions {
			fc := engine.ForecastDemand(s.DemandHistory, r, sku.ID, engine.DefaultAlpha)
			assert.GreaterOrEqual(t, fc.Next7d, 0)
			assert.Equal(t, 4*fc.Next7d, fc.Next28d)
		}
	}
}

func TestMinCover(t *testing.T) {
	assert.Equal(t, 6.0, engine.MinCover(10))
	assert.InDelta(t, 8.8, engine.MinCover(16), 1e-9)
}

// =============================================================================
// RISK
// =============================================================================

func TestComputeExceptions_LowCover_StockoutRisk(t *testing.T) {
	// GIVEN: onHand 100, target 16, forecast 140/week (doc 5.0 < 8.8)
	// WHEN: scanning
	// THEN: a STOCKOUT_RISK surfaces for the pair

	s := &engine.DemoState{
		FuelIndex:     1.0,
		Nodes:         []engine.Node{{ID: "D1", Name: "DC - Northeast", Type: engine.NodeDC, Region: engine.RegionNortheast}},
		SKUs:          []engine.SKU{wipes()},
		Inventory:     []engine.InventoryPosition{{NodeID: "D1", SKUID: "S1", OnHand: 100, TargetDaysCover: 16}},
		DemandHistory: flatHistory(engine.RegionNortheast, "S1", 20, 14),
	}

	ex := engine.ComputeExceptions(s)

	e, ok := findException(ex, "EX_INV_SO_D1_S1")
	require.True(t, ok, "expected stockout exception")
	assert.Equal(t, engine.ExceptionStockout, e.Type)
	// short ratio (16-5)/16 = 0.6875 -> risk 55 + 30.94 + 0.5
	assert.Equal(t, 86, e.RiskScore)
	assert.Equal(t, 1501.0, e.EstValueAtRisk) // round(140*14*(0.25+0.75*0.6875))
	assert.NotEmpty(t, e.RecommendedActions)
	assert.Equal(t, engine.HintRunRebalance, e.RecommendedActions[0].ExecuteHint)
}

func TestComputeExceptions_LateProtect_ValueAtRisk(t *testing.T) {
	// GIVEN: a LATE PROTECT shipment, 2 days late, 300 cases of S1 (margin 14)
	// WHEN: scanning
	// THEN: VaR = round(4200*2 + 14*300*0.05) = 8610

	s := twoDCState()
	s.Shipments = []engine.Shipment{{
		ID: "SHP-00001", LaneID: "L001", CarrierID: "K1", SKUID: "S1", QtyCases: 300,
		ShipDay: -3, ETADay: -1, Status: engine.StatusLate, LateByDays: 2, Priority: engine.PriorityProtect,
	}}

	ex := engine.ComputeExceptions(s)

	e, ok := findException(ex, "EX_LATE_SHP-00001")
	require.True(t, ok)
	assert.Equal(t, engine.ExceptionLateShipment, e.Type)
	assert.Equal(t, 8610.0, e.EstValueAtRisk)
	assert.Equal(t, 94, e.RiskScore)
	assert.Equal(t, "SHP-00001", e.ShipmentID)
}

func TestComputeExceptions_HighCover_ExcessRisk(t *testing.T) {
	// GIVEN: onHand 300, target 10, forecast 70/week (doc 30 > 10+16)
	// WHEN: scanning
	// THEN: an EXCESS_RISK surfaces, half way up the excess band

	s := &engine.DemoState{
		FuelIndex:     1.0,
		Nodes:         []engine.Node{{ID: "D1", Name: "DC - Northeast", Type: engine.NodeDC, Region: engine.RegionNortheast}},
		SKUs:          []engine.SKU{wipes()},
		Inventory:     []engine.InventoryPosition{{NodeID: "D1", SKUID: "S1", OnHand: 300, TargetDaysCover: 10}},
		DemandHistory: flatHistory(engine.RegionNortheast, "S1", 10, 14),
	}

	ex := engine.ComputeExceptions(s)

	require.Len(t, ex, 1)
	e, ok := findException(ex, "EX_INV_EX_D1_S1")
	require.True(t, ok, "expected excess exception")
	assert.Equal(t, engine.ExceptionExcess, e.Type)
	assert.Equal(t, "D1", e.NodeID)
	assert.Equal(t, "S1", e.SKUID)
	// ratio (30-(10+10))/(10+10) = 0.5 -> round(45 + 27.5)
	assert.Equal(t, 73, e.RiskScore)
	assert.Equal(t, 90.0, e.EstValueAtRisk) // round((30-10)*10*(0.7+0.05)*0.6)
	require.Len(t, e.RecommendedActions, 2)
	assert.Equal(t, engine.HintRunRebalance, e.RecommendedActions[0].ExecuteHint)
	assert.Equal(t, engine.HintPromoSuggest, e.RecommendedActions[1].ExecuteHint)
}

func TestComputeExceptions_ExcessRisk_SaturatesAt100(t *testing.T) {
	s := &engine.DemoState{
		FuelIndex:     1.0,
		Nodes:         []engine.Node{{ID: "D1", Name: "DC - Northeast", Type: engine.NodeDC, Region: engine.RegionNortheast}},
		SKUs:          []engine.SKU{wipes()},
		Inventory:     []engine.InventoryPosition{{NodeID: "D1", SKUID: "S1", OnHand: 600, TargetDaysCover: 10}},
		DemandHistory: flatHistory(engine.RegionNortheast, "S1", 10, 14),
	}

	e, ok := findException(engine.ComputeExceptions(s), "EX_INV_EX_D1_S1")

	require.True(t, ok)
	assert.Equal(t, 100, e.RiskScore)
	assert.Equal(t, 2250.0, e.EstValueAtRisk) // round((60-10)*10*0.75*0.6)
}

func TestComputeExceptions_LaneCostOutliers_TopSix(t *testing.T) {
	// GIVEN: eight lanes of 100..800 mi at $2/mi with fuel index 1.1
	// WHEN: scanning
	// THEN: only the six costliest lanes (300..800 mi) are flagged

	s := &engine.DemoState{
		FuelIndex: 1.1,
		Nodes: []engine.Node{
			{ID: "D1", Name: "DC - Northeast", Type: engine.NodeDC, Region: engine.RegionNortheast},
			{ID: "D2", Name: "DC - Southeast", Type: engine.NodeDC, Region: engine.RegionSoutheast},
			{ID: "D3", Name: "DC - Midwest", Type: engine.NodeDC, Region: engine.RegionMidwest},
			{ID: "D4", Name: "DC - West", Type: engine.NodeDC, Region: engine.RegionWest},
		},
		Lanes: []engine.Lane{
			{ID: "L300", OriginID: "D1", DestID: "D2", Miles: 300, BaseCostPerMile: 2, Mode: engine.ModeTruck},
			{ID: "L800", OriginID: "D1", DestID: "D3", Miles: 800, BaseCostPerMile: 2, Mode: engine.ModeTruck},
			{ID: "L100", OriginID: "D1", DestID: "D4", Miles: 100, BaseCostPerMile: 2, Mode: engine.ModeTruck},
			{ID: "L600", OriginID: "D2", DestID: "D1", Miles: 600, BaseCostPerMile: 2, Mode: engine.ModeTruck},
			{ID: "L200", OriginID: "D2", DestID: "D3", Miles: 200, BaseCostPerMile: 2, Mode: engine.ModeTruck},
			{ID: "L700", OriginID: "D2", DestID: "D4", Miles: 700, BaseCostPerMile: 2, Mode: engine.ModeTruck},
			{ID: "L400", OriginID: "D3", DestID: "D1", Miles: 400, BaseCostPerMile: 2, Mode: engine.ModeTruck},
			{ID: "L500", OriginID: "D3", DestID: "D2", Miles: 500, BaseCostPerMile: 2, Mode: engine.ModeTruck},
		},
	}

	ex := engine.ComputeExceptions(s)

	var flagged []string
	for _, e := range ex {
		require.Equal(t, engine.ExceptionLaneCostOutlier, e.Type)
		flagged = append(flagged, e.LaneID)
	}
	assert.ElementsMatch(t, []string{"L800", "L700", "L600", "L500", "L400", "L300"}, flagged)

	for _, l := range s.Lanes {
		e, ok := findException(ex, "EX_LANE_"+l.ID)
		if l.Miles < 300 {
			assert.False(t, ok, "lane %s is not among the costliest", l.ID)
			continue
		}
		require.True(t, ok, "lane %s should be flagged", l.ID)
		assert.Equal(t, math.Round(engine.BaseFreight(s, l)*0.12), e.EstValueAtRisk)
	}

	top, _ := findException(ex, "EX_LANE_L800")
	assert.Equal(t, 211.0, top.EstValueAtRisk) // round(800*2*1.1*0.12)
	assert.Equal(t, "EX_LANE_L800", ex[0].ID, "costliest lane ranks first")
}

func TestComputeExceptions_RankedAndIdempotent(t *testing.T) {
	s := engine.Step(engine.Generate(42).WithScenario(engine.ScenarioToggles{CarrierDisruption: true, DemandSpike: true}), 10)

	first := engine.ComputeExceptions(s)
	second := engine.ComputeExceptions(s)

	require.NotEmpty(t, first)
	assert.LessOrEqual(t, len(first), engine.MaxExceptions)
	assert.Equal(t, first, second)
	for i := 1; i < len(first); i++ {
		prev, cur := first[i-1], first[i]
		require.GreaterOrEqual(t, prev.EstValueAtRisk, cur.EstValueAtRisk)
		if prev.EstValueAtRisk == cur.EstValueAtRisk {
			require.GreaterOrEqual(t, prev.RiskScore, cur.RiskScore)
		}
	}
}

func TestRankExceptions_TieBreaks(t *testing.T) {
	ex := []engine.Exception{
		{ID: "b", EstValueAtRisk: 100, RiskScore: 50},
		{ID: "a", EstValueAtRisk: 100, RiskScore: 50},
		{ID: "c", EstValueAtRisk: 100, RiskScore: 70},
		{ID: "d", EstValueAtRisk: 200, RiskScore: 10},
	}

	engine.RankExceptions(ex)

	ids := []string{ex[0].ID, ex[1].ID, ex[2].ID, ex[3].ID}
	assert.Equal(t, []string{"d", "c", "a", "b"}, ids)
}

// =============================================================================
// REBALANCER
// =============================================================================

func TestProposeRebalancing_SingleDonorReceiver(t *testing.T) {
	// GIVEN: donor surplus 200 (doc 28, target 10) and receiver deficit 150
	//        (doc 8.5, target 16)
	// WHEN: proposing
	// THEN: one transfer of 150 cases priced on the existing lane

	transfers := engine.ProposeRebalancing(twoDCState(), 10, "")

	require.Len(t, transfers, 1)
	tr := transfers[0]
	assert.Equal(t, "D1", tr.FromNodeID)
	assert.Equal(t, "D2", tr.ToNodeID)
	assert.Equal(t, 150, tr.QtyCases)
	assert.Equal(t, 2180.0, tr.EstTransferCost) // 800*2.5*1.0 + 180
	assert.Equal(t, 525.0, tr.EstValue)         // 150*14*0.25
	assert.Equal(t, tr.EstValue-tr.EstTransferCost, tr.NetValue)
	assert.Equal(t, 2, tr.EstTransitDays)
}

func TestProposeRebalancing_SKUFilterAndCap(t *testing.T) {
	s := twoDCState()

	assert.Empty(t, engine.ProposeRebalancing(s, 10, "S9"))
	assert.Empty(t, engine.ProposeRebalancing(s, 0, ""))
}

func TestApplyTransfers_ConservesCases(t *testing.T) {
	// GIVEN: the proposed transfer
	// WHEN: applying it
	// THEN: donor on-hand drop equals receiver in-transit gain

	s := twoDCState()
	transfers := engine.ProposeRebalancing(s, 10, "")

	next, report := engine.ApplyTransfers(s, transfers)

	assert.Equal(t, 150, report.MovedCases())
	assert.Empty(t, report.CreatedLanes, "existing lane is reused")
	assert.Equal(t, 410, position(next, "D1", "S1").OnHand)
	assert.Equal(t, 150, position(next, "D2", "S1").InTransit)

	require.Len(t, next.Shipments, 1)
	sh := next.Shipments[0]
	assert.Equal(t, engine.StatusInTransit, sh.Status)
	assert.Equal(t, "L001", sh.LaneID)
	assert.Equal(t, 150, sh.QtyCases)
	assert.Equal(t, 2, sh.ETADay)

	// input untouched
	assert.Equal(t, 560, position(s, "D1", "S1").OnHand)
	assert.Empty(t, s.Shipments)
}

func TestApplyTransfers_CapsAtDonorOnHand_CreatesLane(t *testing.T) {
	// GIVEN: a transfer D2->D1 larger than D2's on-hand, no lane in that direction
	// WHEN: applying it
	// THEN: only on-hand moves and a lane is synthesized

	s := twoDCState()
	tr := engine.Transfer{FromNodeID: "D2", ToNodeID: "D1", SKUID: "S1", QtyCases: 500}

	next, report := engine.ApplyTransfers(s, []engine.Transfer{tr})

	assert.Equal(t, 170, report.MovedCases())
	assert.Equal(t, 0, position(next, "D2", "S1").OnHand)
	assert.Equal(t, 170, position(next, "D1", "S1").InTransit)
	require.Len(t, report.CreatedLanes, 1)
	assert.Equal(t, "L-D2-D1", report.CreatedLanes[0].ID)
	assert.Len(t, next.Lanes, 2)
	assert.Len(t, s.Lanes, 1)
	require.NoError(t, next.Validate())
}

func TestApplyTransfers_NoCarriers_Skipped(t *testing.T) {
	// GIVEN: a state with no carriers to book
	// WHEN: applying a transfer that would synthesize a lane
	// THEN: it is skipped without a shipment, a lane, or an inventory move

	s := twoDCState()
	s.Carriers = nil
	tr := engine.Transfer{FromNodeID: "D2", ToNodeID: "D1", SKUID: "S1", QtyCases: 50}

	next, report := engine.ApplyTransfers(s, []engine.Transfer{tr})

	require.Len(t, report.Skipped, 1)
	assert.Equal(t, tr, report.Skipped[0])
	assert.Empty(t, report.Moves)
	assert.Empty(t, report.CreatedLanes)
	assert.Empty(t, next.Shipments)
	assert.Len(t, next.Lanes, 1)
	assert.Equal(t, s.Inventory, next.Inventory)
}

func TestPriceTransfer_IgnoresSubmittedAmounts(t *testing.T) {
	// GIVEN: a transfer claiming a huge negative cost and a huge value
	// WHEN: pricing it
	// THEN: quantity is clamped to donor on-hand and amounts come from the lane

	s := twoDCState()
	forged := engine.Transfer{
		FromNodeID: "D1", ToNodeID: "D2", SKUID: "S1", QtyCases: 5000,
		EstTransferCost: -1e6, EstValue: 1e9, NetValue: 1e9, EstTransitDays: 0,
	}

	got, err := engine.PriceTransfer(s, forged)

	require.NoError(t, err)
	assert.Equal(t, 560, got.QtyCases)
	assert.Equal(t, 2180.0, got.EstTransferCost) // 800*2.5*1.0 + 180
	assert.Equal(t, 1960.0, got.EstValue)        // 560*14*0.25
	assert.Equal(t, -220.0, got.NetValue)
	assert.Equal(t, 2, got.EstTransitDays)
	assert.Equal(t, "Manual transfer of 560 cases over 800 mi.", got.Rationale)
}

func TestPriceTransfer_ClampsToMoveCap(t *testing.T) {
	s := twoDCState()
	s.Inventory[0].OnHand = 2000

	got, err := engine.PriceTransfer(s, engine.Transfer{FromNodeID: "D1", ToNodeID: "D2", SKUID: "S1", QtyCases: 1500, Rationale: "keep me"})

	require.NoError(t, err)
	assert.Equal(t, 900, got.QtyCases)
	assert.Equal(t, 3150.0, got.EstValue) // 900*14*0.25
	assert.Equal(t, "keep me", got.Rationale)
}

func TestPriceTransfer_MatchesProposal(t *testing.T) {
	s := twoDCState()
	proposed := engine.ProposeRebalancing(s, 10, "")
	require.Len(t, proposed, 1)

	got, err := engine.PriceTransfer(s, proposed[0])

	require.NoError(t, err)
	assert.Equal(t, proposed[0], got)
}

func TestPriceTransfer_Rejects(t *testing.T) {
	withState := func(mut func(*engine.DemoState)) *engine.DemoState {
		s := twoDCState()
		mut(s)
		return s
	}
	base := engine.Transfer{FromNodeID: "D1", ToNodeID: "D2", SKUID: "S1", QtyCases: 10}

	tests := []struct {
		name  string
		state *engine.DemoState
		edit  func(*engine.Transfer)
	}{
		{"zero quantity", twoDCState(), func(t *engine.Transfer) { t.QtyCases = 0 }},
		{"negative quantity", twoDCState(), func(t *engine.Transfer) { t.QtyCases = -5 }},
		{"same node", twoDCState(), func(t *engine.Transfer) { t.ToNodeID = "D1" }},
		{"unknown origin", twoDCState(), func(t *engine.Transfer) { t.FromNodeID = "D9" }},
		{"unknown destination", twoDCState(), func(t *engine.Transfer) { t.ToNodeID = "D9" }},
		{"unknown sku", twoDCState(), func(t *engine.Transfer) { t.SKUID = "S9" }},
		{"origin not a DC", withState(func(s *engine.DemoState) {
			s.Nodes = append(s.Nodes, engine.Node{ID: "R1", Type: engine.NodeCustomer, Region: engine.RegionNortheast})
		}), func(t *engine.Transfer) { t.FromNodeID = "R1" }},
		{"no receiver position", withState(func(s *engine.DemoState) {
			s.Inventory = s.Inventory[:1]
		}), func(*engine.Transfer) {}},
		{"donor empty", withState(func(s *engine.DemoState) {
			s.Inventory[0].OnHand = 0
		}), func(*engine.Transfer) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := base
			tt.edit(&tr)

			_, err := engine.PriceTransfer(tt.state, tr)

			require.ErrorIs(t, err, engine.ErrInvalidTransfer)
			assert.True(t, engine.IsClientError(err))
		})
	}
}

func TestApplyTransfers_SkipsMissingPositions(t *testing.T) {
	s := twoDCState()
	bad := engine.Transfer{FromNodeID: "D9", ToNodeID: "D1", SKUID: "S1", QtyCases: 100}

	next, report := engine.ApplyTransfers(s, []engine.Transfer{bad})

	assert.Len(t, report.Skipped, 1)
	assert.Empty(t, report.Moves)
	assert.Equal(t, s.Inventory, next.Inventory)
}

func TestGetOrCreateLane(t *testing.T) {
	s := twoDCState()

	lane, created, err := engine.GetOrCreateLane(s, "D1", "D2")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "L001", lane.ID)

	lane, created, err = engine.GetOrCreateLane(s, "D2", "D1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, engine.ModeTruck, lane.Mode)
	assert.Greater(t, lane.Miles, 0.0)
	assert.Len(t, s.Lanes, 1, "state is not modified")

	_, _, err = engine.GetOrCreateLane(s, "D1", "nope")
	assert.True(t, engine.IsNotFound(err))
}

// =============================================================================
// RE-TENDER
// =============================================================================

func TestRetenderOptions_SortedAndCapped(t *testing.T) {
	s := engine.Generate(42)
	id := s.Shipments[0].ID

	opts, err := engine.RetenderOptions(s, id)

	require.NoError(t, err)
	require.NotEmpty(t, opts)
	assert.LessOrEqual(t, len(opts), engine.MaxRetenderOptions)
	for i := 1; i < len(opts); i++ {
		assert.LessOrEqual(t, opts[i-1].ExpTotal, opts[i].ExpTotal)
	}
	for _, o := range opts {
		assert.GreaterOrEqual(t, o.ExpLateProb, 0.03)
		assert.LessOrEqual(t, o.ExpLateProb, 0.35)
	}
}

func TestRetenderOptions_ExpediteEconomics(t *testing.T) {
	// GIVEN: a STANDARD shipment on the 800 mi lane at fuel 1.0 (base 2000)
	// THEN: expedite costs 3100 with penalty 0.05*1600 = 80

	s := twoDCState()
	s.Shipments = []engine.Shipment{{ID: "SHP-00001", LaneID: "L001", CarrierID: "K1", SKUID: "S1", QtyCases: 200, ETADay: 2, Status: engine.StatusInTransit, Priority: engine.PriorityStandard}}

	opts, err := engine.RetenderOptions(s, "SHP-00001")
	require.NoError(t, err)

	var exp *engine.RetenderOption
	for i := range opts {
		if opts[i].CarrierID == engine.ExpediteOptionID {
			exp = &opts[i]
		}
	}
	require.NotNil(t, exp)
	assert.Equal(t, 3100.0, exp.ExpCost)
	assert.Equal(t, 80.0, exp.ExpPenalty)
	assert.Equal(t, 3180.0, exp.ExpTotal)
}

func TestApplyRetender_Expedite_BooksPremium(t *testing.T) {
	s := twoDCState()
	s.Shipments = []engine.Shipment{{ID: "SHP-00001", LaneID: "L001", CarrierID: "K1", SKUID: "S1", QtyCases: 200, ETADay: 2, Status: engine.StatusLate, LateByDays: 2, Priority: engine.PriorityProtect}}

	next, err := engine.ApplyRetender(s, "SHP-00001", engine.ExpediteOptionID)

	require.NoError(t, err)
	sh := next.Shipments[0]
	assert.Equal(t, engine.PremiumCarrierID, sh.CarrierID)
	assert.Equal(t, 0, sh.LateByDays)
	assert.Equal(t, engine.StatusInTransit, sh.Status)
	assert.Equal(t, engine.StatusLate, s.Shipments[0].Status, "input untouched")
}

func TestApplyRetender_Errors(t *testing.T) {
	s := twoDCState()
	s.Shipments = []engine.Shipment{{ID: "SHP-00001", LaneID: "L001", CarrierID: "K1", SKUID: "S1", QtyCases: 200, Status: engine.StatusDelivered}}

	_, err := engine.ApplyRetender(s, "SHP-99999", "K1")
	assert.ErrorIs(t, err, engine.ErrShipmentNotFound)
	assert.True(t, engine.IsNotFound(err))

	_, err = engine.ApplyRetender(s, "SHP-00001", "K1")
	assert.ErrorIs(t, err, engine.ErrShipmentDelivered)
	assert.True(t, engine.IsClientError(err))

	s.Shipments[0].Status = engine.StatusInTransit
	_, err = engine.ApplyRetender(s, "SHP-00001", "K42")
	assert.ErrorIs(t, err, engine.ErrCarrierNotFound)
}

// =============================================================================
// STEPPER
// =============================================================================

func TestStep_Deterministic(t *testing.T) {
	s := engine.Generate(42)

	a := engine.Step(s, 5)
	b := engine.Step(s, 5)
	assert.Equal(t, a, b)

	// day-derived streams: stepping one at a time matches stepping in bulk
	c := s
	for i := 0; i < 5; i++ {
		c = engine.Step(c, 1)
	}
	assert.Equal(t, a, c)
	assert.Equal(t, 5, a.Today)
}

func TestStep_DoesNotMutateInput(t *testing.T) {
	s := engine.Generate(42)
	before := s.Clone()

	_ = engine.Step(s, 3)

	assert.Equal(t, before, s)
}

func TestStep_ZeroDays_AdvancesOne(t *testing.T) {
	assert.Equal(t, 1, engine.Step(engine.Generate(1), 0).Today)
}

func TestStep_ShipmentLifecycleIsForwardOnly(t *testing.T) {
	// GIVEN: a generated world under every stressor
	// WHEN: stepping 40 days one at a time
	// THEN: statuses only move forward and DELIVERED shipments never change

	rank := map[engine.ShipmentStatus]int{
		engine.StatusPlanned:   0,
		engine.StatusInTransit: 1,
		engine.StatusLate:      2,
		engine.StatusDelivered: 3,
	}
	s := engine.Generate(42).WithScenario(engine.ScenarioToggles{
		DCOutage: true, CarrierDisruption: true, DemandSpike: true, CyberDegradedMode: true,
	})
	seen := make(map[string]engine.Shipment)
	for _, sh := range s.Shipments {
		seen[sh.ID] = sh
	}

	for day := 0; day < 40; day++ {
		s = engine.Step(s, 1)
		require.NoError(t, s.Validate(), "day %d", s.Today)
		for _, sh := range s.Shipments {
			prev, ok := seen[sh.ID]
			if ok {
				require.GreaterOrEqual(t, rank[sh.Status], rank[prev.Status], "%s went %s -> %s", sh.ID, prev.Status, sh.Status)
				if prev.Status == engine.StatusDelivered {
					require.Equal(t, prev, sh)
				}
			}
			seen[sh.ID] = sh
		}
	}
}

func TestStep_BoundsAndRetention(t *testing.T) {
	s := engine.Step(engine.Generate(7), 60)

	assert.GreaterOrEqual(t, s.FuelIndex, engine.FuelIndexMin)
	assert.LessOrEqual(t, s.FuelIndex, engine.FuelIndexMax)
	assert.LessOrEqual(t, len(s.Shipments), engine.SimShipmentRetention)
	assert.LessOrEqual(t, len(s.DemandHistory), engine.DemandRetention)
	for _, inv := range s.Inventory {
		assert.GreaterOrEqual(t, inv.OnHand, 0)
	}
}

func TestStep_DeliveryMovesInTransitToOnHand(t *testing.T) {
	// GIVEN: one IN_TRANSIT STANDARD shipment of 150 cases into D2, due tomorrow, no stressors
	// WHEN: stepping one day
	// THEN: it is DELIVERED and D2 in-transit is released into on-hand

	s := twoDCState()
	s, _ = engine.ApplyTransfers(s, engine.ProposeRebalancing(s, 10, ""))
	s.Shipments[0].ETADay = 1
	id := s.Shipments[0].ID

	next := engine.Step(s, 1)

	var sh engine.Shipment
	for _, x := range next.Shipments {
		if x.ID == id {
			sh = x
		}
	}
	assert.Equal(t, engine.StatusDelivered, sh.Status)
	assert.Equal(t, 0, position(next, "D2", "S1").InTransit)
	// simulated Cleaning demand (~200/day) drains the 170 on hand before receipt
	assert.Equal(t, 150, position(next, "D2", "S1").OnHand)
}

func TestScenarioModifiers(t *testing.T) {
	m := engine.ScenarioModifiers(engine.ScenarioToggles{})
	assert.Equal(t, engine.Modifiers{DemandMult: 1, CapacityMult: 1}, m)

	m = engine.ScenarioModifiers(engine.ScenarioToggles{DCOutage: true, DemandSpike: true, CarrierDisruption: true, CyberDegradedMode: true})
	assert.Equal(t, 1.18, m.DemandMult)
	assert.Equal(t, 0.65, m.CapacityMult)
	assert.InDelta(t, 0.16, m.TransitDelayAdd, 1e-9)
}

func TestScenarioToggles(t *testing.T) {
	var s engine.ScenarioToggles

	s, err := s.Toggle(engine.ScenarioDCOutage)
	require.NoError(t, err)
	assert.True(t, s.DCOutage)
	assert.Equal(t, []string{engine.ScenarioDCOutage}, s.Active())

	_, err = s.Toggle("meteor")
	assert.ErrorIs(t, err, engine.ErrUnknownScenario)
	assert.True(t, engine.IsClientError(err))
}

// =============================================================================
// KPI / BRIEF / EXPORT
// =============================================================================

func TestComputeKPIs_Defaults(t *testing.T) {
	k := engine.ComputeKPIs(&engine.DemoState{})

	assert.Equal(t, 0.95, k.OTIF)
	assert.Equal(t, 0.92, k.FillRate)
	assert.Equal(t, 9.0, k.InventoryTurns)
	assert.Equal(t, 0.0, k.ExpediteSpend)
	assert.Equal(t, 0.0, k.ServiceRiskIndex)
}

func TestComputeKPIs_LateProtectAndLowCover(t *testing.T) {
	s := twoDCState()
	s.Shipments = []engine.Shipment{
		{ID: "SHP-00001", LaneID: "L001", CarrierID: "K1", SKUID: "S1", QtyCases: 100, Status: engine.StatusLate, LateByDays: 1, Priority: engine.PriorityProtect},
		{ID: "SHP-00002", LaneID: "L001", CarrierID: "K1", SKUID: "S1", QtyCases: 100, Status: engine.StatusDelivered, Priority: engine.PriorityStandard},
	}

	k := engine.ComputeKPIs(s)

	assert.Equal(t, 0.5, k.OTIF)
	assert.Equal(t, 0.5, k.FillRate, "D1 covered, D2 below 8.8 days")
	assert.Equal(t, engine.ExpeditePenalty, k.ExpediteSpend)
	assert.Equal(t, 1.0, k.ServiceRiskIndex) // (3+2)/2 capped at 100%
	assert.GreaterOrEqual(t, k.InventoryTurns, 3.0)
	assert.LessOrEqual(t, k.InventoryTurns, 18.0)
}

func TestBuildExecutiveBrief(t *testing.T) {
	s := engine.Generate(42)

	brief := engine.BuildExecutiveBrief(s)
	require.NotEmpty(t, brief)
	last := brief[len(brief)-1]
	assert.Contains(t, last.Question, "degraded-mode")
	assert.Contains(t, last.Answer, "Turn on a scenario")

	stressed := engine.BuildExecutiveBrief(s.WithScenario(engine.ScenarioToggles{DCOutage: true}))
	assert.Contains(t, stressed[len(stressed)-1].Answer, engine.ScenarioDCOutage)
}

func TestDCThroughputRisk_OutageCutsNortheast(t *testing.T) {
	s := engine.Generate(42)

	normal := engine.DCThroughputRisk(s)
	outage := engine.DCThroughputRisk(s.WithScenario(engine.ScenarioToggles{DCOutage: true}))

	require.Len(t, normal, 5)
	capOf := func(rows []engine.DCThroughput, id string) int {
		for _, r := range rows {
			if r.DC.ID == id {
				return r.Capacity
			}
		}
		return 0
	}
	assert.Equal(t, 10200, capOf(normal, "D1"))
	assert.Equal(t, 5610, capOf(outage, "D1"))
	for i := 1; i < len(normal); i++ {
		assert.GreaterOrEqual(t, normal[i-1].Utilization, normal[i].Utilization)
	}
}

func TestExportTables_IsACopy(t *testing.T) {
	s := engine.Generate(42)

	tables := engine.ExportTables(s)
	tables.Inventory[0].OnHand = -1

	assert.Len(t, tables.Shipments, 50)
	assert.NotEqual(t, -1, s.Inventory[0].OnHand)
}

// =============================================================================
// RAND
// =============================================================================

func TestRand_ForDayReproducible(t *testing.T) {
	a := engine.ForDay(42, 3)
	b := engine.ForDay(42, 3)
	c := engine.ForDay(42, 4)

	av, bv, cv := a.Float64(), b.Float64(), c.Float64()
	assert.Equal(t, av, bv)
	assert.NotEqual(t, av, cv)
}

func TestRand_ForkIndependent(t *testing.T) {
	g := engine.NewRand(1)
	f1 := g.Fork(1)
	f2 := engine.NewRand(1).Fork(2)

	assert.NotEqual(t, f1.Float64(), f2.Float64())
	for i := 0; i < 100; i++ {
		n := g.Intn(5)
		assert.GreaterOrEqual(t, n, 0)
		assert.Less(t, n, 5)
	}
}
