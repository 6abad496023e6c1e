/*
Package engine provides the simulation-and-decision core of the autopilot.

PURPOSE:
  Everything with algorithmic content lives here: the seeded world generator,
  the demand forecaster, the days-of-cover rebalancer, the carrier re-tender
  cost model, the exception scorer, the daily stepper, and KPI aggregation.
  Callers (the autopilot Store, the API) treat these as pure functions over a
  DemoState snapshot.

KEY CONCEPTS IN THIS FILE (types.go):
  - Node / SKU / Carrier / Lane: static network after generation
  - Shipment: moves cases along a lane; forward-only status machine
  - InventoryPosition: one row per (DC, SKU)
  - DemandPoint: rolling demand history
  - DemoState: the aggregate root, replaced wholesale on every mutation

DESIGN PRINCIPLES:
  1. Copy-on-write: no engine function mutates its input state
  2. Determinism: every random draw derives from DemoState.Seed
  3. Referential integrity: shipments always point at known lanes/carriers/SKUs

SEE ALSO:
  - rand.go: seeded random source
  - generator.go: builds the initial DemoState
  - simulator.go: advances the DemoState by days
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// ENUMS
// =============================================================================

type NodeType string

const (
	NodePlant    NodeType = "PLANT"
	NodeDC       NodeType = "DC"
	NodeCustomer NodeType = "CUSTOMER"
)

type Region string

const (
	RegionNortheast Region = "Northeast"
	RegionSoutheast Region = "Southeast"
	RegionMidwest   Region = "Midwest"
	RegionSouthwest Region = "Southwest"
	RegionWest      Region = "West"
)

// Regions lists every region in canonical order. Iteration order matters for
// reproducibility, so callers must range over this slice rather than a map.
var Regions = []Region{RegionNortheast, RegionSoutheast, RegionMidwest, RegionSouthwest, RegionWest}

type SKUFamily string

const (
	FamilyCleaning   SKUFamily = "Cleaning"
	FamilyBags       SKUFamily = "Bags"
	FamilyFiltration SKUFamily = "Filtration"
	FamilyCondiments SKUFamily = "Condiments"
)

type LaneMode string

const (
	ModeTruck      LaneMode = "TRUCK"
	ModeIntermodal LaneMode = "INTERMODAL"
)

type ShipmentStatus string

const (
	StatusPlanned   ShipmentStatus = "PLANNED"
	StatusInTransit ShipmentStatus = "IN_TRANSIT"
	StatusLate      ShipmentStatus = "LATE"
	StatusDelivered ShipmentStatus = "DELIVERED"
)

// IsTerminal reports whether no further transition is possible.
func (s ShipmentStatus) IsTerminal() bool { return s == StatusDelivered }

// IsEnRoute reports whether the cases are physically moving.
func (s ShipmentStatus) IsEnRoute() bool { return s == StatusInTransit || s == StatusLate }

type Priority string

const (
	PriorityStandard Priority = "STANDARD"
	PriorityProtect  Priority = "PROTECT"
)

// =============================================================================
// NETWORK
// =============================================================================

type Node struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Type   NodeType `json:"type"`
	Region Region   `json:"region"`
	Lat    float64  `json:"lat"`
	Lon    float64  `json:"lon"`
}

type SKU struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Family        SKUFamily `json:"family"`
	Unit          string    `json:"unit"`
	MarginPerCase float64   `json:"marginPerCase"`
	CubePerCase   float64   `json:"cubePerCase"`
	PerishRisk    float64   `json:"perishRisk"` // 0..1, scoring only
}

type Carrier struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	BaseOnTime  float64 `json:"baseOnTime"`
	BaseRateAdj float64 `json:"baseRateAdj"`
}

type Lane struct {
	ID              string   `json:"id"`
	OriginID        string   `json:"originId"`
	DestID          string   `json:"destId"`
	Miles           float64  `json:"miles"`
	BaseCostPerMile float64  `json:"baseCostPerMile"`
	Mode            LaneMode `json:"mode"`
}

// =============================================================================
// FLOWS AND POSITIONS
// =============================================================================

// Shipment moves QtyCases of one SKU along a lane.
// Status only moves forward: PLANNED -> IN_TRANSIT/LATE -> DELIVERED.
type Shipment struct {
	ID         string         `json:"id"`
	LaneID     string         `json:"laneId"`
	CarrierID  string         `json:"carrierId"`
	SKUID      string         `json:"skuId"`
	QtyCases   int            `json:"qtyCases"`
	ShipDay    int            `json:"shipDay"`
	ETADay     int            `json:"etaDay"`
	Status     ShipmentStatus `json:"status"`
	LateByDays int            `json:"lateByDays"`
	Priority   Priority       `json:"priority"`
}

type InventoryPosition struct {
	NodeID          string `json:"nodeId"`
	SKUID           string `json:"skuId"`
	OnHand          int    `json:"onHand"`
	OnOrder         int    `json:"onOrder"`
	InTransit       int    `json:"inTransit"`
	TargetDaysCover int    `json:"targetDaysCover"`
}

type DemandPoint struct {
	Day         int    `json:"day"`
	Region      Region `json:"region"`
	SKUID       string `json:"skuId"`
	DemandCases int    `json:"demandCases"`
}

// ScenarioToggles are stressors read by the stepper and the risk scorer.
// The generator never looks at them.
type ScenarioToggles struct {
	DCOutage          bool `json:"dcOutage"`
	CarrierDisruption bool `json:"carrierDisruption"`
	DemandSpike       bool `json:"demandSpike"`
	CyberDegradedMode bool `json:"cyberDegradedMode"`
}

// Scenario toggle names as used by the API and persisted logs.
const (
	ScenarioDCOutage          = "dcOutage"
	ScenarioCarrierDisruption = "carrierDisruption"
	ScenarioDemandSpike       = "demandSpike"
	ScenarioCyberDegradedMode = "cyberDegradedMode"
)

// ScenarioNames lists toggles in display order.
var ScenarioNames = []string{ScenarioDCOutage, ScenarioCarrierDisruption, ScenarioDemandSpike, ScenarioCyberDegradedMode}

// Toggle returns a copy with the named flag flipped.
func (s ScenarioToggles) Toggle(name string) (ScenarioToggles, error) {
	on, err := s.Get(name)
	if err != nil {
		return s, err
	}
	return s.Set(name, !on)
}

// Set returns a copy with the named flag set to on.
func (s ScenarioToggles) Set(name string, on bool) (ScenarioToggles, error) {
	switch name {
	case ScenarioDCOutage:
		s.DCOutage = on
	case ScenarioCarrierDisruption:
		s.CarrierDisruption = on
	case ScenarioDemandSpike:
		s.DemandSpike = on
	case ScenarioCyberDegradedMode:
		s.CyberDegradedMode = on
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	return s, nil
}

// Get reads the named flag.
func (s ScenarioToggles) Get(name string) (bool, error) {
	switch name {
	case ScenarioDCOutage:
		return s.DCOutage, nil
	case ScenarioCarrierDisruption:
		return s.CarrierDisruption, nil
	case ScenarioDemandSpike:
		return s.DemandSpike, nil
	case ScenarioCyberDegradedMode:
		return s.CyberDegradedMode, nil
	}
	return false, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
}

// Active returns the names of enabled toggles in display order.
func (s ScenarioToggles) Active() []string {
	var out []string
	for _, name := range ScenarioNames {
		if on, _ := s.Get(name); on {
			out = append(out, name)
		}
	}
	return out
}

// =============================================================================
// DEMO STATE - Aggregate root
// =============================================================================

// Sequence holds the counters used to mint IDs. Keeping them in state means a
// replayed run produces the same IDs.
type Sequence struct {
	Shipment int `json:"shipment"`
	Lane     int `json:"lane"`
}

func (q *Sequence) nextShipmentID() string {
	q.Shipment++
	return fmt.Sprintf("SHP-%05d", q.Shipment)
}

func (q *Sequence) nextLaneID() string {
	q.Lane++
	return fmt.Sprintf("L%03d", q.Lane)
}

type DemoState struct {
	Seed          uint32              `json:"seed"`
	Today         int                 `json:"today"`
	FuelIndex     float64             `json:"fuelIndex"`
	Nodes         []Node              `json:"nodes"`
	SKUs          []SKU               `json:"skus"`
	Carriers      []Carrier           `json:"carriers"`
	Lanes         []Lane              `json:"lanes"`
	Shipments     []Shipment          `json:"shipments"`
	Inventory     []InventoryPosition `json:"inventory"`
	DemandHistory []DemandPoint       `json:"demandHistory"`
	Scenario      ScenarioToggles     `json:"scenario"`
	Seq           Sequence            `json:"seq"`
}

// Clone returns a deep copy. Every collection is a value slice, so copying the
// slices is sufficient.
func (s *DemoState) Clone() *DemoState {
	if s == nil {
		return nil
	}
	c := *s
	c.Nodes = append([]Node(nil), s.Nodes...)
	c.SKUs = append([]SKU(nil), s.SKUs...)
	c.Carriers = append([]Carrier(nil), s.Carriers...)
	c.Lanes = append([]Lane(nil), s.Lanes...)
	c.Shipments = append([]Shipment(nil), s.Shipments...)
	c.Inventory = append([]InventoryPosition(nil), s.Inventory...)
	c.DemandHistory = append([]DemandPoint(nil), s.DemandHistory...)
	return &c
}

// WithScenario returns a copy carrying the given toggles.
func (s *DemoState) WithScenario(t ScenarioToggles) *DemoState {
	c := s.Clone()
	c.Scenario = t
	return c
}

// Validate checks the invariants that must survive every transition.
func (s *DemoState) Validate() error {
	idx := newIndex(s)
	var errs []error
	if s.FuelIndex < FuelIndexMin || s.FuelIndex > FuelIndexMax {
		errs = append(errs, fmt.Errorf("fuel index %.3f outside [%.2f, %.2f]", s.FuelIndex, FuelIndexMin, FuelIndexMax))
	}
	for _, sh := range s.Shipments {
		if _, ok := idx.lanes[sh.LaneID]; !ok {
			errs = append(errs, fmt.Errorf("shipment %s: %w: %s", sh.ID, ErrLaneNotFound, sh.LaneID))
		}
		if _, ok := idx.carriers[sh.CarrierID]; !ok {
			errs = append(errs, fmt.Errorf("shipment %s: %w: %s", sh.ID, ErrCarrierNotFound, sh.CarrierID))
		}
		if _, ok := idx.skus[sh.SKUID]; !ok {
			errs = append(errs, fmt.Errorf("shipment %s: %w: %s", sh.ID, ErrSKUNotFound, sh.SKUID))
		}
		if sh.ETADay < sh.ShipDay {
			errs = append(errs, fmt.Errorf("shipment %s: eta day %d before ship day %d", sh.ID, sh.ETADay, sh.ShipDay))
		}
	}
	seen := make(map[invKey]bool, len(s.Inventory))
	for _, inv := range s.Inventory {
		k := invKey{inv.NodeID, inv.SKUID}
		if seen[k] {
			errs = append(errs, fmt.Errorf("duplicate inventory position %s/%s", inv.NodeID, inv.SKUID))
		}
		seen[k] = true
		if inv.OnHand < 0 {
			errs = append(errs, fmt.Errorf("inventory %s/%s: negative on-hand %d", inv.NodeID, inv.SKUID, inv.OnHand))
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// LOOKUP INDEX
// =============================================================================

type invKey struct {
	NodeID string
	SKUID  string
}

type pairKey struct {
	OriginID string
	DestID   string
}

// index is a read-only lookup view built once per call.
type index struct {
	nodes    map[string]Node
	skus     map[string]SKU
	carriers map[string]Carrier
	lanes    map[string]Lane
	lanePair map[pairKey]Lane
}

func newIndex(s *DemoState) *index {
	idx := &index{
		nodes:    make(map[string]Node, len(s.Nodes)),
		skus:     make(map[string]SKU, len(s.SKUs)),
		carriers: make(map[string]Carrier, len(s.Carriers)),
		lanes:    make(map[string]Lane, len(s.Lanes)),
		lanePair: make(map[pairKey]Lane, len(s.Lanes)),
	}
	for _, n := range s.Nodes {
		idx.nodes[n.ID] = n
	}
	for _, k := range s.SKUs {
		idx.skus[k.ID] = k
	}
	for _, c := range s.Carriers {
		idx.carriers[c.ID] = c
	}
	for _, l := range s.Lanes {
		idx.lanes[l.ID] = l
		// Later lanes win, matching a map built in slice order.
		idx.lanePair[pairKey{l.OriginID, l.DestID}] = l
	}
	return idx
}

func (s *DemoState) nodesOfType(t NodeType) []Node {
	var out []Node
	for _, n := range s.Nodes {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

func nodeIDs(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

// inventoryIndex maps (node, sku) to a slice position in inv.
func inventoryIndex(inv []InventoryPosition) map[invKey]int {
	m := make(map[invKey]int, len(inv))
	for i, p := range inv {
		m[invKey{p.NodeID, p.SKUID}] = i
	}
	return m
}
