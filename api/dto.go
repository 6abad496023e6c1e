/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Engine and store types
  are already JSON-tagged and are returned as-is where they fit; the types
  here cover request bodies and composite responses.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers and the store, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: PolicyJSON type
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/autopilot/autopilot"
	"github.com/warp/autopilot/engine"
	"github.com/warp/autopilot/factory"
)

// =============================================================================
// STATE
// =============================================================================

// StateResponse is the full store view returned by GET /api/state and by
// every mutating command.
type StateResponse struct {
	State   *engine.DemoState     `json:"state"`
	Running bool                  `json:"running"`
	Guided  autopilot.GuidedState `json:"guided"`
	Changed []autopilot.Facet     `json:"changed,omitempty"`
}

// RegenerateRequest is the body for POST /api/regenerate. A nil seed picks
// a fresh one.
type RegenerateRequest struct {
	Seed *uint32 `json:"seed,omitempty"`
}

// StepRequest is the body for POST /api/step.
type StepRequest struct {
	Days int `json:"days"`
}

// LiveRequest is the body for POST /api/live.
type LiveRequest struct {
	Running bool `json:"running"`
}

// LiveDTO reports live-mode status.
type LiveDTO struct {
	Running  bool   `json:"running"`
	Interval string `json:"interval"`
	Ticks    int64  `json:"ticks"`
}

// =============================================================================
// DECISIONS
// =============================================================================

// ProposalsResponse is returned by GET /api/rebalance/proposals.
type ProposalsResponse struct {
	Transfers []engine.Transfer `json:"transfers"`
	TotalCost float64           `json:"totalCost"`
	TotalNet  float64           `json:"totalNet"`
}

// ExecuteRebalanceRequest is the body for POST /api/rebalance/execute. When
// Transfers is empty the current proposals are executed, optionally
// filtered by SKUID.
type ExecuteRebalanceRequest struct {
	Transfers []engine.Transfer `json:"transfers,omitempty"`
	SKUID     string            `json:"skuId,omitempty"`
}

// ExecutionResponse wraps an execution outcome with the updated spend.
type ExecutionResponse struct {
	Result     autopilot.ExecutionResult `json:"result"`
	SpendToday decimal.Decimal           `json:"spendToday"`
	Headroom   decimal.Decimal           `json:"headroom"`
}

// RetenderRequest is the body for POST /api/shipments/{id}/retender.
type RetenderRequest struct {
	CarrierID string `json:"carrierId"`
}

// ShipmentDTO is a shipment with its lane endpoints resolved.
type ShipmentDTO struct {
	engine.Shipment
	OriginID string `json:"originId"`
	DestID   string `json:"destId"`
}

// ForecastDTO is one DC/SKU cover row.
type ForecastDTO struct {
	NodeID          string        `json:"nodeId"`
	SKUID           string        `json:"skuId"`
	Region          engine.Region `json:"region"`
	Next7d          int           `json:"next7d"`
	Next28d         int           `json:"next28d"`
	DaysOfCover     float64       `json:"daysOfCover"`
	TargetDaysCover int           `json:"targetDaysCover"`
	MinCover        float64       `json:"minCover"`
}

// LaneActivityDTO is a lane with its en-route shipment count.
type LaneActivityDTO struct {
	engine.Lane
	ActiveShipments int `json:"activeShipments"`
}

// NetworkDTO is returned by GET /api/network.
type NetworkDTO struct {
	Nodes      []engine.Node         `json:"nodes"`
	Lanes      []LaneActivityDTO     `json:"lanes"`
	Throughput []engine.DCThroughput `json:"throughput"`
}

// =============================================================================
// POLICY & AUDIT
// =============================================================================

// PolicyDTO wraps the policy JSON with today's spend.
type PolicyDTO struct {
	Policy     factory.PolicyJSON `json:"policy"`
	SpendToday decimal.Decimal    `json:"spendToday"`
	Headroom   decimal.Decimal    `json:"headroom"`
}

// LogsResponse is returned by GET /api/logs.
type LogsResponse struct {
	Logs       []autopilot.ActionLog `json:"logs"`
	Source     string                `json:"source"`
	SpendToday decimal.Decimal       `json:"spendToday"`
}

// Values for the source query parameter of GET /api/logs.
const (
	LogSourceMemory = "memory" // session log, reset by regenerate
	LogSourceAudit  = "audit"  // durable audit trail
)

// EventsResponse is the audit-event stub listing.
type EventsResponse struct {
	OK     bool   `json:"ok"`
	Note   string `json:"note"`
	Events []any  `json:"events"`
}

// EventReceipt echoes a posted audit event.
type EventReceipt struct {
	OK       bool   `json:"ok"`
	Note     string `json:"note"`
	ID       string `json:"id"`
	Received any    `json:"received"`
}

// =============================================================================
// GUIDED & SCENARIOS
// =============================================================================

// GuidedDTO is the tour position plus the step catalogue.
type GuidedDTO struct {
	State   autopilot.GuidedState  `json:"state"`
	Current *autopilot.GuidedStep  `json:"current,omitempty"`
	Steps   []autopilot.GuidedStep `json:"steps"`
}

// ScenarioDTO represents a loadable scenario preset.
type ScenarioDTO = factory.ScenarioPreset

// LoadScenarioRequest is the body for POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
