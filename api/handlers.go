/*
handlers.go - HTTP API handlers for the supply-chain autopilot

PURPOSE:
  Exposes the engine and the Policy/Action Store via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the store.

ENDPOINTS:
  World:
    GET    /api/state                      Full state + running + guided
    POST   /api/regenerate                 New world (optional seed)
    POST   /api/step                       Advance N days
    GET    /api/scenario                   Scenario toggles
    PUT    /api/scenario                   Replace all toggles
    POST   /api/scenario/{name}/toggle     Flip one toggle

  Insight:
    GET    /api/kpis                       Headline KPIs
    GET    /api/exceptions                 Ranked exceptions
    GET    /api/brief                      Executive brief
    GET    /api/forecast                   Cover per DC/SKU
    GET    /api/shipments                  Shipments (filter by status)
    GET    /api/network                    Nodes, lane activity, DC throughput

  Decisions:
    GET    /api/rebalance/proposals        Candidate transfers
    POST   /api/rebalance/execute          Execute a batch (spend cap enforced)
    GET    /api/shipments/{id}/options     Re-tender options
    POST   /api/shipments/{id}/retender    Execute a re-tender

  Policy & audit:
    GET    /api/policy                     Guardrails + spend today
    PUT    /api/policy                     Partial update
    GET    /api/logs                       Action log, newest first
    GET    /api/events                     Audit event stub
    POST   /api/events                     Audit event stub (echo)

  Live, export, guided: see server.go

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Shipment, carrier or snapshot not found
  - 409: Action blocked by the spend cap, duplicate audit entry
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Scenario presets
  - scheduler.go: Live runner
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/autopilot/autopilot"
	"github.com/warp/autopilot/engine"
	"github.com/warp/autopilot/factory"
	"github.com/warp/autopilot/logger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         *autopilot.Store
	PolicyFactory *factory.PolicyFactory
	Live          *LiveRunner

	log     *logger.Logger
	newSeed func() uint32

	// Track currently loaded scenario preset
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler over the given store and live runner.
func NewHandler(store *autopilot.Store, live *LiveRunner, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		Store:         store,
		PolicyFactory: factory.NewPolicyFactory(),
		Live:          live,
		log:           log.With("component", "api"),
		newSeed:       func() uint32 { return uint32(rand.IntN(10_000)) },
	}
}

// =============================================================================
// WORLD
// =============================================================================

// GetState returns the full store view.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stateResponse(nil))
}

// Regenerate builds a new world. Live mode is stopped first.
func (h *Handler) Regenerate(w http.ResponseWriter, r *http.Request) {
	var req RegenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	seed := h.newSeed()
	if req.Seed != nil {
		seed = *req.Seed
	}

	h.Live.Stop()
	c := h.Store.Regenerate(seed)
	h.setCurrentScenario("")

	writeJSON(w, http.StatusOK, h.stateResponse(c.Facets))
}

// Step advances the simulation. Days defaults to 1.
func (h *Handler) Step(w http.ResponseWriter, r *http.Request) {
	var req StepRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Days < 0 || req.Days > 365 {
		writeError(w, http.StatusBadRequest, "days must be between 0 and 365", nil)
		return
	}

	c := h.Store.Step(req.Days)
	writeJSON(w, http.StatusOK, h.stateResponse(c.Facets))
}

// GetScenario returns the current toggles and the active names.
func (h *Handler) GetScenario(w http.ResponseWriter, r *http.Request) {
	t := h.Store.State().Scenario
	writeJSON(w, http.StatusOK, map[string]any{
		"toggles": t,
		"active":  nonNil(t.Active()),
		"names":   engine.ScenarioNames,
	})
}

// SetScenario replaces every toggle.
func (h *Handler) SetScenario(w http.ResponseWriter, r *http.Request) {
	var t engine.ScenarioToggles
	if err := decodeJSON(r, &t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	c := h.Store.SetScenario(t)
	writeJSON(w, http.StatusOK, h.stateResponse(c.Facets))
}

// ToggleScenario flips one named toggle.
func (h *Handler) ToggleScenario(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	c, err := h.Store.ToggleScenario(name)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.stateResponse(c.Facets))
}

// =============================================================================
// INSIGHT
// =============================================================================

func (h *Handler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, engine.ComputeKPIs(h.Store.State()))
}

// ListExceptions returns the ranked exception list, optionally filtered by type.
func (h *Handler) ListExceptions(w http.ResponseWriter, r *http.Request) {
	ex := engine.ComputeExceptions(h.Store.State())
	if typ := r.URL.Query().Get("type"); typ != "" {
		filtered := ex[:0]
		for _, e := range ex {
			if string(e.Type) == typ {
				filtered = append(filtered, e)
			}
		}
		ex = filtered
	}
	writeJSON(w, http.StatusOK, nonNil(ex))
}

func (h *Handler) GetBrief(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, engine.BuildExecutiveBrief(h.Store.State()))
}

// GetForecast returns days-of-cover per DC/SKU, lowest cover first.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	state := h.Store.State()
	skuID := r.URL.Query().Get("sku")

	regions := make(map[string]engine.Node, len(state.Nodes))
	for _, n := range state.Nodes {
		regions[n.ID] = n
	}

	out := []ForecastDTO{}
	for _, inv := range state.Inventory {
		node, ok := regions[inv.NodeID]
		if !ok || node.Type != engine.NodeDC {
			continue
		}
		if skuID != "" && inv.SKUID != skuID {
			continue
		}
		fc := engine.ForecastDemand(state.DemandHistory, node.Region, inv.SKUID, engine.DefaultAlpha)
		out = append(out, ForecastDTO{
			NodeID:          inv.NodeID,
			SKUID:           inv.SKUID,
			Region:          node.Region,
			Next7d:          fc.Next7d,
			Next28d:         fc.Next28d,
			DaysOfCover:     engine.DaysOfCover(inv, fc),
			TargetDaysCover: inv.TargetDaysCover,
			MinCover:        engine.MinCover(inv.TargetDaysCover),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DaysOfCover < out[j].DaysOfCover })

	writeJSON(w, http.StatusOK, out)
}

// ListShipments returns shipments, optionally filtered by status.
func (h *Handler) ListShipments(w http.ResponseWriter, r *http.Request) {
	state := h.Store.State()
	status := r.URL.Query().Get("status")

	lanes := make(map[string]engine.Lane, len(state.Lanes))
	for _, l := range state.Lanes {
		lanes[l.ID] = l
	}

	out := []ShipmentDTO{}
	for _, sh := range state.Shipments {
		if status != "" && string(sh.Status) != status {
			continue
		}
		l := lanes[sh.LaneID]
		out = append(out, ShipmentDTO{Shipment: sh, OriginID: l.OriginID, DestID: l.DestID})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetNetwork returns nodes, the busiest lanes and DC throughput.
func (h *Handler) GetNetwork(w http.ResponseWriter, r *http.Request) {
	state := h.Store.State()

	active := make(map[string]int)
	for _, sh := range state.Shipments {
		if sh.Status.IsEnRoute() {
			active[sh.LaneID]++
		}
	}
	lanes := make([]LaneActivityDTO, 0, len(state.Lanes))
	for _, l := range state.Lanes {
		lanes = append(lanes, LaneActivityDTO{Lane: l, ActiveShipments: active[l.ID]})
	}
	sort.SliceStable(lanes, func(i, j int) bool { return lanes[i].ActiveShipments > lanes[j].ActiveShipments })

	writeJSON(w, http.StatusOK, NetworkDTO{
		Nodes:      state.Nodes,
		Lanes:      lanes,
		Throughput: engine.DCThroughputRisk(state),
	})
}

// =============================================================================
// DECISIONS
// =============================================================================

// ListProposals returns candidate transfers, optionally for one SKU.
func (h *Handler) ListProposals(w http.ResponseWriter, r *http.Request) {
	transfers := h.Store.ProposeRebalance(r.URL.Query().Get("sku"))

	resp := ProposalsResponse{Transfers: nonNil(transfers)}
	for _, t := range transfers {
		resp.TotalCost += t.EstTransferCost
		resp.TotalNet += t.NetValue
	}
	writeJSON(w, http.StatusOK, resp)
}

// ExecuteRebalance executes the given transfers, or the current proposals
// when none are given.
func (h *Handler) ExecuteRebalance(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRebalanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	transfers := req.Transfers
	if len(transfers) == 0 {
		transfers = h.Store.ProposeRebalance(req.SKUID)
	}

	res, err := h.Store.ExecuteRebalance(r.Context(), transfers)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeExecution(w, res)
}

// GetRetenderOptions returns ranked carrier options for a shipment.
func (h *Handler) GetRetenderOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.Store.RetenderOptions(chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// ExecuteRetender books a carrier on a shipment.
func (h *Handler) ExecuteRetender(w http.ResponseWriter, r *http.Request) {
	var req RetenderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.CarrierID == "" {
		writeError(w, http.StatusBadRequest, "carrierId is required", nil)
		return
	}

	res, err := h.Store.ExecuteRetender(r.Context(), chi.URLParam(r, "id"), req.CarrierID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeExecution(w, res)
}

// writeExecution answers 200 for an applied action and 409 for one the
// spend cap blocked.
func (h *Handler) writeExecution(w http.ResponseWriter, res autopilot.ExecutionResult) {
	status := http.StatusOK
	if !res.OK {
		status = http.StatusConflict
	}
	writeJSON(w, status, ExecutionResponse{
		Result:     res,
		SpendToday: h.Store.SpendToday(),
		Headroom:   h.Store.Headroom(),
	})
}

// =============================================================================
// POLICY & AUDIT
// =============================================================================

func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.policyDTO())
}

// UpdatePolicy applies a partial policy update.
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body", err)
		return
	}
	patch, err := h.PolicyFactory.ParsePatch(string(body))
	if err != nil {
		h.handleError(w, err)
		return
	}
	if _, err := h.Store.SetPolicy(patch); err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.policyDTO())
}

func (h *Handler) policyDTO() PolicyDTO {
	return PolicyDTO{
		Policy:     h.PolicyFactory.ToJSON(h.Store.Policy()),
		SpendToday: h.Store.SpendToday(),
		Headroom:   h.Store.Headroom(),
	}
}

// ListLogs returns the action log, newest first. ?limit=N truncates;
// ?source=audit reads the durable audit trail instead of the session log.
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = n
	}

	source := r.URL.Query().Get("source")
	var logs []autopilot.ActionLog
	switch source {
	case "", LogSourceMemory:
		source = LogSourceMemory
		logs = h.Store.Logs()
		if r.URL.Query().Has("limit") {
			logs = logs[:min(limit, len(logs))]
		}
	case LogSourceAudit:
		if r.URL.Query().Has("limit") && limit == 0 {
			logs = nil
			break
		}
		var err error
		if logs, err = h.Store.AuditTrail(r.Context(), limit); err != nil {
			h.handleError(w, err)
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "invalid source", nil)
		return
	}

	writeJSON(w, http.StatusOK, LogsResponse{Logs: nonNil(logs), Source: source, SpendToday: h.Store.SpendToday()})
}

// ListEvents is the audit-event stub. Nothing is stored.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, EventsResponse{OK: true, Note: "stub (no persistence)", Events: []any{}})
}

// PostEvent echoes the posted body without storing it.
func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	var body any
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	writeJSON(w, http.StatusOK, EventReceipt{
		OK:       true,
		Note:     "stub (no persistence)",
		ID:       uuid.NewString(),
		Received: body,
	})
}

// =============================================================================
// LIVE & EXPORT
// =============================================================================

func (h *Handler) GetLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.liveDTO())
}

// SetLive starts or stops live mode.
func (h *Handler) SetLive(w http.ResponseWriter, r *http.Request) {
	var req LiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Running {
		h.Live.Start()
	} else {
		h.Live.Stop()
	}
	writeJSON(w, http.StatusOK, h.liveDTO())
}

func (h *Handler) liveDTO() LiveDTO {
	return LiveDTO{
		Running:  h.Store.Running(),
		Interval: h.Live.Interval.String(),
		Ticks:    h.Live.Ticks(),
	}
}

// ExportState downloads the full state as JSON.
func (h *Handler) ExportState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Disposition", `attachment; filename="autopilot-state.json"`)
	writeJSON(w, http.StatusOK, h.Store.State())
}

// ExportTables returns one array per record type.
func (h *Handler) ExportTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, engine.ExportTables(h.Store.State()))
}

// =============================================================================
// GUIDED TOUR
// =============================================================================

func (h *Handler) GetGuided(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, guidedDTO(h.Store.Guided()))
}

func (h *Handler) StartGuided(w http.ResponseWriter, r *http.Request) {
	h.Store.StartGuided()
	writeJSON(w, http.StatusOK, guidedDTO(h.Store.Guided()))
}

func (h *Handler) StopGuided(w http.ResponseWriter, r *http.Request) {
	h.Store.StopGuided()
	writeJSON(w, http.StatusOK, guidedDTO(h.Store.Guided()))
}

func (h *Handler) NextGuided(w http.ResponseWriter, r *http.Request) {
	h.Store.NextGuided()
	writeJSON(w, http.StatusOK, guidedDTO(h.Store.Guided()))
}

func (h *Handler) PrevGuided(w http.ResponseWriter, r *http.Request) {
	h.Store.PrevGuided()
	writeJSON(w, http.StatusOK, guidedDTO(h.Store.Guided()))
}

func guidedDTO(g autopilot.GuidedState) GuidedDTO {
	dto := GuidedDTO{State: g, Steps: autopilot.GuidedSteps}
	if g.Enabled {
		step := autopilot.GuidedSteps[g.StepIndex]
		dto.Current = &step
	}
	return dto
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) stateResponse(changed []autopilot.Facet) StateResponse {
	return StateResponse{
		State:   h.Store.State(),
		Running: h.Store.Running(),
		Guided:  h.Store.Guided(),
		Changed: changed,
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// handleError maps store and engine errors to HTTP statuses.
func (h *Handler) handleError(w http.ResponseWriter, err error) {
	switch {
	case autopilot.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found", err)
	case autopilot.IsClientError(err):
		writeError(w, http.StatusBadRequest, "invalid request", err)
	case errors.Is(err, autopilot.ErrDuplicateAction):
		writeError(w, http.StatusConflict, "conflict", err)
	default:
		h.log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

// decodeJSON decodes the request body into v. An empty body leaves v as is.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}
