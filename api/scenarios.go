/*
scenarios.go - Scenario preset loaders for demos

PURPOSE:
  Lets a presenter jump to a named situation (baseline world, DC outage,
  carrier crunch, ...) in one call instead of toggling flags by hand.

HOW PRESETS LOAD:
 1. If the preset carries a seed: stop live mode and regenerate the world
 2. Replace the scenario toggles with the preset's
 3. Remember the preset as current

USAGE VIA API:

	GET  /api/scenarios
	GET  /api/scenarios/current
	POST /api/scenarios/load
	{"scenario_id": "carrier-crunch"}

ADDING NEW PRESETS:
  Add an entry to factory/presets.go.

SEE ALSO:
  - factory/presets.go: preset definitions
  - handlers.go: ToggleScenario for single flags
*/
package api

import (
	"net/http"

	"github.com/warp/autopilot/factory"
)

// ListScenarios returns available presets.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, factory.Presets())
}

// GetCurrentScenario returns the last loaded preset, or null.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	id := h.currentScenario
	h.mu.Unlock()

	if id == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	p, _ := factory.LookupPreset(id)
	writeJSON(w, http.StatusOK, p)
}

// LoadScenario applies a preset.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	preset, ok := factory.LookupPreset(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown scenario", nil)
		return
	}

	if preset.Seed != nil {
		h.Live.Stop()
		h.Store.Regenerate(*preset.Seed)
	}
	c := h.Store.SetScenario(preset.Toggles)
	h.setCurrentScenario(preset.ID)

	h.log.Info("scenario loaded", "scenario", preset.ID, "active", preset.Toggles.Active())
	writeJSON(w, http.StatusOK, h.stateResponse(c.Facets))
}

func (h *Handler) setCurrentScenario(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentScenario = id
}
