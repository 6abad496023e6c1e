package factory

import (
	"encoding/json"
	"fmt"

	"github.com/warp/autopilot/engine"
)

// ScenarioPreset is a named world: an optional seed plus scenario toggles.
// A nil Seed keeps the current world and only sets the toggles.
type ScenarioPreset struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Category    string                 `json:"category"`
	Seed        *uint32                `json:"seed,omitempty"`
	Toggles     engine.ScenarioToggles `json:"toggles"`
}

func seed(v uint32) *uint32 { return &v }

var presets = []ScenarioPreset{
	{
		ID:          "baseline",
		Name:        "Baseline",
		Description: "Fresh world from seed 42, no disruptions",
		Category:    "baseline",
		Seed:        seed(42),
	},
	{
		ID:          "northeast-outage",
		Name:        "Northeast DC Outage",
		Description: "Northeast DC throughput cut, demand shifts to neighbouring DCs",
		Category:    "disruption",
		Toggles:     engine.ScenarioToggles{DCOutage: true},
	},
	{
		ID:          "carrier-crunch",
		Name:        "Carrier Crunch",
		Description: "Carrier disruption plus demand spike: lateness and stockouts compound",
		Category:    "disruption",
		Toggles:     engine.ScenarioToggles{CarrierDisruption: true, DemandSpike: true},
	},
	{
		ID:          "degraded-mode",
		Name:        "Cyber Degraded Mode",
		Description: "Manual playbooks: visibility drops and every score carries a risk premium",
		Category:    "disruption",
		Toggles:     engine.ScenarioToggles{CyberDegradedMode: true},
	},
	{
		ID:          "perfect-storm",
		Name:        "Perfect Storm",
		Description: "Every stressor on at once",
		Category:    "stress",
		Toggles:     engine.ScenarioToggles{DCOutage: true, CarrierDisruption: true, DemandSpike: true, CyberDegradedMode: true},
	},
}

// Presets returns the built-in scenario presets in display order.
func Presets() []ScenarioPreset {
	return append([]ScenarioPreset(nil), presets...)
}

// LookupPreset finds a preset by ID.
func LookupPreset(id string) (ScenarioPreset, bool) {
	for _, p := range presets {
		if p.ID == id {
			return p, true
		}
	}
	return ScenarioPreset{}, false
}

// ParsePreset parses a custom preset definition.
func ParsePreset(jsonStr string) (ScenarioPreset, error) {
	var p ScenarioPreset
	if err := json.Unmarshal([]byte(jsonStr), &p); err != nil {
		return ScenarioPreset{}, fmt.Errorf("failed to parse preset JSON: %w", err)
	}
	if p.ID == "" {
		return ScenarioPreset{}, fmt.Errorf("preset id is required")
	}
	if p.Name == "" {
		p.Name = p.ID
	}
	return p, nil
}
