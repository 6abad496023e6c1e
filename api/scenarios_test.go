/*
scenarios_test.go - Tests for scenario presets

PURPOSE:
	Tests that each preset loads the expected world:
	- Seeded presets regenerate the world
	- Toggle-only presets keep the world and set flags
	- The current preset is remembered until a regenerate
*/
package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/autopilot/factory"
)

func TestListScenarios(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/scenarios", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ScenarioDTO](t, rec), len(factory.Presets()))
}

func TestLoadScenario_EveryPreset(t *testing.T) {
	for _, p := range factory.Presets() {
		t.Run(p.ID, func(t *testing.T) {
			ts := setupTestServer(t)
			ts.do(t, http.MethodPost, "/api/step", StepRequest{Days: 2})

			rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: p.ID})

			require.Equal(t, http.StatusOK, rec.Code)
			state := decode[StateResponse](t, rec).State
			assert.Equal(t, p.Toggles, state.Scenario)
			if p.Seed != nil {
				assert.Equal(t, *p.Seed, state.Seed)
				assert.Equal(t, 0, state.Today)
			} else {
				assert.Equal(t, 2, state.Today, "world kept")
			}

			rec = ts.do(t, http.MethodGet, "/api/scenarios/current", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, p.ID, decode[ScenarioDTO](t, rec).ID)
		})
	}
}

func TestLoadScenario_Unknown(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCurrentScenario_ClearedByRegenerate(t *testing.T) {
	ts := setupTestServer(t)
	ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "perfect-storm"})

	ts.do(t, http.MethodPost, "/api/regenerate", nil)

	rec := ts.do(t, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", string(trimNewline(rec.Body.Bytes())))
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && b[len(b)-1] == '\n' {
		b = b[:len(b)-1]
	}
	return b
}
