/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the dashboard

ROUTE GROUPS:
  /api/state, /api/regenerate, /api/step   World
  /api/scenario/*                          Scenario toggles
  /api/scenarios/*                         Scenario presets
  /api/rebalance/*                         Inventory decisions
  /api/shipments/*                         Transport decisions
  /api/policy, /api/logs, /api/events      Guardrails and audit
  /api/live                                Live mode
  /api/export/*                            State and table dumps
  /api/guided/*                            Guided tour
  /healthz                                 Liveness

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultAllowedOrigins is used when no CORS origins are configured.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.GetState)
		r.Post("/regenerate", h.Regenerate)
		r.Post("/step", h.Step)

		r.Get("/kpis", h.GetKPIs)
		r.Get("/exceptions", h.ListExceptions)
		r.Get("/brief", h.GetBrief)
		r.Get("/forecast", h.GetForecast)
		r.Get("/network", h.GetNetwork)

		r.Route("/scenario", func(r chi.Router) {
			r.Get("/", h.GetScenario)
			r.Put("/", h.SetScenario)
			r.Post("/{name}/toggle", h.ToggleScenario)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		r.Route("/rebalance", func(r chi.Router) {
			r.Get("/proposals", h.ListProposals)
			r.Post("/execute", h.ExecuteRebalance)
		})

		r.Route("/shipments", func(r chi.Router) {
			r.Get("/", h.ListShipments)
			r.Get("/{id}/options", h.GetRetenderOptions)
			r.Post("/{id}/retender", h.ExecuteRetender)
		})

		r.Get("/policy", h.GetPolicy)
		r.Put("/policy", h.UpdatePolicy)
		r.Get("/logs", h.ListLogs)

		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.ListEvents)
			r.Post("/", h.PostEvent)
		})

		r.Get("/live", h.GetLive)
		r.Post("/live", h.SetLive)

		r.Route("/export", func(r chi.Router) {
			r.Get("/state", h.ExportState)
			r.Get("/tables", h.ExportTables)
		})

		r.Route("/guided", func(r chi.Router) {
			r.Get("/", h.GetGuided)
			r.Post("/start", h.StartGuided)
			r.Post("/stop", h.StopGuided)
			r.Post("/next", h.NextGuided)
			r.Post("/prev", h.PrevGuided)
		})
	})

	return r
}
