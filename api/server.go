/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the grid frontend

ROUTE GROUPS:
  /api/taxonomy/*       Taxonomy listing and resolution
  /api/projects/*       Forecast materialization and ingestion
  /api/scenarios/*      Demo scenarios (dev only)

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Taxonomy routes
		r.Route("/taxonomy", func(r chi.Router) {
			r.Get("/", h.ListTaxonomy)
			r.Get("/resolve", h.ResolveRef)
		})

		// Project routes
		r.Route("/projects/{id}", func(r chi.Router) {
			r.Get("/forecast", h.GetForecast)
			r.Post("/baseline", h.CreateBaseline)
			r.Post("/allocations", h.IngestAllocations)
			r.Post("/invoices", h.IngestInvoices)
			r.Post("/line-items", h.IngestLineItems)
		})

		// Scenario routes (dev only)
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
