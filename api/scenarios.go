/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the database with realistic
  cost-planning data. Each scenario demonstrates one provenance tier of
  the materialization engine.

AVAILABLE SCENARIOS:
  api-rows:         Explicit server forecast rows exist (provenance "api")
  allocation-fallback: Accepted baseline + allocations only, rows are
                    materialized in-memory (provenance "fallback")
  empty-baseline:   Baseline with zero estimates (provenance "empty")

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create baseline and records for project "P-DEMO"
 3. The forecast endpoint then shows the corresponding provenance

NOTE:
  Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: writeJSON/writeError helpers
  - server.go: Scenario routes
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/finzlab/forecast-engine/forecast"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "api-rows",
		Name:        "Server Forecast Rows",
		Description: "Explicit forecast rows exist upstream; provenance is \"api\"",
	},
	{
		ID:          "allocation-fallback",
		Name:        "Allocation Fallback",
		Description: "Baseline + allocations only; rows materialize in-memory with provenance \"fallback\"",
	},
	{
		ID:          "empty-baseline",
		Name:        "Empty Baseline",
		Description: "Accepted baseline with zero estimates; provenance is \"empty\"",
	},
}

const demoProject = "P-DEMO"
const demoBaseline = "BL-1"

// ListScenarios returns the available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the most recently loaded scenario id.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": h.currentScenario})
}

// LoadScenario resets the database and loads the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "api-rows":
		err = h.loadAPIRowsScenario(ctx)
	case "allocation-fallback":
		err = h.loadAllocationFallbackScenario(ctx)
	case "empty-baseline":
		err = h.loadEmptyBaselineScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario %q", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{
		"scenario_id": req.ScenarioID,
		"project_id":  demoProject,
		"baseline_id": demoBaseline,
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func amount(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func (h *Handler) seedBaseline(ctx context.Context, withEstimates bool) error {
	b := forecast.Baseline{ID: demoBaseline, ProjectID: demoProject}
	if withEstimates {
		b.LaborEstimates = []forecast.Estimate{
			{RubroRef: "MOD-LEAD", Description: "Líder de proyecto", Amount: amount("12000")},
			{RubroRef: "MOD-DEV-SR", Description: "Desarrollador senior", Amount: amount("30000")},
		}
		b.NonLaborEstimates = []forecast.Estimate{
			{RubroRef: "cloud-infra", Description: "Infraestructura en la nube", Amount: amount("6000")},
		}
	}
	return h.Store.SaveBaseline(ctx, b)
}

func (h *Handler) loadAllocationFallbackScenario(ctx context.Context) error {
	if err := h.seedBaseline(ctx, true); err != nil {
		return err
	}

	allocs := []forecast.Allocation{
		{ProjectID: demoProject, BaselineID: demoBaseline, RubroRef: "mod-pm-project-manager", Month: "M1", Amount: amount("4000")},
		{ProjectID: demoProject, BaselineID: demoBaseline, RubroRef: "MOD-LEAD", Month: "M2", Amount: amount("4000")},
		{ProjectID: demoProject, BaselineID: demoBaseline, RubroRef: "MOD-DEV-SR", Month: "M1", Amount: amount("10000")},
		{ProjectID: demoProject, BaselineID: demoBaseline, RubroRef: "MOD-DEV-SR", Month: "M2", Amount: amount("10000")},
		{ProjectID: demoProject, BaselineID: demoBaseline, RubroRef: "cloud-infra", Month: "2026-03", Amount: amount("2000")},
	}
	if err := h.Store.InsertAllocations(ctx, allocs); err != nil {
		return err
	}

	invoices := []forecast.Invoice{
		{ID: "inv-1", ProjectID: demoProject, RubroRef: "MOD-LEAD", Month: "M2", Amount: amount("3900"), Status: forecast.StatusMatched},
		{ID: "inv-2", ProjectID: demoProject, RubroRef: "aws-infra", Month: "3", Amount: amount("1800"), Status: forecast.StatusApproved},
	}
	return h.Store.InsertInvoices(ctx, invoices)
}

func (h *Handler) loadAPIRowsScenario(ctx context.Context) error {
	if err := h.loadAllocationFallbackScenario(ctx); err != nil {
		return err
	}

	rows := []forecast.Cell{
		{ProjectID: demoProject, CanonicalRubroID: "MOD-LEAD", Month: 1, Description: "Líder de proyecto",
			Planned: amount("4200"), Forecast: amount("4000"), Actual: amount("0")},
		{ProjectID: demoProject, CanonicalRubroID: "MOD-LEAD", Month: 2, Description: "Líder de proyecto",
			Planned: amount("4200"), Forecast: amount("4000"), Actual: amount("0")},
		{ProjectID: demoProject, CanonicalRubroID: "MOD-DEV-SR", Month: 1, Description: "Desarrollador senior",
			Planned: amount("10000"), Forecast: amount("10500"), Actual: amount("0")},
	}
	return h.Store.ReplaceForecastRows(ctx, demoProject, demoBaseline, rows)
}

func (h *Handler) loadEmptyBaselineScenario(ctx context.Context) error {
	return h.seedBaseline(ctx, false)
}
