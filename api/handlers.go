/*
handlers.go - HTTP handlers for the forecast API

PURPOSE:
  Implements the HTTP surface over the materialization engine and the
  SQLite-backed sources. Handlers validate and convert at the boundary;
  all forecast logic stays in the forecast package.

ENDPOINT GROUPS:
  Taxonomy:
    GET  /api/taxonomy                     List canonical entries
    GET  /api/taxonomy/resolve?ref=...     Resolve one reference

  Forecast:
    GET  /api/projects/{id}/forecast?baseline=...&months=...

  Ingestion:
    POST /api/projects/{id}/baseline
    POST /api/projects/{id}/allocations
    POST /api/projects/{id}/invoices
    POST /api/projects/{id}/line-items

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 502: All upstream sources failed
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware. Authentication/authorization is owned by
  the deployment's gateway, not this service.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/finzlab/forecast-engine/forecast"
	"github.com/finzlab/forecast-engine/store/sqlite"
	"github.com/finzlab/forecast-engine/taxonomy"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  *sqlite.Store
	Engine *forecast.Engine
	Canon  *taxonomy.Canonicalizer

	// Track currently loaded scenario (dev/demo)
	currentScenario string
}

// NewHandler creates a new handler around the store and engine.
func NewHandler(store *sqlite.Store, engine *forecast.Engine, canon *taxonomy.Canonicalizer) *Handler {
	return &Handler{Store: store, Engine: engine, Canon: canon}
}

// =============================================================================
// TAXONOMY HANDLERS
// =============================================================================

// ListTaxonomy returns all canonical taxonomy entries.
func (h *Handler) ListTaxonomy(w http.ResponseWriter, r *http.Request) {
	entries := h.Canon.Index().Entries()
	dtos := make([]TaxonomyEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = TaxonomyEntryDTO{
			ID:          string(e.ID),
			Description: e.Description,
			Category:    string(e.Category),
			CostType:    string(e.CostType),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ResolveRef canonicalizes a single reference.
func (h *Handler) ResolveRef(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	if ref == "" {
		writeError(w, http.StatusBadRequest, "Missing ref query parameter", nil)
		return
	}

	res := h.Canon.Canonicalize(ref)
	writeJSON(w, http.StatusOK, ResolutionDTO{
		Ref:         ref,
		CanonicalID: string(res.CanonicalID),
		MatchedVia:  string(res.Via),
	})
}

// =============================================================================
// FORECAST HANDLERS
// =============================================================================

// GetForecast materializes the forecast grid for a project baseline.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	baselineID := r.URL.Query().Get("baseline")
	if baselineID == "" {
		writeError(w, http.StatusBadRequest, "Missing baseline query parameter", nil)
		return
	}

	months := 0
	if raw := r.URL.Query().Get("months"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "Invalid months parameter", err)
			return
		}
		months = parsed
	}

	result, err := h.Engine.Materialize(r.Context(), projectID, baselineID, months)
	if err != nil {
		if errors.Is(err, forecast.ErrAllSourcesFailed) {
			writeError(w, http.StatusBadGateway, "All upstream sources failed", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to materialize forecast", err)
		return
	}

	writeJSON(w, http.StatusOK, ForecastResponse{
		ProjectID:             projectID,
		BaselineID:            baselineID,
		Cells:                 toCellDTOs(result.Cells),
		Provenance:            string(result.Provenance),
		Partial:               result.Partial,
		UnresolvedCount:       result.UnresolvedCount,
		UnmatchedInvoiceCount: result.UnmatchedInvoiceCount,
	})
}

// =============================================================================
// INGESTION HANDLERS
// =============================================================================

// CreateBaseline stores a baseline with its estimate lines.
func (h *Handler) CreateBaseline(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	var req BaselineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "Baseline id is required", nil)
		return
	}

	baseline := forecast.Baseline{ID: req.ID, ProjectID: projectID}
	for _, est := range req.LaborEstimates {
		amount, err := parseAmount("estimate amount", est.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		baseline.LaborEstimates = append(baseline.LaborEstimates, forecast.Estimate{
			RubroRef: est.RubroRef, Description: est.Description, Amount: amount,
		})
	}
	for _, est := range req.NonLaborEstimates {
		amount, err := parseAmount("estimate amount", est.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		baseline.NonLaborEstimates = append(baseline.NonLaborEstimates, forecast.Estimate{
			RubroRef: est.RubroRef, Description: est.Description, Amount: amount,
		})
	}

	if err := h.Store.SaveBaseline(r.Context(), baseline); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save baseline", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": baseline.ID})
}

// IngestAllocations bulk-inserts allocation records.
func (h *Handler) IngestAllocations(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	var reqs []AllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	allocs := make([]forecast.Allocation, 0, len(reqs))
	for _, req := range reqs {
		if req.BaselineID == "" {
			writeError(w, http.StatusBadRequest, "Allocation baseline_id is required", nil)
			return
		}
		amount, err := parseAmount("allocation amount", req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		allocs = append(allocs, forecast.Allocation{
			ProjectID:  projectID,
			BaselineID: req.BaselineID,
			RubroRef:   req.RubroRef,
			Month:      string(req.Month),
			Amount:     amount,
		})
	}

	if err := h.Store.InsertAllocations(r.Context(), allocs); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to insert allocations", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"inserted": len(allocs)})
}

// IngestInvoices bulk-inserts invoice records.
func (h *Handler) IngestInvoices(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	var reqs []InvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	invoices := make([]forecast.Invoice, 0, len(reqs))
	for _, req := range reqs {
		if req.ID == "" {
			writeError(w, http.StatusBadRequest, "Invoice id is required", nil)
			return
		}
		amount, err := parseAmount("invoice amount", req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		invoices = append(invoices, forecast.Invoice{
			ID:          req.ID,
			ProjectID:   projectID,
			RubroRef:    req.RubroRef,
			Description: req.Description,
			Month:       string(req.Month),
			Amount:      amount,
			Status:      forecast.InvoiceStatus(req.Status),
		})
	}

	if err := h.Store.InsertInvoices(r.Context(), invoices); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to insert invoices", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"inserted": len(invoices)})
}

// IngestLineItems bulk-inserts catalog lines. The canonical id is resolved
// here, once, at ingestion - downstream joins never see raw references.
func (h *Handler) IngestLineItems(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	var reqs []LineItemRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	items := make([]forecast.LineItem, 0, len(reqs))
	for _, req := range reqs {
		if req.ID == "" {
			writeError(w, http.StatusBadRequest, "Line item id is required", nil)
			return
		}
		unitCost, err := parseAmount("line item unit_cost", req.UnitCost)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		quantity, err := parseAmount("line item quantity", req.Quantity)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		items = append(items, forecast.LineItem{
			ID:          req.ID,
			ProjectID:   projectID,
			RubroRef:    req.RubroRef,
			CanonicalID: h.Canon.CanonicalizeID(req.RubroRef),
			Description: req.Description,
			UnitCost:    unitCost,
			Quantity:    quantity,
			MonthFrom:   string(req.MonthFrom),
			MonthTo:     string(req.MonthTo),
		})
	}

	if err := h.Store.InsertLineItems(r.Context(), items); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to insert line items", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"inserted": len(items)})
}

// =============================================================================
// HELPERS
// =============================================================================

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
