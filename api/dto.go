/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal engine model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

AMOUNTS AND MONTHS:
  Amounts travel as JSON strings ("1234.50") and are parsed into decimals
  at this boundary - malformed records are rejected here, never threaded
  into the aggregation core. Raw month encodings may arrive as strings or
  numbers; both are preserved verbatim for the engine's normalizer.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - forecast/types.go: Internal engine records
*/
package api

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/finzlab/forecast-engine/forecast"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// TaxonomyEntryDTO represents a taxonomy entry in API responses.
type TaxonomyEntryDTO struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Category    string `json:"category"`
	CostType    string `json:"cost_type"`
}

// ResolutionDTO reports how a reference resolved.
type ResolutionDTO struct {
	Ref         string `json:"ref"`
	CanonicalID string `json:"canonical_id"`
	MatchedVia  string `json:"matched_via"`
}

// CellDTO is one forecast grid cell.
type CellDTO struct {
	ProjectID        string `json:"project_id"`
	CanonicalRubroID string `json:"canonical_rubro_id"`
	Month            int    `json:"month"`
	Description      string `json:"description,omitempty"`
	Planned          string `json:"planned"`
	Forecast         string `json:"forecast"`
	Actual           string `json:"actual"`
}

// ForecastResponse is the materialization result.
type ForecastResponse struct {
	ProjectID             string    `json:"project_id"`
	BaselineID            string    `json:"baseline_id"`
	Cells                 []CellDTO `json:"cells"`
	Provenance            string    `json:"provenance"`
	Partial               bool      `json:"partial"`
	UnresolvedCount       int       `json:"unresolved_count"`
	UnmatchedInvoiceCount int       `json:"unmatched_invoice_count"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// monthRaw accepts a JSON string or number and keeps the raw encoding
// verbatim for the engine's month normalizer.
type monthRaw string

func (m *monthRaw) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = monthRaw(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*m = monthRaw(n.String())
		return nil
	}
	return fmt.Errorf("month must be a string or number")
}

// AllocationRequest is one allocation record for ingestion.
type AllocationRequest struct {
	BaselineID string   `json:"baseline_id"`
	RubroRef   string   `json:"rubro_ref"`
	Month      monthRaw `json:"month"`
	Amount     string   `json:"amount"`
}

// InvoiceRequest is one invoice record for ingestion.
type InvoiceRequest struct {
	ID          string   `json:"id"`
	RubroRef    string   `json:"rubro_ref"`
	Description string   `json:"description,omitempty"`
	Month       monthRaw `json:"month"`
	Amount      string   `json:"amount"`
	Status      string   `json:"status"`
}

// LineItemRequest is one catalog line for ingestion.
type LineItemRequest struct {
	ID          string   `json:"id"`
	RubroRef    string   `json:"rubro_ref"`
	Description string   `json:"description,omitempty"`
	UnitCost    string   `json:"unit_cost"`
	Quantity    string   `json:"quantity"`
	MonthFrom   monthRaw `json:"month_from"`
	MonthTo     monthRaw `json:"month_to"`
}

// EstimateRequest is one baseline estimate line.
type EstimateRequest struct {
	RubroRef    string `json:"rubro_ref"`
	Description string `json:"description,omitempty"`
	Amount      string `json:"amount"`
}

// BaselineRequest creates or replaces a baseline.
type BaselineRequest struct {
	ID                string            `json:"id"`
	LaborEstimates    []EstimateRequest `json:"labor_estimates,omitempty"`
	NonLaborEstimates []EstimateRequest `json:"non_labor_estimates,omitempty"`
}

// LoadScenarioRequest selects a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toCellDTOs(cells []forecast.Cell) []CellDTO {
	dtos := make([]CellDTO, len(cells))
	for i, c := range cells {
		dtos[i] = CellDTO{
			ProjectID:        c.ProjectID,
			CanonicalRubroID: string(c.CanonicalRubroID),
			Month:            int(c.Month),
			Description:      c.Description,
			Planned:          c.Planned.String(),
			Forecast:         c.Forecast.String(),
			Actual:           c.Actual.String(),
		}
	}
	return dtos
}

func parseAmount(field, raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s %q", field, raw)
	}
	return value, nil
}
