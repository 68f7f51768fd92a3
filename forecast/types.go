/*
Package forecast provides the forecast materialization engine.

PURPOSE:
  Turns heterogeneous cost-planning records (baselines, allocations,
  invoices, catalog line items) into a deterministic per-rubro, per-month
  grid with three aligned series: Planned, Forecast, Actual. When no
  explicit forecast rows exist, the engine derives them in-memory from
  lower-tier data so the grid is never empty for data that exists elsewhere.

KEY CONCEPTS IN THIS FILE (types.go):
  - MonthIndex: Validated month position within the project timeline (1..60)
  - Allocation/Invoice/Baseline/LineItem: Read-only input records
  - Cell: One grid cell, uniquely keyed by (project, canonical rubro, month)
  - Provenance: Which source tier produced the returned cells

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every amount, no float drift in sums
  2. Determinism: identical inputs produce identical, ordered output
  3. Non-fatal degradation: bad records are dropped and counted, never
     coerced and never fatal

SEE ALSO:
  - month.go: Month encoding normalization
  - materializer.go: Fallback row derivation
  - aggregator.go: Source tier priority and actuals population
  - matcher.go: Invoice-to-cell matching policy
  - orchestrator.go: Fetch fan-out and the public entry point
*/
package forecast

import (
	"github.com/shopspring/decimal"

	"github.com/finzlab/forecast-engine/taxonomy"
)

// =============================================================================
// MONTHS
// =============================================================================

// MonthIndex is a 1-based month position within the project timeline.
// Valid range is [1, MaxMonths]; 0 is never a valid value.
type MonthIndex int

// MaxMonths bounds the project timeline (multi-year, long-duration projects).
const MaxMonths = 60

func (m MonthIndex) Valid() bool { return m >= 1 && m <= MaxMonths }

// =============================================================================
// INPUT RECORDS
// =============================================================================
// Raw identifier and month fields stay unresolved strings until they pass
// through the Canonicalizer / MonthNormalizer. Amounts are decimal from the
// boundary inward.
// =============================================================================

// Allocation is a monthly planned-spend record derived from a baseline.
type Allocation struct {
	ProjectID  string
	BaselineID string
	RubroRef   string // unresolved until canonicalized
	Month      string // raw month encoding ("M3", "2025-07", "11", ...)
	Amount     decimal.Decimal
}

// InvoiceStatus gates which invoices participate in actuals matching.
type InvoiceStatus string

const (
	StatusMatched  InvoiceStatus = "matched"
	StatusApproved InvoiceStatus = "approved"
	StatusPaid     InvoiceStatus = "paid"
	StatusPending  InvoiceStatus = "pending"
	StatusRejected InvoiceStatus = "rejected"
	StatusVoid     InvoiceStatus = "void"
)

// Matchable reports whether an invoice in this status may populate actuals.
func (s InvoiceStatus) Matchable() bool {
	switch s {
	case StatusMatched, StatusApproved, StatusPaid:
		return true
	default:
		return false
	}
}

// Invoice is a billed-spend record.
type Invoice struct {
	ID          string
	ProjectID   string
	RubroRef    string
	Description string
	Month       string
	Amount      decimal.Decimal
	Status      InvoiceStatus
}

// Estimate is one baseline cost estimate line.
type Estimate struct {
	RubroRef    string
	Description string
	Amount      decimal.Decimal
}

// Baseline is the approved initial cost plan for a project.
// A baseline with zero estimates is a valid, non-error state.
type Baseline struct {
	ID                string
	ProjectID         string
	LaborEstimates    []Estimate
	NonLaborEstimates []Estimate
}

// HasEstimates reports whether the baseline carries any estimate lines.
func (b *Baseline) HasEstimates() bool {
	return b != nil && (len(b.LaborEstimates) > 0 || len(b.NonLaborEstimates) > 0)
}

// LineItem is a catalog cost line ("rubro" row).
//
// ID may be a composite display key and is never validated against the
// taxonomy. CanonicalID is resolved once at ingestion and is the only field
// used for cross-entity joins; when ingestion could not resolve it the
// materializer falls back to canonicalizing RubroRef.
type LineItem struct {
	ID          string
	ProjectID   string
	RubroRef    string
	CanonicalID taxonomy.CanonicalID
	Description string
	UnitCost    decimal.Decimal
	Quantity    decimal.Decimal
	MonthFrom   string // raw month encoding, inclusive
	MonthTo     string // raw month encoding, inclusive
}

// =============================================================================
// OUTPUT CELLS
// =============================================================================

// CellKey uniquely identifies a grid cell. Each key appears at most once in
// any output set.
type CellKey struct {
	ProjectID string
	RubroID   taxonomy.CanonicalID
	Month     MonthIndex
}

// Cell is one forecast grid cell.
type Cell struct {
	ProjectID        string
	CanonicalRubroID taxonomy.CanonicalID
	Month            MonthIndex

	// Description is display/matching metadata, not part of the key.
	Description string

	Planned  decimal.Decimal
	Forecast decimal.Decimal
	Actual   decimal.Decimal
}

func (c Cell) Key() CellKey {
	return CellKey{ProjectID: c.ProjectID, RubroID: c.CanonicalRubroID, Month: c.Month}
}

// Provenance tags which source tier produced the returned cells.
type Provenance string

const (
	// ProvenanceAPI: explicit server-provided forecast rows were used.
	ProvenanceAPI Provenance = "api"
	// ProvenanceFallback: rows were materialized in-memory from allocations
	// or catalog line items.
	ProvenanceFallback Provenance = "fallback"
	// ProvenanceEmpty: no tier produced rows; valid for baselines with no
	// estimates.
	ProvenanceEmpty Provenance = "empty"
)

// Result is the outcome of one materialization run.
type Result struct {
	Cells      []Cell
	Provenance Provenance

	// Partial is true when at least one source fetch failed and was
	// substituted with an empty collection.
	Partial bool

	// UnresolvedCount counts records dropped because their rubro reference
	// or month encoding could not be resolved.
	UnresolvedCount int

	// UnmatchedInvoiceCount counts valid invoices that matched no cell, or
	// matched ambiguously and were rejected.
	UnmatchedInvoiceCount int
}
