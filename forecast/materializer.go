/*
materializer.go - Fallback row derivation

PURPOSE:
  When a project has an accepted baseline but no server-side forecast rows,
  the grid must not be empty for data that exists elsewhere. This file
  derives forecast cells in-memory from lower-tier records:

    - Allocations: grouped by (canonical rubro, month), amounts summed into
      Forecast. Planned defaults to the same aggregated value — there is no
      independent planned source at this fallback tier. Actual starts at 0.
    - Catalog line items: each item contributes UnitCost x Quantity per
      month across its [MonthFrom, MonthTo] range (monthly run rate).

  Records whose rubro reference fails to resolve land in the UNKNOWN bucket
  (still aggregated, so totals stay visible to operators). Records whose
  month fails to parse are dropped and counted — never coerced.

PURITY:
  Both materializers are pure in-memory transformations with no writes, so
  they are safe to call speculatively and discard.

SEE ALSO:
  - aggregator.go: Chooses which derived tier (if any) becomes the result
*/
package forecast

import (
	"log"
	"sort"

	"github.com/finzlab/forecast-engine/taxonomy"
)

// =============================================================================
// MATERIALIZER
// =============================================================================

// Materializer derives forecast cells from allocation and line-item records.
// Stateless and safe for concurrent use.
type Materializer struct {
	Canon  *taxonomy.Canonicalizer
	Months MonthNormalizer
}

func NewMaterializer(canon *taxonomy.Canonicalizer, months MonthNormalizer) *Materializer {
	return &Materializer{Canon: canon, Months: months}
}

// FromAllocations groups allocations by (canonical rubro, month) and sums
// amounts into Forecast (Planned mirrors it, Actual is zero). Returns the
// derived cells ordered by key plus the count of dropped records.
func (m *Materializer) FromAllocations(projectID string, allocs []Allocation) ([]Cell, int) {
	cells := make(map[CellKey]*Cell)
	unresolved := 0

	for _, a := range allocs {
		month, ok := m.Months.Normalize(a.Month)
		if !ok {
			log.Printf("[Materializer] project=%s dropping allocation with unparseable month %q (ref=%q)",
				projectID, a.Month, a.RubroRef)
			unresolved++
			continue
		}

		res := m.Canon.Canonicalize(a.RubroRef)
		if res.Via == taxonomy.MatchUnknown {
			log.Printf("[Materializer] project=%s unknown rubro ref %q, aggregating under %s",
				projectID, a.RubroRef, taxonomy.Unknown)
		}

		key := CellKey{ProjectID: projectID, RubroID: res.CanonicalID, Month: month}
		cell, exists := cells[key]
		if !exists {
			cell = &Cell{
				ProjectID:        projectID,
				CanonicalRubroID: res.CanonicalID,
				Month:            month,
				Description:      cellDescription(res, a.RubroRef),
			}
			cells[key] = cell
		}
		cell.Forecast = cell.Forecast.Add(a.Amount)
		cell.Planned = cell.Planned.Add(a.Amount)
	}

	return sortedCells(cells), unresolved
}

// FromLineItems derives synthetic cells from catalog line items: one cell
// per month in the item's range, each worth UnitCost x Quantity.
func (m *Materializer) FromLineItems(projectID string, items []LineItem) ([]Cell, int) {
	cells := make(map[CellKey]*Cell)
	unresolved := 0

	for _, it := range items {
		from, okFrom := m.Months.Normalize(it.MonthFrom)
		to, okTo := m.Months.Normalize(it.MonthTo)
		if !okFrom || !okTo || to < from {
			log.Printf("[Materializer] project=%s dropping line item %q with unparseable month range %q..%q",
				projectID, it.ID, it.MonthFrom, it.MonthTo)
			unresolved++
			continue
		}

		// CanonicalID was resolved at ingestion; re-resolve only when it is
		// absent (older records) or not actually canonical.
		id := it.CanonicalID
		description := it.Description
		if _, ok := m.Canon.Index().Entry(id); !ok {
			res := m.Canon.Canonicalize(it.RubroRef)
			id = res.CanonicalID
			if description == "" {
				description = cellDescription(res, it.RubroRef)
			}
		}

		monthly := it.UnitCost.Mul(it.Quantity)
		for month := from; month <= to; month++ {
			key := CellKey{ProjectID: projectID, RubroID: id, Month: month}
			cell, exists := cells[key]
			if !exists {
				cell = &Cell{
					ProjectID:        projectID,
					CanonicalRubroID: id,
					Month:            month,
					Description:      description,
				}
				cells[key] = cell
			}
			cell.Forecast = cell.Forecast.Add(monthly)
			cell.Planned = cell.Planned.Add(monthly)
		}
	}

	return sortedCells(cells), unresolved
}

// cellDescription prefers the taxonomy description; unresolved references
// keep their raw ref so description-fallback matching still has a key.
func cellDescription(res taxonomy.Resolution, rawRef string) string {
	if res.Entry != nil {
		return res.Entry.Description
	}
	return rawRef
}

// sortedCells flattens the aggregation map into a deterministic order:
// canonical rubro id, then month.
func sortedCells(cells map[CellKey]*Cell) []Cell {
	out := make([]Cell, 0, len(cells))
	for _, c := range cells {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CanonicalRubroID != out[j].CanonicalRubroID {
			return out[i].CanonicalRubroID < out[j].CanonicalRubroID
		}
		return out[i].Month < out[j].Month
	})
	return out
}
