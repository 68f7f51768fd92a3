/*
aggregator.go - Source tier priority and actuals population

PURPOSE:
  Produces the final cell set from up to three candidate row sources plus
  invoices. The tier priority is defined exactly once, here:

    1. Explicit server-provided forecast rows, if non-empty  -> "api"
    2. Rows materialized from allocations, if non-empty      -> "fallback"
    3. Rows materialized from catalog line items, if present -> "fallback"
    4. Nothing                                               -> "empty"

  Only the FIRST non-empty tier is used. Tiers are never merged with each
  other; merging would double-count the same planned spend arriving via
  two routes.

INVOICES:
  After row selection, matchable invoices populate Actual on the selected
  rows. Invoices never create new rows. An invoice that matches no cell,
  or that matches more than one cell via the description fallback, is
  counted as unmatched — reported, not silently dropped.

SEE ALSO:
  - matcher.go: The per-cell matching policy
  - orchestrator.go: Feeds this aggregator from fetched collections
*/
package forecast

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregator selects the winning row tier and applies invoice actuals.
// Stateless and safe for concurrent use.
type Aggregator struct {
	Matcher *Matcher
}

func NewAggregator(matcher *Matcher) *Aggregator {
	return &Aggregator{Matcher: matcher}
}

// RowTiers carries the candidate row sources in priority order.
type RowTiers struct {
	ServerRows     []Cell // tier 1: explicit forecast rows from the API
	AllocationRows []Cell // tier 2: materialized from allocations
	LineItemRows   []Cell // tier 3: materialized from catalog line items
}

// Build selects the first non-empty tier, clamps it to the months window,
// and populates Actual from matchable invoices. Returns the final cells,
// their provenance, and the unmatched invoice count.
func (a *Aggregator) Build(tiers RowTiers, invoices []Invoice, monthsWindow int) ([]Cell, Provenance, int) {
	cells, provenance := selectTier(tiers)
	cells = clampWindow(cells, monthsWindow)

	unmatched := a.applyInvoices(cells, invoices)
	return cells, provenance, unmatched
}

// selectTier implements the ordered tier resolution. The order lives only
// here so it cannot drift between call sites.
func selectTier(tiers RowTiers) ([]Cell, Provenance) {
	switch {
	case len(tiers.ServerRows) > 0:
		return copyCells(tiers.ServerRows), ProvenanceAPI
	case len(tiers.AllocationRows) > 0:
		return copyCells(tiers.AllocationRows), ProvenanceFallback
	case len(tiers.LineItemRows) > 0:
		return copyCells(tiers.LineItemRows), ProvenanceFallback
	default:
		return []Cell{}, ProvenanceEmpty
	}
}

// clampWindow drops cells beyond the requested window. A window of 0 (or
// anything out of range) means the full MaxMonths timeline.
func clampWindow(cells []Cell, monthsWindow int) []Cell {
	if monthsWindow <= 0 || monthsWindow >= MaxMonths {
		return cells
	}
	limit := MonthIndex(monthsWindow)
	out := cells[:0]
	for _, c := range cells {
		if c.Month <= limit {
			out = append(out, c)
		}
	}
	return out
}

// applyInvoices adds each matchable invoice's amount to Actual on exactly
// one cell, or counts it unmatched. Canonical matches win over description
// fallbacks; an ambiguous description fallback (multiple candidate cells)
// is rejected outright rather than guessed.
func (a *Aggregator) applyInvoices(cells []Cell, invoices []Invoice) int {
	unmatched := 0
	for _, inv := range invoices {
		if !inv.Status.Matchable() {
			continue
		}

		canonical := -1
		descriptions := []int{}
		for i := range cells {
			switch a.Matcher.Evaluate(inv, cells[i]) {
			case MatchCanonical:
				// Cell keys are unique, so at most one canonical match exists.
				canonical = i
			case MatchDescription:
				descriptions = append(descriptions, i)
			}
		}

		switch {
		case canonical >= 0:
			cells[canonical].Actual = cells[canonical].Actual.Add(inv.Amount)
		case len(descriptions) == 1:
			i := descriptions[0]
			cells[i].Actual = cells[i].Actual.Add(inv.Amount)
		default:
			// Zero candidates, or an ambiguous description fallback.
			unmatched++
		}
	}
	return unmatched
}

func copyCells(cells []Cell) []Cell {
	out := make([]Cell, len(cells))
	copy(out, cells)
	return out
}
