/*
matcher.go - Invoice-to-cell matching policy

PURPOSE:
  Decides whether a billed invoice belongs to a forecast grid cell. The
  policy exists in exactly one place so the priority order cannot drift
  between call sites.

MATCHING POLICY (all conditions mandatory unless noted):
  1. Project guard (non-negotiable): invoice.ProjectID must equal
     cell.ProjectID. A mismatch rejects regardless of any other signal;
     one project's spend must never leak into another's actuals.
  2. Canonical equality: canonicalized invoice rubro ref equals the cell's
     canonical rubro id.
  3. Fallback: if (2) fails, normalized description equality — accepted
     only when both keys are non-empty and equal.
  4. Month equality, evaluated after (2)/(3): a rubro mismatch
     short-circuits before month parsing cost is paid.

AMBIGUITY:
  Canonical matches are unique by construction (cell keys are unique), but
  the description fallback can hit several cells. An invoice must match
  exactly one cell or none; the aggregator rejects ambiguous fallback
  matches rather than guessing.

STATUS GATE:
  Only invoices whose status is in the matchable allow-list participate;
  the aggregator filters the rest before matching is attempted.

SEE ALSO:
  - aggregator.go: Applies this policy across the selected row set
*/
package forecast

import (
	"github.com/finzlab/forecast-engine/taxonomy"
)

// =============================================================================
// MATCHER
// =============================================================================

// MatchKind classifies how an invoice matched a cell.
type MatchKind int

const (
	MatchNone MatchKind = iota
	// MatchCanonical: project, canonical rubro id and month all equal.
	MatchCanonical
	// MatchDescription: project and month equal, rubro matched only via
	// normalized description equality.
	MatchDescription
)

// Matcher evaluates invoices against forecast cells.
// Stateless and safe for concurrent use.
type Matcher struct {
	Canon  *taxonomy.Canonicalizer
	Months MonthNormalizer
}

func NewMatcher(canon *taxonomy.Canonicalizer, months MonthNormalizer) *Matcher {
	return &Matcher{Canon: canon, Months: months}
}

// Match reports whether invoice belongs to cell under the full policy.
func (m *Matcher) Match(inv Invoice, cell Cell) bool {
	return m.Evaluate(inv, cell) != MatchNone
}

// Evaluate applies the matching policy and reports the match kind, so the
// aggregator can prefer canonical matches over description fallbacks when
// both exist for different cells.
func (m *Matcher) Evaluate(inv Invoice, cell Cell) MatchKind {
	// (1) Project guard. Automatic reject on mismatch, no exceptions.
	if inv.ProjectID != cell.ProjectID {
		return MatchNone
	}

	kind := MatchNone

	// (2) Canonical rubro equality.
	if m.Canon.Canonicalize(inv.RubroRef).CanonicalID == cell.CanonicalRubroID {
		kind = MatchCanonical
	} else {
		// (3) Normalized description fallback, non-empty keys only.
		invKey := taxonomy.NormalizeKey(inv.Description)
		cellKey := taxonomy.NormalizeKey(cell.Description)
		if invKey != "" && invKey == cellKey {
			kind = MatchDescription
		}
	}
	if kind == MatchNone {
		return MatchNone
	}

	// (4) Month equality, only after rubro identity is settled.
	month, ok := m.Months.Normalize(inv.Month)
	if !ok || month != cell.Month {
		return MatchNone
	}
	return kind
}
