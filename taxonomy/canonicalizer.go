/*
canonicalizer.go - Reference resolution with match provenance

PURPOSE:
  The request-time face of the taxonomy: takes any cost-line reference
  (canonical code, deprecated code, free-text description) and returns the
  canonical id plus how the match was made. Misses return the Unknown
  sentinel; they never error and never halt a batch — one bad record must
  not poison the rest.

RESOLUTION ORDER (defined once, in index.go):
  exact canonical id -> legacy alias -> normalized description -> Unknown

When an exact canonical match and a description fallback would disagree,
the exact match wins. That ordering is deliberate and enforced by the
single resolve function rather than scattered fallback chains.

SEE ALSO:
  - index.go: Lookup maps and resolution order
  - forecast: Consumes Resolution during materialization and matching
*/
package taxonomy

// =============================================================================
// RESOLUTION
// =============================================================================

// Resolution is the outcome of canonicalizing one reference.
type Resolution struct {
	CanonicalID CanonicalID
	Via         MatchVia

	// Entry is the resolved taxonomy entry, nil when Via is MatchUnknown.
	Entry *Entry
}

// Canonicalizer resolves raw references against an immutable Index.
// Stateless and safe for concurrent use.
type Canonicalizer struct {
	index *Index
}

func NewCanonicalizer(index *Index) *Canonicalizer {
	return &Canonicalizer{index: index}
}

// Index returns the underlying taxonomy index.
func (c *Canonicalizer) Index() *Index { return c.index }

// Canonicalize resolves ref to a canonical id. Never fails: unresolvable
// references return {Unknown, MatchUnknown}. Callers that care about misses
// log them with their own context (project id, raw value).
func (c *Canonicalizer) Canonicalize(ref string) Resolution {
	entry, via := c.index.resolve(ref)
	if entry == nil {
		return Resolution{CanonicalID: Unknown, Via: MatchUnknown}
	}
	return Resolution{CanonicalID: entry.ID, Via: via, Entry: entry}
}

// CanonicalizeID is the identifier-only convenience used by callers that
// need resolution without provenance (e.g. catalog display).
func (c *Canonicalizer) CanonicalizeID(ref string) CanonicalID {
	return c.Canonicalize(ref).CanonicalID
}
