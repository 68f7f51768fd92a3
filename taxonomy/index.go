/*
index.go - Lookup map construction and resolution order

PURPOSE:
  Builds the O(1) lookup maps used to resolve any cost-line reference, and
  defines the resolution order in exactly one place:

    1. Exact canonical id (raw reference, canonical codes are not free text)
    2. Legacy alias (normalized key)
    3. Normalized description

ANTI-CORRUPTION RULE:
  Canonical entries are indexed first. An alias is added only if its
  normalized key does not already occupy a description slot: an alias must
  never shadow or overwrite a canonical entry. Aliases pointing at codes
  that do not exist in this taxonomy version are skipped.

ATOMIC CONSTRUCTION:
  BuildIndex returns a fully-populated index; no caller ever observes a
  partially-built one. After construction the index is read-only and safe
  for concurrent use.

SEE ALSO:
  - canonicalizer.go: Wraps Resolve with match provenance
  - factory.go: Builds an Index from a versioned JSON document
*/
package taxonomy

import (
	"log"
	"sort"
	"strings"
)

// =============================================================================
// INDEX - Immutable lookup structure
// =============================================================================

// Index resolves references against one taxonomy version.
// Read-only after BuildIndex; safe for concurrent use.
type Index struct {
	version       string
	byCanonicalID map[CanonicalID]*Entry
	byDescription map[string]*Entry
	byAlias       map[string]*Entry
	ordered       []Entry
}

// MatchVia reports which lookup produced a resolution.
type MatchVia string

const (
	MatchExact       MatchVia = "exact"
	MatchAlias       MatchVia = "alias"
	MatchDescription MatchVia = "description"
	MatchUnknown     MatchVia = "unknown"
)

// BuildIndex constructs a complete, immutable Index from taxonomy entries
// and the legacy alias table. This is the only constructor: building the
// maps in one atomic function eliminates initialization-order hazards.
func BuildIndex(version string, entries []Entry, aliases AliasMap) *Index {
	idx := &Index{
		version:       version,
		byCanonicalID: make(map[CanonicalID]*Entry, len(entries)),
		byDescription: make(map[string]*Entry, len(entries)),
		byAlias:       make(map[string]*Entry, len(aliases)),
		ordered:       make([]Entry, 0, len(entries)),
	}

	// Canonical entries first, in a stable id order so duplicate description
	// keys resolve deterministically. Duplicate canonical ids keep the first
	// occurrence; duplicates indicate a broken taxonomy document.
	seen := make(map[CanonicalID]bool, len(entries))
	for _, e := range entries {
		if e.ID == "" || e.ID == Unknown {
			continue
		}
		if seen[e.ID] {
			log.Printf("[Taxonomy] Duplicate canonical id %q in version %s, keeping first", e.ID, version)
			continue
		}
		seen[e.ID] = true
		idx.ordered = append(idx.ordered, e)
	}
	sort.Slice(idx.ordered, func(i, j int) bool { return idx.ordered[i].ID < idx.ordered[j].ID })

	for i := range idx.ordered {
		e := &idx.ordered[i]
		idx.byCanonicalID[e.ID] = e
		if key := NormalizeKey(e.Description); key != "" {
			if _, taken := idx.byDescription[key]; !taken {
				idx.byDescription[key] = e
			}
		}
	}

	// Aliases second, and only into free slots. An alias never shadows a
	// canonical entry's description key.
	for raw, target := range aliases {
		entry, ok := idx.byCanonicalID[target]
		if !ok {
			log.Printf("[Taxonomy] Alias %q points at unknown canonical id %q, skipped", raw, target)
			continue
		}
		key := NormalizeKey(raw)
		if key == "" {
			continue
		}
		if _, taken := idx.byDescription[key]; taken {
			continue
		}
		if _, taken := idx.byAlias[key]; taken {
			continue
		}
		idx.byAlias[key] = entry
	}

	return idx
}

// Version returns the taxonomy version this index was built from.
func (idx *Index) Version() string { return idx.version }

// Entries returns all canonical entries ordered by id.
func (idx *Index) Entries() []Entry {
	out := make([]Entry, len(idx.ordered))
	copy(out, idx.ordered)
	return out
}

// Entry returns the entry for a canonical id.
func (idx *Index) Entry(id CanonicalID) (*Entry, bool) {
	e, ok := idx.byCanonicalID[id]
	return e, ok
}

// Resolve tries exact canonical id, then legacy alias, then normalized
// description, in that fixed order, returning the first hit.
func (idx *Index) Resolve(ref string) (*Entry, bool) {
	e, _ := idx.resolve(ref)
	return e, e != nil
}

func (idx *Index) resolve(ref string) (*Entry, MatchVia) {
	if trimmed := strings.TrimSpace(ref); trimmed != "" {
		if e, ok := idx.byCanonicalID[CanonicalID(trimmed)]; ok {
			return e, MatchExact
		}
	}

	key := NormalizeKey(ref)
	if key == "" {
		return nil, MatchUnknown
	}
	if e, ok := idx.byAlias[key]; ok {
		return e, MatchAlias
	}
	if e, ok := idx.byDescription[key]; ok {
		return e, MatchDescription
	}
	return nil, MatchUnknown
}
