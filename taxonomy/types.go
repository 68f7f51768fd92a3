/*
Package taxonomy provides the canonical cost-line taxonomy and identifier
resolution engine.

PURPOSE:
  Upstream systems reference cost lines ("rubros") with inconsistent
  identifiers: current canonical codes, deprecated legacy codes, and
  free-text descriptions in mixed case with accents. This package resolves
  any of those to exactly one canonical taxonomy identifier so that every
  downstream join happens on a single key.

KEY CONCEPTS IN THIS FILE (types.go):
  - CanonicalID: Type-safe canonical taxonomy code
  - Entry: One taxonomy definition (code, description, category, cost type)
  - AliasMap: Historical identifier -> canonical code (append-only)
  - Unknown: Sentinel for unresolvable references

DESIGN PRINCIPLES:
  1. Immutability: The index is built once per taxonomy version, never mutated
  2. Type Safety: CanonicalID is distinct from raw reference strings, so a
     legacy identifier can never be compared against a canonical id by accident
  3. Non-fatal misses: An unresolvable reference maps to Unknown, it never
     aborts a batch

SEE ALSO:
  - normalize.go: Free-text comparison keys
  - index.go: Lookup map construction and resolution order
  - canonicalizer.go: Resolution wrapper with match provenance
  - factory.go: Versioned JSON taxonomy documents
*/
package taxonomy

// =============================================================================
// CANONICAL IDENTIFIER
// =============================================================================

// CanonicalID is a canonical taxonomy code (e.g. "MOD-LEAD").
//
// Raw upstream references are plain strings; they become a CanonicalID only
// by going through the Canonicalizer. Cross-entity joins must use this type
// and never a raw reference.
type CanonicalID string

// Unknown is the sentinel for references that could not be resolved.
// Records under this bucket stay visible in aggregations so operators can
// see that totals include unclassified spend.
const Unknown CanonicalID = "UNKNOWN"

func (id CanonicalID) IsUnknown() bool { return id == Unknown }

func (id CanonicalID) String() string { return string(id) }

// =============================================================================
// TAXONOMY ENTRY
// =============================================================================

// Category groups taxonomy entries by planning bucket.
type Category string

const (
	CategoryLabor    Category = "labor"
	CategoryNonLabor Category = "non_labor"
	CategoryInfra    Category = "infrastructure"
	CategoryServices Category = "services"
)

// CostType describes how an entry's cost behaves over the project timeline.
type CostType string

const (
	CostRecurring CostType = "recurring"
	CostOneTime   CostType = "one_time"
)

// Entry is one taxonomy definition. Entries are immutable and loaded once
// per taxonomy version; canonical ids are unique within a version.
type Entry struct {
	ID          CanonicalID
	Description string
	Category    Category
	CostType    CostType
}

// =============================================================================
// LEGACY ALIASES
// =============================================================================

// AliasMap maps a historical identifier (case-insensitive, compared via
// NormalizeKey) to the canonical id that replaced it. The table is built in
// at index construction and is append-only across taxonomy versions; it is
// never mutated at request time.
type AliasMap map[string]CanonicalID
