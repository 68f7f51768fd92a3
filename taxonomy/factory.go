/*
factory.go - Versioned JSON taxonomy documents

PURPOSE:
  Converts a versioned JSON taxonomy document into an immutable Index.
  Taxonomy changes ship as data, not code: operations can bump the taxonomy
  version by replacing one JSON file, and the legacy alias table grows
  append-only alongside it.

JSON SCHEMA:
  {
    "version": "2026-02",
    "entries": [
      {
        "id": "MOD-LEAD",
        "description": "Líder de proyecto",
        "category": "labor",
        "cost_type": "recurring"
      }
    ],
    "aliases": {
      "mod-pm-project-manager": "MOD-LEAD"
    }
  }

VALIDATION:
  - version and at least one entry are required
  - entries without an id are rejected (a silent drop would hide taxonomy
    corruption until joins start landing in the UNKNOWN bucket)
  - unknown category / cost type values are rejected

SEE ALSO:
  - index.go: BuildIndex, resolution order
  - presets.go: Built-in default document
*/
package taxonomy

import (
	"encoding/json"
	"fmt"
	"os"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// DocumentJSON is the on-disk taxonomy document.
type DocumentJSON struct {
	Version string             `json:"version"`
	Entries []EntryJSON        `json:"entries"`
	Aliases map[string]string  `json:"aliases,omitempty"`
}

// EntryJSON is the JSON representation of one taxonomy entry.
type EntryJSON struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Category    string `json:"category"`
	CostType    string `json:"cost_type,omitempty"`
}

// =============================================================================
// DOCUMENT PARSING
// =============================================================================

// ParseDocument parses a JSON taxonomy document and builds its Index.
func ParseDocument(data []byte) (*Index, error) {
	var doc DocumentJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy JSON: %w", err)
	}
	return FromDocument(doc)
}

// LoadDocument reads and parses a taxonomy document from disk.
func LoadDocument(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy document: %w", err)
	}
	return ParseDocument(data)
}

// FromDocument validates a DocumentJSON and builds the Index.
func FromDocument(doc DocumentJSON) (*Index, error) {
	if doc.Version == "" {
		return nil, fmt.Errorf("taxonomy document missing version")
	}
	if len(doc.Entries) == 0 {
		return nil, fmt.Errorf("taxonomy document %s has no entries", doc.Version)
	}

	entries := make([]Entry, 0, len(doc.Entries))
	for i, ej := range doc.Entries {
		if ej.ID == "" {
			return nil, fmt.Errorf("taxonomy document %s: entry %d has no id", doc.Version, i)
		}
		category, err := parseCategory(ej.Category)
		if err != nil {
			return nil, fmt.Errorf("taxonomy document %s: entry %q: %w", doc.Version, ej.ID, err)
		}
		costType, err := parseCostType(ej.CostType)
		if err != nil {
			return nil, fmt.Errorf("taxonomy document %s: entry %q: %w", doc.Version, ej.ID, err)
		}
		entries = append(entries, Entry{
			ID:          CanonicalID(ej.ID),
			Description: ej.Description,
			Category:    category,
			CostType:    costType,
		})
	}

	aliases := make(AliasMap, len(doc.Aliases))
	for raw, target := range doc.Aliases {
		aliases[raw] = CanonicalID(target)
	}

	return BuildIndex(doc.Version, entries, aliases), nil
}

func parseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryLabor, CategoryNonLabor, CategoryInfra, CategoryServices:
		return Category(s), nil
	default:
		return "", fmt.Errorf("unknown category %q", s)
	}
}

func parseCostType(s string) (CostType, error) {
	switch {
	case s == "":
		return CostRecurring, nil
	case CostType(s) == CostRecurring || CostType(s) == CostOneTime:
		return CostType(s), nil
	default:
		return "", fmt.Errorf("unknown cost type %q", s)
	}
}
