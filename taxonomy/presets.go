/*
presets.go - Built-in default taxonomy

PURPOSE:
  Ships a working taxonomy so the server can start without an external
  document, and anchors the legacy alias table: aliases accumulated over
  past taxonomy versions live here and are append-only. New taxonomy
  versions may add aliases; removing one would orphan historical records
  that still carry the deprecated identifier.

USAGE:
  index := taxonomy.DefaultIndex()
  canon := taxonomy.NewCanonicalizer(index)

SEE ALSO:
  - factory.go: Loading a taxonomy document from disk instead
*/
package taxonomy

// DefaultVersion identifies the built-in taxonomy.
const DefaultVersion = "2026-01"

// DefaultEntries is the built-in canonical taxonomy.
func DefaultEntries() []Entry {
	return []Entry{
		{ID: "MOD-LEAD", Description: "Líder de proyecto", Category: CategoryLabor, CostType: CostRecurring},
		{ID: "MOD-ARCH", Description: "Arquitecto de soluciones", Category: CategoryLabor, CostType: CostRecurring},
		{ID: "MOD-DEV-SR", Description: "Desarrollador senior", Category: CategoryLabor, CostType: CostRecurring},
		{ID: "MOD-DEV-JR", Description: "Desarrollador junior", Category: CategoryLabor, CostType: CostRecurring},
		{ID: "MOD-QA", Description: "Analista de calidad", Category: CategoryLabor, CostType: CostRecurring},
		{ID: "MOD-UX", Description: "Diseñador de experiencia", Category: CategoryLabor, CostType: CostRecurring},
		{ID: "INF-CLOUD", Description: "Infraestructura en la nube", Category: CategoryInfra, CostType: CostRecurring},
		{ID: "INF-LIC-SW", Description: "Licencias de software", Category: CategoryInfra, CostType: CostRecurring},
		{ID: "INF-HW", Description: "Equipamiento de hardware", Category: CategoryInfra, CostType: CostOneTime},
		{ID: "SVC-CONSULT", Description: "Consultoría externa", Category: CategoryServices, CostType: CostRecurring},
		{ID: "SVC-TRAINING", Description: "Capacitación", Category: CategoryServices, CostType: CostOneTime},
		{ID: "GTO-TRAVEL", Description: "Viáticos y traslados", Category: CategoryNonLabor, CostType: CostOneTime},
		{ID: "GTO-MISC", Description: "Gastos varios", Category: CategoryNonLabor, CostType: CostOneTime},
	}
}

// DefaultAliases is the accumulated legacy alias table.
// APPEND-ONLY: entries are never removed across taxonomy versions.
func DefaultAliases() AliasMap {
	return AliasMap{
		// 2024 identifier scheme (pre-canonicalization)
		"mod-pm-project-manager":  "MOD-LEAD",
		"mod-pm":                  "MOD-LEAD",
		"mod-sa-solution-arch":    "MOD-ARCH",
		"mod-dev-ssr":             "MOD-DEV-SR",
		"mod-qa-tester":           "MOD-QA",
		"mod-ux-ui":               "MOD-UX",
		// 2025 catalog export codes
		"cloud-infra":             "INF-CLOUD",
		"aws-infra":               "INF-CLOUD",
		"sw-licenses":             "INF-LIC-SW",
		"hw-equipment":            "INF-HW",
		"ext-consulting":          "SVC-CONSULT",
		"training-courses":        "SVC-TRAINING",
		"travel-expenses":         "GTO-TRAVEL",
	}
}

// DefaultIndex builds the Index for the built-in taxonomy.
func DefaultIndex() *Index {
	return BuildIndex(DefaultVersion, DefaultEntries(), DefaultAliases())
}
