/*
orchestrator.go - Fetch fan-out and the public entry point

PURPOSE:
  The top-level pipeline:

    Fetching   - independent concurrent fetches (baseline, allocations,
                 invoices, line items, optional server forecast rows)
    Resolving  - canonicalization / month normalization applied per record
                 inside the materializers
    Aggregating- tier selection + invoice matching
    Done       - deterministic Result with provenance and counters

PARTIAL DEGRADATION (deliberate policy, not an oversight):
  Each fetch is isolated. A failing fetch substitutes an empty collection
  for that source and flips Partial on the result; the pipeline continues.
  Only simultaneous failure of ALL sources surfaces as a hard error.

CANCELLATION:
  The context is checked after the fan-in; a cancelled invocation returns
  the context error and no result — never a half-computed grid.

DETERMINISM:
  The engine holds no mutable state between invocations. Given identical
  inputs the output cell set is identical and identically ordered, so
  repeated invocations for the same (project, baseline) are idempotent.

SEE ALSO:
  - source/memory.go: In-memory Sources for tests and development
  - store/sqlite: Production Sources implementation
*/
package forecast

import (
	"context"
	"log"
	"sync"

	"github.com/finzlab/forecast-engine/taxonomy"
)

// =============================================================================
// SOURCES - Caller-provided fetchers (the engine owns no I/O)
// =============================================================================

// Sources supplies the four input collections. Implementations fetch from
// storage or remote APIs; the engine never caches or retries — that policy
// belongs to the caller.
type Sources interface {
	FetchBaseline(ctx context.Context, projectID, baselineID string) (*Baseline, error)
	FetchAllocations(ctx context.Context, projectID, baselineID string) ([]Allocation, error)
	FetchInvoices(ctx context.Context, projectID string) ([]Invoice, error)
	FetchLineItems(ctx context.Context, projectID string) ([]LineItem, error)
}

// ForecastRowSource is an optional capability: sources that also hold
// explicit server-side forecast rows implement it, and those rows become
// tier 1. A Sources without this capability simply has an empty tier 1.
type ForecastRowSource interface {
	Sources
	FetchForecastRows(ctx context.Context, projectID, baselineID string) ([]Cell, error)
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine is the materialization orchestrator. Stateless and re-entrant:
// concurrent invocations for any mix of projects may run fully in parallel.
type Engine struct {
	sources      Sources
	canon        *taxonomy.Canonicalizer
	materializer *Materializer
	aggregator   *Aggregator
}

// NewEngine wires the pipeline around caller-provided sources and an
// immutable taxonomy. months configures calendar-form anchoring.
func NewEngine(sources Sources, canon *taxonomy.Canonicalizer, months MonthNormalizer) *Engine {
	matcher := NewMatcher(canon, months)
	return &Engine{
		sources:      sources,
		canon:        canon,
		materializer: NewMaterializer(canon, months),
		aggregator:   NewAggregator(matcher),
	}
}

// CanonicalizeRubroID resolves a single reference to its canonical id.
// Exposed independently for callers that only need identifier resolution.
func (e *Engine) CanonicalizeRubroID(ref string) taxonomy.CanonicalID {
	return e.canon.CanonicalizeID(ref)
}

// fetchResults is the fan-in target; one slot per source.
type fetchResults struct {
	baseline    *Baseline
	allocations []Allocation
	invoices    []Invoice
	lineItems   []LineItem
	serverRows  []Cell
	failures    []*SourceError
	mu          sync.Mutex
}

func (r *fetchResults) fail(source string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, &SourceError{Source: source, Err: err})
}

// Materialize runs the full pipeline for one (project, baseline) pair.
// monthsWindow clamps the grid (0 = full timeline).
func (e *Engine) Materialize(ctx context.Context, projectID, baselineID string, monthsWindow int) (*Result, error) {
	// --- Fetching: independent concurrent fetches, individually isolated.
	res := &fetchResults{}
	var wg sync.WaitGroup

	run := func(source string, fetch func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fetch(); err != nil {
				log.Printf("[Engine] project=%s source=%s fetch failed: %v", projectID, source, err)
				res.fail(source, err)
			}
		}()
	}

	run("baseline", func() error {
		b, err := e.sources.FetchBaseline(ctx, projectID, baselineID)
		res.baseline = b
		return err
	})
	run("allocations", func() error {
		a, err := e.sources.FetchAllocations(ctx, projectID, baselineID)
		res.allocations = a
		return err
	})
	run("invoices", func() error {
		inv, err := e.sources.FetchInvoices(ctx, projectID)
		res.invoices = inv
		return err
	})
	run("line_items", func() error {
		items, err := e.sources.FetchLineItems(ctx, projectID)
		res.lineItems = items
		return err
	})
	if rowSource, ok := e.sources.(ForecastRowSource); ok {
		run("forecast_rows", func() error {
			rows, err := rowSource.FetchForecastRows(ctx, projectID, baselineID)
			res.serverRows = rows
			return err
		})
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		// Cancelled: the caller discards; never return a half-computed grid.
		return nil, err
	}

	coreFailures := 0
	for _, f := range res.failures {
		if f.Source != "forecast_rows" {
			coreFailures++
		}
	}
	if coreFailures == 4 {
		return nil, &AllSourcesError{ProjectID: projectID, Failures: res.failures}
	}

	// --- Resolving + tier materialization. Failed sources are empty slices
	// here, which simply leaves their tier empty.
	allocRows, allocUnresolved := e.materializer.FromAllocations(projectID, res.allocations)
	itemRows, itemUnresolved := e.materializer.FromLineItems(projectID, res.lineItems)

	// --- Aggregating.
	cells, provenance, unmatched := e.aggregator.Build(RowTiers{
		ServerRows:     res.serverRows,
		AllocationRows: allocRows,
		LineItemRows:   itemRows,
	}, res.invoices, monthsWindow)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if res.baseline != nil && !res.baseline.HasEstimates() && provenance == ProvenanceEmpty {
		// Valid terminal state: an accepted baseline with zero estimates
		// legitimately materializes nothing.
		log.Printf("[Engine] project=%s baseline=%s has no estimates, returning empty grid", projectID, baselineID)
	}

	return &Result{
		Cells:                 cells,
		Provenance:            provenance,
		Partial:               len(res.failures) > 0,
		UnresolvedCount:       allocUnresolved + itemUnresolved,
		UnmatchedInvoiceCount: unmatched,
	}, nil
}
