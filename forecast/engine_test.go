package forecast_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/finzlab/forecast-engine/forecast"
	"github.com/finzlab/forecast-engine/forecast/source"
	"github.com/finzlab/forecast-engine/taxonomy"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func engineCanon() *taxonomy.Canonicalizer {
	entries := []taxonomy.Entry{
		{ID: "MOD-LEAD", Description: "Líder de proyecto", Category: taxonomy.CategoryLabor},
		{ID: "MOD-DEV-SR", Description: "Desarrollador senior", Category: taxonomy.CategoryLabor},
		{ID: "INF-CLOUD", Description: "Infraestructura en la nube", Category: taxonomy.CategoryInfra},
	}
	aliases := taxonomy.AliasMap{
		"mod-pm-project-manager": "MOD-LEAD",
		"cloud-infra":            "INF-CLOUD",
	}
	return taxonomy.NewCanonicalizer(taxonomy.BuildIndex("test", entries, aliases))
}

func newEngine(mem *source.Memory) *forecast.Engine {
	return forecast.NewEngine(mem, engineCanon(), forecast.MonthNormalizer{})
}

func amount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedBaseline(mem *source.Memory, projectID, baselineID string) {
	mem.PutBaseline(forecast.Baseline{
		ID:        baselineID,
		ProjectID: projectID,
		LaborEstimates: []forecast.Estimate{
			{RubroRef: "MOD-LEAD", Description: "Líder de proyecto", Amount: amount("12000")},
		},
	})
}

// =============================================================================
// TIER PROVENANCE
// =============================================================================

func TestMaterializeUsesServerRowsWhenPresent(t *testing.T) {
	mem := source.NewMemory()
	seedBaseline(mem, "P1", "BL-1")
	mem.AddAllocations(forecast.Allocation{
		ProjectID: "P1", BaselineID: "BL-1", RubroRef: "MOD-LEAD", Month: "M1", Amount: amount("999"),
	})
	mem.PutForecastRows("P1", "BL-1", []forecast.Cell{{
		ProjectID: "P1", CanonicalRubroID: "MOD-LEAD", Month: 1,
		Description: "Líder de proyecto", Planned: amount("1000"), Forecast: amount("1100"),
	}})

	res, err := newEngine(mem).Materialize(context.Background(), "P1", "BL-1", 0)
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if res.Provenance != forecast.ProvenanceAPI {
		t.Fatalf("provenance = %s, want api", res.Provenance)
	}
	if len(res.Cells) != 1 || !res.Cells[0].Forecast.Equal(amount("1100")) {
		t.Fatalf("cells = %+v; allocation tier leaked over server rows", res.Cells)
	}
}

func TestMaterializeFallsBackToAllocations(t *testing.T) {
	mem := source.NewMemory()
	seedBaseline(mem, "P1", "BL-1")
	mem.AddAllocations(
		forecast.Allocation{ProjectID: "P1", BaselineID: "BL-1", RubroRef: "mod-pm-project-manager", Month: "M2", Amount: amount("1000")},
		forecast.Allocation{ProjectID: "P1", BaselineID: "BL-1", RubroRef: "cloud-infra", Month: "M3", Amount: amount("250")},
	)

	res, err := newEngine(mem).Materialize(context.Background(), "P1", "BL-1", 0)
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if res.Provenance != forecast.ProvenanceFallback {
		t.Fatalf("provenance = %s, want fallback", res.Provenance)
	}
	if len(res.Cells) != 2 {
		t.Fatalf("got %d cells, want 2", len(res.Cells))
	}
	if res.Cells[0].CanonicalRubroID != "INF-CLOUD" || res.Cells[1].CanonicalRubroID != "MOD-LEAD" {
		t.Fatalf("cells not canonical/ordered: %+v", res.Cells)
	}
}

func TestMaterializeFallsBackToLineItems(t *testing.T) {
	mem := source.NewMemory()
	seedBaseline(mem, "P1", "BL-1")
	mem.AddLineItems(forecast.LineItem{
		ID: "li-1", ProjectID: "P1", RubroRef: "MOD-DEV-SR", CanonicalID: "MOD-DEV-SR",
		Description: "Desarrollador senior",
		UnitCost:    amount("5000"), Quantity: amount("2"), MonthFrom: "M1", MonthTo: "M2",
	})

	res, err := newEngine(mem).Materialize(context.Background(), "P1", "BL-1", 0)
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if res.Provenance != forecast.ProvenanceFallback {
		t.Fatalf("provenance = %s, want fallback", res.Provenance)
	}
	if len(res.Cells) != 2 || !res.Cells[0].Forecast.Equal(amount("10000")) {
		t.Fatalf("cells = %+v, want unit_cost x quantity per month", res.Cells)
	}
}

func TestMaterializeEmptyBaselineIsNotAnError(t *testing.T) {
	mem := source.NewMemory()
	mem.PutBaseline(forecast.Baseline{ID: "BL-1", ProjectID: "P1"}) // zero estimates

	res, err := newEngine(mem).Materialize(context.Background(), "P1", "BL-1", 0)
	if err != nil {
		t.Fatalf("empty baseline must not error: %v", err)
	}
	if res.Provenance != forecast.ProvenanceEmpty || len(res.Cells) != 0 {
		t.Fatalf("result = %s %+v, want empty grid", res.Provenance, res.Cells)
	}
	if res.Partial {
		t.Error("empty baseline flagged partial; nothing failed")
	}
}

// =============================================================================
// PARTIAL DEGRADATION
// =============================================================================

func TestMaterializeSurvivesSingleSourceFailure(t *testing.T) {
	mem := source.NewMemory()
	seedBaseline(mem, "P1", "BL-1")
	mem.AddAllocations(forecast.Allocation{
		ProjectID: "P1", BaselineID: "BL-1", RubroRef: "MOD-LEAD", Month: "M1", Amount: amount("100"),
	})
	mem.FailSource("invoices", nil)

	res, err := newEngine(mem).Materialize(context.Background(), "P1", "BL-1", 0)
	if err != nil {
		t.Fatalf("single source failure must not be fatal: %v", err)
	}
	if !res.Partial {
		t.Error("Partial not set after a failed fetch")
	}
	if len(res.Cells) != 1 {
		t.Fatalf("cells = %+v, surviving sources must still materialize", res.Cells)
	}
	if !res.Cells[0].Actual.IsZero() {
		t.Error("actuals populated from a failed invoice source")
	}
}

func TestMaterializeFailsWhenAllSourcesFail(t *testing.T) {
	mem := source.NewMemory()
	for _, s := range []string{"baseline", "allocations", "invoices", "line_items"} {
		mem.FailSource(s, nil)
	}

	res, err := newEngine(mem).Materialize(context.Background(), "P1", "BL-1", 0)
	if err == nil {
		t.Fatal("expected hard error when every source fails")
	}
	if res != nil {
		t.Errorf("result = %+v, want nil alongside the error", res)
	}
	if !errors.Is(err, forecast.ErrAllSourcesFailed) {
		t.Errorf("errors.Is(err, ErrAllSourcesFailed) = false for %v", err)
	}

	var all *forecast.AllSourcesError
	if !errors.As(err, &all) {
		t.Fatalf("error is not *AllSourcesError: %T", err)
	}
	if len(all.Failures) != 4 {
		t.Errorf("failure detail carries %d sources, want 4", len(all.Failures))
	}
}

func TestMaterializeForecastRowFailureDegradesToFallback(t *testing.T) {
	// The optional tier-1 source failing must not be counted toward the
	// all-sources hard error; the fallback tiers still serve.
	mem := source.NewMemory()
	seedBaseline(mem, "P1", "BL-1")
	mem.AddAllocations(forecast.Allocation{
		ProjectID: "P1", BaselineID: "BL-1", RubroRef: "MOD-LEAD", Month: "M1", Amount: amount("100"),
	})
	mem.FailSource("forecast_rows", nil)

	res, err := newEngine(mem).Materialize(context.Background(), "P1", "BL-1", 0)
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if res.Provenance != forecast.ProvenanceFallback || !res.Partial {
		t.Fatalf("result = %s partial=%v, want fallback+partial", res.Provenance, res.Partial)
	}
}

// =============================================================================
// CANCELLATION AND DETERMINISM
// =============================================================================

func TestMaterializeCancelledContext(t *testing.T) {
	mem := source.NewMemory()
	seedBaseline(mem, "P1", "BL-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newEngine(mem).Materialize(ctx, "P1", "BL-1", 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res != nil {
		t.Errorf("cancelled invocation returned a result: %+v", res)
	}
}

func TestMaterializeIdempotent(t *testing.T) {
	mem := source.NewMemory()
	seedBaseline(mem, "P1", "BL-1")
	mem.AddAllocations(
		forecast.Allocation{ProjectID: "P1", BaselineID: "BL-1", RubroRef: "MOD-LEAD", Month: "M1", Amount: amount("100")},
		forecast.Allocation{ProjectID: "P1", BaselineID: "BL-1", RubroRef: "cloud-infra", Month: "M2", Amount: amount("200")},
	)
	mem.AddInvoices(forecast.Invoice{
		ID: "inv-1", ProjectID: "P1", RubroRef: "MOD-LEAD", Month: "M1", Amount: amount("90"), Status: forecast.StatusPaid,
	})

	eng := newEngine(mem)
	first, err := eng.Materialize(context.Background(), "P1", "BL-1", 0)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := eng.Materialize(context.Background(), "P1", "BL-1", 0)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated materialization differs:\n%+v\n%+v", first, second)
	}
}

func TestMaterializeProjectIsolation(t *testing.T) {
	mem := source.NewMemory()
	seedBaseline(mem, "P-A", "BL-1")
	mem.AddAllocations(forecast.Allocation{
		ProjectID: "P-A", BaselineID: "BL-1", RubroRef: "MOD-LEAD", Month: "M1", Amount: amount("100"),
	})
	// An invoice on another project, same rubro and month.
	mem.AddInvoices(forecast.Invoice{
		ID: "inv-b", ProjectID: "P-B", RubroRef: "MOD-LEAD", Month: "M1", Amount: amount("50"), Status: forecast.StatusPaid,
	})

	res, err := newEngine(mem).Materialize(context.Background(), "P-A", "BL-1", 0)
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	// The other project's invoice is never even fetched for P-A, and could
	// not match if it were.
	if !res.Cells[0].Actual.IsZero() {
		t.Errorf("P-B spend leaked into P-A actuals: %s", res.Cells[0].Actual)
	}
}
