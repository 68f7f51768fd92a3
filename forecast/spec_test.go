package forecast_test

import (
	"context"
	"testing"

	"github.com/finzlab/forecast-engine/forecast"
	"github.com/finzlab/forecast-engine/forecast/source"
)

// =============================================================================
// END-TO-END SCENARIOS
// =============================================================================
// Each test walks one full story through the engine, in GIVEN/WHEN/THEN form.

func TestScenarioLegacyAliasFlowsThroughToActuals(t *testing.T) {
	// GIVEN: a baseline whose allocations use a deprecated rubro identifier,
	// and a paid invoice filed under the canonical id
	mem := source.NewMemory()
	seedBaseline(mem, "P1", "BL-1")
	mem.AddAllocations(forecast.Allocation{
		ProjectID: "P1", BaselineID: "BL-1",
		RubroRef: "mod-pm-project-manager", Month: "M2", Amount: amount("1000"),
	})
	mem.AddInvoices(forecast.Invoice{
		ID: "inv-1", ProjectID: "P1", RubroRef: "MOD-LEAD",
		Month: "M2", Amount: amount("950"), Status: forecast.StatusPaid,
	})

	// WHEN: the grid is materialized
	res, err := newEngine(mem).Materialize(context.Background(), "P1", "BL-1", 0)
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}

	// THEN: alias and canonical id land on the SAME cell
	if len(res.Cells) != 1 {
		t.Fatalf("got %d cells, want the alias and id unified into 1", len(res.Cells))
	}
	c := res.Cells[0]
	if c.CanonicalRubroID != "MOD-LEAD" || c.Month != 2 {
		t.Fatalf("cell key = (%s, %d)", c.CanonicalRubroID, c.Month)
	}
	if !c.Forecast.Equal(amount("1000")) || !c.Actual.Equal(amount("950")) {
		t.Errorf("cell = forecast %s actual %s, want 1000/950", c.Forecast, c.Actual)
	}
	if res.UnmatchedInvoiceCount != 0 {
		t.Errorf("unmatched = %d", res.UnmatchedInvoiceCount)
	}
}

func TestScenarioMixedMonthEncodingsUnifyOnOneTimeline(t *testing.T) {
	// GIVEN: allocations for the same rubro under three month encodings
	mem := source.NewMemory()
	seedBaseline(mem, "P1", "BL-1")
	mem.AddAllocations(
		forecast.Allocation{ProjectID: "P1", BaselineID: "BL-1", RubroRef: "INF-CLOUD", Month: "M3", Amount: amount("10")},
		forecast.Allocation{ProjectID: "P1", BaselineID: "BL-1", RubroRef: "INF-CLOUD", Month: "2025-03", Amount: amount("20")},
		forecast.Allocation{ProjectID: "P1", BaselineID: "BL-1", RubroRef: "INF-CLOUD", Month: "3", Amount: amount("30")},
	)

	// WHEN: the grid is materialized
	res, err := newEngine(mem).Materialize(context.Background(), "P1", "BL-1", 0)
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}

	// THEN: all three encodings aggregate into month 3
	if len(res.Cells) != 1 || res.Cells[0].Month != 3 {
		t.Fatalf("cells = %+v, want single cell at month 3", res.Cells)
	}
	if !res.Cells[0].Forecast.Equal(amount("60")) {
		t.Errorf("forecast = %s, want 60", res.Cells[0].Forecast)
	}
}

func TestScenarioDirtyDataDegradesGracefully(t *testing.T) {
	// GIVEN: a data set mixing good rows, an unknown rubro, an unparseable
	// month, and a pending (non-matchable) invoice
	mem := source.NewMemory()
	seedBaseline(mem, "P1", "BL-1")
	mem.AddAllocations(
		forecast.Allocation{ProjectID: "P1", BaselineID: "BL-1", RubroRef: "MOD-LEAD", Month: "M1", Amount: amount("100")},
		forecast.Allocation{ProjectID: "P1", BaselineID: "BL-1", RubroRef: "typo-rubro", Month: "M1", Amount: amount("40")},
		forecast.Allocation{ProjectID: "P1", BaselineID: "BL-1", RubroRef: "MOD-LEAD", Month: "once upon a time", Amount: amount("999")},
	)
	mem.AddInvoices(
		forecast.Invoice{ID: "inv-p", ProjectID: "P1", RubroRef: "MOD-LEAD", Month: "M1", Amount: amount("80"), Status: forecast.StatusPending},
		forecast.Invoice{ID: "inv-o", ProjectID: "P1", RubroRef: "no-such-cell-rubro", Month: "M9", Amount: amount("5"), Status: forecast.StatusPaid},
	)

	// WHEN: the grid is materialized
	res, err := newEngine(mem).Materialize(context.Background(), "P1", "BL-1", 0)
	if err != nil {
		t.Fatalf("dirty data must not be fatal: %v", err)
	}

	// THEN: good rows survive, the unknown ref is visible under the
	// sentinel, dropped and unmatched records are counted
	if res.UnresolvedCount != 1 {
		t.Errorf("unresolved = %d, want 1 (the unparseable month)", res.UnresolvedCount)
	}
	if res.UnmatchedInvoiceCount != 1 {
		t.Errorf("unmatched = %d, want 1 (pending invoice is skipped, not unmatched)", res.UnmatchedInvoiceCount)
	}

	var sawLead, sawUnknown bool
	for _, c := range res.Cells {
		switch c.CanonicalRubroID {
		case "MOD-LEAD":
			sawLead = true
			if !c.Forecast.Equal(amount("100")) {
				t.Errorf("MOD-LEAD forecast = %s", c.Forecast)
			}
			if !c.Actual.IsZero() {
				t.Errorf("pending invoice populated actuals: %s", c.Actual)
			}
		case "UNKNOWN":
			sawUnknown = true
			if !c.Forecast.Equal(amount("40")) {
				t.Errorf("UNKNOWN forecast = %s", c.Forecast)
			}
		}
	}
	if !sawLead || !sawUnknown {
		t.Errorf("cells = %+v, want MOD-LEAD and UNKNOWN buckets", res.Cells)
	}
}

func TestScenarioServerRowsShadowEverything(t *testing.T) {
	// GIVEN: explicit server forecast rows AND rich fallback data
	mem := source.NewMemory()
	seedBaseline(mem, "P1", "BL-1")
	mem.PutForecastRows("P1", "BL-1", []forecast.Cell{{
		ProjectID: "P1", CanonicalRubroID: "MOD-LEAD", Month: 1,
		Description: "Líder de proyecto", Planned: amount("800"), Forecast: amount("850"),
	}})
	mem.AddAllocations(forecast.Allocation{
		ProjectID: "P1", BaselineID: "BL-1", RubroRef: "MOD-LEAD", Month: "M1", Amount: amount("9999"),
	})
	mem.AddLineItems(forecast.LineItem{
		ID: "li-1", ProjectID: "P1", RubroRef: "INF-CLOUD", CanonicalID: "INF-CLOUD",
		UnitCost: amount("100"), Quantity: amount("1"), MonthFrom: "M1", MonthTo: "M6",
	})
	mem.AddInvoices(forecast.Invoice{
		ID: "inv-1", ProjectID: "P1", RubroRef: "MOD-LEAD", Month: "M1", Amount: amount("820"), Status: forecast.StatusMatched,
	})

	// WHEN: the grid is materialized
	res, err := newEngine(mem).Materialize(context.Background(), "P1", "BL-1", 0)
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}

	// THEN: only the server rows are served, with actuals applied to them
	if res.Provenance != forecast.ProvenanceAPI || len(res.Cells) != 1 {
		t.Fatalf("result = %s with %d cells, want api tier only", res.Provenance, len(res.Cells))
	}
	c := res.Cells[0]
	if !c.Planned.Equal(amount("800")) || !c.Forecast.Equal(amount("850")) || !c.Actual.Equal(amount("820")) {
		t.Errorf("cell = planned %s forecast %s actual %s", c.Planned, c.Forecast, c.Actual)
	}
}

func TestScenarioZeroEstimateBaseline(t *testing.T) {
	// GIVEN: an approved baseline with no estimate lines and no other data
	mem := source.NewMemory()
	mem.PutBaseline(forecast.Baseline{ID: "BL-empty", ProjectID: "P1"})

	// WHEN: the grid is materialized
	res, err := newEngine(mem).Materialize(context.Background(), "P1", "BL-empty", 0)

	// THEN: an empty grid with "empty" provenance, not an error
	if err != nil {
		t.Fatalf("zero-estimate baseline errored: %v", err)
	}
	if res.Provenance != forecast.ProvenanceEmpty || len(res.Cells) != 0 || res.Partial {
		t.Errorf("result = %s cells=%d partial=%v, want clean empty grid", res.Provenance, len(res.Cells), res.Partial)
	}
}
