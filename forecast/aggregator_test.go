package forecast

import "testing"

func testAggregator() *Aggregator {
	return NewAggregator(testMatcher())
}

func serverCell(rubroID string, month MonthIndex, forecast string) Cell {
	c := testCell("P1", rubroID, "", month)
	c.Forecast = dec(forecast)
	return c
}

// =============================================================================
// TIER SELECTION
// =============================================================================

func TestBuildPrefersServerRows(t *testing.T) {
	agg := testAggregator()
	tiers := RowTiers{
		ServerRows:     []Cell{serverCell("MOD-LEAD", 1, "500")},
		AllocationRows: []Cell{serverCell("MOD-LEAD", 1, "999")},
		LineItemRows:   []Cell{serverCell("MOD-LEAD", 1, "111")},
	}

	cells, provenance, _ := agg.Build(tiers, nil, 0)
	if provenance != ProvenanceAPI {
		t.Fatalf("provenance = %s, want api", provenance)
	}
	if len(cells) != 1 || !cells[0].Forecast.Equal(dec("500")) {
		t.Fatalf("cells = %+v; lower tiers must not leak in", cells)
	}
}

func TestBuildFallsBackThroughTiers(t *testing.T) {
	agg := testAggregator()

	// No server rows: allocations win.
	cells, provenance, _ := agg.Build(RowTiers{
		AllocationRows: []Cell{serverCell("MOD-LEAD", 1, "100")},
		LineItemRows:   []Cell{serverCell("MOD-LEAD", 1, "999")},
	}, nil, 0)
	if provenance != ProvenanceFallback || !cells[0].Forecast.Equal(dec("100")) {
		t.Fatalf("allocation tier not selected: %s %+v", provenance, cells)
	}

	// No server rows, no allocations: line items win.
	cells, provenance, _ = agg.Build(RowTiers{
		LineItemRows: []Cell{serverCell("INF-CLOUD", 2, "42")},
	}, nil, 0)
	if provenance != ProvenanceFallback || !cells[0].Forecast.Equal(dec("42")) {
		t.Fatalf("line item tier not selected: %s %+v", provenance, cells)
	}

	// Nothing at all: empty provenance, non-nil empty cell set.
	cells, provenance, _ = agg.Build(RowTiers{}, nil, 0)
	if provenance != ProvenanceEmpty {
		t.Fatalf("provenance = %s, want empty", provenance)
	}
	if cells == nil || len(cells) != 0 {
		t.Fatalf("cells = %v, want empty non-nil slice", cells)
	}
}

func TestBuildNeverMergesTiers(t *testing.T) {
	agg := testAggregator()
	tiers := RowTiers{
		AllocationRows: []Cell{serverCell("MOD-LEAD", 1, "100")},
		LineItemRows:   []Cell{serverCell("MOD-DEV-SR", 2, "200")},
	}

	cells, _, _ := agg.Build(tiers, nil, 0)
	if len(cells) != 1 || cells[0].CanonicalRubroID != "MOD-LEAD" {
		t.Fatalf("cells = %+v; tiers were merged", cells)
	}
}

func TestBuildClampsMonthsWindow(t *testing.T) {
	agg := testAggregator()
	tiers := RowTiers{AllocationRows: []Cell{
		serverCell("MOD-LEAD", 1, "10"),
		serverCell("MOD-LEAD", 6, "20"),
		serverCell("MOD-LEAD", 7, "30"),
	}}

	cells, _, _ := agg.Build(tiers, nil, 6)
	if len(cells) != 2 {
		t.Fatalf("window=6 kept %d cells, want 2", len(cells))
	}
	for _, c := range cells {
		if c.Month > 6 {
			t.Errorf("cell at month %d survived a window of 6", c.Month)
		}
	}

	// Zero means the full timeline.
	cells, _, _ = agg.Build(tiers, nil, 0)
	if len(cells) != 3 {
		t.Fatalf("window=0 kept %d cells, want all 3", len(cells))
	}
}

// =============================================================================
// INVOICE APPLICATION
// =============================================================================

func TestBuildPopulatesActualsFromInvoices(t *testing.T) {
	agg := testAggregator()
	tiers := RowTiers{AllocationRows: []Cell{
		serverCell("MOD-LEAD", 2, "1000"),
		serverCell("INF-CLOUD", 3, "500"),
	}}
	invoices := []Invoice{
		{ID: "inv-1", ProjectID: "P1", RubroRef: "mod-pm-project-manager", Month: "M2", Amount: dec("950"), Status: StatusPaid},
		{ID: "inv-2", ProjectID: "P1", RubroRef: "cloud-infra", Month: "3", Amount: dec("480.50"), Status: StatusApproved},
		{ID: "inv-3", ProjectID: "P1", RubroRef: "cloud-infra", Month: "3", Amount: dec("19.50"), Status: StatusMatched},
	}

	cells, _, unmatched := agg.Build(tiers, invoices, 0)
	if unmatched != 0 {
		t.Fatalf("unmatched = %d, want 0", unmatched)
	}
	for _, c := range cells {
		switch c.CanonicalRubroID {
		case "MOD-LEAD":
			if !c.Actual.Equal(dec("950")) {
				t.Errorf("MOD-LEAD actual = %s, want 950", c.Actual)
			}
		case "INF-CLOUD":
			// Two invoices accumulate on the same cell.
			if !c.Actual.Equal(dec("500.00")) {
				t.Errorf("INF-CLOUD actual = %s, want 500.00", c.Actual)
			}
		}
	}
}

func TestBuildRejectsCrossProjectInvoices(t *testing.T) {
	agg := testAggregator()
	tiers := RowTiers{AllocationRows: []Cell{serverCell("MOD-LEAD", 2, "1000")}}
	invoices := []Invoice{
		{ID: "inv-x", ProjectID: "P2", RubroRef: "MOD-LEAD", Month: "M2", Amount: dec("100"), Status: StatusPaid},
	}

	cells, _, unmatched := agg.Build(tiers, invoices, 0)
	if unmatched != 1 {
		t.Fatalf("unmatched = %d, want 1", unmatched)
	}
	if !cells[0].Actual.IsZero() {
		t.Fatalf("cross-project invoice populated actuals: %s", cells[0].Actual)
	}
}

func TestBuildSkipsNonMatchableStatuses(t *testing.T) {
	agg := testAggregator()
	tiers := RowTiers{AllocationRows: []Cell{serverCell("MOD-LEAD", 2, "1000")}}

	for _, status := range []InvoiceStatus{StatusPending, StatusRejected, StatusVoid} {
		invoices := []Invoice{
			{ID: "inv-x", ProjectID: "P1", RubroRef: "MOD-LEAD", Month: "M2", Amount: dec("100"), Status: status},
		}
		cells, _, unmatched := agg.Build(tiers, invoices, 0)
		if unmatched != 0 {
			t.Errorf("status %s counted as unmatched; it should be skipped entirely", status)
		}
		if !cells[0].Actual.IsZero() {
			t.Errorf("status %s populated actuals", status)
		}
	}
}

func TestBuildRejectsAmbiguousDescriptionMatch(t *testing.T) {
	agg := testAggregator()

	// Two cells share a description; the invoice rubro resolves to neither.
	a := testCell("P1", "SVC-AUDIT", "Servicios externos", 2)
	b := testCell("P1", "SVC-LEGAL", "Servicios externos", 2)
	tiers := RowTiers{AllocationRows: []Cell{a, b}}

	invoices := []Invoice{
		{ID: "inv-amb", ProjectID: "P1", RubroRef: "not-in-taxonomy",
			Description: "Servicios Externos", Month: "M2", Amount: dec("100"), Status: StatusPaid},
	}

	cells, _, unmatched := agg.Build(tiers, invoices, 0)
	if unmatched != 1 {
		t.Fatalf("unmatched = %d, want ambiguous invoice rejected", unmatched)
	}
	for _, c := range cells {
		if !c.Actual.IsZero() {
			t.Errorf("ambiguous invoice landed on %s", c.CanonicalRubroID)
		}
	}
}

func TestBuildPrefersCanonicalOverDescription(t *testing.T) {
	agg := testAggregator()

	// The invoice's rubro canonicalizes to MOD-LEAD, but its description
	// also matches a different cell. Canonical identity must win.
	lead := testCell("P1", "MOD-LEAD", "Líder de proyecto", 2)
	decoy := testCell("P1", "SVC-AUDIT", "Gestión general", 2)
	tiers := RowTiers{AllocationRows: []Cell{lead, decoy}}

	invoices := []Invoice{
		{ID: "inv-c", ProjectID: "P1", RubroRef: "mod-pm-project-manager",
			Description: "Gestión general", Month: "M2", Amount: dec("100"), Status: StatusPaid},
	}

	cells, _, unmatched := agg.Build(tiers, invoices, 0)
	if unmatched != 0 {
		t.Fatalf("unmatched = %d", unmatched)
	}
	for _, c := range cells {
		switch c.CanonicalRubroID {
		case "MOD-LEAD":
			if !c.Actual.Equal(dec("100")) {
				t.Errorf("canonical cell actual = %s, want 100", c.Actual)
			}
		case "SVC-AUDIT":
			if !c.Actual.IsZero() {
				t.Errorf("description decoy received the amount")
			}
		}
	}
}

func TestBuildInvoicesNeverCreateCells(t *testing.T) {
	agg := testAggregator()
	invoices := []Invoice{
		{ID: "inv-1", ProjectID: "P1", RubroRef: "MOD-LEAD", Month: "M2", Amount: dec("100"), Status: StatusPaid},
	}

	cells, provenance, unmatched := agg.Build(RowTiers{}, invoices, 0)
	if len(cells) != 0 || provenance != ProvenanceEmpty {
		t.Fatalf("invoice created rows: %+v (%s)", cells, provenance)
	}
	if unmatched != 1 {
		t.Fatalf("unmatched = %d, want 1", unmatched)
	}
}
