// Package source provides Sources implementations.
package source

import (
	"context"
	"errors"
	"sync"

	"github.com/finzlab/forecast-engine/forecast"
)

// =============================================================================
// MEMORY SOURCE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is an in-memory forecast.Sources (and ForecastRowSource). It also
// supports per-source failure injection so partial-degradation paths can be
// exercised in tests.
type Memory struct {
	mu          sync.RWMutex
	baselines   map[baselineKey]*forecast.Baseline
	allocations map[baselineKey][]forecast.Allocation
	invoices    map[string][]forecast.Invoice
	lineItems   map[string][]forecast.LineItem
	serverRows  map[baselineKey][]forecast.Cell
	failing     map[string]error
}

type baselineKey struct {
	ProjectID  string
	BaselineID string
}

func NewMemory() *Memory {
	return &Memory{
		baselines:   make(map[baselineKey]*forecast.Baseline),
		allocations: make(map[baselineKey][]forecast.Allocation),
		invoices:    make(map[string][]forecast.Invoice),
		lineItems:   make(map[string][]forecast.LineItem),
		serverRows:  make(map[baselineKey][]forecast.Cell),
		failing:     make(map[string]error),
	}
}

// ErrSourceDown is the default injected failure.
var ErrSourceDown = errors.New("source unavailable")

// FailSource makes the named source ("baseline", "allocations", "invoices",
// "line_items", "forecast_rows") return err on every fetch. Passing a nil
// err injects ErrSourceDown. ClearFailures resets.
func (m *Memory) FailSource(source string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		err = ErrSourceDown
	}
	m.failing[source] = err
}

func (m *Memory) ClearFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = make(map[string]error)
}

func (m *Memory) failureFor(source string) error {
	return m.failing[source]
}

// -----------------------------------------------------------------------------
// Writes (test/dev setup)
// -----------------------------------------------------------------------------

func (m *Memory) PutBaseline(b forecast.Baseline) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := b
	m.baselines[baselineKey{b.ProjectID, b.ID}] = &copied
}

func (m *Memory) AddAllocations(allocs ...forecast.Allocation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range allocs {
		k := baselineKey{a.ProjectID, a.BaselineID}
		m.allocations[k] = append(m.allocations[k], a)
	}
}

func (m *Memory) AddInvoices(invoices ...forecast.Invoice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range invoices {
		m.invoices[inv.ProjectID] = append(m.invoices[inv.ProjectID], inv)
	}
}

func (m *Memory) AddLineItems(items ...forecast.LineItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		m.lineItems[it.ProjectID] = append(m.lineItems[it.ProjectID], it)
	}
}

func (m *Memory) PutForecastRows(projectID, baselineID string, rows []forecast.Cell) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([]forecast.Cell, len(rows))
	copy(copied, rows)
	m.serverRows[baselineKey{projectID, baselineID}] = copied
}

// -----------------------------------------------------------------------------
// forecast.Sources
// -----------------------------------------------------------------------------

func (m *Memory) FetchBaseline(_ context.Context, projectID, baselineID string) (*forecast.Baseline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failureFor("baseline"); err != nil {
		return nil, err
	}
	b, ok := m.baselines[baselineKey{projectID, baselineID}]
	if !ok {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

func (m *Memory) FetchAllocations(_ context.Context, projectID, baselineID string) ([]forecast.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failureFor("allocations"); err != nil {
		return nil, err
	}
	return copySlice(m.allocations[baselineKey{projectID, baselineID}]), nil
}

func (m *Memory) FetchInvoices(_ context.Context, projectID string) ([]forecast.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failureFor("invoices"); err != nil {
		return nil, err
	}
	return copySlice(m.invoices[projectID]), nil
}

func (m *Memory) FetchLineItems(_ context.Context, projectID string) ([]forecast.LineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failureFor("line_items"); err != nil {
		return nil, err
	}
	return copySlice(m.lineItems[projectID]), nil
}

// FetchForecastRows implements forecast.ForecastRowSource.
func (m *Memory) FetchForecastRows(_ context.Context, projectID, baselineID string) ([]forecast.Cell, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failureFor("forecast_rows"); err != nil {
		return nil, err
	}
	return copySlice(m.serverRows[baselineKey{projectID, baselineID}]), nil
}

func copySlice[T any](in []T) []T {
	if len(in) == 0 {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
