/*
Package sqlite provides a SQLite-backed implementation of forecast.Sources.

PURPOSE:
  Persists the cost-planning collections (baselines, allocations, invoices,
  catalog line items, explicit forecast rows) and serves them to the
  materialization engine. In production, the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  forecast.Sources:           Baseline/allocation/invoice/line-item fetches
  forecast.ForecastRowSource: Explicit server-side forecast rows (tier 1)

KEY TABLES:
  baselines:      Approved cost plans, one row per (project, baseline)
  estimates:      Labor/non-labor estimate lines belonging to a baseline
  allocations:    Monthly planned-spend records per baseline
  invoices:       Billed spend per project
  line_items:     Catalog cost lines per project
  forecast_rows:  Explicit forecast rows when the upstream API provides them

AMOUNT ENCODING:
  Amounts are stored as TEXT and parsed through decimal.NewFromString.
  Raw month encodings ("M3", "2026-02", "11") are stored verbatim - the
  engine owns month normalization, not the store.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/finz.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := forecast.NewEngine(store, canon, forecast.MonthNormalizer{})

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - forecast/orchestrator.go: Sources interface definitions
  - forecast/source/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/finzlab/forecast-engine/forecast"
	"github.com/finzlab/forecast-engine/taxonomy"
)

// Store implements the source interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Baselines (approved cost plans)
	CREATE TABLE IF NOT EXISTS baselines (
		id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		PRIMARY KEY (project_id, id)
	);

	-- Estimate lines belonging to a baseline
	CREATE TABLE IF NOT EXISTS estimates (
		project_id TEXT NOT NULL,
		baseline_id TEXT NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('labor', 'non_labor')),
		rubro_ref TEXT NOT NULL,
		description TEXT,
		amount TEXT NOT NULL,
		FOREIGN KEY (project_id, baseline_id) REFERENCES baselines(project_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_estimates_baseline
		ON estimates(project_id, baseline_id);

	-- Monthly planned-spend records (raw refs and months, resolved by the engine)
	CREATE TABLE IF NOT EXISTS allocations (
		project_id TEXT NOT NULL,
		baseline_id TEXT NOT NULL,
		rubro_ref TEXT NOT NULL,
		month_raw TEXT NOT NULL,
		amount TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_allocations_baseline
		ON allocations(project_id, baseline_id);

	-- Billed spend
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		rubro_ref TEXT NOT NULL,
		description TEXT,
		month_raw TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_invoices_project
		ON invoices(project_id);

	-- Catalog cost lines; canonical_id is resolved once at ingestion
	CREATE TABLE IF NOT EXISTS line_items (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		rubro_ref TEXT NOT NULL,
		canonical_id TEXT NOT NULL DEFAULT '',
		description TEXT,
		unit_cost TEXT NOT NULL,
		quantity TEXT NOT NULL,
		month_from TEXT NOT NULL,
		month_to TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_line_items_project
		ON line_items(project_id);

	-- Explicit forecast rows (tier 1, present only when upstream provides them)
	CREATE TABLE IF NOT EXISTS forecast_rows (
		project_id TEXT NOT NULL,
		baseline_id TEXT NOT NULL,
		canonical_id TEXT NOT NULL,
		month INTEGER NOT NULL,
		description TEXT,
		planned TEXT NOT NULL,
		forecast TEXT NOT NULL,
		actual TEXT NOT NULL,
		PRIMARY KEY (project_id, baseline_id, canonical_id, month)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// WRITES (ingestion)
// =============================================================================

// SaveBaseline upserts a baseline and replaces its estimate lines.
func (s *Store) SaveBaseline(ctx context.Context, b forecast.Baseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO baselines (id, project_id) VALUES (?, ?)
		 ON CONFLICT (project_id, id) DO NOTHING`, b.ID, b.ProjectID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM estimates WHERE project_id = ? AND baseline_id = ?`, b.ProjectID, b.ID); err != nil {
		return err
	}

	insert := func(kind string, lines []forecast.Estimate) error {
		for _, e := range lines {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO estimates (project_id, baseline_id, kind, rubro_ref, description, amount)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				b.ProjectID, b.ID, kind, e.RubroRef, e.Description, e.Amount.String()); err != nil {
				return err
			}
		}
		return nil
	}
	if err := insert("labor", b.LaborEstimates); err != nil {
		return err
	}
	if err := insert("non_labor", b.NonLaborEstimates); err != nil {
		return err
	}

	return tx.Commit()
}

// InsertAllocations appends allocation records atomically.
func (s *Store) InsertAllocations(ctx context.Context, allocs []forecast.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, a := range allocs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO allocations (project_id, baseline_id, rubro_ref, month_raw, amount)
			 VALUES (?, ?, ?, ?, ?)`,
			a.ProjectID, a.BaselineID, a.RubroRef, a.Month, a.Amount.String()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// InsertInvoices appends invoice records atomically, replacing on id so
// status transitions (pending -> matched) overwrite the prior row.
func (s *Store) InsertInvoices(ctx context.Context, invoices []forecast.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, inv := range invoices {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO invoices (id, project_id, rubro_ref, description, month_raw, amount, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			inv.ID, inv.ProjectID, inv.RubroRef, inv.Description, inv.Month, inv.Amount.String(), string(inv.Status)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// InsertLineItems appends catalog lines atomically, replacing on id.
func (s *Store) InsertLineItems(ctx context.Context, items []forecast.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, it := range items {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO line_items
			 (id, project_id, rubro_ref, canonical_id, description, unit_cost, quantity, month_from, month_to)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, it.ProjectID, it.RubroRef, string(it.CanonicalID), it.Description,
			it.UnitCost.String(), it.Quantity.String(), it.MonthFrom, it.MonthTo); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ReplaceForecastRows replaces the explicit forecast rows for a baseline.
func (s *Store) ReplaceForecastRows(ctx context.Context, projectID, baselineID string, rows []forecast.Cell) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM forecast_rows WHERE project_id = ? AND baseline_id = ?`, projectID, baselineID); err != nil {
		return err
	}
	for _, c := range rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO forecast_rows
			 (project_id, baseline_id, canonical_id, month, description, planned, forecast, actual)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			projectID, baselineID, string(c.CanonicalRubroID), int(c.Month), c.Description,
			c.Planned.String(), c.Forecast.String(), c.Actual.String()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Reset clears every table. Development/demo use only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM estimates;
		DELETE FROM baselines;
		DELETE FROM allocations;
		DELETE FROM invoices;
		DELETE FROM line_items;
		DELETE FROM forecast_rows;
	`)
	return err
}

// =============================================================================
// READS (forecast.Sources)
// =============================================================================

// FetchBaseline returns the baseline with its estimate lines, or nil when
// it does not exist.
func (s *Store) FetchBaseline(ctx context.Context, projectID, baselineID string) (*forecast.Baseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM baselines WHERE project_id = ? AND id = ?`, projectID, baselineID).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	b := &forecast.Baseline{ID: baselineID, ProjectID: projectID}

	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, rubro_ref, description, amount
		 FROM estimates WHERE project_id = ? AND baseline_id = ?
		 ORDER BY rowid`, projectID, baselineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var kind, ref, description, amount string
		if err := rows.Scan(&kind, &ref, &description, &amount); err != nil {
			return nil, err
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("estimate amount %q: %w", amount, err)
		}
		est := forecast.Estimate{RubroRef: ref, Description: description, Amount: value}
		if kind == "labor" {
			b.LaborEstimates = append(b.LaborEstimates, est)
		} else {
			b.NonLaborEstimates = append(b.NonLaborEstimates, est)
		}
	}
	return b, rows.Err()
}

// FetchAllocations returns the allocation records for a baseline.
func (s *Store) FetchAllocations(ctx context.Context, projectID, baselineID string) ([]forecast.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT rubro_ref, month_raw, amount
		 FROM allocations WHERE project_id = ? AND baseline_id = ?
		 ORDER BY rowid`, projectID, baselineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []forecast.Allocation
	for rows.Next() {
		var ref, month, amount string
		if err := rows.Scan(&ref, &month, &amount); err != nil {
			return nil, err
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("allocation amount %q: %w", amount, err)
		}
		out = append(out, forecast.Allocation{
			ProjectID:  projectID,
			BaselineID: baselineID,
			RubroRef:   ref,
			Month:      month,
			Amount:     value,
		})
	}
	return out, rows.Err()
}

// FetchInvoices returns all invoice records for a project.
func (s *Store) FetchInvoices(ctx context.Context, projectID string) ([]forecast.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, rubro_ref, description, month_raw, amount, status
		 FROM invoices WHERE project_id = ?
		 ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []forecast.Invoice
	for rows.Next() {
		var id, ref, description, month, amount, status string
		if err := rows.Scan(&id, &ref, &description, &month, &amount, &status); err != nil {
			return nil, err
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("invoice amount %q: %w", amount, err)
		}
		out = append(out, forecast.Invoice{
			ID:          id,
			ProjectID:   projectID,
			RubroRef:    ref,
			Description: description,
			Month:       month,
			Amount:      value,
			Status:      forecast.InvoiceStatus(status),
		})
	}
	return out, rows.Err()
}

// FetchLineItems returns the catalog cost lines for a project.
func (s *Store) FetchLineItems(ctx context.Context, projectID string) ([]forecast.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, rubro_ref, canonical_id, description, unit_cost, quantity, month_from, month_to
		 FROM line_items WHERE project_id = ?
		 ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []forecast.LineItem
	for rows.Next() {
		var id, ref, canonicalID, description, unitCost, quantity, from, to string
		if err := rows.Scan(&id, &ref, &canonicalID, &description, &unitCost, &quantity, &from, &to); err != nil {
			return nil, err
		}
		cost, err := decimal.NewFromString(unitCost)
		if err != nil {
			return nil, fmt.Errorf("line item unit cost %q: %w", unitCost, err)
		}
		qty, err := decimal.NewFromString(quantity)
		if err != nil {
			return nil, fmt.Errorf("line item quantity %q: %w", quantity, err)
		}
		out = append(out, forecast.LineItem{
			ID:          id,
			ProjectID:   projectID,
			RubroRef:    ref,
			CanonicalID: taxonomy.CanonicalID(canonicalID),
			Description: description,
			UnitCost:    cost,
			Quantity:    qty,
			MonthFrom:   from,
			MonthTo:     to,
		})
	}
	return out, rows.Err()
}

// FetchForecastRows implements forecast.ForecastRowSource.
func (s *Store) FetchForecastRows(ctx context.Context, projectID, baselineID string) ([]forecast.Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT canonical_id, month, description, planned, forecast, actual
		 FROM forecast_rows WHERE project_id = ? AND baseline_id = ?
		 ORDER BY canonical_id, month`, projectID, baselineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []forecast.Cell
	for rows.Next() {
		var canonicalID, description, planned, fc, actual string
		var month int
		if err := rows.Scan(&canonicalID, &month, &description, &planned, &fc, &actual); err != nil {
			return nil, err
		}
		cell := forecast.Cell{
			ProjectID:        projectID,
			CanonicalRubroID: taxonomy.CanonicalID(canonicalID),
			Month:            forecast.MonthIndex(month),
			Description:      description,
		}
		if cell.Planned, err = decimal.NewFromString(planned); err != nil {
			return nil, fmt.Errorf("forecast row planned %q: %w", planned, err)
		}
		if cell.Forecast, err = decimal.NewFromString(fc); err != nil {
			return nil, fmt.Errorf("forecast row forecast %q: %w", fc, err)
		}
		if cell.Actual, err = decimal.NewFromString(actual); err != nil {
			return nil, fmt.Errorf("forecast row actual %q: %w", actual, err)
		}
		out = append(out, cell)
	}
	return out, rows.Err()
}
