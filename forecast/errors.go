/*
errors.go - Centralized error types for the forecast engine

PURPOSE:
  All engine error types in one place. The engine degrades rather than
  fails: unknown taxonomy references land in the UNKNOWN bucket,
  unparseable months are dropped and counted, and individual fetch
  failures substitute empty collections. Hard errors exist only at the
  edges listed here.

ERROR CATEGORIES:
  1. Source errors - All fetches failed, nothing to materialize from
  2. Cancellation - Context cancelled before aggregation completed

USAGE:
  if errors.Is(err, forecast.ErrAllSourcesFailed) {
      // storage is down; nothing partial to show
  }
*/
package forecast

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAllSourcesFailed is returned when every source fetch failed.
	// A single failing source is NOT an error: it degrades to a partial
	// result. Only total failure surfaces to the caller.
	ErrAllSourcesFailed = errors.New("all source fetches failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// SourceError records the failure of one named source fetch.
type SourceError struct {
	Source string // "baseline", "allocations", "invoices", "line_items", "forecast_rows"
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// AllSourcesError aggregates the individual fetch failures behind
// ErrAllSourcesFailed so operators can see every cause at once.
type AllSourcesError struct {
	ProjectID string
	Failures  []*SourceError
}

func (e *AllSourcesError) Error() string {
	return fmt.Sprintf("project %s: all %d source fetches failed", e.ProjectID, len(e.Failures))
}

func (e *AllSourcesError) Unwrap() error { return ErrAllSourcesFailed }
