/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Finz Forecast Engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load the taxonomy (JSON document or built-in default)
  3. Initialize SQLite store
  4. Wire the materialization engine
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port      HTTP server port (default: 8080)
  -db        SQLite database path (default: finz.db)
             Use ":memory:" for an in-memory database
  -taxonomy  Path to a versioned taxonomy JSON document
             (default: built-in taxonomy)
  -base-year Base year for "YYYY-MM" month encodings (0 = literal month)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database and the built-in taxonomy
  ./server -db="./data/finz.db"

  # Run with a specific taxonomy version
  ./server -taxonomy="./taxonomy-2026-02.json"

  # Anchor calendar months to a project start year
  ./server -base-year=2026

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finzlab/forecast-engine/api"
	"github.com/finzlab/forecast-engine/forecast"
	"github.com/finzlab/forecast-engine/store/sqlite"
	"github.com/finzlab/forecast-engine/taxonomy"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "finz.db", "SQLite database path")
	taxonomyPath := flag.String("taxonomy", "", "Taxonomy JSON document path (empty = built-in)")
	baseYear := flag.Int("base-year", 0, "Base year for YYYY-MM month encodings (0 = literal month)")
	flag.Parse()

	// Load taxonomy
	var index *taxonomy.Index
	if *taxonomyPath != "" {
		loaded, err := taxonomy.LoadDocument(*taxonomyPath)
		if err != nil {
			log.Fatalf("Failed to load taxonomy document: %v", err)
		}
		index = loaded
	} else {
		index = taxonomy.DefaultIndex()
	}
	log.Printf("Loaded taxonomy version %s (%d entries)", index.Version(), len(index.Entries()))
	canon := taxonomy.NewCanonicalizer(index)

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire the engine
	engine := forecast.NewEngine(store, canon, forecast.MonthNormalizer{BaseYear: *baseYear})

	// Create router
	handler := api.NewHandler(store, engine, canon)
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
