/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the habit engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (YAML file + env overrides)
  2. Parse command-line flags (flags win over config)
  3. Initialize SQLite store
  4. Run resume-time backfill (if configured)
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default from config, 8080)
  -db      SQLite database path (default from config, habits.db)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/habits.db"

  # Run with in-memory database
  ./server -db=":memory:"

ENVIRONMENT:
  HABIT_CONFIG_PATH        Path to YAML config file
  HABIT_SERVER_HOST        Bind host
  HABIT_SERVER_PORT        Bind port
  HABIT_DB_PATH            SQLite path
  HABIT_BACKFILL_MAX_DAYS  Backfill bound in days

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

	"github.com/habitloop/habit-engine/api"
	"github.com/habitloop/habit-engine/config"
	"github.com/habitloop/habit-engine/ledger"
	"github.com/habitloop/habit-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags override config
	port := flag.Int("port", cfg.Server.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DB.Path, "SQLite database path")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	svc := ledger.NewService(store)

	// A day the app never ran counts as failure. Catch up before serving.
	if cfg.Backfill.RunOnStart {
		inserted, err := svc.Backfill(context.Background(), cfg.Backfill.MaxDaysBack)
		if err != nil {
			log.Fatalf("Startup backfill failed: %v", err)
		}
		if inserted > 0 {
			log.Printf("Backfilled %d missed occurrences", inserted)
		}
	}

	handler := api.NewHandler(svc, cfg.Backfill.MaxDaysBack)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
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
