/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the supply-chain autopilot server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (defaults, YAML file, environment, flags)
  2. Initialize logger and SQLite store
  3. Build the autopilot store and restore the last snapshot
  4. Create live runner, API handler and router
  5. Run HTTP server, snapshot writer and signal watcher in one errgroup

COMMAND-LINE FLAGS:
  -config         YAML config file
  -port           HTTP server port (default: 8080)
  -db             SQLite database path (default: autopilot.db)
                  Use ":memory:" for in-memory database
  -log-mode       dev or prod
  -seed           World seed when no snapshot exists (default: 42)
  -live-interval  Live mode tick interval (default: 1200ms)
  -cors-origins   Comma-separated allowed origins

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop live mode
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Write a final snapshot and close the database

EXAMPLES:
  ./server -db="./data/autopilot.db"
  AUTOPILOT_LOG_MODE=prod ./server -port=3000

SEE ALSO:
  - config/config.go: Configuration sources
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/warp/autopilot/api"
	"github.com/warp/autopilot/autopilot"
	"github.com/warp/autopilot/config"
	"github.com/warp/autopilot/logger"
	"github.com/warp/autopilot/store/sqlite"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()

	pol, err := cfg.StartPolicy()
	if err != nil {
		return err
	}

	store := autopilot.NewStore(cfg.Seed,
		autopilot.WithSnapshotStore(db),
		autopilot.WithAuditLog(db),
		autopilot.WithLogger(log),
		autopilot.WithPolicy(pol),
	)

	// Restore the last session, if any
	switch _, err := store.Load(ctx); {
	case err == nil:
		log.Info("snapshot restored", "day", store.State().Today, "seed", store.State().Seed)
	case errors.Is(err, autopilot.ErrSnapshotNotFound):
		log.Info("no snapshot found, starting fresh", "seed", cfg.Seed)
	default:
		log.Warn("snapshot ignored", "error", err)
	}
	wasRunning := store.Running()

	// Coalesce change notifications into at most one pending write
	dirty := make(chan struct{}, 1)
	unsubscribe := store.Subscribe(func(autopilot.Change) {
		select {
		case dirty <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	live := api.NewLiveRunner(store, cfg.LiveInterval, log)
	handler := api.NewHandler(store, live, log)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	if wasRunning {
		live.Start()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	var resumeLive bool

	g.Go(func() error {
		log.Info("server starting", "addr", fmt.Sprintf("http://localhost:%d", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-dirty:
				if err := store.Persist(gctx); err != nil {
					log.Warn("snapshot write failed", "error", err)
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		resumeLive = live.Running()
		live.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()

	// Live.Stop cleared the running flag; keep it for the next start.
	if resumeLive {
		store.SetRunning(true)
	}
	if perr := store.Persist(context.Background()); perr != nil {
		log.Warn("final snapshot write failed", "error", perr)
	}
	log.Info("server stopped")
	return err
}
