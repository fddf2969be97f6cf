// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/tiwaz/internal/api"
	"github.com/starford/tiwaz/internal/audit"
	"github.com/starford/tiwaz/internal/ethics"
	"github.com/starford/tiwaz/internal/gate"
	"github.com/starford/tiwaz/internal/models"
	"github.com/starford/tiwaz/internal/practice"
	"github.com/starford/tiwaz/internal/provider"
	"github.com/starford/tiwaz/internal/recordstore"
	"github.com/starford/tiwaz/internal/sources"
	"github.com/starford/tiwaz/internal/sse"
	"github.com/starford/tiwaz/internal/storage"
	"github.com/starford/tiwaz/internal/training"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("snapshot_path", cfg.Data.SnapshotPath),
		slog.String("audit_path", cfg.Data.AuditPath),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure data directories exist.
	for _, dir := range []string{filepath.Dir(cfg.Data.SnapshotPath), filepath.Dir(cfg.Data.AuditPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	// Audit trail: SQLite store plus the SSE broker, every decision
	// reaches both.
	auditStore, err := audit.Open(cfg.Data.AuditPath)
	if err != nil {
		return fmt.Errorf("init audit store: %w", err)
	}
	defer auditStore.Close()

	broker := sse.NewBroker()
	defer broker.Close()

	svc, manager, err := buildCore(cfg, logger, audit.Fanout{auditStore, broker}, auditStore)
	if err != nil {
		return err
	}

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the snapshot file for external edits.
	if cfg.Data.Watch {
		g.Go(func() error {
			if err := storage.Watch(gCtx, manager, logger, nil); err != nil {
				// The server runs fine without hot reload.
				logger.Warn("snapshot watcher unavailable", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Persist whatever the last mutation left behind.
		if err := manager.Save(); err != nil {
			logger.Error("final snapshot failed", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// buildCore assembles the state every surface shares: record store,
// provider registry, loaded snapshot manager, rule engine, gate, and the
// service composing them. Audit events flow to sink; auditStore backs
// the query endpoints.
func buildCore(cfg *Config, logger *slog.Logger, sink audit.Sink, auditStore *audit.Store) (*practice.Service, *storage.Manager, error) {
	store := recordstore.New(recordstore.DefaultValidators())
	registry := provider.NewRegistry()
	profile := cfg.Profile.Model()

	manager := storage.NewManager(cfg.Data.SnapshotPath, store, registry,
		storage.WithLogger(logger),
		storage.WithAuditSink(sink),
		storage.WithProfiles([]models.Profile{profile}),
	)
	if err := manager.LoadIfExists(); err != nil {
		return nil, nil, fmt.Errorf("load snapshot: %w", err)
	}

	// Configured providers seed an empty registry only; a restored
	// snapshot keeps its own provider set.
	if len(registry.List()) == 0 {
		if err := seedProviders(registry, cfg.Providers); err != nil {
			return nil, nil, err
		}
	}

	engine := ethics.NewDefaultEngine(cfg.Ethics.SensitivePatterns)

	svc := practice.New(practice.Deps{
		Store:    store,
		Registry: registry,
		Engine:   engine,
		Gate:     gate.New(engine, sink, logger, cfg.Ethics.Confirmation),
		Router:   provider.NewRouter(provider.WithLogger(logger)),
		Manager:  manager,
		Trainer:  training.New(store),
		Caselaw:  sources.NewClient(sources.WithLogger(logger)),
		Audit:    auditStore,
		Profile:  profile,
		Logger:   logger,
	})
	return svc, manager, nil
}

// seedProviders registers the configured provider set. Registry rules
// apply: the first entry becomes the default unless a seed asks for it.
func seedProviders(registry *provider.Registry, seeds []ProviderSeed) error {
	for _, seed := range seeds {
		stored, err := registry.Add(seed.Config())
		if err != nil {
			return fmt.Errorf("seed provider %q: %w", seed.Name, err)
		}
		if seed.Default {
			if err := registry.SetDefault(stored.ID); err != nil {
				return fmt.Errorf("seed provider %q: %w", seed.Name, err)
			}
		}
	}
	return nil
}
