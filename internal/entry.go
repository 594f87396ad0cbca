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

	"github.com/starford/jsondb/internal/api"
	"github.com/starford/jsondb/internal/catalog"
	"github.com/starford/jsondb/internal/mcpserver"
	"github.com/starford/jsondb/internal/recordservice"
	"github.com/starford/jsondb/internal/sse"
	"github.com/starford/jsondb/internal/storage"
	"github.com/starford/jsondb/pkg/jsondb"
)

// Stack is an opened record store with its catalog and record service.
type Stack struct {
	Config  *Config
	Logger  *slog.Logger
	Files   *storage.FS
	Catalog *catalog.DB
	Service *recordservice.Service
}

// Close releases the catalog database.
func (s *Stack) Close() error {
	return s.Catalog.Close()
}

// Open builds the store, the catalog and the record service described by the
// configuration. Logs go to stderr unless WithLogOutput says otherwise.
func Open(opts ...Option) (*Stack, error) {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return nil, err
	}
	return app.open(NewLogger(&app.config.App, app.logOutput))
}

func newApplication(opts []Option, defaultOut *os.File) (*application, error) {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logOutput == nil {
		app.logOutput = defaultOut
	}
	return app, nil
}

func (a *application) open(logger *slog.Logger, svcOpts ...recordservice.Option) (*Stack, error) {
	cfg := a.config

	// Initialize storage. The data directory is created on first access.
	files, err := storage.NewFS(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	store, err := jsondb.New(files, append(cfg.Store.Options(), jsondb.WithLogger(logger))...)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	// Initialize SQLite catalog.
	if err := os.MkdirAll(filepath.Dir(cfg.Catalog.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}
	db, err := catalog.Open(cfg.Catalog.Path, catalog.WithKindFunc(recordservice.KindFunc(store)))
	if err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}

	// Run initial sync.
	if err := catalog.Sync(db, files, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	svcOpts = append([]recordservice.Option{
		recordservice.WithCatalog(db),
		recordservice.WithLogger(logger),
	}, svcOpts...)

	return &Stack{
		Config:  cfg,
		Logger:  logger,
		Files:   files,
		Catalog: db,
		Service: recordservice.NewService(store, files, svcOpts...),
	}, nil
}

// Run starts the HTTP server and the catalog watcher with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}

	cfg := app.config

	logger := NewLogger(&cfg.App, app.logOutput)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_path", cfg.Store.Path),
		slog.String("catalog_path", cfg.Catalog.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	stack, err := app.open(logger, recordservice.WithChangeHook(broker.PublishCollectionEvent))
	if err != nil {
		return err
	}
	defer stack.Close()

	apiRouter := api.NewRouter(stack.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if err := stack.Catalog.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"catalog unavailable"}`))
			return
		}
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

	// Start file watcher with SSE callback.
	g.Go(func() error {
		if err := catalog.Watch(gCtx, stack.Catalog, stack.Files, logger, broker.PublishCollectionEvent); err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...", slog.Int("sse_clients", broker.ClientCount()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown stops the remaining group members once the server is down.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr so they do
// not interleave with the protocol stream.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}
	logger := NewLogger(&app.config.App, app.logOutput)

	stack, err := app.open(logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	logger.Info("MCP server starting", slog.String("store_path", app.config.Store.Path))
	return mcpserver.New(stack.Service).ServeStdio()
}
