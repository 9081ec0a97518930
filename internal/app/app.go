package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/gmsas95/recovery-tracker/internal/api"
	"github.com/gmsas95/recovery-tracker/internal/catalog"
	"github.com/gmsas95/recovery-tracker/internal/config"
	"github.com/gmsas95/recovery-tracker/internal/metrics"
	"github.com/gmsas95/recovery-tracker/internal/recovery"
	"github.com/gmsas95/recovery-tracker/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Store   recovery.Store
	Catalog *catalog.Catalog
	Metrics *metrics.Metrics
	Tracker *recovery.Tracker
	Version string
}

// NewLogger builds the zap logger described by cfg
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		zc.Level = level
	}
	return zc.Build()
}

// New opens the store and catalog and assembles the tracker
func New(cfg *config.Config, logger *zap.Logger, version string) (*App, error) {
	st, err := store.Open(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return NewWithStore(cfg, st, logger, version)
}

// NewWithStore assembles the app around an already opened store
func NewWithStore(cfg *config.Config, st recovery.Store, logger *zap.Logger, version string) (*App, error) {
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	logger.Info("Program catalog loaded", zap.String("source", cat.Source()))

	m := metrics.New()
	tracker := recovery.NewTracker(st, cat, logger,
		recovery.WithLocation(cfg.Location()),
		recovery.WithRecorder(m),
		recovery.WithWarmup(cfg.Recovery.Warmup),
	)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Store:   st,
		Catalog: cat,
		Metrics: m,
		Tracker: tracker,
		Version: version,
	}, nil
}

// Close releases the store
func (app *App) Close() error {
	return app.Store.Close()
}

// RunServer serves the API until SIGINT or SIGTERM
func (app *App) RunServer() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", app.Config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.Config.Addr(), err)
	}
	return app.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln, plus the catalog watcher when enabled,
// until ctx is cancelled or one of them fails.
func (app *App) Serve(ctx context.Context, ln net.Listener) error {
	server := api.New(app.Config, app.Tracker, app.Catalog, app.Metrics, app.Logger).WithVersion(app.Version)

	var watcher *catalog.Watcher
	if app.Config.Catalog.Watch && app.Config.Catalog.Path != "" {
		w, err := catalog.NewWatcher(app.Catalog, app.Config.Catalog.Path, app.Logger, app.Metrics.RecordCatalogReload)
		if err != nil {
			ln.Close()
			return err
		}
		watcher = w
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.Logger.Info("Server started",
			zap.String("address", ln.Addr().String()),
			zap.String("version", app.Version),
		)
		if err := server.Listen(ln); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		app.Logger.Info("Shutting down...")
		if err := server.Shutdown(); err != nil {
			app.Logger.Error("Server shutdown error", zap.Error(err))
			return err
		}
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
