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

	"github.com/okian/tenure/internal/adapters/http/api"
	"github.com/okian/tenure/internal/adapters/http/swagger"
	"github.com/okian/tenure/internal/adapters/repository"
	app "github.com/okian/tenure/internal/app"
	"github.com/okian/tenure/internal/config"
	"github.com/okian/tenure/internal/domain/fit"
	"github.com/okian/tenure/pkg/logger"
	"github.com/okian/tenure/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 60 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(logger.Format(cfg.LogFormat)), logger.WithLevel(cfg.LogLevel)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server failed", logger.Error(err))
		os.Exit(1)
	}
}

// run serves the analysis API until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "failed to close repository", logger.Error(err))
		}
	}()

	svc := newService(cfg, store, log)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	go metrics.RunSystemCollector(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(cfg, svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			_ = svc.Stop(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	opts := []repository.Option{repository.WithLogger(log)}
	switch cfg.DBDriver {
	case config.DriverPostgres:
		opts = append(opts, repository.WithPostgres(cfg.PostgresDSN))
	default:
		opts = append(opts, repository.WithSQLite(cfg.SQLitePath))
	}
	store, err := repository.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	return store, nil
}

func newService(cfg *config.Config, store repository.Store, log logger.Logger) *app.Service {
	var fitter fit.Fitter
	if cfg.CoefficientsPath != "" {
		fitter = fit.NewFileFitter(cfg.CoefficientsPath)
	}
	pipeline := app.NewPipeline(fitter,
		app.WithStrataWorkers(cfg.StrataWorkers),
		app.WithConcordanceCheck(cfg.ConcordanceWorkers),
		app.WithPipelineLogger(log.Named("pipeline")),
	)
	return app.New(store, pipeline,
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithMaxObservations(cfg.MaxObservations),
	)
}

func newHandler(cfg *config.Config, svc *app.Service, log logger.Logger) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(mux)
	api.NewServer(svc,
		api.WithSchema(cfg.Schema(), cfg.StrataCol),
		api.WithLogger(log),
	).Register(mux)
	return mux
}
