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

	"github.com/MoAftaab/crm-xeno/backend/app"
	"github.com/MoAftaab/crm-xeno/backend/config"
	"github.com/MoAftaab/crm-xeno/backend/internal/observability"
	"github.com/MoAftaab/crm-xeno/backend/routes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "crm-api: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.New(ctx)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return err
	}

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", zap.Error(err))
		_ = logger.Sync()
		return err
	}

	srv := newServer(cfg.Server, routes.SetupRoutes(deps))
	serveErr := serve(ctx, srv, cfg.Server.ShutdownTimeout, logger)

	if err := deps.Close(context.Background()); err != nil {
		logger.Error("failed to close dependencies", zap.Error(err))
	}
	return serveErr
}

func newServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Address(),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// serve runs srv until ctx is cancelled, then drains in-flight requests
// for at most shutdownTimeout
func serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}
