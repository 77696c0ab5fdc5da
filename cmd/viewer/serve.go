package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iforge-uos/print-queue-api/internal/httpserver"
	"github.com/iforge-uos/print-queue-api/internal/platform/observability"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the viewer pages over HTTP",
		Long: `Serve the STL and G-code viewer pages.

Configuration comes from VIEWER_* environment variables, with local
overrides read from the --env-file dotenv file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return runServe(cmd.Context(), envFile)
		},
	}
}

func runServe(ctx context.Context, envFile string) error {
	bootLogger, err := observability.NewLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	cfg, fetcher, err := loadConfig(ctx, bootLogger, envFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			bootLogger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	baseLogger, err := observability.NewLogger(cfg.Telemetry.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("viewer").With(zap.String("env", cfg.App.Environment))

	reporter, err := observability.NewSentryReporter(cfg.Telemetry.SentryDSN, cfg.App.Environment, version)
	if err != nil {
		logger.Warn("error reporting disabled", zap.Error(err))
		reporter = observability.NopReporter{}
	}
	defer reporter.Flush(cfg.Server.ShutdownTimeout)

	serverCfg, err := serverConfig(cfg, logger, reporter)
	if err != nil {
		return err
	}
	srv, err := httpserver.New(serverCfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverLogger := logger.Named("http").With(zap.String("addr", srv.Addr))
	errCh := make(chan error, 1)
	go func() {
		serverLogger.Info("viewer listening", zap.Bool("dev_mode", cfg.App.DevMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	serverLogger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		serverLogger.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
