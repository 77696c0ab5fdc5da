package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iforge-uos/print-queue-api/internal/help"
	"github.com/iforge-uos/print-queue-api/internal/httpserver"
	"github.com/iforge-uos/print-queue-api/internal/platform/config"
	"github.com/iforge-uos/print-queue-api/internal/platform/observability"
	"github.com/iforge-uos/print-queue-api/internal/platform/secrets"
	"github.com/iforge-uos/print-queue-api/internal/platform/storage"
	"github.com/iforge-uos/print-queue-api/internal/templates"
	"github.com/iforge-uos/print-queue-api/internal/viewer"
)

// loadConfig reads the environment, resolving secret references through Secret
// Manager when a project is configured and the local fallback file otherwise.
func loadConfig(ctx context.Context, logger *zap.Logger, envFile string) (config.Config, *secrets.Fetcher, error) {
	envValues, err := config.EnvironmentValues(config.WithEnvFile(envFile))
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("read environment: %w", err)
	}

	fallback := strings.TrimSpace(envValues["VIEWER_SECRETS_FALLBACK_FILE"])
	if fallback == "" {
		fallback = ".secrets.local"
	}
	fetcher, err := secrets.NewFetcher(ctx,
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithDefaultProject(envValues["VIEWER_SECRETS_PROJECT_ID"]),
		secrets.WithFallbackFile(fallback),
	)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init secret fetcher: %w", err)
	}

	cfg, err := config.Load(ctx, config.WithEnvFile(envFile), config.WithSecretResolver(fetcher))
	if err != nil {
		_ = fetcher.Close()
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			return config.Config{}, nil, fmt.Errorf("invalid configuration %v: %w", invalid.Fields(), err)
		}
		return config.Config{}, nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, fetcher, nil
}

// serverConfig assembles the page server dependencies from cfg.
func serverConfig(cfg config.Config, logger *zap.Logger, reporter observability.Reporter) (httpserver.Config, error) {
	presets, err := viewer.LoadPresetsFile(cfg.Viewer.TuningFile)
	if err != nil {
		return httpserver.Config{}, err
	}

	notes, err := help.Load()
	if err != nil {
		return httpserver.Config{}, err
	}

	var rendererOpts []templates.Option
	if cfg.App.DevMode {
		rendererOpts = append(rendererOpts, templates.WithDevDir(cfg.App.TemplatesDir))
	}
	renderer, err := templates.New(rendererOpts...)
	if err != nil {
		return httpserver.Config{}, err
	}

	locator, err := newLocator(cfg.Storage)
	if err != nil {
		return httpserver.Config{}, err
	}

	metrics, err := observability.NewPageMetrics(nil)
	if err != nil {
		return httpserver.Config{}, err
	}

	return httpserver.Config{
		Address:        cfg.Server.Address(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		RequestTimeout: cfg.Server.RequestTimeout,
		TraceProjectID: cfg.Telemetry.TraceProjectID,
		Logger:         logger,
		Reporter:       reporter,
		Metrics:        metrics,
		Renderer:       renderer,
		Presets:        presets,
		Notes:          notes,
		Locator:        locator,
		Modules: httpserver.WidgetModules{
			React:    cfg.Viewer.ReactModule,
			ReactDOM: cfg.Viewer.ReactDOMModule,
			STL:      cfg.Viewer.STLWidgetModule,
			GCode:    cfg.Viewer.GCodeWidgetModule,
		},
	}, nil
}

// newLocator signs gs:// objects when a signer key is configured and links
// them publicly otherwise.
func newLocator(cfg config.StorageConfig) (*storage.Locator, error) {
	opts := []storage.LocatorOption{
		storage.WithPublicBaseURL(cfg.PublicBaseURL),
		storage.WithAllowedBuckets(cfg.AllowedBuckets...),
	}
	if key := strings.TrimSpace(cfg.SignerKey); key != "" {
		signer, err := storage.NewServiceAccountSigner(key)
		if err != nil {
			return nil, fmt.Errorf("parse storage signer key: %w", err)
		}
		client, err := storage.NewClient(signer, storage.WithExpiry(cfg.URLExpiry))
		if err != nil {
			return nil, fmt.Errorf("init signed url client: %w", err)
		}
		opts = append(opts, storage.WithSignedURLs(client))
	}
	return storage.NewLocator(opts...), nil
}
