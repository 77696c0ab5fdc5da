package testutil

import (
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/iforge-uos/print-queue-api/internal/help"
	"github.com/iforge-uos/print-queue-api/internal/httpserver"
	"github.com/iforge-uos/print-queue-api/internal/platform/observability"
	"github.com/iforge-uos/print-queue-api/internal/platform/storage"
	"github.com/iforge-uos/print-queue-api/internal/viewer"
)

// ServerOption customises the HTTP server configuration for tests.
type ServerOption func(*httpserver.Config)

// WithLogger routes server logs to logger.
func WithLogger(logger *zap.Logger) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Logger = logger
	}
}

// WithLocator overrides how resource locators are resolved.
func WithLocator(locator *storage.Locator) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Locator = locator
	}
}

// WithPresets overrides the G-code tuning presets.
func WithPresets(presets *viewer.Presets) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Presets = presets
	}
}

// WithReporter overrides the panic reporter.
func WithReporter(reporter observability.Reporter) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Reporter = reporter
	}
}

// NewServer constructs an httptest server running the viewer HTTP stack with sensible defaults.
func NewServer(t testing.TB, opts ...ServerOption) *httptest.Server {
	t.Helper()

	notes, err := help.Load()
	if err != nil {
		t.Fatalf("load notes: %v", err)
	}

	cfg := httpserver.Config{
		Address: ":0",
		Logger:  zap.NewNop(),
		Presets: viewer.DefaultPresets(),
		Notes:   notes,
		Locator: storage.NewLocator(),
		Modules: httpserver.WidgetModules{
			React:    "https://esm.sh/react@18.3.1",
			ReactDOM: "https://esm.sh/react-dom@18.3.1/client",
			STL:      "https://esm.sh/react-stl-viewer@2.5.0",
			GCode:    "https://esm.sh/react-gcode-viewer@2.2.3",
		},
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	srv, err := httpserver.New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}
