package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/iforge-uos/print-queue-api/internal/help"
	custommw "github.com/iforge-uos/print-queue-api/internal/httpserver/middleware"
	"github.com/iforge-uos/print-queue-api/internal/platform/observability"
	"github.com/iforge-uos/print-queue-api/internal/platform/storage"
	"github.com/iforge-uos/print-queue-api/internal/templates"
	"github.com/iforge-uos/print-queue-api/internal/viewer"
	"github.com/iforge-uos/print-queue-api/public"
)

const staticMaxAge = time.Hour

// WidgetModules are the browser module URLs for React and each widget.
type WidgetModules struct {
	React    string
	ReactDOM string
	STL      string
	GCode    string
}

// Config holds runtime options for the viewer HTTP server.
type Config struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	TraceProjectID string
	Logger         *zap.Logger
	Reporter       observability.Reporter
	Metrics        *observability.PageMetrics
	Renderer       *templates.Renderer
	Presets        *viewer.Presets
	Notes          *help.Notes
	Locator        *storage.Locator
	Modules        WidgetModules
}

// New constructs the HTTP server with middleware stack and embedded assets.
func New(cfg Config) (*http.Server, error) {
	cfg = withDefaults(cfg)
	if cfg.Renderer == nil {
		renderer, err := templates.New()
		if err != nil {
			return nil, err
		}
		cfg.Renderer = renderer
	}

	staticContent, err := public.StaticFS()
	if err != nil {
		return nil, fmt.Errorf("httpserver: embed static: %w", err)
	}

	h := &handlers{
		renderer: cfg.Renderer,
		presets:  cfg.Presets,
		notes:    cfg.Notes,
		locator:  cfg.Locator,
		metrics:  cfg.Metrics,
		modules:  cfg.Modules,
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	// RealIP trusts X-Forwarded-For; deploy behind the load balancer only.
	router.Use(chimw.RealIP)
	router.Use(observability.TraceMiddleware(cfg.TraceProjectID))
	router.Use(observability.InjectLoggerMiddleware(cfg.Logger))
	router.Use(observability.RequestLoggerMiddleware())
	router.Use(observability.RecoveryMiddleware(cfg.Logger, cfg.Reporter))
	router.Use(chimw.Compress(5))
	router.Use(chimw.Timeout(cfg.RequestTimeout))

	router.Get("/healthz", healthz)
	router.With(custommw.PublicCache(staticMaxAge)).
		Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticContent))))

	router.Group(func(r chi.Router) {
		r.Use(custommw.NoStore())
		r.Use(custommw.HTMX())
		for _, route := range viewer.Routes {
			r.Get(route.Path, h.page(route))
			r.Get(route.Path+"/", h.page(route))
		}
		r.Get("/api/viewer/{kind}", h.api)
		r.NotFound(h.notFound)
	})

	return &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}, nil
}

func withDefaults(cfg Config) Config {
	if cfg.Address == "" {
		cfg.Address = ":8080"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Reporter == nil {
		cfg.Reporter = observability.NopReporter{}
	}
	if cfg.Presets == nil {
		cfg.Presets = viewer.DefaultPresets()
	}
	if cfg.Locator == nil {
		cfg.Locator = storage.NewLocator()
	}
	return cfg
}
