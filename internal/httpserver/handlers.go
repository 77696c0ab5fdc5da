package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/iforge-uos/print-queue-api/internal/help"
	custommw "github.com/iforge-uos/print-queue-api/internal/httpserver/middleware"
	"github.com/iforge-uos/print-queue-api/internal/nav"
	"github.com/iforge-uos/print-queue-api/internal/platform/httpx"
	"github.com/iforge-uos/print-queue-api/internal/platform/observability"
	"github.com/iforge-uos/print-queue-api/internal/platform/requestctx"
	"github.com/iforge-uos/print-queue-api/internal/platform/storage"
	"github.com/iforge-uos/print-queue-api/internal/query"
	"github.com/iforge-uos/print-queue-api/internal/templates"
	"github.com/iforge-uos/print-queue-api/internal/viewer"
)

type handlers struct {
	renderer *templates.Renderer
	presets  *viewer.Presets
	notes    *help.Notes
	locator  *storage.Locator
	metrics  *observability.PageMetrics
	modules  WidgetModules
}

// derivation is the outcome of turning one request into a widget configuration.
type derivation struct {
	Route    viewer.Route
	Query    query.PageQuery
	Config   viewer.Config
	Problems []viewer.Problem
}

// derive builds the config for route from q and swaps the locator for a browser URL.
// Nothing here fails the request: problems degrade the config to its empty state.
func (h *handlers) derive(ctx context.Context, route viewer.Route, q query.PageQuery) derivation {
	cfg, problems := route.Build(q, h.presets)
	if problems == nil {
		problems = []viewer.Problem{}
	}

	if !cfg.Empty() {
		res, err := h.locator.Resolve(ctx, cfg.ResourceURL())
		if err != nil {
			problems = append(problems, viewer.Problem{
				Code:  viewer.ProblemUnresolvableResource,
				Param: route.Param,
				Value: cfg.ResourceURL(),
			})
			cfg = cfg.WithResourceURL("")
			if !errors.Is(err, storage.ErrUnresolvable) {
				requestctx.Logger(ctx).Error("resource signing failed", zap.String("widget", string(route.Widget)), zap.Error(err))
			}
		} else {
			cfg = cfg.WithResourceURL(res.URL)
		}
	}

	logger := requestctx.Logger(ctx)
	if len(problems) > 0 {
		fields := []zap.Field{
			zap.String("widget", string(route.Widget)),
			zap.Strings("problems", viewer.Codes(problems)),
		}
		for _, p := range problems {
			switch {
			case p.Value == "":
			case p.Code == viewer.ProblemUnresolvableResource:
				// Locators may be private or signed URLs; the scheme is enough to triage.
				fields = append(fields, zap.String(p.Param+"_scheme", locatorScheme(p.Value)))
			default:
				fields = append(fields, zap.String(p.Param, observability.SanitizeParam(p.Value)))
			}
		}
		logger.Warn("viewer config degraded", fields...)
	}
	h.metrics.Rendered(ctx, string(route.Widget), cfg.Empty(), viewer.Codes(problems))

	return derivation{Route: route, Query: q, Config: cfg, Problems: problems}
}

func (h *handlers) page(route viewer.Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := query.Parse(r.URL.RawQuery)
		d := h.derive(ctx, route, q)

		data := h.baseData(r, route.Title)
		data.Canonical = canonicalURL(route.Path, q)
		data.Heading = route.Title
		if label := help.StripTags(q.Value(viewer.ParamName)); label != "" {
			data.Heading = label
		}
		data.Widget = string(route.Widget)
		data.Param = route.Param
		data.Config = d.Config
		data.Empty = d.Config.Empty()
		if !data.Empty {
			data.Locator = q.Value(route.Param)
		}
		data.Problems = d.Problems
		data.Modules = h.modulesFor(route.Widget)

		switch cfg := d.Config.(type) {
		case viewer.STLConfig:
			data.ClassName = cfg.ClassName
		case viewer.GCodeConfig:
			data.ClassName = cfg.ClassName
			for _, name := range h.presets.Names() {
				data.Presets = append(data.Presets, templates.PresetOption{Name: name, Selected: name == cfg.Preset})
			}
		}
		if note, ok := h.notes.Lookup(string(route.Widget)); ok {
			data.Note = &note
		}

		h.render(w, r, route.Template, http.StatusOK, data)
	}
}

type apiResponse struct {
	Widget   viewer.Widget    `json:"widget"`
	Path     string           `json:"path"`
	Empty    bool             `json:"empty"`
	Config   viewer.Config    `json:"config"`
	Problems []viewer.Problem `json:"problems"`
}

func (h *handlers) api(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind := chi.URLParam(r, "kind")
	route, ok := viewer.ForWidget(viewer.Widget(kind))
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unknown_viewer", "unknown viewer kind "+kind, http.StatusNotFound).
			WithDetails(map[string]any{"kinds": []viewer.Widget{viewer.WidgetSTL, viewer.WidgetGCode}}))
		return
	}

	d := h.derive(ctx, route, query.Parse(r.URL.RawQuery))
	httpx.WriteJSON(w, http.StatusOK, apiResponse{
		Widget:   route.Widget,
		Path:     route.Path,
		Empty:    d.Config.Empty(),
		Config:   d.Config,
		Problems: d.Problems,
	})
}

func (h *handlers) notFound(w http.ResponseWriter, r *http.Request) {
	data := h.baseData(r, "Not found")
	data.Heading = "Page not found"
	h.render(w, r, templates.PageNotFound, http.StatusNotFound, data)
}

// canonicalURL names the page the same way regardless of parameter order or
// trailing slash.
func canonicalURL(path string, q query.PageQuery) string {
	if q.Len() == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func locatorScheme(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "invalid"
	}
	if u.Scheme == "" {
		if u.Host != "" {
			return "scheme-relative"
		}
		return "none"
	}
	return observability.SanitizeParam(strings.ToLower(u.Scheme))
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *handlers) baseData(r *http.Request, title string) templates.PageData {
	return templates.PageData{
		Title:     title,
		Path:      r.URL.Path,
		RequestID: chimw.GetReqID(r.Context()),
		Nav:       nav.Build(r.URL.Path),
		Crumbs:    nav.Breadcrumbs(r.URL.Path),
	}
}

func (h *handlers) modulesFor(w viewer.Widget) templates.Modules {
	mods := templates.Modules{React: h.modules.React, ReactDOM: h.modules.ReactDOM}
	switch w {
	case viewer.WidgetGCode:
		mods.Widget = h.modules.GCode
	default:
		mods.Widget = h.modules.STL
	}
	return mods
}

func (h *handlers) render(w http.ResponseWriter, r *http.Request, page string, status int, data templates.PageData) {
	ctx := r.Context()
	var (
		component templ.Component
		err       error
	)
	if custommw.HTMXInfoFromContext(ctx).WantsFragment() {
		component, err = h.renderer.Fragment(page, data)
	} else {
		component, err = h.renderer.Page(page, data)
	}
	if err != nil {
		requestctx.Logger(ctx).Error("template lookup failed", zap.String("page", page), zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("render_failed", "page could not be rendered", http.StatusInternalServerError))
		return
	}
	templ.Handler(component, templ.WithStatus(status)).ServeHTTP(w, r)
}
