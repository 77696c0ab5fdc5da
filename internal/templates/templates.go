// Package templates parses the page layouts and exposes them as templ components.
package templates

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"strings"

	"github.com/a-h/templ"

	"github.com/iforge-uos/print-queue-api/internal/help"
	"github.com/iforge-uos/print-queue-api/internal/nav"
	"github.com/iforge-uos/print-queue-api/internal/viewer"
)

//go:embed pages/*.tmpl
var embedded embed.FS

// Pages rendered on top of the shared layout.
const (
	PageSTL      = "view_stl"
	PageGCode    = "view_gcode"
	PageNotFound = "not_found"
)

var pageNames = []string{PageSTL, PageGCode, PageNotFound}

// Modules are the browser module URLs the viewer script imports.
type Modules struct {
	React    string
	ReactDOM string
	Widget   string
}

// PresetOption is one entry of the G-code quality selector.
type PresetOption struct {
	Name     string
	Selected bool
}

// PageData is the view model shared by every page.
type PageData struct {
	Title     string
	Heading   string
	Path      string
	Canonical string
	RequestID string
	Nav       []nav.RenderedItem
	Crumbs    []nav.Crumb

	Widget    string
	Param     string
	Locator   string
	ClassName string
	Config    viewer.Config
	Empty     bool
	Problems  []viewer.Problem
	Modules   Modules
	Presets   []PresetOption
	Note      *help.Note
}

// Renderer hands out page components. In dev mode every call reparses from disk.
type Renderer struct {
	dir   string
	dev   bool
	pages map[string]*template.Template
}

// Option customises a Renderer.
type Option func(*Renderer)

// WithDevDir reparses templates from dir on every render.
func WithDevDir(dir string) Option {
	return func(r *Renderer) {
		if strings.TrimSpace(dir) != "" {
			r.dir = dir
			r.dev = true
		}
	}
}

// New parses the embedded templates once. Dev renderers still parse eagerly so
// broken templates fail at startup.
func New(opts ...Option) (*Renderer, error) {
	r := &Renderer{}
	for _, opt := range opts {
		opt(r)
	}
	pages, err := parse(r.source())
	if err != nil {
		return nil, err
	}
	r.pages = pages
	return r, nil
}

// Page returns the full document for page.
func (r *Renderer) Page(page string, data PageData) (templ.Component, error) {
	return r.component(page, "base", data)
}

// Fragment returns only the swappable part of page, for htmx requests.
func (r *Renderer) Fragment(page string, data PageData) (templ.Component, error) {
	name := "viewer"
	if page == PageNotFound {
		name = "content"
	}
	return r.component(page, name, data)
}

func (r *Renderer) component(page, name string, data PageData) (templ.Component, error) {
	pages := r.pages
	if r.dev {
		reparsed, err := parse(r.source())
		if err != nil {
			return nil, err
		}
		pages = reparsed
	}
	set, ok := pages[page]
	if !ok {
		return nil, fmt.Errorf("templates: unknown page %q", page)
	}
	t := set.Lookup(name)
	if t == nil {
		return nil, fmt.Errorf("templates: page %q has no %q template", page, name)
	}
	return templ.FromGoHTML(t, data), nil
}

func (r *Renderer) source() fs.FS {
	if r.dev {
		return os.DirFS(r.dir)
	}
	sub, err := fs.Sub(embedded, "pages")
	if err != nil {
		panic(err)
	}
	return sub
}

func parse(fsys fs.FS) (map[string]*template.Template, error) {
	layout, err := template.New("layout").ParseFS(fsys, "layout.tmpl", "partials.tmpl")
	if err != nil {
		return nil, fmt.Errorf("templates: parse layout: %w", err)
	}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("templates: clone layout: %w", err)
		}
		set, err := clone.ParseFS(fsys, name+".tmpl")
		if err != nil {
			return nil, fmt.Errorf("templates: parse %s: %w", name, err)
		}
		pages[name] = set
	}
	return pages, nil
}
