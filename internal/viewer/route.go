package viewer

import (
	"strings"

	"github.com/iforge-uos/print-queue-api/internal/query"
)

// Route binds a page path to the widget it shows.
type Route struct {
	Widget   Widget
	Path     string
	Title    string
	Template string
	// Param is the query parameter carrying the resource locator.
	Param string
}

// Routes is the full page table; each entry is a terminal state for a navigation.
var Routes = []Route{
	{Widget: WidgetSTL, Path: "/view_stl", Title: "STL Viewer", Template: "view_stl", Param: ParamSTLURL},
	{Widget: WidgetGCode, Path: "/view_gcode", Title: "GCode Viewer", Template: "view_gcode", Param: ParamGCodeURL},
}

// Dispatch selects the route for a request path. A single trailing slash is ignored.
func Dispatch(path string) (Route, bool) {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	for _, r := range Routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// ForWidget returns the route that renders w.
func ForWidget(w Widget) (Route, bool) {
	for _, r := range Routes {
		if r.Widget == Widget(strings.ToLower(string(w))) {
			return r, true
		}
	}
	return Route{}, false
}

// Build derives the configuration for the route's widget.
func (r Route) Build(q query.PageQuery, presets *Presets) (Config, []Problem) {
	switch r.Widget {
	case WidgetGCode:
		return BuildGCode(q, presets)
	default:
		return BuildSTL(q)
	}
}
