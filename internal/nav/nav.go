package nav

import (
	"strings"

	"github.com/iforge-uos/print-queue-api/internal/viewer"
)

// RenderedItem is a view model for templates.
type RenderedItem struct {
	Href   string
	Label  string
	Widget string
	Active bool
}

// Crumb is a breadcrumb entry. An empty Href renders as plain text.
type Crumb struct {
	Href   string
	Label  string
	Active bool
}

const sectionLabel = "Print preview"

// Build renders one item per viewer route with active state given the current path.
func Build(currentPath string) []RenderedItem {
	items := make([]RenderedItem, 0, len(viewer.Routes))
	for _, route := range viewer.Routes {
		items = append(items, RenderedItem{
			Href:   route.Path,
			Label:  route.Title,
			Widget: string(route.Widget),
			Active: isActive(route.Path, currentPath),
		})
	}
	return items
}

func isActive(itemPath, currentPath string) bool {
	currentPath = strings.TrimSuffix(currentPath, "/")
	return currentPath == itemPath || strings.HasPrefix(currentPath, itemPath+"/")
}

// Breadcrumbs returns the section crumb followed by the active viewer, if any.
func Breadcrumbs(currentPath string) []Crumb {
	crumbs := []Crumb{{Label: sectionLabel}}
	route, ok := viewer.Dispatch(currentPath)
	if !ok {
		crumbs[0].Active = true
		return crumbs
	}
	return append(crumbs, Crumb{Href: route.Path, Label: route.Title, Active: true})
}
