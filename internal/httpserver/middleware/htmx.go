package middleware

import (
	"context"
	"net/http"
	"strings"
)

type htmxKey struct{}

// HTMXInfo is what the HX-* request headers say about the caller.
type HTMXInfo struct {
	Request        bool
	Boosted        bool
	HistoryRestore bool
	// Target is the id of the element htmx swaps the response into.
	Target string
}

// WantsFragment reports whether only the viewer section should be rendered.
// Boosted navigations and history restores replace the body and need the layout.
func (i HTMXInfo) WantsFragment() bool {
	return i.Request && !i.Boosted && !i.HistoryRestore
}

// HTMX records HTMXInfo on the request context.
func HTMX() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := HTMXInfo{
				Request:        headerTrue(r, "HX-Request"),
				Boosted:        headerTrue(r, "HX-Boosted"),
				HistoryRestore: headerTrue(r, "HX-History-Restore-Request"),
				Target:         strings.TrimSpace(r.Header.Get("HX-Target")),
			}
			// Full pages and fragments share a URL.
			w.Header().Add("Vary", "HX-Request")
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), htmxKey{}, info)))
		})
	}
}

// HTMXInfoFromContext returns the zero HTMXInfo outside the middleware.
func HTMXInfoFromContext(ctx context.Context) HTMXInfo {
	info, _ := ctx.Value(htmxKey{}).(HTMXInfo)
	return info
}

func headerTrue(r *http.Request, name string) bool {
	return strings.EqualFold(strings.TrimSpace(r.Header.Get(name)), "true")
}
