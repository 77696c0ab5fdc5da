package observability

import (
	"strings"
	"unicode"
)

const (
	routeLimit  = 180
	methodLimit = 10
	paramLimit  = 512
)

// sanitizeString drops control characters and truncates to limit runes so
// request data cannot forge log lines.
func sanitizeString(value string, limit int) string {
	cleaned := []rune(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value))
	if len(cleaned) > limit {
		cleaned = cleaned[:limit]
	}
	return string(cleaned)
}

// SanitizeRoute cleans a route pattern; empty means the root.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, routeLimit)
}

// SanitizeMethod cleans an HTTP method.
func SanitizeMethod(method string) string {
	return sanitizeString(method, methodLimit)
}

// SanitizeParam bounds user-supplied query values before they reach the logs.
func SanitizeParam(value string) string {
	return sanitizeString(value, paramLimit)
}
