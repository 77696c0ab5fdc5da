// Package viewer derives the configuration handed to the external STL and
// G-code rendering widgets from a page's query parameters.
package viewer

import (
	"fmt"
	"strings"
)

// Query parameter names understood by the viewer pages.
const (
	ParamSTLURL   = "stl_url"
	ParamGCodeURL = "gcode_url"
	ParamShadows  = "shadows"
	ParamPreset   = "preset"
	ParamName     = "name"
)

const defaultClassName = "viewer align-items-center row mx-auto"

// Widget identifies the external rendering component a Config targets.
type Widget string

const (
	WidgetSTL   Widget = "stl"
	WidgetGCode Widget = "gcode"
)

// Config is the read-only configuration handed to an external widget.
type Config interface {
	Widget() Widget
	// ResourceURL is the locator the widget fetches.
	ResourceURL() string
	// Empty reports whether the widget has nothing to load.
	Empty() bool
	// WithResourceURL returns a copy pointing at url.
	WithResourceURL(url string) Config
}

// ProblemCode classifies locally handled derivation issues.
type ProblemCode string

const (
	ProblemMissingRequiredParameter  ProblemCode = "missing_required_parameter"
	ProblemMalformedBooleanParameter ProblemCode = "malformed_boolean_parameter"
	ProblemUnresolvableResource      ProblemCode = "unresolvable_resource"
)

// Problem records a parameter that was replaced by a default.
type Problem struct {
	Code  ProblemCode `json:"code"`
	Param string      `json:"param"`
	Value string      `json:"value,omitempty"`
}

// Error implements the error interface so problems can be logged as errors.
func (p Problem) Error() string {
	switch p.Code {
	case ProblemMissingRequiredParameter:
		return fmt.Sprintf("viewer: required parameter %q is missing", p.Param)
	case ProblemMalformedBooleanParameter:
		return fmt.Sprintf("viewer: parameter %q has non-boolean value %q", p.Param, p.Value)
	case ProblemUnresolvableResource:
		return fmt.Sprintf("viewer: parameter %q does not name a resolvable resource", p.Param)
	default:
		return fmt.Sprintf("viewer: %s (%s)", p.Code, p.Param)
	}
}

// Codes returns the problem codes in order, handy for structured logging.
func Codes(problems []Problem) []string {
	out := make([]string, 0, len(problems))
	for _, p := range problems {
		out = append(out, string(p.Code))
	}
	return out
}

func requiredURL(value string, present bool, param string) (string, []Problem) {
	trimmed := strings.TrimSpace(value)
	if !present || trimmed == "" {
		return "", []Problem{{Code: ProblemMissingRequiredParameter, Param: param}}
	}
	return trimmed, nil
}
