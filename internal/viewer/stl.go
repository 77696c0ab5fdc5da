package viewer

import "github.com/iforge-uos/print-queue-api/internal/query"

// STLConfig mirrors the props accepted by react-stl-viewer's StlViewer.
type STLConfig struct {
	URL           string `json:"url"`
	OrbitControls bool   `json:"orbitControls"`
	ShowAxes      bool   `json:"showAxes"`
	Shadows       bool   `json:"shadows"`
	ClassName     string `json:"className"`
}

// BuildSTL derives the STL widget configuration. A missing stl_url yields an
// empty config; shadows defaults to false when absent or malformed.
func BuildSTL(q query.PageQuery) (STLConfig, []Problem) {
	raw, present := q.Get(ParamSTLURL)
	url, problems := requiredURL(raw, present, ParamSTLURL)

	shadows, err := q.Bool(ParamShadows, false)
	if err != nil {
		problems = append(problems, Problem{
			Code:  ProblemMalformedBooleanParameter,
			Param: ParamShadows,
			Value: q.Value(ParamShadows),
		})
	}

	return STLConfig{
		URL:           url,
		OrbitControls: true,
		ShowAxes:      true,
		Shadows:       shadows,
		ClassName:     defaultClassName,
	}, problems
}

func (c STLConfig) Widget() Widget      { return WidgetSTL }
func (c STLConfig) ResourceURL() string { return c.URL }
func (c STLConfig) Empty() bool         { return c.URL == "" }

func (c STLConfig) WithResourceURL(url string) Config {
	c.URL = url
	return c
}
