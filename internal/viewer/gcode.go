package viewer

import "github.com/iforge-uos/print-queue-api/internal/query"

// FloorProps sizes the build-plate grid drawn under the toolpath.
type FloorProps struct {
	GridWidth  int `json:"gridWidth"`
	GridLength int `json:"gridLength"`
}

// GCodeConfig mirrors the props accepted by react-gcode-viewer's GCodeViewer.
type GCodeConfig struct {
	URL           string     `json:"url"`
	OrbitControls bool       `json:"orbitControls"`
	ShowAxes      bool       `json:"showAxes"`
	Quality       float64    `json:"quality"`
	Floor         FloorProps `json:"floorProps"`
	LayerColor    string     `json:"layerColor"`
	TopLayerColor string     `json:"topLayerColor"`
	ClassName     string     `json:"className"`
	Preset        string     `json:"-"`
}

// BuildGCode derives the G-code widget configuration. Visual tuning comes from
// the preset named by the optional preset parameter.
func BuildGCode(q query.PageQuery, presets *Presets) (GCodeConfig, []Problem) {
	raw, present := q.Get(ParamGCodeURL)
	url, problems := requiredURL(raw, present, ParamGCodeURL)

	name, t := presets.Lookup(q.Value(ParamPreset))

	return GCodeConfig{
		URL:           url,
		OrbitControls: true,
		ShowAxes:      t.ShowAxes,
		Quality:       t.Quality,
		Floor:         FloorProps{GridWidth: t.GridWidth, GridLength: t.GridLength},
		LayerColor:    t.LayerColor,
		TopLayerColor: t.TopLayerColor,
		ClassName:     defaultClassName,
		Preset:        name,
	}, problems
}

func (c GCodeConfig) Widget() Widget      { return WidgetGCode }
func (c GCodeConfig) ResourceURL() string { return c.URL }
func (c GCodeConfig) Empty() bool         { return c.URL == "" }

func (c GCodeConfig) WithResourceURL(url string) Config {
	c.URL = url
	return c
}
