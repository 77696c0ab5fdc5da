package viewer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPresetName is used when no preset is requested or the requested one is unknown.
const DefaultPresetName = "standard"

// Tuning holds the secondary visual constants for the G-code widget.
type Tuning struct {
	Quality       float64 `yaml:"quality"`
	GridWidth     int     `yaml:"grid_width"`
	GridLength    int     `yaml:"grid_length"`
	LayerColor    string  `yaml:"layer_color"`
	TopLayerColor string  `yaml:"top_layer_color"`
	ShowAxes      bool    `yaml:"show_axes"`
}

var builtinTuning = map[string]Tuning{
	"standard": {
		Quality:       0.5,
		GridWidth:     250,
		GridLength:    210,
		LayerColor:    "#808080",
		TopLayerColor: "#ff69b4",
	},
	"draft": {
		Quality:       0.2,
		GridWidth:     250,
		GridLength:    210,
		LayerColor:    "#a0a0a0",
		TopLayerColor: "#ff69b4",
	},
	"detailed": {
		Quality:       1,
		GridWidth:     250,
		GridLength:    210,
		LayerColor:    "#606060",
		TopLayerColor: "#ff4500",
		ShowAxes:      true,
	},
}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Presets is an immutable set of named tunings.
type Presets struct {
	defaultName string
	byName      map[string]Tuning
}

type presetsFile struct {
	Default string                    `yaml:"default"`
	Presets map[string]tuningOverride `yaml:"presets"`
}

// tuningOverride is one preset as written in YAML. Unset fields keep the base value.
type tuningOverride struct {
	Quality       float64 `yaml:"quality"`
	GridWidth     int     `yaml:"grid_width"`
	GridLength    int     `yaml:"grid_length"`
	LayerColor    string  `yaml:"layer_color"`
	TopLayerColor string  `yaml:"top_layer_color"`
	ShowAxes      *bool   `yaml:"show_axes"`
}

// DefaultPresets returns the built-in presets.
func DefaultPresets() *Presets {
	byName := make(map[string]Tuning, len(builtinTuning))
	for name, t := range builtinTuning {
		byName[name] = t
	}
	return &Presets{defaultName: DefaultPresetName, byName: byName}
}

// LoadPresetsFile reads presets from a YAML file. An empty path returns the built-ins.
func LoadPresetsFile(path string) (*Presets, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultPresets(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("viewer: open tuning file: %w", err)
	}
	defer f.Close()
	return LoadPresets(f)
}

// LoadPresets decodes YAML presets layered over the built-ins. Fields left
// unset inherit from the built-in of the same name, or from standard for new presets.
func LoadPresets(r io.Reader) (*Presets, error) {
	var file presetsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("viewer: decode tuning presets: %w", err)
	}

	p := DefaultPresets()
	for rawName, t := range file.Presets {
		name := normalizePresetName(rawName)
		if name == "" {
			return nil, errors.New("viewer: preset name must not be empty")
		}
		base, ok := builtinTuning[name]
		if !ok {
			base = builtinTuning[DefaultPresetName]
		}
		merged := mergeTuning(base, t)
		if err := merged.Validate(); err != nil {
			return nil, fmt.Errorf("viewer: preset %q: %w", name, err)
		}
		p.byName[name] = merged
	}

	if d := normalizePresetName(file.Default); d != "" {
		if _, ok := p.byName[d]; !ok {
			return nil, fmt.Errorf("viewer: default preset %q is not defined", d)
		}
		p.defaultName = d
	}
	return p, nil
}

// Lookup returns the named preset, falling back to the default preset.
func (p *Presets) Lookup(name string) (string, Tuning) {
	if p == nil {
		return DefaultPresetName, builtinTuning[DefaultPresetName]
	}
	if t, ok := p.byName[normalizePresetName(name)]; ok {
		return normalizePresetName(name), t
	}
	return p.defaultName, p.byName[p.defaultName]
}

// Names lists the available presets in lexical order.
func (p *Presets) Names() []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.byName))
	for name := range p.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the name of the fallback preset.
func (p *Presets) Default() string {
	if p == nil {
		return DefaultPresetName
	}
	return p.defaultName
}

// Validate checks the tuning ranges accepted by the widget.
func (t Tuning) Validate() error {
	var invalid []string
	if t.Quality <= 0 || t.Quality > 1 {
		invalid = append(invalid, "quality")
	}
	if t.GridWidth <= 0 {
		invalid = append(invalid, "grid_width")
	}
	if t.GridLength <= 0 {
		invalid = append(invalid, "grid_length")
	}
	if !hexColor.MatchString(t.LayerColor) {
		invalid = append(invalid, "layer_color")
	}
	if !hexColor.MatchString(t.TopLayerColor) {
		invalid = append(invalid, "top_layer_color")
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid fields [%s]", strings.Join(invalid, ", "))
	}
	return nil
}

func mergeTuning(base Tuning, override tuningOverride) Tuning {
	out := base
	if override.Quality != 0 {
		out.Quality = override.Quality
	}
	if override.GridWidth != 0 {
		out.GridWidth = override.GridWidth
	}
	if override.GridLength != 0 {
		out.GridLength = override.GridLength
	}
	if override.LayerColor != "" {
		out.LayerColor = override.LayerColor
	}
	if override.TopLayerColor != "" {
		out.TopLayerColor = override.TopLayerColor
	}
	if override.ShowAxes != nil {
		out.ShowAxes = *override.ShowAxes
	}
	return out
}

func normalizePresetName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
