package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-lumen/common"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Backend names accepted by Config.Backend.
const (
	BackendMemory = "memory"
	BackendGL     = "gl"
	BackendWGPU   = "wgpu"
)

// Config describes one lumen run: the backend, the frame loop and the demo
// scene that is lit.
type Config struct {
	Backend     string  `toml:"backend" yaml:"backend"`
	Frames      int     `toml:"frames" yaml:"frames"`
	FPS         float64 `toml:"fps" yaml:"fps"`
	LogLevel    string  `toml:"log_level" yaml:"log_level"`
	Development bool    `toml:"development" yaml:"development"`
	Profile     bool    `toml:"profile" yaml:"profile"`

	// NodeDefinition is a shadow node file. Relative paths resolve against
	// the config file's directory. Empty uses the built-in node.
	NodeDefinition string `toml:"node_definition" yaml:"node_definition"`

	// CasterScenes are glTF or GLB files whose mesh nodes become shadow
	// casters, resolved like NodeDefinition.
	CasterScenes []string `toml:"caster_scenes" yaml:"caster_scenes"`

	Window  WindowConfig   `toml:"window" yaml:"window"`
	Grid    GridConfig     `toml:"grid" yaml:"grid"`
	Camera  CameraConfig   `toml:"camera" yaml:"camera"`
	Lights  []LightConfig  `toml:"lights" yaml:"lights"`
	Casters []CasterConfig `toml:"casters" yaml:"casters"`
	Probes  []ProbeConfig  `toml:"probes" yaml:"probes"`
}

// WindowConfig sizes the final target. The gl backend also opens a window of
// this size.
type WindowConfig struct {
	Title   string `toml:"title" yaml:"title"`
	Width   int    `toml:"width" yaml:"width"`
	Height  int    `toml:"height" yaml:"height"`
	Visible bool   `toml:"visible" yaml:"visible"`
}

// GridConfig configures the forward-plus light grid. Zero fields keep the
// grid defaults.
type GridConfig struct {
	Width         int     `toml:"width" yaml:"width"`
	Height        int     `toml:"height" yaml:"height"`
	Slices        int     `toml:"slices" yaml:"slices"`
	LightsPerCell int     `toml:"lights_per_cell" yaml:"lights_per_cell"`
	MinDistance   float32 `toml:"min_distance" yaml:"min_distance"`
	MaxDistance   float32 `toml:"max_distance" yaml:"max_distance"`
	MaxLights     int     `toml:"max_lights" yaml:"max_lights"`
	Workers       int     `toml:"workers" yaml:"workers"`
}

// CameraConfig places the viewer. Fov is in degrees.
type CameraConfig struct {
	Position [3]float32 `toml:"position" yaml:"position"`
	LookAt   [3]float32 `toml:"look_at" yaml:"look_at"`
	Fov      float32    `toml:"fov" yaml:"fov"`
	Near     float32    `toml:"near" yaml:"near"`
	Far      float32    `toml:"far" yaml:"far"`
}

// LightConfig is one scene light. Spot angles are in degrees.
type LightConfig struct {
	Name        string     `toml:"name" yaml:"name"`
	Type        string     `toml:"type" yaml:"type"`
	Position    [3]float32 `toml:"position" yaml:"position"`
	Direction   [3]float32 `toml:"direction" yaml:"direction"`
	Diffuse     [3]float32 `toml:"diffuse" yaml:"diffuse"`
	Power       float32    `toml:"power" yaml:"power"`
	Range       float32    `toml:"range" yaml:"range"`
	SpotInner   float32    `toml:"spot_inner" yaml:"spot_inner"`
	SpotOuter   float32    `toml:"spot_outer" yaml:"spot_outer"`
	CastShadows *bool      `toml:"cast_shadows" yaml:"cast_shadows"`
}

// CasterConfig is a shadow-casting box.
type CasterConfig struct {
	Center      [3]float32 `toml:"center" yaml:"center"`
	HalfSize    [3]float32 `toml:"half_size" yaml:"half_size"`
	RenderQueue uint8      `toml:"render_queue" yaml:"render_queue"`
}

// ProbeConfig is an axis-aligned cubemap probe. Inner is the fraction of the
// area with full influence.
type ProbeConfig struct {
	Name     string     `toml:"name" yaml:"name"`
	Center   [3]float32 `toml:"center" yaml:"center"`
	HalfSize [3]float32 `toml:"half_size" yaml:"half_size"`
	Inner    float32    `toml:"inner" yaml:"inner"`
}

// LoadConfig reads a config file. The format is chosen from the extension:
// .toml, or .yaml and .yml. Missing values are filled with defaults.
//
// Parameters:
//   - path: the config file
//
// Returns:
//   - *Config: the config with defaults applied
//   - error: a read or decode error
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty document decodes to nothing.
		if err := dec.Decode(cfg); err != nil && len(bytes.TrimSpace(data)) > 0 {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config: %s: unsupported format", path)
	}

	if cfg.NodeDefinition != "" && !filepath.IsAbs(cfg.NodeDefinition) {
		cfg.NodeDefinition = filepath.Join(filepath.Dir(path), cfg.NodeDefinition)
	}
	for i, f := range cfg.CasterScenes {
		if !filepath.IsAbs(f) {
			cfg.CasterScenes[i] = filepath.Join(filepath.Dir(path), f)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

// DefaultConfig returns the demo config used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	c.Backend = strings.ToLower(common.Coalesce(c.Backend, BackendMemory))
	c.Frames = common.Coalesce(c.Frames, 120)
	c.LogLevel = common.Coalesce(c.LogLevel, "info")

	c.Window.Title = common.Coalesce(c.Window.Title, "lumen")
	c.Window.Width = common.Coalesce(c.Window.Width, 1280)
	c.Window.Height = common.Coalesce(c.Window.Height, 720)

	c.Camera.Position = common.Coalesce(c.Camera.Position, [3]float32{0, 8, 30})
	c.Camera.Fov = common.Coalesce(c.Camera.Fov, 45)
	c.Camera.Near = common.Coalesce(c.Camera.Near, 0.1)
	c.Camera.Far = common.Coalesce(c.Camera.Far, 1000)

	if len(c.Lights) == 0 {
		c.Lights = defaultLights()
	}
	for i := range c.Lights {
		l := &c.Lights[i]
		l.Type = strings.ToLower(common.Coalesce(l.Type, "point"))
		l.Diffuse = common.Coalesce(l.Diffuse, [3]float32{1, 1, 1})
		l.Direction = common.Coalesce(l.Direction, [3]float32{0, -1, 0})
		l.Power = common.Coalesce(l.Power, 1)
		l.Range = common.Coalesce(l.Range, 10)
		l.SpotInner = common.Coalesce(l.SpotInner, 30)
		l.SpotOuter = common.Coalesce(l.SpotOuter, 40)
	}

	if len(c.Casters) == 0 && len(c.CasterScenes) == 0 {
		c.Casters = []CasterConfig{
			{Center: [3]float32{0, -0.5, 0}, HalfSize: [3]float32{50, 0.5, 50}},
			{Center: [3]float32{-6, 2, 0}, HalfSize: [3]float32{2, 2, 2}},
			{Center: [3]float32{6, 1, -4}, HalfSize: [3]float32{1, 1, 1}},
			{Center: [3]float32{0, 4, -12}, HalfSize: [3]float32{3, 4, 3}},
		}
	}
	for i := range c.Casters {
		c.Casters[i].HalfSize = common.Coalesce(c.Casters[i].HalfSize, [3]float32{1, 1, 1})
	}

	if len(c.Probes) == 0 {
		c.Probes = []ProbeConfig{
			{Name: "hall", HalfSize: [3]float32{50, 20, 50}, Inner: 0.5},
			{Name: "alcove", Center: [3]float32{0, 4, -12}, HalfSize: [3]float32{8, 8, 8}, Inner: 0.5},
		}
	}
	for i := range c.Probes {
		p := &c.Probes[i]
		p.Name = common.Coalesce(p.Name, fmt.Sprintf("probe%d", i))
		p.HalfSize = common.Coalesce(p.HalfSize, [3]float32{10, 10, 10})
		p.Inner = common.Coalesce(p.Inner, 1)
	}
}

func defaultLights() []LightConfig {
	lights := []LightConfig{{
		Name:      "sun",
		Type:      "directional",
		Direction: [3]float32{-0.3, -1, -0.2},
		Diffuse:   [3]float32{1, 0.95, 0.85},
	}, {
		Name:      "lamp",
		Type:      "spot",
		Position:  [3]float32{0, 12, 6},
		Direction: [3]float32{0, -1, -0.4},
		Range:     30,
	}}
	colors := [][3]float32{{1, 0.2, 0.2}, {0.2, 1, 0.2}, {0.2, 0.2, 1}, {1, 1, 0.2}}
	for i, col := range colors {
		lights = append(lights, LightConfig{
			Name:     fmt.Sprintf("torch%d", i),
			Type:     "point",
			Position: [3]float32{float32(i*8 - 12), 3, float32(-4 * i)},
			Diffuse:  col,
			Range:    12,
		})
	}
	return lights
}
