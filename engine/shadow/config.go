package shadow

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-lumen/common"
	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
	"github.com/Carmen-Shannon/oxy-lumen/engine/scene"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a node definition file.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

type textureFile struct {
	Name         string  `toml:"name" yaml:"name"`
	Width        int     `toml:"width" yaml:"width"`
	Height       int     `toml:"height" yaml:"height"`
	WidthFactor  float32 `toml:"width_factor" yaml:"width_factor"`
	HeightFactor float32 `toml:"height_factor" yaml:"height_factor"`
	MRTCount     int     `toml:"mrt_count" yaml:"mrt_count"`
}

type lightSlotFile struct {
	Types []string `toml:"types" yaml:"types"`
}

type shadowMapFile struct {
	Texture         string     `toml:"texture" yaml:"texture"`
	MrtIndex        int        `toml:"mrt_index" yaml:"mrt_index"`
	Light           int        `toml:"light" yaml:"light"`
	Split           int        `toml:"split" yaml:"split"`
	Technique       string     `toml:"technique" yaml:"technique"`
	NumSplits       int        `toml:"num_splits" yaml:"num_splits"`
	PssmLambda      *float32   `toml:"pssm_lambda" yaml:"pssm_lambda"`
	SplitPadding    *float32   `toml:"split_padding" yaml:"split_padding"`
	UvOffset        [2]float32 `toml:"uv_offset" yaml:"uv_offset"`
	UvLength        [2]float32 `toml:"uv_length" yaml:"uv_length"`
	SharesSetupWith *int       `toml:"shares_setup_with" yaml:"shares_setup_with"`
}

type nodeFile struct {
	Name       string          `toml:"name" yaml:"name"`
	MinRq      uint8           `toml:"min_rq" yaml:"min_rq"`
	MaxRq      *uint8          `toml:"max_rq" yaml:"max_rq"`
	Textures   []textureFile   `toml:"textures" yaml:"textures"`
	Lights     []lightSlotFile `toml:"lights" yaml:"lights"`
	ShadowMaps []shadowMapFile `toml:"shadow_maps" yaml:"shadow_maps"`
}

// LoadNodeDefinition reads and validates a node definition. The format is
// chosen from the file extension: .toml, or .yaml and .yml.
//
// Parameters:
//   - path: the definition file
//
// Returns:
//   - *NodeDefinition: the validated definition
//   - error: a read, decode or validation error
func LoadNodeDefinition(path string) (*NodeDefinition, error) {
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		format = FormatTOML
	case ".yaml", ".yml":
		format = FormatYAML
	default:
		return nil, fmt.Errorf("shadow: %s: unsupported definition format", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shadow: read definition: %w", err)
	}
	def, err := ParseNodeDefinition(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// ParseNodeDefinition decodes and validates a node definition.
//
// Parameters:
//   - data: the encoded definition
//   - format: FormatTOML or FormatYAML
//
// Returns:
//   - *NodeDefinition: the validated definition
//   - error: a decode or validation error
func ParseNodeDefinition(data []byte, format Format) (*NodeDefinition, error) {
	var f nodeFile
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("shadow: decode toml: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("shadow: decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("shadow: unknown definition format %q", format)
	}

	def, err := f.toDefinition()
	if err != nil {
		return nil, err
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

func (f *nodeFile) toDefinition() (*NodeDefinition, error) {
	def := &NodeDefinition{
		Name:  f.Name,
		MinRq: f.MinRq,
		MaxRq: scene.DefaultRenderQueueMax,
	}
	if f.MaxRq != nil {
		def.MaxRq = *f.MaxRq
	}

	for _, t := range f.Textures {
		def.Textures = append(def.Textures, TextureDefinition{
			Name:         t.Name,
			Width:        t.Width,
			Height:       t.Height,
			WidthFactor:  t.WidthFactor,
			HeightFactor: t.HeightFactor,
			MRTCount:     common.Coalesce(t.MRTCount, 1),
		})
	}

	for i, slot := range f.Lights {
		var mask uint8
		for _, name := range slot.Types {
			lt, err := parseLightType(name)
			if err != nil {
				return nil, fmt.Errorf("%w: light slot %d: %v", ErrInvalidDefinition, i, err)
			}
			mask |= lt.Mask()
		}
		def.LightTypesMask = append(def.LightTypesMask, mask)
	}

	for i, sm := range f.ShadowMaps {
		tech, err := ParseTechnique(sm.Technique)
		if err != nil {
			return nil, fmt.Errorf("shadow map %d: %w", i, err)
		}
		m := ShadowMapDefinition{
			Texture:         sm.Texture,
			MrtIndex:        sm.MrtIndex,
			Light:           sm.Light,
			Split:           sm.Split,
			Technique:       tech,
			NumSplits:       sm.NumSplits,
			PssmLambda:      DefaultPssmLambda,
			SplitPadding:    DefaultSplitPadding,
			UvOffset:        common.Vec2(sm.UvOffset),
			UvLength:        common.Vec2(sm.UvLength),
			SharesSetupWith: NoSharedSetup,
		}
		if tech == TechniquePSSM && m.NumSplits == 0 {
			m.NumSplits = DefaultNumSplits
		}
		if sm.PssmLambda != nil {
			m.PssmLambda = *sm.PssmLambda
		}
		if sm.SplitPadding != nil {
			m.SplitPadding = *sm.SplitPadding
		}
		if m.UvLength == (common.Vec2{}) {
			m.UvLength = common.Vec2{1, 1}
		}
		if sm.SharesSetupWith != nil {
			m.SharesSetupWith = *sm.SharesSetupWith
		}
		def.ShadowMaps = append(def.ShadowMaps, m)
	}
	return def, nil
}

func parseLightType(name string) (light.LightType, error) {
	for t := light.LightType(0); t < light.NumLightTypes; t++ {
		if strings.EqualFold(name, t.String()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown light type %q", name)
}
