package shadow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-lumen/common"
	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
)

var (
	// ErrInvalidDefinition is returned when a node definition is inconsistent.
	ErrInvalidDefinition = errors.New("shadow: invalid node definition")

	// ErrInvalidMrtIndex is returned when a shadow map names a render target
	// index its texture does not have.
	ErrInvalidMrtIndex = errors.New("shadow: texture does not have the requested MRT index")

	// ErrTechniqueNotImplemented is returned for unknown shadow map techniques.
	ErrTechniqueNotImplemented = errors.New("shadow: shadow map technique not implemented or not recognized")

	// ErrViewportMismatch is raised when two scene passes render the same
	// shadow map and light type at different viewport sizes.
	ErrViewportMismatch = errors.New("shadow: scene passes to the same shadow map have different viewport sizes")
)

// Technique selects how a shadow camera is fitted to the view.
type Technique int

const (
	// TechniqueUniform uses a fixed-size projection around the viewer.
	TechniqueUniform Technique = iota
	// TechniqueFocused fits the projection to the visible part of the view
	// frustum and the shadow casters.
	TechniqueFocused
	// TechniquePSSM splits the view frustum into depth ranges, one shadow map each.
	TechniquePSSM
)

// String returns the lowercase technique name.
func (t Technique) String() string {
	switch t {
	case TechniqueUniform:
		return "uniform"
	case TechniqueFocused:
		return "focused"
	case TechniquePSSM:
		return "pssm"
	}
	return fmt.Sprintf("technique(%d)", int(t))
}

// ParseTechnique converts a technique name to a Technique.
//
// Parameters:
//   - s: uniform, focused or pssm, case-insensitive
//
// Returns:
//   - Technique: the technique
//   - error: ErrTechniqueNotImplemented for other names
func ParseTechnique(s string) (Technique, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "uniform", "default":
		return TechniqueUniform, nil
	case "focused":
		return TechniqueFocused, nil
	case "pssm":
		return TechniquePSSM, nil
	}
	return 0, fmt.Errorf("%q: %w", s, ErrTechniqueNotImplemented)
}

// NoSharedSetup marks a shadow map with its own camera setup.
const NoSharedSetup = -1

// Defaults applied by the definition loader.
const (
	DefaultNumSplits    = 3
	DefaultPssmLambda   = 0.95
	DefaultSplitPadding = 1.0
)

// TextureDefinition describes a local render target of the node. Textures
// with a zero Width take their size from the final target, scaled by
// WidthFactor and HeightFactor.
type TextureDefinition struct {
	Name         string
	Width        int
	Height       int
	WidthFactor  float32
	HeightFactor float32
	// MRTCount is the number of render targets in the texture, at least 1.
	MRTCount int
}

// IsTargetRelative reports whether the texture is sized from the final target.
func (t TextureDefinition) IsTargetRelative() bool {
	return t.Width == 0 || t.Height == 0
}

// ShadowMapDefinition describes one shadow map: which light slot feeds it,
// where it lives, and how its camera is set up.
type ShadowMapDefinition struct {
	// Texture names the TextureDefinition holding the map.
	Texture string
	// MrtIndex selects the render target inside Texture.
	MrtIndex int
	// Light is the index of the shadow-casting light slot.
	Light int
	// Split is the PSSM split rendered into this map.
	Split int

	Technique    Technique
	NumSplits    int
	PssmLambda   float32
	SplitPadding float32

	// UvOffset and UvLength place the map inside its texture, in UV units.
	UvOffset common.Vec2
	UvLength common.Vec2

	// SharesSetupWith is the index of an earlier shadow map whose camera
	// setup this one reuses, or NoSharedSetup.
	SharesSetupWith int
}

// NodeDefinition is the immutable description of a shadow node.
type NodeDefinition struct {
	Name       string
	Textures   []TextureDefinition
	ShadowMaps []ShadowMapDefinition

	// LightTypesMask holds, per shadow-casting light slot, the light types
	// (1 << light.LightType) the slot accepts. Its length is the slot count.
	LightTypesMask []uint8

	// MinRq and MaxRq bound the render queues whose objects count as casters.
	MinRq uint8
	MaxRq uint8
}

// NumLights returns the number of shadow-casting light slots.
func (d *NodeDefinition) NumLights() int {
	return len(d.LightTypesMask)
}

// TextureIndex returns the index of the named texture, or -1.
func (d *NodeDefinition) TextureIndex(name string) int {
	for i, t := range d.Textures {
		if t.Name == name {
			return i
		}
	}
	return -1
}

// Validate checks the definition for internal consistency.
//
// Returns:
//   - error: an error wrapping ErrInvalidDefinition or ErrTechniqueNotImplemented
func (d *NodeDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: node has no name", ErrInvalidDefinition)
	}
	if d.MinRq >= d.MaxRq {
		return fmt.Errorf("%w: node %q: render queue range [%d, %d) is empty", ErrInvalidDefinition, d.Name, d.MinRq, d.MaxRq)
	}

	allTypes := uint8(1<<light.NumLightTypes) - 1
	for i, m := range d.LightTypesMask {
		if m == 0 || m&^allTypes != 0 {
			return fmt.Errorf("%w: node %q: light slot %d has type mask %#x", ErrInvalidDefinition, d.Name, i, m)
		}
	}

	seen := make(map[string]bool, len(d.Textures))
	for _, t := range d.Textures {
		if t.Name == "" || seen[t.Name] {
			return fmt.Errorf("%w: node %q: texture name %q is empty or repeated", ErrInvalidDefinition, d.Name, t.Name)
		}
		seen[t.Name] = true
		if t.MRTCount < 1 {
			return fmt.Errorf("%w: node %q: texture %q has %d render targets", ErrInvalidDefinition, d.Name, t.Name, t.MRTCount)
		}
		if t.IsTargetRelative() && (t.WidthFactor <= 0 || t.HeightFactor <= 0) {
			return fmt.Errorf("%w: node %q: texture %q has no size", ErrInvalidDefinition, d.Name, t.Name)
		}
	}

	for i, sm := range d.ShadowMaps {
		if !seen[sm.Texture] {
			return fmt.Errorf("%w: node %q: shadow map %d uses unknown texture %q", ErrInvalidDefinition, d.Name, i, sm.Texture)
		}
		if sm.Light < 0 || sm.Light >= d.NumLights() {
			return fmt.Errorf("%w: node %q: shadow map %d uses light slot %d of %d", ErrInvalidDefinition, d.Name, i, sm.Light, d.NumLights())
		}
		switch sm.Technique {
		case TechniqueUniform, TechniqueFocused:
		case TechniquePSSM:
			if sm.NumSplits < 1 || sm.Split < 0 || sm.Split >= sm.NumSplits {
				return fmt.Errorf("%w: node %q: shadow map %d renders split %d of %d", ErrInvalidDefinition, d.Name, i, sm.Split, sm.NumSplits)
			}
		default:
			return fmt.Errorf("node %q: shadow map %d: %w", d.Name, i, ErrTechniqueNotImplemented)
		}
		if sm.SharesSetupWith != NoSharedSetup {
			if sm.SharesSetupWith < 0 || sm.SharesSetupWith >= i {
				return fmt.Errorf("%w: node %q: shadow map %d shares setup with %d, which is not an earlier map", ErrInvalidDefinition, d.Name, i, sm.SharesSetupWith)
			}
			if d.ShadowMaps[sm.SharesSetupWith].Technique != sm.Technique {
				return fmt.Errorf("%w: node %q: shadow map %d shares setup across techniques", ErrInvalidDefinition, d.Name, i)
			}
		}
		if sm.UvLength[0] <= 0 || sm.UvLength[1] <= 0 {
			return fmt.Errorf("%w: node %q: shadow map %d has an empty uv rectangle", ErrInvalidDefinition, d.Name, i)
		}
	}
	return nil
}
