package shadow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-lumen/common"
	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tomlDefinition = `
name = "sun_and_lamps"
min_rq = 0
max_rq = 200

[[textures]]
name = "atlas"
width = 2048
height = 2048

[[textures]]
name = "spot"
width_factor = 0.5
height_factor = 0.5
mrt_count = 2

[[lights]]
types = ["directional"]

[[lights]]
types = ["point", "spot"]

[[shadow_maps]]
texture = "atlas"
light = 0
split = 0
technique = "pssm"
num_splits = 2
uv_length = [0.5, 1.0]

[[shadow_maps]]
texture = "atlas"
light = 0
split = 1
technique = "pssm"
num_splits = 2
uv_offset = [0.5, 0.0]
uv_length = [0.5, 1.0]
shares_setup_with = 0

[[shadow_maps]]
texture = "spot"
mrt_index = 1
light = 1
technique = "focused"
`

const yamlDefinition = `
name: lamps
textures:
  - name: atlas
    width: 1024
    height: 1024
lights:
  - types: [point]
  - types: [Spot]
shadow_maps:
  - texture: atlas
    light: 0
    uv_length: [0.5, 1]
  - texture: atlas
    light: 1
    uv_offset: [0.5, 0]
    uv_length: [0.5, 1]
    split_padding: 2.5
`

func TestParseNodeDefinitionTOML(t *testing.T) {
	def, err := ParseNodeDefinition([]byte(tomlDefinition), FormatTOML)
	require.NoError(t, err)

	assert.Equal(t, "sun_and_lamps", def.Name)
	assert.Equal(t, uint8(200), def.MaxRq)
	assert.Equal(t, []uint8{
		light.LightTypeDirectional.Mask(),
		light.LightTypePoint.Mask() | light.LightTypeSpot.Mask(),
	}, def.LightTypesMask)

	require.Len(t, def.Textures, 2)
	assert.Equal(t, 1, def.Textures[0].MRTCount)
	assert.True(t, def.Textures[1].IsTargetRelative())
	assert.Equal(t, 2, def.Textures[1].MRTCount)

	require.Len(t, def.ShadowMaps, 3)
	assert.Equal(t, TechniquePSSM, def.ShadowMaps[0].Technique)
	assert.Equal(t, NoSharedSetup, def.ShadowMaps[0].SharesSetupWith)
	assert.Equal(t, 0, def.ShadowMaps[1].SharesSetupWith)
	assert.Equal(t, common.Vec2{0.5, 0}, def.ShadowMaps[1].UvOffset)
	assert.InDelta(t, DefaultPssmLambda, def.ShadowMaps[1].PssmLambda, 1e-6)
	assert.Equal(t, TechniqueFocused, def.ShadowMaps[2].Technique)
	assert.Equal(t, common.Vec2{1, 1}, def.ShadowMaps[2].UvLength, "missing uv length covers the texture")
}

func TestParseNodeDefinitionYAML(t *testing.T) {
	def, err := ParseNodeDefinition([]byte(yamlDefinition), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, uint8(255), def.MaxRq)
	assert.Equal(t, 2, def.NumLights())
	assert.Equal(t, light.LightTypeSpot.Mask(), def.LightTypesMask[1])
	assert.Equal(t, TechniqueUniform, def.ShadowMaps[0].Technique)
	assert.InDelta(t, 2.5, def.ShadowMaps[1].SplitPadding, 1e-6)
	assert.InDelta(t, DefaultSplitPadding, def.ShadowMaps[0].SplitPadding, 1e-6)
}

func TestParseNodeDefinitionErrors(t *testing.T) {
	_, err := ParseNodeDefinition([]byte(`
name = "x"
[[textures]]
name = "atlas"
width = 1
height = 1
[[lights]]
types = ["point"]
[[shadow_maps]]
texture = "atlas"
technique = "lispsm"
`), FormatTOML)
	assert.ErrorIs(t, err, ErrTechniqueNotImplemented)

	_, err = ParseNodeDefinition([]byte("name: x\nlights:\n  - types: [area]\n"), FormatYAML)
	assert.ErrorIs(t, err, ErrInvalidDefinition)

	_, err = ParseNodeDefinition([]byte("name = \"x\"\nbogus = 1\n"), FormatTOML)
	assert.Error(t, err)

	_, err = ParseNodeDefinition(nil, Format("json"))
	assert.Error(t, err)
}

func TestLoadNodeDefinitionByExtension(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "node.toml")
	yamlPath := filepath.Join(dir, "node.yml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(tomlDefinition), 0o644))
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlDefinition), 0o644))

	def, err := LoadNodeDefinition(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, "sun_and_lamps", def.Name)

	def, err = LoadNodeDefinition(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "lamps", def.Name)

	_, err = LoadNodeDefinition(filepath.Join(dir, "node.ini"))
	assert.Error(t, err)

	_, err = LoadNodeDefinition(filepath.Join(dir, "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateRejectsInconsistentDefinitions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *NodeDefinition)
	}{
		{"no name", func(d *NodeDefinition) { d.Name = "" }},
		{"empty render queue range", func(d *NodeDefinition) { d.MinRq, d.MaxRq = 10, 10 }},
		{"empty slot mask", func(d *NodeDefinition) { d.LightTypesMask[0] = 0 }},
		{"unknown slot type", func(d *NodeDefinition) { d.LightTypesMask[0] = 1 << 5 }},
		{"duplicate texture", func(d *NodeDefinition) { d.Textures = append(d.Textures, d.Textures[0]) }},
		{"no render targets", func(d *NodeDefinition) { d.Textures[0].MRTCount = 0 }},
		{"unsized texture", func(d *NodeDefinition) { d.Textures[0].Width = 0 }},
		{"unknown texture", func(d *NodeDefinition) { d.ShadowMaps[0].Texture = "nope" }},
		{"light slot out of range", func(d *NodeDefinition) { d.ShadowMaps[0].Light = 7 }},
		{"split out of range", func(d *NodeDefinition) {
			d.ShadowMaps[0].Technique = TechniquePSSM
			d.ShadowMaps[0].NumSplits = 2
			d.ShadowMaps[0].Split = 2
		}},
		{"shares with later map", func(d *NodeDefinition) { d.ShadowMaps[0].SharesSetupWith = 1 }},
		{"shares across techniques", func(d *NodeDefinition) {
			d.ShadowMaps[1].SharesSetupWith = 0
			d.ShadowMaps[1].Technique = TechniqueFocused
		}},
		{"empty uv rect", func(d *NodeDefinition) { d.ShadowMaps[1].UvLength = common.Vec2{0, 1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := testDefinition(light.LightTypePoint.Mask(), light.LightTypePoint.Mask())
			require.NoError(t, def.Validate())
			tt.mutate(def)
			assert.ErrorIs(t, def.Validate(), ErrInvalidDefinition)
		})
	}

	def := testDefinition(light.LightTypePoint.Mask())
	def.ShadowMaps[0].Technique = Technique(42)
	assert.ErrorIs(t, def.Validate(), ErrTechniqueNotImplemented)
}

func TestParseTechnique(t *testing.T) {
	for name, want := range map[string]Technique{"": TechniqueUniform, "Focused": TechniqueFocused, " pssm ": TechniquePSSM} {
		got, err := ParseTechnique(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		if name != "" {
			assert.Equal(t, want.String(), got.String())
		}
	}
	_, err := ParseTechnique("plane_optimal")
	assert.ErrorIs(t, err, ErrTechniqueNotImplemented)
}
