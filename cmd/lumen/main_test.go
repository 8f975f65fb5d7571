package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/program"
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRunDemoMemoryBackend(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cfg := DefaultConfig()
	cfg.Frames = 3

	frames, err := runDemo(context.Background(), cfg, zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), frames)

	finished := logs.FilterMessage("lumen finished").All()
	require.Len(t, finished, 1)
	fields := finished[0].ContextMap()
	assert.Equal(t, uint64(3), fields["frames"])
	assert.Positive(t, fields["activeCasters"])
	assert.NotZero(t, fields["collectedLights"])

	started := logs.FilterMessage("lumen starting").All()
	require.Len(t, started, 1)
	assert.Equal(t, "lumen_default", started[0].ContextMap()["node"])
}

func TestRunDemoSampleConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "lumen.toml"))
	require.NoError(t, err)
	cfg.Frames = 2
	cfg.FPS = 0

	frames, err := runDemo(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), frames)
}

func TestRunDemoCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := DefaultConfig()
	cfg.Frames = -1

	frames, err := runDemo(ctx, cfg, zap.NewNop())
	require.NoError(t, err, "an interrupted run is not a failure")
	assert.Zero(t, frames)
}

func TestRunDemoRejectsBadSetup(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "vulkan"
	_, err := runDemo(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "unknown backend")

	cfg = DefaultConfig()
	cfg.Lights[0].Type = "area"
	_, err = runDemo(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "unknown light type")

	cfg = DefaultConfig()
	cfg.NodeDefinition = filepath.Join(t.TempDir(), "missing.toml")
	_, err = runDemo(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.CasterScenes = []string{filepath.Join(t.TempDir(), "missing.glb")}
	_, err = runDemo(context.Background(), cfg, zap.NewNop())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildSceneImportsCasterScenes(t *testing.T) {
	cfg := &Config{CasterScenes: []string{filepath.Join("..", "..", "configs", "pillars.gltf")}}
	cfg.applyDefaults()
	require.Empty(t, cfg.Casters)

	sc, _, err := buildScene(cfg, zap.NewNop())
	require.NoError(t, err)

	all := sc.CalculateCurrentCastersBox(light.DefaultVisibilityFlags, 0, 255)
	assert.InDeltaSlice(t, []float32{-9, 0, -9.5}, all.Min[:], 1e-4)
	assert.InDeltaSlice(t, []float32{9, 7, -6.5}, all.Max[:], 1e-4)

	pillars := sc.CalculateCurrentCastersBox(light.DefaultVisibilityFlags, 0, 1)
	assert.InDeltaSlice(t, []float32{-8.75, 0, -8.75}, pillars.Min[:], 1e-4)
	assert.InDeltaSlice(t, []float32{8.75, 6, -7.25}, pillars.Max[:], 1e-4)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunCommandFlagsOverrideConfig(t *testing.T) {
	out, err := execute(t, "run",
		"--config", filepath.Join("..", "..", "configs", "lumen.toml"),
		"--frames", "2",
		"--log-level", "error",
		"--profile=false",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "rendered 2 frames with the memory backend")
}

func TestRunCommandRejectsArgs(t *testing.T) {
	_, err := execute(t, "run", "extra")
	assert.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	good := filepath.Join("..", "..", "configs", "shadow_node.yaml")
	out, err := execute(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, `ok, node "lumen_compact" with 2 light slots and 3 shadow maps`)

	bad := writeFile(t, "bad.toml", "name = \"broken\"\n[[shadow_maps]]\ntexture = \"missing\"\n")
	out, err = execute(t, "validate", good, bad)
	require.Error(t, err)
	assert.Contains(t, out, "lumen_compact")
	assert.Contains(t, out, "bad.toml: ")

	_, err = execute(t, "validate")
	assert.Error(t, err, "at least one file is required")
}

func TestMemoryBackendExpandsShaders(t *testing.T) {
	b, err := newBackend(DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	defer b.buffers.Release()

	props := program.NewParams()
	props.Set("fwd_clustered_width", 16)
	require.NoError(t, b.loadShaders(props))

	p, err := b.programs.ActiveProgram()
	require.NoError(t, err)
	assert.NotNil(t, p)
	assert.Equal(t, "lit.frag", b.programs.ActiveShader(program.StageFragment).Name())

	src, err := b.expand(shader.LanguageGLSL, "lit.frag", props)
	require.NoError(t, err)
	assert.Contains(t, src, "#define fwd_clustered_width 16")
	assert.NotContains(t, src, "@lumen:")

	src, err = b.expand(shader.LanguageWGSL, "lit.wgsl", props)
	require.NoError(t, err)
	assert.Contains(t, src, "@group(0) @binding(1) var<storage, read> grid: array<u32>;")
	require.NoError(t, b.close())
}

func TestEmbeddedNodeIsValid(t *testing.T) {
	def, err := nodeDefinition(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "lumen_default", def.Name)
	assert.Equal(t, 3, def.NumLights())
	assert.Len(t, def.ShadowMaps, 5)
}
