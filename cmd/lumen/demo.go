package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-lumen/common"
	"github.com/Carmen-Shannon/oxy-lumen/engine"
	"github.com/Carmen-Shannon/oxy-lumen/engine/camera"
	"github.com/Carmen-Shannon/oxy-lumen/engine/forwardplus"
	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
	"github.com/Carmen-Shannon/oxy-lumen/engine/loader"
	"github.com/Carmen-Shannon/oxy-lumen/engine/probe"
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-lumen/engine/scene"
	"github.com/Carmen-Shannon/oxy-lumen/engine/shadow"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

//go:embed assets
var assets embed.FS

const probeCubemapSize = 256

// buildScene creates the lights, casters and viewer described by cfg.
func buildScene(cfg *Config, log *zap.Logger) (scene.Scene, camera.Camera, error) {
	lights := make([]light.Light, 0, len(cfg.Lights))
	for i, lc := range cfg.Lights {
		lt, err := parseLightType(lc.Type)
		if err != nil {
			return nil, nil, fmt.Errorf("light %d: %w", i, err)
		}
		opts := []light.LightBuilderOption{
			light.WithName(common.Coalesce(lc.Name, fmt.Sprintf("light%d", i))),
			light.WithPosition(lc.Position[0], lc.Position[1], lc.Position[2]),
			light.WithDirection(lc.Direction[0], lc.Direction[1], lc.Direction[2]),
			light.WithDiffuse(lc.Diffuse[0], lc.Diffuse[1], lc.Diffuse[2]),
			light.WithPowerScale(lc.Power),
			light.WithAttenuation(lc.Range, 1, 0, 0),
		}
		if lt == light.LightTypeSpot {
			opts = append(opts, light.WithSpotlightRange(lc.SpotInner, lc.SpotOuter, 1))
		}
		if lc.CastShadows != nil {
			opts = append(opts, light.WithCastsShadows(*lc.CastShadows))
		}
		lights = append(lights, light.NewLight(lt, opts...))
	}

	casters := make([]scene.Caster, 0, len(cfg.Casters))
	for _, cc := range cfg.Casters {
		casters = append(casters, scene.Caster{
			Bounds:          common.NewAabbFromCenter(mgl32.Vec3(cc.Center), mgl32.Vec3(cc.HalfSize)),
			RenderQueue:     cc.RenderQueue,
			VisibilityFlags: light.DefaultVisibilityFlags,
		})
	}
	if len(cfg.CasterScenes) > 0 {
		ld := loader.NewLoader(loader.WithLogger(log))
		for _, f := range cfg.CasterScenes {
			imported, err := ld.Load(f)
			if err != nil {
				return nil, nil, err
			}
			casters = append(casters, imported...)
		}
	}

	sc := scene.NewScene("lumen",
		scene.WithLogger(log),
		scene.WithLights(lights...),
		scene.WithCasters(casters...),
	)
	cc := cfg.Camera
	cam := sc.CreateCamera(
		camera.WithName("viewer"),
		camera.WithPosition(cc.Position[0], cc.Position[1], cc.Position[2]),
		camera.WithLookAt(cc.LookAt[0], cc.LookAt[1], cc.LookAt[2]),
		camera.WithFov(mgl32.DegToRad(cc.Fov)),
		camera.WithAspect(float32(cfg.Window.Width)/float32(cfg.Window.Height)),
		camera.WithNear(cc.Near),
		camera.WithFar(cc.Far),
		camera.WithViewport(camera.Viewport{
			Width:          float32(cfg.Window.Width),
			Height:         float32(cfg.Window.Height),
			VisibilityMask: light.DefaultVisibilityFlags,
		}),
	)
	return sc, cam, nil
}

func parseLightType(name string) (light.LightType, error) {
	for t := light.LightType(0); t < light.NumLightTypes; t++ {
		if strings.EqualFold(name, t.String()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown light type %q", name)
}

// nodeDefinition loads cfg.NodeDefinition, or the built-in node when unset.
func nodeDefinition(cfg *Config) (*shadow.NodeDefinition, error) {
	if cfg.NodeDefinition != "" {
		return shadow.LoadNodeDefinition(cfg.NodeDefinition)
	}
	data, err := assets.ReadFile("assets/default_node.toml")
	if err != nil {
		return nil, err
	}
	return shadow.ParseNodeDefinition(data, shadow.FormatTOML)
}

func buildProbes(cfg *Config, log *zap.Logger) probe.Collector {
	newCubemap := func(name string) *buffer.Texture {
		tex := buffer.NewTexture(name, probeCubemapSize, probeCubemapSize)
		tex.NumMipmaps = 8
		return tex
	}
	probes := probe.NewCollector(newCubemap("probe_blend"), probe.WithLogger(log))
	for _, pc := range cfg.Probes {
		probes.CreateProbe(
			probe.WithName(pc.Name),
			probe.WithArea(mgl32.Vec3(pc.Center), mgl32.Vec3(pc.HalfSize), mgl32.QuatIdent()),
			probe.WithInnerRegion(pc.Inner),
			probe.WithTexture(newCubemap(pc.Name)),
		)
	}
	return probes
}

func buildClustered(cfg *Config, sc scene.Scene, buffers buffer.Manager, log *zap.Logger) *forwardplus.Clustered {
	g := cfg.Grid
	opts := []forwardplus.ClusteredBuilderOption{
		forwardplus.WithGridSize(
			common.Coalesce(g.Width, forwardplus.DefaultGridWidth),
			common.Coalesce(g.Height, forwardplus.DefaultGridHeight),
			common.Coalesce(g.Slices, forwardplus.DefaultNumSlices),
		),
		forwardplus.WithLightsPerCell(common.Coalesce(g.LightsPerCell, forwardplus.DefaultLightsPerCell)),
		forwardplus.WithDepthRange(
			common.Coalesce(g.MinDistance, forwardplus.DefaultMinDistance),
			common.Coalesce(g.MaxDistance, forwardplus.DefaultMaxDistance),
		),
		forwardplus.WithMaxLights(common.Coalesce(g.MaxLights, forwardplus.DefaultMaxLights)),
		forwardplus.WithBaseOptions(forwardplus.WithLogger(log)),
	}
	if g.Workers > 0 {
		opts = append(opts, forwardplus.WithWorkers(g.Workers))
	}
	return forwardplus.NewClustered(sc, buffers, opts...)
}

// orbitPointLights returns a render callback that swings the point lights
// around the vertical axis so the grid and shadow casters change per frame.
func orbitPointLights(sc scene.Scene) func(float32) {
	var t float32
	return func(dt float32) {
		t += dt
		for _, l := range sc.Lights() {
			if l.Type() != light.LightTypePoint {
				continue
			}
			p := l.Position()
			r := math32.Hypot(p.X(), p.Z())
			a := math32.Atan2(p.Z(), p.X()) + dt*0.5
			l.SetPosition(mgl32.Vec3{r * math32.Cos(a), p.Y(), r * math32.Sin(a)})
		}
	}
}

// runDemo lights the configured scene for cfg.Frames frames, or until ctx is
// done when Frames is not positive.
//
// Parameters:
//   - ctx: cancels the frame loop
//   - cfg: the run config with defaults applied
//   - log: the logger handed to every component
//
// Returns:
//   - uint64: the number of frames rendered
//   - error: a setup, frame or release error
func runDemo(ctx context.Context, cfg *Config, log *zap.Logger) (uint64, error) {
	def, err := nodeDefinition(cfg)
	if err != nil {
		return 0, err
	}

	b, err := newBackend(cfg, log)
	if err != nil {
		return 0, err
	}
	sc, cam, err := buildScene(cfg, log)
	if err != nil {
		b.buffers.Release()
		return 0, errors.Join(err, b.close())
	}

	node, err := shadow.NewNode(def, sc, b.buffers,
		shadow.WithLogger(log),
		shadow.WithFinalTargetSize(cfg.Window.Width, cfg.Window.Height),
	)
	if err != nil {
		b.buffers.Release()
		return 0, errors.Join(err, b.close())
	}

	clustered := buildClustered(cfg, sc, b.buffers, log)
	c := engine.NewCompositor(sc, b.buffers,
		engine.WithLogger(log),
		engine.WithShadowNode(node),
		engine.WithClustered(clustered),
		engine.WithProbes(buildProbes(cfg, log)),
		engine.WithPrograms(b.programs),
		engine.WithWindow(b.window),
		engine.WithProfiling(cfg.Profile),
		engine.WithRenderFrameLimit(cfg.FPS),
	)
	// The lit shaders are specialized on the grid layout.
	if err := b.loadShaders(clustered.PassProperties()); err != nil {
		return 0, errors.Join(err, c.Release(), b.close())
	}
	orbit := orbitPointLights(sc)
	c.SetRenderCallback(func(dt float32) {
		orbit(dt)
		if b.window != nil {
			b.window.SwapBuffers()
		}
	})

	log.Info("lumen starting",
		zap.String("backend", cfg.Backend),
		zap.String("node", def.Name),
		zap.Int("shadowMaps", len(def.ShadowMaps)),
		zap.Int("lights", len(sc.Lights())),
		zap.Int("frames", cfg.Frames))

	runErr := c.Run(ctx, cam, max(cfg.Frames, 0))
	if errors.Is(runErr, engine.ErrQuit) || errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	frames := c.FramesRendered()
	log.Info("lumen finished",
		zap.Uint64("frames", frames),
		zap.Int("activeCasters", node.NumActiveShadowCastingLights()),
		zap.Int("collectedLights", clustered.NumCollectedLights()))

	return frames, errors.Join(runErr, c.Release(), b.close())
}
