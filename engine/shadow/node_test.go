package shadow

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-lumen/common"
	"github.com/Carmen-Shannon/oxy-lumen/engine/camera"
	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-lumen/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDefinition has one uniform shadow map per slot, all in one atlas.
func testDefinition(slotTypes ...uint8) *NodeDefinition {
	def := &NodeDefinition{
		Name:           "test",
		MaxRq:          scene.DefaultRenderQueueMax,
		LightTypesMask: slotTypes,
		Textures:       []TextureDefinition{{Name: "atlas", Width: 1024, Height: 1024, MRTCount: 1}},
	}
	for i := range slotTypes {
		def.ShadowMaps = append(def.ShadowMaps, ShadowMapDefinition{
			Texture:         "atlas",
			Light:           i,
			UvLength:        common.Vec2{1, 1},
			SharesSetupWith: NoSharedSetup,
		})
	}
	return def
}

func pointAt(x float32, opts ...light.LightBuilderOption) light.Light {
	return light.NewLight(light.LightTypePoint, append([]light.LightBuilderOption{light.WithPosition(x, 0, 0)}, opts...)...)
}

func newViewer() camera.Camera {
	return camera.NewCamera(
		camera.WithName("viewer"),
		camera.WithViewport(camera.Viewport{Width: 800, Height: 600, VisibilityMask: light.DefaultVisibilityFlags}),
	)
}

func newTestNode(t *testing.T, def *NodeDefinition, lights ...light.Light) (Node, scene.Scene) {
	t.Helper()
	sc := scene.NewScene("test", scene.WithLights(lights...))
	sc.UpdateGlobalLightList()
	n, err := NewNode(def, sc, buffer.NewManager(buffer.NewMemoryDevice(false)))
	require.NoError(t, err)
	return n, sc
}

func slotLights(n Node) []light.Light {
	var out []light.Light
	for _, lc := range n.ShadowCastingLights() {
		out = append(out, lc.Light)
	}
	return out
}

func TestFewerLightsThanSlots(t *testing.T) {
	p := light.LightTypePoint.Mask()
	a, b := pointAt(5), pointAt(1)
	n, _ := newTestNode(t, testDefinition(p, p, p, p), a, b)

	n.BuildClosestLightList(newViewer(), nil)

	assert.Equal(t, []light.Light{b, a, nil, nil}, slotLights(n))
	assert.Equal(t, 2, n.NumActiveShadowCastingLights())
	assert.True(t, n.IsShadowMapIdxActive(1))
	assert.False(t, n.IsShadowMapIdxActive(2))
	assert.Equal(t, []bool{true, true}, n.AffectedLights())
}

func TestMoreLightsThanSlotsKeepsClosest(t *testing.T) {
	p := light.LightTypePoint.Mask()
	lights := []light.Light{pointAt(40), pointAt(10), pointAt(50), pointAt(20), pointAt(30)}
	n, _ := newTestNode(t, testDefinition(p, p), lights...)

	n.BuildClosestLightList(newViewer(), nil)

	assert.Equal(t, []light.Light{lights[1], lights[3]}, slotLights(n))
	assert.Equal(t, []bool{false, true, false, true, false}, n.AffectedLights())
}

func TestDirectionalLightsFillDirectionalSlotsFirst(t *testing.T) {
	d, p := light.LightTypeDirectional.Mask(), light.LightTypePoint.Mask()

	var lights []light.Light
	for x := float32(10); x >= 1; x-- {
		lights = append(lights, pointAt(x))
	}
	dirs := []light.Light{
		light.NewLight(light.LightTypeDirectional, light.WithName("d0")),
		light.NewLight(light.LightTypeDirectional, light.WithName("d1")),
		light.NewLight(light.LightTypeDirectional, light.WithName("d2")),
	}
	lights = append(lights, dirs...)
	n, _ := newTestNode(t, testDefinition(d, d, p, p, p), lights...)

	n.BuildClosestLightList(newViewer(), nil)

	// Points were added at x = 10 down to 1, so the closest three are the last three.
	assert.Equal(t, []light.Light{dirs[0], dirs[1], lights[9], lights[8], lights[7]}, slotLights(n))
	assert.Equal(t, 5, n.NumActiveShadowCastingLights())

	affected := n.AffectedLights()
	require.Len(t, affected, 13)
	assert.True(t, affected[dirs[0].GlobalIndex()])
	assert.True(t, affected[dirs[1].GlobalIndex()])
	assert.False(t, affected[dirs[2].GlobalIndex()], "third directional light has no slot")
	for i, lc := range n.ShadowCastingLights() {
		assert.Equal(t, lc.Light.GlobalIndex(), lc.GlobalIndex, "slot %d", i)
	}
}

func TestOneDirectionalThreePointSlots(t *testing.T) {
	d := light.LightTypeDirectional.Mask()
	ps := light.LightTypePoint.Mask() | light.LightTypeSpot.Mask()

	var points []light.Light
	for x := float32(10); x >= 1; x-- {
		points = append(points, pointAt(x))
	}
	dirs := []light.Light{
		light.NewLight(light.LightTypeDirectional, light.WithName("d0")),
		light.NewLight(light.LightTypeDirectional, light.WithName("d1")),
		light.NewLight(light.LightTypeDirectional, light.WithName("d2")),
	}
	n, _ := newTestNode(t, testDefinition(d, ps, ps, ps), append(append([]light.Light{}, points...), dirs...)...)

	n.BuildClosestLightList(newViewer(), nil)

	// Directional lights sort first globally, so d0 takes the only directional slot.
	assert.Equal(t, []light.Light{dirs[0], points[9], points[8], points[7]}, slotLights(n))
	assert.Equal(t, 4, n.NumActiveShadowCastingLights())

	affected := n.AffectedLights()
	require.Len(t, affected, 13)
	assert.Equal(t, 0, dirs[0].GlobalIndex())
	assert.True(t, affected[dirs[0].GlobalIndex()])
	assert.False(t, affected[dirs[1].GlobalIndex()])
	assert.False(t, affected[dirs[2].GlobalIndex()])

	unshadowed := 0
	for _, a := range affected {
		if !a {
			unshadowed++
		}
	}
	assert.Equal(t, 9, unshadowed, "thirteen lights, four slots")

	unshadowedPoints := 0
	for _, l := range points {
		if !affected[l.GlobalIndex()] {
			unshadowedPoints++
		}
	}
	assert.Equal(t, 7, unshadowedPoints)
}

func TestSharedSlotTypesAcceptAnyMatchingLight(t *testing.T) {
	all := light.LightTypeDirectional.Mask() | light.LightTypePoint.Mask() | light.LightTypeSpot.Mask()
	spot := light.NewLight(light.LightTypeSpot, light.WithPosition(2, 0, 0))
	point := pointAt(1)
	n, _ := newTestNode(t, testDefinition(light.LightTypeSpot.Mask(), all), spot, point)

	n.BuildClosestLightList(newViewer(), nil)

	// The point light is closer but only fits the second slot.
	assert.Equal(t, []light.Light{spot, point}, slotLights(n))
}

func TestInvisibleAndNonCastingLightsAreSkipped(t *testing.T) {
	p := light.LightTypePoint.Mask()
	hidden := pointAt(1, light.WithVisible(false))
	noShadow := pointAt(2, light.WithCastsShadows(false))
	masked := pointAt(3, light.WithVisibilityFlags(0x2))
	far := pointAt(40)
	n, sc := newTestNode(t, testDefinition(p, p), hidden, noShadow, masked, far)
	sc.SetVisibilityMask(0x1)

	n.BuildClosestLightList(newViewer(), nil)

	assert.Equal(t, []light.Light{far, nil}, slotLights(n))
	assert.Equal(t, 1, n.NumActiveShadowCastingLights())
}

func TestBuildClosestLightListIsMemoizedPerCameraAndFrame(t *testing.T) {
	p := light.LightTypePoint.Mask()
	far := pointAt(50)
	n, sc := newTestNode(t, testDefinition(p), far)
	viewer := newViewer()

	n.BuildClosestLightList(viewer, nil)
	require.Equal(t, []light.Light{far}, slotLights(n))

	closer := pointAt(1)
	sc.AddLight(closer)
	sc.UpdateGlobalLightList()

	n.BuildClosestLightList(viewer, nil)
	assert.Equal(t, []light.Light{far}, slotLights(n), "same camera and frame keeps the previous assignment")

	n.BuildClosestLightList(newViewer(), nil)
	assert.Equal(t, []light.Light{closer}, slotLights(n), "another camera rebuilds")

	n.BuildClosestLightList(viewer, nil)
	assert.Equal(t, []light.Light{closer}, slotLights(n))

	sc.AdvanceFrame()
	require.NoError(t, sc.RemoveLight(closer))
	sc.UpdateGlobalLightList()
	n.BuildClosestLightList(viewer, nil)
	assert.Equal(t, []light.Light{far}, slotLights(n), "a new frame rebuilds")
}

func TestCastersBoxUsesDefinitionRenderQueues(t *testing.T) {
	def := testDefinition(light.LightTypePoint.Mask())
	def.MinRq, def.MaxRq = 10, 20
	n, sc := newTestNode(t, def, pointAt(1))
	sc.AddCaster(scene.Caster{Bounds: common.NewAabbFromCenter(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}), RenderQueue: 15, VisibilityFlags: 1})
	sc.AddCaster(scene.Caster{Bounds: common.NewAabbFromCenter(mgl32.Vec3{50, 0, 0}, mgl32.Vec3{1, 1, 1}), RenderQueue: 30, VisibilityFlags: 1})

	assert.True(t, n.CastersBox().IsNull())
	n.BuildClosestLightList(newViewer(), nil)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, n.CastersBox().Max)
}

func TestUpdateRunsPassesInRenderToTextureStage(t *testing.T) {
	d := light.LightTypeDirectional.Mask()
	sun := light.NewLight(light.LightTypeDirectional)
	sc := scene.NewScene("test", scene.WithLights(sun))
	sc.UpdateGlobalLightList()

	var stages []scene.RenderStage
	n, err := NewNode(testDefinition(d), sc, buffer.NewManager(buffer.NewMemoryDevice(false)),
		WithPassExecutor(func(p *Pass) { stages = append(stages, sc.RenderStage()) }))
	require.NoError(t, err)

	pass := &Pass{Name: "sun", Type: PassScene, ShadowMapIdx: 0, ViewportSize: common.Vec2{1024, 1024}, SupportedLightTypes: d}
	n.PostInitializePass(pass)
	n.PostInitializePass(pass)
	assert.Same(t, n.ShadowMapCamera(0), pass.CustomCamera)
	assert.Same(t, n.ShadowMapCamera(0), pass.CustomCullCamera)

	viewer := newViewer()
	n.Update(viewer, viewer)

	assert.Equal(t, []scene.RenderStage{scene.RenderStageRenderToTexture}, stages)
	assert.Equal(t, scene.RenderStageNormal, sc.RenderStage())

	tex := n.ShadowMapCamera(0)
	assert.Equal(t, camera.ProjectionOrthographic, tex.ProjectionType())
	assert.Same(t, viewer, tex.LodCamera())
	minDepth, maxDepth := n.MinMaxDepthRange(0)
	assert.InDelta(t, 1, minDepth, 1e-6)
	assert.InDelta(t, 3*light.DefaultShadowFarDistance, maxDepth, 1e-3)
	minFor, maxFor := n.MinMaxDepthRangeFor(tex)
	assert.Equal(t, minDepth, minFor)
	assert.Equal(t, maxDepth, maxFor)
}

func TestUpdateLeavesInactiveShadowCamerasAlone(t *testing.T) {
	n, _ := newTestNode(t, testDefinition(light.LightTypeSpot.Mask()), pointAt(1))
	before := n.ShadowMapCamera(0).ViewProjectionMatrix()

	n.Update(newViewer(), nil)

	assert.False(t, n.IsShadowMapIdxActive(0))
	assert.Equal(t, before, n.ShadowMapCamera(0).ViewProjectionMatrix())
	minDepth, maxDepth := n.MinMaxDepthRange(0)
	assert.Equal(t, light.DefaultMinDepth, minDepth)
	assert.Equal(t, light.DefaultMaxDepth, maxDepth)
}

func recoverError(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err, _ = r.(error)
		}
	}()
	f()
	return nil
}

func TestPostInitializePassViewportMismatchPanics(t *testing.T) {
	d, p := light.LightTypeDirectional.Mask(), light.LightTypePoint.Mask()
	n, _ := newTestNode(t, testDefinition(d|p))

	first := &Pass{Name: "a", Type: PassScene, ShadowMapIdx: 0, ViewportSize: common.Vec2{1024, 1024}, SupportedLightTypes: d}
	require.NoError(t, recoverError(func() { n.PostInitializePass(first) }))

	// Different light type: no conflict.
	other := &Pass{Name: "b", Type: PassScene, ShadowMapIdx: 0, ViewportSize: common.Vec2{512, 512}, SupportedLightTypes: p}
	require.NoError(t, n.ValidatePass(other))
	require.NoError(t, recoverError(func() { n.PostInitializePass(other) }))

	bad := &Pass{Name: "c", Type: PassScene, ShadowMapIdx: 0, ViewportSize: common.Vec2{2048, 2048}, SupportedLightTypes: d | p}
	assert.ErrorIs(t, n.ValidatePass(bad), ErrViewportMismatch)
	assert.ErrorIs(t, recoverError(func() { n.PostInitializePass(bad) }), ErrViewportMismatch)
	assert.Nil(t, bad.CustomCamera)

	// Passes that are not scene passes, or are out of range, are not checked.
	assert.NoError(t, n.ValidatePass(&Pass{Type: PassClear, ShadowMapIdx: 0, ViewportSize: common.Vec2{1, 1}, SupportedLightTypes: d}))
	assert.NoError(t, n.ValidatePass(&Pass{Type: PassScene, ShadowMapIdx: 5, ViewportSize: common.Vec2{1, 1}, SupportedLightTypes: d}))
}

func TestSetShadowMapsToPass(t *testing.T) {
	p := light.LightTypePoint.Mask()
	lights := []light.Light{pointAt(1), pointAt(2), pointAt(3), pointAt(4)}
	mgr := buffer.NewManager(buffer.NewMemoryDevice(false))
	sc := scene.NewScene("test", scene.WithLights(lights...))
	sc.UpdateGlobalLightList()
	n, err := NewNode(testDefinition(p, p), sc, mgr)
	require.NoError(t, err)
	n.BuildClosestLightList(newViewer(), nil)

	rend := &scene.Renderable{}
	for _, l := range lights {
		rend.Lights = append(rend.Lights, light.LightClosest{Light: l, GlobalIndex: l.GlobalIndex()})
	}

	pass := &MaterialPass{MaxSimultaneousLights: 3, ShadowTextureUnits: make([]ShadowTextureUnit, 3)}
	params := &AutoParamSource{}
	list := n.SetShadowMapsToPass(rend, pass, params, 0)
	require.Len(t, list, 3)
	assert.Equal(t, []light.Light{lights[0], lights[1], lights[2]}, []light.Light{list[0].Light, list[1].Light, list[2].Light})

	atlas := n.ContiguousShadowMapTextures()[0]
	assert.Same(t, atlas, pass.ShadowTextureUnits[0].Texture)
	assert.Equal(t, 1, pass.ShadowTextureUnits[1].ShadowMapIdx)
	assert.Same(t, mgr.NullShadowTexture(), pass.ShadowTextureUnits[2].Texture)
	assert.Equal(t, -1, pass.ShadowTextureUnits[2].ShadowMapIdx)
	assert.Same(t, n.ShadowMapCamera(0), params.TextureProjector(0))
	assert.Same(t, n.ShadowMapCamera(1), params.TextureProjector(1))
	assert.Nil(t, params.TextureProjector(2))

	// Second iteration: one shadow slot left, then the first unshadowed light.
	pass = &MaterialPass{MaxSimultaneousLights: 2, ShadowTextureUnits: make([]ShadowTextureUnit, 2)}
	list = n.SetShadowMapsToPass(rend, pass, nil, 1)
	require.Len(t, list, 2)
	assert.Same(t, lights[1], list[0].Light)
	assert.Same(t, lights[2], list[1].Light)
	assert.Equal(t, 1, pass.ShadowTextureUnits[0].ShadowMapIdx)
	assert.Equal(t, -1, pass.ShadowTextureUnits[1].ShadowMapIdx)

	// Past every shadow slot the unshadowed lights are skipped by startLight.
	list = n.SetShadowMapsToPass(rend, &MaterialPass{MaxSimultaneousLights: 3}, nil, 3)
	assert.Empty(t, list)
}

func TestQueriesOutOfRange(t *testing.T) {
	n, _ := newTestNode(t, testDefinition(light.LightTypePoint.Mask()))

	assert.True(t, n.IsShadowMapIdxInValidRange(0))
	assert.False(t, n.IsShadowMapIdxInValidRange(1))
	assert.True(t, n.IsShadowMapIdxActive(1), "out of range maps report active")
	assert.False(t, n.IsShadowMapIdxActive(0))
	assert.Zero(t, n.ShadowMapLightTypeMask(0))
	assert.Nil(t, n.ShadowMapCamera(3))
	assert.Nil(t, n.PssmSplits(0))
	assert.Equal(t, -1, n.IndexToContiguousShadowMapTex(4))
	assert.Equal(t, mgl32.Ident4(), n.ViewProjectionMatrix(9))

	minDepth, maxDepth := n.MinMaxDepthRangeFor(newViewer())
	assert.Equal(t, light.DefaultMinDepth, minDepth)
	assert.Equal(t, light.DefaultMaxDepth, maxDepth)
}

func TestViewProjectionMatrixMapsIntoUvRect(t *testing.T) {
	d := light.LightTypeDirectional.Mask()
	def := testDefinition(d)
	def.ShadowMaps[0].UvOffset = common.Vec2{0.5, 0}
	def.ShadowMaps[0].UvLength = common.Vec2{0.5, 0.5}
	n, _ := newTestNode(t, def, light.NewLight(light.LightTypeDirectional))
	n.Update(newViewer(), nil)
	assert.Equal(t, d, n.ShadowMapLightTypeMask(0))

	tex := n.ShadowMapCamera(0)
	center := tex.Position().Add(tex.Direction().Mul((tex.Near() + tex.Far()) / 2))
	uv := mgl32.TransformCoordinate(center, n.ViewProjectionMatrix(0))
	assert.InDelta(t, 0.75, uv.X(), 1e-3)
	assert.InDelta(t, 0.25, uv.Y(), 1e-3)
}

func TestNewNodeRejectsInvalidMrtIndex(t *testing.T) {
	def := testDefinition(light.LightTypePoint.Mask(), light.LightTypePoint.Mask())
	def.ShadowMaps[1].MrtIndex = 1
	sc := scene.NewScene("test")

	_, err := NewNode(def, sc, buffer.NewManager(buffer.NewMemoryDevice(false)))
	assert.ErrorIs(t, err, ErrInvalidMrtIndex)
	assert.Empty(t, sc.Cameras(), "cameras created before the error are destroyed")
}

func TestNewNodeRejectsInvalidDefinition(t *testing.T) {
	def := testDefinition(light.LightTypePoint.Mask())
	def.ShadowMaps[0].Light = 3
	_, err := NewNode(def, scene.NewScene("test"), buffer.NewManager(buffer.NewMemoryDevice(false)))
	assert.True(t, errors.Is(err, ErrInvalidDefinition))
}

func TestContiguousTexturesAreDeduplicated(t *testing.T) {
	p := light.LightTypePoint.Mask()
	def := testDefinition(p, p, p)
	def.Textures = append(def.Textures, TextureDefinition{Name: "screen", WidthFactor: 0.5, HeightFactor: 0.5, MRTCount: 2})
	def.ShadowMaps[2].Texture = "screen"
	def.ShadowMaps[2].MrtIndex = 1

	n, _ := newTestNode(t, def)
	tex := n.ContiguousShadowMapTextures()
	require.Len(t, tex, 2)
	assert.Equal(t, 0, n.IndexToContiguousShadowMapTex(0))
	assert.Equal(t, 0, n.IndexToContiguousShadowMapTex(1))
	assert.Equal(t, 1, n.IndexToContiguousShadowMapTex(2))

	screen := n.LocalTextures("screen")
	require.Len(t, screen, 2)
	assert.Same(t, screen[1], tex[1])
	assert.Equal(t, light.ShadowMapResolution/2, screen[1].Width)
	assert.Nil(t, n.LocalTextures("missing"))

	n.FinalTargetResized(800, 600)
	resized := n.LocalTextures("screen")
	assert.NotSame(t, screen[1], resized[1])
	assert.Equal(t, 400, resized[1].Width)
	assert.Equal(t, 300, resized[1].Height)
	assert.Same(t, resized[1], n.ContiguousShadowMapTextures()[1])
	assert.Same(t, tex[0], n.ContiguousShadowMapTextures()[0], "fixed size textures survive a resize")
}

func TestReleaseDestroysCameras(t *testing.T) {
	n, sc := newTestNode(t, testDefinition(light.LightTypePoint.Mask(), light.LightTypePoint.Mask()))
	require.Len(t, sc.Cameras(), 2)

	require.NoError(t, n.Release())
	assert.Empty(t, sc.Cameras())
}

func TestPartialSortIndices(t *testing.T) {
	values := []int{50, 10, 40, 30, 20, 60}
	less := func(a, b int) bool { return values[a] < values[b] }

	assert.Equal(t, []int{1, 4, 3}, partialSortIndices(nil, 0, len(values), 3, less))
	assert.Equal(t, []int{4, 3}, partialSortIndices(nil, 2, len(values), 2, less))
	assert.Equal(t, []int{9, 1}, partialSortIndices([]int{9}, 0, 3, 1, less), "appends after existing entries")
	assert.Empty(t, partialSortIndices(nil, 0, len(values), 0, less))
	assert.Len(t, partialSortIndices(nil, 0, 2, 5, less), 2)
}
