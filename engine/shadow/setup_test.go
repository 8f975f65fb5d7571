package shadow

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-lumen/common"
	"github.com/Carmen-Shannon/oxy-lumen/engine/camera"
	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateSplitPoints(t *testing.T) {
	s := NewPSSMSetup(3, 1)
	initial := s.SplitPoints()
	require.Len(t, initial, 4)
	assert.InDelta(t, 0.1, initial[0], 1e-6)
	assert.InDelta(t, 100, initial[3], 1e-6)

	s.CalculateSplitPoints(3, 1, 100, 1)
	assert.InDeltaSlice(t, []float32{1, 4.6416, 21.5443, 100}, s.SplitPoints(), 1e-3)

	s.CalculateSplitPoints(3, 1, 100, 0)
	assert.InDeltaSlice(t, []float32{1, 34, 67, 100}, s.SplitPoints(), 1e-3)

	s.CalculateSplitPoints(1, 2, 50, 0.5)
	assert.Equal(t, []float32{2, 50}, s.SplitPoints())
	assert.Equal(t, 1, s.NumSplits())

	assert.Panics(t, func() { s.CalculateSplitPoints(0, 1, 2, 0.5) })
}

func TestCalculateSplitPointsBlend(t *testing.T) {
	s := NewPSSMSetup(2, 0)
	s.CalculateSplitPoints(2, 1, 100, 0.5)
	// Halfway between the logarithmic split 10 and the linear split 50.5.
	assert.InDelta(t, 30.25, s.SplitPoints()[1], 1e-3)
}

func TestSplitPadding(t *testing.T) {
	s := NewPSSMSetup(2, 1.5)
	assert.Equal(t, float32(1.5), s.SplitPadding())
	s.SetSplitPadding(3)
	assert.Equal(t, float32(3), s.SplitPadding())
}

// assertCovers checks that every point lands inside the shadow camera's clip
// volume.
func assertCovers(t *testing.T, shadowCam camera.Camera, points []mgl32.Vec3) {
	t.Helper()
	vp := shadowCam.ViewProjectionMatrix()
	const eps float32 = 1e-3
	for i, p := range points {
		c := mgl32.TransformCoordinate(p, vp)
		assert.LessOrEqual(t, math32.Abs(c.X()), 1+eps, "point %d x", i)
		assert.LessOrEqual(t, math32.Abs(c.Y()), 1+eps, "point %d y", i)
		assert.GreaterOrEqual(t, c.Z(), -eps, "point %d z", i)
		assert.LessOrEqual(t, c.Z(), 1+eps, "point %d z", i)
	}
}

func directionalContext(viewer camera.Camera) SetupContext {
	sun := light.NewLight(light.LightTypeDirectional, light.WithDirection(0.3, -1, 0.2), light.WithShadowFarDistance(60))
	return SetupContext{
		Viewer:       viewer,
		Light:        sun,
		ShadowCamera: camera.NewCamera(),
		ViewportSize: common.UnsetViewportSize,
		CastersBox:   common.NullAabb(),
	}
}

func TestFocusedSetupCoversViewFrustum(t *testing.T) {
	viewer := camera.NewCamera(camera.WithPosition(3, 5, 10), camera.WithLookAt(0, 0, 0), camera.WithFar(40))
	ctx := directionalContext(viewer)

	s := NewFocusedSetup()
	s.ShadowCamera(ctx)

	assert.Equal(t, camera.ProjectionOrthographic, ctx.ShadowCamera.ProjectionType())
	corners := viewerCorners(viewer, viewer.Near(), 40)
	assertCovers(t, ctx.ShadowCamera, corners[:])
	assert.Equal(t, ctx.ShadowCamera.Near(), s.MinDistance())
	assert.Equal(t, ctx.ShadowCamera.Far(), s.MaxDistance())

	w, _ := ctx.ShadowCamera.OrthoWindow()
	assert.Less(t, w, 2*float32(60), "focusing shrinks the window below the uniform one")
}

func TestFocusedSetupExtendsDepthToCasters(t *testing.T) {
	viewer := camera.NewCamera(camera.WithPosition(0, 2, 10), camera.WithLookAt(0, 0, 0), camera.WithFar(20))
	ctx := directionalContext(viewer)
	// A caster far up the light ray through the point the viewer looks at.
	caster := ctx.Light.Direction().Mul(-80)
	ctx.CastersBox = common.NewAabbFromCenter(caster, mgl32.Vec3{2, 2, 2})

	NewFocusedSetup().ShadowCamera(ctx)

	assertCovers(t, ctx.ShadowCamera, []mgl32.Vec3{caster})
}

func TestFocusedSetupFallsBackForPositionalLights(t *testing.T) {
	spot := light.NewLight(light.LightTypeSpot, light.WithSpotlightRange(20, 60, 1), light.WithAttenuation(25, 1, 0, 0))
	tex := camera.NewCamera()
	s := NewFocusedSetup()
	s.ShadowCamera(SetupContext{Viewer: camera.NewCamera(), Light: spot, ShadowCamera: tex, CastersBox: common.NullAabb()})

	assert.Equal(t, camera.ProjectionPerspective, tex.ProjectionType())
	assert.InDelta(t, mgl32.DegToRad(60)*spotFovScale, tex.Fov(), 1e-5)
	assert.InDelta(t, 25, s.MaxDistance(), 1e-5)
	assert.InDelta(t, light.DefaultShadowNear, s.MinDistance(), 1e-6)
}

func TestUniformSetupSpotFovIsClamped(t *testing.T) {
	spot := light.NewLight(light.LightTypeSpot, light.WithSpotlightRange(100, 170, 1))
	tex := camera.NewCamera()
	NewUniformSetup().ShadowCamera(SetupContext{Viewer: camera.NewCamera(), Light: spot, ShadowCamera: tex})
	assert.InDelta(t, float32(maxSpotFov), tex.Fov(), 1e-5)
}

func TestUniformSetupPointLooksAtViewer(t *testing.T) {
	point := light.NewLight(light.LightTypePoint, light.WithPosition(0, 0, -10))
	tex := camera.NewCamera()
	tex.SetPosition(point.Position())
	NewUniformSetup().ShadowCamera(SetupContext{Viewer: camera.NewCamera(camera.WithPosition(0, 0, 5)), Light: point, ShadowCamera: tex})

	assert.InDelta(t, pointFov, tex.Fov(), 1e-5)
	assert.InDelta(t, 1, tex.Direction().Z(), 1e-4)
}

func TestUniformSetupSnapsDirectionalToTexels(t *testing.T) {
	viewer := camera.NewCamera(camera.WithPosition(0.37, 0, 0))
	ctx := directionalContext(viewer)
	ctx.ViewportSize = common.Vec2{120, 120}
	NewUniformSetup().ShadowCamera(ctx)

	// Texel size is 2*60/120 = 1 world unit.
	local := ctx.Light.Orientation().Inverse().Rotate(ctx.ShadowCamera.Position())
	assert.InDelta(t, math32.Floor(local.X()+0.5), local.X(), 1e-3)
	assert.InDelta(t, math32.Floor(local.Y()+0.5), local.Y(), 1e-3)
}

func TestPSSMSetupCoversItsSplit(t *testing.T) {
	viewer := camera.NewCamera(camera.WithPosition(0, 3, 0), camera.WithLookAt(0, 3, -10), camera.WithNear(1), camera.WithFar(500))
	ctx := directionalContext(viewer)

	s := NewPSSMSetup(3, 0)
	s.CalculateSplitPoints(3, 1, 60, 0.95)
	splits := s.SplitPoints()
	for k := range 3 {
		ctx.Split = k
		s.ShadowCamera(ctx)
		corners := viewerCorners(viewer, splits[k], splits[k+1])
		assertCovers(t, ctx.ShadowCamera, corners[:])
	}
}

func TestNodeRecalculatesPssmSplits(t *testing.T) {
	d := light.LightTypeDirectional.Mask()
	def := testDefinition(d)
	def.ShadowMaps = nil
	for k := range 3 {
		sm := ShadowMapDefinition{
			Texture:         "atlas",
			Light:           0,
			Split:           k,
			Technique:       TechniquePSSM,
			NumSplits:       3,
			PssmLambda:      0.95,
			UvOffset:        common.Vec2{float32(k) / 3, 0},
			UvLength:        common.Vec2{1.0 / 3, 1},
			SharesSetupWith: NoSharedSetup,
		}
		if k > 0 {
			sm.SharesSetupWith = 0
		}
		def.ShadowMaps = append(def.ShadowMaps, sm)
	}
	sun := light.NewLight(light.LightTypeDirectional, light.WithShadowFarDistance(80))
	n, _ := newTestNode(t, def, sun)
	require.Len(t, n.(*nodeImpl).setups, 1, "shared maps reuse one setup")

	assert.Nil(t, n.PssmSplits(0), "inactive maps have no splits")

	viewer := camera.NewCamera(camera.WithNear(0.5), camera.WithFar(300))
	n.Update(viewer, nil)

	splits := n.PssmSplits(2)
	require.Len(t, splits, 4)
	assert.Equal(t, float32(0.5), splits[0])
	assert.Equal(t, float32(80), splits[3])
	assert.Equal(t, splits, n.PssmSplits(0))

	_, max0 := n.MinMaxDepthRange(0)
	assert.Greater(t, max0, float32(0))
	assert.NotEqual(t, n.ShadowMapCamera(0).Position(), n.ShadowMapCamera(2).Position(), "every split gets its own camera placement")
}
