package shadow

import (
	"github.com/Carmen-Shannon/oxy-lumen/common"
	"github.com/Carmen-Shannon/oxy-lumen/engine/camera"
	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

var worldUp = mgl32.Vec3{0, 1, 0}

// SetupContext carries what a CameraSetup needs to place one shadow camera.
type SetupContext struct {
	// Viewer is the camera the scene is rendered from.
	Viewer camera.Camera
	// Light is the light occupying the shadow map's slot.
	Light light.Light
	// ShadowCamera is the camera rendering the shadow map.
	ShadowCamera camera.Camera
	// Split is the PSSM split of the shadow map.
	Split int
	// ViewportSize is the recorded shadow map viewport for the light's type,
	// negative when no pass recorded one.
	ViewportSize common.Vec2
	// CastersBox bounds every shadow caster of the current frame.
	CastersBox common.Aabb
}

// CameraSetup fits a shadow camera to a light and the viewer.
type CameraSetup interface {
	// ShadowCamera sets the projection, position and orientation of
	// ctx.ShadowCamera. The node has already oriented the camera along
	// non-point lights and moved it to non-directional lights.
	//
	// Parameters:
	//   - ctx: the viewer, light and shadow camera for this shadow map
	ShadowCamera(ctx SetupContext)

	// MinDistance returns the near depth written by the last setup.
	MinDistance() float32

	// MaxDistance returns the far depth written by the last setup.
	MaxDistance() float32
}

// Shadow projection constants.
const (
	maxSpotFov       = 175 * math32.Pi / 180
	pointFov         = 120 * math32.Pi / 180
	spotFovScale     = 1.2
	directionalNear  = 1.0
	directionalDepth = 3.0
)

// UniformSetup projects a fixed area around the viewer. Directional lights
// get an orthographic camera covering twice the shadow far distance; spot
// and point lights get a perspective camera reaching their range.
type UniformSetup struct {
	minDistance float32
	maxDistance float32
}

var _ CameraSetup = &UniformSetup{}

// NewUniformSetup creates a uniform setup.
func NewUniformSetup() *UniformSetup {
	return &UniformSetup{minDistance: light.DefaultMinDepth, maxDistance: light.DefaultMaxDepth}
}

func (s *UniformSetup) ShadowCamera(ctx SetupContext) {
	tex := ctx.ShadowCamera
	l := ctx.Light

	switch l.Type() {
	case light.LightTypeDirectional:
		shadowFar := l.ShadowFarDistance()
		target := ctx.Viewer.Position().Add(ctx.Viewer.Direction().Mul(shadowFar * 0.5))
		pos := target.Sub(l.Direction().Mul(shadowFar * (directionalDepth * 0.5)))

		window := 2 * shadowFar
		if ctx.ViewportSize.X() > 0 {
			pos = snapInLightSpace(pos, l.Orientation(), window/ctx.ViewportSize.X())
		}

		tex.SetProjectionType(camera.ProjectionOrthographic)
		tex.SetOrientation(l.Orientation())
		tex.SetOrthoWindow(window, window)
		tex.SetNear(directionalNear)
		tex.SetFar(directionalDepth * shadowFar)
		tex.SetPosition(pos)

	case light.LightTypeSpot:
		tex.SetProjectionType(camera.ProjectionPerspective)
		tex.SetFov(min(l.SpotOuter()*spotFovScale, maxSpotFov))
		tex.SetAspect(1)
		tex.SetNear(light.DefaultShadowNear)
		tex.SetFar(positionalFar(l))

	case light.LightTypePoint:
		tex.SetProjectionType(camera.ProjectionPerspective)
		tex.SetFov(pointFov)
		tex.SetAspect(1)
		tex.SetNear(light.DefaultShadowNear)
		tex.SetFar(positionalFar(l))
		if toViewer := ctx.Viewer.Position().Sub(l.Position()); toViewer.Len() > 0 {
			tex.SetOrientation(common.LookRotation(toViewer, worldUp))
		}
	}

	s.minDistance = tex.Near()
	s.maxDistance = tex.Far()
}

func (s *UniformSetup) MinDistance() float32 {
	return s.minDistance
}

func (s *UniformSetup) MaxDistance() float32 {
	return s.maxDistance
}

// positionalFar is the far plane for a spot or point shadow camera.
func positionalFar(l light.Light) float32 {
	if r := l.AttenuationRange(); r > light.DefaultShadowNear {
		return r
	}
	return l.ShadowFarDistance()
}

// snapInLightSpace rounds the X and Y of a world position to texel steps in
// the frame of orient, so the shadow map does not shimmer as the viewer moves.
func snapInLightSpace(pos mgl32.Vec3, orient mgl32.Quat, texel float32) mgl32.Vec3 {
	local := orient.Inverse().Rotate(pos)
	local[0] = common.SnapToTexel(local[0], texel)
	local[1] = common.SnapToTexel(local[1], texel)
	return orient.Rotate(local)
}
