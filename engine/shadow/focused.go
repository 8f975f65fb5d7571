package shadow

import (
	"github.com/Carmen-Shannon/oxy-lumen/common"
	"github.com/Carmen-Shannon/oxy-lumen/engine/camera"
	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// minFocusExtent keeps a focused window from collapsing to zero.
const minFocusExtent = 1e-3

// FocusedSetup fits an orthographic shadow camera around the part of the view
// frustum that can receive shadows, clipped to the casters. Only directional
// lights are focused; spot and point lights use the uniform projection.
type FocusedSetup struct {
	UniformSetup
}

var _ CameraSetup = &FocusedSetup{}

// NewFocusedSetup creates a focused setup.
func NewFocusedSetup() *FocusedSetup {
	return &FocusedSetup{UniformSetup: *NewUniformSetup()}
}

func (s *FocusedSetup) ShadowCamera(ctx SetupContext) {
	if ctx.Light.Type() != light.LightTypeDirectional {
		s.UniformSetup.ShadowCamera(ctx)
		return
	}
	v := ctx.Viewer
	s.focus(ctx, v.Near(), min(v.Far(), ctx.Light.ShadowFarDistance()))
}

// focus fits the shadow camera to the viewer frustum slice [near, far].
func (s *FocusedSetup) focus(ctx SetupContext, near, far float32) {
	tex := ctx.ShadowCamera
	orient := ctx.Light.Orientation()
	lightView := common.ViewMatrix(mgl32.Vec3{}, orient)

	box := common.NullAabb()
	for _, c := range viewerCorners(ctx.Viewer, near, far) {
		box = box.MergePoint(mgl32.TransformCoordinate(c, lightView))
	}

	if !ctx.CastersBox.IsNull() {
		casters := ctx.CastersBox.Transform(lightView)
		clipped := box
		for i := range 2 {
			clipped.Min[i] = max(box.Min[i], casters.Min[i])
			clipped.Max[i] = min(box.Max[i], casters.Max[i])
		}
		// Casters off to the side leave the receivers unclipped.
		if clipped.Min[0] < clipped.Max[0] && clipped.Min[1] < clipped.Max[1] {
			box = clipped
		}
		// Casters between the light and the receivers must fit in depth.
		box.Max[2] = max(box.Max[2], casters.Max[2])
	}

	width := max(box.Max[0]-box.Min[0], minFocusExtent)
	height := max(box.Max[1]-box.Min[1], minFocusExtent)
	center := box.Center()
	if vp := ctx.ViewportSize; vp.X() > 0 && vp.Y() > 0 {
		center[0] = common.SnapToTexel(center[0], width/vp.X())
		center[1] = common.SnapToTexel(center[1], height/vp.Y())
	}

	eye := mgl32.Vec3{center[0], center[1], box.Max[2] + directionalNear}
	tex.SetProjectionType(camera.ProjectionOrthographic)
	tex.SetOrientation(orient)
	tex.SetOrthoWindow(width, height)
	tex.SetNear(directionalNear)
	tex.SetFar(max(eye[2]-box.Min[2], directionalNear+minFocusExtent))
	tex.SetPosition(orient.Rotate(eye))

	s.minDistance = tex.Near()
	s.maxDistance = tex.Far()
}

// viewerCorners returns the world-space corners of the viewer frustum slice
// between near and far.
func viewerCorners(v camera.Camera, near, far float32) [8]mgl32.Vec3 {
	invView := v.ViewMatrix().Inv()
	if v.ProjectionType() != camera.ProjectionOrthographic {
		return common.FrustumCorners(invView, v.Fov(), v.Aspect(), near, far)
	}

	var out [8]mgl32.Vec3
	w, h := v.OrthoWindow()
	hw, hh := w*0.5, h*0.5
	for i, d := range [2]float32{near, far} {
		local := [4]mgl32.Vec3{
			{-hw, -hh, -d},
			{hw, -hh, -d},
			{hw, hh, -d},
			{-hw, hh, -d},
		}
		for j, c := range local {
			out[i*4+j] = mgl32.TransformCoordinate(c, invView)
		}
	}
	return out
}
