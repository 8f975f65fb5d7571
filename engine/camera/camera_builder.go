package camera

import (
	"github.com/Carmen-Shannon/oxy-lumen/common"
	"github.com/go-gl/mathgl/mgl32"
)

type CameraBuilderOption func(*cameraImpl)

// WithName sets the camera's debug name.
//
// Parameters:
//   - name: the name
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's name
func WithName(name string) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.name = name
	}
}

// WithPosition sets the camera's eye position.
//
// Parameters:
//   - x, y, z: world-space position
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's position
func WithPosition(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.position = mgl32.Vec3{x, y, z}
	}
}

// WithUp sets the camera's up vector used by LookAt and SetDirection.
//
// Parameters:
//   - x, y, z: up vector components
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's up vector
func WithUp(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.up = mgl32.Vec3{x, y, z}
	}
}

// WithLookAt orients the camera toward a target. Apply after WithPosition.
//
// Parameters:
//   - x, y, z: world-space target
//
// Returns:
//   - CameraBuilderOption: a function that orients the camera
func WithLookAt(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.orientation = common.LookRotation(mgl32.Vec3{x, y, z}.Sub(c.position), c.up)
	}
}

// WithFov sets the camera's field of view in radians.
//
// Parameters:
//   - fov: field of view in radians
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = fov
	}
}

// WithAspect sets the camera's aspect ratio (width / height).
//
// Parameters:
//   - aspect: the aspect ratio to set
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's aspect ratio
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.aspect = aspect
	}
}

// WithNear sets the near clipping plane distance.
//
// Parameters:
//   - near: near plane distance
//
// Returns:
//   - CameraBuilderOption: a function that sets the near plane
func WithNear(near float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.near = near
	}
}

// WithFar sets the far clipping plane distance.
//
// Parameters:
//   - far: far plane distance
//
// Returns:
//   - CameraBuilderOption: functional option to set the far plane
func WithFar(far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.far = far
	}
}

// WithOrthographic switches the camera to an orthographic projection.
//
// Parameters:
//   - width, height: the orthographic window size
//
// Returns:
//   - CameraBuilderOption: functional option to set the projection
func WithOrthographic(width, height float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.projectionType = ProjectionOrthographic
		c.orthoWidth = width
		c.orthoHeight = height
	}
}

// WithViewport records an initial viewport for the camera.
func WithViewport(vp Viewport) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.lastViewport = vp
		c.hasViewport = true
	}
}
