package camera

import (
	"math"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-lumen/common"
	"github.com/go-gl/mathgl/mgl32"
)

// cameraCount is an atomic counter used to generate unique default names for each camera instance.
var cameraCount atomic.Uint64

// ProjectionType selects how a camera projects view space onto clip space.
type ProjectionType int

const (
	// ProjectionPerspective uses the field of view and aspect ratio.
	ProjectionPerspective ProjectionType = iota
	// ProjectionOrthographic uses the orthographic window size.
	ProjectionOrthographic
)

// Viewport is the render target region a camera was last rendered through.
// Only the size and the visibility mask matter to the lighting code.
type Viewport struct {
	Width          float32
	Height         float32
	VisibilityMask uint32
}

// Size returns the viewport size in pixels.
func (v Viewport) Size() common.Vec2 {
	return common.Vec2{v.Width, v.Height}
}

type cameraImpl struct {
	mu *sync.Mutex

	name        string
	position    mgl32.Vec3
	orientation mgl32.Quat
	up          mgl32.Vec3

	projectionType ProjectionType
	fov            float32
	aspect         float32
	near           float32
	far            float32
	orthoWidth     float32
	orthoHeight    float32

	reflected     bool
	reflectNormal mgl32.Vec3
	reflectOffset float32
	lodCamera     Camera
	lastViewport  Viewport
	hasViewport   bool

	viewMatrix           mgl32.Mat4
	projectionMatrix     mgl32.Mat4
	viewProjectionMatrix mgl32.Mat4
}

// Camera defines the interface for cameras used by the lighting compositor.
// Both the scene's render cameras and the shadow node's shadow map cameras
// implement it. Matrices are recomputed eagerly whenever a setter runs.
type Camera interface {
	// Name returns the camera's debug name.
	//
	// Returns:
	//   - string: the name
	Name() string

	// Position returns the world-space eye position.
	//
	// Returns:
	//   - mgl32.Vec3: the position
	Position() mgl32.Vec3

	// Orientation returns the world-space orientation. The camera looks down
	// its local negative Z axis.
	//
	// Returns:
	//   - mgl32.Quat: the orientation
	Orientation() mgl32.Quat

	// Direction returns the normalized world-space view direction.
	//
	// Returns:
	//   - mgl32.Vec3: the direction
	Direction() mgl32.Vec3

	// ProjectionType returns the projection mode.
	ProjectionType() ProjectionType

	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// OrthoWindow returns the orthographic window size.
	//
	// Returns:
	//   - width, height: window extents in world units
	OrthoWindow() (width, height float32)

	// IsReflected reports whether the view is mirrored across a plane.
	IsReflected() bool

	// ReflectionPlane returns the mirror plane as normal and offset.
	// Meaningless unless IsReflected is true.
	ReflectionPlane() (normal mgl32.Vec3, d float32)

	// LodCamera returns the camera used for level-of-detail decisions. A
	// camera without an explicit LOD camera returns itself.
	//
	// Returns:
	//   - Camera: the LOD camera
	LodCamera() Camera

	// LastViewport returns the viewport the camera was last rendered through.
	//
	// Returns:
	//   - Viewport: the viewport
	//   - bool: false if the camera was never assigned one
	LastViewport() (Viewport, bool)

	// ViewMatrix returns the world-to-view matrix, including the reflection
	// when one is enabled.
	//
	// Returns:
	//   - mgl32.Mat4: the view matrix
	ViewMatrix() mgl32.Mat4

	// ProjectionMatrix returns the view-to-clip matrix with depth in [0, 1].
	//
	// Returns:
	//   - mgl32.Mat4: the projection matrix
	ProjectionMatrix() mgl32.Mat4

	// ViewProjectionMatrix returns ProjectionMatrix * ViewMatrix.
	//
	// Returns:
	//   - mgl32.Mat4: the combined matrix
	ViewProjectionMatrix() mgl32.Mat4

	// Frustum returns the world-space view frustum.
	//
	// Returns:
	//   - common.Frustum: the frustum planes
	Frustum() common.Frustum

	// SetPosition sets the eye position.
	SetPosition(p mgl32.Vec3)

	// SetOrientation sets the orientation directly.
	SetOrientation(q mgl32.Quat)

	// SetDirection points the camera along d, keeping the up vector.
	//
	// Parameters:
	//   - d: the view direction, need not be normalized
	SetDirection(d mgl32.Vec3)

	// LookAt points the camera at target from its current position.
	//
	// Parameters:
	//   - target: the world-space point to look at
	LookAt(target mgl32.Vec3)

	// SetProjectionType switches between perspective and orthographic.
	SetProjectionType(t ProjectionType)

	// SetFov sets the vertical field of view in radians.
	SetFov(fov float32)

	// SetAspect sets the aspect ratio (width / height).
	SetAspect(aspect float32)

	// SetNear sets the near clipping plane distance.
	SetNear(near float32)

	// SetFar sets the far clipping plane distance.
	SetFar(far float32)

	// SetOrthoWindow sets the orthographic window size.
	SetOrthoWindow(width, height float32)

	// EnableReflection mirrors the view across the plane n·p + d = 0.
	//
	// Parameters:
	//   - n: the unit plane normal
	//   - d: the plane offset
	EnableReflection(n mgl32.Vec3, d float32)

	// DisableReflection removes the mirror plane.
	DisableReflection()

	// SetLodCamera sets the camera used for LOD decisions. nil resets it to
	// the camera itself.
	SetLodCamera(lod Camera)

	// SetViewport records the viewport the camera is rendered through.
	SetViewport(vp Viewport)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new perspective Camera at the origin looking down
// negative Z, with any provided options applied.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:          &sync.Mutex{},
		name:        "camera_" + strconv.FormatUint(cameraCount.Add(1)-1, 10),
		orientation: mgl32.QuatIdent(),
		up:          mgl32.Vec3{0, 1, 0},
		fov:         45.0 * (math.Pi / 180.0), // radians
		aspect:      1.0,
		near:        0.1,
		far:         100.0,
		orthoWidth:  10.0,
		orthoHeight: 10.0,
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Name() string {
	return c.name
}

func (c *cameraImpl) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) Orientation() mgl32.Quat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orientation
}

func (c *cameraImpl) Direction() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orientation.Rotate(common.UnitZNeg).Normalize()
}

func (c *cameraImpl) ProjectionType() ProjectionType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionType
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) OrthoWindow() (width, height float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orthoWidth, c.orthoHeight
}

func (c *cameraImpl) IsReflected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reflected
}

func (c *cameraImpl) ReflectionPlane() (mgl32.Vec3, float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reflectNormal, c.reflectOffset
}

func (c *cameraImpl) LodCamera() Camera {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lodCamera == nil {
		return c
	}
	return c.lodCamera
}

func (c *cameraImpl) LastViewport() (Viewport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastViewport, c.hasViewport
}

func (c *cameraImpl) ViewMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) Frustum() common.Frustum {
	c.mu.Lock()
	defer c.mu.Unlock()
	return common.ExtractFrustumFromMatrix(c.viewProjectionMatrix)
}

func (c *cameraImpl) SetPosition(p mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = p
	c.updateMatrices()
}

func (c *cameraImpl) SetOrientation(q mgl32.Quat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orientation = q.Normalize()
	c.updateMatrices()
}

func (c *cameraImpl) SetDirection(d mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orientation = common.LookRotation(d, c.up)
	c.updateMatrices()
}

func (c *cameraImpl) LookAt(target mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orientation = common.LookRotation(target.Sub(c.position), c.up)
	c.updateMatrices()
}

func (c *cameraImpl) SetProjectionType(t ProjectionType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projectionType = t
	c.updateMatrices()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetNear(near float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.updateMatrices()
}

func (c *cameraImpl) SetFar(far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.far = far
	c.updateMatrices()
}

func (c *cameraImpl) SetOrthoWindow(width, height float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orthoWidth = width
	c.orthoHeight = height
	c.updateMatrices()
}

func (c *cameraImpl) EnableReflection(n mgl32.Vec3, d float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reflected = true
	c.reflectNormal = n.Normalize()
	c.reflectOffset = d
	c.updateMatrices()
}

func (c *cameraImpl) DisableReflection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reflected = false
	c.updateMatrices()
}

func (c *cameraImpl) SetLodCamera(lod Camera) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if lod == Camera(c) {
		lod = nil
	}
	c.lodCamera = lod
}

func (c *cameraImpl) SetViewport(vp Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastViewport = vp
	c.hasViewport = true
}

// updateMatrices recalculates the view, projection and view-projection matrices.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	c.viewMatrix = common.ViewMatrix(c.position, c.orientation)
	if c.reflected {
		c.viewMatrix = c.viewMatrix.Mul4(common.ReflectionMatrix(c.reflectNormal, c.reflectOffset))
	}

	switch c.projectionType {
	case ProjectionOrthographic:
		hw, hh := c.orthoWidth*0.5, c.orthoHeight*0.5
		c.projectionMatrix = common.Ortho(-hw, hw, -hh, hh, c.near, c.far)
	default:
		c.projectionMatrix = common.Perspective(c.fov, c.aspect, c.near, c.far)
	}

	c.viewProjectionMatrix = c.projectionMatrix.Mul4(c.viewMatrix)
}
