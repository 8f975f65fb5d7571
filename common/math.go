package common

import (
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// UnitZNeg is the local forward axis of cameras and lights. An identity
// orientation looks down negative Z.
var UnitZNeg = mgl32.Vec3{0, 0, -1}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// Perspective creates a perspective projection matrix with depth mapped to
// the [0, 1] range used by WebGPU and by GL with clip control. The near plane
// maps to 0 and the far plane to 1.
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - mgl32.Mat4: the column-major projection matrix
func Perspective(fovY, aspect, near, far float32) mgl32.Mat4 {
	f := 1.0 / math32.Tan(fovY*0.5)
	var out mgl32.Mat4
	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1.0
	out[14] = (near * far) / (near - far)
	return out
}

// Ortho builds an orthographic projection matrix with depth mapped to [0, 1].
//
// Parameters:
//   - left, right, bottom, top: the view volume extents
//   - near, far: depth extents along the view direction
//
// Returns:
//   - mgl32.Mat4: the column-major projection matrix
func Ortho(left, right, bottom, top, near, far float32) mgl32.Mat4 {
	out := mgl32.Ident4()
	rl := right - left
	tb := top - bottom
	fn := far - near

	out[0] = 2.0 / rl
	out[5] = 2.0 / tb
	out[10] = -1.0 / fn
	out[12] = -(right + left) / rl
	out[13] = -(top + bottom) / tb
	out[14] = -near / fn
	return out
}

// ViewMatrix builds the world-to-view transform for an eye at position with
// the given orientation.
//
// Parameters:
//   - position: the eye position in world space
//   - orientation: rotation from local to world space
//
// Returns:
//   - mgl32.Mat4: the view matrix
func ViewMatrix(position mgl32.Vec3, orientation mgl32.Quat) mgl32.Mat4 {
	inv := orientation.Normalize().Inverse()
	rot := inv.Mat4()
	t := inv.Rotate(position.Mul(-1))
	rot[12], rot[13], rot[14] = t[0], t[1], t[2]
	return rot
}

// ReflectionMatrix returns the matrix that mirrors points across the plane
// n·p + d = 0. The normal must be unit length.
func ReflectionMatrix(n mgl32.Vec3, d float32) mgl32.Mat4 {
	return mgl32.Mat4{
		-2*n[0]*n[0] + 1, -2 * n[1] * n[0], -2 * n[2] * n[0], 0,
		-2 * n[0] * n[1], -2*n[1]*n[1] + 1, -2 * n[2] * n[1], 0,
		-2 * n[0] * n[2], -2 * n[1] * n[2], -2*n[2]*n[2] + 1, 0,
		-2 * n[0] * d, -2 * n[1] * d, -2 * n[2] * d, 1,
	}
}

// OrientationFromDirection returns the rotation that turns the local forward
// axis (negative Z) onto dir. A zero direction yields the identity.
//
// Parameters:
//   - dir: the target direction, need not be normalized
//
// Returns:
//   - mgl32.Quat: the orientation
func OrientationFromDirection(dir mgl32.Vec3) mgl32.Quat {
	if dir.Len() == 0 {
		return mgl32.QuatIdent()
	}
	return mgl32.QuatBetweenVectors(UnitZNeg, dir.Normalize())
}

// ClipToImageSpace returns the matrix that maps clip-space X/Y in [-1, 1] to
// a texture rectangle at uvOffset with size uvLength. V grows downward.
//
// Parameters:
//   - uvOffset: top-left corner of the rectangle in UV space
//   - uvLength: size of the rectangle in UV space
//
// Returns:
//   - mgl32.Mat4: scale and translate transform
func ClipToImageSpace(uvOffset, uvLength mgl32.Vec2) mgl32.Mat4 {
	sx := 0.5 * uvLength[0]
	sy := -0.5 * uvLength[1]
	m := mgl32.Scale3D(sx, sy, 1)
	m[12] = sx + uvOffset[0]
	m[13] = -sy + uvOffset[1]
	return m
}

// SnapToTexel rounds v down to the nearest multiple of step. A step of zero or
// less returns v unchanged.
func SnapToTexel(v, step float32) float32 {
	if step <= 0 {
		return v
	}
	return math32.Floor(v/step) * step
}

// LookRotation returns the orientation whose local negative Z axis points
// along dir with local Y as close to up as possible. When dir is parallel to
// up the result falls back to OrientationFromDirection.
//
// Parameters:
//   - dir: the forward direction, need not be normalized
//   - up: the reference up vector
//
// Returns:
//   - mgl32.Quat: the orientation
func LookRotation(dir, up mgl32.Vec3) mgl32.Quat {
	if dir.Len() == 0 {
		return mgl32.QuatIdent()
	}
	f := dir.Normalize()
	r := f.Cross(up)
	if r.Len() < 1e-6 {
		return OrientationFromDirection(f)
	}
	r = r.Normalize()
	u := r.Cross(f)
	m := mgl32.Ident4()
	m.SetCol(0, r.Vec4(0))
	m.SetCol(1, u.Vec4(0))
	m.SetCol(2, f.Mul(-1).Vec4(0))
	return mgl32.Mat4ToQuat(m).Normalize()
}
