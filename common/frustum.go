package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Plane represents a plane in 3D space using the equation: ax + by + cz + d = 0
// where (a, b, c) is the normal and d is the distance from origin.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
}

// SignedDistance returns the signed distance from p to the plane. Positive
// values lie on the side the normal points to.
func (p Plane) SignedDistance(v mgl32.Vec3) float32 {
	return p.Normal.Dot(v) + p.Distance
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// ExtractFrustumFromMatrix extracts frustum planes from a view-projection matrix.
// The matrix should be the combined Projection * View matrix with depth in [0, 1].
// Uses the Gribb/Hartmann method for plane extraction.
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - viewProj: the view-projection matrix (column-major)
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustumFromMatrix(viewProj mgl32.Mat4) Frustum {
	var f Frustum
	row := func(i int) mgl32.Vec4 { return viewProj.Row(i) }
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	set := func(idx int, v mgl32.Vec4) {
		f.Planes[idx] = Plane{Normal: mgl32.Vec3{v[0], v[1], v[2]}, Distance: v[3]}
	}
	set(FrustumLeft, r3.Add(r0))
	set(FrustumRight, r3.Sub(r0))
	set(FrustumBottom, r3.Add(r1))
	set(FrustumTop, r3.Sub(r1))
	// Depth is [0, 1], so the near plane is row2 alone.
	set(FrustumNear, r2)
	set(FrustumFar, r3.Sub(r2))

	for i := range f.Planes {
		f.normalizePlane(i)
	}
	return f
}

// IntersectsSphere reports whether the sphere touches the inside of the frustum.
//
// Parameters:
//   - s: the sphere to test
//
// Returns:
//   - bool: false only when the sphere lies fully outside one plane
func (f *Frustum) IntersectsSphere(s Sphere) bool {
	for _, p := range f.Planes {
		if p.SignedDistance(s.Center) < -s.Radius {
			return false
		}
	}
	return true
}

// FrustumCorners returns the eight corners of the slice of a view frustum
// between the view-space depths near and far, in world space. The first four
// corners lie on the near plane.
//
// Parameters:
//   - invView: the inverse of the camera view matrix
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio
//   - near: distance of the first slice plane
//   - far: distance of the second slice plane
//
// Returns:
//   - [8]mgl32.Vec3: world-space corners
func FrustumCorners(invView mgl32.Mat4, fovY, aspect, near, far float32) [8]mgl32.Vec3 {
	var out [8]mgl32.Vec3
	t := math32.Tan(fovY * 0.5)
	for i, d := range [2]float32{near, far} {
		hy := d * t
		hx := hy * aspect
		local := [4]mgl32.Vec3{
			{-hx, -hy, -d},
			{hx, -hy, -d},
			{hx, hy, -d},
			{-hx, hy, -d},
		}
		for j, c := range local {
			out[i*4+j] = mgl32.TransformCoordinate(c, invView)
		}
	}
	return out
}

// normalizePlane normalizes a frustum plane so that the normal has unit length.
func (f *Frustum) normalizePlane(index int) {
	p := &f.Planes[index]
	length := p.Normal.Len()
	if length > 0 {
		invLen := 1.0 / length
		p.Normal = p.Normal.Mul(invLen)
		p.Distance *= invLen
	}
}
