// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Aabb is an axis-aligned bounding box. The zero value is not empty; use
// NullAabb for a box that absorbs the first merged point.
type Aabb struct {
	// Min is the lower corner of the box.
	Min mgl32.Vec3
	// Max is the upper corner of the box.
	Max mgl32.Vec3
}

// NullAabb returns an inverted box with no extent. Merging any point or box
// into it yields that point or box.
//
// Returns:
//   - Aabb: the null box
func NullAabb() Aabb {
	inf := math32.Inf(1)
	return Aabb{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

// NewAabbFromCenter builds a box from a center and half extents.
//
// Parameters:
//   - center: the box center
//   - halfSize: half of the box size along each axis
//
// Returns:
//   - Aabb: the box
func NewAabbFromCenter(center, halfSize mgl32.Vec3) Aabb {
	return Aabb{Min: center.Sub(halfSize), Max: center.Add(halfSize)}
}

// IsNull reports whether the box has no extent on any axis.
func (b Aabb) IsNull() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// Center returns the center point of the box.
func (b Aabb) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// HalfSize returns half the box size along each axis.
func (b Aabb) HalfSize() mgl32.Vec3 {
	return b.Max.Sub(b.Min).Mul(0.5)
}

// Radius returns the distance from the center to a corner.
func (b Aabb) Radius() float32 {
	return b.HalfSize().Len()
}

// Contains reports whether p lies inside the box, boundary included.
func (b Aabb) Contains(p mgl32.Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

// MergePoint grows the box to include p.
//
// Parameters:
//   - p: the point to include
//
// Returns:
//   - Aabb: the grown box
func (b Aabb) MergePoint(p mgl32.Vec3) Aabb {
	for i := range 3 {
		b.Min[i] = math32.Min(b.Min[i], p[i])
		b.Max[i] = math32.Max(b.Max[i], p[i])
	}
	return b
}

// Merge grows the box to include o. Null boxes are ignored.
//
// Parameters:
//   - o: the box to include
//
// Returns:
//   - Aabb: the grown box
func (b Aabb) Merge(o Aabb) Aabb {
	if o.IsNull() {
		return b
	}
	return b.MergePoint(o.Min).MergePoint(o.Max)
}

// Corners returns the eight corners of the box.
func (b Aabb) Corners() [8]mgl32.Vec3 {
	return [8]mgl32.Vec3{
		{b.Min[0], b.Min[1], b.Min[2]},
		{b.Max[0], b.Min[1], b.Min[2]},
		{b.Min[0], b.Max[1], b.Min[2]},
		{b.Max[0], b.Max[1], b.Min[2]},
		{b.Min[0], b.Min[1], b.Max[2]},
		{b.Max[0], b.Min[1], b.Max[2]},
		{b.Min[0], b.Max[1], b.Max[2]},
		{b.Max[0], b.Max[1], b.Max[2]},
	}
}

// Transform returns the box enclosing the eight corners of b transformed by m.
//
// Parameters:
//   - m: an affine transform
//
// Returns:
//   - Aabb: the enclosing box in the target space
func (b Aabb) Transform(m mgl32.Mat4) Aabb {
	if b.IsNull() {
		return b
	}
	out := NullAabb()
	for _, c := range b.Corners() {
		out = out.MergePoint(mgl32.TransformCoordinate(c, m))
	}
	return out
}

// Sphere is a bounding sphere.
type Sphere struct {
	Center mgl32.Vec3
	Radius float32
}

// Distance returns the distance from p to the sphere surface. Points inside
// the sphere give negative values.
func (s Sphere) Distance(p mgl32.Vec3) float32 {
	return p.Sub(s.Center).Len() - s.Radius
}

// Vec2 is a two-component size or offset, used for viewport sizes where a
// negative component means "not set".
type Vec2 = mgl32.Vec2

// UnsetViewportSize marks a per-light-type viewport size that no pass has
// recorded yet.
var UnsetViewportSize = Vec2{-1, -1}
