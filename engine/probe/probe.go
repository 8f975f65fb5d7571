// Package probe blends parallax-corrected cubemap probes around the camera.
// Each probe has an oriented box of influence; the collector picks the probes
// whose boxes hold the camera and weights them so every probe reaches full
// weight at its centre and zero weight at its boundary.
package probe

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-lumen/common"
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/buffer"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// probeImpl is the implementation of the Probe interface.
type probeImpl struct {
	mu *sync.Mutex

	name        string
	center      mgl32.Vec3
	halfSize    mgl32.Vec3
	orientation mgl32.Quat
	innerRegion mgl32.Vec3
	texture     *buffer.Texture
}

// Probe is a captured cubemap with an oriented box of influence. Inside the
// inner region the probe is used at full strength; between the inner region
// and the box boundary its normalized distance grows from 0 to 1.
type Probe interface {
	// Name returns the probe's identifier.
	Name() string

	// Center returns the world-space centre of the area of influence.
	Center() mgl32.Vec3

	// HalfSize returns the half extents of the area in probe space.
	HalfSize() mgl32.Vec3

	// Orientation returns the rotation from probe space to world space.
	Orientation() mgl32.Quat

	// InnerRegion returns the per-axis fraction of the half size where the
	// normalized distance is zero.
	InnerRegion() mgl32.Vec3

	// Texture returns the captured cubemap, or nil before capture.
	Texture() *buffer.Texture

	// SetArea places the area of influence.
	//
	// Parameters:
	//   - center: world-space centre
	//   - halfSize: half extents in probe space
	//   - orientation: rotation from probe space to world space
	SetArea(center, halfSize mgl32.Vec3, orientation mgl32.Quat)

	// SetInnerRegion sets the fraction of the half size used at full strength.
	//
	// Parameters:
	//   - region: per-axis fraction in [0, 1)
	SetInnerRegion(region mgl32.Vec3)

	// SetTexture sets the captured cubemap.
	SetTexture(tex *buffer.Texture)

	// ToLocal transforms a world-space point into probe space, where the
	// area is centred on the origin.
	//
	// Parameters:
	//   - pos: world-space point
	//
	// Returns:
	//   - mgl32.Vec3: the probe-space point
	ToLocal(pos mgl32.Vec3) mgl32.Vec3

	// AreaLS returns the area of influence in probe space.
	AreaLS() common.Aabb

	// NDF returns the normalized distance of a probe-space point: 0 inside
	// the inner region, 1 on the area boundary, greater than 1 outside.
	//
	// Parameters:
	//   - posLS: probe-space point
	//
	// Returns:
	//   - float32: the normalized distance
	NDF(posLS mgl32.Vec3) float32
}

var _ Probe = &probeImpl{}

// NewProbe creates a probe with a unit area at the origin and an inner
// region of half the area.
//
// Parameters:
//   - options: functional options to configure the probe
//
// Returns:
//   - Probe: the new probe
func NewProbe(options ...ProbeBuilderOption) Probe {
	p := &probeImpl{
		mu:          &sync.Mutex{},
		halfSize:    mgl32.Vec3{1, 1, 1},
		orientation: mgl32.QuatIdent(),
		innerRegion: mgl32.Vec3{0.5, 0.5, 0.5},
	}
	for _, option := range options {
		option(p)
	}
	return p
}

func (p *probeImpl) Name() string {
	return p.name
}

func (p *probeImpl) Center() mgl32.Vec3 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.center
}

func (p *probeImpl) HalfSize() mgl32.Vec3 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.halfSize
}

func (p *probeImpl) Orientation() mgl32.Quat {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.orientation
}

func (p *probeImpl) InnerRegion() mgl32.Vec3 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.innerRegion
}

func (p *probeImpl) Texture() *buffer.Texture {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.texture
}

func (p *probeImpl) SetArea(center, halfSize mgl32.Vec3, orientation mgl32.Quat) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.center = center
	p.halfSize = halfSize
	p.orientation = orientation.Normalize()
}

func (p *probeImpl) SetInnerRegion(region mgl32.Vec3) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.innerRegion = region
}

func (p *probeImpl) SetTexture(tex *buffer.Texture) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texture = tex
}

func (p *probeImpl) ToLocal(pos mgl32.Vec3) mgl32.Vec3 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.orientation.Inverse().Rotate(pos.Sub(p.center))
}

func (p *probeImpl) AreaLS() common.Aabb {
	p.mu.Lock()
	defer p.mu.Unlock()
	return common.NewAabbFromCenter(mgl32.Vec3{}, p.halfSize)
}

func (p *probeImpl) NDF(posLS mgl32.Vec3) float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ndf float32
	for i := range 3 {
		inner := p.innerRegion[i] * p.halfSize[i]
		outer := p.halfSize[i] - inner
		d := math32.Max(math32.Abs(posLS[i])-inner, 0)
		if outer <= 0 {
			// A probe without falloff on this axis jumps straight to the boundary.
			if d > 0 {
				ndf = math32.Max(ndf, 1)
			}
			continue
		}
		ndf = math32.Max(ndf, d/outer)
	}
	return ndf
}
