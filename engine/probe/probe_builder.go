package probe

import (
	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/buffer"
	"github.com/go-gl/mathgl/mgl32"
)

// ProbeBuilderOption is a functional option for configuring a Probe.
type ProbeBuilderOption func(*probeImpl)

// WithName sets the probe's identifier.
//
// Parameters:
//   - name: the identifier
//
// Returns:
//   - ProbeBuilderOption: option function to apply
func WithName(name string) ProbeBuilderOption {
	return func(p *probeImpl) {
		p.name = name
	}
}

// WithArea places the area of influence.
//
// Parameters:
//   - center: world-space centre
//   - halfSize: half extents in probe space
//   - orientation: rotation from probe space to world space
//
// Returns:
//   - ProbeBuilderOption: option function to apply
func WithArea(center, halfSize mgl32.Vec3, orientation mgl32.Quat) ProbeBuilderOption {
	return func(p *probeImpl) {
		p.center = center
		p.halfSize = halfSize
		p.orientation = orientation.Normalize()
	}
}

// WithInnerRegion sets the same inner region fraction on every axis.
//
// Parameters:
//   - fraction: fraction of the half size in [0, 1)
//
// Returns:
//   - ProbeBuilderOption: option function to apply
func WithInnerRegion(fraction float32) ProbeBuilderOption {
	return func(p *probeImpl) {
		p.innerRegion = mgl32.Vec3{fraction, fraction, fraction}
	}
}

// WithTexture sets the captured cubemap.
//
// Parameters:
//   - tex: the cubemap texture
//
// Returns:
//   - ProbeBuilderOption: option function to apply
func WithTexture(tex *buffer.Texture) ProbeBuilderOption {
	return func(p *probeImpl) {
		p.texture = tex
	}
}
