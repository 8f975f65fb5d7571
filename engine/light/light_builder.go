package light

import (
	"github.com/Carmen-Shannon/oxy-lumen/common"
	"github.com/go-gl/mathgl/mgl32"
)

// LightBuilderOption is a function that configures a Light instance during construction.
type LightBuilderOption func(*lightImpl)

// WithName is an option builder that sets the debug name of the light.
//
// Parameters:
//   - name: the light name
//
// Returns:
//   - LightBuilderOption: a function that applies the name option to a lightImpl
func WithName(name string) LightBuilderOption {
	return func(l *lightImpl) {
		l.name = name
	}
}

// WithPosition is an option builder that sets the world-space position of the light.
//
// Parameters:
//   - x: the x position component
//   - y: the y position component
//   - z: the z position component
//
// Returns:
//   - LightBuilderOption: a function that applies the position option to a lightImpl
func WithPosition(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.position = mgl32.Vec3{x, y, z}
	}
}

// WithDirection is an option builder that orients the light along a direction.
// The direction does not need to be normalized.
//
// Parameters:
//   - x: the x direction component
//   - y: the y direction component
//   - z: the z direction component
//
// Returns:
//   - LightBuilderOption: a function that applies the direction option to a lightImpl
func WithDirection(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.orientation = common.OrientationFromDirection(mgl32.Vec3{x, y, z})
	}
}

// WithDiffuse is an option builder that sets the diffuse RGB colour of the light.
//
// Parameters:
//   - r: the red color component
//   - g: the green color component
//   - b: the blue color component
//
// Returns:
//   - LightBuilderOption: a function that applies the diffuse option to a lightImpl
func WithDiffuse(r, g, b float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.diffuse = mgl32.Vec3{r, g, b}
	}
}

// WithSpecular is an option builder that sets the specular RGB colour of the light.
//
// Parameters:
//   - r: the red color component
//   - g: the green color component
//   - b: the blue color component
//
// Returns:
//   - LightBuilderOption: a function that applies the specular option to a lightImpl
func WithSpecular(r, g, b float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.specular = mgl32.Vec3{r, g, b}
	}
}

// WithPowerScale is an option builder that sets the colour multiplier.
//
// Parameters:
//   - power: the power scale
//
// Returns:
//   - LightBuilderOption: a function that applies the power option to a lightImpl
func WithPowerScale(power float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.powerScale = power
	}
}

// WithAttenuation is an option builder that sets the attenuation range and
// factors for point and spot lights.
//
// Parameters:
//   - lightRange: distance at which the light stops contributing
//   - constant: constant attenuation factor
//   - linear: linear attenuation factor
//   - quadratic: quadratic attenuation factor
//
// Returns:
//   - LightBuilderOption: a function that applies the attenuation option to a lightImpl
func WithAttenuation(lightRange, constant, linear, quadratic float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.attenuationRange = lightRange
		l.attenuationConstant = constant
		l.attenuationLinear = linear
		l.attenuationQuadratic = quadratic
	}
}

// WithSpotlightRange is an option builder that sets the full inner and outer
// cone angles for spot lights and the falloff between them. Angles are given
// in degrees and stored in radians.
//
// Parameters:
//   - innerDeg: full inner cone angle in degrees
//   - outerDeg: full outer cone angle in degrees
//   - falloff: falloff exponent between the cones
//
// Returns:
//   - LightBuilderOption: a function that applies the spot cone option to a lightImpl
func WithSpotlightRange(innerDeg, outerDeg, falloff float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.spotInner = mgl32.DegToRad(innerDeg)
		l.spotOuter = mgl32.DegToRad(outerDeg)
		l.spotFalloff = falloff
	}
}

// WithShadowFarDistance is an option builder that sets how far from the
// viewer the light's shadows reach.
//
// Parameters:
//   - d: the shadow far distance
//
// Returns:
//   - LightBuilderOption: a function that applies the option to a lightImpl
func WithShadowFarDistance(d float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.shadowFarDistance = d
	}
}

// WithVisibilityFlags is an option builder that sets the user visibility flags.
// Reserved layer bits are stripped.
//
// Parameters:
//   - flags: the user flags
//
// Returns:
//   - LightBuilderOption: a function that applies the flags to a lightImpl
func WithVisibilityFlags(flags uint32) LightBuilderOption {
	return func(l *lightImpl) {
		l.visibilityFlags = flags & UserFlagsMask
	}
}

// WithVisible is an option builder that sets whether the light is shown.
//
// Parameters:
//   - visible: true to show the light
//
// Returns:
//   - LightBuilderOption: a function that applies the visible option to a lightImpl
func WithVisible(visible bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.visible = visible
	}
}

// WithCastsShadows is an option builder that sets whether the light is eligible
// for shadow mapping.
//
// Parameters:
//   - castsShadows: true to enable shadow casting
//
// Returns:
//   - LightBuilderOption: a function that applies the shadow option to a lightImpl
func WithCastsShadows(castsShadows bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.castsShadows = castsShadows
	}
}
