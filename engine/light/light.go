package light

import (
	"github.com/Carmen-Shannon/oxy-lumen/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// LightType identifies the kind of light source.
type LightType int

const (
	// LightTypeDirectional represents a light with no position, only direction.
	// Used for large distant sources like the sun or moon. Affects all fragments
	// uniformly with no distance attenuation.
	LightTypeDirectional LightType = iota

	// LightTypePoint represents a light that emits in all directions from a position.
	// Used for bare bulbs, lanterns, candle flames, and particle-emitted lights.
	// Attenuates with distance up to a configurable range.
	LightTypePoint

	// LightTypeSpot represents a light that emits in a cone from a position along a direction.
	// Used for flashlights, desk lamps, and wall sconces. Attenuates with both
	// distance and angle from the cone axis, controlled by inner and outer cone angles.
	LightTypeSpot

	// NumLightTypes is the number of light types. Per-type tables are sized by it.
	NumLightTypes
)

// Mask returns the single-bit light-type mask (1 << type) used by shadow
// map slot definitions.
func (t LightType) Mask() uint8 {
	return 1 << uint8(t)
}

// String returns the lowercase name of the light type.
func (t LightType) String() string {
	switch t {
	case LightTypeDirectional:
		return "directional"
	case LightTypePoint:
		return "point"
	case LightTypeSpot:
		return "spot"
	}
	return "unknown"
}

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	name        string
	lightType   LightType
	position    mgl32.Vec3
	orientation mgl32.Quat
	diffuse     mgl32.Vec3
	specular    mgl32.Vec3
	powerScale  float32

	attenuationRange     float32
	attenuationConstant  float32
	attenuationLinear    float32
	attenuationQuadratic float32

	spotInner   float32 // full cone angle in radians
	spotOuter   float32 // full cone angle in radians
	spotFalloff float32

	shadowFarDistance float32

	visibilityFlags uint32 // user bits only
	visible         bool
	castsShadows    bool

	globalIndex int
}

// Light defines the interface for a light source in the scene.
//
// Lights are owned by the scene. The shadow node and the forward-plus
// builder only hold references to them for the duration of a frame and key
// per-frame state by GlobalIndex, which the scene assigns each time it
// rebuilds its global light list.
type Light interface {
	// Name returns the debug name of the light.
	//
	// Returns:
	//   - string: the name, possibly empty
	Name() string

	// Type returns the kind of light source.
	//
	// Returns:
	//   - LightType: the light type (directional, point, or spot)
	Type() LightType

	// Position returns the world-space position of the light.
	// Meaningless for directional lights.
	//
	// Returns:
	//   - mgl32.Vec3: position as (x, y, z)
	Position() mgl32.Vec3

	// Orientation returns the world-space orientation of the light. The light
	// points down its local negative Z axis.
	//
	// Returns:
	//   - mgl32.Quat: the orientation
	Orientation() mgl32.Quat

	// Direction returns the normalized world-space direction of the light,
	// derived from its orientation. Meaningless for point lights.
	//
	// Returns:
	//   - mgl32.Vec3: normalized direction
	Direction() mgl32.Vec3

	// Diffuse returns the diffuse RGB colour.
	Diffuse() mgl32.Vec3

	// Specular returns the specular RGB colour.
	Specular() mgl32.Vec3

	// PowerScale returns the multiplier applied to both colours when the light
	// is uploaded to the GPU.
	PowerScale() float32

	// AttenuationRange returns the distance beyond which the light contributes
	// nothing. Also the radius of the light's bounding sphere.
	AttenuationRange() float32

	// AttenuationConstant returns the constant attenuation factor.
	AttenuationConstant() float32

	// AttenuationLinear returns the linear attenuation factor.
	AttenuationLinear() float32

	// AttenuationQuadratic returns the quadratic attenuation factor.
	AttenuationQuadratic() float32

	// SpotInner returns the full inner cone angle in radians.
	SpotInner() float32

	// SpotOuter returns the full outer cone angle in radians.
	SpotOuter() float32

	// SpotFalloff returns the exponent of the falloff between the inner and
	// outer cones.
	SpotFalloff() float32

	// ShadowFarDistance returns the distance from the viewer beyond which this
	// light's shadows are no longer rendered. PSSM splits end here.
	ShadowFarDistance() float32

	// VisibilityMask returns the mask the shadow node tests against the
	// combined viewport and scene flags. It carries the user flags while the
	// light is visible, plus LayerVisibility and LayerShadowCaster when set.
	//
	// Returns:
	//   - uint32: the visibility mask
	VisibilityMask() uint32

	// Visible returns whether the light takes part in rendering.
	Visible() bool

	// CastsShadows returns whether this light is eligible for a shadow map slot.
	CastsShadows() bool

	// GlobalIndex returns the index of this light in the scene's global light
	// list, or -1 if the light has not been listed yet.
	GlobalIndex() int

	// BoundingSphere returns the sphere used to rank lights by distance. It is
	// centred at the light position with the attenuation range as radius, or a
	// zero radius for directional lights.
	//
	// Returns:
	//   - common.Sphere: the bounding sphere
	BoundingSphere() common.Sphere

	// SetPosition sets the world-space position of the light.
	SetPosition(p mgl32.Vec3)

	// SetOrientation sets the world-space orientation of the light.
	SetOrientation(q mgl32.Quat)

	// SetDirection orients the light so that it points along d.
	//
	// Parameters:
	//   - d: the direction, need not be normalized
	SetDirection(d mgl32.Vec3)

	// SetDiffuse sets the diffuse RGB colour.
	SetDiffuse(r, g, b float32)

	// SetSpecular sets the specular RGB colour.
	SetSpecular(r, g, b float32)

	// SetPowerScale sets the colour multiplier.
	SetPowerScale(power float32)

	// SetAttenuation sets the range and the constant, linear and quadratic
	// attenuation factors.
	SetAttenuation(lightRange, constant, linear, quadratic float32)

	// SetSpotlightRange sets the full inner and outer cone angles (radians)
	// and the falloff exponent.
	SetSpotlightRange(inner, outer, falloff float32)

	// SetShadowFarDistance sets the shadow far distance.
	SetShadowFarDistance(d float32)

	// SetVisibilityFlags sets the user visibility flags. Reserved layer bits
	// are ignored.
	SetVisibilityFlags(flags uint32)

	// SetVisible shows or hides the light.
	SetVisible(visible bool)

	// SetCastsShadows sets whether the light is eligible for shadow mapping.
	SetCastsShadows(castsShadows bool)

	// SetGlobalIndex records the light's position in the scene's global list.
	// Called by the scene when it rebuilds the list.
	SetGlobalIndex(index int)
}

var _ Light = &lightImpl{}

// NewLight creates a new Light of the specified type with sensible defaults and
// any provided options applied.
//
// Parameters:
//   - lightType: the kind of light to create (directional, point, or spot)
//   - opts: variadic list of LightBuilderOption functions to configure the light
//
// Returns:
//   - Light: a new Light instance
func NewLight(lightType LightType, opts ...LightBuilderOption) Light {
	l := &lightImpl{
		lightType:           lightType,
		orientation:         common.OrientationFromDirection(mgl32.Vec3{0, -1, 0}),
		diffuse:             mgl32.Vec3{1, 1, 1},
		specular:            mgl32.Vec3{1, 1, 1},
		powerScale:          1.0,
		attenuationRange:    100.0,
		attenuationConstant: 1.0,
		spotInner:           mgl32.DegToRad(30),
		spotOuter:           mgl32.DegToRad(40),
		spotFalloff:         1.0,
		shadowFarDistance:   DefaultShadowFarDistance,
		visibilityFlags:     DefaultVisibilityFlags,
		visible:             true,
		castsShadows:        true,
		globalIndex:         -1,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *lightImpl) Name() string {
	return l.name
}

func (l *lightImpl) Type() LightType {
	return l.lightType
}

func (l *lightImpl) Position() mgl32.Vec3 {
	return l.position
}

func (l *lightImpl) Orientation() mgl32.Quat {
	return l.orientation
}

func (l *lightImpl) Direction() mgl32.Vec3 {
	return l.orientation.Rotate(common.UnitZNeg).Normalize()
}

func (l *lightImpl) Diffuse() mgl32.Vec3 {
	return l.diffuse
}

func (l *lightImpl) Specular() mgl32.Vec3 {
	return l.specular
}

func (l *lightImpl) PowerScale() float32 {
	return l.powerScale
}

func (l *lightImpl) AttenuationRange() float32 {
	return l.attenuationRange
}

func (l *lightImpl) AttenuationConstant() float32 {
	return l.attenuationConstant
}

func (l *lightImpl) AttenuationLinear() float32 {
	return l.attenuationLinear
}

func (l *lightImpl) AttenuationQuadratic() float32 {
	return l.attenuationQuadratic
}

func (l *lightImpl) SpotInner() float32 {
	return l.spotInner
}

func (l *lightImpl) SpotOuter() float32 {
	return l.spotOuter
}

func (l *lightImpl) SpotFalloff() float32 {
	return l.spotFalloff
}

func (l *lightImpl) ShadowFarDistance() float32 {
	return l.shadowFarDistance
}

func (l *lightImpl) VisibilityMask() uint32 {
	var mask uint32
	if l.visible {
		mask = (l.visibilityFlags & UserFlagsMask) | LayerVisibility
	}
	if l.castsShadows {
		mask |= LayerShadowCaster
	}
	return mask
}

func (l *lightImpl) Visible() bool {
	return l.visible
}

func (l *lightImpl) CastsShadows() bool {
	return l.castsShadows
}

func (l *lightImpl) GlobalIndex() int {
	return l.globalIndex
}

func (l *lightImpl) BoundingSphere() common.Sphere {
	if l.lightType == LightTypeDirectional {
		return common.Sphere{Center: l.position}
	}
	return common.Sphere{Center: l.position, Radius: l.attenuationRange}
}

func (l *lightImpl) SetPosition(p mgl32.Vec3) {
	l.position = p
}

func (l *lightImpl) SetOrientation(q mgl32.Quat) {
	l.orientation = q.Normalize()
}

func (l *lightImpl) SetDirection(d mgl32.Vec3) {
	l.orientation = common.OrientationFromDirection(d)
}

func (l *lightImpl) SetDiffuse(r, g, b float32) {
	l.diffuse = mgl32.Vec3{r, g, b}
}

func (l *lightImpl) SetSpecular(r, g, b float32) {
	l.specular = mgl32.Vec3{r, g, b}
}

func (l *lightImpl) SetPowerScale(power float32) {
	l.powerScale = power
}

func (l *lightImpl) SetAttenuation(lightRange, constant, linear, quadratic float32) {
	l.attenuationRange = lightRange
	l.attenuationConstant = constant
	l.attenuationLinear = linear
	l.attenuationQuadratic = quadratic
}

func (l *lightImpl) SetSpotlightRange(inner, outer, falloff float32) {
	l.spotInner = inner
	l.spotOuter = math32.Max(outer, inner)
	l.spotFalloff = falloff
}

func (l *lightImpl) SetShadowFarDistance(d float32) {
	l.shadowFarDistance = d
}

func (l *lightImpl) SetVisibilityFlags(flags uint32) {
	l.visibilityFlags = flags & UserFlagsMask
}

func (l *lightImpl) SetVisible(visible bool) {
	l.visible = visible
}

func (l *lightImpl) SetCastsShadows(castsShadows bool) {
	l.castsShadows = castsShadows
}

func (l *lightImpl) SetGlobalIndex(index int) {
	l.globalIndex = index
}
