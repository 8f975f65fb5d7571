package light

// ShadowMapResolution is the default width and height in texels of a shadow
// map texture created from a definition that does not state its size.
const ShadowMapResolution = 2048

// DefaultShadowFarDistance is the distance from the viewer past which a light
// stops casting shadows unless overridden per light. PSSM splits end here.
const DefaultShadowFarDistance float32 = 200.0

// DefaultShadowNear is the near plane used by shadow cameras of positional
// lights.
const DefaultShadowNear float32 = 0.1

// DefaultMinDepth and DefaultMaxDepth are the depth range reported for a
// shadow camera before any setup has run, or for a camera the node does not own.
const (
	DefaultMinDepth float32 = 0.0
	DefaultMaxDepth float32 = 100000.0
)
