package scene

import (
	"github.com/Carmen-Shannon/oxy-lumen/engine/light"
	"go.uber.org/zap"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithLogger sets the logger used by the scene.
//
// Parameters:
//   - logger: the logger; nil keeps the no-op default
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLogger(logger *zap.Logger) SceneBuilderOption {
	return func(s *scene) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLights adds initial lights to the scene.
//
// Parameters:
//   - lights: the lights to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLights(lights ...light.Light) SceneBuilderOption {
	return func(s *scene) {
		s.lights = append(s.lights, lights...)
	}
}

// WithCasters adds initial shadow casters to the scene.
//
// Parameters:
//   - casters: the casters to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCasters(casters ...Caster) SceneBuilderOption {
	return func(s *scene) {
		s.casters = append(s.casters, casters...)
	}
}

// WithVisibilityMask sets the scene-wide visibility mask.
//
// Parameters:
//   - mask: the mask
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithVisibilityMask(mask uint32) SceneBuilderOption {
	return func(s *scene) {
		s.visibilityMask = mask
	}
}
