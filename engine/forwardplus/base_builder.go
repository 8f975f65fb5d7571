package forwardplus

import "go.uber.org/zap"

// BaseBuilderOption is a functional option for configuring a Base.
type BaseBuilderOption func(*Base)

// WithLogger sets the logger used by the base.
//
// Parameters:
//   - logger: the logger; nil keeps the no-op default
//
// Returns:
//   - BaseBuilderOption: option function to apply
func WithLogger(logger *zap.Logger) BaseBuilderOption {
	return func(b *Base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithDebugMode makes shaders visualize the number of lights per cell.
//
// Parameters:
//   - debug: whether debug output is enabled
//
// Returns:
//   - BaseBuilderOption: option function to apply
func WithDebugMode(debug bool) BaseBuilderOption {
	return func(b *Base) {
		b.debugMode = debug
	}
}

// WithFadeAttenuationRange makes lights fade to zero at their attenuation
// range instead of cutting off. Enabled by default.
//
// Parameters:
//   - fade: whether the fade is applied
//
// Returns:
//   - BaseBuilderOption: option function to apply
func WithFadeAttenuationRange(fade bool) BaseBuilderOption {
	return func(b *Base) {
		b.fadeAttenuationRange = fade
	}
}
