package buffer

import "go.uber.org/zap"

// ManagerBuilderOption is a functional option for configuring a Manager.
type ManagerBuilderOption func(*managerImpl)

// WithLogger sets the logger used by the manager.
//
// Parameters:
//   - logger: the logger; nil keeps the no-op default
//
// Returns:
//   - ManagerBuilderOption: option function to apply
func WithLogger(logger *zap.Logger) ManagerBuilderOption {
	return func(m *managerImpl) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithDynamicBufferMultiplier sets how many frame copies dynamic buffers hold.
//
// Parameters:
//   - n: the number of copies, at least 1
//
// Returns:
//   - ManagerBuilderOption: option function to apply
func WithDynamicBufferMultiplier(n int) ManagerBuilderOption {
	return func(m *managerImpl) {
		m.multiplier = n
	}
}

// WithNullShadowTexture replaces the blank shadow texture.
//
// Parameters:
//   - tex: the texture bound to unused shadow map units
//
// Returns:
//   - ManagerBuilderOption: option function to apply
func WithNullShadowTexture(tex *Texture) ManagerBuilderOption {
	return func(m *managerImpl) {
		m.nullTexture = tex
	}
}
