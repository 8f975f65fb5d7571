package program

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
