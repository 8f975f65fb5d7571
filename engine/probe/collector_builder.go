package probe

import "go.uber.org/zap"

// CollectorBuilderOption is a functional option for configuring a Collector.
type CollectorBuilderOption func(*collectorImpl)

// WithLogger sets the logger used by the collector.
//
// Parameters:
//   - logger: the logger; nil keeps the no-op default
//
// Returns:
//   - CollectorBuilderOption: option function to apply
func WithLogger(logger *zap.Logger) CollectorBuilderOption {
	return func(c *collectorImpl) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBlankProbe replaces the probe bound to unused blend entries.
//
// Parameters:
//   - p: the blank probe
//
// Returns:
//   - CollectorBuilderOption: option function to apply
func WithBlankProbe(p Probe) CollectorBuilderOption {
	return func(c *collectorImpl) {
		c.blank = p
	}
}
