package glbackend

import (
	"time"

	"go.uber.org/zap"
)

// BufferDeviceBuilderOption is a functional option for configuring a BufferDevice.
type BufferDeviceBuilderOption func(*BufferDevice)

// WithLogger sets the logger used by the device.
//
// Parameters:
//   - logger: the logger; nil keeps the no-op default
//
// Returns:
//   - BufferDeviceBuilderOption: option function to apply
func WithLogger(logger *zap.Logger) BufferDeviceBuilderOption {
	return func(d *BufferDevice) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithPersistentMapping forces persistent mapping off, or back on when the
// context supports it.
//
// Parameters:
//   - enabled: whether persistent mapping may be used
//
// Returns:
//   - BufferDeviceBuilderOption: option function to apply
func WithPersistentMapping(enabled bool) BufferDeviceBuilderOption {
	return func(d *BufferDevice) {
		d.persistent = d.persistent && enabled
	}
}

// WithFenceTimeout sets how long a fence wait blocks before logging and
// retrying.
func WithFenceTimeout(timeout time.Duration) BufferDeviceBuilderOption {
	return func(d *BufferDevice) {
		if timeout > 0 {
			d.fenceTimeout = timeout
		}
	}
}
