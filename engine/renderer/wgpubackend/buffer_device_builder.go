package wgpubackend

import (
	"github.com/cogentcore/webgpu/wgpu"
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

// WithDevice shares an existing device and queue instead of requesting new
// ones. The device stays owned by the caller.
//
// Parameters:
//   - device: the WebGPU device
//   - queue: the device's queue
//
// Returns:
//   - BufferDeviceBuilderOption: option function to apply
func WithDevice(device *wgpu.Device, queue *wgpu.Queue) BufferDeviceBuilderOption {
	return func(d *BufferDevice) {
		d.device = device
		d.queue = queue
	}
}

// WithForceFallbackAdapter requests the software fallback adapter.
func WithForceFallbackAdapter(force bool) BufferDeviceBuilderOption {
	return func(d *BufferDevice) {
		d.forceFallbackAdapter = force
	}
}

// WithBufferUsage replaces the usage flags of created buffers. CopyDst is
// always added since flushes write through the queue.
func WithBufferUsage(usage wgpu.BufferUsage) BufferDeviceBuilderOption {
	return func(d *BufferDevice) {
		d.usage = usage | wgpu.BufferUsageCopyDst
	}
}
