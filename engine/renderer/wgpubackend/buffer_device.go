// Package wgpubackend implements the buffer device on WebGPU. WebGPU cannot
// keep a buffer mapped while the GPU reads it, so every storage keeps a CPU
// shadow copy: maps hand out shadow ranges and flushes push them through
// Queue.WriteBuffer.
package wgpubackend

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/buffer"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// copyAlignment is the offset and size alignment Queue.WriteBuffer requires.
const copyAlignment = 4

// BufferDevice is a buffer.Device on a WebGPU device. It never reports
// persistent mapping support.
type BufferDevice struct {
	mu     *sync.Mutex
	logger *zap.Logger

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	owned    bool

	forceFallbackAdapter bool
	usage                wgpu.BufferUsage

	fences   map[int]bool
	storages map[*bufferStorage]struct{}
}

var _ buffer.Device = &BufferDevice{}

// NewBufferDevice creates a device. Without WithDevice it requests a
// headless adapter and device of its own.
//
// Parameters:
//   - options: functional options to configure the device
//
// Returns:
//   - *BufferDevice: the device
//   - error: error if no adapter or device could be obtained
func NewBufferDevice(options ...BufferDeviceBuilderOption) (*BufferDevice, error) {
	d := &BufferDevice{
		mu:       &sync.Mutex{},
		logger:   zap.NewNop(),
		usage:    wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
		fences:   make(map[int]bool),
		storages: make(map[*bufferStorage]struct{}),
	}
	for _, option := range options {
		option(d)
	}
	if d.device != nil {
		return d, nil
	}

	runtime.LockOSThread()
	d.instance = wgpu.CreateInstance(nil)
	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallbackAdapter,
	})
	if err != nil {
		d.instance.Release()
		return nil, fmt.Errorf("wgpubackend: request adapter: %w", err)
	}
	d.adapter = a

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Lumen Buffer Device",
	})
	if err != nil {
		a.Release()
		d.instance.Release()
		return nil, fmt.Errorf("wgpubackend: request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()
	d.owned = true

	d.logger.Info("wgpu buffer device created", zap.Bool("fallbackAdapter", d.forceFallbackAdapter))
	return d, nil
}

func (d *BufferDevice) CreateStorage(size int, flags buffer.StorageFlags, initial []byte) (buffer.Storage, error) {
	if len(initial) > size {
		return nil, fmt.Errorf("wgpubackend: %d initial bytes exceed storage of %d", len(initial), size)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	aligned := alignUp(size)
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            fmt.Sprintf("Lumen Storage %d", len(d.storages)),
		Size:             uint64(aligned),
		Usage:            d.usage,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpubackend: create storage of %d bytes: %w", size, err)
	}

	s := &bufferStorage{
		device: d,
		buf:    buf,
		size:   size,
		shadow: make([]byte, aligned),
		flags:  flags,
	}
	if len(initial) > 0 {
		copy(s.shadow, initial)
		s.write(0, len(initial))
	}
	d.storages[s] = struct{}{}
	return s, nil
}

func (d *BufferDevice) SupportsPersistentMapping() bool {
	return false
}

// InsertFence records that the slot has queued work. WriteBuffer calls are
// ordered on the queue, so the wait only has to drain submitted work.
func (d *BufferDevice) InsertFence(slot int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fences[slot] = true
}

func (d *BufferDevice) WaitFence(slot int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.fences[slot] {
		return nil
	}
	delete(d.fences, slot)
	d.device.Poll(true, nil)
	return nil
}

// Device returns the WebGPU device the storage lives on.
func (d *BufferDevice) Device() *wgpu.Device {
	return d.device
}

func (d *BufferDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for s := range d.storages {
		s.release()
	}
	clear(d.storages)
	clear(d.fences)

	if !d.owned {
		return
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

// bufferStorage is one WebGPU buffer plus its CPU shadow copy.
type bufferStorage struct {
	device *BufferDevice
	buf    *wgpu.Buffer
	size   int
	shadow []byte
	flags  buffer.StorageFlags

	mapped    bool
	mapOffset int
	mapLength int
}

var _ buffer.Storage = &bufferStorage{}

func (s *bufferStorage) Size() int {
	return s.size
}

func (s *bufferStorage) Map(offset, length int, flags buffer.MapFlags) ([]byte, error) {
	if offset < 0 || length <= 0 || offset+length > s.size {
		return nil, fmt.Errorf("wgpubackend: map [%d, +%d) of %d bytes: out of range", offset, length, s.size)
	}
	if s.mapped {
		return nil, fmt.Errorf("wgpubackend: map: storage already mapped")
	}
	s.mapped = true
	s.mapOffset = offset
	s.mapLength = length
	return s.shadow[offset : offset+length : offset+length], nil
}

func (s *bufferStorage) Flush(offset, length int) error {
	if !s.mapped {
		return buffer.ErrNotMapped
	}
	if offset < 0 || length < 0 || offset+length > s.mapLength {
		return fmt.Errorf("wgpubackend: flush [%d, +%d) of %d mapped bytes: out of range", offset, length, s.mapLength)
	}
	if length == 0 {
		return nil
	}
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	s.write(s.mapOffset+offset, length)
	return nil
}

func (s *bufferStorage) Unmap() error {
	if !s.mapped {
		return buffer.ErrNotMapped
	}
	s.mapped = false
	return nil
}

func (s *bufferStorage) Upload(offset int, data []byte) error {
	if offset < 0 || offset+len(data) > s.size {
		return fmt.Errorf("wgpubackend: upload %d bytes at %d exceeds %d bytes", len(data), offset, s.size)
	}
	if len(data) == 0 {
		return nil
	}
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	copy(s.shadow[offset:], data)
	s.write(offset, len(data))
	return nil
}

func (s *bufferStorage) Release() {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	s.release()
	delete(s.device.storages, s)
}

// write pushes a shadow range to the GPU, widened to the copy alignment.
// Caller must hold the device mutex.
func (s *bufferStorage) write(offset, length int) {
	if s.buf == nil {
		return
	}
	start := offset &^ (copyAlignment - 1)
	end := alignUp(offset + length)
	s.device.queue.WriteBuffer(s.buf, uint64(start), s.shadow[start:end])
}

// release frees the GPU buffer. Caller must hold the device mutex.
func (s *bufferStorage) release() {
	if s.buf == nil {
		return
	}
	s.buf.Release()
	s.buf = nil
	s.mapped = false
}

func alignUp(n int) int {
	return (n + copyAlignment - 1) &^ (copyAlignment - 1)
}
