package buffer

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// DefaultDynamicBufferMultiplier is the number of frame copies a dynamic buffer holds.
const DefaultDynamicBufferMultiplier = 3

// managerImpl is the implementation of the Manager interface.
type managerImpl struct {
	mu     *sync.Mutex
	logger *zap.Logger

	device       Device
	multiplier   int
	frameCount   uint64
	dynamicFrame int
	buffers      map[*Buffer]struct{}
	nullTexture  *Texture
	nextBufferID int
}

// Manager creates and owns GPU buffers and paces CPU writes against the GPU
// with one fence per dynamic frame copy.
type Manager interface {
	// CreateBuffer allocates a buffer. Dynamic buffers get
	// DynamicBufferMultiplier frame copies.
	//
	// Parameters:
	//   - bufferType: how the buffer will be written
	//   - numElements: number of elements in one frame copy
	//   - bytesPerElement: element stride
	//   - initial: initial contents; required for immutable buffers
	//
	// Returns:
	//   - *Buffer: the buffer
	//   - error: ErrImmutableUpload, or a device error
	CreateBuffer(bufferType Type, numElements, bytesPerElement int, initial []byte) (*Buffer, error)

	// DestroyBuffer unmaps the buffer if needed and frees it.
	//
	// Parameters:
	//   - b: the buffer
	//
	// Returns:
	//   - error: ErrBufferNotOwned if another manager created b
	DestroyBuffer(b *Buffer) error

	// FrameCount returns the number of frames advanced so far.
	FrameCount() uint64

	// AdvanceFrame fences the current frame copy and moves to the next.
	AdvanceFrame()

	// WaitForTailFrameToFinish blocks until the GPU is done with the oldest
	// frame copy, the one the next map will write.
	//
	// Returns:
	//   - error: error if the device wait fails
	WaitForTailFrameToFinish() error

	// DynamicBufferMultiplier returns the number of frame copies per dynamic buffer.
	DynamicBufferMultiplier() int

	// SupportsPersistentMapping reports whether the device keeps mappings across frames.
	SupportsPersistentMapping() bool

	// NullShadowTexture returns the blank texture bound to unused shadow map units.
	NullShadowTexture() *Texture

	// Device returns the underlying device.
	Device() Device

	// Release destroys every owned buffer and the device.
	Release()
}

var _ Manager = &managerImpl{}

// NewManager creates a Manager over a device.
//
// Parameters:
//   - device: the backend device
//   - options: functional options to configure the manager
//
// Returns:
//   - Manager: the manager
func NewManager(device Device, options ...ManagerBuilderOption) Manager {
	m := &managerImpl{
		mu:          &sync.Mutex{},
		logger:      zap.NewNop(),
		device:      device,
		multiplier:  DefaultDynamicBufferMultiplier,
		buffers:     make(map[*Buffer]struct{}),
		nullTexture: NewTexture("null_shadow", 1, 1),
	}
	for _, option := range options {
		option(m)
	}
	if m.multiplier < 1 {
		panic(fmt.Sprintf("buffer: dynamic buffer multiplier must be at least 1, got %d", m.multiplier))
	}
	return m
}

func (m *managerImpl) CreateBuffer(bufferType Type, numElements, bytesPerElement int, initial []byte) (*Buffer, error) {
	if numElements <= 0 || bytesPerElement <= 0 {
		return nil, fmt.Errorf("buffer: create: invalid size %d x %d bytes", numElements, bytesPerElement)
	}
	if bufferType == TypeImmutable && len(initial) == 0 {
		return nil, fmt.Errorf("create: %w", ErrImmutableUpload)
	}

	multiplier := 1
	flags := StorageFlags(0)
	if bufferType.IsDynamic() {
		multiplier = m.multiplier
		flags |= StorageDynamic
		if bufferType >= TypeDynamicPersistent && m.device.SupportsPersistentMapping() {
			flags |= StoragePersistent
			if bufferType == TypeDynamicPersistentCoherent {
				flags |= StorageCoherent
			}
		}
	}

	storage, err := m.device.CreateStorage(numElements*bytesPerElement*multiplier, flags, nil)
	if err != nil {
		return nil, fmt.Errorf("buffer: create: %w", err)
	}

	m.mu.Lock()
	id := m.nextBufferID
	m.nextBufferID++
	m.mu.Unlock()

	b := &Buffer{
		name:            fmt.Sprintf("buffer_%d", id),
		bufferType:      bufferType,
		numElements:     numElements,
		bytesPerElement: bytesPerElement,
		multiplier:      multiplier,
		manager:         m,
	}
	iface := newInterface(b, storage, m)
	b.iface = iface

	if len(initial) > 0 {
		if err := iface.firstUpload(initial); err != nil {
			storage.Release()
			return nil, fmt.Errorf("buffer: create: %w", err)
		}
	}

	m.mu.Lock()
	m.buffers[b] = struct{}{}
	m.mu.Unlock()

	m.logger.Debug("buffer created",
		zap.String("name", b.name),
		zap.Int("type", int(bufferType)),
		zap.Int("elements", numElements),
		zap.Int("bytes_per_element", bytesPerElement),
	)
	return b, nil
}

func (m *managerImpl) DestroyBuffer(b *Buffer) error {
	m.mu.Lock()
	if _, ok := m.buffers[b]; !ok || b.manager != m {
		m.mu.Unlock()
		return fmt.Errorf("destroy: %w", ErrBufferNotOwned)
	}
	delete(m.buffers, b)
	m.mu.Unlock()

	var unmapErr error
	if b.state != MappingUnmapped {
		unmapErr = b.Unmap(UnmapAll, 0, 0)
	}
	return errors.Join(unmapErr, b.iface.Release())
}

func (m *managerImpl) FrameCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frameCount
}

func (m *managerImpl) AdvanceFrame() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.device.InsertFence(m.dynamicFrame)
	m.dynamicFrame = (m.dynamicFrame + 1) % m.multiplier
	m.frameCount++
}

func (m *managerImpl) WaitForTailFrameToFinish() error {
	m.mu.Lock()
	slot := m.dynamicFrame
	m.mu.Unlock()
	return m.device.WaitFence(slot)
}

func (m *managerImpl) DynamicBufferMultiplier() int {
	return m.multiplier
}

func (m *managerImpl) SupportsPersistentMapping() bool {
	return m.device.SupportsPersistentMapping()
}

func (m *managerImpl) NullShadowTexture() *Texture {
	return m.nullTexture
}

func (m *managerImpl) Device() Device {
	return m.device
}

func (m *managerImpl) Release() {
	m.mu.Lock()
	owned := make([]*Buffer, 0, len(m.buffers))
	for b := range m.buffers {
		owned = append(owned, b)
	}
	m.mu.Unlock()

	for _, b := range owned {
		if err := m.DestroyBuffer(b); err != nil {
			m.logger.Warn("buffer release failed", zap.String("name", b.name), zap.Error(err))
		}
	}
	m.device.Release()
}
