// Package glbackend implements the buffer device and program linker on an
// OpenGL 4.3 core context. Every call must come from the goroutine that owns
// the current context; callers lock it to its OS thread.
package glbackend

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-lumen/engine/renderer/buffer"
	"github.com/go-gl/gl/v4.3-core/gl"
	"go.uber.org/zap"
)

var (
	// ErrGL wraps errors reported by glGetError.
	ErrGL = errors.New("glbackend: GL error")

	// ErrStorageCorrupted is returned when glUnmapBuffer reports the mapped
	// contents were lost.
	ErrStorageCorrupted = errors.New("glbackend: buffer contents corrupted while mapped")

	// ErrFenceWaitFailed is returned when glClientWaitSync fails.
	ErrFenceWaitFailed = errors.New("glbackend: fence wait failed")
)

// bufferTarget is the bind point used for every storage operation. It is
// never read by draws, so binding to it does not disturb pipeline state.
const bufferTarget = gl.COPY_WRITE_BUFFER

var (
	initOnce sync.Once
	initErr  error
)

// BufferDevice is a buffer.Device backed by GL buffer objects. Persistent
// storage uses glBufferStorage when the context provides GL 4.4 or
// ARB_buffer_storage; otherwise buffers are orphaned with glBufferData and
// mapped per write.
type BufferDevice struct {
	mu     *sync.Mutex
	logger *zap.Logger

	persistent   bool
	fences       map[int]uintptr
	fenceTimeout time.Duration
	storages     map[*bufferStorage]struct{}
}

var _ buffer.Device = &BufferDevice{}

// NewBufferDevice loads the GL entry points for the current context and
// creates a device.
//
// Parameters:
//   - options: functional options to configure the device
//
// Returns:
//   - *BufferDevice: the device
//   - error: error if the GL entry points could not be loaded
func NewBufferDevice(options ...BufferDeviceBuilderOption) (*BufferDevice, error) {
	initOnce.Do(func() {
		initErr = gl.Init()
	})
	if initErr != nil {
		return nil, fmt.Errorf("glbackend: init: %w", initErr)
	}

	d := &BufferDevice{
		mu:           &sync.Mutex{},
		logger:       zap.NewNop(),
		persistent:   hasBufferStorage(),
		fences:       make(map[int]uintptr),
		fenceTimeout: 1 * time.Second,
		storages:     make(map[*bufferStorage]struct{}),
	}
	for _, option := range options {
		option(d)
	}

	d.logger.Info("gl buffer device created",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
		zap.Bool("persistent", d.persistent))
	return d, nil
}

// hasBufferStorage reports whether glBufferStorage is available.
func hasBufferStorage() bool {
	var major, minor int32
	gl.GetIntegerv(gl.MAJOR_VERSION, &major)
	gl.GetIntegerv(gl.MINOR_VERSION, &minor)
	if major > 4 || (major == 4 && minor >= 4) {
		return true
	}

	var n int32
	gl.GetIntegerv(gl.NUM_EXTENSIONS, &n)
	for i := range n {
		if gl.GoStr(gl.GetStringi(gl.EXTENSIONS, uint32(i))) == "GL_ARB_buffer_storage" {
			return true
		}
	}
	return false
}

func (d *BufferDevice) CreateStorage(size int, flags buffer.StorageFlags, initial []byte) (buffer.Storage, error) {
	if len(initial) > size {
		return nil, fmt.Errorf("glbackend: %d initial bytes exceed storage of %d", len(initial), size)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	data := initial
	if len(data) > 0 && len(data) < size {
		data = make([]byte, size)
		copy(data, initial)
	}

	s := &bufferStorage{device: d, size: size, flags: flags}
	gl.GenBuffers(1, &s.handle)
	gl.BindBuffer(bufferTarget, s.handle)

	if d.persistent && flags&buffer.StoragePersistent != 0 {
		storageFlags := uint32(gl.MAP_WRITE_BIT | gl.MAP_PERSISTENT_BIT | gl.DYNAMIC_STORAGE_BIT)
		if flags&buffer.StorageCoherent != 0 {
			storageFlags |= gl.MAP_COHERENT_BIT
		}
		gl.BufferStorage(bufferTarget, size, bytePtr(data), storageFlags)
		s.immutable = true
	} else {
		usage := uint32(gl.STATIC_DRAW)
		if flags&buffer.StorageDynamic != 0 {
			usage = gl.DYNAMIC_DRAW
		}
		gl.BufferData(bufferTarget, size, bytePtr(data), usage)
	}

	if err := checkError("create storage"); err != nil {
		gl.DeleteBuffers(1, &s.handle)
		return nil, err
	}
	d.storages[s] = struct{}{}
	return s, nil
}

func (d *BufferDevice) SupportsPersistentMapping() bool {
	return d.persistent
}

func (d *BufferDevice) InsertFence(slot int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f, ok := d.fences[slot]; ok {
		gl.DeleteSync(f)
	}
	d.fences[slot] = gl.FenceSync(gl.SYNC_GPU_COMMANDS_COMPLETE, 0)
}

func (d *BufferDevice) WaitFence(slot int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.fences[slot]
	if !ok {
		return nil
	}
	defer func() {
		gl.DeleteSync(f)
		delete(d.fences, slot)
	}()

	flags := uint32(0)
	for {
		switch gl.ClientWaitSync(f, flags, uint64(d.fenceTimeout.Nanoseconds())) {
		case gl.ALREADY_SIGNALED, gl.CONDITION_SATISFIED:
			return nil
		case gl.WAIT_FAILED:
			return fmt.Errorf("glbackend: wait slot %d: %w", slot, ErrFenceWaitFailed)
		}
		// The first timeout may only mean the commands were never flushed.
		flags = gl.SYNC_FLUSH_COMMANDS_BIT
		d.logger.Warn("fence wait timed out, retrying",
			zap.Int("slot", slot),
			zap.Duration("timeout", d.fenceTimeout))
	}
}

func (d *BufferDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for slot, f := range d.fences {
		gl.DeleteSync(f)
		delete(d.fences, slot)
	}
	for s := range d.storages {
		s.release()
	}
	clear(d.storages)
}

// bufferStorage is one GL buffer object.
type bufferStorage struct {
	device    *BufferDevice
	handle    uint32
	size      int
	flags     buffer.StorageFlags
	immutable bool

	mapped   []byte
	mapFlags buffer.MapFlags
}

var _ buffer.Storage = &bufferStorage{}

func (s *bufferStorage) Size() int {
	return s.size
}

func (s *bufferStorage) Map(offset, length int, flags buffer.MapFlags) ([]byte, error) {
	if offset < 0 || length <= 0 || offset+length > s.size {
		return nil, fmt.Errorf("glbackend: map [%d, +%d) of %d bytes: out of range", offset, length, s.size)
	}
	if s.mapped != nil {
		return nil, fmt.Errorf("glbackend: map buffer %d: already mapped", s.handle)
	}
	if !s.immutable {
		flags &^= buffer.MapPersistent | buffer.MapCoherent
	}

	gl.BindBuffer(bufferTarget, s.handle)
	ptr := gl.MapBufferRange(bufferTarget, offset, length, accessBits(flags))
	if ptr == nil {
		if err := checkError("map"); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("glbackend: map buffer %d returned no pointer", s.handle)
	}
	s.mapped = unsafe.Slice((*byte)(ptr), length)
	s.mapFlags = flags
	return s.mapped, nil
}

func (s *bufferStorage) Flush(offset, length int) error {
	if s.mapped == nil {
		return buffer.ErrNotMapped
	}
	if offset < 0 || length < 0 || offset+length > len(s.mapped) {
		return fmt.Errorf("glbackend: flush [%d, +%d) of %d mapped bytes: out of range", offset, length, len(s.mapped))
	}
	if !s.mapFlags.Has(buffer.MapFlushExplicit) || length == 0 {
		return nil
	}
	gl.BindBuffer(bufferTarget, s.handle)
	gl.FlushMappedBufferRange(bufferTarget, offset, length)
	return checkError("flush")
}

func (s *bufferStorage) Unmap() error {
	if s.mapped == nil {
		return buffer.ErrNotMapped
	}
	s.mapped = nil
	gl.BindBuffer(bufferTarget, s.handle)
	if !gl.UnmapBuffer(bufferTarget) {
		return fmt.Errorf("glbackend: unmap buffer %d: %w", s.handle, ErrStorageCorrupted)
	}
	return checkError("unmap")
}

func (s *bufferStorage) Upload(offset int, data []byte) error {
	if offset < 0 || offset+len(data) > s.size {
		return fmt.Errorf("glbackend: upload %d bytes at %d exceeds %d bytes", len(data), offset, s.size)
	}
	if len(data) == 0 {
		return nil
	}
	gl.BindBuffer(bufferTarget, s.handle)
	gl.BufferSubData(bufferTarget, offset, len(data), bytePtr(data))
	return checkError("upload")
}

func (s *bufferStorage) Release() {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	s.release()
	delete(s.device.storages, s)
}

// release deletes the buffer object, which also drops a live mapping.
// Caller must hold the device mutex.
func (s *bufferStorage) release() {
	if s.handle == 0 {
		return
	}
	gl.DeleteBuffers(1, &s.handle)
	s.handle = 0
	s.mapped = nil
}

// accessBits translates map flags into glMapBufferRange access bits.
func accessBits(flags buffer.MapFlags) uint32 {
	var bits uint32
	if flags.Has(buffer.MapWrite) {
		bits |= gl.MAP_WRITE_BIT
	}
	if flags.Has(buffer.MapPersistent) {
		bits |= gl.MAP_PERSISTENT_BIT
	}
	if flags.Has(buffer.MapCoherent) {
		bits |= gl.MAP_COHERENT_BIT
	}
	// Only the mapped range is rewritten; other frame copies may still be in
	// flight, so the rest of the buffer must survive.
	if flags.Has(buffer.MapInvalidateBuffer) {
		bits |= gl.MAP_INVALIDATE_RANGE_BIT
	}
	if flags.Has(buffer.MapUnsynchronized) {
		bits |= gl.MAP_UNSYNCHRONIZED_BIT
	}
	if flags.Has(buffer.MapFlushExplicit) {
		bits |= gl.MAP_FLUSH_EXPLICIT_BIT
	}
	return bits
}

func bytePtr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return gl.Ptr(&b[0])
}

// checkError drains the GL error queue into one error.
func checkError(op string) error {
	var codes []string
	for code := gl.GetError(); code != gl.NO_ERROR; code = gl.GetError() {
		codes = append(codes, fmt.Sprintf("0x%04x", code))
	}
	if len(codes) == 0 {
		return nil
	}
	return fmt.Errorf("glbackend: %s: %w %s", op, ErrGL, strings.Join(codes, ", "))
}
