package buffer

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotMapped is returned by storage flushes and unmaps without a mapping.
var ErrNotMapped = errors.New("buffer: storage is not mapped")

// MemoryOp names a recorded MemoryDevice call.
type MemoryOp string

const (
	OpMap    MemoryOp = "map"
	OpFlush  MemoryOp = "flush"
	OpUnmap  MemoryOp = "unmap"
	OpUpload MemoryOp = "upload"
	OpFence  MemoryOp = "fence"
	OpWait   MemoryOp = "wait"
)

// MemoryCall is one recorded MemoryDevice call. Offset and Length are bytes;
// for fences and waits Offset holds the frame slot.
type MemoryCall struct {
	Op      MemoryOp
	Storage int
	Offset  int
	Length  int
	Flags   MapFlags
}

// MemoryDevice is a Device backed by CPU byte slices. It records every call,
// which makes it the device of choice for headless runs and tests.
type MemoryDevice struct {
	mu         *sync.Mutex
	persistent bool
	storages   []*memoryStorage
	fences     map[int]bool
	calls      []MemoryCall
}

var _ Device = &MemoryDevice{}

// NewMemoryDevice creates a MemoryDevice.
//
// Parameters:
//   - persistent: whether the device reports persistent mapping support
//
// Returns:
//   - *MemoryDevice: the device
func NewMemoryDevice(persistent bool) *MemoryDevice {
	return &MemoryDevice{
		mu:         &sync.Mutex{},
		persistent: persistent,
		fences:     make(map[int]bool),
	}
}

func (d *MemoryDevice) CreateStorage(size int, flags StorageFlags, initial []byte) (Storage, error) {
	if len(initial) > size {
		return nil, fmt.Errorf("buffer: %d initial bytes exceed storage of %d", len(initial), size)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &memoryStorage{
		device: d,
		id:     len(d.storages),
		data:   make([]byte, size),
		flags:  flags,
	}
	copy(s.data, initial)
	d.storages = append(d.storages, s)
	return s, nil
}

func (d *MemoryDevice) SupportsPersistentMapping() bool {
	return d.persistent
}

func (d *MemoryDevice) InsertFence(slot int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fences[slot] = true
	d.calls = append(d.calls, MemoryCall{Op: OpFence, Offset: slot})
}

func (d *MemoryDevice) WaitFence(slot int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fences[slot] {
		delete(d.fences, slot)
		d.calls = append(d.calls, MemoryCall{Op: OpWait, Offset: slot})
	}
	return nil
}

func (d *MemoryDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.storages = nil
	d.fences = make(map[int]bool)
}

// Calls returns a copy of the recorded calls.
func (d *MemoryDevice) Calls() []MemoryCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]MemoryCall(nil), d.calls...)
}

// ResetCalls clears the recorded calls.
func (d *MemoryDevice) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = d.calls[:0]
}

// Contents returns the bytes of the storage backing b. Reads bypass mapping.
//
// Parameters:
//   - b: a buffer created on this device
//
// Returns:
//   - []byte: the whole storage, including every frame copy
func (d *MemoryDevice) Contents(b *Buffer) []byte {
	p, ok := b.iface.(*persistentInterface)
	if !ok {
		return nil
	}
	s, ok := p.storage.(*memoryStorage)
	if !ok {
		return nil
	}
	return s.data
}

func (d *MemoryDevice) record(c MemoryCall) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, c)
}

type memoryStorage struct {
	device   *MemoryDevice
	id       int
	data     []byte
	flags    StorageFlags
	mapped   bool
	mapStart int
	mapLen   int
	released bool
}

func (s *memoryStorage) Size() int {
	return len(s.data)
}

func (s *memoryStorage) Map(offset, length int, flags MapFlags) ([]byte, error) {
	if s.mapped {
		return nil, fmt.Errorf("buffer: storage %d is already mapped", s.id)
	}
	if offset < 0 || length < 0 || offset+length > len(s.data) {
		return nil, fmt.Errorf("buffer: map [%d, +%d) outside storage of %d bytes", offset, length, len(s.data))
	}
	if flags.Has(MapPersistent) && s.flags&StoragePersistent == 0 {
		return nil, fmt.Errorf("buffer: persistent map of non-persistent storage %d", s.id)
	}
	s.mapped = true
	s.mapStart = offset
	s.mapLen = length
	s.device.record(MemoryCall{Op: OpMap, Storage: s.id, Offset: offset, Length: length, Flags: flags})
	return s.data[offset : offset+length : offset+length], nil
}

func (s *memoryStorage) Flush(offset, length int) error {
	if !s.mapped {
		return ErrNotMapped
	}
	if offset < 0 || length < 0 || offset+length > s.mapLen {
		return fmt.Errorf("buffer: flush [%d, +%d) outside mapping of %d bytes", offset, length, s.mapLen)
	}
	s.device.record(MemoryCall{Op: OpFlush, Storage: s.id, Offset: offset, Length: length})
	return nil
}

func (s *memoryStorage) Unmap() error {
	if !s.mapped {
		return ErrNotMapped
	}
	s.mapped = false
	s.device.record(MemoryCall{Op: OpUnmap, Storage: s.id})
	return nil
}

func (s *memoryStorage) Upload(offset int, data []byte) error {
	if offset < 0 || offset+len(data) > len(s.data) {
		return fmt.Errorf("buffer: upload [%d, +%d) outside storage of %d bytes", offset, len(data), len(s.data))
	}
	copy(s.data[offset:], data)
	s.device.record(MemoryCall{Op: OpUpload, Storage: s.id, Offset: offset, Length: len(data)})
	return nil
}

func (s *memoryStorage) Release() {
	s.released = true
	s.mapped = false
}
