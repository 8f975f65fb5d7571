// Package buffer implements GPU buffers with multi-frame persistent mapping.
// A dynamic buffer holds DynamicBufferMultiplier copies of its contents; each
// frame's first map advances to the next copy so the CPU never writes memory
// the GPU may still be reading.
package buffer

import (
	"errors"
	"fmt"
)

var (
	// ErrBufferNotOwned is returned when destroying a buffer created by another manager.
	ErrBufferNotOwned = errors.New("buffer: buffer not owned by this manager")

	// ErrFlushOutOfBounds is returned when an unmap flush range falls outside the last mapping.
	ErrFlushOutOfBounds = errors.New("buffer: flush region out of bounds")

	// ErrNotMappable is returned when mapping a buffer that is not dynamic.
	ErrNotMappable = errors.New("buffer: only dynamic buffers can be mapped")

	// ErrAlreadyMapped is returned when mapping a non-persistent buffer twice.
	ErrAlreadyMapped = errors.New("buffer: buffer is already mapped")

	// ErrImmutableUpload is returned when uploading to an immutable buffer
	// after creation, or creating one without initial data.
	ErrImmutableUpload = errors.New("buffer: immutable buffers only accept initial data")
)

// Type says how a buffer's contents change over its lifetime.
type Type int

const (
	// TypeImmutable buffers are written once at creation.
	TypeImmutable Type = iota
	// TypeDefault buffers are written occasionally through uploads.
	TypeDefault
	// TypeDynamic buffers are mapped and rewritten every frame.
	TypeDynamic
	// TypeDynamicPersistent buffers stay mapped and need explicit flushes.
	TypeDynamicPersistent
	// TypeDynamicPersistentCoherent buffers stay mapped without flushes.
	TypeDynamicPersistentCoherent
)

// IsDynamic reports whether buffers of this type are CPU-mapped.
func (t Type) IsDynamic() bool {
	return t >= TypeDynamic
}

// MappingState is the mapping status of a buffer. States are ordered.
type MappingState int

const (
	MappingUnmapped MappingState = iota
	MappingMapped
	MappingPersistentIncoherent
	MappingPersistentCoherent
)

// UnmapOptions selects whether a persistent buffer really unmaps.
type UnmapOptions int

const (
	// UnmapAll releases the mapping regardless of persistence.
	UnmapAll UnmapOptions = iota
	// UnmapKeepPersistent flushes but keeps persistent mappings alive.
	UnmapKeepPersistent
)

// Buffer is a GPU buffer created by a Manager. Element offsets and counts are
// in units of BytesPerElement. Not safe for concurrent use.
type Buffer struct {
	name            string
	bufferType      Type
	numElements     int
	bytesPerElement int
	multiplier      int

	internalStart int
	finalStart    int
	state         MappingState

	mappingStart     int
	mappingCount     int
	lastMappingStart int
	lastMappingCount int

	// advanced is set once the buffer has moved to a frame copy;
	// lastFrameAdvanced is the manager frame it last moved in.
	advanced          bool
	lastFrameAdvanced uint64

	iface   Interface
	manager *managerImpl
}

// Name returns the buffer's debug name.
func (b *Buffer) Name() string {
	return b.name
}

// Type returns the buffer type.
func (b *Buffer) Type() Type {
	return b.bufferType
}

// NumElements returns the number of elements in one frame's copy.
func (b *Buffer) NumElements() int {
	return b.numElements
}

// BytesPerElement returns the element stride.
func (b *Buffer) BytesPerElement() int {
	return b.bytesPerElement
}

// TotalSizeBytes returns the size of one frame's copy in bytes.
func (b *Buffer) TotalSizeBytes() int {
	return b.numElements * b.bytesPerElement
}

// MappingState returns the current mapping state.
func (b *Buffer) MappingState() MappingState {
	return b.state
}

// InternalStart returns the element offset of the buffer inside its storage.
func (b *Buffer) InternalStart() int {
	return b.internalStart
}

// FinalStart returns the element offset of the copy the GPU reads this frame.
func (b *Buffer) FinalStart() int {
	return b.finalStart
}

// CurrentFrame returns the index of the copy the GPU reads this frame.
func (b *Buffer) CurrentFrame() int {
	return (b.finalStart - b.internalStart) / b.numElements
}

// MappingRange returns the element range of the storage last passed to the device.
func (b *Buffer) MappingRange() (start, count int) {
	return b.mappingStart, b.mappingCount
}

// LastMappingRange returns the range returned by the last Map, relative to the device mapping.
func (b *Buffer) LastMappingRange() (start, count int) {
	return b.lastMappingStart, b.lastMappingCount
}

// Map maps count elements starting at start of the current frame's copy.
// The first map of a manager frame advances the buffer to the next copy;
// later maps in the same frame write that copy again.
//
// Parameters:
//   - start: first element to map
//   - count: number of elements to map
//
// Returns:
//   - []byte: writable bytes, count * BytesPerElement long
//   - error: error if the buffer is not dynamic, already mapped, or the device fails
func (b *Buffer) Map(start, count int) ([]byte, error) {
	if !b.bufferType.IsDynamic() {
		return nil, fmt.Errorf("map %q: %w", b.name, ErrNotMappable)
	}
	if b.state == MappingMapped {
		return nil, fmt.Errorf("map %q: %w", b.name, ErrAlreadyMapped)
	}
	if start < 0 || count <= 0 || start+count > b.numElements {
		return nil, fmt.Errorf("buffer: map %q: range [%d, %d) outside %d elements", b.name, start, start+count, b.numElements)
	}

	prev := b.state
	switch b.bufferType {
	case TypeDynamicPersistent:
		b.state = MappingPersistentIncoherent
	case TypeDynamicPersistentCoherent:
		b.state = MappingPersistentCoherent
	default:
		b.state = MappingMapped
	}

	frame := b.manager.FrameCount()
	advance := !b.advanced || frame != b.lastFrameAdvanced
	data, err := b.iface.Map(start, count, prev, advance)
	if err != nil {
		b.state = prev
		return nil, err
	}
	if advance {
		b.advanced = true
		b.lastFrameAdvanced = frame
	}
	return data, nil
}

// Unmap ends a Map. Non-coherent ranges are flushed; flushSize zero flushes
// from flushStart to the end of the mapped range.
//
// Parameters:
//   - opt: whether persistent mappings are released
//   - flushStart: first element to flush, relative to the mapped range
//   - flushSize: number of elements to flush
//
// Returns:
//   - error: ErrFlushOutOfBounds, or a device error
func (b *Buffer) Unmap(opt UnmapOptions, flushStart, flushSize int) error {
	if b.state == MappingUnmapped {
		return nil
	}
	if err := b.iface.Unmap(opt, flushStart, flushSize); err != nil {
		return err
	}
	// Without persistent support the storage was really unmapped.
	if opt == UnmapAll || b.state == MappingMapped || !b.manager.SupportsPersistentMapping() {
		b.state = MappingUnmapped
	}
	return nil
}

// MapScoped maps like Map and returns a Mapping whose Close unmaps.
//
// Parameters:
//   - start: first element to map
//   - count: number of elements to map
//
// Returns:
//   - *Mapping: the mapping; Close it on every path
//   - error: error if the map fails
func (b *Buffer) MapScoped(start, count int) (*Mapping, error) {
	data, err := b.Map(start, count)
	if err != nil {
		return nil, err
	}
	return &Mapping{Data: data, buffer: b, opt: UnmapKeepPersistent}, nil
}

// Upload writes data into a default buffer starting at elementStart.
//
// Parameters:
//   - data: bytes to write, a multiple of BytesPerElement
//   - elementStart: first destination element
//
// Returns:
//   - error: ErrImmutableUpload for immutable buffers, or a device error
func (b *Buffer) Upload(data []byte, elementStart int) error {
	if b.bufferType == TypeImmutable {
		return fmt.Errorf("upload %q: %w", b.name, ErrImmutableUpload)
	}
	return b.iface.Upload(data, elementStart)
}

// AdvanceFrame moves the buffer to its next frame copy without mapping. A
// map later in the same manager frame stays on that copy.
func (b *Buffer) AdvanceFrame() {
	b.iface.AdvanceFrame()
	b.advanced = true
	b.lastFrameAdvanced = b.manager.FrameCount()
}
