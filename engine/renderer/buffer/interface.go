package buffer

import (
	"fmt"
)

// frameSource is the part of the manager a buffer interface depends on.
type frameSource interface {
	WaitForTailFrameToFinish() error
	SupportsPersistentMapping() bool
}

// Interface drives the device storage behind one Buffer. It decides which
// storage range to map for the current frame copy, and whether unmapping
// flushes, really unmaps, or keeps a persistent mapping alive.
type Interface interface {
	// Map maps count elements from start of the frame copy selected by
	// advanceFrame.
	//
	// Parameters:
	//   - start: first element relative to a frame copy
	//   - count: number of elements
	//   - prev: the buffer's mapping state before this map
	//   - advance: whether to move to the next frame copy first
	//
	// Returns:
	//   - []byte: the writable range
	//   - error: error if the device fails
	Map(start, count int, prev MappingState, advance bool) ([]byte, error)

	// Unmap flushes and possibly unmaps the last Map.
	//
	// Parameters:
	//   - opt: whether persistent mappings are released
	//   - flushStart: first element to flush, relative to the last Map
	//   - flushSize: number of elements to flush, zero for the rest
	//
	// Returns:
	//   - error: ErrFlushOutOfBounds, or a device error
	Unmap(opt UnmapOptions, flushStart, flushSize int) error

	// AdvanceFrame moves to the next frame copy.
	//
	// Returns:
	//   - int: the new frame copy index
	AdvanceFrame() int

	// Upload writes elements without mapping.
	Upload(data []byte, elementStart int) error

	// Release frees the storage. A live mapping is released first.
	Release() error
}

// persistentInterface is the Interface implementation used by every backend.
// Backend differences live in Storage.
type persistentInterface struct {
	buffer  *Buffer
	storage Storage
	frames  frameSource
	mapped  []byte
}

var _ Interface = &persistentInterface{}

func newInterface(b *Buffer, storage Storage, frames frameSource) *persistentInterface {
	return &persistentInterface{buffer: b, storage: storage, frames: frames}
}

func (p *persistentInterface) Map(start, count int, prev MappingState, advance bool) ([]byte, error) {
	b := p.buffer
	bpe := b.bytesPerElement
	canPersistentMap := p.frames.SupportsPersistentMapping()

	if err := p.frames.WaitForTailFrameToFinish(); err != nil {
		return nil, fmt.Errorf("buffer: map %q: %w", b.name, err)
	}

	frame := p.advanceFrame(advance)
	persistent := b.state >= MappingPersistentIncoherent && canPersistentMap

	if prev == MappingUnmapped || !canPersistentMap || p.mapped == nil {
		flags := MapWrite | MapInvalidateBuffer | MapUnsynchronized | MapFlushExplicit

		// Non-persistent maps cover only the region written this frame.
		offset := b.internalStart + start + b.numElements*frame
		length := count

		if persistent {
			offset = b.internalStart
			length = b.numElements * b.multiplier
			flags |= MapPersistent
			if b.state == MappingPersistentCoherent {
				flags |= MapCoherent
			}
		}

		b.mappingStart = offset
		b.mappingCount = length

		mapped, err := p.storage.Map(offset*bpe, length*bpe, flags)
		if err != nil {
			return nil, fmt.Errorf("buffer: map %q: %w", b.name, err)
		}
		p.mapped = mapped
	}

	b.lastMappingStart = 0
	b.lastMappingCount = count

	if persistent {
		b.lastMappingStart = start + b.numElements*frame
	}

	from := b.lastMappingStart * bpe
	return p.mapped[from : from+count*bpe], nil
}

func (p *persistentInterface) Unmap(opt UnmapOptions, flushStart, flushSize int) error {
	b := p.buffer
	if flushStart < 0 || flushSize < 0 ||
		flushStart >= b.lastMappingCount || flushStart+flushSize > b.lastMappingCount {
		return fmt.Errorf("unmap %q: flush [%d, +%d) of %d elements: %w",
			b.name, flushStart, flushSize, b.lastMappingCount, ErrFlushOutOfBounds)
	}

	canPersistentMap := p.frames.SupportsPersistentMapping()
	if b.state > MappingPersistentIncoherent && opt != UnmapAll && canPersistentMap {
		return nil
	}

	if flushSize == 0 {
		flushSize = b.lastMappingCount - flushStart
	}

	bpe := b.bytesPerElement
	if err := p.storage.Flush((b.lastMappingStart+flushStart)*bpe, flushSize*bpe); err != nil {
		return fmt.Errorf("buffer: flush %q: %w", b.name, err)
	}

	if opt == UnmapAll || !canPersistentMap || b.state == MappingMapped {
		if err := p.storage.Unmap(); err != nil {
			return fmt.Errorf("buffer: unmap %q: %w", b.name, err)
		}
		p.mapped = nil
	}
	return nil
}

func (p *persistentInterface) AdvanceFrame() int {
	return p.advanceFrame(true)
}

// advanceFrame returns the frame copy to use, moving to the next one first
// when advance is set.
func (p *persistentInterface) advanceFrame(advance bool) int {
	b := p.buffer
	frame := (b.finalStart - b.internalStart) / b.numElements
	if advance {
		frame = (frame + 1) % b.multiplier
	}
	b.finalStart = b.internalStart + frame*b.numElements
	return frame
}

func (p *persistentInterface) Upload(data []byte, elementStart int) error {
	b := p.buffer
	if len(data)%b.bytesPerElement != 0 {
		return fmt.Errorf("buffer: upload %q: %d bytes is not a multiple of %d", b.name, len(data), b.bytesPerElement)
	}
	if elementStart < 0 || elementStart+len(data)/b.bytesPerElement > b.numElements {
		return fmt.Errorf("buffer: upload %q: %d bytes at element %d exceed %d elements",
			b.name, len(data), elementStart, b.numElements)
	}
	return p.storage.Upload((b.internalStart+elementStart)*b.bytesPerElement, data)
}

// firstUpload writes initial data, accepting immutable buffers.
func (p *persistentInterface) firstUpload(data []byte) error {
	return p.Upload(data, 0)
}

func (p *persistentInterface) Release() error {
	var err error
	if p.mapped != nil {
		err = p.storage.Unmap()
		p.mapped = nil
	}
	p.storage.Release()
	return err
}
