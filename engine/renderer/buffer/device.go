package buffer

// MapFlags selects how a storage range is mapped. The bits mirror the
// glMapBufferRange access flags; backends without an equivalent ignore them.
type MapFlags uint32

const (
	MapWrite MapFlags = 1 << iota
	MapPersistent
	MapCoherent
	MapInvalidateBuffer
	MapUnsynchronized
	MapFlushExplicit
)

// Has reports whether every bit of f2 is set in f.
func (f MapFlags) Has(f2 MapFlags) bool {
	return f&f2 == f2
}

// StorageFlags describe how a storage allocation will be used.
type StorageFlags uint32

const (
	// StorageDynamic marks storage the CPU writes to every frame.
	StorageDynamic StorageFlags = 1 << iota
	// StoragePersistent allows the storage to stay mapped while the GPU reads it.
	StoragePersistent
	// StorageCoherent makes persistent writes visible without explicit flushes.
	StorageCoherent
)

// Storage is one GPU allocation. Offsets and lengths are in bytes. Flush
// offsets are relative to the start of the current mapping.
type Storage interface {
	// Size returns the allocation size in bytes.
	Size() int

	// Map maps a byte range for writing.
	//
	// Parameters:
	//   - offset: start of the range from the beginning of the allocation
	//   - length: length of the range
	//   - flags: access flags
	//
	// Returns:
	//   - []byte: the writable range
	//   - error: error if the range cannot be mapped
	Map(offset, length int, flags MapFlags) ([]byte, error)

	// Flush makes writes to part of the current mapping visible to the GPU.
	//
	// Parameters:
	//   - offset: start of the flushed range, relative to the mapping start
	//   - length: length of the flushed range
	//
	// Returns:
	//   - error: error if nothing is mapped or the range falls outside the mapping
	Flush(offset, length int) error

	// Unmap releases the current mapping.
	Unmap() error

	// Upload copies data into the allocation without mapping it.
	//
	// Parameters:
	//   - offset: destination offset from the beginning of the allocation
	//   - data: bytes to copy
	//
	// Returns:
	//   - error: error if the write falls outside the allocation
	Upload(offset int, data []byte) error

	// Release frees the allocation.
	Release()
}

// Device creates storage and synchronizes CPU writes with GPU frames.
// Implementations live in the memory, GL and WebGPU backends.
type Device interface {
	// CreateStorage allocates GPU memory.
	//
	// Parameters:
	//   - size: allocation size in bytes
	//   - flags: intended usage
	//   - initial: optional initial contents, at most size bytes
	//
	// Returns:
	//   - Storage: the allocation
	//   - error: error if the allocation fails
	CreateStorage(size int, flags StorageFlags, initial []byte) (Storage, error)

	// SupportsPersistentMapping reports whether storage can stay mapped
	// across frames.
	SupportsPersistentMapping() bool

	// InsertFence marks the end of the commands of the given dynamic frame slot.
	InsertFence(slot int)

	// WaitFence blocks until the commands fenced for slot have completed.
	// Waiting on a slot without a fence returns immediately.
	WaitFence(slot int) error

	// Release frees every device-side resource.
	Release()
}
