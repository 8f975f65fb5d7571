package buffer

// Mapping is a Map that unmaps on Close. Close is safe to call more than
// once, so callers can both defer it and close early to check the error.
type Mapping struct {
	// Data is the writable range returned by Map.
	Data []byte

	buffer     *Buffer
	opt        UnmapOptions
	flushStart int
	flushSize  int
	closed     bool
}

// SetFlushRange limits the flush performed by Close to part of the mapping.
//
// Parameters:
//   - start: first element to flush, relative to the mapping
//   - size: number of elements, zero for the rest of the mapping
func (m *Mapping) SetFlushRange(start, size int) {
	m.flushStart = start
	m.flushSize = size
}

// SetUnmapOption selects the unmap option Close uses. The default keeps
// persistent mappings alive.
func (m *Mapping) SetUnmapOption(opt UnmapOptions) {
	m.opt = opt
}

// Close unmaps the buffer.
//
// Returns:
//   - error: error from the first Close only
func (m *Mapping) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.Data = nil
	return m.buffer.Unmap(m.opt, m.flushStart, m.flushSize)
}
