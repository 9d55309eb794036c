package pci

// Editor is a mutable working copy of a config space. The immutable
// ConfigSpace is the parse-side contract; artifact generation clones a
// snapshot into an Editor, rewrites registers, and freezes the result back
// into a ConfigSpace. Editor accesses are clamped rather than erroring
// because the generator only touches offsets it discovered through a
// bounds-checked walk.
type Editor struct {
	data []byte
}

// NewEditor returns a zero-filled editor of the given size, clamped to
// [ConfigSpaceLegacySize, ConfigSpaceExtSize].
func NewEditor(size int) *Editor {
	if size < ConfigSpaceLegacySize {
		size = ConfigSpaceLegacySize
	}
	if size > ConfigSpaceExtSize {
		size = ConfigSpaceExtSize
	}
	return &Editor{data: make([]byte, size)}
}

// Edit returns a mutable copy of the snapshot.
func (cs *ConfigSpace) Edit() *Editor {
	return &Editor{data: cs.Bytes()}
}

// Len returns the editor's size in bytes.
func (e *Editor) Len() int {
	return len(e.data)
}

// ReadU8 reads one byte at offset; out-of-range reads return 0.
func (e *Editor) ReadU8(offset int) uint8 {
	if offset < 0 || offset >= len(e.data) {
		return 0
	}
	return e.data[offset]
}

// ReadU16 reads a little-endian 16-bit value; out-of-range reads return 0.
func (e *Editor) ReadU16(offset int) uint16 {
	if offset < 0 || offset+2 > len(e.data) {
		return 0
	}
	return uint16(e.data[offset]) | uint16(e.data[offset+1])<<8
}

// ReadU32 reads a little-endian 32-bit value; out-of-range reads return 0.
func (e *Editor) ReadU32(offset int) uint32 {
	if offset < 0 || offset+4 > len(e.data) {
		return 0
	}
	return uint32(e.data[offset]) |
		uint32(e.data[offset+1])<<8 |
		uint32(e.data[offset+2])<<16 |
		uint32(e.data[offset+3])<<24
}

// WriteU8 writes one byte at offset; out-of-range writes are dropped.
func (e *Editor) WriteU8(offset int, v uint8) {
	if offset < 0 || offset >= len(e.data) {
		return
	}
	e.data[offset] = v
}

// WriteU16 writes a little-endian 16-bit value at offset.
func (e *Editor) WriteU16(offset int, v uint16) {
	if offset < 0 || offset+2 > len(e.data) {
		return
	}
	e.data[offset] = uint8(v)
	e.data[offset+1] = uint8(v >> 8)
}

// WriteU32 writes a little-endian 32-bit value at offset.
func (e *Editor) WriteU32(offset int, v uint32) {
	if offset < 0 || offset+4 > len(e.data) {
		return
	}
	e.data[offset] = uint8(v)
	e.data[offset+1] = uint8(v >> 8)
	e.data[offset+2] = uint8(v >> 16)
	e.data[offset+3] = uint8(v >> 24)
}

// Freeze returns the editor's contents as an immutable ConfigSpace. The
// editor remains usable afterwards; the snapshot does not alias it.
func (e *Editor) Freeze() *ConfigSpace {
	buf := make([]byte, len(e.data))
	copy(buf, e.data)
	return &ConfigSpace{data: buf}
}
