package pci

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// ConfigSpaceLegacySize is the size of the legacy PCI config space.
	ConfigSpaceLegacySize = 256
	// ConfigSpaceExtSize is the size of the full PCIe extended config space.
	ConfigSpaceExtSize = 4096
	// ExtCapBase is the offset where extended capabilities begin.
	ExtCapBase = 0x100
)

// Parse errors. All failures returned by the constructors and readers wrap
// one of these sentinels.
var (
	ErrMalformedEncoding = errors.New("malformed hex encoding")
	ErrTooShort          = errors.New("config space too short")
	ErrOutOfBounds       = errors.New("config space read out of bounds")
)

// ConfigSpace is an immutable snapshot of a device's configuration space.
// It holds between 256 and 4096 bytes; reads past the end fail with
// ErrOutOfBounds rather than returning zeros, so a truncated snapshot is
// always detected instead of silently parsed.
type ConfigSpace struct {
	data []byte
}

// NewConfigSpace builds a ConfigSpace from raw bytes. The slice is copied.
// Snapshots shorter than the 256-byte legacy header fail with ErrTooShort;
// anything past ConfigSpaceExtSize is ignored.
func NewConfigSpace(data []byte) (*ConfigSpace, error) {
	if len(data) < ConfigSpaceLegacySize {
		return nil, fmt.Errorf("%w: got %d bytes, need at least %d",
			ErrTooShort, len(data), ConfigSpaceLegacySize)
	}
	if len(data) > ConfigSpaceExtSize {
		data = data[:ConfigSpaceExtSize]
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return &ConfigSpace{data: buf}, nil
}

// ParseConfigSpaceHex builds a ConfigSpace from a hex dump string, as stored
// in device context JSON or copied from lspci output. ASCII whitespace is
// stripped first; the hex digits themselves are case-insensitive. An odd
// number of digits or a non-hex character fails with ErrMalformedEncoding.
func ParseConfigSpaceHex(s string) (*ConfigSpace, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)

	if len(clean)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of hex digits (%d)",
			ErrMalformedEncoding, len(clean))
	}

	data, err := hex.DecodeString(clean)
	if err != nil {
		var ibe hex.InvalidByteError
		if errors.As(err, &ibe) {
			return nil, fmt.Errorf("%w: invalid character %q",
				ErrMalformedEncoding, rune(ibe))
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
	}

	return NewConfigSpace(data)
}

// Len returns the snapshot length in bytes.
func (cs *ConfigSpace) Len() int {
	return len(cs.data)
}

// HasExtended reports whether the snapshot covers the extended config space
// beyond offset 0x100.
func (cs *ConfigSpace) HasExtended() bool {
	return len(cs.data) > ExtCapBase
}

// Bytes returns a copy of the underlying snapshot.
func (cs *ConfigSpace) Bytes() []byte {
	buf := make([]byte, len(cs.data))
	copy(buf, cs.data)
	return buf
}

// Hex returns the snapshot as a lower-case hex string. Hex round-trips
// through ParseConfigSpaceHex unchanged.
func (cs *ConfigSpace) Hex() string {
	return hex.EncodeToString(cs.data)
}

// ReadU8 reads one byte at offset.
func (cs *ConfigSpace) ReadU8(offset int) (uint8, error) {
	if err := cs.checkBounds(offset, 1); err != nil {
		return 0, err
	}
	return cs.data[offset], nil
}

// ReadU16 reads a little-endian 16-bit value at offset.
func (cs *ConfigSpace) ReadU16(offset int) (uint16, error) {
	if err := cs.checkBounds(offset, 2); err != nil {
		return 0, err
	}
	return uint16(cs.data[offset]) | uint16(cs.data[offset+1])<<8, nil
}

// ReadU32 reads a little-endian 32-bit value at offset.
func (cs *ConfigSpace) ReadU32(offset int) (uint32, error) {
	if err := cs.checkBounds(offset, 4); err != nil {
		return 0, err
	}
	return uint32(cs.data[offset]) |
		uint32(cs.data[offset+1])<<8 |
		uint32(cs.data[offset+2])<<16 |
		uint32(cs.data[offset+3])<<24, nil
}

func (cs *ConfigSpace) checkBounds(offset, width int) error {
	if offset < 0 || offset+width > len(cs.data) {
		return fmt.Errorf("%w: offset 0x%x width %d, snapshot is %d bytes",
			ErrOutOfBounds, offset, width, len(cs.data))
	}
	return nil
}

// Header accessors. The constructors guarantee at least 256 bytes, so reads
// within the type-0 header cannot fail and return values directly.

// VendorID returns the vendor ID (offset 0x00).
func (cs *ConfigSpace) VendorID() uint16 {
	return uint16(cs.data[0x00]) | uint16(cs.data[0x01])<<8
}

// DeviceID returns the device ID (offset 0x02).
func (cs *ConfigSpace) DeviceID() uint16 {
	return uint16(cs.data[0x02]) | uint16(cs.data[0x03])<<8
}

// Command returns the command register (offset 0x04).
func (cs *ConfigSpace) Command() uint16 {
	return uint16(cs.data[0x04]) | uint16(cs.data[0x05])<<8
}

// Status returns the status register (offset 0x06).
func (cs *ConfigSpace) Status() uint16 {
	return uint16(cs.data[0x06]) | uint16(cs.data[0x07])<<8
}

// RevisionID returns the revision ID (offset 0x08).
func (cs *ConfigSpace) RevisionID() uint8 {
	return cs.data[0x08]
}

// ProgIF returns the programming interface byte (offset 0x09).
func (cs *ConfigSpace) ProgIF() uint8 {
	return cs.data[0x09]
}

// SubClass returns the sub-class code (offset 0x0A).
func (cs *ConfigSpace) SubClass() uint8 {
	return cs.data[0x0A]
}

// BaseClass returns the base class code (offset 0x0B).
func (cs *ConfigSpace) BaseClass() uint8 {
	return cs.data[0x0B]
}

// ClassCode returns the full 24-bit class code (base<<16 | sub<<8 | progif).
func (cs *ConfigSpace) ClassCode() uint32 {
	return uint32(cs.data[0x0B])<<16 | uint32(cs.data[0x0A])<<8 | uint32(cs.data[0x09])
}

// CacheLineSize returns the cache line size register (offset 0x0C).
func (cs *ConfigSpace) CacheLineSize() uint8 {
	return cs.data[0x0C]
}

// LatencyTimer returns the latency timer register (offset 0x0D).
func (cs *ConfigSpace) LatencyTimer() uint8 {
	return cs.data[0x0D]
}

// HeaderType returns the header type register (offset 0x0E), multi-function
// bit included.
func (cs *ConfigSpace) HeaderType() uint8 {
	return cs.data[0x0E]
}

// BIST returns the built-in self test register (offset 0x0F).
func (cs *ConfigSpace) BIST() uint8 {
	return cs.data[0x0F]
}

// BARRaw returns the raw dword of BAR index 0-5 (offsets 0x10-0x24).
func (cs *ConfigSpace) BARRaw(index int) uint32 {
	if index < 0 || index > 5 {
		return 0
	}
	off := 0x10 + index*4
	return uint32(cs.data[off]) |
		uint32(cs.data[off+1])<<8 |
		uint32(cs.data[off+2])<<16 |
		uint32(cs.data[off+3])<<24
}

// SubsysVendorID returns the subsystem vendor ID (offset 0x2C).
func (cs *ConfigSpace) SubsysVendorID() uint16 {
	return uint16(cs.data[0x2C]) | uint16(cs.data[0x2D])<<8
}

// SubsysDeviceID returns the subsystem device ID (offset 0x2E).
func (cs *ConfigSpace) SubsysDeviceID() uint16 {
	return uint16(cs.data[0x2E]) | uint16(cs.data[0x2F])<<8
}

// CapabilityPointer returns the head of the standard capability chain
// (offset 0x34).
func (cs *ConfigSpace) CapabilityPointer() uint8 {
	return cs.data[0x34]
}

// InterruptLine returns the interrupt line register (offset 0x3C).
func (cs *ConfigSpace) InterruptLine() uint8 {
	return cs.data[0x3C]
}

// InterruptPin returns the interrupt pin register (offset 0x3D).
func (cs *ConfigSpace) InterruptPin() uint8 {
	return cs.data[0x3D]
}

// HasCapabilities reports whether the capabilities list bit (status bit 4)
// is set.
func (cs *ConfigSpace) HasCapabilities() bool {
	return cs.Status()&0x0010 != 0
}

// HexDump returns a hex dump of the first limit bytes, 16 per line with an
// offset prefix. limit <= 0 dumps the whole snapshot.
func (cs *ConfigSpace) HexDump(limit int) string {
	if limit <= 0 || limit > len(cs.data) {
		limit = len(cs.data)
	}

	var sb strings.Builder
	for i := 0; i < limit; i += 16 {
		sb.WriteString(fmt.Sprintf("%04x: ", i))
		for j := i; j < i+16 && j < limit; j++ {
			sb.WriteString(fmt.Sprintf("%02x ", cs.data[j]))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
