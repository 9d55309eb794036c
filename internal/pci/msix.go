package pci

import "fmt"

const (
	// MSIXTableEntrySize is the size of one MSI-X table entry in bytes.
	MSIXTableEntrySize = 16
	// MSIXMaxTableSize is the largest table the 11-bit size field encodes.
	MSIXMaxTableSize = 2048
)

// MSIXCapability is the decoded MSI-X capability (ID 0x11). TableSize holds
// the real entry count, already adjusted for the register's N-1 encoding.
// Parsed offsets are always 8-byte aligned because the hardware encoding
// masks the low bits; layout validation still checks alignment so that
// hand-built or imported values get flagged instead of trusted.
type MSIXCapability struct {
	Offset       int    `json:"offset"`
	TableSize    int    `json:"table_size"`
	TableBIR     int    `json:"table_bir"`
	TableOffset  uint32 `json:"table_offset"`
	PBABIR       int    `json:"pba_bir"`
	PBAOffset    uint32 `json:"pba_offset"`
	Enabled      bool   `json:"enabled"`
	FunctionMask bool   `json:"function_mask"`
}

// TableBytes returns the size of the vector table in bytes.
func (m *MSIXCapability) TableBytes() uint64 {
	return uint64(m.TableSize) * MSIXTableEntrySize
}

// PBABytes returns the size of the pending bit array in bytes: one bit per
// vector, rounded up to whole dwords.
func (m *MSIXCapability) PBABytes() uint64 {
	return uint64((m.TableSize+31)/32) * 4
}

// ParseMSIX locates and decodes the MSI-X capability. A device without one
// returns (nil, nil); that is not an error, the interrupt strategy simply
// falls back to MSI or INTx. A capability whose 12-byte structure runs past
// the snapshot is a hard parse error.
func ParseMSIX(cs *ConfigSpace) (*MSIXCapability, error) {
	rec, ok := FindCapability(cs, CapIDMSIX)
	if !ok {
		return nil, nil
	}

	ctrl, err := cs.ReadU16(rec.Offset + 2)
	if err != nil {
		return nil, fmt.Errorf("MSI-X capability at 0x%02x truncated: %w", rec.Offset, err)
	}
	table, err := cs.ReadU32(rec.Offset + 4)
	if err != nil {
		return nil, fmt.Errorf("MSI-X capability at 0x%02x truncated: %w", rec.Offset, err)
	}
	pba, err := cs.ReadU32(rec.Offset + 8)
	if err != nil {
		return nil, fmt.Errorf("MSI-X capability at 0x%02x truncated: %w", rec.Offset, err)
	}

	return &MSIXCapability{
		Offset:       rec.Offset,
		TableSize:    int(ctrl&0x07FF) + 1,
		TableBIR:     int(table & 0x7),
		TableOffset:  table & 0xFFFFFFF8,
		PBABIR:       int(pba & 0x7),
		PBAOffset:    pba & 0xFFFFFFF8,
		Enabled:      ctrl&0x8000 != 0,
		FunctionMask: ctrl&0x4000 != 0,
	}, nil
}

// Encode writes the capability's current values back into an editor at the
// capability offset, the inverse of ParseMSIX. Relocated table and PBA
// offsets reach the shadow config space through this.
func (m *MSIXCapability) Encode(ed *Editor) {
	ctrl := uint16((m.TableSize - 1) & 0x07FF)
	if m.FunctionMask {
		ctrl |= 1 << 14
	}
	if m.Enabled {
		ctrl |= 1 << 15
	}
	ed.WriteU16(m.Offset+2, ctrl)
	ed.WriteU32(m.Offset+4, m.TableOffset&0xFFFFFFF8|uint32(m.TableBIR&0x7))
	ed.WriteU32(m.Offset+8, m.PBAOffset&0xFFFFFFF8|uint32(m.PBABIR&0x7))
}

// MSIXTableEntry is one 16-byte MSI-X table entry captured from BAR memory.
type MSIXTableEntry struct {
	Vector     int    `json:"vector"`
	AddrLow    uint32 `json:"addr_low"`
	AddrHigh   uint32 `json:"addr_high"`
	MsgData    uint32 `json:"msg_data"`
	VectorCtrl uint32 `json:"vector_ctrl"`
}

// Enabled reports whether the entry's mask bit (vector control bit 0) is
// clear.
func (e MSIXTableEntry) Enabled() bool {
	return e.VectorCtrl&0x1 == 0
}

// ParseMSIXTable decodes count table entries from captured BAR bytes
// starting at the table offset. Captures cut short mid-entry are padded
// with zeros rather than dropped, matching what a masked reset entry looks
// like. count outside [1, MSIXMaxTableSize] yields nil.
func ParseMSIXTable(data []byte, count int) []MSIXTableEntry {
	if count <= 0 || count > MSIXMaxTableSize {
		return nil
	}

	entries := make([]MSIXTableEntry, 0, count)
	for v := 0; v < count; v++ {
		var raw [MSIXTableEntrySize]byte
		base := v * MSIXTableEntrySize
		if base < len(data) {
			copy(raw[:], data[base:])
		}

		entries = append(entries, MSIXTableEntry{
			Vector:     v,
			AddrLow:    leU32(raw[0:4]),
			AddrHigh:   leU32(raw[4:8]),
			MsgData:    leU32(raw[8:12]),
			VectorCtrl: leU32(raw[12:16]),
		})
	}
	return entries
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
