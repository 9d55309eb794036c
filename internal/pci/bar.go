package pci

import "fmt"

// BAR kind constants
const (
	BARKindMemory = "memory"
	BARKindIO     = "io"
)

// BAR describes one decoded base address register aperture. Size comes from
// the device size profile, not from the raw dword: address-mask probing
// would need hardware writes, and the system works on captured snapshots.
type BAR struct {
	Index        int    `json:"index"`
	Kind         string `json:"kind"` // "memory" or "io"
	Is64Bit      bool   `json:"is_64bit"`
	Prefetchable bool   `json:"prefetchable"`
	Address      uint64 `json:"address"`
	Size         uint64 `json:"size"`
}

// IsIO returns true for an I/O aperture.
func (b *BAR) IsIO() bool {
	return b.Kind == BARKindIO
}

// IsMemory returns true for a memory aperture.
func (b *BAR) IsMemory() bool {
	return b.Kind == BARKindMemory
}

// SizeHuman returns the BAR size in human-readable format.
func (b *BAR) SizeHuman() string {
	if b.Size == 0 {
		return "0"
	}
	if b.Size >= 1<<30 {
		return fmt.Sprintf("%d GB", b.Size>>30)
	}
	if b.Size >= 1<<20 {
		return fmt.Sprintf("%d MB", b.Size>>20)
	}
	if b.Size >= 1<<10 {
		return fmt.Sprintf("%d KB", b.Size>>10)
	}
	return fmt.Sprintf("%d B", b.Size)
}

// String returns a summary of the BAR for display.
func (b *BAR) String() string {
	kind := b.Kind
	if b.Is64Bit {
		kind = "memory64"
	}
	pf := ""
	if b.Prefetchable {
		pf = " [prefetchable]"
	}
	return fmt.Sprintf("BAR%d: %s at 0x%x, size %s%s",
		b.Index, kind, b.Address, b.SizeHuman(), pf)
}

// BARTable holds the decoded apertures of one device, indexed by BAR slot.
// Only implemented apertures appear; the high dword of a 64-bit BAR is
// consumed by its low half and never surfaces as its own entry.
type BARTable struct {
	bars []BAR
}

// NewBARTable builds a table from explicit descriptors, e.g. when loading
// a saved device context.
func NewBARTable(bars []BAR) *BARTable {
	copied := make([]BAR, len(bars))
	copy(copied, bars)
	return &BARTable{bars: copied}
}

// All returns the apertures in index order.
func (t *BARTable) All() []BAR {
	return t.bars
}

// Len returns the number of apertures.
func (t *BARTable) Len() int {
	return len(t.bars)
}

// Lookup returns the aperture behind a BAR index, if one exists.
func (t *BARTable) Lookup(index int) (BAR, bool) {
	for _, b := range t.bars {
		if b.Index == index {
			return b, true
		}
	}
	return BAR{}, false
}

// ParseBARs decodes the six BAR dwords at 0x10 against a size profile
// (BAR index to size in bytes). All-zero slots are unimplemented and
// produce no entry. An aperture the profile does not cover is reported as
// a warning finding and carries size 0 so validation can still name it.
func ParseBARs(cs *ConfigSpace, sizes map[int]uint64) (*BARTable, []Finding) {
	var (
		bars     []BAR
		findings []Finding
	)

	for i := 0; i < 6; i++ {
		raw := cs.BARRaw(i)
		if raw == 0 {
			continue
		}

		bar := BAR{Index: i}

		if raw&0x01 != 0 {
			bar.Kind = BARKindIO
			bar.Address = uint64(raw & 0xFFFFFFFC)
		} else {
			bar.Kind = BARKindMemory
			bar.Prefetchable = raw&0x08 != 0
			bar.Address = uint64(raw & 0xFFFFFFF0)
			if (raw>>1)&0x03 == 0x02 {
				bar.Is64Bit = true
				if i+1 < 6 {
					bar.Address |= uint64(cs.BARRaw(i+1)) << 32
				}
			}
		}

		if size, ok := sizes[i]; ok {
			bar.Size = size
		} else {
			findings = append(findings, WarningFinding(FindingBARSizeUnknown,
				fmt.Sprintf("bar[%d]", i),
				"BAR%d exists in the snapshot but the size profile has no entry for it", i))
		}

		bars = append(bars, bar)

		// the next slot is the high dword, not an aperture
		if bar.Is64Bit {
			i++
		}
	}

	return &BARTable{bars: bars}, findings
}

// Linux resource file flag bits (include/linux/ioport.h).
const (
	resourceIO       = 0x00000100
	resourceMem      = 0x00000200
	resourcePrefetch = 0x00002000
	resourceMem64    = 0x00100000
)

// ParseSysfsResource parses /sys/bus/pci/devices/<bdf>/resource lines
// ("start end flags" per BAR slot) into apertures with exact sizes. This is
// how a capture derives the size profile without probing the device.
func ParseSysfsResource(lines []string) []BAR {
	var bars []BAR

	for i := 0; i < 6 && i < len(lines); i++ {
		var start, end, flags uint64
		n, _ := fmt.Sscanf(lines[i], "0x%x 0x%x 0x%x", &start, &end, &flags)
		if n != 3 {
			continue
		}
		if start == 0 && end == 0 {
			continue
		}

		bar := BAR{
			Index:   i,
			Address: start,
			Size:    end - start + 1,
		}
		if flags&resourceIO != 0 {
			bar.Kind = BARKindIO
		} else {
			bar.Kind = BARKindMemory
			bar.Prefetchable = flags&resourcePrefetch != 0
			bar.Is64Bit = flags&resourceMem64 != 0
		}
		bars = append(bars, bar)
	}

	return bars
}
