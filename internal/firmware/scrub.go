package firmware

import (
	"fmt"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/pci"
)

// unsafeExtCaps are extended capabilities the DMA card cannot back with real
// hardware. Advertising them invites the host to exercise machinery that is
// not there: SR-IOV would enumerate phantom virtual functions, Resizable BAR
// would negotiate apertures the shadow BRAM cannot honor, L1 PM Substates
// and PTM promise power and timing behavior of the donor's PHY.
var unsafeExtCaps = map[uint16]bool{
	pci.ExtCapIDSRIOV:         true,
	pci.ExtCapIDResizableBAR:  true,
	pci.ExtCapIDL1PMSubstates: true,
	pci.ExtCapIDPTM:           true,
}

// IsUnsafeExtCap reports whether an extended capability must always be
// removed from cloned firmware.
func IsUnsafeExtCap(id uint16) bool {
	return unsafeExtCaps[id]
}

// ScrubConfigSpace cleans potentially dangerous or detection-revealing
// registers from the config space before COE generation, and strips the
// extended capabilities the card cannot implement. Returns the scrubbed
// copy and one message per removed capability; the input is not modified.
func ScrubConfigSpace(cs *pci.ConfigSpace) (*pci.ConfigSpace, []string) {
	ed := cs.Edit()

	// Clear BIST (0x0F): the card cannot run self-test.
	ed.WriteU8(0x0F, 0x00)

	// Clear Interrupt Line (0x3C): assigned by the host at runtime.
	ed.WriteU8(0x3C, 0x00)

	// Clear Latency Timer (0x0D): not meaningful for PCIe devices.
	ed.WriteU8(0x0D, 0x00)

	// Clear Cache Line Size (0x0C): set by the OS.
	ed.WriteU8(0x0C, 0x00)

	// Command register (0x04): keep IO Space, Memory Space, Bus Master,
	// Parity Error Response and Interrupt Disable; drop the rest.
	ed.WriteU16(0x04, cs.Command()&0x0547)

	// Status register (0x06): keep the capability list bit and speed
	// bits, clear the write-1-to-clear error bits.
	ed.WriteU16(0x06, cs.Status()&0x06F0)

	scrubCapabilityState(cs, ed)

	// Strip capabilities a cloned card cannot back.
	var remove []uint16
	records, _ := pci.WalkCapabilities(cs)
	for _, rec := range records {
		if rec.Extended && IsUnsafeExtCap(rec.ID) {
			remove = append(remove, rec.ID)
		}
	}
	removed := FilterExtCapabilities(ed, remove)

	return ed.Freeze(), removed
}

// scrubCapabilityState resets per-capability error and power state so the
// clone comes up looking freshly reset rather than carrying the donor's
// run-time residue.
func scrubCapabilityState(cs *pci.ConfigSpace, ed *pci.Editor) {
	if rec, ok := pci.FindCapability(cs, pci.CapIDPCIExpress); ok {
		// Device Status at cap+10: clear all RW1C error bits.
		ed.WriteU16(rec.Offset+10, 0x0000)

		// Link Status at cap+18: clear link training bits.
		lstatus, err := cs.ReadU16(rec.Offset + 18)
		if err == nil {
			ed.WriteU16(rec.Offset+18, lstatus&0x3FFF)
		}
	}

	if rec, ok := pci.FindCapability(cs, pci.CapIDPowerManagement); ok {
		// PM Control/Status at cap+4: force D0, clear PME_Status, set
		// NoSoftReset so state survives D3hot transitions.
		pmcsr, err := cs.ReadU16(rec.Offset + 4)
		if err == nil {
			pmcsr &= 0xFFFC
			pmcsr &= 0x7FFF
			pmcsr |= 0x0008
			ed.WriteU16(rec.Offset+4, pmcsr)
		}
	}
}

// FilterCapabilities removes the named standard capabilities from the chain
// in the editor, splicing next pointers and zeroing the removed structures.
// Returns one message per removal.
func FilterCapabilities(ed *pci.Editor, removeIDs []uint8) []string {
	if len(removeIDs) == 0 {
		return nil
	}
	removeSet := make(map[uint8]bool, len(removeIDs))
	for _, id := range removeIDs {
		removeSet[id] = true
	}

	cs := ed.Freeze()
	records, _ := pci.WalkCapabilities(cs)

	var chain, survivors []pci.CapabilityRecord
	var messages []string
	for _, rec := range records {
		if rec.Extended {
			continue
		}
		chain = append(chain, rec)
		if removeSet[uint8(rec.ID)] {
			messages = append(messages, fmt.Sprintf(
				"removed %s capability (id 0x%02x) at offset 0x%02x",
				rec.Name(), rec.ID, rec.Offset))
		} else {
			survivors = append(survivors, rec)
		}
	}
	if len(messages) == 0 {
		return nil
	}

	// Zero removed structures first, then rebuild the chain links over
	// what is left.
	for _, rec := range chain {
		if removeSet[uint8(rec.ID)] {
			zeroSpan(ed, chain, rec.Offset, pci.CapabilitySize(uint8(rec.ID)), pci.ConfigSpaceLegacySize)
		}
	}

	if len(survivors) == 0 {
		ed.WriteU8(0x34, 0x00)
		return messages
	}

	ed.WriteU8(0x34, uint8(survivors[0].Offset))
	for i, rec := range survivors {
		next := 0
		if i+1 < len(survivors) {
			next = survivors[i+1].Offset
		}
		nextPos := rec.Offset + 1
		if rec.HeaderWidth == 2 {
			nextPos = rec.Offset + 2
		}
		ed.WriteU8(nextPos, uint8(next))
	}

	return messages
}

// FilterExtCapabilities removes the named extended capabilities from the
// chain in the editor. Surviving headers are rewritten with new next
// pointers and removed structures are zeroed. When the capability at 0x100
// itself goes but others survive, a Null capability header is placed there
// to carry the chain forward; when nothing survives the first header reads
// zero. Returns one message per removal.
func FilterExtCapabilities(ed *pci.Editor, removeIDs []uint16) []string {
	if len(removeIDs) == 0 {
		return nil
	}
	removeSet := make(map[uint16]bool, len(removeIDs))
	for _, id := range removeIDs {
		removeSet[id] = true
	}

	cs := ed.Freeze()
	records, _ := pci.WalkCapabilities(cs)

	var chain, survivors []pci.CapabilityRecord
	var messages []string
	for _, rec := range records {
		if !rec.Extended {
			continue
		}
		chain = append(chain, rec)
		if removeSet[rec.ID] {
			messages = append(messages, fmt.Sprintf(
				"removed %s extended capability (id 0x%04x) at offset 0x%03x",
				rec.Name(), rec.ID, rec.Offset))
		} else {
			survivors = append(survivors, rec)
		}
	}
	if len(messages) == 0 {
		return nil
	}

	for _, rec := range chain {
		if removeSet[rec.ID] {
			zeroSpan(ed, chain, rec.Offset, pci.ExtCapabilitySize(rec.ID), pci.ConfigSpaceExtSize)
		}
	}

	for i, rec := range survivors {
		next := 0
		if i+1 < len(survivors) {
			next = survivors[i+1].Offset
		}
		ed.WriteU32(rec.Offset, extCapHeader(rec.ID, rec.Version, next))
	}

	// The chain anchor at 0x100 cannot move. If its capability went away
	// a Null header keeps the walk alive; all-removed leaves it zero.
	if len(survivors) > 0 && survivors[0].Offset != pci.ExtCapBase {
		ed.WriteU32(pci.ExtCapBase, extCapHeader(pci.ExtCapIDNull, 0, survivors[0].Offset))
	}

	return messages
}

// zeroSpan clears a removed capability structure without touching its
// neighbors: the span runs from offset for sizeEstimate bytes but stops at
// the next capability in address order and at the space boundary.
func zeroSpan(ed *pci.Editor, chain []pci.CapabilityRecord, offset, sizeEstimate, bound int) {
	end := offset + sizeEstimate
	for _, rec := range chain {
		if rec.Offset > offset && rec.Offset < end {
			end = rec.Offset
		}
	}
	if end > bound {
		end = bound
	}
	for i := offset; i < end; i++ {
		ed.WriteU8(i, 0x00)
	}
}

func extCapHeader(id uint16, version uint8, next int) uint32 {
	return uint32(id) | uint32(version&0xF)<<16 | uint32(next&0xFFC)<<20
}
