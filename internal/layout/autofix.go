package layout

import (
	"fmt"
	"sort"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/pci"
)

// pbaPageSize separates the relocated PBA from the table by page
// granularity, the placement hardware MSI-X implementations prefer.
const pbaPageSize = 4096

// AutoFix repairs a broken MSI-X layout and returns new copies of the BAR
// table and capability plus one message per action taken. The inputs are
// never modified. The pass is deterministic and idempotent: feeding it an
// already-valid layout returns equal values and no actions, and its output
// re-validates clean unless the layout is unfixable (an unknown BIR cannot
// be repaired without inventing an aperture).
//
// Repair order: offsets are aligned up to 8 first, the table is moved out
// of reserved windows, the PBA is moved off the table and out of reserved
// windows, and finally any BAR too small for the repaired ranges grows to
// the next power of two that contains them.
func AutoFix(bars *pci.BARTable, msix *pci.MSIXCapability, reserved []ReservedRegion) (*pci.BARTable, *pci.MSIXCapability, []string) {
	fixedBars := cloneBars(bars)
	if msix == nil {
		return fixedBars, nil, nil
	}

	fixed := *msix
	var actions []string

	// Reserved windows are walked lowest-first so relocation settles in
	// one forward sweep.
	sortedReserved := make([]ReservedRegion, len(reserved))
	copy(sortedReserved, reserved)
	sort.Slice(sortedReserved, func(i, j int) bool {
		return sortedReserved[i].Offset < sortedReserved[j].Offset
	})

	if fixed.TableOffset%8 != 0 {
		aligned := alignUp(uint64(fixed.TableOffset), 8)
		actions = append(actions, fmt.Sprintf(
			"aligned MSI-X table offset 0x%x -> 0x%x", fixed.TableOffset, aligned))
		fixed.TableOffset = uint32(aligned)
	}
	if fixed.PBAOffset%8 != 0 {
		aligned := alignUp(uint64(fixed.PBAOffset), 8)
		actions = append(actions, fmt.Sprintf(
			"aligned MSI-X PBA offset 0x%x -> 0x%x", fixed.PBAOffset, aligned))
		fixed.PBAOffset = uint32(aligned)
	}

	// Table placement: forward out of reserved windows.
	for _, rr := range sortedReserved {
		if rr.BIR != fixed.TableBIR {
			continue
		}
		if overlapsHalfOpen(uint64(fixed.TableOffset), fixed.TableBytes(), rr.Offset, rr.Size) {
			moved := alignUp(rr.End(), 8)
			actions = append(actions, fmt.Sprintf(
				"moved MSI-X table out of reserved window %q: 0x%x -> 0x%x",
				rr.Name, fixed.TableOffset, moved))
			fixed.TableOffset = uint32(moved)
		}
	}

	// PBA placement: off the table (next page past its end), then forward
	// out of reserved windows; moving past a window can land it back on
	// nothing but higher windows, so one conflict-free sweep settles it.
	for iter := 0; iter < len(sortedReserved)+2; iter++ {
		changed := false

		if fixed.TableBIR == fixed.PBABIR &&
			conflictsInclusive(uint64(fixed.TableOffset), fixed.TableBytes(),
				uint64(fixed.PBAOffset), fixed.PBABytes()) {
			tableEnd := uint64(fixed.TableOffset) + fixed.TableBytes()
			moved := alignUp(tableEnd+1, pbaPageSize)
			actions = append(actions, fmt.Sprintf(
				"moved MSI-X PBA past the vector table: 0x%x -> 0x%x",
				fixed.PBAOffset, moved))
			fixed.PBAOffset = uint32(moved)
			changed = true
		}

		for _, rr := range sortedReserved {
			if rr.BIR != fixed.PBABIR {
				continue
			}
			if overlapsHalfOpen(uint64(fixed.PBAOffset), fixed.PBABytes(), rr.Offset, rr.Size) {
				moved := alignUp(rr.End(), 8)
				actions = append(actions, fmt.Sprintf(
					"moved MSI-X PBA out of reserved window %q: 0x%x -> 0x%x",
					rr.Name, fixed.PBAOffset, moved))
				fixed.PBAOffset = uint32(moved)
				changed = true
			}
		}

		if !changed {
			break
		}
	}

	// Growth: a BAR whose final ranges spill past its end becomes the next
	// power of two that contains them. Unknown-size BARs are left alone;
	// validation already warned about the profile gap.
	growBar(fixedBars, fixed.TableBIR, uint64(fixed.TableOffset)+fixed.TableBytes(), &actions)
	growBar(fixedBars, fixed.PBABIR, uint64(fixed.PBAOffset)+fixed.PBABytes(), &actions)

	return fixedBars, &fixed, actions
}

func growBar(bars *pci.BARTable, bir int, need uint64, actions *[]string) {
	all := bars.All()
	for i := range all {
		b := &all[i]
		if b.Index != bir || b.Size == 0 || need <= b.Size {
			continue
		}
		grown := nextPow2(need)
		*actions = append(*actions, fmt.Sprintf(
			"grew BAR%d from 0x%x to 0x%x to contain the MSI-X structures",
			b.Index, b.Size, grown))
		b.Size = grown
	}
}

func cloneBars(bars *pci.BARTable) *pci.BARTable {
	if bars == nil {
		return pci.NewBARTable(nil)
	}
	return pci.NewBARTable(bars.All())
}

func alignUp(v, boundary uint64) uint64 {
	return (v + boundary - 1) &^ (boundary - 1)
}

// nextPow2 returns the smallest power of two >= v.
func nextPow2(v uint64) uint64 {
	if v == 0 {
		return 1
	}
	p := uint64(1)
	for p < v && p < 1<<63 {
		p <<= 1
	}
	return p
}
