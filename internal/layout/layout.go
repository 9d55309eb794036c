// Package layout validates and repairs the MSI-X memory layout of a cloned
// device: vector table and PBA placement against the BAR table and the
// board's reserved windows. Validation collects findings; it never fails on
// well-formed input. Repair is a separate, pure pass.
package layout

import (
	"fmt"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/pci"
)

// Validation finding codes, on top of the parse codes in the pci package.
const (
	FindingBadTableSize     pci.FindingCode = "bad_table_size"
	FindingBadBIR           pci.FindingCode = "bad_bir"
	FindingUnknownBIR       pci.FindingCode = "unknown_bir"
	FindingMisaligned       pci.FindingCode = "misaligned_offset"
	FindingOutOfRange       pci.FindingCode = "out_of_range"
	FindingRegionOverlap    pci.FindingCode = "region_overlap"
	FindingReservedConflict pci.FindingCode = "reserved_conflict"
	FindingLargeTable       pci.FindingCode = "large_table"
)

// LargeTableThreshold is the vector count above which a table gets a BRAM
// budget warning.
const LargeTableThreshold = 64

// ReservedRegion is a fixed window inside a BAR that the firmware claims
// for itself (control registers, custom PIO). The MSI-X structures must
// stay clear of these.
type ReservedRegion struct {
	BIR    int    `json:"bir" yaml:"bir"`
	Offset uint64 `json:"offset" yaml:"offset"`
	Size   uint64 `json:"size" yaml:"size"`
	Name   string `json:"name" yaml:"name"`
}

// End returns the first offset past the window.
func (r ReservedRegion) End() uint64 {
	return r.Offset + r.Size
}

// Result is the outcome of one validation pass.
type Result struct {
	Findings []pci.Finding
}

// Valid reports whether no error-severity finding was raised. Warnings do
// not invalidate a layout.
func (r Result) Valid() bool {
	return !pci.HasErrors(r.Findings)
}

// Errors returns only the error-severity findings.
func (r Result) Errors() []pci.Finding {
	var errs []pci.Finding
	for _, f := range r.Findings {
		if f.Severity == pci.SeverityError {
			errs = append(errs, f)
		}
	}
	return errs
}

// Warnings returns only the warning-severity findings.
func (r Result) Warnings() []pci.Finding {
	var warns []pci.Finding
	for _, f := range r.Findings {
		if f.Severity == pci.SeverityWarning {
			warns = append(warns, f)
		}
	}
	return warns
}

// Validate checks the MSI-X layout against the BAR table and reserved
// windows. All applicable findings are collected in one deterministic pass:
// structural bounds, then BIR resolution, alignment, containment, the
// table/PBA conflict, reserved windows, and the large-table warning. A nil
// msix is trivially valid; the device just has no MSI-X.
//
// The table/PBA pair conflicts on touch: a PBA starting exactly at the
// table's end leaves no guard space and is rejected. Reserved windows use
// half-open ranges, so starting exactly at a window's end is clean.
func Validate(bars *pci.BARTable, msix *pci.MSIXCapability, reserved []ReservedRegion) Result {
	var res Result
	if msix == nil {
		return res
	}

	if msix.TableSize < 1 || msix.TableSize > pci.MSIXMaxTableSize {
		res.add(pci.ErrorFinding(FindingBadTableSize, "msix.table_size",
			"MSI-X table size %d outside 1..%d", msix.TableSize, pci.MSIXMaxTableSize))
	}

	tableBAR, tableOK := resolveBIR(&res, bars, msix.TableBIR, "msix.table_bir")
	pbaBAR, pbaOK := resolveBIR(&res, bars, msix.PBABIR, "msix.pba_bir")

	if msix.TableOffset%8 != 0 {
		res.add(pci.ErrorFinding(FindingMisaligned, "msix.table_offset",
			"MSI-X table offset 0x%x is not 8-byte aligned", msix.TableOffset))
	}
	if msix.PBAOffset%8 != 0 {
		res.add(pci.ErrorFinding(FindingMisaligned, "msix.pba_offset",
			"MSI-X PBA offset 0x%x is not 8-byte aligned", msix.PBAOffset))
	}

	tableEnd := uint64(msix.TableOffset) + msix.TableBytes()
	pbaEnd := uint64(msix.PBAOffset) + msix.PBABytes()

	// Containment is exact arithmetic: a range ending at the BAR's last
	// byte is accepted, one byte past it is not. BARs with unknown size
	// (profile gap, already warned by the parse) are skipped here.
	if tableOK && tableBAR.Size > 0 && tableEnd > tableBAR.Size {
		res.add(pci.ErrorFinding(FindingOutOfRange, "msix.table_offset",
			"MSI-X table [0x%x, 0x%x) does not fit BAR%d of size 0x%x",
			msix.TableOffset, tableEnd, msix.TableBIR, tableBAR.Size))
	}
	if pbaOK && pbaBAR.Size > 0 && pbaEnd > pbaBAR.Size {
		res.add(pci.ErrorFinding(FindingOutOfRange, "msix.pba_offset",
			"MSI-X PBA [0x%x, 0x%x) does not fit BAR%d of size 0x%x",
			msix.PBAOffset, pbaEnd, msix.PBABIR, pbaBAR.Size))
	}

	if msix.TableBIR == msix.PBABIR &&
		conflictsInclusive(uint64(msix.TableOffset), msix.TableBytes(),
			uint64(msix.PBAOffset), msix.PBABytes()) {
		res.add(pci.ErrorFinding(FindingRegionOverlap, "msix.pba_offset",
			"MSI-X table [0x%x, 0x%x) and PBA [0x%x, 0x%x) conflict in BAR%d",
			msix.TableOffset, tableEnd, msix.PBAOffset, pbaEnd, msix.TableBIR))
	}

	for _, rr := range reserved {
		if rr.BIR == msix.TableBIR &&
			overlapsHalfOpen(uint64(msix.TableOffset), msix.TableBytes(), rr.Offset, rr.Size) {
			res.add(pci.ErrorFinding(FindingReservedConflict, "msix.table_offset",
				"MSI-X table [0x%x, 0x%x) intersects reserved window %q [0x%x, 0x%x) in BAR%d",
				msix.TableOffset, tableEnd, rr.Name, rr.Offset, rr.End(), rr.BIR))
		}
		if rr.BIR == msix.PBABIR &&
			overlapsHalfOpen(uint64(msix.PBAOffset), msix.PBABytes(), rr.Offset, rr.Size) {
			res.add(pci.ErrorFinding(FindingReservedConflict, "msix.pba_offset",
				"MSI-X PBA [0x%x, 0x%x) intersects reserved window %q [0x%x, 0x%x) in BAR%d",
				msix.PBAOffset, pbaEnd, rr.Name, rr.Offset, rr.End(), rr.BIR))
		}
	}

	if msix.TableSize > LargeTableThreshold {
		res.add(pci.WarningFinding(FindingLargeTable, "msix.table_size",
			"MSI-X table has %d entries; tables above %d strain shadow BRAM budgets",
			msix.TableSize, LargeTableThreshold))
	}

	return res
}

// ValidateStructural is the degraded mode for when no BAR table is
// available (bare capability import): only absolute bounds are checked.
func ValidateStructural(msix *pci.MSIXCapability) Result {
	var res Result
	if msix == nil {
		return res
	}

	if msix.TableSize < 1 || msix.TableSize > pci.MSIXMaxTableSize {
		res.add(pci.ErrorFinding(FindingBadTableSize, "msix.table_size",
			"MSI-X table size %d outside 1..%d", msix.TableSize, pci.MSIXMaxTableSize))
	}
	if msix.TableBIR < 0 || msix.TableBIR > 5 {
		res.add(pci.ErrorFinding(FindingBadBIR, "msix.table_bir",
			"MSI-X table BIR %d outside 0..5", msix.TableBIR))
	}
	if msix.PBABIR < 0 || msix.PBABIR > 5 {
		res.add(pci.ErrorFinding(FindingBadBIR, "msix.pba_bir",
			"MSI-X PBA BIR %d outside 0..5", msix.PBABIR))
	}

	return res
}

func (r *Result) add(f pci.Finding) {
	r.Findings = append(r.Findings, f)
}

// resolveBIR looks a BIR up in the BAR table, raising an unknown_bir error
// when nothing is behind it. Geometry checks against that BAR are skipped
// in that case; there is nothing to measure against.
func resolveBIR(res *Result, bars *pci.BARTable, bir int, field string) (pci.BAR, bool) {
	if bars != nil {
		if bar, ok := bars.Lookup(bir); ok {
			return bar, true
		}
	}
	res.add(pci.ErrorFinding(FindingUnknownBIR, field,
		"BIR %d does not name an existing BAR", bir))
	return pci.BAR{}, false
}

// conflictsInclusive treats range ends as touching: [a, a+n) and [b, b+m)
// conflict when they overlap or are exactly adjacent.
func conflictsInclusive(aOff, aSize, bOff, bSize uint64) bool {
	return aOff <= bOff+bSize && bOff <= aOff+aSize
}

// overlapsHalfOpen is plain half-open interval intersection.
func overlapsHalfOpen(aOff, aSize, bOff, bSize uint64) bool {
	return aOff < bOff+bSize && bOff < aOff+aSize
}

// Summary returns "N errors, M warnings" for operator output.
func (r Result) Summary() string {
	errs, warns := 0, 0
	for _, f := range r.Findings {
		switch f.Severity {
		case pci.SeverityError:
			errs++
		case pci.SeverityWarning:
			warns++
		}
	}
	return fmt.Sprintf("%d errors, %d warnings", errs, warns)
}
