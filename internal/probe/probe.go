// Package probe builds the PCIe memory read TLPs a DMA card would issue
// against the donor's MSI-X structures. The encoded packets can be replayed
// through pcileech or fed to protocol analyzers to confirm the card's reads
// look like the donor's before committing to a bitstream.
package probe

import (
	"fmt"

	"github.com/google/go-pcie-tlp/pcie"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/pci"
)

// Request is one encoded memory read and where it points.
type Request struct {
	Vector int    `json:"vector"` // -1 for the PBA read
	Addr   uint64 `json:"addr"`
	TLP    []byte `json:"tlp"`
}

// RequesterFromBDF builds the TLP requester ID for a device address. The
// domain is not part of the wire format; multi-segment systems share bus
// numbering per segment.
func RequesterFromBDF(bdf pci.BDF) pcie.DeviceID {
	return pcie.DeviceID{
		Bus:      bdf.Bus,
		Device:   bdf.Device,
		Function: bdf.Function,
	}
}

// TableReadTLPs builds one memory read per MSI-X table entry, addressed
// into the aperture that backs the table.
func TableReadTLPs(requester pcie.DeviceID, bar pci.BAR, msix *pci.MSIXCapability) ([]Request, error) {
	if msix == nil {
		return nil, fmt.Errorf("device has no MSI-X capability to probe")
	}
	if bar.Index != msix.TableBIR {
		return nil, fmt.Errorf("MSI-X table lives in BAR%d, not BAR%d", msix.TableBIR, bar.Index)
	}

	base := bar.Address + uint64(msix.TableOffset)
	requests := make([]Request, 0, msix.TableSize)
	for v := 0; v < msix.TableSize; v++ {
		addr := base + uint64(v)*pci.MSIXTableEntrySize
		// Tags wrap at 256; replay tools reassign them per outstanding
		// request anyway.
		tlp, err := pcie.NewMRd(requester, uint8(v), addr, pci.MSIXTableEntrySize)
		if err != nil {
			return nil, fmt.Errorf("failed to build MRd for vector %d: %w", v, err)
		}
		requests = append(requests, Request{Vector: v, Addr: addr, TLP: tlp.ToBytes()})
	}
	return requests, nil
}

// PBAReadTLP builds a single memory read covering the whole pending bit
// array.
func PBAReadTLP(requester pcie.DeviceID, bar pci.BAR, msix *pci.MSIXCapability) (Request, error) {
	if msix == nil {
		return Request{}, fmt.Errorf("device has no MSI-X capability to probe")
	}
	if bar.Index != msix.PBABIR {
		return Request{}, fmt.Errorf("MSI-X PBA lives in BAR%d, not BAR%d", msix.PBABIR, bar.Index)
	}

	addr := bar.Address + uint64(msix.PBAOffset)
	tlp, err := pcie.NewMRd(requester, 0, addr, uint32(msix.PBABytes()))
	if err != nil {
		return Request{}, fmt.Errorf("failed to build PBA MRd: %w", err)
	}
	return Request{Vector: -1, Addr: addr, TLP: tlp.ToBytes()}, nil
}
