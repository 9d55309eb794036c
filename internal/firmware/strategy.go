package firmware

import (
	"fmt"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/pci"
)

// Interrupt strategy kinds, in preference order.
const (
	StrategyMSIX = "msix"
	StrategyMSI  = "msi"
	StrategyINTx = "intx"
)

// InterruptStrategy is the interrupt mechanism the cloned firmware will
// advertise, picked from what the donor's config space actually carries.
type InterruptStrategy struct {
	Kind    string `json:"kind"`
	Vectors int    `json:"vectors"`
}

// String returns a display form like "msix (8 vectors)".
func (s InterruptStrategy) String() string {
	return fmt.Sprintf("%s (%d vectors)", s.Kind, s.Vectors)
}

// SelectInterruptStrategy picks the best interrupt mechanism the config
// space supports: MSI-X with its full vector count, then MSI with
// 2^(multi-message capable) vectors capped at 32, then legacy INTx.
func SelectInterruptStrategy(cs *pci.ConfigSpace) InterruptStrategy {
	msix, err := pci.ParseMSIX(cs)
	if err == nil && msix != nil {
		return InterruptStrategy{Kind: StrategyMSIX, Vectors: msix.TableSize}
	}

	if rec, ok := pci.FindCapability(cs, pci.CapIDMSI); ok {
		msgCtrl, err := cs.ReadU16(rec.Offset + 2)
		if err == nil {
			vectors := 1 << ((msgCtrl >> 1) & 0x7)
			if vectors > 32 {
				vectors = 32
			}
			return InterruptStrategy{Kind: StrategyMSI, Vectors: vectors}
		}
	}

	return InterruptStrategy{Kind: StrategyINTx, Vectors: 1}
}
