package firmware

import (
	"testing"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/pci"
)

func TestSelectInterruptStrategyPrefersMSIX(t *testing.T) {
	cs := buildSpace(t, pci.ConfigSpaceLegacySize, func(ed *pci.Editor) {
		ed.WriteU16(0x06, 0x0010)
		ed.WriteU8(0x34, 0x40)

		ed.WriteU8(0x40, pci.CapIDMSI)
		ed.WriteU8(0x41, 0x50)
		ed.WriteU16(0x42, 0x0006)

		ed.WriteU8(0x50, pci.CapIDMSIX)
		ed.WriteU8(0x51, 0x00)
		ed.WriteU16(0x52, 15) // 16 vectors
		ed.WriteU32(0x54, 0x00001000)
		ed.WriteU32(0x58, 0x00002000)
	})

	got := SelectInterruptStrategy(cs)
	want := InterruptStrategy{Kind: StrategyMSIX, Vectors: 16}
	if got != want {
		t.Errorf("strategy = %+v, want %+v", got, want)
	}
}

func TestSelectInterruptStrategyMSIFallback(t *testing.T) {
	tests := []struct {
		msgCtrl uint16
		vectors int
	}{
		{0x0000, 1},
		{0x0006, 8},
		{0x000E, 32}, // multi-message capable 128, capped
	}
	for _, tt := range tests {
		cs := buildSpace(t, pci.ConfigSpaceLegacySize, func(ed *pci.Editor) {
			ed.WriteU16(0x06, 0x0010)
			ed.WriteU8(0x34, 0x40)
			ed.WriteU8(0x40, pci.CapIDMSI)
			ed.WriteU8(0x41, 0x00)
			ed.WriteU16(0x42, tt.msgCtrl)
		})

		got := SelectInterruptStrategy(cs)
		if got.Kind != StrategyMSI || got.Vectors != tt.vectors {
			t.Errorf("msgCtrl 0x%04x: strategy = %+v, want msi with %d vectors",
				tt.msgCtrl, got, tt.vectors)
		}
	}
}

func TestSelectInterruptStrategyINTx(t *testing.T) {
	cs := buildSpace(t, pci.ConfigSpaceLegacySize, func(ed *pci.Editor) {
		ed.WriteU16(0x00, 0x8086)
	})

	got := SelectInterruptStrategy(cs)
	want := InterruptStrategy{Kind: StrategyINTx, Vectors: 1}
	if got != want {
		t.Errorf("strategy = %+v, want %+v", got, want)
	}
}

func TestInterruptStrategyString(t *testing.T) {
	s := InterruptStrategy{Kind: StrategyMSIX, Vectors: 8}
	if got := s.String(); got != "msix (8 vectors)" {
		t.Errorf("String() = %q", got)
	}
}
