package probe

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-pcie-tlp/pcie"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/pci"
)

func testMSIX() *pci.MSIXCapability {
	return &pci.MSIXCapability{
		TableSize:   8,
		TableBIR:    1,
		TableOffset: 0x1000,
		PBABIR:      1,
		PBAOffset:   0x2000,
	}
}

func testBAR() pci.BAR {
	return pci.BAR{Index: 1, Kind: pci.BARKindMemory, Address: 0xFE100000, Size: 0x4000}
}

func TestRequesterFromBDF(t *testing.T) {
	bdf, err := pci.ParseBDF("0000:af:1c.7")
	if err != nil {
		t.Fatalf("ParseBDF: %v", err)
	}

	got := RequesterFromBDF(bdf)
	want := pcie.DeviceID{Bus: 0xAF, Device: 0x1C, Function: 7}
	if got != want {
		t.Errorf("RequesterFromBDF = %+v, want %+v", got, want)
	}
}

func TestTableReadTLPs(t *testing.T) {
	requester := pcie.DeviceID{Bus: 3}

	reqs, err := TableReadTLPs(requester, testBAR(), testMSIX())
	if err != nil {
		t.Fatalf("TableReadTLPs: %v", err)
	}
	if len(reqs) != 8 {
		t.Fatalf("got %d requests, want one per vector", len(reqs))
	}

	// vector 0: MRd3, 4 dwords at 0xFE101000, tag 0
	want := []byte{
		0x00, 0x00, 0x00, 0x04,
		0x03, 0x00, 0x00, 0xFF,
		0xFE, 0x10, 0x10, 0x00,
	}
	if reqs[0].Vector != 0 || reqs[0].Addr != 0xFE101000 {
		t.Errorf("request 0 = {vector %d, addr 0x%x}", reqs[0].Vector, reqs[0].Addr)
	}
	if !bytes.Equal(reqs[0].TLP, want) {
		t.Errorf("request 0 TLP = % x, want % x", reqs[0].TLP, want)
	}

	// each subsequent vector steps one table entry and one tag
	for v, req := range reqs {
		wantAddr := uint64(0xFE101000) + uint64(v)*pci.MSIXTableEntrySize
		if req.Vector != v || req.Addr != wantAddr {
			t.Errorf("request %d = {vector %d, addr 0x%x}, want addr 0x%x",
				v, req.Vector, req.Addr, wantAddr)
		}
		if len(req.TLP) != 12 {
			t.Errorf("request %d TLP length = %d, want 3 dword header", v, len(req.TLP))
		}
		if req.TLP[6] != byte(v) {
			t.Errorf("request %d tag = 0x%02x, want 0x%02x", v, req.TLP[6], v)
		}
	}
}

func TestTableReadTLPsAbove4G(t *testing.T) {
	bar := testBAR()
	bar.Address = 0x20_0000_0000
	bar.Is64Bit = true

	reqs, err := TableReadTLPs(pcie.DeviceID{Bus: 3}, bar, testMSIX())
	if err != nil {
		t.Fatalf("TableReadTLPs: %v", err)
	}

	// 64-bit addressing switches to the 4 dword header format
	want := []byte{
		0x20, 0x00, 0x00, 0x04,
		0x03, 0x00, 0x00, 0xFF,
		0x00, 0x00, 0x00, 0x20,
		0x00, 0x00, 0x10, 0x00,
	}
	if !bytes.Equal(reqs[0].TLP, want) {
		t.Errorf("request 0 TLP = % x, want % x", reqs[0].TLP, want)
	}
	if reqs[0].Addr != 0x20_0000_1000 {
		t.Errorf("request 0 addr = 0x%x", reqs[0].Addr)
	}
}

func TestTableReadTLPsWrongBAR(t *testing.T) {
	bar := testBAR()
	bar.Index = 0

	_, err := TableReadTLPs(pcie.DeviceID{Bus: 3}, bar, testMSIX())
	if err == nil || !strings.Contains(err.Error(), "MSI-X table lives in BAR1, not BAR0") {
		t.Errorf("err = %v", err)
	}
}

func TestTableReadTLPsNilMSIX(t *testing.T) {
	if _, err := TableReadTLPs(pcie.DeviceID{Bus: 3}, testBAR(), nil); err == nil {
		t.Error("expected an error without an MSI-X capability")
	}
	if _, err := PBAReadTLP(pcie.DeviceID{Bus: 3}, testBAR(), nil); err == nil {
		t.Error("expected an error without an MSI-X capability")
	}
}

func TestPBAReadTLP(t *testing.T) {
	req, err := PBAReadTLP(pcie.DeviceID{Bus: 3}, testBAR(), testMSIX())
	if err != nil {
		t.Fatalf("PBAReadTLP: %v", err)
	}

	if req.Vector != -1 || req.Addr != 0xFE102000 {
		t.Errorf("request = {vector %d, addr 0x%x}", req.Vector, req.Addr)
	}

	// 8 vectors pend in one dword, so LastBE drops to zero
	want := []byte{
		0x00, 0x00, 0x00, 0x01,
		0x03, 0x00, 0x00, 0x0F,
		0xFE, 0x10, 0x20, 0x00,
	}
	if !bytes.Equal(req.TLP, want) {
		t.Errorf("TLP = % x, want % x", req.TLP, want)
	}
}

func TestPBAReadTLPWrongBAR(t *testing.T) {
	bar := testBAR()
	bar.Index = 3

	_, err := PBAReadTLP(pcie.DeviceID{Bus: 3}, bar, testMSIX())
	if err == nil || !strings.Contains(err.Error(), "MSI-X PBA lives in BAR1, not BAR3") {
		t.Errorf("err = %v", err)
	}
}
