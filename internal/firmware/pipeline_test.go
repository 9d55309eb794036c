package firmware

import (
	"strings"
	"testing"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/board"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/pci"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/profile"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/snapshot"
)

// donorContext builds a captured context for an i210-like donor whose MSI-X
// PBA sits flush against the vector table, which the validator rejects.
func donorContext(t *testing.T, mutators ...func(ed *pci.Editor)) *snapshot.DeviceContext {
	t.Helper()

	ed := pci.NewEditor(pci.ConfigSpaceExtSize)
	ed.WriteU16(0x00, 0x8086)
	ed.WriteU16(0x02, 0x1533)
	ed.WriteU16(0x04, 0x0507)
	ed.WriteU16(0x06, 0x0010)
	ed.WriteU8(0x08, 0x03)
	ed.WriteU8(0x0B, 0x02)
	ed.WriteU32(0x10, 0xFE000000)
	ed.WriteU32(0x14, 0x0000E001)
	ed.WriteU16(0x2C, 0x8086)
	ed.WriteU16(0x2E, 0x0001)
	ed.WriteU8(0x34, 0x40)
	ed.WriteU8(0x3C, 0x0A)

	ed.WriteU8(0x40, pci.CapIDPowerManagement)
	ed.WriteU8(0x41, 0x48)
	ed.WriteU16(0x44, 0x0003) // donor parked in D3hot

	ed.WriteU8(0x48, pci.CapIDMSI)
	ed.WriteU8(0x49, 0x60)
	ed.WriteU16(0x4A, 0x0006)

	ed.WriteU8(0x60, pci.CapIDMSIX)
	ed.WriteU8(0x61, 0x70)
	ed.WriteU16(0x62, 7)          // 8 vectors
	ed.WriteU32(0x64, 0x00001000) // table BIR 0 at 0x1000
	ed.WriteU32(0x68, 0x00001080) // PBA flush against the table end

	ed.WriteU8(0x70, pci.CapIDPCIExpress)
	ed.WriteU8(0x71, 0x00)
	ed.WriteU16(0x72, 0x0002)
	ed.WriteU32(0x7C, 0x00000012) // Gen2 x1

	ed.WriteU32(0x100, extHeader(pci.ExtCapIDAER, 2, 0x140))
	ed.WriteU32(0x140, extHeader(pci.ExtCapIDDeviceSerialNumber, 1, 0x180))
	ed.WriteU32(0x144, 0x01000A35)
	ed.WriteU32(0x148, 0x00000001)
	ed.WriteU32(0x180, extHeader(pci.ExtCapIDSRIOV, 1, 0))

	for _, mutate := range mutators {
		mutate(ed)
	}

	bdf, err := pci.ParseBDF("0000:03:00.0")
	if err != nil {
		t.Fatalf("ParseBDF: %v", err)
	}
	return &snapshot.DeviceContext{
		SnapshotID:  "11111111-2222-3333-4444-555555555555",
		ToolVersion: "test",
		Hostname:    "donor-rig",
		Device: pci.PCIDevice{
			BDF:       bdf,
			VendorID:  0x8086,
			DeviceID:  0x1533,
			ClassCode: 0x020000,
		},
		ConfigHex: ed.Freeze().Hex(),
		BARs: []pci.BAR{
			{Index: 0, Kind: pci.BARKindMemory, Address: 0xFE000000, Size: 0x4000},
			{Index: 1, Kind: pci.BARKindIO, Address: 0xE000, Size: 0x20},
		},
	}
}

func squirrel(t *testing.T) *board.Board {
	t.Helper()
	brd, err := board.Find("PCIeSquirrel")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	return brd
}

func TestPipelineHappyPath(t *testing.T) {
	ctx := donorContext(t)
	p := &Pipeline{Board: squirrel(t), AutoFix: true}

	res, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantAction := "moved MSI-X PBA past the vector table: 0x1080 -> 0x2000"
	if len(res.Actions) != 1 || res.Actions[0] != wantAction {
		t.Errorf("Actions = %v, want [%q]", res.Actions, wantAction)
	}
	if !res.Layout.Valid() {
		t.Errorf("final layout invalid: %s", res.Layout.Summary())
	}
	if res.MSIX == nil || res.MSIX.TableOffset != 0x1000 || res.MSIX.PBAOffset != 0x2000 {
		t.Fatalf("MSIX = %+v, want table 0x1000 and PBA 0x2000", res.MSIX)
	}

	// the repaired layout is encoded back into the shadow space
	if v, _ := res.ConfigSpace.ReadU32(0x68); v != 0x00002000 {
		t.Errorf("PBA register = 0x%08x, want 0x00002000", v)
	}

	wantRemoved := "removed Single Root I/O Virtualization extended capability (id 0x0010) at offset 0x180"
	if len(res.Removed) != 1 || res.Removed[0] != wantRemoved {
		t.Errorf("Removed = %v, want [%q]", res.Removed, wantRemoved)
	}
	if _, ok := pci.FindExtCapability(res.ConfigSpace, pci.ExtCapIDSRIOV); ok {
		t.Error("SR-IOV survived the scrub")
	}
	if _, ok := pci.FindExtCapability(res.ConfigSpace, pci.ExtCapIDAER); !ok {
		t.Error("AER should survive")
	}
	if _, ok := pci.FindExtCapability(res.ConfigSpace, pci.ExtCapIDDeviceSerialNumber); !ok {
		t.Error("DSN should survive")
	}

	want := InterruptStrategy{Kind: StrategyMSIX, Vectors: 8}
	if res.Strategy != want {
		t.Errorf("Strategy = %+v, want %+v", res.Strategy, want)
	}

	if !res.IDs.HasDSN || res.IDs.DSN != 0x0000000101000A35 {
		t.Errorf("DSN = 0x%016x (has=%v), want 0x0000000101000A35", res.IDs.DSN, res.IDs.HasDSN)
	}
	if !res.IDs.HasPCIeCap || res.IDs.LinkSpeed != LinkSpeedGen2 {
		t.Errorf("link = Gen%d (has=%v), want Gen2", res.IDs.LinkSpeed, res.IDs.HasPCIeCap)
	}

	if res.ConfigSpace.InterruptLine() != 0 {
		t.Error("interrupt line should be scrubbed")
	}
	bar0, ok := res.BARs.Lookup(0)
	if !ok || bar0.Size != 0x4000 {
		t.Errorf("BAR0 = %+v, want size 0x4000", bar0)
	}
}

func TestPipelineRejectsInvalidWithoutAutoFix(t *testing.T) {
	ctx := donorContext(t)
	p := &Pipeline{Board: squirrel(t)}

	res, err := p.Run(ctx)
	if err == nil {
		t.Fatal("expected an error for the broken layout")
	}
	if res != nil {
		t.Error("result should be nil on error")
	}
	if !strings.Contains(err.Error(), "MSI-X layout is invalid") {
		t.Errorf("err = %v", err)
	}
}

func TestPipelineNeedsBoard(t *testing.T) {
	p := &Pipeline{}
	_, err := p.Run(donorContext(t))
	if err == nil || err.Error() != "pipeline needs a target board" {
		t.Errorf("err = %v", err)
	}
}

func TestPipelineProfilePrunesMSIX(t *testing.T) {
	ctx := donorContext(t)
	ctx.BARs = nil // sizes must come from the profile
	p := &Pipeline{
		Board:   squirrel(t),
		AutoFix: true,
		Profile: &profile.DeviceProfile{
			BARSizes:   map[int]uint64{0: 0x4000, 1: 0x20},
			RemoveCaps: []uint8{pci.CapIDMSIX},
		},
	}

	res, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.MSIX != nil {
		t.Errorf("MSIX = %+v, want nil after pruning", res.MSIX)
	}
	if _, ok := pci.FindCapability(res.ConfigSpace, pci.CapIDMSIX); ok {
		t.Error("MSI-X capability still present")
	}
	msi, ok := pci.FindCapability(res.ConfigSpace, pci.CapIDMSI)
	if !ok || msi.NextOffset != 0x70 {
		t.Errorf("MSI record = %+v, want next pointer spliced to 0x70", msi)
	}

	want := InterruptStrategy{Kind: StrategyMSI, Vectors: 8}
	if res.Strategy != want {
		t.Errorf("Strategy = %+v, want fallback %+v", res.Strategy, want)
	}

	if len(res.Removed) != 2 {
		t.Fatalf("Removed = %v, want SR-IOV and MSI-X", res.Removed)
	}
	if res.Removed[1] != "removed MSI-X capability (id 0x11) at offset 0x60" {
		t.Errorf("Removed[1] = %q", res.Removed[1])
	}
}

func TestPipelineUnfixableLayout(t *testing.T) {
	ctx := donorContext(t, func(ed *pci.Editor) {
		ed.WriteU32(0x64, 0x00001005) // table BIR 5: no such aperture
	})
	p := &Pipeline{Board: squirrel(t), AutoFix: true}

	_, err := p.Run(ctx)
	if err == nil {
		t.Fatal("expected an error for an unfixable layout")
	}
	if !strings.Contains(err.Error(), "auto-fix could not repair") {
		t.Errorf("err = %v", err)
	}
}
