package snapshot

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/pci"
)

func testContext(t *testing.T) *DeviceContext {
	t.Helper()

	cs, err := pci.NewConfigSpace(donorConfig())
	if err != nil {
		t.Fatal(err)
	}
	bdf, _ := pci.ParseBDF(testBDF)

	return &DeviceContext{
		SnapshotID:  "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		CollectedAt: time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC),
		ToolVersion: "0.4.0-test",
		Hostname:    "donor-rig",
		Device: pci.PCIDevice{
			BDF:      bdf,
			VendorID: 0x8086, DeviceID: 0x1533,
			ClassCode: 0x020000,
		},
		ConfigHex: cs.Hex(),
		BARs: []pci.BAR{
			{Index: 0, Kind: pci.BARKindMemory, Address: 0xFE000000, Size: 0x100000},
			{Index: 1, Kind: pci.BARKindMemory, Address: 0xFE100000, Size: 0x4000},
		},
		MSIX: &pci.MSIXCapability{
			Offset:    0x50,
			TableSize: 8,
			TableBIR:  1, TableOffset: 0x1000,
			PBABIR: 1, PBAOffset: 0x2000,
		},
	}
}

func TestContextJSONRoundTrip(t *testing.T) {
	ctx := testContext(t)

	data, err := ctx.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	got, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	if got.SnapshotID != ctx.SnapshotID || got.Hostname != ctx.Hostname {
		t.Errorf("identity fields lost: %+v", got)
	}
	if !got.CollectedAt.Equal(ctx.CollectedAt) {
		t.Errorf("CollectedAt = %v, want %v", got.CollectedAt, ctx.CollectedAt)
	}
	if got.Device != ctx.Device {
		t.Errorf("Device = %+v, want %+v", got.Device, ctx.Device)
	}
	if len(got.BARs) != 2 || got.BARs[1] != ctx.BARs[1] {
		t.Errorf("BARs = %+v", got.BARs)
	}
	if got.MSIX == nil || *got.MSIX != *ctx.MSIX {
		t.Errorf("MSIX = %+v, want %+v", got.MSIX, ctx.MSIX)
	}
	if got.ConfigHex != ctx.ConfigHex {
		t.Error("config snapshot changed across the round trip")
	}
}

func TestFromJSONRejectsMissingConfig(t *testing.T) {
	_, err := FromJSON([]byte(`{"snapshot_id": "x"}`))
	if err == nil || !strings.Contains(err.Error(), "no config space snapshot") {
		t.Errorf("err = %v, want missing snapshot error", err)
	}
}

func TestFromJSONRejectsUndecodableConfig(t *testing.T) {
	_, err := FromJSON([]byte(`{"config_space_hex": "zz"}`))
	if err == nil || !strings.Contains(err.Error(), "device context config space") {
		t.Errorf("err = %v, want config decode error", err)
	}
}

func TestFromJSONRejectsMalformedJSON(t *testing.T) {
	_, err := FromJSON([]byte("not json"))
	if err == nil || !strings.Contains(err.Error(), "failed to parse device context JSON") {
		t.Errorf("err = %v, want parse error", err)
	}
}

func TestSaveAndLoadContext(t *testing.T) {
	ctx := testContext(t)
	path := filepath.Join(t.TempDir(), "device_context.json")

	if err := SaveContext(ctx, path); err != nil {
		t.Fatalf("SaveContext: %v", err)
	}

	got, err := LoadContext(path)
	if err != nil {
		t.Fatalf("LoadContext: %v", err)
	}
	if got.SnapshotID != ctx.SnapshotID {
		t.Errorf("SnapshotID = %q", got.SnapshotID)
	}
}

func TestLoadContextMissingFile(t *testing.T) {
	_, err := LoadContext(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil || !strings.Contains(err.Error(), "failed to read device context file") {
		t.Errorf("err = %v, want read failure", err)
	}
}
