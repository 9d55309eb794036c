package pci

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// newTestSpace builds a snapshot of the given size through an editor.
func newTestSpace(t *testing.T, size int, build func(ed *Editor)) *ConfigSpace {
	t.Helper()
	ed := NewEditor(size)
	if build != nil {
		build(ed)
	}
	return ed.Freeze()
}

func TestConfigSpaceAccessors(t *testing.T) {
	cs := newTestSpace(t, 256, func(ed *Editor) {
		// Typical Intel NIC header
		ed.WriteU16(0x00, 0x8086) // Vendor ID
		ed.WriteU16(0x02, 0x1533) // Device ID
		ed.WriteU16(0x04, 0x0406) // Command
		ed.WriteU16(0x06, 0x0010) // Status (capabilities list)
		ed.WriteU8(0x08, 0x03)    // Revision ID
		ed.WriteU8(0x09, 0x00)    // Prog IF
		ed.WriteU8(0x0A, 0x00)    // Sub-class
		ed.WriteU8(0x0B, 0x02)    // Base class (Network)
		ed.WriteU8(0x0C, 0x10)    // Cache line size
		ed.WriteU8(0x0D, 0x20)    // Latency timer
		ed.WriteU8(0x0E, 0x00)    // Header type
		ed.WriteU8(0x0F, 0x40)    // BIST
		ed.WriteU32(0x10, 0xF7D00004)
		ed.WriteU16(0x2C, 0x8086) // Subsys Vendor
		ed.WriteU16(0x2E, 0x0001) // Subsys Device
		ed.WriteU8(0x34, 0x40)    // Capability pointer
		ed.WriteU8(0x3C, 0x0B)    // Interrupt line
		ed.WriteU8(0x3D, 0x01)    // Interrupt pin
	})

	if cs.VendorID() != 0x8086 {
		t.Errorf("VendorID() = 0x%04x, want 0x8086", cs.VendorID())
	}
	if cs.DeviceID() != 0x1533 {
		t.Errorf("DeviceID() = 0x%04x, want 0x1533", cs.DeviceID())
	}
	if cs.Command() != 0x0406 {
		t.Errorf("Command() = 0x%04x, want 0x0406", cs.Command())
	}
	if cs.Status() != 0x0010 {
		t.Errorf("Status() = 0x%04x, want 0x0010", cs.Status())
	}
	if cs.RevisionID() != 0x03 {
		t.Errorf("RevisionID() = 0x%02x, want 0x03", cs.RevisionID())
	}
	if cs.BaseClass() != 0x02 {
		t.Errorf("BaseClass() = 0x%02x, want 0x02", cs.BaseClass())
	}
	if cs.ClassCode() != 0x020000 {
		t.Errorf("ClassCode() = 0x%06x, want 0x020000", cs.ClassCode())
	}
	if cs.CacheLineSize() != 0x10 {
		t.Errorf("CacheLineSize() = 0x%02x, want 0x10", cs.CacheLineSize())
	}
	if cs.LatencyTimer() != 0x20 {
		t.Errorf("LatencyTimer() = 0x%02x, want 0x20", cs.LatencyTimer())
	}
	if cs.BIST() != 0x40 {
		t.Errorf("BIST() = 0x%02x, want 0x40", cs.BIST())
	}
	if cs.BARRaw(0) != 0xF7D00004 {
		t.Errorf("BARRaw(0) = 0x%08x, want 0xF7D00004", cs.BARRaw(0))
	}
	if cs.BARRaw(6) != 0 {
		t.Errorf("BARRaw(6) = 0x%08x, want 0 for out-of-range index", cs.BARRaw(6))
	}
	if cs.SubsysVendorID() != 0x8086 {
		t.Errorf("SubsysVendorID() = 0x%04x, want 0x8086", cs.SubsysVendorID())
	}
	if cs.SubsysDeviceID() != 0x0001 {
		t.Errorf("SubsysDeviceID() = 0x%04x, want 0x0001", cs.SubsysDeviceID())
	}
	if !cs.HasCapabilities() {
		t.Error("HasCapabilities() = false, want true")
	}
	if cs.CapabilityPointer() != 0x40 {
		t.Errorf("CapabilityPointer() = 0x%02x, want 0x40", cs.CapabilityPointer())
	}
	if cs.InterruptLine() != 0x0B {
		t.Errorf("InterruptLine() = 0x%02x, want 0x0B", cs.InterruptLine())
	}
	if cs.InterruptPin() != 0x01 {
		t.Errorf("InterruptPin() = 0x%02x, want 0x01", cs.InterruptPin())
	}
}

func TestNewConfigSpaceTooShort(t *testing.T) {
	_, err := NewConfigSpace(make([]byte, 255))
	if !errors.Is(err, ErrTooShort) {
		t.Errorf("NewConfigSpace(255 bytes) error = %v, want ErrTooShort", err)
	}

	if _, err := NewConfigSpace(make([]byte, 256)); err != nil {
		t.Errorf("NewConfigSpace(256 bytes) error = %v, want nil", err)
	}
}

func TestNewConfigSpaceTruncatesOversize(t *testing.T) {
	cs, err := NewConfigSpace(make([]byte, 5000))
	if err != nil {
		t.Fatal(err)
	}
	if cs.Len() != ConfigSpaceExtSize {
		t.Errorf("Len() = %d, want %d", cs.Len(), ConfigSpaceExtSize)
	}
}

func TestNewConfigSpaceCopiesInput(t *testing.T) {
	data := make([]byte, 256)
	data[0] = 0x86
	cs, err := NewConfigSpace(data)
	if err != nil {
		t.Fatal(err)
	}

	data[0] = 0xFF
	if v, _ := cs.ReadU8(0); v != 0x86 {
		t.Error("snapshot aliases the input slice")
	}
}

func TestParseConfigSpaceHex(t *testing.T) {
	raw := make([]byte, 256)
	raw[0] = 0x86
	raw[1] = 0x80
	raw[2] = 0x33
	raw[3] = 0x15
	base, err := NewConfigSpace(raw)
	if err != nil {
		t.Fatal(err)
	}

	// whitespace and upper case are both tolerated
	hexStr := strings.ToUpper(base.Hex())
	spaced := hexStr[:8] + " \n\t" + hexStr[8:]

	cs, err := ParseConfigSpaceHex(spaced)
	if err != nil {
		t.Fatalf("ParseConfigSpaceHex() error = %v", err)
	}
	if cs.VendorID() != 0x8086 || cs.DeviceID() != 0x1533 {
		t.Errorf("parsed IDs = %04x:%04x, want 8086:1533", cs.VendorID(), cs.DeviceID())
	}
}

func TestParseConfigSpaceHexErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "", ErrTooShort},
		{"below legacy size", strings.Repeat("ab", 64), ErrTooShort},
		{"odd digit count", strings.Repeat("ab", 128) + "c", ErrMalformedEncoding},
		{"non-hex character", "zz" + strings.Repeat("ab", 127), ErrMalformedEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfigSpaceHex(tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseConfigSpaceHex(%q...) error = %v, want %v", tt.name, err, tt.want)
			}
		})
	}
}

func TestHexRoundTrip(t *testing.T) {
	raw := make([]byte, ConfigSpaceExtSize)
	for i := range raw {
		raw[i] = byte(i * 7)
	}
	cs, err := NewConfigSpace(raw)
	if err != nil {
		t.Fatal(err)
	}

	again, err := ParseConfigSpaceHex(cs.Hex())
	if err != nil {
		t.Fatalf("round trip parse error = %v", err)
	}
	if !bytes.Equal(cs.Bytes(), again.Bytes()) {
		t.Error("hex round trip changed the snapshot")
	}
}

func TestConfigSpaceBytesIsCopy(t *testing.T) {
	cs := newTestSpace(t, 256, func(ed *Editor) {
		ed.WriteU16(0x00, 0x8086)
	})

	b := cs.Bytes()
	b[0] = 0xFF
	if cs.VendorID() != 0x8086 {
		t.Error("Bytes() aliases the snapshot")
	}
}

func TestConfigSpaceReadBounds(t *testing.T) {
	cs := newTestSpace(t, 256, nil)

	if _, err := cs.ReadU8(-1); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("ReadU8(-1) error = %v, want ErrOutOfBounds", err)
	}
	if _, err := cs.ReadU8(256); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("ReadU8(256) error = %v, want ErrOutOfBounds", err)
	}
	if _, err := cs.ReadU16(255); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("ReadU16(255) error = %v, want ErrOutOfBounds", err)
	}
	if _, err := cs.ReadU32(253); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("ReadU32(253) error = %v, want ErrOutOfBounds", err)
	}
	if _, err := cs.ReadU32(252); err != nil {
		t.Errorf("ReadU32(252) error = %v, want nil", err)
	}
}

func TestHasExtended(t *testing.T) {
	legacy := newTestSpace(t, 256, nil)
	if legacy.HasExtended() {
		t.Error("256-byte snapshot reports extended space")
	}

	ext := newTestSpace(t, 4096, nil)
	if !ext.HasExtended() {
		t.Error("4096-byte snapshot does not report extended space")
	}
}

func TestConfigSpaceHexDump(t *testing.T) {
	cs := newTestSpace(t, 256, func(ed *Editor) {
		ed.WriteU16(0x00, 0x8086)
	})

	dump := cs.HexDump(16)
	if !strings.Contains(dump, "86 80") {
		t.Errorf("HexDump missing expected bytes, got: %s", dump)
	}
	if !strings.HasPrefix(dump, "0000: ") {
		t.Errorf("HexDump missing offset prefix, got: %s", dump)
	}
}
