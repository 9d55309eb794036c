package pci

import (
	"strings"
	"testing"
)

const pciIDsSample = `#
#	List of PCI ID's
#
8086  Intel Corporation
	1533  I210 Gigabit Network Connection
		8086 0001  Ethernet Server Adapter I210-T1
	10d3  82574L Gigabit Network Connection
10de  NVIDIA Corporation
	2204  GA102 [GeForce RTX 3090]
C 01  Mass storage controller
	01  SCSI storage controller
`

func TestParsePCIIDs(t *testing.T) {
	db := ParsePCIIDs(strings.NewReader(pciIDsSample))

	if got := db.VendorName(0x8086); got != "Intel Corporation" {
		t.Errorf("VendorName(8086) = %q", got)
	}
	if got := db.DeviceName(0x8086, 0x1533); got != "I210 Gigabit Network Connection" {
		t.Errorf("DeviceName(8086, 1533) = %q", got)
	}
	if got := db.DeviceName(0x10de, 0x2204); got != "GA102 [GeForce RTX 3090]" {
		t.Errorf("DeviceName(10de, 2204) = %q", got)
	}

	// subsystem lines are skipped, not recorded as devices
	if got := db.DeviceName(0x8086, 0x0001); got != "" {
		t.Errorf("subsystem line leaked into devices: %q", got)
	}
	// the class section must not parse as vendors
	if got := db.VendorName(0x0001); got != "" {
		t.Errorf("class section leaked into vendors: %q", got)
	}
}

func TestPCIDBLabel(t *testing.T) {
	db := ParsePCIIDs(strings.NewReader(pciIDsSample))

	if got := db.Label(0x8086, 0x1533); got != "Intel Corporation I210 Gigabit Network Connection" {
		t.Errorf("Label(known) = %q", got)
	}
	if got := db.Label(0x8086, 0xFFFF); got != "Intel Corporation [ffff]" {
		t.Errorf("Label(known vendor, unknown device) = %q", got)
	}
	if got := db.Label(0xABCD, 0x1234); got != "[abcd] [1234]" {
		t.Errorf("Label(unknown) = %q", got)
	}
}
