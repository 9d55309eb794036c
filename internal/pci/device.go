// Package pci parses PCI/PCIe configuration space snapshots: the immutable
// config space buffer, capability chain walking, the capability catalog,
// BAR decoding, and MSI-X geometry.
package pci

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// BDF represents a PCI Domain:Bus:Device.Function address.
type BDF struct {
	Domain   uint16
	Bus      uint8
	Device   uint8
	Function uint8
}

var bdfRegexp = regexp.MustCompile(`^(?:([0-9a-fA-F]{1,4}):)?([0-9a-fA-F]{1,2}):([0-9a-fA-F]{1,2})\.([0-7])$`)

// ParseBDF parses a BDF string in the form "dddd:bb:dd.f" or "bb:dd.f"
// (domain defaults to 0). Device numbers above 0x1f are rejected; the
// function digit is constrained to 0-7 by the format itself.
func ParseBDF(s string) (BDF, error) {
	m := bdfRegexp.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return BDF{}, fmt.Errorf("invalid BDF %q: expected dddd:bb:dd.f or bb:dd.f", s)
	}

	var bdf BDF
	if m[1] != "" {
		domain, err := strconv.ParseUint(m[1], 16, 16)
		if err != nil {
			return BDF{}, fmt.Errorf("invalid BDF domain %q: %w", m[1], err)
		}
		bdf.Domain = uint16(domain)
	}

	bus, err := strconv.ParseUint(m[2], 16, 8)
	if err != nil {
		return BDF{}, fmt.Errorf("invalid BDF bus %q: %w", m[2], err)
	}
	dev, err := strconv.ParseUint(m[3], 16, 8)
	if err != nil {
		return BDF{}, fmt.Errorf("invalid BDF device %q: %w", m[3], err)
	}
	if dev > 0x1F {
		return BDF{}, fmt.Errorf("invalid BDF device 0x%02x: must be 0x00-0x1f", dev)
	}
	fn, _ := strconv.ParseUint(m[4], 16, 8)

	bdf.Bus = uint8(bus)
	bdf.Device = uint8(dev)
	bdf.Function = uint8(fn)
	return bdf, nil
}

// String returns the canonical BDF representation: "dddd:bb:dd.f".
func (b BDF) String() string {
	return fmt.Sprintf("%04x:%02x:%02x.%x", b.Domain, b.Bus, b.Device, b.Function)
}

// Short returns the short BDF representation without domain: "bb:dd.f".
func (b BDF) Short() string {
	return fmt.Sprintf("%02x:%02x.%x", b.Bus, b.Device, b.Function)
}

// SysfsPath returns the sysfs device directory for this address.
func (b BDF) SysfsPath() string {
	return fmt.Sprintf("/sys/bus/pci/devices/%s", b.String())
}

// PCIDevice holds the identity of an enumerated PCI device.
type PCIDevice struct {
	BDF            BDF    `json:"bdf"`
	VendorID       uint16 `json:"vendor_id"`
	DeviceID       uint16 `json:"device_id"`
	SubsysVendorID uint16 `json:"subsys_vendor_id"`
	SubsysDeviceID uint16 `json:"subsys_device_id"`
	RevisionID     uint8  `json:"revision_id"`
	ClassCode      uint32 `json:"class_code"` // base_class << 16 | sub_class << 8 | prog_if
	HeaderType     uint8  `json:"header_type"`
	Driver         string `json:"driver,omitempty"`
}

// BaseClass returns the PCI base class code.
func (d *PCIDevice) BaseClass() uint8 {
	return uint8((d.ClassCode >> 16) & 0xFF)
}

// SubClass returns the PCI sub-class code.
func (d *PCIDevice) SubClass() uint8 {
	return uint8((d.ClassCode >> 8) & 0xFF)
}

// ProgIF returns the PCI programming interface.
func (d *PCIDevice) ProgIF() uint8 {
	return uint8(d.ClassCode & 0xFF)
}

// pciSubClassNames maps (base_class << 8 | sub_class) to human-readable names.
var pciSubClassNames = map[uint16]string{
	// Mass Storage
	0x0101: "IDE interface",
	0x0104: "RAID bus controller",
	0x0106: "SATA controller",
	0x0107: "Serial Attached SCSI controller",
	0x0108: "Non-Volatile memory controller",
	// Network
	0x0200: "Ethernet controller",
	0x0280: "Network controller",
	// Display
	0x0300: "VGA compatible controller",
	0x0302: "3D controller",
	// Multimedia
	0x0400: "Multimedia video controller",
	0x0401: "Multimedia audio controller",
	0x0403: "Audio device",
	// Memory
	0x0500: "RAM memory",
	0x0580: "Memory controller",
	// Bridge
	0x0600: "Host bridge",
	0x0601: "ISA bridge",
	0x0604: "PCI bridge",
	0x0680: "Bridge",
	// Communication
	0x0700: "Serial controller",
	0x0780: "Communication controller",
	// System Peripheral
	0x0800: "PIC",
	0x0880: "System peripheral",
	// Serial Bus
	0x0C03: "USB controller",
	0x0C05: "SMBus",
	// Wireless
	0x0D00: "IRDA controller",
	0x0D11: "Bluetooth",
	0x0D80: "Wireless controller",
	// Signal Processing
	0x1180: "Signal processing controller",
	// Processing Accelerator
	0x1200: "Processing accelerator",
}

// pciBaseClassNames maps base_class to a fallback human-readable name.
var pciBaseClassNames = map[uint8]string{
	0x00: "Unclassified device",
	0x01: "Mass storage controller",
	0x02: "Network controller",
	0x03: "Display controller",
	0x04: "Multimedia controller",
	0x05: "Memory controller",
	0x06: "Bridge",
	0x07: "Communication controller",
	0x08: "System peripheral",
	0x09: "Input device controller",
	0x0A: "Docking station",
	0x0B: "Processor",
	0x0C: "Serial bus controller",
	0x0D: "Wireless controller",
	0x0E: "Intelligent controller",
	0x0F: "Satellite communication controller",
	0x10: "Encryption controller",
	0x11: "Signal processing controller",
	0x12: "Processing accelerator",
	0xFF: "Unassigned class",
}

// ClassDescription returns a human-readable description matching lspci style.
func (d *PCIDevice) ClassDescription() string {
	key := uint16(d.BaseClass())<<8 | uint16(d.SubClass())
	if name, ok := pciSubClassNames[key]; ok {
		return name
	}
	if name, ok := pciBaseClassNames[d.BaseClass()]; ok {
		return name
	}
	return fmt.Sprintf("Class [%02x%02x]", d.BaseClass(), d.SubClass())
}

// Summary returns a short summary line for display.
func (d *PCIDevice) Summary() string {
	return fmt.Sprintf("%s %04x:%04x [%s] (rev %02x)",
		d.BDF.String(), d.VendorID, d.DeviceID, d.ClassDescription(), d.RevisionID)
}
