package firmware

import (
	"fmt"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/pci"
)

// PCIe Link Speed constants
const (
	LinkSpeedGen1 uint8 = 1 // 2.5 GT/s
	LinkSpeedGen2 uint8 = 2 // 5.0 GT/s
	LinkSpeedGen3 uint8 = 3 // 8.0 GT/s
	LinkSpeedGen4 uint8 = 4 // 16.0 GT/s
	LinkSpeedGen5 uint8 = 5 // 32.0 GT/s
)

// DeviceIDs holds the identity registers the cloned card presents.
type DeviceIDs struct {
	VendorID       uint16
	DeviceID       uint16
	SubsysVendorID uint16
	SubsysDeviceID uint16
	RevisionID     uint8
	ClassCode      uint32 // 24-bit: base<<16 | sub<<8 | progif
	DSN            uint64 // Device Serial Number (0 if not present)
	HasDSN         bool

	// PCIe Link Capability fields
	LinkSpeed   uint8 // Supported Link Speed (1=Gen1 ... 5=Gen5)
	LinkWidth   uint8 // Maximum Link Width (1, 2, 4, 8, 16)
	HasPCIeCap  bool
	PCIeDevType uint8 // PCIe Device/Port Type (from PCIe Capabilities Register)
}

// ExtractDeviceIDs collects all device identification from a config space.
func ExtractDeviceIDs(cs *pci.ConfigSpace) DeviceIDs {
	ids := DeviceIDs{
		VendorID:       cs.VendorID(),
		DeviceID:       cs.DeviceID(),
		SubsysVendorID: cs.SubsysVendorID(),
		SubsysDeviceID: cs.SubsysDeviceID(),
		RevisionID:     cs.RevisionID(),
		ClassCode:      cs.ClassCode(),
	}

	if rec, ok := pci.FindCapability(cs, pci.CapIDPCIExpress); ok {
		pcieCapReg, capErr := cs.ReadU16(rec.Offset + 2)
		linkCap, linkErr := cs.ReadU32(rec.Offset + 12)
		if capErr == nil && linkErr == nil {
			ids.HasPCIeCap = true
			ids.PCIeDevType = uint8((pcieCapReg >> 4) & 0x0F)
			ids.LinkSpeed = uint8(linkCap & 0x0F)        // Max Link Speed
			ids.LinkWidth = uint8((linkCap >> 4) & 0x3F) // Max Link Width
		}
	}

	if rec, ok := pci.FindExtCapability(cs, pci.ExtCapIDDeviceSerialNumber); ok {
		low, lowErr := cs.ReadU32(rec.Offset + 4)
		high, highErr := cs.ReadU32(rec.Offset + 8)
		if lowErr == nil && highErr == nil {
			ids.DSN = uint64(high)<<32 | uint64(low)
			ids.HasDSN = true
		}
	}

	return ids
}

// LinkSpeedName returns a human-readable name for PCIe link speed.
func LinkSpeedName(speed uint8) string {
	switch speed {
	case LinkSpeedGen1:
		return "Gen1 (2.5 GT/s)"
	case LinkSpeedGen2:
		return "Gen2 (5.0 GT/s)"
	case LinkSpeedGen3:
		return "Gen3 (8.0 GT/s)"
	case LinkSpeedGen4:
		return "Gen4 (16.0 GT/s)"
	case LinkSpeedGen5:
		return "Gen5 (32.0 GT/s)"
	default:
		return fmt.Sprintf("Unknown (%d)", speed)
	}
}
