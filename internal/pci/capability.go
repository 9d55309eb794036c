package pci

// Standard PCI capability IDs
const (
	CapIDPowerManagement   uint8 = 0x01
	CapIDAGP               uint8 = 0x02
	CapIDVPD               uint8 = 0x03
	CapIDSlotID            uint8 = 0x04
	CapIDMSI               uint8 = 0x05
	CapIDCompactPCIHotSwap uint8 = 0x06
	CapIDPCIX              uint8 = 0x07
	CapIDHyperTransport    uint8 = 0x08
	CapIDVendorSpecific    uint8 = 0x09
	CapIDDebugPort         uint8 = 0x0A
	CapIDCompactPCI        uint8 = 0x0B
	CapIDPCIHotPlug        uint8 = 0x0C
	CapIDBridgeSubsysVID   uint8 = 0x0D
	CapIDAGP8x             uint8 = 0x0E
	CapIDSecureDevice      uint8 = 0x0F
	CapIDPCIExpress        uint8 = 0x10
	CapIDMSIX              uint8 = 0x11
	CapIDSATADataIndex     uint8 = 0x12
	CapIDAdvancedFeatures  uint8 = 0x13
	CapIDEnhancedAlloc     uint8 = 0x14
	CapIDFlatteningPortal  uint8 = 0x15
)

// Extended PCI capability IDs (PCIe extended config space)
const (
	ExtCapIDNull               uint16 = 0x0000
	ExtCapIDAER                uint16 = 0x0001
	ExtCapIDVCNoMFVC           uint16 = 0x0002
	ExtCapIDDeviceSerialNumber uint16 = 0x0003
	ExtCapIDPowerBudgeting     uint16 = 0x0004
	ExtCapIDRCLinkDeclaration  uint16 = 0x0005
	ExtCapIDRCInternalLinkCtl  uint16 = 0x0006
	ExtCapIDRCEventCollector   uint16 = 0x0007
	ExtCapIDMFVC               uint16 = 0x0008
	ExtCapIDVC                 uint16 = 0x0009
	ExtCapIDRCRB               uint16 = 0x000A
	ExtCapIDVendorSpecific     uint16 = 0x000B
	ExtCapIDCAC                uint16 = 0x000C
	ExtCapIDACS                uint16 = 0x000D
	ExtCapIDARI                uint16 = 0x000E
	ExtCapIDATS                uint16 = 0x000F
	ExtCapIDSRIOV              uint16 = 0x0010
	ExtCapIDMRIOV              uint16 = 0x0011
	ExtCapIDMulticast          uint16 = 0x0012
	ExtCapIDPageRequest        uint16 = 0x0013
	ExtCapIDResizableBAR       uint16 = 0x0015
	ExtCapIDDPA                uint16 = 0x0016
	ExtCapIDTPHRequester       uint16 = 0x0017
	ExtCapIDLTR                uint16 = 0x0018
	ExtCapIDSecondaryPCIe      uint16 = 0x0019
	ExtCapIDPMUX               uint16 = 0x001A
	ExtCapIDPASID              uint16 = 0x001B
	ExtCapIDLNR                uint16 = 0x001C
	ExtCapIDDPC                uint16 = 0x001D
	ExtCapIDL1PMSubstates      uint16 = 0x001E
	ExtCapIDPTM                uint16 = 0x001F
)

// twoByteHeaderCaps are the standard capabilities whose second header byte
// carries capability data instead of the next pointer; for these the next
// pointer sits at offset+2. Slot Identification and PCI-X are the two cases.
var twoByteHeaderCaps = map[uint8]bool{
	CapIDSlotID: true,
	CapIDPCIX:   true,
}

var capNames = map[uint8]string{
	CapIDPowerManagement:   "Power Management",
	CapIDAGP:               "AGP",
	CapIDVPD:               "Vital Product Data",
	CapIDSlotID:            "Slot Identification",
	CapIDMSI:               "MSI",
	CapIDCompactPCIHotSwap: "CompactPCI HotSwap",
	CapIDPCIX:              "PCI-X",
	CapIDHyperTransport:    "HyperTransport",
	CapIDVendorSpecific:    "Vendor Specific",
	CapIDDebugPort:         "Debug Port",
	CapIDCompactPCI:        "CompactPCI",
	CapIDPCIHotPlug:        "PCI Hot-Plug",
	CapIDBridgeSubsysVID:   "Bridge Subsystem VID",
	CapIDAGP8x:             "AGP 8x",
	CapIDSecureDevice:      "Secure Device",
	CapIDPCIExpress:        "PCI Express",
	CapIDMSIX:              "MSI-X",
	CapIDSATADataIndex:     "SATA Data/Index",
	CapIDAdvancedFeatures:  "Advanced Features",
	CapIDEnhancedAlloc:     "Enhanced Allocation",
	CapIDFlatteningPortal:  "Flattening Portal Bridge",
}

var extCapNames = map[uint16]string{
	ExtCapIDNull:               "Null",
	ExtCapIDAER:                "Advanced Error Reporting",
	ExtCapIDVCNoMFVC:           "Virtual Channel (No MFVC)",
	ExtCapIDDeviceSerialNumber: "Device Serial Number",
	ExtCapIDPowerBudgeting:     "Power Budgeting",
	ExtCapIDRCLinkDeclaration:  "Root Complex Link Declaration",
	ExtCapIDRCInternalLinkCtl:  "Root Complex Internal Link Control",
	ExtCapIDRCEventCollector:   "Root Complex Event Collector",
	ExtCapIDMFVC:               "Multi-Function Virtual Channel",
	ExtCapIDVC:                 "Virtual Channel",
	ExtCapIDRCRB:               "Root Complex Register Block",
	ExtCapIDVendorSpecific:     "Vendor Specific",
	ExtCapIDACS:                "Access Control Services",
	ExtCapIDARI:                "Alternative Routing-ID Interpretation",
	ExtCapIDATS:                "Address Translation Services",
	ExtCapIDSRIOV:              "Single Root I/O Virtualization",
	ExtCapIDMRIOV:              "Multi-Root I/O Virtualization",
	ExtCapIDMulticast:          "Multicast",
	ExtCapIDPageRequest:        "Page Request Interface",
	ExtCapIDResizableBAR:       "Resizable BAR",
	ExtCapIDDPA:                "Dynamic Power Allocation",
	ExtCapIDTPHRequester:       "TPH Requester",
	ExtCapIDLTR:                "Latency Tolerance Reporting",
	ExtCapIDSecondaryPCIe:      "Secondary PCI Express",
	ExtCapIDPASID:              "Process Address Space ID",
	ExtCapIDDPC:                "Downstream Port Containment",
	ExtCapIDL1PMSubstates:      "L1 PM Substates",
	ExtCapIDPTM:                "Precision Time Measurement",
}

// Capability structure size estimates in bytes, used for catalog display and
// shadow BRAM budgeting. These cover the common fixed-layout capabilities;
// anything else falls back to the defaults.
const (
	capSizeDefault    = 16
	extCapSizeDefault = 32
)

var capSizeEstimates = map[uint8]int{
	CapIDPowerManagement: 8,
	CapIDMSI:             24,
	CapIDMSIX:            12,
	CapIDPCIExpress:      60,
}

var extCapSizeEstimates = map[uint16]int{
	ExtCapIDNull:         4,
	ExtCapIDAER:          48,
	ExtCapIDACS:          8,
	ExtCapIDDPC:          16,
	ExtCapIDResizableBAR: 16,
}

// CapabilityName returns the human-readable name for a standard capability
// ID, or "Unknown" for IDs outside the table.
func CapabilityName(id uint8) string {
	if name, ok := capNames[id]; ok {
		return name
	}
	return "Unknown"
}

// ExtCapabilityName returns the human-readable name for an extended
// capability ID, or "Unknown" for IDs outside the table.
func ExtCapabilityName(id uint16) string {
	if name, ok := extCapNames[id]; ok {
		return name
	}
	return "Unknown"
}

// CapabilitySize returns the estimated size in bytes of a standard
// capability structure.
func CapabilitySize(id uint8) int {
	if size, ok := capSizeEstimates[id]; ok {
		return size
	}
	return capSizeDefault
}

// ExtCapabilitySize returns the estimated size in bytes of an extended
// capability structure.
func ExtCapabilitySize(id uint16) int {
	if size, ok := extCapSizeEstimates[id]; ok {
		return size
	}
	return extCapSizeDefault
}
