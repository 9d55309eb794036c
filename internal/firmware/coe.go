// Package firmware turns a captured device snapshot into the artifacts the
// FPGA build consumes: scrubbed shadow config space, write masks and BAR
// content, all as Xilinx COE memory images.
package firmware

import (
	"fmt"
	"strings"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/pci"
)

// shadowCfgSpaceWords is the BRAM size used by pcileech shadow config space (4KB = 1024 DWORDs).
const shadowCfgSpaceWords = 1024

// formatCOE writes a COE file from a slice of uint32 words.
func formatCOE(header string, words []uint32) string {
	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("memory_initialization_radix=16;\n")
	sb.WriteString("memory_initialization_vector=\n")

	for i, w := range words {
		if i < len(words)-1 {
			sb.WriteString(fmt.Sprintf("%08x,\n", w))
		} else {
			sb.WriteString(fmt.Sprintf("%08x;\n", w))
		}
	}
	return sb.String()
}

// GenerateConfigSpaceCOE generates the pcileech_cfgspace.coe file content.
// Always outputs 1024 DWORDs (4KB) to match the shadow config space BRAM size.
// If the donor config space is smaller (e.g. 256 bytes), the remaining words are zero-filled.
func GenerateConfigSpaceCOE(cs *pci.ConfigSpace) string {
	words := make([]uint32, shadowCfgSpaceWords)

	donorWords := cs.Len() / 4
	for i := 0; i < donorWords && i < shadowCfgSpaceWords; i++ {
		w, _ := cs.ReadU32(i * 4)
		words[i] = w
	}

	return formatCOE(
		"; PCILeech FW Generator - PCI Configuration Space (4KB shadow)\n"+
			"; Generated from donor device config space\n"+
			";\n",
		words,
	)
}

// GenerateWritemaskCOE generates the pcileech_cfgspace_writemask.coe file.
// Always outputs 1024 DWORDs (4KB) to match the shadow config space DROM size.
// Defines which bits are writable per PCI spec.
func GenerateWritemaskCOE(cs *pci.ConfigSpace) string {
	masks := make([]uint32, shadowCfgSpaceWords)

	// PCI Header writable fields (Type 0 header)
	masks[0x04/4] = 0x0000FFFF // Command register (lower 16 bits writable)
	masks[0x0C/4] = 0x0000FF00 // Latency timer
	masks[0x3C/4] = 0x000000FF // Interrupt Line

	// BAR registers: writable (bits above size alignment)
	for i := 0; i < 6; i++ {
		barOffset := 0x10 + (i * 4)
		barValue := cs.BARRaw(i)
		if barValue == 0 {
			continue
		}

		if barValue&0x01 != 0 {
			masks[barOffset/4] = 0xFFFFFFFC // IO BAR
		} else {
			masks[barOffset/4] = 0xFFFFFFF0 // Memory BAR
		}
	}

	// Expansion ROM BAR
	masks[0x30/4] = 0xFFFFF801

	records, _ := pci.WalkCapabilities(cs)
	applyCapabilityWritemasks(records, masks)
	applyExtCapabilityWritemasks(records, masks)

	return formatCOE(
		"; PCILeech FW Generator - Configuration Space Write Mask (4KB shadow)\n"+
			"; 1 = writable bit, 0 = read-only bit\n"+
			";\n",
		masks,
	)
}

// applyCapabilityWritemasks applies writemasks for known PCI capabilities.
func applyCapabilityWritemasks(records []pci.CapabilityRecord, masks []uint32) {
	for _, rec := range records {
		if rec.Extended {
			continue
		}
		switch uint8(rec.ID) {
		case pci.CapIDPowerManagement:
			// PM Control/Status register at cap+4 is partially writable
			if rec.Offset+4 < pci.ConfigSpaceLegacySize {
				masks[(rec.Offset+4)/4] = 0x00008103 // PowerState bits + PME_En + PME_Status
			}
		case pci.CapIDMSI:
			// MSI Message Control is partially writable
			if rec.Offset+4 < pci.ConfigSpaceLegacySize {
				masks[(rec.Offset)/4] |= 0x00710000 // Enable + MultiMsg Enable
			}
		case pci.CapIDMSIX:
			// MSI-X Message Control
			if rec.Offset < pci.ConfigSpaceLegacySize {
				masks[(rec.Offset)/4] |= 0xC0000000 // Enable + Function Mask
			}
		case pci.CapIDPCIExpress:
			// PCIe Device Control at cap+8
			if rec.Offset+8 < pci.ConfigSpaceLegacySize {
				masks[(rec.Offset+8)/4] = 0x0000FFFF
			}
			// PCIe Link Control at cap+16 (0x10)
			if rec.Offset+16 < pci.ConfigSpaceLegacySize {
				masks[(rec.Offset+16)/4] = 0x0000FFFF
			}
		}
	}
}

// applyExtCapabilityWritemasks applies writemasks for PCIe extended capabilities.
func applyExtCapabilityWritemasks(records []pci.CapabilityRecord, masks []uint32) {
	for _, rec := range records {
		if !rec.Extended {
			continue
		}
		wordIdx := rec.Offset / 4
		if wordIdx >= len(masks) {
			continue
		}

		switch rec.ID {
		case pci.ExtCapIDAER:
			// AER error status registers are RW1C, masks and severity
			// are RW: cap+4 through cap+20.
			for off := 1; off <= 5; off++ {
				if wordIdx+off < len(masks) {
					masks[wordIdx+off] = 0xFFFFFFFF
				}
			}
		case pci.ExtCapIDLTR:
			// LTR: Max Snoop/No-Snoop Latency at cap+4
			if wordIdx+1 < len(masks) {
				masks[wordIdx+1] = 0xFFFFFFFF
			}
		}
	}
}

// GenerateBARContentCOE generates the pcileech_bar_content.coe file from
// captured BAR memory. Content is laid into a 4KB window, zero-filled past
// the capture and truncated beyond the window; nil content yields the all
// zero image the stock firmware ships with.
func GenerateBARContentCOE(content []byte) string {
	words := make([]uint32, shadowCfgSpaceWords)
	for i := 0; i < len(words) && i*4 < len(content); i++ {
		var raw [4]byte
		copy(raw[:], content[i*4:])
		words[i] = uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24
	}
	return formatCOE(
		"; PCILeech FW Generator - BAR Content (4KB window)\n",
		words,
	)
}
