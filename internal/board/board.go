// Package board provides PCILeech FPGA board definitions and discovery.
package board

import (
	"fmt"
	"strings"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/layout"
)

// Board represents a supported PCILeech FPGA board (or board variant).
type Board struct {
	Name        string `json:"name"`          // canonical board name (unique key)
	FPGAPart    string `json:"fpga_part"`     // Xilinx FPGA part number (e.g. xc7a35tfgg484-2)
	PCIeLanes   int    `json:"pcie_lanes"`    // number of PCIe lanes (1 or 4)
	MaxBARBytes uint64 `json:"max_bar_bytes"` // largest aperture the board can shadow from block RAM

	// Reserved lists aperture windows the firmware itself claims on this
	// board. The donor's MSI-X structures may not be placed inside one.
	Reserved []layout.ReservedRegion `json:"reserved,omitempty"`
}

// String returns the board name.
func (b *Board) String() string {
	return b.Name
}

// controlWindow is the shadow-BAR control region every supported firmware
// claims at the bottom of BAR0.
var controlWindow = []layout.ReservedRegion{
	{BIR: 0, Offset: 0x0, Size: 0x1000, Name: "device control"},
}

// Shadow capacities by FPGA family. Artix-7 parts carry 225KB (35T),
// 472KB (75T), 607KB (100T) and 1642KB (200T) of block RAM; the shadow
// aperture gets the largest power of two that leaves room for the config
// space mirror and FIFOs.
const (
	shadow35T  = 128 << 10
	shadow75T  = 256 << 10
	shadow100T = 512 << 10
	shadow200T = 1 << 20
	shadowLX45 = 128 << 10
)

// registry holds all supported boards and their variants.
// Part numbers sourced directly from the pcileech-fpga project files.
var registry = []Board{
	// ─── PCIeSquirrel ───────────────────────────────────────────
	{
		Name:        "PCIeSquirrel",
		FPGAPart:    "xc7a35tfgg484-2",
		PCIeLanes:   1,
		MaxBARBytes: shadow35T,
		Reserved:    controlWindow,
	},

	// ─── ScreamerM2 ────────────────────────────────────────────
	{
		Name:        "ScreamerM2",
		FPGAPart:    "xc7a35tcsg325-2",
		PCIeLanes:   1,
		MaxBARBytes: shadow35T,
		Reserved:    controlWindow,
	},

	// ─── pciescreamer (original) ───────────────────────────────
	{
		Name:        "pciescreamer",
		FPGAPart:    "xc7a35tfgg484-2",
		PCIeLanes:   1,
		MaxBARBytes: shadow35T,
		Reserved:    controlWindow,
	},

	// ─── EnigmaX1 ──────────────────────────────────────────────
	{
		Name:        "EnigmaX1",
		FPGAPart:    "xc7a75tfgg484-2",
		PCIeLanes:   1,
		MaxBARBytes: shadow75T,
		Reserved:    controlWindow,
	},

	// ─── CaptainDMA M2 x1 (35T, CSG325 package) ───────────────
	{
		Name:        "CaptainDMA_M2_x1",
		FPGAPart:    "xc7a35tcsg325-2",
		PCIeLanes:   1,
		MaxBARBytes: shadow35T,
		Reserved:    controlWindow,
	},

	// ─── CaptainDMA M2 x4 (35T, CSG325 package) ───────────────
	{
		Name:        "CaptainDMA_M2_x4",
		FPGAPart:    "xc7a35tcsg325-2",
		PCIeLanes:   4,
		MaxBARBytes: shadow35T,
		Reserved:    controlWindow,
	},

	// ─── CaptainDMA 4.1th (35T, FGG484 package) ───────────────
	{
		Name:        "CaptainDMA_35T",
		FPGAPart:    "xc7a35tfgg484-2",
		PCIeLanes:   1,
		MaxBARBytes: shadow35T,
		Reserved:    controlWindow,
	},

	// ─── CaptainDMA 75T ────────────────────────────────────────
	{
		Name:        "CaptainDMA_75T",
		FPGAPart:    "xc7a75tfgg484-2",
		PCIeLanes:   1,
		MaxBARBytes: shadow75T,
		Reserved:    controlWindow,
	},

	// ─── CaptainDMA 100T ───────────────────────────────────────
	{
		Name:        "CaptainDMA_100T",
		FPGAPart:    "xc7a100tfgg484-2",
		PCIeLanes:   1,
		MaxBARBytes: shadow100T,
		Reserved:    controlWindow,
	},

	// ─── ZDMA (LambdaConcept / LightingZDMA - 100T) ───────────
	{
		Name:        "ZDMA",
		FPGAPart:    "xc7a100tfgg484-2",
		PCIeLanes:   4,
		MaxBARBytes: shadow100T,
		Reserved:    controlWindow,
	},

	// ─── GBOX ──────────────────────────────────────────────────
	{
		Name:        "GBOX",
		FPGAPart:    "xc7a35tfgg484-2",
		PCIeLanes:   1,
		MaxBARBytes: shadow35T,
		Reserved:    controlWindow,
	},

	// ─── NeTV2 (35T variant) ───────────────────────────────────
	{
		Name:        "NeTV2_35T",
		FPGAPart:    "xc7a35tfgg484-2",
		PCIeLanes:   1,
		MaxBARBytes: shadow35T,
		Reserved:    controlWindow,
	},

	// ─── NeTV2 (100T variant) ──────────────────────────────────
	{
		Name:        "NeTV2_100T",
		FPGAPart:    "xc7a100tfgg484-2",
		PCIeLanes:   1,
		MaxBARBytes: shadow100T,
		Reserved:    controlWindow,
	},

	// ─── ac701_ft601 ───────────────────────────────────────────
	{
		Name:        "ac701_ft601",
		FPGAPart:    "xc7a200tfbg676-2",
		PCIeLanes:   4,
		MaxBARBytes: shadow200T,
		Reserved:    controlWindow,
	},

	// ─── Acorn (SQRL Acorn CLE-215+) ──────────────────────────
	{
		Name:        "acorn",
		FPGAPart:    "xc7a200tfbg484-3",
		PCIeLanes:   4,
		MaxBARBytes: shadow200T,
		Reserved:    controlWindow,
	},

	// ─── LiteFury (RHS Research LiteFury) ──────────────────────
	{
		Name:        "litefury",
		FPGAPart:    "xc7a100tfgg484-2",
		PCIeLanes:   4,
		MaxBARBytes: shadow100T,
		Reserved:    controlWindow,
	},

	// ─── sp605_ft601 (legacy) ──────────────────────────────────
	{
		Name:        "sp605_ft601",
		FPGAPart:    "xc6slx45tfgg484-2",
		PCIeLanes:   1,
		MaxBARBytes: shadowLX45,
		Reserved:    controlWindow,
	},
}

// Find looks up a board by name (case-insensitive).
func Find(name string) (*Board, error) {
	lower := strings.ToLower(name)
	for i := range registry {
		if strings.ToLower(registry[i].Name) == lower {
			return &registry[i], nil
		}
	}
	return nil, fmt.Errorf("unknown board %q, available boards:\n%s",
		name, formatBoardList())
}

// formatBoardList returns a formatted list of available boards for error messages.
func formatBoardList() string {
	var sb strings.Builder
	for _, b := range registry {
		sb.WriteString(fmt.Sprintf("  %-25s %s (x%d)\n", b.Name, b.FPGAPart, b.PCIeLanes))
	}
	return sb.String()
}

// ListNames returns all available board names.
func ListNames() []string {
	names := make([]string, len(registry))
	for i, b := range registry {
		names[i] = b.Name
	}
	return names
}

// All returns all registered boards.
func All() []Board {
	result := make([]Board, len(registry))
	copy(result, registry)
	return result
}
