package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/board"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/color"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/firmware"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/pci"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/snapshot"
)

var (
	inspectBDF  string
	inspectJSON string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect a donor device or a saved snapshot",
	Long: `Shows everything the build pipeline will see for a donor: identity,
capability catalog, BAR apertures, MSI-X geometry, and which boards can
carry the clone. Works on a live device (--bdf) or a saved snapshot
(--json), so captures can be reviewed offline.

Example:
  pcileechfwgen inspect --bdf 0000:03:00.0
  pcileechfwgen inspect --json device_context.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (inspectBDF == "") == (inspectJSON == "") {
			return fmt.Errorf("exactly one of --bdf or --json is required")
		}

		ctx, err := loadOrCaptureContext(inspectBDF, inspectJSON)
		if err != nil {
			return err
		}

		cs, err := ctx.ConfigSpace()
		if err != nil {
			return fmt.Errorf("snapshot config space: %w", err)
		}

		fmt.Printf("%s\n", color.Header("Device"))
		fmt.Printf("  %s\n", color.Bold(ctx.Device.Summary()))
		fmt.Printf("  Name:      %s\n", pci.LoadPCIDB().Label(ctx.Device.VendorID, ctx.Device.DeviceID))
		fmt.Printf("  Subsystem: %04x:%04x\n", ctx.Device.SubsysVendorID, ctx.Device.SubsysDeviceID)
		if ctx.Device.Driver != "" {
			fmt.Printf("  Driver:    %s\n", ctx.Device.Driver)
		}
		fmt.Printf("  Config space: %d bytes", cs.Len())
		if cs.HasExtended() {
			fmt.Printf(" (extended)")
		}
		fmt.Printf("\n  Snapshot: %s (%s, tool %s)\n",
			ctx.SnapshotID, ctx.CollectedAt.Format("2006-01-02 15:04:05"), ctx.ToolVersion)

		printCatalog(cs)
		printBARs(ctx.BARs)
		printMSIX(ctx)
		printFindings(ctx.Findings)
		printBoardCompatibility(cs)

		return nil
	},
}

// loadOrCaptureContext resolves the two input modes shared by inspect,
// validate and build: a saved snapshot file, or a live capture via sysfs.
func loadOrCaptureContext(bdfStr, jsonPath string) (*snapshot.DeviceContext, error) {
	if jsonPath != "" {
		ctx, err := snapshot.LoadContext(jsonPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load snapshot: %w", err)
		}
		return ctx, nil
	}

	bdf, err := pci.ParseBDF(bdfStr)
	if err != nil {
		return nil, fmt.Errorf("invalid BDF: %w", err)
	}
	ctx, err := snapshot.NewCollector().Collect(bdf)
	if err != nil {
		return nil, fmt.Errorf("device capture failed: %w", err)
	}
	return ctx, nil
}

func printCatalog(cs *pci.ConfigSpace) {
	records, _ := pci.WalkCapabilities(cs)
	catalog := pci.BuildCatalog(records)
	if catalog.Len() == 0 {
		fmt.Printf("\n%s\n  none\n", color.Header("Capabilities"))
		return
	}

	fmt.Printf("\n%s\n", color.Header("Capabilities"))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  CHAIN\tID\tNAME\tOFFSET\tNEXT\tEST SIZE")
	for _, e := range catalog.Entries() {
		chain := "std"
		idStr := fmt.Sprintf("0x%02x", e.Record.ID)
		offStr := fmt.Sprintf("0x%02x", e.Record.Offset)
		nextStr := fmt.Sprintf("0x%02x", e.Record.NextOffset)
		if e.Record.Extended {
			chain = fmt.Sprintf("ext v%d", e.Record.Version)
			idStr = fmt.Sprintf("0x%04x", e.Record.ID)
			offStr = fmt.Sprintf("0x%03x", e.Record.Offset)
			nextStr = fmt.Sprintf("0x%03x", e.Record.NextOffset)
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\t%d B\n",
			chain, idStr, e.Name, offStr, nextStr, e.Size)
	}
	w.Flush()
	fmt.Printf("  Total: %d capabilities, ~%d bytes of structures\n",
		catalog.Len(), catalog.TotalSize())
}

func printBARs(bars []pci.BAR) {
	fmt.Printf("\n%s\n", color.Header("BARs"))
	if len(bars) == 0 {
		fmt.Println("  none")
		return
	}
	for i := range bars {
		fmt.Printf("  %s\n", bars[i].String())
	}
}

func printMSIX(ctx *snapshot.DeviceContext) {
	fmt.Printf("\n%s\n", color.Header("MSI-X"))
	msix := ctx.MSIX
	if msix == nil {
		fmt.Println("  not present (interrupts fall back to MSI or INTx)")
		return
	}

	state := "disabled"
	if msix.Enabled {
		state = "enabled"
	}
	if msix.FunctionMask {
		state += ", function masked"
	}
	fmt.Printf("  Capability at 0x%02x (%s)\n", msix.Offset, state)
	fmt.Printf("  Vectors: %d\n", msix.TableSize)
	fmt.Printf("  Table:   BAR%d offset 0x%x (%d bytes)\n",
		msix.TableBIR, msix.TableOffset, msix.TableBytes())
	fmt.Printf("  PBA:     BAR%d offset 0x%x (%d bytes)\n",
		msix.PBABIR, msix.PBAOffset, msix.PBABytes())

	if len(ctx.MSIXTable) == 0 {
		return
	}
	active := 0
	for _, e := range ctx.MSIXTable {
		if e.Enabled() {
			active++
		}
	}
	fmt.Printf("  Captured table: %d entries, %d unmasked\n", len(ctx.MSIXTable), active)
	for _, e := range ctx.MSIXTable {
		mark := " "
		if e.Enabled() {
			mark = "*"
		}
		fmt.Printf("   %s vector %3d: addr 0x%08x%08x data 0x%08x ctrl 0x%08x\n",
			mark, e.Vector, e.AddrHigh, e.AddrLow, e.MsgData, e.VectorCtrl)
	}
}

func printFindings(findings []pci.Finding) {
	if len(findings) == 0 {
		return
	}
	fmt.Printf("\n%s\n", color.Header("Findings"))
	for _, f := range findings {
		if f.Severity == pci.SeverityError {
			fmt.Printf("  %s\n", color.Fail(f.String()))
		} else {
			fmt.Printf("  %s\n", color.Warn(f.String()))
		}
	}
}

func printBoardCompatibility(cs *pci.ConfigSpace) {
	fmt.Printf("\n%s\n", color.Header("Board Compatibility"))
	ids := firmware.ExtractDeviceIDs(cs)

	if ids.HasPCIeCap {
		fmt.Printf("Donor Link: %s x%d\n",
			color.Bold(firmware.LinkSpeedName(ids.LinkSpeed)), ids.LinkWidth)
	}
	if ids.HasDSN {
		fmt.Printf("Donor DSN:  0x%016x\n", ids.DSN)
	} else {
		fmt.Println(color.Warn("Donor has no DSN capability (serial number won't be emulated)"))
	}

	strategy := firmware.SelectInterruptStrategy(cs)
	fmt.Printf("Interrupts: %s\n", strategy.String())

	allBoards := board.All()
	fmt.Printf("\nCompatible boards:\n")
	for _, b := range allBoards {
		label := color.Okf("%-22s %s x%d", b.Name, b.FPGAPart, b.PCIeLanes)
		note := ""
		if ids.HasPCIeCap && int(ids.LinkWidth) > b.PCIeLanes {
			label = color.Warnf("%-22s %s x%d", b.Name, b.FPGAPart, b.PCIeLanes)
			note = color.Dim(fmt.Sprintf(" (link clamped: x%d -> x%d)", ids.LinkWidth, b.PCIeLanes))
		}
		if ids.HasPCIeCap && int(ids.LinkWidth) == b.PCIeLanes {
			note = color.Dim(" (exact match)")
		}
		fmt.Printf("  %s%s\n", label, note)
	}
	fmt.Printf("\nTotal: %d boards\n", len(allBoards))
}

func init() {
	inspectCmd.Flags().StringVar(&inspectBDF, "bdf", "", "device BDF address to inspect")
	inspectCmd.Flags().StringVar(&inspectJSON, "json", "", "saved device snapshot to inspect")
	rootCmd.AddCommand(inspectCmd)
}
