package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/pci"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/snapshot"
)

var (
	snapshotBDF       string
	snapshotOutput    string
	snapshotMSIXTable bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture a donor device into a portable snapshot",
	Long: `Reads a donor device's config space, BARs, capabilities and MSI-X
layout from sysfs and saves them as a device context JSON. The snapshot
is everything later stages need, so builds can run offline on another
machine.

Reading the live MSI-X vector table out of BAR memory is opt-in
(--msix-table): BAR reads have side effects on some hardware.

Example:
  pcileechfwgen snapshot --bdf 0000:03:00.0 --output donor.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bdf, err := pci.ParseBDF(snapshotBDF)
		if err != nil {
			return fmt.Errorf("invalid BDF: %w", err)
		}

		collector := snapshot.NewCollector()
		collector.ReadMSIXTable = snapshotMSIXTable

		fmt.Printf("[pcileechfwgen] Capturing device %s...\n", bdf.String())
		ctx, err := collector.Collect(bdf)
		if err != nil {
			return fmt.Errorf("device capture failed: %w", err)
		}

		if err := snapshot.SaveContext(ctx, snapshotOutput); err != nil {
			return fmt.Errorf("failed to save snapshot: %w", err)
		}

		fmt.Printf("[pcileechfwgen] Device: %04x:%04x %s (rev %02x)\n",
			ctx.Device.VendorID, ctx.Device.DeviceID,
			ctx.Device.ClassDescription(), ctx.Device.RevisionID)
		fmt.Printf("[pcileechfwgen] Capabilities: %d\n", len(ctx.Capabilities))
		fmt.Printf("[pcileechfwgen] BARs: %d\n", len(ctx.BARs))
		if ctx.MSIX != nil {
			fmt.Printf("[pcileechfwgen] MSI-X: %d vectors, table BAR%d@0x%x, PBA BAR%d@0x%x\n",
				ctx.MSIX.TableSize,
				ctx.MSIX.TableBIR, ctx.MSIX.TableOffset,
				ctx.MSIX.PBABIR, ctx.MSIX.PBAOffset)
		}
		if len(ctx.MSIXTable) > 0 {
			fmt.Printf("[pcileechfwgen] MSI-X table: %d live entries captured\n", len(ctx.MSIXTable))
		}
		for _, f := range ctx.Findings {
			fmt.Printf("[pcileechfwgen] finding: %s\n", f.String())
		}
		fmt.Printf("[pcileechfwgen] Snapshot %s written to %s\n", ctx.SnapshotID, snapshotOutput)
		return nil
	},
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotBDF, "bdf", "", "donor device BDF address (required, e.g. 0000:03:00.0)")
	snapshotCmd.Flags().StringVar(&snapshotOutput, "output", "device_context.json", "snapshot output path")
	snapshotCmd.Flags().BoolVar(&snapshotMSIXTable, "msix-table", false, "also capture the live MSI-X vector table from BAR memory")
	_ = snapshotCmd.MarkFlagRequired("bdf")
	rootCmd.AddCommand(snapshotCmd)
}
