package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/pci"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/probe"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/snapshot"
)

var probeJSONPath string

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Emit the MSI-X read TLPs a DMA card would issue",
	Long: `Builds the PCIe memory read TLPs covering a snapshot's MSI-X table
and PBA, one read per vector plus one for the pending bits. The hex
packets can be replayed through pcileech or compared in a protocol
analyzer against the real donor's traffic.

Example:
  pcileechfwgen probe --json device_context.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := snapshot.LoadContext(probeJSONPath)
		if err != nil {
			return fmt.Errorf("failed to load device context: %w", err)
		}
		if ctx.MSIX == nil {
			return fmt.Errorf("snapshot has no MSI-X capability to probe")
		}

		bars := pci.NewBARTable(ctx.BARs)
		tableBAR, ok := bars.Lookup(ctx.MSIX.TableBIR)
		if !ok {
			return fmt.Errorf("MSI-X table BIR %d has no aperture in the snapshot", ctx.MSIX.TableBIR)
		}
		pbaBAR, ok := bars.Lookup(ctx.MSIX.PBABIR)
		if !ok {
			return fmt.Errorf("MSI-X PBA BIR %d has no aperture in the snapshot", ctx.MSIX.PBABIR)
		}

		requester := probe.RequesterFromBDF(ctx.Device.BDF)
		requests, err := probe.TableReadTLPs(requester, tableBAR, ctx.MSIX)
		if err != nil {
			return err
		}
		pbaReq, err := probe.PBAReadTLP(requester, pbaBAR, ctx.MSIX)
		if err != nil {
			return err
		}

		fmt.Printf("Requester %s, %d vector reads + 1 PBA read\n\n",
			ctx.Device.BDF.String(), len(requests))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VECTOR\tADDRESS\tTLP")
		fmt.Fprintln(w, "------\t-------\t---")
		for _, r := range requests {
			fmt.Fprintf(w, "%d\t0x%012x\t%s\n", r.Vector, r.Addr, hex.EncodeToString(r.TLP))
		}
		fmt.Fprintf(w, "PBA\t0x%012x\t%s\n", pbaReq.Addr, hex.EncodeToString(pbaReq.TLP))
		w.Flush()
		return nil
	},
}

func init() {
	probeCmd.Flags().StringVar(&probeJSONPath, "json", "", "path to device_context.json (required)")
	_ = probeCmd.MarkFlagRequired("json")
	rootCmd.AddCommand(probeCmd)
}
