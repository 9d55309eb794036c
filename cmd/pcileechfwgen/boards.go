package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/board"
)

var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "List all supported FPGA boards",
	Long:  "Displays all supported pcileech-fpga board variants with their FPGA part, PCIe lane configuration and BAR shadow capacity.",
	Run: func(cmd *cobra.Command, args []string) {
		boards := board.All()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tFPGA PART\tPCIe\tSHADOW\tRESERVED")
		fmt.Fprintln(w, "----\t---------\t----\t------\t--------")

		for _, b := range boards {
			reserved := "-"
			if len(b.Reserved) > 0 {
				r := b.Reserved[0]
				reserved = fmt.Sprintf("BAR%d 0x%x+0x%x %s", r.BIR, r.Offset, r.Size, r.Name)
			}
			fmt.Fprintf(w, "%s\t%s\tx%d\t%d KB\t%s\n",
				b.Name, b.FPGAPart, b.PCIeLanes, b.MaxBARBytes>>10, reserved)
		}
		w.Flush()

		fmt.Printf("\nTotal: %d boards\n", len(boards))
	},
}

func init() {
	rootCmd.AddCommand(boardsCmd)
}
