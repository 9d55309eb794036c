package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/color"
)

var (
	flagVerbose bool
	flagNoColor bool
)

var rootCmd = &cobra.Command{
	Use:   "pcileechfwgen",
	Short: "PCILeech FPGA firmware generator",
	Long: `PCILeechFWGenerator builds PCILeech FPGA firmware that clones the PCIe
identity of a real donor device.

It captures the donor's configuration space via sysfs into a portable
snapshot, validates and repairs the MSI-X layout against the target
board, scrubs capabilities the card cannot back, and emits the COE
memory images the pcileech-fpga designs load.

This tool requires:
  - Linux (device capture reads /sys/bus/pci)
  - A real donor PCI/PCIe card, or a previously captured snapshot`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			logrus.SetLevel(logrus.DebugLevel)
		} else {
			logrus.SetLevel(logrus.WarnLevel)
		}
		if flagNoColor {
			color.Disable()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colored output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
