package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/board"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/firmware"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/pci"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/profile"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/snapshot"
)

var (
	buildBDF        string
	buildFromJSON   string
	buildBoard      string
	buildProfile    string
	buildOutput     string
	buildFix        bool
	buildCaptureBAR int
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build firmware artifacts from a donor device",
	Long: `Runs the full pipeline: captures (or loads) a donor snapshot,
validates and repairs the MSI-X layout for the target board, scrubs
volatile and unsafe state out of the config space, and writes the COE
memory images plus a build report.

Use --from-json to build from a previously saved snapshot (offline
builds without access to the donor hardware). --capture-bar reads live
BAR content from the donor for the BAR shadow image; it needs --bdf.

Example:
  pcileechfwgen build --bdf 0000:03:00.0 --board PCIeSquirrel
  pcileechfwgen build --from-json device_context.json --board EnigmaX1
  pcileechfwgen build --bdf 03:00.0 --board PCIeSquirrel --capture-bar 0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := board.Find(buildBoard)
		if err != nil {
			return err
		}

		var ctx *snapshot.DeviceContext
		if buildFromJSON != "" {
			if buildCaptureBAR >= 0 {
				return fmt.Errorf("--capture-bar needs a live donor; use --bdf instead of --from-json")
			}
			fmt.Printf("[pcileechfwgen] Loading device context from: %s\n", buildFromJSON)
			ctx, err = snapshot.LoadContext(buildFromJSON)
			if err != nil {
				return fmt.Errorf("failed to load device context: %w", err)
			}
		} else {
			if buildBDF == "" {
				return fmt.Errorf("either --bdf or --from-json is required")
			}
			bdf, err := pci.ParseBDF(buildBDF)
			if err != nil {
				return fmt.Errorf("invalid BDF: %w", err)
			}

			fmt.Printf("[pcileechfwgen] Target device: %s\n", bdf.String())
			fmt.Println("[pcileechfwgen] Stage 1: Capturing donor device...")
			ctx, err = snapshot.NewCollector().Collect(bdf)
			if err != nil {
				return fmt.Errorf("device capture failed: %w", err)
			}
		}

		var prof *profile.DeviceProfile
		if buildProfile != "" {
			if prof, err = profile.LoadFile(buildProfile); err != nil {
				return err
			}
		}

		cs, err := ctx.ConfigSpace()
		if err != nil {
			return fmt.Errorf("snapshot config space: %w", err)
		}

		fmt.Printf("[pcileechfwgen] Target board: %s (%s)\n", b.Name, b.FPGAPart)
		fmt.Printf("[pcileechfwgen] Output: %s\n", buildOutput)
		fmt.Printf("[pcileechfwgen] Device: %04x:%04x %s (rev %02x)\n",
			ctx.Device.VendorID, ctx.Device.DeviceID,
			ctx.Device.ClassDescription(), ctx.Device.RevisionID)
		fmt.Printf("[pcileechfwgen] Config space: %d bytes\n", cs.Len())
		fmt.Printf("[pcileechfwgen] Capabilities: %d\n", len(ctx.Capabilities))
		fmt.Printf("[pcileechfwgen] BARs: %d\n\n", len(ctx.BARs))

		fmt.Println("[pcileechfwgen] Stage 2: Validating layout and scrubbing config space...")
		pipeline := &firmware.Pipeline{Board: b, Profile: prof, AutoFix: buildFix}
		res, err := pipeline.Run(ctx)
		if err != nil {
			return err
		}
		for _, a := range res.Actions {
			fmt.Printf("[pcileechfwgen]   repair: %s\n", a)
		}
		for _, msg := range res.Removed {
			fmt.Printf("[pcileechfwgen]   scrub: %s\n", msg)
		}
		fmt.Printf("[pcileechfwgen] Interrupts: %s\n", res.Strategy.String())

		var barContent []byte
		if buildCaptureBAR >= 0 {
			fmt.Printf("[pcileechfwgen] Stage 3: Capturing BAR%d content...\n", buildCaptureBAR)
			reader := snapshot.NewSysfsReader()
			barContent, err = reader.ReadBARContent(ctx.Device.BDF, buildCaptureBAR, int(b.MaxBARBytes))
			if err != nil {
				return fmt.Errorf("BAR%d content capture failed: %w", buildCaptureBAR, err)
			}
			fmt.Printf("[pcileechfwgen] Captured %d bytes of BAR%d\n", len(barContent), buildCaptureBAR)
		}

		fmt.Println("[pcileechfwgen] Stage 4: Writing artifacts...")
		writer := firmware.NewOutputWriter(buildOutput)
		if err := writer.WriteAll(ctx, res, b.Name, barContent); err != nil {
			return err
		}
		for _, name := range firmware.ListOutputFiles() {
			fmt.Printf("[pcileechfwgen]   %s\n", filepath.Join(buildOutput, name))
		}
		fmt.Println("[pcileechfwgen] Build complete.")
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVar(&buildBDF, "bdf", "", "donor device BDF address (e.g. 0000:03:00.0)")
	buildCmd.Flags().StringVar(&buildFromJSON, "from-json", "", "load donor snapshot from JSON file (offline build)")
	buildCmd.Flags().StringVar(&buildBoard, "board", "", "target FPGA board name (required, e.g. PCIeSquirrel)")
	buildCmd.Flags().StringVar(&buildProfile, "profile", "", "device profile YAML with sizes, reserved windows and prune lists")
	buildCmd.Flags().StringVar(&buildOutput, "output", "pcileech_datastore", "output directory")
	buildCmd.Flags().BoolVar(&buildFix, "fix", true, "repair invalid MSI-X layouts instead of aborting")
	buildCmd.Flags().IntVar(&buildCaptureBAR, "capture-bar", -1, "BAR index to capture live content from (-1 to skip)")

	_ = buildCmd.MarkFlagRequired("board")

	rootCmd.AddCommand(buildCmd)
}
