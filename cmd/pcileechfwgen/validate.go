package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/board"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/color"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/firmware"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/layout"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/pci"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/profile"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/snapshot"
)

var (
	validateJSONPath  string
	validateBoard     string
	validateProfile   string
	validateFix       bool
	validateArtifacts string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a snapshot's MSI-X layout and generated artifacts",
	Long: `Validates the MSI-X memory layout of a captured snapshot: table and
PBA geometry against the BAR table, plus the reserved windows of the
target board and profile. With --fix the repair plan is computed and
shown, but nothing is written; build applies it.

With --artifacts the COE files in that directory are additionally
compared byte-for-byte against what a build from this snapshot would
produce. Any drift there could cause detection.

Example:
  pcileechfwgen validate --json device_context.json --board PCIeSquirrel
  pcileechfwgen validate --json device_context.json --board PCIeSquirrel --artifacts pcileech_datastore/`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := snapshot.LoadContext(validateJSONPath)
		if err != nil {
			return fmt.Errorf("failed to load device context: %w", err)
		}
		fmt.Printf("Loaded donor context: %s\n\n",
			color.Bold(fmt.Sprintf("%04x:%04x (rev %02x)",
				ctx.Device.VendorID, ctx.Device.DeviceID, ctx.Device.RevisionID)))

		var brd *board.Board
		if validateBoard != "" {
			if brd, err = board.Find(validateBoard); err != nil {
				return err
			}
		}
		var prof *profile.DeviceProfile
		if validateProfile != "" {
			if prof, err = profile.LoadFile(validateProfile); err != nil {
				return err
			}
		}

		if err := validateLayout(ctx, brd, prof); err != nil {
			return err
		}

		if validateArtifacts != "" {
			if brd == nil {
				return fmt.Errorf("--artifacts needs --board: artifacts are built for a specific board")
			}
			return validateArtifactFiles(ctx, brd, prof)
		}
		return nil
	},
}

// validateLayout runs the layout checks and prints every finding. With
// --fix an invalid layout is repaired in memory and re-checked; the
// command still writes nothing.
func validateLayout(ctx *snapshot.DeviceContext, brd *board.Board, prof *profile.DeviceProfile) error {
	cs, err := ctx.ConfigSpace()
	if err != nil {
		return fmt.Errorf("snapshot config space: %w", err)
	}

	var sizes map[int]uint64
	if prof != nil && len(prof.BARSizes) > 0 {
		sizes = prof.BARSizes
	} else {
		sizes = profile.SizesFromBARs(ctx.BARs)
	}

	bars, barFindings := pci.ParseBARs(cs, sizes)
	for _, f := range barFindings {
		fmt.Println(color.Warn(f.String()))
	}

	msix, err := pci.ParseMSIX(cs)
	if err != nil {
		return fmt.Errorf("snapshot MSI-X capability: %w", err)
	}

	fmt.Printf("%s\n", color.Header("MSI-X Layout"))
	if msix == nil {
		fmt.Println(color.OK("no MSI-X capability, nothing to place"))
		return nil
	}

	var reserved []layout.ReservedRegion
	if brd != nil {
		reserved = append(reserved, brd.Reserved...)
	}
	if prof != nil {
		reserved = append(reserved, prof.Reserved...)
	}

	result := layout.Validate(bars, msix, reserved)
	printLayoutFindings(result)

	if result.Valid() {
		fmt.Println(color.Okf("layout valid: %d vectors, table BAR%d@0x%x, PBA BAR%d@0x%x",
			msix.TableSize, msix.TableBIR, msix.TableOffset, msix.PBABIR, msix.PBAOffset))
		return nil
	}

	if !validateFix {
		return fmt.Errorf("MSI-X layout is invalid (%s); re-run with --fix to see the repair plan", result.Summary())
	}

	fixedBars, fixedMSIX, actions := layout.AutoFix(bars, msix, reserved)
	fmt.Printf("\n%s\n", color.Header("Repair Plan"))
	if len(actions) == 0 {
		fmt.Println("  nothing to do")
	}
	for _, a := range actions {
		fmt.Printf("  %s\n", a)
	}

	fixed := layout.Validate(fixedBars, fixedMSIX, reserved)
	if !fixed.Valid() {
		printLayoutFindings(fixed)
		return fmt.Errorf("auto-fix could not repair the MSI-X layout (%s)", fixed.Summary())
	}
	fmt.Println(color.Okf("repaired layout valid: table BAR%d@0x%x, PBA BAR%d@0x%x",
		fixedMSIX.TableBIR, fixedMSIX.TableOffset, fixedMSIX.PBABIR, fixedMSIX.PBAOffset))
	return nil
}

func printLayoutFindings(result layout.Result) {
	for _, f := range result.Findings {
		if f.Severity == pci.SeverityError {
			fmt.Println(color.Fail(f.String()))
		} else {
			fmt.Println(color.Warn(f.String()))
		}
	}
}

// validateArtifactFiles rebuilds the expected COE artifacts from the
// snapshot and compares them against the files on disk.
func validateArtifactFiles(ctx *snapshot.DeviceContext, brd *board.Board, prof *profile.DeviceProfile) error {
	pipeline := &firmware.Pipeline{Board: brd, Profile: prof, AutoFix: validateFix}
	res, err := pipeline.Run(ctx)
	if err != nil {
		return fmt.Errorf("cannot rebuild expected artifacts: %w", err)
	}

	fmt.Printf("\n%s\n", color.Header("Artifact Verification"))
	passed := 0
	failed := 0

	compareArtifact("pcileech_cfgspace.coe",
		firmware.GenerateConfigSpaceCOE(res.ConfigSpace), &passed, &failed)
	compareArtifact("pcileech_cfgspace_writemask.coe",
		firmware.GenerateWritemaskCOE(res.ConfigSpace), &passed, &failed)

	// Identity spot check: the donor's ID words must survive scrubbing
	// into the shadow image verbatim.
	coeData, err := os.ReadFile(filepath.Join(validateArtifacts, "pcileech_cfgspace.coe"))
	if err == nil {
		coeStr := string(coeData)
		w0, _ := res.ConfigSpace.ReadU32(0)
		if strings.Contains(coeStr, fmt.Sprintf("%08x", w0)) {
			fmt.Println(color.Okf("VendorID:DeviceID = %04X:%04X present in COE",
				ctx.Device.VendorID, ctx.Device.DeviceID))
			passed++
		} else {
			fmt.Println(color.Failf("VendorID:DeviceID = %04X:%04X NOT in COE",
				ctx.Device.VendorID, ctx.Device.DeviceID))
			failed++
		}

		subsys, _ := res.ConfigSpace.ReadU32(0x2C)
		if strings.Contains(coeStr, fmt.Sprintf("%08x", subsys)) {
			fmt.Println(color.Okf("SubsysVendorID:SubsysDeviceID = %04X:%04X present in COE",
				ctx.Device.SubsysVendorID, ctx.Device.SubsysDeviceID))
			passed++
		} else {
			fmt.Println(color.Fail("Subsystem IDs NOT in COE"))
			failed++
		}
	}

	if res.IDs.HasDSN {
		fmt.Println(color.Okf("DSN = 0x%016x carried into the shadow space", res.IDs.DSN))
		passed++
	} else {
		fmt.Println(color.Warn("No DSN found in donor (serial number emulation disabled)"))
	}

	fmt.Printf("\n%s\n", color.Header(fmt.Sprintf("Validation complete: %d passed, %d failed", passed, failed)))
	if failed > 0 {
		return fmt.Errorf("%d validation(s) failed", failed)
	}
	return nil
}

func compareArtifact(name, expected string, passed, failed *int) {
	path := filepath.Join(validateArtifacts, name)
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Println(color.Warnf("%s not found", name))
		*failed++
		return
	}
	if string(data) == expected {
		fmt.Println(color.Okf("%s matches the snapshot", name))
		*passed++
		return
	}
	fmt.Println(color.Failf("%s MISMATCH", name))
	reportCOEDiff(string(data), expected)
	*failed++
}

// reportCOEDiff reports the first differing lines between two COE files.
func reportCOEDiff(got, expected string) {
	gotLines := strings.Split(got, "\n")
	expLines := strings.Split(expected, "\n")

	diffCount := 0
	maxDiffs := 5
	for i := 0; i < len(gotLines) && i < len(expLines); i++ {
		if gotLines[i] != expLines[i] {
			if diffCount < maxDiffs {
				fmt.Printf("  line %d: got=%q expected=%q\n", i+1, gotLines[i], expLines[i])
			}
			diffCount++
		}
	}
	if diffCount > maxDiffs {
		fmt.Printf("  ... and %d more differences\n", diffCount-maxDiffs)
	}
}

func init() {
	validateCmd.Flags().StringVar(&validateJSONPath, "json", "", "path to device_context.json (required)")
	validateCmd.Flags().StringVar(&validateBoard, "board", "", "target board whose reserved windows apply")
	validateCmd.Flags().StringVar(&validateProfile, "profile", "", "device profile YAML with sizes and reserved windows")
	validateCmd.Flags().BoolVar(&validateFix, "fix", false, "compute and show the repair plan for an invalid layout")
	validateCmd.Flags().StringVar(&validateArtifacts, "artifacts", "", "firmware output directory to verify against the snapshot")
	_ = validateCmd.MarkFlagRequired("json")
	rootCmd.AddCommand(validateCmd)
}
