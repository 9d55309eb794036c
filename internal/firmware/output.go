package firmware

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/pci"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/snapshot"
)

// OutputWriter writes the build artifacts: COE memory images, the device
// context and the build report.
type OutputWriter struct {
	OutputDir string
}

// NewOutputWriter creates a new OutputWriter.
func NewOutputWriter(outputDir string) *OutputWriter {
	return &OutputWriter{OutputDir: outputDir}
}

// buildReport is the JSON shape of build_report.json: what the pipeline
// decided and why, for audit after the fact.
type buildReport struct {
	Board      string              `json:"board"`
	Device     string              `json:"device"`
	SnapshotID string              `json:"snapshot_id"`
	Strategy   InterruptStrategy   `json:"interrupt_strategy"`
	Actions    []string            `json:"layout_repairs,omitempty"`
	Removed    []string            `json:"removed_capabilities,omitempty"`
	Findings   []pci.Finding       `json:"findings,omitempty"`
	BARs       []pci.BAR           `json:"bars"`
	MSIX       *pci.MSIXCapability `json:"msix,omitempty"`
}

// WriteAll writes every artifact of a build to the output directory.
// barContent may be nil when the donor's BAR memory was not captured.
func (ow *OutputWriter) WriteAll(ctx *snapshot.DeviceContext, res *BuildResult, boardName string, barContent []byte) error {
	if err := os.MkdirAll(ow.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := ctx.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal device context: %w", err)
	}
	if err := ow.writeFile("device_context.json", string(data)); err != nil {
		return fmt.Errorf("failed to write device context: %w", err)
	}

	if err := ow.writeFile("pcileech_cfgspace.coe",
		GenerateConfigSpaceCOE(res.ConfigSpace)); err != nil {
		return fmt.Errorf("failed to write cfgspace COE: %w", err)
	}
	if err := ow.writeFile("pcileech_cfgspace_writemask.coe",
		GenerateWritemaskCOE(res.ConfigSpace)); err != nil {
		return fmt.Errorf("failed to write writemask COE: %w", err)
	}
	if err := ow.writeFile("pcileech_bar_content.coe",
		GenerateBARContentCOE(barContent)); err != nil {
		return fmt.Errorf("failed to write BAR content COE: %w", err)
	}

	report := buildReport{
		Board:      boardName,
		Device:     ctx.Device.BDF.String(),
		SnapshotID: ctx.SnapshotID,
		Strategy:   res.Strategy,
		Actions:    res.Actions,
		Removed:    res.Removed,
		Findings:   res.Layout.Findings,
		BARs:       res.BARs.All(),
		MSIX:       res.MSIX,
	}
	reportJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal build report: %w", err)
	}
	if err := ow.writeFile("build_report.json", string(reportJSON)); err != nil {
		return fmt.Errorf("failed to write build report: %w", err)
	}

	return nil
}

func (ow *OutputWriter) writeFile(name, content string) error {
	return os.WriteFile(filepath.Join(ow.OutputDir, name), []byte(content), 0644)
}

// ListOutputFiles returns a list of files that will be generated.
func ListOutputFiles() []string {
	return []string{
		"device_context.json",
		"pcileech_cfgspace.coe",
		"pcileech_cfgspace_writemask.coe",
		"pcileech_bar_content.coe",
		"build_report.json",
	}
}
