package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/pci"
)

// DeviceContext holds all collected information about a donor PCI device.
// It is the portable unit of capture: everything the firmware build needs,
// serialized so the build can run on a different machine than the donor.
type DeviceContext struct {
	SnapshotID  string    `json:"snapshot_id"`
	CollectedAt time.Time `json:"collected_at"`
	ToolVersion string    `json:"tool_version"`
	Hostname    string    `json:"hostname"`

	Device       pci.PCIDevice          `json:"device"`
	ConfigHex    string                 `json:"config_space_hex"`
	BARs         []pci.BAR              `json:"bars"`
	Capabilities []pci.CapabilityRecord `json:"capabilities"`
	MSIX         *pci.MSIXCapability    `json:"msix,omitempty"`
	MSIXTable    []pci.MSIXTableEntry   `json:"msix_table,omitempty"`

	// Findings records anything suspicious seen at capture time, so a
	// build months later still knows the chain was truncated on the donor.
	Findings []pci.Finding `json:"findings,omitempty"`
}

// ConfigSpace decodes the captured config space snapshot.
func (dc *DeviceContext) ConfigSpace() (*pci.ConfigSpace, error) {
	return pci.ParseConfigSpaceHex(dc.ConfigHex)
}

// ToJSON serializes the DeviceContext to indented JSON.
func (dc *DeviceContext) ToJSON() ([]byte, error) {
	return json.MarshalIndent(dc, "", "  ")
}

// FromJSON deserializes a DeviceContext from JSON.
func FromJSON(data []byte) (*DeviceContext, error) {
	var dc DeviceContext
	if err := json.Unmarshal(data, &dc); err != nil {
		return nil, fmt.Errorf("failed to parse device context JSON: %w", err)
	}
	if dc.ConfigHex == "" {
		return nil, fmt.Errorf("device context has no config space snapshot")
	}
	if _, err := dc.ConfigSpace(); err != nil {
		return nil, fmt.Errorf("device context config space: %w", err)
	}
	return &dc, nil
}

// SaveContext saves a DeviceContext to a JSON file.
func SaveContext(ctx *DeviceContext, path string) error {
	data, err := ctx.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal device context: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadContext loads a DeviceContext from a JSON file.
func LoadContext(path string) (*DeviceContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read device context file: %w", err)
	}
	return FromJSON(data)
}
