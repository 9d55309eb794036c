// Package profile loads device profiles: per-device build inputs that a
// config space snapshot alone cannot carry, such as BAR sizes, reserved
// aperture windows and the capability prune list.
package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/layout"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/pci"
)

// DeviceProfile describes everything about the cloned device that is chosen
// by the operator rather than read from the donor.
type DeviceProfile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// BARSizes maps BAR index to aperture size in bytes. Captured
	// snapshots fill this from the sysfs resource file; hand-written
	// profiles state it directly.
	BARSizes map[int]uint64 `yaml:"bar_sizes,omitempty"`

	// Reserved lists aperture windows the firmware claims for itself.
	// The MSI-X structures may not land inside one.
	Reserved []layout.ReservedRegion `yaml:"reserved,omitempty"`

	// RemoveCaps and RemoveExtCaps name capabilities to prune from the
	// cloned chain, by ID.
	RemoveCaps    []uint8  `yaml:"remove_caps,omitempty"`
	RemoveExtCaps []uint16 `yaml:"remove_ext_caps,omitempty"`
}

// Load parses a device profile from YAML.
func Load(data []byte) (*DeviceProfile, error) {
	var p DeviceProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse device profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadFile reads and parses a device profile file.
func LoadFile(path string) (*DeviceProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read device profile: %w", err)
	}
	p, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Validate rejects profiles that name impossible hardware.
func (p *DeviceProfile) Validate() error {
	for idx := range p.BARSizes {
		if idx < 0 || idx > 5 {
			return fmt.Errorf("bar_sizes: BAR index %d out of range 0-5", idx)
		}
	}
	for _, rr := range p.Reserved {
		if rr.BIR < 0 || rr.BIR > 5 {
			return fmt.Errorf("reserved window %q: BIR %d out of range 0-5", rr.Name, rr.BIR)
		}
		if rr.Size == 0 {
			return fmt.Errorf("reserved window %q: zero size", rr.Name)
		}
	}
	return nil
}

// SizesFromBARs converts captured apertures into a BAR size map, the shape
// ParseBARs consumes.
func SizesFromBARs(bars []pci.BAR) map[int]uint64 {
	if len(bars) == 0 {
		return nil
	}
	sizes := make(map[int]uint64, len(bars))
	for _, b := range bars {
		if b.Size > 0 {
			sizes[b.Index] = b.Size
		}
	}
	return sizes
}
