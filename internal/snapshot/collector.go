package snapshot

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/pci"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/version"
)

// Collector reads donor PCI device data via sysfs.
type Collector struct {
	sysfs *SysfsReader

	// ReadMSIXTable also captures the live MSI-X vector table from BAR
	// memory. Off by default: reading BAR space can wedge devices whose
	// MMIO has read side effects.
	ReadMSIXTable bool
}

// NewCollector creates a new Collector.
func NewCollector() *Collector {
	return &Collector{sysfs: NewSysfsReader()}
}

// NewCollectorWithSysfs creates a Collector with a custom sysfs reader (for testing).
func NewCollectorWithSysfs(sr *SysfsReader) *Collector {
	return &Collector{sysfs: sr}
}

// Collect reads config space, BARs, capabilities and the MSI-X layout from
// the given device into a fresh DeviceContext.
func (c *Collector) Collect(bdf pci.BDF) (*DeviceContext, error) {
	ctx := &DeviceContext{
		SnapshotID:  uuid.NewString(),
		CollectedAt: time.Now(),
		ToolVersion: version.Version,
	}

	hostname, _ := os.Hostname()
	ctx.Hostname = hostname

	dev, err := c.sysfs.ReadDeviceInfo(bdf)
	if err != nil {
		return nil, fmt.Errorf("failed to read device info for %s: %w", bdf, err)
	}
	ctx.Device = *dev

	cs, err := c.sysfs.ReadConfigSpace(bdf)
	if err != nil {
		return nil, fmt.Errorf("failed to read config space for %s: %w", bdf, err)
	}
	ctx.ConfigHex = cs.Hex()

	// BAR sizes come from the resource file; the config space dwords only
	// carry addresses. A donor without one (rare, broken sysfs) still
	// yields apertures, just with unknown sizes.
	bars, err := c.sysfs.ReadResourceFile(bdf)
	if err != nil {
		logrus.WithField("pci", bdf.String()).WithError(err).
			Debug("no resource file, falling back to config space BARs")
		table, findings := pci.ParseBARs(cs, nil)
		bars = table.All()
		ctx.Findings = append(ctx.Findings, findings...)
	}
	ctx.BARs = bars

	records, findings := pci.WalkCapabilities(cs)
	ctx.Capabilities = records
	ctx.Findings = append(ctx.Findings, findings...)

	msix, err := pci.ParseMSIX(cs)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MSI-X capability of %s: %w", bdf, err)
	}
	ctx.MSIX = msix

	if msix != nil && c.ReadMSIXTable {
		if entries, err := c.collectMSIXTable(bdf, msix, bars); err != nil {
			logrus.WithField("pci", bdf.String()).WithError(err).
				Warn("could not capture live MSI-X table")
		} else {
			ctx.MSIXTable = entries
		}
	}

	logrus.WithFields(logrus.Fields{
		"pci":          bdf.String(),
		"snapshot":     ctx.SnapshotID,
		"capabilities": len(records),
	}).Info("captured device snapshot")

	return ctx, nil
}

// collectMSIXTable reads the vector table out of live BAR memory.
func (c *Collector) collectMSIXTable(bdf pci.BDF, msix *pci.MSIXCapability, bars []pci.BAR) ([]pci.MSIXTableEntry, error) {
	var found bool
	for _, b := range bars {
		if b.Index == msix.TableBIR {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("MSI-X table BIR %d has no aperture", msix.TableBIR)
	}

	need := int(msix.TableOffset) + int(msix.TableBytes())
	content, err := c.sysfs.ReadBARContent(bdf, msix.TableBIR, need)
	if err != nil {
		return nil, err
	}
	if len(content) <= int(msix.TableOffset) {
		return nil, fmt.Errorf("BAR%d content ends before the MSI-X table", msix.TableBIR)
	}

	return pci.ParseMSIXTable(content[msix.TableOffset:], msix.TableSize), nil
}
