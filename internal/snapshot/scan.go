package snapshot

import (
	"fmt"
	"path/filepath"

	"github.com/prometheus/procfs/sysfs"
	"github.com/sirupsen/logrus"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/pci"
)

// Scanner enumerates PCI devices. Enumeration goes through procfs' sysfs
// bindings; per-device attributes are read directly so the scan result is
// the same shape a capture later consumes.
type Scanner struct {
	fs     sysfs.FS
	reader *SysfsReader
}

// NewScanner creates a Scanner over the running system's /sys.
func NewScanner() (*Scanner, error) {
	fs, err := sysfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("failed to open sysfs: %w", err)
	}
	return &Scanner{fs: fs, reader: NewSysfsReader()}, nil
}

// NewScannerWithMount creates a Scanner over a custom sysfs mount (for testing).
func NewScannerWithMount(mountPoint string) (*Scanner, error) {
	fs, err := sysfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("failed to open sysfs: %w", err)
	}
	reader := NewSysfsReaderWithPath(filepath.Join(mountPoint, "bus", "pci", "devices"))
	return &Scanner{fs: fs, reader: reader}, nil
}

// Reader returns the sysfs reader bound to the scanner's mount.
func (s *Scanner) Reader() *SysfsReader {
	return s.reader
}

// ScanDevices returns all PCI devices found in sysfs. Devices whose
// attributes cannot be read (hot-unplugged mid-scan, broken sysfs entries)
// are skipped.
func (s *Scanner) ScanDevices() ([]pci.PCIDevice, error) {
	pciDevices, err := s.fs.PciDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate pci devices: %w", err)
	}

	var devices []pci.PCIDevice
	for _, d := range pciDevices {
		bdf, err := pci.ParseBDF(d.Name())
		if err != nil {
			logrus.WithField("pci", d.Name()).Debug("skipping device with unparseable address")
			continue
		}

		dev, err := s.reader.ReadDeviceInfo(bdf)
		if err != nil {
			logrus.WithField("pci", bdf.String()).WithError(err).Debug("skipping unreadable device")
			continue
		}
		devices = append(devices, *dev)
	}

	return devices, nil
}
