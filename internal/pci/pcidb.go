package pci

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// PCIDB holds vendor and device name mappings parsed from pci.ids.
type PCIDB struct {
	Vendors map[uint16]string // vendor ID -> name
	Devices map[uint32]string // (vendor<<16 | device) -> name
}

// pci.ids search paths (same as lspci)
var pciIDPaths = []string{
	"/usr/share/hwdata/pci.ids",
	"/usr/share/misc/pci.ids",
	"/usr/share/pci.ids",
}

// LoadPCIDB loads the PCI ID database from the usual system locations.
// A host without pci.ids yields an empty database; lookups then fall back
// to hex IDs.
func LoadPCIDB() *PCIDB {
	for _, path := range pciIDPaths {
		db, err := LoadPCIDBFile(path)
		if err == nil {
			return db
		}
	}
	return &PCIDB{
		Vendors: make(map[uint16]string),
		Devices: make(map[uint32]string),
	}
}

// LoadPCIDBFile parses one pci.ids file.
func LoadPCIDBFile(path string) (*PCIDB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParsePCIIDs(f), nil
}

// VendorName returns the vendor name, or "" when unknown.
func (db *PCIDB) VendorName(vendorID uint16) string {
	return db.Vendors[vendorID]
}

// DeviceName returns the device name, or "" when unknown.
func (db *PCIDB) DeviceName(vendorID, deviceID uint16) string {
	return db.Devices[uint32(vendorID)<<16|uint32(deviceID)]
}

// Label returns "Vendor Device" for display, falling back to hex IDs for
// anything the database does not know.
func (db *PCIDB) Label(vendorID, deviceID uint16) string {
	vendor := db.VendorName(vendorID)
	if vendor == "" {
		vendor = fmt.Sprintf("[%04x]", vendorID)
	}
	device := db.DeviceName(vendorID, deviceID)
	if device == "" {
		device = fmt.Sprintf("[%04x]", deviceID)
	}
	return vendor + " " + device
}

// ParsePCIIDs parses the pci.ids format:
//
//	VVVV  Vendor Name
//	\tDDDD  Device Name
//
// Subsystem lines and the trailing class section are skipped.
func ParsePCIIDs(r io.Reader) *PCIDB {
	db := &PCIDB{
		Vendors: make(map[uint16]string),
		Devices: make(map[uint32]string),
	}

	var currentVendor uint16
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := scanner.Text()

		if len(line) == 0 || line[0] == '#' {
			continue
		}

		// class definitions follow the device list; nothing we need there
		if line[0] == 'C' && len(line) > 1 && line[1] == ' ' {
			break
		}

		if strings.HasPrefix(line, "\t\t") {
			// subsystem line
			continue
		}

		if line[0] == '\t' {
			// device line: \tDDDD  Device Name
			line = line[1:]
			if len(line) < 6 {
				continue
			}
			devID := parseHex4(line[:4])
			if devID >= 0 {
				key := uint32(currentVendor)<<16 | uint32(devID)
				db.Devices[key] = strings.TrimSpace(line[4:])
			}
		} else {
			// vendor line: VVVV  Vendor Name
			if len(line) < 6 {
				continue
			}
			vid := parseHex4(line[:4])
			if vid >= 0 {
				currentVendor = uint16(vid)
				db.Vendors[currentVendor] = strings.TrimSpace(line[4:])
			}
		}
	}

	return db
}

// parseHex4 parses a 4-char hex string, returns -1 on failure.
func parseHex4(s string) int {
	if len(s) != 4 {
		return -1
	}
	var val int
	for _, c := range s {
		val <<= 4
		switch {
		case c >= '0' && c <= '9':
			val |= int(c - '0')
		case c >= 'a' && c <= 'f':
			val |= int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			val |= int(c-'A') + 10
		default:
			return -1
		}
	}
	return val
}
