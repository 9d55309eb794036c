package pci

// CapabilityRecord describes one node discovered in a capability chain.
// Standard capability IDs fit in 8 bits; extended IDs use the full 16.
// NextOffset is the raw chain link with 0 marking the end of the chain.
// HeaderWidth is the number of bytes before the next pointer: 1 for most
// standard capabilities, 2 for the Slot Identification and PCI-X layouts,
// and 4 for extended capabilities, whose header is a full dword.
type CapabilityRecord struct {
	ID          uint16 `json:"id"`
	Extended    bool   `json:"extended"`
	Offset      int    `json:"offset"`
	NextOffset  int    `json:"next_offset"`
	Version     uint8  `json:"version,omitempty"`
	HeaderWidth int    `json:"header_width"`
}

// Name returns the human-readable capability name for the record.
func (r CapabilityRecord) Name() string {
	if r.Extended {
		return ExtCapabilityName(r.ID)
	}
	return CapabilityName(uint8(r.ID))
}

// WalkCapabilities discovers both capability chains: the standard chain
// first, then the extended chain. Findings report chains that loop, run past
// the end of the snapshot, or carry misaligned links; the records discovered
// before the problem are always kept.
func WalkCapabilities(cs *ConfigSpace) ([]CapabilityRecord, []Finding) {
	records, findings := WalkStandardCapabilities(cs)
	extRecords, extFindings := WalkExtendedCapabilities(cs)
	return append(records, extRecords...), append(findings, extFindings...)
}

// WalkStandardCapabilities walks the standard capability list headed at
// offset 0x34. The chain only exists when status bit 4 is set.
func WalkStandardCapabilities(cs *ConfigSpace) ([]CapabilityRecord, []Finding) {
	if !cs.HasCapabilities() {
		return nil, nil
	}

	var (
		records  []CapabilityRecord
		findings []Finding
	)
	visited := make(map[int]bool)

	ptr := int(cs.CapabilityPointer()) & 0xFC // pointers are dword-aligned
	for ptr != 0 {
		if visited[ptr] {
			findings = append(findings, WarningFinding(FindingCycleDetected, "capabilities",
				"standard capability chain revisits offset 0x%02x", ptr))
			break
		}
		visited[ptr] = true

		id, err := cs.ReadU8(ptr)
		if err != nil {
			findings = append(findings, WarningFinding(FindingTruncatedChain, "capabilities",
				"standard capability chain runs past the snapshot at offset 0x%02x", ptr))
			break
		}

		width := 1
		if twoByteHeaderCaps[id] {
			width = 2
		}

		next, err := cs.ReadU8(ptr + width)
		if err != nil {
			findings = append(findings, WarningFinding(FindingTruncatedChain, "capabilities",
				"standard capability chain runs past the snapshot at offset 0x%02x", ptr+width))
			break
		}

		records = append(records, CapabilityRecord{
			ID:          uint16(id),
			Offset:      ptr,
			NextOffset:  int(next) & 0xFC,
			HeaderWidth: width,
		})

		ptr = int(next) & 0xFC
	}

	return records, findings
}

// WalkExtendedCapabilities walks the extended capability list at 0x100.
// Each node is a 32-bit header: id in bits 0-15, version in 16-19, next
// offset in 20-31. Traversal stops on a zero next pointer, a pointer below
// 0x100, or one past the extended space. A next pointer that is not a
// multiple of 4 malforms the chain; the nodes seen before it survive.
func WalkExtendedCapabilities(cs *ConfigSpace) ([]CapabilityRecord, []Finding) {
	if !cs.HasExtended() {
		return nil, nil
	}

	var (
		records  []CapabilityRecord
		findings []Finding
	)
	visited := make(map[int]bool)

	offset := ExtCapBase
	for offset != 0 && offset >= ExtCapBase && offset < ConfigSpaceExtSize {
		if visited[offset] {
			findings = append(findings, WarningFinding(FindingCycleDetected, "ext_capabilities",
				"extended capability chain revisits offset 0x%03x", offset))
			break
		}
		visited[offset] = true

		header, err := cs.ReadU32(offset)
		if err != nil {
			findings = append(findings, WarningFinding(FindingTruncatedChain, "ext_capabilities",
				"extended capability chain runs past the snapshot at offset 0x%03x", offset))
			break
		}

		// An all-zero or all-ones header is unimplemented space, not a node.
		if header == 0 || header == 0xFFFFFFFF {
			break
		}

		id := uint16(header & 0xFFFF)
		version := uint8((header >> 16) & 0xF)
		next := int((header >> 20) & 0xFFF)

		records = append(records, CapabilityRecord{
			ID:          id,
			Extended:    true,
			Offset:      offset,
			NextOffset:  next,
			Version:     version,
			HeaderWidth: 4,
		})

		if next%4 != 0 {
			findings = append(findings, WarningFinding(FindingMalformedChain, "ext_capabilities",
				"extended capability at 0x%03x links to misaligned offset 0x%03x", offset, next))
			break
		}

		offset = next
	}

	return records, findings
}

// FindCapability returns the first standard capability with the given ID.
func FindCapability(cs *ConfigSpace, id uint8) (CapabilityRecord, bool) {
	records, _ := WalkStandardCapabilities(cs)
	for _, r := range records {
		if uint8(r.ID) == id {
			return r, true
		}
	}
	return CapabilityRecord{}, false
}

// FindExtCapability returns the first extended capability with the given ID.
func FindExtCapability(cs *ConfigSpace, id uint16) (CapabilityRecord, bool) {
	records, _ := WalkExtendedCapabilities(cs)
	for _, r := range records {
		if r.ID == id {
			return r, true
		}
	}
	return CapabilityRecord{}, false
}
