package pci

import "fmt"

// CatalogEntry pairs a discovered capability record with its display name
// and estimated structure size in bytes.
type CatalogEntry struct {
	Record CapabilityRecord `json:"record"`
	Name   string           `json:"name"`
	Size   int              `json:"size_bytes"`
}

// Catalog is a pure view over walk records: names, size estimates, and
// pruning. It never touches the config space bytes; whether pruned
// capabilities are physically spliced out of the buffer is the firmware
// generator's decision.
type Catalog struct {
	entries []CatalogEntry
}

// BuildCatalog annotates walk records with names and size estimates,
// preserving discovery order.
func BuildCatalog(records []CapabilityRecord) *Catalog {
	entries := make([]CatalogEntry, 0, len(records))
	for _, r := range records {
		size := CapabilitySize(uint8(r.ID))
		if r.Extended {
			size = ExtCapabilitySize(r.ID)
		}
		entries = append(entries, CatalogEntry{
			Record: r,
			Name:   r.Name(),
			Size:   size,
		})
	}
	return &Catalog{entries: entries}
}

// Entries returns the catalog entries in discovery order.
func (c *Catalog) Entries() []CatalogEntry {
	return c.entries
}

// Len returns the number of cataloged capabilities.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// TotalSize returns the summed size estimate of all entries, used for
// shadow BRAM budgeting.
func (c *Catalog) TotalSize() int {
	total := 0
	for _, e := range c.entries {
		total += e.Size
	}
	return total
}

// Find returns the first entry matching the chain and ID.
func (c *Catalog) Find(extended bool, id uint16) (CatalogEntry, bool) {
	for _, e := range c.entries {
		if e.Record.Extended == extended && e.Record.ID == id {
			return e, true
		}
	}
	return CatalogEntry{}, false
}

// Prune returns a new catalog without the named capabilities, plus one
// message per removal. Surviving records are re-spliced so each one's next
// offset points at the next survivor in its own chain (the predecessor
// inherits the removed node's link). The receiver is left unchanged.
func (c *Catalog) Prune(std []uint8, ext []uint16) (*Catalog, []string) {
	stdDrop := make(map[uint8]bool, len(std))
	for _, id := range std {
		stdDrop[id] = true
	}
	extDrop := make(map[uint16]bool, len(ext))
	for _, id := range ext {
		extDrop[id] = true
	}

	var (
		survivors []CatalogEntry
		messages  []string
	)
	for _, e := range c.entries {
		r := e.Record
		removed := false
		if r.Extended {
			if extDrop[r.ID] {
				removed = true
				messages = append(messages,
					fmt.Sprintf("removed %s extended capability (id 0x%04x) at offset 0x%03x",
						e.Name, r.ID, r.Offset))
			}
		} else if stdDrop[uint8(r.ID)] {
			removed = true
			messages = append(messages,
				fmt.Sprintf("removed %s capability (id 0x%02x) at offset 0x%02x",
					e.Name, r.ID, r.Offset))
		}
		if !removed {
			survivors = append(survivors, e)
		}
	}

	resplice(survivors, false)
	resplice(survivors, true)

	return &Catalog{entries: survivors}, messages
}

// resplice rewires next offsets within one chain so consecutive survivors
// point at each other and the last points at 0.
func resplice(entries []CatalogEntry, extended bool) {
	prev := -1
	for i := range entries {
		if entries[i].Record.Extended != extended {
			continue
		}
		if prev >= 0 {
			entries[prev].Record.NextOffset = entries[i].Record.Offset
		}
		prev = i
	}
	if prev >= 0 {
		entries[prev].Record.NextOffset = 0
	}
}
