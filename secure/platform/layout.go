// Package platform carries the simulated platform glue: the shared-region
// memory map handed to both domains and the client identity translation the
// mailbox agent performs on behalf of non-secure callers.
package platform

import "fmt"

// Shared-region carve-out. One contiguous region holds the mailbox status
// words, the non-secure slot array and the boot-data TLV area; the layout
// is fixed at build time and both domains compile against it.
const (
	RegionSize = 0x4000 // 16KB

	OffsetMailboxStatus = 0x0000
	SizeMailboxStatus   = 0x0040

	OffsetMailboxSlots = 0x0040
	SizeMailboxSlots   = 0x0FC0

	OffsetBootData = 0x1000
	SizeBootData   = 0x0400
)

// Region describes one carve-out of the shared area.
type Region struct {
	Name   string
	Offset uint32
	Size   uint32
}

// Regions returns the fixed memory map.
func Regions() []Region {
	return []Region{
		{Name: "MailboxStatus", Offset: OffsetMailboxStatus, Size: SizeMailboxStatus},
		{Name: "MailboxSlots", Offset: OffsetMailboxSlots, Size: SizeMailboxSlots},
		{Name: "BootData", Offset: OffsetBootData, Size: SizeBootData},
	}
}

// ValidateLayout checks the memory map for overlaps and bounds. Run once at
// startup; a failure here is a build configuration defect.
func ValidateLayout() error {
	regions := Regions()
	for i := range regions {
		r := regions[i]
		if r.Offset+r.Size > RegionSize {
			return fmt.Errorf("platform: region %s exceeds shared area", r.Name)
		}
		for j := i + 1; j < len(regions); j++ {
			o := regions[j]
			if r.Offset < o.Offset+o.Size && r.Offset+r.Size > o.Offset {
				return fmt.Errorf("platform: region %s overlaps %s", r.Name, o.Name)
			}
		}
	}
	return nil
}

// BootDataWindow slices the boot-data carve-out from a shared buffer.
func BootDataWindow(shared []byte) ([]byte, error) {
	if len(shared) < OffsetBootData+SizeBootData {
		return nil, fmt.Errorf("platform: shared area %d bytes, need %d", len(shared), OffsetBootData+SizeBootData)
	}
	return shared[OffsetBootData : OffsetBootData+SizeBootData], nil
}
