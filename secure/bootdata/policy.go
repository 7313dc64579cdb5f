package bootdata

// InvalidPartitionID is the reserved owner of the policy table's guard
// entry.
const InvalidPartitionID int32 = 0

// PolicyEntry grants one partition read access to one major data type.
type PolicyEntry struct {
	PartitionID int32
	Major       uint8
}

// AccessPolicy is the ordered partition-to-major access table. The first
// entry is always the reserved invalid entry and is never matched.
type AccessPolicy struct {
	entries []PolicyEntry
}

// NewAccessPolicy builds the table, prepending the reserved invalid entry.
func NewAccessPolicy(entries []PolicyEntry) *AccessPolicy {
	table := make([]PolicyEntry, 0, len(entries)+1)
	table = append(table, PolicyEntry{PartitionID: InvalidPartitionID, Major: MajorInvalid})
	table = append(table, entries...)
	return &AccessPolicy{entries: table}
}

// Allows reports whether the partition may read the given major type.
func (p *AccessPolicy) Allows(partitionID int32, major uint8) bool {
	if p == nil {
		return false
	}
	// Iteration starts past the reserved entry.
	for _, e := range p.entries[1:] {
		if e.PartitionID == partitionID && e.Major == major {
			return true
		}
	}
	return false
}

// Len reports the table size including the reserved entry.
func (p *AccessPolicy) Len() int {
	return len(p.entries)
}
