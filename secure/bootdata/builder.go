package bootdata

import "encoding/binary"

// Builder assembles a boot-data region the way the bootloader would. Used
// by the simulator and by tests; the secure runtime itself never writes the
// region.
type Builder struct {
	entries []byte
}

// Add appends one TLV entry.
func (b *Builder) Add(tlvType uint16, data []byte) *Builder {
	var hdr [entryHeaderSize]byte
	binary.LittleEndian.PutUint16(hdr[0:2], tlvType)
	binary.LittleEndian.PutUint16(hdr[2:4], uint16(len(data)))
	b.entries = append(b.entries, hdr[:]...)
	b.entries = append(b.entries, data...)
	return b
}

// WriteTo serializes the header and entries into buf and returns the number
// of bytes written. buf must hold the whole section.
func (b *Builder) WriteTo(buf []byte) int {
	total := headerSize + len(b.entries)
	if total > len(buf) {
		return 0
	}
	binary.LittleEndian.PutUint16(buf[0:2], TLVMagic)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(total))
	copy(buf[headerSize:], b.entries)
	return total
}
