// Package bootdata serves the TLV-encoded shared data area the bootloader
// hands to the runtime. Partitions query it by major data type; an ordered
// access policy gates which partition may read which major. This sits next
// to the IPC core rather than inside it: only the query path touches it.
package bootdata

import (
	"encoding/binary"

	"github.com/calyptra/trustedge/secure/psa"
)

// TLVMagic marks a valid bootloader handoff.
const TLVMagic uint16 = 0x2016

const (
	headerSize      = 4 // magic u16 + total length u16
	entryHeaderSize = 4 // type u16 + data length u16
)

// Major data types. The major lives in the top four bits of a TLV type.
const (
	MajorInvalid uint8 = 0xF
	MajorCore    uint8 = 0x0
	MajorIAS     uint8 = 0x1
	MajorFWU     uint8 = 0x2
	MajorMBS     uint8 = 0x3
)

// MajorOf extracts the major data type from a TLV type word.
func MajorOf(tlvType uint16) uint8 {
	return uint8(tlvType >> 12)
}

// TLVType packs a major and minor into a type word.
func TLVType(major uint8, minor uint16) uint16 {
	return uint16(major)<<12 | minor&0x0FFF
}

// Region is the shared boot-data area. All reads are bounded by the
// region's declared total length and the backing buffer, whichever is
// shorter; the area is bootloader-written and not extended at runtime.
type Region struct {
	buf   []byte
	valid bool
}

// NewRegion wraps the boot-data carve-out of the shared area.
func NewRegion(buf []byte) *Region {
	return &Region{buf: buf}
}

// Validate runs the one-time sanity check on the bootloader handoff.
// Queries against an unvalidated region fail.
func (r *Region) Validate() {
	if len(r.buf) >= headerSize && binary.LittleEndian.Uint16(r.buf[0:2]) == TLVMagic {
		r.valid = true
	}
}

// Valid reports whether the handoff passed its sanity check.
func (r *Region) Valid() bool {
	return r.valid
}

// totalLen returns the region's declared TLV section length, clamped to the
// backing buffer.
func (r *Region) totalLen() int {
	total := int(binary.LittleEndian.Uint16(r.buf[2:4]))
	if total > len(r.buf) {
		total = len(r.buf)
	}
	return total
}

// Get copies the shared-data header plus every TLV entry of the requested
// major type into buf, on behalf of the given partition. Every failure —
// missing buffer, unvalidated region, policy refusal, output overflow —
// reports InvalidArgument through the caller's reply path.
func (r *Region) Get(major uint8, buf []byte, partitionID int32, policy *AccessPolicy) psa.Status {
	if buf == nil {
		return psa.ErrInvalidArgument
	}
	if !r.valid {
		return psa.ErrInvalidArgument
	}
	if !policy.Allows(partitionID, major) {
		return psa.ErrInvalidArgument
	}
	if len(buf) < headerSize {
		return psa.ErrInvalidArgument
	}

	// Output starts as a bare header; the total length grows as entries are
	// appended.
	binary.LittleEndian.PutUint16(buf[0:2], TLVMagic)
	outLen := headerSize

	total := r.totalLen()
	for off := headerSize; off+entryHeaderSize <= total; {
		tlvType := binary.LittleEndian.Uint16(r.buf[off : off+2])
		dataLen := int(binary.LittleEndian.Uint16(r.buf[off+2 : off+4]))
		entryLen := entryHeaderSize + dataLen

		if off+entryLen > total {
			// Truncated trailing entry; treat the rest of the section as
			// unusable.
			break
		}

		if MajorOf(tlvType) == major {
			if outLen+entryLen > len(buf) {
				return psa.ErrInvalidArgument
			}
			copy(buf[outLen:], r.buf[off:off+entryLen])
			outLen += entryLen
		}
		off += entryLen
	}

	binary.LittleEndian.PutUint16(buf[2:4], uint16(outLen))
	return psa.Success
}
