package mailbox

import "github.com/calyptra/trustedge/secure/psa"

// NumQueueSlots fixes the mailbox queue capacity at build time. It must fit
// in the SlotMask width.
const NumQueueSlots = 8

// allSlots has one bit set per queue slot.
const allSlots SlotMask = (1 << NumQueueSlots) - 1

// SlotMask is a fixed-width bit-set with one bit per mailbox queue slot.
// Values are immutable; mutation happens at the owning structure.
type SlotMask uint32

// Bit returns the mask with only idx set, or zero when idx is out of range.
func Bit(idx uint8) SlotMask {
	if idx >= NumQueueSlots {
		return 0
	}
	return 1 << idx
}

// Has reports whether the slot's bit is set.
func (m SlotMask) Has(idx uint8) bool {
	return m&Bit(idx) != 0
}

// With returns the mask with the slot's bit set.
func (m SlotMask) With(idx uint8) SlotMask {
	return m | Bit(idx)
}

// Without returns the mask with exactly the given bits removed.
func (m SlotMask) Without(bits SlotMask) SlotMask {
	return m &^ bits
}

// NSStatus is the slot status area shared across the trust boundary. The
// non-secure side owns the pending word; the secure side owns the replied
// word. Every access from either domain runs inside the peer link's
// critical section.
type NSStatus struct {
	pend    SlotMask
	replied SlotMask
}

// PendSnapshot returns the pending mask as last written by the peer.
func (s *NSStatus) PendSnapshot() SlotMask {
	return s.pend
}

// ClearPend removes exactly the bits of mask. Bits the peer set after the
// snapshot was taken survive to the next drain pass.
func (s *NSStatus) ClearPend(mask SlotMask) {
	s.pend &^= mask
}

// SetReplied publishes a batch of completed slots to the peer.
func (s *NSStatus) SetReplied(mask SlotMask) {
	s.replied |= mask
}

// MarkPending is the non-secure-side write arming a slot. Out-of-range
// indices are ignored.
func (s *NSStatus) MarkPending(idx uint8) {
	s.pend |= Bit(idx)
}

// TakeReplied is the non-secure-side read-and-clear of the replied word.
func (s *NSStatus) TakeReplied() SlotMask {
	m := s.replied
	s.replied = 0
	return m
}

// Replied returns the replied word without consuming it.
func (s *NSStatus) Replied() SlotMask {
	return s.replied
}

// NSQueue is the non-secure mailbox queue: the shared status words plus one
// fixed-size slot per concurrent client call. The secure side treats its
// contents as untrusted input and never follows it beyond the fixed record.
type NSQueue struct {
	Status NSStatus
	Slots  [NumQueueSlots]NSSlot
}

// NSSlot pairs a deposited request with the area its result is written to.
type NSSlot struct {
	Msg   Message
	Reply ReplyArea
}

// ReplyArea is the non-secure-visible word the secure side deposits a call
// result into.
type ReplyArea struct {
	ReturnVal psa.Status
}
