package mailbox

import "fmt"

// Slot is one secure-side queue entry mirroring a non-secure slot while its
// request is in flight. The origin index is recorded because secure and
// non-secure slot numbering may diverge in a general implementation.
type Slot struct {
	msg       Message
	handle    MsgHandle
	nsSlotIdx uint8
}

// slotQueue is the secure half of the mailbox: the slot array and the
// secure-owned empty mask. All methods are bounds-checked and tolerate
// out-of-range indices silently; indices on the hot path derive from a
// fixed iteration range, never from peer input.
type slotQueue struct {
	queue       [NumQueueSlots]Slot
	emptySlots  SlotMask
	ns          *NSQueue
	nsSlotCount uint8
}

func (q *slotQueue) markEmpty(idx uint8) {
	q.emptySlots = q.emptySlots.With(idx)
}

func (q *slotQueue) clearEmpty(idx uint8) {
	q.emptySlots = q.emptySlots.Without(Bit(idx))
}

func (q *slotQueue) isEmpty(idx uint8) bool {
	return q.emptySlots.Has(idx)
}

// cleanSlot zeroes a slot and returns it to the empty set.
func (q *slotQueue) cleanSlot(idx uint8) {
	if idx >= NumQueueSlots {
		return
	}
	q.queue[idx] = Slot{}
	q.markEmpty(idx)
}

// nsReply returns the reply area of the slot's originating non-secure slot.
// A recorded origin outside the non-secure queue means trusted code
// corrupted the slot table; continuing would write through a bogus
// reference, so this aborts.
func (q *slotQueue) nsReply(idx uint8) *ReplyArea {
	if idx >= NumQueueSlots {
		panic(fmt.Sprintf("mailbox: reply lookup for slot %d out of range", idx))
	}
	nsIdx := q.queue[idx].nsSlotIdx
	if nsIdx >= NumQueueSlots || nsIdx >= q.nsSlotCount {
		panic(fmt.Sprintf("mailbox: slot %d records origin %d outside peer queue", idx, nsIdx))
	}
	return &q.ns.Slots[nsIdx].Reply
}
