package mailbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlotMaskBit(t *testing.T) {
	assert.Equal(t, SlotMask(1), Bit(0))
	assert.Equal(t, SlotMask(1<<7), Bit(7))
	assert.Equal(t, SlotMask(0), Bit(NumQueueSlots), "out of range index yields the empty mask")
	assert.Equal(t, SlotMask(0), Bit(0xFF))
}

func TestSlotMaskOps(t *testing.T) {
	var m SlotMask
	m = m.With(1).With(4)
	assert.True(t, m.Has(1))
	assert.True(t, m.Has(4))
	assert.False(t, m.Has(2))

	m = m.Without(Bit(1))
	assert.False(t, m.Has(1))
	assert.True(t, m.Has(4))
}

func TestClearPendPreservesNewArrivals(t *testing.T) {
	var s NSStatus
	s.MarkPending(0)
	s.MarkPending(3)

	snapshot := s.PendSnapshot()
	assert.Equal(t, SlotMask(0b1001), snapshot)

	// A slot armed after the snapshot must survive the batched clear.
	s.MarkPending(5)
	s.ClearPend(snapshot)

	assert.Equal(t, SlotMask(0b100000), s.PendSnapshot())
}

func TestRepliedWord(t *testing.T) {
	var s NSStatus
	s.SetReplied(Bit(2))
	s.SetReplied(Bit(6))

	assert.Equal(t, SlotMask(0b1000100), s.Replied())
	assert.Equal(t, SlotMask(0b1000100), s.TakeReplied())
	assert.Equal(t, SlotMask(0), s.Replied(), "take clears the word")
}

func TestMarkPendingOutOfRange(t *testing.T) {
	var s NSStatus
	s.MarkPending(NumQueueSlots)
	assert.Equal(t, SlotMask(0), s.PendSnapshot())
}
