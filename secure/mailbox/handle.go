package mailbox

// MsgHandle identifies an in-flight mailbox message toward the secure
// dispatch backend. It encodes the secure queue slot index plus one; zero
// is the null handle.
type MsgHandle uint32

const NullMsgHandle MsgHandle = 0

// EncodeMsgHandle builds the handle for a slot index.
func EncodeMsgHandle(idx uint8) (MsgHandle, error) {
	if idx >= NumQueueSlots {
		return NullMsgHandle, ErrInvalidParams
	}
	return MsgHandle(idx) + 1, nil
}

// Index recovers the slot index. The null handle and values outside the
// encoded range fail; callers wanting the null-handle slot-0 convention
// handle that case themselves.
func (h MsgHandle) Index() (uint8, error) {
	if h == NullMsgHandle || h > NumQueueSlots {
		return 0, ErrInvalidParams
	}
	return uint8(h - 1), nil
}
