package mailbox

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calyptra/trustedge/secure/psa"
)

// stubDispatcher answers every call with Success unless a hook overrides it.
type stubDispatcher struct {
	frameworkVersion func() psa.Status
	serviceVersion   func(sid uint32) psa.Status
	clientCall       func(handle psa.Handle, ipcType int32, clientID int32, in []psa.InVec, out []psa.OutVec, owner uint32) psa.Status
	clientConnect    func(sid, version uint32, clientID int32, owner uint32) psa.Status
	clientClose      func(handle psa.Handle, clientID int32) psa.Status
}

func (d *stubDispatcher) FrameworkVersion() psa.Status {
	if d.frameworkVersion != nil {
		return d.frameworkVersion()
	}
	return psa.FrameworkVersion
}

func (d *stubDispatcher) ServiceVersion(sid uint32) psa.Status {
	if d.serviceVersion != nil {
		return d.serviceVersion(sid)
	}
	return psa.Success
}

func (d *stubDispatcher) ClientCall(handle psa.Handle, ipcType int32, clientID int32, in []psa.InVec, out []psa.OutVec, owner uint32) psa.Status {
	if d.clientCall != nil {
		return d.clientCall(handle, ipcType, clientID, in, out, owner)
	}
	return psa.Success
}

func (d *stubDispatcher) ClientConnect(sid, version uint32, clientID int32, owner uint32) psa.Status {
	if d.clientConnect != nil {
		return d.clientConnect(sid, version, clientID, owner)
	}
	return psa.Success
}

func (d *stubDispatcher) ClientClose(handle psa.Handle, clientID int32) psa.Status {
	if d.clientClose != nil {
		return d.clientClose(handle, clientID)
	}
	return psa.Success
}

type identityTranslator struct{ err error }

func (t identityTranslator) Translate(_ uint32, raw int32) (int32, error) {
	return raw, t.err
}

type recordingRegistrar struct {
	ops          *Ops
	registerErr  error
	unregistered bool
}

func (r *recordingRegistrar) RegisterOps(ops Ops) error {
	if r.registerErr != nil {
		return r.registerErr
	}
	r.ops = &ops
	return nil
}

func (r *recordingRegistrar) UnregisterOps() {
	r.ops = nil
	r.unregistered = true
}

func newTestEngine(t *testing.T, target Dispatcher) (*Engine, *NSQueue, *LocalLink) {
	t.Helper()
	nsq := &NSQueue{}
	link := NewLocalLink(nsq, nil)
	eng := NewEngine(link, target, identityTranslator{}, zerolog.Nop())
	require.NoError(t, eng.Init(&recordingRegistrar{}))
	return eng, nsq, link
}

func TestInitRegistrationFailure(t *testing.T) {
	reg := &recordingRegistrar{registerErr: errors.New("ops table full")}
	eng := NewEngine(NewLocalLink(&NSQueue{}, nil), &stubDispatcher{}, identityTranslator{}, zerolog.Nop())

	err := eng.Init(reg)
	assert.ErrorIs(t, err, ErrCallbackRegistration)
}

func TestInitHandshakeFailureRollsBack(t *testing.T) {
	reg := &recordingRegistrar{}
	eng := NewEngine(NewLocalLink(nil, nil), &stubDispatcher{}, identityTranslator{}, zerolog.Nop())

	err := eng.Init(reg)
	assert.ErrorIs(t, err, ErrNoPeerQueue)
	assert.True(t, reg.unregistered, "failed handshake must unregister the callbacks")
	assert.Nil(t, reg.ops)
}

func TestDrainNothingPending(t *testing.T) {
	eng, _, link := newTestEngine(t, &stubDispatcher{})

	assert.ErrorIs(t, eng.Drain(), ErrNoPendingEvent)
	assert.Zero(t, link.Notifications())
}

func TestDrainFrameworkVersionCompletesSynchronously(t *testing.T) {
	eng, nsq, link := newTestEngine(t, &stubDispatcher{})

	nsq.Slots[2].Msg = Message{Type: CallFrameworkVersion, ClientID: -5}
	nsq.Status.MarkPending(2)

	require.NoError(t, eng.Drain())

	assert.Equal(t, Bit(2), nsq.Status.TakeReplied())
	assert.Equal(t, psa.FrameworkVersion, nsq.Slots[2].Reply.ReturnVal)
	assert.Equal(t, SlotMask(0), nsq.Status.PendSnapshot())
	assert.True(t, eng.queue.isEmpty(2), "completed slot returns to the empty set")
	assert.Equal(t, uint64(1), link.Notifications())
}

func TestDrainBatchesSyncRepliesIntoOneNotification(t *testing.T) {
	eng, nsq, link := newTestEngine(t, &stubDispatcher{
		serviceVersion: func(uint32) psa.Status { return 3 },
	})

	nsq.Slots[1].Msg = Message{Type: CallVersion, ClientID: -1, Version: VersionParams{SID: 7}}
	nsq.Slots[5].Msg = Message{Type: CallFrameworkVersion, ClientID: -1}
	nsq.Status.MarkPending(1)
	nsq.Status.MarkPending(5)

	require.NoError(t, eng.Drain())

	assert.Equal(t, Bit(1)|Bit(5), nsq.Status.TakeReplied())
	assert.Equal(t, psa.Status(3), nsq.Slots[1].Reply.ReturnVal)
	assert.Equal(t, uint64(1), link.Notifications(), "one pass, one doorbell")
}

func TestDrainVisitsSlotsInIncreasingOrder(t *testing.T) {
	var order []uint32
	eng, nsq, _ := newTestEngine(t, &stubDispatcher{
		serviceVersion: func(sid uint32) psa.Status {
			order = append(order, sid)
			return psa.Success
		},
	})

	for _, idx := range []uint8{3, 1, 4} {
		nsq.Slots[idx].Msg = Message{
			Type: CallVersion, ClientID: -1,
			Version: VersionParams{SID: uint32(idx)},
		}
		nsq.Status.MarkPending(idx)
	}

	require.NoError(t, eng.Drain())
	assert.Equal(t, []uint32{1, 3, 4}, order)
}

func TestDrainMixedSyncAndDeferredInOnePass(t *testing.T) {
	var owner uint32
	eng, nsq, link := newTestEngine(t, &stubDispatcher{
		serviceVersion: func(uint32) psa.Status { return 2 },
		clientConnect: func(_, _ uint32, _ int32, o uint32) psa.Status {
			owner = o
			return psa.Success
		},
	})

	nsq.Slots[1].Msg = Message{Type: CallVersion, ClientID: -1, Version: VersionParams{SID: 7}}
	nsq.Slots[4].Msg = Message{Type: CallConnect, ClientID: -1, Connect: ConnectParams{SID: 9, Version: 1}}
	nsq.Status.MarkPending(1)
	nsq.Status.MarkPending(4)

	require.NoError(t, eng.Drain())

	// Only the synchronous query completes in the pass.
	assert.Equal(t, Bit(1), nsq.Status.TakeReplied())
	assert.Equal(t, psa.Status(2), nsq.Slots[1].Reply.ReturnVal)
	assert.True(t, eng.queue.isEmpty(1))
	assert.False(t, eng.queue.isEmpty(4), "deferred connect stays in flight")
	assert.Equal(t, uint64(1), link.Notifications())

	require.NoError(t, eng.Reply(MsgHandle(owner), psa.Status(3)))
	assert.Equal(t, Bit(4), nsq.Status.TakeReplied())
	assert.Equal(t, psa.Status(3), nsq.Slots[4].Reply.ReturnVal)
	assert.Equal(t, uint64(2), link.Notifications())
}

func TestDrainDeferredConnect(t *testing.T) {
	var owner uint32
	eng, nsq, link := newTestEngine(t, &stubDispatcher{
		clientConnect: func(_, _ uint32, _ int32, o uint32) psa.Status {
			owner = o
			return psa.Success
		},
	})

	nsq.Slots[4].Msg = Message{Type: CallConnect, ClientID: -1, Connect: ConnectParams{SID: 9, Version: 1}}
	nsq.Status.MarkPending(4)

	require.NoError(t, eng.Drain())
	assert.Equal(t, SlotMask(0), nsq.Status.Replied(), "deferred call replies later")
	assert.Zero(t, link.Notifications())
	assert.False(t, eng.queue.isEmpty(4), "slot stays in flight")

	require.NoError(t, eng.Reply(MsgHandle(owner), psa.Status(2)))
	assert.Equal(t, Bit(4), nsq.Status.TakeReplied())
	assert.Equal(t, psa.Status(2), nsq.Slots[4].Reply.ReturnVal)
	assert.True(t, eng.queue.isEmpty(4))
	assert.Equal(t, uint64(1), link.Notifications())
}

func TestDrainMalformedMessageSkipped(t *testing.T) {
	eng, nsq, link := newTestEngine(t, &stubDispatcher{})

	nsq.Slots[0].Msg = Message{Type: CallInvalid}
	nsq.Status.MarkPending(0)

	require.NoError(t, eng.Drain())
	assert.Equal(t, SlotMask(0), nsq.Status.Replied())
	assert.True(t, eng.queue.isEmpty(0), "malformed message leaves the slot clean")
	assert.Zero(t, link.Notifications())
}

func TestDrainSkipsBusySlot(t *testing.T) {
	calls := 0
	eng, nsq, _ := newTestEngine(t, &stubDispatcher{
		clientConnect: func(_, _ uint32, _ int32, _ uint32) psa.Status {
			calls++
			return psa.Success
		},
	})

	nsq.Slots[6].Msg = Message{Type: CallConnect, ClientID: -1, Connect: ConnectParams{SID: 1}}
	nsq.Status.MarkPending(6)
	require.NoError(t, eng.Drain())
	require.Equal(t, 1, calls)

	// Peer re-arms the slot before collecting its reply. The bit is dropped
	// and the in-flight request survives untouched.
	nsq.Status.MarkPending(6)
	assert.NoError(t, eng.Drain())
	assert.Equal(t, 1, calls)
	assert.False(t, eng.queue.isEmpty(6))

	require.NoError(t, eng.Reply(MsgHandle(7), psa.Success))
	assert.Equal(t, Bit(6), nsq.Status.TakeReplied())
}

func TestDrainTranslationFailureRepliesInvalidArgument(t *testing.T) {
	called := false
	eng, nsq, _ := newTestEngine(t, &stubDispatcher{
		clientCall: func(psa.Handle, int32, int32, []psa.InVec, []psa.OutVec, uint32) psa.Status {
			called = true
			return psa.Success
		},
	})
	eng.translator = identityTranslator{err: errors.New("id outside window")}

	nsq.Slots[0].Msg = Message{
		Type: CallInvoke, ClientID: 42,
		Invoke: InvokeParams{Handle: 1, IPCType: psa.IPCCall},
	}
	nsq.Status.MarkPending(0)

	require.NoError(t, eng.Drain())
	assert.False(t, called, "untranslatable identity never reaches a service")
	assert.Equal(t, Bit(0), nsq.Status.TakeReplied())
	assert.Equal(t, psa.ErrInvalidArgument, nsq.Slots[0].Reply.ReturnVal)
}

func TestDrainBadVectorsReplyInvalidArgument(t *testing.T) {
	eng, nsq, _ := newTestEngine(t, &stubDispatcher{})

	nsq.Slots[3].Msg = Message{
		Type: CallInvoke, ClientID: -1,
		Invoke: InvokeParams{Handle: 1, IPCType: psa.IPCCall, InLen: 2},
	}
	nsq.Status.MarkPending(3)

	require.NoError(t, eng.Drain())
	assert.Equal(t, Bit(3), nsq.Status.TakeReplied())
	assert.Equal(t, psa.ErrInvalidArgument, nsq.Slots[3].Reply.ReturnVal)
	assert.True(t, eng.queue.isEmpty(3))
}

func TestDrainErrorStatusCompletesSynchronously(t *testing.T) {
	eng, nsq, _ := newTestEngine(t, &stubDispatcher{
		clientConnect: func(_, _ uint32, _ int32, _ uint32) psa.Status {
			return psa.ErrConnectionRefused
		},
	})

	nsq.Slots[2].Msg = Message{Type: CallConnect, ClientID: -1, Connect: ConnectParams{SID: 5}}
	nsq.Status.MarkPending(2)

	require.NoError(t, eng.Drain())
	assert.Equal(t, Bit(2), nsq.Status.TakeReplied())
	assert.Equal(t, psa.ErrConnectionRefused, nsq.Slots[2].Reply.ReturnVal)
}

func TestReplyStale(t *testing.T) {
	eng, _, link := newTestEngine(t, &stubDispatcher{})

	assert.ErrorIs(t, eng.Reply(MsgHandle(3), psa.Success), ErrNoPendingEvent)
	assert.Zero(t, link.Notifications())
}

func TestReplyBadHandle(t *testing.T) {
	eng, _, _ := newTestEngine(t, &stubDispatcher{})

	assert.ErrorIs(t, eng.Reply(MsgHandle(NumQueueSlots+1), psa.Success), ErrInvalidParams)
}

func TestReplyNullHandleAddressesSlotZero(t *testing.T) {
	eng, nsq, _ := newTestEngine(t, &stubDispatcher{
		clientClose: func(psa.Handle, int32) psa.Status { return psa.Success },
	})

	nsq.Slots[0].Msg = Message{Type: CallClose, ClientID: -1, Close: CloseParams{Handle: 1}}
	nsq.Status.MarkPending(0)
	require.NoError(t, eng.Drain())
	require.False(t, eng.queue.isEmpty(0))

	require.NoError(t, eng.Reply(NullMsgHandle, psa.Success))
	assert.Equal(t, Bit(0), nsq.Status.TakeReplied())
	assert.Equal(t, psa.Success, nsq.Slots[0].Reply.ReturnVal)
}

func TestInvokeWritesOutputLengthsBack(t *testing.T) {
	eng, nsq, _ := newTestEngine(t, &stubDispatcher{
		clientCall: func(_ psa.Handle, _ int32, _ int32, in []psa.InVec, out []psa.OutVec, owner uint32) psa.Status {
			out[0].Len = uint32(copy(out[0].Base, in[0].Base[:in[0].Len]))
			return psa.Success
		},
	})

	out := make([]byte, 8)
	outVecs := []psa.OutVec{{Base: out, Len: 8}}
	nsq.Slots[1].Msg = Message{
		Type: CallInvoke, ClientID: -1,
		Invoke: InvokeParams{
			Handle:  1,
			IPCType: psa.IPCCall,
			InVecs:  []psa.InVec{{Base: []byte("abc"), Len: 3}},
			InLen:   1,
			OutVecs: outVecs,
			OutLen:  1,
		},
	}
	nsq.Status.MarkPending(1)

	require.NoError(t, eng.Drain())

	// Backend completed synchronously within the call, so the engine only
	// needs the deferred reply to write lengths back.
	require.NoError(t, eng.Reply(MsgHandle(2), psa.Success))
	assert.Equal(t, uint32(3), outVecs[0].Len)
	assert.Equal(t, "abc", string(out[:3]))
}
