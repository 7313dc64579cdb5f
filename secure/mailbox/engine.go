package mailbox

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/calyptra/trustedge/secure/psa"
)

// Engine drains client requests from the non-secure mailbox queue,
// dispatches them into the secure runtime and routes replies back. It runs
// to completion once invoked and never blocks mid-pass; the only suspension
// in the protocol is a deferred reply arriving later through Reply.
type Engine struct {
	link       PeerLink
	target     Dispatcher
	translator ClientTranslator
	log        zerolog.Logger

	queue  slotQueue
	stages stageTable
	ns     *NSQueue
}

// NewEngine builds an engine over the given collaborators. Init must run
// before the first drain.
func NewEngine(link PeerLink, target Dispatcher, translator ClientTranslator, log zerolog.Logger) *Engine {
	return &Engine{
		link:       link,
		target:     target,
		translator: translator,
		log:        log.With().Str("component", "mailbox").Logger(),
	}
}

// Init zeroes the queue, seeds the empty mask, registers the engine's two
// callbacks with the RPC layer and performs the platform handshake locating
// the peer queue. A failed handshake rolls the registration back so no
// partial state persists.
func (e *Engine) Init(reg OpsRegistrar) error {
	e.queue = slotQueue{emptySlots: allSlots}
	e.stages = stageTable{}
	e.ns = nil

	err := reg.RegisterOps(Ops{
		HandleReq: func() { _ = e.Drain() },
		Reply:     func(owner uint32, status psa.Status) { _ = e.Reply(MsgHandle(owner), status) },
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCallbackRegistration, err)
	}

	ns, err := e.link.LocatePeerQueue()
	if err != nil {
		reg.UnregisterOps()
		return fmt.Errorf("mailbox: peer handshake: %w", err)
	}
	e.ns = ns
	e.queue.ns = ns
	e.queue.nsSlotCount = NumQueueSlots

	e.log.Info().Int("slots", NumQueueSlots).Msg("inter-core mailbox ready")
	return nil
}

// Drain processes every request the non-secure side had marked pending when
// the pass began. Slots are handled in increasing index order; replies that
// complete synchronously are batched into a single peer notification at the
// end of the pass. Returns ErrNoPendingEvent when there was nothing to do.
func (e *Engine) Drain() error {
	e.link.EnterCritical()
	pend := e.ns.Status.PendSnapshot()
	e.link.ExitCritical()

	if pend == 0 {
		return ErrNoPendingEvent
	}

	var replied SlotMask
	for idx := uint8(0); idx < e.queue.nsSlotCount; idx++ {
		if !pend.Has(idx) {
			continue
		}

		if !e.queue.isEmpty(idx) {
			// The mirrored secure slot is still in flight: the peer re-armed
			// a slot before collecting its reply. Dropping the bit here keeps
			// the live request intact.
			e.log.Warn().Uint8("slot", idx).Msg("pending bit on busy slot dropped")
			continue
		}

		e.queue.clearEmpty(idx)
		e.queue.queue[idx].nsSlotIdx = idx
		e.queue.queue[idx].msg = e.ns.Slots[idx].Msg

		if err := checkMessage(&e.queue.queue[idx].msg); err != nil {
			e.log.Debug().Uint8("slot", idx).Err(err).Msg("malformed message skipped")
			e.queue.cleanSlot(idx)
			continue
		}

		handle, err := EncodeMsgHandle(idx)
		if err != nil {
			e.queue.cleanSlot(idx)
			continue
		}
		e.queue.queue[idx].handle = handle

		if err := e.dispatch(&e.queue.queue[idx].msg, idx, &replied); err != nil {
			e.log.Debug().Uint8("slot", idx).Err(err).Msg("dispatch rejected message")
			e.queue.cleanSlot(idx)
			continue
		}
	}

	e.link.EnterCritical()
	e.ns.Status.ClearPend(pend)
	e.ns.Status.SetReplied(replied)
	e.link.ExitCritical()

	if replied != 0 {
		e.link.NotifyPeer()
	}
	return nil
}

// dispatch routes one validated message. Calls that fail staging or
// client-id translation complete synchronously with the PSA error in the
// reply word; a caller can never stall the engine with an unresolvable
// identity. Unknown tags are rejected before reaching any service.
func (e *Engine) dispatch(msg *Message, idx uint8, replied *SlotMask) error {
	status := psa.ErrGenericError
	owner := uint32(e.queue.queue[idx].handle)

	// Asynchronous by default; any validation error escalates the call to a
	// synchronous completion.
	sync := false

	switch msg.Type {
	case CallFrameworkVersion:
		status = e.target.FrameworkVersion()
		sync = true

	case CallVersion:
		status = e.target.ServiceVersion(msg.Version.SID)
		sync = true

	case CallInvoke:
		if err := e.stages.stage(&msg.Invoke, idx); err != nil {
			status, sync = psa.ErrInvalidArgument, true
			break
		}
		clientID, err := e.translator.Translate(ClientIDOwnerMagic, msg.ClientID)
		if err != nil {
			status, sync = psa.ErrInvalidArgument, true
			break
		}
		status = e.target.ClientCall(msg.Invoke.Handle, msg.Invoke.IPCType, clientID,
			e.stages.inputs(idx, msg.Invoke.InLen), e.stages.outputs(idx, msg.Invoke.OutLen), owner)
		if status != psa.Success {
			sync = true
		}

	case CallConnect:
		clientID, err := e.translator.Translate(ClientIDOwnerMagic, msg.ClientID)
		if err != nil {
			status, sync = psa.ErrInvalidArgument, true
			break
		}
		status = e.target.ClientConnect(msg.Connect.SID, msg.Connect.Version, clientID, owner)
		if status != psa.Success {
			sync = true
		}

	case CallClose:
		clientID, err := e.translator.Translate(ClientIDOwnerMagic, msg.ClientID)
		if err != nil {
			status, sync = psa.ErrInvalidArgument, true
			break
		}
		status = e.target.ClientClose(msg.Close.Handle, clientID)
		if status != psa.Success {
			sync = true
		}

	default:
		return ErrInvalidParams
	}

	if sync {
		*replied = replied.With(idx)
		e.commitReply(idx, status)
	}
	return nil
}

// Reply completes a deferred request. The null handle addresses slot 0 per
// the single-outstanding-call backend convention; any other handle must
// decode cleanly. A reply aimed at an already-empty slot is stale and
// reports ErrNoPendingEvent without touching state.
func (e *Engine) Reply(handle MsgHandle, status psa.Status) error {
	var idx uint8
	if handle != NullMsgHandle {
		i, err := handle.Index()
		if err != nil {
			return err
		}
		idx = i
	}

	if e.queue.isEmpty(idx) {
		return ErrNoPendingEvent
	}

	e.commitReply(idx, status)

	e.link.EnterCritical()
	e.ns.Status.SetReplied(Bit(idx))
	e.link.ExitCritical()

	e.link.NotifyPeer()
	return nil
}

// commitReply finishes a request: output lengths are written back to the
// caller's descriptors on success, the result word lands in the originating
// non-secure slot, and the secure slot is zeroed and returned to the empty
// set.
func (e *Engine) commitReply(idx uint8, result psa.Status) {
	reply := e.queue.nsReply(idx)
	e.stages.writeBack(idx, result)
	reply.ReturnVal = result
	e.queue.cleanSlot(idx)
}
