package mailbox

import "github.com/calyptra/trustedge/secure/psa"

// PeerLink abstracts the platform primitives shared with the non-secure
// domain: the cross-core mutual exclusion, the doorbell signal, and the
// one-time handshake that locates the peer's queue.
type PeerLink interface {
	// EnterCritical and ExitCritical bracket every status-word access. The
	// section must be short, non-nesting and usable from interrupt context.
	EnterCritical()
	ExitCritical()

	// NotifyPeer fires the cross-domain signal telling the peer that
	// replied slots are ready for pickup.
	NotifyPeer()

	// LocatePeerQueue performs the platform handshake and returns the
	// non-secure queue this engine serves. Called once at init.
	LocatePeerQueue() (*NSQueue, error)
}

// Dispatcher is the secure call surface the engine forwards validated
// requests into. The owner token is the engine's message handle, passed
// back verbatim through the RPC reply callback for deferred completions;
// zero means no deferred reply is expected.
type Dispatcher interface {
	FrameworkVersion() psa.Status
	ServiceVersion(sid uint32) psa.Status
	ClientCall(handle psa.Handle, ipcType int32, clientID int32, in []psa.InVec, out []psa.OutVec, owner uint32) psa.Status
	ClientConnect(sid, version uint32, clientID int32, owner uint32) psa.Status
	ClientClose(handle psa.Handle, clientID int32) psa.Status
}

// ClientTranslator maps raw non-secure client identifiers into the secure
// runtime's client id space. A translation failure must surface as a
// synchronous PSA_ERROR_INVALID_ARGUMENT reply, never stall the engine.
type ClientTranslator interface {
	Translate(ownerMagic uint32, raw int32) (int32, error)
}

// ClientIDOwnerMagic tags translations requested on behalf of the
// non-secure mailbox agent.
const ClientIDOwnerMagic uint32 = 0x4E535045 // "NSPE"

// Ops are the two callbacks of the generic request/reply notification
// mechanism the engine registers at init.
type Ops struct {
	// HandleReq drains pending mailbox requests.
	HandleReq func()
	// Reply completes the deferred message identified by owner.
	Reply func(owner uint32, status psa.Status)
}

// OpsRegistrar is the RPC layer's registration surface.
type OpsRegistrar interface {
	RegisterOps(Ops) error
	UnregisterOps()
}
