package mailbox

import "github.com/calyptra/trustedge/secure/psa"

// CallType tags the variant a mailbox message carries.
type CallType uint8

const (
	CallInvalid CallType = iota
	CallFrameworkVersion
	CallVersion
	CallInvoke
	CallConnect
	CallClose
)

// Message is one fixed-size mailbox request as deposited by the non-secure
// side. Only the parameter struct matching Type is meaningful; the others
// stay zero. ClientID is the raw, untranslated non-secure identity.
type Message struct {
	Type     CallType
	ClientID int32

	Version VersionParams
	Invoke  InvokeParams
	Connect ConnectParams
	Close   CloseParams
}

// VersionParams selects the service whose version is queried.
type VersionParams struct {
	SID uint32
}

// InvokeParams carries a psa_call request. InLen and OutLen are the
// caller-declared vector counts; the slices are caller-owned memory and are
// never dereferenced after staging.
type InvokeParams struct {
	Handle  psa.Handle
	IPCType int32
	InVecs  []psa.InVec
	OutVecs []psa.OutVec
	InLen   uint32
	OutLen  uint32
}

// ConnectParams opens a session with a stateful service.
type ConnectParams struct {
	SID     uint32
	Version uint32
}

// CloseParams tears a session down.
type CloseParams struct {
	Handle psa.Handle
}

// checkMessage is the structural validation hook run on every drained
// message before dispatch. It stays deliberately light: size and tag sanity
// only, full semantics belong to the dispatch table.
func checkMessage(msg *Message) error {
	if msg.Type == CallInvalid || msg.Type > CallClose {
		return ErrInvalidParams
	}
	return nil
}
