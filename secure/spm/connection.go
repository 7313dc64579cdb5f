package spm

import "github.com/calyptra/trustedge/secure/psa"

// ConnStatus tracks a connection through its lifecycle.
type ConnStatus uint8

const (
	// ConnIdle: allocated and bound, no service dispatch running yet.
	ConnIdle ConnStatus = iota
	// ConnActive: the connect message was forwarded; service dispatch owns
	// the session until close.
	ConnActive
	// ConnToFree: a disconnect (or one-shot call) was forwarded; the
	// backend releases the connection once it completes.
	ConnToFree
)

// MessageDesc is the in-flight request bound to a connection. Owner is the
// mailbox message handle token echoed back through the RPC reply callback;
// zero means the reply uses the null-handle convention.
type MessageDesc struct {
	Type    int32
	Owner   uint32
	RHandle any
	InVecs  []psa.InVec
	OutVecs []psa.OutVec
}

// Connection is one stateful session between a client and a service. The
// client id is immutable after creation; close validates the caller
// against it. The connection is owned by the pool while allocated and only
// referenced by the mailbox engine for the span of a single request.
type Connection struct {
	Status   ConnStatus
	ClientID int32
	Service  *Service
	Msg      MessageDesc

	index     uint8
	allocated bool
}

// Handle returns the client-visible handle for this connection. It never
// collides with the null handle or the static-handle space.
func (c *Connection) Handle() psa.Handle {
	return psa.Handle(c.index) + 1
}
