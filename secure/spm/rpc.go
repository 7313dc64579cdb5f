package spm

import (
	"errors"
	"sync"

	"github.com/calyptra/trustedge/secure/mailbox"
	"github.com/calyptra/trustedge/secure/psa"
)

var (
	// ErrOpsRegistered reports a second registration attempt; exactly one
	// request/reply client may own the RPC slot.
	ErrOpsRegistered = errors.New("spm: rpc ops already registered")
	// ErrOpsIncomplete reports a registration missing either callback.
	ErrOpsIncomplete = errors.New("spm: rpc ops incomplete")
)

// opsRegistry holds the callbacks of the generic request/reply notification
// mechanism. The mailbox engine registers its drain and reply entry points
// here at init; the backend routes completions through them.
type opsRegistry struct {
	mu  sync.Mutex
	ops *mailbox.Ops
}

// RegisterOps installs the request/reply callbacks.
func (s *SPM) RegisterOps(ops mailbox.Ops) error {
	if ops.HandleReq == nil || ops.Reply == nil {
		return ErrOpsIncomplete
	}
	s.rpc.mu.Lock()
	defer s.rpc.mu.Unlock()
	if s.rpc.ops != nil {
		return ErrOpsRegistered
	}
	s.rpc.ops = &ops
	return nil
}

// UnregisterOps removes the installed callbacks. Used to roll back a failed
// mailbox init.
func (s *SPM) UnregisterOps() {
	s.rpc.mu.Lock()
	defer s.rpc.mu.Unlock()
	s.rpc.ops = nil
}

// HandlePending invokes the registered request handler. Called by the
// platform's notification glue when the peer rings the doorbell.
func (s *SPM) HandlePending() {
	s.rpc.mu.Lock()
	ops := s.rpc.ops
	s.rpc.mu.Unlock()
	if ops != nil {
		ops.HandleReq()
	}
}

// ReplyToOwner routes a backend completion back through the registered
// reply callback. A zero owner follows the null-handle convention.
func (s *SPM) ReplyToOwner(owner uint32, status psa.Status) {
	s.rpc.mu.Lock()
	ops := s.rpc.ops
	s.rpc.mu.Unlock()
	if ops != nil {
		ops.Reply(owner, status)
	}
}
