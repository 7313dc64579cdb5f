package spm

import (
	"sync"

	"github.com/calyptra/trustedge/secure/psa"
)

// Backend is the secure dispatch engine the SPM forwards prepared messages
// into. Implementations may complete synchronously or defer and reply later
// through the registered RPC ops. The SPM never holds a critical section
// across a Messaging call.
type Backend interface {
	Messaging(c *Connection) psa.Status
}

// ServiceHandler runs one queued request inside the backend. The returned
// status becomes the call's reply word.
type ServiceHandler func(c *Connection) psa.Status

// QueueBackend defers every message and completes it when Pump runs,
// modeling an IPC backend that schedules service threads out of line with
// the mailbox drain pass.
type QueueBackend struct {
	mu       sync.Mutex
	pending  []*Connection
	handlers map[uint32]ServiceHandler
}

// NewQueueBackend builds a backend with per-SID call handlers. Services
// without a handler complete calls with Success and untouched output
// vectors.
func NewQueueBackend(handlers map[uint32]ServiceHandler) *QueueBackend {
	if handlers == nil {
		handlers = make(map[uint32]ServiceHandler)
	}
	return &QueueBackend{handlers: handlers}
}

// Messaging queues the connection's in-flight message for the next pump.
func (b *QueueBackend) Messaging(c *Connection) psa.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, c)
	return psa.Success
}

// Depth reports how many messages await a pump.
func (b *QueueBackend) Depth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Pump completes every deferred message, replying through the SPM's
// registered ops and releasing connections marked TO_FREE. Returns the
// number of messages completed.
func (b *QueueBackend) Pump(s *SPM) int {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	for _, c := range batch {
		owner := c.Msg.Owner
		var reply psa.Status

		switch c.Msg.Type {
		case psa.IPCConnect:
			// A successful connect reply carries the new session handle.
			reply = psa.Status(c.Handle())
		case psa.IPCDisconnect:
			reply = psa.Success
		default:
			if h, ok := b.handlers[c.Service.SID]; ok {
				reply = h(c)
			} else {
				reply = psa.Success
			}
		}

		toFree := c.Status == ConnToFree
		if toFree {
			s.ReleaseConnection(c)
		}
		s.ReplyToOwner(owner, reply)
	}
	return len(batch)
}
