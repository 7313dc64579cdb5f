package spm

import (
	"sync"

	"github.com/calyptra/trustedge/secure/psa"
)

// DefaultPoolSize is the connection pool capacity used when the manifest
// does not override it.
const DefaultPoolSize = 8

// MaxPoolSize is the largest pool the uint8 connection index can address.
const MaxPoolSize = 256

// Pool is the fixed-capacity connection free-list. Allocation and release
// run under a short, non-nesting mutex so they are safe from the drain path
// and from backend completion alike.
type Pool struct {
	mu    sync.Mutex
	conns []Connection
	free  []uint8
}

// NewPool builds a pool with the given capacity, bounded to MaxPoolSize so
// every connection keeps a distinct index.
func NewPool(capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultPoolSize
	}
	if capacity > MaxPoolSize {
		capacity = MaxPoolSize
	}
	p := &Pool{
		conns: make([]Connection, capacity),
		free:  make([]uint8, 0, capacity),
	}
	for i := capacity - 1; i >= 0; i-- {
		p.conns[i].index = uint8(i)
		p.free = append(p.free, uint8(i))
	}
	return p
}

// Allocate takes a connection off the free list, or returns nil when the
// pool is exhausted. The caller surfaces exhaustion synchronously; the pool
// never retries internally.
func (p *Pool) Allocate() *Connection {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		return nil
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]

	c := &p.conns[idx]
	*c = Connection{index: idx, allocated: true}
	return c
}

// Release returns a connection to the free list. Releasing an unallocated
// connection is a defect in trusted code.
func (p *Pool) Release(c *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c == nil || !c.allocated {
		panic("spm: release of unallocated connection")
	}
	idx := c.index
	*c = Connection{index: idx}
	p.free = append(p.free, idx)
}

// ByHandle resolves a client-visible handle to the live connection owned by
// clientID. Static and null handles never reach this path; an unknown,
// freed or foreign-owned handle reports an invalid handle.
func (p *Pool) ByHandle(h psa.Handle, clientID int32) (*Connection, psa.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h <= 0 || h.IsStatic() {
		return nil, psa.ErrInvalidHandle
	}
	idx := int(h) - 1
	if idx >= len(p.conns) {
		return nil, psa.ErrInvalidHandle
	}
	c := &p.conns[idx]
	if !c.allocated || c.ClientID != clientID {
		return nil, psa.ErrInvalidHandle
	}
	return c, psa.Success
}

// ByOwner finds the allocated connection whose in-flight message carries
// the given owner token, or nil.
func (p *Pool) ByOwner(owner uint32) *Connection {
	p.mu.Lock()
	defer p.mu.Unlock()

	if owner == 0 {
		return nil
	}
	for i := range p.conns {
		c := &p.conns[i]
		if c.allocated && c.Msg.Owner == owner {
			return c
		}
	}
	return nil
}

// InUse reports how many connections are currently allocated.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns) - len(p.free)
}

// Cap reports the pool capacity.
func (p *Pool) Cap() int {
	return len(p.conns)
}
