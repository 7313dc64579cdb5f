package mailbox

import (
	"errors"
	"sync"
	"sync/atomic"
)

// LocalLink is an in-process PeerLink backed by a plain mutex. It stands in
// for the inter-processor primitives when both domains run in one address
// space, which is the case in the simulator and in tests.
type LocalLink struct {
	mu            sync.Mutex
	queue         *NSQueue
	onNotify      func()
	notifications uint64
}

var ErrNoPeerQueue = errors.New("mailbox: peer queue not present")

// NewLocalLink wires a link to the given shared queue. onNotify, if set,
// runs on every peer notification and models the non-secure side's doorbell
// interrupt handler.
func NewLocalLink(queue *NSQueue, onNotify func()) *LocalLink {
	return &LocalLink{queue: queue, onNotify: onNotify}
}

func (l *LocalLink) EnterCritical() { l.mu.Lock() }
func (l *LocalLink) ExitCritical()  { l.mu.Unlock() }

func (l *LocalLink) NotifyPeer() {
	atomic.AddUint64(&l.notifications, 1)
	if l.onNotify != nil {
		l.onNotify()
	}
}

func (l *LocalLink) LocatePeerQueue() (*NSQueue, error) {
	if l.queue == nil {
		return nil, ErrNoPeerQueue
	}
	return l.queue, nil
}

// Notifications returns how many times the doorbell fired.
func (l *LocalLink) Notifications() uint64 {
	return atomic.LoadUint64(&l.notifications)
}
