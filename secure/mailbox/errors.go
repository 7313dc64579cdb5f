package mailbox

import "errors"

// Local protocol conditions of the mailbox engine. Failures that a
// non-secure caller must see travel as psa.Status values through the reply
// word instead, never as Go errors.
var (
	// ErrNoPendingEvent reports an empty pending mask on a drain pass, or a
	// reply aimed at a slot that already completed.
	ErrNoPendingEvent = errors.New("mailbox: no pending event")

	// ErrInvalidParams reports malformed request structure: bad handles,
	// out-of-range vector counts, unknown call tags.
	ErrInvalidParams = errors.New("mailbox: invalid parameters")

	// ErrCallbackRegistration reports that the RPC layer refused the
	// engine's callbacks at init.
	ErrCallbackRegistration = errors.New("mailbox: rpc callback registration failed")
)
