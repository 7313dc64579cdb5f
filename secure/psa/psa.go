// Package psa defines the client-visible types of the PSA call convention:
// status codes, call handles and I/O vectors. The numeric values are shared
// with the non-secure side through the mailbox reply word and must not be
// renumbered.
package psa

// Status is a PSA result word. Negative values are errors; a version query
// and a successful connect reuse the positive range for their payload.
type Status int32

const (
	Success Status = 0

	ErrProgrammerError    Status = -129
	ErrConnectionRefused  Status = -130
	ErrConnectionBusy     Status = -131
	ErrGenericError       Status = -132
	ErrNotPermitted       Status = -133
	ErrNotSupported       Status = -134
	ErrInvalidArgument    Status = -135
	ErrInvalidHandle      Status = -136
	ErrBadState           Status = -137
	ErrBufferTooSmall     Status = -138
	ErrAlreadyExists      Status = -139
	ErrDoesNotExist       Status = -140
	ErrInsufficientMemory Status = -141
)

// FrameworkVersion is the PSA Firmware Framework version implemented by this
// runtime, major.minor packed into one word.
const FrameworkVersion Status = 0x0101

// VersionNone is the version-query result for a service that does not exist
// or is not visible to the caller.
const VersionNone Status = 0

// IPC message types delivered to services. Call types defined by services
// start at IPCCall.
const (
	IPCConnect    int32 = -1
	IPCDisconnect int32 = -2
	IPCCall       int32 = 0
)

// Handle references an open connection or, with the static indicator bit
// set, a stateless service.
type Handle int32

const NullHandle Handle = 0

// staticIndicator marks handles that name a stateless service directly
// instead of a pooled connection.
const staticIndicator Handle = 1 << 30

// StaticHandle builds the client handle for the stateless service at the
// given registry index.
func StaticHandle(index int32) Handle {
	return staticIndicator | Handle(index)
}

// IsStatic reports whether the handle names a stateless service.
func (h Handle) IsStatic() bool {
	return h&staticIndicator != 0
}

// StaticIndex recovers the registry index from a static handle.
func (h Handle) StaticIndex() int32 {
	return int32(h &^ staticIndicator)
}

// MaxIOVec bounds the combined input and output vectors of one client call.
const MaxIOVec = 4

// InVec describes one client input buffer.
type InVec struct {
	Base []byte
	Len  uint32
}

// OutVec describes one client output buffer. Len is updated to the written
// length when the call completes successfully.
type OutVec struct {
	Base []byte
	Len  uint32
}
