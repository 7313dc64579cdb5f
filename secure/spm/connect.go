package spm

import "github.com/calyptra/trustedge/secure/psa"

// Connect validates a session request and binds a pooled connection to the
// target service, leaving it IDLE with the connect message pended. The
// caller forwards the connection into the backend and owns the ACTIVE
// transition once forwarding succeeds.
//
// Refusals (unknown service, unauthorized caller, unsupported version) are
// legitimate runtime outcomes for a misbehaving non-secure caller and never
// crash the secure side.
func (s *SPM) Connect(sid, version uint32, clientID int32) (*Connection, psa.Status) {
	svc, ok := s.registry.Lookup(sid)
	if !ok {
		return nil, psa.ErrConnectionRefused
	}

	// Stateless services use the single-shot call path, never connect.
	if svc.Stateless {
		return nil, psa.ErrProgrammerError
	}

	if !svc.Authorized(clientID) {
		s.log.Warn().Uint32("sid", sid).Int32("client", clientID).Msg("connect refused: unauthorized")
		return nil, psa.ErrConnectionRefused
	}
	if !svc.SupportsVersion(version) {
		s.log.Warn().Uint32("sid", sid).Uint32("version", version).Msg("connect refused: version")
		return nil, psa.ErrConnectionRefused
	}

	conn := s.pool.Allocate()
	if conn == nil {
		return nil, psa.ErrConnectionBusy
	}

	s.initIdleConnection(conn, svc, clientID)
	conn.Msg.Type = psa.IPCConnect
	return conn, psa.Success
}

// Close tears a session down. The null handle is an idempotent no-op; a
// static handle is a programmer error; anything else must resolve to a live
// connection owned by the caller. The disconnect is forwarded into the
// backend, which releases the connection once it completes.
func (s *SPM) Close(handle psa.Handle, clientID int32) psa.Status {
	if handle == psa.NullHandle {
		return psa.Success
	}
	if handle.IsStatic() {
		return psa.ErrProgrammerError
	}

	conn, status := s.pool.ByHandle(handle, clientID)
	if status != psa.Success {
		return status
	}

	conn.Msg.Type = psa.IPCDisconnect
	// The disconnect reply follows the null-handle convention.
	conn.Msg.Owner = 0

	status = s.backend.Messaging(conn)
	conn.Status = ConnToFree
	return status
}

// SetReverseHandle stores a service's reverse handle on the connection
// behind an in-flight message. Callers are trusted service partitions: an
// invalid message handle, or a stateless target, is a defect in secure code
// and aborts the offending partition rather than returning an error.
func (s *SPM) SetReverseHandle(owner uint32, rhandle any) psa.Status {
	conn := s.pool.ByOwner(owner)
	if conn == nil {
		panic("spm: set reverse handle: invalid message handle")
	}
	if conn.Service == nil || conn.Service.Stateless {
		panic("spm: set reverse handle on stateless service")
	}
	conn.Msg.RHandle = rhandle
	return psa.Success
}
