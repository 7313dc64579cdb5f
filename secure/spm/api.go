package spm

import (
	"github.com/calyptra/trustedge/secure/mailbox"
	"github.com/calyptra/trustedge/secure/psa"
)

// The mailbox engine's dispatch surface. Client ids arriving here are
// already translated; raw non-secure identities never cross this boundary.
var _ mailbox.Dispatcher = (*SPM)(nil)

// FrameworkVersion answers a framework-version query. Pure computation,
// always synchronous.
func (s *SPM) FrameworkVersion() psa.Status {
	return psa.FrameworkVersion
}

// ServiceVersion answers a version query for the given SID. Unknown
// services and services hidden from non-secure callers both report
// VersionNone; probing the SID space learns nothing.
func (s *SPM) ServiceVersion(sid uint32) psa.Status {
	svc, ok := s.registry.Lookup(sid)
	if !ok || !svc.NSClients {
		return psa.VersionNone
	}
	return psa.Status(svc.Version)
}

// ClientCall forwards a call request into the dispatch backend. A static
// handle addresses a stateless service and borrows a pooled connection for
// the single request; any other handle must resolve to an active session
// owned by the caller.
func (s *SPM) ClientCall(handle psa.Handle, ipcType int32, clientID int32, in []psa.InVec, out []psa.OutVec, owner uint32) psa.Status {
	if ipcType < psa.IPCCall {
		return psa.ErrInvalidArgument
	}

	var conn *Connection
	oneShot := handle.IsStatic()

	if oneShot {
		svc, ok := s.registry.ByStaticIndex(handle.StaticIndex())
		if !ok || !svc.Stateless {
			return psa.ErrProgrammerError
		}
		if !svc.Authorized(clientID) {
			return psa.ErrConnectionRefused
		}
		conn = s.pool.Allocate()
		if conn == nil {
			return psa.ErrConnectionBusy
		}
		s.initIdleConnection(conn, svc, clientID)
	} else {
		var status psa.Status
		conn, status = s.pool.ByHandle(handle, clientID)
		if status != psa.Success {
			return status
		}
		if conn.Status != ConnActive {
			return psa.ErrProgrammerError
		}
	}

	conn.Msg = MessageDesc{
		Type:    ipcType,
		Owner:   owner,
		RHandle: conn.Msg.RHandle,
		InVecs:  in,
		OutVecs: out,
	}

	status := s.backend.Messaging(conn)
	if oneShot {
		if status != psa.Success {
			s.pool.Release(conn)
		} else {
			// Borrowed for one request; the backend frees it on completion.
			conn.Status = ConnToFree
		}
	}
	return status
}

// ClientConnect opens a stateful session on behalf of a translated
// non-secure caller and forwards the connect message into the backend. The
// connection goes active once forwarding succeeds; the connect reply
// carrying the new handle arrives later through the reply callback.
func (s *SPM) ClientConnect(sid, version uint32, clientID int32, owner uint32) psa.Status {
	conn, status := s.Connect(sid, version, clientID)
	if status != psa.Success {
		return status
	}
	conn.Msg.Owner = owner

	status = s.backend.Messaging(conn)
	conn.Status = ConnActive
	return status
}

// ClientClose is the mailbox-facing close path.
func (s *SPM) ClientClose(handle psa.Handle, clientID int32) psa.Status {
	return s.Close(handle, clientID)
}
