// Package spm is the secure-partition-manager core: the service registry,
// the connection pool and lifecycle, and the RPC surface the mailbox engine
// dispatches into. Nothing in this package trusts data originating from the
// non-secure side; the mailbox engine validates structure, this package
// enforces access control.
package spm

import (
	"github.com/rs/zerolog"
)

// SPM ties the registry, connection pool and dispatch backend together. It
// is an explicit instance passed by reference; there is no process-wide
// singleton.
type SPM struct {
	registry *Registry
	pool     *Pool
	backend  Backend
	log      zerolog.Logger

	rpc opsRegistry
}

// New builds an SPM over the given collaborators.
func New(registry *Registry, pool *Pool, backend Backend, log zerolog.Logger) *SPM {
	return &SPM{
		registry: registry,
		pool:     pool,
		backend:  backend,
		log:      log.With().Str("component", "spm").Logger(),
	}
}

// Registry exposes the service registry.
func (s *SPM) Registry() *Registry { return s.registry }

// Pool exposes the connection pool.
func (s *SPM) Pool() *Pool { return s.pool }

// ReleaseConnection returns a completed connection to the pool. Called by
// the backend once a disconnect or one-shot call finishes.
func (s *SPM) ReleaseConnection(c *Connection) {
	s.pool.Release(c)
}

// initIdleConnection binds a freshly allocated connection to its service
// and caller.
func (s *SPM) initIdleConnection(c *Connection, svc *Service, clientID int32) {
	c.Status = ConnIdle
	c.Service = svc
	c.ClientID = clientID
	c.Msg = MessageDesc{}
}
