package spm

import (
	"encoding/binary"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Registry indexes the platform's services by SID. A bloom prefilter
// short-circuits lookups for SIDs that were never registered, the common
// case for a non-secure caller probing the SID space.
type Registry struct {
	mu      sync.RWMutex
	bySID   map[uint32]*Service
	byIndex []*Service
	filter  *bloom.BloomFilter
}

// NewRegistry builds a registry over the given descriptors and assigns
// static handle indexes in registration order. Duplicate SIDs keep the
// first registration.
func NewRegistry(services []*Service) *Registry {
	n := len(services)
	if n < 16 {
		n = 16
	}
	r := &Registry{
		bySID:   make(map[uint32]*Service, len(services)),
		byIndex: make([]*Service, 0, len(services)),
		filter:  bloom.NewWithEstimates(uint(n), 0.01),
	}
	for _, svc := range services {
		if _, dup := r.bySID[svc.SID]; dup {
			continue
		}
		svc.staticIndex = int32(len(r.byIndex))
		r.bySID[svc.SID] = svc
		r.byIndex = append(r.byIndex, svc)
		r.filter.Add(sidKey(svc.SID))
	}
	return r
}

// Lookup returns the service registered under sid.
func (r *Registry) Lookup(sid uint32) (*Service, bool) {
	if !r.filter.Test(sidKey(sid)) {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.bySID[sid]
	return svc, ok
}

// ByStaticIndex resolves the registry index carried by a static handle.
func (r *Registry) ByStaticIndex(index int32) (*Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || int(index) >= len(r.byIndex) {
		return nil, false
	}
	return r.byIndex[index], true
}

// Len reports the number of registered services.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIndex)
}

func sidKey(sid uint32) []byte {
	var key [4]byte
	binary.LittleEndian.PutUint32(key[:], sid)
	return key[:]
}
