package spm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry([]*Service{
		{SID: 0x1000, Name: "crypto", Version: 1},
		{SID: 0x1001, Name: "storage", Version: 2},
	})
	assert.Equal(t, 2, r.Len())

	svc, ok := r.Lookup(0x1001)
	require.True(t, ok)
	assert.Equal(t, "storage", svc.Name)

	_, ok = r.Lookup(0xdead)
	assert.False(t, ok)
}

func TestRegistryDuplicateSIDKeepsFirst(t *testing.T) {
	r := NewRegistry([]*Service{
		{SID: 0x1000, Name: "first"},
		{SID: 0x1000, Name: "second"},
	})
	assert.Equal(t, 1, r.Len())

	svc, ok := r.Lookup(0x1000)
	require.True(t, ok)
	assert.Equal(t, "first", svc.Name)
}

func TestRegistryStaticIndex(t *testing.T) {
	a := &Service{SID: 1, Stateless: true}
	b := &Service{SID: 2, Stateless: true}
	r := NewRegistry([]*Service{a, b})

	assert.Equal(t, int32(0), a.StaticIndex())
	assert.Equal(t, int32(1), b.StaticIndex())

	got, ok := r.ByStaticIndex(1)
	require.True(t, ok)
	assert.Same(t, b, got)

	_, ok = r.ByStaticIndex(2)
	assert.False(t, ok)
	_, ok = r.ByStaticIndex(-1)
	assert.False(t, ok)
}

func TestServiceAuthorized(t *testing.T) {
	nsOpen := &Service{NSClients: true}
	assert.True(t, nsOpen.Authorized(-4))
	assert.True(t, nsOpen.Authorized(10))

	secureOnly := &Service{}
	assert.False(t, secureOnly.Authorized(-4))
	assert.True(t, secureOnly.Authorized(10))

	restricted := &Service{NSClients: true, AllowedClients: []int32{-2, 7}}
	assert.True(t, restricted.Authorized(-2))
	assert.True(t, restricted.Authorized(7))
	assert.False(t, restricted.Authorized(-3))
}

func TestServiceVersionPolicy(t *testing.T) {
	strict := &Service{Version: 3, Policy: VersionStrict}
	assert.True(t, strict.SupportsVersion(3))
	assert.False(t, strict.SupportsVersion(2))
	assert.False(t, strict.SupportsVersion(4))

	relaxed := &Service{Version: 3, Policy: VersionRelaxed}
	assert.True(t, relaxed.SupportsVersion(1))
	assert.True(t, relaxed.SupportsVersion(3))
	assert.False(t, relaxed.SupportsVersion(4))
}
