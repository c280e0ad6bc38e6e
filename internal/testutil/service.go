package testutil

import (
	"testing"

	"anonstream/internal/identity"
	"anonstream/internal/stream"
)

// ServiceFixture bundles a fully wired Service with its stubbed dependencies
// so tests can reach past the service when they need to.
type ServiceFixture struct {
	Service *stream.Service
	Store   stream.Store
	Vault   stream.MediaVault
	Staging stream.StagingArea
	Cache   *identity.MemoryCache
	Clock   *StubClock
	IDGen   *StubIDGenerator
}

// NewServiceFixture creates a Service backed by an in-memory store, vault,
// staging area, and identity cache, with a fixed clock and sequential ids.
func NewServiceFixture(t *testing.T) *ServiceFixture {
	t.Helper()

	st := NewTestStore(t)
	v := NewTestVault()
	sa := NewTestStagingArea()
	cache := identity.NewMemoryCache()
	clock := FixedClock()
	idgen := NewStubIDGenerator()

	svc := stream.NewService(st, sa, v, cache, stream.NewNopLogger(), clock, idgen)

	return &ServiceFixture{
		Service: svc,
		Store:   st,
		Vault:   v,
		Staging: sa,
		Cache:   cache,
		Clock:   clock,
		IDGen:   idgen,
	}
}
