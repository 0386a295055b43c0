package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustEndpoint(t *testing.T, s string) Endpoint {
	t.Helper()
	ep, err := ParseEndpoint(s)
	require.NoError(t, err)
	return ep
}

func TestEndpointSetRefreshPreservesFailureState(t *testing.T) {
	set := NewEndpointSet()
	a := mustEndpoint(t, "tcp -h 10.0.0.1 -p 9001")
	b := mustEndpoint(t, "tcp -h 10.0.0.2 -p 9002")
	set.Refresh([]Endpoint{a, b})
	require.Len(t, set.Active(), 2)

	now := time.Now()
	for i := 0; i < failureThreshold; i++ {
		set.MarkFailure(b.Addr(), now)
	}
	require.Len(t, set.Active(), 1)
	require.Equal(t, a.Addr(), set.Active()[0].Addr())

	// A refresh cycle must not resurrect b; it stays inactive until a
	// successful probe.
	set.Refresh([]Endpoint{a, b})
	require.Len(t, set.Active(), 1)

	set.MarkSuccess(b.Addr())
	require.Len(t, set.Active(), 2)
}

func TestEndpointSetDueForProbe(t *testing.T) {
	set := NewEndpointSet()
	a := mustEndpoint(t, "tcp -h 10.0.0.1 -p 9001")
	set.Refresh([]Endpoint{a})
	now := time.Now()
	for i := 0; i < failureThreshold; i++ {
		set.MarkFailure(a.Addr(), now)
	}
	require.Empty(t, set.DueForProbe(now))
	require.Len(t, set.DueForProbe(now.Add(probeBackoff+time.Second)), 1)
}

// TestConsistentHashStableAfterDemotion is spec S2: two sequential calls
// tagged "abc" keep routing to the same remaining endpoint after one of
// three is marked inactive.
func TestConsistentHashStableAfterDemotion(t *testing.T) {
	a := mustEndpoint(t, "tcp -h 10.0.0.1 -p 9001")
	b := mustEndpoint(t, "tcp -h 10.0.0.2 -p 9002")
	c := mustEndpoint(t, "tcp -h 10.0.0.3 -p 9003")

	set := NewEndpointSet()
	set.Refresh([]Endpoint{a, b, c})

	r := newRouter(ConsistentHash)
	r.rebuildRing(set.Active())

	first, ok := r.Select(set.Active(), "abc")
	require.True(t, ok)

	now := time.Now()
	for i := 0; i < failureThreshold; i++ {
		set.MarkFailure(b.Addr(), now)
	}
	r.rebuildRing(set.Active())

	if first.Addr() == b.Addr() {
		t.Skip("tag happened to hash to the endpoint under test; rehash target indeterminate")
	}

	second, ok := r.Select(set.Active(), "abc")
	require.True(t, ok)
	require.Equal(t, first.Addr(), second.Addr())

	third, ok := r.Select(set.Active(), "abc")
	require.True(t, ok)
	require.Equal(t, first.Addr(), third.Addr())
}
