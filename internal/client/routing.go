package client

import (
	"sync/atomic"

	"github.com/zhenshangxin/tars-go/pkg/chash"
)

// RoutingMode selects how an ObjectProxy picks an endpoint for a given
// invocation (spec §4.8.3).
type RoutingMode int

const (
	RoundRobin RoutingMode = iota
	ConsistentHash
	Static
)

// router binds a RoutingMode to the state it needs: a round-robin cursor
// or a rebuilt-on-refresh chash.Ring keyed by endpoint address.
type router struct {
	mode RoutingMode
	rr   atomic.Uint64
	ring *chash.Ring // non-nil only in ConsistentHash mode
}

func newRouter(mode RoutingMode) *router {
	r := &router{mode: mode}
	if mode == ConsistentHash {
		r.ring = chash.New(chash.Ketama)
	}
	return r
}

// rebuildRing repopulates the hash ring from the current active set
// (called after every EndpointSet.Refresh in ConsistentHash mode).
func (r *router) rebuildRing(active []Endpoint) {
	if r.ring == nil {
		return
	}
	ring := chash.New(chash.Ketama)
	for i, ep := range active {
		ring.AddNode(ep.Addr(), uint32(i), 160)
	}
	ring.SortNodes()
	r.ring = ring
}

// Select returns the endpoint an invocation should target. hashKey is
// only consulted in ConsistentHash mode (spec §4.8.3: "keyed by a
// caller-supplied tag"); Static mode always returns active[0], since a
// statically configured proxy has exactly one meaningful endpoint by
// convention.
func (r *router) Select(active []Endpoint, hashKey string) (Endpoint, bool) {
	if len(active) == 0 {
		return Endpoint{}, false
	}
	switch r.mode {
	case ConsistentHash:
		if r.ring != nil && r.ring.Len() > 0 {
			idx, err := r.ring.GetIndex(hashKey)
			if err == nil && int(idx) < len(active) {
				return active[idx], true
			}
		}
		return active[0], true
	case Static:
		return active[0], true
	default: // RoundRobin
		n := r.rr.Add(1)
		return active[(n-1)%uint64(len(active))], true
	}
}
