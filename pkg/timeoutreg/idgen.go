package timeoutreg

import "sync/atomic"

// IDGenerator produces monotonic, non-zero 32-bit ids, wrapping around
// zero (spec §4.3's generateId and the connection-uid generator of §3 share
// this exact rule).
type IDGenerator struct {
	next atomic.Uint32
}

// Next returns the next id, skipping 0.
func (g *IDGenerator) Next() uint32 {
	for {
		v := g.next.Add(1)
		if v != 0 {
			return v
		}
	}
}
