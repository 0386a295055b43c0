// Package chash implements the consistent-hash ring of spec §4.4: a
// sortable array of (hash, node-index) entries supporting Ketama and an
// MD5-XOR-fold variant, with binary-search lookup and weighted virtual
// nodes.
package chash

import (
	"crypto/md5"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// Algorithm selects the hash variant used to place virtual nodes on the
// ring and to hash lookup keys.
type Algorithm int

const (
	// Ketama takes the four little-endian 32-bit words of MD5(key) as four
	// independent ring entries per virtual-node replica.
	Ketama Algorithm = iota
	// Default XOR-folds the four 32-bit words of MD5(key) into one hash.
	Default
)

// ErrEmptyRing is returned by GetIndex when no node has been added.
var ErrEmptyRing = errors.New("chash: ring is empty")

// node is one entry in the sorted ring: a 32-bit hash and the originating
// node's index (spec's ConsistentHashNode).
type node struct {
	hash  uint32
	index uint32
}

// Ring is a consistent-hash ring over a fixed set of node indices.
type Ring struct {
	algo   Algorithm
	nodes  []node // sorted by hash once SortNodes is called
	sorted bool
}

// New creates an empty ring using the given algorithm.
func New(algo Algorithm) *Ring {
	return &Ring{algo: algo}
}

// AddNode appends weight virtual nodes for (name, index). Ketama produces
// 4 ring entries per virtual-node replica (weight*4 total); Default
// produces one ring entry per replica (weight total).
func (r *Ring) AddNode(name string, index uint32, weight int) {
	r.sorted = false
	for i := 0; i < weight; i++ {
		replica := fmt.Sprintf("%s_%d", name, i)
		switch r.algo {
		case Ketama:
			digest := md5.Sum([]byte(replica))
			for w := 0; w < 4; w++ {
				h := binary.LittleEndian.Uint32(digest[w*4 : w*4+4])
				r.nodes = append(r.nodes, node{hash: h, index: index})
			}
		default:
			r.nodes = append(r.nodes, node{hash: xorFoldMD5(replica), index: index})
		}
	}
}

// xorFoldMD5 hashes key with MD5 and XORs its four 32-bit little-endian
// words together (spec's "Default" algorithm).
func xorFoldMD5(key string) uint32 {
	digest := md5.Sum([]byte(key))
	var h uint32
	for w := 0; w < 4; w++ {
		h ^= binary.LittleEndian.Uint32(digest[w*4 : w*4+4])
	}
	return h
}

// SortNodes sorts the ring by hash so GetIndex can binary-search it.
func (r *Ring) SortNodes() {
	sort.Slice(r.nodes, func(i, j int) bool { return r.nodes[i].hash < r.nodes[j].hash })
	r.sorted = true
}

// GetIndex hashes key (MD5, same folding rule as the ring's algorithm) and
// returns the node index owning it: the smallest ring entry whose hash is
// >= the target, wrapping to entry 0 when the target is <= the first hash
// or > the last.
func (r *Ring) GetIndex(key string) (uint32, error) {
	if len(r.nodes) == 0 {
		return 0, ErrEmptyRing
	}
	if !r.sorted {
		r.SortNodes()
	}

	var target uint32
	switch r.algo {
	case Ketama:
		digest := md5.Sum([]byte(key))
		target = binary.LittleEndian.Uint32(digest[0:4])
	default:
		target = xorFoldMD5(key)
	}

	if target <= r.nodes[0].hash || target > r.nodes[len(r.nodes)-1].hash {
		return r.nodes[0].index, nil
	}

	i := sort.Search(len(r.nodes), func(i int) bool { return r.nodes[i].hash >= target })
	if i == len(r.nodes) {
		i = 0
	}
	return r.nodes[i].index, nil
}

// Len returns the number of virtual-node ring entries.
func (r *Ring) Len() int {
	return len(r.nodes)
}
