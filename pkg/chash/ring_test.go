package chash

import (
	"fmt"
	"math"
	"testing"
)

func TestGetIndexDeterministic(t *testing.T) {
	r := New(Default)
	r.AddNode("a", 0, 10)
	r.AddNode("b", 1, 10)
	r.AddNode("c", 2, 10)

	idx1, err := r.GetIndex("some-key")
	if err != nil {
		t.Fatalf("GetIndex: %v", err)
	}
	idx2, err := r.GetIndex("some-key")
	if err != nil {
		t.Fatalf("GetIndex: %v", err)
	}
	if idx1 != idx2 {
		t.Fatalf("GetIndex not deterministic: %d vs %d", idx1, idx2)
	}
}

func TestEmptyRing(t *testing.T) {
	r := New(Ketama)
	if _, err := r.GetIndex("x"); err != ErrEmptyRing {
		t.Fatalf("GetIndex on empty ring: err=%v want ErrEmptyRing", err)
	}
}

func TestKetamaFourEntriesPerReplica(t *testing.T) {
	r := New(Ketama)
	r.AddNode("node", 0, 5) // 5 replicas * 4 entries
	if r.Len() != 20 {
		t.Fatalf("Len() = %d, want 20", r.Len())
	}
}

// TestLoadVariance checks that the key distribution over 100 nodes with
// 160 virtual nodes each stays close to uniform over a large key
// population: every node's share must be within 20% of the mean.
func TestLoadVariance(t *testing.T) {
	const nodes = 100
	const vnodes = 160
	const keys = 100000

	r := New(Default)
	for i := 0; i < nodes; i++ {
		r.AddNode(fmt.Sprintf("node-%d", i), uint32(i), vnodes)
	}

	counts := make(map[uint32]int, nodes)
	for i := 0; i < keys; i++ {
		idx, err := r.GetIndex(fmt.Sprintf("key-%d", i))
		if err != nil {
			t.Fatalf("GetIndex: %v", err)
		}
		counts[idx]++
	}

	mean := float64(keys) / float64(nodes)
	for idx, c := range counts {
		dev := math.Abs(float64(c)-mean) / mean
		if dev > 0.20 {
			t.Fatalf("node %d load deviates %.1f%% from mean (%.0f vs %.0f)", idx, dev*100, float64(c), mean)
		}
	}
}
