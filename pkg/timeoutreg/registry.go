// Package timeoutreg implements the timeout-indexed request registry from
// spec §4.3: a keyed store that preserves insertion time, supports O(1)
// get/erase by id, and sweeps entries whose age exceeds a threshold.
//
// It is grounded on the teacher event-loop's registry.go, which keeps a
// hash map cross-referenced with an ordered list for O(1) membership plus
// ordered sweeping; here the list is ordered by creation time instead of
// by a scavenge ring, and entries carry a real value instead of a weak
// pointer.
package timeoutreg

import (
	"container/list"
	"sync"
	"time"
)

type entry[K comparable, V any] struct {
	key        K
	value      V
	createTime time.Time
	popped     bool
}

// Registry is a generic, thread-safe timeout-indexed store keyed by K.
//
// Invariant: every live value appears in both data (for O(1) lookup) and
// order (for FIFO pop and age-based sweeping); the two are mutated
// together under mu.
type Registry[K comparable, V any] struct {
	mu    sync.Mutex
	data  map[K]*list.Element
	order *list.List // of *entry[K, V], oldest first

	// firstUnpopped caches the earliest element not yet consumed by Pop,
	// so repeated FIFO draining is O(1) instead of O(n) rescans.
	firstUnpopped *list.Element
}

// New creates an empty registry.
func New[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		data:  make(map[K]*list.Element),
		order: list.New(),
	}
}

// Push records id->value at the current time. It fails if id already
// exists.
func (r *Registry[K, V]) Push(id K, value V) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[id]; exists {
		return ErrExists
	}

	e := r.order.PushBack(&entry[K, V]{key: id, value: value, createTime: now()})
	r.data[id] = e
	if r.firstUnpopped == nil {
		r.firstUnpopped = e
	}
	return nil
}

// Get returns the value for id. If erase is true the entry is removed
// (advancing firstUnpopped if it pointed at the removed element).
func (r *Registry[K, V]) Get(id K, erase bool) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.data[id]
	if !ok {
		var zero V
		return zero, false
	}
	v := e.Value.(*entry[K, V]).value
	if erase {
		r.removeElement(e)
	}
	return v, true
}

// Erase unconditionally removes id. Returns false if it wasn't present.
func (r *Registry[K, V]) Erase(id K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.data[id]
	if !ok {
		return false
	}
	r.removeElement(e)
	return true
}

// removeElement deletes e from both structures. Caller must hold mu.
func (r *Registry[K, V]) removeElement(e *list.Element) {
	ent := e.Value.(*entry[K, V])
	if r.firstUnpopped == e {
		r.firstUnpopped = r.nextUnpoppedFrom(e.Next())
	}
	delete(r.data, ent.key)
	r.order.Remove(e)
}

func (r *Registry[K, V]) nextUnpoppedFrom(e *list.Element) *list.Element {
	for ; e != nil; e = e.Next() {
		if !e.Value.(*entry[K, V]).popped {
			return e
		}
	}
	return nil
}

// Pop returns the earliest entry not yet popped and marks it popped. The
// entry remains in the registry (still reachable via Get(id, false) and
// still subject to Timeout sweeping) until explicitly erased or it times
// out — this decouples "consumed by a worker" from "removed from the
// index".
func (r *Registry[K, V]) Pop() (id K, value V, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.firstUnpopped
	if e == nil {
		return id, value, false
	}
	ent := e.Value.(*entry[K, V])
	ent.popped = true
	r.firstUnpopped = r.nextUnpoppedFrom(e.Next())
	return ent.key, ent.value, true
}

// PopInto is Pop, appending (id, value) into dst's backing semantics via a
// callback, useful when the caller wants to reuse an existing slice without
// an intermediate allocation.
func (r *Registry[K, V]) PopInto(dst func(id K, value V)) bool {
	id, value, ok := r.Pop()
	if ok {
		dst(id, value)
	}
	return ok
}

// Swap bulk-pops every entry not yet popped, returning them oldest-first.
func (r *Registry[K, V]) Swap() []V {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []V
	for e := r.firstUnpopped; e != nil; e = e.Next() {
		ent := e.Value.(*entry[K, V])
		if ent.popped {
			continue
		}
		ent.popped = true
		out = append(out, ent.value)
	}
	r.firstUnpopped = nil
	return out
}

// Timeout removes every entry older than thresholdMs as of now, without
// invoking a callback.
func (r *Registry[K, V]) Timeout(thresholdMs int64) []V {
	return r.TimeoutFunc(thresholdMs, nil)
}

// TimeoutFunc walks the time-ordered list from the head while
// now-entry.createTime > threshold, removing each and invoking fn (if
// non-nil) with its key and value outside the lock.
func (r *Registry[K, V]) TimeoutFunc(thresholdMs int64, fn func(id K, value V)) []V {
	threshold := time.Duration(thresholdMs) * time.Millisecond
	deadline := now()

	r.mu.Lock()
	var expired []*entry[K, V]
	for e := r.order.Front(); e != nil; {
		ent := e.Value.(*entry[K, V])
		if deadline.Sub(ent.createTime) <= threshold {
			break
		}
		next := e.Next()
		r.removeElement(e)
		expired = append(expired, ent)
		e = next
	}
	r.mu.Unlock()

	out := make([]V, len(expired))
	for i, ent := range expired {
		out[i] = ent.value
		if fn != nil {
			fn(ent.key, ent.value)
		}
	}
	return out
}

// Len returns the number of entries currently indexed (popped or not).
func (r *Registry[K, V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

// now is a var so tests can freeze time deterministically.
var now = time.Now
