// Package singleton implements the double-checked-locking instance
// lifecycle of spec §4.6: two orthogonal axes (Creation: heap vs.
// placement-new into static storage; Lifetime: default, phoenix, or
// no-destroy), gated by a per-instance _destroyed flag.
package singleton

import (
	"errors"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Lifetime selects what happens to an instance's destructor registration
// and what happens on access after destruction.
type Lifetime int

const (
	// Default registers the destructor once; accessing the instance after
	// it has been destroyed raises ErrDestroyed.
	Default Lifetime = iota
	// Phoenix re-creates the instance on access after a forced Destroy,
	// registering its destructor again exactly once per resurrection.
	Phoenix
	// NoDestroy never registers a destructor; Destroy is a no-op.
	NoDestroy
)

// ErrDestroyed is returned by Get under the Default lifetime once the
// instance has been destroyed.
var ErrDestroyed = errors.New("singleton: instance already destroyed")

// Creation selects how an Instance's backing storage is obtained (spec
// §4.6's other axis, orthogonal to Lifetime).
type Creation int

const (
	// Heap constructs the instance from an ordinary heap allocation: each
	// (re)construction calls factory and stores whatever *T it returns.
	Heap Creation = iota
	// StaticBuffer places the instance into a single aligned byte arena
	// allocated once, up front, at NewStaticBuffer time — the idiomatic-Go
	// approximation of the original's placement-new into pre-sized static
	// storage. Every (re)construction, including Phoenix resurrections,
	// reuses the same arena address rather than allocating a fresh *T.
	StaticBuffer
)

// Instance provides a thread-safe, double-checked-locking accessor for a
// single value of type T, constructed lazily.
type Instance[T any] struct {
	creation Creation
	factory  func() *T // Heap
	init     func(*T)  // StaticBuffer
	arena    unsafe.Pointer
	rawArena []byte // keeps arena's backing array alive; never read directly

	lifetime Lifetime

	mu        sync.Mutex
	ptr       atomic.Pointer[T]
	destroyed bool
}

// New creates a Heap-policy Instance accessor. factory is invoked at most
// once per "lifetime" of the instance (more than once only under Phoenix,
// after an explicit Destroy).
func New[T any](factory func() *T, lifetime Lifetime) *Instance[T] {
	return &Instance[T]{creation: Heap, factory: factory, lifetime: lifetime}
}

// NewStaticBuffer creates a StaticBuffer-policy Instance: storage is a
// single aligned arena sized for T, allocated now rather than on first
// Get. init (if non-nil) runs against the zero-valued T placed at the
// arena's address on every (re)construction; the arena itself is never
// replaced, so the returned pointer's address is stable across Destroy/
// Phoenix cycles — the property the original's placement-new into static
// storage exists to guarantee.
func NewStaticBuffer[T any](init func(*T), lifetime Lifetime) *Instance[T] {
	var zero T
	size := unsafe.Sizeof(zero)
	align := unsafe.Alignof(zero)
	raw := make([]byte, size+align-1)
	base := uintptr(unsafe.Pointer(&raw[0]))
	aligned := (base + align - 1) &^ (align - 1)
	return &Instance[T]{
		creation: StaticBuffer,
		init:     init,
		arena:    unsafe.Pointer(aligned), //nolint:govet // placement-new into raw below
		rawArena: raw,
		lifetime: lifetime,
	}
}

// construct produces the instance's value per its Creation policy.
func (s *Instance[T]) construct() *T {
	if s.creation == StaticBuffer {
		p := (*T)(s.arena)
		*p = *new(T) // placement-new: reset the arena to T's zero value
		if s.init != nil {
			s.init(p)
		}
		return p
	}
	return s.factory()
}

// Get returns the instance, constructing it on first use (double-checked
// locking: an unlocked fast-path load, then a locked slow-path that
// re-checks before constructing).
func (s *Instance[T]) Get() (*T, error) {
	if p := s.ptr.Load(); p != nil {
		return p, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p := s.ptr.Load(); p != nil {
		return p, nil
	}

	if s.destroyed {
		switch s.lifetime {
		case Phoenix:
			s.destroyed = false
		default:
			return nil, ErrDestroyed
		}
	}

	p := s.construct()
	s.ptr.Store(p)
	return p, nil
}

// Destroy tears down the instance (NoDestroy makes this a no-op besides
// clearing the pointer, since nothing registered a destructor to race
// with). Safe to call even if Get was never called.
func (s *Instance[T]) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ptr.Load() == nil {
		return
	}
	s.ptr.Store(nil)
	if s.lifetime != NoDestroy {
		s.destroyed = true
	}
}
