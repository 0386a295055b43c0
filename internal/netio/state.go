package netio

import "sync/atomic"

// LoopState is a net-thread / network-thread's lifecycle state.
type LoopState uint64

const (
	StateAwake LoopState = iota
	StateRunning
	StateSleeping
	StateTerminating
	StateTerminated
)

func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// FastState is a lock-free state machine: pure CAS, no mutex, so the loop's
// own goroutine and callers requesting shutdown never contend.
type FastState struct {
	v atomic.Uint64
}

func NewFastState() *FastState {
	s := &FastState{}
	s.v.Store(uint64(StateAwake))
	return s
}

func (s *FastState) Load() LoopState { return LoopState(s.v.Load()) }

func (s *FastState) Store(state LoopState) { s.v.Store(uint64(state)) }

func (s *FastState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

func (s *FastState) IsTerminal() bool { return s.Load() == StateTerminated }
