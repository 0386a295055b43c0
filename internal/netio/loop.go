package netio

import "time"

// Loop is one net-thread's (or client network-thread's) event loop: an
// epoll/kqueue poller plus a cross-goroutine task inbox, matching spec
// §4.7.2 ("each owns an epoll fd") and §4.8.2 ("invocations... are routed
// to the proxy's owning thread via a wakeup-fd-backed inbox").
//
// Loop itself only drives the poll/drain cycle; accept/read/parse
// (server) or proxy dispatch (client) is supplied by the caller via
// RegisterFD callbacks and Submit'd tasks.
type Loop struct {
	poller FastPoller
	waker  *Waker
	tasks  *TaskRing
	state  *FastState

	// idleTimeout bounds how long PollIO blocks when no timers are due,
	// so periodic work (endpoint refresh, idle-connection sweep, empty
	// connection sweep) still runs without a dedicated wake source.
	idleTimeout time.Duration
}

// New creates and initializes a Loop. idleTimeout bounds PollIO's block
// time absent any wake-up, letting the caller run periodic maintenance
// from its Run callback. capHint sizes the poller's fd table up front
// (the caller's own connection-limit configuration, e.g. a server
// adapter's maxconns or a client's dial-pool estimate); pass 0 to fall
// back to a conservative default. The table still grows past capHint if a
// registered fd exceeds it.
func New(idleTimeout time.Duration, capHint int) (*Loop, error) {
	l := &Loop{tasks: NewTaskRing(), state: NewFastState(), idleTimeout: idleTimeout}
	if err := l.poller.Init(capHint); err != nil {
		return nil, err
	}
	w, err := NewWaker(&l.poller)
	if err != nil {
		l.poller.Close()
		return nil, err
	}
	l.waker = w
	return l, nil
}

// RegisterFD registers fd for I/O readiness callbacks.
func (l *Loop) RegisterFD(fd int, events IOEvents, cb IOCallback) error {
	return l.poller.RegisterFD(fd, events, cb)
}

// UnregisterFD removes fd from monitoring.
func (l *Loop) UnregisterFD(fd int) error {
	return l.poller.UnregisterFD(fd)
}

// ModifyFD changes the events monitored for fd.
func (l *Loop) ModifyFD(fd int, events IOEvents) error {
	return l.poller.ModifyFD(fd, events)
}

// Submit enqueues fn to run on the loop's own goroutine and wakes a
// blocked PollIO so it runs promptly. Safe to call from any goroutine.
// A submit that loses the race with shutdown (the loop has already left
// Run) is silently dropped rather than queued forever: nothing will ever
// drain the ring again once the loop goroutine is gone.
func (l *Loop) Submit(fn func()) {
	if l.state.IsTerminal() {
		return
	}
	l.tasks.Push(fn)
	l.waker.Wake()
}

// State returns the loop's current lifecycle state.
func (l *Loop) State() LoopState {
	return l.state.Load()
}

// Run drives the poll/drain cycle until stop is closed. tick is invoked
// once per iteration after draining submitted tasks and dispatching I/O
// callbacks — the caller's hook for periodic maintenance (sweeps,
// refreshes) that doesn't depend on any particular fd's readiness.
func (l *Loop) Run(stop <-chan struct{}, tick func()) error {
	if !l.state.TryTransition(StateAwake, StateRunning) {
		return nil
	}
	defer l.state.Store(StateTerminated)

	for {
		select {
		case <-stop:
			l.state.Store(StateTerminating)
			return nil
		default:
		}

		for {
			fn := l.tasks.Pop()
			if fn == nil {
				break
			}
			fn()
		}

		l.state.Store(StateSleeping)
		if _, err := l.poller.PollIO(int(l.idleTimeout / time.Millisecond)); err != nil {
			if err == ErrPollerClosed {
				return nil
			}
			return err
		}
		l.state.Store(StateRunning)

		if tick != nil {
			tick()
		}
	}
}

// Close tears down the poller and wake mechanism. Run must have returned
// (or never been started) before calling Close.
func (l *Loop) Close() error {
	if err := l.waker.Close(); err != nil {
		return err
	}
	return l.poller.Close()
}
