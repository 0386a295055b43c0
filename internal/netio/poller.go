// Package netio provides the epoll/kqueue-backed event loop shared by the
// server's net-threads (spec §4.7.2) and the client's network-threads
// (spec §4.8.2): a FastPoller wrapping the platform multiplexer, a
// cross-goroutine task inbox (TaskRing) for work submitted from outside
// the loop's own goroutine, and a wake-fd so Submit can interrupt a
// blocked poll.
//
// See poller_linux.go (epoll), poller_darwin.go (kqueue), and
// poller_windows.go (IOCP) for the platform-specific implementations.
package netio

import "errors"

// IOEvents is the platform-independent event mask netio exposes to
// callers; each poller_*.go file translates to and from its native
// multiplexer's event flags.
type IOEvents uint32

const (
	EventRead IOEvents = 1 << iota
	EventWrite
	EventError
	EventHangup
)

// IOCallback is invoked from the loop's own goroutine when a registered fd
// reports an event; it must not block.
type IOCallback func(IOEvents)

var (
	ErrFDOutOfRange        = errors.New("netio: fd out of range")
	ErrFDAlreadyRegistered = errors.New("netio: fd already registered")
	ErrFDNotRegistered     = errors.New("netio: fd not registered")
	ErrPollerClosed        = errors.New("netio: poller closed")
)
