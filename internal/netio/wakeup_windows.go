//go:build windows

package netio

// Waker wakes a loop blocked in PollIO. On Windows this just forwards to
// the poller's own PostQueuedCompletionStatus mechanism; IOCP has no
// eventfd/pipe equivalent to register a read callback for.
type Waker struct {
	poller *FastPoller
}

// NewWaker returns a Waker bound to poller's IOCP handle.
func NewWaker(p *FastPoller) (*Waker, error) {
	return &Waker{poller: p}, nil
}

// Wake interrupts a blocked PollIO.
func (w *Waker) Wake() error {
	return w.poller.Wake()
}

// Close is a no-op on Windows; there is no fd for Waker to own.
func (w *Waker) Close() error {
	return nil
}
