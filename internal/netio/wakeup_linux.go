//go:build linux

package netio

import "golang.org/x/sys/unix"

// Waker lets any goroutine interrupt a loop blocked in PollIO, backed by a
// Linux eventfd (one fd serves as both read and write end).
type Waker struct {
	fd int
}

// NewWaker creates an eventfd-backed waker and registers it with the
// poller for readability, draining it on every wake.
func NewWaker(p *FastPoller) (*Waker, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	w := &Waker{fd: fd}
	if err := p.RegisterFD(fd, EventRead, func(IOEvents) { w.drain() }); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return w, nil
}

// Wake posts a single notification, waking a blocked PollIO.
func (w *Waker) Wake() error {
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(w.fd, buf[:])
	return err
}

func (w *Waker) drain() {
	var buf [8]byte
	for {
		if _, err := unix.Read(w.fd, buf[:]); err != nil {
			return
		}
	}
}

// Close releases the eventfd.
func (w *Waker) Close() error {
	return unix.Close(w.fd)
}
