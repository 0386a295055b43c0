//go:build darwin

package netio

import "syscall"

// Waker lets any goroutine interrupt a loop blocked in PollIO, backed by a
// self-pipe (Darwin kqueue has no eventfd equivalent).
type Waker struct {
	readFD, writeFD int
}

// NewWaker creates a self-pipe waker and registers its read end with the
// poller, draining it on every wake.
func NewWaker(p *FastPoller) (*Waker, error) {
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		return nil, err
	}
	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])
	if err := syscall.SetNonblock(fds[0], true); err != nil {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
		return nil, err
	}
	if err := syscall.SetNonblock(fds[1], true); err != nil {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
		return nil, err
	}

	w := &Waker{readFD: fds[0], writeFD: fds[1]}
	if err := p.RegisterFD(w.readFD, EventRead, func(IOEvents) { w.drain() }); err != nil {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
		return nil, err
	}
	return w, nil
}

// Wake posts a single notification, waking a blocked PollIO.
func (w *Waker) Wake() error {
	_, err := syscall.Write(w.writeFD, []byte{1})
	return err
}

func (w *Waker) drain() {
	buf := make([]byte, 64)
	for {
		if _, err := syscall.Read(w.readFD, buf); err != nil {
			return
		}
	}
}

// Close releases both pipe ends.
func (w *Waker) Close() error {
	syscall.Close(w.writeFD)
	return syscall.Close(w.readFD)
}
