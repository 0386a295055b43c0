//go:build windows

package netio

import (
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/windows"
)

// FastPoller wraps IOCP. Kept at stub parity with the teacher's Windows
// poller: netio is a Linux-first port (spec's Non-goals exclude
// cross-platform portability beyond a POSIX host), so this file exists
// only so the module still compiles on Windows, not for production use.
// The fd registry (fdTable) is shared with poller_linux.go/poller_darwin.go.
type FastPoller struct {
	iocp     windows.Handle
	wakeSock windows.Socket
	table    *fdTable
	closed   atomic.Bool
}

func (p *FastPoller) Init(capHint int) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	iocp, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return err
	}
	p.iocp = iocp
	p.table = newFDTable(capHint)
	return nil
}

func (p *FastPoller) Close() error {
	p.closed.Store(true)
	if p.iocp != 0 {
		return windows.CloseHandle(p.iocp)
	}
	return nil
}

func (p *FastPoller) RegisterFD(fd int, events IOEvents, cb IOCallback) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	if err := p.table.register(fd, events, cb); err != nil {
		return err
	}

	if _, err := windows.CreateIoCompletionPort(windows.Handle(fd), p.iocp, 0, 0); err != nil {
		p.table.rollback(fd)
		return err
	}
	return nil
}

func (p *FastPoller) UnregisterFD(fd int) error {
	_, err := p.table.unregister(fd)
	return err
}

func (p *FastPoller) ModifyFD(fd int, events IOEvents) error {
	_, err := p.table.updateEvents(fd, events)
	return err
}

func (p *FastPoller) PollIO(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}
	var timeout *uint32
	if timeoutMs >= 0 {
		t := uint32(timeoutMs)
		timeout = &t
	}
	var bytes uint32
	var key uintptr
	var overlapped *windows.Overlapped
	err := windows.GetQueuedCompletionStatus(p.iocp, &bytes, &key, &overlapped, timeout)
	if err != nil {
		if errno, ok := err.(syscall.Errno); ok {
			if errno == windows.WAIT_TIMEOUT {
				return 0, nil
			}
			if errno == windows.ERROR_ABANDONED_WAIT_0 || errno == windows.ERROR_INVALID_HANDLE {
				return 0, ErrPollerClosed
			}
		}
		return 0, err
	}
	if overlapped == nil {
		return 0, nil
	}
	return 0, nil
}

// Wake interrupts a blocked PollIO via PostQueuedCompletionStatus, IOCP's
// native wake mechanism (no eventfd/pipe equivalent exists on Windows).
func (p *FastPoller) Wake() error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	return windows.PostQueuedCompletionStatus(p.iocp, 0, 0, nil)
}
