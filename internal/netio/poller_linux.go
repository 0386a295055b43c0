//go:build linux

package netio

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// FastPoller wraps epoll. The fd registry itself (fdTable) is shared with
// the darwin/windows backends; only the epoll-specific add/mod/del/wait
// calls and event-flag translation live here.
type FastPoller struct {
	epfd     int32
	eventBuf [256]unix.EpollEvent
	table    *fdTable
	closed   atomic.Bool
}

func (p *FastPoller) Init(capHint int) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = int32(epfd)
	p.table = newFDTable(capHint)
	return nil
}

func (p *FastPoller) Close() error {
	p.closed.Store(true)
	if p.epfd > 0 {
		return unix.Close(int(p.epfd))
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

	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		p.table.rollback(fd)
		return err
	}
	return nil
}

func (p *FastPoller) UnregisterFD(fd int) error {
	if _, err := p.table.unregister(fd); err != nil {
		return err
	}
	return unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *FastPoller) ModifyFD(fd int, events IOEvents) error {
	if _, err := p.table.updateEvents(fd, events); err != nil {
		return err
	}
	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	return unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_MOD, fd, ev)
}

// PollIO blocks up to timeoutMs waiting for events, dispatches any
// callbacks inline, and returns how many fired.
func (p *FastPoller) PollIO(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}

	v := p.table.loadVersion()
	n, err := unix.EpollWait(int(p.epfd), p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	if p.table.versionChanged(v) {
		// a registration raced this poll; discard to avoid dispatching
		// against a stale fdInfo snapshot.
		return 0, nil
	}

	p.dispatchEvents(n)
	return n, nil
}

func (p *FastPoller) dispatchEvents(n int) {
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Fd)
		if fd < 0 {
			continue
		}
		info := p.table.snapshot(fd)
		if info.active && info.callback != nil {
			info.callback(epollToEvents(p.eventBuf[i].Events))
		}
	}
}

func eventsToEpoll(events IOEvents) uint32 {
	var e uint32
	if events&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToEvents(e uint32) IOEvents {
	var events IOEvents
	if e&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if e&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if e&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
