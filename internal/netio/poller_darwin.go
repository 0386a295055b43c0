//go:build darwin

package netio

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// FastPoller wraps kqueue, kept at feature parity with the Linux epoll
// poller so internal/server and internal/client need no platform branches
// of their own. The fd registry (fdTable) is shared with poller_linux.go/
// poller_windows.go; only the kqueue-specific add/mod/del/wait calls and
// event-flag translation live here.
type FastPoller struct {
	kq       int32
	eventBuf [256]unix.Kevent_t
	table    *fdTable
	closed   atomic.Bool
}

func (p *FastPoller) Init(capHint int) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	p.kq = int32(kq)
	p.table = newFDTable(capHint)
	return nil
}

func (p *FastPoller) Close() error {
	p.closed.Store(true)
	if p.kq > 0 {
		return unix.Close(int(p.kq))
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

	if kevs := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE); len(kevs) > 0 {
		if _, err := unix.Kevent(int(p.kq), kevs, nil, nil); err != nil {
			p.table.rollback(fd)
			return err
		}
	}
	return nil
}

func (p *FastPoller) UnregisterFD(fd int) error {
	events, err := p.table.unregister(fd)
	if err != nil {
		return err
	}
	if kevs := eventsToKevents(fd, events, unix.EV_DELETE); len(kevs) > 0 {
		unix.Kevent(int(p.kq), kevs, nil, nil)
	}
	return nil
}

func (p *FastPoller) ModifyFD(fd int, events IOEvents) error {
	old, err := p.table.updateEvents(fd, events)
	if err != nil {
		return err
	}

	if old&^events != 0 {
		if kevs := eventsToKevents(fd, old&^events, unix.EV_DELETE); len(kevs) > 0 {
			unix.Kevent(int(p.kq), kevs, nil, nil)
		}
	}
	if events&^old != 0 {
		if kevs := eventsToKevents(fd, events&^old, unix.EV_ADD|unix.EV_ENABLE); len(kevs) > 0 {
			if _, err := unix.Kevent(int(p.kq), kevs, nil, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *FastPoller) PollIO(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{Sec: int64(timeoutMs / 1000), Nsec: int64((timeoutMs % 1000) * 1000000)}
	}
	n, err := unix.Kevent(int(p.kq), nil, p.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	p.dispatchEvents(n)
	return n, nil
}

func (p *FastPoller) dispatchEvents(n int) {
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Ident)
		if fd < 0 {
			continue
		}
		info := p.table.snapshot(fd)
		if info.active && info.callback != nil {
			info.callback(keventToEvents(&p.eventBuf[i]))
		}
	}
}

func eventsToKevents(fd int, events IOEvents, flags uint16) []unix.Kevent_t {
	var kevs []unix.Kevent_t
	if events&EventRead != 0 {
		kevs = append(kevs, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&EventWrite != 0 {
		kevs = append(kevs, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return kevs
}

func keventToEvents(kev *unix.Kevent_t) IOEvents {
	var events IOEvents
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= EventRead
	case unix.EVFILT_WRITE:
		events |= EventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= EventError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= EventHangup
	}
	return events
}
