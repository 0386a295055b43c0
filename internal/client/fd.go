package client

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// connFD extracts the raw, non-blocking fd backing a dialed net.Conn so
// it can be registered directly with the network thread's epoll loop,
// mirroring internal/server's listenerFD for the accept side.
func connFD(conn net.Conn) (int, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return -1, wrapf("connection does not expose a raw fd")
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1, err
	}
	var fd int
	var ctrlErr error
	err = raw.Control(func(p uintptr) {
		fd = int(p)
		if f, dupErr := unix.Dup(fd); dupErr == nil {
			fd = f
		} else {
			ctrlErr = dupErr
		}
	})
	if err != nil {
		return -1, err
	}
	if ctrlErr != nil {
		return -1, ctrlErr
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	// The original net.Conn's fd was duplicated above; close the
	// original-owning wrapper without touching the dup'd fd we kept.
	conn.Close()
	return fd, nil
}
