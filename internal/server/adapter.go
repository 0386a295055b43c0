package server

import (
	"crypto/tls"
	"net"
	"strconv"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/zhenshangxin/tars-go/internal/ratelimit"
)

// Adapter is spec §3's BindAdapter: one listening endpoint, its protocol,
// ACL, bounded receive queue, and the handle group it feeds.
type Adapter struct {
	Name   string
	Config AdapterConfig
	server *Server

	acl      *ACL
	connRate *ratelimit.Limiter // nil unless report_conn_rate/emptyconcheck admission throttling applies

	listener net.Listener
	conns    *ConnTable
	recvQ    *AdapterQueue
	tlsConf  *tls.Config // nil unless cfg.CertFile/KeyFile are both set

	overloadCount    atomic.Int64
	overloadRejects  atomic.Int64
	aclRejects       atomic.Int64
	emptyConnRejects atomic.Int64
	timeoutCount     atomic.Int64
}

// NewAdapter constructs an Adapter from its parsed config, binding the
// listen socket (spec §6: bind failure is a fatal bootstrap error).
func NewAdapter(s *Server, cfg AdapterConfig) (*Adapter, error) {
	acl, err := NewACL(cfg.Order, cfg.Allow, cfg.Deny)
	if err != nil {
		return nil, &BootstrapError{Stage: "adapter " + cfg.Name, Err: err}
	}

	network := cfg.Endpoint.Proto
	if network == "" {
		network = "tcp"
	}
	addr := net.JoinHostPort(cfg.Endpoint.Host, strconv.Itoa(cfg.Endpoint.Port))
	ln, err := net.Listen(network, addr)
	if err != nil {
		return nil, &BootstrapError{Stage: "adapter " + cfg.Name, Err: wrapf("bind %s: %w", addr, err)}
	}

	a := &Adapter{
		Name:     cfg.Name,
		Config:   cfg,
		server:   s,
		acl:      acl,
		listener: ln,
		conns:    NewConnTable(),
		recvQ:    NewAdapterQueue(cfg.QueueCap),
	}
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, &BootstrapError{Stage: "adapter " + cfg.Name, Err: wrapf("load TLS keypair: %w", err)}
		}
		a.tlsConf = &tls.Config{Certificates: []tls.Certificate{cert}}
	}
	if s.Config.EmptyConCheck {
		a.connRate = ratelimit.New(s.Config.EmptyConnTimeout, cfg.MaxConns)
	}
	return a, nil
}

// enqueue pushes a parsed request onto the adapter's bounded receive
// queue. False means the queue was full (spec §4.7.4 overload).
func (a *Adapter) enqueue(req *PendingRequest) bool {
	return a.recvQ.Push(req)
}

// listenerFD extracts the raw fd backing a TCP/Unix listener so it can be
// registered directly with the net thread's epoll loop (spec §4.7.2: the
// net thread owns the adapter's accept socket itself).
func listenerFD(ln net.Listener) (int, error) {
	sc, ok := ln.(syscall.Conn)
	if !ok {
		return -1, wrapf("listener does not expose a raw fd")
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
	return fd, nil
}

// sockaddrIPPort converts a unix.Sockaddr from Accept4 into an IP/port
// pair for ACL and rate-limit keying.
func sockaddrIPPort(sa unix.Sockaddr) (string, int) {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		ip := net.IP(s.Addr[:])
		return ip.String(), s.Port
	case *unix.SockaddrInet6:
		ip := net.IP(s.Addr[:])
		return ip.String(), s.Port
	default:
		return "", 0
	}
}
