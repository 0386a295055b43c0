package server

import (
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/zhenshangxin/tars-go/internal/netio"
	"github.com/zhenshangxin/tars-go/internal/telemetry"
	"github.com/zhenshangxin/tars-go/internal/wire"
	"github.com/zhenshangxin/tars-go/pkg/timeoutreg"
	"github.com/zhenshangxin/tars-go/pkg/tlssess"
)

// NetThread is one of spec §4.7.2's 1..15 net threads: it owns an epoll
// fd, the listen sockets of every adapter assigned to it, and the
// connections accepted on those sockets. Accepted connections stay on the
// net thread that owns the adapter's listener; they are not spread across
// the other net threads.
type NetThread struct {
	idx    int
	loop   *netio.Loop
	conns  *ConnTable
	server *Server

	readBuf [64 * 1024]byte
	ids     timeoutreg.IDGenerator
}

func newNetThread(idx int, s *Server) (*NetThread, error) {
	loop, err := netio.New(250*time.Millisecond, perThreadFDCap(s.Config))
	if err != nil {
		return nil, err
	}
	return &NetThread{idx: idx, loop: loop, conns: NewConnTable(), server: s}, nil
}

// perThreadFDCap estimates a net thread's fd-table capacity from the
// server's own admission configuration (spec §4.7.1's per-adapter
// maxconns), rather than a single constant shared by every workload:
// the total connection budget across every configured adapter, spread
// evenly across the net-thread pool.
func perThreadFDCap(cfg *ServerConfig) int {
	total := 0
	for _, ac := range cfg.Adapters {
		total += ac.MaxConns
	}
	threads := cfg.NetThread
	if threads < 1 {
		threads = 1
	}
	return total / threads
}

// bindListener registers an adapter's listening socket on this net thread.
func (nt *NetThread) bindListener(a *Adapter) error {
	fd, err := listenerFD(a.listener)
	if err != nil {
		return err
	}
	return nt.loop.RegisterFD(fd, netio.EventRead, func(netio.IOEvents) {
		nt.acceptLoop(a, fd)
	})
}

func (nt *NetThread) acceptLoop(a *Adapter, lfd int) {
	for {
		connFd, sa, err := unix.Accept4(lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			telemetry.Category("server").Warn().Err(err).Str("adapter", a.Name).Msg("accept failed")
			return
		}
		ip, port := sockaddrIPPort(sa)

		if a.conns.Len() >= a.Config.MaxConns {
			unix.Close(connFd)
			a.overloadRejects.Add(1)
			continue
		}
		if !a.acl.Allowed(net.ParseIP(ip)) {
			unix.Close(connFd)
			a.aclRejects.Add(1)
			continue
		}
		if a.connRate != nil && !a.connRate.Allow(ip) {
			unix.Close(connFd)
			a.emptyConnRejects.Add(1)
			continue
		}

		c := &Connection{
			UID:          nt.ids.Next(),
			IP:           ip,
			Port:         port,
			FD:           connFd,
			Adapter:      a,
			NetThread:    nt,
			CreatedAt:    time.Now(),
			LastActivity: time.Now(),
			Timeout:      a.Config.QueueTimeout,
		}
		if a.tlsConf != nil {
			c.TLS = tlssess.New(tlssess.RoleServer, a.tlsConf)
		}
		a.conns.Add(c)
		nt.conns.Add(c)

		if err := nt.loop.RegisterFD(connFd, netio.EventRead, func(ev netio.IOEvents) {
			nt.handleIO(a, c, connFd, ev)
		}); err != nil {
			unix.Close(connFd)
			a.conns.Remove(c.UID)
			nt.conns.Remove(c.UID)
		}
	}
}

func (nt *NetThread) handleIO(a *Adapter, c *Connection, fd int, ev netio.IOEvents) {
	if ev&(netio.EventError|netio.EventHangup) != 0 {
		nt.closeConn(a, c, fd)
		return
	}
	if ev&netio.EventRead != 0 {
		n, err := unix.Read(fd, nt.readBuf[:])
		if err != nil && err != unix.EAGAIN {
			nt.closeConn(a, c, fd)
			return
		}
		if n == 0 {
			nt.closeConn(a, c, fd)
			return
		}
		if n > 0 {
			c.touch()
			if c.TLS != nil {
				nt.handleTLSRead(a, c, fd, nt.readBuf[:n])
			} else {
				c.appendRecv(nt.readBuf[:n])
				nt.parseFrames(a, c)
			}
		}
	}
	if ev&netio.EventWrite != 0 {
		nt.flushSend(a, c, fd)
	}
}

// handleTLSRead drives a TLS-terminated connection's handshake/record layer
// (spec §4.5): ciphertext fed in may yield outbound handshake bytes that
// must flush before any plaintext is available, and once established
// yields decrypted application data for the ordinary frame parser.
func (nt *NetThread) handleTLSRead(a *Adapter, c *Connection, fd int, raw []byte) {
	out, err := c.TLS.Read(raw)
	if len(out) > 0 {
		if !c.queueSend(out, 0) {
			nt.closeConn(a, c, fd)
			return
		}
		nt.loop.ModifyFD(fd, netio.EventRead|netio.EventWrite)
	}
	if err != nil {
		telemetry.Category("server").Warn().Err(err).Str("adapter", a.Name).Msg("tls session error, closing connection")
		nt.closeConn(a, c, fd)
		return
	}
	if plain := c.TLS.TakePlaintext(); len(plain) > 0 {
		c.appendRecv(plain)
		nt.parseFrames(a, c)
	}
}

func (nt *NetThread) parseFrames(a *Adapter, c *Connection) {
	parser, ok := wire.Lookup(a.Config.Protocol)
	if !ok {
		telemetry.Category("server").Warn().Str("protocol", a.Config.Protocol).Msg("unknown protocol, closing connection")
		nt.closeConn(a, c, c.FD)
		return
	}
	c.drainRecv(func(buf []byte) int {
		frame, consumed, complete, err := parser.Parse(buf)
		if err != nil {
			telemetry.Category("server").Warn().Err(err).Str("adapter", a.Name).Msg("protocol parse error, closing connection")
			nt.closeConn(a, c, c.FD)
			return 0
		}
		if !complete {
			return 0
		}
		c.markSawRequest()
		nt.dispatch(a, c, frame)
		return consumed
	})
}

func (nt *NetThread) dispatch(a *Adapter, c *Connection, frame []byte) {
	req, err := wire.DecodeRequest(frame)
	if err != nil {
		telemetry.Category("server").Warn().Err(err).Msg("malformed request frame")
		return
	}
	pending := &PendingRequest{Conn: c, Adapter: a, Request: req, Arrival: time.Now()}
	if !a.enqueue(pending) {
		a.overloadCount.Add(1)
		resp := &wire.Response{RequestID: req.RequestID, Ret: wire.ResultServerOverload, ResultDesc: "queue overload"}
		nt.writeResponse(a, c, resp)
	}
}

// submitResponse is the cross-goroutine entry point handle threads use to
// deliver a response: it marshals onto the owning net thread's loop so
// all connection-buffer mutation stays single-threaded (spec §5:
// per-connection state has a single owner).
func (nt *NetThread) submitResponse(a *Adapter, c *Connection, resp *wire.Response) {
	nt.loop.Submit(func() {
		if c.isClosed() {
			return
		}
		nt.writeResponse(a, c, resp)
	})
}

// writeResponse is how a handle thread (via Server.sendResponse and
// submitResponse) or the
// net thread itself (fast-path overload rejection) pushes a response
// frame onto a connection's outbound buffer.
func (nt *NetThread) writeResponse(a *Adapter, c *Connection, resp *wire.Response) {
	frame := wire.Encode(wire.EncodeResponse(resp))
	if c.TLS != nil {
		enc, err := c.TLS.Write(frame)
		if err != nil {
			nt.closeConn(a, c, c.FD)
			return
		}
		frame = enc
	}
	if !c.queueSend(frame, a.Config.BackPacketBuffLimit) {
		nt.closeConn(a, c, c.FD)
		return
	}
	nt.loop.ModifyFD(c.FD, netio.EventRead|netio.EventWrite)
}

func (nt *NetThread) flushSend(a *Adapter, c *Connection, fd int) {
	buf := c.takeSend()
	if len(buf) == 0 {
		nt.loop.ModifyFD(fd, netio.EventRead)
		return
	}
	n, err := unix.Write(fd, buf)
	if err != nil && err != unix.EAGAIN {
		nt.closeConn(a, c, fd)
		return
	}
	if n < len(buf) {
		c.queueSend(buf[n:], 0)
	} else {
		nt.loop.ModifyFD(fd, netio.EventRead)
	}
}

func (nt *NetThread) closeConn(a *Adapter, c *Connection, fd int) {
	if !c.markClosed() {
		return
	}
	nt.loop.UnregisterFD(fd)
	unix.Close(fd)
	a.conns.Remove(c.UID)
	nt.conns.Remove(c.UID)
}

// sweepIdle closes connections that exceeded the empty-connection timeout
// without ever producing a complete request (spec §4.7.2's empty-
// connection-attack defense).
func (nt *NetThread) sweepIdle(a *Adapter) {
	if !a.server.Config.EmptyConCheck {
		return
	}
	now := time.Now()
	var stale []*Connection
	nt.conns.Each(func(c *Connection) {
		if c.Adapter != a {
			return
		}
		if !c.hasSeenRequest() && c.idleFor(now) > a.server.Config.EmptyConnTimeout {
			stale = append(stale, c)
		}
	})
	for _, c := range stale {
		nt.closeConn(a, c, c.FD)
	}
}

func (nt *NetThread) run(stop <-chan struct{}) error {
	return nt.loop.Run(stop, func() {
		for _, a := range nt.server.adapters {
			nt.sweepIdle(a)
		}
	})
}

func (nt *NetThread) close() error {
	return nt.loop.Close()
}

