package client

import (
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/zhenshangxin/tars-go/internal/netio"
	"github.com/zhenshangxin/tars-go/internal/telemetry"
	"github.com/zhenshangxin/tars-go/internal/wire"
	"github.com/zhenshangxin/tars-go/pkg/timeoutreg"
)

// NetworkThread is spec §4.8.2's per-network-thread engine: it owns a
// shard of the communicator's object proxies (so every proxy's endpoint
// and pending-registry state is single-threaded, per spec §5), and its
// own epoll loop. Invocations from arbitrary caller goroutines are routed
// in via Loop.Submit — the "wakeup-fd-backed inbox" the spec names.
type NetworkThread struct {
	idx     int
	loop    *netio.Loop
	comm    *Communicator
	ids     timeoutreg.IDGenerator
	proxies map[string]*ObjectProxy // keyed by servant+"|"+setDivision

	readBuf [64 * 1024]byte
}

// defaultClientFDCap sizes a network thread's fd table: a client dials far
// fewer sockets than a server adapter accepts, and Config has no
// maxconns-equivalent to derive a hint from, so this is a fixed estimate
// rather than config-driven (unlike the server's perThreadFDCap).
const defaultClientFDCap = 256

func newNetworkThread(idx int, c *Communicator) (*NetworkThread, error) {
	loop, err := netio.New(250*time.Millisecond, defaultClientFDCap)
	if err != nil {
		return nil, err
	}
	return &NetworkThread{idx: idx, loop: loop, comm: c, proxies: make(map[string]*ObjectProxy)}, nil
}

func proxyKey(servant, setDivision string) string { return servant + "|" + setDivision }

// proxyFor returns (creating if absent) this thread's ObjectProxy for
// (servant, setDivision). Must only be called on the loop goroutine.
func (nt *NetworkThread) proxyFor(servant, setDivision string) *ObjectProxy {
	key := proxyKey(servant, setDivision)
	p, ok := nt.proxies[key]
	if !ok {
		p = newObjectProxy(nt, servant, setDivision, nt.comm.routingFor(servant), nt.comm.Config.SyncInvokeTimeout)
		nt.proxies[key] = p
		if eps := nt.comm.staticEndpoints(servant); len(eps) > 0 {
			p.refreshEndpoints(eps, time.Now())
		}
	}
	return p
}

// Submit marshals fn onto this thread's own goroutine (spec §4.8.2: any
// caller thread may invoke; the proxy it targets only ever mutates on its
// owning thread).
func (nt *NetworkThread) Submit(fn func()) { nt.loop.Submit(fn) }

// invoke is the Submit-scheduled body of a user call: pick an endpoint,
// dial/reuse its connection, register the pending request, and write the
// frame. Errors are delivered through the request's own completion path
// rather than returned, since this always runs off the caller's stack
// (spec §7: never let a worker-thread error escape unconverted).
func (nt *NetworkThread) invoke(servant, setDivision string, req *RequestMessage) {
	p := nt.proxyFor(servant, setDivision)

	ep, err := p.selectEndpoint(req.HashKey)
	if err != nil {
		p.thread.dispatchCompletion(req, nil, err)
		return
	}
	req.Endpoint = ep

	pc, err := nt.dial(p, ep)
	if err != nil {
		p.endpoints.MarkFailure(ep.Addr(), time.Now())
		p.thread.dispatchCompletion(req, nil, err)
		return
	}

	if err := p.registerPending(req); err != nil {
		p.thread.dispatchCompletion(req, nil, err)
		return
	}

	frame := wire.Encode(wire.EncodeRequest(req.toWire()))
	nt.queueWrite(pc, frame)
}

// dial returns the live connection to ep for proxy p, establishing one
// (and, if configured, starting the ak/sk auth handshake) if none exists
// yet.
func (nt *NetworkThread) dial(p *ObjectProxy, ep Endpoint) (*proxyConn, error) {
	if pc, ok := p.conns[ep.Addr()]; ok {
		return pc, nil
	}

	network := ep.Proto
	if network == "" {
		network = "tcp"
	}
	conn, err := net.DialTimeout(network, ep.Addr(), ep.Timeout)
	if err != nil {
		return nil, wrapf("%w: %v", ErrConnectRefused, err)
	}
	fd, err := connFD(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	pc := &proxyConn{ep: ep, fd: fd}
	creds := nt.comm.credentialsFor(p.Servant)
	pc.authed = creds == nil

	if err := nt.loop.RegisterFD(fd, netio.EventRead, func(ev netio.IOEvents) {
		nt.handleIO(p, pc, ev)
	}); err != nil {
		unix.Close(fd)
		return nil, err
	}
	p.conns[ep.Addr()] = pc

	if creds != nil {
		nt.queueWrite(pc, wire.Encode(buildAuthChallenge(creds)))
	}
	return pc, nil
}

func (nt *NetworkThread) queueWrite(pc *proxyConn, frame []byte) {
	pc.sendBuf = append(pc.sendBuf, frame...)
	nt.loop.ModifyFD(pc.fd, netio.EventRead|netio.EventWrite)
}

func (nt *NetworkThread) handleIO(p *ObjectProxy, pc *proxyConn, ev netio.IOEvents) {
	if ev&(netio.EventError|netio.EventHangup) != 0 {
		nt.closeConn(p, pc)
		return
	}
	if ev&netio.EventRead != 0 {
		n, err := unix.Read(pc.fd, nt.readBuf[:])
		if err != nil && err != unix.EAGAIN {
			nt.closeConn(p, pc)
			return
		}
		if n == 0 {
			nt.closeConn(p, pc)
			return
		}
		if n > 0 {
			pc.recvBuf = append(pc.recvBuf, nt.readBuf[:n]...)
			nt.parseFrames(p, pc)
		}
	}
	if ev&netio.EventWrite != 0 {
		nt.flushSend(p, pc)
	}
}

func (nt *NetworkThread) parseFrames(p *ObjectProxy, pc *proxyConn) {
	parser, _ := wire.Lookup("tars")
	for {
		frame, consumed, complete, err := parser.Parse(pc.recvBuf)
		if err != nil {
			telemetry.Category("client").Warn().Err(err).Str("servant", p.Servant).Msg("protocol parse error, closing connection")
			nt.closeConn(p, pc)
			return
		}
		if !complete {
			return
		}
		pc.recvBuf = pc.recvBuf[consumed:]

		if !pc.authed {
			if ok := verifyAuthReply(frame); !ok {
				p.thread.comm.authFailed(p.Servant)
				nt.closeConn(p, pc)
				return
			}
			pc.authed = true
			continue
		}

		resp, err := wire.DecodeResponse(frame)
		if err != nil {
			telemetry.Category("client").Warn().Err(err).Msg("malformed response frame")
			continue
		}
		p.completeResponse(resp)
	}
}

func (nt *NetworkThread) flushSend(p *ObjectProxy, pc *proxyConn) {
	if len(pc.sendBuf) == 0 {
		nt.loop.ModifyFD(pc.fd, netio.EventRead)
		return
	}
	n, err := unix.Write(pc.fd, pc.sendBuf)
	if err != nil && err != unix.EAGAIN {
		nt.closeConn(p, pc)
		return
	}
	pc.sendBuf = pc.sendBuf[n:]
	if len(pc.sendBuf) == 0 {
		nt.loop.ModifyFD(pc.fd, netio.EventRead)
	}
}

func (nt *NetworkThread) closeConn(p *ObjectProxy, pc *proxyConn) {
	nt.loop.UnregisterFD(pc.fd)
	unix.Close(pc.fd)
	p.closeConn(pc.ep.Addr())
	p.endpoints.MarkFailure(pc.ep.Addr(), time.Now())
}

// dispatchCompletion hands req's outcome to its owning thread's async
// workers (spec §4.8.4: "dispatches the callback onto one of M async-
// processing threads"); a synchronous caller's complete() is itself
// just a channel close, safe to run inline.
func (nt *NetworkThread) dispatchCompletion(req *RequestMessage, resp *wire.Response, err error) {
	if req.Callback == nil {
		req.complete(resp, err)
		return
	}
	nt.comm.asyncWorkers.dispatch(req, resp, err)
}

// tick runs once per loop iteration: endpoint refresh, timeout sweeping,
// and inactive-endpoint probing (spec §4.7.2 / §4.8.3's periodic
// maintenance driven off the loop's idle-poll timeout).
func (nt *NetworkThread) tick() {
	now := time.Now()
	for _, p := range nt.proxies {
		if now.Sub(p.refreshAt) >= nt.comm.Config.RefreshEndpoint {
			if eps, err := nt.comm.resolveEndpoints(p.Servant, p.SetDivision); err == nil && eps != nil {
				p.refreshEndpoints(eps, now)
			}
		}
		p.sweepTimeouts(p.invokeTimeout.Milliseconds())
		for _, ep := range p.endpoints.DueForProbe(now) {
			if _, err := nt.dial(p, ep); err == nil {
				p.endpoints.MarkSuccess(ep.Addr())
			}
		}
	}
}

func (nt *NetworkThread) run(stop <-chan struct{}) error {
	return nt.loop.Run(stop, nt.tick)
}

func (nt *NetworkThread) close() error { return nt.loop.Close() }
