package client

import (
	"time"

	"github.com/zhenshangxin/tars-go/internal/wire"
	"github.com/zhenshangxin/tars-go/pkg/timeoutreg"
)

// ObjectProxy is spec §3's one-per-(network-thread, servant-name) client
// handle: its own endpoint set, optional consistent-hash ring, and the
// timeout-indexed registry of its outstanding async calls. Every method
// here runs on the owning NetworkThread's loop goroutine only — spec §5:
// "per object-proxy, all endpoint-state mutations are serialized on its
// owning network thread."
type ObjectProxy struct {
	Servant       string
	SetDivision   string
	thread        *NetworkThread
	endpoints     *EndpointSet
	router        *router
	pending       *timeoutreg.Registry[uint32, *RequestMessage]
	refreshAt     time.Time
	invokeTimeout time.Duration

	conns map[string]*proxyConn // keyed by endpoint addr, dialed lazily
}

// proxyConn is one outbound TCP connection this proxy holds open to a
// remote endpoint, owned exclusively by the proxy's network thread.
type proxyConn struct {
	ep      Endpoint
	fd      int
	recvBuf []byte
	sendBuf []byte
	authed  bool
}

func newObjectProxy(nt *NetworkThread, servant, setDivision string, mode RoutingMode, invokeTimeout time.Duration) *ObjectProxy {
	return &ObjectProxy{
		Servant:       servant,
		SetDivision:   setDivision,
		thread:        nt,
		endpoints:     NewEndpointSet(),
		router:        newRouter(mode),
		pending:       timeoutreg.New[uint32, *RequestMessage](),
		invokeTimeout: invokeTimeout,
		conns:         make(map[string]*proxyConn),
	}
}

// refreshEndpoints replaces the proxy's endpoint set and, in
// ConsistentHash mode, rebuilds the hash ring over the new active set
// (spec §4.8.3's refresh cadence).
func (p *ObjectProxy) refreshEndpoints(eps []Endpoint, now time.Time) {
	p.endpoints.Refresh(eps)
	p.router.rebuildRing(p.endpoints.Active())
	p.refreshAt = now
}

// selectEndpoint chooses a target endpoint for hashKey per the proxy's
// routing mode, returning ErrNoEndpoint if the active set is empty.
func (p *ObjectProxy) selectEndpoint(hashKey string) (Endpoint, error) {
	ep, ok := p.router.Select(p.endpoints.Active(), hashKey)
	if !ok {
		return Endpoint{}, ErrNoEndpoint
	}
	return ep, nil
}

// registerPending indexes req by its request id so a later response or
// the timeout sweep can find it (spec §4.8.4).
func (p *ObjectProxy) registerPending(req *RequestMessage) error {
	if err := p.pending.Push(req.RequestID, req); err != nil {
		return wrapf("register pending request %d: %w", req.RequestID, err)
	}
	return nil
}

// completeResponse looks up and erases the pending request for resp's id
// and invokes its completion (spec §4.8.4: "Completion ... looks up the
// id, marks it popped, and dispatches the callback").
func (p *ObjectProxy) completeResponse(resp *wire.Response) {
	req, ok := p.pending.Get(resp.RequestID, true)
	if !ok {
		return // late or already-timed-out response; nothing to deliver to
	}
	p.endpoints.MarkSuccess(req.Endpoint.Addr())
	p.thread.dispatchCompletion(req, resp, nil)
}

// sweepTimeouts removes and fails every pending request older than
// timeout, marking its endpoint as a failure (spec §4.8.3 / §5:
// "cancellation ... by timeout only").
func (p *ObjectProxy) sweepTimeouts(thresholdMs int64) {
	expired := p.pending.Timeout(thresholdMs)
	for _, req := range expired {
		p.endpoints.MarkFailure(req.Endpoint.Addr(), time.Now())
		p.thread.dispatchCompletion(req, nil, ErrInvokeTimeout)
	}
}

// closeConn drops a dialed connection's bookkeeping; the socket itself is
// closed by the caller (NetworkThread owns the fd/loop registration).
func (p *ObjectProxy) closeConn(addr string) {
	delete(p.conns, addr)
}
