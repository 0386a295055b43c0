package server

import (
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zhenshangxin/tars-go/internal/telemetry"
	"github.com/zhenshangxin/tars-go/internal/wire"
)

// ServantHandler is user application code bound to a servant name,
// invoked for every whole request routed to it (spec §4.7.3).
type ServantHandler func(req *wire.Request) (*wire.Response, error)

// HandleGroup is a pool of worker threads shared by one or more adapters
// (spec glossary "Handle group"). Adapters sharing a group name drain the
// same logical set of queues; the group runs its configured number of
// handle threads on each adapter queue.
type HandleGroup struct {
	Name     string
	adapters []*Adapter
	handlers map[string]ServantHandler // servant name -> handler
	mu       sync.RWMutex

	threads int
	wg      errgroup.Group
}

// NewHandleGroup creates an empty group; adapters are attached via
// AddAdapter once bound.
func NewHandleGroup(name string, threads int) *HandleGroup {
	if threads < 1 {
		threads = 1
	}
	return &HandleGroup{Name: name, threads: threads, handlers: make(map[string]ServantHandler)}
}

// Register binds a servant's handler, replacing any handler already
// registered for that servant. It may be called at any time, including
// after the group has started.
func (g *HandleGroup) Register(servant string, h ServantHandler) {
	g.mu.Lock()
	g.handlers[servant] = h
	g.mu.Unlock()
}

func (g *HandleGroup) handlerFor(servant string) (ServantHandler, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	h, ok := g.handlers[servant]
	return h, ok
}

func (g *HandleGroup) AddAdapter(a *Adapter) {
	g.adapters = append(g.adapters, a)
}

// Start launches threads workers per adapter queue in this group.
func (g *HandleGroup) Start(stop <-chan struct{}) {
	for _, a := range g.adapters {
		for i := 0; i < g.threads; i++ {
			a := a
			g.wg.Go(func() error {
				g.runWorker(a, stop)
				return nil
			})
		}
	}
}

func (g *HandleGroup) runWorker(a *Adapter, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		pending, ok := a.recvQ.Pop()
		if !ok {
			return
		}
		g.serve(a, pending)
	}
}

func (g *HandleGroup) serve(a *Adapter, p *PendingRequest) {
	if time.Since(p.Arrival) > a.Config.QueueTimeout {
		a.timeoutCount.Add(1)
		g.reply(a, p, &wire.Response{RequestID: p.Request.RequestID, Ret: wire.ResultServerQueueTimeout, ResultDesc: "queue timeout"})
		return
	}

	h, ok := g.handlerFor(p.Request.ServantName)
	if !ok {
		g.reply(a, p, &wire.Response{RequestID: p.Request.RequestID, Ret: wire.ResultServerNoServant, ResultDesc: "no such servant"})
		return
	}

	resp, err := g.invoke(h, p.Request)
	if err != nil {
		telemetry.Category("server").Warn().Err(err).Str("servant", p.Request.ServantName).Msg("handler error")
		resp = &wire.Response{RequestID: p.Request.RequestID, Ret: wire.ResultServerDecodeError, ResultDesc: err.Error()}
	}
	g.reply(a, p, resp)
}

// invoke recovers from a handler panic into a structured error response
// (spec §7: "handler exception ... caught at handle-thread boundary").
func (g *HandleGroup) invoke(h ServantHandler, req *wire.Request) (resp *wire.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = wrapf("handler panic: %v", r)
		}
	}()
	return h(req)
}

func (g *HandleGroup) reply(a *Adapter, p *PendingRequest, resp *wire.Response) {
	if resp == nil {
		return
	}
	a.server.sendResponse(a, p.Conn, resp)
}

// Stop waits for all workers in the group to return (after their
// adapters' queues are closed).
func (g *HandleGroup) Stop() {
	for _, a := range g.adapters {
		a.recvQ.Close()
	}
	g.wg.Wait()
}
