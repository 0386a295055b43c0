// Package server implements the listen-adapter / net-thread / handle-
// thread engine described in spec §4.7: bounded per-adapter receive
// queues, epoll-driven net threads (internal/netio), handle-thread pools,
// ACL filtering, and the admin command surface.
package server

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zhenshangxin/tars-go/internal/telemetry"
	"github.com/zhenshangxin/tars-go/internal/wire"
)

// Server is the process-wide server core: every bound adapter, the net-
// thread pool driving their sockets, and the handle groups that serve
// requests off their queues.
type Server struct {
	Config *ServerConfig

	adapters     map[string]*Adapter
	handleGroups map[string]*HandleGroup
	netThreads   []*NetThread
	admin        *AdminRegistry
	state        *StateFile

	stop    chan struct{}
	stopped sync.Once
	wg      errgroup.Group
}

// New assembles a Server from a loaded ServerConfig: binds every adapter's
// listener, builds handle groups, and distributes adapters round-robin
// across the configured net-thread count. Returns a *BootstrapError on
// any fatal setup failure (spec §6's nonzero-exit-code contract).
func New(cfg *ServerConfig) (*Server, error) {
	s := &Server{
		Config:       cfg,
		adapters:     make(map[string]*Adapter),
		handleGroups: make(map[string]*HandleGroup),
		admin:        NewAdminRegistry(),
		stop:         make(chan struct{}),
	}
	s.registerBuiltinCommands()

	state, err := LoadStateFile(cfg.DataPath, cfg.Server)
	if err != nil {
		return nil, &BootstrapError{Stage: "state file", Err: err}
	}
	s.state = state
	if lvl, ok := state.Values["logLevel"]; ok {
		if parsed, err := telemetry.ParseLevel(lvl); err == nil {
			telemetry.SetLevel(parsed)
		}
	}

	for i := 0; i < cfg.NetThread; i++ {
		nt, err := newNetThread(i, s)
		if err != nil {
			return nil, &BootstrapError{Stage: "net thread", Err: err}
		}
		s.netThreads = append(s.netThreads, nt)
	}

	for _, ac := range cfg.Adapters {
		a, err := NewAdapter(s, ac)
		if err != nil {
			return nil, err
		}
		s.adapters[a.Name] = a

		nt := s.netThreads[len(s.adapters)%len(s.netThreads)]
		if err := nt.bindListener(a); err != nil {
			return nil, &BootstrapError{Stage: "adapter " + a.Name, Err: wrapf("%w: %v", ErrBindFailed, err)}
		}

		g, ok := s.handleGroups[ac.HandleGroup]
		if !ok {
			threads := ac.Threads
			if threads <= 0 {
				threads = 1
			}
			g = NewHandleGroup(ac.HandleGroup, threads)
			s.handleGroups[ac.HandleGroup] = g
		}
		g.AddAdapter(a)
	}

	return s, nil
}

// RegisterServant binds h as the handler for servant within adapter's
// handle group. Must be called before Start.
func (s *Server) RegisterServant(adapterName, servant string, h ServantHandler) error {
	a, ok := s.adapters[adapterName]
	if !ok {
		return ErrAdapterNotFound
	}
	g := s.handleGroups[a.Config.HandleGroup]
	g.Register(servant, h)
	return nil
}

// Start launches every net thread and handle group. Non-blocking; call
// Terminate (directly, or via a signal handler in cmd/tarsd) to shut
// down.
func (s *Server) Start() {
	for _, nt := range s.netThreads {
		nt := nt
		s.wg.Go(func() error {
			return nt.run(s.stop)
		})
	}
	for _, g := range s.handleGroups {
		g.Start(s.stop)
	}
}

// sendResponse routes a handle thread's completed response back to the
// connection's owning net thread.
func (s *Server) sendResponse(a *Adapter, c *Connection, resp *wire.Response) {
	c.NetThread.submitResponse(a, c, resp)
}

// Terminate signals all net threads to stop and joins them, closes their
// loops and the adapters' listeners, then stops every handle group
// (joining its handle threads). Handle-group queues are not drained:
// requests still queued when the handle threads stop are not served.
func (s *Server) Terminate() error {
	var err error
	s.stopped.Do(func() {
		close(s.stop)
		_ = s.wg.Wait()
		for _, nt := range s.netThreads {
			if e := nt.close(); e != nil && err == nil {
				err = e
			}
		}
		for _, a := range s.adapters {
			_ = a.listener.Close()
		}
		for _, g := range s.handleGroups {
			g.Stop()
		}
	})
	return err
}

// AdminCommand executes a registered admin command by name (spec §4.7.5 /
// §6).
func (s *Server) AdminCommand(name, args string) (string, error) {
	return s.admin.Execute(s, name, args)
}
