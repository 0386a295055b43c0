// Package client implements the client-side asynchronous invocation
// engine of spec §4.8: a communicator owning N epoll-driven network
// threads, each sharding a set of object proxies that perform
// consistent-hash/round-robin/static routing over a timeout-indexed
// pending-request registry, with M async-response worker threads
// dispatching completions off the network threads' own goroutines.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/google/uuid"

	"github.com/zhenshangxin/tars-go/internal/telemetry"
	"github.com/zhenshangxin/tars-go/internal/wire"
	"github.com/zhenshangxin/tars-go/pkg/singleton"
)

// Locator resolves a servant name (optionally qualified by a set
// division, spec glossary "Set division") to its current endpoint list.
// The spec scopes the network locator client out (Non-goals: "remote
// ... config clients"); this interface is the seam a real implementation
// plugs into, and StaticLocator below covers the common configured-
// endpoint-list case without one.
type Locator interface {
	Resolve(servant, setDivision string) ([]Endpoint, error)
}

// StaticLocator resolves every servant from a fixed, caller-supplied
// table — the "static" routing mode's natural backing, and a stand-in
// for tests/examples that don't run a locator service.
type StaticLocator map[string][]Endpoint

func (m StaticLocator) Resolve(servant, _ string) ([]Endpoint, error) {
	eps, ok := m[servant]
	if !ok {
		return nil, ErrNoEndpoint
	}
	return eps, nil
}

// ServantOptions configures per-servant routing/auth, set once before the
// servant's first invocation (normally at bootstrap, mirroring how the
// server binds adapters before Start).
type ServantOptions struct {
	Routing     RoutingMode
	SetDivision string
	Credentials *Credentials // nil unless the servant's adapter configured ak/sk
}

// Communicator is spec §4.8.1's client-side singleton-like root: N
// network threads, a stats reporter, and the servant configuration table
// invocations are routed through.
type Communicator struct {
	Config  *Config
	locator Locator

	threads      []*NetworkThread
	asyncWorkers *AsyncWorkerPool
	stats        *StatReporter

	mu       sync.RWMutex
	servants map[string]ServantOptions

	stop    chan struct{}
	stopped sync.Once
	wg      errgroup.Group
}

// communicatorRegistry is the factory-keyed-by-name singleton table spec
// §4.8.1 describes ("created by a factory keyed by name"): distinct names
// get independent Communicators; the same name reuses the prior one via
// pkg/singleton's double-checked Get.
var communicatorRegistry = struct {
	mu        sync.Mutex
	instances map[string]*singleton.Instance[Communicator]
}{instances: make(map[string]*singleton.Instance[Communicator])}

// GetCommunicator returns the named Communicator, constructing it (and
// its network threads) on first use. cfg and locator are only consulted
// on that first construction; subsequent calls with the same name ignore
// them, matching the factory-by-name singleton contract.
func GetCommunicator(name string, cfg *Config, locator Locator) (*Communicator, error) {
	communicatorRegistry.mu.Lock()
	inst, ok := communicatorRegistry.instances[name]
	if !ok {
		inst = singleton.New(func() *Communicator {
			c, err := newCommunicator(cfg, locator)
			if err != nil {
				// singleton.Instance has no error-returning factory slot;
				// a construction failure here is a fatal bootstrap
				// condition the caller must have already validated (bind
				// failures have no client-side analogue: network threads
				// only ever open a poller/wakeup fd pair).
				panic(err)
			}
			return c
		}, singleton.Default)
		communicatorRegistry.instances[name] = inst
	}
	communicatorRegistry.mu.Unlock()
	return inst.Get()
}

func newCommunicator(cfg *Config, locator Locator) (*Communicator, error) {
	if locator == nil {
		locator = StaticLocator{}
	}
	c := &Communicator{
		Config:       cfg,
		locator:      locator,
		asyncWorkers: NewAsyncWorkerPool(cfg.AsyncThread),
		stats:        NewStatReporter(NopStatSink{}, cfg.ReportInterval, cfg.MaxSampleCount),
		servants:     make(map[string]ServantOptions),
		stop:         make(chan struct{}),
	}
	for i := 0; i < cfg.NetThread; i++ {
		nt, err := newNetworkThread(i, c)
		if err != nil {
			return nil, fmt.Errorf("client: new network thread: %w", err)
		}
		c.threads = append(c.threads, nt)
	}
	return c, nil
}

// SetStatSink installs a real stat sink (e.g. one wired to Config.Stat)
// before Start.
func (c *Communicator) SetStatSink(sink StatSink) {
	c.stats = NewStatReporter(sink, c.Config.ReportInterval, c.Config.MaxSampleCount)
}

// Configure registers routing/auth options for servant before its first
// invocation.
func (c *Communicator) Configure(servant string, opts ServantOptions) {
	c.mu.Lock()
	c.servants[servant] = opts
	c.mu.Unlock()
}

func (c *Communicator) routingFor(servant string) RoutingMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.servants[servant].Routing
}

func (c *Communicator) credentialsFor(servant string) *Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.servants[servant].Credentials
}

func (c *Communicator) setDivisionFor(servant string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.servants[servant].SetDivision
}

func (c *Communicator) authFailed(servant string) {
	telemetry.Category("client").Warn().Str("servant", servant).Msg("auth handshake failed")
}

// staticEndpoints is consulted once, at proxy creation, so a servant
// configured against a StaticLocator gets its endpoints immediately
// rather than waiting for the first refresh tick.
func (c *Communicator) staticEndpoints(servant string) []Endpoint {
	eps, err := c.resolveEndpoints(servant, c.setDivisionFor(servant))
	if err != nil {
		return nil
	}
	return eps
}

func (c *Communicator) resolveEndpoints(servant, setDivision string) ([]Endpoint, error) {
	return c.locator.Resolve(servant, setDivision)
}

// threadFor shards servant across the communicator's network threads by
// a simple string hash, so the same servant always lands on the same
// thread (and thus the same ObjectProxy instance) for the lifetime of the
// process.
func (c *Communicator) threadFor(servant string) *NetworkThread {
	var h uint32 = 2166136261
	for i := 0; i < len(servant); i++ {
		h ^= uint32(servant[i])
		h *= 16777619
	}
	return c.threads[int(h)%len(c.threads)]
}

// Invoke performs a synchronous call, blocking until the response
// arrives, the deadline passes, or ctx is cancelled.
func (c *Communicator) Invoke(ctx context.Context, servant, method string, payload []byte, hashKey string) (*wire.Response, error) {
	nt := c.threadFor(servant)
	id := nt.ids.Next()
	timeout := c.Config.SyncInvokeTimeout
	req := newSyncRequest(id, servant, method, payload, timeout, hashKey)
	req.DyeingKey = DyeingKey(ctx)
	req.DyeingFlag = req.DyeingKey != "" // true only for an explicit tars.setdyeing-style key
	if req.DyeingKey == "" {
		// No explicit dyeing key: still stamp one so every outbound
		// request carries a correlation id a log line can be grepped for
		// (spec SPEC_FULL.md domain stack: "dyeing-key generation when a
		// client call doesn't supply one explicitly").
		req.DyeingKey = NewDyeingKey()
	}

	start := time.Now()
	nt.Submit(func() { nt.invoke(servant, c.setDivisionFor(servant), req) })

	select {
	case <-req.done:
		c.stats.Record(servant, method, time.Since(start), req.err == ErrInvokeTimeout, req.err != nil && req.err != ErrInvokeTimeout)
		return req.resp, req.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// InvokeAsync performs an asynchronous call: cb runs on one of the
// communicator's async-response workers once the response, a transport
// error, or a timeout occurs (spec §4.8.4). Whether cb can run on the
// network thread itself before InvokeAsync returns (when the response is
// already available) is left unresolved by the source (spec §9 open
// question); this implementation always dispatches through the async
// worker pool, never inline, so callers observe a consistent ordering
// regardless of how fast the peer replies.
func (c *Communicator) InvokeAsync(ctx context.Context, servant, method string, payload []byte, hashKey string, cb Callback) {
	nt := c.threadFor(servant)
	id := nt.ids.Next()
	req := newAsyncRequest(id, servant, method, payload, c.Config.AsyncInvokeTimeout, hashKey, cb)
	req.DyeingKey = DyeingKey(ctx)
	req.DyeingFlag = req.DyeingKey != "" // true only for an explicit tars.setdyeing-style key
	if req.DyeingKey == "" {
		// No explicit dyeing key: still stamp one so every outbound
		// request carries a correlation id a log line can be grepped for
		// (spec SPEC_FULL.md domain stack: "dyeing-key generation when a
		// client call doesn't supply one explicitly").
		req.DyeingKey = NewDyeingKey()
	}
	nt.Submit(func() { nt.invoke(servant, c.setDivisionFor(servant), req) })
}

// NewDyeingKey mints a fresh per-request dyeing key when a call doesn't
// supply its own (grounded on the pack's UUIDv7 span-id generator).
func NewDyeingKey() string {
	id, err := uuid.NewV7()
	if err != nil {
		return ""
	}
	return id.String()
}

// Start launches every network thread's loop and the stats reporter.
func (c *Communicator) Start() {
	for _, nt := range c.threads {
		nt := nt
		c.wg.Go(func() error { return nt.run(c.stop) })
	}
	c.stats.Start()
}

// Close signals every network thread to stop, joins them, closes their
// loops, then stops the stats reporter and the async workers. Completions
// still queued on the async workers are dropped, and requests still
// pending are not completed.
func (c *Communicator) Close() error {
	var err error
	c.stopped.Do(func() {
		close(c.stop)
		_ = c.wg.Wait()
		for _, nt := range c.threads {
			if e := nt.close(); e != nil && err == nil {
				err = e
			}
		}
		c.stats.Stop()
		c.asyncWorkers.Stop()
	})
	return err
}
