package client

import (
	"hash/fnv"

	"github.com/zhenshangxin/tars-go/internal/wire"
)

// completion is one finished invocation waiting for its Callback to run
// on an async-processing thread.
type completion struct {
	req  *RequestMessage
	resp *wire.Response
	err  error
}

// AsyncWorkerPool is spec §4.8.4's M async-response worker threads: each
// owns its own inbound queue so a slow callback on one worker never
// blocks completions destined for another (spec §5: "Async worker:
// blocks on its per-callback inbound queue").
type AsyncWorkerPool struct {
	queues []chan completion
	done   chan struct{}
}

// NewAsyncWorkerPool starts n worker goroutines, each draining its own
// buffered channel until Stop is called.
func NewAsyncWorkerPool(n int) *AsyncWorkerPool {
	if n < 1 {
		n = 1
	}
	p := &AsyncWorkerPool{
		queues: make([]chan completion, n),
		done:   make(chan struct{}),
	}
	for i := range p.queues {
		p.queues[i] = make(chan completion, 256)
		go p.runWorker(p.queues[i])
	}
	return p
}

func (p *AsyncWorkerPool) runWorker(q chan completion) {
	for {
		select {
		case c := <-q:
			c.req.complete(c.resp, c.err)
		case <-p.done:
			return
		}
	}
}

// dispatch routes req's outcome onto a worker chosen by hashing
// req.RequestID. Completions of different requests made through the same
// Callback may land on different workers and are not ordered relative to
// each other.
func (p *AsyncWorkerPool) dispatch(req *RequestMessage, resp *wire.Response, err error) {
	idx := workerIndex(req.RequestID, len(p.queues))
	p.queues[idx] <- completion{req: req, resp: resp, err: err}
}

func workerIndex(requestID uint32, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	var b [4]byte
	b[0] = byte(requestID)
	b[1] = byte(requestID >> 8)
	b[2] = byte(requestID >> 16)
	b[3] = byte(requestID >> 24)
	h.Write(b[:])
	return int(h.Sum32()) % n
}

// Stop terminates every worker goroutine. Queued-but-undelivered
// completions are dropped.
func (p *AsyncWorkerPool) Stop() {
	close(p.done)
}
