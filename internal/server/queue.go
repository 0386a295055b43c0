package server

import (
	"sync"
	"time"

	"github.com/zhenshangxin/tars-go/internal/wire"
	"github.com/zhenshangxin/tars-go/pkg/loopqueue"
)

// PendingRequest is a whole request parsed off a connection, tagged with
// its arrival time so the handle thread can apply queue-timeout shedding
// (spec §4.7.3).
type PendingRequest struct {
	Conn    *Connection
	Adapter *Adapter
	Request *wire.Request
	Arrival time.Time
}

// AdapterQueue wraps pkg/loopqueue.Queue with the external locking spec
// §4.2 requires for multi-producer/multi-consumer use: every adapter may
// be fed by several net threads and drained by several handle threads in
// its handle group.
type AdapterQueue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	queue *loopqueue.Queue[*PendingRequest]
	closed bool
}

func NewAdapterQueue(capacity int) *AdapterQueue {
	q := &AdapterQueue{queue: loopqueue.New[*PendingRequest](capacity)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues req. Returns false if the queue is at capacity (spec
// §4.7.4: enqueue failure means the sender gets a server-overload reply).
func (q *AdapterQueue) Push(req *PendingRequest) bool {
	q.mu.Lock()
	ok, wasEmpty := q.queue.PushBack(req)
	if ok && wasEmpty {
		q.cond.Signal()
	}
	q.mu.Unlock()
	return ok
}

// Pop blocks until an entry is available or the queue is closed, in which
// case ok is false.
func (q *AdapterQueue) Pop() (req *PendingRequest, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if v, popped := q.queue.PopFront(); popped {
			return v, true
		}
		if q.closed {
			return nil, false
		}
		q.cond.Wait()
	}
}

func (q *AdapterQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *AdapterQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queue.Len()
}
