package server

import (
	"net"
	"sync"
	"time"

	"github.com/zhenshangxin/tars-go/pkg/tlssess"
)

// Connection is one accepted socket (spec §3 Connection). Single-owner: the
// net thread that accepted it drives all reads/writes; other goroutines
// reference it only by uid through the connection table.
type Connection struct {
	UID          uint32
	IP           string
	Port         int
	FD           int
	Conn         net.Conn
	Adapter      *Adapter
	NetThread    *NetThread
	CreatedAt    time.Time
	LastActivity time.Time
	Timeout      time.Duration
	TLS          *tlssess.Session // nil unless the adapter is configured for TLS

	mu          sync.Mutex
	recvBuf     []byte
	sendBuf     []byte
	sawRequest  bool // true once a whole request has been parsed
	closed      bool
}

// touch records activity for idle/empty-connection sweeps.
func (c *Connection) touch() {
	c.mu.Lock()
	c.LastActivity = time.Now()
	c.mu.Unlock()
}

func (c *Connection) idleFor(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.LastActivity)
}

func (c *Connection) markSawRequest() {
	c.mu.Lock()
	c.sawRequest = true
	c.mu.Unlock()
}

func (c *Connection) hasSeenRequest() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sawRequest
}

func (c *Connection) appendRecv(b []byte) {
	c.mu.Lock()
	c.recvBuf = append(c.recvBuf, b...)
	c.mu.Unlock()
}

// drainRecv hands the accumulated receive buffer to fn, which returns the
// number of bytes it consumed; the remainder is kept for the next read.
func (c *Connection) drainRecv(fn func(buf []byte) int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		n := fn(c.recvBuf)
		if n <= 0 {
			break
		}
		c.recvBuf = c.recvBuf[n:]
	}
}

// queueSend appends to the outbound buffer and reports whether it did:
// it returns false, without appending, when the bytes would take the
// buffer past limit (back_packet_buffer_limit, spec §4.7.4), and the
// caller then closes the connection.
func (c *Connection) queueSend(b []byte, limit int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit > 0 && int64(len(c.sendBuf)+len(b)) > limit {
		return false
	}
	c.sendBuf = append(c.sendBuf, b...)
	return true
}

func (c *Connection) takeSend() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.sendBuf
	c.sendBuf = nil
	return b
}

func (c *Connection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Connection) markClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	return true
}

// ConnTable is the per-net-thread connection index keyed by uid.
type ConnTable struct {
	mu    sync.RWMutex
	byUID map[uint32]*Connection
}

func NewConnTable() *ConnTable {
	return &ConnTable{byUID: make(map[uint32]*Connection)}
}

func (t *ConnTable) Add(c *Connection) {
	t.mu.Lock()
	t.byUID[c.UID] = c
	t.mu.Unlock()
}

func (t *ConnTable) Remove(uid uint32) {
	t.mu.Lock()
	delete(t.byUID, uid)
	t.mu.Unlock()
}

func (t *ConnTable) Get(uid uint32) (*Connection, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.byUID[uid]
	return c, ok
}

// Each calls fn for every live connection. fn must not mutate the table.
func (t *ConnTable) Each(fn func(*Connection)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, c := range t.byUID {
		fn(c)
	}
}

func (t *ConnTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byUID)
}
