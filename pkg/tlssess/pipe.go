package tlssess

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"
)

// memPipe is an in-memory net.Conn backed by two byte buffers, standing in
// for the OpenSSL memory BIO pair the original session drove by hand: one
// buffer the session layer feeds inbound wire bytes into for crypto/tls to
// read, one it drains outbound wire bytes from after crypto/tls writes.
//
// crypto/tls only speaks to a net.Conn and offers no manual "feed these
// bytes, tell me what you have so far" stepping API, so Session drives a
// background goroutine against this pipe and uses parked/finished state
// (tracked here) to detect when that goroutine has consumed everything
// currently available and is blocked wanting more — the point at which
// DoHandshake/Read can safely return to the caller.
type memPipe struct {
	mu       sync.Mutex
	cond     *sync.Cond
	inbound  bytes.Buffer // wire bytes fed in, read by the tls.Conn side
	outbound bytes.Buffer // bytes tls.Conn wrote, drained to the wire
	closed   bool
	parked   bool // the driving goroutine is blocked in Read wanting more input
	finished bool // the driving goroutine has exited (handshake done or errored)
}

func newMemPipe() *memPipe {
	p := &memPipe{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// feed appends wire bytes for the driving goroutine to read.
func (p *memPipe) feed(b []byte) {
	p.mu.Lock()
	p.inbound.Write(b)
	p.parked = false
	p.cond.Broadcast()
	p.mu.Unlock()
}

// drain returns and clears whatever was written for the wire.
func (p *memPipe) drain() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.outbound.Len() == 0 {
		return nil
	}
	out := append([]byte(nil), p.outbound.Bytes()...)
	p.outbound.Reset()
	return out
}

// waitSettled blocks until the driving goroutine is parked waiting for
// more input, or has finished (exited its loop), or the pipe is closed.
func (p *memPipe) waitSettled() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.parked && !p.finished && !p.closed {
		p.cond.Wait()
	}
}

// markFinished records that the driving goroutine exited, waking any
// waitSettled caller that would otherwise block forever.
func (p *memPipe) markFinished() {
	p.mu.Lock()
	p.finished = true
	p.cond.Broadcast()
	p.mu.Unlock()
}

func (p *memPipe) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.inbound.Len() == 0 && !p.closed {
		p.parked = true
		p.cond.Broadcast()
		p.cond.Wait()
	}
	p.parked = false
	if p.inbound.Len() == 0 {
		return 0, io.EOF
	}
	return p.inbound.Read(b)
}

func (p *memPipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, net.ErrClosed
	}
	return p.outbound.Write(b)
}

func (p *memPipe) Close() error {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	return nil
}

func (p *memPipe) LocalAddr() net.Addr               { return pipeAddr{} }
func (p *memPipe) RemoteAddr() net.Addr              { return pipeAddr{} }
func (p *memPipe) SetDeadline(t time.Time) error     { return nil }
func (p *memPipe) SetReadDeadline(t time.Time) error { return nil }
func (p *memPipe) SetWriteDeadline(t time.Time) error { return nil }

type pipeAddr struct{}

func (pipeAddr) Network() string { return "mem" }
func (pipeAddr) String() string  { return "mem-bio" }
