// Package tlssess implements the per-connection TLS record-layer wrapper
// of spec §4.5: a state machine (FRESH -> HANDSHAKING -> ESTABLISHED or
// ERROR) driving a handshake and record layer over in-memory BIOs.
//
// Go's crypto/tls has no OpenSSL-style manual memory-BIO stepping API, so
// the memory-BIO substrate is reconstructed literally (pkg/tlssess/pipe.go)
// and crypto/tls is driven against it from a background goroutine; the
// exported Session methods stay in the spec's "feed bytes in, get bytes
// out" shape regardless.
package tlssess

import (
	"crypto/tls"
	"errors"
	"sync"
)

// State is the session's handshake/record-layer state.
type State int

const (
	Fresh State = iota
	Handshaking
	Established
	Errored
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "FRESH"
	case Handshaking:
		return "HANDSHAKING"
	case Established:
		return "ESTABLISHED"
	case Errored:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role selects which side of the handshake a Session plays.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

// Session wraps one connection's TLS state. It is not safe for concurrent
// use from multiple goroutines; the owning connection/net-thread serializes
// calls.
type Session struct {
	mu    sync.Mutex
	state State
	err   error

	pipe *memPipe
	conn *tls.Conn

	driverStarted bool

	plainMu  sync.Mutex
	plainBuf []byte
}

// New creates a fresh session. config is the standard library TLS
// configuration (certificates, client-auth policy, etc.).
func New(role Role, config *tls.Config) *Session {
	pipe := newMemPipe()
	var conn *tls.Conn
	if role == RoleServer {
		conn = tls.Server(pipe, config)
	} else {
		conn = tls.Client(pipe, config)
	}
	return &Session{pipe: pipe, conn: conn, state: Fresh}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that moved the session to Errored, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// DoHandshake feeds wire bytes in, drives the handshake, and returns any
// outgoing TLS records produced in response. established reports whether
// the handshake completed as a result of this call.
func (s *Session) DoHandshake(in []byte) (outbound []byte, established bool, err error) {
	s.mu.Lock()
	if s.state == Errored {
		err = s.err
		s.mu.Unlock()
		return nil, false, err
	}
	if s.state == Established {
		s.mu.Unlock()
		return nil, true, nil
	}
	s.state = Handshaking
	if !s.driverStarted {
		s.driverStarted = true
		go s.runHandshake()
	}
	s.mu.Unlock()

	if len(in) > 0 {
		s.pipe.feed(in)
	}
	s.pipe.waitSettled()

	s.mu.Lock()
	defer s.mu.Unlock()
	outbound = s.pipe.drain()
	if s.state == Errored {
		return outbound, false, s.err
	}
	return outbound, s.state == Established, nil
}

// runHandshake drives conn.Handshake() to completion in the background;
// waitSettled() observes its parked/finished transitions. Once the
// handshake succeeds, it hands off to runDecryptLoop for application data.
func (s *Session) runHandshake() {
	err := s.conn.Handshake()

	s.mu.Lock()
	if err != nil {
		s.state = Errored
		s.err = classifyError(err)
		s.mu.Unlock()
		s.pipe.markFinished()
		return
	}
	s.state = Established
	s.mu.Unlock()

	go s.runDecryptLoop()
}

// runDecryptLoop continuously reads and decrypts application data,
// accumulating plaintext into a buffer TakePlaintext drains (spec: "may
// have application data queued which must be decrypted... accumulated in
// a per-session buffer the caller can take").
func (s *Session) runDecryptLoop() {
	buf := make([]byte, 16*1024)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.plainMu.Lock()
			s.plainBuf = append(s.plainBuf, buf[:n]...)
			s.plainMu.Unlock()
		}
		if err != nil {
			if isZeroReturn(err) {
				s.mu.Lock()
				s.state = Errored
				s.err = nil
				s.mu.Unlock()
			} else {
				s.mu.Lock()
				s.state = Errored
				s.err = classifyError(err)
				s.mu.Unlock()
			}
			s.pipe.markFinished()
			return
		}
	}
}

// Write encrypts plaintext for the wire. If the handshake is still in
// progress, bytes are returned verbatim per spec §4.5.
func (s *Session) Write(plaintext []byte) ([]byte, error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	if state != Established {
		return plaintext, nil
	}

	if _, err := s.conn.Write(plaintext); err != nil {
		s.mu.Lock()
		s.state = Errored
		s.err = classifyError(err)
		s.mu.Unlock()
		return nil, s.err
	}
	return s.pipe.drain(), nil
}

// Read feeds incoming wire bytes in. Before the handshake completes this
// continues driving it (returning any outgoing handshake bytes produced).
// After completion, fed bytes are decrypted asynchronously into the
// session's plaintext buffer, retrievable via TakePlaintext.
func (s *Session) Read(in []byte) (outbound []byte, err error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	if state != Established {
		out, _, err := s.DoHandshake(in)
		return out, err
	}

	if len(in) > 0 {
		s.pipe.feed(in)
		s.pipe.waitSettled()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Errored {
		return s.pipe.drain(), s.err
	}
	return s.pipe.drain(), nil
}

// TakePlaintext returns and clears the accumulated decrypted application
// data.
func (s *Session) TakePlaintext() []byte {
	s.plainMu.Lock()
	defer s.plainMu.Unlock()
	if len(s.plainBuf) == 0 {
		return nil
	}
	out := s.plainBuf
	s.plainBuf = nil
	return out
}

// Close tears down the session's transport side.
func (s *Session) Close() error {
	return s.pipe.Close()
}

// isZeroReturn reports a clean TLS close_notify, which the connection
// layer treats as an orderly shutdown rather than an error (spec §4.5:
// "any non-WANT_READ/ZERO_RETURN error marks the session as errored").
func isZeroReturn(err error) bool {
	return errors.Is(err, errCleanClose)
}

var errCleanClose = errors.New("tlssess: peer closed (close_notify)")

func classifyError(err error) error {
	if err == nil {
		return nil
	}
	return err
}
