package client

import (
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Endpoint is a remote servant location, as returned by the locator (spec
// glossary "Locator") or configured statically. The same "tcp|udp -h <ip>
// -p <port> -t <ms>" grammar as the server's BindAdapter endpoint string
// (spec §4.7.1) describes the wire the client dials out to.
type Endpoint struct {
	Proto   string
	Host    string
	Port    int
	Timeout time.Duration
}

func (e Endpoint) String() string {
	return e.Proto + " -h " + e.Host + " -p " + strconv.Itoa(e.Port)
}

func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ParseEndpoint parses the spec's endpoint grammar.
func ParseEndpoint(s string) (Endpoint, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Endpoint{}, wrapf("empty endpoint string")
	}
	ep := Endpoint{Proto: fields[0], Timeout: 3 * time.Second}
	for i := 1; i < len(fields)-1; i += 2 {
		switch fields[i] {
		case "-h":
			ep.Host = fields[i+1]
		case "-p":
			p, err := strconv.Atoi(fields[i+1])
			if err != nil {
				return Endpoint{}, wrapf("bad port in endpoint %q: %w", s, err)
			}
			ep.Port = p
		case "-t":
			ms, err := strconv.Atoi(fields[i+1])
			if err != nil {
				return Endpoint{}, wrapf("bad timeout in endpoint %q: %w", s, err)
			}
			ep.Timeout = time.Duration(ms) * time.Millisecond
		}
	}
	return ep, nil
}

// endpointState tracks one endpoint's liveness bookkeeping: failure
// streak feeding the active->inactive promotion threshold, and the next
// time it's eligible for a re-probe (spec §4.8.3).
type endpointState struct {
	ep        Endpoint
	failures  int
	nextProbe time.Time
}

// failureThreshold is the number of consecutive connect/timeout failures
// that demotes an endpoint from active to inactive.
const failureThreshold = 3

// probeBackoff is how long an inactive endpoint waits before its next
// probe attempt.
const probeBackoff = 5 * time.Second

// EndpointSet holds one object proxy's active and inactive endpoint
// lists (spec §3 ObjectProxy, §4.8.3). Every method takes mu, so the set
// may be used from more than one goroutine.
type EndpointSet struct {
	mu       sync.Mutex // guards active and inactive
	active   []*endpointState
	inactive []*endpointState
}

func NewEndpointSet() *EndpointSet {
	return &EndpointSet{}
}

// Refresh replaces the endpoint list wholesale (a locator refresh cycle,
// spec §4.8.3): endpoints present before and after keep their failure
// state; new ones start active with a clean slate; removed ones are
// dropped outright.
func (s *EndpointSet) Refresh(eps []Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byAddr := make(map[string]*endpointState, len(s.active)+len(s.inactive))
	for _, st := range s.active {
		byAddr[st.ep.Addr()] = st
	}
	for _, st := range s.inactive {
		byAddr[st.ep.Addr()] = st
	}

	var newActive, newInactive []*endpointState
	for _, ep := range eps {
		if st, ok := byAddr[ep.Addr()]; ok {
			st.ep = ep
			if st.failures >= failureThreshold {
				newInactive = append(newInactive, st)
			} else {
				newActive = append(newActive, st)
			}
		} else {
			newActive = append(newActive, &endpointState{ep: ep})
		}
	}
	s.active = newActive
	s.inactive = newInactive
}

// Active returns a copy of the currently active endpoints.
func (s *EndpointSet) Active() []Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Endpoint, len(s.active))
	for i, st := range s.active {
		out[i] = st.ep
	}
	return out
}

// MarkFailure records a connect-refused or invoke-timeout against ep
// (spec §4.8.3: "On connection refusal or timeout threshold, the endpoint
// is promoted to inactive"). Returns true if this failure just demoted
// the endpoint.
func (s *EndpointSet) MarkFailure(addr string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, st := range s.active {
		if st.ep.Addr() != addr {
			continue
		}
		st.failures++
		if st.failures < failureThreshold {
			return false
		}
		st.nextProbe = now.Add(probeBackoff)
		s.active = append(s.active[:i:i], s.active[i+1:]...)
		s.inactive = append(s.inactive, st)
		return true
	}
	return false
}

// MarkSuccess clears an endpoint's failure streak; if it was inactive it
// is promoted back to active ("on success it returns to active").
func (s *EndpointSet) MarkSuccess(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.active {
		if st.ep.Addr() == addr {
			st.failures = 0
			return
		}
	}
	for i, st := range s.inactive {
		if st.ep.Addr() != addr {
			continue
		}
		st.failures = 0
		s.inactive = append(s.inactive[:i:i], s.inactive[i+1:]...)
		s.active = append(s.active, st)
		return
	}
}

// DueForProbe returns inactive endpoints whose backoff has elapsed,
// scheduling a probe connection attempt (spec §4.8.3).
func (s *EndpointSet) DueForProbe(now time.Time) []Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []Endpoint
	for _, st := range s.inactive {
		if !now.Before(st.nextProbe) {
			due = append(due, st.ep)
		}
	}
	return due
}
