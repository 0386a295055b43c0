package client

import (
	"errors"
	"fmt"
)

// Sentinel errors delivered to synchronous callers or async callbacks
// (spec §7: "Client invocation: timeout, connect-refused, no-endpoint,
// auth-failure — delivered to the async callback or raised
// synchronously"). Never escapes a network-thread or async-worker
// goroutine unwrapped.
var (
	ErrNoEndpoint      = errors.New("client: no active endpoint for servant")
	ErrInvokeTimeout   = errors.New("client: invocation timed out")
	ErrConnectRefused  = errors.New("client: connection refused")
	ErrAuthFailed      = errors.New("client: authentication handshake failed")
	ErrProxyClosed     = errors.New("client: object proxy closed")
	ErrRequestExists   = errors.New("client: duplicate request id")
	ErrCommunicatorDup = errors.New("client: communicator name already registered")
)

func wrapf(format string, args ...any) error {
	return fmt.Errorf("client: "+format, args...)
}
