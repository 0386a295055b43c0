package server

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to callers/admin handlers; internal failures are
// always translated into one of these before crossing a worker-thread
// boundary (spec §7: "never let an exception escape a worker thread").
var (
	ErrAdapterNotFound  = errors.New("server: adapter not found")
	ErrServantMismatch  = errors.New("server: servant name does not match server identity")
	ErrBindFailed       = errors.New("server: bind failed")
	ErrQueueOverload    = errors.New("server: request queue overloaded")
	ErrQueueTimeout     = errors.New("server: request timed out in queue")
	ErrConnectionClosed = errors.New("server: connection closed")
	ErrDenied           = errors.New("server: connection denied by ACL")
	ErrUnknownCommand   = errors.New("server: unknown admin command")
)

// BootstrapError wraps a fatal error encountered while assembling adapters
// or binding listeners, per spec §6's nonzero exit code contract.
type BootstrapError struct {
	Stage string
	Err   error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("server: bootstrap failed at %s: %v", e.Stage, e.Err)
}

func (e *BootstrapError) Unwrap() error { return e.Err }

func wrapf(format string, args ...any) error {
	return fmt.Errorf("server: "+format, args...)
}
