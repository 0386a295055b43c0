// Package telemetry provides the structured logging facade used across
// internal/server and internal/client.
//
// Design Decision: package-level global logger, in the teacher's style
// (the teacher event loop's logging.go) — logging is a cross-cutting
// infrastructure concern and every server/client subsystem shares the
// same sink, so a per-component logging configuration surface would only
// add bloat without buying isolation anyone needs.
package telemetry

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var global struct {
	sync.RWMutex
	logger zerolog.Logger
}

func init() {
	global.logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

// SetLogger replaces the package-wide logger. Call once at bootstrap,
// before any server or client thread starts.
func SetLogger(l zerolog.Logger) {
	global.Lock()
	global.logger = l
	global.Unlock()
}

// Get returns the current global logger.
func Get() zerolog.Logger {
	global.RLock()
	defer global.RUnlock()
	return global.logger
}

// Category returns a child logger tagged with a subsystem name ("netio",
// "handle", "proxy", "admin", ...), mirroring the teacher's
// LogEntry.Category field.
func Category(name string) zerolog.Logger {
	return Get().With().Str("category", name).Logger()
}

// level records the level last set by SetLevel (the tars.setloglevel
// admin command, spec §6) so CurrentLevel can report it. SetLogger does
// not re-apply it: a logger installed by SetLogger keeps its own level.
var level atomic.Int32

func init() {
	level.Store(int32(zerolog.InfoLevel))
}

// SetLevel implements tars.setloglevel: it reconfigures the global
// logger's minimum level in place.
func SetLevel(l zerolog.Level) {
	level.Store(int32(l))
	global.Lock()
	global.logger = global.logger.Level(l)
	global.Unlock()
}

// CurrentLevel returns the level last set via SetLevel or the zerolog
// default (Info).
func CurrentLevel() zerolog.Level {
	return zerolog.Level(level.Load())
}

// ParseLevel maps the admin command's textual level argument
// (tars.setloglevel <LEVEL>) onto a zerolog.Level.
func ParseLevel(s string) (zerolog.Level, error) {
	return zerolog.ParseLevel(s)
}
