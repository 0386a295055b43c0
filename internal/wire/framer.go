// Package wire implements the adapter-owned stream-socket framing spec
// §4.7.2 calls the "protocol parser": splitting a connection's inbound
// byte stream into whole request frames, and encoding the request/response
// envelope carried inside each frame.
//
// There is no generated stub/codec in scope (spec's Non-goals), so the
// envelope here is a small hand-rolled binary format instead of a
// protobuf/gRPC message — see SPEC_FULL.md's domain-stack note on why
// google.golang.org/protobuf was not wired in.
package wire

import (
	"encoding/binary"
	"errors"
)

// lengthHeaderSize is the size of the leading frame-length field, which
// is itself included in the counted length (the well-known TARS wire
// convention: the first 4 bytes are the total frame size, header
// included).
const lengthHeaderSize = 4

// MaxFrameSize bounds a single frame to guard against a corrupt or
// malicious length prefix forcing unbounded buffering.
const MaxFrameSize = 10 << 20

var (
	ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")
	ErrShortHeader   = errors.New("wire: length header too small")
)

// Parser splits buf (everything read so far on a connection) into the
// next whole frame. It returns the frame's payload (header stripped),
// the number of bytes of buf consumed, and ok=false if buf does not yet
// contain a complete frame (the net-thread should read more and retry).
type Parser interface {
	Parse(buf []byte) (frame []byte, consumed int, ok bool, err error)
}

// LengthPrefixed implements the "tars" protocol: a 4-byte big-endian
// total length (including the 4-byte header) followed by the payload.
type LengthPrefixed struct{}

func (LengthPrefixed) Parse(buf []byte) (frame []byte, consumed int, ok bool, err error) {
	if len(buf) < lengthHeaderSize {
		return nil, 0, false, nil
	}
	total := binary.BigEndian.Uint32(buf[:lengthHeaderSize])
	if total < lengthHeaderSize {
		return nil, 0, false, ErrShortHeader
	}
	if total > MaxFrameSize {
		return nil, 0, false, ErrFrameTooLarge
	}
	if uint32(len(buf)) < total {
		return nil, 0, false, nil
	}
	return buf[lengthHeaderSize:total], int(total), true, nil
}

// Encode wraps payload in the length-prefixed frame.
func Encode(payload []byte) []byte {
	out := make([]byte, lengthHeaderSize+len(payload))
	binary.BigEndian.PutUint32(out[:lengthHeaderSize], uint32(len(out)))
	copy(out[lengthHeaderSize:], payload)
	return out
}

// Registry maps a BindAdapter's configured protocol name (spec §6's
// `protocol` key, default "tars") to a Parser.
var Registry = map[string]Parser{
	"tars": LengthPrefixed{},
}

// Lookup resolves a protocol name, defaulting to "tars" for an empty
// string (spec §6: `protocol` [`tars`]).
func Lookup(name string) (Parser, bool) {
	if name == "" {
		name = "tars"
	}
	p, ok := Registry[name]
	return p, ok
}
