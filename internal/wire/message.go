package wire

import (
	"encoding/binary"
	"errors"
)

// MessageType distinguishes a request from its matching response inside
// the frame payload (spec's RequestMessage/ResponseMessage pair, §4.1 /
// §4.8.1).
type MessageType uint8

const (
	TypeRequest MessageType = iota + 1
	TypeResponse
)

// ResultCode mirrors spec §4.8.1's ResponseMessage.ret values.
type ResultCode int32

const (
	ResultSuccess ResultCode = iota
	ResultServerDecodeError
	ResultServerEncodeError
	ResultServerNoFunc
	ResultServerNoServant
	ResultServerResetGrid
	ResultServerQueueTimeout
	ResultClientDecodeError
	ResultServerOverload
	ResultClientDisconnect
	ResultInvokeTimeout
	ResultProxyConnectErr
	ResultServerSyncCallback
)

var ErrTruncated = errors.New("wire: truncated message")

// Request is the decoded form of a request frame's payload: the
// identifying fields the dispatcher, timeout registry and dyeing
// machinery all need, plus an opaque application payload this layer
// never interprets (no codegen'd stub in scope, per Non-goals).
type Request struct {
	RequestID    uint32
	ServantName  string
	FuncName     string
	Timeout      uint32 // milliseconds, 0 = use adapter/proxy default
	DyeingKey    string // empty when dyeing is not active for this call
	Context      map[string]string
	Payload      []byte
}

// Response is the decoded form of a response frame's payload.
type Response struct {
	RequestID uint32
	Ret       ResultCode
	ResultDesc string
	Context   map[string]string
	Payload   []byte
}

// EncodeRequest serializes r into a frame payload (type byte + fields),
// ready for Encode to length-prefix.
func EncodeRequest(r *Request) []byte {
	var b []byte
	b = appendUint8(b, uint8(TypeRequest))
	b = appendUint32(b, r.RequestID)
	b = appendString(b, r.ServantName)
	b = appendString(b, r.FuncName)
	b = appendUint32(b, r.Timeout)
	b = appendString(b, r.DyeingKey)
	b = appendMap(b, r.Context)
	b = appendBytes(b, r.Payload)
	return b
}

// DecodeRequest parses a frame payload previously produced by
// EncodeRequest.
func DecodeRequest(buf []byte) (*Request, error) {
	typ, buf, err := readUint8(buf)
	if err != nil {
		return nil, err
	}
	if MessageType(typ) != TypeRequest {
		return nil, errors.New("wire: not a request frame")
	}
	r := &Request{}
	if r.RequestID, buf, err = readUint32(buf); err != nil {
		return nil, err
	}
	if r.ServantName, buf, err = readString(buf); err != nil {
		return nil, err
	}
	if r.FuncName, buf, err = readString(buf); err != nil {
		return nil, err
	}
	if r.Timeout, buf, err = readUint32(buf); err != nil {
		return nil, err
	}
	if r.DyeingKey, buf, err = readString(buf); err != nil {
		return nil, err
	}
	if r.Context, buf, err = readMap(buf); err != nil {
		return nil, err
	}
	if r.Payload, _, err = readBytes(buf); err != nil {
		return nil, err
	}
	return r, nil
}

// EncodeResponse serializes r into a frame payload.
func EncodeResponse(r *Response) []byte {
	var b []byte
	b = appendUint8(b, uint8(TypeResponse))
	b = appendUint32(b, r.RequestID)
	b = appendUint32(b, uint32(int32(r.Ret)))
	b = appendString(b, r.ResultDesc)
	b = appendMap(b, r.Context)
	b = appendBytes(b, r.Payload)
	return b
}

// DecodeResponse parses a frame payload previously produced by
// EncodeResponse.
func DecodeResponse(buf []byte) (*Response, error) {
	typ, buf, err := readUint8(buf)
	if err != nil {
		return nil, err
	}
	if MessageType(typ) != TypeResponse {
		return nil, errors.New("wire: not a response frame")
	}
	r := &Response{}
	var ret uint32
	if r.RequestID, buf, err = readUint32(buf); err != nil {
		return nil, err
	}
	if ret, buf, err = readUint32(buf); err != nil {
		return nil, err
	}
	r.Ret = ResultCode(int32(ret))
	if r.ResultDesc, buf, err = readString(buf); err != nil {
		return nil, err
	}
	if r.Context, buf, err = readMap(buf); err != nil {
		return nil, err
	}
	if r.Payload, _, err = readBytes(buf); err != nil {
		return nil, err
	}
	return r, nil
}

func appendUint8(b []byte, v uint8) []byte { return append(b, v) }

func appendUint32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendBytes(b []byte, v []byte) []byte {
	b = appendUint32(b, uint32(len(v)))
	return append(b, v...)
}

func appendString(b []byte, v string) []byte {
	return appendBytes(b, []byte(v))
}

func appendMap(b []byte, m map[string]string) []byte {
	b = appendUint32(b, uint32(len(m)))
	for k, v := range m {
		b = appendString(b, k)
		b = appendString(b, v)
	}
	return b
}

func readUint8(buf []byte) (uint8, []byte, error) {
	if len(buf) < 1 {
		return 0, nil, ErrTruncated
	}
	return buf[0], buf[1:], nil
}

func readUint32(buf []byte) (uint32, []byte, error) {
	if len(buf) < 4 {
		return 0, nil, ErrTruncated
	}
	return binary.BigEndian.Uint32(buf[:4]), buf[4:], nil
}

func readBytes(buf []byte) ([]byte, []byte, error) {
	n, buf, err := readUint32(buf)
	if err != nil {
		return nil, nil, err
	}
	if uint32(len(buf)) < n {
		return nil, nil, ErrTruncated
	}
	return buf[:n], buf[n:], nil
}

func readString(buf []byte) (string, []byte, error) {
	b, rest, err := readBytes(buf)
	if err != nil {
		return "", nil, err
	}
	return string(b), rest, nil
}

func readMap(buf []byte) (map[string]string, []byte, error) {
	n, buf, err := readUint32(buf)
	if err != nil {
		return nil, nil, err
	}
	if n == 0 {
		return nil, buf, nil
	}
	m := make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		var k, v string
		if k, buf, err = readString(buf); err != nil {
			return nil, nil, err
		}
		if v, buf, err = readString(buf); err != nil {
			return nil, nil, err
		}
		m[k] = v
	}
	return m, buf, nil
}
