package wire

import (
	"bytes"
	"testing"
)

func TestLengthPrefixedParseIncomplete(t *testing.T) {
	p := LengthPrefixed{}
	if _, _, ok, err := p.Parse(nil); ok || err != nil {
		t.Fatalf("empty buffer should be incomplete, got ok=%v err=%v", ok, err)
	}
	if _, _, ok, err := p.Parse([]byte{0, 0}); ok || err != nil {
		t.Fatalf("short header should be incomplete, got ok=%v err=%v", ok, err)
	}
}

func TestLengthPrefixedRoundTrip(t *testing.T) {
	p := LengthPrefixed{}
	payload := []byte("hello world")
	frame := Encode(payload)

	got, consumed, ok, err := p.Parse(frame)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if !ok {
		t.Fatal("expected a complete frame")
	}
	if consumed != len(frame) {
		t.Fatalf("consumed = %d, want %d", consumed, len(frame))
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %q, want %q", got, payload)
	}
}

func TestLengthPrefixedParsePartialStream(t *testing.T) {
	p := LengthPrefixed{}
	frame := Encode([]byte("partial"))
	_, _, ok, err := p.Parse(frame[:len(frame)-2])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("truncated stream must not report a complete frame")
	}
}

func TestLengthPrefixedRejectsOversizeFrame(t *testing.T) {
	p := LengthPrefixed{}
	huge := make([]byte, lengthHeaderSize)
	huge[0] = 0xff // forces a length far beyond MaxFrameSize
	if _, _, _, err := p.Parse(huge); err != ErrFrameTooLarge {
		t.Fatalf("err = %v, want ErrFrameTooLarge", err)
	}
}

func TestLengthPrefixedConcatenatedFrames(t *testing.T) {
	p := LengthPrefixed{}
	buf := append(Encode([]byte("first")), Encode([]byte("second"))...)

	first, n1, ok, err := p.Parse(buf)
	if err != nil || !ok {
		t.Fatalf("first frame: ok=%v err=%v", ok, err)
	}
	if string(first) != "first" {
		t.Fatalf("first = %q", first)
	}

	second, n2, ok, err := p.Parse(buf[n1:])
	if err != nil || !ok {
		t.Fatalf("second frame: ok=%v err=%v", ok, err)
	}
	if string(second) != "second" {
		t.Fatalf("second = %q", second)
	}
	if n1+n2 != len(buf) {
		t.Fatalf("consumed %d+%d, want %d", n1, n2, len(buf))
	}
}

func TestLookupDefaultsToTars(t *testing.T) {
	p, ok := Lookup("")
	if !ok {
		t.Fatal("empty protocol name should resolve to the default")
	}
	if _, isLP := p.(LengthPrefixed); !isLP {
		t.Fatal("default protocol should be LengthPrefixed")
	}
	if _, ok := Lookup("unknown-protocol"); ok {
		t.Fatal("unknown protocol name should not resolve")
	}
}

func TestRequestRoundTrip(t *testing.T) {
	req := &Request{
		RequestID:   42,
		ServantName: "TestApp.TestServer.obj",
		FuncName:    "doSomething",
		Timeout:     3000,
		DyeingKey:   "dye-123",
		Context:     map[string]string{"k1": "v1"},
		Payload:     []byte{1, 2, 3, 4},
	}
	encoded := EncodeRequest(req)
	got, err := DecodeRequest(encoded)
	if err != nil {
		t.Fatalf("DecodeRequest error: %v", err)
	}
	if got.RequestID != req.RequestID || got.ServantName != req.ServantName ||
		got.FuncName != req.FuncName || got.Timeout != req.Timeout ||
		got.DyeingKey != req.DyeingKey || got.Context["k1"] != "v1" ||
		!bytes.Equal(got.Payload, req.Payload) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	resp := &Response{
		RequestID:  7,
		Ret:        ResultServerOverload,
		ResultDesc: "queue full",
		Context:    map[string]string{"trace": "abc"},
		Payload:    nil,
	}
	encoded := EncodeResponse(resp)
	got, err := DecodeResponse(encoded)
	if err != nil {
		t.Fatalf("DecodeResponse error: %v", err)
	}
	if got.RequestID != resp.RequestID || got.Ret != resp.Ret ||
		got.ResultDesc != resp.ResultDesc || got.Context["trace"] != "abc" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestDecodeRequestRejectsResponseFrame(t *testing.T) {
	encoded := EncodeResponse(&Response{RequestID: 1})
	if _, err := DecodeRequest(encoded); err == nil {
		t.Fatal("expected an error decoding a response frame as a request")
	}
}

func TestDecodeTruncated(t *testing.T) {
	encoded := EncodeRequest(&Request{RequestID: 1, ServantName: "x"})
	if _, err := DecodeRequest(encoded[:len(encoded)-1]); err != ErrTruncated {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}
