package client

import (
	"time"

	"github.com/zhenshangxin/tars-go/internal/wire"
)

// Callback receives a request's outcome: either resp is set (including
// application-level error codes in resp.Ret) or err is a transport/
// timeout failure (spec §4.8.4's "Async Responses").
type Callback func(resp *wire.Response, err error)

// RequestMessage is spec §3's client-side RequestMessage: owned by the
// initiating network thread until a response arrives or its timeout
// elapses, at which point ownership passes to the async-response worker
// bound to Callback (spec §4.8.4).
type RequestMessage struct {
	RequestID   uint32
	Servant     string
	Method      string
	Payload     []byte
	Deadline    time.Time
	Callback    Callback // nil for a synchronous caller blocked in Invoke on done
	DyeingFlag  bool
	DyeingKey   string
	Endpoint    Endpoint // the endpoint the request was actually sent to
	HashKey     string   // caller-supplied routing tag for consistent-hash mode

	// done is the synchronous-caller rendezvous; async requests (Callback
	// != nil) leave it nil.
	done chan struct{}
	resp *wire.Response
	err  error
}

func newSyncRequest(id uint32, servant, method string, payload []byte, timeout time.Duration, hashKey string) *RequestMessage {
	return &RequestMessage{
		RequestID: id,
		Servant:   servant,
		Method:    method,
		Payload:   payload,
		Deadline:  time.Now().Add(timeout),
		HashKey:   hashKey,
		done:      make(chan struct{}),
	}
}

func newAsyncRequest(id uint32, servant, method string, payload []byte, timeout time.Duration, hashKey string, cb Callback) *RequestMessage {
	return &RequestMessage{
		RequestID: id,
		Servant:   servant,
		Method:    method,
		Payload:   payload,
		Deadline:  time.Now().Add(timeout),
		HashKey:   hashKey,
		Callback:  cb,
	}
}

// complete delivers the outcome: a synchronous request is released via its
// done channel; an asynchronous request's Callback is invoked by the
// caller (an async-response worker, per spec §4.8.4).
func (r *RequestMessage) complete(resp *wire.Response, err error) {
	if r.done != nil {
		r.resp, r.err = resp, err
		close(r.done)
		return
	}
	if r.Callback != nil {
		r.Callback(resp, err)
	}
}

func (r *RequestMessage) toWire() *wire.Request {
	return &wire.Request{
		RequestID:   r.RequestID,
		ServantName: r.Servant,
		FuncName:    r.Method,
		Timeout:     uint32(time.Until(r.Deadline) / time.Millisecond),
		DyeingKey:   r.DyeingKey,
		Payload:     r.Payload,
	}
}
