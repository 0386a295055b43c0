package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhenshangxin/tars-go/internal/wire"
)

func TestAdapterQueuePushPop(t *testing.T) {
	q := NewAdapterQueue(2)
	r1 := &PendingRequest{Request: &wire.Request{RequestID: 1}, Arrival: time.Now()}
	r2 := &PendingRequest{Request: &wire.Request{RequestID: 2}, Arrival: time.Now()}
	r3 := &PendingRequest{Request: &wire.Request{RequestID: 3}, Arrival: time.Now()}

	require.True(t, q.Push(r1))
	require.True(t, q.Push(r2))
	require.False(t, q.Push(r3), "capacity-2 queue should reject a third push")

	got, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, uint32(1), got.Request.RequestID)

	got, ok = q.Pop()
	require.True(t, ok)
	require.Equal(t, uint32(2), got.Request.RequestID)
}

func TestAdapterQueuePopUnblocksOnClose(t *testing.T) {
	q := NewAdapterQueue(4)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after Close")
	}
}

func TestAdapterQueuePopBlocksUntilPush(t *testing.T) {
	q := NewAdapterQueue(4)
	result := make(chan *PendingRequest, 1)
	go func() {
		v, ok := q.Pop()
		if ok {
			result <- v
		}
	}()

	time.Sleep(20 * time.Millisecond)
	req := &PendingRequest{Request: &wire.Request{RequestID: 99}}
	require.True(t, q.Push(req))

	select {
	case v := <-result:
		require.Equal(t, uint32(99), v.Request.RequestID)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return the pushed request")
	}
}
