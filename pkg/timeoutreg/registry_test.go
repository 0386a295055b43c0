package timeoutreg

import (
	"testing"
	"time"
)

func withFrozenClock(t *testing.T, fn func(advance func(time.Duration))) {
	t.Helper()
	cur := time.Unix(0, 0)
	orig := now
	now = func() time.Time { return cur }
	t.Cleanup(func() { now = orig })
	fn(func(d time.Duration) { cur = cur.Add(d) })
}

func TestPushGetErase(t *testing.T) {
	r := New[int, string]()
	if err := r.Push(1, "a"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := r.Push(1, "dup"); err != ErrExists {
		t.Fatalf("Push duplicate: err=%v want ErrExists", err)
	}

	v, ok := r.Get(1, false)
	if !ok || v != "a" {
		t.Fatalf("Get(1,false) = %q,%v", v, ok)
	}
	// still present after non-erasing get
	if v, ok = r.Get(1, false); !ok || v != "a" {
		t.Fatalf("Get after non-erase = %q,%v", v, ok)
	}

	if v, ok = r.Get(1, true); !ok || v != "a" {
		t.Fatalf("Get(1,true) = %q,%v", v, ok)
	}
	if _, ok = r.Get(1, false); ok {
		t.Fatal("entry should be gone after erasing get")
	}
}

func TestPopFIFOAndSurvivesUntilErase(t *testing.T) {
	r := New[int, string]()
	_ = r.Push(1, "first")
	_ = r.Push(2, "second")

	id, v, ok := r.Pop()
	if !ok || id != 1 || v != "first" {
		t.Fatalf("Pop() = %d,%q,%v want 1,first,true", id, v, ok)
	}

	// popped-but-unerased entry is still reachable via Get(id, erase=false)
	if v, ok = r.Get(1, false); !ok || v != "first" {
		t.Fatalf("Get(1,false) after pop = %q,%v", v, ok)
	}

	id, v, ok = r.Pop()
	if !ok || id != 2 || v != "second" {
		t.Fatalf("second Pop() = %d,%q,%v want 2,second,true", id, v, ok)
	}

	if _, _, ok = r.Pop(); ok {
		t.Fatal("Pop on exhausted registry should return ok=false")
	}
}

func TestTimeoutSweepsOnlyExpired(t *testing.T) {
	withFrozenClock(t, func(advance func(time.Duration)) {
		r := New[int, string]()
		_ = r.Push(1, "t1") // t=0
		advance(50 * time.Millisecond)
		_ = r.Push(2, "t2") // t=50ms

		advance(60 * time.Millisecond) // now = 110ms, threshold=100ms

		expired := r.TimeoutFunc(100, nil)
		if len(expired) != 1 || expired[0] != "t1" {
			t.Fatalf("expired = %v, want [t1]", expired)
		}

		if _, ok := r.Get(1, false); ok {
			t.Fatal("id 1 should have been swept")
		}
		if v, ok := r.Get(2, false); !ok || v != "t2" {
			t.Fatalf("id 2 should still be present: %q,%v", v, ok)
		}
	})
}

func TestSwapBulkPops(t *testing.T) {
	r := New[int, string]()
	_ = r.Push(1, "a")
	_ = r.Push(2, "b")
	_ = r.Push(3, "c")

	// pop one manually first
	_, _, _ = r.Pop()

	rest := r.Swap()
	if len(rest) != 2 || rest[0] != "b" || rest[1] != "c" {
		t.Fatalf("Swap() = %v, want [b c]", rest)
	}
	if _, _, ok := r.Pop(); ok {
		t.Fatal("Swap should have consumed all remaining unpopped entries")
	}
	// entries remain indexed until erased or timed out
	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
}

func TestIDGeneratorSkipsZero(t *testing.T) {
	var g IDGenerator
	g.next.Store(^uint32(0)) // next Add(1) wraps to 0, which must be skipped
	if id := g.Next(); id != 1 {
		t.Fatalf("Next() = %d, want 1 (0 skipped on wraparound)", id)
	}
}
