package loopqueue

import "testing"

func TestPushPopBasic(t *testing.T) {
	q := New[int](3)

	ok, wasEmpty := q.PushBack(1)
	if !ok || !wasEmpty {
		t.Fatalf("first push: ok=%v wasEmpty=%v, want true,true", ok, wasEmpty)
	}

	ok, wasEmpty = q.PushBack(2)
	if !ok || wasEmpty {
		t.Fatalf("second push: ok=%v wasEmpty=%v, want true,false", ok, wasEmpty)
	}

	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}

	v, ok := q.PopFront()
	if !ok || v != 1 {
		t.Fatalf("PopFront() = %d,%v want 1,true", v, ok)
	}
}

func TestFullRejectsPush(t *testing.T) {
	q := New[int](2)
	if ok, _ := q.PushBack(1); !ok {
		t.Fatal("push 1 should succeed")
	}
	if ok, _ := q.PushBack(2); !ok {
		t.Fatal("push 2 should succeed")
	}
	if ok, _ := q.PushBack(3); ok {
		t.Fatal("push 3 should fail: queue at capacity")
	}
	if _, ok := q.PopFront(); !ok {
		t.Fatal("pop should succeed after a failed push")
	}
	if ok, _ := q.PushBack(3); !ok {
		t.Fatal("push should succeed again after freeing a slot")
	}
}

// TestInvariant checks pushed-popped == observed size, and that push fails
// iff size == capacity, across an arbitrary interleaving (spec §8.3).
func TestInvariant(t *testing.T) {
	const capacity = 16
	q := New[int](capacity)
	pushed, popped := 0, 0

	ops := []bool{true, true, false, true, true, true, false, false, true, true, true, true, true, true, true, true, true, false, true}
	for _, push := range ops {
		if push {
			wantWasEmpty := pushed-popped == 0
			ok, wasEmpty := q.PushBack(pushed)
			if ok && wasEmpty != wantWasEmpty {
				t.Fatalf("wasEmpty=%v, want %v", wasEmpty, wantWasEmpty)
			}
			sizeBefore := pushed - popped
			if ok != (sizeBefore != capacity) {
				t.Fatalf("push ok=%v at size=%d/%d mismatch", ok, sizeBefore, capacity)
			}
			if ok {
				pushed++
			}
		} else {
			_, ok := q.PopFront()
			if ok {
				popped++
			}
		}
		if q.Len() != pushed-popped {
			t.Fatalf("Len() = %d, want pushed-popped = %d", q.Len(), pushed-popped)
		}
	}
}
