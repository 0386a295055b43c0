package singleton

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestConcurrentGetConstructsOnce(t *testing.T) {
	var constructions atomic.Int32
	inst := New(func() *int {
		constructions.Add(1)
		v := 42
		return &v
	}, Default)

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			v, err := inst.Get()
			if err != nil || *v != 42 {
				t.Errorf("Get() = %v,%v", v, err)
			}
		}()
	}
	wg.Wait()

	if constructions.Load() != 1 {
		t.Fatalf("constructions = %d, want 1", constructions.Load())
	}
}

func TestDefaultLifetimeRejectsAfterDestroy(t *testing.T) {
	inst := New(func() *int { v := 1; return &v }, Default)
	if _, err := inst.Get(); err != nil {
		t.Fatalf("Get: %v", err)
	}
	inst.Destroy()
	if _, err := inst.Get(); err != ErrDestroyed {
		t.Fatalf("Get after destroy: err=%v want ErrDestroyed", err)
	}
}

func TestPhoenixRecreatesExactlyOnce(t *testing.T) {
	var constructions atomic.Int32
	inst := New(func() *int {
		constructions.Add(1)
		v := int(constructions.Load())
		return &v
	}, Phoenix)

	first, err := inst.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	inst.Destroy()

	second, err := inst.Get()
	if err != nil {
		t.Fatalf("Get after destroy: %v", err)
	}
	if *first == *second {
		t.Fatal("phoenix instance should have been recreated")
	}
	if constructions.Load() != 2 {
		t.Fatalf("constructions = %d, want 2", constructions.Load())
	}
}

func TestNoDestroyNeverErrors(t *testing.T) {
	inst := New(func() *int { v := 1; return &v }, NoDestroy)
	if _, err := inst.Get(); err != nil {
		t.Fatalf("Get: %v", err)
	}
	inst.Destroy()
	if _, err := inst.Get(); err != nil {
		t.Fatalf("Get after destroy under NoDestroy: %v", err)
	}
}

type point struct{ x, y int }

func TestStaticBufferInitializesValue(t *testing.T) {
	inst := NewStaticBuffer(func(p *point) { p.x, p.y = 3, 4 }, Default)
	p, err := inst.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.x != 3 || p.y != 4 {
		t.Fatalf("Get() = %+v, want {3 4}", p)
	}
}

func TestStaticBufferReusesSameAddressAcrossPhoenix(t *testing.T) {
	var constructions atomic.Int32
	inst := NewStaticBuffer(func(p *point) {
		constructions.Add(1)
		p.x = int(constructions.Load())
	}, Phoenix)

	first, err := inst.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	firstX := first.x
	inst.Destroy()

	second, err := inst.Get()
	if err != nil {
		t.Fatalf("Get after destroy: %v", err)
	}

	if first != second {
		t.Fatalf("StaticBuffer address changed across Phoenix recreation: %p != %p", first, second)
	}
	if firstX == second.x {
		t.Fatal("expected placement-new to re-run init on recreation")
	}
	if constructions.Load() != 2 {
		t.Fatalf("constructions = %d, want 2", constructions.Load())
	}
}
