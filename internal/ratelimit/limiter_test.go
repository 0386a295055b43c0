package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinLimit(t *testing.T) {
	l := New(time.Second, 2)
	base := time.Now()
	if !l.AllowAt("1.2.3.4", base) {
		t.Fatal("first event should be allowed")
	}
	if !l.AllowAt("1.2.3.4", base.Add(10*time.Millisecond)) {
		t.Fatal("second event should be allowed")
	}
	if l.AllowAt("1.2.3.4", base.Add(20*time.Millisecond)) {
		t.Fatal("third event within window should be rejected")
	}
}

func TestWindowSlides(t *testing.T) {
	l := New(100*time.Millisecond, 1)
	base := time.Now()
	if !l.AllowAt("a", base) {
		t.Fatal("first event should be allowed")
	}
	if l.AllowAt("a", base.Add(50*time.Millisecond)) {
		t.Fatal("second event inside window should be rejected")
	}
	if !l.AllowAt("a", base.Add(150*time.Millisecond)) {
		t.Fatal("event after window elapses should be allowed")
	}
}

func TestCategoriesIndependent(t *testing.T) {
	l := New(time.Second, 1)
	base := time.Now()
	if !l.AllowAt("a", base) {
		t.Fatal("a should be allowed")
	}
	if !l.AllowAt("b", base) {
		t.Fatal("b should be allowed independently of a")
	}
}

func TestDisabledLimiterAlwaysAllows(t *testing.T) {
	l := New(time.Second, 0)
	now := time.Now()
	for i := 0; i < 100; i++ {
		if !l.AllowAt("x", now) {
			t.Fatal("disabled limiter must always allow")
		}
	}
}

func TestSweepRemovesStaleCategories(t *testing.T) {
	l := New(50*time.Millisecond, 5)
	base := time.Now()
	l.AllowAt("stale", base)

	l.Sweep(base.Add(200 * time.Millisecond))

	l.mu.Lock()
	_, present := l.categories["stale"]
	l.mu.Unlock()
	if present {
		t.Fatal("stale category should have been swept")
	}
}
