package ratelimit

import (
	"fmt"
	"testing"
	"time"
)

func TestAllowUnderLimit(t *testing.T) {
	t.Parallel()
	l := New(10, 5, 100)
	for i := 0; i < 5; i++ {
		if !l.Allow("1.2.3.4") {
			t.Errorf("message %d should be allowed (under burst)", i)
		}
	}
}

func TestAllowExceedsBurst(t *testing.T) {
	t.Parallel()
	l := New(10, 5, 100)
	for i := 0; i < 5; i++ {
		l.Allow("1.2.3.4")
	}
	if l.Allow("1.2.3.4") {
		t.Error("message beyond burst should be denied")
	}
}

func TestAllowDifferentIPsIndependent(t *testing.T) {
	t.Parallel()
	l := New(10, 2, 100)
	l.Allow("10.0.0.1")
	l.Allow("10.0.0.1")
	if l.Allow("10.0.0.1") {
		t.Error("10.0.0.1 should be rate limited")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("10.0.0.2 should not be rate limited (different IP)")
	}
}

func TestAllowRefillOverTime(t *testing.T) {
	t.Parallel()
	l := New(100, 1, 100)
	if !l.Allow("1.2.3.4") {
		t.Fatal("first message should be allowed")
	}
	if l.Allow("1.2.3.4") {
		t.Fatal("second message should be denied (bucket empty)")
	}
	time.Sleep(20 * time.Millisecond)
	if !l.Allow("1.2.3.4") {
		t.Error("message should be allowed after refill period")
	}
}

func TestLRUEviction(t *testing.T) {
	t.Parallel()
	maxIPs := 5
	l := New(10, 10, maxIPs)
	for i := 0; i < maxIPs; i++ {
		ip := fmt.Sprintf("10.0.0.%d", i+1)
		l.Allow(ip)
	}
	// Touch the first IP so it is not the LRU entry anymore.
	l.Allow("10.0.0.1")

	// Push a new IP, evicting the least-recently-used one (10.0.0.2).
	l.Allow("10.0.0.6")

	if l.lru.Len() != maxIPs {
		t.Errorf("expected lru len %d, got %d", maxIPs, l.lru.Len())
	}
}

func TestReset(t *testing.T) {
	t.Parallel()
	l := New(10, 1, 100)
	l.Allow("1.2.3.4")
	if l.Allow("1.2.3.4") {
		t.Fatal("expected bucket exhausted before reset")
	}
	l.Reset()
	if !l.Allow("1.2.3.4") {
		t.Error("expected bucket refilled after reset")
	}
}
