package service

import (
	"testing"
	"time"
)

// fakeClock returns a RateLimiter whose time only moves when advance is
// called.
func fakeClock(l *RateLimiter) (advance func(time.Duration)) {
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }
	return func(d time.Duration) { now = now.Add(d) }
}

func TestRateLimiter_AllowsUpToCapacity(t *testing.T) {
	l := NewRateLimiter(1, 3) // rate=1/s, capacity=3
	fakeClock(l)

	// Should allow 3 requests immediately (full bucket).
	for i := 0; i < 3; i++ {
		if !l.Allow("a@example.com") {
			t.Fatalf("request %d should be allowed (bucket not yet empty)", i+1)
		}
	}

	// 4th request should be denied (bucket empty).
	if l.Allow("a@example.com") {
		t.Fatal("4th request should be denied (bucket empty)")
	}
}

func TestRateLimiter_KeysIgnoreCase(t *testing.T) {
	l := NewRateLimiter(0, 1)
	fakeClock(l)

	if !l.Allow("a@example.com") {
		t.Fatal("first request should be allowed")
	}
	if l.Allow("A@EXAMPLE.COM") {
		t.Fatal("same author in different case should share a bucket")
	}
	if !l.Allow("b@example.com") {
		t.Fatal("b first request should be allowed (independent bucket)")
	}
}

func TestRateLimiter_Refills(t *testing.T) {
	l := NewRateLimiter(2, 1)
	advance := fakeClock(l)

	if !l.Allow("k") {
		t.Fatal("first request should be allowed")
	}
	if l.Allow("k") {
		t.Fatal("second request should be denied")
	}
	advance(500 * time.Millisecond)
	if !l.Allow("k") {
		t.Fatal("request after refill should be allowed")
	}
}

func TestRateLimiter_ZeroRateNeverRefills(t *testing.T) {
	l := NewRateLimiter(0, 2) // never refills
	advance := fakeClock(l)

	l.Allow("k")
	l.Allow("k")
	advance(time.Hour)
	if l.Allow("k") {
		t.Fatal("third request should be denied (no refill)")
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	l := NewRateLimiter(1, 1)
	advance := fakeClock(l)

	l.Allow("old")
	advance(20 * time.Minute)
	l.Allow("fresh")

	if removed := l.sweep(10 * time.Minute); removed != 1 {
		t.Fatalf("expected 1 bucket removed, got %d", removed)
	}
	if _, ok := l.buckets["fresh"]; !ok {
		t.Fatal("expected fresh bucket to survive")
	}
}
