package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterBurstAndRefill(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(2, 1)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatalf("burst of 2 should pass")
	}
	if l.Allow("a") {
		t.Fatalf("third request should be limited")
	}
	if !l.Allow("b") {
		t.Fatalf("keys must be independent")
	}

	now = now.Add(time.Second)
	if !l.Allow("a") {
		t.Fatalf("one token should refill after a second")
	}
}

func TestLimiterPrune(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(1, 1)
	l.now = func() time.Time { return now }
	l.Allow("a")
	now = now.Add(time.Hour)
	l.Allow("b")

	if n := l.Prune(10 * time.Minute); n != 1 {
		t.Fatalf("expected one pruned bucket, got %d", n)
	}
}
