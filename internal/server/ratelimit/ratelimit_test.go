package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRegistry_Burst(t *testing.T) {
	clk := &manualClock{now: time.Unix(1_700_000_000, 0)}
	r := New(1, 3, WithClock(clk.Now))

	for i := 0; i < 3; i++ {
		if !r.Allow("10.0.0.1") {
			t.Fatalf("request %d within burst rejected", i+1)
		}
	}
	if r.Allow("10.0.0.1") {
		t.Error("request beyond burst should be rejected")
	}

	clk.Advance(time.Second)
	if !r.Allow("10.0.0.1") {
		t.Error("one token should refill after a second")
	}
}

func TestRegistry_PerKey(t *testing.T) {
	clk := &manualClock{now: time.Unix(1_700_000_000, 0)}
	r := New(1, 1, WithClock(clk.Now))

	if !r.Allow("a") {
		t.Fatal("first request for a rejected")
	}
	if !r.Allow("b") {
		t.Error("keys must not share a bucket")
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRegistry_Sweep(t *testing.T) {
	clk := &manualClock{now: time.Unix(1_700_000_000, 0)}
	r := New(10, 10, WithClock(clk.Now), WithIdleTTL(time.Minute))

	r.Allow("old")
	clk.Advance(2 * time.Minute)
	r.Allow("fresh")

	if n := r.Sweep(); n != 1 {
		t.Errorf("Sweep() removed %d, want 1", n)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_SweepKeepsKeyUsedDuringSweep(t *testing.T) {
	clk := &manualClock{now: time.Unix(1_700_000_000, 0)}
	r := New(0.001, 1, WithClock(clk.Now), WithIdleTTL(time.Minute))

	if !r.Allow("a") {
		t.Fatal("first request rejected")
	}
	clk.Advance(2 * time.Minute)

	cutoff := clk.Now().Add(-time.Minute).UnixNano()
	keys := r.idleKeys(cutoff)
	if len(keys) != 1 || keys[0] != "a" {
		t.Fatalf("idleKeys() = %v, want [a]", keys)
	}

	// a comes back before the eviction runs
	if r.Allow("a") {
		t.Error("second request should still be limited")
	}

	if n := r.evict(keys, cutoff); n != 0 {
		t.Errorf("evict() removed %d, want 0", n)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	if r.Allow("a") {
		t.Error("a kept its bucket, so the request should still be limited")
	}
}

func TestRegistry_Run(t *testing.T) {
	r := New(10, 10, WithIdleTTL(time.Nanosecond))
	r.Allow("x")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for r.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if r.Len() != 0 {
		t.Errorf("Len() = %d after sweeping, want 0", r.Len())
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	r := New(1000, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				r.Allow("shared")
			}
		}()
	}
	wg.Wait()

	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}
