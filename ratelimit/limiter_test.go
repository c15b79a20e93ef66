package ratelimit

import (
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testLimiter() *Limiter {
	return New(Config{
		General: Tier{Rate: 50, Burst: 100},
		Auth:    Tier{Rate: 1, Burst: 5},
	})
}

func TestAuthTierBurstThenRefill(t *testing.T) {
	l := testLimiter()
	defer l.Close()

	now := time.Now()

	// Burst of 5 passes, the 6th immediate request is rejected.
	for i := 0; i < 5; i++ {
		if !l.allowAt(ClassAuth, "10.0.0.1", now) {
			t.Fatalf("request %d within burst was rejected", i+1)
		}
	}
	if l.allowAt(ClassAuth, "10.0.0.1", now) {
		t.Fatal("6th immediate request must be rejected")
	}

	// After one second exactly one token has accrued.
	later := now.Add(time.Second)
	if !l.allowAt(ClassAuth, "10.0.0.1", later) {
		t.Fatal("request after 1s refill was rejected")
	}
	if l.allowAt(ClassAuth, "10.0.0.1", later) {
		t.Fatal("second request after 1s refill must be rejected")
	}
}

func TestTiersAreIndependent(t *testing.T) {
	l := testLimiter()
	defer l.Close()

	now := time.Now()

	// Exhaust the auth tier for one address.
	for i := 0; i < 5; i++ {
		l.allowAt(ClassAuth, "10.0.0.1", now)
	}
	if l.allowAt(ClassAuth, "10.0.0.1", now) {
		t.Fatal("auth tier should be exhausted")
	}

	// General traffic from the same address is unaffected.
	if !l.allowAt(ClassGeneral, "10.0.0.1", now) {
		t.Fatal("general tier must not share the auth bucket")
	}
}

func TestAddressesAreIsolated(t *testing.T) {
	l := testLimiter()
	defer l.Close()

	now := time.Now()

	for i := 0; i < 5; i++ {
		l.allowAt(ClassAuth, "10.0.0.1", now)
	}
	if !l.allowAt(ClassAuth, "10.0.0.2", now) {
		t.Fatal("a second address must get its own bucket")
	}
}

func TestConcurrentAllowDoesNotOverspend(t *testing.T) {
	l := New(Config{
		General: Tier{Rate: 50, Burst: 100},
		Auth:    Tier{Rate: rate.Limit(0.0001), Burst: 5},
	})
	defer l.Close()

	const n = 64
	var wg sync.WaitGroup
	wg.Add(n)

	allowed := make(chan bool, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			allowed <- l.Allow(ClassAuth, "10.0.0.1")
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	if count != 5 {
		t.Fatalf("expected exactly 5 allowed under concurrency, got %d", count)
	}
}

func TestIdleEviction(t *testing.T) {
	l := New(Config{
		General:     Tier{Rate: 50, Burst: 100},
		Auth:        Tier{Rate: 1, Burst: 5},
		IdleTimeout: time.Minute,
	})
	defer l.Close()

	now := time.Now()
	l.allowAt(ClassAuth, "10.0.0.1", now)
	l.allowAt(ClassAuth, "10.0.0.2", now.Add(2*time.Minute))

	l.evictIdle(now.Add(2 * time.Minute))

	s1 := &l.auth.shards[shardFor("10.0.0.1")]
	s1.mu.Lock()
	_, stale := s1.buckets["10.0.0.1"]
	s1.mu.Unlock()
	if stale {
		t.Fatal("idle bucket should have been evicted")
	}

	s2 := &l.auth.shards[shardFor("10.0.0.2")]
	s2.mu.Lock()
	_, fresh := s2.buckets["10.0.0.2"]
	s2.mu.Unlock()
	if !fresh {
		t.Fatal("recently used bucket must survive the sweep")
	}
}
