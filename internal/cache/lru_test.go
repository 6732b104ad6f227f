package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLRUCacheExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](0, time.Hour, WithClock(clock.Now))

	c.Set("a", "1")
	clock.Advance(59 * time.Minute)
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("expected hit before expiry")
	}
	clock.Advance(time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected miss at expiry instant")
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry should be removed on lookup")
	}
}

func TestLRUCacheTakeOnce(t *testing.T) {
	c := NewLRUCache[int](0, time.Hour)
	c.Set("k", 7)
	if v, ok := c.Take("k"); !ok || v != 7 {
		t.Fatalf("first take should succeed")
	}
	if _, ok := c.Take("k"); ok {
		t.Fatalf("second take must fail")
	}
}

func TestLRUCacheTakeConcurrent(t *testing.T) {
	c := NewLRUCache[int](0, time.Hour)
	c.Set("k", 1)

	var wins int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok := c.Take("k"); ok {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	close(start)
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Fatalf("least recently used entry should be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("recently used entry should survive")
	}
}

func TestManagerSweep(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := NewLRUCache[int](0, time.Minute, WithClock(clock.Now))
	c.Set("a", 1)
	c.Set("b", 2)

	m := NewManager()
	m.Register(c)
	clock.Advance(2 * time.Minute)
	if n := m.Sweep(); n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	m.StartCleanup(time.Millisecond)
	m.Stop()
	m.Stop()
}
