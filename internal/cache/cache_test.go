// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCacheSetGet(t *testing.T) {
	c := New(time.Minute)

	c.Set("key1", "value1")
	got, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected hit for key1")
	}
	if got != "value1" {
		t.Errorf("Get(key1) = %v, want value1", got)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestCacheOverwrite(t *testing.T) {
	c := New(time.Minute)

	c.Set("key", 1)
	c.Set("key", 2)

	got, ok := c.Get("key")
	if !ok || got != 2 {
		t.Errorf("Get after overwrite = %v, %v, want 2, true", got, ok)
	}
}

func TestCacheExpiration(t *testing.T) {
	c := New(time.Minute)

	c.SetWithTTL("short", "data", 10*time.Millisecond)

	if _, ok := c.Get("short"); !ok {
		t.Fatal("entry should be readable before expiry")
	}

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Error("expired entry must not be observable")
	}

	stats := c.GetStats()
	if stats.Evictions == 0 {
		t.Error("lazy expiration should record an eviction")
	}
}

func TestCacheDelete(t *testing.T) {
	c := New(time.Minute)

	c.Set("key", "value")
	c.Delete("key")

	if _, ok := c.Get("key"); ok {
		t.Error("deleted entry still readable")
	}

	// Deleting an absent key is a no-op.
	c.Delete("never-existed")
}

func TestCacheInvalidatePattern(t *testing.T) {
	c := New(time.Minute)

	c.Set("dashboard:blue-consult:sales", 1)
	c.Set("dashboard:blue-consult:finance", 2)
	c.Set("dashboard:tokeniza:sales", 3)
	c.Set("journey:user@example.com", 4)

	removed := c.InvalidatePattern("dashboard:blue-consult:")
	if removed != 2 {
		t.Errorf("InvalidatePattern removed %d entries, want 2", removed)
	}

	if _, ok := c.Get("dashboard:blue-consult:sales"); ok {
		t.Error("matching entry survived invalidation")
	}
	if _, ok := c.Get("dashboard:tokeniza:sales"); !ok {
		t.Error("non-matching entry was removed")
	}
	if _, ok := c.Get("journey:user@example.com"); !ok {
		t.Error("unrelated entry was removed")
	}
}

func TestCacheInvalidatePatternSubstring(t *testing.T) {
	c := New(time.Minute)

	c.Set("snapshot:2026-08-29:sales", 1)
	c.Set("dashboard:acme:sales", 2)

	// Pattern matches anywhere in the key, not only as a prefix.
	if removed := c.InvalidatePattern("sales"); removed != 2 {
		t.Errorf("InvalidatePattern(sales) removed %d, want 2", removed)
	}
}

func TestCacheClear(t *testing.T) {
	c := New(time.Minute)

	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("key%d", i), i)
	}

	c.Clear()

	stats := c.GetStats()
	if stats.TotalKeys != 0 {
		t.Errorf("TotalKeys after Clear = %d, want 0", stats.TotalKeys)
	}
	if _, ok := c.Get("key0"); ok {
		t.Error("entry readable after Clear")
	}
}

func TestCacheStats(t *testing.T) {
	c := New(time.Minute)

	c.Set("key", "value")
	c.Get("key")     // hit
	c.Get("key")     // hit
	c.Get("missing") // miss

	stats := c.GetStats()
	if stats.Hits != 2 {
		t.Errorf("Hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}

	rate := c.HitRate()
	want := 2.0 / 3.0 * 100.0
	if rate < want-0.01 || rate > want+0.01 {
		t.Errorf("HitRate = %.2f, want %.2f", rate, want)
	}
}

func TestCacheHitRateEmpty(t *testing.T) {
	c := New(time.Minute)
	if rate := c.HitRate(); rate != 0.0 {
		t.Errorf("HitRate on empty cache = %.2f, want 0", rate)
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key%d", j%20)
				c.Set(key, n)
				c.Get(key)
				if j%50 == 0 {
					c.InvalidatePattern("key1")
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestGenerateKey(t *testing.T) {
	type params struct {
		Tenant string
		From   string
		To     string
	}

	k1 := GenerateKey("dashboard", params{"acme", "2026-08-01", "2026-08-29"})
	k2 := GenerateKey("dashboard", params{"acme", "2026-08-01", "2026-08-29"})
	k3 := GenerateKey("dashboard", params{"acme", "2026-07-01", "2026-08-29"})

	if k1 != k2 {
		t.Error("identical params must produce identical keys")
	}
	if k1 == k3 {
		t.Error("different params must produce different keys")
	}
	if k1 == GenerateKey("journey", params{"acme", "2026-08-01", "2026-08-29"}) {
		t.Error("different methods must produce different keys")
	}
}

func TestGetEvictionPreservesConcurrentRefresh(t *testing.T) {
	c := New(time.Minute)
	const key = "dashboard:blue-consult:overview"

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				c.Get(key)
			}
		}
	}()

	// Each iteration plants an already-expired entry for the reader to trip
	// over, then refreshes it. The refreshed entry must never be evicted by a
	// reader that observed the expired one.
	for i := 0; i < 500; i++ {
		c.SetWithTTL(key, i, -time.Millisecond)
		c.SetWithTTL(key, i, time.Minute)
		if _, ok := c.Get(key); !ok {
			close(stop)
			wg.Wait()
			t.Fatalf("fresh entry evicted by a concurrent expired read (iteration %d)", i)
		}
	}
	close(stop)
	wg.Wait()
}
