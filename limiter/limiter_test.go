package limiter

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestLimiterAcquireRelease(t *testing.T) {
	l := New(nil)
	ctx := context.Background()

	if err := l.Acquire(ctx, "free", "job-1"); err != nil {
		t.Fatalf("Failed to acquire free slot: %v", err)
	}

	// Free tier has a single slot; the second acquire must fail fast.
	err := l.Acquire(ctx, "free", "job-2")
	var limitErr *ConcurrencyLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("Expected ConcurrencyLimitError, got %v", err)
	}
	if limitErr.Tier != "free" || limitErr.Limit != 1 {
		t.Fatalf("Unexpected error detail: %+v", limitErr)
	}

	l.Release("free", "job-1")
	if err := l.Acquire(ctx, "free", "job-2"); err != nil {
		t.Fatalf("Slot should be free after release: %v", err)
	}
}

func TestLimiterTiersAreIndependent(t *testing.T) {
	l := New(nil)
	ctx := context.Background()

	if err := l.Acquire(ctx, "free", "job-1"); err != nil {
		t.Fatalf("Failed to acquire free slot: %v", err)
	}
	// A saturated free tier does not affect pro.
	for i := 0; i < 5; i++ {
		if err := l.Acquire(ctx, "pro", "job-p"); err != nil {
			t.Fatalf("Pro acquire %d failed: %v", i, err)
		}
	}
	var limitErr *ConcurrencyLimitError
	if err := l.Acquire(ctx, "pro", "job-p6"); !errors.As(err, &limitErr) {
		t.Fatalf("Expected pro tier to be full, got %v", err)
	}
}

func TestLimiterUnknownTierUsesFree(t *testing.T) {
	l := New(nil)
	ctx := context.Background()

	if err := l.Acquire(ctx, "enterprise", "job-1"); err != nil {
		t.Fatalf("Unknown tier should fall back to free: %v", err)
	}
	var limitErr *ConcurrencyLimitError
	if err := l.Acquire(ctx, "free", "job-2"); !errors.As(err, &limitErr) {
		t.Fatal("Unknown tier should share the free tier's slots")
	}
}

func TestLimiterStats(t *testing.T) {
	l := New(nil)
	ctx := context.Background()

	if err := l.Acquire(ctx, "starter", "job-1"); err != nil {
		t.Fatalf("Failed to acquire: %v", err)
	}

	stats := l.Stats()
	if stats["starter"].InUse != 1 || stats["starter"].Limit != 2 {
		t.Fatalf("starter stats = %+v, want 1/2", stats["starter"])
	}
	if stats["free"].InUse != 0 {
		t.Fatalf("free stats = %+v, want 0 in use", stats["free"])
	}

	l.Release("starter", "job-1")
	if l.Stats()["starter"].InUse != 0 {
		t.Fatal("Release should drop in-use count")
	}
}

func TestLimiterReleaseWithoutAcquire(t *testing.T) {
	l := New(nil)
	// Must not panic or free a phantom slot.
	l.Release("free", "job-x")

	ctx := context.Background()
	if err := l.Acquire(ctx, "free", "job-1"); err != nil {
		t.Fatalf("Failed to acquire: %v", err)
	}
	var limitErr *ConcurrencyLimitError
	if err := l.Acquire(ctx, "free", "job-2"); !errors.As(err, &limitErr) {
		t.Fatal("Phantom release should not have added a slot")
	}
}

func TestLimiterConcurrentUse(t *testing.T) {
	l := New(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(ctx, "pro", "job"); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted > 5 {
		t.Fatalf("Granted %d concurrent pro slots, limit is 5", granted)
	}
}
