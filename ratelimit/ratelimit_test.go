package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterAllowsUpToLimit(t *testing.T) {
	l := NewMemoryLimiter(map[string]Limit{
		BucketValidate: {Limit: 3, Window: time.Minute},
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, BucketValidate, "1.2.3.4")
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	ok, err := l.Allow(ctx, BucketValidate, "1.2.3.4")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("fourth request should be denied")
	}

	// A different client is unaffected.
	if ok, _ := l.Allow(ctx, BucketValidate, "5.6.7.8"); !ok {
		t.Fatal("other client should be allowed")
	}
}

func TestMemoryLimiterBucketsIndependent(t *testing.T) {
	l := NewMemoryLimiter(map[string]Limit{
		BucketValidate: {Limit: 1, Window: time.Minute},
		BucketIssue:    {Limit: 1, Window: time.Minute},
	})
	ctx := context.Background()

	if ok, _ := l.Allow(ctx, BucketValidate, "k"); !ok {
		t.Fatal("validate should be allowed")
	}
	if ok, _ := l.Allow(ctx, BucketIssue, "k"); !ok {
		t.Fatal("issue should be allowed despite validate being spent")
	}
	if ok, _ := l.Allow(ctx, BucketValidate, "k"); ok {
		t.Fatal("second validate should be denied")
	}
}

func TestMemoryLimiterDefaultFallback(t *testing.T) {
	l := NewMemoryLimiter(map[string]Limit{
		BucketDefault: {Limit: 1, Window: time.Minute},
	})
	ctx := context.Background()

	if ok, _ := l.Allow(ctx, "unconfigured", "k"); !ok {
		t.Fatal("first request should use default limit")
	}
	if ok, _ := l.Allow(ctx, "unconfigured", "k"); ok {
		t.Fatal("default limit of 1 should deny the second request")
	}
}

func TestMemoryLimiterSweepDropsIdleSlots(t *testing.T) {
	l := NewMemoryLimiter(map[string]Limit{
		BucketValidate: {Limit: 5, Window: 20 * time.Millisecond},
	})
	l.sweepEvery = 0 // sweep on every call
	ctx := context.Background()

	if ok, _ := l.Allow(ctx, BucketValidate, "idle-client"); !ok {
		t.Fatal("first request should be allowed")
	}
	if ok, _ := l.Allow(ctx, BucketValidate, "busy-client"); !ok {
		t.Fatal("first request should be allowed")
	}

	time.Sleep(30 * time.Millisecond)

	// Only busy-client keeps calling. idle-client's slot has aged out of
	// its window and must be freed.
	if ok, _ := l.Allow(ctx, BucketValidate, "busy-client"); !ok {
		t.Fatal("request after the window should be allowed")
	}

	l.mu.Lock()
	_, idle := l.buckets[BucketValidate+":idle-client"]
	_, busy := l.buckets[BucketValidate+":busy-client"]
	l.mu.Unlock()
	if idle {
		t.Error("idle slot should have been swept")
	}
	if !busy {
		t.Error("active slot should survive the sweep")
	}
}

func TestMemoryLimiterRejectsEmptyArgs(t *testing.T) {
	l := NewMemoryLimiter(nil)
	if _, err := l.Allow(context.Background(), "", "k"); err == nil {
		t.Fatal("empty bucket should error")
	}
	if _, err := l.Allow(context.Background(), "b", ""); err == nil {
		t.Fatal("empty key should error")
	}
}
