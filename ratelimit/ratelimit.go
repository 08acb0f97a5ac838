// Package ratelimit throttles the public validation endpoint and the
// authenticated issuance endpoints with per-client sliding windows.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Bucket names used by the HTTP layer.
const (
	BucketValidate = "validate"
	BucketIssue    = "issue"
	BucketDefault  = "default"
)

// Limit defines the max number of requests per window for one bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

// Limiter decides whether a request identified by (bucket, key) may
// proceed. key is typically a client IP or API-key id.
type Limiter interface {
	Allow(ctx context.Context, bucket, key string) (bool, error)
}

type memoryBucket struct {
	// request times in Unix ms, newest last
	timestamps []int64
	windowMs   int64
}

// MemoryLimiter is a process-local sliding-window limiter, the
// single-node fallback when Redis is not configured.
type MemoryLimiter struct {
	mu         sync.Mutex
	limits     map[string]Limit
	buckets    map[string]*memoryBucket
	sweepEvery time.Duration
	lastSweep  int64 // Unix ms
}

func NewMemoryLimiter(limits map[string]Limit) *MemoryLimiter {
	if limits == nil {
		limits = map[string]Limit{}
	}
	return &MemoryLimiter{
		limits:     limits,
		buckets:    make(map[string]*memoryBucket),
		sweepEvery: time.Minute,
	}
}

func lookupLimit(limits map[string]Limit, bucket string) Limit {
	if v, ok := limits[bucket]; ok {
		return v
	}
	if v, ok := limits[BucketDefault]; ok {
		return v
	}
	return Limit{Limit: 100, Window: time.Minute}
}

// Allow implements Limiter. Expired entries are pruned on each call, and
// slots idle for a full window are dropped by a periodic sweep so memory
// stays bounded.
func (l *MemoryLimiter) Allow(_ context.Context, bucket, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("ratelimit: bucket and key required")
	}

	lim := lookupLimit(l.limits, bucket)
	nowMs := time.Now().UnixMilli()
	windowStart := nowMs - lim.Window.Milliseconds()
	slot := bucket + ":" + key

	l.mu.Lock()
	defer l.mu.Unlock()

	if nowMs-l.lastSweep >= l.sweepEvery.Milliseconds() {
		l.sweep(nowMs)
		l.lastSweep = nowMs
	}

	b, ok := l.buckets[slot]
	if !ok {
		b = &memoryBucket{windowMs: lim.Window.Milliseconds()}
		l.buckets[slot] = b
	}

	ts := b.timestamps
	prune := 0
	for prune < len(ts) && ts[prune] < windowStart {
		prune++
	}
	if prune > 0 {
		ts = ts[prune:]
	}

	if len(ts) >= lim.Limit {
		b.timestamps = ts
		return false, nil
	}

	b.timestamps = append(ts, nowMs)
	return true, nil
}

// sweep drops slots whose newest entry has aged out of its window.
// Caller holds l.mu.
func (l *MemoryLimiter) sweep(nowMs int64) {
	for slot, b := range l.buckets {
		n := len(b.timestamps)
		if n == 0 || b.timestamps[n-1]+b.windowMs < nowMs {
			delete(l.buckets, slot)
		}
	}
}
