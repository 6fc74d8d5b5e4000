package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"
)

// bucket is the per-key admission state: tokens remaining plus the time the
// window last (re)filled. Buckets are process-local and lost on restart;
// this is admission control, not an audit trail.
type bucket struct {
	tokens    int
	updatedAt time.Time
}

const stripes = 64

// shared bucket storage, striped by key hash so unrelated keys never
// contend on the same mutex.
type bucketMap struct {
	mu [stripes]sync.Mutex
	m  [stripes]map[string]*bucket
}

func newBucketMap() *bucketMap {
	bm := &bucketMap{}
	for i := range bm.m {
		bm.m[i] = make(map[string]*bucket)
	}
	return bm
}

func (bm *bucketMap) stripe(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % stripes)
}

// Result reports the outcome of a Consume call. RetryAfter is only set on
// rejection and is the time until the window fully refills.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter is a fixed-window token bucket: capacity tokens per window, with
// the whole bucket reset once the window elapses. Limiters sharing a
// bucketMap may be keyed independently.
type Limiter struct {
	capacity int
	window   time.Duration
	buckets  *bucketMap
	now      func() time.Time
}

// NewLimiter returns a limiter with its own bucket storage.
func NewLimiter(capacity int, window time.Duration) *Limiter {
	return &Limiter{capacity: capacity, window: window, buckets: newBucketMap(), now: time.Now}
}

// Consume attempts to take cost tokens for key. The check-and-deduct runs
// under the key's stripe lock so concurrent callers on the same key see a
// consistent bucket.
func (l *Limiter) Consume(key string, cost int) Result {
	if cost <= 0 {
		cost = 1
	}
	now := l.now()
	i := l.buckets.stripe(key)
	l.buckets.mu[i].Lock()
	defer l.buckets.mu[i].Unlock()

	b, ok := l.buckets.m[i][key]
	if !ok {
		b = &bucket{tokens: l.capacity, updatedAt: now}
		l.buckets.m[i][key] = b
	}
	if now.Sub(b.updatedAt) > l.window {
		b.tokens = l.capacity
		b.updatedAt = now
	}
	if b.tokens < cost {
		retry := l.window - now.Sub(b.updatedAt)
		if retry < 0 {
			retry = 0
		}
		return Result{Allowed: false, RetryAfter: retry}
	}
	b.tokens -= cost
	b.updatedAt = now
	return Result{Allowed: true}
}

// Capacity returns the limiter's bucket capacity.
func (l *Limiter) Capacity() int { return l.capacity }

// Window returns the limiter's refill window.
func (l *Limiter) Window() time.Duration { return l.window }
