package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const memoryShards = 32

// pruneAbove triggers a sweep of idle buckets in a shard.
const pruneAbove = 4096

type bucket struct {
	tokens int64
	last   int64 // last refill, unix ms
	seen   int64 // last access, unix ms
}

type memShard struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// MemoryLimiter keeps buckets in process.  Keys are spread over shards so
// unrelated clients do not contend on one mutex.
type MemoryLimiter struct {
	p      Params
	shards [memoryShards]memShard
	now    func() time.Time
}

// NewMemoryLimiter returns an in-process limiter.
func NewMemoryLimiter(p Params) *MemoryLimiter {
	l := &MemoryLimiter{p: p, now: time.Now}
	for i := range l.shards {
		l.shards[i].buckets = map[string]*bucket{}
	}
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now().UnixMilli()
	sh := &l.shards[xxhash.Sum64String(key)%memoryShards]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	ttl := l.p.TTL.Milliseconds()
	b, ok := sh.buckets[key]
	if !ok || (ttl > 0 && now-b.seen > ttl) {
		if len(sh.buckets) >= pruneAbove {
			sh.prune(now, ttl)
		}
		b = &bucket{tokens: int64(l.p.Capacity), last: now}
		sh.buckets[key] = b
	}
	b.seen = now
	b.tokens, b.last = refill(l.p, b.tokens, b.last, now)

	if b.tokens > 0 {
		b.tokens--
		return Decision{Allowed: true, Remaining: b.tokens}, nil
	}
	wait := l.p.RefillInterval.Milliseconds() - (now - b.last)
	if wait < 0 {
		wait = 0
	}
	return Decision{Remaining: 0, RetryAfter: time.Duration(wait) * time.Millisecond}, nil
}

func (sh *memShard) prune(now, ttl int64) {
	for k, b := range sh.buckets {
		if ttl <= 0 || now-b.seen > ttl {
			delete(sh.buckets, k)
		}
	}
}
