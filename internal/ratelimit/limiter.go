// Package ratelimit implements token bucket rate limiting.  Each key holds
// Capacity tokens and regains RefillTokens every RefillInterval; a request
// spends one token.  Buckets live in Redis when available so every server
// instance shares them, otherwise in process memory.
package ratelimit

import (
	"context"
	"time"
)

// Params describes a bucket.
type Params struct {
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration // idle buckets are forgotten after this
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter spends a token from the bucket at key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// refill returns the bucket state after crediting every whole interval
// elapsed since last.
func refill(p Params, tokens int64, last, now int64) (int64, int64) {
	interval := p.RefillInterval.Milliseconds()
	if interval <= 0 || p.RefillTokens <= 0 {
		return tokens, last
	}
	elapsed := now - last
	if elapsed < 0 {
		elapsed = 0
	}
	if n := elapsed / interval; n > 0 {
		tokens = min(int64(p.Capacity), tokens+n*int64(p.RefillTokens))
		last += n * interval
	}
	return tokens, last
}
