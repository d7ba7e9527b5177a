package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryLimiterBucket(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	l := NewMemoryLimiter(Params{Capacity: 3, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute})
	l.now = clk.now

	for i := 2; i >= 0; i-- {
		d, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, int64(i), d.Remaining)
	}
	d, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter)

	clk.advance(400 * time.Millisecond)
	d, _ = l.Allow(ctx, "k")
	assert.False(t, d.Allowed)
	assert.Equal(t, 600*time.Millisecond, d.RetryAfter)

	clk.advance(600 * time.Millisecond)
	d, _ = l.Allow(ctx, "k")
	assert.True(t, d.Allowed)

	// Other keys have their own bucket.
	d, _ = l.Allow(ctx, "other")
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(2), d.Remaining)

	// Idle buckets reset after the TTL.
	clk.advance(2 * time.Minute)
	d, _ = l.Allow(ctx, "k")
	assert.Equal(t, int64(2), d.Remaining)
}

func TestRefillCapsAtCapacity(t *testing.T) {
	p := Params{Capacity: 5, RefillTokens: 2, RefillInterval: 100 * time.Millisecond}
	tokens, last := refill(p, 0, 1000, 1250)
	assert.Equal(t, int64(4), tokens)
	assert.Equal(t, int64(1200), last)
	tokens, _ = refill(p, 4, 1000, 9000)
	assert.Equal(t, int64(5), tokens)
	tokens, last = refill(p, 1, 1000, 900)
	assert.Equal(t, int64(1), tokens)
	assert.Equal(t, int64(1000), last)
}

func TestParseResult(t *testing.T) {
	d, err := parseResult([]any{int64(1), int64(7), int64(0)})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(7), d.Remaining)

	d, err = parseResult([]any{int64(0), int64(0), "250"})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 250*time.Millisecond, d.RetryAfter)

	_, err = parseResult("OK")
	assert.Error(t, err)
}
