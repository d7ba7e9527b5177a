package sweep

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeHolds struct {
	calls  atomic.Int32
	window atomic.Int64
	err    error
}

func (f *fakeHolds) ExpireUnpaid(_ context.Context, olderThan time.Duration) (int, error) {
	f.calls.Add(1)
	f.window.Store(int64(olderThan))
	return 1, f.err
}

type fakeTokens struct {
	cutoff time.Time
	n      int64
}

func (f *fakeTokens) PurgeExpired(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.n, nil
}

func TestReleaseHoldsUsesWindow(t *testing.T) {
	h := &fakeHolds{}
	s := New(h, nil, Config{HoldExpiry: 15 * time.Minute}, nil)
	s.ReleaseHolds(context.Background())
	assert.Equal(t, int32(1), h.calls.Load())
	assert.Equal(t, int64(15*time.Minute), h.window.Load())
}

func TestReleaseHoldsDisabled(t *testing.T) {
	h := &fakeHolds{}
	s := New(h, nil, Config{}, nil)
	s.ReleaseHolds(context.Background())
	assert.Zero(t, h.calls.Load())
}

func TestReleaseHoldsLogsFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	h := &fakeHolds{err: errors.New("db gone")}
	New(h, nil, Config{HoldExpiry: time.Minute}, zap.New(core)).ReleaseHolds(context.Background())
	assert.Equal(t, 1, logs.FilterMessage("hold expiry sweep failed").Len())
}

func TestPurgeTokens(t *testing.T) {
	tok := &fakeTokens{n: 3}
	s := New(nil, tok, Config{}, nil)
	fixed := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	s.PurgeTokens(context.Background())
	assert.Equal(t, fixed, tok.cutoff)
}

func TestStartRunsHoldExpiry(t *testing.T) {
	h := &fakeHolds{}
	s := New(h, &fakeTokens{}, Config{HoldExpiry: time.Minute, Interval: 20 * time.Millisecond}, nil)
	require.NoError(t, s.Start())
	defer func() { require.NoError(t, s.Stop()) }()

	assert.Eventually(t, func() bool { return h.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestStopWithoutStart(t *testing.T) {
	assert.NoError(t, New(nil, nil, Config{}, nil).Stop())
}
