package availability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-reservation/internal/apperr"
	"github.com/iliyamo/movie-reservation/internal/cache"
	"github.com/iliyamo/movie-reservation/internal/model"
	"github.com/iliyamo/movie-reservation/internal/repository/memory"
)

func setup(t *testing.T, seats int) (*memory.Store, uint64) {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	th := &model.Theater{Name: "Main", TotalSeats: seats}
	require.NoError(t, s.CreateTheater(ctx, th))
	m := &model.Movie{Title: "Alien", Slug: "alien", DurationMinutes: 117}
	require.NoError(t, s.CreateMovie(ctx, m))
	st := &model.Showtime{MovieID: m.ID, TheaterID: th.ID, PriceCents: 1000, StartsAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.CreateShowtime(ctx, st))
	return s, st.ID
}

func TestBookedAndAvailablePartitionTheater(t *testing.T) {
	ctx := context.Background()
	s, id := setup(t, 20)
	for i, seat := range []int{17, 2, 9} {
		require.NoError(t, s.Reserve(ctx, &model.Reservation{ShowtimeID: id, UserID: uint64(i + 1), SeatNumber: seat}))
	}
	e := New(s, s, nil, 0, nil)

	booked, err := e.BookedSeats(ctx, id)
	require.NoError(t, err)
	avail, err := e.AvailableSeats(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 9, 17}, booked)
	assert.Len(t, avail, 17)
	seen := map[int]bool{}
	for _, n := range append(append([]int{}, booked...), avail...) {
		assert.False(t, seen[n], "seat %d listed twice", n)
		seen[n] = true
	}
	for n := 1; n <= 20; n++ {
		assert.True(t, seen[n], "seat %d missing", n)
	}
}

func TestSummaryRounding(t *testing.T) {
	ctx := context.Background()
	s, id := setup(t, 3)
	require.NoError(t, s.Reserve(ctx, &model.Reservation{ShowtimeID: id, UserID: 1, SeatNumber: 1}))
	e := New(s, s, nil, 0, nil)

	sum, err := e.Summary(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.TotalSeats)
	assert.Equal(t, 1, sum.ReservedSeats)
	assert.Equal(t, 2, sum.AvailableSeats)
	assert.Equal(t, 33.33, sum.OccupancyPercentage)
	assert.True(t, sum.IsAvailable)

	full := Summarize(id, 2, 2)
	assert.Equal(t, 100.0, full.OccupancyPercentage)
	assert.False(t, full.IsAvailable)
}

func TestIsSeatAvailable(t *testing.T) {
	ctx := context.Background()
	s, id := setup(t, 10)
	require.NoError(t, s.Reserve(ctx, &model.Reservation{ShowtimeID: id, UserID: 1, SeatNumber: 4}))
	e := New(s, s, nil, 0, nil)

	ok, err := e.IsSeatAvailable(ctx, id, 4)
	require.NoError(t, err)
	assert.False(t, ok)

	st, err := e.SeatStatus(ctx, id, 5)
	require.NoError(t, err)
	assert.True(t, st.IsAvailable)
	assert.Equal(t, "Seat 5 for showtime "+itoa(id)+" is available.", st.Message)

	_, err = e.IsSeatAvailable(ctx, id, 11)
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
	_, err = e.IsSeatAvailable(ctx, 999, 1)
	assert.True(t, apperr.Is(err, apperr.NotFound))
	_, err = e.BookedSeats(ctx, 0)
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
}

func TestSeatMapServedFromCacheUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	s, id := setup(t, 10)
	c := cache.NewMemoryCache()
	e := New(s, s, c, time.Minute, nil)

	booked, err := e.BookedSeats(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, booked)

	require.NoError(t, s.Reserve(ctx, &model.Reservation{ShowtimeID: id, UserID: 1, SeatNumber: 3}))
	booked, _ = e.BookedSeats(ctx, id)
	assert.Empty(t, booked, "cached map is returned until evicted")

	cache.NewInvalidator(c, nil).SeatsChanged(ctx, id)
	booked, _ = e.BookedSeats(ctx, id)
	assert.Equal(t, []int{3}, booked)

	// single-seat checks never use the cache
	ok, _ := e.IsSeatAvailable(ctx, id, 3)
	assert.False(t, ok)
}

// racingLedger reads the booked seats, then lets a reservation and its
// eviction land before the read is handed back to the engine.
type racingLedger struct {
	*memory.Store
	inv  *cache.Invalidator
	once bool
}

func (l *racingLedger) BookedSeats(ctx context.Context, id uint64) ([]int, error) {
	seats, err := l.Store.BookedSeats(ctx, id)
	if err != nil || l.once {
		return seats, err
	}
	l.once = true
	if err := l.Store.Reserve(ctx, &model.Reservation{ShowtimeID: id, UserID: 1, SeatNumber: 6}); err != nil {
		return nil, err
	}
	l.inv.SeatsChanged(ctx, id)
	return seats, nil
}

func TestStaleSeatMapIsNotServedAfterEviction(t *testing.T) {
	ctx := context.Background()
	s, id := setup(t, 10)
	c := cache.NewMemoryCache()
	ledger := &racingLedger{Store: s, inv: cache.NewInvalidator(c, nil)}
	e := New(ledger, s, c, time.Minute, nil)

	booked, err := e.BookedSeats(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, booked, "first read raced the reservation")

	booked, err = e.BookedSeats(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []int{6}, booked)
}

func TestComplement(t *testing.T) {
	assert.Equal(t, []int{1, 3, 5}, Complement(5, []int{2, 4}))
	assert.Equal(t, []int{}, Complement(2, []int{1, 2}))
	assert.Equal(t, []int{1, 2}, Complement(2, nil))
}

func itoa(n uint64) string { return fmt.Sprint(n) }
