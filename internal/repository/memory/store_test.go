package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-reservation/internal/model"
	"github.com/iliyamo/movie-reservation/internal/repository"
)

func seed(t *testing.T, seats int) (*Store, uint64) {
	t.Helper()
	ctx := context.Background()
	s := New()
	th := &model.Theater{Name: "Hall 1", TotalSeats: seats}
	require.NoError(t, s.CreateTheater(ctx, th))
	m := &model.Movie{Title: "Heat", Slug: "heat", DurationMinutes: 170}
	require.NoError(t, s.CreateMovie(ctx, m))
	st := &model.Showtime{MovieID: m.ID, TheaterID: th.ID, PriceCents: 1200, StartsAt: time.Now().Add(24 * time.Hour)}
	require.NoError(t, s.CreateShowtime(ctx, st))
	return s, st.ID
}

func TestReserveConcurrentSameSeat(t *testing.T) {
	s, showtime := seed(t, 50)
	const k = 64
	var wins, conflicts int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			<-start
			err := s.Reserve(context.Background(), &model.Reservation{ShowtimeID: showtime, UserID: user, SeatNumber: 7, SecretCode: "ABCDEFGH"})
			switch err {
			case nil:
				atomic.AddInt32(&wins, 1)
			case repository.ErrSeatTaken:
				atomic.AddInt32(&conflicts, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(uint64(i + 1))
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, wins)
	assert.EqualValues(t, k-1, conflicts)
	seats, err := s.BookedSeats(context.Background(), showtime)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, seats)
}

func TestReserveUnknownShowtime(t *testing.T) {
	s := New()
	err := s.Reserve(context.Background(), &model.Reservation{ShowtimeID: 99, UserID: 1, SeatNumber: 1})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateSeat(t *testing.T) {
	ctx := context.Background()
	s, showtime := seed(t, 10)
	a := &model.Reservation{ShowtimeID: showtime, UserID: 1, SeatNumber: 3}
	b := &model.Reservation{ShowtimeID: showtime, UserID: 2, SeatNumber: 4}
	require.NoError(t, s.Reserve(ctx, a))
	require.NoError(t, s.Reserve(ctx, b))

	assert.ErrorIs(t, s.UpdateSeat(ctx, a.ID, 4), repository.ErrSeatTaken)
	taken, _ := s.SeatTaken(ctx, showtime, 3)
	assert.True(t, taken, "original seat stays held after a failed move")

	require.NoError(t, s.UpdateSeat(ctx, a.ID, 3))
	require.NoError(t, s.UpdateSeat(ctx, a.ID, 9))
	seats, _ := s.BookedSeats(ctx, showtime)
	assert.Equal(t, []int{4, 9}, seats)

	// the released seat is reservable again
	require.NoError(t, s.Reserve(ctx, &model.Reservation{ShowtimeID: showtime, UserID: 3, SeatNumber: 3}))
	assert.ErrorIs(t, s.UpdateSeat(ctx, 12345, 1), repository.ErrNotFound)
}

func TestConcurrentMovesIntoSameSeat(t *testing.T) {
	ctx := context.Background()
	s, showtime := seed(t, 100)
	ids := make([]uint64, 20)
	for i := range ids {
		r := &model.Reservation{ShowtimeID: showtime, UserID: uint64(i + 1), SeatNumber: i + 1}
		require.NoError(t, s.Reserve(ctx, r))
		ids[i] = r.ID
	}
	var moved int32
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			if s.UpdateSeat(ctx, id, 77) == nil {
				atomic.AddInt32(&moved, 1)
			}
		}(id)
	}
	wg.Wait()
	assert.EqualValues(t, 1, moved)
	n, _ := s.CountReservations(ctx, showtime)
	assert.Equal(t, 20, n)
}

func TestDeleteReservationReleasesSeatAndPayments(t *testing.T) {
	ctx := context.Background()
	s, showtime := seed(t, 10)
	r := &model.Reservation{ShowtimeID: showtime, UserID: 1, SeatNumber: 5}
	require.NoError(t, s.Reserve(ctx, r))
	p := &model.Payment{ReservationID: r.ID, UserID: 1, IntentID: "pi_1", Status: model.PaymentRequiresPayment}
	require.NoError(t, s.CreatePayment(ctx, p))

	require.NoError(t, s.DeleteReservation(ctx, r.ID))
	assert.ErrorIs(t, s.DeleteReservation(ctx, r.ID), repository.ErrNotFound)
	_, err := s.GetPaymentByIntent(ctx, "pi_1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	taken, _ := s.SeatTaken(ctx, showtime, 5)
	assert.False(t, taken)
}

func TestTransitionPaymentCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s, showtime := seed(t, 10)
	r := &model.Reservation{ShowtimeID: showtime, UserID: 1, SeatNumber: 1}
	require.NoError(t, s.Reserve(ctx, r))
	p := &model.Payment{ReservationID: r.ID, UserID: 1, IntentID: "pi_cas", Status: model.PaymentRequiresPayment}
	require.NoError(t, s.CreatePayment(ctx, p))

	at := time.Now().UTC()
	ok, err := s.TransitionPayment(ctx, p.ID, model.PaymentRequiresPayment, repository.PaymentChange{To: model.PaymentSucceeded, PaidAt: &at, SyncPaid: true})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TransitionPayment(ctx, p.ID, model.PaymentRequiresPayment, repository.PaymentChange{To: model.PaymentFailed})
	require.NoError(t, err)
	assert.False(t, ok, "stale from-status must not apply")

	got, _ := s.GetPayment(ctx, p.ID)
	assert.Equal(t, model.PaymentSucceeded, got.Status)
	res, _ := s.GetReservation(ctx, r.ID)
	assert.True(t, res.IsPaid)

	assert.ErrorIs(t, s.CreatePayment(ctx, &model.Payment{ReservationID: r.ID, IntentID: "pi_cas"}), repository.ErrDuplicate)
}

func TestSyncPaidFollowsSucceededPayments(t *testing.T) {
	ctx := context.Background()
	s, showtime := seed(t, 10)
	r := &model.Reservation{ShowtimeID: showtime, UserID: 1, SeatNumber: 9}
	require.NoError(t, s.Reserve(ctx, r))
	a := &model.Payment{ReservationID: r.ID, UserID: 1, IntentID: "pi_a", Status: model.PaymentRequiresPayment}
	b := &model.Payment{ReservationID: r.ID, UserID: 1, IntentID: "pi_b", Status: model.PaymentRequiresPayment}
	require.NoError(t, s.CreatePayment(ctx, a))
	require.NoError(t, s.CreatePayment(ctx, b))

	for _, p := range []*model.Payment{a, b} {
		ok, err := s.TransitionPayment(ctx, p.ID, model.PaymentRequiresPayment, repository.PaymentChange{To: model.PaymentSucceeded, SyncPaid: true})
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := s.TransitionPayment(ctx, a.ID, model.PaymentSucceeded, repository.PaymentChange{To: model.PaymentRefunded, SyncPaid: true})
	require.NoError(t, err)
	require.True(t, ok)
	res, _ := s.GetReservation(ctx, r.ID)
	assert.True(t, res.IsPaid, "b is still succeeded")

	ok, err = s.TransitionPayment(ctx, b.ID, model.PaymentSucceeded, repository.PaymentChange{To: model.PaymentRefunded, SyncPaid: true})
	require.NoError(t, err)
	require.True(t, ok)
	res, _ = s.GetReservation(ctx, r.ID)
	assert.False(t, res.IsPaid)
}

func TestReleaseUnpaid(t *testing.T) {
	ctx := context.Background()
	s, showtime := seed(t, 10)
	hold := func(seat int, status model.PaymentStatus) uint64 {
		r := &model.Reservation{ShowtimeID: showtime, UserID: 1, SeatNumber: seat}
		require.NoError(t, s.Reserve(ctx, r))
		if status != "" {
			require.NoError(t, s.CreatePayment(ctx, &model.Payment{ReservationID: r.ID, IntentID: "pi_" + string(status), Status: status}))
		}
		return r.ID
	}
	bare := hold(1, "")
	failed := hold(2, model.PaymentFailed)
	pending := hold(3, model.PaymentRequiresPayment)
	succeeded := hold(4, model.PaymentSucceeded)

	for id, want := range map[uint64]bool{bare: true, failed: true, pending: false, succeeded: false} {
		ok, err := s.ReleaseUnpaid(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, ok, "reservation %d", id)
	}
	booked, _ := s.BookedSeats(ctx, showtime)
	assert.Equal(t, []int{3, 4}, booked)

	ok, err := s.ReleaseUnpaid(ctx, bare)
	require.NoError(t, err)
	assert.False(t, ok, "already gone")
}

func TestDeleteShowtimeWithReservations(t *testing.T) {
	ctx := context.Background()
	s, showtime := seed(t, 10)
	require.NoError(t, s.Reserve(ctx, &model.Reservation{ShowtimeID: showtime, UserID: 1, SeatNumber: 2}))
	assert.ErrorIs(t, s.DeleteShowtime(ctx, showtime), repository.ErrConflict)
}

func TestDeleteMovieCascades(t *testing.T) {
	ctx := context.Background()
	s, showtime := seed(t, 10)
	st, err := s.GetShowtime(ctx, showtime)
	require.NoError(t, err)
	require.NoError(t, s.Reserve(ctx, &model.Reservation{ShowtimeID: showtime, UserID: 1, SeatNumber: 2}))

	require.NoError(t, s.DeleteMovie(ctx, st.MovieID))
	_, err = s.GetShowtime(ctx, showtime)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	taken, _ := s.SeatTaken(ctx, showtime, 2)
	assert.False(t, taken)
}

func TestListShowtimesFilterAndPage(t *testing.T) {
	ctx := context.Background()
	s, first := seed(t, 10)
	st, _ := s.GetShowtime(ctx, first)
	base := time.Now().Add(48 * time.Hour)
	for i := 0; i < 4; i++ {
		require.NoError(t, s.CreateShowtime(ctx, &model.Showtime{MovieID: st.MovieID, TheaterID: st.TheaterID, PriceCents: 900, StartsAt: base.Add(time.Duration(i) * time.Hour)}))
	}
	items, total, err := s.ListShowtimes(ctx, repository.ShowtimeFilter{MovieID: st.MovieID}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, items, 2)
	assert.True(t, items[0].StartsAt.Before(items[1].StartsAt))
	assert.Equal(t, "Heat", items[0].MovieTitle)

	to := base
	_, total, _ = s.ListShowtimes(ctx, repository.ShowtimeFilter{To: &to}, 1, 10)
	assert.Equal(t, 1, total)
}

func TestUsersAndTokens(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := &model.User{Email: " Ann@Example.com ", PasswordHash: "h"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.Equal(t, "ann@example.com", u.Email)
	assert.Equal(t, model.RoleCustomer, u.Role)
	assert.ErrorIs(t, s.CreateUser(ctx, &model.User{Email: "ann@example.com"}), repository.ErrEmailExists)

	require.NoError(t, s.StoreRefresh(ctx, u.ID, "hash", time.Now().Add(time.Hour)))
	id, err := s.ValidateRefresh(ctx, "hash")
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
	require.NoError(t, s.RevokeByHash(ctx, "hash"))
	_, err = s.ValidateRefresh(ctx, "hash")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	n, err := s.PurgeExpired(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
