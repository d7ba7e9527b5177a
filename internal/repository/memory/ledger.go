package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/iliyamo/movie-reservation/internal/model"
	"github.com/iliyamo/movie-reservation/internal/repository"
)

// Reserve atomically claims (ShowtimeID, SeatNumber) for r.
func (s *Store) Reserve(_ context.Context, r *model.Reservation) error {
	k := seatKey{r.ShowtimeID, r.SeatNumber}
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, taken := sh.held[k]; taken {
		return repository.ErrSeatTaken
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.showtimes[r.ShowtimeID]; !ok {
		return repository.ErrNotFound
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now()
	}
	r.ID = s.nextID()
	row := *r
	s.reservations[r.ID] = &row
	sh.held[k] = r.ID
	return nil
}

// DeleteReservation releases the seat and drops the reservation with its
// payments.
func (s *Store) DeleteReservation(_ context.Context, id uint64) error {
	_, err := s.deleteIf(id, nil)
	return err
}

// ReleaseUnpaid drops reservation id only while it is unpaid and has no
// pending or succeeded payment.  The check runs under the same locks as
// the delete.
func (s *Store) ReleaseUnpaid(_ context.Context, id uint64) (bool, error) {
	deleted, err := s.deleteIf(id, func(r *model.Reservation) bool {
		return !r.IsPaid && !s.anyPaymentLocked(r.ID, model.PaymentStatus.Live)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return deleted, err
}

// deleteIf removes reservation id when allow is nil or returns true for the
// locked row.
func (s *Store) deleteIf(id uint64, allow func(*model.Reservation) bool) (bool, error) {
	for {
		s.mu.RLock()
		r, ok := s.reservations[id]
		var k seatKey
		if ok {
			k = seatKey{r.ShowtimeID, r.SeatNumber}
		}
		s.mu.RUnlock()
		if !ok {
			return false, repository.ErrNotFound
		}

		sh := s.shardFor(k)
		sh.mu.Lock()
		s.mu.Lock()
		cur, ok := s.reservations[id]
		switch {
		case !ok:
			s.mu.Unlock()
			sh.mu.Unlock()
			return false, repository.ErrNotFound
		case cur.ShowtimeID != k.showtime || cur.SeatNumber != k.seat:
			// moved between the read and the lock
			s.mu.Unlock()
			sh.mu.Unlock()
			continue
		case allow != nil && !allow(cur):
			s.mu.Unlock()
			sh.mu.Unlock()
			return false, nil
		}
		delete(sh.held, k)
		s.dropReservationLocked(id)
		s.mu.Unlock()
		sh.mu.Unlock()
		return true, nil
	}
}

// dropReservationLocked removes a reservation row and its payments.  The
// caller holds mu and has already released the seat.
func (s *Store) dropReservationLocked(id uint64) {
	delete(s.reservations, id)
	for pid, p := range s.payments {
		if p.ReservationID == id {
			delete(s.paymentsByIntent, p.IntentID)
			delete(s.payments, pid)
		}
	}
}

// UpdateSeat moves reservation id to newSeat.  When newSeat is held by a
// different reservation the call fails with ErrSeatTaken and nothing moves.
func (s *Store) UpdateSeat(_ context.Context, id uint64, newSeat int) error {
	for {
		s.mu.RLock()
		r, ok := s.reservations[id]
		var from seatKey
		if ok {
			from = seatKey{r.ShowtimeID, r.SeatNumber}
		}
		s.mu.RUnlock()
		if !ok {
			return repository.ErrNotFound
		}
		to := seatKey{from.showtime, newSeat}
		if to == from {
			return nil
		}

		unlock := s.lockPair(from, to)
		s.mu.Lock()
		cur, ok := s.reservations[id]
		if !ok {
			s.mu.Unlock()
			unlock()
			return repository.ErrNotFound
		}
		if cur.SeatNumber != from.seat {
			s.mu.Unlock()
			unlock()
			continue
		}
		dst := s.shardFor(to)
		if holder, taken := dst.held[to]; taken && holder != id {
			s.mu.Unlock()
			unlock()
			return repository.ErrSeatTaken
		}
		delete(s.shardFor(from).held, from)
		dst.held[to] = id
		cur.SeatNumber = newSeat
		s.mu.Unlock()
		unlock()
		return nil
	}
}

// ReservationExists reports whether id is present.
func (s *Store) ReservationExists(_ context.Context, id uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.reservations[id]
	return ok, nil
}

// GetReservation returns a copy of the reservation row.
func (s *Store) GetReservation(_ context.Context, id uint64) (*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// GetReservationDetail returns the reservation joined with its showtime.
func (s *Store) GetReservationDetail(_ context.Context, id uint64) (*model.ReservationDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	d := s.detailLocked(r)
	return &d, nil
}

func (s *Store) detailLocked(r *model.Reservation) model.ReservationDetail {
	d := model.ReservationDetail{
		ID:         r.ID,
		UserID:     r.UserID,
		SeatNumber: r.SeatNumber,
		SecretCode: r.SecretCode,
		IsPaid:     r.IsPaid,
		CreatedAt:  r.CreatedAt,
		ShowtimeID: r.ShowtimeID,
	}
	if st, ok := s.showtimes[r.ShowtimeID]; ok {
		d.PriceCents = st.PriceCents
		d.StartsAt = st.StartsAt
		if m, ok := s.movies[st.MovieID]; ok {
			d.MovieTitle = m.Title
			d.MoviePoster = m.Poster
			d.DurationMinutes = m.DurationMinutes
		}
		if t, ok := s.theaters[st.TheaterID]; ok {
			d.TheaterName = t.Name
			d.TotalSeats = t.TotalSeats
		}
	}
	return d
}

// ListReservationsByUser pages through a user's reservations, newest first.
func (s *Store) ListReservationsByUser(_ context.Context, userID uint64, page, size int) ([]model.ReservationDetail, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []model.ReservationDetail
	for _, r := range s.reservations {
		if r.UserID == userID {
			all = append(all, s.detailLocked(r))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	return paginate(all, page, size), len(all), nil
}

// BookedSeats returns the held seats of a showtime in ascending order.
func (s *Store) BookedSeats(_ context.Context, showtimeID uint64) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seats := []int{}
	for _, r := range s.reservations {
		if r.ShowtimeID == showtimeID {
			seats = append(seats, r.SeatNumber)
		}
	}
	sort.Ints(seats)
	return seats, nil
}

// SeatTaken reports whether the seat is held, reading under its shard lock.
func (s *Store) SeatTaken(_ context.Context, showtimeID uint64, seat int) (bool, error) {
	k := seatKey{showtimeID, seat}
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	_, ok := sh.held[k]
	return ok, nil
}

// CountReservations returns the number of held seats of a showtime.
func (s *Store) CountReservations(ctx context.Context, showtimeID uint64) (int, error) {
	seats, err := s.BookedSeats(ctx, showtimeID)
	return len(seats), err
}

// ListUnpaidBefore returns unpaid reservations created before cutoff,
// oldest first.
func (s *Store) ListUnpaidBefore(_ context.Context, cutoff time.Time) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Reservation
	for _, r := range s.reservations {
		if !r.IsPaid && r.CreatedAt.Before(cutoff) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
