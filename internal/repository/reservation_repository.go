package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/movie-reservation/internal/model"
)

// ReservationRepo is the MySQL seat ledger.  Occupancy is enforced by the
// unique key uq_reservations_showtime_seat (showtime_id, seat_number): a
// concurrent insert or seat move onto a held pair fails with ER_DUP_ENTRY,
// which is reported as ErrSeatTaken.  All timestamps are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle for callers that need a transaction.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

// detailSelect joins a reservation with its showtime, movie and theater.
const detailSelect = `SELECT r.id, r.user_id, r.seat_number, r.secret_code, r.is_paid, r.created_at,
                             s.id, s.price_cents, s.starts_at,
                             m.title, m.poster, m.duration_minutes,
                             t.name, t.total_seats
                      FROM reservations r
                      JOIN showtimes s ON s.id = r.showtime_id
                      JOIN movies m ON m.id = s.movie_id
                      JOIN theaters t ON t.id = s.theater_id`

// Reserve inserts a new reservation and populates its ID and CreatedAt.
// The insert is the atomic check: when another reservation already holds
// (ShowtimeID, SeatNumber) the unique key rejects it and ErrSeatTaken is
// returned.
func (r *ReservationRepo) Reserve(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (showtime_id, user_id, seat_number, secret_code, is_paid, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	result, err := r.db.ExecContext(ctx, q, res.ShowtimeID, res.UserID, res.SeatNumber, res.SecretCode, res.IsPaid, res.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrSeatTaken
		}
		if isMissingParentVia(err, fkReservationShowtime) {
			return ErrNotFound
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// DeleteReservation removes a reservation.  Payments cascade.
func (r *ReservationRepo) DeleteReservation(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReleaseUnpaid deletes an unpaid reservation that has no pending or
// succeeded payment.  The conditions are evaluated by the DELETE itself, so
// a payment recorded or settled after the caller listed candidates keeps
// the reservation.
func (r *ReservationRepo) ReleaseUnpaid(ctx context.Context, id uint64) (bool, error) {
	const q = `DELETE FROM reservations
               WHERE id = ? AND is_paid = 0
                 AND NOT EXISTS (SELECT 1 FROM payments
                                 WHERE reservation_id = ? AND status NOT IN (?, ?, ?))`
	res, err := r.db.ExecContext(ctx, q, id, id,
		string(model.PaymentFailed), string(model.PaymentRefunded), string(model.PaymentCanceled))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateSeat moves a reservation to newSeat within the same showtime.  A
// single UPDATE is atomic: if newSeat is held the unique key rejects the
// statement and the original seat stays occupied.
func (r *ReservationRepo) UpdateSeat(ctx context.Context, id uint64, newSeat int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE reservations SET seat_number = ? WHERE id = ?`, newSeat, id)
	if err != nil {
		if isDuplicate(err) {
			return ErrSeatTaken
		}
		return err
	}
	// MySQL reports 0 affected rows when the value is unchanged, so a
	// missing row has to be distinguished explicitly.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		ok, err := r.ReservationExists(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
	}
	return nil
}

// ReservationExists reports whether a reservation with id exists.
func (r *ReservationRepo) ReservationExists(ctx context.Context, id uint64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM reservations WHERE id = ? LIMIT 1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// GetReservation loads the bare reservation row.
func (r *ReservationRepo) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT id, showtime_id, user_id, seat_number, secret_code, is_paid, created_at FROM reservations WHERE id = ?`
	var res model.Reservation
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&res.ID, &res.ShowtimeID, &res.UserID, &res.SeatNumber, &res.SecretCode, &res.IsPaid, &res.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetReservationDetail loads a reservation joined with showtime, movie and theater.
func (r *ReservationRepo) GetReservationDetail(ctx context.Context, id uint64) (*model.ReservationDetail, error) {
	row := r.db.QueryRowContext(ctx, detailSelect+` WHERE r.id = ?`, id)
	det, err := scanDetail(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return det, nil
}

// ListReservationsByUser returns one page of the user's reservations,
// newest first, together with the total count.
func (r *ReservationRepo) ListReservationsByUser(ctx context.Context, userID uint64, page, size int) ([]model.ReservationDetail, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx, detailSelect+` WHERE r.user_id = ? ORDER BY r.created_at DESC, r.id DESC LIMIT ? OFFSET ?`,
		userID, size, (page-1)*size)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []model.ReservationDetail{}
	for rows.Next() {
		det, err := scanDetail(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *det)
	}
	return out, total, rows.Err()
}

// BookedSeats returns the occupied seat numbers of a showtime in ascending order.
func (r *ReservationRepo) BookedSeats(ctx context.Context, showtimeID uint64) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT seat_number FROM reservations WHERE showtime_id = ? ORDER BY seat_number`, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := []int{}
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		seats = append(seats, n)
	}
	return seats, rows.Err()
}

// SeatTaken reports whether (showtimeID, seat) is held.
func (r *ReservationRepo) SeatTaken(ctx context.Context, showtimeID uint64, seat int) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM reservations WHERE showtime_id = ? AND seat_number = ? LIMIT 1`, showtimeID, seat).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// CountReservations returns the number of held seats of a showtime.
func (r *ReservationRepo) CountReservations(ctx context.Context, showtimeID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE showtime_id = ?`, showtimeID).Scan(&n)
	return n, err
}

// ListUnpaidBefore returns unpaid reservations created before cutoff.
func (r *ReservationRepo) ListUnpaidBefore(ctx context.Context, cutoff time.Time) ([]model.Reservation, error) {
	const q = `SELECT id, showtime_id, user_id, seat_number, secret_code, is_paid, created_at
               FROM reservations WHERE is_paid = 0 AND created_at < ? ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		var res model.Reservation
		if err := rows.Scan(&res.ID, &res.ShowtimeID, &res.UserID, &res.SeatNumber, &res.SecretCode, &res.IsPaid, &res.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDetail(s rowScanner) (*model.ReservationDetail, error) {
	var det model.ReservationDetail
	var poster sql.NullString
	err := s.Scan(
		&det.ID, &det.UserID, &det.SeatNumber, &det.SecretCode, &det.IsPaid, &det.CreatedAt,
		&det.ShowtimeID, &det.PriceCents, &det.StartsAt,
		&det.MovieTitle, &poster, &det.DurationMinutes,
		&det.TheaterName, &det.TotalSeats,
	)
	if err != nil {
		return nil, err
	}
	det.MoviePoster = poster.String
	return &det, nil
}
