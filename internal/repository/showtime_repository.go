// Package repository contains data access logic for showtimes.  A showtime
// is a scheduled screening of a movie in a theater; the theater's seat
// count bounds the seat numbers that may be reserved for it.
package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"errors"       // errors for sentinel comparisons
	"time"         // timestamps for created_at/updated_at

	"github.com/iliyamo/movie-reservation/internal/model"
)

// ShowtimeRepo manages persistence for showtimes.
type ShowtimeRepo struct {
	db *sql.DB
}

// NewShowtimeRepo constructs a ShowtimeRepo.
func NewShowtimeRepo(db *sql.DB) *ShowtimeRepo {
	return &ShowtimeRepo{db: db}
}

// DB exposes the underlying sql.DB.
func (r *ShowtimeRepo) DB() *sql.DB {
	return r.db
}

// showtimeSelect joins a showtime with its movie and theater.
const showtimeSelect = `SELECT s.id, s.movie_id, s.theater_id, s.price_cents, s.starts_at, s.created_at, s.updated_at,
                               m.title, m.poster, m.duration_minutes,
                               t.name, t.total_seats
                        FROM showtimes s
                        JOIN movies m ON m.id = s.movie_id
                        JOIN theaters t ON t.id = s.theater_id`

// GetShowtime returns the showtime with its movie and theater details or
// ErrNotFound.
func (r *ShowtimeRepo) GetShowtime(ctx context.Context, id uint64) (*model.ShowtimeDetail, error) {
	d, err := scanShowtime(r.db.QueryRowContext(ctx, showtimeSelect+` WHERE s.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// CreateShowtime inserts s and populates the generated ID.  A missing
// movie or theater surfaces as ErrNotFound through the foreign keys.
func (r *ShowtimeRepo) CreateShowtime(ctx context.Context, s *model.Showtime) error {
	const q = `INSERT INTO showtimes (movie_id, theater_id, price_cents, starts_at, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	res, err := r.db.ExecContext(ctx, q, s.MovieID, s.TheaterID, s.PriceCents, s.StartsAt.UTC(), now, now)
	if err != nil {
		if isMissingParent(err) {
			return ErrNotFound
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// UpdateShowtime rewrites price, start time and theater.  It returns
// ErrNotFound when the row does not exist.
func (r *ShowtimeRepo) UpdateShowtime(ctx context.Context, s *model.Showtime) error {
	const q = `UPDATE showtimes SET theater_id = ?, price_cents = ?, starts_at = ?, updated_at = ? WHERE id = ?`
	s.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, q, s.TheaterID, s.PriceCents, s.StartsAt.UTC(), s.UpdatedAt, s.ID)
	if err != nil {
		if isMissingParent(err) {
			return ErrNotFound
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteShowtime removes a showtime that has no reservations.  Showtimes
// with reservations yield ErrConflict; the check and the delete share a
// transaction holding a lock on the showtime row so a concurrent reserve
// cannot slip in between.
func (r *ShowtimeRepo) DeleteShowtime(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var locked uint64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM showtimes WHERE id = ? FOR UPDATE`, id).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE showtime_id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM showtimes WHERE id = ?`, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func scanShowtime(s rowScanner) (*model.ShowtimeDetail, error) {
	var d model.ShowtimeDetail
	var poster sql.NullString
	err := s.Scan(&d.ID, &d.MovieID, &d.TheaterID, &d.PriceCents, &d.StartsAt, &d.CreatedAt, &d.UpdatedAt,
		&d.MovieTitle, &poster, &d.DurationMinutes, &d.TheaterName, &d.TotalSeats)
	if err != nil {
		return nil, err
	}
	d.MoviePoster = poster.String
	return &d, nil
}
