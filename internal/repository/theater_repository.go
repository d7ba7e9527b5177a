// Package repository contains data access logic separated from HTTP handlers.
// This file defines repository methods for theaters.  A Theater is a single
// screening room; its TotalSeats value fixes the seat numbering 1..N used
// by every showtime hosted there.
package repository

import (
	"context"      // context allows passing deadlines and cancellation signals to DB operations
	"database/sql" // sql provides generic database operations and drivers
	"errors"       // errors is used to compare sentinel values

	"github.com/iliyamo/movie-reservation/internal/model"
)

// TheaterRepo encapsulates all database queries related to theaters.  It
// depends on a sql.DB connection which should be configured elsewhere.
type TheaterRepo struct {
	db *sql.DB // db is the underlying database connection pool
}

// NewTheaterRepo constructs a TheaterRepo with the provided DB handle.
func NewTheaterRepo(db *sql.DB) *TheaterRepo {
	return &TheaterRepo{db: db}
}

// CreateTheater inserts a new theater.  On success the theater's ID and
// CreatedAt fields are populated with the stored values.
func (r *TheaterRepo) CreateTheater(ctx context.Context, t *model.Theater) error {
	const qInsert = "INSERT INTO theaters (name, total_seats) VALUES (?, ?)"
	res, err := r.db.ExecContext(ctx, qInsert, t.Name, t.TotalSeats)
	if err != nil {
		return err // propagate DB errors to the caller
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)

	// Perform a follow-up SELECT to populate the default created_at column.
	const qSelect = "SELECT created_at FROM theaters WHERE id = ?"
	return r.db.QueryRowContext(ctx, qSelect, t.ID).Scan(&t.CreatedAt)
}

// GetTheater fetches a theater by its ID.  It returns ErrNotFound if no row
// is found.
func (r *TheaterRepo) GetTheater(ctx context.Context, id uint64) (*model.Theater, error) {
	const q = "SELECT id, name, total_seats, created_at FROM theaters WHERE id = ?"
	var t model.Theater
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.Name, &t.TotalSeats, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListTheaters returns all theaters ordered by name.
func (r *TheaterRepo) ListTheaters(ctx context.Context) ([]model.Theater, error) {
	const q = "SELECT id, name, total_seats, created_at FROM theaters ORDER BY name, id"
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Theater{}
	for rows.Next() {
		var t model.Theater
		if err := rows.Scan(&t.ID, &t.Name, &t.TotalSeats, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
