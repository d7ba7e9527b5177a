package model

import "time"

// Reservation records a single held seat for a showtime.  A row in the
// reservations table occupies (ShowtimeID, SeatNumber) until it is
// cancelled; the pair is unique across the table.
//
// Fields:
//
//	ID         – primary key identifier.
//	ShowtimeID – showtime the seat belongs to.
//	UserID     – user who owns the reservation.
//	SeatNumber – 1-based seat number, at most the theater's total seats.
//	SecretCode – 8 character code presented at the venue.
//	IsPaid     – true once a linked payment has succeeded.
//	CreatedAt  – creation timestamp.
type Reservation struct {
	ID         uint64    // reservations.id
	ShowtimeID uint64    // reservations.showtime_id
	UserID     uint64    // reservations.user_id
	SeatNumber int       // reservations.seat_number
	SecretCode string    // reservations.secret_code
	IsPaid     bool      // reservations.is_paid
	CreatedAt  time.Time // reservations.created_at
}

// ReservationDetail joins a reservation with its showtime, movie and
// theater.  It is the shape returned to clients and handed to
// notification templates.
type ReservationDetail struct {
	ID              uint64    `json:"id"`
	UserID          uint64    `json:"-"`
	SeatNumber      int       `json:"seat_number"`
	SecretCode      string    `json:"secret_code,omitempty"`
	IsPaid          bool      `json:"is_paid"`
	CreatedAt       time.Time `json:"created_at"`
	ShowtimeID      uint64    `json:"showtime_id"`
	PriceCents      int64     `json:"price_cents"`
	StartsAt        time.Time `json:"starts_at"`
	MovieTitle      string    `json:"movie_title"`
	MoviePoster     string    `json:"movie_poster,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	TheaterName     string    `json:"theater_name"`
	TotalSeats      int       `json:"total_seats"`
}

// Redacted returns a copy without the secret code.
func (d ReservationDetail) Redacted() ReservationDetail {
	d.SecretCode = ""
	return d
}

// Page is a generic page of results.
type Page[T any] struct {
	Items      []T `json:"items"`
	PageNumber int `json:"page_number"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// NewPage assembles a Page and computes the page count.
func NewPage[T any](items []T, page, size, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	return Page[T]{Items: items, PageNumber: page, PageSize: size, TotalCount: total, TotalPages: pages}
}
