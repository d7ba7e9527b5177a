package model

import "time"

// Theater is a screening room.  TotalSeats bounds the seat numbers that
// can be reserved for any showtime in it; seats are numbered 1..TotalSeats.
type Theater struct {
	ID         uint64    `json:"id"`
	Name       string    `json:"name"`
	TotalSeats int       `json:"total_seats"`
	CreatedAt  time.Time `json:"created_at"`
}

// Showtime is a scheduled screening of a movie in a theater.
//
// Fields:
//
//	ID         – primary key identifier.
//	MovieID    – movie being screened.
//	TheaterID  – theater hosting the screening.
//	PriceCents – ticket price in the smallest currency unit.
//	StartsAt   – start time in UTC; drives upcoming/past classification.
type Showtime struct {
	ID         uint64    `json:"id"`
	MovieID    uint64    `json:"movie_id"`
	TheaterID  uint64    `json:"theater_id"`
	PriceCents int64     `json:"price_cents"`
	StartsAt   time.Time `json:"starts_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ShowtimeDetail is a showtime joined with its movie and theater.
type ShowtimeDetail struct {
	Showtime
	MovieTitle      string `json:"movie_title"`
	MoviePoster     string `json:"movie_poster,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	TheaterName     string `json:"theater_name"`
	TotalSeats      int    `json:"total_seats"`
}

// Upcoming reports whether the showtime starts after now.
func (s Showtime) Upcoming(now time.Time) bool { return s.StartsAt.After(now) }

// ValidSeat reports whether seat lies within 1..TotalSeats.
func (d ShowtimeDetail) ValidSeat(seat int) bool { return seat >= 1 && seat <= d.TotalSeats }

// Availability summarises occupancy of a showtime.
type Availability struct {
	ShowtimeID          uint64  `json:"showtime_id"`
	TotalSeats          int     `json:"total_seats"`
	ReservedSeats       int     `json:"reserved_seats"`
	AvailableSeats      int     `json:"available_seats"`
	OccupancyPercentage float64 `json:"occupancy_percentage"`
	IsAvailable         bool    `json:"is_available"`
}

// SeatAvailability answers a single-seat check.
type SeatAvailability struct {
	ShowtimeID  uint64 `json:"showtime_id"`
	SeatNumber  int    `json:"seat_number"`
	IsAvailable bool   `json:"is_available"`
	Message     string `json:"message"`
}
