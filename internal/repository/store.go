package repository

import (
	"context"
	"time"

	"github.com/iliyamo/movie-reservation/internal/model"
)

// ReservationLedger is the authoritative record of seat occupancy.  Reserve
// and UpdateSeat must be atomic with respect to other writers of the same
// (showtime, seat) pair and return ErrSeatTaken when the pair is held.
type ReservationLedger interface {
	Reserve(ctx context.Context, r *model.Reservation) error
	DeleteReservation(ctx context.Context, id uint64) error
	UpdateSeat(ctx context.Context, id uint64, newSeat int) error
	ReservationExists(ctx context.Context, id uint64) (bool, error)
	GetReservation(ctx context.Context, id uint64) (*model.Reservation, error)
	GetReservationDetail(ctx context.Context, id uint64) (*model.ReservationDetail, error)
	ListReservationsByUser(ctx context.Context, userID uint64, page, size int) ([]model.ReservationDetail, int, error)
	BookedSeats(ctx context.Context, showtimeID uint64) ([]int, error)
	SeatTaken(ctx context.Context, showtimeID uint64, seat int) (bool, error)
	CountReservations(ctx context.Context, showtimeID uint64) (int, error)
	ListUnpaidBefore(ctx context.Context, cutoff time.Time) ([]model.Reservation, error)
	// ReleaseUnpaid deletes reservation id only if it is unpaid and has no
	// pending or succeeded payment, deciding and deleting atomically.  It
	// reports whether the row was deleted.
	ReleaseUnpaid(ctx context.Context, id uint64) (bool, error)
}

// PaymentChange describes the columns written by a status transition.
// Nil fields are left untouched.  SyncPaid recomputes the linked
// reservation's paid flag from its payments: paid while any of them is
// succeeded.
type PaymentChange struct {
	To            model.PaymentStatus
	PaidAt        *time.Time
	RefundedAt    *time.Time
	FailureReason *string
	SyncPaid      bool
}

// PaymentStore persists payment attempts.  TransitionPayment applies ch only
// if the stored status still equals from, updating the linked reservation's
// paid flag in the same transaction; it reports whether a row changed.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p *model.Payment) error
	GetPayment(ctx context.Context, id uint64) (*model.Payment, error)
	GetPaymentByIntent(ctx context.Context, intentID string) (*model.Payment, error)
	ListPaymentsByReservation(ctx context.Context, reservationID uint64) ([]model.Payment, error)
	TransitionPayment(ctx context.Context, id uint64, from model.PaymentStatus, ch PaymentChange) (bool, error)
}

// ShowtimeFilter narrows showtime listings.  Zero values mean "any".
type ShowtimeFilter struct {
	MovieID   uint64
	TheaterID uint64
	From      *time.Time
	To        *time.Time
}

// ShowtimeStore persists showtimes.
type ShowtimeStore interface {
	GetShowtime(ctx context.Context, id uint64) (*model.ShowtimeDetail, error)
	ListShowtimes(ctx context.Context, f ShowtimeFilter, page, size int) ([]model.ShowtimeDetail, int, error)
	CreateShowtime(ctx context.Context, s *model.Showtime) error
	UpdateShowtime(ctx context.Context, s *model.Showtime) error
	DeleteShowtime(ctx context.Context, id uint64) error
}

// MovieFilter narrows movie listings.  Zero values mean "any".
type MovieFilter struct {
	CategoryID uint64
	Search     string
	MaxAge     int
}

// MovieStore persists movies and their categories.
type MovieStore interface {
	ListMovies(ctx context.Context, f MovieFilter, page, size int) ([]model.Movie, int, error)
	GetMovie(ctx context.Context, id uint64) (*model.Movie, error)
	GetMovieBySlug(ctx context.Context, slug string) (*model.Movie, error)
	CreateMovie(ctx context.Context, m *model.Movie) error
	UpdateMovie(ctx context.Context, m *model.Movie) error
	DeleteMovie(ctx context.Context, id uint64) error
	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, c *model.Category) error
}

// TheaterStore persists theaters.
type TheaterStore interface {
	ListTheaters(ctx context.Context) ([]model.Theater, error)
	GetTheater(ctx context.Context, id uint64) (*model.Theater, error)
	CreateTheater(ctx context.Context, t *model.Theater) error
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id uint64) (*model.User, error)
	UpdatePassword(ctx context.Context, id uint64, hash string) error
}

// TokenStore persists hashed refresh tokens.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
