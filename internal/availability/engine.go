// Package availability answers read-only occupancy questions about a
// showtime.  Results are advisory: the reservation service re-checks the
// ledger and relies on its atomic insert, so a stale seat map can at worst
// show a seat as free that is about to be rejected.
package availability

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/movie-reservation/internal/apperr"
	"github.com/iliyamo/movie-reservation/internal/cache"
	"github.com/iliyamo/movie-reservation/internal/model"
	"github.com/iliyamo/movie-reservation/internal/repository"
)

// DefaultSeatMapTTL is used when the engine is built with a zero TTL.
const DefaultSeatMapTTL = 30 * time.Second

// Engine computes booked and available seat sets.
type Engine struct {
	ledger    repository.ReservationLedger
	showtimes repository.ShowtimeStore
	cache     cache.Cache
	ttl       time.Duration
	log       *zap.Logger
}

// New returns an Engine.  c may be nil to disable seat-map caching.
func New(ledger repository.ReservationLedger, showtimes repository.ShowtimeStore, c cache.Cache, ttl time.Duration, log *zap.Logger) *Engine {
	if ttl <= 0 || ttl >= cache.SeatMapGenTTL {
		ttl = DefaultSeatMapTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{ledger: ledger, showtimes: showtimes, cache: c, ttl: ttl, log: log}
}

func (e *Engine) showtime(ctx context.Context, id uint64) (*model.ShowtimeDetail, error) {
	if id == 0 {
		return nil, apperr.Invalid("showtime id must be positive")
	}
	st, err := e.showtimes.GetShowtime(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Missing("showtime %d not found", id)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return st, nil
}

// BookedSeats returns the held seats of a showtime in ascending order.
func (e *Engine) BookedSeats(ctx context.Context, showtimeID uint64) ([]int, error) {
	if _, err := e.showtime(ctx, showtimeID); err != nil {
		return nil, err
	}
	return e.booked(ctx, showtimeID)
}

// booked reads the seat map through the cache.  The entry is keyed by the
// generation read before the ledger, so a result that raced a mutation is
// stored under a generation the invalidator already retired.  Cache errors
// degrade to a ledger read.
func (e *Engine) booked(ctx context.Context, showtimeID uint64) ([]int, error) {
	key, cacheable := "", false
	if e.cache != nil {
		var gen string
		if _, err := e.cache.Get(ctx, cache.SeatMapGenKey(showtimeID), &gen); err != nil {
			e.log.Warn("seat map generation read failed", zap.Uint64("showtime_id", showtimeID), zap.Error(err))
		} else {
			key, cacheable = cache.VersionedSeatMapKey(showtimeID, gen), true
		}
	}
	if cacheable {
		var seats []int
		ok, err := e.cache.Get(ctx, key, &seats)
		if err != nil {
			e.log.Warn("seat map cache read failed", zap.Uint64("showtime_id", showtimeID), zap.Error(err))
		} else if ok {
			return seats, nil
		}
	}
	seats, err := e.ledger.BookedSeats(ctx, showtimeID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if cacheable {
		if err := e.cache.Set(ctx, key, seats, e.ttl); err != nil {
			e.log.Warn("seat map cache write failed", zap.Uint64("showtime_id", showtimeID), zap.Error(err))
		}
	}
	return seats, nil
}

// AvailableSeats returns every seat in 1..total_seats not currently held,
// ascending.  Together with BookedSeats it partitions the theater.
func (e *Engine) AvailableSeats(ctx context.Context, showtimeID uint64) ([]int, error) {
	st, err := e.showtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	booked, err := e.booked(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	return Complement(st.TotalSeats, booked), nil
}

// IsSeatAvailable reports whether seat is free.  Seats outside the
// theater's range are InvalidInput.
func (e *Engine) IsSeatAvailable(ctx context.Context, showtimeID uint64, seat int) (bool, error) {
	st, err := e.showtime(ctx, showtimeID)
	if err != nil {
		return false, err
	}
	if !st.ValidSeat(seat) {
		return false, apperr.Invalid("seat number must be between 1 and %d", st.TotalSeats)
	}
	taken, err := e.ledger.SeatTaken(ctx, showtimeID, seat)
	if err != nil {
		return false, apperr.Internal(err)
	}
	return !taken, nil
}

// SeatStatus wraps IsSeatAvailable with a human readable message.
func (e *Engine) SeatStatus(ctx context.Context, showtimeID uint64, seat int) (*model.SeatAvailability, error) {
	ok, err := e.IsSeatAvailable(ctx, showtimeID, seat)
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("Seat %d for showtime %d is available.", seat, showtimeID)
	if !ok {
		msg = fmt.Sprintf("Seat %d for showtime %d is already booked.", seat, showtimeID)
	}
	return &model.SeatAvailability{ShowtimeID: showtimeID, SeatNumber: seat, IsAvailable: ok, Message: msg}, nil
}

// Summary reports seat counts and occupancy for a showtime.
func (e *Engine) Summary(ctx context.Context, showtimeID uint64) (*model.Availability, error) {
	st, err := e.showtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	reserved, err := e.ledger.CountReservations(ctx, showtimeID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return Summarize(showtimeID, st.TotalSeats, reserved), nil
}

// Summarize builds an Availability from raw counts.  Occupancy is
// reserved/total*100 rounded to two decimals.
func Summarize(showtimeID uint64, total, reserved int) *model.Availability {
	available := total - reserved
	if available < 0 {
		available = 0
	}
	occ := 0.0
	if total > 0 {
		occ = math.Round(float64(reserved)/float64(total)*100*100) / 100
	}
	return &model.Availability{
		ShowtimeID:          showtimeID,
		TotalSeats:          total,
		ReservedSeats:       reserved,
		AvailableSeats:      available,
		OccupancyPercentage: occ,
		IsAvailable:         available > 0,
	}
}

// Complement returns 1..total minus booked, ascending.  booked must be
// sorted.
func Complement(total int, booked []int) []int {
	out := make([]int, 0, total)
	j := 0
	for seat := 1; seat <= total; seat++ {
		for j < len(booked) && booked[j] < seat {
			j++
		}
		if j < len(booked) && booked[j] == seat {
			continue
		}
		out = append(out, seat)
	}
	return out
}
