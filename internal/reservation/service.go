// Package reservation implements the seat reservation protocol: create,
// verify, cancel and change seat.  Validation and ownership checks run
// before the ledger is touched; the ledger's atomic insert or move is the
// final word on whether a seat is free.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/movie-reservation/internal/apperr"
	"github.com/iliyamo/movie-reservation/internal/cache"
	"github.com/iliyamo/movie-reservation/internal/model"
	"github.com/iliyamo/movie-reservation/internal/repository"
)

// MaxPageSize bounds list endpoints.
const MaxPageSize = 100

// Service coordinates the ledger, the showtime catalog and cache eviction.
type Service struct {
	ledger    repository.ReservationLedger
	showtimes repository.ShowtimeStore
	inv       *cache.Invalidator
	log       *zap.Logger
	newCode   func() (string, error)
}

// NewService wires a Service.
func NewService(ledger repository.ReservationLedger, showtimes repository.ShowtimeStore, inv *cache.Invalidator, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		ledger:    ledger,
		showtimes: showtimes,
		inv:       inv,
		log:       log,
		newCode:   NewSecretCode,
	}
}

func seatTaken(seat int, showtimeID uint64) error {
	return apperr.New(apperr.SeatConflict, "Seat %d for showtime %d is already booked.", seat, showtimeID)
}

func (s *Service) loadShowtime(ctx context.Context, id uint64) (*model.ShowtimeDetail, error) {
	st, err := s.showtimes.GetShowtime(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Missing("Showtime with ID %d does not exist.", id)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return st, nil
}

func (s *Service) loadReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	if id == 0 {
		return nil, apperr.Invalid("Reservation ID must be a positive integer")
	}
	r, err := s.ledger.GetReservation(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Missing("Reservation with ID %d does not exist.", id)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return r, nil
}

// Create holds seat for userID on showtimeID.
func (s *Service) Create(ctx context.Context, userID, showtimeID uint64, seat int) (*model.ReservationDetail, error) {
	if userID == 0 {
		return nil, apperr.New(apperr.Unauthenticated, "User is not authenticated")
	}
	if showtimeID == 0 {
		return nil, apperr.Invalid("Showtime ID must be a positive integer")
	}
	if seat <= 0 {
		return nil, apperr.Invalid("Seat number must be a positive integer")
	}
	st, err := s.loadShowtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	if !st.ValidSeat(seat) {
		return nil, apperr.Invalid("Seat number %d exceeds total seats %d for the theater.", seat, st.TotalSeats)
	}

	// The pre-check only produces a friendlier early answer; the insert
	// below is what actually decides.
	taken, err := s.ledger.SeatTaken(ctx, showtimeID, seat)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if taken {
		return nil, seatTaken(seat, showtimeID)
	}

	code, err := s.newCode()
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("secret code: %w", err))
	}
	r := &model.Reservation{
		ShowtimeID: showtimeID,
		UserID:     userID,
		SeatNumber: seat,
		SecretCode: code,
		CreatedAt:  time.Now().UTC(),
	}
	switch err := s.ledger.Reserve(ctx, r); {
	case errors.Is(err, repository.ErrSeatTaken):
		return nil, seatTaken(seat, showtimeID)
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.Missing("Showtime with ID %d does not exist.", showtimeID)
	case err != nil:
		return nil, apperr.Internal(err)
	}
	s.inv.SeatsChanged(ctx, showtimeID)
	s.log.Info("reservation created",
		zap.Uint64("reservation_id", r.ID), zap.Uint64("showtime_id", showtimeID),
		zap.Int("seat", seat), zap.Uint64("user_id", userID))

	det, err := s.ledger.GetReservationDetail(ctx, r.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return det, nil
}

// Get returns the detail of reservation id.
func (s *Service) Get(ctx context.Context, id uint64) (*model.ReservationDetail, error) {
	if id == 0 {
		return nil, apperr.Invalid("Reservation ID must be a positive integer")
	}
	det, err := s.ledger.GetReservationDetail(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Missing("Reservation with ID %d does not exist.", id)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return det, nil
}

// ListByUser returns one page of the user's reservations.
func (s *Service) ListByUser(ctx context.Context, userID uint64, page, size int) (*model.Page[model.ReservationDetail], error) {
	if err := ValidatePage(page, size); err != nil {
		return nil, err
	}
	items, total, err := s.ledger.ListReservationsByUser(ctx, userID, page, size)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	p := model.NewPage(items, page, size, total)
	return &p, nil
}

// Exists reports whether reservation id exists.
func (s *Service) Exists(ctx context.Context, id uint64) (bool, error) {
	if id == 0 {
		return false, apperr.Invalid("Reservation ID must be a positive integer")
	}
	ok, err := s.ledger.ReservationExists(ctx, id)
	if err != nil {
		return false, apperr.Internal(err)
	}
	return ok, nil
}

// Verify reports whether code belongs to reservation id.  Any mismatch,
// including an unknown id, yields (false, nil, nil) so callers learn
// nothing beyond the boolean.
func (s *Service) Verify(ctx context.Context, id uint64, code string) (bool, *model.ReservationDetail, error) {
	if id == 0 {
		return false, nil, apperr.Invalid("Reservation ID must be a positive integer")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return false, nil, apperr.Invalid("Secret code cannot be null or empty")
	}
	det, err := s.ledger.GetReservationDetail(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, apperr.Internal(err)
	}
	if !codesEqual(code, det.SecretCode) {
		return false, nil, nil
	}
	return true, det, nil
}

// Cancel releases reservation id.  Only its owner may cancel it.
func (s *Service) Cancel(ctx context.Context, id, userID uint64) error {
	r, err := s.loadReservation(ctx, id)
	if err != nil {
		return err
	}
	if r.UserID != userID {
		return apperr.New(apperr.Unauthorized, "You are not authorized to cancel this reservation.")
	}
	switch err := s.ledger.DeleteReservation(ctx, id); {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.Missing("Reservation with ID %d does not exist.", id)
	case err != nil:
		return apperr.Internal(err)
	}
	s.inv.SeatsChanged(ctx, r.ShowtimeID)
	s.log.Info("reservation cancelled", zap.Uint64("reservation_id", id), zap.Uint64("user_id", userID))
	return nil
}

// ChangeSeat moves reservation id to newSeat within its showtime.  Moving
// to the current seat succeeds without touching the ledger.
func (s *Service) ChangeSeat(ctx context.Context, id uint64, newSeat int, userID uint64) error {
	if newSeat <= 0 {
		return apperr.Invalid("New seat number must be a positive integer")
	}
	r, err := s.loadReservation(ctx, id)
	if err != nil {
		return err
	}
	if r.UserID != userID {
		return apperr.New(apperr.Unauthorized, "You are not authorized to update this reservation.")
	}
	st, err := s.loadShowtime(ctx, r.ShowtimeID)
	if err != nil {
		return err
	}
	if !st.ValidSeat(newSeat) {
		return apperr.Invalid("Seat number %d exceeds total seats %d for the theater.", newSeat, st.TotalSeats)
	}
	if newSeat == r.SeatNumber {
		return nil
	}
	taken, err := s.ledger.SeatTaken(ctx, r.ShowtimeID, newSeat)
	if err != nil {
		return apperr.Internal(err)
	}
	if taken {
		return seatTaken(newSeat, r.ShowtimeID)
	}
	switch err := s.ledger.UpdateSeat(ctx, id, newSeat); {
	case errors.Is(err, repository.ErrSeatTaken):
		return seatTaken(newSeat, r.ShowtimeID)
	case errors.Is(err, repository.ErrNotFound):
		return apperr.Missing("Reservation with ID %d does not exist.", id)
	case err != nil:
		return apperr.Internal(err)
	}
	s.inv.SeatsChanged(ctx, r.ShowtimeID)
	s.log.Info("reservation seat changed",
		zap.Uint64("reservation_id", id), zap.Int("from", r.SeatNumber), zap.Int("to", newSeat))
	return nil
}

// ValidatePage checks list bounds shared by every paginated endpoint.
func ValidatePage(page, size int) error {
	if page < 1 {
		return apperr.Invalid("Page number must be at least 1")
	}
	if size < 1 || size > MaxPageSize {
		return apperr.Invalid("Page size must be between 1 and %d", MaxPageSize)
	}
	return nil
}
