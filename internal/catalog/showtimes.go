package catalog

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/movie-reservation/internal/apperr"
	"github.com/iliyamo/movie-reservation/internal/cache"
	"github.com/iliyamo/movie-reservation/internal/model"
	"github.com/iliyamo/movie-reservation/internal/repository"
	"github.com/iliyamo/movie-reservation/internal/reservation"
)

// DefaultDaysAhead is the window of UpcomingShowtimes when none is given.
const DefaultDaysAhead = 7

// ShowtimeInput is the payload for creating or updating a showtime.
type ShowtimeInput struct {
	MovieID    uint64    `json:"movie_id" validate:"required,gt=0"`
	TheaterID  uint64    `json:"theater_id" validate:"required,gt=0"`
	PriceCents int64     `json:"price_cents" validate:"required,gt=0"`
	StartsAt   time.Time `json:"starts_at" validate:"required"`
}

func (s *Service) validateShowtime(ctx context.Context, in ShowtimeInput) (*model.Theater, error) {
	if in.MovieID == 0 {
		return nil, apperr.Invalid("Movie ID must be a positive integer")
	}
	if in.TheaterID == 0 {
		return nil, apperr.Invalid("Theater ID must be a positive integer")
	}
	if in.PriceCents <= 0 {
		return nil, apperr.Invalid("Price must be greater than zero")
	}
	if !in.StartsAt.After(s.now()) {
		return nil, apperr.Invalid("Start time must be in the future")
	}
	if _, err := s.GetMovie(ctx, in.MovieID); err != nil {
		return nil, err
	}
	return s.GetTheater(ctx, in.TheaterID)
}

// ListShowtimes returns one page of all showtimes ordered by start time.
func (s *Service) ListShowtimes(ctx context.Context, page, size int) (*model.Page[model.ShowtimeDetail], error) {
	if err := validatePage(page, size); err != nil {
		return nil, err
	}
	p, err := cached(ctx, s, cache.ShowtimePageKey(page, size), func() (model.Page[model.ShowtimeDetail], error) {
		return s.listShowtimes(ctx, repository.ShowtimeFilter{}, page, size)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) listShowtimes(ctx context.Context, f repository.ShowtimeFilter, page, size int) (model.Page[model.ShowtimeDetail], error) {
	items, total, err := s.showtimes.ListShowtimes(ctx, f, page, size)
	if err != nil {
		return model.Page[model.ShowtimeDetail]{}, apperr.Internal(err)
	}
	return model.NewPage(items, page, size, total), nil
}

func (s *Service) filtered(ctx context.Context, f repository.ShowtimeFilter, page, size int) (*model.Page[model.ShowtimeDetail], error) {
	if err := validatePage(page, size); err != nil {
		return nil, err
	}
	p, err := s.listShowtimes(ctx, f, page, size)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ShowtimesByMovie lists the showtimes of one movie.
func (s *Service) ShowtimesByMovie(ctx context.Context, movieID uint64, page, size int) (*model.Page[model.ShowtimeDetail], error) {
	if _, err := s.GetMovie(ctx, movieID); err != nil {
		return nil, err
	}
	return s.filtered(ctx, repository.ShowtimeFilter{MovieID: movieID}, page, size)
}

// ShowtimesByMovieAndDate lists every showtime of one movie starting on
// the UTC calendar day of date, unpaged and ordered by start time.
func (s *Service) ShowtimesByMovieAndDate(ctx context.Context, movieID uint64, date time.Time) ([]model.ShowtimeDetail, error) {
	if _, err := s.GetMovie(ctx, movieID); err != nil {
		return nil, err
	}
	d := date.UTC()
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	f := repository.ShowtimeFilter{MovieID: movieID, From: &from, To: &to}

	out := []model.ShowtimeDetail{}
	for page := 1; ; page++ {
		items, total, err := s.showtimes.ListShowtimes(ctx, f, page, reservation.MaxPageSize)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		out = append(out, items...)
		if len(items) == 0 || len(out) >= total {
			return out, nil
		}
	}
}

// ShowtimesByTheater lists the showtimes hosted by one theater.
func (s *Service) ShowtimesByTheater(ctx context.Context, theaterID uint64, page, size int) (*model.Page[model.ShowtimeDetail], error) {
	if theaterID == 0 {
		return nil, apperr.Invalid("Theater ID must be a positive integer")
	}
	if _, err := s.GetTheater(ctx, theaterID); err != nil {
		return nil, err
	}
	return s.filtered(ctx, repository.ShowtimeFilter{TheaterID: theaterID}, page, size)
}

// UpcomingShowtimes lists showtimes starting within daysAhead days.  A
// zero daysAhead selects DefaultDaysAhead.
func (s *Service) UpcomingShowtimes(ctx context.Context, daysAhead, page, size int) (*model.Page[model.ShowtimeDetail], error) {
	if daysAhead == 0 {
		daysAhead = DefaultDaysAhead
	}
	if daysAhead < 0 || daysAhead > 365 {
		return nil, apperr.Invalid("Days ahead must be between 1 and 365")
	}
	from := s.now()
	to := from.AddDate(0, 0, daysAhead)
	return s.filtered(ctx, repository.ShowtimeFilter{From: &from, To: &to}, page, size)
}

func (s *Service) GetShowtime(ctx context.Context, id uint64) (*model.ShowtimeDetail, error) {
	if id == 0 {
		return nil, apperr.Invalid("Showtime ID must be a positive integer")
	}
	st, err := s.showtimes.GetShowtime(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Missing("Showtime with ID %d does not exist.", id)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return st, nil
}

// CreateShowtime schedules a screening.  The price is fixed per showtime
// and captured by each payment intent at creation.
func (s *Service) CreateShowtime(ctx context.Context, in ShowtimeInput) (*model.ShowtimeDetail, error) {
	if _, err := s.validateShowtime(ctx, in); err != nil {
		return nil, err
	}
	st := &model.Showtime{MovieID: in.MovieID, TheaterID: in.TheaterID, PriceCents: in.PriceCents, StartsAt: in.StartsAt.UTC()}
	switch err := s.showtimes.CreateShowtime(ctx, st); {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.Missing("Movie or theater no longer exists.")
	case err != nil:
		return nil, apperr.Internal(err)
	}
	s.inv.CatalogChanged(ctx)
	s.log.Info("showtime created", zap.Uint64("showtime_id", st.ID), zap.Uint64("movie_id", st.MovieID))
	return s.GetShowtime(ctx, st.ID)
}

// UpdateShowtime moves, reprices or relocates a showtime.  A theater change
// is refused when an existing reservation would fall outside the new
// theater's seat range.  The movie of a showtime cannot change.
func (s *Service) UpdateShowtime(ctx context.Context, id uint64, in ShowtimeInput) (*model.ShowtimeDetail, error) {
	cur, err := s.GetShowtime(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.MovieID == 0 {
		in.MovieID = cur.MovieID
	}
	if in.MovieID != cur.MovieID {
		return nil, apperr.Invalid("The movie of a showtime cannot be changed")
	}
	th, err := s.validateShowtime(ctx, in)
	if err != nil {
		return nil, err
	}
	if th.ID != cur.TheaterID {
		booked, err := s.ledger.BookedSeats(ctx, id)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if n := len(booked); n > 0 && booked[n-1] > th.TotalSeats {
			return nil, apperr.New(apperr.Conflict, "Seat %d is reserved but theater %d has only %d seats.", booked[n-1], th.ID, th.TotalSeats)
		}
	}
	st := cur.Showtime
	st.TheaterID, st.PriceCents, st.StartsAt = in.TheaterID, in.PriceCents, in.StartsAt.UTC()
	switch err := s.showtimes.UpdateShowtime(ctx, &st); {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.Missing("Showtime with ID %d does not exist.", id)
	case err != nil:
		return nil, apperr.Internal(err)
	}
	s.inv.SeatsChanged(ctx, id)
	s.inv.CatalogChanged(ctx)
	return s.GetShowtime(ctx, id)
}

// DeleteShowtime removes a showtime without reservations.
func (s *Service) DeleteShowtime(ctx context.Context, id uint64) error {
	if id == 0 {
		return apperr.Invalid("Showtime ID must be a positive integer")
	}
	switch err := s.showtimes.DeleteShowtime(ctx, id); {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.Missing("Showtime with ID %d does not exist.", id)
	case errors.Is(err, repository.ErrConflict):
		return apperr.New(apperr.Conflict, "Cannot delete showtime %d because it has reservations.", id)
	case err != nil:
		return apperr.Internal(err)
	}
	s.inv.SeatsChanged(ctx, id)
	s.inv.CatalogChanged(ctx)
	s.log.Info("showtime deleted", zap.Uint64("showtime_id", id))
	return nil
}
