// Package catalog manages theaters, categories, movies and showtimes.
// Unfiltered listings are served through the cache; every write evicts the
// listing keys it could have made stale.
package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/movie-reservation/internal/apperr"
	"github.com/iliyamo/movie-reservation/internal/cache"
	"github.com/iliyamo/movie-reservation/internal/model"
	"github.com/iliyamo/movie-reservation/internal/repository"
	"github.com/iliyamo/movie-reservation/internal/reservation"
)

// DefaultListTTL is used when the service is built with a zero TTL.
const DefaultListTTL = 5 * time.Minute

// Service implements catalog reads and admin writes.
type Service struct {
	movies    repository.MovieStore
	showtimes repository.ShowtimeStore
	theaters  repository.TheaterStore
	ledger    repository.ReservationLedger
	cache     cache.Cache
	inv       *cache.Invalidator
	ttl       time.Duration
	log       *zap.Logger
	now       func() time.Time
}

// Deps groups the stores a Service needs.
type Deps struct {
	Movies    repository.MovieStore
	Showtimes repository.ShowtimeStore
	Theaters  repository.TheaterStore
	Ledger    repository.ReservationLedger
}

// NewService returns a Service.  c may be nil to disable listing caches.
func NewService(d Deps, c cache.Cache, inv *cache.Invalidator, ttl time.Duration, log *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultListTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		movies:    d.Movies,
		showtimes: d.Showtimes,
		theaters:  d.Theaters,
		ledger:    d.Ledger,
		cache:     c,
		inv:       inv,
		ttl:       ttl,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// cached loads key into dst or fills it with load.  Cache failures only
// cost latency.
func cached[T any](ctx context.Context, s *Service, key string, load func() (T, error)) (T, error) {
	var v T
	if s.cache != nil {
		ok, err := s.cache.Get(ctx, key, &v)
		if err != nil {
			s.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return v, nil
		}
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, v, s.ttl); err != nil {
			s.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return v, nil
}

// TheaterInput is the payload for creating a theater.
type TheaterInput struct {
	Name       string `json:"name" validate:"required,max=100"`
	TotalSeats int    `json:"total_seats" validate:"required,gt=0,lte=1000"`
}

func (s *Service) ListTheaters(ctx context.Context) ([]model.Theater, error) {
	ts, err := s.theaters.ListTheaters(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return ts, nil
}

func (s *Service) GetTheater(ctx context.Context, id uint64) (*model.Theater, error) {
	t, err := s.theaters.GetTheater(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Missing("Theater with ID %d does not exist.", id)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return t, nil
}

// CreateTheater adds a screening room.
func (s *Service) CreateTheater(ctx context.Context, in TheaterInput) (*model.Theater, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Invalid("Theater name is required")
	}
	if in.TotalSeats <= 0 {
		return nil, apperr.Invalid("Total seats must be a positive integer")
	}
	t := &model.Theater{Name: name, TotalSeats: in.TotalSeats}
	if err := s.theaters.CreateTheater(ctx, t); err != nil {
		return nil, apperr.Internal(err)
	}
	s.log.Info("theater created", zap.Uint64("theater_id", t.ID), zap.Int("total_seats", t.TotalSeats))
	return t, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]model.Category, error) {
	cs, err := s.movies.ListCategories(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return cs, nil
}

// CreateCategory adds a category.  Names are unique ignoring case.
func (s *Service) CreateCategory(ctx context.Context, name string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("Category name is required")
	}
	c := &model.Category{Name: name}
	switch err := s.movies.CreateCategory(ctx, c); {
	case errors.Is(err, repository.ErrDuplicate):
		return nil, apperr.New(apperr.Conflict, "Category %q already exists.", name)
	case err != nil:
		return nil, apperr.Internal(err)
	}
	return c, nil
}

// validatePage shares the reservation list bounds.
func validatePage(page, size int) error { return reservation.ValidatePage(page, size) }
