package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-reservation/internal/apperr"
	"github.com/iliyamo/movie-reservation/internal/cache"
	"github.com/iliyamo/movie-reservation/internal/model"
	"github.com/iliyamo/movie-reservation/internal/repository"
)

// maxSlugAttempts bounds the "-N" suffix search for a free slug.
const maxSlugAttempts = 50

// MovieInput is the payload for creating or replacing a movie.
type MovieInput struct {
	Title           string     `json:"title" validate:"required,max=200"`
	Description     string     `json:"description" validate:"max=4000"`
	Poster          string     `json:"poster" validate:"omitempty,url"`
	DurationMinutes int        `json:"duration_minutes" validate:"required,gt=0,lte=600"`
	SuitableAge     int        `json:"suitable_age" validate:"gte=0,lte=21"`
	ReleaseDate     *time.Time `json:"release_date"`
	CategoryID      uint64     `json:"category_id"`
}

func (in MovieInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperr.Invalid("Movie title is required")
	}
	if in.DurationMinutes <= 0 {
		return apperr.Invalid("Duration must be a positive number of minutes")
	}
	if in.SuitableAge < 0 {
		return apperr.Invalid("Suitable age cannot be negative")
	}
	return nil
}

func (in MovieInput) apply(m *model.Movie) {
	m.Title = strings.TrimSpace(in.Title)
	m.Description = strings.TrimSpace(in.Description)
	m.Poster = strings.TrimSpace(in.Poster)
	m.DurationMinutes = in.DurationMinutes
	m.SuitableAge = in.SuitableAge
	m.ReleaseDate = in.ReleaseDate
	m.CategoryID = in.CategoryID
}

// MovieQuery narrows ListMovies.  The zero value lists everything and is
// the only shape served from cache.
type MovieQuery struct {
	CategoryID uint64
	Search     string
	MaxAge     int
}

func (q MovieQuery) filter() repository.MovieFilter {
	return repository.MovieFilter{CategoryID: q.CategoryID, Search: strings.TrimSpace(q.Search), MaxAge: q.MaxAge}
}

// ListMovies returns one page of movies ordered by title.
func (s *Service) ListMovies(ctx context.Context, q MovieQuery, page, size int) (*model.Page[model.Movie], error) {
	if err := validatePage(page, size); err != nil {
		return nil, err
	}
	f := q.filter()
	load := func() (model.Page[model.Movie], error) {
		items, total, err := s.movies.ListMovies(ctx, f, page, size)
		if err != nil {
			return model.Page[model.Movie]{}, apperr.Internal(err)
		}
		return model.NewPage(items, page, size, total), nil
	}
	var (
		p   model.Page[model.Movie]
		err error
	)
	if f == (repository.MovieFilter{}) {
		p, err = cached(ctx, s, cache.MoviePageKey(page, size), load)
	} else {
		p, err = load()
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) GetMovie(ctx context.Context, id uint64) (*model.Movie, error) {
	if id == 0 {
		return nil, apperr.Invalid("Movie ID must be a positive integer")
	}
	m, err := s.movies.GetMovie(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Missing("Movie with ID %d does not exist.", id)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return m, nil
}

func (s *Service) GetMovieBySlug(ctx context.Context, sl string) (*model.Movie, error) {
	sl = strings.ToLower(strings.TrimSpace(sl))
	if sl == "" {
		return nil, apperr.Invalid("Slug is required")
	}
	m, err := s.movies.GetMovieBySlug(ctx, sl)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Missing("Movie %q does not exist.", sl)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return m, nil
}

// MovieExists reports whether movie id exists.
func (s *Service) MovieExists(ctx context.Context, id uint64) (bool, error) {
	_, err := s.GetMovie(ctx, id)
	if apperr.Is(err, apperr.NotFound) {
		return false, nil
	}
	return err == nil, err
}

// withUniqueSlug runs write with m.Slug set to the title's slug, then
// "-1", "-2", ... while the store reports a collision.
func withUniqueSlug(m *model.Movie, write func() error) error {
	base := slug.Make(m.Title)
	if base == "" {
		return apperr.Invalid("Movie title must contain letters or digits")
	}
	for i := 0; i < maxSlugAttempts; i++ {
		m.Slug = base
		if i > 0 {
			m.Slug = fmt.Sprintf("%s-%d", base, i)
		}
		err := write()
		if !errors.Is(err, repository.ErrDuplicate) {
			return err
		}
	}
	return apperr.New(apperr.Conflict, "Could not derive a unique slug for %q.", m.Title)
}

func (s *Service) movieWriteError(err error, categoryID uint64) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, repository.ErrNotFound) && categoryID > 0:
		return apperr.Missing("Category with ID %d does not exist.", categoryID)
	case errors.Is(err, repository.ErrNotFound):
		return apperr.Missing("Movie does not exist.")
	}
	return apperr.Internal(err)
}

// CreateMovie adds a movie with a unique slug derived from its title.
func (s *Service) CreateMovie(ctx context.Context, in MovieInput) (*model.Movie, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	m := &model.Movie{}
	in.apply(m)
	if err := withUniqueSlug(m, func() error { return s.movies.CreateMovie(ctx, m) }); err != nil {
		return nil, s.movieWriteError(err, in.CategoryID)
	}
	s.inv.CatalogChanged(ctx)
	s.log.Info("movie created", zap.Uint64("movie_id", m.ID), zap.String("slug", m.Slug))
	return s.GetMovie(ctx, m.ID)
}

// UpdateMovie replaces the movie's fields.  The slug follows the title.
func (s *Service) UpdateMovie(ctx context.Context, id uint64, in MovieInput) (*model.Movie, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	m, err := s.GetMovie(ctx, id)
	if err != nil {
		return nil, err
	}
	oldTitle := m.Title
	in.apply(m)
	write := func() error { return s.movies.UpdateMovie(ctx, m) }
	if m.Title != oldTitle {
		err = withUniqueSlug(m, write)
	} else {
		err = write()
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) && in.CategoryID == 0 {
			return nil, apperr.Missing("Movie with ID %d does not exist.", id)
		}
		return nil, s.movieWriteError(err, in.CategoryID)
	}
	s.inv.CatalogChanged(ctx)
	return s.GetMovie(ctx, id)
}

// DeleteMovie removes a movie together with its showtimes and their
// reservations.
func (s *Service) DeleteMovie(ctx context.Context, id uint64) error {
	if id == 0 {
		return apperr.Invalid("Movie ID must be a positive integer")
	}
	switch err := s.movies.DeleteMovie(ctx, id); {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.Missing("Movie with ID %d does not exist.", id)
	case errors.Is(err, repository.ErrConflict):
		return apperr.New(apperr.Conflict, "Movie %d is still referenced.", id)
	case err != nil:
		return apperr.Internal(err)
	}
	s.inv.CatalogChanged(ctx)
	s.log.Info("movie deleted", zap.Uint64("movie_id", id))
	return nil
}
