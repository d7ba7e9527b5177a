package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/iliyamo/movie-reservation/internal/model"
	"github.com/iliyamo/movie-reservation/internal/repository"
)

// CreateTheater stores t and assigns its id.
func (s *Store) CreateTheater(_ context.Context, t *model.Theater) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.nextID()
	t.CreatedAt = now()
	cp := *t
	s.theaters[t.ID] = &cp
	return nil
}

func (s *Store) GetTheater(_ context.Context, id uint64) (*model.Theater, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.theaters[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// ListTheaters returns all theaters ordered by name.
func (s *Store) ListTheaters(_ context.Context) ([]model.Theater, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Theater, 0, len(s.theaters))
	for _, t := range s.theaters {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListCategories(_ context.Context) ([]model.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CreateCategory stores c; names are unique.
func (s *Store) CreateCategory(_ context.Context, c *model.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if strings.EqualFold(existing.Name, c.Name) {
			return repository.ErrDuplicate
		}
	}
	c.ID = s.nextID()
	cp := *c
	s.categories[c.ID] = &cp
	return nil
}

func (s *Store) movieLocked(m *model.Movie) model.Movie {
	cp := *m
	if c, ok := s.categories[m.CategoryID]; ok {
		cp.CategoryName = c.Name
	}
	return cp
}

// ListMovies pages through movies matching f ordered by title.
func (s *Store) ListMovies(_ context.Context, f repository.MovieFilter, page, size int) ([]model.Movie, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(strings.TrimSpace(f.Search))
	var all []model.Movie
	for _, m := range s.movies {
		if f.CategoryID > 0 && m.CategoryID != f.CategoryID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(m.Title), q) && !strings.Contains(strings.ToLower(m.Description), q) {
			continue
		}
		if f.MaxAge > 0 && m.SuitableAge > f.MaxAge {
			continue
		}
		all = append(all, s.movieLocked(m))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Title != all[j].Title {
			return all[i].Title < all[j].Title
		}
		return all[i].ID < all[j].ID
	})
	return paginate(all, page, size), len(all), nil
}

func (s *Store) GetMovie(_ context.Context, id uint64) (*model.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.movies[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := s.movieLocked(m)
	return &cp, nil
}

func (s *Store) GetMovieBySlug(_ context.Context, slug string) (*model.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.movies {
		if m.Slug == slug {
			cp := s.movieLocked(m)
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) checkMovieLocked(m *model.Movie) error {
	if m.CategoryID > 0 {
		if _, ok := s.categories[m.CategoryID]; !ok {
			return repository.ErrNotFound
		}
	}
	for _, other := range s.movies {
		if other.ID != m.ID && other.Slug == m.Slug {
			return repository.ErrDuplicate
		}
	}
	return nil
}

// CreateMovie stores m.  Slugs are unique.
func (s *Store) CreateMovie(_ context.Context, m *model.Movie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMovieLocked(m); err != nil {
		return err
	}
	m.ID = s.nextID()
	m.CreatedAt, m.UpdatedAt = now(), now()
	cp := *m
	s.movies[m.ID] = &cp
	return nil
}

func (s *Store) UpdateMovie(_ context.Context, m *model.Movie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.movies[m.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if err := s.checkMovieLocked(m); err != nil {
		return err
	}
	m.CreatedAt, m.UpdatedAt = cur.CreatedAt, now()
	cp := *m
	s.movies[m.ID] = &cp
	return nil
}

// DeleteMovie removes the movie and cascades to its showtimes,
// reservations and payments.
func (s *Store) DeleteMovie(_ context.Context, id uint64) error {
	unlock := s.lockAll()
	defer unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.movies[id]; !ok {
		return repository.ErrNotFound
	}
	for sid, st := range s.showtimes {
		if st.MovieID != id {
			continue
		}
		for rid, r := range s.reservations {
			if r.ShowtimeID == sid {
				delete(s.shardFor(seatKey{sid, r.SeatNumber}).held, seatKey{sid, r.SeatNumber})
				s.dropReservationLocked(rid)
			}
		}
		delete(s.showtimes, sid)
	}
	delete(s.movies, id)
	return nil
}

func (s *Store) showtimeDetailLocked(st *model.Showtime) model.ShowtimeDetail {
	d := model.ShowtimeDetail{Showtime: *st}
	if m, ok := s.movies[st.MovieID]; ok {
		d.MovieTitle, d.MoviePoster, d.DurationMinutes = m.Title, m.Poster, m.DurationMinutes
	}
	if t, ok := s.theaters[st.TheaterID]; ok {
		d.TheaterName, d.TotalSeats = t.Name, t.TotalSeats
	}
	return d
}

func (s *Store) GetShowtime(_ context.Context, id uint64) (*model.ShowtimeDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.showtimes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	d := s.showtimeDetailLocked(st)
	return &d, nil
}

// ListShowtimes pages through showtimes matching f ordered by start time.
func (s *Store) ListShowtimes(_ context.Context, f repository.ShowtimeFilter, page, size int) ([]model.ShowtimeDetail, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []model.ShowtimeDetail
	for _, st := range s.showtimes {
		if f.MovieID > 0 && st.MovieID != f.MovieID {
			continue
		}
		if f.TheaterID > 0 && st.TheaterID != f.TheaterID {
			continue
		}
		if f.From != nil && st.StartsAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !st.StartsAt.Before(*f.To) {
			continue
		}
		all = append(all, s.showtimeDetailLocked(st))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].StartsAt.Equal(all[j].StartsAt) {
			return all[i].StartsAt.Before(all[j].StartsAt)
		}
		return all[i].ID < all[j].ID
	})
	return paginate(all, page, size), len(all), nil
}

func (s *Store) CreateShowtime(_ context.Context, st *model.Showtime) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.movies[st.MovieID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := s.theaters[st.TheaterID]; !ok {
		return repository.ErrNotFound
	}
	st.ID = s.nextID()
	st.StartsAt = st.StartsAt.UTC()
	st.CreatedAt, st.UpdatedAt = now(), now()
	cp := *st
	s.showtimes[st.ID] = &cp
	return nil
}

// UpdateShowtime rewrites theater, price and start time.
func (s *Store) UpdateShowtime(_ context.Context, st *model.Showtime) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.showtimes[st.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if _, ok := s.theaters[st.TheaterID]; !ok {
		return repository.ErrNotFound
	}
	cur.TheaterID = st.TheaterID
	cur.PriceCents = st.PriceCents
	cur.StartsAt = st.StartsAt.UTC()
	cur.UpdatedAt = now()
	*st = *cur
	return nil
}

// DeleteShowtime removes a showtime without reservations.
func (s *Store) DeleteShowtime(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.showtimes[id]; !ok {
		return repository.ErrNotFound
	}
	for _, r := range s.reservations {
		if r.ShowtimeID == id {
			return repository.ErrConflict
		}
	}
	delete(s.showtimes, id)
	return nil
}
