package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/movie-reservation/internal/model"
)

// MovieRepo persists movies and categories.
type MovieRepo struct {
	db *sql.DB
}

// NewMovieRepo returns a new MovieRepo bound to the given database.
func NewMovieRepo(db *sql.DB) *MovieRepo { return &MovieRepo{db: db} }

const movieSelect = `SELECT m.id, m.title, m.slug, m.description, m.poster, m.duration_minutes, m.suitable_age,
                            m.release_date, m.category_id, c.name, m.created_at, m.updated_at
                     FROM movies m
                     LEFT JOIN categories c ON c.id = m.category_id`

// ListMovies returns one page of movies matching f ordered by title.
func (r *MovieRepo) ListMovies(ctx context.Context, f MovieFilter, page, size int) ([]model.Movie, int, error) {
	where := []string{}
	args := []any{}
	if f.CategoryID > 0 {
		where = append(where, "m.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, "(LOWER(m.title) LIKE ? OR LOWER(m.description) LIKE ?)")
		like := "%" + strings.ToLower(s) + "%"
		args = append(args, like, like)
	}
	if f.MaxAge > 0 {
		where = append(where, "m.suitable_age <= ?")
		args = append(args, f.MaxAge)
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies m WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	argsData := append(append([]any{}, args...), size, (page-1)*size)
	rows, err := r.db.QueryContext(ctx, movieSelect+` WHERE `+cond+` ORDER BY m.title, m.id LIMIT ? OFFSET ?`, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.Movie, 0, size)
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *m)
	}
	return out, total, rows.Err()
}

// GetMovie returns a movie by id or ErrNotFound.
func (r *MovieRepo) GetMovie(ctx context.Context, id uint64) (*model.Movie, error) {
	m, err := scanMovie(r.db.QueryRowContext(ctx, movieSelect+` WHERE m.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

// GetMovieBySlug returns a movie by slug or ErrNotFound.
func (r *MovieRepo) GetMovieBySlug(ctx context.Context, slug string) (*model.Movie, error) {
	m, err := scanMovie(r.db.QueryRowContext(ctx, movieSelect+` WHERE m.slug = ?`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

// CreateMovie inserts m.  A slug collision yields ErrDuplicate.
func (r *MovieRepo) CreateMovie(ctx context.Context, m *model.Movie) error {
	const q = `INSERT INTO movies (title, slug, description, poster, duration_minutes, suitable_age, release_date, category_id, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	res, err := r.db.ExecContext(ctx, q, m.Title, m.Slug, m.Description, m.Poster, m.DurationMinutes, m.SuitableAge,
		nullTime(m.ReleaseDate), nullID(m.CategoryID), now, now)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		if isMissingParent(err) {
			return ErrNotFound
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return nil
}

// UpdateMovie rewrites the mutable columns of m.
func (r *MovieRepo) UpdateMovie(ctx context.Context, m *model.Movie) error {
	const q = `UPDATE movies SET title = ?, slug = ?, description = ?, poster = ?, duration_minutes = ?, suitable_age = ?,
                      release_date = ?, category_id = ?, updated_at = ?
               WHERE id = ?`
	m.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, q, m.Title, m.Slug, m.Description, m.Poster, m.DurationMinutes, m.SuitableAge,
		nullTime(m.ReleaseDate), nullID(m.CategoryID), m.UpdatedAt, m.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		if isMissingParent(err) {
			return ErrNotFound
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMovie removes a movie; its showtimes and their reservations cascade.
func (r *MovieRepo) DeleteMovie(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM movies WHERE id = ?`, id)
	if err != nil {
		if isReferenced(err) {
			return ErrConflict
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCategories returns every category ordered by name.
func (r *MovieRepo) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Category{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCategory inserts c.  Duplicate names yield ErrDuplicate.
func (r *MovieRepo) CreateCategory(ctx context.Context, c *model.Category) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, c.Name)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

func scanMovie(s rowScanner) (*model.Movie, error) {
	var m model.Movie
	var desc, poster, catName sql.NullString
	var release sql.NullTime
	var catID sql.NullInt64
	err := s.Scan(&m.ID, &m.Title, &m.Slug, &desc, &poster, &m.DurationMinutes, &m.SuitableAge,
		&release, &catID, &catName, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Description = desc.String
	m.Poster = poster.String
	if release.Valid {
		t := release.Time
		m.ReleaseDate = &t
	}
	if catID.Valid {
		m.CategoryID = uint64(catID.Int64)
	}
	m.CategoryName = catName.String
	return &m, nil
}

func nullID(id uint64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(id), Valid: true}
}
