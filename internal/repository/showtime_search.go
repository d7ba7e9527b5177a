package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/movie-reservation/internal/model"
)

// ListShowtimes returns one page of showtimes matching f ordered by start
// time, together with the total number of matches.
func (r *ShowtimeRepo) ListShowtimes(ctx context.Context, f ShowtimeFilter, page, size int) ([]model.ShowtimeDetail, int, error) {
	where := []string{}
	args := []any{}

	if f.MovieID > 0 {
		where = append(where, "s.movie_id = ?")
		args = append(args, f.MovieID)
	}
	if f.TheaterID > 0 {
		where = append(where, "s.theater_id = ?")
		args = append(args, f.TheaterID)
	}
	if f.From != nil {
		where = append(where, "s.starts_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		where = append(where, "s.starts_at < ?")
		args = append(args, f.To.UTC())
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int
	countSQL := `SELECT COUNT(*) FROM showtimes s WHERE ` + cond
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := showtimeSelect + ` WHERE ` + cond + ` ORDER BY s.starts_at ASC, s.id ASC LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.ShowtimeDetail, 0, size)
	for rows.Next() {
		d, err := scanShowtime(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
