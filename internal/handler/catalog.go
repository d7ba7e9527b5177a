package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-reservation/internal/apperr"
	"github.com/iliyamo/movie-reservation/internal/availability"
	"github.com/iliyamo/movie-reservation/internal/catalog"
	"github.com/iliyamo/movie-reservation/internal/model"
	"github.com/iliyamo/movie-reservation/internal/response"
)

// CatalogHandler serves movies, showtimes, theaters and categories.
// Reads are public; writes are mounted behind the admin role.
type CatalogHandler struct {
	Catalog *catalog.Service
	Seats   *availability.Engine
	Timeout time.Duration
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(svc *catalog.Service, seats *availability.Engine, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{Catalog: svc, Seats: seats, Timeout: timeout}
}

// ----- movies -----

// ListMovies handles GET /api/Movie.  categoryId, search (or searchTerm)
// and maxAge narrow the listing.
func (h *CatalogHandler) ListMovies(c echo.Context) error {
	page, size, err := pageParams(c)
	if err != nil {
		return response.Error(c, err)
	}
	cat, err := queryID(c, "categoryId")
	if err != nil {
		return response.Error(c, err)
	}
	age, err := queryInt(c, "maxAge", 0)
	if err != nil {
		return response.Error(c, err)
	}
	search := c.QueryParam("search")
	if search == "" {
		search = c.QueryParam("searchTerm")
	}
	return h.listMovies(c, catalog.MovieQuery{CategoryID: cat, Search: search, MaxAge: age}, page, size)
}

// MoviesByCategory handles GET /api/Movie/category/:id.
func (h *CatalogHandler) MoviesByCategory(c echo.Context) error {
	id, err := pathID(c, "id", "Category ID")
	if err != nil {
		return response.Error(c, err)
	}
	page, size, err := pageParams(c)
	if err != nil {
		return response.Error(c, err)
	}
	return h.listMovies(c, catalog.MovieQuery{CategoryID: id}, page, size)
}

func (h *CatalogHandler) listMovies(c echo.Context, q catalog.MovieQuery, page, size int) error {
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	p, err := h.Catalog.ListMovies(ctx, q, page, size)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, fmt.Sprintf("Retrieved %d movies successfully", len(p.Items)), p)
}

// GetMovie handles GET /api/Movie/:id.
func (h *CatalogHandler) GetMovie(c echo.Context) error {
	id, err := pathID(c, "id", "Movie ID")
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	m, err := h.Catalog.GetMovie(ctx, id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "Movie retrieved successfully", m)
}

// MovieBySlug handles GET /api/Movie/slug/:slug.
func (h *CatalogHandler) MovieBySlug(c echo.Context) error {
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	m, err := h.Catalog.GetMovieBySlug(ctx, c.Param("slug"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "Movie retrieved successfully", m)
}

// MovieExists handles HEAD /api/Movie/:id.
func (h *CatalogHandler) MovieExists(c echo.Context) error {
	id, err := pathID(c, "id", "Movie ID")
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	ok, err := h.Catalog.MovieExists(ctx, id)
	switch {
	case err != nil:
		return c.NoContent(response.StatusOf(apperr.KindOf(err)))
	case !ok:
		return c.NoContent(http.StatusNotFound)
	}
	return c.NoContent(http.StatusOK)
}

// CreateMovie handles POST /api/Movie.
func (h *CatalogHandler) CreateMovie(c echo.Context) error {
	var in catalog.MovieInput
	if err := bindValid(c, &in); err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	m, err := h.Catalog.CreateMovie(ctx, in)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusCreated, "Movie created successfully", m)
}

// UpdateMovie handles PUT /api/Movie/:id.
func (h *CatalogHandler) UpdateMovie(c echo.Context) error {
	id, err := pathID(c, "id", "Movie ID")
	if err != nil {
		return response.Error(c, err)
	}
	var in catalog.MovieInput
	if err := bindValid(c, &in); err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	m, err := h.Catalog.UpdateMovie(ctx, id, in)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "Movie updated successfully", m)
}

// DeleteMovie handles DELETE /api/Movie/:id.
func (h *CatalogHandler) DeleteMovie(c echo.Context) error {
	id, err := pathID(c, "id", "Movie ID")
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	if err := h.Catalog.DeleteMovie(ctx, id); err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "Movie deleted successfully", nil)
}

// ----- categories -----

type categoryReq struct {
	Name string `json:"name" validate:"required,max=100"`
}

// ListCategories handles GET /api/Category and GET /api/Movie/Categories.
func (h *CatalogHandler) ListCategories(c echo.Context) error {
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	cs, err := h.Catalog.ListCategories(ctx)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, fmt.Sprintf("Retrieved %d categories", len(cs)), cs)
}

// CreateCategory handles POST /api/Category.
func (h *CatalogHandler) CreateCategory(c echo.Context) error {
	var req categoryReq
	if err := bindValid(c, &req); err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	cat, err := h.Catalog.CreateCategory(ctx, req.Name)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusCreated, "Category created successfully", cat)
}

// ----- theaters -----

// ListTheaters handles GET /api/Theater.
func (h *CatalogHandler) ListTheaters(c echo.Context) error {
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	ts, err := h.Catalog.ListTheaters(ctx)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, fmt.Sprintf("Retrieved %d theaters", len(ts)), ts)
}

// GetTheater handles GET /api/Theater/:id.
func (h *CatalogHandler) GetTheater(c echo.Context) error {
	id, err := pathID(c, "id", "Theater ID")
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	t, err := h.Catalog.GetTheater(ctx, id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "Theater retrieved successfully", t)
}

// CreateTheater handles POST /api/Theater.
func (h *CatalogHandler) CreateTheater(c echo.Context) error {
	var in catalog.TheaterInput
	if err := bindValid(c, &in); err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	t, err := h.Catalog.CreateTheater(ctx, in)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusCreated, "Theater created successfully", t)
}

// ----- showtimes -----

// ListShowtimes handles GET /api/Showtime.
func (h *CatalogHandler) ListShowtimes(c echo.Context) error {
	page, size, err := pageParams(c)
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	p, err := h.Catalog.ListShowtimes(ctx, page, size)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, fmt.Sprintf("Retrieved %d showtimes successfully", len(p.Items)), p)
}

// UpcomingShowtimes handles GET /api/Showtime/upcoming?daysAhead=.
func (h *CatalogHandler) UpcomingShowtimes(c echo.Context) error {
	page, size, err := pageParams(c)
	if err != nil {
		return response.Error(c, err)
	}
	days, err := queryInt(c, "daysAhead", catalog.DefaultDaysAhead)
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	p, err := h.Catalog.UpcomingShowtimes(ctx, days, page, size)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, fmt.Sprintf("Retrieved %d upcoming showtimes", len(p.Items)), p)
}

// ShowtimesByMovie handles GET /api/Showtime/movie/:id.
func (h *CatalogHandler) ShowtimesByMovie(c echo.Context) error {
	return h.showtimesBy(c, "Movie ID", h.Catalog.ShowtimesByMovie)
}

// ShowtimesByMovieAndDate handles GET /api/Showtime/movie/:id/date?date=.
// The date is a calendar day (2006-01-02) or an RFC 3339 timestamp whose
// UTC day is used.
func (h *CatalogHandler) ShowtimesByMovieAndDate(c echo.Context) error {
	id, err := pathID(c, "id", "Movie ID")
	if err != nil {
		return response.Error(c, err)
	}
	date, err := queryDate(c, "date")
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	items, err := h.Catalog.ShowtimesByMovieAndDate(ctx, id, date)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, fmt.Sprintf("Retrieved %d showtimes for specified date", len(items)), items)
}

// ShowtimesByTheater handles GET /api/Showtime/theater/:id.
func (h *CatalogHandler) ShowtimesByTheater(c echo.Context) error {
	return h.showtimesBy(c, "Theater ID", h.Catalog.ShowtimesByTheater)
}

type showtimeLister func(ctx context.Context, id uint64, page, size int) (*model.Page[model.ShowtimeDetail], error)

func (h *CatalogHandler) showtimesBy(c echo.Context, label string, list showtimeLister) error {
	id, err := pathID(c, "id", label)
	if err != nil {
		return response.Error(c, err)
	}
	page, size, err := pageParams(c)
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	p, err := list(ctx, id, page, size)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, fmt.Sprintf("Retrieved %d showtimes successfully", len(p.Items)), p)
}

// GetShowtime handles GET /api/Showtime/:id.
func (h *CatalogHandler) GetShowtime(c echo.Context) error {
	id, err := pathID(c, "id", "Showtime ID")
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	st, err := h.Catalog.GetShowtime(ctx, id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "Showtime retrieved successfully", st)
}

// ShowtimeAvailability handles GET /api/Showtime/:id/availability.
func (h *CatalogHandler) ShowtimeAvailability(c echo.Context) error {
	id, err := pathID(c, "id", "Showtime ID")
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	a, err := h.Seats.Summary(ctx, id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "Availability retrieved successfully", a)
}

// ShowtimeReservedSeats handles GET /api/Showtime/:id/reserved-seats.
func (h *CatalogHandler) ShowtimeReservedSeats(c echo.Context) error {
	id, err := pathID(c, "id", "Showtime ID")
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	seats, err := h.Seats.BookedSeats(ctx, id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, fmt.Sprintf("Retrieved %d reserved seats", len(seats)), seats)
}

// CreateShowtime handles POST /api/Showtime.
func (h *CatalogHandler) CreateShowtime(c echo.Context) error {
	var in catalog.ShowtimeInput
	if err := bindValid(c, &in); err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	st, err := h.Catalog.CreateShowtime(ctx, in)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusCreated, "Showtime created successfully", st)
}

// UpdateShowtime handles PUT /api/Showtime/:id.
func (h *CatalogHandler) UpdateShowtime(c echo.Context) error {
	id, err := pathID(c, "id", "Showtime ID")
	if err != nil {
		return response.Error(c, err)
	}
	var in catalog.ShowtimeInput
	if err := bindValid(c, &in); err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	st, err := h.Catalog.UpdateShowtime(ctx, id, in)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "Showtime updated successfully", st)
}

// DeleteShowtime handles DELETE /api/Showtime/:id.
func (h *CatalogHandler) DeleteShowtime(c echo.Context) error {
	id, err := pathID(c, "id", "Showtime ID")
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	if err := h.Catalog.DeleteShowtime(ctx, id); err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "Showtime deleted successfully", nil)
}
