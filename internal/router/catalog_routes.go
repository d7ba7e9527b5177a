package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-reservation/internal/handler"
)

// registerCatalog mounts movies, showtimes, theaters and categories.
func registerCatalog(e *echo.Echo, h *handler.CatalogHandler, admin []echo.MiddlewareFunc) {
	m := e.Group("/api/Movie")
	m.GET("", h.ListMovies)
	m.GET("/Categories", h.ListCategories)
	m.GET("/category/:id", h.MoviesByCategory)
	m.GET("/slug/:slug", h.MovieBySlug)
	m.GET("/:id", h.GetMovie)
	m.HEAD("/:id", h.MovieExists)
	m.POST("", h.CreateMovie, admin...)
	m.PUT("/:id", h.UpdateMovie, admin...)
	m.DELETE("/:id", h.DeleteMovie, admin...)

	s := e.Group("/api/Showtime")
	s.GET("", h.ListShowtimes)
	s.GET("/upcoming", h.UpcomingShowtimes)
	s.GET("/movie/:id", h.ShowtimesByMovie)
	s.GET("/movie/:id/date", h.ShowtimesByMovieAndDate)
	s.GET("/theater/:id", h.ShowtimesByTheater)
	s.GET("/:id", h.GetShowtime)
	s.GET("/:id/availability", h.ShowtimeAvailability)
	s.GET("/:id/reserved-seats", h.ShowtimeReservedSeats)
	s.POST("", h.CreateShowtime, admin...)
	s.PUT("/:id", h.UpdateShowtime, admin...)
	s.DELETE("/:id", h.DeleteShowtime, admin...)

	t := e.Group("/api/Theater")
	t.GET("", h.ListTheaters)
	t.GET("/:id", h.GetTheater)
	t.POST("", h.CreateTheater, admin...)

	c := e.Group("/api/Category")
	c.GET("", h.ListCategories)
	c.POST("", h.CreateCategory, admin...)
}
