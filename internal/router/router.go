// Package router mounts the handlers on Echo.  Public reads carry no
// middleware of their own; user routes require a valid access token and
// catalog writes additionally require the admin role.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-reservation/internal/handler"
	"github.com/iliyamo/movie-reservation/internal/middleware"
	"github.com/iliyamo/movie-reservation/internal/model"
)

// Handlers groups everything Register mounts.
type Handlers struct {
	Health       *handler.HealthHandler
	Auth         *handler.AuthHandler
	Reservations *handler.ReservationHandler
	Payments     *handler.PaymentHandler
	Catalog      *handler.CatalogHandler
}

// Register mounts every route on e.
func Register(e *echo.Echo, h Handlers, jwtSecret string) {
	user := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer, model.RoleAdmin),
	}
	admin := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	}

	e.GET("/healthz", h.Health.Live)
	e.GET("/readyz", h.Health.Ready)

	registerAuth(e, h.Auth, user)
	registerReservations(e, h.Reservations, user)
	registerPayments(e, h.Payments, user)
	registerCatalog(e, h.Catalog, admin)
}

// registerAuth mounts /api/Auth.  Logout stays public so a refresh token
// alone can end a session; OptionalJWT upstream identifies bearer callers.
func registerAuth(e *echo.Echo, a *handler.AuthHandler, user []echo.MiddlewareFunc) {
	g := e.Group("/api/Auth")
	g.POST("/Register", a.Register)
	g.POST("/Login", a.Login)
	g.POST("/Refresh", a.Refresh)
	g.POST("/RefreshAccess", a.RefreshAccess)
	g.POST("/Logout", a.Logout)
	g.POST("/ChangePassword", a.ChangePassword, user...)
	g.GET("/Profile", a.Profile, user...)
}
