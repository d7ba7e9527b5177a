package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-reservation/internal/handler"
)

// registerReservations mounts /api/Reservation.  For ReservedSeats and
// AvailableSeats the :id segment is a showtime id.
func registerReservations(e *echo.Echo, h *handler.ReservationHandler, user []echo.MiddlewareFunc) {
	g := e.Group("/api/Reservation")

	g.GET("/CheckSeatAvailability", h.CheckSeat)
	g.GET("/:id/ReservedSeats", h.ReservedSeats)
	g.GET("/:id/AvailableSeats", h.AvailableSeats)
	g.POST("/Verify/:id", h.Verify)
	g.GET("/:id", h.Get)
	g.HEAD("/:id", h.Exists)

	g.POST("/CreateReservation", h.Create, user...)
	g.GET("/MyReservations", h.Mine, user...)
	g.PUT("/:id/UpdateSeat", h.UpdateSeat, user...)
	g.DELETE("/:id", h.Cancel, user...)
	g.GET("/:id/qr", h.TicketQR, user...)
}

// registerPayments mounts /api/Payment and the gateway webhook.  The
// webhook authenticates by signature, not by token.
func registerPayments(e *echo.Echo, h *handler.PaymentHandler, user []echo.MiddlewareFunc) {
	g := e.Group("/api/Payment", user...)
	g.POST("/CreatePaymentIntent", h.CreateIntent)
	g.POST("/VerifyPayment/:id", h.Verify)
	g.GET("/:id", h.Get)

	e.POST("/api/Webhook/stripe", h.Webhook)
}
