package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-reservation/internal/apperr"
	"github.com/iliyamo/movie-reservation/internal/availability"
	"github.com/iliyamo/movie-reservation/internal/middleware"
	"github.com/iliyamo/movie-reservation/internal/notify"
	"github.com/iliyamo/movie-reservation/internal/reservation"
	"github.com/iliyamo/movie-reservation/internal/response"
	"github.com/iliyamo/movie-reservation/internal/utils"
)

// ticketQRSize is the edge length in pixels of the ticket QR image.
const ticketQRSize = 256

// ReservationHandler serves /api/Reservation: the booking protocol and the
// seat availability queries next to it.
type ReservationHandler struct {
	Reservations *reservation.Service
	Seats        *availability.Engine
	Timeout      time.Duration
}

// NewReservationHandler constructs a ReservationHandler.
func NewReservationHandler(r *reservation.Service, seats *availability.Engine, timeout time.Duration) *ReservationHandler {
	return &ReservationHandler{Reservations: r, Seats: seats, Timeout: timeout}
}

type createReservationReq struct {
	ShowtimeID uint64 `json:"showtimeId" validate:"required,gt=0"`
	SeatNumber int    `json:"seatNumber" validate:"required,gt=0"`
}

// Create handles POST /api/Reservation/CreateReservation.
func (h *ReservationHandler) Create(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}
	var req createReservationReq
	if err := bindValid(c, &req); err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	det, err := h.Reservations.Create(ctx, uid, req.ShowtimeID, req.SeatNumber)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusCreated, "Reservation created successfully", det)
}

// Mine handles GET /api/Reservation/MyReservations.
func (h *ReservationHandler) Mine(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}
	page, size, err := pageParams(c)
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	p, err := h.Reservations.ListByUser(ctx, uid, page, size)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, fmt.Sprintf("Retrieved %d reservations successfully", len(p.Items)), p)
}

// Get handles GET /api/Reservation/:id.  Only the owner sees the secret
// code.
func (h *ReservationHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id", "Reservation ID")
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	det, err := h.Reservations.Get(ctx, id)
	if err != nil {
		return response.Error(c, err)
	}
	if uid, ok := middleware.UserID(c); !ok || uid != det.UserID {
		red := det.Redacted()
		det = &red
	}
	return response.OK(c, http.StatusOK, "Reservation retrieved successfully", det)
}

// Exists handles HEAD /api/Reservation/:id: 200 when the reservation
// exists, 204 otherwise.
func (h *ReservationHandler) Exists(c echo.Context) error {
	id, err := pathID(c, "id", "Reservation ID")
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	ok, err := h.Reservations.Exists(ctx, id)
	if err != nil {
		return c.NoContent(response.StatusOf(apperr.KindOf(err)))
	}
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}
	return c.NoContent(http.StatusOK)
}

// Verify handles POST /api/Reservation/Verify/:id?secretCode=.  A wrong
// code and an unknown id produce the same answer.
func (h *ReservationHandler) Verify(c echo.Context) error {
	id, err := pathID(c, "id", "Reservation ID")
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	ok, det, err := h.Reservations.Verify(ctx, id, c.QueryParam("secretCode"))
	if err != nil {
		return response.Error(c, err)
	}
	if !ok {
		return response.OK(c, http.StatusOK, "Invalid reservation ID or secret code", echo.Map{"valid": false})
	}
	return response.OK(c, http.StatusOK, "Reservation verified", echo.Map{"valid": true, "reservation": det})
}

// CheckSeat handles GET /api/Reservation/CheckSeatAvailability.
func (h *ReservationHandler) CheckSeat(c echo.Context) error {
	showtimeID, err := queryID(c, "showtimeId")
	if err != nil {
		return response.Error(c, err)
	}
	seat, err := queryInt(c, "seatNumber", 0)
	if err != nil {
		return response.Error(c, err)
	}
	if showtimeID == 0 {
		return response.Error(c, apperr.Invalid("Showtime ID must be greater than 0"))
	}
	if seat <= 0 {
		return response.Error(c, apperr.Invalid("Seat number must be greater than 0"))
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	st, err := h.Seats.SeatStatus(ctx, showtimeID, seat)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, st.Message, st)
}

// ReservedSeats handles GET /api/Reservation/:id/ReservedSeats where id is
// a showtime.
func (h *ReservationHandler) ReservedSeats(c echo.Context) error {
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

// AvailableSeats handles GET /api/Reservation/:id/AvailableSeats where id
// is a showtime.
func (h *ReservationHandler) AvailableSeats(c echo.Context) error {
	id, err := pathID(c, "id", "Showtime ID")
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	seats, err := h.Seats.AvailableSeats(ctx, id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, fmt.Sprintf("Retrieved %d available seats", len(seats)), seats)
}

// UpdateSeat handles PUT /api/Reservation/:id/UpdateSeat?newSeatNumber=.
func (h *ReservationHandler) UpdateSeat(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}
	id, err := pathID(c, "id", "Reservation ID")
	if err != nil {
		return response.Error(c, err)
	}
	seat, err := queryInt(c, "newSeatNumber", 0)
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	if err := h.Reservations.ChangeSeat(ctx, id, seat, uid); err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "Seat updated successfully", echo.Map{"id": id, "seat_number": seat})
}

// Cancel handles DELETE /api/Reservation/:id.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}
	id, err := pathID(c, "id", "Reservation ID")
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	if err := h.Reservations.Cancel(ctx, id, uid); err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "Reservation cancelled successfully", nil)
}

// TicketQR handles GET /api/Reservation/:id/qr.  The PNG encodes the same
// payload as the confirmation email.
func (h *ReservationHandler) TicketQR(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}
	id, err := pathID(c, "id", "Reservation ID")
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	det, err := h.Reservations.Get(ctx, id)
	if err != nil {
		return response.Error(c, err)
	}
	if det.UserID != uid {
		return response.Error(c, apperr.New(apperr.Unauthorized, "You are not authorized to access this reservation."))
	}
	png, err := utils.GenerateQRCode(notify.TicketPayload(det.ID, det.SecretCode), ticketQRSize)
	if err != nil {
		return response.Error(c, apperr.Internal(err))
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, "image/png", png)
}
