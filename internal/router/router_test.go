package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/movie-reservation/internal/auth"
	"github.com/iliyamo/movie-reservation/internal/availability"
	"github.com/iliyamo/movie-reservation/internal/cache"
	"github.com/iliyamo/movie-reservation/internal/catalog"
	"github.com/iliyamo/movie-reservation/internal/handler"
	"github.com/iliyamo/movie-reservation/internal/middleware"
	"github.com/iliyamo/movie-reservation/internal/model"
	"github.com/iliyamo/movie-reservation/internal/notify"
	"github.com/iliyamo/movie-reservation/internal/payment"
	"github.com/iliyamo/movie-reservation/internal/repository/memory"
	"github.com/iliyamo/movie-reservation/internal/reservation"
	"github.com/iliyamo/movie-reservation/internal/response"
)

const jwtSecret = "router-test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type app struct {
	e       *echo.Echo
	gateway *payment.FakeGateway
}

func newApp(t *testing.T) *app {
	t.Helper()
	log := zap.NewNop()
	st := memory.New()
	c := cache.NewMemoryCache()
	inv := cache.NewInvalidator(c, log)
	seats := availability.New(st, st, c, 30*time.Second, log)
	booking := reservation.NewService(st, st, inv, log)
	cat := catalog.NewService(catalog.Deps{Movies: st, Showtimes: st, Theaters: st, Ledger: st}, c, inv, 0, log)
	gw := payment.NewFakeGateway("whsec_router")
	rec := payment.NewReconciler(gw, st, st, st, notify.LogNotifier{Log: log}, "", log)
	authSvc := auth.NewService(st, st, auth.Config{
		JWTSecret: jwtSecret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: bcrypt.MinCost,
	}, log)
	require.NoError(t, authSvc.EnsureAdmin(context.Background(), "admin@example.com", "admin-pass"))

	e := echo.New()
	e.HTTPErrorHandler = response.HTTPErrorHandler
	e.Validator = handler.NewValidator()
	e.Use(middleware.OptionalJWT(jwtSecret))
	Register(e, Handlers{
		Health:       handler.NewHealthHandler(map[string]handler.Check{"store": func(context.Context) error { return nil }}),
		Auth:         handler.NewAuthHandler(authSvc, 0),
		Reservations: handler.NewReservationHandler(booking, seats, 0),
		Payments:     handler.NewPaymentHandler(rec, 0),
		Catalog:      handler.NewCatalogHandler(cat, seats, 0),
	}, jwtSecret)
	return &app{e: e, gateway: gw}
}

func (a *app) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	var env envelope
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (a *app) login(t *testing.T, email, password string) string {
	t.Helper()
	rec, env := a.do(t, http.MethodPost, "/api/Auth/Login", "", echo.Map{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	return decode[auth.Session](t, env.Data).Access.Token
}

func (a *app) register(t *testing.T, email string) string {
	t.Helper()
	rec, env := a.do(t, http.MethodPost, "/api/Auth/Register", "", echo.Map{
		"email": email, "password": "customer-pass", "confirmPassword": "customer-pass",
	})
	require.Equal(t, http.StatusCreated, rec.Code, env.Message)
	return decode[auth.Session](t, env.Data).Access.Token
}

type ids struct {
	showtime uint64
	movie    uint64
	startsAt time.Time
}

func (a *app) seed(t *testing.T, admin string) ids {
	t.Helper()
	rec, env := a.do(t, http.MethodPost, "/api/Theater", admin, echo.Map{"name": "Screen 1", "total_seats": 5})
	require.Equal(t, http.StatusCreated, rec.Code, env.Message)
	theater := decode[struct{ ID uint64 }](t, env.Data).ID

	rec, env = a.do(t, http.MethodPost, "/api/Movie", admin, echo.Map{"title": "Arrival", "duration_minutes": 116})
	require.Equal(t, http.StatusCreated, rec.Code, env.Message)
	movie := decode[struct {
		ID   uint64
		Slug string
	}](t, env.Data)
	assert.Equal(t, "arrival", movie.Slug)

	start := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	rec, env = a.do(t, http.MethodPost, "/api/Showtime", admin, echo.Map{
		"movie_id": movie.ID, "theater_id": theater, "price_cents": 1250,
		"starts_at": start.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code, env.Message)
	return ids{showtime: decode[struct{ ID uint64 }](t, env.Data).ID, movie: movie.ID, startsAt: start}
}

type reservationView struct {
	ID         uint64 `json:"id"`
	SeatNumber int    `json:"seat_number"`
	SecretCode string `json:"secret_code"`
	IsPaid     bool   `json:"is_paid"`
}

func TestReservationFlow(t *testing.T) {
	a := newApp(t)
	admin := a.login(t, "admin@example.com", "admin-pass")
	show := a.seed(t, admin).showtime
	alice := a.register(t, "alice@example.com")
	bob := a.register(t, "bob@example.com")

	rec, _ := a.do(t, http.MethodPost, "/api/Reservation/CreateReservation", "", echo.Map{"showtimeId": show, "seatNumber": 3})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env := a.do(t, http.MethodPost, "/api/Reservation/CreateReservation", alice, echo.Map{"showtimeId": show, "seatNumber": 3})
	require.Equal(t, http.StatusCreated, rec.Code, env.Message)
	res := decode[reservationView](t, env.Data)
	assert.Equal(t, 3, res.SeatNumber)
	assert.Len(t, res.SecretCode, 8)

	rec, env = a.do(t, http.MethodPost, "/api/Reservation/CreateReservation", bob, echo.Map{"showtimeId": show, "seatNumber": 3})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)

	rec, _ = a.do(t, http.MethodPost, "/api/Reservation/CreateReservation", bob, echo.Map{"showtimeId": show, "seatNumber": 6})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = a.do(t, http.MethodPost, "/api/Reservation/CreateReservation", bob, echo.Map{"showtimeId": show})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := "/api/Reservation/" + itoa(show)
	_, env = a.do(t, http.MethodGet, path+"/ReservedSeats", "", nil)
	assert.Equal(t, []int{3}, decode[[]int](t, env.Data))
	_, env = a.do(t, http.MethodGet, path+"/AvailableSeats", "", nil)
	assert.Equal(t, []int{1, 2, 4, 5}, decode[[]int](t, env.Data))
	_, env = a.do(t, http.MethodGet, "/api/Reservation/CheckSeatAvailability?showtimeId="+itoa(show)+"&seatNumber=3", "", nil)
	assert.False(t, decode[struct {
		IsAvailable bool `json:"is_available"`
	}](t, env.Data).IsAvailable)

	resPath := "/api/Reservation/" + itoa(res.ID)
	_, env = a.do(t, http.MethodGet, resPath, "", nil)
	assert.Empty(t, decode[reservationView](t, env.Data).SecretCode, "strangers never see the code")
	_, env = a.do(t, http.MethodGet, resPath, alice, nil)
	assert.Equal(t, res.SecretCode, decode[reservationView](t, env.Data).SecretCode)

	_, env = a.do(t, http.MethodPost, "/api/Reservation/Verify/"+itoa(res.ID)+"?secretCode=WRONG123", "", nil)
	assert.JSONEq(t, `{"valid":false}`, string(env.Data))
	_, env = a.do(t, http.MethodPost, "/api/Reservation/Verify/999?secretCode="+res.SecretCode, "", nil)
	assert.JSONEq(t, `{"valid":false}`, string(env.Data))
	rec, env = a.do(t, http.MethodPost, "/api/Reservation/Verify/"+itoa(res.ID)+"?secretCode="+res.SecretCode, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[struct{ Valid bool }](t, env.Data).Valid)

	rec, _ = a.do(t, http.MethodHead, resPath, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = a.do(t, http.MethodHead, "/api/Reservation/999", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = a.do(t, http.MethodPut, resPath+"/UpdateSeat?newSeatNumber=4", bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, env = a.do(t, http.MethodPut, resPath+"/UpdateSeat?newSeatNumber=4", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	_, env = a.do(t, http.MethodGet, path+"/ReservedSeats", "", nil)
	assert.Equal(t, []int{4}, decode[[]int](t, env.Data))

	rec, _ = a.do(t, http.MethodGet, resPath+"/qr", bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = a.do(t, http.MethodGet, resPath+"/qr", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))

	rec, _ = a.do(t, http.MethodGet, "/api/Reservation/MyReservations?pageSize=0", alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, env = a.do(t, http.MethodGet, "/api/Reservation/MyReservations", alice, nil)
	assert.Equal(t, 1, decode[struct {
		TotalCount int `json:"total_count"`
	}](t, env.Data).TotalCount)

	rec, _ = a.do(t, http.MethodDelete, resPath, bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = a.do(t, http.MethodDelete, resPath, alice, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = a.do(t, http.MethodHead, resPath, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, env = a.do(t, http.MethodGet, path+"/AvailableSeats", "", nil)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, decode[[]int](t, env.Data))
}

func TestPaymentFlow(t *testing.T) {
	a := newApp(t)
	admin := a.login(t, "admin@example.com", "admin-pass")
	show := a.seed(t, admin).showtime
	alice := a.register(t, "alice@example.com")
	bob := a.register(t, "bob@example.com")

	_, env := a.do(t, http.MethodPost, "/api/Reservation/CreateReservation", alice, echo.Map{"showtimeId": show, "seatNumber": 1})
	res := decode[reservationView](t, env.Data)

	rec, _ := a.do(t, http.MethodPost, "/api/Payment/CreatePaymentIntent", bob, echo.Map{"reservationId": res.ID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = a.do(t, http.MethodPost, "/api/Payment/CreatePaymentIntent", alice, echo.Map{"reservationId": res.ID})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	intent := decode[payment.IntentResult](t, env.Data)
	assert.Equal(t, int64(1250), intent.AmountCents)
	assert.NotEmpty(t, intent.ClientSecret)

	payload := payment.EventPayload(payment.EventIntentSucceeded, intent.IntentID, "")
	req := httptest.NewRequest(http.MethodPost, "/api/Webhook/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "bogus")
	hr := httptest.NewRecorder()
	a.e.ServeHTTP(hr, req)
	assert.Equal(t, http.StatusBadRequest, hr.Code)

	for i := 0; i < 2; i++ {
		req = httptest.NewRequest(http.MethodPost, "/api/Webhook/stripe", bytes.NewReader(payload))
		req.Header.Set("Stripe-Signature", a.gateway.Sign(payload))
		hr = httptest.NewRecorder()
		a.e.ServeHTTP(hr, req)
		assert.Equal(t, http.StatusOK, hr.Code, "duplicate deliveries are acknowledged")
	}

	payPath := "/api/Payment/" + itoa(intent.PaymentID)
	rec, _ = a.do(t, http.MethodGet, payPath, bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	_, env = a.do(t, http.MethodGet, payPath, alice, nil)
	assert.Equal(t, "succeeded", decode[struct{ Status string }](t, env.Data).Status)

	_, env = a.do(t, http.MethodGet, "/api/Reservation/"+itoa(res.ID), alice, nil)
	assert.True(t, decode[reservationView](t, env.Data).IsPaid)

	require.NoError(t, a.gateway.SetStatus(intent.IntentID, model.PaymentSucceeded, ""))
	rec, env = a.do(t, http.MethodPost, "/api/Payment/VerifyPayment/"+itoa(intent.PaymentID), alice, nil)
	require.Equal(t, http.StatusOK, rec.Code, env.Message)

	rec, _ = a.do(t, http.MethodGet, "/api/Payment/999", alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = a.do(t, http.MethodGet, payPath, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCatalogAccess(t *testing.T) {
	a := newApp(t)
	admin := a.login(t, "admin@example.com", "admin-pass")
	ids := a.seed(t, admin)
	alice := a.register(t, "alice@example.com")

	rec, _ := a.do(t, http.MethodPost, "/api/Theater", alice, echo.Map{"name": "Mine", "total_seats": 9})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = a.do(t, http.MethodPost, "/api/Theater", "", echo.Map{"name": "Mine", "total_seats": 9})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env := a.do(t, http.MethodGet, "/api/Movie", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[struct {
		TotalCount int `json:"total_count"`
	}](t, env.Data).TotalCount)
	rec, _ = a.do(t, http.MethodGet, "/api/Movie/slug/arrival", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = a.do(t, http.MethodHead, "/api/Movie/999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, env = a.do(t, http.MethodGet, "/api/Showtime/upcoming?daysAhead=3", "", nil)
	assert.Equal(t, 1, decode[struct {
		TotalCount int `json:"total_count"`
	}](t, env.Data).TotalCount)
	byDate := "/api/Showtime/movie/" + itoa(ids.movie) + "/date?date="
	rec, env = a.do(t, http.MethodGet, byDate+ids.startsAt.Format(time.DateOnly), "", nil)
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	onDay := decode[[]struct {
		ID uint64 `json:"id"`
	}](t, env.Data)
	require.Len(t, onDay, 1)
	assert.Equal(t, ids.showtime, onDay[0].ID)
	assert.Equal(t, "Retrieved 1 showtimes for specified date", env.Message)
	_, env = a.do(t, http.MethodGet, byDate+ids.startsAt.AddDate(0, 0, 1).Format(time.DateOnly), "", nil)
	assert.Empty(t, decode[[]struct{}](t, env.Data))
	rec, _ = a.do(t, http.MethodGet, byDate+"tomorrow", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = a.do(t, http.MethodGet, "/api/Showtime/movie/999/date?date=2030-01-01", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, env = a.do(t, http.MethodGet, "/api/Showtime/"+itoa(ids.showtime)+"/availability", "", nil)
	assert.Equal(t, 5, decode[struct {
		AvailableSeats int `json:"available_seats"`
	}](t, env.Data).AvailableSeats)

	_, _ = a.do(t, http.MethodPost, "/api/Reservation/CreateReservation", alice, echo.Map{"showtimeId": ids.showtime, "seatNumber": 2})
	rec, _ = a.do(t, http.MethodDelete, "/api/Showtime/"+itoa(ids.showtime), admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = a.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = a.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, env = a.do(t, http.MethodGet, "/api/Nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
}

func TestAuthRoutes(t *testing.T) {
	a := newApp(t)
	rec, env := a.do(t, http.MethodPost, "/api/Auth/Register", "", echo.Map{
		"email": "carol@example.com", "password": "carol-pass", "confirmPassword": "carol-pass", "name": "Carol",
	})
	require.Equal(t, http.StatusCreated, rec.Code, env.Message)
	sess := decode[auth.Session](t, env.Data)

	rec, _ = a.do(t, http.MethodPost, "/api/Auth/Register", "", echo.Map{"email": "not-an-email", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = a.do(t, http.MethodPost, "/api/Auth/Login", "", echo.Map{"email": "carol@example.com", "password": "bad-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	_, env = a.do(t, http.MethodGet, "/api/Auth/Profile", sess.Access.Token, nil)
	assert.Equal(t, "Carol", decode[struct{ Name string }](t, env.Data).Name)

	rec, env = a.do(t, http.MethodPost, "/api/Auth/Refresh", "", echo.Map{"refresh_token": sess.Refresh.Token})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	next := decode[auth.Session](t, env.Data)

	rec, _ = a.do(t, http.MethodPost, "/api/Auth/Logout", next.Access.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = a.do(t, http.MethodPost, "/api/Auth/RefreshAccess", "", echo.Map{"refresh_token": next.Refresh.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func itoa(n uint64) string { return strconv.FormatUint(n, 10) }
