// Package response writes the JSON envelope shared by every endpoint:
//
//	{"success": bool, "message": string, "data": any}
//
// and maps service error kinds onto HTTP status codes.
package response

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-reservation/internal/apperr"
	"github.com/iliyamo/movie-reservation/internal/logger"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// OK writes a successful envelope.
func OK(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

// Fail writes a failed envelope.
func Fail(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, Envelope{Success: false, Message: message, Data: data})
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.InvalidInput:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.SeatConflict, apperr.Conflict:
		return http.StatusConflict
	case apperr.Unauthorized:
		return http.StatusForbidden
	case apperr.Unauthenticated:
		return http.StatusUnauthorized
	case apperr.GatewayFailure:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Error writes err as a failed envelope.  Unexpected errors are logged with
// their cause and reported with a generic message.
func Error(c echo.Context, err error) error {
	kind := apperr.KindOf(err)
	status := StatusOf(kind)
	if status >= http.StatusInternalServerError {
		logger.From(c).Error("request failed", zap.String("kind", string(kind)), zap.Error(err))
	}
	return Fail(c, status, apperr.MessageOf(err), nil)
}

// Unauthenticated writes the 401 used when credentials are missing or bad.
func Unauthenticated(c echo.Context, message string) error {
	return Fail(c, http.StatusUnauthorized, message, nil)
}

// HTTPErrorHandler renders errors escaping handlers (routing misses, bind
// failures, panics turned into errors) in the envelope format.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	if he, ok := err.(*echo.HTTPError); ok {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(he.Code)
			return
		}
		_ = Fail(c, he.Code, msg, nil)
		return
	}
	_ = Error(c, err)
}
